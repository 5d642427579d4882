package models

import "time"

// Role of the actor performing an operation.
type Role string

const (
	RoleMember   Role = "member"
	RoleReviewer Role = "reviewer"
)

// Actor identifies who is calling; identity is established upstream.
type Actor struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

// IsReviewer reports whether the actor may decide on skill claims.
func (a Actor) IsReviewer() bool { return a.Role == RoleReviewer }

// Member is the normalized, defaulted view of a member document.
type Member struct {
	MemberID        string                `json:"memberId"`
	DisplayName     string                `json:"displayName"`
	PossessedSkills []string              `json:"possessedSkills"`
	WantedSkills    []string              `json:"wantedSkills"`
	VerifiedSkills  map[string]bool       `json:"verifiedSkills"`
	Claims          map[string]SkillClaim `json:"claims"`
	Active          bool                  `json:"active"`
	Approved        bool                  `json:"approved"`
	MatchedCount    int                   `json:"matchedCount"`
	PartnerIDs      []string              `json:"partnerIds"`
	Version         int64                 `json:"version"`
	CreatedAt       time.Time             `json:"createdAt"`
	UpdatedAt       time.Time             `json:"updatedAt"`
}

// MemberDocument is the stored shape. Optional attributes are pointers or nil-able containers so a
// missing attribute can be told apart from a zero value; FromDocument applies the defaults.
type MemberDocument struct {
	MemberID        string                `dynamodbav:"memberId" json:"memberId"` // Partition Key
	DisplayName     string                `dynamodbav:"displayName,omitempty" json:"displayName,omitempty"`
	PossessedSkills []string              `dynamodbav:"possessedSkills,omitempty" json:"possessedSkills,omitempty"`
	WantedSkills    []string              `dynamodbav:"wantedSkills,omitempty" json:"wantedSkills,omitempty"`
	VerifiedSkills  map[string]bool       `dynamodbav:"verifiedSkills,omitempty" json:"verifiedSkills,omitempty"`
	Claims          map[string]SkillClaim `dynamodbav:"claims,omitempty" json:"claims,omitempty"`
	Active          *bool                 `dynamodbav:"active,omitempty" json:"active,omitempty"`     // defaults to true
	Approved        *bool                 `dynamodbav:"approved,omitempty" json:"approved,omitempty"` // defaults to false
	MatchedCount    *int                  `dynamodbav:"matchedCount,omitempty" json:"matchedCount,omitempty"`
	PartnerIDs      []string              `dynamodbav:"partnerIds,omitempty" json:"partnerIds,omitempty"`
	Version         int64                 `dynamodbav:"version" json:"version"` // optimistic concurrency token
	CreatedAt       string                `dynamodbav:"createdAt,omitempty" json:"createdAt,omitempty"`
	UpdatedAt       string                `dynamodbav:"updatedAt,omitempty" json:"updatedAt,omitempty"`
}

// FromDocument converts a stored document into a Member, applying every default in one place.
func FromDocument(doc MemberDocument) Member {
	m := Member{
		MemberID:        doc.MemberID,
		DisplayName:     doc.DisplayName,
		PossessedSkills: NormalizeSkills(doc.PossessedSkills),
		WantedSkills:    NormalizeSkills(doc.WantedSkills),
		VerifiedSkills:  map[string]bool{},
		Claims:          map[string]SkillClaim{},
		Active:          true,
		PartnerIDs:      []string{},
		Version:         doc.Version,
		CreatedAt:       parseTime(doc.CreatedAt),
		UpdatedAt:       parseTime(doc.UpdatedAt),
	}
	if doc.Active != nil {
		m.Active = *doc.Active
	}
	if doc.Approved != nil {
		m.Approved = *doc.Approved
	}
	if doc.MatchedCount != nil {
		m.MatchedCount = *doc.MatchedCount
	}
	for skill, verified := range doc.VerifiedSkills {
		m.VerifiedSkills[NormalizeSkill(skill)] = verified
	}
	for skill, claim := range doc.Claims {
		key := NormalizeSkill(skill)
		claim.Skill = key
		if claim.Status == "" {
			claim.Status = ClaimUnsubmitted
		}
		m.Claims[key] = claim
	}
	m.PartnerIDs = append(m.PartnerIDs, doc.PartnerIDs...)
	return m
}

// Document converts a Member back to its stored shape.
func (m Member) Document() MemberDocument {
	active, approved, count := m.Active, m.Approved, m.MatchedCount
	doc := MemberDocument{
		MemberID:        m.MemberID,
		DisplayName:     m.DisplayName,
		PossessedSkills: NormalizeSkills(m.PossessedSkills),
		WantedSkills:    NormalizeSkills(m.WantedSkills),
		VerifiedSkills:  m.VerifiedSkills,
		Claims:          m.Claims,
		Active:          &active,
		Approved:        &approved,
		MatchedCount:    &count,
		PartnerIDs:      m.PartnerIDs,
		Version:         m.Version,
		CreatedAt:       formatTime(m.CreatedAt),
		UpdatedAt:       formatTime(m.UpdatedAt),
	}
	return doc
}

// NewMember returns a freshly registered member with all defaults applied.
func NewMember(id, displayName string, possessed, wanted []string, now time.Time) Member {
	return FromDocument(MemberDocument{
		MemberID:        id,
		DisplayName:     displayName,
		PossessedSkills: possessed,
		WantedSkills:    wanted,
		CreatedAt:       formatTime(now),
		UpdatedAt:       formatTime(now),
	})
}

// Clone returns a deep copy so callers can mutate without aliasing store state.
func (m Member) Clone() Member {
	c := m
	c.PossessedSkills = append([]string(nil), m.PossessedSkills...)
	c.WantedSkills = append([]string(nil), m.WantedSkills...)
	c.PartnerIDs = append([]string{}, m.PartnerIDs...)
	c.VerifiedSkills = make(map[string]bool, len(m.VerifiedSkills))
	for k, v := range m.VerifiedSkills {
		c.VerifiedSkills[k] = v
	}
	c.Claims = make(map[string]SkillClaim, len(m.Claims))
	for k, v := range m.Claims {
		c.Claims[k] = v
	}
	return c
}

// Claim returns the claim for skill, or an unsubmitted claim when none exists.
func (m Member) Claim(skill string) SkillClaim {
	key := NormalizeSkill(skill)
	if c, ok := m.Claims[key]; ok {
		return c
	}
	return SkillClaim{Skill: key, Status: ClaimUnsubmitted}
}

// IsVerified reports the per-skill verified flag.
func (m Member) IsVerified(skill string) bool {
	return m.VerifiedSkills[NormalizeSkill(skill)]
}

// VerifiedPossessed returns the possessed skills whose verified flag is set, in possessed order.
func (m Member) VerifiedPossessed() []string {
	out := make([]string, 0, len(m.PossessedSkills))
	for _, s := range m.PossessedSkills {
		if m.IsVerified(s) {
			out = append(out, s)
		}
	}
	return out
}

// HasPartner reports whether id is already in the partner list.
func (m Member) HasPartner(id string) bool {
	for _, p := range m.PartnerIDs {
		if p == id {
			return true
		}
	}
	return false
}

// FullyBooked reports whether the member reached the partner limit. A limit <= 0 disables it.
func (m Member) FullyBooked(limit int) bool {
	return limit > 0 && m.MatchedCount >= limit
}

// MemberPatch is a partial profile edit; nil fields are left untouched.
type MemberPatch struct {
	DisplayName     *string  `json:"displayName,omitempty"`
	PossessedSkills []string `json:"possessedSkills,omitempty"`
	WantedSkills    []string `json:"wantedSkills,omitempty"`
	Active          *bool    `json:"active,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p MemberPatch) Empty() bool {
	return p.DisplayName == nil && p.PossessedSkills == nil && p.WantedSkills == nil && p.Active == nil
}

// Apply writes the patch onto m.
func (p MemberPatch) Apply(m *Member) {
	if p.DisplayName != nil {
		m.DisplayName = *p.DisplayName
	}
	if p.PossessedSkills != nil {
		m.PossessedSkills = NormalizeSkills(p.PossessedSkills)
	}
	if p.WantedSkills != nil {
		m.WantedSkills = NormalizeSkills(p.WantedSkills)
	}
	if p.Active != nil {
		m.Active = *p.Active
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
