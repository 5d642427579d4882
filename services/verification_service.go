package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"skillswap_server/models"
	"skillswap_server/store"
)

// VerificationService moves skill claims through unsubmitted -> pending -> approved/rejected and
// handles the reviewer's whole-member approval. Every write is a conditional Replace on the
// version read at the start of the call, so a concurrent transition makes exactly one caller win
// and the other sees ErrInvalidState with nothing changed.
type VerificationService struct {
	Profiles store.ProfileStore
	Audit    store.AuditStore
	Log      *zap.Logger

	now   func() time.Time
	newID func() string
}

// NewVerificationService wires the service. audit may be nil when no history is kept.
func NewVerificationService(profiles store.ProfileStore, audit store.AuditStore, log *zap.Logger) *VerificationService {
	if log == nil {
		log = zap.NewNop()
	}
	return &VerificationService{
		Profiles: profiles,
		Audit:    audit,
		Log:      log,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// claimChange describes one claim transition for the audit trail.
type claimChange struct {
	action   string
	from, to models.ClaimStatus
	evidence string
}

// SubmitClaim marks a claim pending, optionally with an evidence reference; an empty reference
// submits the claim without evidence. The claim must be unsubmitted or rejected; resubmitting a
// pending or approved claim fails with ErrInvalidState. The member's verified flag for the skill
// is forced to false until a reviewer approves.
func (s *VerificationService) SubmitClaim(ctx context.Context, actor models.Actor, memberID, skill, evidenceRef string) (models.SkillClaim, error) {
	if actor.ID != memberID && !actor.IsReviewer() {
		return models.SkillClaim{}, fmt.Errorf("submit claim for '%s': %w", memberID, models.ErrUnauthorized)
	}
	evidenceRef = strings.TrimSpace(evidenceRef)
	return s.transition(ctx, actor, memberID, skill, func(m *models.Member, c models.SkillClaim) (models.SkillClaim, claimChange, error) {
		if c.Status != models.ClaimUnsubmitted && c.Status != models.ClaimRejected {
			return c, claimChange{}, fmt.Errorf("claim '%s' is %s: %w", c.Skill, c.Status, models.ErrInvalidState)
		}
		now := s.now().UTC()
		next := models.SkillClaim{
			Skill:       c.Skill,
			Status:      models.ClaimPending,
			EvidenceRef: evidenceRef,
			SubmittedAt: &now,
		}
		m.VerifiedSkills[c.Skill] = false
		return next, claimChange{action: models.AuditSubmit, from: c.Status, to: next.Status, evidence: evidenceRef}, nil
	})
}

// Approve accepts a pending claim and sets the skill's verified flag.
func (s *VerificationService) Approve(ctx context.Context, actor models.Actor, memberID, skill string) (models.SkillClaim, error) {
	if !actor.IsReviewer() {
		return models.SkillClaim{}, fmt.Errorf("approve claim: %w", models.ErrUnauthorized)
	}
	return s.transition(ctx, actor, memberID, skill, func(m *models.Member, c models.SkillClaim) (models.SkillClaim, claimChange, error) {
		if c.Status != models.ClaimPending {
			return c, claimChange{}, fmt.Errorf("claim '%s' is %s, not pending: %w", c.Skill, c.Status, models.ErrInvalidState)
		}
		now := s.now().UTC()
		next := c
		next.Status = models.ClaimApproved
		next.DecidedAt = &now
		next.DecidedBy = actor.ID
		m.VerifiedSkills[c.Skill] = true
		return next, claimChange{action: models.AuditApprove, from: c.Status, to: next.Status, evidence: c.EvidenceRef}, nil
	})
}

// Reject declines a pending claim. The evidence reference is cleared from the live claim and kept
// only in the audit trail; the claim stays rejected until the member resubmits.
func (s *VerificationService) Reject(ctx context.Context, actor models.Actor, memberID, skill string) (models.SkillClaim, error) {
	if !actor.IsReviewer() {
		return models.SkillClaim{}, fmt.Errorf("reject claim: %w", models.ErrUnauthorized)
	}
	return s.transition(ctx, actor, memberID, skill, func(m *models.Member, c models.SkillClaim) (models.SkillClaim, claimChange, error) {
		if c.Status != models.ClaimPending {
			return c, claimChange{}, fmt.Errorf("claim '%s' is %s, not pending: %w", c.Skill, c.Status, models.ErrInvalidState)
		}
		now := s.now().UTC()
		next := models.SkillClaim{
			Skill:       c.Skill,
			Status:      models.ClaimRejected,
			SubmittedAt: c.SubmittedAt,
			DecidedAt:   &now,
			DecidedBy:   actor.ID,
		}
		m.VerifiedSkills[c.Skill] = false
		return next, claimChange{action: models.AuditReject, from: c.Status, to: next.Status, evidence: c.EvidenceRef}, nil
	})
}

// Undo reverts an approved claim back to unsubmitted and clears its verified flag. It is not
// defined for any other state.
func (s *VerificationService) Undo(ctx context.Context, actor models.Actor, memberID, skill string) (models.SkillClaim, error) {
	if !actor.IsReviewer() {
		return models.SkillClaim{}, fmt.Errorf("undo claim: %w", models.ErrUnauthorized)
	}
	return s.transition(ctx, actor, memberID, skill, func(m *models.Member, c models.SkillClaim) (models.SkillClaim, claimChange, error) {
		if c.Status != models.ClaimApproved {
			return c, claimChange{}, fmt.Errorf("claim '%s' is %s, not approved: %w", c.Skill, c.Status, models.ErrInvalidState)
		}
		m.VerifiedSkills[c.Skill] = false
		next := models.SkillClaim{Skill: c.Skill, Status: models.ClaimUnsubmitted}
		return next, claimChange{action: models.AuditUndo, from: c.Status, to: next.Status, evidence: c.EvidenceRef}, nil
	})
}

// ApproveMember sets the member-level approval flag. Approving also recomputes the verified map
// for every possessed skill: a skill is verified when a claim exists for it and carries evidence.
func (s *VerificationService) ApproveMember(ctx context.Context, actor models.Actor, memberID string, approved bool) (models.Member, error) {
	if !actor.IsReviewer() {
		return models.Member{}, fmt.Errorf("approve member: %w", models.ErrUnauthorized)
	}
	m, err := s.Profiles.Get(ctx, memberID)
	if err != nil {
		return models.Member{}, err
	}
	expected := m.Version
	next := m.Clone()
	next.Approved = approved
	if approved {
		verified := make(map[string]bool, len(next.PossessedSkills))
		for _, skill := range next.PossessedSkills {
			c, ok := next.Claims[skill]
			verified[skill] = ok && c.HasEvidence()
		}
		next.VerifiedSkills = verified
	}
	next.UpdatedAt = s.now().UTC()

	saved, err := s.Profiles.Replace(ctx, next, expected)
	if err != nil {
		return models.Member{}, err
	}
	s.record(ctx, actor, memberID, "", claimChange{action: models.AuditMemberApprove})
	s.Log.Info("member approval updated",
		zap.String("member_id", memberID),
		zap.Bool("approved", approved),
		zap.String("reviewer_id", actor.ID))
	return saved, nil
}

// PendingClaims lists every pending claim across members, oldest submission first.
func (s *VerificationService) PendingClaims(ctx context.Context, actor models.Actor) ([]models.PendingClaim, error) {
	if !actor.IsReviewer() {
		return nil, fmt.Errorf("list pending claims: %w", models.ErrUnauthorized)
	}
	members, err := s.Profiles.List(ctx)
	if err != nil {
		return nil, err
	}
	pending := []models.PendingClaim{}
	for _, m := range members {
		for _, c := range m.Claims {
			if c.Status != models.ClaimPending {
				continue
			}
			pending = append(pending, models.PendingClaim{
				MemberID:    m.MemberID,
				DisplayName: m.DisplayName,
				Skill:       c.Skill,
				EvidenceRef: c.EvidenceRef,
				SubmittedAt: c.SubmittedAt,
			})
		}
	}
	sort.SliceStable(pending, func(i, j int) bool {
		a, b := pending[i], pending[j]
		if ta, tb := submittedAt(a), submittedAt(b); !ta.Equal(tb) {
			return ta.Before(tb)
		}
		if a.MemberID != b.MemberID {
			return a.MemberID < b.MemberID
		}
		return a.Skill < b.Skill
	})
	return pending, nil
}

// ClaimHistory returns the audit trail of one claim. Members can read their own history.
func (s *VerificationService) ClaimHistory(ctx context.Context, actor models.Actor, memberID, skill string) ([]models.ClaimAuditEntry, error) {
	if actor.ID != memberID && !actor.IsReviewer() {
		return nil, fmt.Errorf("claim history for '%s': %w", memberID, models.ErrUnauthorized)
	}
	if s.Audit == nil {
		return []models.ClaimAuditEntry{}, nil
	}
	return s.Audit.List(ctx, memberID, models.NormalizeSkill(skill))
}

// transition runs a read, check, conditional-write cycle for a single claim. mutate must not
// write anything when it returns an error.
func (s *VerificationService) transition(
	ctx context.Context,
	actor models.Actor,
	memberID, skill string,
	mutate func(m *models.Member, c models.SkillClaim) (models.SkillClaim, claimChange, error),
) (models.SkillClaim, error) {
	key := models.NormalizeSkill(skill)
	if key == "" {
		return models.SkillClaim{}, fmt.Errorf("skill name is required: %w", models.ErrValidation)
	}
	m, err := s.Profiles.Get(ctx, memberID)
	if err != nil {
		return models.SkillClaim{}, err
	}
	expected := m.Version
	next := m.Clone()

	claim, change, err := mutate(&next, m.Claim(key))
	if err != nil {
		return models.SkillClaim{}, err
	}
	if claim.Status == models.ClaimUnsubmitted {
		delete(next.Claims, key)
	} else {
		next.Claims[key] = claim
	}
	next.UpdatedAt = s.now().UTC()

	if _, err := s.Profiles.Replace(ctx, next, expected); err != nil {
		return models.SkillClaim{}, err
	}
	s.record(ctx, actor, memberID, key, change)
	s.Log.Info("skill claim updated",
		zap.String("member_id", memberID),
		zap.String("skill", key),
		zap.String("from", string(change.from)),
		zap.String("to", string(change.to)),
		zap.String("actor_id", actor.ID))
	return claim, nil
}

// record appends to the audit trail. The transition is already committed, so a failed append is
// logged rather than reported to the caller.
func (s *VerificationService) record(ctx context.Context, actor models.Actor, memberID, skill string, change claimChange) {
	if s.Audit == nil {
		return
	}
	at := s.now().UTC()
	entry := models.ClaimAuditEntry{
		MemberID:    memberID,
		EntryID:     models.AuditEntryID(at, s.newID()),
		Skill:       skill,
		Action:      change.action,
		From:        change.from,
		To:          change.to,
		ActorID:     actor.ID,
		EvidenceRef: change.evidence,
		At:          at,
	}
	if err := s.Audit.Append(ctx, entry); err != nil {
		s.Log.Error("failed to append claim audit entry",
			zap.String("member_id", memberID),
			zap.String("skill", skill),
			zap.String("action", change.action),
			zap.Error(err))
	}
}

func submittedAt(p models.PendingClaim) time.Time {
	if p.SubmittedAt == nil {
		return time.Time{}
	}
	return *p.SubmittedAt
}
