package models

import "time"

// ClaimStatus is the lifecycle state of a skill claim.
type ClaimStatus string

const (
	ClaimUnsubmitted ClaimStatus = "unsubmitted"
	ClaimPending     ClaimStatus = "pending"
	ClaimApproved    ClaimStatus = "approved"
	ClaimRejected    ClaimStatus = "rejected"
)

// SkillClaim is a member's assertion of a skill, optionally backed by hosted evidence.
type SkillClaim struct {
	Skill       string      `dynamodbav:"skill" json:"skill"`
	Status      ClaimStatus `dynamodbav:"status" json:"status"`
	EvidenceRef string      `dynamodbav:"evidenceRef,omitempty" json:"evidenceRef,omitempty"` // empty means no evidence
	SubmittedAt *time.Time  `dynamodbav:"submittedAt,omitempty" json:"submittedAt,omitempty"`
	DecidedAt   *time.Time  `dynamodbav:"decidedAt,omitempty" json:"decidedAt,omitempty"`
	DecidedBy   string      `dynamodbav:"decidedBy,omitempty" json:"decidedBy,omitempty"`
}

// HasEvidence reports whether an evidence reference is attached.
func (c SkillClaim) HasEvidence() bool { return c.EvidenceRef != "" }

// PendingClaim is one entry of the reviewer queue.
type PendingClaim struct {
	MemberID    string     `json:"memberId"`
	DisplayName string     `json:"displayName"`
	Skill       string     `json:"skill"`
	EvidenceRef string     `json:"evidenceRef,omitempty"`
	SubmittedAt *time.Time `json:"submittedAt,omitempty"`
}

// ClaimAuditEntry records one claim transition. Entries are never modified or removed, so evidence
// attached to a rejected claim stays reviewable after the live claim is cleared.
type ClaimAuditEntry struct {
	MemberID    string      `dynamodbav:"memberId" json:"memberId"` // Partition Key
	EntryID     string      `dynamodbav:"entryId" json:"entryId"`   // Sort Key: "<RFC3339Nano>#<uuid>"
	Skill       string      `dynamodbav:"skill" json:"skill"`
	Action      string      `dynamodbav:"action" json:"action"`
	From        ClaimStatus `dynamodbav:"from" json:"from"`
	To          ClaimStatus `dynamodbav:"to" json:"to"`
	ActorID     string      `dynamodbav:"actorId" json:"actorId"`
	EvidenceRef string      `dynamodbav:"evidenceRef,omitempty" json:"evidenceRef,omitempty"`
	At          time.Time   `dynamodbav:"at" json:"at"`
}

// Audit actions
const (
	AuditSubmit        = "submit"
	AuditApprove       = "approve"
	AuditReject        = "reject"
	AuditUndo          = "undo"
	AuditMemberApprove = "member_approve"
)

// auditIDLayout is fixed-width so entry ids sort chronologically as strings.
const auditIDLayout = "2006-01-02T15:04:05.000000000Z"

// AuditEntryID builds a sortable entry id from the transition time and a unique suffix.
func AuditEntryID(at time.Time, suffix string) string {
	return at.UTC().Format(auditIDLayout) + "#" + suffix
}
