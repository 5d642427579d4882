// Package store holds the Profile, Conversation, Audit and Rating collaborators the core talks to,
// with a DynamoDB implementation for deployments and an in-memory one for tests and local runs.
//
// Every precondition the services rely on is enforced by the store itself (conditional writes or
// a lock), never by a read followed by an unconditional write.
package store

import (
	"context"

	"skillswap_server/models"
)

// MemberEvent is one entry of an approved-member feed. Snapshot events are delivered first, but
// consumers must still order by Member.Version because a snapshot entry may be older than an
// update that raced it.
type MemberEvent struct {
	Member   models.Member
	Removed  bool
	Snapshot bool
}

// ProfileStore is the key-value document store for members.
type ProfileStore interface {
	// Create stores a new member. Fails with ErrInvalidState when the id is taken.
	Create(ctx context.Context, m models.Member) (models.Member, error)
	Get(ctx context.Context, memberID string) (models.Member, error)
	// Set applies a partial profile edit and bumps the version.
	Set(ctx context.Context, memberID string, patch models.MemberPatch) (models.Member, error)
	// Replace writes m only if the stored version still equals expectedVersion.
	Replace(ctx context.Context, m models.Member, expectedVersion int64) (models.Member, error)
	// AddPartner links ownerID to partnerID exactly once. It reports whether this call added the
	// link; a repeated call is a no-op returning false.
	AddPartner(ctx context.Context, ownerID, partnerID string) (bool, error)
	QueryApproved(ctx context.Context) ([]models.Member, error)
	List(ctx context.Context) ([]models.Member, error)
	Delete(ctx context.Context, memberID string) error
	// SubscribeApproved streams the approved population until ctx is cancelled.
	SubscribeApproved(ctx context.Context) (<-chan MemberEvent, error)
}

// ConversationStore is the append-only message log plus the per-conversation handshake flag.
type ConversationStore interface {
	GetOrCreate(ctx context.Context, a, b string) (models.Conversation, error)
	Get(ctx context.Context, conversationID string) (models.Conversation, error)
	ListForMember(ctx context.Context, memberID string) ([]models.Conversation, error)
	// AppendMessage assigns the next seq and a timestamp no earlier than the previous message.
	AppendMessage(ctx context.Context, conversationID string, msg models.Message) (models.Message, error)
	// Messages returns messages with seq > afterSeq in seq order; limit <= 0 means all.
	Messages(ctx context.Context, conversationID string, afterSeq int64, limit int) ([]models.Message, error)
	LastMessage(ctx context.Context, conversationID string) (*models.Message, error)
	// Subscribe replays messages after afterSeq and then follows the log until ctx is cancelled.
	// Passing the last seen seq restarts a dropped subscription without gaps or duplicates.
	Subscribe(ctx context.Context, conversationID string, afterSeq int64) (<-chan models.Message, error)

	// OpenRequest appends the announcement and raises the outstanding flag in one atomic step.
	// Fails with ErrAlreadyOutstanding when the flag is already set.
	OpenRequest(ctx context.Context, conversationID, requesterID string, announcement models.Message) (models.Conversation, models.Message, error)
	// RecordDecision appends the decision message and moves request_sent to the decided state in
	// one atomic step. Fails with ErrInvalidState unless the request is still open. When
	// resetOutstanding is set the flag is lowered as part of the same write.
	RecordDecision(ctx context.Context, conversationID string, decision models.Decision, msg models.Message, resetOutstanding bool) (models.Conversation, models.Message, error)
}

// AuditStore is the append-only claim history.
type AuditStore interface {
	Append(ctx context.Context, entry models.ClaimAuditEntry) error
	// List returns entries for the member in chronological order; an empty skill means all skills.
	List(ctx context.Context, memberID, skill string) ([]models.ClaimAuditEntry, error)
}

// RatingStore keeps partner ratings keyed by the rated member and the rater.
type RatingStore interface {
	// Put stores the rating, replacing any earlier rating by the same rater.
	Put(ctx context.Context, r models.Rating) error
	// List returns every rating of the member ordered by rater.
	List(ctx context.Context, memberID string) ([]models.Rating, error)
}
