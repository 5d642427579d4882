package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"skillswap_server/models"
	"skillswap_server/store"
)

// HandshakeService runs the match request / response exchange inside a conversation and keeps the
// mutual partner links of both members in step with the decision.
type HandshakeService struct {
	Conversations store.ConversationStore
	Profiles      store.ProfileStore
	Notifier      MessageNotifier
	Log           *zap.Logger

	// ResetAfterDecision lowers the outstanding flag together with the decision message so the
	// pair can exchange a new request later. Off by default.
	ResetAfterDecision bool
}

// RespondResult is the outcome of Respond. Message is nil when the call replayed an earlier
// decision instead of recording a new one.
type RespondResult struct {
	Conversation models.Conversation `json:"conversation"`
	Message      *models.Message     `json:"message,omitempty"`
	Replayed     bool                `json:"replayed"`
}

// NewHandshakeService wires the service with a no-op notifier when none is given.
func NewHandshakeService(conversations store.ConversationStore, profiles store.ProfileStore, notifier MessageNotifier, log *zap.Logger) *HandshakeService {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &HandshakeService{
		Conversations: conversations,
		Profiles:      profiles,
		Notifier:      notifier,
		Log:           log,
	}
}

// SendMatchRequest announces a match request from requesterID. The announcement is appended and
// the outstanding flag raised in one store write. A second request while the flag is set returns
// ErrAlreadyOutstanding and appends nothing.
func (s *HandshakeService) SendMatchRequest(ctx context.Context, conversationID, requesterID string) (models.Message, error) {
	conv, err := s.Conversations.Get(ctx, conversationID)
	if err != nil {
		return models.Message{}, err
	}
	if !conv.HasParticipant(requesterID) {
		return models.Message{}, fmt.Errorf("member '%s' is not in conversation '%s': %w", requesterID, conversationID, models.ErrUnauthorized)
	}

	announcement := models.Message{
		SenderID: requesterID,
		Text:     models.TextMatchRequest,
		System:   true,
		Kind:     models.KindMatchRequest,
	}
	_, msg, err := s.Conversations.OpenRequest(ctx, conversationID, requesterID, announcement)
	if err != nil {
		if errors.Is(err, models.ErrAlreadyOutstanding) {
			s.Log.Info("match request already outstanding",
				zap.String("conversation_id", conversationID),
				zap.String("requester_id", requesterID))
		}
		return models.Message{}, err
	}
	s.Log.Info("match request sent",
		zap.String("conversation_id", conversationID),
		zap.String("requester_id", requesterID))
	s.notify(ctx, msg)
	return msg, nil
}

// Respond records the responder's decision on the open request. Approval links both members to
// each other. Repeating the decision already recorded appends nothing and replays the link
// upserts, which repairs a pair left half-linked by an earlier failure. A different decision on an
// already decided request fails with ErrInvalidState.
func (s *HandshakeService) Respond(ctx context.Context, conversationID, responderID string, decision models.Decision) (RespondResult, error) {
	if !decision.Valid() {
		return RespondResult{}, fmt.Errorf("unknown decision '%s': %w", decision, models.ErrValidation)
	}
	conv, err := s.Conversations.Get(ctx, conversationID)
	if err != nil {
		return RespondResult{}, err
	}
	if !conv.HasParticipant(responderID) {
		return RespondResult{}, fmt.Errorf("member '%s' is not in conversation '%s': %w", responderID, conversationID, models.ErrUnauthorized)
	}

	var result RespondResult
	switch conv.RequestState {
	case models.HandshakeIdle:
		return RespondResult{}, fmt.Errorf("no match request in conversation '%s': %w", conversationID, models.ErrInvalidState)

	case models.HandshakeRequestSent:
		if responderID == conv.RequesterID {
			return RespondResult{}, fmt.Errorf("requester cannot answer their own match request: %w", models.ErrUnauthorized)
		}
		kind, text := models.DecisionMessageKind(decision)
		updated, msg, err := s.Conversations.RecordDecision(ctx, conversationID, decision, models.Message{
			SenderID: responderID,
			Text:     text,
			System:   true,
			Kind:     kind,
		}, s.ResetAfterDecision)
		if err != nil {
			return RespondResult{}, err
		}
		s.Log.Info("match request answered",
			zap.String("conversation_id", conversationID),
			zap.String("responder_id", responderID),
			zap.String("decision", string(decision)))
		s.notify(ctx, msg)
		result = RespondResult{Conversation: updated, Message: &msg}

	default:
		if conv.RequestState != decision.State() {
			return RespondResult{}, fmt.Errorf("match request already %s: %w", conv.RequestState, models.ErrInvalidState)
		}
		result = RespondResult{Conversation: conv, Replayed: true}
	}

	if decision == models.DecisionApprove {
		if err := s.link(ctx, result.Conversation); err != nil {
			return result, err
		}
	}
	return result, nil
}

// link applies the two per-member upserts. Each one is idempotent on its own, so both are always
// attempted and any failure can be repaired by calling Respond again with the same decision.
func (s *HandshakeService) link(ctx context.Context, conv models.Conversation) error {
	if len(conv.Users) != 2 {
		return fmt.Errorf("conversation '%s' does not have two participants: %w", conv.ConversationID, models.ErrInvalidState)
	}
	a, b := conv.Users[0], conv.Users[1]
	var errs []error
	for _, pair := range [][2]string{{a, b}, {b, a}} {
		added, err := s.Profiles.AddPartner(ctx, pair[0], pair[1])
		if err != nil {
			s.Log.Error("failed to link partners",
				zap.String("owner_id", pair[0]),
				zap.String("partner_id", pair[1]),
				zap.Error(err))
			errs = append(errs, fmt.Errorf("link '%s' -> '%s': %w", pair[0], pair[1], err))
			continue
		}
		if added {
			s.Log.Info("partner linked", zap.String("owner_id", pair[0]), zap.String("partner_id", pair[1]))
		}
	}
	return errors.Join(errs...)
}

func (s *HandshakeService) notify(ctx context.Context, msg models.Message) {
	if err := s.Notifier.NotifyMessage(ctx, msg); err != nil {
		s.Log.Warn("failed to push message",
			zap.String("conversation_id", msg.ConversationID),
			zap.Int64("seq", msg.Seq),
			zap.Error(err))
	}
}
