package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"skillswap_server/models"
	"skillswap_server/store"
)

// ChatService covers plain messaging between two members.
type ChatService struct {
	Conversations store.ConversationStore
	Profiles      store.ProfileStore
	Notifier      MessageNotifier
	MaxPartners   int
	Log           *zap.Logger
}

// NewChatService wires the service with a no-op notifier when none is given.
func NewChatService(conversations store.ConversationStore, profiles store.ProfileStore, notifier MessageNotifier, maxPartners int, log *zap.Logger) *ChatService {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ChatService{
		Conversations: conversations,
		Profiles:      profiles,
		Notifier:      notifier,
		MaxPartners:   maxPartners,
		Log:           log,
	}
}

// Connect returns the conversation between the two members, creating it on first use.
func (s *ChatService) Connect(ctx context.Context, memberID, otherID string) (models.Conversation, error) {
	if memberID == "" || otherID == "" || memberID == otherID {
		return models.Conversation{}, fmt.Errorf("connect needs two distinct members: %w", models.ErrValidation)
	}
	for _, id := range []string{memberID, otherID} {
		if _, err := s.Profiles.Get(ctx, id); err != nil {
			return models.Conversation{}, err
		}
	}
	return s.Conversations.GetOrCreate(ctx, memberID, otherID)
}

// SendMessage appends a user message. Blank text is rejected.
func (s *ChatService) SendMessage(ctx context.Context, conversationID, senderID, text string) (models.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return models.Message{}, fmt.Errorf("message text is empty: %w", models.ErrValidation)
	}
	if _, err := s.participant(ctx, conversationID, senderID); err != nil {
		return models.Message{}, err
	}
	msg, err := s.Conversations.AppendMessage(ctx, conversationID, models.Message{
		SenderID: senderID,
		Text:     text,
		Kind:     models.KindUser,
	})
	if err != nil {
		return models.Message{}, err
	}
	if err := s.Notifier.NotifyMessage(ctx, msg); err != nil {
		s.Log.Warn("failed to push message",
			zap.String("conversation_id", conversationID),
			zap.Int64("seq", msg.Seq),
			zap.Error(err))
	}
	return msg, nil
}

// Messages returns the log after afterSeq for a participant.
func (s *ChatService) Messages(ctx context.Context, conversationID, viewerID string, afterSeq int64, limit int) ([]models.Message, error) {
	if _, err := s.participant(ctx, conversationID, viewerID); err != nil {
		return nil, err
	}
	return s.Conversations.Messages(ctx, conversationID, afterSeq, limit)
}

// Subscribe follows the log for a participant until ctx is cancelled.
func (s *ChatService) Subscribe(ctx context.Context, conversationID, viewerID string, afterSeq int64) (<-chan models.Message, error) {
	if _, err := s.participant(ctx, conversationID, viewerID); err != nil {
		return nil, err
	}
	return s.Conversations.Subscribe(ctx, conversationID, afterSeq)
}

// ListConversations builds the member's chat list, most recent activity first.
func (s *ChatService) ListConversations(ctx context.Context, memberID string) ([]models.ConversationSummary, error) {
	convs, err := s.Conversations.ListForMember(ctx, memberID)
	if err != nil {
		return nil, err
	}

	summaries := make([]models.ConversationSummary, 0, len(convs))
	for _, conv := range convs {
		summary := models.ConversationSummary{
			ConversationID:          conv.ConversationID,
			PartnerID:               conv.Other(memberID),
			PartnerName:             "Unknown",
			LastMessage:             models.NoMessagesYet,
			LastMessageAt:           conv.LastMessageAt,
			MatchRequestOutstanding: conv.MatchRequestOutstanding,
		}

		partner, err := s.Profiles.Get(ctx, summary.PartnerID)
		switch {
		case err == nil:
			summary.PartnerName = partner.DisplayName
			summary.PartnerFullyBooked = partner.FullyBooked(s.MaxPartners)
		case errors.Is(err, models.ErrNotFound):
			s.Log.Warn("partner profile missing",
				zap.String("conversation_id", conv.ConversationID),
				zap.String("partner_id", summary.PartnerID))
		default:
			return nil, err
		}

		last, err := s.Conversations.LastMessage(ctx, conv.ConversationID)
		if err != nil {
			return nil, err
		}
		if last != nil {
			summary.LastMessage = last.Text
			summary.LastMessageAt = last.Timestamp
		}
		summaries = append(summaries, summary)
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].LastMessageAt.After(summaries[j].LastMessageAt)
	})
	return summaries, nil
}

func (s *ChatService) participant(ctx context.Context, conversationID, memberID string) (models.Conversation, error) {
	conv, err := s.Conversations.Get(ctx, conversationID)
	if err != nil {
		return models.Conversation{}, err
	}
	if !conv.HasParticipant(memberID) {
		return models.Conversation{}, fmt.Errorf("member '%s' is not in conversation '%s': %w", memberID, conversationID, models.ErrUnauthorized)
	}
	return conv, nil
}
