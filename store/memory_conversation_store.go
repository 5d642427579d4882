package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"skillswap_server/models"

	"github.com/google/uuid"
)

type memoryConversation struct {
	conv     models.Conversation
	messages []models.Message
	wake     *broadcaster
}

// MemoryConversationStore keeps conversations and their logs in memory. A single mutex makes the
// handshake writes atomic: the message and the flag change become visible together.
type MemoryConversationStore struct {
	mu    sync.RWMutex
	convs map[string]*memoryConversation
	now   func() time.Time
}

// NewMemoryConversationStore creates an empty store.
func NewMemoryConversationStore() *MemoryConversationStore {
	return &MemoryConversationStore{
		convs: make(map[string]*memoryConversation),
		now:   time.Now,
	}
}

func (s *MemoryConversationStore) GetOrCreate(ctx context.Context, a, b string) (models.Conversation, error) {
	if a == "" || b == "" || a == b {
		return models.Conversation{}, fmt.Errorf("conversation needs two distinct members: %w", models.ErrValidation)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	id := models.ConversationID(a, b)
	if c, ok := s.convs[id]; ok {
		return c.conv, nil
	}
	c := &memoryConversation{conv: models.NewConversation(a, b, s.now().UTC()), wake: newBroadcaster()}
	s.convs[id] = c
	return c.conv, nil
}

func (s *MemoryConversationStore) Get(ctx context.Context, conversationID string) (models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.convs[conversationID]
	if !ok {
		return models.Conversation{}, fmt.Errorf("conversation %q: %w", conversationID, models.ErrNotFound)
	}
	return c.conv, nil
}

func (s *MemoryConversationStore) ListForMember(ctx context.Context, memberID string) ([]models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Conversation
	for _, c := range s.convs {
		if c.conv.HasParticipant(memberID) {
			out = append(out, c.conv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ConversationID < out[j].ConversationID })
	return out, nil
}

func (s *MemoryConversationStore) AppendMessage(ctx context.Context, conversationID string, msg models.Message) (models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.convs[conversationID]
	if !ok {
		return models.Message{}, fmt.Errorf("conversation %q: %w", conversationID, models.ErrNotFound)
	}
	return s.appendLocked(c, msg), nil
}

func (s *MemoryConversationStore) Messages(ctx context.Context, conversationID string, afterSeq int64, limit int) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.convs[conversationID]
	if !ok {
		return nil, fmt.Errorf("conversation %q: %w", conversationID, models.ErrNotFound)
	}
	return tail(c.messages, afterSeq, limit), nil
}

func (s *MemoryConversationStore) LastMessage(ctx context.Context, conversationID string) (*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.convs[conversationID]
	if !ok {
		return nil, fmt.Errorf("conversation %q: %w", conversationID, models.ErrNotFound)
	}
	if len(c.messages) == 0 {
		return nil, nil
	}
	last := c.messages[len(c.messages)-1]
	return &last, nil
}

func (s *MemoryConversationStore) Subscribe(ctx context.Context, conversationID string, afterSeq int64) (<-chan models.Message, error) {
	s.mu.RLock()
	c, ok := s.convs[conversationID]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("conversation %q: %w", conversationID, models.ErrNotFound)
	}

	out := make(chan models.Message)
	wake, cancel := c.wake.subscribe()
	go func() {
		defer close(out)
		defer cancel()

		last := afterSeq
		for {
			s.mu.RLock()
			pending := tail(c.messages, last, 0)
			s.mu.RUnlock()

			for _, m := range pending {
				if !send(ctx, out, m) {
					return
				}
				last = m.Seq
			}
			select {
			case <-ctx.Done():
				return
			case <-wake:
			}
		}
	}()
	return out, nil
}

func (s *MemoryConversationStore) OpenRequest(ctx context.Context, conversationID, requesterID string, announcement models.Message) (models.Conversation, models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.convs[conversationID]
	if !ok {
		return models.Conversation{}, models.Message{}, fmt.Errorf("conversation %q: %w", conversationID, models.ErrNotFound)
	}
	if c.conv.MatchRequestOutstanding {
		return c.conv, models.Message{}, models.ErrAlreadyOutstanding
	}
	// Append first, then flip the flag, all under the same lock.
	m := s.appendLocked(c, announcement)
	c.conv.MatchRequestOutstanding = true
	c.conv.RequestState = models.HandshakeRequestSent
	c.conv.RequesterID = requesterID
	return c.conv, m, nil
}

func (s *MemoryConversationStore) RecordDecision(ctx context.Context, conversationID string, decision models.Decision, msg models.Message, resetOutstanding bool) (models.Conversation, models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.convs[conversationID]
	if !ok {
		return models.Conversation{}, models.Message{}, fmt.Errorf("conversation %q: %w", conversationID, models.ErrNotFound)
	}
	if c.conv.RequestState != models.HandshakeRequestSent {
		return c.conv, models.Message{}, fmt.Errorf("conversation %q is %s: %w", conversationID, c.conv.RequestState, models.ErrInvalidState)
	}
	m := s.appendLocked(c, msg)
	c.conv.RequestState = decision.State()
	if resetOutstanding {
		c.conv.MatchRequestOutstanding = false
	}
	return c.conv, m, nil
}

func (s *MemoryConversationStore) appendLocked(c *memoryConversation, msg models.Message) models.Message {
	ts := s.now().UTC()
	if ts.Before(c.conv.LastMessageAt) {
		ts = c.conv.LastMessageAt
	}
	msg.ConversationID = c.conv.ConversationID
	msg.Seq = c.conv.MessageCount + 1
	msg.Timestamp = ts
	if msg.MessageID == "" {
		msg.MessageID = uuid.NewString()
	}
	c.messages = append(c.messages, msg)
	c.conv.MessageCount = msg.Seq
	c.conv.LastMessageAt = ts
	c.wake.notify()
	return msg
}

// tail returns a copy of the messages after afterSeq. Seq is 1-based and gapless, so the slice
// offset equals afterSeq.
func tail(messages []models.Message, afterSeq int64, limit int) []models.Message {
	if afterSeq < 0 {
		afterSeq = 0
	}
	if afterSeq >= int64(len(messages)) {
		return nil
	}
	rest := messages[afterSeq:]
	if limit > 0 && len(rest) > limit {
		rest = rest[:limit]
	}
	return append([]models.Message(nil), rest...)
}
