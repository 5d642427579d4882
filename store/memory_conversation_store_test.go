package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skillswap_server/models"
)

func userMessage(sender, text string) models.Message {
	return models.Message{SenderID: sender, Text: text, Kind: models.KindUser}
}

func TestGetOrCreate_Symmetric(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryConversationStore()

	ab, err := s.GetOrCreate(ctx, "bob", "alice")
	require.NoError(t, err)
	ba, err := s.GetOrCreate(ctx, "alice", "bob")
	require.NoError(t, err)

	assert.Equal(t, ab.ConversationID, ba.ConversationID)
	assert.Equal(t, []string{"alice", "bob"}, ab.Users)
	assert.Equal(t, models.HandshakeIdle, ab.RequestState)

	_, err = s.GetOrCreate(ctx, "alice", "alice")
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestAppendMessage_SeqAndTimestamps(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryConversationStore()
	conv, err := s.GetOrCreate(ctx, "alice", "bob")
	require.NoError(t, err)

	// A clock that goes backwards must not produce decreasing timestamps.
	times := []time.Time{time.Unix(200, 0), time.Unix(100, 0), time.Unix(300, 0)}
	var i int
	s.now = func() time.Time { t := times[i]; i++; return t }

	var got []models.Message
	for _, text := range []string{"one", "two", "three"} {
		m, err := s.AppendMessage(ctx, conv.ConversationID, userMessage("alice", text))
		require.NoError(t, err)
		got = append(got, m)
	}
	for i, m := range got {
		assert.Equal(t, int64(i+1), m.Seq)
		assert.NotEmpty(t, m.MessageID)
		if i > 0 {
			assert.False(t, m.Timestamp.Before(got[i-1].Timestamp))
		}
	}

	msgs, err := s.Messages(ctx, conv.ConversationID, 1, 1)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "two", msgs[0].Text)

	last, err := s.LastMessage(ctx, conv.ConversationID)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, "three", last.Text)

	_, err = s.AppendMessage(ctx, "missing", userMessage("alice", "x"))
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestLastMessage_Empty(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryConversationStore()
	conv, err := s.GetOrCreate(ctx, "alice", "bob")
	require.NoError(t, err)

	last, err := s.LastMessage(ctx, conv.ConversationID)
	require.NoError(t, err)
	assert.Nil(t, last)
}

func TestOpenRequest_Once(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryConversationStore()
	conv, err := s.GetOrCreate(ctx, "alice", "bob")
	require.NoError(t, err)

	announcement := models.Message{SenderID: "alice", Text: models.TextMatchRequest, System: true, Kind: models.KindMatchRequest}

	var wg sync.WaitGroup
	results := make([]error, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, results[i] = s.OpenRequest(ctx, conv.ConversationID, "alice", announcement)
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range results {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, models.ErrAlreadyOutstanding)
	}
	assert.Equal(t, 1, ok)

	msgs, err := s.Messages(ctx, conv.ConversationID, 0, 0)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestOpenRequest_FlagNeverVisibleWithoutAnnouncement(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryConversationStore()
	conv, err := s.GetOrCreate(ctx, "alice", "bob")
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			c, err := s.Get(ctx, conv.ConversationID)
			if !assert.NoError(t, err) {
				return
			}
			if !c.MatchRequestOutstanding {
				continue
			}
			msgs, err := s.Messages(ctx, conv.ConversationID, 0, 0)
			assert.NoError(t, err)
			assert.NotEmpty(t, msgs)
			return
		}
	}()
	_, _, err = s.OpenRequest(ctx, conv.ConversationID, "alice", models.Message{Kind: models.KindMatchRequest, System: true})
	require.NoError(t, err)
	<-done
}

func TestRecordDecision(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryConversationStore()
	conv, err := s.GetOrCreate(ctx, "alice", "bob")
	require.NoError(t, err)

	_, _, err = s.RecordDecision(ctx, conv.ConversationID, models.DecisionApprove, models.Message{}, false)
	assert.ErrorIs(t, err, models.ErrInvalidState)

	_, _, err = s.OpenRequest(ctx, conv.ConversationID, "alice", models.Message{Kind: models.KindMatchRequest})
	require.NoError(t, err)

	c, m, err := s.RecordDecision(ctx, conv.ConversationID, models.DecisionReject, models.Message{Kind: models.KindMatchRejected}, true)
	require.NoError(t, err)
	assert.Equal(t, models.HandshakeRejected, c.RequestState)
	assert.False(t, c.MatchRequestOutstanding)
	assert.Equal(t, int64(2), m.Seq)

	_, _, err = s.RecordDecision(ctx, conv.ConversationID, models.DecisionApprove, models.Message{}, false)
	assert.ErrorIs(t, err, models.ErrInvalidState)
}

func collect(t *testing.T, ch <-chan models.Message, n int) []models.Message {
	t.Helper()
	var out []models.Message
	for len(out) < n {
		select {
		case m, ok := <-ch:
			require.True(t, ok, "subscription closed early")
			out = append(out, m)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out after %d of %d messages", len(out), n)
		}
	}
	return out
}

func TestSubscribe_SnapshotLiveAndRestart(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryConversationStore()
	conv, err := s.GetOrCreate(ctx, "alice", "bob")
	require.NoError(t, err)

	for _, text := range []string{"one", "two"} {
		_, err := s.AppendMessage(ctx, conv.ConversationID, userMessage("alice", text))
		require.NoError(t, err)
	}

	subCtx, cancel := context.WithCancel(ctx)
	stream, err := s.Subscribe(subCtx, conv.ConversationID, 0)
	require.NoError(t, err)
	first := collect(t, stream, 2)

	_, err = s.AppendMessage(ctx, conv.ConversationID, userMessage("bob", "three"))
	require.NoError(t, err)
	live := collect(t, stream, 1)
	assert.Equal(t, "three", live[0].Text)

	cancel()
	for range stream {
	}

	_, err = s.AppendMessage(ctx, conv.ConversationID, userMessage("bob", "four"))
	require.NoError(t, err)

	// Restarting from the last seen seq yields no gaps and no duplicates.
	restartCtx, cancelRestart := context.WithCancel(ctx)
	defer cancelRestart()
	resumed, err := s.Subscribe(restartCtx, conv.ConversationID, live[0].Seq)
	require.NoError(t, err)
	rest := collect(t, resumed, 1)
	assert.Equal(t, "four", rest[0].Text)
	assert.Equal(t, first[1].Seq+2, rest[0].Seq)

	_, err = s.Subscribe(ctx, "missing", 0)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestListForMember(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryConversationStore()
	for _, pair := range [][2]string{{"alice", "bob"}, {"carol", "alice"}, {"bob", "carol"}} {
		_, err := s.GetOrCreate(ctx, pair[0], pair[1])
		require.NoError(t, err)
	}

	convs, err := s.ListForMember(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, convs, 2)
	assert.Equal(t, "alice_bob", convs[0].ConversationID)
	assert.Equal(t, "alice_carol", convs[1].ConversationID)
}
