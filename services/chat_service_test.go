package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"skillswap_server/models"
	"skillswap_server/store"
)

func newChat(t *testing.T) (*ChatService, *store.MemoryProfileStore, *recordingNotifier) {
	t.Helper()
	profiles := store.NewMemoryProfileStore()
	seedMembers(t, profiles,
		member("alice", true, nil, nil),
		member("bob", true, nil, nil),
		member("carol", true, nil, nil),
	)
	notifier := &recordingNotifier{}
	return NewChatService(store.NewMemoryConversationStore(), profiles, notifier, 2, zap.NewNop()), profiles, notifier
}

func TestConnect(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newChat(t)

	ab, err := svc.Connect(ctx, "alice", "bob")
	require.NoError(t, err)
	ba, err := svc.Connect(ctx, "bob", "alice")
	require.NoError(t, err)
	assert.Equal(t, ab.ConversationID, ba.ConversationID)
	assert.Equal(t, "alice_bob", ab.ConversationID)

	_, err = svc.Connect(ctx, "alice", "alice")
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = svc.Connect(ctx, "alice", "ghost")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestSendMessage(t *testing.T) {
	ctx := context.Background()
	svc, _, notifier := newChat(t)
	conv, err := svc.Connect(ctx, "alice", "bob")
	require.NoError(t, err)

	_, err = svc.SendMessage(ctx, conv.ConversationID, "alice", "   ")
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = svc.SendMessage(ctx, conv.ConversationID, "carol", "hi")
	assert.ErrorIs(t, err, models.ErrUnauthorized)

	first, err := svc.SendMessage(ctx, conv.ConversationID, "alice", " hello ")
	require.NoError(t, err)
	second, err := svc.SendMessage(ctx, conv.ConversationID, "bob", "hey")
	require.NoError(t, err)

	assert.Equal(t, "hello", first.Text)
	assert.Equal(t, models.KindUser, first.Kind)
	assert.False(t, first.System)
	assert.Equal(t, first.Seq+1, second.Seq)
	assert.False(t, second.Timestamp.Before(first.Timestamp))
	assert.Len(t, notifier.messages(), 2)

	msgs, err := svc.Messages(ctx, conv.ConversationID, "bob", first.Seq, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "hey", msgs[0].Text)

	_, err = svc.Messages(ctx, conv.ConversationID, "carol", 0, 0)
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestSubscribe_ReplaysThenFollows(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc, _, _ := newChat(t)
	conv, err := svc.Connect(ctx, "alice", "bob")
	require.NoError(t, err)

	_, err = svc.SendMessage(ctx, conv.ConversationID, "alice", "one")
	require.NoError(t, err)

	stream, err := svc.Subscribe(ctx, conv.ConversationID, "bob", 0)
	require.NoError(t, err)

	_, err = svc.SendMessage(ctx, conv.ConversationID, "bob", "two")
	require.NoError(t, err)

	var got []string
	for len(got) < 2 {
		select {
		case msg := <-stream:
			got = append(got, msg.Text)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for messages")
		}
	}
	assert.Equal(t, []string{"one", "two"}, got)

	cancel()
	for range stream {
	}
}

func TestConversations_Summaries(t *testing.T) {
	ctx := context.Background()
	svc, profiles, _ := newChat(t)

	ab, err := svc.Connect(ctx, "alice", "bob")
	require.NoError(t, err)
	_, err = svc.Connect(ctx, "alice", "carol")
	require.NoError(t, err)
	_, err = svc.SendMessage(ctx, ab.ConversationID, "bob", "latest")
	require.NoError(t, err)

	for _, partner := range []string{"alice", "carol"} {
		_, err := profiles.AddPartner(ctx, "bob", partner)
		require.NoError(t, err)
	}

	list, err := svc.ListConversations(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, list, 2)

	assert.Equal(t, "bob", list[0].PartnerID)
	assert.Equal(t, "Name bob", list[0].PartnerName)
	assert.Equal(t, "latest", list[0].LastMessage)
	assert.True(t, list[0].PartnerFullyBooked)

	assert.Equal(t, "carol", list[1].PartnerID)
	assert.Equal(t, models.NoMessagesYet, list[1].LastMessage)
	assert.False(t, list[1].PartnerFullyBooked)
}

func TestConversations_MissingPartner(t *testing.T) {
	ctx := context.Background()
	svc, profiles, _ := newChat(t)

	_, err := svc.Connect(ctx, "alice", "bob")
	require.NoError(t, err)
	require.NoError(t, profiles.Delete(ctx, "bob"))

	list, err := svc.ListConversations(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Unknown", list[0].PartnerName)
}
