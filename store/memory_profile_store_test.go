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

func newMember(id string, approved bool) models.Member {
	m := models.NewMember(id, "Name "+id, []string{"Go"}, []string{"Design"}, time.Unix(0, 0))
	m.Approved = approved
	return m
}

func TestMemoryProfile_CreateGetSet(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryProfileStore()

	created, err := s.Create(ctx, newMember("alice", false))
	require.NoError(t, err)
	assert.Equal(t, int64(1), created.Version)

	_, err = s.Create(ctx, newMember("alice", false))
	assert.ErrorIs(t, err, models.ErrInvalidState)

	active := false
	updated, err := s.Set(ctx, "alice", models.MemberPatch{Active: &active, PossessedSkills: []string{" Rust ", "rust"}})
	require.NoError(t, err)
	assert.False(t, updated.Active)
	assert.Equal(t, []string{"rust"}, updated.PossessedSkills)
	assert.Equal(t, int64(2), updated.Version)

	_, err = s.Set(ctx, "ghost", models.MemberPatch{Active: &active})
	assert.ErrorIs(t, err, models.ErrNotFound)

	// Returned members are copies.
	got, err := s.Get(ctx, "alice")
	require.NoError(t, err)
	got.PossessedSkills[0] = "mutated"
	again, _ := s.Get(ctx, "alice")
	assert.Equal(t, "rust", again.PossessedSkills[0])
}

func TestMemoryProfile_ReplaceIsConditional(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryProfileStore()
	m, err := s.Create(ctx, newMember("alice", false))
	require.NoError(t, err)

	m.Approved = true
	saved, err := s.Replace(ctx, m, m.Version)
	require.NoError(t, err)
	assert.Equal(t, m.Version+1, saved.Version)

	m.DisplayName = "stale"
	_, err = s.Replace(ctx, m, m.Version)
	assert.ErrorIs(t, err, models.ErrInvalidState)

	current, _ := s.Get(ctx, "alice")
	assert.Equal(t, "Name alice", current.DisplayName)

	_, err = s.Replace(ctx, newMember("ghost", false), 1)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestMemoryProfile_AddPartnerIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryProfileStore()
	_, err := s.Create(ctx, newMember("alice", true))
	require.NoError(t, err)

	var wg sync.WaitGroup
	added := make([]bool, 5)
	for i := range added {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			added[i], _ = s.AddPartner(ctx, "alice", "bob")
		}(i)
	}
	wg.Wait()

	count := 0
	for _, a := range added {
		if a {
			count++
		}
	}
	assert.Equal(t, 1, count)

	m, _ := s.Get(ctx, "alice")
	assert.Equal(t, 1, m.MatchedCount)
	assert.Equal(t, []string{"bob"}, m.PartnerIDs)

	_, err = s.AddPartner(ctx, "ghost", "bob")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestMemoryProfile_QueryApprovedSorted(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryProfileStore()
	for _, m := range []models.Member{newMember("carol", true), newMember("alice", true), newMember("bob", false)} {
		_, err := s.Create(ctx, m)
		require.NoError(t, err)
	}

	approved, err := s.QueryApproved(ctx)
	require.NoError(t, err)
	require.Len(t, approved, 2)
	assert.Equal(t, "alice", approved[0].MemberID)
	assert.Equal(t, "carol", approved[1].MemberID)

	all, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func nextEvent(t *testing.T, ch <-chan MemberEvent) MemberEvent {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "feed closed")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for member event")
		return MemberEvent{}
	}
}

func TestMemoryProfile_SubscribeApproved(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := NewMemoryProfileStore()
	_, err := s.Create(ctx, newMember("alice", true))
	require.NoError(t, err)
	bob, err := s.Create(ctx, newMember("bob", false))
	require.NoError(t, err)

	feed, err := s.SubscribeApproved(ctx)
	require.NoError(t, err)

	ev := nextEvent(t, feed)
	assert.True(t, ev.Snapshot)
	assert.Equal(t, "alice", ev.Member.MemberID)

	bob.Approved = true
	_, err = s.Replace(ctx, bob, bob.Version)
	require.NoError(t, err)
	ev = nextEvent(t, feed)
	assert.False(t, ev.Snapshot)
	assert.False(t, ev.Removed)
	assert.Equal(t, "bob", ev.Member.MemberID)

	require.NoError(t, s.Delete(ctx, "alice"))
	ev = nextEvent(t, feed)
	assert.True(t, ev.Removed)
	assert.Equal(t, "alice", ev.Member.MemberID)

	cancel()
	for range feed {
	}
}

func (s *MemoryProfileStore) pendingChanges() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.changes)
}

func TestMemoryProfile_ChangeLogIsTrimmed(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := NewMemoryProfileStore()

	// Without subscribers nothing is retained.
	for _, id := range []string{"alice", "bob"} {
		_, err := s.Create(ctx, newMember(id, true))
		require.NoError(t, err)
	}
	assert.Zero(t, s.pendingChanges())

	feed, err := s.SubscribeApproved(ctx)
	require.NoError(t, err)
	nextEvent(t, feed)
	nextEvent(t, feed)

	for i := 0; i < 3; i++ {
		_, err := s.Set(ctx, "alice", models.MemberPatch{WantedSkills: []string{"go"}})
		require.NoError(t, err)
		ev := nextEvent(t, feed)
		assert.Equal(t, "alice", ev.Member.MemberID)
	}
	// The reader consumed every entry before handing out the last event.
	assert.Zero(t, s.pendingChanges())

	_, err = s.Set(ctx, "bob", models.MemberPatch{WantedSkills: []string{"rust"}})
	require.NoError(t, err)
	assert.Equal(t, "bob", nextEvent(t, feed).Member.MemberID)

	cancel()
	for range feed {
	}
	require.Eventually(t, func() bool {
		s.mu.RLock()
		defer s.mu.RUnlock()
		return len(s.cursors) == 0 && len(s.changes) == 0
	}, time.Second, 5*time.Millisecond)
}
