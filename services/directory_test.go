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

func TestDirectory_ApplyIgnoresStaleVersions(t *testing.T) {
	d := NewDirectory(zap.NewNop())

	newer := member("alice", true, []string{"Go"}, nil)
	newer.Version = 3
	older := member("alice", true, []string{"Python"}, nil)
	older.Version = 2

	d.Apply(store.MemberEvent{Member: newer})
	d.Apply(store.MemberEvent{Member: older, Snapshot: true})

	got, ok := d.Get("alice")
	require.True(t, ok)
	assert.Equal(t, []string{"go"}, got.PossessedSkills)

}

func TestDirectory_RemovalWithOlderVersionStillRemoves(t *testing.T) {
	d := NewDirectory(zap.NewNop())

	primed := member("bob", true, []string{"Go"}, []string{"Rust"})
	primed.Version = 2
	polled := primed
	polled.Version = 1

	d.Apply(store.MemberEvent{Member: primed, Snapshot: true})
	d.Apply(store.MemberEvent{Member: polled, Removed: true})

	_, ok := d.Get("bob")
	assert.False(t, ok)
	assert.Empty(t, d.Approved())

	// A late update no newer than the primed copy does not resurrect the member.
	d.Apply(store.MemberEvent{Member: primed})
	_, ok = d.Get("bob")
	assert.True(t, ok, "same version as the removed copy is a real re-approval")

	d.Apply(store.MemberEvent{Member: primed, Removed: true})
	d.Apply(store.MemberEvent{Member: polled})
	_, ok = d.Get("bob")
	assert.False(t, ok, "older update after removal is ignored")

	reapproved := primed
	reapproved.Version = 3
	d.Apply(store.MemberEvent{Member: reapproved})
	_, ok = d.Get("bob")
	assert.True(t, ok)
}

func TestDirectory_UnapprovedUpdateRemovesRegardlessOfVersion(t *testing.T) {
	d := NewDirectory(zap.NewNop())

	approved := member("bob", true, []string{"Go"}, nil)
	approved.Version = 5
	d.Apply(store.MemberEvent{Member: approved})

	unapproved := member("bob", false, []string{"Go"}, nil)
	unapproved.Version = 4
	d.Apply(store.MemberEvent{Member: unapproved})

	_, ok := d.Get("bob")
	assert.False(t, ok)
}

func TestDirectory_FollowsStore(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	profiles := store.NewMemoryProfileStore()
	seedMembers(t, profiles,
		member("bob", true, nil, nil),
		member("alice", true, nil, nil),
		member("carol", false, nil, nil),
	)

	d := NewDirectory(zap.NewNop())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx, profiles) }()

	require.Eventually(t, d.Ready, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"alice", "bob"}, ids(d.Approved()))

	carol, err := profiles.Get(ctx, "carol")
	require.NoError(t, err)
	carol.Approved = true
	_, err = profiles.Replace(ctx, carol, carol.Version)
	require.NoError(t, err)
	require.NoError(t, profiles.Delete(ctx, "bob"))

	require.Eventually(t, func() bool {
		got := ids(d.Approved())
		return len(got) == 2 && got[0] == "alice" && got[1] == "carol"
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestMatchService_FindMatchesFor(t *testing.T) {
	ctx := context.Background()
	profiles := store.NewMemoryProfileStore()
	verified := member("carol", true, []string{"Design"}, []string{"Python"})
	verified.VerifiedSkills["design"] = true
	requester := member("alice", true, []string{"Python"}, []string{"Design"})
	requester.VerifiedSkills["python"] = true
	seedMembers(t, profiles,
		requester,
		member("bob", true, []string{"Design"}, []string{"Python"}),
		verified,
		member("dave", false, []string{"Design"}, []string{"Python"}),
	)

	svc := NewMatchService(profiles, nil, zap.NewNop())
	matches, err := svc.FindMatchesFor(ctx, "alice", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"bob", "carol"}, ids(matches))

	matches, err = svc.FindMatchesFor(ctx, "alice", true)
	require.NoError(t, err)
	assert.Equal(t, []string{"carol"}, ids(matches))

	_, err = svc.FindMatchesFor(ctx, "ghost", false)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestMatchService_UsesReadyDirectory(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	profiles := store.NewMemoryProfileStore()
	seedMembers(t, profiles,
		member("alice", true, []string{"Python"}, []string{"Design"}),
		member("bob", true, []string{"Design"}, []string{"Python"}),
	)
	d := NewDirectory(zap.NewNop())
	go func() { _ = d.Run(ctx, profiles) }()
	require.Eventually(t, d.Ready, 2*time.Second, 10*time.Millisecond)

	svc := NewMatchService(profiles, d, zap.NewNop())
	matches, err := svc.FindMatchesFor(ctx, "alice", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, ids(matches))
}
