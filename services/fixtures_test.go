package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"skillswap_server/models"
	"skillswap_server/store"
)

var reviewer = models.Actor{ID: "admin", Role: models.RoleReviewer}

func memberActor(id string) models.Actor {
	return models.Actor{ID: id, Role: models.RoleMember}
}

func member(id string, approved bool, possessed, wanted []string) models.Member {
	m := models.NewMember(id, "Name "+id, possessed, wanted, testTime)
	m.Approved = approved
	return m
}

func seedMembers(t *testing.T, profiles store.ProfileStore, members ...models.Member) {
	t.Helper()
	for _, m := range members {
		_, err := profiles.Create(context.Background(), m)
		require.NoError(t, err)
	}
}

// recordingNotifier collects pushed messages.
type recordingNotifier struct {
	mu   sync.Mutex
	msgs []models.Message
	err  error
}

func (n *recordingNotifier) NotifyMessage(_ context.Context, msg models.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, msg)
	return n.err
}

func (n *recordingNotifier) messages() []models.Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]models.Message(nil), n.msgs...)
}

// flakyProfiles fails AddPartner for one owner until healed.
type flakyProfiles struct {
	store.ProfileStore
	mu       sync.Mutex
	failFor  string
	failWith error
}

func (f *flakyProfiles) AddPartner(ctx context.Context, ownerID, partnerID string) (bool, error) {
	f.mu.Lock()
	fail := f.failFor == ownerID
	err := f.failWith
	f.mu.Unlock()
	if fail {
		return false, err
	}
	return f.ProfileStore.AddPartner(ctx, ownerID, partnerID)
}

func (f *flakyProfiles) heal() {
	f.mu.Lock()
	f.failFor = ""
	f.mu.Unlock()
}

// steppingClock advances one second per reading.
type steppingClock struct {
	mu  sync.Mutex
	now time.Time
}

func newSteppingClock() *steppingClock { return &steppingClock{now: testTime} }

func (c *steppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}
