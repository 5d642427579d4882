package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"skillswap_server/models"
	"skillswap_server/store"
)

func TestRegister_AppliesDefaults(t *testing.T) {
	ctx := context.Background()
	svc := NewMemberService(store.NewMemoryProfileStore(), zap.NewNop())

	m, err := svc.Register(ctx, "alice", " Alice ", []string{"Python", "python", " "}, []string{"Design"})
	require.NoError(t, err)
	assert.Equal(t, "Alice", m.DisplayName)
	assert.Equal(t, []string{"python"}, m.PossessedSkills)
	assert.True(t, m.Active)
	assert.False(t, m.Approved)
	assert.Empty(t, m.VerifiedSkills)
	assert.Empty(t, m.PartnerIDs)
	assert.Zero(t, m.MatchedCount)

	_, err = svc.Register(ctx, "alice", "Again", nil, nil)
	assert.ErrorIs(t, err, models.ErrInvalidState)

	_, err = svc.Register(ctx, " ", "Nobody", nil, nil)
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestUpdateAndSetActive(t *testing.T) {
	ctx := context.Background()
	svc := NewMemberService(store.NewMemoryProfileStore(), zap.NewNop())
	_, err := svc.Register(ctx, "alice", "Alice", nil, nil)
	require.NoError(t, err)

	name := "Alice B"
	m, err := svc.Update(ctx, memberActor("alice"), "alice", models.MemberPatch{
		DisplayName:  &name,
		WantedSkills: []string{"Go"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Alice B", m.DisplayName)
	assert.Equal(t, []string{"go"}, m.WantedSkills)

	_, err = svc.Update(ctx, memberActor("bob"), "alice", models.MemberPatch{DisplayName: &name})
	assert.ErrorIs(t, err, models.ErrUnauthorized)

	_, err = svc.Update(ctx, memberActor("alice"), "alice", models.MemberPatch{})
	assert.ErrorIs(t, err, models.ErrValidation)

	m, err = svc.SetActive(ctx, reviewer, "alice", false)
	require.NoError(t, err)
	assert.False(t, m.Active)
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	svc := NewMemberService(store.NewMemoryProfileStore(), zap.NewNop())
	_, err := svc.Register(ctx, "alice", "Alice", nil, nil)
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Remove(ctx, memberActor("alice"), "alice"), models.ErrUnauthorized)
	require.NoError(t, svc.Remove(ctx, reviewer, "alice"))

	_, err = svc.Get(ctx, "alice")
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.ErrorIs(t, svc.Remove(ctx, reviewer, "alice"), models.ErrNotFound)
}
