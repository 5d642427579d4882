package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"skillswap_server/models"
	"skillswap_server/store"
)

// MemberService handles registration and profile edits.
type MemberService struct {
	Profiles store.ProfileStore
	Log      *zap.Logger

	now func() time.Time
}

func NewMemberService(profiles store.ProfileStore, log *zap.Logger) *MemberService {
	if log == nil {
		log = zap.NewNop()
	}
	return &MemberService{Profiles: profiles, Log: log, now: time.Now}
}

// Register creates the member document on first sign-in with every default applied: active,
// not approved, nothing verified and no partners.
func (s *MemberService) Register(ctx context.Context, memberID, displayName string, possessed, wanted []string) (models.Member, error) {
	memberID = strings.TrimSpace(memberID)
	if memberID == "" {
		return models.Member{}, fmt.Errorf("member id is required: %w", models.ErrValidation)
	}
	m := models.NewMember(memberID, strings.TrimSpace(displayName), possessed, wanted, s.now().UTC())
	created, err := s.Profiles.Create(ctx, m)
	if err != nil {
		return models.Member{}, err
	}
	s.Log.Info("member registered", zap.String("member_id", memberID))
	return created, nil
}

func (s *MemberService) Get(ctx context.Context, memberID string) (models.Member, error) {
	return s.Profiles.Get(ctx, memberID)
}

// Update applies a partial edit. Members edit their own profile; reviewers may edit any.
func (s *MemberService) Update(ctx context.Context, actor models.Actor, memberID string, patch models.MemberPatch) (models.Member, error) {
	if actor.ID != memberID && !actor.IsReviewer() {
		return models.Member{}, fmt.Errorf("update member '%s': %w", memberID, models.ErrUnauthorized)
	}
	if patch.Empty() {
		return models.Member{}, fmt.Errorf("no profile fields to update: %w", models.ErrValidation)
	}
	updated, err := s.Profiles.Set(ctx, memberID, patch)
	if err != nil {
		return models.Member{}, err
	}
	s.Log.Info("member updated", zap.String("member_id", memberID), zap.String("actor_id", actor.ID))
	return updated, nil
}

// SetActive toggles whether the member is active.
func (s *MemberService) SetActive(ctx context.Context, actor models.Actor, memberID string, active bool) (models.Member, error) {
	return s.Update(ctx, actor, memberID, models.MemberPatch{Active: &active})
}

// Remove hard-deletes a member. Reviewer only.
func (s *MemberService) Remove(ctx context.Context, actor models.Actor, memberID string) error {
	if !actor.IsReviewer() {
		return fmt.Errorf("remove member '%s': %w", memberID, models.ErrUnauthorized)
	}
	if err := s.Profiles.Delete(ctx, memberID); err != nil {
		return err
	}
	s.Log.Info("member removed", zap.String("member_id", memberID), zap.String("reviewer_id", actor.ID))
	return nil
}
