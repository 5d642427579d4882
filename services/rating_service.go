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

// RatingService lets members score the partners they were matched with.
type RatingService struct {
	Ratings  store.RatingStore
	Profiles store.ProfileStore
	Log      *zap.Logger

	now func() time.Time
}

func NewRatingService(ratings store.RatingStore, profiles store.ProfileStore, log *zap.Logger) *RatingService {
	if log == nil {
		log = zap.NewNop()
	}
	return &RatingService{Ratings: ratings, Profiles: profiles, Log: log, now: time.Now}
}

// Rate records the actor's score for partnerID, replacing any earlier score. Only a member who
// has partnerID in their partner list may rate, and only with 1 to 5 stars.
func (s *RatingService) Rate(ctx context.Context, actor models.Actor, partnerID string, stars int) (models.Rating, error) {
	partnerID = strings.TrimSpace(partnerID)
	if partnerID == "" || partnerID == actor.ID {
		return models.Rating{}, fmt.Errorf("rate '%s': a partner other than yourself is required: %w", partnerID, models.ErrValidation)
	}
	if stars < models.MinStars || stars > models.MaxStars {
		return models.Rating{}, fmt.Errorf("rating must be between %d and %d stars, got %d: %w",
			models.MinStars, models.MaxStars, stars, models.ErrValidation)
	}
	rater, err := s.Profiles.Get(ctx, actor.ID)
	if err != nil {
		return models.Rating{}, err
	}
	if !rater.HasPartner(partnerID) {
		return models.Rating{}, fmt.Errorf("'%s' is not a partner of '%s': %w", partnerID, actor.ID, models.ErrUnauthorized)
	}

	r := models.Rating{MemberID: partnerID, RatedBy: actor.ID, Stars: stars, At: s.now().UTC()}
	if err := s.Ratings.Put(ctx, r); err != nil {
		return models.Rating{}, err
	}
	s.Log.Info("partner rated",
		zap.String("member_id", partnerID),
		zap.String("rated_by", actor.ID),
		zap.Int("stars", stars))
	return r, nil
}

// Summary returns the average and count of a member's ratings.
func (s *RatingService) Summary(ctx context.Context, memberID string) (models.RatingSummary, error) {
	if _, err := s.Profiles.Get(ctx, memberID); err != nil {
		return models.RatingSummary{}, err
	}
	ratings, err := s.Ratings.List(ctx, memberID)
	if err != nil {
		return models.RatingSummary{}, err
	}
	return models.Summarize(memberID, ratings), nil
}
