package services

import (
	"context"

	"go.uber.org/zap"

	"skillswap_server/models"
	"skillswap_server/store"
)

// MatchService finds matches for a stored member.
type MatchService struct {
	Profiles  store.ProfileStore
	Directory *Directory
	Log       *zap.Logger
}

// NewMatchService wires the service. directory is optional.
func NewMatchService(profiles store.ProfileStore, directory *Directory, log *zap.Logger) *MatchService {
	if log == nil {
		log = zap.NewNop()
	}
	return &MatchService{Profiles: profiles, Directory: directory, Log: log}
}

// FindMatchesFor loads the requester and returns its mutual matches among the approved members.
// Candidates come from the directory cache when it is ready, otherwise from the store.
func (s *MatchService) FindMatchesFor(ctx context.Context, memberID string, verifiedOnly bool) ([]models.Member, error) {
	requester, err := s.Profiles.Get(ctx, memberID)
	if err != nil {
		return nil, err
	}

	var candidates []models.Member
	if s.Directory != nil && s.Directory.Ready() {
		candidates = s.Directory.Approved()
	} else {
		candidates, err = s.Profiles.QueryApproved(ctx)
		if err != nil {
			return nil, err
		}
	}

	matches := Matcher{VerifiedOnly: verifiedOnly}.Find(requester, candidates)
	s.Log.Debug("matches computed",
		zap.String("member_id", memberID),
		zap.Bool("verified_only", verifiedOnly),
		zap.Int("candidates", len(candidates)),
		zap.Int("matches", len(matches)))
	return matches, nil
}
