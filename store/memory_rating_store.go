package store

import (
	"context"
	"sort"
	"sync"

	"skillswap_server/models"
)

// MemoryRatingStore keeps ratings per member, one per rater.
type MemoryRatingStore struct {
	mu      sync.RWMutex
	ratings map[string]map[string]models.Rating
}

func NewMemoryRatingStore() *MemoryRatingStore {
	return &MemoryRatingStore{ratings: make(map[string]map[string]models.Rating)}
}

func (s *MemoryRatingStore) Put(ctx context.Context, r models.Rating) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byRater, ok := s.ratings[r.MemberID]
	if !ok {
		byRater = make(map[string]models.Rating)
		s.ratings[r.MemberID] = byRater
	}
	byRater[r.RatedBy] = r
	return nil
}

func (s *MemoryRatingStore) List(ctx context.Context, memberID string) ([]models.Rating, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Rating, 0, len(s.ratings[memberID]))
	for _, r := range s.ratings[memberID] {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RatedBy < out[j].RatedBy })
	return out, nil
}
