package store

import (
	"context"
	"sync"

	"skillswap_server/models"
)

// MemoryAuditStore is an append-only in-memory audit log.
type MemoryAuditStore struct {
	mu      sync.RWMutex
	entries []models.ClaimAuditEntry
}

func NewMemoryAuditStore() *MemoryAuditStore {
	return &MemoryAuditStore{}
}

func (s *MemoryAuditStore) Append(ctx context.Context, entry models.ClaimAuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

func (s *MemoryAuditStore) List(ctx context.Context, memberID, skill string) ([]models.ClaimAuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	skill = models.NormalizeSkill(skill)
	var out []models.ClaimAuditEntry
	for _, e := range s.entries {
		if e.MemberID != memberID {
			continue
		}
		if skill != "" && e.Skill != skill {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}
