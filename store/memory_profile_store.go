package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"skillswap_server/models"
)

// MemoryProfileStore keeps members in a map guarded by a mutex. Every write is appended to a
// change log that feeds approved-member subscriptions. The log only holds entries some subscriber
// has not read yet.
type MemoryProfileStore struct {
	mu      sync.RWMutex
	members map[string]models.Member
	changes []MemberEvent
	base    int         // absolute position of changes[0]
	cursors map[int]int // subscriber id -> next absolute position to read
	nextSub int
	wake    *broadcaster
	now     func() time.Time
}

// NewMemoryProfileStore creates an empty store.
func NewMemoryProfileStore() *MemoryProfileStore {
	return &MemoryProfileStore{
		members: make(map[string]models.Member),
		cursors: make(map[int]int),
		wake:    newBroadcaster(),
		now:     time.Now,
	}
}

func (s *MemoryProfileStore) Create(ctx context.Context, m models.Member) (models.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.members[m.MemberID]; exists {
		return models.Member{}, fmt.Errorf("member %q already exists: %w", m.MemberID, models.ErrInvalidState)
	}
	stored := models.FromDocument(m.Document())
	stored.Version = 1
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = s.now().UTC()
	}
	stored.UpdatedAt = stored.CreatedAt
	s.commit(stored)
	return stored.Clone(), nil
}

func (s *MemoryProfileStore) Get(ctx context.Context, memberID string) (models.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.members[memberID]
	if !ok {
		return models.Member{}, fmt.Errorf("member %q: %w", memberID, models.ErrNotFound)
	}
	return m.Clone(), nil
}

func (s *MemoryProfileStore) Set(ctx context.Context, memberID string, patch models.MemberPatch) (models.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.members[memberID]
	if !ok {
		return models.Member{}, fmt.Errorf("member %q: %w", memberID, models.ErrNotFound)
	}
	m = m.Clone()
	patch.Apply(&m)
	m.Version++
	m.UpdatedAt = s.now().UTC()
	s.commit(m)
	return m.Clone(), nil
}

func (s *MemoryProfileStore) Replace(ctx context.Context, m models.Member, expectedVersion int64) (models.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.members[m.MemberID]
	if !ok {
		return models.Member{}, fmt.Errorf("member %q: %w", m.MemberID, models.ErrNotFound)
	}
	if current.Version != expectedVersion {
		return models.Member{}, fmt.Errorf("member %q changed concurrently (version %d, expected %d): %w",
			m.MemberID, current.Version, expectedVersion, models.ErrInvalidState)
	}
	next := models.FromDocument(m.Document())
	next.Version = expectedVersion + 1
	next.UpdatedAt = s.now().UTC()
	s.commit(next)
	return next.Clone(), nil
}

func (s *MemoryProfileStore) AddPartner(ctx context.Context, ownerID, partnerID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.members[ownerID]
	if !ok {
		return false, fmt.Errorf("member %q: %w", ownerID, models.ErrNotFound)
	}
	if m.HasPartner(partnerID) {
		return false, nil
	}
	m = m.Clone()
	m.PartnerIDs = append(m.PartnerIDs, partnerID)
	m.MatchedCount++
	m.Version++
	m.UpdatedAt = s.now().UTC()
	s.commit(m)
	return true, nil
}

func (s *MemoryProfileStore) QueryApproved(ctx context.Context) ([]models.Member, error) {
	return s.filter(func(m models.Member) bool { return m.Approved }), nil
}

func (s *MemoryProfileStore) List(ctx context.Context) ([]models.Member, error) {
	return s.filter(func(models.Member) bool { return true }), nil
}

func (s *MemoryProfileStore) Delete(ctx context.Context, memberID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.members[memberID]
	if !ok {
		return fmt.Errorf("member %q: %w", memberID, models.ErrNotFound)
	}
	delete(s.members, memberID)
	s.recordLocked(MemberEvent{Member: m.Clone(), Removed: true})
	return nil
}

func (s *MemoryProfileStore) SubscribeApproved(ctx context.Context) (<-chan MemberEvent, error) {
	s.mu.Lock()
	snapshot := s.sortedLocked(func(m models.Member) bool { return m.Approved })
	id := s.nextSub
	s.nextSub++
	s.cursors[id] = s.base + len(s.changes)
	s.mu.Unlock()

	out := make(chan MemberEvent)
	wake, cancel := s.wake.subscribe()
	go func() {
		defer close(out)
		defer cancel()
		defer func() {
			s.mu.Lock()
			delete(s.cursors, id)
			s.compactLocked()
			s.mu.Unlock()
		}()

		for _, m := range snapshot {
			if !send(ctx, out, MemberEvent{Member: m, Snapshot: true}) {
				return
			}
		}
		for {
			s.mu.Lock()
			pending := append([]MemberEvent(nil), s.changes[s.cursors[id]-s.base:]...)
			s.cursors[id] = s.base + len(s.changes)
			s.compactLocked()
			s.mu.Unlock()

			for _, ev := range pending {
				// Members that lose approval leave the approved population.
				if !ev.Removed && !ev.Member.Approved {
					ev.Removed = true
				}
				if !send(ctx, out, ev) {
					return
				}
			}
			select {
			case <-ctx.Done():
				return
			case <-wake:
			}
		}
	}()
	return out, nil
}

func (s *MemoryProfileStore) commit(m models.Member) {
	s.members[m.MemberID] = m
	s.recordLocked(MemberEvent{Member: m.Clone()})
}

func (s *MemoryProfileStore) recordLocked(ev MemberEvent) {
	if len(s.cursors) == 0 {
		s.base++
		return
	}
	s.changes = append(s.changes, ev)
	s.wake.notify()
}

// compactLocked drops the entries every subscriber has read.
func (s *MemoryProfileStore) compactLocked() {
	low := s.base + len(s.changes)
	for _, c := range s.cursors {
		if c < low {
			low = c
		}
	}
	if drop := low - s.base; drop > 0 {
		s.changes = append([]MemberEvent(nil), s.changes[drop:]...)
		s.base = low
	}
}

func (s *MemoryProfileStore) filter(keep func(models.Member) bool) []models.Member {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedLocked(keep)
}

func (s *MemoryProfileStore) sortedLocked(keep func(models.Member) bool) []models.Member {
	out := make([]models.Member, 0, len(s.members))
	for _, m := range s.members {
		if keep(m) {
			out = append(out, m.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MemberID < out[j].MemberID })
	return out
}
