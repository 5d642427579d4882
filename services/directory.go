package services

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"skillswap_server/models"
	"skillswap_server/store"
)

// Directory is a read-through cache of the approved population. It is primed from QueryApproved
// and then kept current from SubscribeApproved. Updates are applied by version, so a stale
// snapshot entry never overwrites a newer one. Removals always apply, whatever version they carry.
type Directory struct {
	Log *zap.Logger

	mu      sync.RWMutex
	members map[string]models.Member
	// gone holds the highest version known at removal; older updates cannot bring a member back.
	gone  map[string]int64
	ready bool
}

func NewDirectory(log *zap.Logger) *Directory {
	if log == nil {
		log = zap.NewNop()
	}
	return &Directory{Log: log, members: map[string]models.Member{}, gone: map[string]int64{}}
}

// Run primes the cache and follows the feed until ctx is cancelled or the feed closes.
func (d *Directory) Run(ctx context.Context, profiles store.ProfileStore) error {
	events, err := profiles.SubscribeApproved(ctx)
	if err != nil {
		return err
	}
	approved, err := profiles.QueryApproved(ctx)
	if err != nil {
		return err
	}
	for _, m := range approved {
		d.Apply(store.MemberEvent{Member: m, Snapshot: true})
	}
	d.mu.Lock()
	d.ready = true
	d.mu.Unlock()
	d.Log.Info("directory primed", zap.Int("members", len(approved)))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				d.mu.Lock()
				d.ready = false
				d.mu.Unlock()
				return ctx.Err()
			}
			d.Apply(ev)
		}
	}
}

// Apply folds one event into the cache. Removals and unapproved members are dropped whatever
// their version; approved updates older than the cached or removed version are ignored.
func (d *Directory) Apply(ev store.MemberEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()

	id := ev.Member.MemberID
	cached, ok := d.members[id]
	if ev.Removed || !ev.Member.Approved {
		last := ev.Member.Version
		if ok && cached.Version > last {
			last = cached.Version
		}
		if prev, seen := d.gone[id]; !seen || last > prev {
			d.gone[id] = last
		}
		delete(d.members, id)
		return
	}
	if ok && cached.Version > ev.Member.Version {
		return
	}
	if removedAt, seen := d.gone[id]; seen {
		if ev.Member.Version < removedAt {
			return
		}
		delete(d.gone, id)
	}
	d.members[id] = ev.Member.Clone()
}

// Ready reports whether the cache has been primed and is still following the feed.
func (d *Directory) Ready() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.ready
}

// Get returns the cached member.
func (d *Directory) Get(memberID string) (models.Member, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	m, ok := d.members[memberID]
	if !ok {
		return models.Member{}, false
	}
	return m.Clone(), true
}

// Approved returns the cached population ordered by member id.
func (d *Directory) Approved() []models.Member {
	d.mu.RLock()
	out := make([]models.Member, 0, len(d.members))
	for _, m := range d.members {
		out = append(out, m.Clone())
	}
	d.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].MemberID < out[j].MemberID })
	return out
}
