package region

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ValentinKolb/regionKV/lib/keyspace"
	"github.com/google/btree"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("region")

var (
	ErrRegionNotFound = errors.New("region: region not found")
	ErrStoreNotFound  = errors.New("region: store not found")
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// Manager is the authority on which peer leads which region.
type Manager interface {
	// OnRequestFail reports that a request for regionID sent to storeID came
	// back with a region error, so the cached routing must not be reused.
	OnRequestFail(regionID, storeID uint64)
	// ResolveLeader returns the current view of a region and its leader store.
	ResolveLeader(regionID uint64) (*Region, *Store, error)
	// LocateKey returns the region containing key and its leader store.
	LocateKey(key []byte) (*Region, *Store, error)
}

// --------------------------------------------------------------------------
// Static Manager
// --------------------------------------------------------------------------

type regionItem struct {
	region   *Region
	failures uint64
}

func regionLess(a, b *regionItem) bool {
	return keyspace.Less(a.region.Range.Start, b.region.Range.Start)
}

// StaticManager serves routing from a fixed Topology. Failures rotate the
// leader to the next peer on another store, which mimics a client-side region
// cache that has no placement driver to ask.
type StaticManager struct {
	mu      sync.RWMutex
	stores  map[uint64]Store
	byID    map[uint64]*regionItem
	byStart *btree.BTreeG[*regionItem]
}

// NewStaticManager indexes the regions of t.
func NewStaticManager(t *Topology) (*StaticManager, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	m := &StaticManager{
		stores:  make(map[uint64]Store, len(t.Stores)),
		byID:    make(map[uint64]*regionItem, len(t.Regions)),
		byStart: btree.NewG[*regionItem](16, regionLess),
	}
	for _, s := range t.Stores {
		m.stores[s.ID] = s
	}
	for _, r := range t.BuildRegions() {
		it := &regionItem{region: r}
		if prev, ok := m.byStart.ReplaceOrInsert(it); ok {
			return nil, fmt.Errorf("regions %d and %d start at the same key", prev.region.ID, r.ID)
		}
		m.byID[r.ID] = it
	}
	return m, nil
}

func (m *StaticManager) OnRequestFail(regionID, storeID uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	it, ok := m.byID[regionID]
	if !ok {
		return
	}
	it.failures++

	r := it.region
	if r.Leader == nil || r.Leader.StoreID != storeID || len(r.Peers) < 2 {
		return
	}

	// switch to the next peer not hosted on the failed store
	start := 0
	for i, p := range r.Peers {
		if p.ID == r.Leader.ID {
			start = i
			break
		}
	}
	for i := 1; i < len(r.Peers); i++ {
		next := r.Peers[(start+i)%len(r.Peers)]
		if next.StoreID != storeID {
			Logger.Debugf("region %d: leader %d on store %d failed, trying peer %d on store %d",
				regionID, r.Leader.ID, storeID, next.ID, next.StoreID)
			r.Leader = &next
			return
		}
	}
}

func (m *StaticManager) ResolveLeader(regionID uint64) (*Region, *Store, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	it, ok := m.byID[regionID]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %d", ErrRegionNotFound, regionID)
	}
	return m.resolve(it.region)
}

func (m *StaticManager) LocateKey(key []byte) (*Region, *Store, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var found *regionItem
	pivot := &regionItem{region: &Region{Range: keyspace.Range{Start: key}}}
	m.byStart.DescendLessOrEqual(pivot, func(it *regionItem) bool {
		found = it
		return false
	})
	if found == nil || !found.region.ContainsKey(key) {
		return nil, nil, fmt.Errorf("%w: no region contains key %q", ErrRegionNotFound, key)
	}
	return m.resolve(found.region)
}

// UpdateLeader records a leader hint, typically taken from a not-leader error.
func (m *StaticManager) UpdateLeader(regionID, peerID uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	it, ok := m.byID[regionID]
	if !ok {
		return false
	}
	p, ok := it.region.Peer(peerID)
	if !ok {
		return false
	}
	it.region.Leader = &p
	return true
}

// Failures returns how often OnRequestFail was called for regionID.
func (m *StaticManager) Failures(regionID uint64) uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if it, ok := m.byID[regionID]; ok {
		return it.failures
	}
	return 0
}

// resolve must be called with m.mu held.
func (m *StaticManager) resolve(r *Region) (*Region, *Store, error) {
	if r.Leader == nil {
		return nil, nil, fmt.Errorf("%w: region %d", ErrNoLeader, r.ID)
	}
	s, ok := m.stores[r.Leader.StoreID]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %d", ErrStoreNotFound, r.Leader.StoreID)
	}
	return r.Clone(), &s, nil
}
