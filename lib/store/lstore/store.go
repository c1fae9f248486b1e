package lstore

import (
	"sync"
	"sync/atomic"

	"github.com/ValentinKolb/regionKV/lib/keyspace"
	"github.com/ValentinKolb/regionKV/lib/store"
	"github.com/google/btree"
)

const treeDegree = 32

// mvccVersion is one committed write of a key.
type mvccVersion struct {
	commit  uint64
	value   []byte
	deleted bool
}

// mvccItem holds all versions of a key, newest first.
type mvccItem struct {
	key      []byte
	versions []mvccVersion
}

type rawItem struct {
	key   []byte
	value []byte
}

type storeImpl struct {
	mu    sync.RWMutex
	mvcc  *btree.BTreeG[*mvccItem]
	raw   *btree.BTreeG[*rawItem]
	locks map[string]store.LockInfo
	index atomic.Uint64
}

// NewLocalStore creates a new in-memory store.
func NewLocalStore() store.IStore {
	return &storeImpl{
		mvcc: btree.NewG[*mvccItem](treeDegree, func(a, b *mvccItem) bool {
			return keyspace.Less(a.key, b.key)
		}),
		raw: btree.NewG[*rawItem](treeDegree, func(a, b *rawItem) bool {
			return keyspace.Less(a.key, b.key)
		}),
		locks: make(map[string]store.LockInfo),
	}
}

// nextIndex returns the commit version for writes that did not bring one and
// keeps the counter ahead of every explicit commit version.
func (s *storeImpl) nextIndex(explicit uint64) uint64 {
	if explicit == 0 {
		return s.index.Add(1)
	}
	for {
		cur := s.index.Load()
		if explicit <= cur || s.index.CompareAndSwap(cur, explicit) {
			return explicit
		}
	}
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append(make([]byte, 0, len(b)), b...)
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Get(key []byte, version uint64) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkLock(key, version); err != nil {
		return nil, false, err
	}
	item, ok := s.mvcc.Get(&mvccItem{key: key})
	if !ok {
		return nil, false, nil
	}
	v, ok := visible(item, version)
	if !ok {
		return nil, false, nil
	}
	return clone(v), true, nil
}

func (s *storeImpl) BatchGet(keys [][]byte, version uint64) ([]keyspace.Pair, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pairs := make([]keyspace.Pair, 0, len(keys))
	for _, key := range keys {
		if err := s.checkLock(key, version); err != nil {
			return nil, err
		}
		item, ok := s.mvcc.Get(&mvccItem{key: key})
		if !ok {
			continue
		}
		if v, ok := visible(item, version); ok {
			pairs = append(pairs, keyspace.Pair{Key: clone(key), Value: clone(v)})
		}
	}
	return pairs, nil
}

func (s *storeImpl) Scan(r keyspace.Range, version uint64, keyOnly bool, limit int) ([]keyspace.Pair, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		pairs []keyspace.Pair
		err   error
	)
	s.mvcc.AscendGreaterOrEqual(&mvccItem{key: r.Start}, func(item *mvccItem) bool {
		if len(r.End) > 0 && keyspace.CompareBytes(item.key, r.End) >= 0 {
			return false
		}
		if err = s.checkLock(item.key, version); err != nil {
			return false
		}
		v, ok := visible(item, version)
		if !ok {
			return true
		}
		pair := keyspace.Pair{Key: clone(item.key)}
		if !keyOnly {
			pair.Value = clone(v)
		}
		pairs = append(pairs, pair)
		return limit <= 0 || len(pairs) < limit
	})
	if err != nil {
		return nil, err
	}
	return pairs, nil
}

func (s *storeImpl) Put(key, value []byte, commitVersion uint64) error {
	return s.write(key, mvccVersion{value: clone(value)}, commitVersion)
}

func (s *storeImpl) Delete(key []byte, commitVersion uint64) error {
	return s.write(key, mvccVersion{deleted: true}, commitVersion)
}

func (s *storeImpl) Lock(key, primary []byte, startVersion, ttl uint64) error {
	if len(key) == 0 {
		return store.NewError(store.RetCInvalidOperation, "cannot lock the empty key")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if cur, ok := s.locks[string(key)]; ok && cur.LockVersion != startVersion {
		return store.NewLockedError(cur)
	}
	s.locks[string(key)] = store.LockInfo{
		Key:         clone(key),
		Primary:     clone(primary),
		LockVersion: startVersion,
		TTL:         ttl,
	}
	return nil
}

func (s *storeImpl) Unlock(key []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.locks, string(key))
	return nil
}

func (s *storeImpl) RawGet(key []byte) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.raw.Get(&rawItem{key: key})
	if !ok {
		return nil, false, nil
	}
	return clone(item.value), true, nil
}

func (s *storeImpl) RawPut(key, value []byte) error {
	if len(key) == 0 {
		return store.NewError(store.RetCInvalidOperation, "raw key must not be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.raw.ReplaceOrInsert(&rawItem{key: clone(key), value: clone(value)})
	return nil
}

func (s *storeImpl) RawDelete(key []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.raw.Delete(&rawItem{key: key})
	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func (s *storeImpl) write(key []byte, v mvccVersion, commitVersion uint64) error {
	if len(key) == 0 {
		return store.NewError(store.RetCInvalidOperation, "key must not be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	v.commit = s.nextIndex(commitVersion)
	item, ok := s.mvcc.Get(&mvccItem{key: key})
	if !ok {
		item = &mvccItem{key: clone(key)}
		s.mvcc.ReplaceOrInsert(item)
	}

	// keep versions sorted newest first, a rewrite of the same version replaces it
	i := 0
	for i < len(item.versions) && item.versions[i].commit > v.commit {
		i++
	}
	if i < len(item.versions) && item.versions[i].commit == v.commit {
		item.versions[i] = v
		return nil
	}
	item.versions = append(item.versions, mvccVersion{})
	copy(item.versions[i+1:], item.versions[i:])
	item.versions[i] = v
	return nil
}

// checkLock must be called with s.mu held.
func (s *storeImpl) checkLock(key []byte, version uint64) error {
	lock, ok := s.locks[string(key)]
	if ok && lock.LockVersion <= version {
		return store.NewLockedError(lock)
	}
	return nil
}

// visible returns the newest value committed at or before version.
func visible(item *mvccItem, version uint64) ([]byte, bool) {
	for _, v := range item.versions {
		if v.commit > version {
			continue
		}
		if v.deleted {
			return nil, false
		}
		if v.value == nil {
			return []byte{}, true
		}
		return v.value, true
	}
	return nil, false
}
