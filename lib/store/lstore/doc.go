// Package lstore implements a local, in-memory store.IStore. Data is stored
// entirely in memory and is not persisted between process restarts.
//
// Implementation Details:
//
//   - Ordered Trees: the versioned and the raw keyspace each live in a
//     github.com/google/btree tree ordered by keyspace.Less, so scans walk
//     keys in the same order clients compare them.
//
//   - Versions: every key of the versioned keyspace keeps its committed
//     writes newest first. A read at version V returns the newest write with
//     a commit version <= V; a tombstone hides older writes.
//
//   - Write Index: writes without an explicit commit version get the next
//     value of an atomic counter. Explicit commit versions move the counter
//     forward, so both kinds of writes can be mixed.
//
//   - Locks: a lock with start version S blocks reads at versions >= S and is
//     reported as store.RetCKeyLocked.
//
// Thread Safety:
//
//	All operations are guarded by one RWMutex. Reads run in parallel, writes
//	are serialized. Returned slices are copies and can be kept by the caller.
package lstore
