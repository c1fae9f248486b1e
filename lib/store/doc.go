// Package store provides the storage engine interface of a regionKV storage
// node together with its error type.
//
// The package focuses on:
//   - A unified interface (IStore) over the versioned and the raw keyspace
//   - A code based error type so the RPC layer can tell lock conflicts from
//     internal failures without string matching
//
// Key Components:
//
//   - IStore Interface: MVCC reads at a snapshot version (Get, BatchGet, Scan),
//     versioned writes (Put, Delete), transaction locks (Lock, Unlock) and the
//     raw keyspace (RawGet, RawPut, RawDelete). Keys are ordered as defined by
//     the keyspace package.
//
//   - Error System: Error carries a RetCode and a message. Reads blocked by a
//     lock return RetCKeyLocked with the LockInfo attached, which storage nodes
//     turn into a key error for the client.
//
// Implementations:
//
//	- Local Store (lstore): an in-memory implementation on ordered B-trees.
//	  Available in the "github.com/ValentinKolb/regionKV/lib/store/lstore" package.
package store
