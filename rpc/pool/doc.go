// Package pool caches client transports per storage node address.
//
// Acquire hands out a Lease on the connection to an address. Connections are
// dialed lazily and shared: concurrent Acquire calls for an address that is
// not cached yet wait for a single dial (golang.org/x/sync/singleflight).
//
// The pool is bounded. When a dial would exceed the capacity, the connection
// inserted first is evicted. Evicting a connection that is still leased only
// removes it from the pool; it is closed when the last lease is released.
// Invalidate in contrast closes the connection at once.
//
// A cached connection that reports !IsHealthy() is treated as absent and
// replaced on the next Acquire. Transports never reconnect on their own, so
// this is the only recovery path after a broken connection.
//
// Counters (dials, dial errors, evictions, invalidations and the current
// size) are kept in a go-metrics registry, see Stats and Registry.
package pool
