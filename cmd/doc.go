// Package cmd implements the command-line interface of rKV. It provides a
// hierarchical command structure for running storage nodes and for talking
// to them through the region store client.
//
// The package is organized into several subpackages:
//
//   - serve: Starts a storage node for one store of a topology file
//   - kv: Reads and writes through the region client (get, bget, scan,
//     count, raw-get, raw-put, raw-delete, perf)
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// Flags can also be set through environment variables of the form
// RKV_<FLAG> (e.g. RKV_TIMEOUT_MS=500). .env and .env.local are loaded first.
//
// The region client itself never retries. The kv commands do: after a routing
// error they take the leader hint (if any), re-resolve the region and reissue
// the request, at most --max-attempts times.
//
// See rkv -help for a list of all commands.
package cmd
