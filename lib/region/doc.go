// Package region describes how the keyspace is split into regions and where
// each region's leader lives.
//
// A Region covers a half open key range and is replicated as Peers on Stores.
// One peer is the leader and serves requests. Clients route every request with
// a Context, an immutable snapshot of (region, epoch, leader peer, store)
// taken from the metadata they currently believe in. When a storage node
// rejects that belief, the client reports it through Manager.OnRequestFail and
// a new Context has to be built from fresh metadata.
//
// StaticManager implements Manager over a Topology loaded from YAML. It is
// meant for fixed deployments and tests: it never asks a placement service
// and rotates leaders locally when failures are reported.
package region
