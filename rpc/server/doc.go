// Package server implements a storage node: the server side of the region
// client. A node owns one local store and hosts every region of the topology
// that has a peer on its store.
//
// Each request carries a routing context (region, epoch, peer). Before a
// request touches data the node checks, in this order:
//
//  1. the region is hosted here                 -> RegionNotFound
//  2. the addressed peer lives on this store     -> StoreNotMatch
//  3. the addressed peer is the leader           -> NotLeader (with leader hint)
//  4. the epoch matches the current epoch        -> EpochNotMatch
//  5. every key and range lies inside the region -> KeyNotInRegion
//
// The first failing check is answered with a region error. Requests that
// pass are executed by an adapter:
//
//   - IRPCServerAdapter: Interface for executing a validated request against
//     a store.IStore.
//
//   - NewKVServerAdapter: point reads, batch reads, scans (bounded by the
//     region end) and the raw keyspace. A lock on a read key is answered with
//     a key error.
//
//   - NewCoprocessorServerAdapter: push down requests, see package
//     rpc/coprocessor.
//
// TransferLeader, UpsertRegion and RemoveRegion change the hosted region view
// at runtime, which is how tests and operators simulate leader moves, splits
// and epoch changes.
//
// Usage Example:
//
//	topology, err := region.LoadTopology("topology.yaml")
//	if err != nil {
//	  log.Fatal(err)
//	}
//
//	config := common.ServerConfig{
//	  StoreID:   1,
//	  Transport: common.ServerTransportConfig{Endpoint: ":20160"},
//	}
//
//	s, err := server.NewRPCServer(config, tcp.NewTCPServerTransport(), serializer.NewMsgpackSerializer(), topology)
//	if err != nil {
//	  log.Fatal(err)
//	}
//	if err := s.Serve(); err != nil {
//	  log.Fatal(err)
//	}
//
// With MetricsEndpoint set, the node serves request counters in Prometheus
// text format on /metrics.
package server
