// Package client implements the region store client: the component that
// sends one KV request for one region to the leader of that region and
// reports how it went.
//
// A RegionStoreClient is bound to a single routing context (region id,
// epoch, leader peer, store address) and to one pooled connection. It never
// retries and never re-routes. What it does is classify every outcome so the
// caller can decide:
//
//   - RoutingError: the store rejected the routing (not leader, stale epoch,
//     key not in region, region not found, ...). The region manager has
//     already been told via OnRequestFail, exactly once per call. LeaderHint
//     returns the new leader when the store knows it.
//
//   - KeyError: the routing was fine but the key is locked or the store
//     refused the operation. The region manager is not notified.
//
//   - ConnectionError: the store could not be reached or the connection
//     broke while the request was in flight.
//
//   - TimeoutError: no response within the configured timeout, or the caller
//     cancelled the context.
//
//   - ProtocolDecodeError: the response (or a nested push down payload)
//     could not be decoded.
//
// KindOf maps any returned error to its ErrorKind.
//
// Every operation exists in two forms. The blocking form takes a context,
// the async form returns a future.Future that resolves exactly once.
//
// Key Components:
//
//   - Factory: creates clients that share a pool.Pool, a region.Manager and
//     a serializer. Create takes explicit region metadata, CreateForKey and
//     CreateForRegion resolve it through the manager first.
//
//   - NewDialer: adapts a transport constructor to a pool.Dialer.
//
// Usage Example:
//
//	cfg := common.DefaultClientConfig()
//	p := pool.New(cfg.PoolSize, client.NewDialer(cfg, tcp.NewTCPClientTransport))
//	defer p.Close()
//
//	f := client.NewFactory(cfg, p, manager, serializer.NewMsgpackSerializer())
//
//	c, err := f.CreateForKey(ctx, []byte("user/42"))
//	if err != nil {
//		return err
//	}
//	defer c.Close()
//
//	value, err := c.Get(ctx, []byte("user/42"), readVersion)
//	var routingErr *client.RoutingError
//	if errors.As(err, &routingErr) {
//		// metadata is refreshed, build a new client and try again
//	}
//
// Thread Safety:
//
//	A RegionStoreClient may be used from multiple goroutines. Close releases
//	the pooled connection without closing it, other clients keep using it.
package client
