package client

import (
	"context"

	"github.com/ValentinKolb/regionKV/lib/region"
	"github.com/ValentinKolb/regionKV/rpc/common"
	"github.com/ValentinKolb/regionKV/rpc/pool"
	"github.com/ValentinKolb/regionKV/rpc/serializer"
	"github.com/ValentinKolb/regionKV/rpc/transport"
)

// Factory creates RegionStoreClients that share one connection pool.
type Factory struct {
	config     common.ClientConfig
	pool       *pool.Pool
	manager    region.Manager
	serializer serializer.IRPCSerializer
}

// NewFactory creates a client factory. The pool, the region manager and the
// serializer are shared by every client it creates.
func NewFactory(
	config common.ClientConfig,
	p *pool.Pool,
	m region.Manager,
	s serializer.IRPCSerializer,
) *Factory {
	if config.ScanBatchSize <= 0 {
		config.ScanBatchSize = common.DefaultScanBatchSize
	}
	return &Factory{
		config:     config,
		pool:       p,
		manager:    m,
		serializer: s,
	}
}

// Create returns a client for the leader of r, which lives on store s.
// A region without id or leader fails at once. A failure to reach the store
// is a ConnectionError.
func (f *Factory) Create(ctx context.Context, r *region.Region, s *region.Store) (*RegionStoreClient, error) {
	rctx, err := region.NewContext(r, s)
	if err != nil {
		return nil, err
	}

	lease, err := f.pool.Acquire(ctx, rctx.Address())
	if err != nil {
		return nil, &ConnectionError{Addr: rctx.Address(), Err: err}
	}

	Logger.Debugf("Created client for %s", rctx)
	return &RegionStoreClient{
		ctx:           rctx,
		reqCtx:        common.NewRequestContext(rctx),
		lease:         lease,
		conn:          lease.Conn(),
		manager:       f.manager,
		serializer:    f.serializer,
		timeout:       f.config.Timeout(),
		scanBatchSize: f.config.ScanBatchSize,
	}, nil
}

// CreateForKey locates the region holding key and creates a client for it.
func (f *Factory) CreateForKey(ctx context.Context, key []byte) (*RegionStoreClient, error) {
	r, s, err := f.manager.LocateKey(key)
	if err != nil {
		return nil, err
	}
	return f.Create(ctx, r, s)
}

// CreateForRegion resolves the current leader of regionID and creates a
// client for it. It is the usual way to continue after a RoutingError.
func (f *Factory) CreateForRegion(ctx context.Context, regionID uint64) (*RegionStoreClient, error) {
	r, s, err := f.manager.ResolveLeader(regionID)
	if err != nil {
		return nil, err
	}
	return f.Create(ctx, r, s)
}

// NewDialer returns a pool.Dialer that connects a transport created by
// newTransport to the requested address.
func NewDialer(config common.ClientConfig, newTransport func() transport.IRPCClientTransport) pool.Dialer {
	return func(_ context.Context, addr string) (transport.IRPCClientTransport, error) {
		t := newTransport()
		if err := t.Connect(addr, config); err != nil {
			return nil, err
		}
		return t, nil
	}
}
