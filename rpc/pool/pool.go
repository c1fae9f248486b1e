package pool

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ValentinKolb/regionKV/rpc/common"
	"github.com/ValentinKolb/regionKV/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/rcrowley/go-metrics"
	"golang.org/x/sync/singleflight"
)

var Logger = logger.GetLogger("pool")

var (
	// ErrPoolClosed is returned by Acquire after Close.
	ErrPoolClosed = errors.New("connection pool closed")
	// ErrDial wraps every failure to open a connection.
	ErrDial = errors.New("failed to dial storage node")
)

// Dialer opens a connected transport to addr.
type Dialer func(ctx context.Context, addr string) (transport.IRPCClientTransport, error)

// Stats is a snapshot of the pool counters.
type Stats struct {
	Size          int64
	Dials         int64
	DialErrors    int64
	Evictions     int64
	Invalidations int64
}

// entry is one cached connection
type entry struct {
	addr    string
	conn    transport.IRPCClientTransport
	refs    int
	evicted bool // removed from the pool, closed on the last release
	elem    *list.Element
	closed  sync.Once
}

// Pool caches one transport per storage node address. It is bounded by
// capacity; when full, the entry inserted first is evicted. Concurrent
// Acquire calls for an address that is not cached share a single dial.
type Pool struct {
	mu       sync.Mutex
	capacity int
	dialer   Dialer
	entries  map[string]*entry
	order    *list.List // insertion order, front is the oldest
	group    singleflight.Group
	closed   bool

	registry      metrics.Registry
	size          metrics.Gauge
	dials         metrics.Counter
	dialErrors    metrics.Counter
	evictions     metrics.Counter
	invalidations metrics.Counter
}

// New creates a pool holding at most capacity connections. A capacity <= 0
// selects common.DefaultPoolSize.
func New(capacity int, dialer Dialer) *Pool {
	if capacity <= 0 {
		capacity = common.DefaultPoolSize
	}
	r := metrics.NewRegistry()
	return &Pool{
		capacity:      capacity,
		dialer:        dialer,
		entries:       make(map[string]*entry, capacity),
		order:         list.New(),
		registry:      r,
		size:          metrics.NewRegisteredGauge("pool.size", r),
		dials:         metrics.NewRegisteredCounter("pool.dials", r),
		dialErrors:    metrics.NewRegisteredCounter("pool.dial_errors", r),
		evictions:     metrics.NewRegisteredCounter("pool.evictions", r),
		invalidations: metrics.NewRegisteredCounter("pool.invalidations", r),
	}
}

// Acquire returns a lease on the cached connection to addr, dialing it if it
// is missing or unhealthy. The lease must be released when done.
func (p *Pool) Acquire(ctx context.Context, addr string) (*Lease, error) {
	for {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return nil, ErrPoolClosed
		}
		if e, ok := p.entries[addr]; ok {
			if e.conn.IsHealthy() {
				e.refs++
				p.mu.Unlock()
				return &Lease{pool: p, entry: e}, nil
			}
			Logger.Debugf("Replacing unhealthy connection to %s", addr)
			p.removeLocked(e)
		}
		p.mu.Unlock()

		resCh := p.group.DoChan(addr, func() (interface{}, error) {
			// an earlier flight may have finished after the check above
			if p.cached(addr) {
				return nil, nil
			}
			return nil, p.dial(context.WithoutCancel(ctx), addr)
		})
		select {
		case res := <-resCh:
			if res.Err != nil {
				return nil, res.Err
			}
			// the new entry is in the map now, take a reference on the next pass
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Invalidate removes the connection to addr and closes it at once, even if
// it is leased. It reports whether a connection was cached.
func (p *Pool) Invalidate(addr string) bool {
	p.mu.Lock()
	e, ok := p.entries[addr]
	leased := false
	if ok {
		p.invalidations.Inc(1)
		leased = e.refs > 0
		p.removeLocked(e)
	}
	p.mu.Unlock()

	if leased {
		closeConn(e)
	}
	return ok
}

// Close closes every cached connection. Later Acquire calls fail.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	for _, e := range p.entries {
		e.evicted = true
		closeConn(e)
	}
	p.entries = map[string]*entry{}
	p.order.Init()
	p.size.Update(0)
	return nil
}

// Len returns the number of cached connections.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// Stats returns the current counters.
func (p *Pool) Stats() Stats {
	return Stats{
		Size:          p.size.Value(),
		Dials:         p.dials.Count(),
		DialErrors:    p.dialErrors.Count(),
		Evictions:     p.evictions.Count(),
		Invalidations: p.invalidations.Count(),
	}
}

// Registry exposes the metrics registry of the pool.
func (p *Pool) Registry() metrics.Registry {
	return p.registry
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// cached reports whether a healthy connection to addr is in the pool
func (p *Pool) cached(addr string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.entries[addr]
	return ok && e.conn.IsHealthy()
}

// dial opens a connection and inserts it, evicting the oldest entries while full
func (p *Pool) dial(ctx context.Context, addr string) error {
	p.dials.Inc(1)
	conn, err := p.dialer(ctx, addr)
	if err != nil {
		p.dialErrors.Inc(1)
		return fmt.Errorf("%w %s: %w", ErrDial, addr, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		_ = conn.Close()
		return ErrPoolClosed
	}
	if old, ok := p.entries[addr]; ok {
		if old.conn.IsHealthy() {
			_ = conn.Close()
			return nil
		}
		p.removeLocked(old)
	}
	for len(p.entries) >= p.capacity {
		oldest := p.order.Front().Value.(*entry)
		Logger.Debugf("Evicting connection to %s", oldest.addr)
		p.evictions.Inc(1)
		p.removeLocked(oldest)
	}

	e := &entry{addr: addr, conn: conn}
	e.elem = p.order.PushBack(e)
	p.entries[addr] = e
	p.size.Update(int64(len(p.entries)))
	return nil
}

// removeLocked takes e out of the pool. An unleased connection is closed
// right away, a leased one on its last release.
func (p *Pool) removeLocked(e *entry) {
	delete(p.entries, e.addr)
	p.order.Remove(e.elem)
	e.evicted = true
	p.size.Update(int64(len(p.entries)))
	if e.refs == 0 {
		closeConn(e)
	}
}

func (p *Pool) release(e *entry) {
	p.mu.Lock()
	e.refs--
	last := e.evicted && e.refs == 0
	p.mu.Unlock()
	if last {
		closeConn(e)
	}
}

func closeConn(e *entry) {
	e.closed.Do(func() {
		if err := e.conn.Close(); err != nil {
			Logger.Warningf("Failed to close connection to %s: %v", e.addr, err)
		}
	})
}

// --------------------------------------------------------------------------
// Lease
// --------------------------------------------------------------------------

// Lease is a reference to a pooled connection.
type Lease struct {
	pool     *Pool
	entry    *entry
	released sync.Once
}

// Conn returns the leased transport.
func (l *Lease) Conn() transport.IRPCClientTransport {
	return l.entry.conn
}

// Addr returns the address the transport is connected to.
func (l *Lease) Addr() string {
	return l.entry.addr
}

// Release returns the lease. Calling it more than once has no effect.
func (l *Lease) Release() {
	l.released.Do(func() { l.pool.release(l.entry) })
}
