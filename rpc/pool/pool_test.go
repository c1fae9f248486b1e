package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/regionKV/rpc/common"
	"github.com/ValentinKolb/regionKV/rpc/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTransport records Close calls and can be made unhealthy
type fakeTransport struct {
	addr    string
	healthy atomic.Bool
	closes  atomic.Int32
}

func (f *fakeTransport) Connect(string, common.ClientConfig) error { return nil }
func (f *fakeTransport) Send(context.Context, uint64, []byte) ([]byte, error) {
	return nil, errors.New("not implemented")
}
func (f *fakeTransport) SendAsync(uint64, []byte, transport.ResponseCallback) func() { return func() {} }
func (f *fakeTransport) IsHealthy() bool                                             { return f.healthy.Load() }
func (f *fakeTransport) Close() error {
	f.closes.Add(1)
	f.healthy.Store(false)
	return nil
}

type fakeDialer struct {
	mu    sync.Mutex
	delay time.Duration
	fail  error
	conns []*fakeTransport
}

func (d *fakeDialer) dial(ctx context.Context, addr string) (transport.IRPCClientTransport, error) {
	time.Sleep(d.delay)
	if d.fail != nil {
		return nil, d.fail
	}
	c := &fakeTransport{addr: addr}
	c.healthy.Store(true)
	d.mu.Lock()
	d.conns = append(d.conns, c)
	d.mu.Unlock()
	return c, nil
}

func (d *fakeDialer) dialed() []*fakeTransport {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*fakeTransport(nil), d.conns...)
}

func TestConcurrentAcquireDialsOnce(t *testing.T) {
	d := &fakeDialer{delay: 50 * time.Millisecond}
	p := New(4, d.dial)
	defer p.Close()

	const n = 16
	leases := make([]*Lease, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			l, err := p.Acquire(context.Background(), "node-1")
			assert.NoError(t, err)
			leases[i] = l
		}(i)
	}
	wg.Wait()

	require.Len(t, d.dialed(), 1)
	for _, l := range leases {
		assert.Same(t, leases[0].Conn(), l.Conn())
		l.Release()
	}
	assert.Equal(t, int64(1), p.Stats().Dials)
}

func TestFastDialsAreNotRepeated(t *testing.T) {
	const rounds, n = 500, 32
	d := &fakeDialer{}
	p := New(rounds, d.dial)
	defer p.Close()

	for r := 0; r < rounds; r++ {
		addr := fmt.Sprintf("node-%d", r)
		leases := make([]*Lease, n)
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				l, err := p.Acquire(context.Background(), addr)
				assert.NoError(t, err)
				leases[i] = l
			}(i)
		}
		wg.Wait()

		for _, l := range leases {
			require.NotNil(t, l)
			assert.Same(t, leases[0].Conn(), l.Conn(), "round %d", r)
			l.Release()
		}
	}

	perAddr := map[string]int{}
	for _, c := range d.dialed() {
		perAddr[c.addr]++
	}
	for addr, dials := range perAddr {
		assert.Equal(t, 1, dials, "dials for %s", addr)
	}
	assert.Equal(t, int64(rounds), p.Stats().Dials)
	assert.Equal(t, rounds, p.Len())
}

func TestReleaseKeepsConnection(t *testing.T) {
	d := &fakeDialer{}
	p := New(4, d.dial)
	defer p.Close()

	l, err := p.Acquire(context.Background(), "node-1")
	require.NoError(t, err)
	l.Release()
	l.Release()

	conn := d.dialed()[0]
	assert.Zero(t, conn.closes.Load())
	assert.Equal(t, 1, p.Len())

	l2, err := p.Acquire(context.Background(), "node-1")
	require.NoError(t, err)
	defer l2.Release()
	assert.Same(t, conn, l2.Conn())
}

func TestEvictsOldest(t *testing.T) {
	d := &fakeDialer{}
	p := New(2, d.dial)
	defer p.Close()

	for _, addr := range []string{"a", "b", "c"} {
		l, err := p.Acquire(context.Background(), addr)
		require.NoError(t, err)
		l.Release()
	}

	conns := d.dialed()
	require.Len(t, conns, 3)
	assert.Equal(t, int32(1), conns[0].closes.Load(), "a is the oldest entry")
	assert.Zero(t, conns[1].closes.Load())
	assert.Zero(t, conns[2].closes.Load())
	assert.Equal(t, 2, p.Len())
	assert.Equal(t, int64(1), p.Stats().Evictions)
}

func TestEvictedLeaseClosesOnRelease(t *testing.T) {
	d := &fakeDialer{}
	p := New(1, d.dial)
	defer p.Close()

	la, err := p.Acquire(context.Background(), "a")
	require.NoError(t, err)

	lb, err := p.Acquire(context.Background(), "b")
	require.NoError(t, err)
	defer lb.Release()

	a := d.dialed()[0]
	assert.Zero(t, a.closes.Load(), "a is still leased")
	la.Release()
	assert.Equal(t, int32(1), a.closes.Load())
}

func TestUnhealthyIsReplaced(t *testing.T) {
	d := &fakeDialer{}
	p := New(4, d.dial)
	defer p.Close()

	l, err := p.Acquire(context.Background(), "a")
	require.NoError(t, err)
	first := d.dialed()[0]
	l.Release()

	first.healthy.Store(false)

	l, err = p.Acquire(context.Background(), "a")
	require.NoError(t, err)
	defer l.Release()

	require.Len(t, d.dialed(), 2)
	assert.NotSame(t, first, l.Conn())
	assert.Equal(t, int32(1), first.closes.Load())
}

func TestInvalidateClosesImmediately(t *testing.T) {
	d := &fakeDialer{}
	p := New(4, d.dial)
	defer p.Close()

	l, err := p.Acquire(context.Background(), "a")
	require.NoError(t, err)

	assert.True(t, p.Invalidate("a"))
	assert.False(t, p.Invalidate("a"))
	conn := d.dialed()[0]
	assert.Equal(t, int32(1), conn.closes.Load())

	l.Release()
	assert.Equal(t, int32(1), conn.closes.Load(), "no second close")
	assert.Equal(t, int64(1), p.Stats().Invalidations)
}

func TestDialError(t *testing.T) {
	refused := errors.New("connection refused")
	d := &fakeDialer{fail: refused}
	p := New(4, d.dial)
	defer p.Close()

	_, err := p.Acquire(context.Background(), "a")
	assert.ErrorIs(t, err, ErrDial)
	assert.ErrorIs(t, err, refused)
	assert.Zero(t, p.Len())
	assert.Equal(t, int64(1), p.Stats().DialErrors)
}

func TestAcquireHonoursContext(t *testing.T) {
	d := &fakeDialer{delay: 200 * time.Millisecond}
	p := New(4, d.dial)
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := p.Acquire(ctx, "a")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClosedPool(t *testing.T) {
	d := &fakeDialer{}
	p := New(4, d.dial)

	l, err := p.Acquire(context.Background(), "a")
	require.NoError(t, err)
	l.Release()

	require.NoError(t, p.Close())
	assert.Equal(t, int32(1), d.dialed()[0].closes.Load())

	_, err = p.Acquire(context.Background(), "a")
	assert.ErrorIs(t, err, ErrPoolClosed)
}
