package client_test

import (
	"context"
	"errors"
	"fmt"
	"net"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/regionKV/lib/keyspace"
	"github.com/ValentinKolb/regionKV/lib/region"
	"github.com/ValentinKolb/regionKV/rpc/client"
	"github.com/ValentinKolb/regionKV/rpc/common"
	"github.com/ValentinKolb/regionKV/rpc/coprocessor"
	"github.com/ValentinKolb/regionKV/rpc/pool"
	"github.com/ValentinKolb/regionKV/rpc/serializer"
	"github.com/ValentinKolb/regionKV/rpc/server"
	"github.com/ValentinKolb/regionKV/rpc/transport"
	"github.com/ValentinKolb/regionKV/rpc/transport/http"
	"github.com/ValentinKolb/regionKV/rpc/transport/tcp"
	"github.com/ValentinKolb/regionKV/rpc/transport/unix"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const clusterTopology = `
stores:
  - {id: 1, address: "store-1"}
  - {id: 2, address: "store-2"}
regions:
  - id: 10
    start_key: ""
    end_key: "m"
    epoch: {conf_version: 1, version: 1}
    peers: [{id: 11, store_id: 1}, {id: 12, store_id: 2}]
    leader: 11
  - id: 20
    start_key: "m"
    end_key: ""
    epoch: {conf_version: 1, version: 1}
    peers: [{id: 21, store_id: 1}, {id: 22, store_id: 2}]
    leader: 22
seed:
  mvcc:
    - {key: a, value: "1", version: 5}
    - {key: b, value: "2", version: 5}
    - {key: c, value: "3", version: 5}
    - {key: l, value: "5", version: 3}
    - {key: n, value: "4", version: 5}
  locks:
    - {key: l, primary: l, version: 7, ttl: 100}
`

// --------------------------------------------------------------------------
// Test Cluster
// --------------------------------------------------------------------------

type transportKind struct {
	name     string
	server   func() transport.IRPCServerTransport
	client   func() transport.IRPCClientTransport
	endpoint func(t *testing.T, storeID uint64) string
}

var transportKinds = []transportKind{
	{
		name:     "tcp",
		server:   tcp.NewTCPServerTransport,
		client:   tcp.NewTCPClientTransport,
		endpoint: func(*testing.T, uint64) string { return "127.0.0.1:0" },
	},
	{
		name:   "unix",
		server: unix.NewUnixServerTransport,
		client: unix.NewUnixClientTransport,
		endpoint: func(t *testing.T, storeID uint64) string {
			return filepath.Join(t.TempDir(), fmt.Sprintf("store-%d.sock", storeID))
		},
	},
	{
		name:     "http",
		server:   http.NewHttpServerTransport,
		client:   http.NewHttpClientTransport,
		endpoint: func(*testing.T, uint64) string { return "127.0.0.1:0" },
	},
}

type failure struct{ regionID, storeID uint64 }

// recordingManager counts routing failures on top of a static manager
type recordingManager struct {
	*region.StaticManager
	mu    sync.Mutex
	fails []failure
}

func (m *recordingManager) OnRequestFail(regionID, storeID uint64) {
	m.mu.Lock()
	m.fails = append(m.fails, failure{regionID, storeID})
	m.mu.Unlock()
	m.StaticManager.OnRequestFail(regionID, storeID)
}

func (m *recordingManager) failures() []failure {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]failure(nil), m.fails...)
}

type cluster struct {
	nodes   map[uint64]*server.RPCServer
	manager *recordingManager
	pool    *pool.Pool
	factory *client.Factory
}

func newCluster(t *testing.T, kind transportKind, ser func() serializer.IRPCSerializer, cfg common.ClientConfig) *cluster {
	t.Helper()

	topo, err := region.ParseTopology([]byte(clusterTopology))
	require.NoError(t, err)

	c := &cluster{nodes: map[uint64]*server.RPCServer{}}
	for i, st := range topo.Stores {
		node, err := server.NewRPCServer(common.ServerConfig{
			StoreID:   st.ID,
			Transport: common.ServerTransportConfig{Endpoint: kind.endpoint(t, st.ID)},
		}, kind.server(), ser(), topo)
		require.NoError(t, err)

		addr, err := node.Start()
		require.NoError(t, err)
		t.Cleanup(func() { _ = node.Close() })

		c.nodes[st.ID] = node
		topo.Stores[i].Address = addr.String()
	}

	m, err := region.NewStaticManager(topo)
	require.NoError(t, err)
	c.manager = &recordingManager{StaticManager: m}

	c.pool = pool.New(cfg.PoolSize, client.NewDialer(cfg, kind.client))
	t.Cleanup(func() { _ = c.pool.Close() })

	c.factory = client.NewFactory(cfg, c.pool, c.manager, ser())
	return c
}

func testConfig() common.ClientConfig {
	cfg := common.DefaultClientConfig()
	cfg.TimeoutMillisecond = 2000
	return cfg
}

func defaultCluster(t *testing.T) *cluster {
	return newCluster(t, transportKinds[0], serializer.NewMsgpackSerializer, testConfig())
}

func (c *cluster) clientFor(t *testing.T, key string) *client.RegionStoreClient {
	t.Helper()
	cli, err := c.factory.CreateForKey(context.Background(), []byte(key))
	require.NoError(t, err)
	t.Cleanup(cli.Close)
	return cli
}

// --------------------------------------------------------------------------
// Operations
// --------------------------------------------------------------------------

func TestRawOperations(t *testing.T) {
	serializers := map[string]func() serializer.IRPCSerializer{
		"msgpack": serializer.NewMsgpackSerializer,
		"json":    serializer.NewJSONSerializer,
		"gob":     serializer.NewGOBSerializer,
	}
	for _, kind := range transportKinds {
		for serName, ser := range serializers {
			t.Run(kind.name+"/"+serName, func(t *testing.T) {
				c := newCluster(t, kind, ser, testConfig())
				cli := c.clientFor(t, "k")
				ctx := context.Background()

				require.NoError(t, cli.RawPut(ctx, []byte("k"), []byte("v")))
				v, err := cli.RawGet(ctx, []byte("k"))
				require.NoError(t, err)
				assert.Equal(t, []byte("v"), v)

				require.NoError(t, cli.RawDelete(ctx, []byte("k")))
				v, err = cli.RawGet(ctx, []byte("k"))
				require.NoError(t, err)
				assert.Nil(t, v)

				// async forms go the same way
				_, err = cli.RawPutAsync([]byte("k"), []byte("w")).Wait()
				require.NoError(t, err)
				v, err = cli.RawGetAsync([]byte("k")).Wait()
				require.NoError(t, err)
				assert.Equal(t, []byte("w"), v)
				_, err = cli.RawDeleteAsync([]byte("k")).Wait()
				require.NoError(t, err)

				assert.Empty(t, c.manager.failures())
			})
		}
	}
}

func TestGetAndBatchGet(t *testing.T) {
	c := defaultCluster(t)
	cli := c.clientFor(t, "a")
	ctx := context.Background()

	v, err := cli.Get(ctx, []byte("a"), 10)
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), v)

	v, err = cli.Get(ctx, []byte("a"), 4)
	require.NoError(t, err)
	assert.Nil(t, v, "not yet committed at version 4")

	v, err = cli.Get(ctx, []byte("d"), 10)
	require.NoError(t, err)
	assert.Nil(t, v)

	pairs, err := cli.BatchGet(ctx, [][]byte{[]byte("c"), []byte("d"), []byte("a")}, 10)
	require.NoError(t, err)
	require.Len(t, pairs, 2)

	pairs, err = cli.BatchGetAsync([][]byte{[]byte("b")}, 10).Wait()
	require.NoError(t, err)
	assert.Equal(t, []keyspace.Pair{{Key: []byte("b"), Value: []byte("2")}}, pairs)

	v, err = cli.GetAsync([]byte("c"), 10).Wait()
	require.NoError(t, err)
	assert.Equal(t, []byte("3"), v)
}

func TestScan(t *testing.T) {
	c := defaultCluster(t)
	cli := c.clientFor(t, "a")
	ctx := context.Background()

	pairs, err := cli.Scan(ctx, []byte("a"), 10, false, 2)
	require.NoError(t, err)
	assert.Equal(t, []keyspace.Pair{
		{Key: []byte("a"), Value: []byte("1")},
		{Key: []byte("b"), Value: []byte("2")},
	}, pairs)

	// no limit uses the batch size, the scan stops at the region end
	pairs, err = cli.Scan(ctx, []byte("b"), 6, true, 0)
	require.NoError(t, err)
	require.Len(t, pairs, 3)
	assert.Equal(t, []byte("l"), pairs[2].Key)
	assert.Nil(t, pairs[2].Value)

	pairs, err = cli.ScanAsync([]byte("a"), 10, false, 1).Wait()
	require.NoError(t, err)
	assert.Len(t, pairs, 1)
}

func TestCoprocess(t *testing.T) {
	c := defaultCluster(t)
	cli := c.clientFor(t, "a")
	ctx := context.Background()
	ranges := []keyspace.Range{{Start: []byte("a"), End: []byte("c")}}

	resp, err := cli.Coprocess(ctx, coprocessor.SelectRequest{StartTS: 10}, coprocessor.ReqTypeSelect, ranges)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), resp.Count)
	assert.Len(t, resp.Rows, 2)

	resp, err = cli.CoprocessAsync(coprocessor.SelectRequest{StartTS: 6, Aggregate: coprocessor.AggrCount}, coprocessor.ReqTypeIndex, nil).Wait()
	require.NoError(t, err)
	assert.Equal(t, uint64(4), resp.Count, "the whole region without explicit ranges")

	// the lock on l blocks readers at a later version
	_, err = cli.Coprocess(ctx, coprocessor.SelectRequest{StartTS: 10}, coprocessor.ReqTypeSelect, nil)
	assert.Equal(t, client.KindKey, client.KindOf(err))

	_, err = cli.Coprocess(ctx, coprocessor.SelectRequest{}, 7, ranges)
	var keyErr *client.KeyError
	require.ErrorAs(t, err, &keyErr)
	assert.Contains(t, keyErr.Detail.Abort, "unsupported")
	assert.Empty(t, c.manager.failures())
}

// --------------------------------------------------------------------------
// Error classification
// --------------------------------------------------------------------------

func TestRoutingErrorNotifiesOnce(t *testing.T) {
	c := defaultCluster(t)
	cli := c.clientFor(t, "a")
	ctx := context.Background()

	require.NoError(t, c.nodes[1].TransferLeader(10, 12))
	require.NoError(t, c.nodes[2].TransferLeader(10, 12))

	_, err := cli.Get(ctx, []byte("a"), 10)
	var routingErr *client.RoutingError
	require.ErrorAs(t, err, &routingErr)
	assert.Equal(t, client.KindRouting, client.KindOf(err))
	assert.Equal(t, common.RegionErrNotLeader, routingErr.Detail.Code)
	hint, ok := routingErr.LeaderHint()
	require.True(t, ok)
	assert.Equal(t, uint64(12), hint)
	assert.Equal(t, []failure{{10, 1}}, c.manager.failures())

	_, err = cli.ScanAsync([]byte("a"), 10, false, 1).Wait()
	require.ErrorAs(t, err, &routingErr)
	assert.Len(t, c.manager.failures(), 2)

	// the client keeps its context, a new client follows the new leader
	assert.Equal(t, uint64(1), cli.Context().StoreID())
	next, err := c.factory.CreateForRegion(ctx, 10)
	require.NoError(t, err)
	defer next.Close()
	assert.Equal(t, uint64(2), next.Context().StoreID())

	v, err := next.Get(ctx, []byte("a"), 10)
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), v)
}

func TestStaleEpoch(t *testing.T) {
	c := defaultCluster(t)
	cli := c.clientFor(t, "a")

	r, ok := c.nodes[1].Region(10)
	require.True(t, ok)
	r.Epoch.Version++
	c.nodes[1].UpsertRegion(r)

	for _, call := range []func() error{
		func() error { return cli.RawPut(context.Background(), []byte("a"), []byte("x")) },
		func() error { _, err := cli.RawGetAsync([]byte("a")).Wait(); return err },
	} {
		err := call()
		var routingErr *client.RoutingError
		require.ErrorAs(t, err, &routingErr)
		assert.Equal(t, common.RegionErrEpochNotMatch, routingErr.Detail.Code)
	}
	assert.Equal(t, []failure{{10, 1}, {10, 1}}, c.manager.failures())
}

func TestKeyErrorDoesNotNotify(t *testing.T) {
	c := defaultCluster(t)
	cli := c.clientFor(t, "l")

	_, err := cli.Get(context.Background(), []byte("l"), 8)
	var keyErr *client.KeyError
	require.ErrorAs(t, err, &keyErr)
	require.NotNil(t, keyErr.Detail.Locked)
	assert.Equal(t, uint64(7), keyErr.Detail.Locked.LockVersion)

	_, err = cli.ScanAsync([]byte("k"), 8, false, 0).Wait()
	require.ErrorAs(t, err, &keyErr)
	assert.Equal(t, client.KindKey, client.KindOf(err))

	assert.Empty(t, c.manager.failures())
}

func TestCreatePreconditions(t *testing.T) {
	c := defaultCluster(t)
	ctx := context.Background()
	store := &region.Store{ID: 1, Address: "127.0.0.1:1"}

	_, err := c.factory.Create(ctx, nil, store)
	assert.ErrorIs(t, err, region.ErrInvalidRegion)

	_, err = c.factory.Create(ctx, &region.Region{ID: 10}, store)
	assert.ErrorIs(t, err, region.ErrNoLeader)

	_, err = c.factory.CreateForKey(ctx, nil)
	require.NoError(t, err, "the empty key belongs to the first region")
	assert.Zero(t, c.pool.Stats().DialErrors)
}

func TestConnectionError(t *testing.T) {
	c := defaultCluster(t)

	// grab a free port and release it again
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	r := &region.Region{ID: 10, Leader: &region.Peer{ID: 11, StoreID: 1}, Peers: []region.Peer{{ID: 11, StoreID: 1}}}
	_, err = c.factory.Create(context.Background(), r, &region.Store{ID: 1, Address: addr})

	var connErr *client.ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, addr, connErr.Addr)
	assert.ErrorIs(t, err, pool.ErrDial)
	assert.Empty(t, c.manager.failures())
}

func TestConnectionLostWhileLeased(t *testing.T) {
	c := defaultCluster(t)
	cli := c.clientFor(t, "a")
	ctx := context.Background()

	_, err := cli.Get(ctx, []byte("a"), 10)
	require.NoError(t, err)

	require.NoError(t, c.nodes[1].Close())
	require.Eventually(t, func() bool {
		_, err := cli.Get(ctx, []byte("a"), 10)
		return client.KindOf(err) == client.KindConnection
	}, 2*time.Second, 20*time.Millisecond)
	assert.Empty(t, c.manager.failures())
}

func TestCloseKeepsSharedConnection(t *testing.T) {
	c := defaultCluster(t)
	ctx := context.Background()

	first, err := c.factory.CreateForKey(ctx, []byte("a"))
	require.NoError(t, err)
	second, err := c.factory.CreateForKey(ctx, []byte("b"))
	require.NoError(t, err)
	defer second.Close()

	first.Close()
	first.Close()

	_, err = second.Get(ctx, []byte("b"), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, c.pool.Len())
	assert.Equal(t, int64(1), c.pool.Stats().Dials)
}

// --------------------------------------------------------------------------
// Misbehaving nodes
// --------------------------------------------------------------------------

// startFakeNode serves handler on a TCP transport and returns a client bound
// to it. Any region error still reaches the manager of the cluster.
func startFakeNode(t *testing.T, cfg common.ClientConfig, handler transport.ServerHandleFunc) (*client.RegionStoreClient, *recordingManager) {
	t.Helper()

	srv := tcp.NewTCPServerTransport()
	srv.RegisterHandler(handler)
	addr, err := srv.Listen(common.ServerConfig{Transport: common.ServerTransportConfig{Endpoint: "127.0.0.1:0"}})
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close() })

	topo, err := region.ParseTopology([]byte(clusterTopology))
	require.NoError(t, err)
	m, err := region.NewStaticManager(topo)
	require.NoError(t, err)
	manager := &recordingManager{StaticManager: m}

	p := pool.New(0, client.NewDialer(cfg, tcp.NewTCPClientTransport))
	t.Cleanup(func() { _ = p.Close() })

	r := &region.Region{
		ID:     10,
		Epoch:  region.Epoch{ConfVersion: 1, Version: 1},
		Leader: &region.Peer{ID: 11, StoreID: 1},
		Peers:  []region.Peer{{ID: 11, StoreID: 1}},
	}
	cli, err := client.NewFactory(cfg, p, manager, serializer.NewMsgpackSerializer()).
		Create(context.Background(), r, &region.Store{ID: 1, Address: addr.String()})
	require.NoError(t, err)
	t.Cleanup(cli.Close)
	return cli, manager
}

// reply answers every request with msg
func reply(msg *common.Message) transport.ServerHandleFunc {
	b, err := serializer.NewMsgpackSerializer().Serialize(*msg)
	if err != nil {
		panic(err)
	}
	return func(uint64, []byte) []byte { return b }
}

func TestMalformedPushDownPayload(t *testing.T) {
	cli, manager := startFakeNode(t, testConfig(), reply(common.NewCoprocessorResponse([]byte{0xc1})))

	_, err := cli.Coprocess(context.Background(), coprocessor.SelectRequest{}, coprocessor.ReqTypeSelect, nil)
	var decodeErr *client.ProtocolDecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.ErrorIs(t, err, coprocessor.ErrMalformedPayload)

	_, err = cli.CoprocessAsync(coprocessor.SelectRequest{}, coprocessor.ReqTypeSelect, nil).Wait()
	assert.Equal(t, client.KindProtocolDecode, client.KindOf(err))
	assert.Empty(t, manager.failures())
}

func TestMalformedEnvelope(t *testing.T) {
	cli, manager := startFakeNode(t, testConfig(), func(uint64, []byte) []byte { return []byte{0xc1, 0xc1} })

	_, err := cli.Get(context.Background(), []byte("a"), 1)
	assert.Equal(t, client.KindProtocolDecode, client.KindOf(err))
	assert.Empty(t, manager.failures())
}

func TestUnexpectedResponseType(t *testing.T) {
	cli, _ := startFakeNode(t, testConfig(), reply(common.NewSuccessResponse(common.MsgTRawPut)))

	_, err := cli.Get(context.Background(), []byte("a"), 1)
	assert.Equal(t, client.KindProtocolDecode, client.KindOf(err))
}

func TestServerErrorIsKeyError(t *testing.T) {
	cli, manager := startFakeNode(t, testConfig(), reply(common.NewErrorResponse("disk full")))

	err := cli.RawPut(context.Background(), []byte("a"), []byte("b"))
	var keyErr *client.KeyError
	require.ErrorAs(t, err, &keyErr)
	assert.Equal(t, "disk full", keyErr.Detail.Abort)
	assert.Empty(t, manager.failures())
}

func TestRegionErrorFromFakeNode(t *testing.T) {
	cli, manager := startFakeNode(t, testConfig(), reply(common.NewRegionErrorResponse(common.MsgTGet, &common.RegionError{
		Code:     common.RegionErrServerIsBusy,
		RegionID: 10,
	})))

	for i := 0; i < 3; i++ {
		_, err := cli.GetAsync([]byte("a"), 1).Wait()
		assert.Equal(t, client.KindRouting, client.KindOf(err))
	}
	assert.Equal(t, []failure{{10, 1}, {10, 1}, {10, 1}}, manager.failures())
}

func TestTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.TimeoutMillisecond = 50

	var notFound []byte
	{
		b, err := serializer.NewMsgpackSerializer().Serialize(*common.NewValueResponse(common.MsgTGet, nil, false))
		require.NoError(t, err)
		notFound = b
	}
	cli, manager := startFakeNode(t, cfg, func(uint64, []byte) []byte {
		time.Sleep(300 * time.Millisecond)
		return notFound
	})

	start := time.Now()
	_, err := cli.Get(context.Background(), []byte("a"), 1)
	var timeoutErr *client.TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 50*time.Millisecond, timeoutErr.After)
	assert.Less(t, time.Since(start), 250*time.Millisecond)

	f := cli.GetAsync([]byte("a"), 1)
	_, err = f.Wait()
	require.ErrorAs(t, err, &timeoutErr)

	// the late response does not resolve the future a second time
	time.Sleep(400 * time.Millisecond)
	_, ok, err := f.Result()
	assert.True(t, ok)
	assert.Equal(t, client.KindTimeout, client.KindOf(err))
	assert.Empty(t, manager.failures())
}

func TestCallerCancel(t *testing.T) {
	c := defaultCluster(t)
	cli := c.clientFor(t, "a")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := cli.Get(ctx, []byte("a"), 10)
	var timeoutErr *client.TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestConcurrentClients(t *testing.T) {
	c := defaultCluster(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := []byte(fmt.Sprintf("%c%d", 'a'+i%20, i))
			cli, err := c.factory.CreateForKey(ctx, key)
			if !assert.NoError(t, err) {
				return
			}
			defer cli.Close()
			assert.NoError(t, cli.RawPut(ctx, key, key))
			v, err := cli.RawGet(ctx, key)
			assert.NoError(t, err)
			assert.Equal(t, key, v)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 2, c.pool.Len(), "one connection per store")
	assert.Empty(t, c.manager.failures())
}
