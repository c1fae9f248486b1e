package server

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/ValentinKolb/regionKV/lib/region"
	"github.com/ValentinKolb/regionKV/lib/store"
	"github.com/ValentinKolb/regionKV/lib/store/lstore"
	"github.com/ValentinKolb/regionKV/rpc/common"
	"github.com/ValentinKolb/regionKV/rpc/serializer"
	"github.com/ValentinKolb/regionKV/rpc/transport"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("server")

// RPCServer is a storage node. It hosts the regions of one store, checks the
// routing context of every request against them and executes the request on
// a local store.
type RPCServer struct {
	config     common.ServerConfig
	transport  transport.IRPCServerTransport
	serializer serializer.IRPCSerializer
	store      store.IStore
	regions    *xsync.MapOf[uint64, *region.Region]
	adapters   map[common.MessageType]IRPCServerAdapter

	metricsServer *http.Server
	metricsAddr   net.Addr
}

// NewRPCServer creates a storage node for config.StoreID of topology
//
// Usage:
//
//	s, err := server.NewRPCServer(
//		*config,
//		tcp.NewTCPServerTransport(),
//		serializer.NewMsgpackSerializer(),
//		topology,
//	)
//	if err != nil {
//		return err
//	}
//	return s.Serve()
func NewRPCServer(
	config common.ServerConfig,
	transport transport.IRPCServerTransport,
	serializer serializer.IRPCSerializer,
	topology *region.Topology,
) (*RPCServer, error) {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	if _, ok := topology.Store(config.StoreID); !ok {
		return nil, fmt.Errorf("store %d is not part of the topology", config.StoreID)
	}

	kv := NewKVServerAdapter()
	s := &RPCServer{
		config:     config,
		transport:  transport,
		serializer: serializer,
		store:      lstore.NewLocalStore(),
		regions:    xsync.NewMapOf[uint64, *region.Region](),
		adapters: map[common.MessageType]IRPCServerAdapter{
			common.MsgTGet:         kv,
			common.MsgTBatchGet:    kv,
			common.MsgTScan:        kv,
			common.MsgTRawGet:      kv,
			common.MsgTRawPut:      kv,
			common.MsgTRawDelete:   kv,
			common.MsgTCoprocessor: NewCoprocessorServerAdapter(),
		},
	}

	for _, r := range topology.BuildRegions() {
		if _, ok := r.PeerOnStore(config.StoreID); ok {
			s.regions.Store(r.ID, r)
			Logger.Infof("hosting %s", r)
		}
	}

	if err := s.seed(topology.Seed); err != nil {
		return nil, err
	}

	s.registerTransportHandler()

	Logger.Infof("Created storage node")
	Logger.Infof(config.String())
	return s, nil
}

// Start binds the transport (and the metrics endpoint if configured) and
// returns the transport address. It does not block.
func (s *RPCServer) Start() (net.Addr, error) {
	if s.config.MetricsEndpoint != "" {
		if err := s.startMetrics(); err != nil {
			return nil, err
		}
	}
	addr, err := s.transport.Listen(s.config)
	if err != nil {
		_ = s.stopMetrics()
		return nil, err
	}
	return addr, nil
}

// Serve starts the node and blocks until SIGINT or SIGTERM.
func (s *RPCServer) Serve() error {
	addr, err := s.Start()
	if err != nil {
		return err
	}
	Logger.Infof("Storage node %d serving on %s", s.config.StoreID, addr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	Logger.Infof("Received %s, shutting down", sig)

	return s.Close()
}

// Close stops the transport and the metrics endpoint.
func (s *RPCServer) Close() error {
	return errors.Join(s.transport.Close(), s.stopMetrics())
}

// Store gives direct access to the local store.
func (s *RPCServer) Store() store.IStore {
	return s.store
}

// MetricsAddr returns the bound metrics address, nil if disabled.
func (s *RPCServer) MetricsAddr() net.Addr {
	return s.metricsAddr
}

// --------------------------------------------------------------------------
// Region administration
// --------------------------------------------------------------------------

// Region returns a copy of a hosted region.
func (s *RPCServer) Region(regionID uint64) (*region.Region, bool) {
	r, ok := s.regions.Load(regionID)
	if !ok {
		return nil, false
	}
	return r.Clone(), true
}

// TransferLeader makes peerID the leader of regionID as seen by this node.
func (s *RPCServer) TransferLeader(regionID, peerID uint64) error {
	var err error
	s.regions.Compute(regionID, func(old *region.Region, loaded bool) (*region.Region, bool) {
		if !loaded {
			err = fmt.Errorf("%w: %d", region.ErrRegionNotFound, regionID)
			return nil, true
		}
		p, ok := old.Peer(peerID)
		if !ok {
			err = fmt.Errorf("region %d has no peer %d", regionID, peerID)
			return old, false
		}
		r := old.Clone()
		r.Leader = &p
		Logger.Infof("region %d: leader moved to peer %d on store %d", regionID, p.ID, p.StoreID)
		return r, false
	})
	return err
}

// UpsertRegion replaces the hosted view of r, for example after a split or
// a configuration change bumped its epoch.
func (s *RPCServer) UpsertRegion(r *region.Region) {
	s.regions.Store(r.ID, r.Clone())
}

// RemoveRegion stops hosting regionID.
func (s *RPCServer) RemoveRegion(regionID uint64) {
	s.regions.Delete(regionID)
}

// --------------------------------------------------------------------------
// Request handling
// --------------------------------------------------------------------------

func (s *RPCServer) registerTransportHandler() {
	s.transport.RegisterHandler(s.dispatch)
}

// dispatch decodes, handles and encodes one request
func (s *RPCServer) dispatch(regionId uint64, req []byte) []byte {
	var msg common.Message
	var respMsg *common.Message

	if err := s.serializer.Deserialize(req, &msg); err != nil {
		respMsg = common.NewErrorResponse(fmt.Sprintf("failed to deserialize request: %s", err))
	} else {
		respMsg = s.handle(regionId, &msg)
	}
	countRequest(msg.MsgType, respMsg)

	val, err := s.serializer.Serialize(*respMsg)
	if err != nil {
		Logger.Errorf("failed to serialize response: %v", err)
		val, _ = s.serializer.Serialize(*common.NewErrorResponse(
			fmt.Sprintf("failed to serialize response: %s", err),
		))
	}
	return val
}

func (s *RPCServer) handle(regionId uint64, req *common.Message) *common.Message {
	if req.Context == nil {
		return common.NewErrorResponse("request without region context")
	}
	if req.Context.RegionID != regionId {
		return common.NewErrorResponse(fmt.Sprintf("frame addressed to region %d carries context of region %d",
			regionId, req.Context.RegionID))
	}

	r, regionErr := s.validate(req)
	if regionErr != nil {
		Logger.Debugf("rejecting %s: %s", req.MsgType, regionErr)
		return common.NewRegionErrorResponse(req.MsgType, regionErr)
	}

	adapter, ok := s.adapters[req.MsgType]
	if !ok {
		return common.NewErrorResponse(fmt.Sprintf("unsupported message type: %s", req.MsgType))
	}
	return adapter.Handle(req, r, s.store)
}

// validate checks the routing context of req against the hosted regions
func (s *RPCServer) validate(req *common.Message) (*region.Region, *common.RegionError) {
	ctx := req.Context
	regionErr := func(code common.RegionErrCode, msg string) *common.RegionError {
		return &common.RegionError{Code: code, RegionID: ctx.RegionID, Msg: msg}
	}

	r, ok := s.regions.Load(ctx.RegionID)
	if !ok {
		return nil, regionErr(common.RegionErrRegionNotFound, fmt.Sprintf("store %d does not host the region", s.config.StoreID))
	}

	if ctx.Peer.StoreID != s.config.StoreID {
		return nil, regionErr(common.RegionErrStoreNotMatch,
			fmt.Sprintf("peer %d belongs to store %d, this is store %d", ctx.Peer.ID, ctx.Peer.StoreID, s.config.StoreID))
	}

	if r.Leader == nil || r.Leader.ID != ctx.Peer.ID {
		e := regionErr(common.RegionErrNotLeader, fmt.Sprintf("peer %d is not the leader", ctx.Peer.ID))
		if r.Leader != nil {
			leader := *r.Leader
			e.Leader = &leader
		}
		return nil, e
	}

	if ctx.Epoch != r.Epoch {
		return nil, regionErr(common.RegionErrEpochNotMatch,
			fmt.Sprintf("request epoch %s, current epoch %s", ctx.Epoch, r.Epoch))
	}

	for _, key := range requestKeys(req) {
		if !r.ContainsKey(key) {
			return nil, regionErr(common.RegionErrKeyNotInRegion,
				fmt.Sprintf("key %q is not in %s", key, r.Range))
		}
	}
	for _, rng := range req.Ranges {
		if !r.Range.ContainsRange(rng) {
			return nil, regionErr(common.RegionErrKeyNotInRegion,
				fmt.Sprintf("range %s is not in %s", rng, r.Range))
		}
	}
	return r, nil
}

// requestKeys lists the keys a request touches
func requestKeys(req *common.Message) [][]byte {
	switch req.MsgType {
	case common.MsgTBatchGet:
		return req.Keys
	case common.MsgTGet, common.MsgTRawGet, common.MsgTRawPut, common.MsgTRawDelete, common.MsgTScan:
		return [][]byte{req.Key}
	default:
		return nil
	}
}

// seed loads the initial data of the hosted regions
func (s *RPCServer) seed(seed region.Seed) error {
	hosted := func(key []byte) bool {
		found := false
		s.regions.Range(func(_ uint64, r *region.Region) bool {
			found = r.ContainsKey(key)
			return !found
		})
		return found
	}

	n := 0
	for _, v := range seed.MVCC {
		if !hosted([]byte(v.Key)) {
			continue
		}
		if err := s.store.Put([]byte(v.Key), []byte(v.Value), v.Version); err != nil {
			return fmt.Errorf("seed %q: %w", v.Key, err)
		}
		n++
	}
	for _, v := range seed.Raw {
		if !hosted([]byte(v.Key)) {
			continue
		}
		if err := s.store.RawPut([]byte(v.Key), []byte(v.Value)); err != nil {
			return fmt.Errorf("seed raw %q: %w", v.Key, err)
		}
		n++
	}
	for _, l := range seed.Locks {
		if !hosted([]byte(l.Key)) {
			continue
		}
		if err := s.store.Lock([]byte(l.Key), []byte(l.Primary), l.Version, l.TTL); err != nil {
			return fmt.Errorf("seed lock %q: %w", l.Key, err)
		}
		n++
	}
	if n > 0 {
		Logger.Infof("loaded %d seed entries", n)
	}
	return nil
}

// --------------------------------------------------------------------------
// Metrics
// --------------------------------------------------------------------------

func countRequest(t common.MessageType, resp *common.Message) {
	result := "ok"
	switch {
	case resp.RegionError != nil:
		result = "region_error"
	case resp.KeyError != nil:
		result = "key_error"
	case resp.MsgType == common.MsgTError:
		result = "error"
	}
	metrics.GetOrCreateCounter(fmt.Sprintf(`rkv_server_requests_total{type=%q,result=%q}`, t, result)).Inc()
}

func (s *RPCServer) startMetrics() error {
	listener, err := net.Listen("tcp", s.config.MetricsEndpoint)
	if err != nil {
		return fmt.Errorf("failed to listen for metrics on %s: %w", s.config.MetricsEndpoint, err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /metrics", func(w http.ResponseWriter, _ *http.Request) {
		metrics.WritePrometheus(w, true)
	})
	s.metricsServer = &http.Server{Handler: mux}
	s.metricsAddr = listener.Addr()

	Logger.Infof("Serving metrics on http://%s/metrics", listener.Addr())
	go func() {
		if err := s.metricsServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			Logger.Errorf("metrics server stopped: %v", err)
		}
	}()
	return nil
}

func (s *RPCServer) stopMetrics() error {
	if s.metricsServer == nil {
		return nil
	}
	return s.metricsServer.Close()
}
