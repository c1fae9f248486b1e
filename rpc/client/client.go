package client

import (
	"context"
	"math"
	"time"

	"github.com/ValentinKolb/regionKV/lib/future"
	"github.com/ValentinKolb/regionKV/lib/keyspace"
	"github.com/ValentinKolb/regionKV/lib/region"
	"github.com/ValentinKolb/regionKV/rpc/common"
	"github.com/ValentinKolb/regionKV/rpc/coprocessor"
	"github.com/ValentinKolb/regionKV/rpc/pool"
	"github.com/ValentinKolb/regionKV/rpc/serializer"
	"github.com/ValentinKolb/regionKV/rpc/transport"
)

// Operation names used in errors and metrics
const (
	opGet       = "get"
	opRawGet    = "raw_get"
	opRawPut    = "raw_put"
	opRawDelete = "raw_delete"
	opBatchGet  = "batch_get"
	opScan      = "scan"
	opCoprocess = "coprocess"
)

// RegionStoreClient talks to the leader of one region. Its routing context
// never changes: after a RoutingError the caller resolves the new leader and
// creates a new client.
//
// Every operation has a blocking form and an Async form returning a future.
// No operation is retried.
type RegionStoreClient struct {
	ctx           region.Context
	reqCtx        *common.RequestContext
	lease         *pool.Lease
	conn          transport.IRPCClientTransport
	manager       region.Manager
	serializer    serializer.IRPCSerializer
	timeout       time.Duration
	scanBatchSize int
}

// Context returns the routing context the client is bound to.
func (c *RegionStoreClient) Context() region.Context {
	return c.ctx
}

// Close releases the pooled connection. The connection itself stays open for
// other clients of the same store.
func (c *RegionStoreClient) Close() {
	c.lease.Release()
}

// --------------------------------------------------------------------------
// Point reads
// --------------------------------------------------------------------------

// Get reads key at version. A missing key yields nil and no error.
func (c *RegionStoreClient) Get(ctx context.Context, key []byte, version uint64) ([]byte, error) {
	return invokeRPCRequest(ctx, c, opGet, common.NewGetRequest(c.reqCtx, key, version), decodeValue)
}

func (c *RegionStoreClient) GetAsync(key []byte, version uint64) *future.Future[[]byte] {
	return invokeRPCRequestAsync(c, opGet, common.NewGetRequest(c.reqCtx, key, version), decodeValue)
}

// BatchGet reads keys at version. Missing keys are left out of the result.
func (c *RegionStoreClient) BatchGet(ctx context.Context, keys [][]byte, version uint64) ([]keyspace.Pair, error) {
	return invokeRPCRequest(ctx, c, opBatchGet, common.NewBatchGetRequest(c.reqCtx, keys, version), decodePairs)
}

func (c *RegionStoreClient) BatchGetAsync(keys [][]byte, version uint64) *future.Future[[]keyspace.Pair] {
	return invokeRPCRequestAsync(c, opBatchGet, common.NewBatchGetRequest(c.reqCtx, keys, version), decodePairs)
}

// Scan returns up to limit pairs starting at startKey, in key order, ending at
// the region end. A limit <= 0 uses the configured scan batch size.
func (c *RegionStoreClient) Scan(ctx context.Context, startKey []byte, version uint64, keyOnly bool, limit int) ([]keyspace.Pair, error) {
	return invokeRPCRequest(ctx, c, opScan, c.scanRequest(startKey, version, keyOnly, limit), decodePairs)
}

func (c *RegionStoreClient) ScanAsync(startKey []byte, version uint64, keyOnly bool, limit int) *future.Future[[]keyspace.Pair] {
	return invokeRPCRequestAsync(c, opScan, c.scanRequest(startKey, version, keyOnly, limit), decodePairs)
}

func (c *RegionStoreClient) scanRequest(startKey []byte, version uint64, keyOnly bool, limit int) *common.Message {
	if limit <= 0 {
		limit = c.scanBatchSize
	}
	n := uint32(math.MaxUint32)
	if uint64(limit) < math.MaxUint32 {
		n = uint32(limit)
	}
	return common.NewScanRequest(c.reqCtx, startKey, version, keyOnly, n)
}

// --------------------------------------------------------------------------
// Raw keyspace
// --------------------------------------------------------------------------

// RawGet reads a raw key. A missing key yields nil and no error.
func (c *RegionStoreClient) RawGet(ctx context.Context, key []byte) ([]byte, error) {
	return invokeRPCRequest(ctx, c, opRawGet, common.NewRawGetRequest(c.reqCtx, key), decodeValue)
}

func (c *RegionStoreClient) RawGetAsync(key []byte) *future.Future[[]byte] {
	return invokeRPCRequestAsync(c, opRawGet, common.NewRawGetRequest(c.reqCtx, key), decodeValue)
}

func (c *RegionStoreClient) RawPut(ctx context.Context, key, value []byte) error {
	_, err := invokeRPCRequest(ctx, c, opRawPut, common.NewRawPutRequest(c.reqCtx, key, value), decodeNothing)
	return err
}

func (c *RegionStoreClient) RawPutAsync(key, value []byte) *future.Future[struct{}] {
	return invokeRPCRequestAsync(c, opRawPut, common.NewRawPutRequest(c.reqCtx, key, value), decodeNothing)
}

func (c *RegionStoreClient) RawDelete(ctx context.Context, key []byte) error {
	_, err := invokeRPCRequest(ctx, c, opRawDelete, common.NewRawDeleteRequest(c.reqCtx, key), decodeNothing)
	return err
}

func (c *RegionStoreClient) RawDeleteAsync(key []byte) *future.Future[struct{}] {
	return invokeRPCRequestAsync(c, opRawDelete, common.NewRawDeleteRequest(c.reqCtx, key), decodeNothing)
}

// --------------------------------------------------------------------------
// Push down
// --------------------------------------------------------------------------

// Coprocess evaluates req of type tp (coprocessor.ReqTypeSelect or
// coprocessor.ReqTypeIndex) over ranges on the store. A payload that cannot
// be decoded is a ProtocolDecodeError, an evaluation failure is a KeyError.
func (c *RegionStoreClient) Coprocess(ctx context.Context, req coprocessor.SelectRequest, tp int64, ranges []keyspace.Range) (*coprocessor.SelectResponse, error) {
	msg, err := c.coprocessorRequest(req, tp, ranges)
	if err != nil {
		return nil, err
	}
	return invokeRPCRequest(ctx, c, opCoprocess, msg, decodeSelect)
}

func (c *RegionStoreClient) CoprocessAsync(req coprocessor.SelectRequest, tp int64, ranges []keyspace.Range) *future.Future[*coprocessor.SelectResponse] {
	msg, err := c.coprocessorRequest(req, tp, ranges)
	if err != nil {
		f := future.New[*coprocessor.SelectResponse]()
		f.Reject(err)
		return f
	}
	return invokeRPCRequestAsync(c, opCoprocess, msg, decodeSelect)
}

func (c *RegionStoreClient) coprocessorRequest(req coprocessor.SelectRequest, tp int64, ranges []keyspace.Range) (*common.Message, error) {
	data, err := coprocessor.EncodeRequest(req)
	if err != nil {
		return nil, &ProtocolDecodeError{Op: opCoprocess, Err: err}
	}
	return common.NewCoprocessorRequest(c.reqCtx, tp, data, ranges), nil
}

// --------------------------------------------------------------------------
// Response decoders
// --------------------------------------------------------------------------

func decodeValue(resp *common.Message) ([]byte, error) {
	if resp.NotFound {
		return nil, nil
	}
	if resp.Value == nil {
		return []byte{}, nil
	}
	return resp.Value, nil
}

func decodePairs(resp *common.Message) ([]keyspace.Pair, error) {
	return resp.Pairs, nil
}

func decodeNothing(*common.Message) (struct{}, error) {
	return struct{}{}, nil
}

func decodeSelect(resp *common.Message) (*coprocessor.SelectResponse, error) {
	sel, err := coprocessor.DecodeResponse(resp.Data)
	if err != nil {
		return nil, &ProtocolDecodeError{Op: opCoprocess, Err: err}
	}
	if sel.Error != nil {
		return nil, &KeyError{Detail: &common.KeyError{Abort: sel.Error.Error()}}
	}
	return sel, nil
}
