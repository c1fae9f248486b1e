package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/regionKV/lib/future"
	"github.com/ValentinKolb/regionKV/rpc/common"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
)

var (
	Logger = logger.GetLogger("client")

	routingFailures = metrics.NewCounter("rkv_client_routing_failures_total")
)

// decodeFunc extracts the typed payload of a classified response
type decodeFunc[T any] func(resp *common.Message) (T, error)

// invokeRPCRequest sends req and blocks until the response is classified.
// The round trip is bounded by the configured timeout.
func invokeRPCRequest[T any](ctx context.Context, c *RegionStoreClient, op string, req *common.Message, decode decodeFunc[T]) (T, error) {
	var zero T
	start := time.Now()

	reqBytes, err := c.encode(op, req)
	if err != nil {
		return zero, observe(op, start, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	// a caller that already gave up does not get a request on the wire
	if err := ctx.Err(); err != nil {
		_, err = c.classify(op, req.MsgType, nil, err)
		return zero, observe(op, start, err)
	}

	respBytes, err := c.conn.Send(ctx, c.ctx.RegionID(), reqBytes)
	resp, err := c.classify(op, req.MsgType, respBytes, err)
	if err != nil {
		return zero, observe(op, start, err)
	}

	v, err := decode(resp)
	return v, observe(op, start, err)
}

// invokeRPCRequestAsync sends req and returns at once. The future resolves
// exactly once: with the response, with its classified error, or with a
// TimeoutError when the configured timeout fires first.
func invokeRPCRequestAsync[T any](c *RegionStoreClient, op string, req *common.Message, decode decodeFunc[T]) *future.Future[T] {
	f := future.New[T]()
	start := time.Now()

	reqBytes, err := c.encode(op, req)
	if err != nil {
		f.Reject(observe(op, start, err))
		return f
	}

	var (
		settled    atomic.Bool
		mu         sync.Mutex // guards cancelSend until SendAsync returned
		cancelSend func()
	)

	mu.Lock()
	defer mu.Unlock()

	timer := time.AfterFunc(c.timeout, func() {
		if !settled.CompareAndSwap(false, true) {
			return
		}
		mu.Lock()
		cancel := cancelSend
		mu.Unlock()
		cancel()

		_, err := c.classify(op, req.MsgType, nil, context.DeadlineExceeded)
		f.Reject(observe(op, start, err))
	})

	cancelSend = c.conn.SendAsync(c.ctx.RegionID(), reqBytes, func(respBytes []byte, sendErr error) {
		if !settled.CompareAndSwap(false, true) {
			return
		}
		timer.Stop()

		resp, err := c.classify(op, req.MsgType, respBytes, sendErr)
		if err != nil {
			f.Reject(observe(op, start, err))
			return
		}
		v, err := decode(resp)
		if err != nil {
			f.Reject(observe(op, start, err))
			return
		}
		observe(op, start, nil)
		f.Resolve(v)
	})
	return f
}

// encode serializes req. A failure is reported as ProtocolDecodeError since
// the request never left the client.
func (c *RegionStoreClient) encode(op string, req *common.Message) ([]byte, error) {
	b, err := c.serializer.Serialize(*req)
	if err != nil {
		return nil, &ProtocolDecodeError{Op: op, Err: fmt.Errorf("encoding request: %w", err)}
	}
	return b, nil
}

// classify turns the outcome of a round trip into a response or one of the
// typed errors. Both calling conventions use it, so a region error notifies
// the region manager exactly once per call in either form.
func (c *RegionStoreClient) classify(op string, reqType common.MessageType, respBytes []byte, sendErr error) (*common.Message, error) {
	if sendErr != nil {
		if errors.Is(sendErr, context.DeadlineExceeded) || errors.Is(sendErr, context.Canceled) {
			return nil, &TimeoutError{Op: op, After: c.timeout, Err: sendErr}
		}
		return nil, &ConnectionError{Addr: c.ctx.Address(), Err: sendErr}
	}

	resp := &common.Message{}
	if err := c.serializer.Deserialize(respBytes, resp); err != nil {
		return nil, &ProtocolDecodeError{Op: op, Err: err}
	}

	switch {
	case resp.RegionError != nil:
		Logger.Debugf("%s on region %d failed at store %d: %s", op, c.ctx.RegionID(), c.ctx.StoreID(), resp.RegionError)
		c.manager.OnRequestFail(c.ctx.RegionID(), c.ctx.StoreID())
		routingFailures.Inc()
		return nil, &RoutingError{RegionID: c.ctx.RegionID(), StoreID: c.ctx.StoreID(), Detail: resp.RegionError}

	case resp.KeyError != nil:
		return nil, &KeyError{Detail: resp.KeyError}

	case resp.MsgType == common.MsgTError || resp.Err != "":
		// the store understood the routing but refused the operation
		return nil, &KeyError{Detail: &common.KeyError{Abort: resp.Err}}

	case resp.MsgType != reqType:
		return nil, &ProtocolDecodeError{Op: op, Err: fmt.Errorf("unexpected message type %s, expected %s", resp.MsgType, reqType)}
	}
	return resp, nil
}

// observe records the outcome of op and returns err unchanged
func observe(op string, start time.Time, err error) error {
	result := "ok"
	if err != nil {
		result = KindOf(err).String()
	}
	metrics.GetOrCreateCounter(fmt.Sprintf(`rkv_client_requests_total{op=%q,result=%q}`, op, result)).Inc()
	metrics.GetOrCreateHistogram(fmt.Sprintf(`rkv_client_request_duration_seconds{op=%q}`, op)).UpdateDuration(start)
	return err
}
