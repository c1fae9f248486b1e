package kv

import (
	"context"
	"errors"
	"fmt"

	"github.com/ValentinKolb/regionKV/lib/keyspace"
	"github.com/ValentinKolb/regionKV/lib/region"
	"github.com/ValentinKolb/regionKV/rpc/client"
	"github.com/ValentinKolb/regionKV/rpc/coprocessor"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("client")

// router spreads a command over the regions it touches. Unlike the region
// client it recovers from stale routing: after a routing error it records the
// leader hint, resolves the leader again and reissues the request.
type router struct {
	manager     *region.StaticManager
	factory     *client.Factory
	maxAttempts int
}

// onRegion runs fn against a client for the current leader of regionID
func onRegion[T any](ctx context.Context, r *router, regionID uint64, fn func(*client.RegionStoreClient) (T, error)) (T, error) {
	var (
		zero    T
		lastErr error
	)
	attempts := max(1, r.maxAttempts)
	for attempt := 1; attempt <= attempts; attempt++ {
		c, err := r.factory.CreateForRegion(ctx, regionID)
		if err != nil {
			return zero, err
		}
		v, err := fn(c)
		c.Close()

		var routingErr *client.RoutingError
		if !errors.As(err, &routingErr) {
			return v, err
		}
		lastErr = err

		if hint, ok := routingErr.LeaderHint(); ok {
			r.manager.UpdateLeader(regionID, hint)
		}
		Logger.Debugf("attempt %d/%d on region %d: %v", attempt, attempts, regionID, err)
	}
	return zero, fmt.Errorf("giving up after %d attempts: %w", attempts, lastErr)
}

// regionOf returns the region holding key
func (r *router) regionOf(key []byte) (*region.Region, error) {
	reg, _, err := r.manager.LocateKey(key)
	return reg, err
}

func (r *router) get(ctx context.Context, key []byte, version uint64) ([]byte, error) {
	reg, err := r.regionOf(key)
	if err != nil {
		return nil, err
	}
	return onRegion(ctx, r, reg.ID, func(c *client.RegionStoreClient) ([]byte, error) {
		return c.Get(ctx, key, version)
	})
}

// batchGet groups keys by region and sends one batch per region
func (r *router) batchGet(ctx context.Context, keys [][]byte, version uint64) ([]keyspace.Pair, error) {
	var (
		order  []uint64
		groups = map[uint64][][]byte{}
	)
	for _, key := range keys {
		reg, err := r.regionOf(key)
		if err != nil {
			return nil, err
		}
		if _, ok := groups[reg.ID]; !ok {
			order = append(order, reg.ID)
		}
		groups[reg.ID] = append(groups[reg.ID], key)
	}

	var out []keyspace.Pair
	for _, id := range order {
		pairs, err := onRegion(ctx, r, id, func(c *client.RegionStoreClient) ([]keyspace.Pair, error) {
			return c.BatchGet(ctx, groups[id], version)
		})
		if err != nil {
			return nil, err
		}
		out = append(out, pairs...)
	}
	return out, nil
}

// scan reads up to limit pairs from start on, continuing into the following
// regions until the limit is reached or the keyspace ends
func (r *router) scan(ctx context.Context, start []byte, version uint64, keyOnly bool, limit int) ([]keyspace.Pair, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}

	var out []keyspace.Pair
	for len(out) < limit {
		reg, err := r.regionOf(start)
		if err != nil {
			return nil, err
		}
		from := start
		pairs, err := onRegion(ctx, r, reg.ID, func(c *client.RegionStoreClient) ([]keyspace.Pair, error) {
			return c.Scan(ctx, from, version, keyOnly, limit-len(out))
		})
		if err != nil {
			return nil, err
		}
		out = append(out, pairs...)

		if len(reg.Range.End) == 0 {
			break
		}
		start = reg.Range.End
	}
	return out, nil
}

// count counts the visible keys of [start, end) with a push down request per
// region. An empty end means the end of the keyspace.
func (r *router) count(ctx context.Context, start, end []byte, version uint64) (uint64, error) {
	var total uint64
	for {
		reg, err := r.regionOf(start)
		if err != nil {
			return 0, err
		}

		rng := keyspace.Range{Start: start, End: reg.Range.End}
		last := len(reg.Range.End) == 0
		if len(end) > 0 && (last || keyspace.CompareBytes(end, reg.Range.End) <= 0) {
			rng.End = end
			last = true
		}

		resp, err := onRegion(ctx, r, reg.ID, func(c *client.RegionStoreClient) (*coprocessor.SelectResponse, error) {
			return c.Coprocess(ctx, coprocessor.SelectRequest{
				StartTS:   version,
				Aggregate: coprocessor.AggrCount,
			}, coprocessor.ReqTypeIndex, []keyspace.Range{rng})
		})
		if err != nil {
			return 0, err
		}
		total += resp.Count

		if last {
			return total, nil
		}
		start = reg.Range.End
	}
}

func (r *router) rawGet(ctx context.Context, key []byte) ([]byte, error) {
	reg, err := r.regionOf(key)
	if err != nil {
		return nil, err
	}
	return onRegion(ctx, r, reg.ID, func(c *client.RegionStoreClient) ([]byte, error) {
		return c.RawGet(ctx, key)
	})
}

func (r *router) rawPut(ctx context.Context, key, value []byte) error {
	reg, err := r.regionOf(key)
	if err != nil {
		return err
	}
	_, err = onRegion(ctx, r, reg.ID, func(c *client.RegionStoreClient) (struct{}, error) {
		return struct{}{}, c.RawPut(ctx, key, value)
	})
	return err
}

func (r *router) rawDelete(ctx context.Context, key []byte) error {
	reg, err := r.regionOf(key)
	if err != nil {
		return err
	}
	_, err = onRegion(ctx, r, reg.ID, func(c *client.RegionStoreClient) (struct{}, error) {
		return struct{}{}, c.RawDelete(ctx, key)
	})
	return err
}
