package server

import (
	"errors"
	"fmt"

	"github.com/ValentinKolb/regionKV/lib/keyspace"
	"github.com/ValentinKolb/regionKV/lib/region"
	"github.com/ValentinKolb/regionKV/lib/store"
	"github.com/ValentinKolb/regionKV/rpc/common"
)

func NewKVServerAdapter() IRPCServerAdapter {
	return &kvServerAdapterImpl{}
}

type kvServerAdapterImpl struct{}

func (adapter *kvServerAdapterImpl) Handle(req *common.Message, r *region.Region, s store.IStore) *common.Message {
	if s == nil {
		return common.NewErrorResponse("handler: store is nil")
	}

	switch req.MsgType {
	case common.MsgTGet:
		val, ok, err := s.Get(req.Key, req.Version)
		if err != nil {
			return storeErrorResponse(req.MsgType, err)
		}
		return common.NewValueResponse(req.MsgType, val, ok)

	case common.MsgTBatchGet:
		pairs, err := s.BatchGet(req.Keys, req.Version)
		if err != nil {
			return storeErrorResponse(req.MsgType, err)
		}
		return common.NewPairsResponse(req.MsgType, pairs)

	case common.MsgTScan:
		// a scan never leaves the region it was sent to
		rng := keyspace.Range{Start: req.Key, End: r.Range.End}
		pairs, err := s.Scan(rng, req.Version, req.KeyOnly, int(req.Limit))
		if err != nil {
			return storeErrorResponse(req.MsgType, err)
		}
		return common.NewPairsResponse(req.MsgType, pairs)

	case common.MsgTRawGet:
		val, ok, err := s.RawGet(req.Key)
		if err != nil {
			return storeErrorResponse(req.MsgType, err)
		}
		return common.NewValueResponse(req.MsgType, val, ok)

	case common.MsgTRawPut:
		if err := s.RawPut(req.Key, req.Value); err != nil {
			return storeErrorResponse(req.MsgType, err)
		}
		return common.NewSuccessResponse(req.MsgType)

	case common.MsgTRawDelete:
		if err := s.RawDelete(req.Key); err != nil {
			return storeErrorResponse(req.MsgType, err)
		}
		return common.NewSuccessResponse(req.MsgType)

	default:
		return common.NewErrorResponse(
			fmt.Sprintf("kv adapter: unsupported message type: %s", req.MsgType),
		)
	}
}

// storeErrorResponse reports a lock as key error and everything else as a
// plain error response
func storeErrorResponse(t common.MessageType, err error) *common.Message {
	var storeErr *store.Error
	if errors.As(err, &storeErr) && storeErr.Code == store.RetCKeyLocked && storeErr.Lock != nil {
		return common.NewKeyErrorResponse(t, &common.KeyError{
			Locked: &common.LockInfo{
				Key:         storeErr.Lock.Key,
				Primary:     storeErr.Lock.Primary,
				LockVersion: storeErr.Lock.LockVersion,
				TTL:         storeErr.Lock.TTL,
			},
		})
	}
	return common.NewErrorResponse(err.Error())
}
