package coprocessor

import (
	"github.com/ValentinKolb/regionKV/lib/keyspace"
)

// Error codes of SelectError.
const (
	ErrCodeUnsupportedType int32 = 1
	ErrCodeBadRange        int32 = 2
)

// Snapshot is the read view a push down request is evaluated on.
type Snapshot interface {
	Scan(r keyspace.Range, version uint64, keyOnly bool, limit int) ([]keyspace.Pair, error)
}

// Execute evaluates req over ranges on snap. Evaluation failures are reported
// inside the response. Errors of the snapshot itself (such as a lock on a
// scanned key) are returned unchanged so the caller can report them as such.
func Execute(snap Snapshot, tp int64, req SelectRequest, ranges []keyspace.Range) (*SelectResponse, error) {
	keyOnly := req.KeyOnly
	switch tp {
	case ReqTypeSelect:
	case ReqTypeIndex:
		keyOnly = true
	default:
		return &SelectResponse{Error: &SelectError{
			Code: ErrCodeUnsupportedType,
			Msg:  "unsupported request type",
		}}, nil
	}
	if req.Aggregate == AggrCount {
		keyOnly = true
	}

	resp := &SelectResponse{}
	remaining := int(req.Limit)
	for _, r := range ranges {
		if len(r.End) > 0 && keyspace.CompareBytes(r.Start, r.End) > 0 {
			return &SelectResponse{Error: &SelectError{
				Code: ErrCodeBadRange,
				Msg:  "range start is after its end: " + r.String(),
			}}, nil
		}

		limit := 0
		if req.Limit > 0 {
			if remaining <= 0 {
				break
			}
			limit = remaining
		}

		pairs, err := snap.Scan(r, req.StartTS, keyOnly, limit)
		if err != nil {
			return nil, err
		}
		resp.Count += uint64(len(pairs))
		if req.Aggregate != AggrCount {
			resp.Rows = append(resp.Rows, pairs...)
		}
		remaining -= len(pairs)
	}
	return resp, nil
}
