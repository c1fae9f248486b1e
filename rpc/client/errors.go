package client

import (
	"errors"
	"fmt"
	"time"

	"github.com/ValentinKolb/regionKV/rpc/common"
)

// ErrorKind tells the five failure classes of a region client call apart.
type ErrorKind uint8

const (
	KindNone           ErrorKind = iota // not a region client error
	KindConnection                      // no usable connection to the store
	KindTimeout                         // the round trip exceeded the deadline
	KindRouting                         // the cached routing was stale
	KindKey                             // routed correctly, failed on the data
	KindProtocolDecode                  // a response could not be decoded
)

func (k ErrorKind) String() string {
	switch k {
	case KindConnection:
		return "connection"
	case KindTimeout:
		return "timeout"
	case KindRouting:
		return "routing"
	case KindKey:
		return "key"
	case KindProtocolDecode:
		return "protocol_decode"
	default:
		return "none"
	}
}

// KindOf returns the kind of the first region client error in err's chain.
func KindOf(err error) ErrorKind {
	var k interface{ Kind() ErrorKind }
	if errors.As(err, &k) {
		return k.Kind()
	}
	return KindNone
}

// --------------------------------------------------------------------------
// Error Types
// --------------------------------------------------------------------------

// RoutingError reports a region level error. The region manager has already
// been told about the failed (region, store) pair when the caller sees it.
type RoutingError struct {
	RegionID uint64
	StoreID  uint64
	Detail   *common.RegionError
}

func (e *RoutingError) Error() string {
	return fmt.Sprintf("routing error for region %d on store %d: %s", e.RegionID, e.StoreID, e.Detail)
}

func (e *RoutingError) Kind() ErrorKind { return KindRouting }

// LeaderHint returns the leader reported by the store, if any.
func (e *RoutingError) LeaderHint() (peerID uint64, ok bool) {
	if e.Detail == nil || e.Detail.Leader == nil {
		return 0, false
	}
	return e.Detail.Leader.ID, true
}

// KeyError reports a data level failure, e.g. a lock on a read key.
type KeyError struct {
	Detail *common.KeyError
}

func (e *KeyError) Error() string {
	return "key error: " + e.Detail.String()
}

func (e *KeyError) Kind() ErrorKind { return KindKey }

// ConnectionError reports that no request could be carried to Addr.
type ConnectionError struct {
	Addr string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection error to %s: %v", e.Addr, e.Err)
}

func (e *ConnectionError) Unwrap() error   { return e.Err }
func (e *ConnectionError) Kind() ErrorKind { return KindConnection }

// TimeoutError reports that Op got no response within After. Err is
// context.DeadlineExceeded, or context.Canceled when the caller gave up first.
type TimeoutError struct {
	Op    string
	After time.Duration
	Err   error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s: %v", e.Op, e.After, e.Err)
}

func (e *TimeoutError) Unwrap() error   { return e.Err }
func (e *TimeoutError) Kind() ErrorKind { return KindTimeout }

// ProtocolDecodeError reports a response of Op that could not be decoded.
type ProtocolDecodeError struct {
	Op  string
	Err error
}

func (e *ProtocolDecodeError) Error() string {
	return fmt.Sprintf("%s: malformed response: %v", e.Op, e.Err)
}

func (e *ProtocolDecodeError) Unwrap() error   { return e.Err }
func (e *ProtocolDecodeError) Kind() ErrorKind { return KindProtocolDecode }
