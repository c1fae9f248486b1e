package common

import (
	"encoding/json"
	"fmt"

	"github.com/ValentinKolb/regionKV/lib/keyspace"
	"github.com/ValentinKolb/regionKV/lib/region"
)

// --------------------------------------------------------------------------
// Message Structure
// --------------------------------------------------------------------------

// Message represents a single message used for both requests and responses.
// Which fields are used depends on the type of message.
type Message struct {
	// Type of message
	MsgType MessageType `json:"msg_type" msgpack:"t"`

	// Routing context, set on every request
	Context *RequestContext `json:"ctx,omitempty" msgpack:"ctx,omitempty"`

	// Request fields
	Key      []byte           `json:"key,omitempty" msgpack:"k,omitempty"`        // Used for: Get, RawGet, RawPut, RawDelete, Scan (start key)
	Keys     [][]byte         `json:"keys,omitempty" msgpack:"ks,omitempty"`      // Used for: BatchGet
	Value    []byte           `json:"value,omitempty" msgpack:"v,omitempty"`      // Used for: RawPut (request), Get, RawGet (response)
	Version  uint64           `json:"version,omitempty" msgpack:"ver,omitempty"`  // Used for: Get, BatchGet, Scan
	Limit    uint32           `json:"limit,omitempty" msgpack:"lim,omitempty"`    // Used for: Scan
	KeyOnly  bool             `json:"key_only,omitempty" msgpack:"ko,omitempty"`  // Used for: Scan
	Ranges   []keyspace.Range `json:"ranges,omitempty" msgpack:"rs,omitempty"`    // Used for: Coprocessor
	CopType  int64            `json:"cop_type,omitempty" msgpack:"ct,omitempty"`  // Used for: Coprocessor
	Data     []byte           `json:"data,omitempty" msgpack:"d,omitempty"`       // Used for: Coprocessor (nested request and response payload)
	Pairs    []keyspace.Pair  `json:"pairs,omitempty" msgpack:"ps,omitempty"`     // Used for: BatchGet, Scan responses
	NotFound bool             `json:"not_found,omitempty" msgpack:"nf,omitempty"` // Used for: Get, RawGet responses

	// Response errors. At most one of them is set.
	RegionError *RegionError `json:"region_error,omitempty" msgpack:"re,omitempty"`
	KeyError    *KeyError    `json:"key_error,omitempty" msgpack:"ke,omitempty"`
	Err         string       `json:"err,omitempty" msgpack:"err,omitempty"` // Empty if no error, otherwise contains the error message
}

// RequestContext is the wire form of region.Context.
type RequestContext struct {
	RegionID uint64       `json:"region_id" msgpack:"r"`
	Epoch    region.Epoch `json:"epoch" msgpack:"e"`
	Peer     region.Peer  `json:"peer" msgpack:"p"`
}

// NewRequestContext converts a routing context for the wire.
func NewRequestContext(ctx region.Context) *RequestContext {
	return &RequestContext{
		RegionID: ctx.RegionID(),
		Epoch:    ctx.Epoch(),
		Peer:     ctx.Leader(),
	}
}

// --------------------------------------------------------------------------
// Region and Key Errors
// --------------------------------------------------------------------------

type RegionErrCode uint8

const (
	RegionErrUnknown        RegionErrCode = iota
	RegionErrNotLeader                    // the addressed peer is not the leader
	RegionErrRegionNotFound               // the store does not host the region
	RegionErrEpochNotMatch                // the request carries a stale epoch
	RegionErrKeyNotInRegion               // a key is outside the region range
	RegionErrStoreNotMatch                // the addressed peer lives on another store
	RegionErrServerIsBusy                 // the store rejects load for now
)

func (c RegionErrCode) String() string {
	switch c {
	case RegionErrNotLeader:
		return "not leader"
	case RegionErrRegionNotFound:
		return "region not found"
	case RegionErrEpochNotMatch:
		return "epoch not match"
	case RegionErrKeyNotInRegion:
		return "key not in region"
	case RegionErrStoreNotMatch:
		return "store not match"
	case RegionErrServerIsBusy:
		return "server is busy"
	default:
		return "unknown"
	}
}

// RegionError tells the client that its routing for a region is stale.
type RegionError struct {
	Code     RegionErrCode `json:"code" msgpack:"c"`
	RegionID uint64        `json:"region_id" msgpack:"r"`
	Leader   *region.Peer  `json:"leader,omitempty" msgpack:"l,omitempty"` // Set for NotLeader when the store knows the leader
	Msg      string        `json:"msg,omitempty" msgpack:"m,omitempty"`
}

func (e *RegionError) String() string {
	s := fmt.Sprintf("%s (region %d)", e.Code, e.RegionID)
	if e.Leader != nil {
		s += fmt.Sprintf(", leader is peer %d on store %d", e.Leader.ID, e.Leader.StoreID)
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	return s
}

// LockInfo describes the lock that blocked a read.
type LockInfo struct {
	Key         []byte `json:"key" msgpack:"k"`
	Primary     []byte `json:"primary" msgpack:"p"`
	LockVersion uint64 `json:"lock_version" msgpack:"v"`
	TTL         uint64 `json:"ttl,omitempty" msgpack:"ttl,omitempty"`
}

// KeyError reports a data level failure on a correctly routed request.
type KeyError struct {
	Locked *LockInfo `json:"locked,omitempty" msgpack:"l,omitempty"`
	Abort  string    `json:"abort,omitempty" msgpack:"a,omitempty"`
}

func (e *KeyError) String() string {
	if e.Locked != nil {
		return fmt.Sprintf("key %q locked by primary %q at version %d",
			e.Locked.Key, e.Locked.Primary, e.Locked.LockVersion)
	}
	return e.Abort
}

// --------------------------------------------------------------------------
// Request Factory Functions
// --------------------------------------------------------------------------

// NewGetRequest creates a new versioned Get request
func NewGetRequest(ctx *RequestContext, key []byte, version uint64) *Message {
	return &Message{
		MsgType: MsgTGet,
		Context: ctx,
		Key:     key,
		Version: version,
	}
}

// NewRawGetRequest creates a new RawGet request
func NewRawGetRequest(ctx *RequestContext, key []byte) *Message {
	return &Message{
		MsgType: MsgTRawGet,
		Context: ctx,
		Key:     key,
	}
}

// NewRawPutRequest creates a new RawPut request
func NewRawPutRequest(ctx *RequestContext, key, value []byte) *Message {
	return &Message{
		MsgType: MsgTRawPut,
		Context: ctx,
		Key:     key,
		Value:   value,
	}
}

// NewRawDeleteRequest creates a new RawDelete request
func NewRawDeleteRequest(ctx *RequestContext, key []byte) *Message {
	return &Message{
		MsgType: MsgTRawDelete,
		Context: ctx,
		Key:     key,
	}
}

// NewBatchGetRequest creates a new BatchGet request
func NewBatchGetRequest(ctx *RequestContext, keys [][]byte, version uint64) *Message {
	return &Message{
		MsgType: MsgTBatchGet,
		Context: ctx,
		Keys:    keys,
		Version: version,
	}
}

// NewScanRequest creates a new Scan request
func NewScanRequest(ctx *RequestContext, startKey []byte, version uint64, keyOnly bool, limit uint32) *Message {
	return &Message{
		MsgType: MsgTScan,
		Context: ctx,
		Key:     startKey,
		Version: version,
		KeyOnly: keyOnly,
		Limit:   limit,
	}
}

// NewCoprocessorRequest creates a new push down request. data is the encoded
// nested request understood by the coprocessor of type copType.
func NewCoprocessorRequest(ctx *RequestContext, copType int64, data []byte, ranges []keyspace.Range) *Message {
	return &Message{
		MsgType: MsgTCoprocessor,
		Context: ctx,
		CopType: copType,
		Data:    data,
		Ranges:  ranges,
	}
}

// --------------------------------------------------------------------------
// Response Factory Functions
// --------------------------------------------------------------------------

// NewValueResponse answers Get and RawGet
func NewValueResponse(t MessageType, value []byte, found bool) *Message {
	return &Message{
		MsgType:  t,
		Value:    value,
		NotFound: !found,
	}
}

// NewPairsResponse answers BatchGet and Scan
func NewPairsResponse(t MessageType, pairs []keyspace.Pair) *Message {
	return &Message{
		MsgType: t,
		Pairs:   pairs,
	}
}

// NewCoprocessorResponse answers a Coprocessor request
func NewCoprocessorResponse(data []byte) *Message {
	return &Message{
		MsgType: MsgTCoprocessor,
		Data:    data,
	}
}

// NewSuccessResponse answers RawPut and RawDelete
func NewSuccessResponse(t MessageType) *Message {
	return &Message{MsgType: t}
}

// NewRegionErrorResponse creates a response carrying a region error
func NewRegionErrorResponse(t MessageType, regionErr *RegionError) *Message {
	return &Message{
		MsgType:     t,
		RegionError: regionErr,
	}
}

// NewKeyErrorResponse creates a response carrying a key error
func NewKeyErrorResponse(t MessageType, keyErr *KeyError) *Message {
	return &Message{
		MsgType:  t,
		KeyError: keyErr,
	}
}

// NewErrorResponse creates a new Error response
func NewErrorResponse(err string) *Message {
	return &Message{
		MsgType: MsgTError,
		Err:     err,
	}
}

// --------------------------------------------------------------------------
// Message Type Definitions
// --------------------------------------------------------------------------

type MessageType uint8

// String returns the string representation of the MessageType.
func (t MessageType) String() string {
	switch t {
	case MsgTSuccess:
		return "success"
	case MsgTError:
		return "error"
	case MsgTGet:
		return "get"
	case MsgTRawGet:
		return "rawGet"
	case MsgTRawPut:
		return "rawPut"
	case MsgTRawDelete:
		return "rawDelete"
	case MsgTBatchGet:
		return "batchGet"
	case MsgTScan:
		return "scan"
	case MsgTCoprocessor:
		return "coprocessor"
	default:
		return "unknown"
	}
}

// MarshalJSON implements the json.Marshaller interface for MessageType.
// This allows MessageType to be serialized as a string in JSON.
func (t MessageType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for MessageType.
func (t *MessageType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	for candidate := MsgTSuccess; candidate <= MsgTCoprocessor; candidate++ {
		if candidate.String() == s {
			*t = candidate
			return nil
		}
	}
	if s == "unknown" {
		*t = MsgTUnknown
		return nil
	}
	return fmt.Errorf("unknown message type: %s", s)
}

// --------------------------------------------------------------------------
// Message Type Constants
// --------------------------------------------------------------------------

const (
	// General message types

	MsgTUnknown MessageType = iota
	MsgTSuccess             // Indicates a successful operation
	MsgTError               // Indicates an error the server could not attribute to routing or data

	// Key-value operations

	MsgTGet         // Versioned point read
	MsgTRawGet      // Raw point read
	MsgTRawPut      // Raw write
	MsgTRawDelete   // Raw delete
	MsgTBatchGet    // Versioned multi key read
	MsgTScan        // Versioned range read
	MsgTCoprocessor // Push down computation
)
