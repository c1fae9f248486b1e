package coprocessor

import (
	"errors"
	"fmt"

	"github.com/ValentinKolb/regionKV/lib/keyspace"
	"github.com/vmihailenco/msgpack/v5"
)

// Push down request types understood by storage nodes.
const (
	ReqTypeSelect int64 = 101 // rows of a table range
	ReqTypeIndex  int64 = 102 // keys of an index range
)

// ErrMalformedPayload wraps every failure to decode a nested payload.
var ErrMalformedPayload = errors.New("coprocessor: malformed payload")

const selectRequestArrayLen = 4

// AggrKind selects what a storage node sends back for the scanned rows.
type AggrKind uint8

const (
	AggrNone  AggrKind = iota // return the rows
	AggrCount                 // return only the number of rows
)

// SelectRequest is the nested request of a push down call. It is encoded as a
// fixed length msgpack array.
type SelectRequest struct {
	StartTS   uint64
	Aggregate AggrKind
	KeyOnly   bool
	Limit     uint32 // 0 means no limit
}

// SelectError is a failure of the push down evaluation itself.
type SelectError struct {
	Code int32  `msgpack:"code"`
	Msg  string `msgpack:"msg"`
}

func (e *SelectError) Error() string {
	return fmt.Sprintf("select error %d: %s", e.Code, e.Msg)
}

// SelectResponse is the nested result of a push down call.
type SelectResponse struct {
	Error *SelectError    `msgpack:"error,omitempty"`
	Rows  []keyspace.Pair `msgpack:"rows,omitempty"`
	Count uint64          `msgpack:"count"`
}

// --------------------------------------------------------------------------
// Msgpack encoding
// --------------------------------------------------------------------------

var (
	_ msgpack.CustomEncoder = SelectRequest{}
	_ msgpack.CustomDecoder = (*SelectRequest)(nil)
)

func (r SelectRequest) EncodeMsgpack(enc *msgpack.Encoder) error {
	if err := enc.EncodeArrayLen(selectRequestArrayLen); err != nil {
		return err
	}
	if err := enc.EncodeUint(r.StartTS); err != nil {
		return err
	}
	if err := enc.EncodeUint(uint64(r.Aggregate)); err != nil {
		return err
	}
	if err := enc.EncodeBool(r.KeyOnly); err != nil {
		return err
	}
	return enc.EncodeUint(uint64(r.Limit))
}

func (r *SelectRequest) DecodeMsgpack(dec *msgpack.Decoder) error {
	n, err := dec.DecodeArrayLen()
	if err != nil {
		return err
	}
	if n != selectRequestArrayLen {
		return fmt.Errorf("select request has %d fields, want %d", n, selectRequestArrayLen)
	}
	if r.StartTS, err = dec.DecodeUint64(); err != nil {
		return err
	}
	aggr, err := dec.DecodeUint8()
	if err != nil {
		return err
	}
	r.Aggregate = AggrKind(aggr)
	if r.KeyOnly, err = dec.DecodeBool(); err != nil {
		return err
	}
	r.Limit, err = dec.DecodeUint32()
	return err
}

// EncodeRequest encodes a SelectRequest for the Data field of a message.
func EncodeRequest(r SelectRequest) ([]byte, error) {
	return msgpack.Marshal(r)
}

// DecodeRequest decodes the Data field of a push down request.
func DecodeRequest(b []byte) (SelectRequest, error) {
	var r SelectRequest
	if err := msgpack.Unmarshal(b, &r); err != nil {
		return SelectRequest{}, fmt.Errorf("%w: select request: %v", ErrMalformedPayload, err)
	}
	return r, nil
}

// EncodeResponse encodes a SelectResponse for the Data field of a message.
func EncodeResponse(r *SelectResponse) ([]byte, error) {
	return msgpack.Marshal(r)
}

// DecodeResponse decodes the Data field of a push down response.
func DecodeResponse(b []byte) (*SelectResponse, error) {
	if len(b) == 0 {
		return nil, fmt.Errorf("%w: empty select response", ErrMalformedPayload)
	}
	var r SelectResponse
	if err := msgpack.Unmarshal(b, &r); err != nil {
		return nil, fmt.Errorf("%w: select response: %v", ErrMalformedPayload, err)
	}
	return &r, nil
}
