/*
Package coprocessor implements push down requests: reads that a storage node
evaluates next to its data so only the result travels back to the client.

A push down call carries a request type and an opaque payload in the Data
field of a common.Message. This package defines both payloads:

  - SelectRequest is sent by the client. It is encoded as a fixed msgpack
    array [start_ts, aggregate, key_only, limit].
  - SelectResponse is returned by the storage node. It holds either the rows,
    a row count, or a SelectError.

Request types:

	ReqTypeSelect (101)  rows of the given ranges
	ReqTypeIndex  (102)  keys only of the given ranges

Execute evaluates a request on any Snapshot (lstore implements it). Decoding
failures of either payload wrap ErrMalformedPayload, so a client can tell a
broken payload apart from a failed evaluation.
*/
package coprocessor
