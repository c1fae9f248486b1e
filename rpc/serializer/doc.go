// Package serializer provides the wire codecs for common.Message. Clients and
// storage nodes must agree on one implementation.
//
// Key Components:
//
//   - IRPCSerializer: Core interface that all serializer implementations must satisfy.
//
//   - msgpackSerializerImpl: MessagePack encoding with short field names taken
//     from the msgpack struct tags. It is compact, fast and the default.
//
//   - jsonSerializerImpl: JSON encoding, useful for debugging or when the
//     http transport is inspected with ordinary tools.
//
//   - gobSerializerImpl: Go's gob encoding. It is kept for Go only setups and
//     produces the largest payloads of the three.
//
// Decoding never yields a partially filled message silently: corrupt input
// returns an error, which the client reports as a protocol decode error.
//
// Thread Safety:
//
//	All serializer implementations are stateless and safe for concurrent use
//	across multiple goroutines without additional synchronization.
//
// Usage:
//
//	s := serializer.NewMsgpackSerializer()
//	data, err := s.Serialize(message)
//	// ... send data ...
//	var received common.Message
//	err = s.Deserialize(receivedData, &received)
package serializer
