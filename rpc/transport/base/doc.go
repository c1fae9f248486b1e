// Package base provides the framed protocol shared by the tcp and unix
// transports. It implements client and server transports independent of the
// network medium and is extended with protocol specific connectors.
//
// Wire Format:
//
// Every request and response is one frame:
//
//	+-----------+------------+-----------+-----------+
//	| region id | request id |  length   |  payload  |
//	|  8 bytes  |  8 bytes   |  4 bytes  |  N bytes  |
//	+-----------+------------+-----------+-----------+
//
// All integers are big endian. The request id correlates responses with
// requests, so many requests can be in flight on one connection and responses
// may arrive out of order. Frames above MaxMessageSize are rejected.
//
// Key Components:
//
//   - IClientConnector/IServerConnector: protocol specific dial, listen and
//     socket tuning.
//
//   - clientTransport: one or more connections to a single endpoint with
//     round-robin selection. Pending requests are kept in a lock free map
//     keyed by request id. Any read or write failure marks the transport
//     unhealthy and fails every pending request; there are no retries.
//
//   - serverTransport: accepts connections in the background and processes up
//     to WorkersPerConn requests per connection concurrently. Read buffers
//     come from a sync.Pool.
//
// Thread Safety:
//
//	All public methods are safe for concurrent use. Frame writes on a
//	connection are serialized with a mutex.
package base
