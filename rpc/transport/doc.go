// Package transport defines the interfaces for moving encoded requests between
// a region client and a storage node. It provides a common contract that all
// transport implementations fulfill, so the client and server never depend on
// a concrete network protocol.
//
// Key Components:
//
//   - IRPCClientTransport: a connection to exactly one storage node address.
//     It supports blocking (Send) and callback based (SendAsync) requests and
//     reports whether it can still carry requests (IsHealthy). Transports do
//     not retry and do not reconnect; a broken transport stays unhealthy and
//     is replaced by its owner (see package rpc/pool).
//
//   - IRPCServerTransport: accepts requests and hands them to a
//     ServerHandleFunc together with the id of the addressed region.
//
// Implementations live in the sub packages tcp, unix and http. The first two
// share the framed protocol of package base.
package transport
