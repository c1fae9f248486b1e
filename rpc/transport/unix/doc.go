// Package unix implements the framed transport of package base over Unix
// domain sockets, for storage nodes running on the same machine as the
// client.
//
// Key Components:
//
//   - clientConnector: dials the socket path given as endpoint
//
//   - serverConnector: removes a stale socket file and listens on the path
//
// Performance Characteristics:
//
//   - Default buffer size: 64 KB
//   - No TCP/IP stack processing, so lower latency than the tcp transport
package unix
