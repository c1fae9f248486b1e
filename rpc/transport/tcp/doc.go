// Package tcp implements the framed transport of package base over TCP
// sockets.
//
// Both connectors apply the TCPConf and SocketConf options of their config
// (no delay, keep alive, linger, socket buffer sizes) to every connection.
// The default server read buffer is 512 KB.
package tcp
