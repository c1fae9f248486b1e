package transport

import (
	"context"
	"net"

	"github.com/ValentinKolb/regionKV/rpc/common"
)

// --------------------------------------------------------------------------
// Server Transport
// --------------------------------------------------------------------------

// ServerHandleFunc is a function type that handles incoming requests.
// This function is called by a server transport layer when a request is received.
// It takes the id of the addressed region and the encoded request and returns
// the encoded response.
type ServerHandleFunc func(regionId uint64, req []byte) (resp []byte)

// IRPCServerTransport is the interface for the RPC transport layer of a
// storage node.
type IRPCServerTransport interface {
	// RegisterHandler registers a handler for the transport layer.
	// This handler is called for every received request.
	RegisterHandler(handler ServerHandleFunc)
	// Listen binds config.Transport.Endpoint and starts serving in the
	// background. It returns the bound address (useful with port 0).
	Listen(config common.ServerConfig) (net.Addr, error)
	// Close stops accepting requests and closes all open connections.
	Close() error
}

// --------------------------------------------------------------------------
// Client Transport
// --------------------------------------------------------------------------

// ResponseCallback receives the outcome of an asynchronous request. It is
// called exactly once unless the request was cancelled first.
type ResponseCallback func(resp []byte, err error)

// IRPCClientTransport is a connection to exactly one storage node address.
// Transports never retry: every failure is reported to the caller.
type IRPCClientTransport interface {
	// Connect opens the connection to endpoint.
	Connect(endpoint string, config common.ClientConfig) error
	// Send sends a request and blocks until the response arrives or ctx is done.
	Send(ctx context.Context, regionId uint64, req []byte) (resp []byte, err error)
	// SendAsync sends a request and returns immediately. cb is invoked from
	// another goroutine. The returned cancel func drops interest in the
	// response: a response arriving after cancel is discarded.
	SendAsync(regionId uint64, req []byte, cb ResponseCallback) (cancel func())
	// IsHealthy reports whether the transport can still carry requests.
	IsHealthy() bool
	// Close closes the transport connection. Pending requests fail.
	Close() error
}
