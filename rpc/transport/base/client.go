package base

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/regionKV/rpc/common"
	"github.com/ValentinKolb/regionKV/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("transport/rpc")

var (
	// ErrTransportClosed is reported to requests that are pending or issued
	// after Close.
	ErrTransportClosed = errors.New("transport closed")
	// ErrNotConnected is reported when Connect was never called or failed.
	ErrNotConnected = errors.New("transport not connected")
)

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IClientConnector defines the interface for transport-specific connection operations
type IClientConnector interface {
	// Connect establishes a single connection to endpoint
	Connect(endpoint string) (net.Conn, error)

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string

	// UpgradeConnection applies protocol-specific settings to an established connection
	UpgradeConnection(conn net.Conn, config common.ClientConfig) error
}

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// clientConnection represents a single net connection
type clientConnection struct {
	conn    net.Conn
	writeMu sync.Mutex // Serializes frame writes
	parent  *clientTransport
}

// clientTransport implements the core client transport functionality
// independent of the specific transport medium (unix, tcp, etc.).
// All connections lead to the same endpoint. Request IDs are unique per
// transport, so one pending table serves every connection.
type clientTransport struct {
	connector     IClientConnector
	config        common.ClientConfig
	endpoint      string
	connections   []*clientConnection
	pending       *xsync.MapOf[uint64, transport.ResponseCallback]
	nextConnIndex atomic.Uint64 // Round Robin
	nextRequestID atomic.Uint64
	healthy       atomic.Bool
	closeOnce     sync.Once
}

// -----------------------------------------------------------
// Transport Factory Method (used for tcp, unix, etc.)
// -----------------------------------------------------------

// NewBaseClientTransport creates a new base client transport with the specified connector
func NewBaseClientTransport(connector IClientConnector) transport.IRPCClientTransport {
	return &clientTransport{
		connector: connector,
		pending:   xsync.NewMapOf[uint64, transport.ResponseCallback](),
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCClientTransport)
// --------------------------------------------------------------------------

func (t *clientTransport) Connect(endpoint string, config common.ClientConfig) error {
	if endpoint == "" {
		return fmt.Errorf("no endpoint provided")
	}
	if len(t.connections) > 0 {
		return fmt.Errorf("transport already connected to %s", t.endpoint)
	}

	t.config = config
	t.endpoint = endpoint

	connectionsPerEP := max(1, config.Transport.ConnectionsPerEndpoint)
	t.connections = make([]*clientConnection, 0, connectionsPerEP)

	var lastErr error
	for i := 0; i < connectionsPerEP; i++ {
		conn, err := t.dial()
		if err != nil {
			Logger.Warningf("Failed to connect to %s (connection %d/%d): %v", endpoint, i+1, connectionsPerEP, err)
			lastErr = err
			continue
		}
		clientConn := &clientConnection{conn: conn, parent: t}
		t.connections = append(t.connections, clientConn)
		go clientConn.readResponses()
	}

	if len(t.connections) == 0 {
		return fmt.Errorf("failed to connect to %s: %w", endpoint, lastErr)
	}
	t.healthy.Store(true)

	Logger.Debugf("Connected %d/%d connections to %s using %s transport",
		len(t.connections), connectionsPerEP, endpoint, t.connector.GetName())
	return nil
}

func (t *clientTransport) Send(ctx context.Context, regionId uint64, req []byte) ([]byte, error) {
	type result struct {
		data []byte
		err  error
	}
	respCh := make(chan result, 1)

	cancel := t.SendAsync(regionId, req, func(resp []byte, err error) {
		respCh <- result{resp, err}
	})

	select {
	case r := <-respCh:
		return r.data, r.err
	case <-ctx.Done():
		cancel()
		return nil, ctx.Err()
	}
}

func (t *clientTransport) SendAsync(regionId uint64, req []byte, cb transport.ResponseCallback) func() {
	requestID := t.nextRequestID.Add(1)
	cancel := func() { t.pending.Delete(requestID) }

	if !t.healthy.Load() {
		err := ErrTransportClosed
		if len(t.connections) == 0 {
			err = ErrNotConnected
		}
		go cb(nil, err)
		return cancel
	}

	// Register before writing, the response may arrive before WriteTo returns
	t.pending.Store(requestID, cb)
	if !t.healthy.Load() {
		// shut down between the check above and the registration
		t.fail(requestID, ErrTransportClosed)
		return cancel
	}

	connection := t.getNextConnection()
	connection.writeMu.Lock()
	if err := connection.conn.SetWriteDeadline(time.Now().Add(t.config.Timeout())); err != nil {
		connection.writeMu.Unlock()
		t.fail(requestID, err)
		return cancel
	}
	err := writeFrame(connection.conn, regionId, requestID, req)
	connection.writeMu.Unlock()

	if err != nil {
		// A partial frame leaves the stream unusable
		t.fail(requestID, fmt.Errorf("failed to write request: %w", err))
		t.broken(err)
	}
	return cancel
}

func (t *clientTransport) IsHealthy() bool {
	return t.healthy.Load()
}

func (t *clientTransport) Close() error {
	t.shutdown(ErrTransportClosed)
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// dial opens and upgrades one connection
func (t *clientTransport) dial() (net.Conn, error) {
	conn, err := t.connector.Connect(t.endpoint)
	if err != nil {
		return nil, err
	}
	if err := t.connector.UpgradeConnection(conn, t.config); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to upgrade connection: %w", err)
	}
	return conn, nil
}

// getNextConnection selects the next connection via Round Robin
func (t *clientTransport) getNextConnection() *clientConnection {
	if len(t.connections) == 1 {
		return t.connections[0]
	}
	index := t.nextConnIndex.Add(1) % uint64(len(t.connections))
	return t.connections[index]
}

// fail completes a single pending request with err
func (t *clientTransport) fail(requestID uint64, err error) {
	if cb, ok := t.pending.LoadAndDelete(requestID); ok {
		go cb(nil, err)
	}
}

// broken marks the transport unhealthy after a connection level failure.
// There is no reconnect: the owner replaces an unhealthy transport.
func (t *clientTransport) broken(cause error) {
	if t.healthy.Load() {
		Logger.Warningf("Connection to %s lost: %v", t.endpoint, cause)
	}
	t.shutdown(fmt.Errorf("connection to %s lost: %w", t.endpoint, cause))
}

// shutdown closes all connections once and fails every pending request
func (t *clientTransport) shutdown(reason error) {
	t.closeOnce.Do(func() {
		t.healthy.Store(false)
		for _, c := range t.connections {
			_ = c.conn.Close()
		}
	})
	t.pending.Range(func(requestID uint64, _ transport.ResponseCallback) bool {
		t.fail(requestID, reason)
		return true
	})
}

// readResponses reads responses in a loop and hands them to the waiting requests
func (c *clientConnection) readResponses() {
	t := c.parent
	for {
		regionID, requestID, data, err := readFrame(c.conn, nil, t.config.Transport.MaxMessageSize)
		if err != nil {
			t.broken(err)
			return
		}

		cb, found := t.pending.LoadAndDelete(requestID)
		if !found {
			// cancelled or timed out
			Logger.Debugf("Dropping response for request %d of region %d", requestID, regionID)
			continue
		}
		go cb(data, nil)
	}
}
