package common

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultTimeoutMillisecond = 20_000
	DefaultScanBatchSize      = 10_240
	DefaultPoolSize           = 64
	DefaultMaxMessageSize     = 64 << 20 // 64 MiB
)

// --------------------------------------------------------------------------
// Shared socket configuration
// --------------------------------------------------------------------------

// SocketConf holds socket buffer sizes in bytes. Zero keeps the OS default.
type SocketConf struct {
	WriteBufferSize int
	ReadBufferSize  int
}

// TCPConf holds TCP specific socket options.
type TCPConf struct {
	TCPNoDelay      bool
	TCPKeepAliveSec int
	TCPLingerSec    int // negative keeps the OS default
}

// --------------------------------------------------------------------------
// RPC server configuration struct
// --------------------------------------------------------------------------

type ServerTransportConfig struct {
	// Endpoint to listen on (host:port or a unix socket path)
	Endpoint string
	// Maximum concurrent requests handled per connection
	WorkersPerConn int
	// Size of pooled read buffers in bytes
	BufferSize int
	// Largest accepted frame in bytes
	MaxMessageSize int
	SocketConf
	TCPConf
}

// ServerConfig holds all configuration parameters of a storage node.
type ServerConfig struct {
	// StoreID is the id of this node in the topology
	StoreID uint64
	// Topology is the path of the YAML topology file
	Topology string

	TimeoutSecond int64

	// MetricsEndpoint serves /metrics in Prometheus text format if set
	MetricsEndpoint string

	// Logging configuration
	LogLevel string

	Transport ServerTransportConfig
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Storage Node")
	addField("Store ID", strconv.FormatUint(c.StoreID, 10))
	addField("Topology", c.Topology)

	addSection("RPC Server")
	addField("Endpoint", c.Transport.Endpoint)
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Workers Per Connection", strconv.Itoa(c.Transport.WorkersPerConn))
	addField("Max Message Size", fmt.Sprintf("%d bytes", c.Transport.MaxMessageSize))
	if c.MetricsEndpoint != "" {
		addField("Metrics", c.MetricsEndpoint)
	}

	addSection("Logging")
	addField("Log Level", c.LogLevel)

	return sb.String()
}

// --------------------------------------------------------------------------
// RPC client configuration struct
// --------------------------------------------------------------------------

type ClientTransportConfig struct {
	// Connections opened per storage node address
	ConnectionsPerEndpoint int
	// Largest accepted frame in bytes
	MaxMessageSize int
	SocketConf
	TCPConf
}

type ClientConfig struct {
	// TimeoutMillisecond bounds every round trip. It applies process wide.
	TimeoutMillisecond int
	// ScanBatchSize is the page size used when a scan has no explicit limit
	ScanBatchSize int
	// PoolSize bounds the number of cached storage node connections
	PoolSize int
	// Logging configuration
	LogLevel string

	Transport ClientTransportConfig
}

// DefaultClientConfig returns the configuration used when nothing is set.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		TimeoutMillisecond: DefaultTimeoutMillisecond,
		ScanBatchSize:      DefaultScanBatchSize,
		PoolSize:           DefaultPoolSize,
		LogLevel:           "info",
		Transport: ClientTransportConfig{
			ConnectionsPerEndpoint: 1,
			MaxMessageSize:         DefaultMaxMessageSize,
			TCPConf:                TCPConf{TCPNoDelay: true, TCPLingerSec: -1},
		},
	}
}

// Timeout returns the round trip deadline.
func (c *ClientConfig) Timeout() time.Duration {
	if c.TimeoutMillisecond <= 0 {
		return DefaultTimeoutMillisecond * time.Millisecond
	}
	return time.Duration(c.TimeoutMillisecond) * time.Millisecond
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// General Client Settings
	addSection("Client Configuration")
	addField("Timeout", c.Timeout().String())
	addField("Scan Batch Size", strconv.Itoa(c.ScanBatchSize))
	addField("Pool Size", strconv.Itoa(c.PoolSize))

	addSection("Transport")
	addField("Conn Per Endpoint", strconv.Itoa(max(1, c.Transport.ConnectionsPerEndpoint)))
	addField("Max Message Size", fmt.Sprintf("%d bytes", c.Transport.MaxMessageSize))
	addField("TCP No Delay", strconv.FormatBool(c.Transport.TCPNoDelay))

	return sb.String()
}
