package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/regionKV/rpc/common"
	"github.com/ValentinKolb/regionKV/rpc/transport"
)

// ErrTransportClosed is returned for requests issued after Close.
var ErrTransportClosed = errors.New("http transport closed")

func NewHttpClientTransport() transport.IRPCClientTransport {
	return &httpClientTransport{}
}

type httpClientTransport struct {
	baseURL string
	client  *http.Client
	maxSize int
	closed  atomic.Bool
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCClientTransport)
// --------------------------------------------------------------------------

func (t *httpClientTransport) Connect(endpoint string, config common.ClientConfig) error {
	if endpoint == "" {
		return fmt.Errorf("no endpoint provided")
	}
	if !strings.Contains(endpoint, "://") {
		endpoint = "http://" + endpoint
	}
	t.baseURL = strings.TrimRight(endpoint, "/")
	t.maxSize = config.Transport.MaxMessageSize

	// No client wide timeout: every request carries its own deadline
	t.client = &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: max(1, config.Transport.ConnectionsPerEndpoint),
			IdleConnTimeout:     90 * time.Second,
		},
	}
	return nil
}

func (t *httpClientTransport) Send(ctx context.Context, regionId uint64, req []byte) ([]byte, error) {
	if t.client == nil {
		return nil, fmt.Errorf("http transport not initialized")
	}
	if t.closed.Load() {
		return nil, ErrTransportClosed
	}

	requestURL := fmt.Sprintf("%s/%d", t.baseURL, regionId)
	httpRequest, err := http.NewRequestWithContext(ctx, http.MethodPost, requestURL, bytes.NewReader(req))
	if err != nil {
		return nil, err
	}
	httpRequest.Header.Set("Content-Type", "application/octet-stream")

	httpResponse, err := t.client.Do(httpRequest)
	if err != nil {
		// Do wraps context errors, unwrap them for the caller
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}
	defer func() {
		if err := httpResponse.Body.Close(); err != nil {
			Logger.Errorf("Failed to close response body: %v", err)
		}
	}()

	if httpResponse.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("http error: %s", httpResponse.Status)
	}

	body := io.Reader(httpResponse.Body)
	if t.maxSize > 0 {
		body = io.LimitReader(body, int64(t.maxSize)+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	if t.maxSize > 0 && len(data) > t.maxSize {
		return nil, fmt.Errorf("response exceeds max message size of %d bytes", t.maxSize)
	}
	return data, nil
}

func (t *httpClientTransport) SendAsync(regionId uint64, req []byte, cb transport.ResponseCallback) func() {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		resp, err := t.Send(ctx, regionId, req)
		if ctx.Err() != nil {
			return
		}
		cancel()
		cb(resp, err)
	}()
	return cancel
}

func (t *httpClientTransport) IsHealthy() bool {
	return t.client != nil && !t.closed.Load()
}

func (t *httpClientTransport) Close() error {
	if t.closed.CompareAndSwap(false, true) && t.client != nil {
		t.client.CloseIdleConnections()
	}
	return nil
}
