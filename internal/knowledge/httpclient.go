package knowledge

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/veridocs/trainforge/internal/types"
)

// maxResponseBytes bounds how much of a response body is read into memory;
// content is truncated again to the configured per-source limit after
// decoding, so reading further is wasted work.
const maxResponseBytes = 8 << 20

// NetHTTPClient implements types.HTTPClient on net/http with a per-call
// timeout layered over the shared transport.
type NetHTTPClient struct {
	client *http.Client
}

// NewNetHTTPClient builds a NetHTTPClient with sane transport defaults.
func NewNetHTTPClient() *NetHTTPClient {
	return &NetHTTPClient{
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        16,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     30 * time.Second,
			},
		},
	}
}

// Get implements types.HTTPClient.
func (c *NetHTTPClient) Get(ctx context.Context, url string, timeout time.Duration) (int, http.Header, []byte, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "trainforge/1.0")

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, nil, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, resp.Header, nil, fmt.Errorf("read body: %w", err)
	}
	return resp.StatusCode, resp.Header, body, nil
}

var _ types.HTTPClient = (*NetHTTPClient)(nil)
