// Package metadata queries the off-chain token metadata service.
package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"migration-sniper/internal/domain"
)

// ErrNotFound is returned when the service does not know the mint.
var ErrNotFound = errors.New("token metadata not found")

// Client fetches token metadata and social links by mint.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client against the service base URL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// Get fetches metadata for one mint. The response is untrusted input:
// anything that does not parse is an error, never a partial result.
func (c *Client) Get(ctx context.Context, mint string) (*domain.TokenMetadata, error) {
	url := fmt.Sprintf("%s/coins/%s", c.baseURL, mint)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build metadata request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch metadata: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("metadata service status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read metadata body: %w", err)
	}

	var meta domain.TokenMetadata
	if err := json.Unmarshal(body, &meta); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	if meta.Mint == "" {
		meta.Mint = mint
	}
	if meta.Decimals == 0 {
		// pump.fun mints are uniformly 6 decimals.
		meta.Decimals = 6
	}
	return &meta, nil
}
