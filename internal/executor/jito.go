package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"
)

// BundleStatus is the block engine's view of a submitted bundle.
type BundleStatus struct {
	BundleID string
	Landed   bool
	Slot     uint64
}

// BundleSubmitter is the block-construction route. Implemented by
// JitoClient and by test fakes.
type BundleSubmitter interface {
	SendBundle(ctx context.Context, txsBase58 []string) (string, error)
	BundleStatus(ctx context.Context, bundleID string) (*BundleStatus, error)
}

// JitoClient talks JSON-RPC 2.0 to a Jito block engine.
type JitoClient struct {
	endpoint  string
	client    *http.Client
	requestID atomic.Uint64
}

// JitoOption configures JitoClient.
type JitoOption func(*JitoClient)

// WithJitoTimeout sets the HTTP client timeout.
func WithJitoTimeout(d time.Duration) JitoOption {
	return func(c *JitoClient) {
		c.client.Timeout = d
	}
}

// WithJitoHTTPClient sets a custom http.Client.
func WithJitoHTTPClient(client *http.Client) JitoOption {
	return func(c *JitoClient) {
		c.client = client
	}
}

// NewJitoClient creates a client against the block engine endpoint.
func NewJitoClient(endpoint string, opts ...JitoOption) *JitoClient {
	c := &JitoClient{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile-time interface check.
var _ BundleSubmitter = (*JitoClient)(nil)

// rpcRequest represents a JSON-RPC 2.0 request.
type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

// rpcResponse represents a JSON-RPC 2.0 response.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// rpcError represents a JSON-RPC 2.0 error.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// call performs a single JSON-RPC call. No retries: the bundle race is
// latency-critical and the sender route covers a dropped request.
func (c *JitoClient) call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	reqBody := rpcRequest{
		JSONRPC: "2.0",
		ID:      c.requestID.Add(1),
		Method:  method,
		Params:  params,
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", method, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s status %d: %s", method, resp.StatusCode, body)
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if rpcResp.Error != nil {
		return rpcResp.Error
	}
	if result != nil {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return fmt.Errorf("decode result: %w", err)
		}
	}
	return nil
}

// SendBundle submits base58-encoded signed transactions as one bundle
// and returns the bundle ID.
func (c *JitoClient) SendBundle(ctx context.Context, txsBase58 []string) (string, error) {
	var bundleID string
	if err := c.call(ctx, "sendBundle", []interface{}{txsBase58}, &bundleID); err != nil {
		return "", fmt.Errorf("sendBundle: %w", err)
	}
	return bundleID, nil
}

type bundleStatusesResult struct {
	Value []struct {
		BundleID           string `json:"bundle_id"`
		Slot               uint64 `json:"slot"`
		ConfirmationStatus string `json:"confirmation_status"`
		Err                struct {
			Ok interface{} `json:"Ok"`
		} `json:"err"`
	} `json:"value"`
}

// BundleStatus queries one bundle. A bundle the engine does not know
// yet returns a status with Landed false, not an error.
func (c *JitoClient) BundleStatus(ctx context.Context, bundleID string) (*BundleStatus, error) {
	var result bundleStatusesResult
	if err := c.call(ctx, "getBundleStatuses", []interface{}{[]string{bundleID}}, &result); err != nil {
		return nil, fmt.Errorf("getBundleStatuses: %w", err)
	}

	status := &BundleStatus{BundleID: bundleID}
	if len(result.Value) == 0 {
		return status, nil
	}

	v := result.Value[0]
	status.Slot = v.Slot
	switch v.ConfirmationStatus {
	case "confirmed", "finalized":
		status.Landed = true
	}
	return status, nil
}
