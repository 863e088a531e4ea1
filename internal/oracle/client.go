// Package oracle talks to the external scoring service that grades a
// token's survival odds 1-10.
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"migration-sniper/internal/domain"
)

// NeutralScore is assumed when the oracle cannot answer. It keeps the
// position on the standard thresholds instead of guessing.
const NeutralScore = 5

// Scorer grades a token. Implemented by Client and by test fakes.
type Scorer interface {
	Score(ctx context.Context, meta *domain.TokenMetadata) int
}

// Client is the HTTP scoring client with bounded retries.
type Client struct {
	url     string
	retries int
	http    *http.Client
	log     zerolog.Logger
}

// NewClient creates a scoring client. retries counts re-attempts after
// the first try.
func NewClient(url string, timeout time.Duration, retries int, log zerolog.Logger) *Client {
	return &Client{
		url:     url,
		retries: retries,
		http:    &http.Client{Timeout: timeout},
		log:     log.With().Str("component", "oracle").Logger(),
	}
}

// Compile-time interface check.
var _ Scorer = (*Client)(nil)

type scoreRequest struct {
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	Description string `json:"description"`
	Twitter     string `json:"twitter"`
}

type scoreResponse struct {
	Score     int    `json:"score"`
	Rationale string `json:"rationale"`
}

// Score returns the oracle's grade, or NeutralScore on any failure.
// The oracle is advisory: a dead scoring service must never block the
// exit logic, so this method does not return an error.
func (c *Client) Score(ctx context.Context, meta *domain.TokenMetadata) int {
	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				c.log.Warn().Str("mint", meta.Mint).Msg("score cancelled, using neutral")
				return NeutralScore
			case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
			}
		}

		score, err := c.scoreOnce(ctx, meta)
		if err == nil {
			return score
		}
		lastErr = err
	}

	c.log.Warn().Err(lastErr).Str("mint", meta.Mint).Msg("oracle unavailable, using neutral score")
	return NeutralScore
}

func (c *Client) scoreOnce(ctx context.Context, meta *domain.TokenMetadata) (int, error) {
	payload, err := json.Marshal(scoreRequest{
		Name:        meta.Name,
		Symbol:      meta.Symbol,
		Description: meta.Description,
		Twitter:     meta.Twitter,
	})
	if err != nil {
		return 0, fmt.Errorf("marshal score request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+"/score", bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("build score request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("post score request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("oracle status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return 0, fmt.Errorf("read score body: %w", err)
	}

	// Untrusted response: strict parse, strict range.
	var out scoreResponse
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return 0, fmt.Errorf("decode score response: %w", err)
	}
	if out.Score < 1 || out.Score > 10 {
		return 0, fmt.Errorf("score %d out of range", out.Score)
	}

	c.log.Debug().Str("mint", meta.Mint).Int("score", out.Score).Str("rationale", out.Rationale).Msg("scored")
	return out.Score, nil
}
