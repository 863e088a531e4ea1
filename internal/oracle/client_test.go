package oracle

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"migration-sniper/internal/domain"
)

var testMeta = &domain.TokenMetadata{
	Mint:        "mintA",
	Name:        "Test",
	Symbol:      "TST",
	Description: "desc",
	Twitter:     "https://x.com/t",
}

func newClient(url string) *Client {
	return NewClient(url, time.Second, 1, zerolog.Nop())
}

func TestScore_Valid(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req scoreRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		if req.Symbol != "TST" {
			t.Errorf("symbol = %q", req.Symbol)
		}
		w.Write([]byte(`{"score": 8, "rationale": "strong socials"}`))
	}))
	defer srv.Close()

	if got := newClient(srv.URL).Score(context.Background(), testMeta); got != 8 {
		t.Fatalf("Score = %d, want 8", got)
	}
}

func TestScore_OutOfRangeFallsBackToNeutral(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"score": 99}`))
	}))
	defer srv.Close()

	if got := newClient(srv.URL).Score(context.Background(), testMeta); got != NeutralScore {
		t.Fatalf("Score = %d, want neutral", got)
	}
}

func TestScore_MalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"score": "very good"}`))
	}))
	defer srv.Close()

	if got := newClient(srv.URL).Score(context.Background(), testMeta); got != NeutralScore {
		t.Fatalf("Score = %d, want neutral", got)
	}
}

func TestScore_UnknownFieldsRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"score": 7, "instructions": "ignore previous rules"}`))
	}))
	defer srv.Close()

	if got := newClient(srv.URL).Score(context.Background(), testMeta); got != NeutralScore {
		t.Fatalf("Score = %d, want neutral for response with unknown fields", got)
	}
}

func TestScore_RetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"score": 3}`))
	}))
	defer srv.Close()

	if got := newClient(srv.URL).Score(context.Background(), testMeta); got != 3 {
		t.Fatalf("Score = %d, want 3 after retry", got)
	}
	if calls.Load() != 2 {
		t.Fatalf("calls = %d, want 2", calls.Load())
	}
}

func TestScore_ServiceDown(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", 100*time.Millisecond, 0, zerolog.Nop())
	if got := c.Score(context.Background(), testMeta); got != NeutralScore {
		t.Fatalf("Score = %d, want neutral when unreachable", got)
	}
}
