package metadata

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestClient_Get(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/coins/mintA" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Write([]byte(`{
			"mint": "mintA",
			"name": "Test Token",
			"symbol": "TST",
			"description": "a token",
			"twitter": "https://x.com/test",
			"decimals": 6
		}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	meta, err := c.Get(context.Background(), "mintA")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if meta.Symbol != "TST" || meta.Name != "Test Token" {
		t.Fatalf("unexpected metadata: %+v", meta)
	}
	if !meta.HasSocials() {
		t.Fatal("twitter link should count as socials")
	}
}

func TestClient_Get_NoSocials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"name": "Anon", "symbol": "ANON"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	meta, err := c.Get(context.Background(), "mintB")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if meta.HasSocials() {
		t.Fatal("no links given, HasSocials should be false")
	}
	if meta.Mint != "mintB" {
		t.Fatalf("Mint not backfilled: %q", meta.Mint)
	}
	if meta.Decimals != 6 {
		t.Fatalf("Decimals not defaulted: %d", meta.Decimals)
	}
}

func TestClient_Get_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	if _, err := c.Get(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestClient_Get_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"name": `))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	if _, err := c.Get(context.Background(), "mintC"); err == nil {
		t.Fatal("malformed body should be an error")
	}
}
