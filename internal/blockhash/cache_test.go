package blockhash

import (
	"context"
	"errors"
	"testing"
	"time"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"

	"migration-sniper/internal/solana"
	"migration-sniper/internal/solana/stub"
)

func TestCache_EmptyBeforeFirstFetch(t *testing.T) {
	chain := stub.NewChain()
	chain.BlockhashErr = errors.New("rpc down")

	c := New(chain, 10*time.Millisecond, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	go c.Start(ctx)
	defer cancel()

	time.Sleep(30 * time.Millisecond)

	if _, ok := c.Latest(); ok {
		t.Fatal("Latest should report not-ok before any successful fetch")
	}
}

func TestCache_ServesFetchedValue(t *testing.T) {
	chain := stub.NewChain()
	hash := solanago.HashFromBytes(bytesOf(0xAB))
	chain.Blockhash = solana.Blockhash{Hash: hash, LastValidBlockHeight: 42}

	c := New(chain, 10*time.Millisecond, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	go c.Start(ctx)
	defer cancel()

	deadline := time.After(time.Second)
	for {
		bh, ok := c.Latest()
		if ok {
			if bh.Hash != hash {
				t.Fatalf("Latest hash = %s, want %s", bh.Hash, hash)
			}
			if bh.LastValidBlockHeight != 42 {
				t.Fatalf("LastValidBlockHeight = %d, want 42", bh.LastValidBlockHeight)
			}
			return
		}
		select {
		case <-deadline:
			t.Fatal("cache never populated")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestCache_RetainsStaleValueOnFailure(t *testing.T) {
	chain := stub.NewChain()
	hash := solanago.HashFromBytes(bytesOf(0x01))
	chain.Blockhash = solana.Blockhash{Hash: hash, LastValidBlockHeight: 7}

	c := New(chain, 5*time.Millisecond, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	go c.Start(ctx)

	waitPopulated(t, c)

	// Break the chain; the cached value must survive.
	chain.SetBlockhash(solana.Blockhash{}, errors.New("rpc down"))
	time.Sleep(50 * time.Millisecond)

	bh, ok := c.Latest()
	cancel()
	if !ok {
		t.Fatal("Latest lost its value after fetch failures")
	}
	if bh.Hash != hash {
		t.Fatalf("Latest hash = %s, want stale %s", bh.Hash, hash)
	}
}

func waitPopulated(t *testing.T, c *Cache) {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		if _, ok := c.Latest(); ok {
			return
		}
		select {
		case <-deadline:
			t.Fatal("cache never populated")
		case <-time.After(2 * time.Millisecond):
		}
	}
}

func bytesOf(b byte) []byte {
	out := make([]byte, 32)
	for i := range out {
		out[i] = b
	}
	return out
}
