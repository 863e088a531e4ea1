package executor

import (
	"context"
	"errors"
	"testing"
	"time"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/rs/zerolog"

	"migration-sniper/internal/blockhash"
	"migration-sniper/internal/solana"
	"migration-sniper/internal/solana/stub"
)

func populatedCache(t *testing.T, chain *stub.Chain) *blockhash.Cache {
	t.Helper()
	chain.SetBlockhash(solana.Blockhash{
		Hash:                 solanago.HashFromBytes([]byte("testblockhashtestblockhash123456")),
		LastValidBlockHeight: 1000,
	}, nil)

	cache := blockhash.New(chain, time.Hour, zerolog.Nop())
	// A cancelled context makes Start do its initial fetch and return.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cache.Start(ctx)
	if _, ok := cache.Latest(); !ok {
		t.Fatal("cache not populated")
	}
	return cache
}

func testInstructions(owner solanago.PublicKey) []solanago.Instruction {
	dest := solanago.NewWallet().PublicKey()
	return []solanago.Instruction{
		system.NewTransferInstruction(1, owner, dest).Build(),
	}
}

func TestExecutor_RequiresRoute(t *testing.T) {
	wallet := solanago.NewWallet().PrivateKey
	cache := populatedCache(t, stub.NewChain())

	if _, err := New(wallet, cache, nil, nil, nil, TipPolicy{}, false, nil, zerolog.Nop()); err == nil {
		t.Fatal("executor without routes must be rejected")
	}
	if _, err := New(wallet, cache, nil, nil, nil, TipPolicy{}, true, nil, zerolog.Nop()); err != nil {
		t.Fatalf("dry run without routes: %v", err)
	}
}

func TestExecutor_DryRun(t *testing.T) {
	wallet := solanago.NewWallet().PrivateKey
	chain := stub.NewChain()
	cache := populatedCache(t, chain)
	tip := TipPolicy{ProfitPct: 1.0, FloorLamports: 200_000, CapLamports: 2_000_000}

	e, err := New(wallet, cache, nil, nil, nil, tip, true, nil, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}

	receipt, err := e.Execute(context.Background(), testInstructions(wallet.PublicKey()), 0)
	if err != nil {
		t.Fatal(err)
	}
	if !receipt.Confirmed {
		t.Fatal("dry run receipt must be confirmed")
	}
	if receipt.TipLamports != 200_000 {
		t.Fatalf("tip = %d, want floor", receipt.TipLamports)
	}
	if chain.SendCalls != 0 {
		t.Fatal("dry run must not touch the chain")
	}
}

func TestExecutor_NoBlockhash(t *testing.T) {
	wallet := solanago.NewWallet().PrivateKey
	cache := blockhash.New(stub.NewChain(), time.Hour, zerolog.Nop()) // never started

	e, err := New(wallet, cache, nil, nil, nil, TipPolicy{}, true, nil, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.Execute(context.Background(), testInstructions(wallet.PublicKey()), 0); !errors.Is(err, ErrNoBlockhash) {
		t.Fatalf("err = %v, want ErrNoBlockhash", err)
	}
}

func TestExecutor_SenderRouteConfirms(t *testing.T) {
	wallet := solanago.NewWallet().PrivateKey
	chain := stub.NewChain()
	cache := populatedCache(t, chain)
	confirmer := NewConfirmer(chain, nil, 5*time.Millisecond, time.Second, nil, zerolog.Nop())

	e, err := New(wallet, cache, nil, chain, confirmer, TipPolicy{FloorLamports: 1000, CapLamports: 1000}, false, nil, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}

	// Confirm the signature as soon as the sender has it.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if sig, ok := chain.LastSentSignature(); ok {
				chain.SetStatus(sig.String(), solana.SigStatus{Found: true, Confirmed: true, Slot: 42})
				return
			}
			time.Sleep(time.Millisecond)
		}
	}()

	receipt, err := e.Execute(context.Background(), testInstructions(wallet.PublicKey()), 0)
	<-done
	if err != nil {
		t.Fatal(err)
	}
	if !receipt.Confirmed || receipt.Slot != 42 {
		t.Fatalf("receipt = %+v", receipt)
	}
	if chain.SendCalls != 1 {
		t.Fatalf("SendCalls = %d, want 1", chain.SendCalls)
	}
	if receipt.BundleID != "" {
		t.Fatal("no jito route, bundle ID must be empty")
	}
}

func TestExecutor_JitoRouteSurvivesSenderFailure(t *testing.T) {
	wallet := solanago.NewWallet().PrivateKey
	chain := stub.NewChain()
	chain.SendErr = errors.New("sender down")
	cache := populatedCache(t, chain)
	jito := &fakeJito{bundleID: "b42"}
	// Short timeout: the signature never confirms in this test.
	confirmer := NewConfirmer(chain, jito, 5*time.Millisecond, 30*time.Millisecond, nil, zerolog.Nop())

	e, err := New(wallet, cache, jito, chain, confirmer, TipPolicy{}, false, nil, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}

	receipt, err := e.Execute(context.Background(), testInstructions(wallet.PublicKey()), 0)
	if err != nil {
		t.Fatal(err)
	}
	if receipt.BundleID != "b42" {
		t.Fatalf("bundle ID = %q", receipt.BundleID)
	}
	if receipt.Confirmed {
		t.Fatal("unconfirmed submission reported as confirmed")
	}
	if jito.sendCalls != 1 {
		t.Fatalf("jito sendCalls = %d, want 1", jito.sendCalls)
	}
}

func TestExecutor_AllRoutesFailed(t *testing.T) {
	wallet := solanago.NewWallet().PrivateKey
	chain := stub.NewChain()
	chain.SendErr = errors.New("sender down")
	cache := populatedCache(t, chain)
	jito := &fakeJito{sendErr: errors.New("engine down")}
	confirmer := NewConfirmer(chain, jito, 5*time.Millisecond, time.Second, nil, zerolog.Nop())

	e, err := New(wallet, cache, jito, chain, confirmer, TipPolicy{}, false, nil, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.Execute(context.Background(), testInstructions(wallet.PublicKey()), 0); !errors.Is(err, ErrAllRoutesFailed) {
		t.Fatalf("err = %v, want ErrAllRoutesFailed", err)
	}
}

func TestExecutor_FailedOnChain(t *testing.T) {
	wallet := solanago.NewWallet().PrivateKey
	chain := stub.NewChain()
	cache := populatedCache(t, chain)
	confirmer := NewConfirmer(chain, nil, 5*time.Millisecond, time.Second, nil, zerolog.Nop())

	e, err := New(wallet, cache, nil, chain, confirmer, TipPolicy{}, false, nil, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}

	go func() {
		for {
			if sig, ok := chain.LastSentSignature(); ok {
				chain.SetStatus(sig.String(), solana.SigStatus{Found: true, Failed: true, Slot: 9})
				return
			}
			time.Sleep(time.Millisecond)
		}
	}()

	receipt, err := e.Execute(context.Background(), testInstructions(wallet.PublicKey()), 0)
	if err == nil {
		t.Fatal("on-chain failure must surface as an error")
	}
	if receipt == nil || receipt.Confirmed {
		t.Fatalf("receipt = %+v", receipt)
	}
}
