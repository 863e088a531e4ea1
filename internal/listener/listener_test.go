package listener

import (
	"context"
	"encoding/binary"
	"sync"
	"testing"
	"time"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"

	"migration-sniper/internal/raydium"
	"migration-sniper/internal/solana"
	"migration-sniper/internal/solana/stub"
	"migration-sniper/internal/whitelist"
)

type fakeWS struct {
	ch chan solana.LogNotification
}

func (f *fakeWS) SubscribeLogs(_ context.Context, _ solana.LogsFilter) (<-chan solana.LogNotification, error) {
	return f.ch, nil
}

func (f *fakeWS) Close() error { return nil }

type recordingHandler struct {
	mu         sync.Mutex
	migrations []*Migration
}

func (h *recordingHandler) HandleMigration(_ context.Context, m *Migration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.migrations = append(h.migrations, m)
}

func (h *recordingHandler) all() []*Migration {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]*Migration(nil), h.migrations...)
}

// Serum MarketStateV3 offsets, fixed by the protocol.
const (
	mktNonceOff      = 45
	mktBaseVaultOff  = 117
	mktQuoteVaultOff = 165
	mktEventQueueOff = 253
	mktBidsOff       = 285
	mktAsksOff       = 317
	mktSize          = 349
)

func marketAccountData(t *testing.T, market, program solanago.PublicKey) []byte {
	t.Helper()
	data := make([]byte, mktSize)
	for _, off := range []int{mktBaseVaultOff, mktQuoteVaultOff, mktEventQueueOff, mktBidsOff, mktAsksOff} {
		pk := solanago.NewWallet().PublicKey()
		copy(data[off:], pk.Bytes())
	}
	for nonce := uint64(0); nonce < 255; nonce++ {
		seed := make([]byte, 8)
		binary.LittleEndian.PutUint64(seed, nonce)
		if _, err := solanago.CreateProgramAddress([][]byte{market.Bytes(), seed}, program); err == nil {
			binary.LittleEndian.PutUint64(data[mktNonceOff:], nonce)
			return data
		}
	}
	t.Fatal("no valid vault signer nonce found")
	return nil
}

// migrationTx installs a full initialize2 transaction plus its serum
// market account on the stub chain and returns the signature string.
func migrationTx(t *testing.T, chain *stub.Chain, mint solanago.PublicKey, sigByte byte, feePayer solanago.PublicKey) string {
	t.Helper()

	market := solanago.NewWallet().PublicKey()
	marketProgram := solanago.NewWallet().PublicKey()
	chain.Accounts[market.String()] = marketAccountData(t, market, marketProgram)

	accounts := make([]solanago.PublicKey, 17)
	for i := range accounts {
		accounts[i] = solanago.NewWallet().PublicKey()
	}
	accounts[8] = mint             // coin mint
	accounts[9] = raydium.WSOLMint // pc mint
	accounts[15] = marketProgram
	accounts[16] = market

	var sig solanago.Signature
	for i := range sig {
		sig[i] = sigByte
	}
	chain.Transactions[sig.String()] = &solana.TxDetail{
		Signature: sig,
		FeePayer:  feePayer,
		Instructions: []solana.InstructionDetail{
			{ProgramID: raydium.AMMProgramID, Accounts: accounts, Data: []byte{1, 0, 0}},
		},
	}
	return sig.String()
}

func initializeNotification(sig string) solana.LogNotification {
	return solana.LogNotification{
		Signature: sig,
		Logs:      []string{"Program log: initialize2: InitializeInstruction2"},
	}
}

func testConfig() Config {
	return Config{
		QueueSize:       8,
		FetchRetries:    2,
		FetchRetryDelay: time.Millisecond,
		Heartbeat:       time.Hour,
	}
}

func runListener(t *testing.T, l *Listener, ws *fakeWS, notes ...solana.LogNotification) {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- l.Run(context.Background()) }()
	for _, n := range notes {
		ws.ch <- n
	}
	close(ws.ch)
	if err := <-done; err != nil {
		t.Fatalf("listener: %v", err)
	}
}

func TestListener_VerifiedMigrationReachesHandler(t *testing.T) {
	mint := solanago.NewWallet().PublicKey()
	chain := stub.NewChain()
	chain.Mints[mint.String()] = &solana.MintInfo{Supply: 1_000_000}
	sig := migrationTx(t, chain, mint, 1, raydium.MigrationAuthority)

	wl := whitelist.New(10 * time.Minute)
	wl.Upsert(whitelist.Entry{Mint: mint.String(), Symbol: "TEST", Decimals: 6})
	handler := &recordingHandler{}
	ws := &fakeWS{ch: make(chan solana.LogNotification)}
	l := New(ws, chain, wl, handler, testConfig(), nil, zerolog.Nop())

	runListener(t, l, ws, initializeNotification(sig))

	got := handler.all()
	if len(got) != 1 {
		t.Fatalf("handler calls = %d, want 1", len(got))
	}
	if got[0].Entry.Symbol != "TEST" {
		t.Fatalf("entry = %+v", got[0].Entry)
	}
	if !got[0].Keys.BaseMint.Equals(mint) {
		t.Fatalf("base mint = %s", got[0].Keys.BaseMint)
	}
	if wl.Has(mint.String()) {
		t.Fatal("entry must be consumed")
	}
}

func TestListener_TrapFeePayerDropped(t *testing.T) {
	mint := solanago.NewWallet().PublicKey()
	chain := stub.NewChain()
	chain.Mints[mint.String()] = &solana.MintInfo{}
	sig := migrationTx(t, chain, mint, 2, solanago.NewWallet().PublicKey()) // not the authority

	wl := whitelist.New(10 * time.Minute)
	wl.Upsert(whitelist.Entry{Mint: mint.String()})
	handler := &recordingHandler{}
	ws := &fakeWS{ch: make(chan solana.LogNotification)}
	l := New(ws, chain, wl, handler, testConfig(), nil, zerolog.Nop())

	runListener(t, l, ws, initializeNotification(sig))

	if len(handler.all()) != 0 {
		t.Fatal("trap pool must not reach the handler")
	}
	if !wl.Has(mint.String()) {
		t.Fatal("trap must not consume the whitelist entry")
	}
}

func TestListener_UnlistedMintDropped(t *testing.T) {
	mint := solanago.NewWallet().PublicKey()
	chain := stub.NewChain()
	chain.Mints[mint.String()] = &solana.MintInfo{}
	sig := migrationTx(t, chain, mint, 3, raydium.MigrationAuthority)

	handler := &recordingHandler{}
	ws := &fakeWS{ch: make(chan solana.LogNotification)}
	l := New(ws, chain, whitelist.New(10*time.Minute), handler, testConfig(), nil, zerolog.Nop())

	runListener(t, l, ws, initializeNotification(sig))

	if len(handler.all()) != 0 {
		t.Fatal("unlisted mint must not reach the handler")
	}
}

func TestListener_AuthorityRecheckDrops(t *testing.T) {
	mint := solanago.NewWallet().PublicKey()
	chain := stub.NewChain()
	auth := solanago.NewWallet().PublicKey()
	chain.Mints[mint.String()] = &solana.MintInfo{MintAuthority: &auth}
	sig := migrationTx(t, chain, mint, 4, raydium.MigrationAuthority)

	wl := whitelist.New(10 * time.Minute)
	wl.Upsert(whitelist.Entry{Mint: mint.String()})
	handler := &recordingHandler{}
	ws := &fakeWS{ch: make(chan solana.LogNotification)}
	l := New(ws, chain, wl, handler, testConfig(), nil, zerolog.Nop())

	runListener(t, l, ws, initializeNotification(sig))

	if len(handler.all()) != 0 {
		t.Fatal("re-minted token must be dropped at trade time")
	}
}

func TestListener_DuplicateEventBuysOnce(t *testing.T) {
	mint := solanago.NewWallet().PublicKey()
	chain := stub.NewChain()
	chain.Mints[mint.String()] = &solana.MintInfo{}
	sig1 := migrationTx(t, chain, mint, 5, raydium.MigrationAuthority)
	sig2 := migrationTx(t, chain, mint, 6, raydium.MigrationAuthority)

	wl := whitelist.New(10 * time.Minute)
	wl.Upsert(whitelist.Entry{Mint: mint.String()})
	handler := &recordingHandler{}
	ws := &fakeWS{ch: make(chan solana.LogNotification)}
	l := New(ws, chain, wl, handler, testConfig(), nil, zerolog.Nop())

	runListener(t, l, ws, initializeNotification(sig1), initializeNotification(sig2))

	if got := len(handler.all()); got != 1 {
		t.Fatalf("handler calls = %d, want exactly 1", got)
	}
}

func TestListener_IgnoresNonInitializeLogs(t *testing.T) {
	handler := &recordingHandler{}
	ws := &fakeWS{ch: make(chan solana.LogNotification)}
	l := New(ws, stub.NewChain(), whitelist.New(10*time.Minute), handler, testConfig(), nil, zerolog.Nop())

	runListener(t, l, ws, solana.LogNotification{
		Signature: "sig",
		Logs:      []string{"Program log: ray_log swap"},
	})

	if len(handler.all()) != 0 {
		t.Fatal("swap logs must be ignored")
	}
}

func TestListener_MissingTransactionDropped(t *testing.T) {
	handler := &recordingHandler{}
	ws := &fakeWS{ch: make(chan solana.LogNotification)}
	l := New(ws, stub.NewChain(), whitelist.New(10*time.Minute), handler, testConfig(), nil, zerolog.Nop())

	var sig solanago.Signature
	sig[0] = 7
	runListener(t, l, ws, initializeNotification(sig.String()))

	if len(handler.all()) != 0 {
		t.Fatal("unfetchable transaction must be dropped")
	}
}
