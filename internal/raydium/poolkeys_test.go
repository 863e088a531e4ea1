package raydium

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"

	solanago "github.com/gagliardetto/solana-go"

	"migration-sniper/internal/solana"
	"migration-sniper/internal/solana/stub"
)

// buildMarketAccount lays out a minimal serum MarketStateV3 with a
// nonce that actually derives a vault signer PDA.
func buildMarketAccount(t *testing.T, market, program solanago.PublicKey) ([]byte, map[string]solanago.PublicKey) {
	t.Helper()

	data := make([]byte, marketMinSize)
	fields := map[string]solanago.PublicKey{
		"bids":       solanago.NewWallet().PublicKey(),
		"asks":       solanago.NewWallet().PublicKey(),
		"eventQueue": solanago.NewWallet().PublicKey(),
		"baseVault":  solanago.NewWallet().PublicKey(),
		"quoteVault": solanago.NewWallet().PublicKey(),
	}
	copy(data[marketBidsOff:], fields["bids"].Bytes())
	copy(data[marketAsksOff:], fields["asks"].Bytes())
	copy(data[marketEventQueueOff:], fields["eventQueue"].Bytes())
	copy(data[marketBaseVaultOff:], fields["baseVault"].Bytes())
	copy(data[marketQuoteVaultOff:], fields["quoteVault"].Bytes())

	for nonce := uint64(0); nonce < 255; nonce++ {
		signer, err := marketVaultSigner(market, program, nonce)
		if err != nil {
			continue
		}
		binary.LittleEndian.PutUint64(data[marketVaultSignerNonceOff:], nonce)
		fields["vaultSigner"] = signer
		return data, fields
	}
	t.Fatal("no valid vault signer nonce found")
	return nil, nil
}

func initializeTx(accounts []solanago.PublicKey) *solana.TxDetail {
	return &solana.TxDetail{
		FeePayer: MigrationAuthority,
		Instructions: []solana.InstructionDetail{
			{
				ProgramID: AMMProgramID,
				Accounts:  accounts,
				Data:      []byte{initialize2Tag, 0, 0},
			},
		},
	}
}

func migrationAccounts(baseMint, market, marketProgram solanago.PublicKey) []solanago.PublicKey {
	accounts := make([]solanago.PublicKey, ixMarketID+1)
	for i := range accounts {
		accounts[i] = solanago.NewWallet().PublicKey()
	}
	accounts[ixCoinMint] = baseMint
	accounts[ixPcMint] = WSOLMint
	accounts[ixMarketProgram] = marketProgram
	accounts[ixMarketID] = market
	return accounts
}

func TestExtractPoolKeys(t *testing.T) {
	baseMint := solanago.NewWallet().PublicKey()
	market := solanago.NewWallet().PublicKey()
	marketProgram := solanago.NewWallet().PublicKey()

	chain := stub.NewChain()
	marketData, fields := buildMarketAccount(t, market, marketProgram)
	chain.Accounts[market.String()] = marketData

	accounts := migrationAccounts(baseMint, market, marketProgram)
	keys, err := ExtractPoolKeys(context.Background(), chain, initializeTx(accounts))
	if err != nil {
		t.Fatalf("ExtractPoolKeys: %v", err)
	}

	if keys.BaseMint != baseMint {
		t.Fatalf("BaseMint = %s, want %s", keys.BaseMint, baseMint)
	}
	if keys.QuoteMint != WSOLMint {
		t.Fatalf("QuoteMint = %s, want WSOL", keys.QuoteMint)
	}
	if keys.AmmID != accounts[ixAmmID] || keys.AmmOpenOrders != accounts[ixAmmOpenOrders] {
		t.Fatal("amm accounts not taken from fixed indices")
	}
	if keys.MarketBids != fields["bids"] || keys.MarketAsks != fields["asks"] {
		t.Fatal("market book accounts not decoded")
	}
	if keys.MarketEventQueue != fields["eventQueue"] {
		t.Fatal("event queue not decoded")
	}
	if keys.MarketVaultSigner != fields["vaultSigner"] {
		t.Fatal("vault signer derivation mismatch")
	}
}

func TestExtractPoolKeys_SwappedSides(t *testing.T) {
	// Some pools list WSOL as coin and the token as pc; the extractor
	// must normalize so base is always the token.
	baseMint := solanago.NewWallet().PublicKey()
	market := solanago.NewWallet().PublicKey()
	marketProgram := solanago.NewWallet().PublicKey()

	chain := stub.NewChain()
	marketData, _ := buildMarketAccount(t, market, marketProgram)
	chain.Accounts[market.String()] = marketData

	accounts := migrationAccounts(baseMint, market, marketProgram)
	accounts[ixCoinMint] = WSOLMint
	accounts[ixPcMint] = baseMint
	coinVault := accounts[ixCoinVault]
	pcVault := accounts[ixPcVault]

	keys, err := ExtractPoolKeys(context.Background(), chain, initializeTx(accounts))
	if err != nil {
		t.Fatalf("ExtractPoolKeys: %v", err)
	}
	if keys.BaseMint != baseMint {
		t.Fatalf("BaseMint = %s, want token mint", keys.BaseMint)
	}
	if keys.BaseVault != pcVault || keys.QuoteVault != coinVault {
		t.Fatal("vaults not swapped with mints")
	}
}

func TestExtractPoolKeys_NoWsolSide(t *testing.T) {
	baseMint := solanago.NewWallet().PublicKey()
	market := solanago.NewWallet().PublicKey()
	accounts := migrationAccounts(baseMint, market, solanago.NewWallet().PublicKey())
	accounts[ixPcMint] = solanago.NewWallet().PublicKey() // not WSOL

	_, err := ExtractPoolKeys(context.Background(), stub.NewChain(), initializeTx(accounts))
	if !errors.Is(err, ErrNotWsolPool) {
		t.Fatalf("err = %v, want ErrNotWsolPool", err)
	}
}

func TestExtractPoolKeys_NoInitializeInstruction(t *testing.T) {
	tx := &solana.TxDetail{
		Instructions: []solana.InstructionDetail{
			{ProgramID: solanago.NewWallet().PublicKey(), Data: []byte{initialize2Tag}},
			{ProgramID: AMMProgramID, Data: []byte{swapBaseInTag}}, // swap, not init
		},
	}
	_, err := ExtractPoolKeys(context.Background(), stub.NewChain(), tx)
	if !errors.Is(err, ErrNoInitialize) {
		t.Fatalf("err = %v, want ErrNoInitialize", err)
	}
}

func TestExtractPoolKeys_TruncatedAccounts(t *testing.T) {
	tx := initializeTx([]solanago.PublicKey{solanago.NewWallet().PublicKey()})
	_, err := ExtractPoolKeys(context.Background(), stub.NewChain(), tx)
	if !errors.Is(err, ErrMalformedAccounts) {
		t.Fatalf("err = %v, want ErrMalformedAccounts", err)
	}
}
