package raydium

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	solanago "github.com/gagliardetto/solana-go"

	"migration-sniper/internal/domain"
	"migration-sniper/internal/solana"
)

// Errors surfaced during pool key extraction. All of them mean "drop the
// event", they differ only in what gets logged.
var (
	ErrNoInitialize      = errors.New("no initialize2 instruction in transaction")
	ErrMalformedAccounts = errors.New("initialize2 account list malformed")
	ErrNotWsolPool       = errors.New("neither pool mint is WSOL")
)

// initialize2 fixed account positions.
const (
	ixAmmID         = 4
	ixAmmAuthority  = 5
	ixAmmOpenOrders = 6
	ixLpMint        = 7
	ixCoinMint      = 8
	ixPcMint        = 9
	ixCoinVault     = 10
	ixPcVault       = 11
	ixTargetOrders  = 13
	ixMarketProgram = 15
	ixMarketID      = 16
	ixMinAccounts   = 17
)

// ExtractPoolKeys pulls the AMM account set out of a fetched
// initialize2 transaction, then completes it with the serum market
// accounts read from chain. Base is always the non-WSOL side.
func ExtractPoolKeys(ctx context.Context, chain solana.Chain, tx *solana.TxDetail) (*domain.PoolKeys, error) {
	var init *solana.InstructionDetail
	for i := range tx.Instructions {
		ix := &tx.Instructions[i]
		if !ix.ProgramID.Equals(AMMProgramID) {
			continue
		}
		if len(ix.Data) == 0 || ix.Data[0] != initialize2Tag {
			continue
		}
		init = ix
		break
	}
	if init == nil {
		return nil, ErrNoInitialize
	}
	if len(init.Accounts) <= ixMarketID {
		return nil, fmt.Errorf("%w: %d accounts", ErrMalformedAccounts, len(init.Accounts))
	}

	keys := &domain.PoolKeys{
		AmmID:           init.Accounts[ixAmmID],
		AmmAuthority:    init.Accounts[ixAmmAuthority],
		AmmOpenOrders:   init.Accounts[ixAmmOpenOrders],
		AmmTargetOrders: init.Accounts[ixTargetOrders],
		LpMint:          init.Accounts[ixLpMint],
		BaseMint:        init.Accounts[ixCoinMint],
		QuoteMint:       init.Accounts[ixPcMint],
		BaseVault:       init.Accounts[ixCoinVault],
		QuoteVault:      init.Accounts[ixPcVault],
		MarketProgram:   init.Accounts[ixMarketProgram],
		MarketID:        init.Accounts[ixMarketID],
	}

	// Migration pools are token/WSOL. Normalize so base is the token.
	switch {
	case keys.QuoteMint.Equals(WSOLMint):
		// already normalized
	case keys.BaseMint.Equals(WSOLMint):
		keys.BaseMint, keys.QuoteMint = keys.QuoteMint, keys.BaseMint
		keys.BaseVault, keys.QuoteVault = keys.QuoteVault, keys.BaseVault
	default:
		return nil, ErrNotWsolPool
	}

	// The token mint must be a real ed25519 key, not a PDA that landed
	// on the wrong index.
	if !solana.IsOnCurve(keys.BaseMint) {
		return nil, fmt.Errorf("%w: base mint off-curve", ErrMalformedAccounts)
	}

	if err := fillMarketAccounts(ctx, chain, keys); err != nil {
		return nil, err
	}
	return keys, nil
}

// Serum MarketStateV3 fixed offsets.
const (
	marketVaultSignerNonceOff = 45
	marketBaseVaultOff        = 117
	marketQuoteVaultOff       = 165
	marketEventQueueOff       = 253
	marketBidsOff             = 285
	marketAsksOff             = 317
	marketMinSize             = 349
)

// fillMarketAccounts decodes the serum market account so the swap can
// reference the order book side of the pool.
func fillMarketAccounts(ctx context.Context, chain solana.Chain, keys *domain.PoolKeys) error {
	data, err := chain.AccountData(ctx, keys.MarketID)
	if err != nil {
		return fmt.Errorf("fetch market account %s: %w", keys.MarketID, err)
	}
	if len(data) < marketMinSize {
		return fmt.Errorf("%w: market account %d bytes", ErrMalformedAccounts, len(data))
	}

	keys.MarketBids = pubkeyAt(data, marketBidsOff)
	keys.MarketAsks = pubkeyAt(data, marketAsksOff)
	keys.MarketEventQueue = pubkeyAt(data, marketEventQueueOff)
	keys.MarketBaseVault = pubkeyAt(data, marketBaseVaultOff)
	keys.MarketQuoteVault = pubkeyAt(data, marketQuoteVaultOff)

	nonce := binary.LittleEndian.Uint64(data[marketVaultSignerNonceOff : marketVaultSignerNonceOff+8])
	signer, err := marketVaultSigner(keys.MarketID, keys.MarketProgram, nonce)
	if err != nil {
		return fmt.Errorf("derive market vault signer: %w", err)
	}
	keys.MarketVaultSigner = signer
	return nil
}

func pubkeyAt(data []byte, off int) solanago.PublicKey {
	return solanago.PublicKeyFromBytes(data[off : off+32])
}

// marketVaultSigner derives the PDA that owns the serum vaults:
// create_program_address([market, nonce_le_u64], market_program).
func marketVaultSigner(market, program solanago.PublicKey, nonce uint64) (solanago.PublicKey, error) {
	seed := make([]byte, 8)
	binary.LittleEndian.PutUint64(seed, nonce)
	return solanago.CreateProgramAddress([][]byte{market.Bytes(), seed}, program)
}
