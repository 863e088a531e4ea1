// Package sniper builds the swap transactions. It never invents pool
// topology: a pool must be registered from an observed migration before
// any instruction can reference it.
package sniper

import (
	"context"
	"errors"
	"fmt"
	"sync"

	solanago "github.com/gagliardetto/solana-go"
	associatedtokenaccount "github.com/gagliardetto/solana-go/programs/associated-token-account"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/rs/zerolog"

	"migration-sniper/internal/domain"
	"migration-sniper/internal/raydium"
	"migration-sniper/internal/solana"
)

// ErrUnknownPool is returned when no pool was registered for the mint.
var ErrUnknownPool = errors.New("no pool registered for mint")

// ErrNoLiquidity is returned when the pool quotes zero output.
var ErrNoLiquidity = errors.New("pool has no liquidity")

// SwapPlan is a built swap: the instruction list plus what the quote
// promised, for tip sizing and logging.
type SwapPlan struct {
	Instructions []solanago.Instruction
	ExpectedOut  uint64 // quoted output, raw base units
	MinOut       uint64 // slippage-adjusted floor encoded in the swap
}

// Engine builds buy and sell instruction sequences for registered pools.
type Engine struct {
	chain       solana.Chain
	owner       solanago.PublicKey
	slippageBps uint64
	log         zerolog.Logger

	mu    sync.RWMutex
	pools map[string]*domain.PoolKeys // keyed by base mint
}

// NewEngine creates an engine trading from the owner wallet.
func NewEngine(chain solana.Chain, owner solanago.PublicKey, slippageBps uint64, log zerolog.Logger) *Engine {
	return &Engine{
		chain:       chain,
		owner:       owner,
		slippageBps: slippageBps,
		log:         log.With().Str("component", "engine").Logger(),
		pools:       make(map[string]*domain.PoolKeys),
	}
}

// RegisterPool makes a pool addressable by its base mint. Called by the
// listener on migration and by the manager when restoring positions.
func (e *Engine) RegisterPool(keys *domain.PoolKeys) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pools[keys.BaseMint.String()] = keys
}

// Pool returns the registered pool for a mint.
func (e *Engine) Pool(mint string) (*domain.PoolKeys, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	keys, ok := e.pools[mint]
	return keys, ok
}

// BuildBuy prepares a WSOL -> token swap spending lamports. The plan
// includes WSOL account preparation: idempotent ATA creation, top-up
// transfer and SyncNative when the wrapped balance is short.
func (e *Engine) BuildBuy(ctx context.Context, mint string, lamports uint64) (*SwapPlan, error) {
	keys, ok := e.Pool(mint)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPool, mint)
	}

	wsolATA, _, err := solanago.FindAssociatedTokenAddress(e.owner, raydium.WSOLMint)
	if err != nil {
		return nil, fmt.Errorf("derive wsol ata: %w", err)
	}
	destATA, _, err := solanago.FindAssociatedTokenAddress(e.owner, keys.BaseMint)
	if err != nil {
		return nil, fmt.Errorf("derive token ata: %w", err)
	}

	var instrs []solanago.Instruction

	wsolBalance := uint64(0)
	wsolExists, err := e.chain.AccountExists(ctx, wsolATA)
	if err != nil {
		return nil, fmt.Errorf("check wsol ata: %w", err)
	}
	if wsolExists {
		wsolBalance, err = e.chain.TokenAccountBalance(ctx, wsolATA)
		if err != nil && !errors.Is(err, solana.ErrAccountNotFound) {
			return nil, fmt.Errorf("read wsol balance: %w", err)
		}
	} else {
		instrs = append(instrs, associatedtokenaccount.NewCreateInstruction(e.owner, e.owner, raydium.WSOLMint).Build())
	}

	if wsolBalance < lamports {
		topUp := lamports - wsolBalance
		instrs = append(instrs,
			system.NewTransferInstruction(topUp, e.owner, wsolATA).Build(),
			token.NewSyncNativeInstruction(wsolATA).Build(),
		)
	}

	destExists, err := e.chain.AccountExists(ctx, destATA)
	if err != nil {
		return nil, fmt.Errorf("check token ata: %w", err)
	}
	if !destExists {
		instrs = append(instrs, associatedtokenaccount.NewCreateInstruction(e.owner, e.owner, keys.BaseMint).Build())
	}

	reserves, err := raydium.FetchReserves(ctx, e.chain, keys)
	if err != nil {
		return nil, fmt.Errorf("fetch reserves: %w", err)
	}
	quoted := raydium.AmountOut(lamports, reserves.Quote, reserves.Base)
	if quoted == 0 {
		return nil, ErrNoLiquidity
	}
	minOut := raydium.MinOut(quoted, e.slippageBps)

	instrs = append(instrs, raydium.NewSwapBaseInInstruction(keys, wsolATA, destATA, e.owner, lamports, minOut))

	e.log.Debug().
		Str("mint", mint).
		Uint64("lamports_in", lamports).
		Uint64("quoted_out", quoted).
		Uint64("min_out", minOut).
		Msg("buy built")

	return &SwapPlan{Instructions: instrs, ExpectedOut: quoted, MinOut: minOut}, nil
}

// BuildSell prepares a token -> WSOL swap. Emergency sells encode a
// zero floor: on shutdown or a rugging pool, any exit beats holding.
func (e *Engine) BuildSell(ctx context.Context, mint string, amountRaw uint64, emergency bool) (*SwapPlan, error) {
	keys, ok := e.Pool(mint)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPool, mint)
	}
	if amountRaw == 0 {
		return nil, fmt.Errorf("sell amount is zero for %s", mint)
	}

	wsolATA, _, err := solanago.FindAssociatedTokenAddress(e.owner, raydium.WSOLMint)
	if err != nil {
		return nil, fmt.Errorf("derive wsol ata: %w", err)
	}
	sourceATA, _, err := solanago.FindAssociatedTokenAddress(e.owner, keys.BaseMint)
	if err != nil {
		return nil, fmt.Errorf("derive token ata: %w", err)
	}

	var instrs []solanago.Instruction

	wsolExists, err := e.chain.AccountExists(ctx, wsolATA)
	if err != nil {
		return nil, fmt.Errorf("check wsol ata: %w", err)
	}
	if !wsolExists {
		instrs = append(instrs, associatedtokenaccount.NewCreateInstruction(e.owner, e.owner, raydium.WSOLMint).Build())
	}

	var quoted, minOut uint64
	if !emergency {
		reserves, err := raydium.FetchReserves(ctx, e.chain, keys)
		if err != nil {
			return nil, fmt.Errorf("fetch reserves: %w", err)
		}
		quoted = raydium.AmountOut(amountRaw, reserves.Base, reserves.Quote)
		if quoted == 0 {
			return nil, ErrNoLiquidity
		}
		minOut = raydium.MinOut(quoted, e.slippageBps)
	}

	instrs = append(instrs, raydium.NewSwapBaseInInstruction(keys, sourceATA, wsolATA, e.owner, amountRaw, minOut))

	e.log.Debug().
		Str("mint", mint).
		Uint64("amount_in", amountRaw).
		Uint64("min_out", minOut).
		Bool("emergency", emergency).
		Msg("sell built")

	return &SwapPlan{Instructions: instrs, ExpectedOut: quoted, MinOut: minOut}, nil
}
