package raydium

import (
	"context"
	"encoding/binary"
	"fmt"
	"math/big"

	solanago "github.com/gagliardetto/solana-go"

	"migration-sniper/internal/domain"
	"migration-sniper/internal/solana"
)

// Raydium AMM swap fee, 25 bps taken from the input.
const (
	swapFeeNumerator   = 9975
	swapFeeDenominator = 10000
)

// swapBaseIn instruction discriminator.
const swapBaseInTag = 9

// Reserves are the live vault balances of a pool, in raw base units.
type Reserves struct {
	Base  uint64 // token side
	Quote uint64 // WSOL side, lamports
}

// FetchReserves reads both vault balances.
func FetchReserves(ctx context.Context, chain solana.Chain, keys *domain.PoolKeys) (Reserves, error) {
	base, err := chain.TokenAccountBalance(ctx, keys.BaseVault)
	if err != nil {
		return Reserves{}, fmt.Errorf("base vault balance: %w", err)
	}
	quote, err := chain.TokenAccountBalance(ctx, keys.QuoteVault)
	if err != nil {
		return Reserves{}, fmt.Errorf("quote vault balance: %w", err)
	}
	return Reserves{Base: base, Quote: quote}, nil
}

// PriceSOL converts reserves to a spot price in SOL per whole token.
// Float only for decision thresholds and logs; settlement math stays
// integer.
func (r Reserves) PriceSOL(decimals uint8) float64 {
	if r.Base == 0 {
		return 0
	}
	tokenWhole := float64(r.Base) / pow10(decimals)
	solWhole := float64(r.Quote) / 1e9
	return solWhole / tokenWhole
}

func pow10(n uint8) float64 {
	out := 1.0
	for i := uint8(0); i < n; i++ {
		out *= 10
	}
	return out
}

// AmountOut is the constant-product quote after the swap fee. big.Int
// intermediates: reserveIn*amountIn overflows uint64 on real pools.
func AmountOut(amountIn, reserveIn, reserveOut uint64) uint64 {
	if amountIn == 0 || reserveIn == 0 || reserveOut == 0 {
		return 0
	}

	inAfterFee := new(big.Int).Mul(new(big.Int).SetUint64(amountIn), big.NewInt(swapFeeNumerator))
	inAfterFee.Div(inAfterFee, big.NewInt(swapFeeDenominator))

	num := new(big.Int).Mul(inAfterFee, new(big.Int).SetUint64(reserveOut))
	den := new(big.Int).Add(new(big.Int).SetUint64(reserveIn), inAfterFee)

	out := num.Div(num, den)
	if !out.IsUint64() {
		return 0
	}
	return out.Uint64()
}

// MinOut applies slippage tolerance in basis points to a quoted amount.
func MinOut(quoted, slippageBps uint64) uint64 {
	keep := new(big.Int).Mul(new(big.Int).SetUint64(quoted), new(big.Int).SetUint64(10000-slippageBps))
	keep.Div(keep, big.NewInt(10000))
	return keep.Uint64()
}

// NewSwapBaseInInstruction encodes a Raydium swapBaseIn. Direction is
// set purely by the source/destination token accounts; the account list
// order is fixed by the program.
func NewSwapBaseInInstruction(
	keys *domain.PoolKeys,
	userSource, userDest, userOwner solanago.PublicKey,
	amountIn, minAmountOut uint64,
) solanago.Instruction {
	data := make([]byte, 17)
	data[0] = swapBaseInTag
	binary.LittleEndian.PutUint64(data[1:9], amountIn)
	binary.LittleEndian.PutUint64(data[9:17], minAmountOut)

	return &solanago.GenericInstruction{
		ProgID: AMMProgramID,
		AccountValues: solanago.AccountMetaSlice{
			{PublicKey: solanago.TokenProgramID, IsWritable: false, IsSigner: false},
			{PublicKey: keys.AmmID, IsWritable: true, IsSigner: false},
			{PublicKey: keys.AmmAuthority, IsWritable: false, IsSigner: false},
			{PublicKey: keys.AmmOpenOrders, IsWritable: true, IsSigner: false},
			{PublicKey: keys.AmmTargetOrders, IsWritable: true, IsSigner: false},
			{PublicKey: keys.BaseVault, IsWritable: true, IsSigner: false},
			{PublicKey: keys.QuoteVault, IsWritable: true, IsSigner: false},
			{PublicKey: keys.MarketProgram, IsWritable: false, IsSigner: false},
			{PublicKey: keys.MarketID, IsWritable: true, IsSigner: false},
			{PublicKey: keys.MarketBids, IsWritable: true, IsSigner: false},
			{PublicKey: keys.MarketAsks, IsWritable: true, IsSigner: false},
			{PublicKey: keys.MarketEventQueue, IsWritable: true, IsSigner: false},
			{PublicKey: keys.MarketBaseVault, IsWritable: true, IsSigner: false},
			{PublicKey: keys.MarketQuoteVault, IsWritable: true, IsSigner: false},
			{PublicKey: keys.MarketVaultSigner, IsWritable: false, IsSigner: false},
			{PublicKey: userSource, IsWritable: true, IsSigner: false},
			{PublicKey: userDest, IsWritable: true, IsSigner: false},
			{PublicKey: userOwner, IsWritable: false, IsSigner: true},
		},
		DataBytes: data,
	}
}
