package executor

import (
	"math/rand"

	solanago "github.com/gagliardetto/solana-go"
)

// Jito tip accounts. The tip goes to a random one to spread load.
var tipAccounts = []solanago.PublicKey{
	solanago.MustPublicKeyFromBase58("96gYZGLnJYVFmbjzopPSU6QiEV5fGqZNyN9nmNhvrZU5"),
	solanago.MustPublicKeyFromBase58("HFqU5x63VTqvQss8hp11i4bVNa1xJZmCkrhGnVw6nNYS"),
	solanago.MustPublicKeyFromBase58("Cw8CFyM9FkoMi7K7Crf6HNQqf4uEMzpKw6QNghXLvLkY"),
	solanago.MustPublicKeyFromBase58("ADaUMid9yfUytqMBgopwjb2DTLSokTSzL1zt6iGPaS49"),
	solanago.MustPublicKeyFromBase58("DfXygSm4jCyNCybVYYK6DwvWqjKee8pbDmJGcLWNDXjh"),
	solanago.MustPublicKeyFromBase58("ADuUkR4vqLUMWXxW9gh6D6L8pMSawimctcNZ5pGwDcEt"),
	solanago.MustPublicKeyFromBase58("DttWaMuVvTiduZRnguLF7jNxTgiMBZ1hyAumKUiL2KRL"),
	solanago.MustPublicKeyFromBase58("3AVi9Tg9Uo68tJfuvoKvqKNWKkC5wPdSSdeBnizKZ6jT"),
}

func randomTipAccount() solanago.PublicKey {
	return tipAccounts[rand.Intn(len(tipAccounts))]
}

// TipPolicy sizes the validator tip from expected profit, clamped to
// [floor, cap] so a bad estimate can neither starve nor waste the tip.
type TipPolicy struct {
	ProfitPct     float64
	FloorLamports uint64
	CapLamports   uint64
}

// Lamports computes the tip for an expected profit.
func (p TipPolicy) Lamports(expectedProfitLamports uint64) uint64 {
	tip := uint64(float64(expectedProfitLamports) * p.ProfitPct / 100)
	if tip < p.FloorLamports {
		return p.FloorLamports
	}
	if tip > p.CapLamports {
		return p.CapLamports
	}
	return tip
}
