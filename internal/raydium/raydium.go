// Package raydium carries the Raydium AMM v4 protocol knowledge: pool
// key extraction from migration transactions, the serum market layout,
// reserve reads and the swap instruction encoding.
package raydium

import (
	"github.com/gagliardetto/solana-go"
)

// Program and well-known account addresses.
var (
	// AMMProgramID is Raydium AMM v4 (liquidity pool v4).
	AMMProgramID = solana.MustPublicKeyFromBase58("675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8")

	// MigrationAuthority is the pump.fun account that signs and pays
	// for every legitimate bonding curve graduation.
	MigrationAuthority = solana.MustPublicKeyFromBase58("39azUYFWPz3VHgKCf3VChUwbpURdCHRxjWVowf5jUJjg")

	// WSOLMint is wrapped SOL, the quote side of every migration pool.
	WSOLMint = solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")
)

// InitializeLogMarker appears in logs when a pool is created.
const InitializeLogMarker = "initialize2"

// initialize2 discriminator, first data byte of the instruction.
const initialize2Tag = 1
