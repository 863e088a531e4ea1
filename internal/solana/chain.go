package solana

import (
	"context"

	"github.com/gagliardetto/solana-go"
)

// Blockhash is a recent blockhash with its expiry height.
type Blockhash struct {
	Hash                 solana.Hash
	LastValidBlockHeight uint64
}

// MintInfo is the decoded SPL mint account.
type MintInfo struct {
	Supply          uint64
	Decimals        uint8
	MintAuthority   *solana.PublicKey
	FreezeAuthority *solana.PublicKey
}

// Renounced reports whether both authorities have been dropped. A mint
// that can still be inflated or frozen is a rug lever.
func (m *MintInfo) Renounced() bool {
	return m.MintAuthority == nil && m.FreezeAuthority == nil
}

// InstructionDetail is one top-level instruction of a fetched
// transaction with its account indices resolved to keys.
type InstructionDetail struct {
	ProgramID solana.PublicKey
	Accounts  []solana.PublicKey
	Data      []byte
}

// TxDetail is the subset of getTransaction the listener needs.
type TxDetail struct {
	Signature    solana.Signature
	Slot         uint64
	FeePayer     solana.PublicKey
	Instructions []InstructionDetail
}

// SigStatus is one signature's settlement state.
type SigStatus struct {
	Found     bool
	Confirmed bool
	Slot      uint64
	Failed    bool
}

// HolderBalance is one entry of getTokenLargestAccounts.
type HolderBalance struct {
	Address solana.PublicKey
	Amount  uint64
}

// TokenAccount is one SPL token account owned by the wallet.
type TokenAccount struct {
	Address solana.PublicKey
	Mint    solana.PublicKey
	Amount  uint64
}

// Chain is the read/submit interface against the Solana RPC node.
// Narrow by intent: everything the bot does on-chain goes through here
// so tests can stub it.
type Chain interface {
	LatestBlockhash(ctx context.Context) (Blockhash, error)
	Balance(ctx context.Context, addr solana.PublicKey) (uint64, error)
	TokenAccountBalance(ctx context.Context, account solana.PublicKey) (uint64, error)
	WalletTokenBalance(ctx context.Context, owner, mint solana.PublicKey) (uint64, error)
	TokenAccountsByOwner(ctx context.Context, owner solana.PublicKey) ([]TokenAccount, error)
	AccountData(ctx context.Context, addr solana.PublicKey) ([]byte, error)
	AccountExists(ctx context.Context, addr solana.PublicKey) (bool, error)
	MintInfo(ctx context.Context, mint solana.PublicKey) (*MintInfo, error)
	LargestHolders(ctx context.Context, mint solana.PublicKey) ([]HolderBalance, error)
	TokenSupply(ctx context.Context, mint solana.PublicKey) (uint64, error)
	TransactionDetail(ctx context.Context, sig solana.Signature) (*TxDetail, error)
	SignatureStatus(ctx context.Context, sig solana.Signature) (SigStatus, error)
	SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
}
