package stub

import (
	"context"
	"sync"

	solanago "github.com/gagliardetto/solana-go"

	"migration-sniper/internal/solana"
)

// Chain implements solana.Chain for testing. All fixtures are plain
// maps keyed by base58 strings; mutate them before handing the stub to
// the code under test, or use the Set helpers for concurrent tests.
type Chain struct {
	mu sync.Mutex

	Blockhash      solana.Blockhash
	BlockhashErr   error
	Balances       map[string]uint64
	TokenBalances  map[string]uint64 // token account -> amount
	WalletBalances map[string]uint64 // mint -> amount held by any owner
	Accounts       map[string][]byte
	Mints          map[string]*solana.MintInfo
	Holders        map[string][]solana.HolderBalance
	Supplies       map[string]uint64
	Transactions   map[string]*solana.TxDetail
	Statuses       map[string]solana.SigStatus
	OwnedAccounts  []solana.TokenAccount

	SendErr   error
	SentTxs   []*solanago.Transaction
	SendCalls int
}

// NewChain creates an empty stub chain.
func NewChain() *Chain {
	return &Chain{
		Balances:       make(map[string]uint64),
		TokenBalances:  make(map[string]uint64),
		WalletBalances: make(map[string]uint64),
		Accounts:       make(map[string][]byte),
		Mints:          make(map[string]*solana.MintInfo),
		Holders:        make(map[string][]solana.HolderBalance),
		Supplies:       make(map[string]uint64),
		Transactions:   make(map[string]*solana.TxDetail),
		Statuses:       make(map[string]solana.SigStatus),
	}
}

// Compile-time interface check.
var _ solana.Chain = (*Chain)(nil)

func (c *Chain) LatestBlockhash(_ context.Context) (solana.Blockhash, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.BlockhashErr != nil {
		return solana.Blockhash{}, c.BlockhashErr
	}
	return c.Blockhash, nil
}

func (c *Chain) Balance(_ context.Context, addr solanago.PublicKey) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Balances[addr.String()], nil
}

func (c *Chain) TokenAccountBalance(_ context.Context, account solanago.PublicKey) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	amount, ok := c.TokenBalances[account.String()]
	if !ok {
		return 0, solana.ErrAccountNotFound
	}
	return amount, nil
}

func (c *Chain) WalletTokenBalance(_ context.Context, _, mint solanago.PublicKey) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.WalletBalances[mint.String()], nil
}

func (c *Chain) TokenAccountsByOwner(_ context.Context, _ solanago.PublicKey) ([]solana.TokenAccount, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]solana.TokenAccount, len(c.OwnedAccounts))
	copy(out, c.OwnedAccounts)
	return out, nil
}

func (c *Chain) AccountData(_ context.Context, addr solanago.PublicKey) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, ok := c.Accounts[addr.String()]
	if !ok {
		return nil, solana.ErrAccountNotFound
	}
	return data, nil
}

func (c *Chain) AccountExists(_ context.Context, addr solanago.PublicKey) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.Accounts[addr.String()]
	return ok, nil
}

func (c *Chain) MintInfo(_ context.Context, mint solanago.PublicKey) (*solana.MintInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	info, ok := c.Mints[mint.String()]
	if !ok {
		return nil, solana.ErrAccountNotFound
	}
	return info, nil
}

func (c *Chain) LargestHolders(_ context.Context, mint solanago.PublicKey) ([]solana.HolderBalance, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Holders[mint.String()], nil
}

func (c *Chain) TokenSupply(_ context.Context, mint solanago.PublicKey) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Supplies[mint.String()], nil
}

func (c *Chain) TransactionDetail(_ context.Context, sig solanago.Signature) (*solana.TxDetail, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	tx, ok := c.Transactions[sig.String()]
	if !ok {
		return nil, solana.ErrAccountNotFound
	}
	return tx, nil
}

func (c *Chain) SignatureStatus(_ context.Context, sig solanago.Signature) (solana.SigStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Statuses[sig.String()], nil
}

func (c *Chain) SendTransaction(_ context.Context, tx *solanago.Transaction) (solanago.Signature, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.SendCalls++
	if c.SendErr != nil {
		return solanago.Signature{}, c.SendErr
	}
	c.SentTxs = append(c.SentTxs, tx)
	if len(tx.Signatures) > 0 {
		return tx.Signatures[0], nil
	}
	return solanago.Signature{}, nil
}

// LastSentSignature returns the first signature of the most recently
// sent transaction. ok is false when nothing was sent yet.
func (c *Chain) LastSentSignature() (solanago.Signature, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.SentTxs) == 0 {
		return solanago.Signature{}, false
	}
	tx := c.SentTxs[len(c.SentTxs)-1]
	if len(tx.Signatures) == 0 {
		return solanago.Signature{}, false
	}
	return tx.Signatures[0], true
}

// SetBlockhash swaps the served blockhash under the lock.
func (c *Chain) SetBlockhash(bh solana.Blockhash, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Blockhash = bh
	c.BlockhashErr = err
}

// SetStatus records a signature status, for confirmation tests.
func (c *Chain) SetStatus(sig string, st solana.SigStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Statuses[sig] = st
}

// SetTokenBalance records a token account balance.
func (c *Chain) SetTokenBalance(account string, amount uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.TokenBalances[account] = amount
}

// SetWalletBalance records the wallet's holding of a mint.
func (c *Chain) SetWalletBalance(mint string, amount uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.WalletBalances[mint] = amount
}
