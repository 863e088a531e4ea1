package solana

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// ErrAccountNotFound is returned when the queried account does not exist.
var ErrAccountNotFound = errors.New("account not found")

// SPL mint account layout (82 bytes).
const (
	mintAccountSize          = 82
	mintAuthorityOptionOff   = 0
	mintAuthorityOff         = 4
	mintSupplyOff            = 36
	mintDecimalsOff          = 44
	freezeAuthorityOptionOff = 46
	freezeAuthorityOff       = 50
)

// SPL token account layout offsets used here.
const (
	tokenAccountMintOff   = 0
	tokenAccountAmountOff = 64
	tokenAccountSize      = 165
)

// ChainClient implements Chain over the gagliardetto RPC client.
type ChainClient struct {
	rpc *rpc.Client
}

// NewChainClient creates a chain client against the given HTTP endpoint.
func NewChainClient(endpoint string) *ChainClient {
	return &ChainClient{rpc: rpc.New(endpoint)}
}

// Compile-time interface check.
var _ Chain = (*ChainClient)(nil)

func (c *ChainClient) LatestBlockhash(ctx context.Context) (Blockhash, error) {
	res, err := c.rpc.GetLatestBlockhash(ctx, rpc.CommitmentConfirmed)
	if err != nil {
		return Blockhash{}, fmt.Errorf("get latest blockhash: %w", err)
	}
	return Blockhash{
		Hash:                 res.Value.Blockhash,
		LastValidBlockHeight: res.Value.LastValidBlockHeight,
	}, nil
}

func (c *ChainClient) Balance(ctx context.Context, addr solana.PublicKey) (uint64, error) {
	res, err := c.rpc.GetBalance(ctx, addr, rpc.CommitmentConfirmed)
	if err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return res.Value, nil
}

func (c *ChainClient) TokenAccountBalance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	res, err := c.rpc.GetTokenAccountBalance(ctx, account, rpc.CommitmentProcessed)
	if err != nil {
		return 0, fmt.Errorf("get token account balance: %w", err)
	}
	if res.Value == nil {
		return 0, ErrAccountNotFound
	}
	amount, err := strconv.ParseUint(res.Value.Amount, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse token amount %q: %w", res.Value.Amount, err)
	}
	return amount, nil
}

func (c *ChainClient) WalletTokenBalance(ctx context.Context, owner, mint solana.PublicKey) (uint64, error) {
	res, err := c.rpc.GetTokenAccountsByOwner(
		ctx,
		owner,
		&rpc.GetTokenAccountsConfig{Mint: &mint},
		&rpc.GetTokenAccountsOpts{Commitment: rpc.CommitmentConfirmed},
	)
	if err != nil {
		return 0, fmt.Errorf("get token accounts by owner: %w", err)
	}

	var total uint64
	for _, acc := range res.Value {
		data := acc.Account.Data.GetBinary()
		if len(data) < tokenAccountAmountOff+8 {
			continue
		}
		total += binary.LittleEndian.Uint64(data[tokenAccountAmountOff : tokenAccountAmountOff+8])
	}
	return total, nil
}

func (c *ChainClient) TokenAccountsByOwner(ctx context.Context, owner solana.PublicKey) ([]TokenAccount, error) {
	program := solana.TokenProgramID
	res, err := c.rpc.GetTokenAccountsByOwner(
		ctx,
		owner,
		&rpc.GetTokenAccountsConfig{ProgramId: &program},
		&rpc.GetTokenAccountsOpts{Commitment: rpc.CommitmentConfirmed},
	)
	if err != nil {
		return nil, fmt.Errorf("get token accounts by owner: %w", err)
	}

	accounts := make([]TokenAccount, 0, len(res.Value))
	for _, acc := range res.Value {
		data := acc.Account.Data.GetBinary()
		if len(data) < tokenAccountSize {
			continue
		}
		accounts = append(accounts, TokenAccount{
			Address: acc.Pubkey,
			Mint:    solana.PublicKeyFromBytes(data[tokenAccountMintOff : tokenAccountMintOff+32]),
			Amount:  binary.LittleEndian.Uint64(data[tokenAccountAmountOff : tokenAccountAmountOff+8]),
		})
	}
	return accounts, nil
}

func (c *ChainClient) AccountData(ctx context.Context, addr solana.PublicKey) ([]byte, error) {
	res, err := c.rpc.GetAccountInfo(ctx, addr)
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("get account info: %w", err)
	}
	if res.Value == nil {
		return nil, ErrAccountNotFound
	}
	return res.Value.Data.GetBinary(), nil
}

func (c *ChainClient) AccountExists(ctx context.Context, addr solana.PublicKey) (bool, error) {
	_, err := c.AccountData(ctx, addr)
	if errors.Is(err, ErrAccountNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (c *ChainClient) MintInfo(ctx context.Context, mint solana.PublicKey) (*MintInfo, error) {
	data, err := c.AccountData(ctx, mint)
	if err != nil {
		return nil, err
	}
	return DecodeMintAccount(data)
}

// DecodeMintAccount parses the raw 82-byte SPL mint layout.
func DecodeMintAccount(data []byte) (*MintInfo, error) {
	if len(data) < mintAccountSize {
		return nil, fmt.Errorf("mint account too short: %d bytes", len(data))
	}

	info := &MintInfo{
		Supply:   binary.LittleEndian.Uint64(data[mintSupplyOff : mintSupplyOff+8]),
		Decimals: data[mintDecimalsOff],
	}

	if binary.LittleEndian.Uint32(data[mintAuthorityOptionOff:mintAuthorityOptionOff+4]) != 0 {
		pk := solana.PublicKeyFromBytes(data[mintAuthorityOff : mintAuthorityOff+32])
		info.MintAuthority = &pk
	}
	if binary.LittleEndian.Uint32(data[freezeAuthorityOptionOff:freezeAuthorityOptionOff+4]) != 0 {
		pk := solana.PublicKeyFromBytes(data[freezeAuthorityOff : freezeAuthorityOff+32])
		info.FreezeAuthority = &pk
	}
	return info, nil
}

func (c *ChainClient) LargestHolders(ctx context.Context, mint solana.PublicKey) ([]HolderBalance, error) {
	res, err := c.rpc.GetTokenLargestAccounts(ctx, mint, rpc.CommitmentConfirmed)
	if err != nil {
		return nil, fmt.Errorf("get token largest accounts: %w", err)
	}

	holders := make([]HolderBalance, 0, len(res.Value))
	for _, v := range res.Value {
		amount, err := strconv.ParseUint(v.Amount, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse holder amount %q: %w", v.Amount, err)
		}
		holders = append(holders, HolderBalance{Address: v.Address, Amount: amount})
	}
	return holders, nil
}

func (c *ChainClient) TokenSupply(ctx context.Context, mint solana.PublicKey) (uint64, error) {
	res, err := c.rpc.GetTokenSupply(ctx, mint, rpc.CommitmentConfirmed)
	if err != nil {
		return 0, fmt.Errorf("get token supply: %w", err)
	}
	supply, err := strconv.ParseUint(res.Value.Amount, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse token supply %q: %w", res.Value.Amount, err)
	}
	return supply, nil
}

func (c *ChainClient) TransactionDetail(ctx context.Context, sig solana.Signature) (*TxDetail, error) {
	maxVersion := uint64(0)
	res, err := c.rpc.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
		Commitment:                     rpc.CommitmentConfirmed,
		MaxSupportedTransactionVersion: &maxVersion,
	})
	if err != nil {
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	if res == nil || res.Transaction == nil {
		return nil, ErrAccountNotFound
	}

	tx, err := res.Transaction.GetTransaction()
	if err != nil {
		return nil, fmt.Errorf("decode transaction: %w", err)
	}

	keys := tx.Message.AccountKeys
	if res.Meta != nil {
		keys = append(keys, res.Meta.LoadedAddresses.Writable...)
		keys = append(keys, res.Meta.LoadedAddresses.ReadOnly...)
	}

	detail := &TxDetail{
		Signature: sig,
		Slot:      res.Slot,
	}
	if len(keys) > 0 {
		detail.FeePayer = keys[0]
	}

	for _, ix := range tx.Message.Instructions {
		if int(ix.ProgramIDIndex) >= len(keys) {
			continue
		}
		d := InstructionDetail{
			ProgramID: keys[ix.ProgramIDIndex],
			Data:      ix.Data,
		}
		for _, idx := range ix.Accounts {
			if int(idx) >= len(keys) {
				continue
			}
			d.Accounts = append(d.Accounts, keys[idx])
		}
		detail.Instructions = append(detail.Instructions, d)
	}
	return detail, nil
}

func (c *ChainClient) SignatureStatus(ctx context.Context, sig solana.Signature) (SigStatus, error) {
	res, err := c.rpc.GetSignatureStatuses(ctx, true, sig)
	if err != nil {
		return SigStatus{}, fmt.Errorf("get signature statuses: %w", err)
	}
	if len(res.Value) == 0 || res.Value[0] == nil {
		return SigStatus{}, nil
	}

	st := res.Value[0]
	out := SigStatus{
		Found: true,
		Slot:  st.Slot,
	}
	if st.Err != nil {
		out.Failed = true
		return out, nil
	}
	switch st.ConfirmationStatus {
	case rpc.ConfirmationStatusConfirmed, rpc.ConfirmationStatusFinalized:
		out.Confirmed = true
	}
	return out, nil
}

func (c *ChainClient) SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	sig, err := c.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       true,
		PreflightCommitment: rpc.CommitmentProcessed,
	})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("send transaction: %w", err)
	}
	return sig, nil
}
