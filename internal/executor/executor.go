// Package executor turns built instruction plans into signed
// transactions and races them down two submission routes: the Jito
// block engine and an accelerated sender. Both routes carry the same
// signed transaction, so at most one copy can land.
package executor

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/mr-tron/base58"
	"github.com/rs/zerolog"

	"migration-sniper/internal/blockhash"
	"migration-sniper/internal/observability"
	"migration-sniper/internal/solana"
)

// ErrNoBlockhash is returned before the cache has its first value.
var ErrNoBlockhash = errors.New("blockhash cache not populated")

// ErrAllRoutesFailed is returned when neither route accepted the
// transaction.
var ErrAllRoutesFailed = errors.New("all submission routes failed")

// Receipt is the outcome of one execution.
type Receipt struct {
	Signature   solanago.Signature
	BundleID    string
	Confirmed   bool
	Slot        uint64
	TipLamports uint64
}

// Executor signs and submits transactions and waits for settlement.
type Executor struct {
	wallet    solanago.PrivateKey
	owner     solanago.PublicKey
	blockhash *blockhash.Cache
	jito      BundleSubmitter // may be nil
	sender    solana.Chain    // may be nil
	confirmer *Confirmer
	tip       TipPolicy
	dryRun    bool
	metrics   *observability.Metrics
	log       zerolog.Logger
}

// New creates an executor. jito and sender are each optional, but at
// least one route must be configured unless dryRun is set.
func New(
	wallet solanago.PrivateKey,
	bh *blockhash.Cache,
	jito BundleSubmitter,
	sender solana.Chain,
	confirmer *Confirmer,
	tip TipPolicy,
	dryRun bool,
	metrics *observability.Metrics,
	log zerolog.Logger,
) (*Executor, error) {
	if !dryRun && jito == nil && sender == nil {
		return nil, errors.New("no submission route configured")
	}
	return &Executor{
		wallet:    wallet,
		owner:     wallet.PublicKey(),
		blockhash: bh,
		jito:      jito,
		sender:    sender,
		confirmer: confirmer,
		tip:       tip,
		dryRun:    dryRun,
		metrics:   metrics,
		log:       log.With().Str("component", "executor").Logger(),
	}, nil
}

// Execute appends the tip, signs once, submits down both routes and
// blocks until the settlement result. A timeout is a failed execution.
func (e *Executor) Execute(ctx context.Context, instrs []solanago.Instruction, expectedProfitLamports uint64) (*Receipt, error) {
	bh, ok := e.blockhash.Latest()
	if !ok {
		return nil, ErrNoBlockhash
	}

	tipLamports := e.tip.Lamports(expectedProfitLamports)
	instrs = append(instrs, system.NewTransferInstruction(tipLamports, e.owner, randomTipAccount()).Build())

	tx, err := solanago.NewTransaction(instrs, bh.Hash, solanago.TransactionPayer(e.owner))
	if err != nil {
		return nil, fmt.Errorf("build transaction: %w", err)
	}

	if _, err := tx.Sign(func(pub solanago.PublicKey) *solanago.PrivateKey {
		if pub.Equals(e.owner) {
			return &e.wallet
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}
	sig := tx.Signatures[0]

	raw, err := tx.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("serialize transaction: %w", err)
	}

	if e.dryRun {
		e.log.Info().
			Str("signature", sig.String()).
			Uint64("tip_lamports", tipLamports).
			Int("tx_bytes", len(raw)).
			Str("tx_base64", base64.StdEncoding.EncodeToString(raw)).
			Msg("dry run, not submitting")
		return &Receipt{Signature: sig, Confirmed: true, TipLamports: tipLamports}, nil
	}

	bundleID, routes := e.submit(ctx, sig, raw, tx)
	if routes == 0 {
		return nil, ErrAllRoutesFailed
	}

	result := <-e.confirmer.Track(ctx, sig, bundleID)
	receipt := &Receipt{
		Signature:   sig,
		BundleID:    bundleID,
		Confirmed:   result.Confirmed,
		Slot:        result.Slot,
		TipLamports: tipLamports,
	}
	if result.Failed {
		return receipt, fmt.Errorf("transaction %s failed on chain", sig)
	}
	return receipt, nil
}

// submit races both routes. Returns the bundle ID (empty if the jito
// route failed or is absent) and how many routes accepted the tx.
func (e *Executor) submit(ctx context.Context, sig solanago.Signature, raw []byte, tx *solanago.Transaction) (string, int) {
	type routeResult struct {
		bundleID string
		err      error
	}

	var jitoCh, senderCh chan routeResult

	if e.jito != nil {
		jitoCh = make(chan routeResult, 1)
		go func() {
			id, err := e.jito.SendBundle(ctx, []string{base58.Encode(raw)})
			jitoCh <- routeResult{bundleID: id, err: err}
		}()
	}

	if e.sender != nil {
		senderCh = make(chan routeResult, 1)
		go func() {
			_, err := e.sender.SendTransaction(ctx, tx)
			senderCh <- routeResult{err: err}
		}()
	}

	routes := 0
	bundleID := ""

	if jitoCh != nil {
		r := <-jitoCh
		if r.err != nil {
			e.log.Warn().Err(r.err).Str("signature", sig.String()).Msg("jito route failed")
		} else {
			bundleID = r.bundleID
			routes++
			e.log.Debug().Str("bundle_id", bundleID).Str("signature", sig.String()).Msg("bundle submitted")
		}
	}
	if senderCh != nil {
		r := <-senderCh
		if r.err != nil {
			e.log.Warn().Err(r.err).Str("signature", sig.String()).Msg("sender route failed")
		} else {
			routes++
			e.log.Debug().Str("signature", sig.String()).Msg("sender route submitted")
		}
	}
	return bundleID, routes
}
