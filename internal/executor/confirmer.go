package executor

import (
	"context"
	"sync"
	"time"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"

	"migration-sniper/internal/observability"
	"migration-sniper/internal/solana"
)

// ConfirmResult is the settled outcome of one submission. Timeout means
// Confirmed false; a submission is never assumed to have landed.
type ConfirmResult struct {
	Signature solanago.Signature
	Confirmed bool
	Failed    bool // landed on chain but the transaction errored
	Slot      uint64
}

type tracker struct {
	mu       sync.Mutex
	resolved bool
	result   ConfirmResult
	waiters  []chan ConfirmResult
}

func (t *tracker) wait() <-chan ConfirmResult {
	ch := make(chan ConfirmResult, 1)
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.resolved {
		ch <- t.result
		return ch
	}
	t.waiters = append(t.waiters, ch)
	return ch
}

func (t *tracker) resolve(result ConfirmResult) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.resolved {
		return
	}
	t.resolved = true
	t.result = result
	for _, ch := range t.waiters {
		ch <- result
	}
	t.waiters = nil
}

// Confirmer polls settlement state for submitted transactions. The
// signature status is authoritative; the bundle status is only a
// fast-path hint. Each tracked signature resolves exactly once and the
// result is cached, so late waiters get the same answer.
type Confirmer struct {
	chain   solana.Chain
	jito    BundleSubmitter // may be nil
	poll    time.Duration
	timeout time.Duration
	metrics *observability.Metrics
	log     zerolog.Logger

	mu      sync.Mutex
	tracked map[string]*tracker
}

// NewConfirmer creates a confirmer polling the given chain.
func NewConfirmer(chain solana.Chain, jito BundleSubmitter, poll, timeout time.Duration, metrics *observability.Metrics, log zerolog.Logger) *Confirmer {
	return &Confirmer{
		chain:   chain,
		jito:    jito,
		poll:    poll,
		timeout: timeout,
		metrics: metrics,
		log:     log.With().Str("component", "confirmer").Logger(),
		tracked: make(map[string]*tracker),
	}
}

// Track starts (or joins) confirmation polling for a signature and
// returns a channel that receives the result exactly once.
func (c *Confirmer) Track(ctx context.Context, sig solanago.Signature, bundleID string) <-chan ConfirmResult {
	key := sig.String()

	c.mu.Lock()
	tr, exists := c.tracked[key]
	if !exists {
		tr = &tracker{}
		c.tracked[key] = tr
	}
	c.mu.Unlock()

	if !exists {
		go c.pollLoop(ctx, sig, bundleID, tr)
	}
	return tr.wait()
}

func (c *Confirmer) pollLoop(ctx context.Context, sig solanago.Signature, bundleID string, tr *tracker) {
	defer c.forgetLater(sig.String())
	deadline := time.NewTimer(c.timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(c.poll)
	defer ticker.Stop()

	bundleLanded := false

	for {
		select {
		case <-ctx.Done():
			tr.resolve(ConfirmResult{Signature: sig})
			return

		case <-deadline.C:
			c.log.Warn().Str("signature", sig.String()).Msg("confirmation timeout")
			if c.metrics != nil {
				c.metrics.BundlesTimedOut.Inc()
			}
			tr.resolve(ConfirmResult{Signature: sig})
			return

		case <-ticker.C:
			if done := c.checkOnce(ctx, sig, tr); done {
				return
			}

			// Bundle status hint: once the engine reports the bundle
			// landed, re-check the signature immediately instead of
			// waiting out another tick.
			if c.jito != nil && bundleID != "" && !bundleLanded {
				if status, err := c.jito.BundleStatus(ctx, bundleID); err == nil && status.Landed {
					bundleLanded = true
					c.log.Debug().Str("bundle_id", bundleID).Uint64("slot", status.Slot).Msg("bundle landed, fast-path recheck")
					if done := c.checkOnce(ctx, sig, tr); done {
						return
					}
				}
			}
		}
	}
}

// forgetLater drops a resolved tracker after one more timeout window.
// The cached result only needs to outlive late waiters; a signature
// tracked again after that starts a fresh poll.
func (c *Confirmer) forgetLater(key string) {
	time.AfterFunc(c.timeout, func() {
		c.mu.Lock()
		delete(c.tracked, key)
		c.mu.Unlock()
	})
}

func (c *Confirmer) checkOnce(ctx context.Context, sig solanago.Signature, tr *tracker) bool {
	status, err := c.chain.SignatureStatus(ctx, sig)
	if err != nil {
		c.log.Debug().Err(err).Str("signature", sig.String()).Msg("status poll failed")
		return false
	}
	if !status.Found {
		return false
	}
	if status.Failed {
		c.log.Warn().Str("signature", sig.String()).Uint64("slot", status.Slot).Msg("transaction failed on chain")
		tr.resolve(ConfirmResult{Signature: sig, Failed: true, Slot: status.Slot})
		return true
	}
	if status.Confirmed {
		if c.metrics != nil {
			c.metrics.BundlesConfirmed.Inc()
		}
		tr.resolve(ConfirmResult{Signature: sig, Confirmed: true, Slot: status.Slot})
		return true
	}
	return false
}
