// Package listener watches Raydium for pool initializations and turns
// whitelisted migrations into buy triggers. Event intake is decoupled
// from processing by a bounded queue with a single worker, so a burst
// of pool creations cannot reorder or interleave buys.
package listener

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"

	"migration-sniper/internal/domain"
	"migration-sniper/internal/observability"
	"migration-sniper/internal/raydium"
	"migration-sniper/internal/solana"
	"migration-sniper/internal/whitelist"
)

// Migration is one verified pool creation ready to trade.
type Migration struct {
	Entry      whitelist.Entry
	Keys       *domain.PoolKeys
	Signature  solanago.Signature
	DetectedAt time.Time
}

// Handler receives verified migrations. Called from the single worker,
// one at a time.
type Handler interface {
	HandleMigration(ctx context.Context, m *Migration)
}

// Config tunes the listener.
type Config struct {
	// QueueSize bounds the intake queue. Overflow drops the event.
	QueueSize int

	// FetchRetries and FetchRetryDelay govern the getTransaction poll:
	// a just-confirmed transaction may not be queryable immediately.
	FetchRetries    int
	FetchRetryDelay time.Duration

	// Heartbeat is how often stream liveness is logged.
	Heartbeat time.Duration

	// RelaxedChecks skips the mint authority re-check. Dry-run only.
	RelaxedChecks bool
}

// Listener subscribes to Raydium logs and feeds verified migrations to
// the handler.
type Listener struct {
	ws      solana.WSClient
	chain   solana.Chain
	wl      *whitelist.Cache
	handler Handler
	cfg     Config
	metrics *observability.Metrics
	log     zerolog.Logger

	mu        sync.Mutex
	lastEvent time.Time
}

// New wires a listener. metrics may be nil in tests.
func New(ws solana.WSClient, chain solana.Chain, wl *whitelist.Cache, handler Handler, cfg Config, metrics *observability.Metrics, log zerolog.Logger) *Listener {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.FetchRetries <= 0 {
		cfg.FetchRetries = 5
	}
	if cfg.FetchRetryDelay <= 0 {
		cfg.FetchRetryDelay = 200 * time.Millisecond
	}
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = 30 * time.Second
	}
	return &Listener{
		ws:      ws,
		chain:   chain,
		wl:      wl,
		handler: handler,
		cfg:     cfg,
		metrics: metrics,
		log:     log.With().Str("component", "listener").Logger(),
	}
}

// Run subscribes and processes until ctx is cancelled or the stream
// closes. The worker drains the queue before Run returns.
func (l *Listener) Run(ctx context.Context) error {
	notifications, err := l.ws.SubscribeLogs(ctx, solana.LogsFilter{
		Mentions: []string{raydium.AMMProgramID.String()},
	})
	if err != nil {
		return err
	}

	queue := make(chan solana.LogNotification, l.cfg.QueueSize)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for n := range queue {
			l.process(ctx, n)
		}
	}()

	heartbeat := time.NewTicker(l.cfg.Heartbeat)
	defer heartbeat.Stop()

	l.touch()
	l.log.Info().Msg("listener started")

	defer func() {
		close(queue)
		wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-heartbeat.C:
			l.log.Info().
				Float64("seconds_since_event", time.Since(l.last()).Seconds()).
				Int("whitelist_size", l.wl.Size()).
				Msg("stream heartbeat")

		case n, ok := <-notifications:
			if !ok {
				return nil
			}
			l.touch()
			if l.metrics != nil {
				l.metrics.LastEventTimestamp.SetToCurrentTime()
			}
			if n.Err != nil || !isInitialize(n.Logs) {
				continue
			}
			if l.metrics != nil {
				l.metrics.MigrationEventsSeen.Inc()
			}
			select {
			case queue <- n:
			default:
				l.drop("queue_full", n.Signature, nil)
			}
		}
	}
}

func isInitialize(logs []string) bool {
	for _, line := range logs {
		if strings.Contains(line, raydium.InitializeLogMarker) {
			return true
		}
	}
	return false
}

// process runs the full verification chain for one pool creation.
func (l *Listener) process(ctx context.Context, n solana.LogNotification) {
	detectedAt := time.Now()

	sig, err := solanago.SignatureFromBase58(n.Signature)
	if err != nil {
		l.drop("bad_signature", n.Signature, err)
		return
	}

	tx, err := l.fetchTransaction(ctx, sig)
	if err != nil {
		l.drop("fetch_failed", n.Signature, err)
		return
	}

	// Trap check. Copycat pools reuse the initialize2 shape but cannot
	// forge the migration authority as fee payer.
	if !tx.FeePayer.Equals(raydium.MigrationAuthority) {
		l.drop("trap", n.Signature, fmt.Errorf("fee payer %s", tx.FeePayer))
		return
	}

	keys, err := raydium.ExtractPoolKeys(ctx, l.chain, tx)
	if err != nil {
		l.drop("extract_failed", n.Signature, err)
		return
	}

	entry, ok := l.wl.Consume(keys.BaseMint.String())
	if !ok {
		l.drop("not_whitelisted", n.Signature, fmt.Errorf("mint %s", keys.BaseMint))
		return
	}
	if l.metrics != nil {
		l.metrics.WhitelistSize.Set(float64(l.wl.Size()))
	}

	// Authority re-check at trade time. The producer's pass may be
	// minutes old and a migration script could have re-minted since.
	if !l.cfg.RelaxedChecks {
		info, err := l.chain.MintInfo(ctx, keys.BaseMint)
		if err != nil {
			l.drop("mint_unavailable", n.Signature, err)
			return
		}
		if !info.Renounced() {
			l.drop("authority_live", n.Signature, nil)
			return
		}
	}

	l.log.Info().
		Str("mint", keys.BaseMint.String()).
		Str("symbol", entry.Symbol).
		Str("amm_id", keys.AmmID.String()).
		Str("signature", n.Signature).
		Msg("verified migration")

	l.handler.HandleMigration(ctx, &Migration{
		Entry:      entry,
		Keys:       keys,
		Signature:  sig,
		DetectedAt: detectedAt,
	})
}

func (l *Listener) fetchTransaction(ctx context.Context, sig solanago.Signature) (*solana.TxDetail, error) {
	var lastErr error
	for attempt := 0; attempt < l.cfg.FetchRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(l.cfg.FetchRetryDelay):
			}
		}
		tx, err := l.chain.TransactionDetail(ctx, sig)
		if err == nil {
			return tx, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("after %d attempts: %w", l.cfg.FetchRetries, lastErr)
}

func (l *Listener) drop(reason, signature string, err error) {
	if l.metrics != nil {
		l.metrics.MigrationsDropped.WithLabelValues(reason).Inc()
	}
	ev := l.log.Debug().Str("reason", reason).Str("signature", signature)
	if err != nil {
		ev = ev.Err(err)
	}
	ev.Msg("migration dropped")
}

func (l *Listener) touch() {
	l.mu.Lock()
	l.lastEvent = time.Now()
	l.mu.Unlock()
}

func (l *Listener) last() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastEvent
}
