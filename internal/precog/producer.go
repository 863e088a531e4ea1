// Package precog watches the pump.fun event stream and pre-verifies
// tokens approaching graduation, so the migration listener never pays
// vetting latency on the hot path.
package precog

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"migration-sniper/internal/domain"
	"migration-sniper/internal/observability"
	"migration-sniper/internal/pump"
	"migration-sniper/internal/solana"
	"migration-sniper/internal/whitelist"
)

// Accounts holding more than this share of supply are curve or pool
// vaults, not insiders, and are excluded from the concentration sum.
const vaultSharePct = 30.0

// topHolderCount is how many of the remaining holders count toward the
// insider concentration figure.
const topHolderCount = 10

// MetadataSource resolves off-chain token metadata by mint.
type MetadataSource interface {
	Get(ctx context.Context, mint string) (*domain.TokenMetadata, error)
}

// Config tunes the producer.
type Config struct {
	// CurveThresholdPct is the bonding curve progress below which a
	// trade event is ignored without any network calls.
	CurveThresholdPct float64

	// InsiderThresholdPct is the maximum share of supply the top
	// non-vault holders may hold together.
	InsiderThresholdPct float64

	// CheckTimeout bounds the whole vetting pass for one mint.
	CheckTimeout time.Duration

	// RelaxedChecks skips holder and authority vetting. Dry-run only.
	RelaxedChecks bool
}

// Producer consumes the pump.fun log stream, prefilters by curve
// progress, vets candidates off the hot path and feeds the whitelist.
type Producer struct {
	ws      solana.WSClient
	chain   solana.Chain
	meta    MetadataSource
	wl      *whitelist.Cache
	cfg     Config
	metrics *observability.Metrics
	log     zerolog.Logger

	mu       sync.Mutex
	inFlight map[string]struct{}

	wg sync.WaitGroup
}

// NewProducer wires a producer. metrics may be nil in tests.
func NewProducer(ws solana.WSClient, chain solana.Chain, meta MetadataSource, wl *whitelist.Cache, cfg Config, metrics *observability.Metrics, log zerolog.Logger) *Producer {
	return &Producer{
		ws:       ws,
		chain:    chain,
		meta:     meta,
		wl:       wl,
		cfg:      cfg,
		metrics:  metrics,
		log:      log.With().Str("component", "precog").Logger(),
		inFlight: make(map[string]struct{}),
	}
}

// Run subscribes to pump.fun logs and processes events until ctx is
// cancelled or the stream closes. Vetting runs in per-mint goroutines;
// Run waits for them before returning.
func (p *Producer) Run(ctx context.Context) error {
	notifications, err := p.ws.SubscribeLogs(ctx, solana.LogsFilter{
		Mentions: []string{pump.ProgramID},
	})
	if err != nil {
		return err
	}

	if p.cfg.RelaxedChecks {
		p.log.Warn().Msg("RELAXED CHECKS ACTIVE: holder and authority vetting disabled")
	}
	p.log.Info().Float64("curve_threshold_pct", p.cfg.CurveThresholdPct).Msg("producer started")

	defer p.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case n, ok := <-notifications:
			if !ok {
				return nil
			}
			p.handle(ctx, n)
		}
	}
}

func (p *Producer) handle(ctx context.Context, n solana.LogNotification) {
	if n.Err != nil {
		return
	}
	event := pump.ParseTradeEvent(n.Logs)
	if event == nil {
		return
	}
	if p.metrics != nil {
		p.metrics.CurveEventsSeen.Inc()
	}

	// Cheap prefilter: nothing below the threshold costs a network call.
	progress := event.CurveProgressPct()
	if progress < p.cfg.CurveThresholdPct {
		return
	}

	mint := event.Mint.String()
	if p.wl.Has(mint) {
		return
	}

	p.mu.Lock()
	if _, busy := p.inFlight[mint]; busy {
		p.mu.Unlock()
		return
	}
	p.inFlight[mint] = struct{}{}
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer func() {
			p.mu.Lock()
			delete(p.inFlight, mint)
			p.mu.Unlock()
		}()
		p.vet(ctx, event, progress)
	}()
}

// vet runs the candidate checks concurrently and whitelists the mint
// when all pass. A rejected mint may be retried on its next trade event.
func (p *Producer) vet(ctx context.Context, event *pump.TradeEvent, progress float64) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.CheckTimeout)
	defer cancel()

	mint := event.Mint.String()
	log := p.log.With().Str("mint", mint).Float64("progress_pct", progress).Logger()

	var (
		mu      sync.Mutex
		reasons []string
		meta    *domain.TokenMetadata
	)
	reject := func(reason string) {
		mu.Lock()
		reasons = append(reasons, reason)
		mu.Unlock()
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		m, err := p.meta.Get(ctx, mint)
		if err != nil {
			log.Debug().Err(err).Msg("metadata fetch failed")
			reject("metadata_unavailable")
			return
		}
		if !m.HasSocials() {
			reject("no_socials")
			return
		}
		mu.Lock()
		meta = m
		mu.Unlock()
	}()

	if !p.cfg.RelaxedChecks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := p.holdersAcceptable(ctx, event)
			if err != nil {
				log.Debug().Err(err).Msg("holder check failed")
				reject("holders_unavailable")
				return
			}
			if !ok {
				reject("insider_concentration")
			}
		}()

		wg.Add(1)
		go func() {
			defer wg.Done()
			info, err := p.chain.MintInfo(ctx, event.Mint)
			if err != nil {
				log.Debug().Err(err).Msg("mint info fetch failed")
				reject("mint_unavailable")
				return
			}
			if !info.Renounced() {
				reject("authority_live")
			}
		}()
	}

	wg.Wait()

	if len(reasons) > 0 {
		if p.metrics != nil {
			for _, r := range reasons {
				p.metrics.CandidatesRejected.WithLabelValues(r).Inc()
			}
		}
		log.Info().Strs("reasons", reasons).Msg("candidate rejected")
		return
	}

	p.wl.Upsert(whitelist.Entry{
		Mint:     mint,
		Name:     meta.Name,
		Symbol:   meta.Symbol,
		Decimals: meta.Decimals,
	})
	if p.metrics != nil {
		p.metrics.CandidatesApproved.Inc()
		p.metrics.WhitelistSize.Set(float64(p.wl.Size()))
	}
	log.Info().Str("symbol", meta.Symbol).Msg("candidate whitelisted")
}

// holdersAcceptable sums the top non-vault holders against the insider
// threshold. Vaults are any account holding more than vaultSharePct of
// supply, which on a pre-migration token is the bonding curve itself.
func (p *Producer) holdersAcceptable(ctx context.Context, event *pump.TradeEvent) (bool, error) {
	supply, err := p.chain.TokenSupply(ctx, event.Mint)
	if err != nil {
		return false, err
	}
	if supply == 0 {
		return false, nil
	}

	holders, err := p.chain.LargestHolders(ctx, event.Mint)
	if err != nil {
		return false, err
	}

	// getTokenLargestAccounts returns holders sorted descending.
	var sum, counted uint64
	for _, h := range holders {
		if float64(h.Amount)/float64(supply)*100 > vaultSharePct {
			continue
		}
		sum += h.Amount
		counted++
		if counted == topHolderCount {
			break
		}
	}
	return float64(sum)/float64(supply)*100 <= p.cfg.InsiderThresholdPct, nil
}
