// Package position owns the post-buy lifecycle: scoring, monitoring,
// staged exits and persistence. Every state transition is snapshotted
// so a restart resumes exactly where the process died.
package position

import (
	"context"
	"sync"
	"time"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"

	"migration-sniper/internal/domain"
	"migration-sniper/internal/executor"
	"migration-sniper/internal/listener"
	"migration-sniper/internal/observability"
	"migration-sniper/internal/raydium"
	"migration-sniper/internal/sniper"
	"migration-sniper/internal/solana"
	"migration-sniper/internal/storage"
)

// Trader builds swap plans. Implemented by sniper.Engine.
type Trader interface {
	RegisterPool(keys *domain.PoolKeys)
	BuildBuy(ctx context.Context, mint string, lamports uint64) (*sniper.SwapPlan, error)
	BuildSell(ctx context.Context, mint string, amountRaw uint64, emergency bool) (*sniper.SwapPlan, error)
}

// Submitter signs and lands transactions. Implemented by
// executor.Executor.
type Submitter interface {
	Execute(ctx context.Context, instrs []solanago.Instruction, expectedProfitLamports uint64) (*executor.Receipt, error)
}

// Scorer rates a token 1-10. Implemented by oracle.Client.
type Scorer interface {
	Score(ctx context.Context, meta *domain.TokenMetadata) int
}

// Config tunes the manager.
type Config struct {
	WagerLamports     uint64
	MonitorInterval   time.Duration
	MoonbagValueSOL   float64
	MoonbagSellPct    uint64 // share of the position sold when the moonbag triggers
	BalanceRetries    int
	BalanceRetryDelay time.Duration
}

// Manager opens positions on verified migrations and runs them to exit.
type Manager struct {
	chain     solana.Chain
	trader    Trader
	submitter Submitter
	scorer    Scorer
	positions storage.PositionStore
	trades    storage.TradeStore
	owner     solanago.PublicKey
	cfg       Config
	metrics   *observability.Metrics
	log       zerolog.Logger

	mu   sync.Mutex
	open map[string]*domain.Position

	wg sync.WaitGroup
}

// Compile-time check: the manager is the listener's buy handler.
var _ listener.Handler = (*Manager)(nil)

// NewManager wires a manager. metrics may be nil in tests.
func NewManager(
	chain solana.Chain,
	trader Trader,
	submitter Submitter,
	scorer Scorer,
	positions storage.PositionStore,
	trades storage.TradeStore,
	owner solanago.PublicKey,
	cfg Config,
	metrics *observability.Metrics,
	log zerolog.Logger,
) *Manager {
	if cfg.BalanceRetries <= 0 {
		cfg.BalanceRetries = 10
	}
	if cfg.BalanceRetryDelay <= 0 {
		cfg.BalanceRetryDelay = 300 * time.Millisecond
	}
	if cfg.MonitorInterval <= 0 {
		cfg.MonitorInterval = 1500 * time.Millisecond
	}
	return &Manager{
		chain:     chain,
		trader:    trader,
		submitter: submitter,
		scorer:    scorer,
		positions: positions,
		trades:    trades,
		owner:     owner,
		cfg:       cfg,
		metrics:   metrics,
		log:       log.With().Str("component", "position").Logger(),
		open:      make(map[string]*domain.Position),
	}
}

// Thresholds maps an oracle score to exit levels relative to entry.
// Scores below 5 mean sell immediately.
func Thresholds(score int, entryPrice float64) (takeProfit, stopLoss float64, sellNow bool) {
	switch {
	case score < 5:
		return 0, 0, true
	case score <= 7:
		return entryPrice * 1.50, entryPrice * 0.90, false
	default:
		return entryPrice * 3.00, entryPrice * 0.85, false
	}
}

// HandleMigration buys into a freshly verified pool and opens the
// position. Called from the listener's single worker.
func (m *Manager) HandleMigration(ctx context.Context, mig *listener.Migration) {
	mint := mig.Keys.BaseMint.String()
	log := m.log.With().Str("mint", mint).Str("symbol", mig.Entry.Symbol).Logger()

	m.trader.RegisterPool(mig.Keys)

	plan, err := m.trader.BuildBuy(ctx, mint, m.cfg.WagerLamports)
	if err != nil {
		log.Error().Err(err).Msg("buy build failed")
		return
	}

	if m.metrics != nil {
		m.metrics.BuysSubmitted.Inc()
		m.metrics.DetectToSubmit.Observe(time.Since(mig.DetectedAt).Seconds())
	}
	receipt, err := m.submitter.Execute(ctx, plan.Instructions, 0)
	if err != nil {
		log.Error().Err(err).Msg("buy execution failed")
		return
	}
	if !receipt.Confirmed {
		log.Warn().Str("signature", receipt.Signature.String()).Msg("buy never confirmed, no position opened")
		return
	}
	log.Info().Str("signature", receipt.Signature.String()).Uint64("expected_out", plan.ExpectedOut).Msg("buy confirmed")

	m.openPosition(ctx, mig, receipt.Signature)
}

// openPosition reads the real fill from chain and starts the lifecycle.
// The confirmed balance is the position size; the quote never is.
func (m *Manager) openPosition(ctx context.Context, mig *listener.Migration, buySig solanago.Signature) {
	mint := mig.Keys.BaseMint.String()
	log := m.log.With().Str("mint", mint).Logger()

	amount, err := m.settledBalance(ctx, mig.Keys.BaseMint)
	if err != nil {
		log.Error().Err(err).Msg("balance read failed after confirmed buy")
		return
	}
	if amount == 0 {
		log.Error().Msg("confirmed buy but zero balance, refusing ghost position")
		return
	}

	entryPrice := m.spotPrice(ctx, mig.Keys, mig.Entry.Decimals)

	pos := &domain.Position{
		Mint:         mint,
		Symbol:       mig.Entry.Symbol,
		Decimals:     mig.Entry.Decimals,
		AmountRaw:    amount,
		EntryPrice:   entryPrice,
		EntryTime:    time.Now(),
		Status:       domain.PositionScoring,
		BuySignature: buySig.String(),
		Pool:         *mig.Keys,
	}

	m.mu.Lock()
	m.open[mint] = pos
	m.mu.Unlock()
	m.persist(ctx)
	if m.metrics != nil {
		m.metrics.PositionsOpen.Set(float64(m.openCount()))
	}

	pos.Score = m.scorer.Score(ctx, &domain.TokenMetadata{
		Mint:   mint,
		Name:   mig.Entry.Name,
		Symbol: mig.Entry.Symbol,
	})
	tp, sl, sellNow := Thresholds(pos.Score, entryPrice)
	log.Info().Int("score", pos.Score).Float64("entry_price", entryPrice).Msg("position scored")

	if sellNow {
		m.exit(ctx, pos, pos.AmountRaw, domain.ExitReasonLowScore, false)
		return
	}

	pos.TakeProfit = tp
	pos.StopLoss = sl
	pos.Status = domain.PositionMonitoring
	pos.UpdatedAt = time.Now()
	m.persist(ctx)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.monitor(ctx, pos)
	}()
}

// Restore reloads the snapshot, re-registers pools and resumes
// monitoring. Call once at startup before the listener runs.
func (m *Manager) Restore(ctx context.Context) error {
	saved, err := m.positions.Load(ctx)
	if err != nil {
		return err
	}

	for _, pos := range saved {
		if !pos.Open() {
			continue
		}
		pool := pos.Pool
		m.trader.RegisterPool(&pool)

		// A position that died mid-scoring has no levels yet; give it
		// neutral ones rather than re-querying the oracle.
		if pos.TakeProfit == 0 && pos.StopLoss == 0 {
			pos.TakeProfit, pos.StopLoss, _ = Thresholds(5, pos.EntryPrice)
		}
		pos.Status = domain.PositionMonitoring

		m.mu.Lock()
		m.open[pos.Mint] = pos
		m.mu.Unlock()

		m.log.Info().Str("mint", pos.Mint).Str("symbol", pos.Symbol).Msg("position restored")
		p := pos
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			m.monitor(ctx, p)
		}()
	}

	if m.metrics != nil {
		m.metrics.PositionsOpen.Set(float64(m.openCount()))
	}
	return nil
}

// monitor re-prices the position each interval and fires exits.
func (m *Manager) monitor(ctx context.Context, pos *domain.Position) {
	ticker := time.NewTicker(m.cfg.MonitorInterval)
	defer ticker.Stop()

	log := m.log.With().Str("mint", pos.Mint).Logger()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		m.mu.Lock()
		if pos.Status != domain.PositionMonitoring {
			m.mu.Unlock()
			return
		}
		m.mu.Unlock()

		price := m.spotPrice(ctx, &pos.Pool, pos.Decimals)
		if price <= 0 {
			continue
		}

		switch {
		case price >= pos.TakeProfit:
			// A big winner exits in two stages: the majority at the
			// target, the moonbag rides with a raised target and a
			// breakeven floor.
			if !pos.MoonbagTaken && m.positionValueSOL(pos, price) > m.cfg.MoonbagValueSOL {
				m.takeMoonbag(ctx, pos, price)
				continue
			}
			log.Info().Float64("price", price).Float64("take_profit", pos.TakeProfit).Msg("take profit hit")
			m.exit(ctx, pos, pos.AmountRaw, domain.ExitReasonTakeProfit, false)
			return

		// Strict: a moonbag stop sits exactly at breakeven and must not
		// fire while the price holds that level.
		case price < pos.StopLoss:
			log.Warn().Float64("price", price).Float64("stop_loss", pos.StopLoss).Msg("stop loss hit")
			m.exit(ctx, pos, pos.AmountRaw, domain.ExitReasonStopLoss, false)
			return
		}
	}
}

// takeMoonbag sells most of the position at the take-profit level and
// lets the rest ride toward a doubled target with the stop raised to
// breakeven, so the trade can no longer lose.
func (m *Manager) takeMoonbag(ctx context.Context, pos *domain.Position, price float64) {
	sellAmount := pos.AmountRaw / 100 * m.cfg.MoonbagSellPct
	if sellAmount == 0 || sellAmount >= pos.AmountRaw {
		return
	}

	if !m.sell(ctx, pos, sellAmount, price, domain.ExitReasonMoonbag, false) {
		return
	}

	m.mu.Lock()
	pos.AmountRaw -= sellAmount
	pos.MoonbagTaken = true
	pos.TakeProfit *= 2
	if pos.StopLoss < pos.EntryPrice {
		pos.StopLoss = pos.EntryPrice
	}
	pos.UpdatedAt = time.Now()
	m.mu.Unlock()
	m.persist(ctx)

	m.log.Info().
		Str("mint", pos.Mint).
		Uint64("sold_raw", sellAmount).
		Uint64("moonbag_raw", pos.AmountRaw).
		Float64("new_stop", pos.StopLoss).
		Msg("moonbag taken")
}

// exit closes the whole position.
func (m *Manager) exit(ctx context.Context, pos *domain.Position, amount uint64, reason string, emergency bool) {
	m.mu.Lock()
	pos.Status = domain.PositionExiting
	pos.UpdatedAt = time.Now()
	m.mu.Unlock()
	m.persist(ctx)

	price := m.spotPrice(ctx, &pos.Pool, pos.Decimals)
	if !m.sell(ctx, pos, amount, price, reason, emergency) && !emergency {
		// Sell failed; back to monitoring for another attempt.
		m.mu.Lock()
		pos.Status = domain.PositionMonitoring
		m.mu.Unlock()
		m.persist(ctx)
		return
	}

	m.mu.Lock()
	pos.Status = domain.PositionClosed
	pos.AmountRaw = 0
	pos.UpdatedAt = time.Now()
	delete(m.open, pos.Mint)
	m.mu.Unlock()
	m.persist(ctx)

	if m.metrics != nil {
		m.metrics.PositionsClosed.WithLabelValues(reason).Inc()
		m.metrics.PositionsOpen.Set(float64(m.openCount()))
	}
	m.log.Info().Str("mint", pos.Mint).Str("reason", reason).Msg("position closed")
}

// sell executes one swap out and records the trade. Returns false when
// the transaction could not be built or never confirmed.
func (m *Manager) sell(ctx context.Context, pos *domain.Position, amount uint64, price float64, reason string, emergency bool) bool {
	log := m.log.With().Str("mint", pos.Mint).Str("reason", reason).Logger()

	plan, err := m.trader.BuildSell(ctx, pos.Mint, amount, emergency)
	if err != nil {
		log.Error().Err(err).Msg("sell build failed")
		return false
	}

	if m.metrics != nil {
		m.metrics.SellsSubmitted.Inc()
	}
	receipt, err := m.submitter.Execute(ctx, plan.Instructions, m.profitLamports(pos, amount, plan.ExpectedOut))
	if err != nil {
		log.Error().Err(err).Msg("sell execution failed")
		return false
	}
	if !receipt.Confirmed {
		log.Warn().Str("signature", receipt.Signature.String()).Msg("sell never confirmed")
		return false
	}

	record := &domain.TradeRecord{
		Mint:          pos.Mint,
		Symbol:        pos.Symbol,
		Score:         pos.Score,
		EntryPrice:    pos.EntryPrice,
		ExitPrice:     price,
		AmountRaw:     amount,
		EntryTime:     pos.EntryTime,
		ExitTime:      time.Now(),
		ExitReason:    reason,
		PnLPct:        pnlPct(pos.EntryPrice, price),
		BuySignature:  pos.BuySignature,
		SellSignature: receipt.Signature.String(),
	}
	if err := m.trades.Insert(ctx, record); err != nil {
		log.Error().Err(err).Msg("trade record insert failed")
	}
	log.Info().Str("signature", receipt.Signature.String()).Float64("pnl_pct", record.PnLPct).Msg("sell confirmed")
	return true
}

// EmergencyExitAll dumps every open position with a zero floor. Called
// on shutdown with a fresh context; monitors are already cancelled.
func (m *Manager) EmergencyExitAll(ctx context.Context) {
	m.mu.Lock()
	positions := make([]*domain.Position, 0, len(m.open))
	for _, pos := range m.open {
		positions = append(positions, pos)
	}
	m.mu.Unlock()

	if len(positions) == 0 {
		return
	}
	m.log.Warn().Int("positions", len(positions)).Msg("emergency exit")

	for _, pos := range positions {
		m.exit(ctx, pos, pos.AmountRaw, domain.ExitReasonShutdown, true)
	}
}

// Wait blocks until all monitor goroutines have stopped.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// OpenPositions returns a snapshot of the live positions.
func (m *Manager) OpenPositions() []*domain.Position {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.Position, 0, len(m.open))
	for _, pos := range m.open {
		cp := *pos
		out = append(out, &cp)
	}
	return out
}

func (m *Manager) openCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.open)
}

// settledBalance polls the wallet's token balance until it is visible.
// RPC state can lag a confirmed transaction by a few hundred ms.
func (m *Manager) settledBalance(ctx context.Context, mint solanago.PublicKey) (uint64, error) {
	var lastErr error
	for attempt := 0; attempt < m.cfg.BalanceRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-time.After(m.cfg.BalanceRetryDelay):
			}
		}
		amount, err := m.chain.WalletTokenBalance(ctx, m.owner, mint)
		if err != nil {
			lastErr = err
			continue
		}
		if amount > 0 {
			return amount, nil
		}
	}
	return 0, lastErr
}

func (m *Manager) spotPrice(ctx context.Context, keys *domain.PoolKeys, decimals uint8) float64 {
	reserves, err := raydium.FetchReserves(ctx, m.chain, keys)
	if err != nil {
		return 0
	}
	return reserves.PriceSOL(decimals)
}

func (m *Manager) positionValueSOL(pos *domain.Position, price float64) float64 {
	whole := float64(pos.AmountRaw)
	for i := uint8(0); i < pos.Decimals; i++ {
		whole /= 10
	}
	return whole * price
}

// profitLamports estimates the realized profit of a sell for tip
// sizing. Zero when the trade is under water.
func (m *Manager) profitLamports(pos *domain.Position, amount uint64, expectedOut uint64) uint64 {
	whole := float64(amount)
	for i := uint8(0); i < pos.Decimals; i++ {
		whole /= 10
	}
	cost := uint64(whole * pos.EntryPrice * 1e9)
	if expectedOut <= cost {
		return 0
	}
	return expectedOut - cost
}

// persist snapshots the open set. Failure is logged, never fatal: a
// missing snapshot costs a restart recovery, a crashed bot costs money.
func (m *Manager) persist(ctx context.Context) {
	snapshot := m.OpenPositions()
	if err := m.positions.Save(ctx, snapshot); err != nil {
		m.log.Error().Err(err).Msg("position snapshot failed")
	}
}

func pnlPct(entry, exit float64) float64 {
	if entry <= 0 {
		return 0
	}
	return (exit - entry) / entry * 100
}
