// Command sniper runs the migration sniping bot: the pump.fun producer
// feeding the whitelist, the Raydium listener firing buys, and the
// position manager running every holding to exit.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"migration-sniper/internal/blockhash"
	"migration-sniper/internal/config"
	"migration-sniper/internal/executor"
	"migration-sniper/internal/listener"
	"migration-sniper/internal/logging"
	"migration-sniper/internal/metadata"
	"migration-sniper/internal/observability"
	"migration-sniper/internal/oracle"
	"migration-sniper/internal/position"
	"migration-sniper/internal/precog"
	"migration-sniper/internal/sniper"
	"migration-sniper/internal/solana"
	"migration-sniper/internal/storage"
	"migration-sniper/internal/storage/file"
	"migration-sniper/internal/storage/postgres"
	"migration-sniper/internal/storage/sqlite"
	"migration-sniper/internal/whitelist"
)

const lamportsPerSOL = 1_000_000_000

func main() {
	configPath := flag.String("config", "config.toml", "Path to the TOML configuration file")
	flag.Parse()

	// .env is optional; PRIVATE_KEY may come from the real environment.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(cfg.LogLevel)
	if err := run(cfg, log); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("sniper exited")
	}
	log.Info().Msg("shutdown complete")
}

func run(cfg *config.Config, log zerolog.Logger) error {
	wallet, err := loadWallet(cfg, log)
	if err != nil {
		return err
	}
	owner := wallet.PublicKey()
	log.Info().Str("wallet", owner.String()).Bool("dry_run", cfg.DryRun).Msg("starting")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics := observability.DefaultMetrics
	if cfg.Metrics.Addr != "" {
		go func() {
			if err := observability.Serve(cfg.Metrics.Addr); err != nil {
				log.Error().Err(err).Msg("metrics server failed")
			}
		}()
	}

	chain := solana.NewChainClient(cfg.RPC.HTTPURL)

	bhCache := blockhash.New(chain, cfg.RPC.BlockhashInterval(), log)
	go bhCache.Start(ctx)
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				metrics.BlockhashAge.Set(bhCache.Age().Seconds())
			}
		}
	}()

	// Submission routes. The sender route falls back to the primary RPC
	// when no dedicated accelerated endpoint is configured.
	var bundleRoute executor.BundleSubmitter
	if cfg.RPC.JitoURL != "" {
		bundleRoute = executor.NewJitoClient(cfg.RPC.JitoURL, executor.WithJitoTimeout(cfg.RPC.Timeout()))
	}
	senderRoute := chain
	if cfg.RPC.SenderURL != "" {
		senderRoute = solana.NewChainClient(cfg.RPC.SenderURL)
	}

	confirmer := executor.NewConfirmer(chain, bundleRoute, cfg.Confirm.PollInterval(), cfg.Confirm.Timeout(), metrics, log)
	tip := executor.TipPolicy{
		ProfitPct:     cfg.Trade.TipProfitPct,
		FloorLamports: solToLamports(cfg.Trade.TipFloorSOL),
		CapLamports:   solToLamports(cfg.Trade.TipCapSOL),
	}
	exec, err := executor.New(wallet, bhCache, bundleRoute, senderRoute, confirmer, tip, cfg.DryRun, metrics, log)
	if err != nil {
		return err
	}

	engine := sniper.NewEngine(chain, owner, cfg.Trade.SlippageBps, log)

	tradeStore, closeTrades, err := openTradeStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeTrades()
	posStore := file.NewPositionStore(cfg.Storage.StateFile)

	scorer := oracle.NewClient(cfg.Oracle.URL, cfg.Oracle.Timeout(), cfg.Oracle.Retries, log)
	manager := position.NewManager(chain, engine, exec, scorer, posStore, tradeStore, owner, position.Config{
		WagerLamports:     solToLamports(cfg.Trade.WagerSOL),
		MonitorInterval:   cfg.Exit.MonitorInterval(),
		MoonbagValueSOL:   cfg.Exit.MoonbagValueSOL,
		MoonbagSellPct:    uint64(cfg.Exit.MoonbagSellPct),
		BalanceRetries:    cfg.Exit.BalanceRetries,
		BalanceRetryDelay: cfg.Exit.BalanceRetryDelay(),
	}, metrics, log)

	if err := manager.Restore(ctx); err != nil {
		return fmt.Errorf("restore positions: %w", err)
	}

	// Two connections: pump.fun wants the earliest possible look at
	// curve trades, the migration feed must not act on unconfirmed
	// pools. Separate sockets also dodge provider-side subscription
	// deduplication.
	pumpCfg := solana.DefaultWSConfig()
	pumpCfg.Commitment = "processed"
	pumpWS, err := solana.NewWSClient(ctx, cfg.RPC.WSURL, &pumpCfg, log)
	if err != nil {
		return fmt.Errorf("pump websocket: %w", err)
	}
	defer pumpWS.Close()

	rayWS, err := solana.NewWSClient(ctx, cfg.RPC.WSURL, nil, log)
	if err != nil {
		return fmt.Errorf("raydium websocket: %w", err)
	}
	defer rayWS.Close()

	wl := whitelist.New(cfg.Precog.WhitelistTTL())
	producer := precog.NewProducer(pumpWS, chain, metadata.NewClient(cfg.Precog.MetadataURL, cfg.RPC.Timeout()), wl, precog.Config{
		CurveThresholdPct:   cfg.Precog.CurveThresholdPct,
		InsiderThresholdPct: cfg.Precog.InsiderThresholdPct,
		CheckTimeout:        cfg.Precog.CheckTimeout(),
		RelaxedChecks:       cfg.Precog.RelaxedChecks,
	}, metrics, log)

	lst := listener.New(rayWS, chain, wl, manager, listener.Config{
		RelaxedChecks: cfg.Precog.RelaxedChecks,
	}, metrics, log)

	errCh := make(chan error, 2)
	go func() {
		if err := producer.Run(ctx); err != nil {
			errCh <- fmt.Errorf("producer: %w", err)
		}
	}()
	go func() {
		if err := lst.Run(ctx); err != nil {
			errCh <- fmt.Errorf("listener: %w", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errCh:
		log.Error().Err(err).Msg("component failed")
		runErr = err
	}

	// Second signal skips the emergency exit and kills the process.
	go func() {
		sig := <-sigCh
		log.Warn().Str("signal", sig.String()).Msg("forced shutdown")
		os.Exit(1)
	}()

	cancel()
	manager.Wait()

	exitCtx, exitCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer exitCancel()
	manager.EmergencyExitAll(exitCtx)

	return runErr
}

// loadWallet reads the signing key from the environment. Dry runs get
// an ephemeral wallet when no key is configured.
func loadWallet(cfg *config.Config, log zerolog.Logger) (solanago.PrivateKey, error) {
	keyStr, err := config.PrivateKeyFromEnv()
	if err != nil {
		if cfg.DryRun {
			log.Warn().Msg("no PRIVATE_KEY set, using ephemeral wallet for dry run")
			return solanago.NewWallet().PrivateKey, nil
		}
		return nil, err
	}
	wallet, err := solanago.PrivateKeyFromBase58(keyStr)
	if err != nil {
		return nil, fmt.Errorf("parse PRIVATE_KEY: %w", err)
	}
	return wallet, nil
}

// openTradeStore prefers postgres when a DSN is configured, otherwise
// the embedded sqlite file.
func openTradeStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (storage.TradeStore, func(), error) {
	if cfg.Storage.PostgresDSN != "" {
		pool, err := postgres.NewPool(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		log.Info().Msg("trade log: postgres")
		return postgres.NewTradeStore(pool), pool.Close, nil
	}

	db, err := sqlite.Open(ctx, cfg.Storage.SQLitePath)
	if err != nil {
		return nil, nil, fmt.Errorf("open sqlite %s: %w", cfg.Storage.SQLitePath, err)
	}
	log.Info().Str("path", cfg.Storage.SQLitePath).Msg("trade log: sqlite")
	return sqlite.NewTradeStore(db), func() { _ = db.Close() }, nil
}

func solToLamports(sol float64) uint64 {
	return uint64(sol * lamportsPerSOL)
}
