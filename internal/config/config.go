package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the full bot configuration, loaded from a TOML file.
// Secrets (the wallet key) never live here; they come from the
// environment, see PrivateKeyFromEnv.
type Config struct {
	DryRun   bool   `toml:"dry_run"`
	LogLevel string `toml:"log_level"`

	RPC     RPCConfig     `toml:"rpc"`
	Trade   TradeConfig   `toml:"trade"`
	Precog  PrecogConfig  `toml:"precog"`
	Oracle  OracleConfig  `toml:"oracle"`
	Exit    ExitConfig    `toml:"exit"`
	Confirm ConfirmConfig `toml:"confirm"`
	Storage StorageConfig `toml:"storage"`
	Metrics MetricsConfig `toml:"metrics"`
}

// RPCConfig points at the RPC provider and the two submission routes.
type RPCConfig struct {
	HTTPURL        string `toml:"http_url"`
	WSURL          string `toml:"ws_url"`
	JitoURL        string `toml:"jito_url"`
	SenderURL      string `toml:"sender_url"`
	BlockhashMs    int    `toml:"blockhash_refresh_ms"`
	RequestTimeout int    `toml:"request_timeout_ms"`
}

// TradeConfig sizes the buy and the tip.
type TradeConfig struct {
	WagerSOL     float64 `toml:"wager_sol"`
	SlippageBps  uint64  `toml:"slippage_bps"`
	TipFloorSOL  float64 `toml:"tip_floor_sol"`
	TipCapSOL    float64 `toml:"tip_cap_sol"`
	TipProfitPct float64 `toml:"tip_profit_pct"`
}

// PrecogConfig controls candidate verification.
type PrecogConfig struct {
	CurveThresholdPct   float64 `toml:"curve_threshold_pct"`
	InsiderThresholdPct float64 `toml:"insider_threshold_pct"`
	WhitelistTTLMin     int     `toml:"whitelist_ttl_min"`
	MetadataURL         string  `toml:"metadata_url"`
	CheckTimeoutMs      int     `toml:"check_timeout_ms"`
	RelaxedChecks       bool    `toml:"relaxed_checks"`
}

// OracleConfig points at the scoring service.
type OracleConfig struct {
	URL       string `toml:"url"`
	TimeoutMs int    `toml:"timeout_ms"`
	Retries   int    `toml:"retries"`
}

// ExitConfig controls the position manager.
type ExitConfig struct {
	MonitorIntervalMs int     `toml:"monitor_interval_ms"`
	MoonbagValueSOL   float64 `toml:"moonbag_value_sol"`
	MoonbagSellPct    float64 `toml:"moonbag_sell_pct"`
	BalanceRetries    int     `toml:"balance_retries"`
	BalanceRetryMs    int     `toml:"balance_retry_ms"`
}

// ConfirmConfig controls settlement polling.
type ConfirmConfig struct {
	PollIntervalMs int `toml:"poll_interval_ms"`
	TimeoutMs      int `toml:"timeout_ms"`
}

// StorageConfig selects persistence backends.
type StorageConfig struct {
	StateFile   string `toml:"state_file"`
	SQLitePath  string `toml:"sqlite_path"`
	PostgresDSN string `toml:"postgres_dsn"`
}

// MetricsConfig exposes prometheus metrics.
type MetricsConfig struct {
	Addr string `toml:"addr"`
}

// Default returns a config with all tunables at their defaults. Endpoint
// URLs have no sane default and must come from the file.
func Default() *Config {
	return &Config{
		DryRun:   false,
		LogLevel: "info",
		RPC: RPCConfig{
			BlockhashMs:    400,
			RequestTimeout: 5000,
		},
		Trade: TradeConfig{
			WagerSOL:     0.1,
			SlippageBps:  500,
			TipFloorSOL:  0.0002,
			TipCapSOL:    0.002,
			TipProfitPct: 1.0,
		},
		Precog: PrecogConfig{
			CurveThresholdPct:   92.0,
			InsiderThresholdPct: 20.0,
			WhitelistTTLMin:     10,
			CheckTimeoutMs:      5000,
		},
		Oracle: OracleConfig{
			TimeoutMs: 8000,
			Retries:   2,
		},
		Exit: ExitConfig{
			MonitorIntervalMs: 1500,
			MoonbagValueSOL:   1.0,
			MoonbagSellPct:    80.0,
			BalanceRetries:    10,
			BalanceRetryMs:    300,
		},
		Confirm: ConfirmConfig{
			PollIntervalMs: 500,
			TimeoutMs:      30000,
		},
		Storage: StorageConfig{
			StateFile:  "positions.json",
			SQLitePath: "trades.db",
		},
		Metrics: MetricsConfig{
			Addr: ":9090",
		},
	}
}

// Load reads the TOML file at path over the defaults and validates.
func Load(path string) (*Config, error) {
	cfg := Default()

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Validate checks invariants that would otherwise surface as runtime
// failures mid-trade.
func (c *Config) Validate() error {
	if c.RPC.HTTPURL == "" {
		return fmt.Errorf("rpc.http_url is required")
	}
	if c.RPC.WSURL == "" {
		return fmt.Errorf("rpc.ws_url is required")
	}
	if c.Trade.WagerSOL <= 0 {
		return fmt.Errorf("trade.wager_sol must be positive, got %f", c.Trade.WagerSOL)
	}
	if c.Trade.SlippageBps == 0 || c.Trade.SlippageBps >= 10000 {
		return fmt.Errorf("trade.slippage_bps must be in (0, 10000), got %d", c.Trade.SlippageBps)
	}
	if c.Trade.TipFloorSOL > c.Trade.TipCapSOL {
		return fmt.Errorf("trade.tip_floor_sol %f exceeds tip_cap_sol %f", c.Trade.TipFloorSOL, c.Trade.TipCapSOL)
	}
	if c.Precog.CurveThresholdPct <= 0 || c.Precog.CurveThresholdPct > 100 {
		return fmt.Errorf("precog.curve_threshold_pct must be in (0, 100], got %f", c.Precog.CurveThresholdPct)
	}
	if c.Exit.MoonbagSellPct <= 0 || c.Exit.MoonbagSellPct >= 100 {
		return fmt.Errorf("exit.moonbag_sell_pct must be in (0, 100), got %f", c.Exit.MoonbagSellPct)
	}
	// Relaxed mode skips rug checks. Refuse to trade real funds with it.
	if c.Precog.RelaxedChecks && !c.DryRun {
		return fmt.Errorf("precog.relaxed_checks requires dry_run")
	}
	if c.Storage.StateFile == "" {
		return fmt.Errorf("storage.state_file is required")
	}
	return nil
}

// Duration accessors. TOML carries plain integers to keep the file
// format boring; callers want time.Duration.

func (c *RPCConfig) BlockhashInterval() time.Duration { return ms(c.BlockhashMs) }
func (c *RPCConfig) Timeout() time.Duration           { return ms(c.RequestTimeout) }
func (c *PrecogConfig) WhitelistTTL() time.Duration {
	return time.Duration(c.WhitelistTTLMin) * time.Minute
}
func (c *PrecogConfig) CheckTimeout() time.Duration   { return ms(c.CheckTimeoutMs) }
func (c *OracleConfig) Timeout() time.Duration        { return ms(c.TimeoutMs) }
func (c *ExitConfig) MonitorInterval() time.Duration  { return ms(c.MonitorIntervalMs) }
func (c *ExitConfig) BalanceRetryDelay() time.Duration { return ms(c.BalanceRetryMs) }
func (c *ConfirmConfig) PollInterval() time.Duration  { return ms(c.PollIntervalMs) }
func (c *ConfirmConfig) Timeout() time.Duration       { return ms(c.TimeoutMs) }

func ms(v int) time.Duration { return time.Duration(v) * time.Millisecond }

// PrivateKeyFromEnv returns the base58 wallet key from the environment.
// Callers load .env beforehand (godotenv) so the key never touches the
// config file or the repo.
func PrivateKeyFromEnv() (string, error) {
	key := os.Getenv("PRIVATE_KEY")
	if key == "" {
		return "", fmt.Errorf("PRIVATE_KEY not set")
	}
	return key, nil
}
