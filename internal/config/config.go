// Package config loads the YAML + .env configuration shared by every
// service binary, following the same godotenv-then-yaml-then-defaults
// pipeline the rest of this codebase's ancestry uses.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full configuration surface. Each service only reads the
// sections it needs, but all services load the same file so the state
// directory and broker credentials stay consistent across the fleet.
type Config struct {
	StateDir     string             `yaml:"state_dir"`
	Broker       BrokerConfig       `yaml:"broker"`
	Scanning     ScanningConfig     `yaml:"scanning"`
	Trading      TradingConfig      `yaml:"trading"`
	Risk         RiskConfig         `yaml:"risk"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	Log          LogConfig          `yaml:"log"`
	Audit        AuditConfig        `yaml:"audit"`
}

// BrokerConfig holds Alpaca credentials and the shared 200/min call
// budget, broken down per component the way spec §5 allocates it.
type BrokerConfig struct {
	APIKey           string `yaml:"api_key"`
	APISecret        string `yaml:"api_secret"`
	TradingBaseURL   string `yaml:"trading_base_url"`
	DataBaseURL      string `yaml:"data_base_url"`
	TotalCallsPerMin int    `yaml:"total_calls_per_min"`

	ScannerCallsPerMin      int `yaml:"scanner_calls_per_min"`
	MonitorCallsPerMin      int `yaml:"monitor_calls_per_min"`
	BuyerCallsPerMin        int `yaml:"buyer_calls_per_min"`
	SellerCallsPerMin       int `yaml:"seller_calls_per_min"`
	OrchestratorCallsPerMin int `yaml:"orchestrator_calls_per_min"`
}

// ScanningConfig controls PreMarketScanner and Scanner cadence and
// thresholds (spec §4.1, §4.2, §6.4).
type ScanningConfig struct {
	PreMarketIntervalSeconds int     `yaml:"premarket_interval_seconds"`
	ScanIntervalSeconds      int     `yaml:"scan_interval_seconds"`
	WatchlistSize            int     `yaml:"watchlist_size"`
	BaseUniverseSize         int     `yaml:"base_universe_size"`
	MinGapPct                float64 `yaml:"min_gap_pct"`
	MinPremarketVolume       float64 `yaml:"min_premarket_volume"`
	MinPremarketRelVolume    float64 `yaml:"min_premarket_rel_volume"`
	PriceMin                 float64 `yaml:"price_min"`
	PriceMax                 float64 `yaml:"price_max"`
	MinEntryScore            float64 `yaml:"min_entry_score"`
	MinBreakoutPct           float64 `yaml:"min_breakout_pct"`
	MinRelativeVolume        float64 `yaml:"min_relative_volume"`
	RSIMin                   float64 `yaml:"rsi_min"`
	RSIMax                   float64 `yaml:"rsi_max"`
	RequireAboveVWAP         bool    `yaml:"require_above_vwap"`
	SignalMaxAgeSeconds      int     `yaml:"signal_max_age_seconds"`
}

// TradingConfig controls Buyer position sizing, slippage limits, and
// dedup (spec §4.3).
type TradingConfig struct {
	BuyIntervalSeconds  int     `yaml:"buy_interval_seconds"`
	HotCheckSeconds     int     `yaml:"hot_check_interval"`
	HotCheckMinScore    float64 `yaml:"hot_check_min_score"`
	MaxPositions        int     `yaml:"max_positions"`
	MaxSlippagePct      float64 `yaml:"max_slippage_pct"`
	MaxSpreadPct        float64 `yaml:"max_spread_pct"`
	ReversalPct         float64 `yaml:"reversal_pct"`
	UseLimitOrders      bool    `yaml:"use_limit_orders"`
	LimitOrderBuffer    float64 `yaml:"limit_order_buffer"`
	OrderTimeoutSeconds int     `yaml:"order_timeout_seconds"`
	CooldownMinutes     int     `yaml:"cooldown_minutes"`
	DedupWindowMinutes  int     `yaml:"dedup_window_minutes"`
}

// PositionSizeTier maps a minimum score to the percentage of equity risked.
type PositionSizeTier struct {
	MinScore float64
	Pct      float64
}

// DefaultPositionSizeTiers is the §4.3 tier table, highest tier first.
func DefaultPositionSizeTiers() []PositionSizeTier {
	return []PositionSizeTier{
		{MinScore: 95, Pct: 0.10},
		{MinScore: 85, Pct: 0.07},
		{MinScore: 60, Pct: 0.05},
	}
}

// RiskConfig controls Monitor's exit rules (spec §4.4).
type RiskConfig struct {
	MonitorIntervalSeconds int     `yaml:"monitor_interval_seconds"`
	SellIntervalSeconds    int     `yaml:"sell_interval_seconds"`
	StopLossPct            float64 `yaml:"stop_loss_pct"`
	BreakEvenProfitPct     float64 `yaml:"breakeven_profit"`
	DecelExitThreshold     float64 `yaml:"decel_exit_threshold"`
	MinProfitForDecelCheck float64 `yaml:"min_profit_for_decel_check"`
	EODWindowMinutes       int     `yaml:"eod_window_minutes"`
	SellerMaxFailures      int     `yaml:"seller_max_failures"`
}

// TrailingStopTier maps a minimum profit fraction to the trailing
// distance below peak (spec §4.4 tiered trailing stop table).
type TrailingStopTier struct {
	MinProfitPct float64
	TrailingPct  float64
}

// DefaultTrailingStopTiers is the §4.4 table, highest tier first.
func DefaultTrailingStopTiers() []TrailingStopTier {
	return []TrailingStopTier{
		{MinProfitPct: 0.20, TrailingPct: 0.05},
		{MinProfitPct: 0.15, TrailingPct: 0.04},
		{MinProfitPct: 0.10, TrailingPct: 0.03},
		{MinProfitPct: 0.05, TrailingPct: 0.02},
	}
}

// OrchestratorConfig controls the supervising process (spec §4.7).
type OrchestratorConfig struct {
	StatusAddr          string `yaml:"status_addr"`
	HeartbeatSeconds     int   `yaml:"heartbeat_seconds"`
	GracefulStopSeconds int    `yaml:"graceful_stop_seconds"`
	MaxBackoffSeconds   int    `yaml:"max_backoff_seconds"`
	StableAfterMinutes  int    `yaml:"stable_after_minutes"`
}

// AuditConfig controls the supplementary SQLite trade history (SPEC_FULL §C.1).
type AuditConfig struct {
	Enabled bool   `yaml:"enabled"`
	DBPath  string `yaml:"db_path"`
}

// LogConfig controls slog output (shared ambient stack, SPEC_FULL §A.1).
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load reads path, overlays a .env file (if present) and environment
// variables, then fills defaults for anything left unset.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	// REQUIRE_ABOVE_VWAP defaults to true. Presetting it before parsing
	// keeps that default when the key is absent, while an explicit
	// `require_above_vwap: false` in the YAML still overrides it.
	cfg := Config{Scanning: ScanningConfig{RequireAboveVWAP: true}}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ALPACA_API_KEY"); v != "" {
		cfg.Broker.APIKey = v
	}
	if v := os.Getenv("ALPACA_API_SECRET"); v != "" {
		cfg.Broker.APISecret = v
	}
	if v := os.Getenv("STATE_DIR"); v != "" {
		cfg.StateDir = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("STATUS_ADDR"); v != "" {
		cfg.Orchestrator.StatusAddr = v
	}
}

// setDefaults fills every option listed in spec §6.4, using the parenthesized
// default from that section.
func setDefaults(cfg *Config) {
	if cfg.StateDir == "" {
		cfg.StateDir = "state"
	}

	// API_RATE_LIMIT (200/min) and its §5 per-component allocation.
	if cfg.Broker.TotalCallsPerMin <= 0 {
		cfg.Broker.TotalCallsPerMin = 200
	}
	if cfg.Broker.ScannerCallsPerMin <= 0 {
		cfg.Broker.ScannerCallsPerMin = 67
	}
	if cfg.Broker.MonitorCallsPerMin <= 0 {
		cfg.Broker.MonitorCallsPerMin = 80
	}
	if cfg.Broker.BuyerCallsPerMin <= 0 {
		cfg.Broker.BuyerCallsPerMin = 10
	}
	if cfg.Broker.SellerCallsPerMin <= 0 {
		cfg.Broker.SellerCallsPerMin = 5
	}
	if cfg.Broker.OrchestratorCallsPerMin <= 0 {
		cfg.Broker.OrchestratorCallsPerMin = 5
	}

	if cfg.Scanning.PreMarketIntervalSeconds <= 0 {
		cfg.Scanning.PreMarketIntervalSeconds = 300
	}
	if cfg.Scanning.ScanIntervalSeconds <= 0 {
		cfg.Scanning.ScanIntervalSeconds = 45 // SCAN_INTERVAL_SECONDS
	}
	if cfg.Scanning.WatchlistSize <= 0 {
		cfg.Scanning.WatchlistSize = 25 // DAILY_WATCHLIST_SIZE
	}
	if cfg.Scanning.BaseUniverseSize <= 0 {
		cfg.Scanning.BaseUniverseSize = 500 // BASE_UNIVERSE_SIZE
	}
	if cfg.Scanning.MinGapPct <= 0 {
		cfg.Scanning.MinGapPct = 0.03 // MIN_GAP_PCT
	}
	if cfg.Scanning.MinPremarketVolume <= 0 {
		cfg.Scanning.MinPremarketVolume = 50000 // MIN_PREMARKET_VOLUME
	}
	if cfg.Scanning.MinPremarketRelVolume <= 0 {
		cfg.Scanning.MinPremarketRelVolume = 2.0 // MIN_PREMARKET_REL_VOLUME
	}
	if cfg.Scanning.PriceMin <= 0 {
		cfg.Scanning.PriceMin = 2.0 // PRICE_MIN
	}
	if cfg.Scanning.PriceMax <= 0 {
		cfg.Scanning.PriceMax = 50.0 // PRICE_MAX
	}
	if cfg.Scanning.MinEntryScore <= 0 {
		cfg.Scanning.MinEntryScore = 60 // MIN_ENTRY_SCORE
	}
	if cfg.Scanning.MinBreakoutPct <= 0 {
		cfg.Scanning.MinBreakoutPct = 0.01 // MIN_BREAKOUT_PCT
	}
	if cfg.Scanning.MinRelativeVolume <= 0 {
		cfg.Scanning.MinRelativeVolume = 2.0 // MIN_RELATIVE_VOLUME
	}
	if cfg.Scanning.RSIMin <= 0 {
		cfg.Scanning.RSIMin = 40 // RSI_MIN
	}
	if cfg.Scanning.RSIMax <= 0 {
		cfg.Scanning.RSIMax = 75 // RSI_MAX
	}
	// REQUIRE_ABOVE_VWAP (true) is preset in Load before the YAML is parsed.
	if cfg.Scanning.SignalMaxAgeSeconds <= 0 {
		cfg.Scanning.SignalMaxAgeSeconds = 60 // SIGNAL_MAX_AGE_SECONDS
	}

	if cfg.Trading.BuyIntervalSeconds <= 0 {
		cfg.Trading.BuyIntervalSeconds = 15 // BUYER_INTERVAL_SECONDS
	}
	if cfg.Trading.HotCheckSeconds <= 0 {
		cfg.Trading.HotCheckSeconds = 5 // HOT_CHECK_INTERVAL
	}
	if cfg.Trading.HotCheckMinScore <= 0 {
		cfg.Trading.HotCheckMinScore = 90
	}
	if cfg.Trading.MaxPositions <= 0 {
		cfg.Trading.MaxPositions = 20 // MAX_POSITIONS
	}
	if cfg.Trading.MaxSlippagePct <= 0 {
		cfg.Trading.MaxSlippagePct = 0.02 // MAX_SLIPPAGE_PCT
	}
	if cfg.Trading.MaxSpreadPct <= 0 {
		cfg.Trading.MaxSpreadPct = 0.02 // MAX_SPREAD_PCT
	}
	if cfg.Trading.ReversalPct <= 0 {
		cfg.Trading.ReversalPct = 0.03
	}
	if !cfg.Trading.UseLimitOrders {
		cfg.Trading.UseLimitOrders = true // USE_LIMIT_ORDERS
	}
	if cfg.Trading.LimitOrderBuffer <= 0 {
		cfg.Trading.LimitOrderBuffer = 0.005 // LIMIT_ORDER_BUFFER
	}
	if cfg.Trading.OrderTimeoutSeconds <= 0 {
		cfg.Trading.OrderTimeoutSeconds = 30
	}
	if cfg.Trading.CooldownMinutes <= 0 {
		cfg.Trading.CooldownMinutes = 15 // COOLDOWN_MINUTES
	}
	if cfg.Trading.DedupWindowMinutes <= 0 {
		cfg.Trading.DedupWindowMinutes = 10
	}

	if cfg.Risk.MonitorIntervalSeconds <= 0 {
		cfg.Risk.MonitorIntervalSeconds = 30 // MONITOR_INTERVAL_SECONDS
	}
	if cfg.Risk.SellIntervalSeconds <= 0 {
		cfg.Risk.SellIntervalSeconds = 15 // SELLER_INTERVAL_SECONDS
	}
	if cfg.Risk.StopLossPct <= 0 {
		cfg.Risk.StopLossPct = 0.025 // STOP_LOSS_PCT
	}
	if cfg.Risk.BreakEvenProfitPct <= 0 {
		cfg.Risk.BreakEvenProfitPct = 0.05 // BREAKEVEN_PROFIT
	}
	if cfg.Risk.DecelExitThreshold <= 0 {
		cfg.Risk.DecelExitThreshold = 0.5 // DECEL_EXIT_THRESHOLD
	}
	if cfg.Risk.MinProfitForDecelCheck <= 0 {
		cfg.Risk.MinProfitForDecelCheck = 0.05 // MIN_PROFIT_FOR_DECEL_CHECK
	}
	if cfg.Risk.EODWindowMinutes <= 0 {
		cfg.Risk.EODWindowMinutes = 5
	}
	if cfg.Risk.SellerMaxFailures <= 0 {
		cfg.Risk.SellerMaxFailures = 3
	}

	if cfg.Orchestrator.StatusAddr == "" {
		cfg.Orchestrator.StatusAddr = "127.0.0.1:9090"
	}
	if cfg.Orchestrator.HeartbeatSeconds <= 0 {
		cfg.Orchestrator.HeartbeatSeconds = 10
	}
	if cfg.Orchestrator.GracefulStopSeconds <= 0 {
		cfg.Orchestrator.GracefulStopSeconds = 30
	}
	if cfg.Orchestrator.MaxBackoffSeconds <= 0 {
		cfg.Orchestrator.MaxBackoffSeconds = 60
	}
	if cfg.Orchestrator.StableAfterMinutes <= 0 {
		cfg.Orchestrator.StableAfterMinutes = 5
	}

	if cfg.Audit.DBPath == "" {
		cfg.Audit.DBPath = "audit.db"
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

func (c *Config) PreMarketInterval() time.Duration {
	return time.Duration(c.Scanning.PreMarketIntervalSeconds) * time.Second
}

func (c *Config) ScanInterval() time.Duration {
	return time.Duration(c.Scanning.ScanIntervalSeconds) * time.Second
}

func (c *Config) BuyInterval() time.Duration {
	return time.Duration(c.Trading.BuyIntervalSeconds) * time.Second
}

func (c *Config) HotCheckInterval() time.Duration {
	return time.Duration(c.Trading.HotCheckSeconds) * time.Second
}

func (c *Config) MonitorInterval() time.Duration {
	return time.Duration(c.Risk.MonitorIntervalSeconds) * time.Second
}

func (c *Config) SellInterval() time.Duration {
	return time.Duration(c.Risk.SellIntervalSeconds) * time.Second
}

func (c *Config) OrderTimeout() time.Duration {
	return time.Duration(c.Trading.OrderTimeoutSeconds) * time.Second
}

func (c *Config) SignalMaxAge() time.Duration {
	return time.Duration(c.Scanning.SignalMaxAgeSeconds) * time.Second
}

func (c *Config) CooldownDuration() time.Duration {
	return time.Duration(c.Trading.CooldownMinutes) * time.Minute
}

func (c *Config) DedupWindow() time.Duration {
	return time.Duration(c.Trading.DedupWindowMinutes) * time.Minute
}

func (c *Config) EODWindow() time.Duration {
	return time.Duration(c.Risk.EODWindowMinutes) * time.Minute
}

func (c *Config) GracefulStop() time.Duration {
	return time.Duration(c.Orchestrator.GracefulStopSeconds) * time.Second
}

func (c *Config) MaxBackoff() time.Duration {
	return time.Duration(c.Orchestrator.MaxBackoffSeconds) * time.Second
}

func (c *Config) StableAfter() time.Duration {
	return time.Duration(c.Orchestrator.StableAfterMinutes) * time.Minute
}

func (c *Config) HeartbeatInterval() time.Duration {
	return time.Duration(c.Orchestrator.HeartbeatSeconds) * time.Second
}
