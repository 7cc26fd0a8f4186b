// Package config defines the top-level configuration for the arbitrage
// pipeline and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by ARBPIPE_* environment
// variables. The pipeline treats the loaded configuration as read-only for
// the process lifetime.
type Config struct {
	Postgres    PostgresConfig    `toml:"postgres"`
	Redis       RedisConfig       `toml:"redis"`
	S3          S3Config          `toml:"s3"`
	Feed        FeedConfig        `toml:"feed"`
	Pipeline    PipelineConfig    `toml:"pipeline"`
	Correlation CorrelationConfig `toml:"correlation"`
	Detector    DetectorConfig    `toml:"detector"`
	Risk        RiskConfig        `toml:"risk"`
	Validation  ValidationConfig  `toml:"validation"`
	NBA         NBAConfig         `toml:"nba"`
	Mode        string            `toml:"mode"`
	LogLevel    string            `toml:"log_level"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
	// TickTTLMinutes bounds how long deduplicated ticks stay cached.
	TickTTLMinutes int `toml:"tick_ttl_minutes"`
	// HistoryMaxPoints bounds the rolling price history per market.
	HistoryMaxPoints int `toml:"history_max_points"`
}

// S3Config holds S3-compatible object storage parameters for the tick log.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
	LogPrefix      string `toml:"log_prefix"`
}

// FeedConfig holds upstream odds feed parameters.
type FeedConfig struct {
	WsURL            string   `toml:"ws_url"`
	ReconnectMax     int      `toml:"reconnect_max"`
	ReconnectBackoff duration `toml:"reconnect_backoff"`
	DedupTTL         duration `toml:"dedup_ttl"`
}

// PipelineConfig holds batch-processing parameters.
type PipelineConfig struct {
	BatchSize      int      `toml:"batch_size"`
	MaxConcurrency int      `toml:"max_concurrency"`
	FlushInterval  duration `toml:"flush_interval"`
	AcquireTimeout duration `toml:"acquire_timeout"`
	TickTimeout    duration `toml:"tick_timeout"`
}

// CorrelationConfig holds market correlation analyzer parameters.
type CorrelationConfig struct {
	MinCombinedScore float64  `toml:"min_combined_score"`
	MaxTimeDelta     duration `toml:"max_time_delta"`
	WindowPoints     int      `toml:"window_points"`
	MinWindowPoints  int      `toml:"min_window_points"`
}

// DetectorConfig holds synthetic position construction parameters. Hedge
// ratio and confidence are configurable policy, not a fixed algorithm.
type DetectorConfig struct {
	HedgeRatioFloor  float64  `toml:"hedge_ratio_floor"`
	HedgeRatioCeil   float64  `toml:"hedge_ratio_ceil"`
	PositionTTL      duration `toml:"position_ttl"`
	ConfidenceWeight float64  `toml:"confidence_weight"`
}

// RiskConfig holds the validation risk ceilings. Each metric has a soft
// ceiling that downgrades a candidate to requires_review and a hard ceiling
// that forces invalid.
type RiskConfig struct {
	MaxVaR                   float64 `toml:"max_var"`
	CriticalVaR              float64 `toml:"critical_var"`
	MaxDrawdown              float64 `toml:"max_drawdown"`
	CriticalDrawdown         float64 `toml:"critical_drawdown"`
	MaxConcentration         float64 `toml:"max_concentration"`
	CriticalConcentration    float64 `toml:"critical_concentration"`
	HiddenCorrelationFlag    float64 `toml:"hidden_correlation_flag"`
	PortfolioRecommendations bool    `toml:"portfolio_recommendations"`
}

// ValidationConfig holds the market/position/execution validator parameters.
type ValidationConfig struct {
	AllowedExchanges []string `toml:"allowed_exchanges"`
	AllowedMarkets   []string `toml:"allowed_markets"`
	MaxKellyFraction float64  `toml:"max_kelly_fraction"`
	MinExpectedValue float64  `toml:"min_expected_value"`
	MinConfidence    float64  `toml:"min_confidence"`
	MaxQuoteAge      duration `toml:"max_quote_age"`
}

// NBAConfig holds the NBA rule set parameters.
type NBAConfig struct {
	Enabled          bool     `toml:"enabled"`
	MaxQuarterScore  int      `toml:"max_quarter_score"`
	QuarterMinutes   int      `toml:"quarter_minutes"`
	MaxOvertimes     int      `toml:"max_overtimes"`
	LiveMaxRemaining duration `toml:"live_max_remaining"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values suitable
// for local development against localhost services.
func Defaults() Config {
	return Config{
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "arbpipeline",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:             "localhost:6379",
			DB:               0,
			PoolSize:         20,
			MaxRetries:       3,
			TickTTLMinutes:   120,
			HistoryMaxPoints: 512,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "arbpipeline-data",
			UseSSL:         false,
			ForcePathStyle: true,
			LogPrefix:      "ticklog",
		},
		Feed: FeedConfig{
			ReconnectMax:     10,
			ReconnectBackoff: duration{2 * time.Second},
			DedupTTL:         duration{5 * time.Minute},
		},
		Pipeline: PipelineConfig{
			BatchSize:      100,
			MaxConcurrency: 4,
			FlushInterval:  duration{2 * time.Second},
			AcquireTimeout: duration{10 * time.Second},
			TickTimeout:    duration{time.Second},
		},
		Correlation: CorrelationConfig{
			MinCombinedScore: 0.55,
			MaxTimeDelta:     duration{30 * time.Second},
			WindowPoints:     64,
			MinWindowPoints:  8,
		},
		Detector: DetectorConfig{
			HedgeRatioFloor:  0.1,
			HedgeRatioCeil:   10,
			PositionTTL:      duration{2 * time.Minute},
			ConfidenceWeight: 0.8,
		},
		Risk: RiskConfig{
			MaxVaR:                   0.05,
			CriticalVaR:              0.12,
			MaxDrawdown:              0.10,
			CriticalDrawdown:         0.25,
			MaxConcentration:         0.30,
			CriticalConcentration:    0.60,
			HiddenCorrelationFlag:    0.70,
			PortfolioRecommendations: true,
		},
		Validation: ValidationConfig{
			AllowedExchanges: []string{"pinnacle", "draftkings", "fanduel", "betmgm"},
			AllowedMarkets:   []string{"moneyline", "spread", "total"},
			MaxKellyFraction: 0.25,
			MinExpectedValue: 0.005,
			MinConfidence:    0.5,
			MaxQuoteAge:      duration{45 * time.Second},
		},
		NBA: NBAConfig{
			Enabled:          true,
			MaxQuarterScore:  60,
			QuarterMinutes:   12,
			MaxOvertimes:     4,
			LiveMaxRemaining: duration{48 * time.Minute},
		},
		Mode:     "pipeline",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"pipeline": true,
	"validate": true,
	"monitor":  true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found. Any error here is fatal
// at startup and never recovered at runtime.
func (c *Config) Validate() error {
	var problems []string

	if !validModes[strings.ToLower(c.Mode)] {
		problems = append(problems, fmt.Sprintf("mode %q is not one of pipeline|validate|monitor", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		problems = append(problems, fmt.Sprintf("log_level %q is not one of debug|info|warn|error", c.LogLevel))
	}

	if c.Pipeline.BatchSize <= 0 {
		problems = append(problems, fmt.Sprintf("pipeline.batch_size must be > 0, got %d", c.Pipeline.BatchSize))
	}
	if c.Pipeline.MaxConcurrency <= 0 {
		problems = append(problems, fmt.Sprintf("pipeline.max_concurrency must be > 0, got %d", c.Pipeline.MaxConcurrency))
	}
	if c.Pipeline.AcquireTimeout.Duration <= 0 {
		problems = append(problems, "pipeline.acquire_timeout must be positive")
	}
	if c.Pipeline.TickTimeout.Duration <= 0 {
		problems = append(problems, "pipeline.tick_timeout must be positive")
	}

	if c.Correlation.MinCombinedScore <= 0 || c.Correlation.MinCombinedScore >= 1 {
		problems = append(problems, fmt.Sprintf("correlation.min_combined_score must be in (0, 1), got %v", c.Correlation.MinCombinedScore))
	}
	if c.Correlation.MaxTimeDelta.Duration <= 0 {
		problems = append(problems, "correlation.max_time_delta must be positive")
	}
	if c.Correlation.MinWindowPoints < 2 {
		problems = append(problems, fmt.Sprintf("correlation.min_window_points must be >= 2, got %d", c.Correlation.MinWindowPoints))
	}
	if c.Correlation.WindowPoints < c.Correlation.MinWindowPoints {
		problems = append(problems, "correlation.window_points must be >= correlation.min_window_points")
	}

	if c.Detector.HedgeRatioFloor <= 0 {
		problems = append(problems, "detector.hedge_ratio_floor must be positive")
	}
	if c.Detector.HedgeRatioCeil <= c.Detector.HedgeRatioFloor {
		problems = append(problems, "detector.hedge_ratio_ceil must exceed detector.hedge_ratio_floor")
	}

	if c.Risk.CriticalVaR <= c.Risk.MaxVaR {
		problems = append(problems, "risk.critical_var must exceed risk.max_var")
	}
	if c.Risk.CriticalDrawdown <= c.Risk.MaxDrawdown {
		problems = append(problems, "risk.critical_drawdown must exceed risk.max_drawdown")
	}
	if c.Risk.CriticalConcentration <= c.Risk.MaxConcentration {
		problems = append(problems, "risk.critical_concentration must exceed risk.max_concentration")
	}

	if len(c.Validation.AllowedExchanges) == 0 {
		problems = append(problems, "validation.allowed_exchanges must not be empty")
	}
	if len(c.Validation.AllowedMarkets) == 0 {
		problems = append(problems, "validation.allowed_markets must not be empty")
	}
	if c.Validation.MaxKellyFraction <= 0 || c.Validation.MaxKellyFraction > 1 {
		problems = append(problems, fmt.Sprintf("validation.max_kelly_fraction must be in (0, 1], got %v", c.Validation.MaxKellyFraction))
	}

	if c.NBA.Enabled {
		if c.NBA.MaxQuarterScore <= 0 {
			problems = append(problems, "nba.max_quarter_score must be positive")
		}
		if c.NBA.QuarterMinutes <= 0 {
			problems = append(problems, "nba.quarter_minutes must be positive")
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(problems, "\n  - "))
	}
	return nil
}
