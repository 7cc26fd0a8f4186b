package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies ARBPIPE_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known ARBPIPE_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "ARBPIPE_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "ARBPIPE_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "ARBPIPE_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "ARBPIPE_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "ARBPIPE_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "ARBPIPE_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "ARBPIPE_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "ARBPIPE_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "ARBPIPE_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "ARBPIPE_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "ARBPIPE_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "ARBPIPE_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "ARBPIPE_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "ARBPIPE_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "ARBPIPE_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "ARBPIPE_REDIS_TLS_ENABLED")
	setInt(&cfg.Redis.TickTTLMinutes, "ARBPIPE_REDIS_TICK_TTL_MINUTES")
	setInt(&cfg.Redis.HistoryMaxPoints, "ARBPIPE_REDIS_HISTORY_MAX_POINTS")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "ARBPIPE_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "ARBPIPE_S3_REGION")
	setStr(&cfg.S3.Bucket, "ARBPIPE_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "ARBPIPE_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "ARBPIPE_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "ARBPIPE_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "ARBPIPE_S3_FORCE_PATH_STYLE")
	setStr(&cfg.S3.LogPrefix, "ARBPIPE_S3_LOG_PREFIX")

	// ── Feed ──
	setStr(&cfg.Feed.WsURL, "ARBPIPE_FEED_WS_URL")
	setInt(&cfg.Feed.ReconnectMax, "ARBPIPE_FEED_RECONNECT_MAX")
	setDuration(&cfg.Feed.ReconnectBackoff, "ARBPIPE_FEED_RECONNECT_BACKOFF")
	setDuration(&cfg.Feed.DedupTTL, "ARBPIPE_FEED_DEDUP_TTL")

	// ── Pipeline ──
	setInt(&cfg.Pipeline.BatchSize, "ARBPIPE_PIPELINE_BATCH_SIZE")
	setInt(&cfg.Pipeline.MaxConcurrency, "ARBPIPE_PIPELINE_MAX_CONCURRENCY")
	setDuration(&cfg.Pipeline.FlushInterval, "ARBPIPE_PIPELINE_FLUSH_INTERVAL")
	setDuration(&cfg.Pipeline.AcquireTimeout, "ARBPIPE_PIPELINE_ACQUIRE_TIMEOUT")
	setDuration(&cfg.Pipeline.TickTimeout, "ARBPIPE_PIPELINE_TICK_TIMEOUT")

	// ── Correlation ──
	setFloat64(&cfg.Correlation.MinCombinedScore, "ARBPIPE_CORRELATION_MIN_COMBINED_SCORE")
	setDuration(&cfg.Correlation.MaxTimeDelta, "ARBPIPE_CORRELATION_MAX_TIME_DELTA")
	setInt(&cfg.Correlation.WindowPoints, "ARBPIPE_CORRELATION_WINDOW_POINTS")
	setInt(&cfg.Correlation.MinWindowPoints, "ARBPIPE_CORRELATION_MIN_WINDOW_POINTS")

	// ── Detector ──
	setFloat64(&cfg.Detector.HedgeRatioFloor, "ARBPIPE_DETECTOR_HEDGE_RATIO_FLOOR")
	setFloat64(&cfg.Detector.HedgeRatioCeil, "ARBPIPE_DETECTOR_HEDGE_RATIO_CEIL")
	setDuration(&cfg.Detector.PositionTTL, "ARBPIPE_DETECTOR_POSITION_TTL")
	setFloat64(&cfg.Detector.ConfidenceWeight, "ARBPIPE_DETECTOR_CONFIDENCE_WEIGHT")

	// ── Risk ──
	setFloat64(&cfg.Risk.MaxVaR, "ARBPIPE_RISK_MAX_VAR")
	setFloat64(&cfg.Risk.CriticalVaR, "ARBPIPE_RISK_CRITICAL_VAR")
	setFloat64(&cfg.Risk.MaxDrawdown, "ARBPIPE_RISK_MAX_DRAWDOWN")
	setFloat64(&cfg.Risk.CriticalDrawdown, "ARBPIPE_RISK_CRITICAL_DRAWDOWN")
	setFloat64(&cfg.Risk.MaxConcentration, "ARBPIPE_RISK_MAX_CONCENTRATION")
	setFloat64(&cfg.Risk.CriticalConcentration, "ARBPIPE_RISK_CRITICAL_CONCENTRATION")
	setFloat64(&cfg.Risk.HiddenCorrelationFlag, "ARBPIPE_RISK_HIDDEN_CORRELATION_FLAG")
	setBool(&cfg.Risk.PortfolioRecommendations, "ARBPIPE_RISK_PORTFOLIO_RECOMMENDATIONS")

	// ── Validation ──
	setStringSlice(&cfg.Validation.AllowedExchanges, "ARBPIPE_VALIDATION_ALLOWED_EXCHANGES")
	setStringSlice(&cfg.Validation.AllowedMarkets, "ARBPIPE_VALIDATION_ALLOWED_MARKETS")
	setFloat64(&cfg.Validation.MaxKellyFraction, "ARBPIPE_VALIDATION_MAX_KELLY_FRACTION")
	setFloat64(&cfg.Validation.MinExpectedValue, "ARBPIPE_VALIDATION_MIN_EXPECTED_VALUE")
	setFloat64(&cfg.Validation.MinConfidence, "ARBPIPE_VALIDATION_MIN_CONFIDENCE")
	setDuration(&cfg.Validation.MaxQuoteAge, "ARBPIPE_VALIDATION_MAX_QUOTE_AGE")

	// ── NBA ──
	setBool(&cfg.NBA.Enabled, "ARBPIPE_NBA_ENABLED")
	setInt(&cfg.NBA.MaxQuarterScore, "ARBPIPE_NBA_MAX_QUARTER_SCORE")
	setInt(&cfg.NBA.QuarterMinutes, "ARBPIPE_NBA_QUARTER_MINUTES")
	setInt(&cfg.NBA.MaxOvertimes, "ARBPIPE_NBA_MAX_OVERTIMES")
	setDuration(&cfg.NBA.LiveMaxRemaining, "ARBPIPE_NBA_LIVE_MAX_REMAINING")

	// ── Top-level ──
	setStr(&cfg.Mode, "ARBPIPE_MODE")
	setStr(&cfg.LogLevel, "ARBPIPE_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
