package xsearch

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all tunables of the protocol client and crawl loop. Every
// field has a compile-time default; the X_* environment variables override
// them via Load. Rate-limit intervals are plain seconds, matching the header
// arithmetic they feed.
type Config struct {
	// QueryID is the SearchTimeline GraphQL operation id. X rotates these
	// with web bundle releases.
	QueryID string `envconfig:"SEARCH_TIMELINE_QUERY_ID" default:"cGK-Qeg1XJc2sZ6kgQw_Iw"`

	// BearerToken is the public web-app bearer token.
	BearerToken string `envconfig:"BEARER_TOKEN" default:"AAAAAAAAAAAAAAAAAAAAANRILgAAAAAAnNwIzUejRCOuH5E6I8xnZz4puTs=1Zv7ttfk8LF81IUq16cHjhLTvJu4FA33AGWWjCpTnA"`

	// ResetBufferSeconds is added on top of x-rate-limit-reset before
	// resuming.
	ResetBufferSeconds int `envconfig:"RATE_LIMIT_RESET_BUFFER_SECONDS" default:"2"`

	// MaxRateLimitWaitSeconds caps any single rate-limit sleep.
	MaxRateLimitWaitSeconds int `envconfig:"MAX_RATE_LIMIT_WAIT_SECONDS" default:"900"`

	// FallbackWaitSeconds caps the attempt*30s sleep used on 429 without a
	// usable reset header.
	FallbackWaitSeconds int `envconfig:"RATE_LIMIT_FALLBACK_WAIT_SECONDS" default:"180"`

	// ProactiveThreshold is the remaining-requests level at which the client
	// sleeps until the window resets instead of sending.
	ProactiveThreshold int `envconfig:"RATE_LIMIT_PROACTIVE_THRESHOLD" default:"0"`

	// PacingUsageRatio is the window usage above which requests are smoothed
	// across the remaining budget.
	PacingUsageRatio float64 `envconfig:"RATE_LIMIT_PACING_USAGE_RATIO" default:"0.7"`

	// PacingFactor scales the per-request smoothing interval.
	PacingFactor float64 `envconfig:"RATE_LIMIT_PACING_FACTOR" default:"1.0"`

	// PacingMinIntervalSeconds / PacingMaxIntervalSeconds clamp the
	// smoothing sleep.
	PacingMinIntervalSeconds float64 `envconfig:"RATE_LIMIT_MIN_INTERVAL_SECONDS" default:"1"`
	PacingMaxIntervalSeconds float64 `envconfig:"RATE_LIMIT_MAX_INTERVAL_SECONDS" default:"60"`

	// LoginChannels is forwarded to the external login helper, which maps it
	// onto desktop browser channels to try.
	LoginChannels string `envconfig:"LOGIN_BROWSER_CHANNELS" default:"chrome,msedge"`

	Timeout       time.Duration `envconfig:"TIMEOUT" default:"30s"`
	MaxRetries    int           `envconfig:"MAX_RETRIES" default:"3"`
	PageSize      int           `envconfig:"PAGE_SIZE" default:"20"`
	MaxEmptyPages int           `envconfig:"MAX_EMPTY_PAGES" default:"3"`
	Timezone      string        `envconfig:"TIMEZONE" default:"Asia/Shanghai"`
}

// Load returns the default configuration with X_* environment overrides
// applied.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("x", &cfg); err != nil {
		return Config{}, fmt.Errorf("process environment: %w", err)
	}
	cfg.defaults()
	return cfg, nil
}

// defaults fills in zero-value fields for configs built by hand in tests.
func (cfg *Config) defaults() {
	if cfg.QueryID == "" {
		cfg.QueryID = "cGK-Qeg1XJc2sZ6kgQw_Iw"
	}
	if cfg.BearerToken == "" {
		cfg.BearerToken = "AAAAAAAAAAAAAAAAAAAAANRILgAAAAAAnNwIzUejRCOuH5E6I8xnZz4puTs=1Zv7ttfk8LF81IUq16cHjhLTvJu4FA33AGWWjCpTnA"
	}
	if cfg.ResetBufferSeconds == 0 {
		cfg.ResetBufferSeconds = 2
	}
	if cfg.MaxRateLimitWaitSeconds == 0 {
		cfg.MaxRateLimitWaitSeconds = 900
	}
	if cfg.FallbackWaitSeconds == 0 {
		cfg.FallbackWaitSeconds = 180
	}
	if cfg.PacingUsageRatio == 0 {
		cfg.PacingUsageRatio = 0.7
	}
	if cfg.PacingFactor == 0 {
		cfg.PacingFactor = 1.0
	}
	if cfg.PacingMinIntervalSeconds == 0 {
		cfg.PacingMinIntervalSeconds = 1
	}
	if cfg.PacingMaxIntervalSeconds == 0 {
		cfg.PacingMaxIntervalSeconds = 60
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.PageSize == 0 {
		cfg.PageSize = 20
	}
	if cfg.MaxEmptyPages == 0 {
		cfg.MaxEmptyPages = 3
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "Asia/Shanghai"
	}
}
