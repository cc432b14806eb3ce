package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"rankwatch/internal/models"
	"rankwatch/internal/validation"
)

// Live check throttle policies.
const (
	LivePolicyEnforce = "enforce"
	LivePolicyWarn    = "warn"
)

// Provider auth modes.
const (
	ProviderAuthBasic  = "basic"
	ProviderAuthOAuth2 = "oauth2"
)

// Pricing holds the per-action prices charged through the ledger.
type Pricing struct {
	RankCheck    decimal.Decimal
	AutoTracking decimal.Decimal
	LiveCheck    decimal.Decimal
	VolumeLookup decimal.Decimal
}

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Environment
	Env       string // "development", "production", etc.
	LogLevel  string
	LogFormat string // "json" or "text"

	// Server
	ServerAddr string
	APIToken   string // Bearer token required on /api routes; empty disables the check
	RedisURL   string // Optional shared storage for the request limiter

	// Database
	DatabaseURL string

	// Ranking provider
	ProviderBaseURL      string
	ProviderAuthMode     string
	ProviderLogin        string
	ProviderPassword     string
	ProviderTokenURL     string
	ProviderClientID     string
	ProviderClientSecret string
	ProviderTimeout      time.Duration
	ProviderRatePerSec   int
	ProviderMaxBatch     int
	SearchDepth          int

	// Billing
	Pricing Pricing

	// Live checks
	LiveCheckPolicy      string
	LiveCheckMinInterval time.Duration

	// Workers
	EnqueueConcurrency int
	SyncConcurrency    int
	SyncInterval       time.Duration
	AutoTrackSchedule  string // cron spec
	ClaimTTL           time.Duration
	EnableJobs         bool
	TierIntervals      map[string]time.Duration

	// SMTP
	SMTPEnabled          bool
	SMTPHost             string
	SMTPPort             int
	SMTPUsername         string
	SMTPPassword         string
	SMTPFrom             string
	SMTPFromName         string
	SMTPTLS              string // "none", "starttls", "tls"
	LowBalanceRecipients []string
	LowBalanceCooldown   time.Duration

	// Site
	SiteTitle string
	BaseURL   string
}

// Load reads configuration from environment variables with sensible defaults.
// A .env file in the working directory is loaded first when present.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to load .env file", "error", err)
	}

	return &Config{
		Env:       getEnv("ENV", "development"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", ""),

		ServerAddr:  getEnv("SERVER_ADDR", ":3000"),
		APIToken:    getEnv("API_TOKEN", ""),
		RedisURL:    getEnv("REDIS_URL", ""),
		DatabaseURL: getEnv("DATABASE_URL", "postgres://localhost:5432/rankwatch?sslmode=disable"),

		ProviderBaseURL:      getEnv("PROVIDER_BASE_URL", "https://api.dataforseo.com"),
		ProviderAuthMode:     getEnv("PROVIDER_AUTH_MODE", ProviderAuthBasic),
		ProviderLogin:        getEnv("PROVIDER_LOGIN", ""),
		ProviderPassword:     getEnv("PROVIDER_PASSWORD", ""),
		ProviderTokenURL:     getEnv("PROVIDER_TOKEN_URL", ""),
		ProviderClientID:     getEnv("PROVIDER_CLIENT_ID", ""),
		ProviderClientSecret: getEnv("PROVIDER_CLIENT_SECRET", ""),
		ProviderTimeout:      getEnvDuration("PROVIDER_TIMEOUT", 30*time.Second),
		ProviderRatePerSec:   getEnvInt("PROVIDER_RATE_PER_SEC", 10),
		ProviderMaxBatch:     getEnvInt("PROVIDER_MAX_BATCH", 100),
		SearchDepth:          getEnvInt("SEARCH_DEPTH", 100),

		Pricing: Pricing{
			RankCheck:    getEnvDecimal("PRICE_RANK_CHECK", "0.05"),
			AutoTracking: getEnvDecimal("PRICE_AUTO_TRACKING_CHECK", "0.05"),
			LiveCheck:    getEnvDecimal("PRICE_LIVE_CHECK", "0.10"),
			VolumeLookup: getEnvDecimal("PRICE_VOLUME_LOOKUP", "0.02"),
		},

		LiveCheckPolicy:      getEnv("LIVE_CHECK_POLICY", LivePolicyEnforce),
		LiveCheckMinInterval: getEnvDuration("LIVE_CHECK_MIN_INTERVAL", 24*time.Hour),

		EnqueueConcurrency: getEnvInt("ENQUEUE_CONCURRENCY", 4),
		SyncConcurrency:    getEnvInt("SYNC_CONCURRENCY", 8),
		SyncInterval:       getEnvDuration("SYNC_INTERVAL", 2*time.Minute),
		AutoTrackSchedule:  getEnv("AUTO_TRACK_SCHEDULE", "@hourly"),
		ClaimTTL:           getEnvDuration("CLAIM_TTL", 15*time.Minute),
		EnableJobs:         getEnv("ENABLE_JOBS", "true") == "true",
		TierIntervals:      defaultTierIntervals(),

		SMTPEnabled:          getEnv("SMTP_ENABLED", "") != "",
		SMTPHost:             getEnv("SMTP_HOST", ""),
		SMTPPort:             getEnvInt("SMTP_PORT", 587),
		SMTPUsername:         getEnv("SMTP_USERNAME", ""),
		SMTPPassword:         getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:             getEnv("SMTP_FROM", ""),
		SMTPFromName:         getEnv("SMTP_FROM_NAME", "Rankwatch"),
		SMTPTLS:              getEnv("SMTP_TLS", "starttls"),
		LowBalanceRecipients: splitList(getEnv("LOW_BALANCE_RECIPIENTS", "")),
		LowBalanceCooldown:   getEnvDuration("LOW_BALANCE_COOLDOWN", 24*time.Hour),

		SiteTitle: getEnv("SITE_TITLE", "Rankwatch"),
		BaseURL:   getEnv("BASE_URL", "http://localhost:3000"),
	}
}

func defaultTierIntervals() map[string]time.Duration {
	intervals := make(map[string]time.Duration, len(models.DefaultTierIntervals))
	for tier, d := range models.DefaultTierIntervals {
		intervals[tier] = d
	}
	return intervals
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return v
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return v
}

func getEnvDecimal(key, fallback string) decimal.Decimal {
	if d, err := decimal.NewFromString(getEnv(key, fallback)); err == nil {
		return d
	}
	return decimal.RequireFromString(fallback)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// IsDev returns true if the environment is set to development.
func (c *Config) IsDev() bool {
	return c.Env == "development" || c.Env == "dev"
}

// IsEmailEnabled returns true if SMTP is fully configured.
func (c *Config) IsEmailEnabled() bool {
	return c.SMTPEnabled && c.SMTPHost != "" && c.SMTPFrom != ""
}

// EnforceLiveInterval reports whether live checks inside the minimum interval
// are refused rather than flagged.
func (c *Config) EnforceLiveInterval() bool {
	return c.LiveCheckPolicy != LivePolicyWarn
}

// PriceFor returns the configured price for a ledger action.
func (c *Config) PriceFor(action string) decimal.Decimal {
	switch action {
	case models.ActionRankCheck:
		return c.Pricing.RankCheck
	case models.ActionAutoTrackingCheck:
		return c.Pricing.AutoTracking
	case models.ActionLiveCheck:
		return c.Pricing.LiveCheck
	case models.ActionVolumeLookup:
		return c.Pricing.VolumeLookup
	}
	return decimal.Zero
}

// priceScale matches the NUMERIC(12,4) ledger columns.
const priceScale = 4

func validatePrice(p decimal.Decimal) error {
	if !p.IsPositive() {
		return fmt.Errorf("price %s must be positive", p)
	}
	if !p.Equal(p.Truncate(priceScale)) {
		return fmt.Errorf("price %s has more than %d decimal places", p, priceScale)
	}
	return nil
}

// Validate reports settings that would fail at runtime rather than at startup.
func (c *Config) Validate() error {
	var errs []error

	if ok, msg := validation.ValidateURL(c.ProviderBaseURL); !ok {
		errs = append(errs, fmt.Errorf("PROVIDER_BASE_URL: %s", msg))
	}
	switch c.ProviderAuthMode {
	case ProviderAuthBasic:
	case ProviderAuthOAuth2:
		if ok, msg := validation.ValidateURL(c.ProviderTokenURL); !ok {
			errs = append(errs, fmt.Errorf("PROVIDER_TOKEN_URL: %s", msg))
		}
	default:
		errs = append(errs, fmt.Errorf("PROVIDER_AUTH_MODE: unknown mode %q", c.ProviderAuthMode))
	}
	switch c.LiveCheckPolicy {
	case LivePolicyEnforce, LivePolicyWarn:
	default:
		errs = append(errs, fmt.Errorf("LIVE_CHECK_POLICY: unknown policy %q", c.LiveCheckPolicy))
	}
	switch c.SMTPTLS {
	case "none", "starttls", "tls":
	default:
		errs = append(errs, fmt.Errorf("SMTP_TLS: unknown mode %q", c.SMTPTLS))
	}
	if c.ProviderMaxBatch <= 0 {
		errs = append(errs, errors.New("PROVIDER_MAX_BATCH must be positive"))
	}
	for _, p := range []struct {
		key   string
		price decimal.Decimal
	}{
		{"PRICE_RANK_CHECK", c.Pricing.RankCheck},
		{"PRICE_AUTO_TRACKING_CHECK", c.Pricing.AutoTracking},
		{"PRICE_LIVE_CHECK", c.Pricing.LiveCheck},
		{"PRICE_VOLUME_LOOKUP", c.Pricing.VolumeLookup},
	} {
		if err := validatePrice(p.price); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p.key, err))
		}
	}

	return errors.Join(errs...)
}
