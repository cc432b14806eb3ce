package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"rankwatch/internal/models"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PRICE_RANK_CHECK", "")
	t.Setenv("LIVE_CHECK_POLICY", "")

	cfg := Load()

	if !cfg.Pricing.RankCheck.Equal(decimal.RequireFromString("0.05")) {
		t.Errorf("Pricing.RankCheck = %s, want 0.05", cfg.Pricing.RankCheck)
	}
	if cfg.ProviderMaxBatch != 100 {
		t.Errorf("ProviderMaxBatch = %d, want 100", cfg.ProviderMaxBatch)
	}
	if !cfg.EnforceLiveInterval() {
		t.Error("EnforceLiveInterval() = false, want true by default")
	}
	if got := cfg.TierIntervals[models.FrequencyWeekly]; got != 7*24*time.Hour {
		t.Errorf("TierIntervals[weekly] = %v, want 168h", got)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PRICE_LIVE_CHECK", "0.25")
	t.Setenv("LIVE_CHECK_POLICY", LivePolicyWarn)
	t.Setenv("SYNC_INTERVAL", "30s")
	t.Setenv("LOW_BALANCE_RECIPIENTS", "ops@example.com, billing@example.com ,")

	cfg := Load()

	if !cfg.PriceFor(models.ActionLiveCheck).Equal(decimal.RequireFromString("0.25")) {
		t.Errorf("PriceFor(live_check) = %s, want 0.25", cfg.PriceFor(models.ActionLiveCheck))
	}
	if cfg.EnforceLiveInterval() {
		t.Error("EnforceLiveInterval() = true, want false for warn policy")
	}
	if cfg.SyncInterval != 30*time.Second {
		t.Errorf("SyncInterval = %v, want 30s", cfg.SyncInterval)
	}
	if len(cfg.LowBalanceRecipients) != 2 {
		t.Errorf("LowBalanceRecipients = %v, want 2 entries", cfg.LowBalanceRecipients)
	}
}

func TestLoadInvalidValuesFallBack(t *testing.T) {
	t.Setenv("PRICE_RANK_CHECK", "cheap")
	t.Setenv("PROVIDER_MAX_BATCH", "many")
	t.Setenv("SYNC_INTERVAL", "soon")

	cfg := Load()

	if !cfg.Pricing.RankCheck.Equal(decimal.RequireFromString("0.05")) {
		t.Errorf("Pricing.RankCheck = %s, want fallback 0.05", cfg.Pricing.RankCheck)
	}
	if cfg.ProviderMaxBatch != 100 {
		t.Errorf("ProviderMaxBatch = %d, want fallback 100", cfg.ProviderMaxBatch)
	}
	if cfg.SyncInterval != 2*time.Minute {
		t.Errorf("SyncInterval = %v, want fallback 2m", cfg.SyncInterval)
	}
}

func TestPriceForUnknownAction(t *testing.T) {
	cfg := &Config{}
	if !cfg.PriceFor("refund").IsZero() {
		t.Error("PriceFor(refund) should be zero")
	}
}

func TestIsEmailEnabled(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want bool
	}{
		{"fully configured", Config{SMTPEnabled: true, SMTPHost: "smtp.example.com", SMTPFrom: "a@example.com"}, true},
		{"flag off", Config{SMTPHost: "smtp.example.com", SMTPFrom: "a@example.com"}, false},
		{"missing host", Config{SMTPEnabled: true, SMTPFrom: "a@example.com"}, false},
		{"missing from", Config{SMTPEnabled: true, SMTPHost: "smtp.example.com"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.IsEmailEnabled(); got != tt.want {
				t.Errorf("IsEmailEnabled() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			ProviderBaseURL:  "https://api.dataforseo.com",
			ProviderAuthMode: ProviderAuthBasic,
			LiveCheckPolicy:  LivePolicyEnforce,
			SMTPTLS:          "starttls",
			ProviderMaxBatch: 100,
			Pricing: Pricing{
				RankCheck:    decimal.RequireFromString("0.05"),
				AutoTracking: decimal.RequireFromString("0.05"),
				LiveCheck:    decimal.RequireFromString("0.10"),
				VolumeLookup: decimal.RequireFromString("0.02"),
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"bad base url", func(c *Config) { c.ProviderBaseURL = "ftp://example.com" }, true},
		{"oauth2 without token url", func(c *Config) { c.ProviderAuthMode = ProviderAuthOAuth2 }, true},
		{"oauth2 with token url", func(c *Config) {
			c.ProviderAuthMode = ProviderAuthOAuth2
			c.ProviderTokenURL = "https://auth.example.com/token"
		}, false},
		{"unknown auth mode", func(c *Config) { c.ProviderAuthMode = "digest" }, true},
		{"unknown live policy", func(c *Config) { c.LiveCheckPolicy = "ignore" }, true},
		{"unknown smtp tls", func(c *Config) { c.SMTPTLS = "ssl" }, true},
		{"zero batch", func(c *Config) { c.ProviderMaxBatch = 0 }, true},
		{"zero price", func(c *Config) { c.Pricing.RankCheck = decimal.Zero }, true},
		{"negative price", func(c *Config) { c.Pricing.LiveCheck = decimal.RequireFromString("-0.10") }, true},
		{"five decimal places", func(c *Config) { c.Pricing.VolumeLookup = decimal.RequireFromString("0.00005") }, true},
		{"four decimal places", func(c *Config) { c.Pricing.VolumeLookup = decimal.RequireFromString("0.0125") }, false},
		{"trailing zeros", func(c *Config) { c.Pricing.AutoTracking = decimal.RequireFromString("0.050000") }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
