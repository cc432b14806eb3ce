package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

const sampleYAML = `
pricing:
  rank_check: "0.04"
  live_check: "0.20"
tiers:
  daily: 20h
locations:
  - country: nz
    location_code: 2554
    language: en
live_check:
  policy: warn
  min_interval: 12h
`

func TestParseAndApplyYAMLConfig(t *testing.T) {
	y, err := ParseYAMLConfig([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("ParseYAMLConfig() error = %v", err)
	}

	cfg := &Config{
		Pricing:              Pricing{RankCheck: decimal.RequireFromString("0.05"), VolumeLookup: decimal.RequireFromString("0.02")},
		TierIntervals:        defaultTierIntervals(),
		LiveCheckPolicy:      LivePolicyEnforce,
		LiveCheckMinInterval: 24 * time.Hour,
	}
	if err := y.Apply(cfg); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	if !cfg.Pricing.RankCheck.Equal(decimal.RequireFromString("0.04")) {
		t.Errorf("RankCheck = %s, want 0.04", cfg.Pricing.RankCheck)
	}
	if !cfg.Pricing.VolumeLookup.Equal(decimal.RequireFromString("0.02")) {
		t.Errorf("VolumeLookup = %s, want untouched 0.02", cfg.Pricing.VolumeLookup)
	}
	if cfg.TierIntervals["daily"] != 20*time.Hour {
		t.Errorf("daily interval = %v, want 20h", cfg.TierIntervals["daily"])
	}
	if cfg.LiveCheckPolicy != LivePolicyWarn {
		t.Errorf("LiveCheckPolicy = %q, want warn", cfg.LiveCheckPolicy)
	}
	if cfg.LiveCheckMinInterval != 12*time.Hour {
		t.Errorf("LiveCheckMinInterval = %v, want 12h", cfg.LiveCheckMinInterval)
	}
	if len(y.Locations) != 1 || y.Locations[0].LocationCode != 2554 {
		t.Errorf("Locations = %+v, want one nz entry", y.Locations)
	}
}

func TestApplyYAMLConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad price", "pricing:\n  rank_check: abc\n"},
		{"negative price", "pricing:\n  rank_check: \"-1\"\n"},
		{"unknown tier", "tiers:\n  hourly: 1h\n"},
		{"bad duration", "tiers:\n  weekly: sometimes\n"},
		{"unknown policy", "live_check:\n  policy: maybe\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			y, err := ParseYAMLConfig([]byte(tt.yaml))
			if err != nil {
				t.Fatalf("ParseYAMLConfig() error = %v", err)
			}
			cfg := &Config{TierIntervals: defaultTierIntervals()}
			if err := y.Apply(cfg); err == nil {
				t.Error("Apply() expected error, got nil")
			}
		})
	}
}

func TestLoadYAMLConfigMissingFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	y, err := LoadYAMLConfig()
	if err != nil {
		t.Fatalf("LoadYAMLConfig() error = %v", err)
	}
	if y != nil {
		t.Errorf("LoadYAMLConfig() = %+v, want nil", y)
	}
	if err := y.Apply(&Config{}); err != nil {
		t.Errorf("nil Apply() error = %v", err)
	}
}

func TestLoadYAMLConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_FILE", path)

	y, err := LoadYAMLConfig()
	if err != nil {
		t.Fatalf("LoadYAMLConfig() error = %v", err)
	}
	if y == nil || y.Pricing.LiveCheck != "0.20" {
		t.Errorf("LoadYAMLConfig() = %+v, want live_check 0.20", y)
	}
}
