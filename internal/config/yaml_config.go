package config

import (
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// YAMLConfig represents the structure of the config.yaml file.
// Pricing, cadence tiers and location overrides are easier to manage in YAML
// than env vars.
type YAMLConfig struct {
	Pricing   PricingConfig     `yaml:"pricing"`
	Tiers     map[string]string `yaml:"tiers"` // tier -> Go duration, e.g. "daily: 24h"
	Locations []LocationConfig  `yaml:"locations"`
	LiveCheck LiveCheckConfig   `yaml:"live_check"`
}

// PricingConfig defines per-action prices as decimal strings.
type PricingConfig struct {
	RankCheck    string `yaml:"rank_check"`
	AutoTracking string `yaml:"auto_tracking_check"`
	LiveCheck    string `yaml:"live_check"`
	VolumeLookup string `yaml:"volume_lookup"`
}

// LocationConfig adds or overrides a country in the location table.
type LocationConfig struct {
	Country      string `yaml:"country"`       // ISO 3166-1 alpha-2
	LocationCode int    `yaml:"location_code"` // provider location code
	Language     string `yaml:"language"`      // provider language code
}

// LiveCheckConfig overrides the live check throttle.
type LiveCheckConfig struct {
	Policy      string `yaml:"policy"`       // enforce | warn
	MinInterval string `yaml:"min_interval"` // Go duration
}

// LoadYAMLConfig loads the YAML configuration file.
// Path is determined by CONFIG_FILE env var, defaulting to "config.yaml".
// Returns nil without error if the config file doesn't exist.
func LoadYAMLConfig() (*YAMLConfig, error) {
	path := getEnv("CONFIG_FILE", "config.yaml")

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Config file is optional
			return nil, nil
		}
		return nil, err
	}

	return ParseYAMLConfig(data)
}

// ParseYAMLConfig decodes YAML config bytes.
func ParseYAMLConfig(data []byte) (*YAMLConfig, error) {
	var cfg YAMLConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Apply overlays the YAML settings onto cfg. Empty values leave the env
// derived setting untouched.
func (y *YAMLConfig) Apply(cfg *Config) error {
	if y == nil {
		return nil
	}

	prices := []struct {
		raw  string
		dest *decimal.Decimal
		name string
	}{
		{y.Pricing.RankCheck, &cfg.Pricing.RankCheck, "rank_check"},
		{y.Pricing.AutoTracking, &cfg.Pricing.AutoTracking, "auto_tracking_check"},
		{y.Pricing.LiveCheck, &cfg.Pricing.LiveCheck, "live_check"},
		{y.Pricing.VolumeLookup, &cfg.Pricing.VolumeLookup, "volume_lookup"},
	}
	for _, p := range prices {
		if p.raw == "" {
			continue
		}
		d, err := decimal.NewFromString(p.raw)
		if err != nil {
			return fmt.Errorf("invalid price for %s: %w", p.name, err)
		}
		if !d.IsPositive() {
			return fmt.Errorf("price for %s must be positive", p.name)
		}
		*p.dest = d
	}

	for tier, raw := range y.Tiers {
		if _, ok := cfg.TierIntervals[tier]; !ok {
			return fmt.Errorf("unknown tracking tier %q", tier)
		}
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("invalid interval for tier %s: %w", tier, err)
		}
		cfg.TierIntervals[tier] = d
	}

	switch y.LiveCheck.Policy {
	case "":
	case LivePolicyEnforce, LivePolicyWarn:
		cfg.LiveCheckPolicy = y.LiveCheck.Policy
	default:
		return fmt.Errorf("unknown live check policy %q", y.LiveCheck.Policy)
	}
	if y.LiveCheck.MinInterval != "" {
		d, err := time.ParseDuration(y.LiveCheck.MinInterval)
		if err != nil {
			return fmt.Errorf("invalid live check interval: %w", err)
		}
		cfg.LiveCheckMinInterval = d
	}

	return nil
}
