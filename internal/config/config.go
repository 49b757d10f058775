// Package config provides configuration management for the signal engine.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"fno-signals/internal/analysis"
	"fno-signals/internal/analysis/futures"
	"fno-signals/internal/analysis/oichain"
	"fno-signals/internal/analysis/pcr"
	"fno-signals/internal/analysis/scoring"
	"fno-signals/internal/analysis/technical"
	apperrors "fno-signals/internal/errors"
	"fno-signals/internal/logging"
)

// Config holds all application configuration.
type Config struct {
	Engine     EngineConfig      `mapstructure:"engine"`
	Logging    logging.LogConfig `mapstructure:"logging"`
	Store      StoreConfig       `mapstructure:"store"`
	Metrics    MetricsConfig     `mapstructure:"metrics"`
	Watch      WatchConfig       `mapstructure:"watch"`
	Notify     NotifyConfig      `mapstructure:"notify"`
	Scoring    scoring.Config    `mapstructure:"scoring"`
	Thresholds Thresholds        `mapstructure:"-" json:"-"` // Loaded separately
}

// EngineConfig holds detector orchestration settings.
type EngineConfig struct {
	Mode        string                 `mapstructure:"mode"`         // INTRADAY, POSITIONAL
	MinPriority string                 `mapstructure:"min_priority"` // LOW, MEDIUM, HIGH, CRITICAL
	Workers     int                    `mapstructure:"workers"`
	History     analysis.HistoryConfig `mapstructure:"history"`
}

// StoreConfig holds snapshot store configuration.
type StoreConfig struct {
	DBPath string `mapstructure:"db_path"`
}

// MetricsConfig holds the Prometheus endpoint configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
}

// WatchConfig holds the scheduled scan configuration.
type WatchConfig struct {
	Schedule        string   `mapstructure:"schedule"` // cron spec, seconds optional
	MarketHoursOnly bool     `mapstructure:"market_hours_only"`
	Indices         []string `mapstructure:"indices"`
}

// NotifyConfig holds alert delivery settings for notifying cycles.
type NotifyConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	MinPriority string        `mapstructure:"min_priority"` // empty: engine.min_priority
	Webhook     WebhookConfig `mapstructure:"webhook"`
}

// WebhookConfig holds webhook delivery settings.
type WebhookConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// Thresholds holds the resolved detector profiles of every family.
type Thresholds struct {
	Technical map[analysis.ProfileKey]technical.Profile
	OIChain   map[analysis.ProfileKey]oichain.Profile
	PCR       map[analysis.ProfileKey]pcr.Profile
	Futures   map[analysis.ProfileKey]futures.Profile
}

// DefaultThresholds returns every family's built-in profiles.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Technical: technical.DefaultProfiles(),
		OIChain:   oichain.DefaultProfiles(),
		PCR:       pcr.DefaultProfiles(),
		Futures:   futures.DefaultProfiles(),
	}
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/fno-signals"
	}
	return filepath.Join(home, ".config", "fno-signals")
}

// Default returns the configuration used when no file overrides it.
func Default() *Config {
	return &Config{
		Engine: EngineConfig{
			Mode:        string(analysis.Intraday),
			MinPriority: analysis.PriorityLow.String(),
			Workers:     4,
			History:     analysis.DefaultHistoryConfig(),
		},
		Logging: logging.DefaultLogConfig(),
		Store: StoreConfig{
			DBPath: filepath.Join(DefaultConfigDir(), "signals.db"),
		},
		Metrics: MetricsConfig{
			Listen: ":9108",
		},
		Watch: WatchConfig{
			Schedule:        "0 */5 * * * *",
			MarketHoursOnly: true,
			Indices:         []string{"NIFTY", "BANKNIFTY", "FINNIFTY", "MIDCPNIFTY"},
		},
		Notify: NotifyConfig{
			Webhook: WebhookConfig{Timeout: 10 * time.Second},
		},
		Scoring:    scoring.DefaultConfig(),
		Thresholds: DefaultThresholds(),
	}
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	cfg := Default()

	if err := loadConfigFile(configDir, "config", cfg); err != nil {
		return nil, fmt.Errorf("loading config.toml: %w", err)
	}

	thresholds, err := LoadThresholds(configDir)
	if err != nil {
		return nil, fmt.Errorf("loading thresholds.toml: %w", err)
	}
	cfg.Thresholds = thresholds

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func loadConfigFile(configDir, name string, target interface{}) error {
	v := viper.New()
	v.SetConfigName(name)
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Keep the defaults and leave a template for the user.
			return createTemplateConfig(configDir, name)
		}
		return err
	}

	return v.Unmarshal(target)
}

// LoadThresholds reads thresholds.toml and overlays it on the built-in
// profiles. A missing file yields the defaults.
func LoadThresholds(configDir string) (Thresholds, error) {
	v := viper.New()
	v.SetConfigName("thresholds")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return DefaultThresholds(), createTemplateThresholds(configDir)
		}
		return Thresholds{}, err
	}
	return ThresholdsFrom(v)
}

// ThresholdsFrom overlays the sections of a loaded viper on the defaults.
func ThresholdsFrom(v *viper.Viper) (Thresholds, error) {
	var (
		t   Thresholds
		err error
	)
	if t.Technical, err = ApplyProfiles(v, technical.SetName, technical.DefaultProfiles()); err != nil {
		return t, err
	}
	if t.OIChain, err = ApplyProfiles(v, oichain.SetName, oichain.DefaultProfiles()); err != nil {
		return t, err
	}
	if t.PCR, err = ApplyProfiles(v, pcr.SetName, pcr.DefaultProfiles()); err != nil {
		return t, err
	}
	if t.Futures, err = ApplyProfiles(v, futures.SetName, futures.DefaultProfiles()); err != nil {
		return t, err
	}
	return t, nil
}

// ApplyProfiles overlays the [family.mode.class] sections of v on a copy of
// the defaults. Keys absent from a section keep their default value.
func ApplyProfiles[P any](v *viper.Viper, family string, defaults map[analysis.ProfileKey]P) (map[analysis.ProfileKey]P, error) {
	out := make(map[analysis.ProfileKey]P, len(defaults))
	for k, p := range defaults {
		out[k] = p
	}
	for _, key := range analysis.AllProfileKeys() {
		section := v.Sub(family + "." + key.String())
		if section == nil {
			continue
		}
		p := out[key]
		if err := section.Unmarshal(&p); err != nil {
			return nil, apperrors.NewConfigError(family+"."+key.String(), nil, err.Error())
		}
		out[key] = p
	}
	return out, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SIGNALS_MODE"); v != "" {
		cfg.Engine.Mode = v
	}
	if v := os.Getenv("SIGNALS_DB_PATH"); v != "" {
		cfg.Store.DBPath = v
	}
	if v := os.Getenv("SIGNALS_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if _, err := c.Mode(); err != nil {
		return err
	}
	if _, err := c.MinPriority(); err != nil {
		return err
	}
	if c.Engine.Workers <= 0 {
		return apperrors.NewConfigError("engine.workers", c.Engine.Workers, "must be positive")
	}
	if c.Notify.MinPriority != "" {
		if _, err := analysis.ParsePriority(c.Notify.MinPriority); err != nil {
			return apperrors.NewConfigError("notify.min_priority", c.Notify.MinPriority, err.Error())
		}
	}
	if c.Notify.Enabled && c.Notify.Webhook.URL == "" {
		return apperrors.NewConfigError("notify.webhook.url", "", "is required when notify is enabled")
	}
	if c.Store.DBPath == "" {
		return apperrors.NewConfigError("store.db_path", c.Store.DBPath, "is required")
	}
	if err := c.Scoring.Validate(); err != nil {
		return err
	}
	return c.Thresholds.Validate()
}

// Validate checks every profile of every family.
func (t Thresholds) Validate() error {
	for _, key := range analysis.AllProfileKeys() {
		checks := []struct {
			family string
			err    error
		}{
			{technical.SetName, validateKey(t.Technical, key)},
			{oichain.SetName, validateKey(t.OIChain, key)},
			{pcr.SetName, validateKey(t.PCR, key)},
			{futures.SetName, validateKey(t.Futures, key)},
		}
		for _, c := range checks {
			if c.err != nil {
				return fmt.Errorf("%s %s: %w", c.family, key, c.err)
			}
		}
	}
	return nil
}

type validator interface {
	Validate() error
}

func validateKey[P validator](profiles map[analysis.ProfileKey]P, key analysis.ProfileKey) error {
	p, ok := profiles[key]
	if !ok {
		return apperrors.NewConfigError("profile", key, "missing")
	}
	return p.Validate()
}

// Mode returns the parsed operating mode.
func (c *Config) Mode() (analysis.Mode, error) {
	return analysis.ParseMode(c.Engine.Mode)
}

// MinPriority returns the parsed notification floor tier.
func (c *Config) MinPriority() (analysis.Priority, error) {
	p, err := analysis.ParsePriority(c.Engine.MinPriority)
	if err != nil {
		return p, apperrors.NewConfigError("engine.min_priority", c.Engine.MinPriority, err.Error())
	}
	return p, nil
}
