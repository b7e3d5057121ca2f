// Package config holds all FlowDesk engine configuration: calibration
// profiles for the state classifier, dispatch settings for the completion
// service, history bounds, storage and logging. Values load from YAML with
// environment overrides; thresholds are always injected, never hard-coded
// at call sites.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all FlowDesk configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Adaptive state engine calibration
	Adaptive AdaptiveConfig `yaml:"adaptive"`

	// Completion service dispatch
	Dispatch DispatchConfig `yaml:"dispatch"`

	// Persistent store
	Store StoreConfig `yaml:"store"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// AdaptiveConfig configures the signal collector, classifier and override
// controller. Durations are strings ("1s", "30s") parsed on read.
type AdaptiveConfig struct {
	// Profile selects a named calibration: "standard" or "compact".
	// Explicit Thresholds fields override the profile's values.
	Profile    string     `yaml:"profile"`
	Thresholds Thresholds `yaml:"thresholds"`

	// TickInterval is the snapshot cadence.
	TickInterval string `yaml:"tick_interval"`

	// OverrideHoldoff is how long a manual focus exit suppresses Focus.
	OverrideHoldoff string `yaml:"override_holdoff"`

	// KeystrokeWindow is the rolling window for the typing-rate counter.
	KeystrokeWindow string `yaml:"keystroke_window"`
}

// Tick returns the parsed snapshot cadence.
func (a AdaptiveConfig) Tick() time.Duration {
	return parseDuration(a.TickInterval, time.Second)
}

// Holdoff returns the parsed override holdoff window.
func (a AdaptiveConfig) Holdoff() time.Duration {
	return parseDuration(a.OverrideHoldoff, 30*time.Second)
}

// Window returns the parsed keystroke rolling window.
func (a AdaptiveConfig) Window() time.Duration {
	return parseDuration(a.KeystrokeWindow, 60*time.Second)
}

// Thresholds are the classifier cut points. Zero fields inherit from the
// selected profile.
type Thresholds struct {
	FocusMinKPM        int `yaml:"focus_min_kpm"`
	FocusMaxIdleS      int `yaml:"focus_max_idle_s"`
	DistractedMinIdleS int `yaml:"distracted_min_idle_s"`
	BurnoutMinSessionM int `yaml:"burnout_min_session_m"`
}

// DispatchConfig configures the completion-service client and the bounded
// conversation history sent with each request.
type DispatchConfig struct {
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	Timeout     string  `yaml:"timeout"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`

	// RetryAfterDefault is the wait before the single 429 retry when the
	// service does not supply one.
	RetryAfterDefault string `yaml:"retry_after_default"`

	// HistoryMessages is the most-recent-N bound on conversation history.
	HistoryMessages int `yaml:"history_messages"`

	// HistoryCharBudget truncates each history message to this many runes.
	HistoryCharBudget int `yaml:"history_char_budget"`
}

// RequestTimeout returns the parsed HTTP timeout.
func (d DispatchConfig) RequestTimeout() time.Duration {
	return parseDuration(d.Timeout, 60*time.Second)
}

// RetryDefault returns the parsed default 429 retry delay.
func (d DispatchConfig) RetryDefault() time.Duration {
	return parseDuration(d.RetryAfterDefault, 2*time.Second)
}

// StoreConfig configures the persistent key-value store.
type StoreConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// LoggingConfig configures zap.
type LoggingConfig struct {
	Level       string `yaml:"level"` // debug, info, warn, error
	Development bool   `yaml:"development"`
}

// Calibration profiles observed in production use. "standard" matches the
// original desktop deployment; "compact" is the tighter mobile calibration.
var profiles = map[string]Thresholds{
	"standard": {
		FocusMinKPM:        10,
		FocusMaxIdleS:      40,
		DistractedMinIdleS: 90,
		BurnoutMinSessionM: 25,
	},
	"compact": {
		FocusMinKPM:        10,
		FocusMaxIdleS:      18,
		DistractedMinIdleS: 30,
		BurnoutMinSessionM: 25,
	},
}

// ProfileThresholds returns the named calibration profile and whether it
// exists.
func ProfileThresholds(name string) (Thresholds, bool) {
	t, ok := profiles[name]
	return t, ok
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "FlowDesk",
		Version: "1.0.0",

		Adaptive: AdaptiveConfig{
			Profile:         "standard",
			TickInterval:    "1s",
			OverrideHoldoff: "30s",
			KeystrokeWindow: "60s",
		},

		Dispatch: DispatchConfig{
			BaseURL:           "https://api.openai.com/v1",
			Model:             "gpt-4o-mini",
			Timeout:           "60s",
			Temperature:       0.6,
			MaxTokens:         1600,
			RetryAfterDefault: "2s",
			HistoryMessages:   8,
			HistoryCharBudget: 2000,
		},

		Store: StoreConfig{
			DatabasePath: "data/flowdesk.db",
		},

		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file, falling back to defaults when
// the file does not exist, then applies environment overrides and resolves
// the calibration profile.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, cfg.resolveThresholds()
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	if err := cfg.resolveThresholds(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("FLOWDESK_API_KEY"); key != "" {
		c.Dispatch.APIKey = key
	} else if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		c.Dispatch.APIKey = key
	}
	if url := os.Getenv("FLOWDESK_BASE_URL"); url != "" {
		c.Dispatch.BaseURL = url
	}
	if model := os.Getenv("FLOWDESK_MODEL"); model != "" {
		c.Dispatch.Model = model
	}
	if db := os.Getenv("FLOWDESK_DB"); db != "" {
		c.Store.DatabasePath = db
	}
	if profile := os.Getenv("FLOWDESK_PROFILE"); profile != "" {
		c.Adaptive.Profile = profile
	}
}

// resolveThresholds merges the selected profile into any zero threshold
// fields, so partial overrides in YAML keep the rest of the calibration.
func (c *Config) resolveThresholds() error {
	base, ok := profiles[c.Adaptive.Profile]
	if !ok {
		return fmt.Errorf("unknown calibration profile %q", c.Adaptive.Profile)
	}

	t := &c.Adaptive.Thresholds
	if t.FocusMinKPM == 0 {
		t.FocusMinKPM = base.FocusMinKPM
	}
	if t.FocusMaxIdleS == 0 {
		t.FocusMaxIdleS = base.FocusMaxIdleS
	}
	if t.DistractedMinIdleS == 0 {
		t.DistractedMinIdleS = base.DistractedMinIdleS
	}
	if t.BurnoutMinSessionM == 0 {
		t.BurnoutMinSessionM = base.BurnoutMinSessionM
	}
	return nil
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
