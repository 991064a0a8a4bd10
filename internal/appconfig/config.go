package appconfig

import (
	"os"
	"path/filepath"
	"time"
)

// Config is the top-level application configuration.
type Config struct {
	ConfigVersion int         `mapstructure:"config_version" yaml:"config_version"`
	StateDir      string      `mapstructure:"state_dir" yaml:"state_dir"`
	HTTP          HTTPConfig  `mapstructure:"http" yaml:"http"`
	State         StateConfig `mapstructure:"state" yaml:"state"`
}

// CurrentConfigVersion marks the supported config version.
const CurrentConfigVersion = 1

// HTTPConfig configures the remote access gateway.
type HTTPConfig struct {
	Addr          string          `mapstructure:"addr" yaml:"addr"`
	SecurityToken string          `mapstructure:"security_token" yaml:"security_token"`
	RedirectURL   string          `mapstructure:"redirect_url" yaml:"redirect_url"`
	WebDir        string          `mapstructure:"web_dir" yaml:"web_dir"`
	MetricsAddr   string          `mapstructure:"metrics_addr" yaml:"metrics_addr"`
	WS            WSConfig        `mapstructure:"ws" yaml:"ws"`
	RateLimit     RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit"`
}

// WSConfig configures WebSocket keepalive and frame limits.
type WSConfig struct {
	PingIntervalSeconds int   `mapstructure:"ping_interval_seconds" yaml:"ping_interval_seconds"`
	MaxMessageBytes     int64 `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`
}

// PingInterval returns the keepalive interval.
func (c WSConfig) PingInterval() time.Duration {
	return time.Duration(c.PingIntervalSeconds) * time.Second
}

// RateLimitConfig configures per-route request limits.
type RateLimitConfig struct {
	Enabled      bool  `mapstructure:"enabled" yaml:"enabled"`
	Max          int   `mapstructure:"max" yaml:"max"`
	MaxPost      int   `mapstructure:"max_post" yaml:"max_post"`
	TimeWindowMs int64 `mapstructure:"time_window_ms" yaml:"time_window_ms"`
}

// TimeWindow returns the limit window.
func (c RateLimitConfig) TimeWindow() time.Duration {
	return time.Duration(c.TimeWindowMs) * time.Millisecond
}

// StateConfig configures the session manager's persisted state.
type StateConfig struct {
	SeedFile    string `mapstructure:"seed_file" yaml:"seed_file"`
	HistoryMax  int    `mapstructure:"history_max" yaml:"history_max"`
	LogMaxLines int    `mapstructure:"log_max_lines" yaml:"log_max_lines"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, err
	}
	return Config{
		ConfigVersion: CurrentConfigVersion,
		StateDir:      filepath.Join(home, ".tether", "state"),
		HTTP: HTTPConfig{
			Addr:          ":27490",
			SecurityToken: "",
			RedirectURL:   "https://pkt.systems/",
			WebDir:        filepath.Join(home, ".tether", "web"),
			MetricsAddr:   "",
			WS: WSConfig{
				PingIntervalSeconds: 30,
				MaxMessageBytes:     1 << 20,
			},
			RateLimit: RateLimitConfig{
				Enabled:      true,
				Max:          100,
				MaxPost:      30,
				TimeWindowMs: 60000,
			},
		},
		State: StateConfig{
			SeedFile:    "",
			HistoryMax:  5000,
			LogMaxLines: 2000,
		},
	}, nil
}

// DefaultConfigPath returns the standard config path.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".tether", "config.yaml"), nil
}
