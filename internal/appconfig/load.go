package appconfig

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var tokenPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Load reads configuration from the provided path. If path is empty, uses DefaultConfigPath.
func Load(path string) (Config, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return Config{}, err
		}
		path = defaultPath
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetDefault("config_version", cfg.ConfigVersion)
	v.SetDefault("state_dir", cfg.StateDir)
	v.SetDefault("http.addr", cfg.HTTP.Addr)
	v.SetDefault("http.security_token", cfg.HTTP.SecurityToken)
	v.SetDefault("http.redirect_url", cfg.HTTP.RedirectURL)
	v.SetDefault("http.web_dir", cfg.HTTP.WebDir)
	v.SetDefault("http.metrics_addr", cfg.HTTP.MetricsAddr)
	v.SetDefault("http.ws.ping_interval_seconds", cfg.HTTP.WS.PingIntervalSeconds)
	v.SetDefault("http.ws.max_message_bytes", cfg.HTTP.WS.MaxMessageBytes)
	v.SetDefault("http.rate_limit.enabled", cfg.HTTP.RateLimit.Enabled)
	v.SetDefault("http.rate_limit.max", cfg.HTTP.RateLimit.Max)
	v.SetDefault("http.rate_limit.max_post", cfg.HTTP.RateLimit.MaxPost)
	v.SetDefault("http.rate_limit.time_window_ms", cfg.HTTP.RateLimit.TimeWindowMs)
	v.SetDefault("state.seed_file", cfg.State.SeedFile)
	v.SetDefault("state.history_max", cfg.State.HistoryMax)
	v.SetDefault("state.log_max_lines", cfg.State.LogMaxLines)

	configLoaded := false
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return Config{}, err
		}
	} else {
		configLoaded = true
	}

	if configLoaded {
		if !v.InConfig("config_version") {
			return Config{}, fmt.Errorf("config_version is required; expected %d", CurrentConfigVersion)
		}
		if v.GetInt("config_version") != CurrentConfigVersion {
			return Config{}, fmt.Errorf("unsupported config_version %d; expected %d", v.GetInt("config_version"), CurrentConfigVersion)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	expandConfigEnv(&cfg)
	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validate(cfg Config) error {
	if err := validateHTTPConfig(cfg.HTTP); err != nil {
		return err
	}
	if cfg.State.HistoryMax < 0 {
		return fmt.Errorf("state.history_max must not be negative")
	}
	if cfg.State.LogMaxLines < 0 {
		return fmt.Errorf("state.log_max_lines must not be negative")
	}
	return nil
}

func validateHTTPConfig(cfg HTTPConfig) error {
	if strings.TrimSpace(cfg.Addr) == "" {
		return fmt.Errorf("http.addr is required")
	}
	if token := cfg.SecurityToken; token != "" {
		if !tokenPattern.MatchString(token) {
			return fmt.Errorf("http.security_token must match [A-Za-z0-9_-]+")
		}
		if token == "health" {
			return fmt.Errorf("http.security_token must not be %q", token)
		}
	}
	redirect := strings.TrimSpace(cfg.RedirectURL)
	if redirect != "" {
		parsed, err := url.Parse(redirect)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("http.redirect_url must include scheme and host (e.g. https://example.com)")
		}
	}
	if cfg.WS.PingIntervalSeconds < 0 {
		return fmt.Errorf("http.ws.ping_interval_seconds must not be negative")
	}
	if cfg.WS.MaxMessageBytes < 0 {
		return fmt.Errorf("http.ws.max_message_bytes must not be negative")
	}
	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.Max <= 0 || cfg.RateLimit.MaxPost <= 0 {
			return fmt.Errorf("http.rate_limit.max and max_post must be positive when enabled")
		}
		if cfg.RateLimit.TimeWindowMs <= 0 {
			return fmt.Errorf("http.rate_limit.time_window_ms must be positive when enabled")
		}
	}
	return nil
}

func expandConfigEnv(cfg *Config) {
	if cfg == nil {
		return
	}
	cfg.StateDir = expandEnv(cfg.StateDir)
	cfg.HTTP.WebDir = expandEnv(cfg.HTTP.WebDir)
	cfg.State.SeedFile = expandEnv(cfg.State.SeedFile)
}

func expandEnv(value string) string {
	if value == "" {
		return value
	}
	return os.Expand(value, func(key string) string {
		if key == "" {
			return ""
		}
		if val, ok := lookupEnv(key); ok {
			return val
		}
		return "$" + key
	})
}

func lookupEnv(key string) (string, bool) {
	if val, ok := os.LookupEnv(key); ok {
		return val, true
	}
	switch key {
	case "UID":
		return fmt.Sprintf("%d", os.Getuid()), true
	case "GID":
		return fmt.Sprintf("%d", os.Getgid()), true
	}
	return "", false
}

// GenerateToken returns a fresh security token.
func GenerateToken() string {
	return uuid.NewString()
}

// WriteDefault writes the default config with a freshly generated security
// token to the target path.
func WriteDefault(path string, overwrite bool) (string, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return "", err
		}
		path = defaultPath
	}

	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("config already exists at %s", path)
		}
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return "", err
	}
	cfg.HTTP.SecurityToken = GenerateToken()

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", err
	}
	return path, nil
}
