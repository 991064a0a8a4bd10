package httpapi

import (
	"io/fs"
	"time"
)

// DefaultRedirectURL is where rejected requests are sent when no redirect is configured.
const DefaultRedirectURL = "https://pkt.systems/"

const (
	defaultPingInterval    = 30 * time.Second
	defaultMaxMessageBytes = 1 << 20
	maxRequestBodyBytes    = 1 << 20
	shutdownTimeout        = 5 * time.Second
)

// Config defines the remote access gateway settings.
type Config struct {
	Addr string
	// SecurityToken is the secret first path segment. It must match [A-Za-z0-9_-]+.
	SecurityToken string
	// RedirectURL receives every request that fails the token check.
	RedirectURL string
	// WebDir is the directory holding index.html, manifest.json, sw.js, assets/ and icons/.
	WebDir string
	// WebFS overrides WebDir when set.
	WebFS           fs.FS
	RateLimit       RateLimitConfig
	PingInterval    time.Duration
	MaxMessageBytes int64
}

func (c Config) withDefaults() Config {
	if c.RedirectURL == "" {
		c.RedirectURL = DefaultRedirectURL
	}
	if c.PingInterval <= 0 {
		c.PingInterval = defaultPingInterval
	}
	if c.MaxMessageBytes <= 0 {
		c.MaxMessageBytes = defaultMaxMessageBytes
	}
	if c.RateLimit == (RateLimitConfig{}) {
		c.RateLimit = DefaultRateLimitConfig()
	}
	c.RateLimit = c.RateLimit.normalized()
	return c
}
