// Package config loads coflow configuration from defaults, TOML files and
// COFLOW_* environment variables.
package config

import (
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/teranos/coflow/errors"
	"github.com/teranos/coflow/flow"
	"github.com/teranos/coflow/presence"
)

// Config represents the coflow configuration
type Config struct {
	Database DatabaseConfig `mapstructure:"database" toml:"database"`
	Presence PresenceConfig `mapstructure:"presence" toml:"presence"`
	Identity IdentityConfig `mapstructure:"identity" toml:"identity"`
	Metrics  MetricsConfig  `mapstructure:"metrics" toml:"metrics"`
}

// DatabaseConfig configures the SQLite flow store
type DatabaseConfig struct {
	Path          string `mapstructure:"path" toml:"path" validate:"required"`
	FeedRetention int    `mapstructure:"feed_retention" toml:"feed_retention" validate:"gte=0"` // entries kept per author and feed (0 = default 16)
}

// PresenceConfig configures cursor and connection presence
type PresenceConfig struct {
	ThrottleMS            int      `mapstructure:"throttle_ms" toml:"throttle_ms" validate:"gte=0"`
	CursorFreshnessMS     int      `mapstructure:"cursor_freshness_ms" toml:"cursor_freshness_ms" validate:"gte=0"`     // 0 = default 10s
	ConnectionFreshnessMS int      `mapstructure:"connection_freshness_ms" toml:"connection_freshness_ms" validate:"gte=0"` // 0 = default 5s
	Palette               []string `mapstructure:"palette" toml:"palette" validate:"dive,hexcolor"`
	StrictDecode          bool     `mapstructure:"strict_decode" toml:"strict_decode"`
}

// IdentityConfig names the local collaborator
type IdentityConfig struct {
	Author string `mapstructure:"author" toml:"author" validate:"omitempty,excludesall=/"`
}

// MetricsConfig configures prometheus metrics
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" toml:"enabled"`
}

// ThrottleInterval returns the presence throttle interval
func (p PresenceConfig) ThrottleInterval() time.Duration {
	if p.ThrottleMS == 0 {
		return presence.DefaultThrottleInterval
	}
	return time.Duration(p.ThrottleMS) * time.Millisecond
}

// CursorFreshness returns how long a cursor entry stays live
func (p PresenceConfig) CursorFreshness() time.Duration {
	if p.CursorFreshnessMS == 0 {
		return presence.DefaultCursorFreshness
	}
	return time.Duration(p.CursorFreshnessMS) * time.Millisecond
}

// ConnectionFreshness returns how long a connection entry stays live
func (p PresenceConfig) ConnectionFreshness() time.Duration {
	if p.ConnectionFreshnessMS == 0 {
		return presence.DefaultConnectionFreshness
	}
	return time.Duration(p.ConnectionFreshnessMS) * time.Millisecond
}

// NewPalette builds the collaborator palette, falling back to the default colours
func (p PresenceConfig) NewPalette() *presence.Palette {
	return presence.NewPalette(p.Palette...)
}

// SessionOptions converts the presence section into flow session options
func (p PresenceConfig) SessionOptions() []flow.Option {
	return []flow.Option{
		flow.WithThrottleInterval(p.ThrottleInterval()),
		flow.WithFreshness(p.CursorFreshness(), p.ConnectionFreshness()),
		flow.WithStrictDecode(p.StrictDecode),
	}
}

// TOML renders the effective configuration as a coflow.toml document
func (c *Config) TOML() ([]byte, error) {
	data, err := toml.Marshal(c)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal config")
	}
	return data, nil
}
