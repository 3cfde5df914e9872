package config

import (
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override (COFLOW_DATABASE_PATH, ...)
const EnvPrefix = "COFLOW"

// FileName is the config file looked up in system, user and project directories
const FileName = "coflow.toml"

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	// Database defaults
	v.SetDefault("database.path", "coflow.db")
	v.SetDefault("database.feed_retention", 16) // entries per (author, feed)

	// Presence defaults
	v.SetDefault("presence.throttle_ms", 64)
	v.SetDefault("presence.cursor_freshness_ms", 10000)
	v.SetDefault("presence.connection_freshness_ms", 5000)
	v.SetDefault("presence.palette", []string{})
	v.SetDefault("presence.strict_decode", false)

	v.SetDefault("identity.author", "")
	v.SetDefault("metrics.enabled", false)
}
