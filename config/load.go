package config

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/viper"

	"github.com/teranos/coflow/errors"
)

var (
	globalConfig  *Config
	viperInstance *viper.Viper
	loadMu        sync.Mutex
)

// Load reads configuration once and caches it. Precedence, lowest first:
// defaults, /etc/coflow/coflow.toml, ~/.coflow/coflow.toml, the nearest
// coflow.toml walking up from the working directory, COFLOW_* env vars.
func Load() (*Config, error) {
	loadMu.Lock()
	defer loadMu.Unlock()

	if globalConfig != nil {
		return globalConfig, nil
	}

	v := initViper()
	if err := mergeConfigFiles(v, SearchPaths()); err != nil {
		return nil, err
	}

	cfg, err := LoadWithViper(v)
	if err != nil {
		return nil, err
	}

	globalConfig = cfg
	viperInstance = v
	return cfg, nil
}

// LoadFromFile reads a single config file on top of defaults and env vars
func LoadFromFile(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, errors.Wrapf(err, "config file %s", path)
	}
	v := initViper()
	if err := mergeConfigFiles(v, []string{path}); err != nil {
		return nil, err
	}
	return LoadWithViper(v)
}

// LoadWithViper unmarshals and validates the configuration held by v
func LoadWithViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	return &cfg, nil
}

// GetViper returns the viper instance behind the cached config, or nil before Load
func GetViper() *viper.Viper {
	loadMu.Lock()
	defer loadMu.Unlock()
	return viperInstance
}

// Reset drops the cached configuration
func Reset() {
	loadMu.Lock()
	defer loadMu.Unlock()
	globalConfig = nil
	viperInstance = nil
}

func initViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("toml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
	return v
}

// mergeConfigFiles merges each existing file in order; later files win.
// Missing files are skipped, unreadable ones are an error.
func mergeConfigFiles(v *viper.Viper, paths []string) error {
	for _, path := range paths {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return errors.Wrapf(err, "failed to read config %s", path)
		}
	}
	return nil
}

// SearchPaths returns the config files Load considers, lowest precedence first.
// The project entry is empty when no coflow.toml is found.
func SearchPaths() []string {
	paths := []string{filepath.Join("/etc", "coflow", FileName)}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".coflow", FileName))
	}
	if wd, err := os.Getwd(); err == nil {
		paths = append(paths, findProjectConfig(wd))
	}
	return paths
}

// findProjectConfig walks up from dir to the filesystem root looking for coflow.toml
func findProjectConfig(dir string) string {
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
