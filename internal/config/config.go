// Package config manages application configuration from files and environment.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds the application configuration.
type Config struct {
	Native struct {
		Read  bool `mapstructure:"read"`
		Write bool `mapstructure:"write"`
	} `mapstructure:"native"`
	Output struct {
		Standalone bool `mapstructure:"standalone"`
		Color      bool `mapstructure:"color"`
	} `mapstructure:"output"`
	Log struct {
		Level string `mapstructure:"level"`
		JSON  bool   `mapstructure:"json"`
	} `mapstructure:"log"`
	Watch struct {
		DebounceMS int `mapstructure:"debounce_ms"`
	} `mapstructure:"watch"`
	Batch struct {
		Workers int `mapstructure:"workers"`
	} `mapstructure:"batch"`
}

// defaults are applied before the config file and environment are read.
var defaults = map[string]any{
	"native.read":       true,
	"native.write":      true,
	"output.standalone": false,
	"output.color":      true,
	"log.level":         "warn",
	"log.json":          false,
	"watch.debounce_ms": 300,
	"batch.workers":     4,
}

// Keys lists every known configuration key in display order.
var Keys = []string{
	"native.read",
	"native.write",
	"output.standalone",
	"output.color",
	"log.level",
	"log.json",
	"watch.debounce_ms",
	"batch.workers",
}

// Load reads the configuration from ~/.docbridge/config.yaml and DOCBRIDGE_*
// environment variables.
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir())

	setDefaults()

	// DOCBRIDGE_NATIVE_READ overrides native.read.
	viper.SetEnvPrefix("DOCBRIDGE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Read config file (non-fatal if missing)
	_ = viper.ReadInConfig()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults() {
	for k, v := range defaults {
		viper.SetDefault(k, v)
	}
}

func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".docbridge"
	}
	return filepath.Join(home, ".docbridge")
}
