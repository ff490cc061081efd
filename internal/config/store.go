package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

// ConfigIssue represents a validation finding.
type ConfigIssue struct {
	Key      string `json:"key"`
	Severity string `json:"severity"` // "error", "warning", "info"
	Message  string `json:"message"`
	Fix      string `json:"fix"`
}

// Validate checks config values and returns a list of issues.
func Validate() []ConfigIssue {
	var issues []ConfigIssue

	if _, err := zapcore.ParseLevel(viper.GetString("log.level")); err != nil {
		issues = append(issues, ConfigIssue{
			Key:      "log.level",
			Severity: "error",
			Message:  fmt.Sprintf("unknown log level %q", viper.GetString("log.level")),
			Fix:      "docbridge config set log.level warn",
		})
	}
	if n := viper.GetInt("batch.workers"); n < 1 {
		issues = append(issues, ConfigIssue{
			Key:      "batch.workers",
			Severity: "error",
			Message:  fmt.Sprintf("batch.workers must be at least 1, got %d", n),
			Fix:      "docbridge config set batch.workers 4",
		})
	}
	if ms := viper.GetInt("watch.debounce_ms"); ms < 0 {
		issues = append(issues, ConfigIssue{
			Key:      "watch.debounce_ms",
			Severity: "error",
			Message:  "watch.debounce_ms cannot be negative",
			Fix:      "docbridge config set watch.debounce_ms 300",
		})
	}
	if !viper.GetBool("native.read") || !viper.GetBool("native.write") {
		issues = append(issues, ConfigIssue{
			Key:      "native",
			Severity: "warning",
			Message:  "the native converter is disabled for at least one direction; output keeps text structure only",
			Fix:      "docbridge config set native.read true",
		})
	}
	return issues
}

// ToEnv returns all config values as a map of env var name -> value.
func ToEnv() map[string]string {
	env := make(map[string]string, len(Keys))
	for _, k := range Keys {
		if v := viper.GetString(k); v != "" {
			env["DOCBRIDGE_"+strings.ToUpper(strings.ReplaceAll(k, ".", "_"))] = v
		}
	}
	return env
}

// Set sets a config value and saves to disk.
func Set(key, value string) error {
	if !known(key) {
		return fmt.Errorf("unknown config key %q (known keys: %s)", key, strings.Join(Keys, ", "))
	}
	viper.Set(key, value)
	return SaveConfig()
}

// Get retrieves a config value.
func Get(key string) string {
	return viper.GetString(key)
}

// ResetConfig removes the config file and restores defaults.
func ResetConfig() error {
	path := ConfigPath()
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("could not delete config: %w", err)
	}
	for k, v := range defaults {
		viper.Set(k, v)
	}
	return nil
}

// SaveConfig writes the current config to ~/.docbridge/config.yaml.
func SaveConfig() error {
	dir := configDir()
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("could not create config directory: %w", err)
	}

	path := filepath.Join(dir, "config.yaml")
	if err := viper.WriteConfigAs(path); err != nil {
		return fmt.Errorf("could not write config: %w", err)
	}

	// Set secure permissions
	os.Chmod(path, 0600)
	return nil
}

// ConfigPath returns the path to the config file.
func ConfigPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

// ShowConfig returns a formatted string of the current configuration.
func ShowConfig() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Config: %s\n\n", ConfigPath())
	for _, k := range Keys {
		fmt.Fprintf(&sb, "  %-18s %s\n", k+":", viper.GetString(k))
	}
	return sb.String()
}

func known(key string) bool {
	for _, k := range Keys {
		if k == key {
			return true
		}
	}
	return false
}
