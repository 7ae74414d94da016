package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config holds runtime configuration for provider-check.
type Config struct {
	// ConfigDir is where config.json and providercheck.db live.
	ConfigDir string `json:"-"` // set at runtime
	// DBPath is the path to providercheck.db.
	DBPath string `json:"-"`
	// WorkspaceDir resolves relative provider binary paths.
	WorkspaceDir string `json:"workspace_dir"`
	// TimeoutSeconds bounds one provider invocation. Set via PROVIDERCHECK_TIMEOUT_SECONDS.
	TimeoutSeconds int `json:"timeout_seconds"`
	// Concurrency is the number of cases run in parallel. Set via PROVIDERCHECK_CONCURRENCY.
	Concurrency int `json:"concurrency"`
	// OutputMaxRunes caps stored provider output (0 = no truncation). Set via PROVIDERCHECK_OUTPUT_MAX_RUNES.
	OutputMaxRunes int `json:"output_max_runes"`
	// LogLevel is debug, info, warn or error. Set via PROVIDERCHECK_LOG_LEVEL.
	LogLevel string `json:"log_level"`
	// SuitePath is the default suite file; empty means the built-in echo suite.
	SuitePath string `json:"suite_path"`
}

// Defaults.
const (
	DefaultTimeoutSeconds = 30
	DefaultConcurrency    = 4
	DefaultOutputMaxRunes = 4000
)

// DefaultConfigDir returns the default config directory (project-local .providercheck if present, else ~/.config/providercheck).
func DefaultConfigDir() string {
	cwd, _ := os.Getwd()
	local := filepath.Join(cwd, ".providercheck")
	if info, err := os.Stat(local); err == nil && info.IsDir() {
		return local
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "providercheck")
}

// New builds config from defaults, env and an optional config.json in configDir, in that order
// of precedence (file wins). configDir can be empty to use PROVIDERCHECK_CONFIG_DIR or the default.
func New(configDir string) (*Config, error) {
	if configDir == "" {
		if d := os.Getenv("PROVIDERCHECK_CONFIG_DIR"); d != "" {
			configDir = d
		} else {
			configDir = DefaultConfigDir()
		}
	}
	cwd, _ := os.Getwd()
	cfg := &Config{
		ConfigDir:      configDir,
		DBPath:         filepath.Join(configDir, "providercheck.db"),
		WorkspaceDir:   cwd,
		TimeoutSeconds: envInt("PROVIDERCHECK_TIMEOUT_SECONDS", DefaultTimeoutSeconds, 1),
		Concurrency:    envInt("PROVIDERCHECK_CONCURRENCY", DefaultConcurrency, 1),
		OutputMaxRunes: envInt("PROVIDERCHECK_OUTPUT_MAX_RUNES", DefaultOutputMaxRunes, 0),
		LogLevel:       os.Getenv("PROVIDERCHECK_LOG_LEVEL"),
	}

	// Keys present in config.json overwrite env values; missing keys leave them untouched.
	configPath := filepath.Join(configDir, "config.json")
	if data, err := os.ReadFile(configPath); err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", configPath, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading %s: %w", configPath, err)
	}
	if cfg.TimeoutSeconds < 1 {
		cfg.TimeoutSeconds = DefaultTimeoutSeconds
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return cfg, nil
}

// Timeout returns TimeoutSeconds as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// EnsureDir creates ConfigDir if missing.
func (c *Config) EnsureDir() error {
	return os.MkdirAll(c.ConfigDir, 0o755)
}

func envInt(key string, def, floor int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < floor {
		return def
	}
	return n
}
