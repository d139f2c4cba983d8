// ABOUTME: Centralized configuration for the toolbox storage layer
// ABOUTME: Loads from environment variables with validation and defaults
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/charmbracelet/log"

	"github.com/harper/toolbox/internal/storage"
	"github.com/harper/toolbox/internal/storage/sqlite"
)

// Config holds all configuration for the toolbox
type Config struct {
	// Storage settings
	AppName       string
	DataDir       string
	Backend       string
	MemoryCeiling int64
	ImportMode    string

	// Key-value store settings
	KVInMemory         bool
	KVDisabled         bool
	DestructiveUpgrade bool
	MaxRetries         int
	RetryDelay         time.Duration

	LogLevel string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		AppName:            getEnv("TOOLBOX_APP_NAME", "toolbox"),
		DataDir:            getEnv("TOOLBOX_DATA_DIR", defaultDataDir()),
		Backend:            getEnv("TOOLBOX_BACKEND", ""),
		MemoryCeiling:      int64(getEnvInt("TOOLBOX_MEMORY_CEILING", int(storage.DefaultMemoryCeiling))),
		ImportMode:         getEnv("TOOLBOX_IMPORT_MODE", string(sqlite.RestoreReplace)),
		KVInMemory:         getEnvBool("TOOLBOX_KV_IN_MEMORY", false),
		KVDisabled:         getEnvBool("TOOLBOX_KV_DISABLED", false),
		DestructiveUpgrade: getEnvBool("TOOLBOX_DESTRUCTIVE_UPGRADE", false),
		MaxRetries:         getEnvInt("TOOLBOX_MAX_RETRIES", 3),
		RetryDelay:         getEnvDuration("TOOLBOX_RETRY_DELAY", 100*time.Millisecond),
		LogLevel:           getEnv("TOOLBOX_LOG_LEVEL", "info"),
	}

	return cfg, cfg.Validate()
}

func (c *Config) Validate() error {
	if c.AppName == "" || strings.ContainsAny(c.AppName, `/\`) {
		return fmt.Errorf("TOOLBOX_APP_NAME must be a plain file name, got %q", c.AppName)
	}
	if _, err := storage.ParseKind(c.Backend); err != nil {
		return fmt.Errorf("TOOLBOX_BACKEND: %w", err)
	}
	if _, err := sqlite.ParseRestoreMode(c.ImportMode); err != nil {
		return fmt.Errorf("TOOLBOX_IMPORT_MODE: %w", err)
	}
	if c.MemoryCeiling <= 0 {
		return fmt.Errorf("TOOLBOX_MEMORY_CEILING must be positive, got %d", c.MemoryCeiling)
	}
	if c.MaxRetries < 0 || c.MaxRetries > 10 {
		return fmt.Errorf("TOOLBOX_MAX_RETRIES must be 0-10, got %d", c.MaxRetries)
	}
	if _, ok := logLevels[strings.ToLower(c.LogLevel)]; !ok {
		return fmt.Errorf("TOOLBOX_LOG_LEVEL must be debug, info, warn or error, got %q", c.LogLevel)
	}
	return nil
}

var logLevels = map[string]log.Level{
	"debug": log.DebugLevel,
	"info":  log.InfoLevel,
	"warn":  log.WarnLevel,
	"error": log.ErrorLevel,
}

// Level returns the configured log level, defaulting to info.
func (c *Config) Level() log.Level {
	if lvl, ok := logLevels[strings.ToLower(c.LogLevel)]; ok {
		return lvl
	}
	return log.InfoLevel
}

// StorageOptions maps the configuration onto storage manager options.
func (c *Config) StorageOptions() storage.Options {
	mode, _ := sqlite.ParseRestoreMode(c.ImportMode)
	return storage.Options{
		AppName:            c.AppName,
		DataDir:            c.DataDir,
		KVInMemory:         c.KVInMemory,
		KVDisabled:         c.KVDisabled,
		DestructiveUpgrade: c.DestructiveUpgrade,
		MaxRetries:         c.MaxRetries,
		RetryDelay:         c.RetryDelay,
		MemoryCeiling:      c.MemoryCeiling,
		ImportMode:         mode,
	}
}

// defaultDataDir respects XDG_DATA_HOME set after process start, e.g. in tests
func defaultDataDir() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		dataHome = xdg.DataHome
	}
	return filepath.Join(dataHome, "toolbox")
}

// Helper functions
func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	return v == "true" || v == "1"
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
