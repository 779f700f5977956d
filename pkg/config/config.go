/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package config

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"
	"gopkg.in/yaml.v3"

	"github.com/ssargent/pagestore/pkg/store"
)

// Config represents the PageStore configuration
type Config struct {
	Store    Store    `yaml:"store"`
	Server   Server   `yaml:"server"`
	Security Security `yaml:"security"`
	Logging  Logging  `yaml:"logging"`
}

// Store contains the engine settings
type Store struct {
	Path             string `yaml:"path"`
	InMemory         bool   `yaml:"in_memory"`
	UseMmap          bool   `yaml:"use_mmap"`
	Checksum         bool   `yaml:"checksum"`
	PageSize         int    `yaml:"page_size"`
	ConcurrencyShift uint   `yaml:"concurrency_shift"`
	StartSize        int64  `yaml:"start_size"`
	CompactOnClose   bool   `yaml:"compact_on_close"`
}

// Server contains REST API settings
type Server struct {
	Port          int    `yaml:"port"`
	Bind          string `yaml:"bind"`
	MaxRecordSize int64  `yaml:"max_record_size"`
}

// Security contains security-related configuration
type Security struct {
	SystemAPIKey string `yaml:"system_api_key"`
	ClientAPIKey string `yaml:"client_api_key"`
}

// Logging contains logging configuration
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Store: Store{
			Path:             "./data/pagestore.db",
			Checksum:         true,
			PageSize:         store.DefaultPageSize,
			ConcurrencyShift: store.DefaultConcurrencyShift,
		},
		Server: Server{
			Port:          8080,
			Bind:          "127.0.0.1",
			MaxRecordSize: 16 << 20,
		},
		Security: Security{
			SystemAPIKey: "auto",
			ClientAPIKey: "auto",
		},
		Logging: Logging{
			Level:  "info",
			Format: "text",
		},
	}
}

// ToStoreConfig builds the engine configuration. Logger and Registerer are
// left for the caller.
func (c *Config) ToStoreConfig() store.Config {
	cfg := store.DefaultConfig()
	cfg.Path = c.Store.Path
	cfg.InMemory = c.Store.InMemory
	cfg.UseMmap = c.Store.UseMmap
	cfg.Checksum = c.Store.Checksum
	cfg.StartSize = c.Store.StartSize
	cfg.CompactOnClose = c.Store.CompactOnClose
	if c.Store.PageSize != 0 {
		cfg.PageSize = c.Store.PageSize
	}
	cfg.ConcurrencyShift = c.Store.ConcurrencyShift
	return cfg
}

// NewLogger builds a slog logger writing to w at the configured level.
func (l Logging) NewLogger(w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	switch strings.ToLower(l.Level) {
	case "debug":
		level = slog.LevelDebug
	case "", "info":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return nil, fmt.Errorf("unknown log level %q", l.Level)
	}

	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(l.Format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", l.Format)
	}
}

// LoadConfig loads configuration from the specified path
func LoadConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", configPath)
	}

	if !filepath.IsAbs(configPath) {
		absPath, err := filepath.Abs(configPath)
		if err != nil {
			return nil, fmt.Errorf("invalid config path: %w", err)
		}
		configPath = absPath
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveConfig replaces the file at configPath atomically and restricts it to
// the owner.
func SaveConfig(config *Config, configPath string) error {
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := atomic.WriteFile(configPath, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	if err := os.Chmod(configPath, 0600); err != nil {
		return fmt.Errorf("failed to secure config file: %w", err)
	}

	return nil
}

// GenerateSecureKey generates a cryptographically secure random key
func GenerateSecureKey(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate secure key: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}

// BootstrapConfig creates a new configuration with generated keys and saves
// it to configPath.
func BootstrapConfig(configPath string, storePath string) (*Config, error) {
	config := DefaultConfig()
	if storePath != "" {
		config.Store.Path = storePath
	}

	systemAPIKey, err := GenerateSecureKey(32)
	if err != nil {
		return nil, fmt.Errorf("failed to generate system API key: %w", err)
	}
	config.Security.SystemAPIKey = systemAPIKey

	clientAPIKey, err := GenerateSecureKey(32)
	if err != nil {
		return nil, fmt.Errorf("failed to generate client API key: %w", err)
	}
	config.Security.ClientAPIKey = clientAPIKey

	if err := SaveConfig(config, configPath); err != nil {
		return nil, fmt.Errorf("failed to save bootstrap config: %w", err)
	}

	return config, nil
}

// GetDefaultConfigPath returns the default configuration path for the current platform
func GetDefaultConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./pagestore.yaml"
	}

	return filepath.Join(homeDir, ".config", "pagestore", "config.yaml")
}

// ConfigExists checks if a configuration file exists
func ConfigExists(configPath string) bool {
	_, err := os.Stat(configPath)
	return !os.IsNotExist(err)
}
