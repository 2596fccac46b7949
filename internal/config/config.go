// Package config provides configuration loading and structs for the Shikiri server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug   bool          `yaml:"debug"`
	Server  ServerConfig  `yaml:"server"`
	Auth    AuthConfig    `yaml:"auth"`
	Storage StorageConfig `yaml:"storage"`
	Search  SearchConfig  `yaml:"search"`
	Watch   WatchConfig   `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// AuthConfig holds credential table settings. Backend selects where the table
// is loaded from: "yaml" reads CredentialsPath as a YAML file, "sqlite" opens
// it as a SQLite database with a credentials table.
type AuthConfig struct {
	Backend         string `yaml:"backend"`
	CredentialsPath string `yaml:"credentials_path"`
}

// StorageConfig holds the corpus layout: one directory per tenant under
// DocumentsRoot, holding files with one of Extensions.
type StorageConfig struct {
	DocumentsRoot string   `yaml:"documents_root"`
	Extensions    []string `yaml:"extensions"`
	MaxFileBytes  int64    `yaml:"max_file_bytes"`
	CacheEnabled  *bool    `yaml:"cache_enabled"`
}

// CacheEnabledOrDefault returns whether per-tenant corpus caching is on;
// defaults to true when unset.
func (s *StorageConfig) CacheEnabledOrDefault() bool {
	if s.CacheEnabled != nil {
		return *s.CacheEnabled
	}
	return true
}

// SearchConfig holds matching and presentation settings.
type SearchConfig struct {
	// NoMatchMessage is the answer text returned when nothing matches.
	// Purely presentational: the match engine reports no-match as a typed
	// result, never by comparing against this string.
	NoMatchMessage string `yaml:"no_match_message"`
	// MinSentenceLength filters title-like lines out of answer candidates.
	MinSentenceLength int `yaml:"min_sentence_length"`
}

// WatchConfig holds corpus/credential watch settings.
type WatchConfig struct {
	Enabled *bool `yaml:"enabled"`
}

// EnabledOrDefault returns whether watching is on; defaults to true when unset.
func (w *WatchConfig) EnabledOrDefault() bool {
	if w.Enabled != nil {
		return *w.Enabled
	}
	return true
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Auth.CredentialsPath = expandPath(cfg.Auth.CredentialsPath, configDir)
	cfg.Storage.DocumentsRoot = expandPath(cfg.Storage.DocumentsRoot, configDir)

	return &cfg, nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
