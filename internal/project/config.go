package project

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	units "github.com/docker/go-units"
)

const (
	// ForgeDir is the directory name for per-project configuration
	ForgeDir = ".forge"
	// ConfigFile is the name of the project configuration file
	ConfigFile = "config.json"
	// RulesFile is the name of the custom rules file
	RulesFile = "rules"
)

// DefaultMaxFileSize bounds a single file's contribution to the initial
// context build.
const DefaultMaxFileSize = "64KiB"

// Config holds per-project settings.
type Config struct {
	// ExcludeDirs are skipped entirely during context assembly and
	// search indexing; they cost zero tokens.
	ExcludeDirs []string `json:"exclude_dirs,omitempty"`
	// ExcludePatterns are gitignore-style patterns applied on top of the
	// project's own .gitignore.
	ExcludePatterns []string `json:"exclude_patterns,omitempty"`
	// MaxFileSize is a human-readable size ("64KiB", "1MB") capping the
	// content pulled from any one file.
	MaxFileSize string `json:"max_file_size,omitempty"`
	// ContextBudget caps the tokens spent on the initial context build.
	ContextBudget int `json:"context_budget,omitempty"`
}

// DefaultConfig returns the settings used when no config file exists.
func DefaultConfig() *Config {
	return &Config{
		ExcludeDirs: []string{".git", ForgeDir, "node_modules", "vendor", "dist", "build", "__pycache__"},
		MaxFileSize: DefaultMaxFileSize,
	}
}

// MaxFileSizeBytes parses the configured size cap, falling back to the
// default on a malformed value.
func (c *Config) MaxFileSizeBytes() int64 {
	size := c.MaxFileSize
	if size == "" {
		size = DefaultMaxFileSize
	}
	n, err := units.RAMInBytes(size)
	if err != nil {
		n, _ = units.RAMInBytes(DefaultMaxFileSize)
	}
	return n
}

func configPath(repoRoot string) string {
	return filepath.Join(repoRoot, ForgeDir, ConfigFile)
}

func rulesPath(repoRoot string) string {
	return filepath.Join(repoRoot, ForgeDir, RulesFile)
}

// LoadConfig reads the project configuration from disk. Returns the
// defaults and no error if the config file does not exist.
func LoadConfig(repoRoot string) (*Config, error) {
	path := configPath(repoRoot)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read project config: %w", err)
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse project config: %w", err)
	}

	return cfg, nil
}

// SaveConfig writes the project configuration to disk, creating the
// config directory if needed.
func SaveConfig(repoRoot string, cfg *Config) error {
	dir := filepath.Join(repoRoot, ForgeDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create %s directory: %w", ForgeDir, err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal project config: %w", err)
	}

	if err := os.WriteFile(configPath(repoRoot), data, 0644); err != nil {
		return fmt.Errorf("failed to write project config: %w", err)
	}

	return nil
}

// LoadRules reads custom agent rules from the rules file. Returns empty
// string and no error if the file does not exist.
func LoadRules(repoRoot string) (string, error) {
	path := rulesPath(repoRoot)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return "", nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read rules file: %w", err)
	}

	return string(data), nil
}
