// Package config loads the saferm user configuration. A missing or
// malformed file is never fatal: the tool degrades to safe defaults so
// it stays usable in a fresh environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// EnvConfigPath overrides the config file location when set.
const EnvConfigPath = "SAFERM_CONFIG"

// AllowedPath is one bypass rule: deletion under Path skips the
// containment and git status checks entirely.
type AllowedPath struct {
	Path string `yaml:"path"`
	// Recursive permits the directory and any descendant. When false,
	// only immediate children match.
	Recursive bool `yaml:"recursive"`
}

// AuditConfig controls the optional JSONL decision log.
type AuditConfig struct {
	Enabled bool   `yaml:"enabled"`
	Output  string `yaml:"output"`
	// LogAllowed / LogDenied select which verdicts get recorded.
	LogAllowed bool `yaml:"log_allowed"`
	LogDenied  bool `yaml:"log_denied"`
}

// Config is the effective configuration after defaults are applied.
type Config struct {
	// AllowProjectDeletion permits deleting any contained file without
	// consulting git status. Containment is still enforced.
	AllowProjectDeletion bool          `yaml:"allow_project_deletion"`
	AllowedPaths         []AllowedPath `yaml:"allowed_paths"`
	// ProtectedPaths are glob patterns (matched against the
	// project-relative path) that are never deletable.
	ProtectedPaths []string    `yaml:"protected_paths"`
	Audit          AuditConfig `yaml:"audit"`
}

// DefaultProtectedPaths keeps repository metadata out of reach even
// under the permissive policy.
var DefaultProtectedPaths = []string{
	".git", ".git/**", "**/.git", "**/.git/**",
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		AllowProjectDeletion: true,
		ProtectedPaths:       append([]string(nil), DefaultProtectedPaths...),
		Audit: AuditConfig{
			Output:     "~/.local/state/saferm/audit.log",
			LogAllowed: false,
			LogDenied:  true,
		},
	}
}

// Path returns the config file location: $SAFERM_CONFIG if set,
// otherwise ~/.config/saferm/config.yaml.
func Path() string {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "saferm", "config.yaml")
}

// Load reads the config from the default location.
func Load() *Config {
	return LoadFrom(Path())
}

// fileConfig mirrors Config with pointers so absent keys can be told
// apart from explicit zero values.
type fileConfig struct {
	AllowProjectDeletion *bool         `yaml:"allow_project_deletion"`
	AllowedPaths         []AllowedPath `yaml:"allowed_paths"`
	ProtectedPaths       []string      `yaml:"protected_paths"`
	Audit                struct {
		Enabled    *bool  `yaml:"enabled"`
		Output     string `yaml:"output"`
		LogAllowed *bool  `yaml:"log_allowed"`
		LogDenied  *bool  `yaml:"log_denied"`
	} `yaml:"audit"`
}

// LoadFrom reads the config from path. Any failure (missing file,
// unreadable, bad YAML) falls back to Default; a parse error also gets
// a one-line warning so a typo is not silently ignored forever.
func LoadFrom(path string) *Config {
	cfg := Default()
	if path == "" {
		return cfg
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		fmt.Fprintf(os.Stderr, "saferm: warning: config parse error (%s): %v\n", path, err)
		return cfg
	}
	if fc.AllowProjectDeletion != nil {
		cfg.AllowProjectDeletion = *fc.AllowProjectDeletion
	}
	cfg.AllowedPaths = fc.AllowedPaths
	if fc.ProtectedPaths != nil {
		cfg.ProtectedPaths = fc.ProtectedPaths
	}
	if fc.Audit.Enabled != nil {
		cfg.Audit.Enabled = *fc.Audit.Enabled
	}
	if fc.Audit.Output != "" {
		cfg.Audit.Output = fc.Audit.Output
	}
	if fc.Audit.LogAllowed != nil {
		cfg.Audit.LogAllowed = *fc.Audit.LogAllowed
	}
	if fc.Audit.LogDenied != nil {
		cfg.Audit.LogDenied = *fc.Audit.LogDenied
	}
	return cfg
}
