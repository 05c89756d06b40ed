// Package config provides configuration for the arf CLI.
//
// Values are layered: built-in defaults, then an optional .arf.yaml at the
// repository root, then ARF_* environment variables. The resulting Config is
// handed explicitly to every component; nothing below cmd/arf reads the
// environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// FileName is the optional per-repository config file.
const FileName = ".arf.yaml"

// Config holds arf configuration.
type Config struct {
	// RepoRoot is the root of the source worktree. Set by Load, never read from file.
	RepoRoot string `mapstructure:"-"`
	// Branch is the orphan branch holding reasoning records.
	Branch string `mapstructure:"branch"`
	// MountDir is where the arf branch is checked out (relative to RepoRoot).
	MountDir string `mapstructure:"mount_dir"`
	// StorageRoot holds the prefix directories. Defaults to <MountDir>/records.
	StorageRoot string `mapstructure:"storage_root"`
	// SpecsDir holds task specs. Defaults to <MountDir>/specs.
	SpecsDir string `mapstructure:"specs_dir"`
	// PrefixLength is the number of sha hex characters used for new record directories.
	PrefixLength int `mapstructure:"prefix_length"`
	// ShortSHALength is the display length of commit ids.
	ShortSHALength int `mapstructure:"short_sha_length"`
	// Agent identifies who is recording (ARF_AGENT).
	Agent string `mapstructure:"agent"`
	// MaxSuffix bounds the filename collision retries.
	MaxSuffix int `mapstructure:"max_suffix"`
	// AutoCommit commits new records to the arf branch after writing them.
	AutoCommit bool `mapstructure:"auto_commit"`
	// AuthorName and AuthorEmail sign arf branch commits.
	AuthorName  string `mapstructure:"author_name"`
	AuthorEmail string `mapstructure:"author_email"`
	// Cache enables the parsed-record cache.
	Cache bool `mapstructure:"cache"`
	// CachePath is the sqlite file of the parsed-record cache. Defaults under the user cache dir.
	CachePath string `mapstructure:"cache_path"`
	// LogLimit and GraphLimit are the default result caps.
	LogLimit   int `mapstructure:"log_limit"`
	GraphLimit int `mapstructure:"graph_limit"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("branch", "arf")
	v.SetDefault("mount_dir", ".arf")
	v.SetDefault("storage_root", "")
	v.SetDefault("specs_dir", "")
	v.SetDefault("prefix_length", 8)
	v.SetDefault("short_sha_length", 7)
	v.SetDefault("agent", "unknown")
	v.SetDefault("max_suffix", 100)
	v.SetDefault("auto_commit", true)
	v.SetDefault("author_name", "arf")
	v.SetDefault("author_email", "arf@localhost")
	v.SetDefault("cache", true)
	v.SetDefault("cache_path", "")
	v.SetDefault("log_limit", 10)
	v.SetDefault("graph_limit", 10)
}

// Default returns the built-in configuration for a repository, ignoring
// files and environment.
func Default(repoRoot string) *Config {
	v := viper.New()
	setDefaults(v)
	cfg := &Config{}
	// Defaults always decode.
	_ = v.Unmarshal(cfg)
	cfg.RepoRoot = repoRoot
	cfg.resolve()
	return cfg
}

// Load builds the configuration for the repository rooted at repoRoot.
func Load(repoRoot string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("ARF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	configFilePath := filepath.Join(repoRoot, FileName)
	if _, err := os.Stat(configFilePath); err == nil {
		v.SetConfigFile(configFilePath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", configFilePath, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("checking config file %s: %w", configFilePath, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	cfg.RepoRoot = repoRoot
	cfg.resolve()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolve anchors relative paths at the repository root and fills derived defaults.
func (c *Config) resolve() {
	c.MountDir = c.abs(c.MountDir)
	if c.StorageRoot == "" {
		c.StorageRoot = filepath.Join(c.MountDir, "records")
	} else {
		c.StorageRoot = c.abs(c.StorageRoot)
	}
	if c.SpecsDir == "" {
		c.SpecsDir = filepath.Join(c.MountDir, "specs")
	} else {
		c.SpecsDir = c.abs(c.SpecsDir)
	}
	if c.Cache && c.CachePath == "" {
		if dir, err := os.UserCacheDir(); err == nil {
			c.CachePath = filepath.Join(dir, "arf", "records.db")
		} else {
			c.Cache = false
		}
	}
	if strings.TrimSpace(c.Agent) == "" {
		c.Agent = "unknown"
	}
}

func (c *Config) abs(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.RepoRoot, p)
}

// Validate reports settings that would make storage unusable.
func (c *Config) Validate() error {
	if c.PrefixLength < 4 || c.PrefixLength > 64 {
		return fmt.Errorf("prefix_length must be between 4 and 64, got %d", c.PrefixLength)
	}
	if c.ShortSHALength < 4 || c.ShortSHALength > 40 {
		return fmt.Errorf("short_sha_length must be between 4 and 40, got %d", c.ShortSHALength)
	}
	if c.MaxSuffix < 1 {
		return fmt.Errorf("max_suffix must be at least 1, got %d", c.MaxSuffix)
	}
	if c.Branch == "" {
		return fmt.Errorf("branch must not be empty")
	}
	return nil
}

// MountRel returns the mount directory relative to the repository root.
func (c *Config) MountRel() string {
	rel, err := filepath.Rel(c.RepoRoot, c.MountDir)
	if err != nil {
		return c.MountDir
	}
	return rel
}
