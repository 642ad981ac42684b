package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config is the intake client configuration, read from TOML.
type Config struct {
	ServerURL        string `toml:"server_url"`
	OutputDir        string `toml:"output_dir"`
	MaxRecordSeconds int    `toml:"max_record_seconds"`
	Timeout          string `toml:"timeout"`
}

// DefaultConfig returns the settings used when no file exists.
func DefaultConfig() *Config {
	return &Config{
		ServerURL:        "http://localhost:8080",
		OutputDir:        "review",
		MaxRecordSeconds: 90,
		Timeout:          "10m",
	}
}

// DefaultConfigPath returns ~/.config/intake/config.toml (or the platform
// equivalent).
func DefaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "intake", "config.toml")
}

// LoadConfig reads path over the defaults. A missing file is not an error
// unless the path was given explicitly.
func LoadConfig(path string, explicit bool) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) && !explicit {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.ServerURL == "" {
		return errors.New("server_url must be set")
	}
	if c.MaxRecordSeconds <= 0 {
		return fmt.Errorf("max_record_seconds must be positive, got %d", c.MaxRecordSeconds)
	}
	if _, err := c.TimeoutDuration(); err != nil {
		return err
	}
	return nil
}

// TimeoutDuration parses Timeout; empty means no timeout.
func (c *Config) TimeoutDuration() (time.Duration, error) {
	if c.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q: %w", c.Timeout, err)
	}
	return d, nil
}

// MaxRecordDuration returns the recording ceiling.
func (c *Config) MaxRecordDuration() time.Duration {
	return time.Duration(c.MaxRecordSeconds) * time.Second
}

// Save writes the configuration as TOML, creating parent directories.
func (c *Config) Save(path string) error {
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
