package config

import (
	"path/filepath"
	"time"

	"github.com/aliceout/nodea/internal/filex"
)

// Config holds runtime settings for the Nodea CLI.
type Config struct {
	ServerURL      string        `env:"SERVER_URL"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT"`
	// DataDir holds the local guard cache. Empty means the user config dir.
	DataDir        string `env:"DATA_DIR"`
	CacheDSN       string `env:"CACHE_DSN"`
	ExportPageSize int    `env:"EXPORT_PAGE_SIZE"`
	Username       string `env:"USERNAME"`
	LogLevel       string `env:"LOG_LEVEL"`
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:8090"
	c.RequestTimeout = 10 * time.Second
	c.DataDir = ""
	c.CacheDSN = ""
	c.ExportPageSize = 100
	c.LogLevel = "warn"
}

// LoadConfig builds a Config from defaults, the file at path (if any) and
// the environment. Flags are applied later by the command layer.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseFile(cfg, path); err != nil {
		return nil, err
	}
	if err := parseEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ResolveCacheDSN returns CacheDSN, defaulting to guards.db inside the data
// directory (created on demand).
func (c *Config) ResolveCacheDSN() (string, error) {
	if c.CacheDSN != "" {
		return c.CacheDSN, nil
	}
	dir, err := filex.EnsureDataDir(c.DataDir, "nodea")
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "guards.db"), nil
}
