package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aliceout/nodea/internal/timex"
	"gopkg.in/yaml.v3"
)

// FileConfig is the on-disk shape of the client config. Zero values leave
// the current setting alone.
type FileConfig struct {
	ServerURL      string         `json:"server_url" yaml:"server_url"`
	RequestTimeout timex.Duration `json:"request_timeout" yaml:"request_timeout"`
	DataDir        string         `json:"data_dir" yaml:"data_dir"`
	CacheDSN       string         `json:"cache_dsn" yaml:"cache_dsn"`
	ExportPageSize int            `json:"export_page_size" yaml:"export_page_size"`
	Username       string         `json:"username" yaml:"username"`
	LogLevel       string         `json:"log_level" yaml:"log_level"`
}

func parseFile(config *Config, path string) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	c := &FileConfig{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, c)
	default:
		err = json.Unmarshal(data, c)
	}
	if err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if c.ServerURL != "" {
		config.ServerURL = c.ServerURL
	}
	if c.RequestTimeout.Duration > 0 {
		config.RequestTimeout = c.RequestTimeout.Duration
	}
	if c.DataDir != "" {
		config.DataDir = c.DataDir
	}
	if c.CacheDSN != "" {
		config.CacheDSN = c.CacheDSN
	}
	if c.ExportPageSize > 0 {
		config.ExportPageSize = c.ExportPageSize
	}
	if c.Username != "" {
		config.Username = c.Username
	}
	if c.LogLevel != "" {
		config.LogLevel = c.LogLevel
	}
	return nil
}
