package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type config struct {
	Addr    string `yaml:"addr"`
	Version string `yaml:"version"`

	// SnapshotDB holds persisted indexes. Empty keeps them in memory only.
	SnapshotDB string `yaml:"snapshot_db"`
	CatalogDB  string `yaml:"catalog_db"`
	BundleDir  string `yaml:"bundle_dir"`

	// UpstreamURL is the remote directory service. When empty the local
	// catalog stands in for it.
	UpstreamURL string `yaml:"upstream_url"`

	PageSize       int     `yaml:"page_size"`
	MaxPages       int     `yaml:"max_pages"`
	PagesPerSecond float64 `yaml:"pages_per_second"`

	Search struct {
		DefaultLimit int `yaml:"default_limit"`
		MaxLimit     int `yaml:"max_limit"`
	} `yaml:"search"`

	TLS struct {
		Enabled bool     `yaml:"enabled"`
		Cert    string   `yaml:"cert"`
		Key     string   `yaml:"key"`
		Hosts   []string `yaml:"hosts"`
	} `yaml:"tls"`

	MCP           bool          `yaml:"mcp"`
	WarmOnStart   bool          `yaml:"warm_on_start"`
	CheckInterval time.Duration `yaml:"check_interval"`
}

func defaultConfig() config {
	cfg := config{
		Addr:          ":8420",
		Version:       "FC26",
		SnapshotDB:    "data/snapshots.db",
		CatalogDB:     "data/catalog.db",
		BundleDir:     "data/bundles",
		PageSize:      1000,
		MaxPages:      200,
		MCP:           true,
		WarmOnStart:   true,
		CheckInterval: 24 * time.Hour,
	}
	cfg.Search.DefaultLimit = 8
	cfg.Search.MaxLimit = 25
	return cfg
}

// loadConfig reads path over the defaults. A missing file is not an error.
func loadConfig(path string, logger *slog.Logger) (config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Info("no config file, using defaults", "path", path)
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.Version == "" {
		return cfg, fmt.Errorf("config %s: version must not be empty", path)
	}
	return cfg, nil
}
