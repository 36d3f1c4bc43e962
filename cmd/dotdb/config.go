package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/synerthink/dotdb/internal/engine"
)

// fileConfig is the optional on-disk shape loaded via --config, grounded
// on the teacher/pack's yaml.v3 usage for engine configuration.
type fileConfig struct {
	DataDir       string `yaml:"data_dir"`
	PageSize      int    `yaml:"page_size"`
	CacheSize     int    `yaml:"cache_size"`
	IndexDir      string `yaml:"index_dir"`
	WALArchiveDir string `yaml:"wal_archive_dir"`
}

// loadEngineConfig builds an engine.Config from the root command's
// persistent flags, optionally overridden by a --config YAML file.
func loadEngineConfig(cmd *cobra.Command) (engine.Config, error) {
	dataDir, _ := cmd.Flags().GetString("data-dir")
	cfg := engine.DefaultConfig(dataDir)

	configPath, _ := cmd.Flags().GetString("config")
	if configPath == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return cfg, fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return cfg, fmt.Errorf("parse config file: %w", err)
	}
	if fc.DataDir != "" {
		cfg = engine.DefaultConfig(fc.DataDir)
	}
	if fc.PageSize > 0 {
		cfg.PageSize = fc.PageSize
	}
	if fc.CacheSize > 0 {
		cfg.CacheSize = fc.CacheSize
	}
	if fc.IndexDir != "" {
		cfg.IndexDir = fc.IndexDir
	}
	if fc.WALArchiveDir != "" {
		cfg.WALArchiveDir = fc.WALArchiveDir
	}
	return cfg, nil
}
