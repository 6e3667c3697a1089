// Package config loads the field server's TOML user configuration file,
// mirroring the teacher's UserConfig/Config split: a plain,
// toml-tagged struct here, resolved into the runtime server.Config by
// the caller so this package never needs to import server itself.
package config

import (
	"os"

	"github.com/pelletier/go-toml"
)

// UserConfig is the on-disk TOML shape.
type UserConfig struct {
	Network struct {
		Address       string `toml:"address"`
		MaxBatchDrain int    `toml:"max_batch_drain"`
	} `toml:"network"`

	Sector struct {
		Size              float64 `toml:"size"`
		ViewRadiusSectors int     `toml:"view_radius_sectors"`
	} `toml:"sector"`

	Storage struct {
		FlushIntervalMs int `toml:"flush_interval_ms"`
		MaxBatchUIDs    int `toml:"max_batch_uids"`
		MaxQueue        int `toml:"max_queue"`
	} `toml:"storage"`

	Redis struct {
		Address   string `toml:"address"`
		Password  string `toml:"password"`
		DB        int    `toml:"db"`
		TimeoutMs int    `toml:"timeout_ms"`
	} `toml:"redis"`

	MySQL struct {
		DSN string `toml:"dsn"`
	} `toml:"mysql"`

	Log struct {
		Level string `toml:"level"`
	} `toml:"log"`
}

// Default returns a UserConfig populated with the same defaults a fresh
// deployment should start from.
func Default() UserConfig {
	var c UserConfig
	c.Network.Address = ":9000"
	c.Network.MaxBatchDrain = 64
	c.Sector.Size = 15
	c.Sector.ViewRadiusSectors = 2
	c.Storage.FlushIntervalMs = 2000
	c.Storage.MaxBatchUIDs = 200
	c.Storage.MaxQueue = 360
	c.Redis.Address = "127.0.0.1:6379"
	c.Redis.TimeoutMs = 2000
	c.MySQL.DSN = "fieldserver:fieldserver@tcp(127.0.0.1:3306)/fieldserver"
	c.Log.Level = "info"
	return c
}

// Load reads a TOML file at path into a UserConfig seeded with defaults
// for any key the file doesn't set.
func Load(path string) (UserConfig, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return UserConfig{}, err
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return UserConfig{}, err
	}
	return cfg, nil
}

// Save writes cfg to path as TOML, creating the file if it doesn't
// exist yet. Used to lay down a starter config on first run.
func Save(path string, cfg UserConfig) error {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
