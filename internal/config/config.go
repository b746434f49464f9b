package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	DB struct {
		Driver string
		DSN    string
	}
	DataDir string
	Sync    struct {
		Dir        string
		QuotaBytes int
	}
	Metrics struct {
		Addr string
	}
}

// Load reads config from environment (NF_ prefix) and optional notefold.yaml.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("NF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetConfigName("notefold")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // optional config file

	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}

	v.SetDefault("data.dir", filepath.Join(home, ".notefold"))
	v.SetDefault("db.driver", "sqlite3")
	// Matches the sync quota of the platform storage this mirrors.
	v.SetDefault("sync.quota_bytes", 102400)
	v.SetDefault("metrics.addr", ":9188")

	cfg := &Config{}
	cfg.DataDir = v.GetString("data.dir")
	cfg.DB.Driver = v.GetString("db.driver")
	cfg.DB.DSN = v.GetString("db.dsn")
	cfg.Sync.Dir = v.GetString("sync.dir")
	cfg.Sync.QuotaBytes = v.GetInt("sync.quota_bytes")
	cfg.Metrics.Addr = v.GetString("metrics.addr")

	if cfg.DB.DSN == "" {
		cfg.DB.DSN = filepath.Join(cfg.DataDir, "notefold.db")
	}
	if cfg.Sync.Dir == "" {
		cfg.Sync.Dir = filepath.Join(cfg.DataDir, "sync")
	}

	if cfg.DB.Driver == "" {
		return nil, fmt.Errorf("NF_DB_DRIVER is required (sqlite3, mysql, postgres)")
	}
	if cfg.Sync.QuotaBytes < 0 {
		return nil, fmt.Errorf("NF_SYNC_QUOTA_BYTES must not be negative")
	}

	return cfg, nil
}
