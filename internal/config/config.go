package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/atharv3903/towdispatch/internal/dispatch"
)

// EnvPrefix prefixes environment overrides, e.g. TOW_DISPATCH__MAX_DISTANCE.
const EnvPrefix = "TOW_"

type Config struct {
	Server   ServerConfig    `json:"server"`
	MySQL    MySQLConfig     `json:"mysql"`
	Dispatch dispatch.Config `json:"dispatch"`
	Log      LogConfig       `json:"log"`
	Metrics  MetricsConfig   `json:"metrics"`
}

type ServerConfig struct {
	Addr                string `json:"addr"`
	ReadTimeoutSeconds  int    `json:"read_timeout_seconds"`
	WriteTimeoutSeconds int    `json:"write_timeout_seconds"`
}

func (c *ServerConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.ReadTimeoutSeconds == 0 {
		c.ReadTimeoutSeconds = 10
	}
	if c.WriteTimeoutSeconds == 0 {
		c.WriteTimeoutSeconds = 30
	}
}

func (c ServerConfig) ReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutSeconds) * time.Second
}

func (c ServerConfig) WriteTimeout() time.Duration {
	return time.Duration(c.WriteTimeoutSeconds) * time.Second
}

type MySQLConfig struct {
	DSN                    string `json:"dsn"`
	MaxOpenConns           int    `json:"max_open_conns"`
	MaxIdleConns           int    `json:"max_idle_conns"`
	ConnMaxLifetimeSeconds int    `json:"conn_max_lifetime_seconds"`
}

func (c *MySQLConfig) SetDefaults() {
	if c.DSN == "" {
		c.DSN = os.Getenv("DB_DSN")
	}
	if c.MaxOpenConns == 0 {
		c.MaxOpenConns = 32
	}
	if c.MaxIdleConns == 0 {
		c.MaxIdleConns = 8
	}
	if c.ConnMaxLifetimeSeconds == 0 {
		c.ConnMaxLifetimeSeconds = 300
	}
}

// Validate parses the DSN and rewrites it with parseTime enabled.
func (c *MySQLConfig) Validate() error {
	if c.DSN == "" {
		return fmt.Errorf("mysql: dsn is required")
	}
	dsn, err := NormalizeDSN(c.DSN)
	if err != nil {
		return err
	}
	c.DSN = dsn
	return nil
}

func (c MySQLConfig) ConnMaxLifetime() time.Duration {
	return time.Duration(c.ConnMaxLifetimeSeconds) * time.Second
}

// NormalizeDSN validates a go-sql-driver DSN and forces parseTime.
func NormalizeDSN(dsn string) (string, error) {
	mc, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("mysql: invalid dsn: %w", err)
	}
	mc.ParseTime = true
	return mc.FormatDSN(), nil
}

// LogConfig selects the zerolog level and output format.
type LogConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

func (c *LogConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "json"
	}
}

func (c LogConfig) Validate() error {
	switch c.Level {
	case "trace", "debug", "info", "warn", "error", "fatal", "panic", "disabled":
	default:
		return fmt.Errorf("log: unknown level %s", c.Level)
	}
	if c.Format != "json" && c.Format != "console" {
		return fmt.Errorf("log: unknown format %s", c.Format)
	}
	return nil
}

type MetricsConfig struct {
	Enabled *bool  `json:"enabled"`
	Path    string `json:"path"`
}

func (c *MetricsConfig) SetDefaults() {
	if c.Enabled == nil {
		on := true
		c.Enabled = &on
	}
	if c.Path == "" {
		c.Path = "/metrics"
	}
}

func (c MetricsConfig) On() bool { return c.Enabled != nil && *c.Enabled }

// Load reads the file at path (yaml or json; empty path skips it), applies
// TOW_ environment overrides, then defaults and validation.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if path != "" {
		ext := strings.ToLower(filepath.Ext(path))
		var parser koanf.Parser
		switch ext {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		case ".json":
			parser = json.Parser()
		default:
			return nil, fmt.Errorf("unsupported config format: %s", ext)
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, err
		}
	}
	// The callback already yields dotted keys, so the delimiter must match
	// the one koanf.New was given.
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), strings.ToLower(EnvPrefix))
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	return &cfg, nil
}

func (c *Config) SetDefaults() {
	c.Server.SetDefaults()
	c.MySQL.SetDefaults()
	c.Dispatch.SetDefaults()
	c.Log.SetDefaults()
	c.Metrics.SetDefaults()
}

func (c *Config) Validate() error {
	if err := c.MySQL.Validate(); err != nil {
		return err
	}
	if err := c.Dispatch.Validate(); err != nil {
		return err
	}
	return c.Log.Validate()
}
