package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atharv3903/towdispatch/internal/dispatch"
	"github.com/atharv3903/towdispatch/internal/model"
)

func writeFile(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeFile(t, "config.yaml", `server:
  addr: ":9090"
mysql:
  dsn: "tow:secret@tcp(db:3306)/tow"
  max_open_conns: 4
dispatch:
  max_distance: 5000
  graph_mode: "shared"
  algorithm: "dijkstra"
  graph_cache_capacity: 8
log:
  level: "debug"
  format: "console"
metrics:
  enabled: false
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	checks := []struct {
		name string
		got  any
		want any
	}{
		{"addr", cfg.Server.Addr, ":9090"},
		{"read_timeout", cfg.Server.ReadTimeoutSeconds, 10},
		{"max_open_conns", cfg.MySQL.MaxOpenConns, 4},
		{"max_idle_conns", cfg.MySQL.MaxIdleConns, 8},
		{"max_distance", cfg.Dispatch.Threshold(), model.Distance(5000)},
		{"graph_mode", cfg.Dispatch.GraphMode, dispatch.GraphShared},
		{"algorithm", cfg.Dispatch.Algorithm, "dijkstra"},
		{"graph_cache_capacity", cfg.Dispatch.GraphCacheCapacity, 8},
		{"log.level", cfg.Log.Level, "debug"},
		{"log.format", cfg.Log.Format, "console"},
		{"metrics", cfg.Metrics.On(), false},
		{"metrics.path", cfg.Metrics.Path, "/metrics"},
	}
	for _, c := range checks {
		assert.Equal(t, c.want, c.got, c.name)
	}
	assert.True(t, strings.HasPrefix(cfg.MySQL.DSN, "tow:secret@tcp(db:3306)/tow?"), cfg.MySQL.DSN)
	assert.Contains(t, cfg.MySQL.DSN, "parseTime=true")
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DB_DSN", "root@tcp(localhost:3306)/tow")
	path := writeFile(t, "config.json", `{"server": {"addr": ":7000"}}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ":7000", cfg.Server.Addr)
	assert.Equal(t, dispatch.DefaultMaxDistance, cfg.Dispatch.Threshold())
	assert.Equal(t, 256, cfg.Dispatch.SourceCacheCapacity)
	assert.Equal(t, dispatch.GraphPerRequest, cfg.Dispatch.GraphMode)
	assert.Equal(t, "queue", cfg.Dispatch.Algorithm)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.True(t, cfg.Metrics.On())
	assert.Contains(t, cfg.MySQL.DSN, "parseTime=true")
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("TOW_DISPATCH__MAX_DISTANCE", "1234")
	t.Setenv("TOW_DISPATCH__GRAPH_MODE", "shared")
	t.Setenv("TOW_MYSQL__DSN", "u:p@tcp(h:3306)/d")

	cfg, err := Load("")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, model.Distance(1234), cfg.Dispatch.Threshold())
	assert.Equal(t, dispatch.GraphShared, cfg.Dispatch.GraphMode)
	assert.Contains(t, cfg.MySQL.DSN, "tcp(h:3306)/d")
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeFile(t, "config.yaml", `mysql:
  dsn: "tow:secret@tcp(db:3306)/tow"
dispatch:
  max_distance: 5000
  algorithm: "dijkstra"
server:
  addr: ":9090"
`)
	t.Setenv("TOW_DISPATCH__MAX_DISTANCE", "42")
	t.Setenv("TOW_SERVER__ADDR", ":9191")
	t.Setenv("TOW_LOG__LEVEL", "warn")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, model.Distance(42), cfg.Dispatch.Threshold())
	assert.Equal(t, "dijkstra", cfg.Dispatch.Algorithm)
	assert.Equal(t, ":9191", cfg.Server.Addr)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadZeroThreshold(t *testing.T) {
	t.Setenv("DB_DSN", "root@tcp(localhost:3306)/tow")
	path := writeFile(t, "config.yaml", `dispatch:
  max_distance: 0
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	require.NotNil(t, cfg.Dispatch.MaxDistance)
	assert.Equal(t, model.Distance(0), cfg.Dispatch.Threshold())
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(writeFile(t, "config.toml", "x = 1"))
	assert.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Setenv("DB_DSN", "")
	base := func() *Config {
		c := &Config{MySQL: MySQLConfig{DSN: "u@tcp(h:3306)/d"}}
		c.SetDefaults()
		return c
	}

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing dsn", func(c *Config) { c.MySQL.DSN = "" }},
		{"bad dsn", func(c *Config) { c.MySQL.DSN = "no-slash" }},
		{"graph mode", func(c *Config) { c.Dispatch.GraphMode = "global" }},
		{"algorithm", func(c *Config) { c.Dispatch.Algorithm = "bfs" }},
		{"negative distance", func(c *Config) { d := int64(-1); c.Dispatch.MaxDistance = &d }},
		{"source cache", func(c *Config) { c.Dispatch.SourceCacheCapacity = -1 }},
		{"log level", func(c *Config) { c.Log.Level = "loud" }},
		{"log format", func(c *Config) { c.Log.Format = "xml" }},
	}
	require.NoError(t, base().Validate())
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := base()
			tc.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}
