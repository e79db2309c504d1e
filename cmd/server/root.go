package main

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/atharv3903/towdispatch/internal/config"
	"github.com/atharv3903/towdispatch/internal/db"
	"github.com/atharv3903/towdispatch/internal/dispatch"
	"github.com/atharv3903/towdispatch/internal/logger"
	"github.com/atharv3903/towdispatch/internal/metrics"
)

var (
	cfgPath string
	addr    string
	dsn     string
)

var rootCmd = &cobra.Command{
	Use:          "towdispatch",
	Short:        "Nearest tow truck dispatch service",
	SilenceUsage: true,
	RunE:         runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "configuration file (yaml or json)")
	rootCmd.PersistentFlags().StringVar(&dsn, "dsn", "", "MySQL DSN, overrides mysql.dsn")
	rootCmd.PersistentFlags().StringVar(&addr, "addr", "", "listen address, overrides server.addr")
}

// app holds the wired dependencies shared by every subcommand.
type app struct {
	cfg      *config.Config
	conn     *sql.DB
	store    db.Store
	selector *dispatch.Selector
	registry *prometheus.Registry
	log      logger.Logger
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if dsn != "" {
		cfg.MySQL.DSN = dsn
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func newApp(ctx context.Context, component string) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	log := logger.New(component, logger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})

	conn, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		return nil, err
	}
	conn.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	conn.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	conn.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime())
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("mysql ping: %w", err)
	}

	a := &app{cfg: cfg, conn: conn, store: db.Store{DB: conn}, log: log}

	var rec metrics.Recorder = metrics.NopRecorder{}
	if cfg.Metrics.On() {
		a.registry = prometheus.NewRegistry()
		prom, err := metrics.NewPromRecorder(a.registry)
		if err != nil {
			conn.Close()
			return nil, err
		}
		rec = prom
	}

	a.selector, err = dispatch.NewSelector(cfg.Dispatch, a.store, a.store, a.store, log, rec)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) Close() error { return a.conn.Close() }
