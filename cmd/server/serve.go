package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/atharv3903/towdispatch/internal/api"
)

var migrate bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&migrate, "migrate", false, "apply the embedded schema before serving")
	rootCmd.Flags().AddFlagSet(serveCmd.Flags())
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, "server")
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			a.log.Errorf("db close: %v", err)
		}
	}()

	if migrate {
		if err := a.store.Migrate(ctx); err != nil {
			return err
		}
		a.log.Infof("schema applied")
	}

	opts := api.Options{Logger: a.log, MetricsPath: a.cfg.Metrics.Path}
	if a.registry != nil {
		a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		opts.Registerer = a.registry
		opts.Gatherer = prometheus.Gatherers{a.registry}
	}
	srv, err := api.New(a.selector, a.store, opts)
	if err != nil {
		return err
	}

	httpSrv := &http.Server{
		Addr:         a.cfg.Server.Addr,
		Handler:      srv,
		ReadTimeout:  a.cfg.Server.ReadTimeout(),
		WriteTimeout: a.cfg.Server.WriteTimeout(),
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Infof("towdispatch listening on %s (graph_mode=%s, algorithm=%s)",
			a.cfg.Server.Addr, a.cfg.Dispatch.GraphMode, a.cfg.Dispatch.Algorithm)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	a.log.Infof("shutting down")
	return httpSrv.Shutdown(shutdownCtx)
}
