package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/spf13/cobra"

	"github.com/atharv3903/towdispatch/internal/config"
	"github.com/atharv3903/towdispatch/internal/db"
	"github.com/atharv3903/towdispatch/internal/logger"
	"github.com/atharv3903/towdispatch/internal/model"
)

var opts struct {
	dsn         string
	server      string
	workers     []int
	duration    time.Duration
	orders      int
	churn       float64
	csvPath     string
	clearFirst  bool
	httpTimeout time.Duration
}

var rootCmd = &cobra.Command{
	Use:          "loadgen",
	Short:        "Closed-loop load generator for the nearest tow truck API",
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	f := rootCmd.Flags()
	f.StringVar(&opts.dsn, "dsn", os.Getenv("DB_DSN"), "MySQL DSN used to sample order and truck ids")
	f.StringVar(&opts.server, "server", "http://127.0.0.1:8080", "base URL of the server")
	f.IntSliceVar(&opts.workers, "workers", []int{1, 2, 4, 8, 16, 32}, "worker counts, one run each")
	f.DurationVar(&opts.duration, "duration", 10*time.Second, "length of each run")
	f.IntVar(&opts.orders, "orders", 10000, "maximum number of order ids to sample")
	f.Float64Var(&opts.churn, "churn", 0, "fraction of requests that flip a truck status instead of dispatching")
	f.StringVar(&opts.csvPath, "csv", "", "write results as CSV to this file")
	f.BoolVar(&opts.clearFirst, "clear", true, "clear the server graph cache before each run")
	f.DurationVar(&opts.httpTimeout, "timeout", 5*time.Second, "per request timeout")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logger.New("loadgen", logger.Options{Format: "console"})

	dsn, err := config.NormalizeDSN(opts.dsn)
	if err != nil {
		return err
	}
	conn, err := sql.Open("mysql", dsn)
	if err != nil {
		return err
	}
	defer conn.Close()
	store := db.Store{DB: conn}

	orders, err := store.OrderIDs(ctx, opts.orders)
	if err != nil {
		return err
	}
	if len(orders) == 0 {
		return fmt.Errorf("no orders to dispatch")
	}
	trucks, err := store.ListTowTrucks(ctx, model.TruckFilter{PageSize: -1})
	if err != nil {
		return err
	}
	log.Infof("loaded %d orders and %d tow trucks", len(orders), len(trucks))

	truckIDs := make([]int64, 0, len(trucks))
	for _, t := range trucks {
		truckIDs = append(truckIDs, t.ID)
	}

	client := &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        500,
			MaxIdleConnsPerHost: 500,
			IdleConnTimeout:     90 * time.Second,
			DisableCompression:  true,
		},
		Timeout: opts.httpTimeout,
	}
	lg := &loadgen{
		client: client,
		server: opts.server,
		orders: orders,
		trucks: truckIDs,
		churn:  opts.churn,
	}

	var results []Result
	for _, n := range opts.workers {
		if ctx.Err() != nil {
			break
		}
		if opts.clearFirst {
			if err := lg.clearCache(ctx); err != nil {
				return fmt.Errorf("clear cache: %w", err)
			}
		}
		log.Infof("running %d workers for %s", n, opts.duration)
		res := lg.run(ctx, n, opts.duration)
		if stats, err := lg.graphStats(ctx); err == nil {
			res.Graph = stats
		} else {
			log.Warnf("graph cache stats: %v", err)
		}
		results = append(results, res)
		log.Infof("%d workers: %.1f rps, p99 %.2fms, errors %d/%d",
			n, res.Throughput, res.P99, res.Errors, res.Total)
	}

	printSummary(os.Stdout, results)
	if opts.csvPath != "" {
		f, err := os.Create(opts.csvPath)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := writeCSV(f, results); err != nil {
			return err
		}
		log.Infof("saved %s", opts.csvPath)
	}
	return nil
}
