// Command creamd runs the cream cache server.
//
// Usage:
//
//	creamd [-h] NUM_WORKERS PORT_NUMBER MAX_ENTRIES
//
// The three positional arguments mirror the original deployment's contract;
// optional flags add observability without changing it.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/IvanBrykalov/cream/metrics/prom"
	"github.com/IvanBrykalov/cream/server"
	"github.com/IvanBrykalov/cream/store"
)

func main() {
	var (
		help        = flag.BoolP("help", "h", false, "display this help menu and exit")
		logLevel    = flag.String("log-level", "info", "log level: debug | info | warn | error")
		metricsAddr = flag.String("metrics", "", "serve Prometheus metrics at this address (empty = disabled)")
		maxConns    = flag.Int("max-conns", server.DefaultMaxConns, "maximum concurrently accepted connections")
	)
	flag.Usage = usage
	flag.Parse()

	if *help {
		usage()
		os.Exit(0)
	}
	args := flag.Args()
	if len(args) != 3 {
		fmt.Fprintln(os.Stderr, "Invalid arguments")
		os.Exit(1)
	}
	numWorkers, err := strconv.Atoi(args[0])
	if err != nil || numWorkers <= 0 {
		fmt.Fprintln(os.Stderr, "Invalid arguments")
		os.Exit(1)
	}
	port := args[1]
	maxEntries, err := strconv.Atoi(args[2])
	if err != nil || maxEntries <= 0 {
		fmt.Fprintln(os.Stderr, "Invalid arguments")
		os.Exit(1)
	}

	logger := newLogger(*logLevel)
	defer logger.Sync() //nolint:errcheck // stderr sync failure is uninteresting

	var metrics store.Metrics
	if *metricsAddr != "" {
		metrics = prom.New(nil, "cream", "store", nil)
		http.Handle("/metrics", promhttp.Handler())
		go func() {
			logger.Info("metrics listening", zap.String("addr", *metricsAddr))
			if err := http.ListenAndServe(*metricsAddr, nil); err != nil {
				logger.Error("metrics server exited", zap.Error(err))
			}
		}()
	}

	srv, err := server.New(server.Config{
		Addr:       net.JoinHostPort("", port),
		Workers:    numWorkers,
		MaxEntries: maxEntries,
		MaxConns:   *maxConns,
		Logger:     logger,
		Metrics:    metrics,
	})
	if err != nil {
		logger.Fatal("configuration rejected", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func usage() {
	fmt.Printf("Usage:\n%s [-h] NUM_WORKERS PORT_NUMBER MAX_ENTRIES\n"+
		"-h                 Displays this help menu and returns EXIT_SUCCESS.\n"+
		"NUM_WORKERS        The number of worker threads used to service requests.\n"+
		"PORT_NUMBER        Port number to listen on for incoming connections.\n"+
		"MAX_ENTRIES        The maximum number of entries that can be stored in `cream`'s underlying data store.\n",
		os.Args[0])
	fmt.Println("\nFlags:")
	flag.PrintDefaults()
}

func newLogger(level string) *zap.Logger {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	logger, err := cfg.Build()
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	return logger
}
