package main

import (
	"context"
	"log"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/gdtan02/swift-trader/internal/api"
	"github.com/gdtan02/swift-trader/internal/backtest"
	"github.com/gdtan02/swift-trader/internal/config"
	"github.com/gdtan02/swift-trader/internal/marketdata"
	"github.com/gdtan02/swift-trader/internal/store"
	"github.com/gdtan02/swift-trader/internal/strategy/builtins"
	"github.com/gdtan02/swift-trader/internal/util"
)

func main() {
	cfg, err := config.LoadOrDefault(config.Path())
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	if cfg.Profiling.PyroscopeURL != "" {
		stop, err := util.StartProfiler(cfg.Profiling.PyroscopeURL, cfg.Profiling.ApplicationName, logger)
		if err != nil {
			log.Fatalf("failed to start profiler: %v", err)
		}
		defer func() { _ = stop() }()
	}

	pstore := store.NewParquetStore(cfg.Storage.DataDir)
	runs, err := store.OpenRunStore(cfg.Storage.RunStore, cfg.Storage.RunStorePath())
	if err != nil {
		log.Fatalf("failed to open run store: %v", err)
	}
	defer runs.Close()

	svc, err := backtest.NewService(backtest.Options{
		Registry:     builtins.NewDefaultRegistry(),
		Provider:     marketdata.NewStoreProvider(pstore, pstore, logger),
		Runs:         runs,
		Series:       pstore,
		Defaults:     cfg.Backtest.Defaults(),
		SweepWorkers: cfg.Sweep.MaxWorkers,
		Logger:       logger,
	})
	if err != nil {
		log.Fatalf("failed to create backtest service: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	srv := api.NewServer(cfg.Server, svc, logger)
	slog.Info("swift-server starting",
		"http", cfg.Server.HTTPAddr(),
		"grpc", cfg.Server.GRPCAddr(),
		"dataDir", cfg.Storage.DataDir,
		"runStore", cfg.Storage.RunStore,
		"strategies", svc.Strategies(),
	)
	if err := srv.ListenAndServe(ctx); err != nil {
		slog.Error("server error", "error", err)
		runs.Close()
		log.Fatal(err)
	}
	slog.Info("swift-server stopped")
}
