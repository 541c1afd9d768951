package main

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/gdtan02/swift-trader/internal/api"
	"github.com/gdtan02/swift-trader/internal/backtest"
	"github.com/gdtan02/swift-trader/internal/config"
	"github.com/gdtan02/swift-trader/internal/marketdata"
	"github.com/gdtan02/swift-trader/internal/store"
	"github.com/gdtan02/swift-trader/internal/strategy/builtins"
	"github.com/gdtan02/swift-trader/internal/util"
	"github.com/gdtan02/swift-trader/pkg/swifttrader"
)

// backend runs commands either in-process or against a swift-server.
type backend interface {
	Run(ctx context.Context, req backtest.Request) (*backtest.Response, error)
	Sweep(ctx context.Context, req backtest.SweepRequest) (*backtest.SweepResponse, error)
	ListRuns(ctx context.Context, limit int) ([]store.RunSummary, error)
	GetRun(ctx context.Context, id string) (*store.RunRecord, error)
	Strategies(ctx context.Context) ([]string, error)
	Close() error
}

// target selects the backend.
type target struct {
	server string // HTTP base URL
	grpc   string // gRPC address
}

func openBackend(t target) (backend, error) {
	switch {
	case t.grpc != "":
		conn, err := grpc.NewClient(t.grpc, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			return nil, fmt.Errorf("connecting to %s: %w", t.grpc, err)
		}
		return &grpcBackend{conn: conn, client: api.NewBacktesterClient(conn)}, nil
	case t.server != "":
		return &httpBackend{client: swifttrader.NewClient(t.server)}, nil
	default:
		return openLocal()
	}
}

// localBackend runs the backtest service in-process against the configured
// stores.
type localBackend struct {
	svc  *backtest.Service
	runs store.RunStoreCloser
}

func openLocal() (*localBackend, error) {
	cfg, err := config.LoadOrDefault(config.Path())
	if err != nil {
		return nil, err
	}
	logger := util.NewLoggerTo(stderr, cfg.Logging.Level, "text")

	pstore := store.NewParquetStore(cfg.Storage.DataDir)
	runs, err := store.OpenRunStore(cfg.Storage.RunStore, cfg.Storage.RunStorePath())
	if err != nil {
		return nil, fmt.Errorf("opening run store: %w", err)
	}
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
		runs.Close()
		return nil, err
	}
	return &localBackend{svc: svc, runs: runs}, nil
}

func (b *localBackend) Run(ctx context.Context, req backtest.Request) (*backtest.Response, error) {
	return b.svc.Run(ctx, req)
}

func (b *localBackend) Sweep(ctx context.Context, req backtest.SweepRequest) (*backtest.SweepResponse, error) {
	return b.svc.Sweep(ctx, req.Request, req.Grid)
}

func (b *localBackend) ListRuns(ctx context.Context, limit int) ([]store.RunSummary, error) {
	return b.svc.ListRuns(ctx, limit)
}

func (b *localBackend) GetRun(ctx context.Context, id string) (*store.RunRecord, error) {
	return b.svc.GetRun(ctx, id)
}

func (b *localBackend) Strategies(context.Context) ([]string, error) {
	return b.svc.Strategies(), nil
}

func (b *localBackend) Close() error { return b.runs.Close() }

// httpBackend calls the HTTP API.
type httpBackend struct {
	client *swifttrader.Client
}

func (b *httpBackend) Run(ctx context.Context, req backtest.Request) (*backtest.Response, error) {
	return b.client.RunBacktest(ctx, req)
}

func (b *httpBackend) Sweep(ctx context.Context, req backtest.SweepRequest) (*backtest.SweepResponse, error) {
	return b.client.Sweep(ctx, req)
}

func (b *httpBackend) ListRuns(ctx context.Context, limit int) ([]store.RunSummary, error) {
	return b.client.ListRuns(ctx, limit)
}

func (b *httpBackend) GetRun(ctx context.Context, id string) (*store.RunRecord, error) {
	return b.client.GetRun(ctx, id)
}

func (b *httpBackend) Strategies(ctx context.Context) ([]string, error) {
	return b.client.Strategies(ctx)
}

func (b *httpBackend) Close() error { return nil }

// errGRPCUnsupported is returned for commands the gRPC service does not
// serve.
var errGRPCUnsupported = errors.New("only backtest and sweep are served over gRPC; use -server")

// grpcBackend calls the gRPC backtester service.
type grpcBackend struct {
	conn   *grpc.ClientConn
	client *api.BacktesterClient
}

func (b *grpcBackend) Run(ctx context.Context, req backtest.Request) (*backtest.Response, error) {
	return b.client.Run(ctx, &req)
}

func (b *grpcBackend) Sweep(ctx context.Context, req backtest.SweepRequest) (*backtest.SweepResponse, error) {
	return b.client.Sweep(ctx, &req)
}

func (b *grpcBackend) ListRuns(context.Context, int) ([]store.RunSummary, error) {
	return nil, errGRPCUnsupported
}

func (b *grpcBackend) GetRun(context.Context, string) (*store.RunRecord, error) {
	return nil, errGRPCUnsupported
}

func (b *grpcBackend) Strategies(context.Context) ([]string, error) {
	return nil, errGRPCUnsupported
}

func (b *grpcBackend) Close() error { return b.conn.Close() }
