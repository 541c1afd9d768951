package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gdtan02/swift-trader/internal/backtest"
	"github.com/gdtan02/swift-trader/internal/config"
	"github.com/gdtan02/swift-trader/internal/marketdata"
	"github.com/gdtan02/swift-trader/internal/store"
	"github.com/gdtan02/swift-trader/internal/util"
)

var errUsage = errors.New("invalid usage")

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: swift-data <command> [options]\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  sync             Download bars from Alpaca into the data directory\n")
	fmt.Fprintf(os.Stderr, "  import-bars      Import OHLCV bars from a CSV file\n")
	fmt.Fprintf(os.Stderr, "  import-feature   Import a feature column (e.g. signal, regime) from a CSV file\n")
	fmt.Fprintf(os.Stderr, "  symbols          List stored symbols\n")
	fmt.Fprintf(os.Stderr, "\n")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cfg, err := config.LoadOrDefault(config.Path())
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := util.NewLoggerTo(os.Stderr, cfg.Logging.Level, "text")
	util.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pstore := store.NewParquetStore(cfg.Storage.DataDir)
	if err := run(ctx, cfg, pstore, os.Args[1], os.Args[2:], os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			usage()
		}
		log.Fatalf("%s: %v", os.Args[1], err)
	}
}

func run(ctx context.Context, cfg *config.Config, pstore *store.ParquetStore, cmd string, args []string, out io.Writer) error {
	switch cmd {
	case "sync":
		return runSync(ctx, cfg, pstore, args)
	case "import-bars":
		return runImportBars(ctx, pstore, args, out)
	case "import-feature":
		return runImportFeature(ctx, pstore, args, out)
	case "symbols":
		return runSymbols(ctx, cfg, pstore, args, out)
	default:
		return fmt.Errorf("unknown command %q: %w", cmd, errUsage)
	}
}

func runSync(ctx context.Context, cfg *config.Config, pstore *store.ParquetStore, args []string) error {
	fs := flag.NewFlagSet("sync", flag.ContinueOnError)
	symbols := fs.String("symbols", strings.Join(cfg.Sync.Symbols, ","), "comma-separated symbols")
	timeframe := fs.String("timeframe", cfg.Sync.Timeframe, "bar timeframe")
	start := fs.String("start", cfg.Sync.StartDate, "first date to fetch")
	end := fs.String("end", "", "last date to fetch (default: now)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	syms := splitSymbols(*symbols)
	if len(syms) == 0 {
		return fmt.Errorf("no symbols given: %w", errUsage)
	}
	tf, err := marketdata.ParseTimeframe(*timeframe)
	if err != nil {
		return err
	}
	from, err := backtest.ParseDate(*start)
	if err != nil {
		return err
	}
	to := time.Now().UTC()
	if *end != "" {
		d, err := backtest.ParseDate(*end)
		if err != nil {
			return err
		}
		to = d.Time
	}

	fetcher, err := marketdata.NewAlpacaFetcher(marketdata.AlpacaConfig{
		APIKey:            cfg.Alpaca.APIKey,
		APISecret:         cfg.Alpaca.APISecret,
		DataURL:           cfg.Alpaca.DataURL,
		Feed:              cfg.Alpaca.Feed,
		RequestsPerMinute: cfg.Sync.RateLimitPerMin,
		MaxRetries:        cfg.Sync.MaxRetries,
	}, pstore, slog.Default())
	if err != nil {
		return err
	}

	slog.Info("starting sync", "symbols", syms, "timeframe", tf, "start", from.Time, "end", to)
	n, err := fetcher.Sync(ctx, syms, tf, from.Time, to)
	if err != nil {
		return err
	}
	slog.Info("sync complete", "bars", n)
	return nil
}

func runImportBars(ctx context.Context, pstore *store.ParquetStore, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("import-bars", flag.ContinueOnError)
	symbol := fs.String("symbol", "", "symbol the bars belong to")
	timeframe := fs.String("timeframe", "1Hour", "bar timeframe")
	file := fs.String("file", "", "CSV with timestamp,open,high,low,close,volume[,trade_count,vwap]")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *symbol == "" || *file == "" {
		return fmt.Errorf("-symbol and -file are required: %w", errUsage)
	}
	tf, err := marketdata.ParseTimeframe(*timeframe)
	if err != nil {
		return err
	}

	f, err := os.Open(*file)
	if err != nil {
		return err
	}
	defer f.Close()

	bars, err := readBars(f, strings.ToUpper(*symbol))
	if err != nil {
		return fmt.Errorf("%s: %w", *file, err)
	}
	if err := marketdata.NewTable(*symbol, tf, bars).Validate(); err != nil {
		return fmt.Errorf("%s: %w", *file, err)
	}
	if err := pstore.WriteBars(ctx, string(tf), bars); err != nil {
		return err
	}
	fmt.Fprintf(out, "imported %d bars for %s (%s)\n", len(bars), strings.ToUpper(*symbol), tf)
	return nil
}

func runImportFeature(ctx context.Context, pstore *store.ParquetStore, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("import-feature", flag.ContinueOnError)
	symbol := fs.String("symbol", "", "symbol the feature belongs to")
	name := fs.String("name", "", "feature name, e.g. signal or regime")
	file := fs.String("file", "", "CSV file")
	timeCol := fs.String("time-col", "timestamp", "timestamp column")
	valueCol := fs.String("value-col", "", "value column (default: the feature name)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *symbol == "" || *name == "" || *file == "" {
		return fmt.Errorf("-symbol, -name and -file are required: %w", errUsage)
	}
	col := *valueCol
	if col == "" {
		col = *name
	}

	f, err := os.Open(*file)
	if err != nil {
		return err
	}
	defer f.Close()

	pts, err := readPoints(f, strings.ToLower(*timeCol), strings.ToLower(col))
	if err != nil {
		return fmt.Errorf("%s: %w", *file, err)
	}
	sym := strings.ToUpper(*symbol)
	if err := pstore.WriteFeature(ctx, sym, *name, pts); err != nil {
		return err
	}
	fmt.Fprintf(out, "imported %d %s values for %s\n", len(pts), *name, sym)
	return nil
}

func runSymbols(ctx context.Context, cfg *config.Config, pstore *store.ParquetStore, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("symbols", flag.ContinueOnError)
	timeframe := fs.String("timeframe", cfg.Sync.Timeframe, "bar timeframe")
	if err := fs.Parse(args); err != nil {
		return err
	}
	syms, err := pstore.ListSymbols(ctx, *timeframe)
	if err != nil {
		return err
	}
	for _, s := range syms {
		fmt.Fprintln(out, s)
	}
	return nil
}

func splitSymbols(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, strings.ToUpper(p))
		}
	}
	return out
}
