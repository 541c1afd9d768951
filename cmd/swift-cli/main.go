package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"gopkg.in/yaml.v3"

	"github.com/gdtan02/swift-trader/internal/backtest"
	"github.com/gdtan02/swift-trader/internal/report"
)

const version = "0.1.0"

var stderr io.Writer = os.Stderr

func usage() {
	fmt.Fprintf(stderr, "Usage: swift-cli <command> [options]\n\n")
	fmt.Fprintf(stderr, "Commands:\n")
	fmt.Fprintf(stderr, "  backtest     Run a backtest (and optional forward test)\n")
	fmt.Fprintf(stderr, "  sweep        Run a parameter sweep\n")
	fmt.Fprintf(stderr, "  runs         List stored runs\n")
	fmt.Fprintf(stderr, "  run <id>     Show a stored run\n")
	fmt.Fprintf(stderr, "  strategies   List registered strategies\n")
	fmt.Fprintf(stderr, "  version      Print the CLI version\n")
	fmt.Fprintf(stderr, "\nRun 'swift-cli <command> -h' for command options.\n")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1], os.Args[2:], os.Stdout); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// errUsage is returned after usage has been printed.
var errUsage = errors.New("invalid usage")

func run(ctx context.Context, cmd string, args []string, out io.Writer) error {
	switch cmd {
	case "version":
		fmt.Fprintf(out, "swift-cli %s\n", version)
		return nil
	case "backtest":
		return runBacktest(ctx, args, out)
	case "sweep":
		return runSweep(ctx, args, out)
	case "runs":
		return runList(ctx, args, out)
	case "run":
		return runShow(ctx, args, out)
	case "strategies":
		return runStrategies(ctx, args, out)
	default:
		fmt.Fprintf(stderr, "unknown command: %s\n\n", cmd)
		usage()
		return errUsage
	}
}

// commonFlags are shared by every command that talks to a backend.
type commonFlags struct {
	target  target
	asJSON  bool
	orders  bool
	reqFile string
}

func newFlagSet(name string, c *commonFlags) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&c.target.server, "server", "", "swift-server HTTP base URL (default: run in-process)")
	fs.StringVar(&c.target.grpc, "grpc", "", "swift-server gRPC address")
	fs.BoolVar(&c.asJSON, "json", false, "print JSON instead of a text report")
	return fs
}

// requestOverrides are request fields settable on the command line.
type requestOverrides struct {
	strategy, symbol, timeframe, start, end string
	capital                                 float64
	forward                                 bool
}

func (o requestOverrides) apply(req *backtest.Request) error {
	if o.strategy != "" {
		req.StrategyName = o.strategy
	}
	if o.symbol != "" {
		req.Symbol = o.symbol
	}
	if o.timeframe != "" {
		req.Timeframe = o.timeframe
	}
	if o.start != "" {
		d, err := backtest.ParseDate(o.start)
		if err != nil {
			return err
		}
		req.StartDate = d
	}
	if o.end != "" {
		d, err := backtest.ParseDate(o.end)
		if err != nil {
			return err
		}
		req.EndDate = d
	}
	if o.capital > 0 {
		req.InitialCapital = o.capital
	}
	if o.forward {
		req.AllowForwardTest = true
	}
	return nil
}

func addRequestFlags(fs *flag.FlagSet, o *requestOverrides) {
	fs.StringVar(&o.strategy, "strategy", "", "strategy name")
	fs.StringVar(&o.symbol, "symbol", "", "symbol, e.g. AAPL or BTC/USD")
	fs.StringVar(&o.timeframe, "timeframe", "", "bar timeframe, e.g. 1Hour")
	fs.StringVar(&o.start, "start", "", "backtest start date")
	fs.StringVar(&o.end, "end", "", "backtest end date")
	fs.Float64Var(&o.capital, "capital", 0, "initial capital")
	fs.BoolVar(&o.forward, "forward", false, "also run the forward window")
}

// readYAML decodes a YAML (or JSON) request file into v.
func readYAML(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

func runBacktest(ctx context.Context, args []string, out io.Writer) error {
	var c commonFlags
	var o requestOverrides
	fs := newFlagSet("backtest", &c)
	fs.StringVar(&c.reqFile, "f", "", "request file (YAML)")
	fs.BoolVar(&c.orders, "orders", false, "list orders")
	addRequestFlags(fs, &o)
	if err := fs.Parse(args); err != nil {
		return err
	}

	var req backtest.Request
	if c.reqFile != "" {
		if err := readYAML(c.reqFile, &req); err != nil {
			return err
		}
	}
	if err := o.apply(&req); err != nil {
		return err
	}

	b, err := openBackend(c.target)
	if err != nil {
		return err
	}
	defer b.Close()

	resp, err := b.Run(ctx, req)
	if err != nil {
		return err
	}
	if c.asJSON {
		return writeJSON(out, resp)
	}
	return report.WriteResponse(out, resp, report.Options{Orders: c.orders})
}

func runSweep(ctx context.Context, args []string, out io.Writer) error {
	var c commonFlags
	var o requestOverrides
	fs := newFlagSet("sweep", &c)
	fs.StringVar(&c.reqFile, "f", "", "sweep file (YAML with request and grid)")
	addRequestFlags(fs, &o)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if c.reqFile == "" {
		return fmt.Errorf("sweep requires -f")
	}

	var req backtest.SweepRequest
	if err := readYAML(c.reqFile, &req); err != nil {
		return err
	}
	if err := o.apply(&req.Request); err != nil {
		return err
	}

	b, err := openBackend(c.target)
	if err != nil {
		return err
	}
	defer b.Close()

	resp, err := b.Sweep(ctx, req)
	if err != nil {
		return err
	}
	if c.asJSON {
		return writeJSON(out, resp)
	}
	if err := report.WriteSweep(out, resp); err != nil {
		return err
	}
	if resp.Best >= 0 {
		fmt.Fprintf(out, "\nbest: %s\n", resp.Results[resp.Best].Params)
	}
	return nil
}

func runList(ctx context.Context, args []string, out io.Writer) error {
	var c commonFlags
	fs := newFlagSet("runs", &c)
	limit := fs.Int("limit", 20, "maximum number of runs")
	if err := fs.Parse(args); err != nil {
		return err
	}

	b, err := openBackend(c.target)
	if err != nil {
		return err
	}
	defer b.Close()

	runs, err := b.ListRuns(ctx, *limit)
	if err != nil {
		return err
	}
	if c.asJSON {
		return writeJSON(out, runs)
	}
	return report.WriteRuns(out, runs)
}

func runShow(ctx context.Context, args []string, out io.Writer) error {
	var c commonFlags
	fs := newFlagSet("run", &c)
	fs.BoolVar(&c.orders, "orders", false, "list orders")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: swift-cli run [options] <id>")
	}

	b, err := openBackend(c.target)
	if err != nil {
		return err
	}
	defer b.Close()

	rec, err := b.GetRun(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	if c.asJSON {
		return writeJSON(out, rec)
	}
	return report.WriteRun(out, rec, report.Options{Orders: c.orders})
}

func runStrategies(ctx context.Context, args []string, out io.Writer) error {
	var c commonFlags
	fs := newFlagSet("strategies", &c)
	if err := fs.Parse(args); err != nil {
		return err
	}

	b, err := openBackend(c.target)
	if err != nil {
		return err
	}
	defer b.Close()

	names, err := b.Strategies(ctx)
	if err != nil {
		return err
	}
	if c.asJSON {
		return writeJSON(out, names)
	}
	for _, n := range names {
		fmt.Fprintln(out, n)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
