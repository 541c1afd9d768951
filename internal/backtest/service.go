package backtest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/gdtan02/swift-trader/internal/apperr"
	"github.com/gdtan02/swift-trader/internal/domain"
	"github.com/gdtan02/swift-trader/internal/engine"
	"github.com/gdtan02/swift-trader/internal/marketdata"
	"github.com/gdtan02/swift-trader/internal/metrics"
	"github.com/gdtan02/swift-trader/internal/signals"
	"github.com/gdtan02/swift-trader/internal/sizing"
	"github.com/gdtan02/swift-trader/internal/store"
	"github.com/gdtan02/swift-trader/internal/strategy"
)

// Options wires a Service. Runs and Series are optional.
type Options struct {
	Registry *strategy.Registry
	Provider marketdata.Provider
	Runs     store.RunStore
	Series   store.SeriesWriter
	Defaults Defaults
	// SweepWorkers bounds concurrent sweep combinations; 0 means 4.
	SweepWorkers int
	Logger       *slog.Logger
}

// Service runs backtests.
type Service struct {
	registry *strategy.Registry
	provider marketdata.Provider
	runs     store.RunStore
	series   store.SeriesWriter
	defaults Defaults
	workers  int
	log      *slog.Logger
}

// NewService creates a Service.
func NewService(opts Options) (*Service, error) {
	if opts.Registry == nil {
		return nil, fmt.Errorf("backtest: nil strategy registry")
	}
	if opts.Provider == nil {
		return nil, fmt.Errorf("backtest: nil market data provider")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	workers := opts.SweepWorkers
	if workers <= 0 {
		workers = 4
	}
	return &Service{
		registry: opts.Registry,
		provider: opts.Provider,
		runs:     opts.Runs,
		series:   opts.Series,
		defaults: opts.Defaults,
		workers:  workers,
		log:      logger.With("component", "backtest"),
	}, nil
}

// Result is the outcome of one window.
type Result struct {
	Label       string                  `json:"label"`
	StartDate   time.Time               `json:"startDate"`
	EndDate     time.Time               `json:"endDate"`
	Performance metrics.Performance     `json:"performanceMetrics"`
	Statistics  metrics.TradeStatistics `json:"tradeStatistics"`
	FinalCash   float64                 `json:"finalCash"`
	Positions   []domain.Position       `json:"positions"`
	Equity      []domain.Point          `json:"equityCurve"`
	Drawdown    []domain.Point          `json:"drawdownCurve"`
	PnL         []domain.Point          `json:"pnl"`
	Orders      []domain.Order          `json:"orders"`
}

func newResult(p *engine.Portfolio) *Result {
	return &Result{
		Label:       p.Label,
		StartDate:   p.Start,
		EndDate:     p.End,
		Performance: p.Performance,
		Statistics:  p.Statistics,
		FinalCash:   p.Cash,
		Positions:   p.Positions,
		Equity:      p.Equity,
		Drawdown:    p.Drawdown,
		PnL:         p.PnL,
		Orders:      p.Orders(),
	}
}

// Response is the result of Run. ForwardTestResult is nil unless the
// request enabled a forward test.
type Response struct {
	RunID             string  `json:"runId,omitempty"`
	BacktestResult    *Result `json:"backtestResult"`
	ForwardTestResult *Result `json:"forwardTestResult,omitempty"`
}

// prepared holds the immutable inputs shared by every window of a run.
type prepared struct {
	plan    *Plan
	table   *marketdata.Table
	signals []domain.Signal
	regime  []float64
}

// Run validates req, simulates its windows and records the run.
func (s *Service) Run(ctx context.Context, req Request) (*Response, error) {
	plan, err := s.Plan(req)
	if err != nil {
		return nil, err
	}
	prep, err := s.prepare(ctx, plan)
	if err != nil {
		return nil, err
	}

	portfolios, err := s.simulate(ctx, prep)
	if err != nil {
		return nil, err
	}

	resp := &Response{RunID: uuid.NewString()}
	for _, p := range portfolios {
		switch p.Label {
		case LabelBacktest:
			resp.BacktestResult = newResult(p)
		case LabelForward:
			resp.ForwardTestResult = newResult(p)
		}
	}

	if err := s.record(ctx, resp.RunID, plan, portfolios); err != nil {
		return nil, err
	}

	s.log.Info("backtest finished",
		"run_id", resp.RunID,
		"strategy", plan.StrategyName,
		"symbol", plan.Symbol,
		"total_return_pct", resp.BacktestResult.Performance.TotalReturnPct,
		"closed_trades", resp.BacktestResult.Statistics.TotalTrades,
	)
	return resp, nil
}

// Plan applies the service defaults to req and validates it.
func (s *Service) Plan(req Request) (*Plan, error) {
	return s.defaults.Apply(req).Validate(s.defaults.MinWindowDays)
}

// prepare loads the symbol's full history, range-checks each window against
// it and generates signals once over the whole table, so indicators and
// regime lookbacks see the bars before a window starts.
func (s *Service) prepare(ctx context.Context, plan *Plan) (*prepared, error) {
	strat, err := s.registry.Resolve(plan.StrategyName)
	if err != nil {
		return nil, err
	}

	columns := append([]string(nil), strat.Columns()...)
	if plan.SizingMode == sizing.ModeRegime {
		columns = append(columns, plan.RegimeColumn)
	}
	table, err := s.provider.Load(ctx, marketdata.Query{
		Symbol:    plan.Symbol,
		Timeframe: plan.Timeframe,
		Columns:   columns,
	})
	if err != nil {
		return nil, err
	}
	for _, w := range plan.Windows {
		if _, _, err := table.Span(w.Start, w.End); err != nil {
			return nil, err
		}
	}

	sigs, err := strat.GenerateSignals(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("generating %s signals: %w", strat.Name(), err)
	}
	if len(sigs) != table.Len() {
		return nil, apperr.Newf(apperr.CodeInvalidSignal, "%s returned %d signals for %d bars", strat.Name(), len(sigs), table.Len())
	}
	for i, sig := range sigs {
		if !sig.Valid() {
			return nil, apperr.Newf(apperr.CodeInvalidSignal, "signal %d at bar %d", sig, i)
		}
	}

	prep := &prepared{plan: plan, table: table, signals: sigs}
	if plan.SizingMode == sizing.ModeRegime {
		if prep.regime, err = table.Column(plan.RegimeColumn); err != nil {
			return nil, err
		}
	}
	return prep, nil
}

// simulate runs every window of prep in parallel. Windows share only the
// immutable table and signals; results come back in window order.
func (s *Service) simulate(ctx context.Context, prep *prepared) ([]*engine.Portfolio, error) {
	out := make([]*engine.Portfolio, len(prep.plan.Windows))
	g, gctx := errgroup.WithContext(ctx)
	for i, w := range prep.plan.Windows {
		g.Go(func() error {
			p, err := s.runWindow(gctx, prep, w)
			if err != nil {
				return fmt.Errorf("%s window: %w", w.Label, err)
			}
			out[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) runWindow(ctx context.Context, prep *prepared, w Window) (*engine.Portfolio, error) {
	plan := prep.plan
	lo, hi, err := prep.table.Span(w.Start, w.End)
	if err != nil {
		return nil, err
	}
	tr, err := signals.Translate(plan.Policy, prep.signals[lo:hi])
	if err != nil {
		return nil, err
	}

	sizer, err := s.sizer(prep, w)
	if err != nil {
		return nil, err
	}
	eng, err := engine.New(engine.Config{
		Symbol:         plan.Symbol,
		InitialCapital: plan.InitialCapital,
		CommissionRate: *plan.CommissionRate,
		MinCommission:  plan.MinCommission,
		BarsPerYear:    plan.BarsPerYear,
		Label:          w.Label,
	}, sizer, s.log)
	if err != nil {
		return nil, err
	}
	return eng.Run(ctx, prep.table.Bars[lo:hi], tr)
}

// sizer builds a fresh sizer per window so no state crosses runs.
func (s *Service) sizer(prep *prepared, w Window) (sizing.Sizer, error) {
	plan := prep.plan
	switch plan.SizingMode {
	case sizing.ModeRegime:
		return sizing.NewRegime(sizing.RegimeLabels{
			Times:  prep.table.Times(),
			Labels: prep.regime,
		}, w.Start, w.End, plan.LookbackPeriod)
	default:
		return sizing.NewFixed(*plan.MaxPositionSize)
	}
}

// record persists the run summary and, when requested, emits the series.
// A failed summary write fails the run; a failed emit is only logged.
func (s *Service) record(ctx context.Context, runID string, plan *Plan, portfolios []*engine.Portfolio) error {
	if s.runs != nil {
		reqJSON, err := json.Marshal(plan.Request)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		rec := &store.RunRecord{
			ID:        runID,
			CreatedAt: time.Now().UTC(),
			Strategy:  plan.StrategyName,
			Symbol:    plan.Symbol,
			Timeframe: string(plan.Timeframe),
			Request:   reqJSON,
		}
		for _, p := range portfolios {
			rec.Results = append(rec.Results, store.RunResult{
				Label:       p.Label,
				Start:       p.Start,
				End:         p.End,
				Performance: p.Performance,
				Statistics:  p.Statistics,
				Orders:      p.Orders(),
			})
		}
		if err := s.runs.SaveRun(ctx, rec); err != nil {
			return fmt.Errorf("saving run %s: %w", runID, err)
		}
	}

	if plan.Emit && s.series != nil {
		for _, p := range portfolios {
			err := s.series.WriteRunSeries(ctx, runID, p.Label, store.RunSeries{
				Equity:   p.Equity,
				Drawdown: p.Drawdown,
				PnL:      p.PnL,
				Orders:   p.Orders(),
			})
			if err != nil {
				s.log.Warn("emitting run series failed", "run_id", runID, "window", p.Label, "error", err)
			}
		}
	}
	return nil
}

// GetRun returns a stored run.
func (s *Service) GetRun(ctx context.Context, id string) (*store.RunRecord, error) {
	if s.runs == nil {
		return nil, apperr.Newf(apperr.CodeRunNotFound, "run history is disabled")
	}
	return s.runs.GetRun(ctx, id)
}

// ListRuns returns the most recent stored runs.
func (s *Service) ListRuns(ctx context.Context, limit int) ([]store.RunSummary, error) {
	if s.runs == nil {
		return []store.RunSummary{}, nil
	}
	return s.runs.ListRuns(ctx, limit)
}

// Strategies lists the registered strategy names.
func (s *Service) Strategies() []string {
	return s.registry.List()
}
