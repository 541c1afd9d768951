// Package engine runs one backtest: it walks the bars in time order, turns
// the translator's triggers into orders, settles them against a simulated
// broker and records the equity and drawdown curves.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/gdtan02/swift-trader/internal/apperr"
	"github.com/gdtan02/swift-trader/internal/broker"
	"github.com/gdtan02/swift-trader/internal/domain"
	"github.com/gdtan02/swift-trader/internal/metrics"
	"github.com/gdtan02/swift-trader/internal/signals"
	"github.com/gdtan02/swift-trader/internal/sizing"
)

// Config parameterises a run.
type Config struct {
	Symbol         string
	InitialCapital float64
	CommissionRate float64
	MinCommission  float64
	BarsPerYear    int
	// Label prefixes order IDs and names the run in logs ("backtest",
	// "forward", ...).
	Label string
}

// Engine executes runs for one configuration. Each call to Run owns its
// own cash, ledger and curves, so an Engine may be reused.
type Engine struct {
	cfg    Config
	sizer  sizing.Sizer
	costs  CostModel
	calc   *metrics.Calculator
	logger *slog.Logger
}

// New creates an Engine wired with the given sizer.
func New(cfg Config, sizer sizing.Sizer, logger *slog.Logger) (*Engine, error) {
	if sizer == nil {
		return nil, apperr.New(apperr.CodeInvalidSizingModel)
	}
	if !(cfg.InitialCapital > 0) || math.IsInf(cfg.InitialCapital, 0) {
		return nil, apperr.Newf(apperr.CodeInvalidRange, "initial capital %v", cfg.InitialCapital)
	}
	costs, err := NewCostModel(cfg.CommissionRate, cfg.MinCommission)
	if err != nil {
		return nil, err
	}
	calc, err := metrics.NewCalculator(cfg.BarsPerYear)
	if err != nil {
		return nil, err
	}
	if cfg.Label == "" {
		cfg.Label = "run"
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		cfg:    cfg,
		sizer:  sizer,
		costs:  costs,
		calc:   calc,
		logger: logger.With("component", "engine", "run", cfg.Label),
	}, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() Config { return e.cfg }

// run is the private mutable state of one Run call.
type run struct {
	sim      *broker.Simulator
	peak     float64
	seq      int
	trades   []TradeEntry
	equity   []domain.Point
	drawdown []domain.Point
}

// Run simulates bars against tr, which must be index-aligned with bars. The
// context is checked once before the loop; the loop itself runs to
// completion.
func (e *Engine) Run(ctx context.Context, bars []domain.Bar, tr signals.Translation) (*Portfolio, error) {
	if len(bars) == 0 {
		return nil, apperr.New(apperr.CodeEmptyWindow)
	}
	if tr.Len() != len(bars) || len(tr.Triggers) != len(bars) {
		return nil, apperr.Newf(apperr.CodeInvalidData, "%d bars but %d positions", len(bars), tr.Len())
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r := &run{
		sim:      broker.NewSimulator(e.cfg.InitialCapital),
		peak:     e.cfg.InitialCapital,
		equity:   make([]domain.Point, 0, len(bars)),
		drawdown: make([]domain.Point, 0, len(bars)),
	}

	for i, bar := range bars {
		switch tr.Action(i) {
		case signals.ActionEnterLong:
			if err := e.buy(r, bar); err != nil {
				return nil, fmt.Errorf("bar %d (%s): %w", i, bar.Timestamp.Format("2006-01-02T15:04"), err)
			}
		case signals.ActionLiquidate:
			if err := e.liquidate(r, bar); err != nil {
				return nil, fmt.Errorf("bar %d (%s): %w", i, bar.Timestamp.Format("2006-01-02T15:04"), err)
			}
		}

		eq := r.sim.Equity(e.symbol(bar), bar.Close)
		if eq > r.peak {
			r.peak = eq
		}
		r.equity = append(r.equity, domain.Point{Time: bar.Timestamp, Value: eq})
		r.drawdown = append(r.drawdown, domain.Point{Time: bar.Timestamp, Value: (eq - r.peak) / r.peak})
	}

	p := &Portfolio{
		Label:          e.cfg.Label,
		Symbol:         e.symbol(bars[0]),
		InitialCapital: e.cfg.InitialCapital,
		Cash:           r.sim.Cash(),
		PeakEquity:     r.peak,
		Start:          bars[0].Timestamp,
		End:            bars[len(bars)-1].Timestamp,
		Positions:      r.sim.Ledger().Positions(),
		Trades:         r.trades,
		Equity:         r.equity,
		Drawdown:       r.drawdown,
		PnL:            firstDifference(r.equity),
	}

	perf, stats, err := e.calc.Compute(metrics.Input{
		InitialCapital: p.InitialCapital,
		Equity:         p.Equity,
		Drawdown:       p.Drawdown,
		PnL:            p.PnL,
		Orders:         p.Orders(),
	})
	if err != nil {
		return nil, fmt.Errorf("computing metrics: %w", err)
	}
	p.Performance = perf
	p.Statistics = stats

	e.logger.Info("run complete",
		"bars", len(bars),
		"orders", len(p.Trades),
		"final_equity", p.FinalEquity(),
		"closed_trades", stats.TotalTrades,
	)
	return p, nil
}

func (e *Engine) symbol(bar domain.Bar) string {
	if e.cfg.Symbol != "" {
		return e.cfg.Symbol
	}
	return bar.Symbol
}

func (e *Engine) nextID(r *run) string {
	r.seq++
	return fmt.Sprintf("%s-%d", e.cfg.Label, r.seq)
}

// buy sizes, constructs and settles a BUY at the bar close. A rejected order
// is recorded and the run continues.
func (e *Engine) buy(r *run, bar domain.Bar) error {
	commit, err := e.sizer.SizeFor(bar.Timestamp, r.sim.Cash())
	if err != nil {
		return err
	}
	qty, commission, ok := e.costs.BuyQuantity(commit, bar.Close)
	if !ok {
		e.logger.Debug("buy skipped, nothing affordable after commission",
			"time", bar.Timestamp, "commit", commit, "commission", commission)
		return nil
	}

	order, err := domain.NewOrder(domain.OrderRequest{
		ID:         e.nextID(r),
		Timestamp:  bar.Timestamp,
		Symbol:     e.symbol(bar),
		Type:       domain.OrderTypeMarket,
		Side:       domain.OrderSideBuy,
		Quantity:   qty,
		Commission: commission,
	})
	if err != nil {
		return err
	}
	if err := r.sim.Buy(order, bar.Close, bar.Timestamp); err != nil {
		return err
	}
	r.trades = append(r.trades, TradeEntry{Time: bar.Timestamp, Order: *order})

	e.logger.Debug("buy",
		"id", order.ID,
		"status", order.Status,
		"quantity", order.Quantity,
		"price", bar.Close,
		"commission", order.Commission,
	)
	return nil
}

// liquidate sells the full holding at the bar close. Flat is a no-op.
func (e *Engine) liquidate(r *run, bar domain.Bar) error {
	sym := e.symbol(bar)
	held := r.sim.Ledger().Quantity(sym)
	if held <= 0 {
		return nil
	}

	order, err := domain.NewOrder(domain.OrderRequest{
		ID:         e.nextID(r),
		Timestamp:  bar.Timestamp,
		Symbol:     sym,
		Type:       domain.OrderTypeMarket,
		Side:       domain.OrderSideSell,
		Quantity:   held,
		Commission: e.costs.Commission(held * bar.Close),
	})
	if err != nil {
		return err
	}
	if err := r.sim.Sell(order, bar.Close, bar.Timestamp); err != nil {
		return err
	}
	r.trades = append(r.trades, TradeEntry{Time: bar.Timestamp, Order: *order})

	e.logger.Debug("sell",
		"id", order.ID,
		"quantity", order.Quantity,
		"price", bar.Close,
		"pnl", order.RealizedPnL(),
	)
	return nil
}
