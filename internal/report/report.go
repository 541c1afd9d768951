// Package report renders backtest results as plain-text summaries for the
// command line.
package report

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/gdtan02/swift-trader/internal/backtest"
	"github.com/gdtan02/swift-trader/internal/domain"
	"github.com/gdtan02/swift-trader/internal/metrics"
	"github.com/gdtan02/swift-trader/internal/store"
)

const dateTimeLayout = "2006-01-02 15:04"

// Options controls optional sections.
type Options struct {
	// Orders lists every order of each window.
	Orders bool
}

// WriteResponse writes the backtest window and, if present, the forward
// window of resp.
func WriteResponse(w io.Writer, resp *backtest.Response, opts Options) error {
	if resp.RunID != "" {
		if _, err := fmt.Fprintf(w, "run %s\n\n", resp.RunID); err != nil {
			return err
		}
	}
	for _, res := range []*backtest.Result{resp.BacktestResult, resp.ForwardTestResult} {
		if res == nil {
			continue
		}
		if err := WriteResult(w, res, opts); err != nil {
			return err
		}
	}
	return nil
}

// WriteResult writes the metrics and trade statistics of one window.
func WriteResult(w io.Writer, res *backtest.Result, opts Options) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	writeMetrics(tw, res.Label, res.StartDate, res.EndDate, res.Performance, res.Statistics)
	fmt.Fprintf(tw, "  final cash\t%s\n", Money(res.FinalCash))
	for _, pos := range res.Positions {
		if pos.IsFlat() {
			continue
		}
		fmt.Fprintf(tw, "  open position\t%s %s @ %s\n", Quantity(pos.Quantity), pos.Symbol, Money(pos.AvgEntryPrice))
	}
	return finish(w, tw, res.Orders, opts)
}

// WriteRun writes a stored run and its windows.
func WriteRun(w io.Writer, run *store.RunRecord, opts Options) error {
	if _, err := fmt.Fprintf(w, "run %s  %s  %s %s  created %s\n\n",
		run.ID, run.Strategy, run.Symbol, run.Timeframe, run.CreatedAt.In(time.Local).Format(dateTimeLayout)); err != nil {
		return err
	}
	for _, res := range run.Results {
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		writeMetrics(tw, res.Label, res.Start, res.End, res.Performance, res.Statistics)
		if err := finish(w, tw, res.Orders, opts); err != nil {
			return err
		}
	}
	return nil
}

func writeMetrics(tw *tabwriter.Writer, label string, start, end time.Time, p metrics.Performance, s metrics.TradeStatistics) {
	fmt.Fprintf(tw, "[%s] %s to %s\n", label, start.Format(dateTimeLayout), end.Format(dateTimeLayout))
	rows := [][2]string{
		{"final equity", Money(p.FinalEquity)},
		{"total return", Money(p.TotalReturn) + " (" + Percent(p.TotalReturnPct) + ")"},
		{"annualized return", Percent(p.AnnualizedReturn)},
		{"annualized volatility", Percent(p.AnnualizedVolatility)},
		{"sharpe", Ratio(p.SharpeRatio)},
		{"sortino", Ratio(p.SortinoRatio)},
		{"calmar", Ratio(p.CalmarRatio)},
		{"max drawdown", Percent(p.MaxDrawdown)},
		{"duration (years)", fmt.Sprintf("%.4f", p.DurationYears)},
		{"closed trades", fmt.Sprintf("%d (%d won, %d lost)", s.TotalTrades, s.ProfitableTrades, s.LosingTrades)},
		{"win rate", Percent(s.WinRate)},
		{"average pnl", Money(s.AveragePnL)},
	}
	for _, r := range rows {
		fmt.Fprintf(tw, "  %s\t%s\n", r[0], r[1])
	}
}

func finish(w io.Writer, tw *tabwriter.Writer, orders []domain.Order, opts Options) error {
	if err := tw.Flush(); err != nil {
		return err
	}
	if opts.Orders {
		if err := WriteOrders(w, orders); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w)
	return err
}

// WriteOrders writes one line per order.
func WriteOrders(w io.Writer, orders []domain.Order) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  ID\tTIME\tSIDE\tSTATUS\tQTY\tPRICE\tCOMMISSION\tPNL")
	for _, o := range orders {
		pnl := missing
		if o.PnL != nil {
			pnl = Money(*o.PnL)
		}
		price := missing
		if o.Status == domain.OrderStatusCompleted {
			price = Money(o.ExecutionPrice)
		}
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			o.ID, o.Timestamp.Format(dateTimeLayout), o.Side, o.Status,
			Quantity(o.Quantity), price, Money(o.Commission), pnl)
	}
	return tw.Flush()
}

// WriteSweep writes one row per combination, the best marked with "*".
func WriteSweep(w io.Writer, resp *backtest.SweepResponse) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "\tPROPORTION\tMODE\tCOMMISSION\tRETURN\tSHARPE\tMAX DD\tTRADES\t")
	for i, r := range resp.Results {
		mark := ""
		if i == resp.Best {
			mark = "*"
		}
		p := r.Result.Performance
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%d\t\n",
			mark, Percent(r.Params.Proportion), r.Params.EntryExitMode, Percent(r.Params.CommissionRate),
			Percent(p.TotalReturnPct), Ratio(p.SharpeRatio), Percent(p.MaxDrawdown), r.Result.Statistics.TotalTrades)
	}
	return tw.Flush()
}

// WriteRuns writes the run history listing.
func WriteRuns(w io.Writer, runs []store.RunSummary) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tSTRATEGY\tSYMBOL\tTIMEFRAME\tRETURN\tSHARPE\tTRADES")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%d\n",
			r.ID, r.CreatedAt.In(time.Local).Format(dateTimeLayout), r.Strategy, r.Symbol, r.Timeframe,
			Percent(r.TotalReturnPct), Ratio(r.SharpeRatio), r.TotalTrades)
	}
	return tw.Flush()
}
