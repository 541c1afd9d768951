package backtest

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Grid lists the values to sweep. An empty dimension keeps the base
// request's value.
type Grid struct {
	Proportions     []float64 `json:"proportions,omitempty" yaml:"proportions"`
	EntryExitModes  []string  `json:"entryExitModes,omitempty" yaml:"entryExitModes"`
	CommissionRates []float64 `json:"commissionRates,omitempty" yaml:"commissionRates"`
}

// SweepRequest is a base request plus the grid swept around it.
type SweepRequest struct {
	Request Request `json:"request" yaml:"request"`
	Grid    Grid    `json:"grid" yaml:"grid"`
}

// Params is one combination of a Grid.
type Params struct {
	Proportion     float64 `json:"proportion"`
	EntryExitMode  string  `json:"entryExitMode"`
	CommissionRate float64 `json:"commissionRate"`
}

func (p Params) String() string {
	return fmt.Sprintf("proportion=%g mode=%s commission=%g", p.Proportion, p.EntryExitMode, p.CommissionRate)
}

// SweepResult is the backtest-window result of one combination.
type SweepResult struct {
	Params Params  `json:"params"`
	Result *Result `json:"result"`
}

// SweepResponse holds the results in grid order.
type SweepResponse struct {
	Results []SweepResult `json:"results"`
	// Best is the index of the highest Sharpe ratio, or -1.
	Best int `json:"best"`
}

// combinations expands g around base in proportion, mode, commission order.
func (g Grid) combinations(base Params) []Params {
	props := g.Proportions
	if len(props) == 0 {
		props = []float64{base.Proportion}
	}
	modes := g.EntryExitModes
	if len(modes) == 0 {
		modes = []string{base.EntryExitMode}
	}
	rates := g.CommissionRates
	if len(rates) == 0 {
		rates = []float64{base.CommissionRate}
	}

	out := make([]Params, 0, len(props)*len(modes)*len(rates))
	for _, p := range props {
		for _, m := range modes {
			for _, r := range rates {
				out = append(out, Params{Proportion: p, EntryExitMode: m, CommissionRate: r})
			}
		}
	}
	return out
}

// Sweep runs the backtest window of base once per grid combination. Data is
// loaded and signals generated once; each combination owns its own
// portfolio and sizer. Forward testing and emitting are ignored, and sweep
// runs are not recorded in the run history.
func (s *Service) Sweep(ctx context.Context, base Request, grid Grid) (*SweepResponse, error) {
	base.AllowForwardTest = false
	base.Emit = false
	basePlan, err := s.Plan(base)
	if err != nil {
		return nil, err
	}

	combos := grid.combinations(Params{
		Proportion:     *basePlan.MaxPositionSize,
		EntryExitMode:  basePlan.EntryExitMode,
		CommissionRate: *basePlan.CommissionRate,
	})
	plans := make([]*Plan, len(combos))
	for i, c := range combos {
		req := basePlan.Request
		prop, rate := c.Proportion, c.CommissionRate
		req.MaxPositionSize = &prop
		req.CommissionRate = &rate
		req.EntryExitMode = c.EntryExitMode
		if plans[i], err = req.Validate(s.defaults.MinWindowDays); err != nil {
			return nil, fmt.Errorf("combination %s: %w", c, err)
		}
	}

	prep, err := s.prepare(ctx, basePlan)
	if err != nil {
		return nil, err
	}
	window := basePlan.Windows[0]

	results := make([]SweepResult, len(combos))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, c := range combos {
		g.Go(func() error {
			p, err := s.runWindow(gctx, &prepared{
				plan:    plans[i],
				table:   prep.table,
				signals: prep.signals,
				regime:  prep.regime,
			}, window)
			if err != nil {
				return fmt.Errorf("combination %s: %w", c, err)
			}
			results[i] = SweepResult{Params: c, Result: newResult(p)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	resp := &SweepResponse{Results: results, Best: BestBySharpe(results)}
	s.log.Info("sweep finished",
		"strategy", basePlan.StrategyName,
		"symbol", basePlan.Symbol,
		"combinations", len(results),
		"best", resp.Best,
	)
	return resp, nil
}

// BestBySharpe returns the index of the result with the highest Sharpe
// ratio. Results without a Sharpe ratio are skipped; -1 means none had one.
// Ties keep the earliest.
func BestBySharpe(results []SweepResult) int {
	best := -1
	var bestSharpe float64
	for i, r := range results {
		if r.Result == nil || r.Result.Performance.SharpeRatio == nil {
			continue
		}
		if sr := *r.Result.Performance.SharpeRatio; best < 0 || sr > bestSharpe {
			best, bestSharpe = i, sr
		}
	}
	return best
}

