// Package backtest orchestrates runs: it validates a request, loads the
// price table, generates signals once and simulates the backtest and
// forward-test windows as independent runs.
package backtest

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gdtan02/swift-trader/internal/apperr"
	"github.com/gdtan02/swift-trader/internal/marketdata"
	"github.com/gdtan02/swift-trader/internal/signals"
	"github.com/gdtan02/swift-trader/internal/sizing"
)

// RuntimeBacktest is the only supported runtime mode.
const RuntimeBacktest = "backtest"

// Date is a timestamp that also accepts a bare YYYY-MM-DD in JSON and YAML.
type Date struct {
	time.Time
}

// NewDate wraps t.
func NewDate(t time.Time) Date { return Date{Time: t} }

var dateLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04:05", time.DateOnly}

// ParseDate parses the layouts accepted by Date. Values without a zone are UTC.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Date{Time: t.UTC()}, nil
		}
	}
	return Date{}, apperr.Newf(apperr.CodeInvalidDateInterval, "cannot parse date %q", s)
}

// MarshalJSON writes RFC 3339.
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.Time.UTC().Format(time.RFC3339))
}

// UnmarshalJSON accepts any layout ParseDate does, or null.
func (d *Date) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return apperr.Newf(apperr.CodeInvalidDateInterval, "date must be a string, got %s", b)
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// UnmarshalYAML accepts any layout ParseDate does.
func (d *Date) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Request is one backtest configuration.
type Request struct {
	StrategyName       string   `json:"strategyName" yaml:"strategyName"`
	Symbol             string   `json:"symbol" yaml:"symbol"`
	Timeframe          string   `json:"timeframe,omitempty" yaml:"timeframe"`
	StartDate          Date     `json:"startDate" yaml:"startDate"`
	EndDate            Date     `json:"endDate" yaml:"endDate"`
	InitialCapital     float64  `json:"initialCapital,omitempty" yaml:"initialCapital"`
	CommissionRate     *float64 `json:"commissionRate,omitempty" yaml:"commissionRate"`
	MinCommission      float64  `json:"minCommission,omitempty" yaml:"minCommission"`
	AllowForwardTest   bool     `json:"allowForwardTest,omitempty" yaml:"allowForwardTest"`
	ForwardStartDate   *Date    `json:"forwardStartDate,omitempty" yaml:"forwardStartDate"`
	ForwardEndDate     *Date    `json:"forwardEndDate,omitempty" yaml:"forwardEndDate"`
	RuntimeMode        string   `json:"runtimeMode,omitempty" yaml:"runtimeMode"`
	EntryExitMode      string   `json:"entryExitMode,omitempty" yaml:"entryExitMode"`
	PositionSizingMode string   `json:"positionSizingMode,omitempty" yaml:"positionSizingMode"`
	MaxPositionSize    *float64 `json:"maxPositionSize,omitempty" yaml:"maxPositionSize"`
	StopLoss           *float64 `json:"stopLoss,omitempty" yaml:"stopLoss"`
	TakeProfit         *float64 `json:"takeProfit,omitempty" yaml:"takeProfit"`
	LookbackPeriod     int      `json:"lookbackPeriod,omitempty" yaml:"lookbackPeriod"`
	RegimeColumn       string   `json:"regimeColumn,omitempty" yaml:"regimeColumn"`
	BarsPerYear        int      `json:"barsPerYear,omitempty" yaml:"barsPerYear"`
	Emit               bool     `json:"emit,omitempty" yaml:"emit"`
}

// Defaults fill the unset fields of a Request.
type Defaults struct {
	Timeframe       string
	InitialCapital  float64
	CommissionRate  float64
	MinCommission   float64
	EntryExitMode   string
	SizingMode      string
	MaxPositionSize float64
	LookbackPeriod  int
	RegimeColumn    string
	BarsPerYear     int
	// MinWindowDays is the shortest backtest window accepted; 0 disables
	// the check.
	MinWindowDays int
}

// DefaultDefaults returns the built-in defaults.
func DefaultDefaults() Defaults {
	return Defaults{
		Timeframe:       string(marketdata.Hour),
		InitialCapital:  100000,
		CommissionRate:  0.0006,
		EntryExitMode:   string(signals.TrendFollowing),
		SizingMode:      string(sizing.ModeFixed),
		MaxPositionSize: 0.5,
		LookbackPeriod:  sizing.DefaultLookback,
		RegimeColumn:    "regime",
	}
}

// Apply returns a copy of r with unset fields taken from d.
func (d Defaults) Apply(r Request) Request {
	if r.Timeframe == "" {
		r.Timeframe = d.Timeframe
	}
	if r.InitialCapital == 0 {
		r.InitialCapital = d.InitialCapital
	}
	if r.CommissionRate == nil {
		rate := d.CommissionRate
		r.CommissionRate = &rate
	}
	if r.MinCommission == 0 {
		r.MinCommission = d.MinCommission
	}
	if r.RuntimeMode == "" {
		r.RuntimeMode = RuntimeBacktest
	}
	if r.EntryExitMode == "" {
		r.EntryExitMode = d.EntryExitMode
	}
	if r.PositionSizingMode == "" {
		r.PositionSizingMode = d.SizingMode
	}
	if r.MaxPositionSize == nil {
		p := d.MaxPositionSize
		r.MaxPositionSize = &p
	}
	if r.LookbackPeriod == 0 {
		r.LookbackPeriod = d.LookbackPeriod
	}
	if r.RegimeColumn == "" {
		r.RegimeColumn = d.RegimeColumn
	}
	if r.BarsPerYear == 0 {
		r.BarsPerYear = d.BarsPerYear
	}
	return r
}

// Plan is a validated Request with its selectors parsed.
type Plan struct {
	Request
	Timeframe  marketdata.Timeframe
	Policy     signals.Policy
	SizingMode sizing.Mode
	Windows    []Window
}

// Window is one simulated date range.
type Window struct {
	Label string
	Start time.Time
	End   time.Time
}

// Window labels.
const (
	LabelBacktest = "backtest"
	LabelForward  = "forward"
)

// Validate checks r, which should already have defaults applied, and
// returns its Plan. Every failure is a configuration error raised before
// any state is created.
func (r Request) Validate(minWindowDays int) (*Plan, error) {
	switch r.RuntimeMode {
	case RuntimeBacktest:
	default:
		return nil, apperr.Newf(apperr.CodeInvalidRuntimeMode, "got %q", r.RuntimeMode)
	}
	if strings.TrimSpace(r.StrategyName) == "" {
		return nil, apperr.Newf(apperr.CodeStrategyNotFound, "strategyName is required")
	}
	if strings.TrimSpace(r.Symbol) == "" {
		return nil, apperr.Newf(apperr.CodeInvalidData, "symbol is required")
	}
	tf, err := marketdata.ParseTimeframe(r.Timeframe)
	if err != nil {
		return nil, err
	}

	if r.StartDate.IsZero() || r.EndDate.IsZero() {
		return nil, apperr.Newf(apperr.CodeInvalidDateInterval, "startDate and endDate are required")
	}
	if !r.EndDate.After(r.StartDate.Time) {
		return nil, apperr.New(apperr.CodeInvalidDateInterval).WithDetails("End date must be after start date.")
	}
	if minWindowDays > 0 && r.EndDate.AddDate(0, 0, -minWindowDays).Before(r.StartDate.Time) {
		return nil, apperr.New(apperr.CodeInvalidDateInterval).
			WithDetails(fmt.Sprintf("Should run the backtest for at least %d days.", minWindowDays))
	}

	windows := []Window{{Label: LabelBacktest, Start: r.StartDate.Time, End: r.EndDate.Time}}
	if r.AllowForwardTest {
		if r.ForwardStartDate == nil || r.ForwardEndDate == nil || r.ForwardStartDate.IsZero() || r.ForwardEndDate.IsZero() {
			return nil, apperr.New(apperr.CodeInvalidDateInterval).WithDetails("Forward test requires forwardStartDate and forwardEndDate.")
		}
		if !r.ForwardEndDate.After(r.ForwardStartDate.Time) {
			return nil, apperr.New(apperr.CodeInvalidDateInterval).WithDetails("Forward end date must be after forward start date.")
		}
		windows = append(windows, Window{Label: LabelForward, Start: r.ForwardStartDate.Time, End: r.ForwardEndDate.Time})
	}

	if !(r.InitialCapital > 0) || math.IsInf(r.InitialCapital, 0) {
		return nil, apperr.Newf(apperr.CodeInvalidRange, "initialCapital %v", r.InitialCapital)
	}
	if r.CommissionRate == nil || !(*r.CommissionRate >= 0 && *r.CommissionRate < 1) {
		return nil, apperr.Newf(apperr.CodeInvalidRange, "commissionRate %v", deref(r.CommissionRate))
	}
	if !(r.MinCommission >= 0) {
		return nil, apperr.Newf(apperr.CodeInvalidRange, "minCommission %v", r.MinCommission)
	}
	// Stop-loss and take-profit are fractions of the entry price. They are
	// range-checked and recorded with the run; no exit rule reads them.
	for _, f := range []struct {
		name string
		v    *float64
	}{{"stopLoss", r.StopLoss}, {"takeProfit", r.TakeProfit}} {
		if f.v != nil && !(*f.v >= 0 && *f.v <= 1) {
			return nil, apperr.Newf(apperr.CodeInvalidRange, "%s %v", f.name, *f.v)
		}
	}

	policy, err := signals.ParsePolicy(r.EntryExitMode)
	if err != nil {
		return nil, err
	}
	mode, err := sizing.ParseMode(r.PositionSizingMode)
	if err != nil {
		return nil, err
	}
	switch mode {
	case sizing.ModeFixed:
		if _, err := sizing.NewFixed(deref(r.MaxPositionSize)); err != nil {
			return nil, err
		}
	case sizing.ModeRegime:
		if r.LookbackPeriod < 1 {
			return nil, apperr.Newf(apperr.CodeInvalidRange, "lookbackPeriod %d", r.LookbackPeriod)
		}
	}
	if r.BarsPerYear <= 0 {
		return nil, apperr.Newf(apperr.CodeInvalidBarsPerYear, "barsPerYear %d", r.BarsPerYear)
	}

	return &Plan{
		Request:    r,
		Timeframe:  tf,
		Policy:     policy,
		SizingMode: mode,
		Windows:    windows,
	}, nil
}

func deref(p *float64) float64 {
	if p == nil {
		return math.NaN()
	}
	return *p
}
