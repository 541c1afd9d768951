package sizing

import (
	"math"
	"time"

	"github.com/gdtan02/swift-trader/internal/apperr"
)

// DefaultLookback is the number of bars a regime label stays usable when the
// classifier emits no label for later bars.
const DefaultLookback = 30

// regimeProportions maps classifier labels to the share of cash committed.
var regimeProportions = map[int]float64{
	3: 0.8,
	4: 0.6,
	2: 0.4,
	1: 0.2,
}

const fallbackProportion = 0.05

// RegimeProportion returns the proportion for label.
func RegimeProportion(label int) float64 {
	if p, ok := regimeProportions[label]; ok {
		return p
	}
	return fallbackProportion
}

// RegimeLabels is the classifier output aligned to the price index. A NaN
// label means the classifier produced nothing for that bar.
type RegimeLabels struct {
	Times  []time.Time
	Labels []float64
}

// Compile-time interface check.
var _ Sizer = (*Regime)(nil)

// Regime sizes positions by the market regime label at each bar.
type Regime struct {
	byTime   map[int64]int // unix nanos -> resolved label
	lookback int
}

// NewRegime prepares a Regime sizer for the bars in [start, end]. Every bar
// in that window must resolve to a label, either its own or one at most
// lookback bars earlier; otherwise the classifier is not ready.
func NewRegime(labels RegimeLabels, start, end time.Time, lookback int) (*Regime, error) {
	if lookback < 1 {
		return nil, apperr.Newf(apperr.CodeInvalidRange, "lookback %d must be at least 1", lookback)
	}
	if len(labels.Times) != len(labels.Labels) {
		return nil, apperr.Newf(apperr.CodeInvalidData, "%d timestamps for %d regime labels", len(labels.Times), len(labels.Labels))
	}

	r := &Regime{byTime: make(map[int64]int), lookback: lookback}
	for i, ts := range labels.Times {
		if ts.Before(start) || ts.After(end) {
			continue
		}
		label, ok := resolve(labels.Labels, i, lookback)
		if !ok {
			return nil, apperr.Newf(apperr.CodeModelNotReady, "no regime label within %d bars of %s", lookback, ts.Format(time.RFC3339))
		}
		r.byTime[ts.UnixNano()] = label
	}
	if len(r.byTime) == 0 {
		return nil, apperr.Newf(apperr.CodeModelNotReady, "no regime labels between %s and %s",
			start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return r, nil
}

// resolve returns the label at i, or the most recent one within lookback
// bars before it.
func resolve(labels []float64, i, lookback int) (int, bool) {
	for j := i; j >= 0 && j >= i-lookback; j-- {
		if v := labels[j]; !math.IsNaN(v) {
			return int(math.Round(v)), true
		}
	}
	return 0, false
}

// Name returns "regime".
func (r *Regime) Name() string { return string(ModeRegime) }

// Label returns the resolved regime label at ts.
func (r *Regime) Label(ts time.Time) (int, error) {
	label, ok := r.byTime[ts.UnixNano()]
	if !ok {
		return 0, apperr.Newf(apperr.CodeModelNotReady, "no regime label for %s", ts.Format(time.RFC3339))
	}
	return label, nil
}

// SizeFor returns availableCash × the proportion of the regime at ts.
func (r *Regime) SizeFor(ts time.Time, availableCash float64) (float64, error) {
	label, err := r.Label(ts)
	if err != nil {
		return 0, err
	}
	return availableCash * RegimeProportion(label), nil
}
