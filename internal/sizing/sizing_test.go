package sizing

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gdtan02/swift-trader/internal/apperr"
)

func TestFixedRejectsOutOfRange(t *testing.T) {
	for _, p := range []float64{1.5, 0, -0.1, math.NaN()} {
		_, err := NewFixed(p)
		assert.True(t, apperr.Is(err, apperr.CodeInvalidPositionSize), "proportion %v", p)
	}
}

func TestFixedSize(t *testing.T) {
	f, err := NewFixed(0.5)
	require.NoError(t, err)

	got, err := f.SizeFor(time.Time{}, 100000)
	require.NoError(t, err)
	assert.Equal(t, 50000.0, got)
	assert.Equal(t, "fixed", f.Name())

	one, err := NewFixed(1)
	require.NoError(t, err)
	got, _ = one.SizeFor(time.Time{}, 42)
	assert.Equal(t, 42.0, got)
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("AUTO")
	require.NoError(t, err)
	assert.Equal(t, ModeRegime, m)

	m, err = ParseMode("fixed")
	require.NoError(t, err)
	assert.Equal(t, ModeFixed, m)

	_, err = ParseMode("kelly")
	assert.True(t, apperr.Is(err, apperr.CodeInvalidSizingModel))
}

func TestRegimeProportionTable(t *testing.T) {
	tests := map[int]float64{3: 0.8, 4: 0.6, 2: 0.4, 1: 0.2, 0: 0.05, 7: 0.05}
	for label, want := range tests {
		assert.Equal(t, want, RegimeProportion(label), "label %d", label)
	}
}

func hourly(n int) []time.Time {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]time.Time, n)
	for i := range out {
		out[i] = start.Add(time.Duration(i) * time.Hour)
	}
	return out
}

func TestRegimeSizeFor(t *testing.T) {
	times := hourly(4)
	r, err := NewRegime(RegimeLabels{Times: times, Labels: []float64{3, 4, 2, 9}}, times[0], times[3], DefaultLookback)
	require.NoError(t, err)

	want := []float64{800, 600, 400, 50}
	for i, ts := range times {
		got, err := r.SizeFor(ts, 1000)
		require.NoError(t, err)
		assert.InDelta(t, want[i], got, 1e-9, "bar %d", i)
	}
}

func TestRegimeCarriesLabelWithinLookback(t *testing.T) {
	times := hourly(4)
	nan := math.NaN()
	r, err := NewRegime(RegimeLabels{Times: times, Labels: []float64{1, nan, nan, 3}}, times[0], times[3], 2)
	require.NoError(t, err)

	label, err := r.Label(times[2])
	require.NoError(t, err)
	assert.Equal(t, 1, label)
}

func TestRegimeNotReady(t *testing.T) {
	times := hourly(4)
	nan := math.NaN()

	// Stale beyond lookback.
	_, err := NewRegime(RegimeLabels{Times: times, Labels: []float64{1, nan, nan, nan}}, times[0], times[3], 2)
	assert.True(t, apperr.Is(err, apperr.CodeModelNotReady))
	assert.Equal(t, apperr.KindModelNotReady, apperr.KindOf(err))

	// No labels at all in the window.
	_, err = NewRegime(RegimeLabels{Times: times, Labels: []float64{nan, nan, nan, nan}}, times[0], times[3], 2)
	assert.True(t, apperr.Is(err, apperr.CodeModelNotReady))

	// Window outside of the labelled range.
	_, err = NewRegime(RegimeLabels{Times: times, Labels: []float64{1, 1, 1, 1}}, times[3].Add(time.Hour), times[3].Add(5*time.Hour), 2)
	assert.True(t, apperr.Is(err, apperr.CodeModelNotReady))
}

func TestRegimeSizeForUnknownTime(t *testing.T) {
	times := hourly(2)
	r, err := NewRegime(RegimeLabels{Times: times, Labels: []float64{1, 1}}, times[0], times[1], 1)
	require.NoError(t, err)

	_, err = r.SizeFor(times[1].Add(time.Hour), 100)
	assert.True(t, apperr.Is(err, apperr.CodeModelNotReady))
}

func TestRegimeInvalidLookback(t *testing.T) {
	_, err := NewRegime(RegimeLabels{}, time.Time{}, time.Time{}, 0)
	assert.True(t, apperr.Is(err, apperr.CodeInvalidRange))
}
