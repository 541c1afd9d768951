// Package sizing decides how much cash to commit to each BUY.
//
// The set of sizers is closed: Fixed and Regime are the only
// implementations, selected through Mode.
package sizing

import (
	"strings"
	"time"

	"github.com/gdtan02/swift-trader/internal/apperr"
)

// Sizer maps (bar time, available cash) to the cash amount for the next BUY.
type Sizer interface {
	// Name identifies the sizing policy.
	Name() string

	// SizeFor returns the cash amount to commit at ts given availableCash.
	SizeFor(ts time.Time, availableCash float64) (float64, error)
}

// Mode selects a Sizer implementation.
type Mode string

const (
	ModeFixed  Mode = "fixed"
	ModeRegime Mode = "regime"
)

// ParseMode maps a selector string to a Mode. "auto" is accepted as an
// alias of regime.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fixed":
		return ModeFixed, nil
	case "regime", "auto":
		return ModeRegime, nil
	}
	return "", apperr.Newf(apperr.CodeInvalidSizingModel, "got %q", s)
}

// ---------------------------------------------------------------------------
// Fixed proportion
// ---------------------------------------------------------------------------

// Compile-time interface check.
var _ Sizer = (*Fixed)(nil)

// Fixed commits a constant proportion of available cash.
type Fixed struct {
	proportion float64
}

// NewFixed returns a Fixed sizer. proportion must lie in (0, 1].
func NewFixed(proportion float64) (*Fixed, error) {
	if !(proportion > 0 && proportion <= 1) {
		return nil, apperr.Newf(apperr.CodeInvalidPositionSize, "proportion %v", proportion)
	}
	return &Fixed{proportion: proportion}, nil
}

// Name returns "fixed".
func (f *Fixed) Name() string { return string(ModeFixed) }

// Proportion returns the configured proportion.
func (f *Fixed) Proportion() float64 { return f.proportion }

// SizeFor returns availableCash × proportion.
func (f *Fixed) SizeFor(_ time.Time, availableCash float64) (float64, error) {
	return availableCash * f.proportion, nil
}
