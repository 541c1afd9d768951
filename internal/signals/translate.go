// Package signals converts a raw per-bar signal series into a position
// series and a trade trigger series.
package signals

import (
	"strings"

	"github.com/gdtan02/swift-trader/internal/apperr"
	"github.com/gdtan02/swift-trader/internal/domain"
)

// Policy selects how signals become positions.
type Policy string

const (
	// TrendFollowing holds the most recent non-zero signal until the next one.
	TrendFollowing Policy = "trend-following"
	// MeanReversion uses each bar's signal directly.
	MeanReversion Policy = "mean-reversion"
)

// ParsePolicy maps a selector string to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case TrendFollowing, MeanReversion:
		return p, nil
	}
	return "", apperr.Newf(apperr.CodeInvalidEntryExitLogic, "got %q", s)
}

// Action is what the engine should do at a bar.
type Action int

const (
	ActionNone Action = iota
	ActionEnterLong
	ActionLiquidate
)

func (a Action) String() string {
	switch a {
	case ActionEnterLong:
		return "enter-long"
	case ActionLiquidate:
		return "liquidate"
	}
	return "none"
}

// Translation is the translator output, index-aligned with the input
// signals.
type Translation struct {
	Positions []domain.Signal
	Triggers  []int
}

// Len returns the number of bars.
func (t Translation) Len() int {
	return len(t.Positions)
}

// Action returns the action for bar i. A trigger fires the action implied
// by the position at that bar; a trigger into a flat position does nothing.
func (t Translation) Action(i int) Action {
	if t.Triggers[i] == 0 {
		return ActionNone
	}
	switch t.Positions[i] {
	case domain.SignalLong:
		return ActionEnterLong
	case domain.SignalShort:
		return ActionLiquidate
	}
	return ActionNone
}

// Translate applies policy to sigs.
func Translate(policy Policy, sigs []domain.Signal) (Translation, error) {
	for i, s := range sigs {
		if !s.Valid() {
			return Translation{}, apperr.Newf(apperr.CodeInvalidSignal, "bar %d has signal %d", i, s)
		}
	}

	var pos []domain.Signal
	switch policy {
	case TrendFollowing:
		pos = carryForward(sigs)
	case MeanReversion:
		pos = append([]domain.Signal(nil), sigs...)
	default:
		return Translation{}, apperr.Newf(apperr.CodeInvalidEntryExitLogic, "got %q", policy)
	}
	return Translation{Positions: pos, Triggers: triggers(pos)}, nil
}

// carryForward scans sigs keeping the last non-zero value seen.
func carryForward(sigs []domain.Signal) []domain.Signal {
	out := make([]domain.Signal, len(sigs))
	last := domain.SignalHold
	for i, s := range sigs {
		if s != domain.SignalHold {
			last = s
		}
		out[i] = last
	}
	return out
}

func triggers(pos []domain.Signal) []int {
	out := make([]int, len(pos))
	prev := domain.SignalHold
	for i, p := range pos {
		d := int(p) - int(prev)
		if d < 0 {
			d = -d
		}
		out[i] = d
		prev = p
	}
	return out
}
