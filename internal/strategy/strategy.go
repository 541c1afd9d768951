// Package strategy defines the Strategy interface for signal generators and
// provides a Registry for looking them up by name.
package strategy

import (
	"context"
	"math"
	"sort"

	"github.com/gdtan02/swift-trader/internal/apperr"
	"github.com/gdtan02/swift-trader/internal/domain"
	"github.com/gdtan02/swift-trader/internal/marketdata"
)

// Strategy is the interface that all signal generators must implement.
type Strategy interface {
	// Name returns the unique identifier for this strategy.
	Name() string

	// Columns lists the feature columns the strategy reads from the table,
	// beyond the bars themselves.
	Columns() []string

	// GenerateSignals returns one signal per bar of t.
	GenerateSignals(ctx context.Context, t *marketdata.Table) ([]domain.Signal, error)
}

// Registry holds a named collection of strategies for lookup and
// enumeration. It is filled at startup and read-only afterwards.
type Registry struct {
	strategies map[string]Strategy
}

// NewRegistry creates an empty strategy Registry.
func NewRegistry() *Registry {
	return &Registry{
		strategies: make(map[string]Strategy),
	}
}

// Register adds a strategy to the registry, keyed by its Name().
func (r *Registry) Register(s Strategy) {
	r.strategies[s.Name()] = s
}

// Get retrieves a strategy by name. The second return value indicates whether
// the strategy was found.
func (r *Registry) Get(name string) (Strategy, bool) {
	s, ok := r.strategies[name]
	return s, ok
}

// Resolve is Get with a coded error for unknown names.
func (r *Registry) Resolve(name string) (Strategy, error) {
	s, ok := r.Get(name)
	if !ok {
		return nil, apperr.Newf(apperr.CodeStrategyNotFound, "strategy %q", name)
	}
	return s, nil
}

// List returns a sorted slice of all registered strategy names.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.strategies))
	for name := range r.strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SignalsFromValues maps each value to its sign. NaN maps to hold.
func SignalsFromValues(vals []float64) []domain.Signal {
	out := make([]domain.Signal, len(vals))
	for i, v := range vals {
		switch {
		case math.IsNaN(v), v == 0:
			out[i] = domain.SignalHold
		case v > 0:
			out[i] = domain.SignalLong
		default:
			out[i] = domain.SignalShort
		}
	}
	return out
}
