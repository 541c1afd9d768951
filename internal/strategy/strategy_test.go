package strategy

import (
	"context"
	"math"
	"testing"

	"github.com/gdtan02/swift-trader/internal/apperr"
	"github.com/gdtan02/swift-trader/internal/domain"
	"github.com/gdtan02/swift-trader/internal/marketdata"
)

// stubStrategy is a minimal Strategy implementation used in registry tests.
type stubStrategy struct {
	name string
}

func (s *stubStrategy) Name() string      { return s.name }
func (s *stubStrategy) Columns() []string { return nil }
func (s *stubStrategy) GenerateSignals(_ context.Context, t *marketdata.Table) ([]domain.Signal, error) {
	return make([]domain.Signal, t.Len()), nil
}

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	s := &stubStrategy{name: "test-strategy"}

	r.Register(s)

	got, ok := r.Get("test-strategy")
	if !ok {
		t.Fatal("Get returned false for registered strategy")
	}
	if got.Name() != "test-strategy" {
		t.Errorf("Get returned strategy with Name() = %q, want %q", got.Name(), "test-strategy")
	}
}

func TestRegistryGet_NotFound(t *testing.T) {
	r := NewRegistry()
	_, ok := r.Get("nonexistent")
	if ok {
		t.Error("Get returned true for unregistered strategy")
	}

	_, err := r.Resolve("cnn")
	if !apperr.Is(err, apperr.CodeStrategyNotFound) {
		t.Errorf("Resolve(cnn) err = %v, want %s", err, apperr.CodeStrategyNotFound)
	}
}

func TestRegistryList(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubStrategy{name: "beta"})
	r.Register(&stubStrategy{name: "alpha"})

	names := r.List()
	if len(names) != 2 {
		t.Fatalf("List returned %d names, want 2", len(names))
	}
	// List returns sorted names.
	if names[0] != "alpha" || names[1] != "beta" {
		t.Errorf("List returned %v, want [alpha beta]", names)
	}
}

func TestSignalsFromValues(t *testing.T) {
	got := SignalsFromValues([]float64{0.7, 0, -2, math.NaN(), 1})
	want := []domain.Signal{1, 0, -1, 0, 1}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("signal[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}
