package swifttrader

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gdtan02/swift-trader/internal/backtest"
	"github.com/gdtan02/swift-trader/internal/store"
)

func writeEnvelope(w http.ResponseWriter, status int, body map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func TestNewClient(t *testing.T) {
	c := NewClient("http://localhost:8080/")
	require.NotNil(t, c)
	assert.Equal(t, "http://localhost:8080", c.baseURL)
	assert.NotNil(t, c.httpClient)
}

func TestRunBacktest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/backtest/simulate-trade", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req backtest.Request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "momentum", req.StrategyName)
		assert.Equal(t, "AAPL", req.Symbol)

		writeEnvelope(w, http.StatusOK, map[string]any{
			"success": true,
			"data": map[string]any{
				"runId": "run-1",
				"backtestResult": map[string]any{
					"label":     "backtest",
					"finalCash": 110000.0,
					"performanceMetrics": map[string]any{
						"totalReturnPct": 0.1,
						"sharpeRatio":    nil,
					},
				},
			},
		})
	}))
	defer srv.Close()

	resp, err := NewClient(srv.URL).RunBacktest(context.Background(), backtest.Request{StrategyName: "momentum", Symbol: "AAPL"})
	require.NoError(t, err)
	assert.Equal(t, "run-1", resp.RunID)
	require.NotNil(t, resp.BacktestResult)
	assert.Equal(t, 110000.0, resp.BacktestResult.FinalCash)
	assert.InDelta(t, 0.1, resp.BacktestResult.Performance.TotalReturnPct, 1e-12)
	assert.Nil(t, resp.BacktestResult.Performance.SharpeRatio)
	assert.Nil(t, resp.ForwardTestResult)
}

func TestAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusNotFound, map[string]any{
			"success": false,
			"error": map[string]any{
				"code":    "run/not-found",
				"message": "Run not found.",
				"details": "missing",
			},
		})
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).GetRun(context.Background(), "missing")
	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, "run/not-found", apiErr.Code)
	assert.Equal(t, "Run not found.", apiErr.Message)
	assert.Contains(t, err.Error(), "404")
}

func TestNonEnvelopeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Strategies(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.Equal(t, "bad gateway", apiErr.Message)
}

func TestListRunsAndStrategies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/backtest/runs":
			assert.Equal(t, "5", r.URL.Query().Get("limit"))
			writeEnvelope(w, http.StatusOK, map[string]any{
				"success": true,
				"data":    []store.RunSummary{{ID: "a", Symbol: "AAPL", TotalTrades: 2}},
			})
		case "/api/v1/strategies":
			writeEnvelope(w, http.StatusOK, map[string]any{
				"success": true,
				"data":    []string{"momentum", "regime"},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	runs, err := c.ListRuns(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "a", runs[0].ID)
	assert.Equal(t, 2, runs[0].TotalTrades)

	names, err := c.Strategies(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"momentum", "regime"}, names)
}
