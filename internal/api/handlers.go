package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/gdtan02/swift-trader/internal/apperr"
	"github.com/gdtan02/swift-trader/internal/backtest"
	"github.com/gdtan02/swift-trader/internal/store"
)

// Backtester is the service behind the gateway.
type Backtester interface {
	Run(ctx context.Context, req backtest.Request) (*backtest.Response, error)
	Sweep(ctx context.Context, base backtest.Request, grid backtest.Grid) (*backtest.SweepResponse, error)
	GetRun(ctx context.Context, id string) (*store.RunRecord, error)
	ListRuns(ctx context.Context, limit int) ([]store.RunSummary, error)
	Strategies() []string
}

// Compile-time interface check.
var _ Backtester = (*backtest.Service)(nil)

// Envelope wraps every HTTP response body.
type Envelope struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorBody `json:"error,omitempty"`
}

// ErrorBody is the error member of a failed Envelope.
type ErrorBody struct {
	Code    apperr.Code `json:"code"`
	Message string      `json:"message"`
	Details string      `json:"details,omitempty"`
}

// Handler serves the backtest routes.
type Handler struct {
	svc Backtester
}

// NewHandler creates a Handler backed by svc.
func NewHandler(svc Backtester) *Handler {
	return &Handler{svc: svc}
}

// SimulateTrade runs one backtest.
func (h *Handler) SimulateTrade(c *gin.Context) {
	var req backtest.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, bindError(err))
		return
	}
	resp, err := h.svc.Run(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	writeData(c, http.StatusOK, resp)
}

// Sweep runs a parameter sweep.
func (h *Handler) Sweep(c *gin.Context) {
	var req backtest.SweepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, bindError(err))
		return
	}
	resp, err := h.svc.Sweep(c.Request.Context(), req.Request, req.Grid)
	if err != nil {
		writeError(c, err)
		return
	}
	writeData(c, http.StatusOK, resp)
}

// ListRuns lists recent runs. The optional limit query parameter must be a
// positive integer.
func (h *Handler) ListRuns(c *gin.Context) {
	limit := 0
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(c, apperr.Newf(apperr.CodeInvalidRange, "limit %q must be a positive integer", v))
			return
		}
		limit = n
	}
	runs, err := h.svc.ListRuns(c.Request.Context(), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	writeData(c, http.StatusOK, runs)
}

// GetRun returns one stored run.
func (h *Handler) GetRun(c *gin.Context) {
	run, err := h.svc.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	writeData(c, http.StatusOK, run)
}

// Strategies lists the registered strategy names.
func (h *Handler) Strategies(c *gin.Context) {
	writeData(c, http.StatusOK, h.svc.Strategies())
}

// Health reports liveness.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func writeData(c *gin.Context, status int, data any) {
	c.JSON(status, Envelope{Success: true, Data: data})
}

// writeError maps err to its coded status. Errors without a code are
// reported as internal.
func writeError(c *gin.Context, err error) {
	body := ErrorBody{Code: apperr.CodeInternal}
	if ae, ok := apperr.As(err); ok {
		body.Code, body.Message, body.Details = ae.Code, ae.Message, ae.Details
	} else {
		internal := apperr.New(apperr.CodeInternal)
		body.Message, body.Details = internal.Message, err.Error()
	}
	_ = c.Error(err)
	c.JSON(apperr.HTTPStatus(body.Code), Envelope{Success: false, Error: &body})
}

// bindError keeps coded errors raised while decoding (dates) and wraps the
// rest as an invalid body.
func bindError(err error) error {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return ae
	}
	return apperr.New(apperr.CodeInvalidRequest).WithDetails(err.Error())
}
