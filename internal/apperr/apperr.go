// Package apperr defines the coded error type shared by every layer of the
// backtester. Codes are stable, machine-readable strings; messages are for
// humans. The gateway maps codes to transport status codes.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is a stable machine-readable error identifier.
type Code string

// ---------------------------------------------------------------------------
// Error codes
// ---------------------------------------------------------------------------

const (
	CodeInternal Code = "internal/server-error"

	// Configuration errors.
	CodeInvalidDateInterval   Code = "backtest/invalid-date-interval"
	CodeInvalidRuntimeMode    Code = "backtest/invalid-runtime-mode"
	CodeInvalidEntryExitLogic Code = "backtest/invalid-entry-exit-logic"
	CodeInvalidSizingModel    Code = "backtest/invalid-position-sizing-model"
	CodeInvalidPositionSize   Code = "backtest/invalid-position-size"
	CodeInvalidRange          Code = "backtest/invalid-range"
	CodeInvalidBarsPerYear    Code = "backtest/invalid-bars-per-year"
	CodeStrategyNotFound      Code = "backtest/strategy-not-found"
	CodeInvalidThreshold      Code = "strategy/invalid-threshold"

	// Data range errors.
	CodeDateOutOfRange Code = "backtest/date-interval-out-of-range"
	CodeEmptyWindow    Code = "backtest/empty-window"

	// Data and feature errors.
	CodeMissingColumns Code = "feature/missing-columns"
	CodeInvalidData    Code = "feature/invalid-data"
	CodeDataNotFound   Code = "feature/data-not-found"
	CodeFetchFailed    Code = "data/fail-to-fetch-data"
	CodeMissingAPIKey  Code = "data/missing-api-key"
	CodeInvalidSignal  Code = "strategy/invalid-signal"

	// Model readiness.
	CodeModelNotReady Code = "algorithm/model-not-fitted"

	// Order and ledger errors.
	CodeInvalidOrder         Code = "trade/invalid-order"
	CodeInvalidOrderQuantity Code = "trade/invalid-order-quantity"
	CodeInvalidOrderPrice    Code = "trade/invalid-order-price"
	CodeInvalidCommission    Code = "trade/invalid-commission"
	CodeOrderNotPending      Code = "trade/order-not-pending"
	CodeOrderNotFilled       Code = "trade/order-not-filled"
	CodeInsufficientQuantity Code = "trade/insufficient-quantity"

	CodeRunNotFound Code = "run/not-found"

	// Transport errors.
	CodeInvalidRequest Code = "request/invalid-body"
)

// Kind groups codes into the error families the engine distinguishes.
type Kind int

const (
	KindInternal Kind = iota
	KindConfiguration
	KindDataRange
	KindModelNotReady
	KindLedgerInvariant
	KindValidation
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindDataRange:
		return "data-range"
	case KindModelNotReady:
		return "model-not-ready"
	case KindLedgerInvariant:
		return "ledger-invariant"
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not-found"
	default:
		return "internal"
	}
}

type entry struct {
	message string
	status  int
	kind    Kind
}

var registry = map[Code]entry{
	CodeInternal: {"An unexpected error occurred", http.StatusInternalServerError, KindInternal},

	CodeInvalidDateInterval:   {"Invalid date interval. Please look at the error details.", http.StatusBadRequest, KindConfiguration},
	CodeInvalidRuntimeMode:    {"Invalid runtime mode. The system currently supports 'backtest' mode only.", http.StatusBadRequest, KindConfiguration},
	CodeInvalidEntryExitLogic: {"Invalid entry exit logic. The supported entry exit logics are 'mean-reversion' and 'trend-following' only.", http.StatusBadRequest, KindConfiguration},
	CodeInvalidSizingModel:    {"Invalid position sizing model. The supported position sizing models are 'fixed' or 'regime' only.", http.StatusBadRequest, KindConfiguration},
	CodeInvalidPositionSize:   {"Invalid position size. The position size should be greater than 0.0 and not greater than 1.0.", http.StatusBadRequest, KindConfiguration},
	CodeInvalidRange:          {"The value is outside of its valid range.", http.StatusBadRequest, KindConfiguration},
	CodeInvalidBarsPerYear:    {"Bars per year must be a positive integer.", http.StatusBadRequest, KindConfiguration},
	CodeStrategyNotFound:      {"The requested strategy does not exist.", http.StatusNotFound, KindConfiguration},
	CodeInvalidThreshold:      {"Invalid threshold value. Please check the details for the valid range.", http.StatusBadRequest, KindConfiguration},

	CodeDateOutOfRange: {"The starting date or the ending date is outside of valid date interval range.", http.StatusBadRequest, KindDataRange},
	CodeEmptyWindow:    {"The requested window contains no bars.", http.StatusBadRequest, KindDataRange},

	CodeMissingColumns: {"Missing columns required to run the backtest.", http.StatusBadRequest, KindValidation},
	CodeInvalidData:    {"The market data table is malformed.", http.StatusBadRequest, KindValidation},
	CodeDataNotFound:   {"The data does not exist. Please fetch it first.", http.StatusNotFound, KindNotFound},
	CodeFetchFailed:    {"Failed to fetch market data. Please check the error details.", http.StatusBadGateway, KindInternal},
	CodeMissingAPIKey:  {"Failed to fetch market data. Please provide a valid API key.", http.StatusUnauthorized, KindConfiguration},
	CodeInvalidSignal:  {"Signal values must be -1, 0 or 1.", http.StatusBadRequest, KindValidation},

	CodeModelNotReady: {"The regime classifier has not produced labels for the requested range.", http.StatusBadRequest, KindModelNotReady},

	CodeInvalidOrder:         {"Invalid order.", http.StatusBadRequest, KindValidation},
	CodeInvalidOrderQuantity: {"Order quantity must be positive.", http.StatusBadRequest, KindValidation},
	CodeInvalidOrderPrice:    {"Order price must be positive.", http.StatusBadRequest, KindValidation},
	CodeInvalidCommission:    {"Commission fee must not be negative.", http.StatusBadRequest, KindValidation},
	CodeOrderNotPending:      {"Order is already in a terminal state.", http.StatusConflict, KindValidation},
	CodeOrderNotFilled:       {"Only completed orders can be applied to the ledger.", http.StatusInternalServerError, KindLedgerInvariant},
	CodeInsufficientQuantity: {"Sell quantity exceeds the held position.", http.StatusInternalServerError, KindLedgerInvariant},

	CodeRunNotFound: {"The requested run does not exist.", http.StatusNotFound, KindNotFound},

	CodeInvalidRequest: {"The request body could not be decoded.", http.StatusBadRequest, KindValidation},
}

// ---------------------------------------------------------------------------
// Error type
// ---------------------------------------------------------------------------

// Error is a structured application error carrying a stable Code.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
	Cause   error  `json:"-"`
}

func (e *Error) Error() string {
	switch {
	case e.Cause != nil && e.Details != "":
		return fmt.Sprintf("[%s] %s: %s (%v)", e.Code, e.Message, e.Details, e.Cause)
	case e.Cause != nil:
		return fmt.Sprintf("[%s] %s (%v)", e.Code, e.Message, e.Cause)
	case e.Details != "":
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Kind returns the error family of e's code.
func (e *Error) Kind() Kind {
	return registry[e.Code].kind
}

// New creates an Error for code. Unknown codes fall back to CodeInternal.
func New(code Code) *Error {
	ent, ok := registry[code]
	if !ok {
		code = CodeInternal
		ent = registry[CodeInternal]
	}
	return &Error{Code: code, Message: ent.message}
}

// Newf creates an Error for code with formatted details.
func Newf(code Code, format string, args ...any) *Error {
	e := New(code)
	e.Details = fmt.Sprintf(format, args...)
	return e
}

// Wrap creates an Error for code that wraps cause.
func Wrap(code Code, cause error) *Error {
	e := New(code)
	e.Cause = cause
	return e
}

// WithDetails sets the details and returns e.
func (e *Error) WithDetails(details string) *Error {
	e.Details = details
	return e
}

// ---------------------------------------------------------------------------
// Inspection helpers
// ---------------------------------------------------------------------------

// As returns the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// Is reports whether err carries code anywhere in its chain.
func Is(err error, code Code) bool {
	ae, ok := As(err)
	return ok && ae.Code == code
}

// CodeOf returns the code carried by err, CodeInternal for foreign errors
// and "" for nil.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	if ae, ok := As(err); ok {
		return ae.Code
	}
	return CodeInternal
}

// KindOf returns the family of err.
func KindOf(err error) Kind {
	if ae, ok := As(err); ok {
		return ae.Kind()
	}
	return KindInternal
}

// HTTPStatus returns the HTTP status associated with code.
func HTTPStatus(code Code) int {
	if ent, ok := registry[code]; ok {
		return ent.status
	}
	return http.StatusInternalServerError
}
