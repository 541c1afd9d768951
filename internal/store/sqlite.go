package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gdtan02/swift-trader/internal/apperr"
	"github.com/gdtan02/swift-trader/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface check.
var _ RunStore = (*SQLiteStore)(nil)

// SQLiteStore implements RunStore backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// migrations are applied in order on open. Each statement is idempotent.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		id           TEXT PRIMARY KEY,
		created_at   INTEGER NOT NULL,
		strategy     TEXT NOT NULL,
		symbol       TEXT NOT NULL,
		timeframe    TEXT NOT NULL,
		request_json TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS run_results (
		run_id           TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		label            TEXT NOT NULL,
		start_ms         INTEGER NOT NULL,
		end_ms           INTEGER NOT NULL,
		total_return_pct REAL NOT NULL,
		sharpe           REAL,
		total_trades     INTEGER NOT NULL,
		performance_json TEXT NOT NULL,
		statistics_json  TEXT NOT NULL,
		PRIMARY KEY (run_id, label)
	)`,
	`CREATE TABLE IF NOT EXISTS run_orders (
		run_id          TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		label           TEXT NOT NULL,
		seq             INTEGER NOT NULL,
		order_id        TEXT NOT NULL,
		ts_ms           INTEGER NOT NULL,
		symbol          TEXT NOT NULL,
		order_type      TEXT NOT NULL,
		side            TEXT NOT NULL,
		status          TEXT NOT NULL,
		quantity        REAL NOT NULL,
		execution_price REAL NOT NULL,
		execution_ms    INTEGER NOT NULL,
		commission      REAL NOT NULL,
		pnl             REAL,
		cancel_reason   TEXT NOT NULL,
		PRIMARY KEY (run_id, label, seq)
	)`,
	`CREATE INDEX IF NOT EXISTS runs_created_at ON runs(created_at DESC)`,
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, applies
// the schema and returns a ready-to-use SQLiteStore.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// One writer at a time; SQLite serialises writes anyway.
	db.SetMaxOpenConns(1)

	for _, stmt := range migrations {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrating %s: %w", dbPath, err)
		}
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ---------------------------------------------------------------------------
// RunStore implementation
// ---------------------------------------------------------------------------

// SaveRun inserts run, its results and their orders in one transaction.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *RunRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var request any
	if len(run.Request) > 0 {
		request = string(run.Request)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (id, created_at, strategy, symbol, timeframe, request_json) VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.CreatedAt.UnixMilli(), run.Strategy, run.Symbol, run.Timeframe, request,
	); err != nil {
		return fmt.Errorf("inserting run %s: %w", run.ID, err)
	}

	for _, res := range run.Results {
		perf, err := json.Marshal(res.Performance)
		if err != nil {
			return err
		}
		stats, err := json.Marshal(res.Statistics)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO run_results (run_id, label, start_ms, end_ms, total_return_pct, sharpe, total_trades, performance_json, statistics_json)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID, res.Label, res.Start.UnixMilli(), res.End.UnixMilli(),
			res.Performance.TotalReturnPct, nullFloat(res.Performance.SharpeRatio), res.Statistics.TotalTrades,
			string(perf), string(stats),
		); err != nil {
			return fmt.Errorf("inserting %s result of run %s: %w", res.Label, run.ID, err)
		}

		for i, o := range res.Orders {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO run_orders (run_id, label, seq, order_id, ts_ms, symbol, order_type, side, status,
				 quantity, execution_price, execution_ms, commission, pnl, cancel_reason)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				run.ID, res.Label, i, o.ID, o.Timestamp.UnixMilli(), o.Symbol, string(o.Type), string(o.Side), string(o.Status),
				o.Quantity, o.ExecutionPrice, executionMillis(o.ExecutionTime), o.Commission, nullFloat(o.PnL), o.CancelReason,
			); err != nil {
				return fmt.Errorf("inserting order %s of run %s: %w", o.ID, run.ID, err)
			}
		}
	}
	return tx.Commit()
}

// GetRun retrieves a run by ID. An unknown ID yields run/not-found.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*RunRecord, error) {
	var (
		run       RunRecord
		createdMs int64
		request   sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, created_at, strategy, symbol, timeframe, request_json FROM runs WHERE id = ?`, id,
	).Scan(&run.ID, &createdMs, &run.Strategy, &run.Symbol, &run.Timeframe, &request)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.Newf(apperr.CodeRunNotFound, "run %s", id)
	}
	if err != nil {
		return nil, err
	}
	run.CreatedAt = time.UnixMilli(createdMs).UTC()
	if request.Valid {
		run.Request = json.RawMessage(request.String)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT label, start_ms, end_ms, performance_json, statistics_json FROM run_results WHERE run_id = ? ORDER BY rowid`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			res            RunResult
			startMs, endMs int64
			perf, stats    string
		)
		if err := rows.Scan(&res.Label, &startMs, &endMs, &perf, &stats); err != nil {
			return nil, err
		}
		res.Start = time.UnixMilli(startMs).UTC()
		res.End = time.UnixMilli(endMs).UTC()
		if err := json.Unmarshal([]byte(perf), &res.Performance); err != nil {
			return nil, fmt.Errorf("decoding performance of run %s: %w", id, err)
		}
		if err := json.Unmarshal([]byte(stats), &res.Statistics); err != nil {
			return nil, fmt.Errorf("decoding statistics of run %s: %w", id, err)
		}
		run.Results = append(run.Results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range run.Results {
		orders, err := s.listOrders(ctx, id, run.Results[i].Label)
		if err != nil {
			return nil, err
		}
		run.Results[i].Orders = orders
	}
	return &run, nil
}

func (s *SQLiteStore) listOrders(ctx context.Context, runID, label string) ([]domain.Order, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT order_id, ts_ms, symbol, order_type, side, status, quantity, execution_price, execution_ms, commission, pnl, cancel_reason
		 FROM run_orders WHERE run_id = ? AND label = ? ORDER BY seq`, runID, label)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		var (
			o                 domain.Order
			tsMs, execMs      int64
			typ, side, status string
			pnl               sql.NullFloat64
		)
		if err := rows.Scan(&o.ID, &tsMs, &o.Symbol, &typ, &side, &status, &o.Quantity,
			&o.ExecutionPrice, &execMs, &o.Commission, &pnl, &o.CancelReason); err != nil {
			return nil, err
		}
		o.Timestamp = time.UnixMilli(tsMs).UTC()
		if execMs != 0 {
			o.ExecutionTime = time.UnixMilli(execMs).UTC()
		}
		o.Type = domain.OrderType(typ)
		o.Side = domain.OrderSide(side)
		o.Status = domain.OrderStatus(status)
		if pnl.Valid {
			v := pnl.Float64
			o.PnL = &v
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// ListRuns returns the most recent runs, newest first. The summary columns
// come from the first stored result of each run. A non-positive limit
// defaults to 50.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.created_at, r.strategy, r.symbol, r.timeframe,
		       COALESCE(res.total_return_pct, 0), res.sharpe, COALESCE(res.total_trades, 0)
		FROM runs r
		LEFT JOIN run_results res
		  ON res.run_id = r.id
		 AND res.rowid = (SELECT MIN(rowid) FROM run_results WHERE run_id = r.id)
		ORDER BY r.created_at DESC, r.id
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var (
			sum       RunSummary
			createdMs int64
			sharpe    sql.NullFloat64
		)
		if err := rows.Scan(&sum.ID, &createdMs, &sum.Strategy, &sum.Symbol, &sum.Timeframe,
			&sum.TotalReturnPct, &sharpe, &sum.TotalTrades); err != nil {
			return nil, err
		}
		sum.CreatedAt = time.UnixMilli(createdMs).UTC()
		if sharpe.Valid {
			v := sharpe.Float64
			sum.SharpeRatio = &v
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

func nullFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func executionMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}
