package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/gdtan02/swift-trader/internal/apperr"
)

// Compile-time interface check.
var _ RunStore = (*BoltStore)(nil)

const (
	bucketRuns    = "runs"
	bucketRunTime = "runs_by_time"
)

// BoltStore implements RunStore in a single bbolt file. Runs are stored as
// JSON under their ID, with a second bucket ordering IDs by creation time.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (or creates) the bbolt database at path.
func NewBoltStore(path string) (*BoltStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}
	s := &BoltStore{db: db}
	if err := s.ensureBuckets(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *BoltStore) ensureBuckets() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, name := range []string{bucketRuns, bucketRunTime} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
}

// Close closes the database file.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// timeKey orders runs by creation time, ties broken by ID.
func timeKey(created time.Time, id string) []byte {
	k := make([]byte, 8, 8+len(id))
	binary.BigEndian.PutUint64(k, uint64(created.UnixNano()))
	return append(k, id...)
}

// SaveRun stores run. IDs are unique.
func (s *BoltStore) SaveRun(_ context.Context, run *RunRecord) error {
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("encoding run %s: %w", run.ID, err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		runs := tx.Bucket([]byte(bucketRuns))
		if runs.Get([]byte(run.ID)) != nil {
			return fmt.Errorf("run %s already exists", run.ID)
		}
		if err := runs.Put([]byte(run.ID), data); err != nil {
			return err
		}
		return tx.Bucket([]byte(bucketRunTime)).Put(timeKey(run.CreatedAt, run.ID), []byte(run.ID))
	})
}

// GetRun retrieves a run by ID. An unknown ID yields run/not-found.
func (s *BoltStore) GetRun(_ context.Context, id string) (*RunRecord, error) {
	var run RunRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(bucketRuns)).Get([]byte(id))
		if v == nil {
			return apperr.Newf(apperr.CodeRunNotFound, "run %s", id)
		}
		return json.Unmarshal(v, &run)
	})
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// ListRuns returns the most recent runs, newest first, summarised from
// their first result. A non-positive limit defaults to 50.
func (s *BoltStore) ListRuns(_ context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	out := make([]RunSummary, 0, limit)
	err := s.db.View(func(tx *bolt.Tx) error {
		runs := tx.Bucket([]byte(bucketRuns))
		c := tx.Bucket([]byte(bucketRunTime)).Cursor()
		for k, id := c.Last(); k != nil && len(out) < limit; k, id = c.Prev() {
			v := runs.Get(id)
			if v == nil {
				continue
			}
			var run RunRecord
			if err := json.Unmarshal(v, &run); err != nil {
				return fmt.Errorf("decoding run %s: %w", id, err)
			}
			out = append(out, summarize(&run))
		}
		return nil
	})
	return out, err
}

func summarize(run *RunRecord) RunSummary {
	sum := RunSummary{
		ID:        run.ID,
		CreatedAt: run.CreatedAt,
		Strategy:  run.Strategy,
		Symbol:    run.Symbol,
		Timeframe: run.Timeframe,
	}
	if len(run.Results) > 0 {
		first := run.Results[0]
		sum.TotalReturnPct = first.Performance.TotalReturnPct
		sum.SharpeRatio = first.Performance.SharpeRatio
		sum.TotalTrades = first.Statistics.TotalTrades
	}
	return sum
}
