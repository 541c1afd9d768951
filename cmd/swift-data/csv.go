package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/gdtan02/swift-trader/internal/backtest"
	"github.com/gdtan02/swift-trader/internal/domain"
)

// csvReader reads a headed CSV file and looks columns up by name.
type csvReader struct {
	r   *csv.Reader
	idx map[string]int
}

func newCSVReader(r io.Reader) (*csvReader, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return &csvReader{r: cr, idx: idx}, nil
}

func (c *csvReader) require(cols ...string) error {
	for _, col := range cols {
		if _, ok := c.idx[col]; !ok {
			return fmt.Errorf("missing column %q", col)
		}
	}
	return nil
}

// float returns the named column of rec; blank cells are NaN.
func (c *csvReader) float(rec []string, col string) (float64, error) {
	i, ok := c.idx[col]
	if !ok || i >= len(rec) {
		return math.NaN(), nil
	}
	s := strings.TrimSpace(rec[i])
	if s == "" {
		return math.NaN(), nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("column %s: %w", col, err)
	}
	return v, nil
}

// readPoints reads a feature column keyed by timeCol.
func readPoints(r io.Reader, timeCol, valueCol string) ([]domain.Point, error) {
	c, err := newCSVReader(r)
	if err != nil {
		return nil, err
	}
	if err := c.require(timeCol, valueCol); err != nil {
		return nil, err
	}

	var pts []domain.Point
	for line := 2; ; line++ {
		rec, err := c.r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		ts, err := backtest.ParseDate(rec[c.idx[timeCol]])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		v, err := c.float(rec, valueCol)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		pts = append(pts, domain.Point{Time: ts.Time, Value: v})
	}
	return pts, nil
}

// readBars reads OHLCV rows. trade_count and vwap are optional.
func readBars(r io.Reader, symbol string) ([]domain.Bar, error) {
	c, err := newCSVReader(r)
	if err != nil {
		return nil, err
	}
	if err := c.require("timestamp", "open", "high", "low", "close", "volume"); err != nil {
		return nil, err
	}

	var bars []domain.Bar
	for line := 2; ; line++ {
		rec, err := c.r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		ts, err := backtest.ParseDate(rec[c.idx["timestamp"]])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		b := domain.Bar{Symbol: symbol, Timestamp: ts.Time}
		fields := []struct {
			col string
			dst *float64
		}{
			{"open", &b.Open}, {"high", &b.High}, {"low", &b.Low},
			{"close", &b.Close}, {"volume", &b.Volume}, {"vwap", &b.VWAP},
		}
		for _, f := range fields {
			v, err := c.float(rec, f.col)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			if math.IsNaN(v) {
				v = 0
			}
			*f.dst = v
		}
		if n, err := c.float(rec, "trade_count"); err == nil && !math.IsNaN(n) {
			b.TradeCount = int64(n)
		}
		bars = append(bars, b)
	}
	return bars, nil
}
