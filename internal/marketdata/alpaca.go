package marketdata

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	alpacamd "github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"github.com/gdtan02/swift-trader/internal/apperr"
	"github.com/gdtan02/swift-trader/internal/domain"
	"github.com/gdtan02/swift-trader/internal/store"
	"github.com/gdtan02/swift-trader/internal/util"
)

// AlpacaConfig holds the credentials and limits of an AlpacaFetcher.
type AlpacaConfig struct {
	APIKey            string
	APISecret         string
	DataURL           string // optional market data base URL override
	Feed              string // stock feed, "sip" or "iex"
	RequestsPerMinute int
	MaxRetries        int
}

// AlpacaFetcher downloads historical bars from the Alpaca market data API
// and writes them to a BarStore. Symbols containing "/" are crypto pairs.
type AlpacaFetcher struct {
	client  *alpacamd.Client
	store   store.BarStore
	limiter *util.RateLimiter
	feed    string
	retries int
	log     *slog.Logger
}

// NewAlpacaFetcher creates an AlpacaFetcher writing into s.
func NewAlpacaFetcher(cfg AlpacaConfig, s store.BarStore, logger *slog.Logger) (*AlpacaFetcher, error) {
	if cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, apperr.Newf(apperr.CodeMissingAPIKey, "alpaca credentials are not set")
	}
	opts := alpacamd.ClientOpts{
		APIKey:    cfg.APIKey,
		APISecret: cfg.APISecret,
	}
	if cfg.DataURL != "" {
		opts.BaseURL = cfg.DataURL
	}
	if cfg.Feed == "" {
		cfg.Feed = "iex"
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 200
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &AlpacaFetcher{
		client:  alpacamd.NewClient(opts),
		store:   s,
		limiter: util.NewRateLimiter(cfg.RequestsPerMinute, 1),
		feed:    cfg.Feed,
		retries: cfg.MaxRetries,
		log:     logger.With("component", "alpaca"),
	}, nil
}

// IsCrypto reports whether symbol names a crypto pair.
func IsCrypto(symbol string) bool {
	return strings.Contains(symbol, "/")
}

// Fetch downloads the bars of symbol in [start, end].
func (f *AlpacaFetcher) Fetch(ctx context.Context, symbol string, tf Timeframe, start, end time.Time) ([]domain.Bar, error) {
	var bars []domain.Bar
	backoff := util.Backoff{Attempts: f.retries, Base: time.Second, Max: 30 * time.Second}
	err := util.Retry(ctx, backoff, func(attempt int) error {
		if err := f.limiter.Wait(ctx); err != nil {
			return util.Permanent(err)
		}
		var err error
		if IsCrypto(symbol) {
			var raw []alpacamd.CryptoBar
			raw, err = f.client.GetCryptoBars(symbol, alpacamd.GetCryptoBarsRequest{
				TimeFrame: tf.Alpaca(),
				Start:     start,
				End:       end,
			})
			bars = fromCryptoBars(symbol, raw)
		} else {
			var raw []alpacamd.Bar
			raw, err = f.client.GetBars(symbol, alpacamd.GetBarsRequest{
				TimeFrame: tf.Alpaca(),
				Start:     start,
				End:       end,
				Feed:      alpacamd.Feed(f.feed),
			})
			bars = fromStockBars(symbol, raw)
		}
		if err != nil {
			f.log.Warn("fetch failed", "symbol", symbol, "attempt", attempt, "error", err)
		}
		return err
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, apperr.Wrap(apperr.CodeFetchFailed, fmt.Errorf("%s: %w", symbol, err))
	}
	return bars, nil
}

// Sync fetches every symbol and writes the bars to the store. It returns the
// number of bars written.
func (f *AlpacaFetcher) Sync(ctx context.Context, symbols []string, tf Timeframe, start, end time.Time) (int, error) {
	total := 0
	for _, sym := range symbols {
		bars, err := f.Fetch(ctx, sym, tf, start, end)
		if err != nil {
			return total, err
		}
		if err := f.store.WriteBars(ctx, string(tf), bars); err != nil {
			return total, fmt.Errorf("storing %s: %w", sym, err)
		}
		total += len(bars)
		f.log.Info("synced", "symbol", sym, "timeframe", tf, "bars", len(bars))
	}
	return total, nil
}

func fromStockBars(symbol string, raw []alpacamd.Bar) []domain.Bar {
	bars := make([]domain.Bar, 0, len(raw))
	for _, ab := range raw {
		bars = append(bars, domain.Bar{
			Symbol:     strings.ToUpper(symbol),
			Timestamp:  ab.Timestamp.UTC(),
			Open:       ab.Open,
			High:       ab.High,
			Low:        ab.Low,
			Close:      ab.Close,
			Volume:     float64(ab.Volume),
			TradeCount: int64(ab.TradeCount),
			VWAP:       ab.VWAP,
		})
	}
	return bars
}

func fromCryptoBars(symbol string, raw []alpacamd.CryptoBar) []domain.Bar {
	bars := make([]domain.Bar, 0, len(raw))
	for _, ab := range raw {
		bars = append(bars, domain.Bar{
			Symbol:     strings.ToUpper(symbol),
			Timestamp:  ab.Timestamp.UTC(),
			Open:       ab.Open,
			High:       ab.High,
			Low:        ab.Low,
			Close:      ab.Close,
			Volume:     ab.Volume,
			TradeCount: int64(ab.TradeCount),
			VWAP:       ab.VWAP,
		})
	}
	return bars
}
