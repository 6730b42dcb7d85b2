package market

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"dongpa/internal/domain"
	"dongpa/internal/util"
)

// barsClient is the part of *marketdata.Client used here.
type barsClient interface {
	GetBars(symbol string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error)
}

// AlpacaOptions configures an AlpacaSource.
type AlpacaOptions struct {
	APIKey          string
	APISecret       string
	DataURL         string
	Feed            string // "iex" or "sip"
	RateLimitPerMin int
	MaxAttempts     int
}

// AlpacaSource fetches daily bars from the Alpaca market data API with
// retries and client-side rate limiting.
type AlpacaSource struct {
	client      barsClient
	feed        string
	limiter     *util.RateLimiter
	maxAttempts int
	retryDelay  time.Duration
	now         func() time.Time
	log         *slog.Logger
}

var _ BarSource = (*AlpacaSource)(nil)

// NewAlpacaSource creates an AlpacaSource from opts.
func NewAlpacaSource(opts AlpacaOptions, log *slog.Logger) *AlpacaSource {
	copts := marketdata.ClientOpts{
		APIKey:    opts.APIKey,
		APISecret: opts.APISecret,
	}
	if opts.DataURL != "" {
		copts.BaseURL = opts.DataURL
	}
	return newAlpacaSource(marketdata.NewClient(copts), opts, log)
}

func newAlpacaSource(client barsClient, opts AlpacaOptions, log *slog.Logger) *AlpacaSource {
	if log == nil {
		log = slog.Default()
	}
	attempts := opts.MaxAttempts
	if attempts < 1 {
		attempts = 3
	}
	feed := opts.Feed
	if feed == "" {
		feed = "iex"
	}
	return &AlpacaSource{
		client:      client,
		feed:        feed,
		limiter:     util.NewRateLimiter(opts.RateLimitPerMin),
		maxAttempts: attempts,
		retryDelay:  time.Second,
		now:         time.Now,
		log:         log.With("source", "alpaca"),
	}
}

// FetchRange returns raw daily bars for symbol within [start, end]. The
// ChangePercent field is left zero.
func (a *AlpacaSource) FetchRange(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	symbol = strings.ToUpper(symbol)

	var raw []marketdata.Bar
	err := util.Retry(ctx, a.maxAttempts, a.retryDelay, func() error {
		if err := a.limiter.Wait(ctx); err != nil {
			return util.Permanent(err)
		}
		var err error
		raw, err = a.client.GetBars(symbol, marketdata.GetBarsRequest{
			TimeFrame:  marketdata.OneDay,
			Start:      start,
			End:        end,
			Feed:       a.feed,
			Adjustment: marketdata.Split,
		})
		if err != nil {
			a.log.Warn("GetBars failed", "symbol", symbol, "error", err)
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("fetching %s bars: %w", symbol, err)
	}

	bars := make([]domain.Bar, 0, len(raw))
	for _, b := range raw {
		bars = append(bars, domain.Bar{
			Symbol: symbol,
			Date:   time.Date(b.Timestamp.Year(), b.Timestamp.Month(), b.Timestamp.Day(), 0, 0, 0, 0, time.UTC),
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Price:  b.Close,
			Volume: int64(b.Volume),
		})
	}
	a.log.Debug("fetched bars", "symbol", symbol, "count", len(bars))
	return bars, nil
}

// maxLookbackWidenings bounds how often RecentBars doubles its calendar
// lookback before settling for what the feed has.
const maxLookbackWidenings = 4

// RecentBars returns the last n trading days with derived changes. It needs
// n+1 bars so the first kept bar has a real change, and doubles the calendar
// lookback until it gets them or the history stops growing.
func (a *AlpacaSource) RecentBars(ctx context.Context, symbol string, n int) ([]domain.Bar, error) {
	if n <= 0 {
		return nil, nil
	}
	end := a.now().UTC()
	days := n*365/250 + 15

	var bars []domain.Bar
	for i := 0; ; i++ {
		got, err := a.FetchRange(ctx, symbol, end.AddDate(0, 0, -days), end)
		if err != nil {
			return nil, err
		}
		short := len(got) <= n
		exhausted := i > 0 && len(got) == len(bars)
		bars = got
		if !short || exhausted || i == maxLookbackWidenings {
			break
		}
		a.log.Debug("widening lookback", "symbol", symbol, "days", days, "have", len(got), "want", n+1)
		days *= 2
	}
	return window(bars, n), nil
}
