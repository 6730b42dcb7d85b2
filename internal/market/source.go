// Package market loads daily bar windows for the strategy: from the local
// parquet store or from the Alpaca market data API.
package market

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"dongpa/internal/domain"
	"dongpa/internal/store"
)

// BarSource returns the most recent n daily bars of a symbol, ascending by
// date, with ChangePercent populated.
type BarSource interface {
	RecentBars(ctx context.Context, symbol string, n int) ([]domain.Bar, error)
}

var hundred = decimal.NewFromInt(100)

// DeriveChange sets each bar's ChangePercent from the previous close, rounded
// to two decimals. The first bar gets 0. bars is modified in place.
func DeriveChange(bars []domain.Bar) []domain.Bar {
	for i := range bars {
		if i == 0 || bars[i-1].Price <= 0 {
			bars[i].ChangePercent = 0
			continue
		}
		prev := decimal.NewFromFloat(bars[i-1].Price)
		cur := decimal.NewFromFloat(bars[i].Price)
		bars[i].ChangePercent = cur.Sub(prev).Div(prev).Mul(hundred).Round(2).InexactFloat64()
	}
	return bars
}

// window derives changes over bars and keeps the last n. Callers load one
// extra bar so that the first kept bar has a real change.
func window(bars []domain.Bar, n int) []domain.Bar {
	bars = DeriveChange(bars)
	if len(bars) > n {
		bars = bars[len(bars)-n:]
	}
	return bars
}

// ParquetSource serves bars previously downloaded into a BarStore.
type ParquetSource struct {
	store store.BarStore
}

var _ BarSource = (*ParquetSource)(nil)

// NewParquetSource creates a ParquetSource over s.
func NewParquetSource(s store.BarStore) *ParquetSource {
	return &ParquetSource{store: s}
}

// RecentBars reads the last n bars of symbol from the store.
func (p *ParquetSource) RecentBars(ctx context.Context, symbol string, n int) ([]domain.Bar, error) {
	if n <= 0 {
		return nil, nil
	}
	bars, err := p.store.LastBars(ctx, symbol, n+1)
	if err != nil {
		return nil, fmt.Errorf("loading %s bars: %w", symbol, err)
	}
	return window(bars, n), nil
}

// Fallback asks Primary first and Secondary when Primary returns fewer than
// n bars or fails.
type Fallback struct {
	Primary   BarSource
	Secondary BarSource
}

var _ BarSource = Fallback{}

// RecentBars implements BarSource.
func (f Fallback) RecentBars(ctx context.Context, symbol string, n int) ([]domain.Bar, error) {
	bars, err := f.Primary.RecentBars(ctx, symbol, n)
	if err == nil && len(bars) >= n {
		return bars, nil
	}
	if f.Secondary == nil {
		return bars, err
	}
	return f.Secondary.RecentBars(ctx, symbol, n)
}
