// Package store defines storage interfaces for daily bars, exported trade
// ledgers and the archive of finished backtest runs.
package store

import (
	"context"
	"errors"
	"time"

	"dongpa/internal/domain"
)

// ErrRunNotFound is returned when an archived run id does not exist.
var ErrRunNotFound = errors.New("run not found")

// BarStore persists and retrieves daily bars.
type BarStore interface {
	// WriteBars persists a batch of bars, replacing any stored bar with the
	// same symbol and date.
	WriteBars(ctx context.Context, bars []domain.Bar) error

	// ReadBars returns bars for symbol within [start, end], ascending by date.
	ReadBars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error)

	// LastBars returns up to n of the most recent bars for symbol, ascending.
	LastBars(ctx context.Context, symbol string, n int) ([]domain.Bar, error)

	// ListSymbols returns all symbols with stored bars.
	ListSymbols(ctx context.Context) ([]string, error)
}

// LedgerStore exports and reloads the per-bar ledger of a run.
type LedgerStore interface {
	WriteLedger(ctx context.Context, runID string, trades []domain.Trade) error
	ReadLedger(ctx context.Context, runID string) ([]domain.Trade, error)
}

// Run is an archived backtest: its inputs, date span and summary. The ledger
// itself lives in the LedgerStore under the same id.
type Run struct {
	ID          string                `json:"id"`
	CreatedAt   time.Time             `json:"createdAt"`
	Symbol      string                `json:"symbol"`
	Config      domain.StrategyConfig `json:"config"`
	PeriodStart string                `json:"periodStart"`
	PeriodEnd   string                `json:"periodEnd"`
	Days        int                   `json:"days"`
	Summary     domain.Summary        `json:"summary"`
	Score       float64               `json:"score"`
}

// RunStore archives finished backtests.
type RunStore interface {
	// SaveRun inserts a run. The id must be unique.
	SaveRun(ctx context.Context, run *Run) error

	// GetRun returns the run with id, or ErrRunNotFound.
	GetRun(ctx context.Context, id string) (*Run, error)

	// ListRuns returns the most recent runs, newest first, up to limit.
	ListRuns(ctx context.Context, limit int) ([]Run, error)
}
