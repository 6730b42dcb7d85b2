package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"dongpa/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface checks.
var _ RunStore = (*SQLiteStore)(nil)

// createdAtLayout is fixed-width so that created_at sorts lexically.
const createdAtLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteStore implements RunStore backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		id               TEXT PRIMARY KEY,
		created_at       TEXT NOT NULL,
		symbol           TEXT NOT NULL,
		mode             TEXT NOT NULL,
		divisions        INTEGER NOT NULL,
		capital          REAL NOT NULL,
		period_start     TEXT NOT NULL,
		period_end       TEXT NOT NULL,
		days             INTEGER NOT NULL,
		total_trades     INTEGER NOT NULL,
		buy_trades       INTEGER NOT NULL,
		sell_trades      INTEGER NOT NULL,
		win_rate         REAL NOT NULL,
		avg_win          REAL NOT NULL,
		avg_loss         REAL NOT NULL,
		total_commission REAL NOT NULL,
		final_return     REAL NOT NULL,
		max_drawdown     REAL NOT NULL,
		sharpe_ratio     REAL NOT NULL,
		score            REAL NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at)`,
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, applies the
// schema and returns a ready-to-use SQLiteStore.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// Serialise access through a single connection.
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

const runColumns = `id, created_at, symbol, mode, divisions, capital,
	period_start, period_end, days,
	total_trades, buy_trades, sell_trades, win_rate, avg_win, avg_loss,
	total_commission, final_return, max_drawdown, sharpe_ratio, score`

// SaveRun inserts a new run into the database.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *Run) error {
	sm := run.Summary
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (`+runColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.CreatedAt.UTC().Format(createdAtLayout), run.Symbol,
		string(run.Config.Mode), run.Config.Divisions, run.Config.InitialCapital,
		run.PeriodStart, run.PeriodEnd, run.Days,
		sm.TotalTrades, sm.BuyTrades, sm.SellTrades, sm.WinRate, sm.AvgWin, sm.AvgLoss,
		sm.TotalCommission, sm.FinalReturn, sm.MaxDrawdown, sm.SharpeRatio, run.Score,
	)
	if err != nil {
		return fmt.Errorf("saving run %s: %w", run.ID, err)
	}
	return nil
}

// GetRun retrieves a single run by its ID.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, ErrRunNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading run %s: %w", id, err)
	}
	return run, nil
}

// ListRuns returns the most recent runs, newest first. A non-positive limit
// returns every run.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("listing runs: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*Run, error) {
	var (
		run       Run
		createdAt string
		mode      string
	)
	sm := &run.Summary
	err := sc.Scan(
		&run.ID, &createdAt, &run.Symbol, &mode, &run.Config.Divisions, &run.Config.InitialCapital,
		&run.PeriodStart, &run.PeriodEnd, &run.Days,
		&sm.TotalTrades, &sm.BuyTrades, &sm.SellTrades, &sm.WinRate, &sm.AvgWin, &sm.AvgLoss,
		&sm.TotalCommission, &sm.FinalReturn, &sm.MaxDrawdown, &sm.SharpeRatio, &run.Score,
	)
	if err != nil {
		return nil, err
	}
	run.Config.Mode = domain.Mode(mode)
	if run.CreatedAt, err = time.Parse(createdAtLayout, createdAt); err != nil {
		return nil, fmt.Errorf("run %s: bad created_at %q: %w", run.ID, createdAt, err)
	}
	return &run, nil
}
