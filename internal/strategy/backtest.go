// Package strategy turns simulation ledgers into results: the backtest
// envelope, summary statistics, the configuration comparator and the
// performance report.
package strategy

import (
	"context"
	"log/slog"

	"dongpa/internal/domain"
	"dongpa/internal/engine"
)

// Period is the date span covered by a backtest.
type Period struct {
	Start string `json:"start"`
	End   string `json:"end"`
	Days  int    `json:"days"`
}

// BacktestResult holds the ledger and summary produced by a backtest run.
type BacktestResult struct {
	Trades  []domain.Trade        `json:"trades"`
	Summary domain.Summary        `json:"summary"`
	Config  domain.StrategyConfig `json:"config"`
	Period  Period                `json:"period"`
}

// Backtester replays bar series through the dongpa simulator and summarizes
// the outcome. It carries no per-run state.
type Backtester struct {
	log *slog.Logger
}

// NewBacktester creates a Backtester. A nil logger falls back to the default.
func NewBacktester(log *slog.Logger) *Backtester {
	if log == nil {
		log = slog.Default()
	}
	return &Backtester{log: log.With("component", "backtester")}
}

// Run executes a full backtest of cfg over bars, which must be sorted by date
// ascending. Empty input produces an empty ledger and a zero summary.
func (bt *Backtester) Run(ctx context.Context, bars []domain.Bar, cfg domain.StrategyConfig) (*BacktestResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sim, err := engine.NewSimulator(cfg)
	if err != nil {
		return nil, err
	}
	res, err := sim.Run(bars)
	if err != nil {
		return nil, err
	}

	out := &BacktestResult{
		Trades:  res.Trades,
		Summary: Summarize(res.Trades),
		Config:  cfg,
		Period:  periodOf(bars),
	}

	bt.log.Debug("backtest complete",
		"mode", cfg.Mode,
		"divisions", cfg.Divisions,
		"bars", len(bars),
		"trades", out.Summary.TotalTrades,
		"finalReturn", out.Summary.FinalReturn,
	)
	return out, nil
}

func periodOf(bars []domain.Bar) Period {
	if len(bars) == 0 {
		return Period{}
	}
	return Period{
		Start: bars[0].Day(),
		End:   bars[len(bars)-1].Day(),
		Days:  len(bars),
	}
}
