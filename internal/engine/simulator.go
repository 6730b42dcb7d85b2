package engine

import (
	"fmt"

	"dongpa/internal/domain"
)

// Result is the output of a full backtest run.
type Result struct {
	Trades []domain.Trade
	Final  Portfolio
}

// Simulator replays a bar series through the dongpa rules. It holds only
// immutable configuration, so one Simulator may serve concurrent runs.
type Simulator struct {
	cfg  domain.StrategyConfig
	eval Evaluator
}

// NewSimulator creates a Simulator for cfg.
func NewSimulator(cfg domain.StrategyConfig) (*Simulator, error) {
	eval, err := NewEvaluator(cfg)
	if err != nil {
		return nil, err
	}
	return &Simulator{cfg: cfg, eval: eval}, nil
}

// Config returns the configuration the simulator was built with.
func (s *Simulator) Config() domain.StrategyConfig { return s.cfg }

// Evaluator returns the signal evaluator shared by Run and LiveSignal.
func (s *Simulator) Evaluator() Evaluator { return s.eval }

// Run replays bars in order from a fresh portfolio, executing at most one
// action per bar, and returns one ledger row per bar. Bars must be sorted by
// date ascending. A bar with a non-positive price aborts the run.
func (s *Simulator) Run(bars []domain.Bar) (Result, error) {
	p := NewPortfolio(s.cfg.InitialCapital)
	trades := make([]domain.Trade, 0, len(bars))

	for i, bar := range bars {
		if err := bar.Validate(); err != nil {
			return Result{}, fmt.Errorf("bar %d: %w", i, err)
		}
		var t domain.Trade
		p, t = s.step(p, bar)
		trades = append(trades, t)
	}

	return Result{Trades: trades, Final: p}, nil
}

// step evaluates and executes one bar, then records the post-trade snapshot.
func (s *Simulator) step(p Portfolio, bar domain.Bar) (Portfolio, domain.Trade) {
	t := domain.Trade{
		Date:          bar.Day(),
		Price:         bar.Price,
		ChangePercent: bar.ChangePercent,
		Action:        domain.ActionHold,
	}

	var fill Fill
	switch d := s.eval.Decide(p, bar); d.Action {
	case domain.ActionBuy:
		p, fill = ExecuteBuy(p, bar.Price, d.Quantity, d.Amount)
	case domain.ActionSell:
		p, fill = ExecuteSell(p, bar.Price)
	}
	if fill.Action != "" {
		t.Action = fill.Action
		t.Quantity = fill.Quantity
		t.Amount = fill.Amount
		t.Commission = fill.Commission
		t.Profit = fill.Profit
	}

	dd := p.markToMarket(bar.Price)

	t.Cash = p.Cash
	t.Holdings = p.Holdings
	t.AvgPrice = p.AvgPrice
	t.CurrentValue = p.MarketValue(bar.Price)
	t.TotalAssets = p.Cash + t.CurrentValue
	t.ReturnRate = s.returnRate(t.TotalAssets)
	if dd > 0 {
		t.Drawdown = -dd * 100
	}
	return p, t
}

func (s *Simulator) returnRate(totalAssets float64) float64 {
	return (totalAssets - s.cfg.InitialCapital) / s.cfg.InitialCapital * 100
}
