// Package service wires bar sources, the strategy engine and the run archive
// into the operations exposed by the HTTP, gRPC and CLI front ends.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"dongpa/internal/config"
	"dongpa/internal/domain"
	"dongpa/internal/engine"
	"dongpa/internal/market"
	"dongpa/internal/store"
	"dongpa/internal/strategy"
)

// ErrNoSource is returned when an operation needs bars but no source is
// configured.
var ErrNoSource = errors.New("no bar source configured")

// Options configures a Service. Runs and Ledgers are optional.
type Options struct {
	Symbol           string
	Defaults         domain.StrategyConfig
	BacktestDays     int
	SignalDays       int
	CompareDivisions []int

	Source  market.BarSource
	Runs    store.RunStore
	Ledgers store.LedgerStore
	Log     *slog.Logger
}

// OptionsFromConfig fills the scalar options from cfg. Stores and the bar
// source are left for the caller.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	def, err := cfg.Strategy.ToStrategyConfig()
	if err != nil {
		return Options{}, err
	}
	return Options{
		Symbol:           cfg.Strategy.Symbol,
		Defaults:         def,
		BacktestDays:     cfg.Strategy.BacktestDays,
		SignalDays:       cfg.Strategy.SignalDays,
		CompareDivisions: cfg.Strategy.CompareDivisions,
	}, nil
}

// Service runs signals, backtests, comparisons and reports for one symbol.
// It is safe for concurrent use.
type Service struct {
	symbol       string
	defaults     domain.StrategyConfig
	backtestDays int
	signalDays   int

	source  market.BarSource
	runs    store.RunStore
	ledgers store.LedgerStore

	bt  *strategy.Backtester
	cmp *strategy.Comparator
	log *slog.Logger

	newID func() string
	now   func() time.Time
}

// New creates a Service from opts.
func New(opts Options) *Service {
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	symbol := strings.ToUpper(opts.Symbol)
	if symbol == "" {
		symbol = "SOXL"
	}
	backtestDays := opts.BacktestDays
	if backtestDays == 0 {
		backtestDays = 90
	}
	signalDays := opts.SignalDays
	if signalDays == 0 {
		signalDays = 10
	}
	bt := strategy.NewBacktester(log)
	return &Service{
		symbol:       symbol,
		defaults:     opts.Defaults,
		backtestDays: backtestDays,
		signalDays:   signalDays,
		source:       opts.Source,
		runs:         opts.Runs,
		ledgers:      opts.Ledgers,
		bt:           bt,
		cmp:          strategy.NewComparator(bt, opts.CompareDivisions, log),
		log:          log.With("component", "service"),
		newID:        uuid.NewString,
		now:          time.Now,
	}
}

// Symbol returns the traded symbol.
func (s *Service) Symbol() string { return s.symbol }

// Describe returns the description of the named mode.
func (s *Service) Describe(mode string) (domain.Description, error) {
	m, err := domain.ParseMode(mode)
	if err != nil {
		return domain.Description{}, err
	}
	d, _ := m.Describe()
	return d, nil
}

// SignalResult is a live signal together with the bar it was computed on.
type SignalResult struct {
	Symbol        string                `json:"symbol"`
	Date          string                `json:"date,omitempty"`
	Price         float64               `json:"price,omitempty"`
	ChangePercent float64               `json:"changePercent"`
	Config        domain.StrategyConfig `json:"config"`
	engine.LiveSignal
}

// Signal replays the most recent signal window under cfg and projects the
// next action.
func (s *Service) Signal(ctx context.Context, cfg domain.StrategyConfig) (*SignalResult, error) {
	cfg = s.withDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	sim, err := engine.NewSimulator(cfg)
	if err != nil {
		return nil, err
	}
	bars, err := s.bars(ctx, s.signalDays)
	if err != nil {
		return nil, err
	}
	sig, err := sim.LiveSignal(bars)
	if err != nil {
		return nil, err
	}

	out := &SignalResult{Symbol: s.symbol, Config: cfg, LiveSignal: sig}
	if n := len(bars); n > 0 {
		latest := bars[n-1]
		out.Date = latest.Day()
		out.Price = latest.Price
		out.ChangePercent = latest.ChangePercent
	}
	s.log.Info("signal computed", "mode", cfg.Mode, "divisions", cfg.Divisions, "signal", sig.CurrentSignal)
	return out, nil
}

// BacktestRequest selects the configuration and window of a backtest. Zero
// fields take the configured defaults.
type BacktestRequest struct {
	Config domain.StrategyConfig `json:"config"`
	Days   int                   `json:"days"`
}

// BacktestRun is a backtest result with its archive id. RunID is empty when
// no run store is configured.
type BacktestRun struct {
	RunID  string `json:"runId,omitempty"`
	Symbol string `json:"symbol"`
	*strategy.BacktestResult
}

// Backtest runs a full backtest and archives it when a run store is
// configured.
func (s *Service) Backtest(ctx context.Context, req BacktestRequest) (*BacktestRun, error) {
	res, err := s.backtest(ctx, req)
	if err != nil {
		return nil, err
	}
	out := &BacktestRun{Symbol: s.symbol, BacktestResult: res}
	if out.RunID, err = s.archive(ctx, res); err != nil {
		return nil, err
	}
	return out, nil
}

// Report runs a backtest and derives its performance report.
func (s *Service) Report(ctx context.Context, req BacktestRequest) (*strategy.Report, error) {
	res, err := s.backtest(ctx, req)
	if err != nil {
		return nil, err
	}
	r := strategy.GenerateReport(res)
	return &r, nil
}

// CompareRequest selects the capital and window of a grid comparison.
type CompareRequest struct {
	InitialCapital float64 `json:"initialCapital"`
	Days           int     `json:"days"`
}

// Compare backtests every grid configuration over the same window.
func (s *Service) Compare(ctx context.Context, req CompareRequest) (*strategy.Comparison, error) {
	capital := req.InitialCapital
	if capital == 0 {
		capital = s.defaults.InitialCapital
	}
	if !(capital > 0) {
		return nil, fmt.Errorf("%w: initialCapital must be positive, got %v", domain.ErrInvalidConfig, capital)
	}
	days, err := s.window(req.Days)
	if err != nil {
		return nil, err
	}
	bars, err := s.bars(ctx, days)
	if err != nil {
		return nil, err
	}
	return s.cmp.Compare(ctx, bars, capital)
}

// RunDetail is an archived run with its exported ledger, when available.
type RunDetail struct {
	store.Run
	Trades []domain.Trade `json:"trades,omitempty"`
}

// Runs lists archived runs, newest first.
func (s *Service) Runs(ctx context.Context, limit int) ([]store.Run, error) {
	if s.runs == nil {
		return nil, nil
	}
	return s.runs.ListRuns(ctx, limit)
}

// Run loads one archived run and its ledger.
func (s *Service) Run(ctx context.Context, id string) (*RunDetail, error) {
	if s.runs == nil {
		return nil, fmt.Errorf("run %s: %w", id, store.ErrRunNotFound)
	}
	run, err := s.runs.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}
	out := &RunDetail{Run: *run}
	if s.ledgers != nil {
		trades, err := s.ledgers.ReadLedger(ctx, id)
		switch {
		case err == nil:
			out.Trades = trades
		case errors.Is(err, store.ErrRunNotFound):
		default:
			return nil, err
		}
	}
	return out, nil
}

// Bars returns the most recent days bars of the symbol, days defaulting to
// the backtest window.
func (s *Service) Bars(ctx context.Context, days int) ([]domain.Bar, error) {
	if days == 0 {
		days = s.backtestDays
	}
	if days < 1 || days > config.MaxBacktestDays {
		return nil, fmt.Errorf("%w: days must be in [1, %d], got %d", domain.ErrInvalidConfig, config.MaxBacktestDays, days)
	}
	return s.bars(ctx, days)
}

func (s *Service) backtest(ctx context.Context, req BacktestRequest) (*strategy.BacktestResult, error) {
	cfg := s.withDefaults(req.Config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	days, err := s.window(req.Days)
	if err != nil {
		return nil, err
	}
	bars, err := s.bars(ctx, days)
	if err != nil {
		return nil, err
	}
	return s.bt.Run(ctx, bars, cfg)
}

func (s *Service) archive(ctx context.Context, res *strategy.BacktestResult) (string, error) {
	if s.runs == nil {
		return "", nil
	}
	id := s.newID()
	run := &store.Run{
		ID:          id,
		CreatedAt:   s.now().UTC(),
		Symbol:      s.symbol,
		Config:      res.Config,
		PeriodStart: res.Period.Start,
		PeriodEnd:   res.Period.End,
		Days:        res.Period.Days,
		Summary:     res.Summary,
		Score:       strategy.PerformanceOf(res.Summary).Score(),
	}
	if err := s.runs.SaveRun(ctx, run); err != nil {
		return "", err
	}
	if s.ledgers != nil {
		if err := s.ledgers.WriteLedger(ctx, id, res.Trades); err != nil {
			return "", err
		}
	}
	s.log.Info("backtest archived", "run", id, "mode", res.Config.Mode, "divisions", res.Config.Divisions,
		"finalReturn", res.Summary.FinalReturn)
	return id, nil
}

// withDefaults fills zero fields of cfg from the configured defaults.
func (s *Service) withDefaults(cfg domain.StrategyConfig) domain.StrategyConfig {
	if cfg.InitialCapital == 0 {
		cfg.InitialCapital = s.defaults.InitialCapital
	}
	if cfg.Divisions == 0 {
		cfg.Divisions = s.defaults.Divisions
	}
	if cfg.Mode == "" {
		cfg.Mode = s.defaults.Mode
	}
	return cfg
}

func (s *Service) window(days int) (int, error) {
	if days == 0 {
		return s.backtestDays, nil
	}
	if days < config.MinBacktestDays || days > config.MaxBacktestDays {
		return 0, fmt.Errorf("%w: days must be in [%d, %d], got %d",
			domain.ErrInvalidConfig, config.MinBacktestDays, config.MaxBacktestDays, days)
	}
	return days, nil
}

func (s *Service) bars(ctx context.Context, n int) ([]domain.Bar, error) {
	if s.source == nil {
		return nil, ErrNoSource
	}
	bars, err := s.source.RecentBars(ctx, s.symbol, n)
	if err != nil {
		return nil, fmt.Errorf("loading bars: %w", err)
	}
	return bars, nil
}

// Rounded returns the signal with its amounts rounded for display.
func (r SignalResult) Rounded() SignalResult {
	round := func(p *float64) *float64 {
		if p == nil {
			return nil
		}
		v := strategy.Round2(*p)
		return &v
	}
	r.NextBuyPrice = round(r.NextBuyPrice)
	r.NextSellPrice = round(r.NextSellPrice)
	r.CashRemaining = strategy.Round2(r.CashRemaining)
	r.AvgPrice = strategy.Round2(r.AvgPrice)
	r.TotalAssets = strategy.Round2(r.TotalAssets)
	r.ReturnRate = strategy.Round2(r.ReturnRate)
	return r
}

// Rounded returns a copy of the run with its summary rounded for display.
// Ledger rows stay exact.
func (r BacktestRun) Rounded() BacktestRun {
	if r.BacktestResult == nil {
		return r
	}
	res := *r.BacktestResult
	res.Summary = strategy.RoundSummary(res.Summary)
	if res.Trades == nil {
		res.Trades = []domain.Trade{}
	}
	r.BacktestResult = &res
	return r
}
