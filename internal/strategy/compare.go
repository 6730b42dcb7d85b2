package strategy

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"

	"golang.org/x/sync/errgroup"

	"dongpa/internal/domain"
)

// DefaultCompareDivisions is the division grid used when none is configured.
var DefaultCompareDivisions = []int{5, 7, 10}

// Performance is the subset of a summary used to rank configurations.
type Performance struct {
	FinalReturn float64 `json:"finalReturn"`
	MaxDrawdown float64 `json:"maxDrawdown"`
	WinRate     float64 `json:"winRate"`
	SharpeRatio float64 `json:"sharpeRatio"`
	TotalTrades int     `json:"totalTrades"`
}

// Score ranks a configuration: return plus ten times Sharpe, minus half the
// maximum drawdown.
func (p Performance) Score() float64 {
	return p.FinalReturn + p.SharpeRatio*10 - p.MaxDrawdown/2
}

// ConfigResult is the outcome of one grid cell.
type ConfigResult struct {
	Key         string                `json:"key"`
	Config      domain.StrategyConfig `json:"config"`
	Performance Performance           `json:"performance"`
	Score       float64               `json:"score"`
}

// BestStrategy is the highest-scoring configuration.
type BestStrategy struct {
	Strategy    string                `json:"strategy"`
	Score       float64               `json:"score"`
	Config      domain.StrategyConfig `json:"config"`
	Performance Performance           `json:"performance"`
}

// AveragePerformance averages Performance over a group of configurations.
type AveragePerformance struct {
	FinalReturn float64 `json:"finalReturn"`
	MaxDrawdown float64 `json:"maxDrawdown"`
	WinRate     float64 `json:"winRate"`
	SharpeRatio float64 `json:"sharpeRatio"`
}

func (a AveragePerformance) score() float64 {
	return Performance{FinalReturn: a.FinalReturn, MaxDrawdown: a.MaxDrawdown, SharpeRatio: a.SharpeRatio}.Score()
}

// ModeComparison contrasts the per-mode averages.
type ModeComparison struct {
	Safe           AveragePerformance `json:"safe"`
	Aggressive     AveragePerformance `json:"aggressive"`
	Recommendation domain.Mode        `json:"recommendation"`
}

// DivisionAnalysis holds per-division-count averages keyed by the count.
type DivisionAnalysis struct {
	Results       map[string]AveragePerformance `json:"results"`
	BestDivisions int                           `json:"bestDivisions"`
	Analysis      string                        `json:"analysis"`
}

// AnalysisSummary is the qualitative verdict over the grid.
type AnalysisSummary struct {
	BestMode       domain.Mode `json:"bestMode"`
	BestDivisions  int         `json:"bestDivisions"`
	RiskAssessment string      `json:"riskAssessment"`
}

// Analysis groups the comparator's derived views.
type Analysis struct {
	ModeComparison   ModeComparison   `json:"modeComparison"`
	DivisionAnalysis DivisionAnalysis `json:"divisionAnalysis"`
	Summary          AnalysisSummary  `json:"summary"`
}

// Comparison is the comparator output. Results are in grid order.
type Comparison struct {
	Results      []ConfigResult `json:"results"`
	BestStrategy BestStrategy   `json:"bestStrategy"`
	Analysis     Analysis       `json:"analysis"`
}

const divisionNote = "More divisions add stability at the cost of idle capital."

// Comparator runs the backtest over a mode × divisions grid.
type Comparator struct {
	bt        *Backtester
	divisions []int
	log       *slog.Logger
}

// NewComparator creates a Comparator over divisions (DefaultCompareDivisions
// when empty). The grid is iterated mode-first, divisions ascending; that
// order breaks score ties.
func NewComparator(bt *Backtester, divisions []int, log *slog.Logger) *Comparator {
	if len(divisions) == 0 {
		divisions = DefaultCompareDivisions
	}
	divs := append([]int(nil), divisions...)
	slices.Sort(divs)
	divs = slices.Compact(divs)
	if log == nil {
		log = slog.Default()
	}
	return &Comparator{bt: bt, divisions: divs, log: log.With("component", "comparator")}
}

// Grid returns the configurations compared for capital, in tie-break order.
func (c *Comparator) Grid(capital float64) []domain.StrategyConfig {
	grid := make([]domain.StrategyConfig, 0, len(domain.Modes())*len(c.divisions))
	for _, mode := range domain.Modes() {
		for _, div := range c.divisions {
			grid = append(grid, domain.StrategyConfig{InitialCapital: capital, Divisions: div, Mode: mode})
		}
	}
	return grid
}

// Compare backtests every grid configuration over bars and ranks them. The
// runs share no state and execute concurrently.
func (c *Comparator) Compare(ctx context.Context, bars []domain.Bar, capital float64) (*Comparison, error) {
	grid := c.Grid(capital)
	results := make([]ConfigResult, len(grid))

	g, gctx := errgroup.WithContext(ctx)
	for i, cfg := range grid {
		i, cfg := i, cfg
		g.Go(func() error {
			res, err := c.bt.Run(gctx, bars, cfg)
			if err != nil {
				return fmt.Errorf("%s: %w", configKey(cfg), err)
			}
			perf := PerformanceOf(res.Summary)
			results[i] = ConfigResult{
				Key:         configKey(cfg),
				Config:      cfg,
				Performance: perf,
				Score:       perf.Score(),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &Comparison{
		Results:      results,
		BestStrategy: bestOf(results),
		Analysis:     c.analyze(results),
	}
	c.log.Info("comparison complete",
		"configs", len(results),
		"best", out.BestStrategy.Strategy,
		"score", out.BestStrategy.Score,
	)
	return out, nil
}

func configKey(cfg domain.StrategyConfig) string {
	return fmt.Sprintf("%s_%ddiv", cfg.Mode, cfg.Divisions)
}

// PerformanceOf extracts the ranking fields of s at display precision, so
// scores rank what the summary shows.
func PerformanceOf(s domain.Summary) Performance {
	s = RoundSummary(s)
	return Performance{
		FinalReturn: s.FinalReturn,
		MaxDrawdown: s.MaxDrawdown,
		WinRate:     s.WinRate,
		SharpeRatio: s.SharpeRatio,
		TotalTrades: s.TotalTrades,
	}
}

// bestOf picks the strictly greatest score; the earliest result wins ties.
func bestOf(results []ConfigResult) BestStrategy {
	if len(results) == 0 {
		return BestStrategy{}
	}
	best := 0
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[best].Score {
			best = i
		}
	}
	r := results[best]
	return BestStrategy{Strategy: r.Key, Score: r.Score, Config: r.Config, Performance: r.Performance}
}

func average(results []ConfigResult) AveragePerformance {
	if len(results) == 0 {
		return AveragePerformance{}
	}
	var a AveragePerformance
	for _, r := range results {
		a.FinalReturn += r.Performance.FinalReturn
		a.MaxDrawdown += r.Performance.MaxDrawdown
		a.WinRate += r.Performance.WinRate
		a.SharpeRatio += r.Performance.SharpeRatio
	}
	n := float64(len(results))
	a.FinalReturn /= n
	a.MaxDrawdown /= n
	a.WinRate /= n
	a.SharpeRatio /= n
	return a
}

func filter(results []ConfigResult, keep func(domain.StrategyConfig) bool) []ConfigResult {
	var out []ConfigResult
	for _, r := range results {
		if keep(r.Config) {
			out = append(out, r)
		}
	}
	return out
}

func (c *Comparator) analyze(results []ConfigResult) Analysis {
	byMode := func(m domain.Mode) AveragePerformance {
		return average(filter(results, func(cfg domain.StrategyConfig) bool { return cfg.Mode == m }))
	}
	safe := byMode(domain.ModeSafe)
	aggressive := byMode(domain.ModeAggressive)

	mc := ModeComparison{Safe: safe, Aggressive: aggressive, Recommendation: domain.ModeAggressive}
	if safe.SharpeRatio > aggressive.SharpeRatio {
		mc.Recommendation = domain.ModeSafe
	}

	da := DivisionAnalysis{
		Results:  make(map[string]AveragePerformance, len(c.divisions)),
		Analysis: divisionNote,
	}
	bestScore := 0.0
	for i, div := range c.divisions {
		avg := average(filter(results, func(cfg domain.StrategyConfig) bool { return cfg.Divisions == div }))
		da.Results[strconv.Itoa(div)] = avg
		if s := avg.score(); i == 0 || s > bestScore {
			bestScore = s
			da.BestDivisions = div
		}
	}

	bestMode := domain.ModeAggressive
	if safe.FinalReturn > aggressive.FinalReturn {
		bestMode = domain.ModeSafe
	}

	return Analysis{
		ModeComparison:   mc,
		DivisionAnalysis: da,
		Summary: AnalysisSummary{
			BestMode:       bestMode,
			BestDivisions:  da.BestDivisions,
			RiskAssessment: assessRisk(results),
		},
	}
}

// Risk assessments produced by the comparator.
const (
	RiskLow    = "Low risk: stable returns expected"
	RiskMedium = "Medium risk: reasonable return for the risk taken"
	RiskHigh   = "High risk: highly volatile strategy"
)

func assessRisk(results []ConfigResult) string {
	avg := average(results)
	switch {
	case avg.MaxDrawdown < 20 && avg.FinalReturn > 0:
		return RiskLow
	case avg.MaxDrawdown < 35 && avg.FinalReturn > 15:
		return RiskMedium
	default:
		return RiskHigh
	}
}
