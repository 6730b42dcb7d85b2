package strategy

import (
	"sort"

	"dongpa/internal/domain"
)

// monthlyNormalizer is the notional capital per trade used by the simplified
// monthly return. It is a fixed scale, not the run's tranche size.
const monthlyNormalizer = 1000

// Overview repeats the headline figures of a backtest.
type Overview struct {
	Period      Period  `json:"period"`
	TotalReturn float64 `json:"totalReturn"`
	WinRate     float64 `json:"winRate"`
	MaxDrawdown float64 `json:"maxDrawdown"`
	SharpeRatio float64 `json:"sharpeRatio"`
}

// MonthlyPerformance aggregates executions within one calendar month.
type MonthlyPerformance struct {
	Month  string  `json:"month"` // YYYY-MM
	Trades int     `json:"trades"`
	Profit float64 `json:"profit"` // realized on SELL rows only
	Return float64 `json:"return"`
}

// StreakAnalysis tracks consecutive winning and losing exits. CurrentStreak
// is positive for a winning run and negative for a losing run.
type StreakAnalysis struct {
	MaxWinStreak  int `json:"maxWinStreak"`
	MaxLossStreak int `json:"maxLossStreak"`
	CurrentStreak int `json:"currentStreak"`
}

// RiskMetrics are computed over the non-zero cumulative return series.
type RiskMetrics struct {
	VaR95      float64 `json:"var95"`
	CVaR95     float64 `json:"cvar95"`
	Volatility float64 `json:"volatility"`
}

// Report is the full performance report of one backtest.
type Report struct {
	Overview           Overview             `json:"overview"`
	MonthlyPerformance []MonthlyPerformance `json:"monthlyPerformance"`
	ConsecutiveTrades  StreakAnalysis       `json:"consecutiveAnalysis"`
	RiskMetrics        RiskMetrics          `json:"riskMetrics"`
	Recommendations    []string             `json:"recommendations"`
}

// GenerateReport derives the report sections from a completed backtest.
func GenerateReport(res *BacktestResult) Report {
	return Report{
		Overview: Overview{
			Period:      res.Period,
			TotalReturn: res.Summary.FinalReturn,
			WinRate:     res.Summary.WinRate,
			MaxDrawdown: res.Summary.MaxDrawdown,
			SharpeRatio: res.Summary.SharpeRatio,
		},
		MonthlyPerformance: MonthlyBreakdown(res.Trades),
		ConsecutiveTrades:  Streaks(res.Trades),
		RiskMetrics:        Risk(res.Trades),
		Recommendations:    Recommend(res.Summary),
	}
}

// MonthlyBreakdown groups ledger rows by year-month, sorted by month. Every
// month present in the ledger appears, including months without executions.
func MonthlyBreakdown(trades []domain.Trade) []MonthlyPerformance {
	byMonth := make(map[string]*MonthlyPerformance)
	for _, t := range trades {
		key := monthKey(t.Date)
		m, ok := byMonth[key]
		if !ok {
			m = &MonthlyPerformance{Month: key}
			byMonth[key] = m
		}
		if !t.IsExecution() {
			continue
		}
		m.Trades++
		if t.Action == domain.ActionSell {
			m.Profit += t.Profit
		}
	}

	out := make([]MonthlyPerformance, 0, len(byMonth))
	for _, m := range byMonth {
		if m.Trades > 0 {
			m.Return = m.Profit / float64(m.Trades*monthlyNormalizer) * 100
		}
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}

func monthKey(date string) string {
	if len(date) < 7 {
		return date
	}
	return date[:7]
}

// Streaks walks SELL rows in ledger order. A non-positive profit counts as a
// loss.
func Streaks(trades []domain.Trade) StreakAnalysis {
	var (
		s         StreakAnalysis
		win, loss int
	)
	for _, t := range trades {
		if t.Action != domain.ActionSell {
			continue
		}
		if t.Profit > 0 {
			win++
			loss = 0
			s.CurrentStreak = win
			if win > s.MaxWinStreak {
				s.MaxWinStreak = win
			}
		} else {
			loss++
			win = 0
			s.CurrentStreak = -loss
			if loss > s.MaxLossStreak {
				s.MaxLossStreak = loss
			}
		}
	}
	return s
}

// Risk computes VaR95, CVaR95 and volatility over the non-zero return series.
// Fewer than two samples yield zeros.
func Risk(trades []domain.Trade) RiskMetrics {
	returns := nonZeroReturns(trades)
	if len(returns) < 2 {
		return RiskMetrics{}
	}

	var r RiskMetrics
	r.VaR95 = percentile(returns, 5)

	var tail []float64
	for _, x := range returns {
		if x <= r.VaR95 {
			tail = append(tail, x)
		}
	}
	r.CVaR95 = mean(tail)

	if sd := stdDev(returns); sd >= minStdDev {
		r.Volatility = sd
	}
	return r
}

// Recommendation messages. Each rule contributes at most one.
const (
	RecLowReturn    = "Low return. Consider the aggressive mode."
	RecHighReturn   = "Strong return. Keep the current strategy."
	RecLowWinRate   = "Low win rate. Consider lowering the sell target."
	RecHighWinRate  = "High win rate. Consider raising the sell target for larger gains."
	RecHighDrawdown = "Large drawdown. Switch to safe mode or increase divisions."
	RecLowDrawdown  = "Stable strategy. Consider investing more actively."
	RecFewTrades    = "Few trades. Consider a more sensitive buy trigger."
	RecManyTrades   = "Trading too often. Consider a stricter buy trigger."
	RecBalanced     = "The current strategy is well balanced."
)

// Recommend applies independent threshold rules to s in a fixed order. When
// none fires a single balanced-strategy message is returned.
func Recommend(s domain.Summary) []string {
	s = RoundSummary(s)
	var out []string

	switch {
	case s.FinalReturn < 5:
		out = append(out, RecLowReturn)
	case s.FinalReturn > 30:
		out = append(out, RecHighReturn)
	}

	switch {
	case s.WinRate < 50:
		out = append(out, RecLowWinRate)
	case s.WinRate > 70:
		out = append(out, RecHighWinRate)
	}

	switch {
	case s.MaxDrawdown > 40:
		out = append(out, RecHighDrawdown)
	case s.MaxDrawdown < 15:
		out = append(out, RecLowDrawdown)
	}

	switch {
	case s.TotalTrades < 10:
		out = append(out, RecFewTrades)
	case s.TotalTrades > 50:
		out = append(out, RecManyTrades)
	}

	if len(out) == 0 {
		return []string{RecBalanced}
	}
	return out
}
