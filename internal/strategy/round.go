package strategy

import (
	"github.com/shopspring/decimal"

	"dongpa/internal/domain"
)

// Round2 rounds v half away from zero to two decimal places.
func Round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// RoundSummary returns s with every ratio and amount rounded for display.
func RoundSummary(s domain.Summary) domain.Summary {
	s.WinRate = Round2(s.WinRate)
	s.AvgWin = Round2(s.AvgWin)
	s.AvgLoss = Round2(s.AvgLoss)
	s.TotalCommission = Round2(s.TotalCommission)
	s.FinalReturn = Round2(s.FinalReturn)
	s.MaxDrawdown = Round2(s.MaxDrawdown)
	s.SharpeRatio = Round2(s.SharpeRatio)
	return s
}

// Rounded returns the report with summary figures and risk metrics rounded
// for display. The ledger-derived monthly figures are left exact.
func (r Report) Rounded() Report {
	r.Overview.TotalReturn = Round2(r.Overview.TotalReturn)
	r.Overview.WinRate = Round2(r.Overview.WinRate)
	r.Overview.MaxDrawdown = Round2(r.Overview.MaxDrawdown)
	r.Overview.SharpeRatio = Round2(r.Overview.SharpeRatio)
	r.RiskMetrics = RiskMetrics{
		VaR95:      Round2(r.RiskMetrics.VaR95),
		CVaR95:     Round2(r.RiskMetrics.CVaR95),
		Volatility: Round2(r.RiskMetrics.Volatility),
	}
	return r
}
