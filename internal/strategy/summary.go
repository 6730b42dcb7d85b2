package strategy

import (
	"math"

	"dongpa/internal/domain"
)

// Summarize reduces a trade ledger to aggregate performance. An empty ledger
// yields the zero Summary.
//
// The Sharpe ratio is the mean over the standard deviation of the per-bar
// cumulative return series (rows with a zero return excluded), not of
// per-trade returns, and is not annualized.
func Summarize(trades []domain.Trade) domain.Summary {
	var s domain.Summary
	if len(trades) == 0 {
		return s
	}

	var (
		wins, losses    int
		winSum, lossSum float64
		maxDrawdownAbs  float64
	)
	for _, t := range trades {
		switch t.Action {
		case domain.ActionBuy:
			s.BuyTrades++
		case domain.ActionSell:
			s.SellTrades++
			if t.Profit > 0 {
				wins++
				winSum += t.Profit
			} else {
				losses++
				lossSum += t.Profit
			}
		}
		s.TotalCommission += t.Commission
		if dd := math.Abs(t.Drawdown); dd > maxDrawdownAbs {
			maxDrawdownAbs = dd
		}
	}

	s.TotalTrades = s.BuyTrades + s.SellTrades
	if s.SellTrades > 0 {
		s.WinRate = float64(wins) / float64(s.SellTrades) * 100
	}
	if wins > 0 {
		s.AvgWin = winSum / float64(wins)
	}
	if losses > 0 {
		s.AvgLoss = lossSum / float64(losses)
	}
	s.FinalReturn = trades[len(trades)-1].ReturnRate
	s.MaxDrawdown = maxDrawdownAbs
	s.SharpeRatio = sharpe(nonZeroReturns(trades))
	return s
}

func sharpe(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	sd := stdDev(returns)
	if sd < minStdDev {
		return 0
	}
	return mean(returns) / sd
}
