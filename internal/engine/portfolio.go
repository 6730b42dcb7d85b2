// Package engine implements the dongpa simulation: the per-bar signal
// evaluator, the commission-aware trade executor, and the sequence simulator
// that drives both across an ordered bar series.
package engine

// Portfolio is the mutable state of one simulation run. It is passed by
// value through each step; a run starts from NewPortfolio and nothing is
// shared between runs.
type Portfolio struct {
	Cash            float64
	Holdings        int64
	AvgPrice        float64 // 0 when Holdings == 0
	TotalCost       float64 // cost basis of Holdings, commissions excluded
	PeakValue       float64
	MaxDrawdown     float64 // fraction in [0, 1]
	TotalCommission float64
}

// NewPortfolio returns the starting state for a run with the given capital.
func NewPortfolio(capital float64) Portfolio {
	return Portfolio{
		Cash:      capital,
		PeakValue: capital,
	}
}

// MarketValue is the value of Holdings at price.
func (p Portfolio) MarketValue(price float64) float64 {
	return float64(p.Holdings) * price
}

// TotalAssets is cash plus the market value of Holdings at price.
func (p Portfolio) TotalAssets(price float64) float64 {
	return p.Cash + p.MarketValue(price)
}

// markToMarket updates the running peak and returns the current drawdown
// fraction at price.
func (p *Portfolio) markToMarket(price float64) float64 {
	total := p.TotalAssets(price)
	if total > p.PeakValue {
		p.PeakValue = total
	}
	if p.PeakValue <= 0 {
		return 0
	}
	dd := (p.PeakValue - total) / p.PeakValue
	if dd < 0 {
		dd = 0
	}
	if dd > p.MaxDrawdown {
		p.MaxDrawdown = dd
	}
	return dd
}
