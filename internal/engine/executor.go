package engine

import "dongpa/internal/domain"

// Flat US equity fee rates applied to every execution.
const (
	CommissionRate = 0.00044
	SECFeeRate     = 0.0000278
)

// Commission returns the fee charged on a notional amount.
func Commission(amount float64) float64 {
	return amount * (CommissionRate + SECFeeRate)
}

// Fill describes one executed action.
type Fill struct {
	Action     domain.Action
	Quantity   int64
	Price      float64
	Amount     float64
	Commission float64
	Profit     float64
}

// ExecuteBuy adds quantity shares bought at price for amount to p, updating
// the weighted-average cost. Profit on a buy is always zero.
func ExecuteBuy(p Portfolio, price float64, quantity int64, amount float64) (Portfolio, Fill) {
	commission := Commission(amount)

	p.TotalCost += amount
	p.Holdings += quantity
	if p.Holdings > 0 {
		p.AvgPrice = p.TotalCost / float64(p.Holdings)
	} else {
		p.AvgPrice = 0
	}
	p.Cash -= amount + commission
	p.TotalCommission += commission

	return p, Fill{
		Action:     domain.ActionBuy,
		Quantity:   quantity,
		Price:      price,
		Amount:     amount,
		Commission: commission,
	}
}

// ExecuteSell liquidates every share in p at price. Profit is the net sale
// proceeds minus the cost basis of the position.
func ExecuteSell(p Portfolio, price float64) (Portfolio, Fill) {
	quantity := p.Holdings
	amount := float64(quantity) * price
	commission := Commission(amount)
	net := amount - commission
	profit := net - p.TotalCost

	p.Cash += net
	p.Holdings = 0
	p.AvgPrice = 0
	p.TotalCost = 0
	p.TotalCommission += commission

	return p, Fill{
		Action:     domain.ActionSell,
		Quantity:   quantity,
		Price:      price,
		Amount:     amount,
		Commission: commission,
		Profit:     profit,
	}
}
