package engine

import (
	"fmt"
	"math"

	"dongpa/internal/domain"
)

// Decision is the outcome of evaluating one bar.
type Decision struct {
	Action   domain.Action
	Quantity int64   // BUY only
	Amount   float64 // BUY only
}

// Evaluator decides BUY / SELL / HOLD for a bar given the current portfolio.
// It is the single home of the buy and sell predicates; both the backtest
// loop and the live-signal projection go through it.
type Evaluator struct {
	params     domain.ModeParams
	baseAmount float64
}

// NewEvaluator builds an Evaluator for cfg. The tranche size is fixed here
// for the lifetime of the run.
func NewEvaluator(cfg domain.StrategyConfig) (Evaluator, error) {
	params, ok := cfg.Mode.Params()
	if !ok {
		return Evaluator{}, fmt.Errorf("%w: %q", domain.ErrUnknownMode, cfg.Mode)
	}
	base, err := cfg.BaseAmount()
	if err != nil {
		return Evaluator{}, err
	}
	return Evaluator{params: params, baseAmount: base}, nil
}

// Params returns the mode thresholds in use.
func (e Evaluator) Params() domain.ModeParams { return e.params }

// BaseAmount returns the per-tranche allocation.
func (e Evaluator) BaseAmount() float64 { return e.baseAmount }

// BuyTriggered reports whether a drop of changePercent qualifies for a new
// tranche: a decline of at least the buy target while a full tranche of cash
// is still available.
func (e Evaluator) BuyTriggered(p Portfolio, changePercent float64) bool {
	return changePercent < 0 &&
		math.Abs(changePercent) >= e.params.BuyTargetRate*100 &&
		p.Cash >= e.baseAmount
}

// BuyOrder sizes a tranche purchase for bar. ok is false when the trigger
// does not hold, when the tranche buys no whole share, or when cash cannot
// cover the amount plus commission.
func (e Evaluator) BuyOrder(p Portfolio, bar domain.Bar) (quantity int64, amount float64, ok bool) {
	if !e.BuyTriggered(p, bar.ChangePercent) {
		return 0, 0, false
	}
	quantity = int64(math.Floor(e.baseAmount / bar.Price))
	if quantity <= 0 {
		return 0, 0, false
	}
	amount = float64(quantity) * bar.Price
	if p.Cash < amount+Commission(amount) {
		return 0, 0, false
	}
	return quantity, amount, true
}

// SellEligible reports whether the position in p has reached the sell
// target at price, along with the current profit rate.
func (e Evaluator) SellEligible(p Portfolio, price float64) (profitRate float64, ok bool) {
	if p.Holdings <= 0 || p.AvgPrice <= 0 {
		return 0, false
	}
	profitRate = (price - p.AvgPrice) / p.AvgPrice
	return profitRate, profitRate >= e.params.SellTargetRate
}

// Decide applies the buy-first priority: when a bar qualifies for both a new
// tranche and an exit, the tranche is bought and the exit is not considered.
func (e Evaluator) Decide(p Portfolio, bar domain.Bar) Decision {
	if qty, amount, ok := e.BuyOrder(p, bar); ok {
		return Decision{Action: domain.ActionBuy, Quantity: qty, Amount: amount}
	}
	if _, ok := e.SellEligible(p, bar.Price); ok {
		return Decision{Action: domain.ActionSell}
	}
	return Decision{Action: domain.ActionHold}
}

// NextBuyPrice is the price a drop of exactly the buy target from latest
// would reach.
func (e Evaluator) NextBuyPrice(latest float64) float64 {
	return latest * (1 - e.params.BuyTargetRate)
}

// NextSellPrice is the exit price for a position at avgPrice.
func (e Evaluator) NextSellPrice(avgPrice float64) float64 {
	return avgPrice * (1 + e.params.SellTargetRate)
}
