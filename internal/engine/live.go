package engine

import "dongpa/internal/domain"

// LiveSignal is the forward-looking projection for the most recent bar.
type LiveSignal struct {
	CurrentSignal   domain.Action `json:"currentSignal"`
	NextBuyPrice    *float64      `json:"nextBuyPrice"`
	NextSellPrice   *float64      `json:"nextSellPrice"`
	CashRemaining   float64       `json:"cashRemaining"`
	CurrentHoldings int64         `json:"currentHoldings"`
	AvgPrice        float64       `json:"avgPrice"`
	TotalAssets     float64       `json:"totalAssets"`
	ReturnRate      float64       `json:"returnRate"`
}

// LiveSignal replays the given window and projects the next actionable
// prices from the final portfolio. The signal is SELL when the open position
// has reached its target at the latest price, otherwise BUY when the latest
// bar's own change meets the buy trigger, otherwise HOLD. An empty window
// yields HOLD with the untouched starting capital.
func (s *Simulator) LiveSignal(bars []domain.Bar) (LiveSignal, error) {
	res, err := s.Run(bars)
	if err != nil {
		return LiveSignal{}, err
	}
	p := res.Final

	sig := LiveSignal{
		CurrentSignal:   domain.ActionHold,
		CashRemaining:   p.Cash,
		CurrentHoldings: p.Holdings,
		AvgPrice:        p.AvgPrice,
		TotalAssets:     p.Cash,
	}
	if len(bars) == 0 {
		return sig, nil
	}

	latest := bars[len(bars)-1]
	sig.TotalAssets = p.TotalAssets(latest.Price)
	sig.ReturnRate = s.returnRate(sig.TotalAssets)

	nextBuy := s.eval.NextBuyPrice(latest.Price)
	sig.NextBuyPrice = &nextBuy

	holding := p.Holdings > 0 && p.AvgPrice > 0
	if holding {
		nextSell := s.eval.NextSellPrice(p.AvgPrice)
		sig.NextSellPrice = &nextSell
	}

	switch {
	case holding && sellReached(s.eval, p, latest.Price):
		sig.CurrentSignal = domain.ActionSell
	case s.eval.BuyTriggered(p, latest.ChangePercent):
		sig.CurrentSignal = domain.ActionBuy
	}
	return sig, nil
}

func sellReached(e Evaluator, p Portfolio, price float64) bool {
	_, ok := e.SellEligible(p, price)
	return ok
}
