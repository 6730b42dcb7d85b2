// Package domain defines the core value types shared across the dongpa
// backtesting service: price bars, strategy configuration, the per-bar trade
// ledger and its aggregate summary.
package domain

import (
	"fmt"
	"time"
)

// DateLayout is the calendar-date format used for bars and ledger rows.
const DateLayout = "2006-01-02"

// Bar is one daily price observation. Price is the closing price and
// ChangePercent the signed percent change from the previous close.
type Bar struct {
	Symbol        string    `json:"symbol,omitempty"`
	Date          time.Time `json:"date"`
	Price         float64   `json:"price"`
	ChangePercent float64   `json:"changePercent"`
	Volume        int64     `json:"volume"`
	High          float64   `json:"high,omitempty"`
	Low           float64   `json:"low,omitempty"`
	Open          float64   `json:"open,omitempty"`
}

// Day returns the bar date formatted as YYYY-MM-DD.
func (b Bar) Day() string {
	return b.Date.Format(DateLayout)
}

// Validate reports whether the bar carries a usable price. Every accounting
// step downstream depends on it, so a bad bar fails the whole run.
func (b Bar) Validate() error {
	if !(b.Price > 0) {
		return fmt.Errorf("%w: price %v on %s", ErrInvalidBar, b.Price, b.Day())
	}
	if b.Volume < 0 {
		return fmt.Errorf("%w: negative volume on %s", ErrInvalidBar, b.Day())
	}
	return nil
}

// Action is the decision taken on a single bar.
type Action string

// Supported actions.
const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// Division bounds accepted at the configuration boundary.
const (
	MinDivisions = 3
	MaxDivisions = 10
)

// StrategyConfig is the immutable input of one simulation run.
type StrategyConfig struct {
	InitialCapital float64 `json:"initialCapital" yaml:"initial_capital"`
	Divisions      int     `json:"divisions" yaml:"divisions"`
	Mode           Mode    `json:"mode" yaml:"mode"`
}

// Validate checks the configuration bounds.
func (c StrategyConfig) Validate() error {
	if !(c.InitialCapital > 0) {
		return fmt.Errorf("%w: initialCapital must be positive, got %v", ErrInvalidConfig, c.InitialCapital)
	}
	if c.Divisions < MinDivisions || c.Divisions > MaxDivisions {
		return fmt.Errorf("%w: divisions must be in [%d, %d], got %d",
			ErrInvalidConfig, MinDivisions, MaxDivisions, c.Divisions)
	}
	if !c.Mode.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownMode, c.Mode)
	}
	return nil
}

// BaseAmount is the fixed per-tranche capital allocation.
func (c StrategyConfig) BaseAmount() (float64, error) {
	if c.Divisions <= 0 {
		return 0, fmt.Errorf("%w: divisions must be positive, got %d", ErrInvalidConfig, c.Divisions)
	}
	return c.InitialCapital / float64(c.Divisions), nil
}

// Trade is one ledger row: the action taken on a bar plus the post-trade
// portfolio snapshot. The simulator emits exactly one Trade per input bar.
type Trade struct {
	Date          string  `json:"date"`
	Price         float64 `json:"price"`
	ChangePercent float64 `json:"change"`
	Action        Action  `json:"action"`
	Quantity      int64   `json:"quantity"`
	Amount        float64 `json:"amount"`
	Commission    float64 `json:"commission"`
	Profit        float64 `json:"profit"`
	Cash          float64 `json:"cash"`
	Holdings      int64   `json:"holdings"`
	AvgPrice      float64 `json:"avgPrice"`
	CurrentValue  float64 `json:"currentValue"`
	TotalAssets   float64 `json:"totalAssets"`
	ReturnRate    float64 `json:"returnRate"`
	Drawdown      float64 `json:"drawdown"` // non-positive percent
}

// IsExecution reports whether the row records a BUY or SELL.
func (t Trade) IsExecution() bool {
	return t.Action == ActionBuy || t.Action == ActionSell
}

// Summary aggregates a trade ledger.
type Summary struct {
	TotalTrades     int     `json:"totalTrades"`
	BuyTrades       int     `json:"buyTrades"`
	SellTrades      int     `json:"sellTrades"`
	WinRate         float64 `json:"winRate"`
	AvgWin          float64 `json:"avgWin"`
	AvgLoss         float64 `json:"avgLoss"`
	TotalCommission float64 `json:"totalCommission"`
	FinalReturn     float64 `json:"finalReturn"`
	MaxDrawdown     float64 `json:"maxDrawdown"`
	SharpeRatio     float64 `json:"sharpeRatio"`
}
