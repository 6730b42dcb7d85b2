package domain

import (
	"fmt"
	"strings"
)

// Mode selects the buy/sell thresholds of the strategy.
type Mode string

// Supported modes.
const (
	ModeSafe       Mode = "safe"
	ModeAggressive Mode = "aggressive"
)

// Modes returns every mode in comparison order.
func Modes() []Mode {
	return []Mode{ModeSafe, ModeAggressive}
}

// ModeParams holds the fixed thresholds of a mode. Rates are fractions.
type ModeParams struct {
	SellTargetRate float64
	BuyTargetRate  float64
	HoldingDays    int // informational only
}

var modeParams = map[Mode]ModeParams{
	ModeSafe:       {SellTargetRate: 0.002, BuyTargetRate: 0.03, HoldingDays: 30},
	ModeAggressive: {SellTargetRate: 0.025, BuyTargetRate: 0.05, HoldingDays: 7},
}

// ParseMode converts s to a Mode, rejecting anything unknown.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
	return m, nil
}

// Valid reports whether m is one of the supported modes.
func (m Mode) Valid() bool {
	_, ok := modeParams[m]
	return ok
}

// Params returns the thresholds for m. ok is false for an unknown mode.
func (m Mode) Params() (ModeParams, bool) {
	p, ok := modeParams[m]
	return p, ok
}

// UnmarshalText rejects unknown modes while decoding JSON or YAML. Empty
// text decodes to the zero Mode, which callers treat as unset.
func (m *Mode) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*m = ""
		return nil
	}
	parsed, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Description is the human-facing summary of a mode.
type Description struct {
	Mode           Mode    `json:"mode"`
	Name           string  `json:"name"`
	Description    string  `json:"description"`
	BuyTarget      float64 `json:"buyTarget"`  // percent drop
	SellTarget     float64 `json:"sellTarget"` // percent gain
	HoldingDays    int     `json:"holdingDays"`
	RiskLevel      string  `json:"riskLevel"`
	ExpectedReturn string  `json:"expectedReturn"`
	MaxDrawdown    string  `json:"maxDrawdown"`
}

// Describe returns the description of m.
func (m Mode) Describe() (Description, bool) {
	p, ok := m.Params()
	if !ok {
		return Description{}, false
	}
	d := Description{
		Mode:        m,
		BuyTarget:   p.BuyTargetRate * 100,
		SellTarget:  p.SellTargetRate * 100,
		HoldingDays: p.HoldingDays,
	}
	switch m {
	case ModeSafe:
		d.Name = "Safe"
		d.Description = "Conservative tranche buying aimed at steady returns"
		d.RiskLevel = "medium"
		d.ExpectedReturn = "15-25% annually"
		d.MaxDrawdown = "20-30%"
	case ModeAggressive:
		d.Name = "Aggressive"
		d.Description = "Active tranche buying aimed at higher returns"
		d.RiskLevel = "high"
		d.ExpectedReturn = "30-50% annually"
		d.MaxDrawdown = "40-60%"
	}
	return d, true
}
