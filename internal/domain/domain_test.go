package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"safe", ModeSafe, false},
		{" Aggressive ", ModeAggressive, false},
		{"SAFE", ModeSafe, false},
		{"", "", true},
		{"turbo", "", true},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseMode(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if err != nil && !errors.Is(err, ErrUnknownMode) {
			t.Errorf("ParseMode(%q) error = %v, want ErrUnknownMode", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseMode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestModeJSON(t *testing.T) {
	var cfg StrategyConfig
	if err := json.Unmarshal([]byte(`{"mode":"aggressive","divisions":5}`), &cfg); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if cfg.Mode != ModeAggressive {
		t.Errorf("Mode = %q", cfg.Mode)
	}

	var empty StrategyConfig
	if err := json.Unmarshal([]byte(`{"mode":""}`), &empty); err != nil || empty.Mode != "" {
		t.Errorf("empty mode = %q, %v; want unset", empty.Mode, err)
	}

	err := json.Unmarshal([]byte(`{"mode":"reckless"}`), &cfg)
	if !errors.Is(err, ErrUnknownMode) {
		t.Errorf("Unmarshal error = %v, want ErrUnknownMode", err)
	}
}

func TestModeParams(t *testing.T) {
	safe, ok := ModeSafe.Params()
	if !ok || safe.SellTargetRate != 0.002 || safe.BuyTargetRate != 0.03 {
		t.Errorf("safe params = %+v", safe)
	}
	agg, ok := ModeAggressive.Params()
	if !ok || agg.SellTargetRate != 0.025 || agg.BuyTargetRate != 0.05 {
		t.Errorf("aggressive params = %+v", agg)
	}
	if _, ok := Mode("x").Params(); ok {
		t.Error("unknown mode has params")
	}
	if got := Modes(); len(got) != 2 || got[0] != ModeSafe || got[1] != ModeAggressive {
		t.Errorf("Modes = %v", got)
	}
}

func TestDescribe(t *testing.T) {
	d, ok := ModeAggressive.Describe()
	if !ok {
		t.Fatal("Describe(aggressive) not ok")
	}
	if d.BuyTarget != 5 || d.SellTarget != 2.5 || d.HoldingDays != 7 || d.RiskLevel != "high" {
		t.Errorf("aggressive description = %+v", d)
	}
	if _, ok := Mode("").Describe(); ok {
		t.Error("Describe of empty mode ok")
	}
}

func TestStrategyConfigValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  StrategyConfig
		want error
	}{
		{"valid", StrategyConfig{InitialCapital: 10000, Divisions: 7, Mode: ModeSafe}, nil},
		{"zero capital", StrategyConfig{Divisions: 7, Mode: ModeSafe}, ErrInvalidConfig},
		{"too few divisions", StrategyConfig{InitialCapital: 1, Divisions: 2, Mode: ModeSafe}, ErrInvalidConfig},
		{"too many divisions", StrategyConfig{InitialCapital: 1, Divisions: 11, Mode: ModeSafe}, ErrInvalidConfig},
		{"unknown mode", StrategyConfig{InitialCapital: 1, Divisions: 5, Mode: "x"}, ErrUnknownMode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.want == nil {
				if err != nil {
					t.Errorf("Validate = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("Validate = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestBaseAmount(t *testing.T) {
	base, err := StrategyConfig{InitialCapital: 10000, Divisions: 7}.BaseAmount()
	if err != nil || base != 10000.0/7 {
		t.Errorf("BaseAmount = %v, %v", base, err)
	}
	if _, err := (StrategyConfig{InitialCapital: 10000}).BaseAmount(); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("BaseAmount with zero divisions error = %v", err)
	}
}

func TestBarValidate(t *testing.T) {
	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	if err := (Bar{Date: day, Price: 28.45}).Validate(); err != nil {
		t.Errorf("Validate = %v", err)
	}
	if got := (Bar{Date: day}).Day(); got != "2024-01-02" {
		t.Errorf("Day = %q", got)
	}
	for _, b := range []Bar{{Date: day}, {Date: day, Price: -1}, {Date: day, Price: 1, Volume: -5}} {
		if err := b.Validate(); !errors.Is(err, ErrInvalidBar) {
			t.Errorf("Validate(%+v) = %v, want ErrInvalidBar", b, err)
		}
	}
}

func TestIsClientError(t *testing.T) {
	for _, err := range []error{ErrInvalidConfig, ErrUnknownMode, fmt.Errorf("wrapped: %w", ErrUnknownMode)} {
		if !IsClientError(err) {
			t.Errorf("IsClientError(%v) = false", err)
		}
	}
	for _, err := range []error{errors.New("disk full"), fmt.Errorf("loading: %w", ErrInvalidBar), nil} {
		if IsClientError(err) {
			t.Errorf("IsClientError(%v) = true for a server error", err)
		}
	}
}

func TestTradeIsExecution(t *testing.T) {
	if !(Trade{Action: ActionBuy}).IsExecution() || !(Trade{Action: ActionSell}).IsExecution() {
		t.Error("BUY/SELL not executions")
	}
	if (Trade{Action: ActionHold}).IsExecution() {
		t.Error("HOLD is an execution")
	}
}
