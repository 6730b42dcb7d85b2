package dongpa

import "time"

// Modes accepted by the server.
const (
	ModeSafe       = "safe"
	ModeAggressive = "aggressive"
)

// Actions recorded in a ledger.
const (
	ActionBuy  = "BUY"
	ActionSell = "SELL"
	ActionHold = "HOLD"
)

// StrategyConfig selects a run. Zero fields take the server defaults.
type StrategyConfig struct {
	InitialCapital float64 `json:"initialCapital"`
	Divisions      int     `json:"divisions"`
	Mode           string  `json:"mode"`
}

// BacktestRequest selects the configuration and window of a backtest. Days
// must be in [30, 365]; 0 means the server default.
type BacktestRequest struct {
	Config StrategyConfig `json:"config"`
	Days   int            `json:"days"`
}

// CompareRequest selects the capital and window of a grid comparison.
type CompareRequest struct {
	InitialCapital float64 `json:"initialCapital"`
	Days           int     `json:"days"`
}

// Description summarizes a mode.
type Description struct {
	Mode           string  `json:"mode"`
	Name           string  `json:"name"`
	Description    string  `json:"description"`
	BuyTarget      float64 `json:"buyTarget"`
	SellTarget     float64 `json:"sellTarget"`
	HoldingDays    int     `json:"holdingDays"`
	RiskLevel      string  `json:"riskLevel"`
	ExpectedReturn string  `json:"expectedReturn"`
	MaxDrawdown    string  `json:"maxDrawdown"`
}

// Bar is one daily price observation.
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

// Signal is the live signal for the latest bar. NextSellPrice is nil when
// nothing is held.
type Signal struct {
	Symbol          string         `json:"symbol"`
	Date            string         `json:"date,omitempty"`
	Price           float64        `json:"price,omitempty"`
	ChangePercent   float64        `json:"changePercent"`
	Config          StrategyConfig `json:"config"`
	CurrentSignal   string         `json:"currentSignal"`
	NextBuyPrice    *float64       `json:"nextBuyPrice"`
	NextSellPrice   *float64       `json:"nextSellPrice"`
	CashRemaining   float64        `json:"cashRemaining"`
	CurrentHoldings int64          `json:"currentHoldings"`
	AvgPrice        float64        `json:"avgPrice"`
	TotalAssets     float64        `json:"totalAssets"`
	ReturnRate      float64        `json:"returnRate"`
}

// Trade is one ledger row.
type Trade struct {
	Date          string  `json:"date"`
	Price         float64 `json:"price"`
	ChangePercent float64 `json:"change"`
	Action        string  `json:"action"`
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
	Drawdown      float64 `json:"drawdown"`
}

// Summary aggregates a ledger.
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

// Period is the date span of a backtest.
type Period struct {
	Start string `json:"start"`
	End   string `json:"end"`
	Days  int    `json:"days"`
}

// Backtest is a backtest result. RunID is empty when the server keeps no
// run archive.
type Backtest struct {
	RunID   string         `json:"runId,omitempty"`
	Symbol  string         `json:"symbol"`
	Trades  []Trade        `json:"trades"`
	Summary Summary        `json:"summary"`
	Config  StrategyConfig `json:"config"`
	Period  Period         `json:"period"`
}

// Performance is the subset of a summary used to rank configurations.
type Performance struct {
	FinalReturn float64 `json:"finalReturn"`
	MaxDrawdown float64 `json:"maxDrawdown"`
	WinRate     float64 `json:"winRate"`
	SharpeRatio float64 `json:"sharpeRatio"`
	TotalTrades int     `json:"totalTrades"`
}

// ConfigResult is one cell of the comparison grid.
type ConfigResult struct {
	Key         string         `json:"key"`
	Config      StrategyConfig `json:"config"`
	Performance Performance    `json:"performance"`
	Score       float64        `json:"score"`
}

// BestStrategy is the highest-scoring configuration.
type BestStrategy struct {
	Strategy    string         `json:"strategy"`
	Score       float64        `json:"score"`
	Config      StrategyConfig `json:"config"`
	Performance Performance    `json:"performance"`
}

// AveragePerformance averages Performance over a group of configurations.
type AveragePerformance struct {
	FinalReturn float64 `json:"finalReturn"`
	MaxDrawdown float64 `json:"maxDrawdown"`
	WinRate     float64 `json:"winRate"`
	SharpeRatio float64 `json:"sharpeRatio"`
}

// Comparison is the grid comparison result.
type Comparison struct {
	Results      []ConfigResult `json:"results"`
	BestStrategy BestStrategy   `json:"bestStrategy"`
	Analysis     struct {
		ModeComparison struct {
			Safe           AveragePerformance `json:"safe"`
			Aggressive     AveragePerformance `json:"aggressive"`
			Recommendation string             `json:"recommendation"`
		} `json:"modeComparison"`
		DivisionAnalysis struct {
			Results       map[string]AveragePerformance `json:"results"`
			BestDivisions int                           `json:"bestDivisions"`
			Analysis      string                        `json:"analysis"`
		} `json:"divisionAnalysis"`
		Summary struct {
			BestMode       string `json:"bestMode"`
			BestDivisions  int    `json:"bestDivisions"`
			RiskAssessment string `json:"riskAssessment"`
		} `json:"summary"`
	} `json:"analysis"`
}

// MonthlyPerformance aggregates executions within one month.
type MonthlyPerformance struct {
	Month  string  `json:"month"`
	Trades int     `json:"trades"`
	Profit float64 `json:"profit"`
	Return float64 `json:"return"`
}

// Report is a backtest performance report.
type Report struct {
	Overview struct {
		Period      Period  `json:"period"`
		TotalReturn float64 `json:"totalReturn"`
		WinRate     float64 `json:"winRate"`
		MaxDrawdown float64 `json:"maxDrawdown"`
		SharpeRatio float64 `json:"sharpeRatio"`
	} `json:"overview"`
	MonthlyPerformance []MonthlyPerformance `json:"monthlyPerformance"`
	ConsecutiveTrades  struct {
		MaxWinStreak  int `json:"maxWinStreak"`
		MaxLossStreak int `json:"maxLossStreak"`
		CurrentStreak int `json:"currentStreak"`
	} `json:"consecutiveAnalysis"`
	RiskMetrics struct {
		VaR95      float64 `json:"var95"`
		CVaR95     float64 `json:"cvar95"`
		Volatility float64 `json:"volatility"`
	} `json:"riskMetrics"`
	Recommendations []string `json:"recommendations"`
}

// Run is an archived backtest. Trades is only set by Client.Run.
type Run struct {
	ID          string         `json:"id"`
	CreatedAt   time.Time      `json:"createdAt"`
	Symbol      string         `json:"symbol"`
	Config      StrategyConfig `json:"config"`
	PeriodStart string         `json:"periodStart"`
	PeriodEnd   string         `json:"periodEnd"`
	Days        int            `json:"days"`
	Summary     Summary        `json:"summary"`
	Score       float64        `json:"score"`
	Trades      []Trade        `json:"trades,omitempty"`
}
