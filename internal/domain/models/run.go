package models

import "time"

// RiskConfig holds the simulator risk parameters for one replay.
type RiskConfig struct {
	PositionSize float64 `json:"position_size"`
	StopLoss     float64 `json:"stop_loss"`
	TakeProfit   float64 `json:"take_profit"`
}

// RunParams describes one pipeline run. Zero values fall back to
// persisted settings and then to configured defaults.
type RunParams struct {
	Symbol       string
	Interval     string
	LookbackDays int
	Horizon      int
	Threshold    float64
	Risk         RiskConfig
}

// Summary aggregates the trade log and equity curve of a run.
type Summary struct {
	TotalTrades  int     `json:"total_trades"`
	Wins         int     `json:"wins"`
	Losses       int     `json:"losses"`
	WinRate      float64 `json:"win_rate"`
	RealizedPnL  float64 `json:"realized_pnl"`
	ProfitFactor float64 `json:"profit_factor"`
	MaxDrawdown  float64 `json:"max_drawdown"`
}

// RunResult is everything a presentation layer needs from one pipeline run.
type RunResult struct {
	RunID          string        `json:"run_id"`
	Symbol         string        `json:"symbol"`
	Interval       string        `json:"interval"`
	StartedAt      time.Time     `json:"started_at"`
	Threshold      float64       `json:"threshold"`
	Risk           RiskConfig    `json:"risk"`
	Accuracy       float64       `json:"accuracy"`
	Rows           []ScoredRow   `json:"rows"`
	Trades         []Trade       `json:"trades"`
	Equity         []EquityPoint `json:"equity"`
	InitialCapital float64       `json:"initial_capital"`
	FinalValue     float64       `json:"final_value"`
	Summary        Summary       `json:"summary"`
}
