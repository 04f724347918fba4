package models

import "time"

// TradeAction is the side of an executed simulated trade.
type TradeAction string

const (
	ActionBuy  TradeAction = "BUY"
	ActionSell TradeAction = "SELL"
)

// Trade reasons emitted by the position simulator.
const (
	ReasonSignalBuy      = "Signal Buy"
	ReasonStopLoss       = "Stop Loss Hit"
	ReasonTakeProfit     = "Take Profit Hit"
	ReasonSignalReversal = "Signal Reversal"
)

// Trade is an immutable record of one simulated execution.
// RealizedPnL and ProfitPct are only set on SELL trades.
type Trade struct {
	ID          string      `json:"id"`
	Timestamp   time.Time   `json:"timestamp"`
	Symbol      string      `json:"symbol"`
	Action      TradeAction `json:"action"`
	Price       float64     `json:"price"`
	Quantity    float64     `json:"quantity"`
	Reason      string      `json:"reason"`
	RealizedPnL float64     `json:"realized_pnl,omitempty"`
	ProfitPct   float64     `json:"profit_pct,omitempty"`
}

// EquityPoint is the portfolio value observed after one replay step.
type EquityPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// PerformanceStats are the per-symbol counters kept by the persistence layer.
type PerformanceStats struct {
	Symbol      string  `json:"symbol"`
	TotalTrades int     `json:"total_trades"`
	Wins        int     `json:"wins"`
	Losses      int     `json:"losses"`
	ProfitLoss  float64 `json:"profit_loss"`
	WinRate     float64 `json:"win_rate"`
}
