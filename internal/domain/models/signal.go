package models

import "time"

// SignalClass is the discretized trading recommendation for a bar.
type SignalClass string

const (
	SignalNone SignalClass = ""
	SignalBuy  SignalClass = "BUY"
	SignalSell SignalClass = "SELL"
	SignalHold SignalClass = "HOLD"
)

// Valid reports whether c is one of BUY, SELL or HOLD.
func (c SignalClass) Valid() bool {
	switch c {
	case SignalBuy, SignalSell, SignalHold:
		return true
	default:
		return false
	}
}

// Signal is a classifier output for one bar. Confidence is the maximum
// class probability, not a calibrated certainty.
type Signal struct {
	Class      SignalClass `json:"class"`
	Confidence float64     `json:"confidence"`
}

// ScoredRow is a feature row together with its predicted signal.
// HasSignal is false when the row's feature vector was incomplete.
type ScoredRow struct {
	FeatureRow
	Signal    Signal `json:"signal"`
	HasSignal bool   `json:"has_signal"`
}

// SignalLog is one append-only signal history entry.
type SignalLog struct {
	Symbol     string      `json:"symbol"`
	Signal     SignalClass `json:"signal"`
	Confidence float64     `json:"confidence"`
	Price      float64     `json:"price"`
	Interval   string      `json:"interval"`
	CreatedAt  time.Time   `json:"created_at"`
}

// Candle represents an OHLCV bar for feature engineering and training.
type Candle struct {
	Timestamp time.Time `json:"timestamp"`
	Symbol    string    `json:"symbol"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}
