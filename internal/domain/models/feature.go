package models

import (
	"encoding/json"
	"math"
)

// FeatureNames lists the model inputs in the order returned by FeatureVector.Values.
var FeatureNames = []string{
	"rsi",
	"macd",
	"macd_signal",
	"macd_diff",
	"bb_high",
	"bb_low",
	"sma_20",
	"ema_50",
	"volume_change",
}

// FeatureVector holds the technical indicators derived for one candle.
// A field is NaN until its indicator has seen enough prior candles.
type FeatureVector struct {
	RSI          float64
	MACD         float64
	MACDSignal   float64
	MACDDiff     float64
	BBHigh       float64
	BBLow        float64
	SMA20        float64
	EMA50        float64
	VolumeChange float64
}

// Values returns the features in FeatureNames order.
func (f FeatureVector) Values() []float64 {
	return []float64{
		f.RSI,
		f.MACD,
		f.MACDSignal,
		f.MACDDiff,
		f.BBHigh,
		f.BBLow,
		f.SMA20,
		f.EMA50,
		f.VolumeChange,
	}
}

// Complete reports whether every feature is a finite number.
func (f FeatureVector) Complete() bool {
	for _, v := range f.Values() {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// MarshalJSON writes undefined features as null.
func (f FeatureVector) MarshalJSON() ([]byte, error) {
	vals := f.Values()
	out := make(map[string]*float64, len(vals))
	for i, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			out[FeatureNames[i]] = nil
			continue
		}
		v := v
		out[FeatureNames[i]] = &v
	}
	return json.Marshal(out)
}

// FeatureRow attaches a feature vector and an optional label to a candle.
// Label is SignalNone when no future bar exists for the row.
type FeatureRow struct {
	Candle   Candle        `json:"candle"`
	Features FeatureVector `json:"features"`
	Label    SignalClass   `json:"label,omitempty"`
}

// Usable reports whether the row can be used for training.
func (r FeatureRow) Usable() bool {
	return r.Label.Valid() && r.Features.Complete()
}
