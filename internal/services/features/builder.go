package features

import (
	"fmt"

	"SignalSim/internal/domain/models"
	domsvc "SignalSim/internal/domain/service"
)

// Label defaults used by the pipeline when nothing else is configured.
const (
	DefaultHorizon   = 1
	DefaultThreshold = 0.005
)

// ComputeFeatures derives one feature row per candle. The input is not modified
// and the output keeps the input order. Indicators that are still warming up are NaN.
func ComputeFeatures(candles []models.Candle) ([]models.FeatureRow, error) {
	if len(candles) == 0 {
		return nil, fmt.Errorf("compute features: %w", domsvc.ErrInsufficientData)
	}

	n := len(candles)
	closes := make([]float64, n)
	volumes := make([]float64, n)
	for i, c := range candles {
		closes[i] = c.Close
		volumes[i] = c.Volume
	}

	rsi := RSI(closes)
	macd, macdSig, macdDiff := MACD(closes)
	bbHigh, bbLow := BollingerBands(closes)
	sma := SMA(closes)
	ema := EMA(closes)
	volChange := PctChange(volumes)

	rows := make([]models.FeatureRow, n)
	for i, c := range candles {
		rows[i] = models.FeatureRow{
			Candle: c,
			Features: models.FeatureVector{
				RSI:          rsi[i],
				MACD:         macd[i],
				MACDSignal:   macdSig[i],
				MACDDiff:     macdDiff[i],
				BBHigh:       bbHigh[i],
				BBLow:        bbLow[i],
				SMA20:        sma[i],
				EMA50:        ema[i],
				VolumeChange: volChange[i],
			},
		}
	}
	return rows, nil
}

// AssignLabels labels row i from the return between close[i] and close[i+horizon]:
// BUY if r > threshold, SELL if r < -threshold, HOLD otherwise. The last horizon
// rows keep an undefined label. A new slice is returned.
func AssignLabels(rows []models.FeatureRow, horizon int, threshold float64) ([]models.FeatureRow, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("assign labels: %w", domsvc.ErrInsufficientData)
	}
	if horizon < 1 {
		return nil, fmt.Errorf("assign labels: horizon must be >= 1, got %d", horizon)
	}
	if threshold < 0 {
		return nil, fmt.Errorf("assign labels: threshold must be >= 0, got %g", threshold)
	}

	out := make([]models.FeatureRow, len(rows))
	copy(out, rows)
	for i := range out {
		out[i].Label = models.SignalNone
		j := i + horizon
		if j >= len(out) {
			continue
		}
		cur := out[i].Candle.Close
		r := (out[j].Candle.Close - cur) / cur
		out[i].Label = classify(r, threshold)
	}
	return out, nil
}

func classify(r, threshold float64) models.SignalClass {
	switch {
	case r > threshold:
		return models.SignalBuy
	case r < -threshold:
		return models.SignalSell
	default:
		return models.SignalHold
	}
}

// UsableRows keeps rows with a complete feature vector and a defined label.
func UsableRows(rows []models.FeatureRow) []models.FeatureRow {
	out := make([]models.FeatureRow, 0, len(rows))
	for _, r := range rows {
		if r.Usable() {
			out = append(out, r)
		}
	}
	return out
}
