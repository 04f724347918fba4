package features

import (
	"math"

	"github.com/markcheno/go-talib"
)

// Indicator parameters. They are fixed for every feature table.
const (
	rsiPeriod    = 14
	macdFast     = 12
	macdSlow     = 26
	macdSignal   = 9
	bbPeriod     = 20
	bbDeviations = 2.0
	smaPeriod    = 20
	emaPeriod    = 50
)

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// masked copies src from index first onwards and leaves the warm-up prefix NaN.
// talib reports warm-up bars as zero, which is indistinguishable from a real value.
func masked(src []float64, first int) []float64 {
	out := nanSeries(len(src))
	for i := first; i < len(src); i++ {
		out[i] = src[i]
	}
	return out
}

// RSI computes the 14-period Wilder RSI. The first value is at index 14.
func RSI(closes []float64) []float64 {
	if len(closes) <= rsiPeriod {
		return nanSeries(len(closes))
	}
	return masked(talib.Rsi(closes, rsiPeriod), rsiPeriod)
}

// SMA computes the 20-period simple moving average.
func SMA(closes []float64) []float64 {
	if len(closes) < smaPeriod {
		return nanSeries(len(closes))
	}
	return masked(talib.Sma(closes, smaPeriod), smaPeriod-1)
}

// EMA computes the 50-period exponential moving average seeded with an SMA.
func EMA(closes []float64) []float64 {
	if len(closes) < emaPeriod {
		return nanSeries(len(closes))
	}
	return masked(talib.Ema(closes, emaPeriod), emaPeriod-1)
}

// BollingerBands returns the upper and lower 20-period bands at 2 standard deviations.
func BollingerBands(closes []float64) (upper, lower []float64) {
	if len(closes) < bbPeriod {
		return nanSeries(len(closes)), nanSeries(len(closes))
	}
	up, _, lo := talib.BBands(closes, bbPeriod, bbDeviations, bbDeviations, talib.SMA)
	return masked(up, bbPeriod-1), masked(lo, bbPeriod-1)
}

// MACD returns the 12/26 MACD line, its 9-period signal line and their difference.
// The signal EMA is seeded only from defined MACD values, so the line starts at
// index 25 and the signal at index 33.
func MACD(closes []float64) (line, signal, diff []float64) {
	n := len(closes)
	line, signal, diff = nanSeries(n), nanSeries(n), nanSeries(n)
	if n < macdSlow {
		return line, signal, diff
	}
	fast := talib.Ema(closes, macdFast)
	slow := talib.Ema(closes, macdSlow)
	first := macdSlow - 1
	for i := first; i < n; i++ {
		line[i] = fast[i] - slow[i]
	}

	tail := line[first:]
	if len(tail) < macdSignal {
		return line, signal, diff
	}
	sig := talib.Ema(tail, macdSignal)
	for j := macdSignal - 1; j < len(tail); j++ {
		signal[first+j] = sig[j]
		diff[first+j] = line[first+j] - sig[j]
	}
	return line, signal, diff
}

// PctChange returns (v[i] - v[i-1]) / v[i-1]. The first value, and any value
// whose predecessor is zero, is NaN.
func PctChange(values []float64) []float64 {
	out := nanSeries(len(values))
	for i := 1; i < len(values); i++ {
		prev := values[i-1]
		if prev == 0 {
			continue
		}
		out[i] = (values[i] - prev) / prev
	}
	return out
}
