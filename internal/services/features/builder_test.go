package features

import (
	"errors"
	"math"
	"testing"
	"time"

	"SignalSim/internal/domain/models"
	domsvc "SignalSim/internal/domain/service"
)

func hourlyCandles(closes []float64) []models.Candle {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.Candle, len(closes))
	for i, c := range closes {
		out[i] = models.Candle{
			Timestamp: start.Add(time.Duration(i) * time.Hour),
			Symbol:    "BTCUSDT",
			Open:      c,
			High:      c * 1.01,
			Low:       c * 0.99,
			Close:     c,
			Volume:    1000 + float64(i%7)*10,
		}
	}
	return out
}

func linearCloses(n int, from float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = from + float64(i)
	}
	return out
}

func TestComputeFeaturesKeepsRowsAndOrder(t *testing.T) {
	for _, n := range []int{1, 5, 14, 15, 26, 34, 50, 120} {
		candles := hourlyCandles(linearCloses(n, 100))
		rows, err := ComputeFeatures(candles)
		if err != nil {
			t.Fatalf("n=%d: unexpected error %v", n, err)
		}
		if len(rows) != n {
			t.Fatalf("n=%d: expected %d rows, got %d", n, n, len(rows))
		}
		for i := range rows {
			if !rows[i].Candle.Timestamp.Equal(candles[i].Timestamp) {
				t.Fatalf("n=%d: row %d reordered", n, i)
			}
		}
	}
}

func TestComputeFeaturesEmpty(t *testing.T) {
	_, err := ComputeFeatures(nil)
	if !errors.Is(err, domsvc.ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData, got %v", err)
	}
}

func TestComputeFeaturesDoesNotMutateInput(t *testing.T) {
	candles := hourlyCandles(linearCloses(60, 100))
	before := make([]models.Candle, len(candles))
	copy(before, candles)
	if _, err := ComputeFeatures(candles); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	for i := range candles {
		if candles[i] != before[i] {
			t.Fatalf("candle %d mutated", i)
		}
	}
}

func TestComputeFeaturesWarmup(t *testing.T) {
	rows, err := ComputeFeatures(hourlyCandles(linearCloses(60, 100)))
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	firstDefined := func(get func(models.FeatureVector) float64) int {
		for i, r := range rows {
			if !math.IsNaN(get(r.Features)) {
				return i
			}
		}
		return -1
	}
	cases := []struct {
		name string
		get  func(models.FeatureVector) float64
		want int
	}{
		{"rsi", func(f models.FeatureVector) float64 { return f.RSI }, 14},
		{"macd", func(f models.FeatureVector) float64 { return f.MACD }, 25},
		{"macd_signal", func(f models.FeatureVector) float64 { return f.MACDSignal }, 33},
		{"macd_diff", func(f models.FeatureVector) float64 { return f.MACDDiff }, 33},
		{"bb_high", func(f models.FeatureVector) float64 { return f.BBHigh }, 19},
		{"bb_low", func(f models.FeatureVector) float64 { return f.BBLow }, 19},
		{"sma_20", func(f models.FeatureVector) float64 { return f.SMA20 }, 19},
		{"ema_50", func(f models.FeatureVector) float64 { return f.EMA50 }, 49},
		{"volume_change", func(f models.FeatureVector) float64 { return f.VolumeChange }, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := firstDefined(tc.get); got != tc.want {
				t.Fatalf("first defined index = %d, want %d", got, tc.want)
			}
		})
	}
	if rows[48].Features.Complete() {
		t.Fatalf("row 48 should be incomplete")
	}
	if !rows[49].Features.Complete() {
		t.Fatalf("row 49 should be complete: %+v", rows[49].Features)
	}
}

func TestComputeFeaturesValues(t *testing.T) {
	closes := linearCloses(60, 100)
	rows, err := ComputeFeatures(hourlyCandles(closes))
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	// SMA20 of a linear ramp is the midpoint of the window.
	want := (closes[40] + closes[59]) / 2
	if got := rows[59].Features.SMA20; math.Abs(got-want) > 1e-9 {
		t.Fatalf("sma_20 = %v, want %v", got, want)
	}
	// a strictly rising series has no losses
	if got := rows[59].Features.RSI; math.Abs(got-100) > 1e-9 {
		t.Fatalf("rsi = %v, want 100", got)
	}
	f := rows[59].Features
	if !(f.BBHigh > f.SMA20 && f.SMA20 > f.BBLow) {
		t.Fatalf("bands do not bracket sma: %+v", f)
	}
	if math.Abs(f.MACDDiff-(f.MACD-f.MACDSignal)) > 1e-12 {
		t.Fatalf("macd_diff mismatch: %+v", f)
	}
}

func TestPctChangeZeroPrevious(t *testing.T) {
	got := PctChange([]float64{0, 10, 15})
	if !math.IsNaN(got[0]) || !math.IsNaN(got[1]) {
		t.Fatalf("expected NaN for first value and zero predecessor, got %v", got)
	}
	if math.Abs(got[2]-0.5) > 1e-12 {
		t.Fatalf("expected 0.5, got %v", got[2])
	}
}

func TestAssignLabelsBoundary(t *testing.T) {
	closes := []float64{100, 100.5, 100, 99.5, 100, 101, 100}
	rows, err := ComputeFeatures(hourlyCandles(closes))
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	labeled, err := AssignLabels(rows, 1, 0.005)
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	want := []models.SignalClass{
		models.SignalHold, // +0.5% exactly
		models.SignalHold, // 100.5 -> 100 is about -0.498%
		models.SignalHold, // -0.5% exactly
		models.SignalBuy,  // 99.5 -> 100 is above +0.5%
		models.SignalBuy,  // +1%
		models.SignalSell, // 101 -> 100
		models.SignalNone, // no future bar
	}
	for i, w := range want {
		if labeled[i].Label != w {
			t.Errorf("row %d: label %q, want %q", i, labeled[i].Label, w)
		}
	}
	if rows[0].Label != models.SignalNone {
		t.Fatalf("input rows were mutated")
	}
}

func TestAssignLabelsHorizon(t *testing.T) {
	rows, _ := ComputeFeatures(hourlyCandles(linearCloses(10, 100)))
	labeled, err := AssignLabels(rows, 3, 0.005)
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	for i := 7; i < 10; i++ {
		if labeled[i].Label != models.SignalNone {
			t.Fatalf("row %d should be unlabeled", i)
		}
	}
	for i := 0; i < 7; i++ {
		if labeled[i].Label != models.SignalBuy {
			t.Fatalf("row %d: expected BUY, got %q", i, labeled[i].Label)
		}
	}
	if _, err := AssignLabels(rows, 0, 0.005); err == nil {
		t.Fatalf("expected error for horizon 0")
	}
	if _, err := AssignLabels(nil, 1, 0.005); !errors.Is(err, domsvc.ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData, got %v", err)
	}
}

func TestAssignLabelsZeroThreshold(t *testing.T) {
	rows, _ := ComputeFeatures(hourlyCandles([]float64{100, 100, 101}))
	labeled, err := AssignLabels(rows, 1, 0)
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if labeled[0].Label != models.SignalHold || labeled[1].Label != models.SignalBuy {
		t.Fatalf("unexpected labels %q %q", labeled[0].Label, labeled[1].Label)
	}
}

func TestLinearRampIsAllBuy(t *testing.T) {
	rows, _ := ComputeFeatures(hourlyCandles(linearCloses(60, 100)))
	labeled, _ := AssignLabels(rows, DefaultHorizon, DefaultThreshold)
	for i := 0; i < 59; i++ {
		if labeled[i].Label != models.SignalBuy {
			t.Fatalf("row %d: expected BUY, got %q", i, labeled[i].Label)
		}
	}
}

func TestFlatSeriesIsAllHold(t *testing.T) {
	closes := make([]float64, 100)
	for i := range closes {
		closes[i] = 250
	}
	rows, _ := ComputeFeatures(hourlyCandles(closes))
	labeled, _ := AssignLabels(rows, DefaultHorizon, DefaultThreshold)
	for i := 0; i < 99; i++ {
		if labeled[i].Label != models.SignalHold {
			t.Fatalf("row %d: expected HOLD, got %q", i, labeled[i].Label)
		}
	}
	if labeled[99].Label != models.SignalNone {
		t.Fatalf("last row should be unlabeled")
	}
}

func TestUsableRows(t *testing.T) {
	rows, _ := ComputeFeatures(hourlyCandles(linearCloses(60, 100)))
	labeled, _ := AssignLabels(rows, 1, 0.005)
	usable := UsableRows(labeled)
	// rows 49..58 are complete and labeled
	if len(usable) != 10 {
		t.Fatalf("expected 10 usable rows, got %d", len(usable))
	}
}
