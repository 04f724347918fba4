package classifier

import (
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"SignalSim/internal/domain/models"
	domsvc "SignalSim/internal/domain/service"
)

func rsiRule(rsi float64) models.SignalClass {
	switch {
	case rsi < 30:
		return models.SignalBuy
	case rsi > 70:
		return models.SignalSell
	default:
		return models.SignalHold
	}
}

func syntheticRows(n int, seed int64, label func(float64) models.SignalClass) []models.FeatureRow {
	rng := rand.New(rand.NewSource(seed))
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := make([]models.FeatureRow, n)
	for i := range rows {
		rsi := rng.Float64() * 100
		price := 100 + rng.Float64()*10
		rows[i] = models.FeatureRow{
			Candle: models.Candle{Timestamp: start.Add(time.Duration(i) * time.Hour), Close: price},
			Features: models.FeatureVector{
				RSI:          rsi,
				MACD:         rng.NormFloat64(),
				MACDSignal:   rng.NormFloat64(),
				MACDDiff:     rng.NormFloat64(),
				BBHigh:       price + 2,
				BBLow:        price - 2,
				SMA20:        price,
				EMA50:        price,
				VolumeChange: rng.NormFloat64() / 10,
			},
			Label: label(rsi),
		}
	}
	return rows
}

func TestEncodingRoundTrip(t *testing.T) {
	want := map[models.SignalClass]int{models.SignalSell: 0, models.SignalHold: 1, models.SignalBuy: 2}
	for class, idx := range want {
		got, ok := EncodeClass(class)
		if !ok || got != idx {
			t.Fatalf("EncodeClass(%s) = %d, %v", class, got, ok)
		}
		back, ok := DecodeClass(idx)
		if !ok || back != class {
			t.Fatalf("DecodeClass(%d) = %s, %v", idx, back, ok)
		}
	}
	if _, ok := EncodeClass(models.SignalNone); ok {
		t.Fatalf("undefined label must not encode")
	}
	if _, ok := DecodeClass(3); ok {
		t.Fatalf("index 3 must not decode")
	}
}

func TestPredictBeforeTrain(t *testing.T) {
	c := New()
	if c.Trained() {
		t.Fatalf("fresh classifier reports trained")
	}
	_, err := c.Predict(syntheticRows(5, 1, rsiRule))
	if !errors.Is(err, domsvc.ErrModelNotTrained) {
		t.Fatalf("expected ErrModelNotTrained, got %v", err)
	}
}

func TestTrainInsufficientRows(t *testing.T) {
	c := New()
	_, err := c.Train(syntheticRows(10, 1, rsiRule))
	if !errors.Is(err, domsvc.ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData, got %v", err)
	}
	if c.Trained() {
		t.Fatalf("failed training must not produce a model")
	}
}

func TestTrainDropsIncompleteRows(t *testing.T) {
	rows := syntheticRows(60, 2, rsiRule)
	for i := 0; i < 20; i++ {
		rows[i].Features.EMA50 = math.NaN()
	}
	rows[30].Label = models.SignalNone
	_, err := New().Train(rows)
	if !errors.Is(err, domsvc.ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData with 39 usable rows, got %v", err)
	}
}

func TestTrainDegenerate(t *testing.T) {
	rows := syntheticRows(60, 3, func(float64) models.SignalClass { return models.SignalBuy })
	for i := 48; i < 60; i++ {
		rows[i].Label = models.SignalHold
	}
	c := New()
	_, err := c.Train(rows)
	if !errors.Is(err, domsvc.ErrDegenerateTrainingData) {
		t.Fatalf("expected ErrDegenerateTrainingData, got %v", err)
	}
	if c.Trained() {
		t.Fatalf("degenerate training must not produce a model")
	}
}

func TestTrainLearnsRule(t *testing.T) {
	c := New()
	acc, err := c.Train(syntheticRows(300, 4, rsiRule))
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	if acc < 0.9 {
		t.Fatalf("expected accuracy >= 0.9, got %v", acc)
	}

	probe := syntheticRows(3, 5, rsiRule)
	probe[0].Features.RSI = 10
	probe[1].Features.RSI = 50
	probe[2].Features.RSI = 90
	out, err := c.Predict(probe)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	want := []models.SignalClass{models.SignalBuy, models.SignalHold, models.SignalSell}
	for i, w := range want {
		if !out[i].HasSignal {
			t.Fatalf("row %d has no signal", i)
		}
		if out[i].Signal.Class != w {
			t.Errorf("row %d: got %s, want %s", i, out[i].Signal.Class, w)
		}
		if conf := out[i].Signal.Confidence; conf < 1.0/3 || conf > 1 {
			t.Errorf("row %d: confidence %v out of range", i, conf)
		}
	}
}

func TestPredictSkipsIncompleteRows(t *testing.T) {
	c := New()
	if _, err := c.Train(syntheticRows(200, 6, rsiRule)); err != nil {
		t.Fatalf("train: %v", err)
	}
	rows := syntheticRows(4, 7, rsiRule)
	rows[2].Features.RSI = math.NaN()
	out, err := c.Predict(rows)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if len(out) != len(rows) {
		t.Fatalf("expected %d rows, got %d", len(rows), len(out))
	}
	for i, r := range out {
		if i == 2 {
			if r.HasSignal {
				t.Fatalf("incomplete row must not get a signal")
			}
			continue
		}
		if !r.HasSignal || !r.Signal.Class.Valid() {
			t.Fatalf("row %d: missing signal", i)
		}
	}
}

func TestRetrainReplacesModel(t *testing.T) {
	c := New()
	if _, err := c.Train(syntheticRows(200, 8, rsiRule)); err != nil {
		t.Fatalf("train: %v", err)
	}
	probe := syntheticRows(1, 9, rsiRule)
	probe[0].Features.RSI = 10
	first, err := c.Predict(probe)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}

	inverted := func(rsi float64) models.SignalClass {
		switch rsiRule(rsi) {
		case models.SignalBuy:
			return models.SignalSell
		case models.SignalSell:
			return models.SignalBuy
		default:
			return models.SignalHold
		}
	}
	if _, err := c.Train(syntheticRows(200, 10, inverted)); err != nil {
		t.Fatalf("retrain: %v", err)
	}
	second, err := c.Predict(probe)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if first[0].Signal.Class != models.SignalBuy || second[0].Signal.Class != models.SignalSell {
		t.Fatalf("expected BUY then SELL, got %s then %s", first[0].Signal.Class, second[0].Signal.Class)
	}
}

func TestTwoClassTraining(t *testing.T) {
	half := func(rsi float64) models.SignalClass {
		if rsi < 50 {
			return models.SignalBuy
		}
		return models.SignalHold
	}
	c := New()
	if _, err := c.Train(syntheticRows(150, 11, half)); err != nil {
		t.Fatalf("train: %v", err)
	}
	out, err := c.Predict(syntheticRows(50, 12, half))
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	for i, r := range out {
		if r.Signal.Class == models.SignalSell {
			t.Fatalf("row %d: SELL was never seen in training", i)
		}
	}
}

func TestOptions(t *testing.T) {
	c := New(WithEstimators(10), WithLearningRate(0.3), WithMaxDepth(2), WithMinRows(20), WithTestFraction(0.25))
	if c.cfg.Estimators != 10 || c.cfg.LearningRate != 0.3 || c.cfg.MaxDepth != 2 || c.cfg.MinRows != 20 || c.cfg.TestFraction != 0.25 {
		t.Fatalf("options not applied: %+v", c.cfg)
	}
	if _, err := c.Train(syntheticRows(40, 13, rsiRule)); err != nil {
		t.Fatalf("train with 40 rows and MinRows=20: %v", err)
	}
}
