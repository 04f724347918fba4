package usecase

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"SignalSim/internal/domain/models"
	domrepo "SignalSim/internal/domain/repository"
	domsvc "SignalSim/internal/domain/service"
	"SignalSim/internal/repository"
	"SignalSim/internal/services/simulator"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type staticSource struct {
	candles []models.Candle
	got     struct {
		symbol   string
		interval domrepo.Interval
		lookback int
	}
}

func (s *staticSource) FetchCandles(_ context.Context, symbol string, interval domrepo.Interval, lookback int) ([]models.Candle, error) {
	s.got.symbol, s.got.interval, s.got.lookback = symbol, interval, lookback
	return s.candles, nil
}

func series(closes []float64) []models.Candle {
	out := make([]models.Candle, len(closes))
	for i, c := range closes {
		out[i] = models.Candle{
			Timestamp: t0.Add(time.Duration(i) * time.Hour),
			Symbol:    "BTCUSDT",
			Open:      c, High: c, Low: c, Close: c,
			Volume: 100 + float64(i%7),
		}
	}
	return out
}

func geometric(n int, from, growth float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = from * math.Pow(1+growth, float64(i))
	}
	return out
}

func wave(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 100 + 8*math.Sin(float64(i)/3) + 0.05*float64(i)
	}
	return out
}

// labelEcho predicts each row's own label, so replays are deterministic.
type labelEcho struct{ trained bool }

func (l *labelEcho) Train(rows []models.FeatureRow) (float64, error) {
	l.trained = true
	return 1, nil
}

func (l *labelEcho) Predict(rows []models.FeatureRow) ([]models.ScoredRow, error) {
	if !l.trained {
		return nil, domsvc.ErrModelNotTrained
	}
	out := make([]models.ScoredRow, len(rows))
	for i, r := range rows {
		out[i].FeatureRow = r
		if !r.Features.Complete() {
			continue
		}
		class := r.Label
		if !class.Valid() {
			class = models.SignalHold
		}
		out[i].Signal = models.Signal{Class: class, Confidence: 1}
		out[i].HasSignal = true
	}
	return out, nil
}

func (l *labelEcho) Trained() bool { return l.trained }

type recordingEvents struct {
	signals, trades int
}

func (r *recordingEvents) PublishSignal(context.Context, string, models.ScoredRow) error {
	r.signals++
	return nil
}

func (r *recordingEvents) PublishTrade(context.Context, string, models.Trade) error {
	r.trades++
	return nil
}

func (r *recordingEvents) PublishCandle(context.Context, domrepo.Interval, models.Candle) error {
	return nil
}

func (r *recordingEvents) Close() error { return nil }

type failingJournal struct{ calls int }

func (f *failingJournal) LogSignal(context.Context, models.SignalLog) error {
	f.calls++
	return errors.New("db down")
}

func (f *failingJournal) RecordTradeOutcome(context.Context, string, float64) error {
	f.calls++
	return errors.New("db down")
}

func TestPipelineRunReplaysSignals(t *testing.T) {
	src := &staticSource{candles: series(geometric(120, 100, 0.01))}
	journal := repository.NewMemoryJournal()
	events := &recordingEvents{}

	p := NewSignalPipeline(src,
		WithJournal(journal),
		WithEvents(events),
		WithClassifierFactory(func() domsvc.SignalClassifier { return &labelEcho{} }),
		WithRunIDs(func() string { return "run-1" }),
	)
	res, err := p.Run(context.Background(), models.RunParams{Symbol: "BTCUSDT"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.RunID != "run-1" || res.Accuracy != 1 {
		t.Fatalf("unexpected result header %+v", res)
	}
	if len(res.Rows) != 120 {
		t.Fatalf("rows = %d, want 120", len(res.Rows))
	}

	signalled := 0
	for _, r := range res.Rows {
		if r.HasSignal {
			signalled++
		}
	}
	if len(res.Equity) != signalled || events.signals != signalled || len(journal.Signals()) != signalled {
		t.Fatalf("equity=%d events=%d journal=%d, want %d", len(res.Equity), events.signals, len(journal.Signals()), signalled)
	}

	if len(res.Trades) == 0 || res.Trades[0].Action != models.ActionBuy {
		t.Fatalf("expected trades starting with BUY, got %+v", res.Trades)
	}
	if events.trades != len(res.Trades) {
		t.Fatalf("published %d trades, want %d", events.trades, len(res.Trades))
	}
	sells := 0
	for i, tr := range res.Trades {
		want := models.ActionBuy
		if i%2 == 1 {
			want = models.ActionSell
			sells++
		}
		if tr.Action != want {
			t.Fatalf("trade %d action = %s, want %s", i, tr.Action, want)
		}
	}
	perf, _ := journal.GetPerformance(context.Background(), "BTCUSDT")
	if perf.TotalTrades != sells || res.Summary.TotalTrades != sells {
		t.Fatalf("outcomes = %d, summary = %d, want %d", perf.TotalTrades, res.Summary.TotalTrades, sells)
	}
	if res.FinalValue < res.InitialCapital {
		t.Fatalf("final value %v below initial capital %v", res.FinalValue, res.InitialCapital)
	}
}

func TestPipelineRunWithGradientBoosting(t *testing.T) {
	src := &staticSource{candles: series(wave(300))}
	p := NewSignalPipeline(src)

	res, err := p.Run(context.Background(), models.RunParams{Symbol: "BTCUSDT", Threshold: 0.01})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Accuracy < 0 || res.Accuracy > 1 {
		t.Fatalf("accuracy = %v", res.Accuracy)
	}
	for _, r := range res.Rows {
		if r.HasSignal && (r.Signal.Confidence < 0 || r.Signal.Confidence > 1 || !r.Signal.Class.Valid()) {
			t.Fatalf("bad signal %+v", r.Signal)
		}
		if !r.Features.Complete() && r.HasSignal {
			t.Fatalf("incomplete row got a signal at %v", r.Candle.Timestamp)
		}
	}
	open := false
	for _, tr := range res.Trades {
		if (tr.Action == models.ActionBuy) == open {
			t.Fatalf("trade sequence broken at %+v", tr)
		}
		open = tr.Action == models.ActionBuy
	}
}

func TestPipelineNormalizesSymbol(t *testing.T) {
	run := func(symbol string) (*models.RunResult, *staticSource) {
		src := &staticSource{candles: series(geometric(120, 100, 0.01))}
		p := NewSignalPipeline(src,
			WithClassifierFactory(func() domsvc.SignalClassifier { return &labelEcho{} }),
		)
		res, err := p.Run(context.Background(), models.RunParams{Symbol: symbol})
		if err != nil {
			t.Fatalf("Run(%q): %v", symbol, err)
		}
		return res, src
	}

	upper, _ := run("BTCUSDT")
	lower, src := run(" btcusdt ")
	if src.got.symbol != "BTCUSDT" {
		t.Fatalf("source called with %q", src.got.symbol)
	}
	if len(lower.Equity) != len(upper.Equity) || len(lower.Equity) == 0 {
		t.Fatalf("equity lengths %d vs %d", len(lower.Equity), len(upper.Equity))
	}
	for i := range upper.Equity {
		if lower.Equity[i].Value != upper.Equity[i].Value {
			t.Fatalf("equity %d = %v, want %v", i, lower.Equity[i].Value, upper.Equity[i].Value)
		}
	}
	if lower.FinalValue != upper.FinalValue || lower.Summary.MaxDrawdown != upper.Summary.MaxDrawdown {
		t.Fatalf("final %v dd %v, want %v dd %v", lower.FinalValue, lower.Summary.MaxDrawdown, upper.FinalValue, upper.Summary.MaxDrawdown)
	}
}

func TestPipelineErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("empty source", func(t *testing.T) {
		p := NewSignalPipeline(&staticSource{})
		_, err := p.Run(ctx, models.RunParams{Symbol: "BTCUSDT"})
		if !errors.Is(err, domsvc.ErrInsufficientData) {
			t.Fatalf("expected ErrInsufficientData, got %v", err)
		}
	})

	t.Run("too few usable rows", func(t *testing.T) {
		p := NewSignalPipeline(&staticSource{candles: series(geometric(60, 100, 0.01))})
		_, err := p.Run(ctx, models.RunParams{Symbol: "BTCUSDT"})
		if !errors.Is(err, domsvc.ErrInsufficientData) {
			t.Fatalf("expected ErrInsufficientData, got %v", err)
		}
	})

	t.Run("single class", func(t *testing.T) {
		p := NewSignalPipeline(&staticSource{candles: series(geometric(150, 100, 0.01))})
		_, err := p.Run(ctx, models.RunParams{Symbol: "BTCUSDT"})
		if !errors.Is(err, domsvc.ErrDegenerateTrainingData) {
			t.Fatalf("expected ErrDegenerateTrainingData, got %v", err)
		}
	})

	t.Run("invalid risk", func(t *testing.T) {
		p := NewSignalPipeline(&staticSource{candles: series(wave(200))})
		_, err := p.Run(ctx, models.RunParams{Symbol: "BTCUSDT", Risk: models.RiskConfig{PositionSize: 2}})
		if !errors.Is(err, simulator.ErrInvalidRisk) {
			t.Fatalf("expected ErrInvalidRisk, got %v", err)
		}
	})
}

func TestPipelineSideEffectFailuresDoNotAbort(t *testing.T) {
	journal := &failingJournal{}
	p := NewSignalPipeline(&staticSource{candles: series(geometric(120, 100, 0.01))},
		WithJournal(journal),
		WithClassifierFactory(func() domsvc.SignalClassifier { return &labelEcho{} }),
	)
	res, err := p.Run(context.Background(), models.RunParams{Symbol: "BTCUSDT"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if journal.calls == 0 || len(res.Trades) == 0 {
		t.Fatalf("expected journal calls and trades, got %d calls, %d trades", journal.calls, len(res.Trades))
	}
}

func TestPipelineResolvesParameters(t *testing.T) {
	ctx := context.Background()
	journal := repository.NewMemoryJournal()
	_ = journal.SetSetting(ctx, models.SettingSensitivity, 0.02)
	_ = journal.SetSetting(ctx, models.SettingLookbackDays, 10)

	cfg := DefaultPipelineConfig()
	cfg.Risk.TakeProfit = 0.07
	_ = journal.SetSetting(ctx, models.SettingTakeProfit, 0)

	p := NewSignalPipeline(&staticSource{}, WithSettings(journal), WithConfig(cfg))

	got := p.resolve(ctx, models.RunParams{Symbol: "BTCUSDT", Risk: models.RiskConfig{StopLoss: 0.04}})
	if got.Threshold != 0.02 || got.LookbackDays != 10 {
		t.Fatalf("settings not applied: %+v", got)
	}
	if got.Risk.StopLoss != 0.04 {
		t.Fatalf("request override lost: %+v", got.Risk)
	}
	if got.Risk.TakeProfit != 0.07 || got.Risk.PositionSize != 0.10 {
		t.Fatalf("config fallback not applied: %+v", got.Risk)
	}
	if got.Interval != "1h" || got.Horizon != 1 {
		t.Fatalf("defaults not applied: %+v", got)
	}

	over := p.resolve(ctx, models.RunParams{Symbol: "BTCUSDT", Threshold: 0.01, Interval: "15m"})
	if over.Threshold != 0.01 || over.Interval != "15m" {
		t.Fatalf("request values not kept: %+v", over)
	}
}

func TestLabeledFeatures(t *testing.T) {
	src := &staticSource{candles: series(wave(80))}
	p := NewSignalPipeline(src)
	rows, err := p.LabeledFeatures(context.Background(), models.RunParams{Symbol: "BTCUSDT", LookbackDays: 3, Interval: "1h"})
	if err != nil {
		t.Fatalf("LabeledFeatures: %v", err)
	}
	if len(rows) != 80 || rows[79].Label.Valid() || !rows[0].Label.Valid() {
		t.Fatalf("unexpected labels: n=%d last=%q first=%q", len(rows), rows[79].Label, rows[0].Label)
	}
	if src.got.lookback != 3 || src.got.interval != domrepo.Interval1h {
		t.Fatalf("source called with %+v", src.got)
	}
}
