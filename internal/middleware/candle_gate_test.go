package middleware

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"SignalSim/internal/domain/models"
)

type countingMetrics struct {
	mu     sync.Mutex
	errors map[string]int
}

func (m *countingMetrics) RecordRun(string) {}
func (m *countingMetrics) RecordStage(string, float64) {}
func (m *countingMetrics) RecordSignal(string, models.SignalClass) {}
func (m *countingMetrics) RecordTrade(string, models.TradeAction, string) {}
func (m *countingMetrics) RecordAccuracy(string, float64) {}
func (m *countingMetrics) RecordPortfolioValue(string, float64) {}
func (m *countingMetrics) RecordCandles(string, int) {}
func (m *countingMetrics) RecordError(kind string) {
	m.mu.Lock()
	if m.errors == nil {
		m.errors = map[string]int{}
	}
	m.errors[kind]++
	m.mu.Unlock()
}

type flakySink struct {
	mu   sync.Mutex
	fail int
	got  []models.Candle
}

func (s *flakySink) Process(_ context.Context, c models.Candle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail > 0 {
		s.fail--
		return errors.New("archive down")
	}
	s.got = append(s.got, c)
	return nil
}

func (s *flakySink) n() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.got)
}

var base = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func candleAt(h int) models.Candle {
	return models.Candle{Timestamp: base.Add(time.Duration(h) * time.Hour), Symbol: "ETHUSDT", Open: 10, High: 11, Low: 9, Close: 10, Volume: 5}
}

func TestValidateCandle(t *testing.T) {
	good := candleAt(0)
	if err := ValidateCandle(good); err != nil {
		t.Fatalf("valid candle rejected: %v", err)
	}
	cases := map[string]func(c *models.Candle){
		"no symbol":    func(c *models.Candle) { c.Symbol = "" },
		"no timestamp": func(c *models.Candle) { c.Timestamp = time.Time{} },
		"negative":     func(c *models.Candle) { c.Volume = -1 },
		"nan":          func(c *models.Candle) { c.Close = math.NaN() },
		"inverted":     func(c *models.Candle) { c.High, c.Low = 8, 9 },
	}
	for name, mutate := range cases {
		c := good
		mutate(&c)
		if err := ValidateCandle(c); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestGateDropsStaleBars(t *testing.T) {
	sink := &flakySink{}
	m := &countingMetrics{}
	g := NewCandleGate(sink, m)
	ctx := context.Background()

	for _, h := range []int{0, 1, 1, 0, 2} {
		if err := g.Process(ctx, candleAt(h)); err != nil {
			t.Fatalf("Process(%d): %v", h, err)
		}
	}
	if sink.n() != 3 || m.errors["gate_stale"] != 2 {
		t.Fatalf("stored %d, stale %d", sink.n(), m.errors["gate_stale"])
	}
}

func TestGateBuffersUntilSinkRecovers(t *testing.T) {
	sink := &flakySink{fail: 2}
	m := &countingMetrics{}
	g := NewCandleGate(sink, m, WithBufferSize(4), WithMaxBackoff(100*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := g.Process(ctx, candleAt(0)); err == nil {
		t.Fatal("expected downstream error")
	}
	if g.Buffered() != 1 {
		t.Fatalf("buffered = %d", g.Buffered())
	}

	g.Start(ctx)
	defer g.Stop()
	deadline := time.After(3 * time.Second)
	for sink.n() < 1 {
		select {
		case <-deadline:
			t.Fatal("buffered candle never flushed")
		case <-time.After(10 * time.Millisecond):
		}
	}
	if g.Buffered() != 0 {
		t.Fatalf("buffer not drained: %d", g.Buffered())
	}
}

func TestGateFlushesAfterRestart(t *testing.T) {
	sink := &flakySink{}
	g := NewCandleGate(sink, &countingMetrics{}, WithBufferSize(4), WithMaxBackoff(100*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	g.Start(ctx)
	g.Stop()

	sink.mu.Lock()
	sink.fail = 1
	sink.mu.Unlock()
	if err := g.Process(ctx, candleAt(0)); err == nil {
		t.Fatal("expected downstream error")
	}
	if g.Buffered() != 1 {
		t.Fatalf("buffered = %d", g.Buffered())
	}

	g.Start(ctx)
	defer g.Stop()
	deadline := time.After(3 * time.Second)
	for sink.n() < 1 {
		select {
		case <-deadline:
			t.Fatal("buffered candle not flushed after restart")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
