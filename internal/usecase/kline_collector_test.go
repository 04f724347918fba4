package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"SignalSim/internal/domain/models"
	domrepo "SignalSim/internal/domain/repository"
	mid "SignalSim/internal/middleware"
)

type scriptedStream struct {
	mu         sync.Mutex
	batches    [][]models.Candle
	reads      int
	reconnects int
	connected  bool
}

func (s *scriptedStream) Connect(context.Context) error {
	s.mu.Lock()
	s.connected = true
	s.mu.Unlock()
	return nil
}

func (s *scriptedStream) Subscribe(context.Context) error { return nil }

// Read replays one batch per call; every batch but the last ends with an error.
func (s *scriptedStream) Read(ctx context.Context) (<-chan models.Candle, <-chan error) {
	s.mu.Lock()
	i := s.reads
	s.reads++
	s.mu.Unlock()

	out := make(chan models.Candle)
	errs := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errs)
		if i >= len(s.batches) {
			<-ctx.Done()
			return
		}
		for _, c := range s.batches[i] {
			select {
			case out <- c:
			case <-ctx.Done():
				return
			}
		}
		if i < len(s.batches)-1 {
			errs <- errors.New("connection reset")
			return
		}
		<-ctx.Done()
	}()
	return out, errs
}

func (s *scriptedStream) Reconnect(context.Context) error {
	s.mu.Lock()
	s.reconnects++
	s.mu.Unlock()
	return nil
}

func (s *scriptedStream) Close() error {
	s.mu.Lock()
	s.connected = false
	s.mu.Unlock()
	return nil
}

func (s *scriptedStream) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

type memArchive struct {
	mu      sync.Mutex
	candles []models.Candle
}

func (m *memArchive) StoreCandles(_ context.Context, _ domrepo.Interval, cs []models.Candle) error {
	m.mu.Lock()
	m.candles = append(m.candles, cs...)
	m.mu.Unlock()
	return nil
}

func (m *memArchive) GetLatestNCandles(context.Context, string, int, domrepo.Interval) ([]models.Candle, error) {
	return nil, nil
}

func (m *memArchive) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.candles)
}

func bar(i int) models.Candle {
	return models.Candle{
		Timestamp: t0.Add(time.Duration(i) * time.Hour),
		Symbol:    "BTCUSDT",
		Open:      100, High: 101, Low: 99, Close: 100,
		Volume: 1,
	}
}

func TestKlineCollectorArchivesAndReconnects(t *testing.T) {
	stream := &scriptedStream{batches: [][]models.Candle{
		{bar(0), bar(1)},
		{bar(1), bar(2)},
	}}
	archive := &memArchive{}
	events := &candleCounter{}
	gate := mid.NewCandleGate(NewCandleSink(domrepo.Interval1h, archive, events, nil), nopMetrics{})
	c := NewKlineCollector(stream, gate, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	if err := c.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !c.IsConnected() {
		t.Fatal("expected connected")
	}

	deadline := time.After(3 * time.Second)
	for archive.len() < 3 {
		select {
		case <-deadline:
			t.Fatalf("archived %d candles, want 3", archive.len())
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()
	<-c.Done()
	_ = c.Shutdown(context.Background())

	if archive.len() != 3 {
		t.Fatalf("duplicate bar archived: %d", archive.len())
	}
	if events.count() != 3 {
		t.Fatalf("published %d candles, want 3", events.count())
	}
	if stream.reconnects != 1 {
		t.Fatalf("reconnects = %d, want 1", stream.reconnects)
	}
	if c.IsConnected() {
		t.Fatal("expected closed stream after shutdown")
	}
}

type candleCounter struct {
	recordingEvents
	mu sync.Mutex
	n  int
}

func (c *candleCounter) PublishCandle(context.Context, domrepo.Interval, models.Candle) error {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
	return nil
}

func (c *candleCounter) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}
