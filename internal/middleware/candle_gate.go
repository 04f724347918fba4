package middleware

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"SignalSim/internal/domain/models"
	domrepo "SignalSim/internal/domain/repository"
)

// Sink is the downstream a CandleGate forwards accepted candles to.
type Sink interface {
	Process(ctx context.Context, c models.Candle) error
}

// CandleGate sits between the live stream and the archive. It validates
// candles, drops duplicates and out-of-order bars per symbol, and buffers
// candles while the downstream is failing.
type CandleGate struct {
	sink     Sink
	metrics  domrepo.Metrics
	bufSize  int
	bufCh    chan models.Candle
	stopCh   chan struct{}
	started  bool
	mu       sync.Mutex
	lastSeen map[string]time.Time
	maxDelay time.Duration
}

type GateOption func(*CandleGate)

// WithBufferSize sets how many candles are held while the sink is down.
func WithBufferSize(n int) GateOption {
	return func(g *CandleGate) {
		if n > 0 {
			g.bufSize = n
		}
	}
}

// WithMaxBackoff caps the retry delay of the flush loop.
func WithMaxBackoff(d time.Duration) GateOption {
	return func(g *CandleGate) {
		if d > 0 {
			g.maxDelay = d
		}
	}
}

func NewCandleGate(sink Sink, metrics domrepo.Metrics, opts ...GateOption) *CandleGate {
	g := &CandleGate{
		sink:     sink,
		metrics:  metrics,
		bufSize:  1000,
		stopCh:   make(chan struct{}),
		lastSeen: make(map[string]time.Time),
		maxDelay: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.bufCh = make(chan models.Candle, g.bufSize)
	return g
}

// Start launches the background flush of buffered candles. A stopped gate
// may be started again; candles buffered meanwhile are flushed then.
func (g *CandleGate) Start(ctx context.Context) {
	g.mu.Lock()
	if g.started {
		g.mu.Unlock()
		return
	}
	g.started = true
	stop := make(chan struct{})
	g.stopCh = stop
	g.mu.Unlock()

	go func() {
		backoff := 50 * time.Millisecond
		for {
			select {
			case <-stop:
				return
			case <-ctx.Done():
				return
			case c := <-g.bufCh:
				if err := g.sink.Process(ctx, c); err != nil {
					if backoff < g.maxDelay {
						backoff *= 2
					}
					g.metrics.RecordError("gate_flush")
					select {
					case <-time.After(backoff):
					case <-stop:
						return
					case <-ctx.Done():
						return
					}
					select {
					case g.bufCh <- c:
					default:
						g.metrics.RecordError("gate_buffer_drop")
					}
					continue
				}
				backoff = 50 * time.Millisecond
			}
		}
	}()
}

func (g *CandleGate) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.started {
		return
	}
	g.started = false
	close(g.stopCh)
}

// Buffered reports how many candles wait for the sink.
func (g *CandleGate) Buffered() int { return len(g.bufCh) }

// Process validates c and forwards it. A stale bar is dropped silently; a
// sink failure buffers the candle and is returned to the caller.
func (g *CandleGate) Process(ctx context.Context, c models.Candle) error {
	if err := ValidateCandle(c); err != nil {
		g.metrics.RecordError("gate_validate")
		return err
	}
	if !g.advance(c.Symbol, c.Timestamp) {
		g.metrics.RecordError("gate_stale")
		return nil
	}
	if err := g.sink.Process(ctx, c); err != nil {
		g.metrics.RecordError("gate_process")
		select {
		case g.bufCh <- c:
		default:
			g.metrics.RecordError("gate_buffer_full")
		}
		return fmt.Errorf("gate downstream: %w", err)
	}
	return nil
}

// ValidateCandle rejects bars that cannot come from a real market.
func ValidateCandle(c models.Candle) error {
	switch {
	case c.Symbol == "":
		return fmt.Errorf("candle symbol empty")
	case c.Timestamp.IsZero():
		return fmt.Errorf("candle %s: timestamp missing", c.Symbol)
	case bad(c.Open) || bad(c.High) || bad(c.Low) || bad(c.Close) || bad(c.Volume):
		return fmt.Errorf("candle %s: negative or non-finite value", c.Symbol)
	case c.High < c.Low:
		return fmt.Errorf("candle %s: high %g below low %g", c.Symbol, c.High, c.Low)
	}
	return nil
}

func bad(v float64) bool { return v < 0 || math.IsNaN(v) || math.IsInf(v, 0) }

func (g *CandleGate) advance(symbol string, ts time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if last, ok := g.lastSeen[symbol]; ok && !ts.After(last) {
		return false
	}
	g.lastSeen[symbol] = ts
	return true
}
