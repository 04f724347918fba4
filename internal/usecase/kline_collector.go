package usecase

import (
	"context"
	"fmt"

	"SignalSim/internal/domain/models"
	domrepo "SignalSim/internal/domain/repository"
	mid "SignalSim/internal/middleware"
	applogger "SignalSim/pkg/logger"
)

// CandleSink archives and publishes one closed candle.
type CandleSink struct {
	interval domrepo.Interval
	archive  domrepo.CandleStore
	events   domrepo.EventPublisher
	metrics  domrepo.Metrics
}

func NewCandleSink(interval domrepo.Interval, archive domrepo.CandleStore, events domrepo.EventPublisher, metrics domrepo.Metrics) *CandleSink {
	if events == nil {
		events = nopEvents{}
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &CandleSink{interval: interval, archive: archive, events: events, metrics: metrics}
}

func (s *CandleSink) Process(ctx context.Context, c models.Candle) error {
	if s.archive != nil {
		if err := s.archive.StoreCandles(ctx, s.interval, []models.Candle{c}); err != nil {
			return fmt.Errorf("archive candle %s: %w", c.Symbol, err)
		}
	}
	if err := s.events.PublishCandle(ctx, s.interval, c); err != nil {
		return fmt.Errorf("publish candle %s: %w", c.Symbol, err)
	}
	s.metrics.RecordCandles("stream", 1)
	return nil
}

// KlineCollector keeps the candle archive current from the live stream.
type KlineCollector struct {
	stream  domrepo.MarketStream
	gate    *mid.CandleGate
	metrics domrepo.Metrics
	l       *applogger.Logger
	done    chan struct{}
}

func NewKlineCollector(stream domrepo.MarketStream, gate *mid.CandleGate, metrics domrepo.Metrics, l *applogger.Logger) *KlineCollector {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &KlineCollector{stream: stream, gate: gate, metrics: metrics, l: l, done: make(chan struct{})}
}

func (c *KlineCollector) IsConnected() bool { return c.stream.IsConnected() }

// Start connects and consumes in the background until ctx is done.
func (c *KlineCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	if err := c.stream.Subscribe(ctx); err != nil {
		return err
	}
	c.gate.Start(ctx)
	go c.consume(ctx)
	return nil
}

// Done is closed once the consume loop exits.
func (c *KlineCollector) Done() <-chan struct{} { return c.done }

func (c *KlineCollector) consume(ctx context.Context) {
	defer close(c.done)
	candles, errs := c.stream.Read(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errs:
			if ok && err != nil {
				c.metrics.RecordError("stream")
				c.l.Warn("stream failed, reconnecting", applogger.Error(err))
			}
			if ctx.Err() != nil {
				return
			}
			if err := c.stream.Reconnect(ctx); err != nil {
				c.metrics.RecordError("stream_reconnect")
				c.l.Error("reconnect failed", applogger.Error(err))
				if ctx.Err() != nil {
					return
				}
			}
			candles, errs = c.stream.Read(ctx)
		case k, ok := <-candles:
			if !ok {
				candles = nil
				continue
			}
			if err := c.gate.Process(ctx, k); err != nil {
				c.l.Warn("candle not stored",
					applogger.Symbol(k.Symbol),
					applogger.Time("timestamp", k.Timestamp),
					applogger.Error(err),
				)
			}
		}
	}
}

// Shutdown stops the gate and closes the stream.
func (c *KlineCollector) Shutdown(context.Context) error {
	c.gate.Stop()
	return c.stream.Close()
}
