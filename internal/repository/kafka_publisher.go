package repository

import (
	"context"
	"time"

	"SignalSim/internal/domain/models"
	domrepo "SignalSim/internal/domain/repository"
	pkgkafka "SignalSim/pkg/kafka"
)

// Topics names the Kafka topics events are written to.
type Topics struct {
	Signals string
	Trades  string
	Candles string
}

// KafkaPublisher implements EventPublisher on Kafka. Messages are keyed by
// symbol so one symbol stays ordered within a partition.
type KafkaPublisher struct {
	producer *pkgkafka.Producer
	topics   Topics
}

func NewKafkaPublisher(producer *pkgkafka.Producer, topics Topics) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topics: topics}
}

type signalEvent struct {
	RunID      string    `json:"run_id"`
	Symbol     string    `json:"symbol"`
	Timestamp  time.Time `json:"t"`
	Close      float64   `json:"c"`
	Signal     string    `json:"signal"`
	Confidence float64   `json:"confidence"`
}

type tradeEvent struct {
	RunID string `json:"run_id"`
	models.Trade
}

type candleEvent struct {
	Interval string `json:"interval"`
	models.Candle
}

func (p *KafkaPublisher) PublishSignal(ctx context.Context, runID string, row models.ScoredRow) error {
	return p.producer.Publish(ctx, p.topics.Signals, []byte(row.Candle.Symbol), signalEvent{
		RunID:      runID,
		Symbol:     row.Candle.Symbol,
		Timestamp:  row.Candle.Timestamp,
		Close:      row.Candle.Close,
		Signal:     string(row.Signal.Class),
		Confidence: row.Signal.Confidence,
	})
}

func (p *KafkaPublisher) PublishTrade(ctx context.Context, runID string, t models.Trade) error {
	return p.producer.Publish(ctx, p.topics.Trades, []byte(t.Symbol), tradeEvent{RunID: runID, Trade: t})
}

func (p *KafkaPublisher) PublishCandle(ctx context.Context, interval domrepo.Interval, c models.Candle) error {
	return p.producer.Publish(ctx, p.topics.Candles, []byte(c.Symbol), candleEvent{Interval: string(interval), Candle: c})
}

func (p *KafkaPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// NopPublisher drops every event. Used when Kafka is disabled.
type NopPublisher struct{}

func (NopPublisher) PublishSignal(context.Context, string, models.ScoredRow) error { return nil }
func (NopPublisher) PublishTrade(context.Context, string, models.Trade) error { return nil }
func (NopPublisher) PublishCandle(context.Context, domrepo.Interval, models.Candle) error { return nil }
func (NopPublisher) Close() error { return nil }

var (
	_ domrepo.EventPublisher = (*KafkaPublisher)(nil)
	_ domrepo.EventPublisher = NopPublisher{}
)
