package repository

import (
	"context"

	"SignalSim/internal/domain/models"
)

// CandleSource retrieves an ordered candle sequence for a symbol/interval/lookback request.
// It may return an empty sequence.
type CandleSource interface {
	FetchCandles(ctx context.Context, symbol string, interval Interval, lookbackDays int) ([]models.Candle, error)
}

// SymbolLister ranks tradable symbols by 24h quote volume.
type SymbolLister interface {
	TopSymbols(ctx context.Context, n int) ([]string, error)
}

// CandleStore archives candles for later retrieval.
type CandleStore interface {
	StoreCandles(ctx context.Context, interval Interval, candles []models.Candle) error
	GetLatestNCandles(ctx context.Context, symbol string, n int, interval Interval) ([]models.Candle, error)
}

// SignalJournal receives the append-only side effects of a pipeline run.
type SignalJournal interface {
	LogSignal(ctx context.Context, entry models.SignalLog) error
	RecordTradeOutcome(ctx context.Context, symbol string, pnl float64) error
}

// SettingsStore persists named numeric settings, the watchlist and performance counters.
type SettingsStore interface {
	GetSettings(ctx context.Context) (map[string]float64, error)
	SetSetting(ctx context.Context, key string, value float64) error
	GetWatchlist(ctx context.Context) ([]string, error)
	AddToWatchlist(ctx context.Context, symbol string) error
	RemoveFromWatchlist(ctx context.Context, symbol string) error
	GetPerformance(ctx context.Context, symbol string) (models.PerformanceStats, error)
}

// EventPublisher emits pipeline events to downstream consumers.
type EventPublisher interface {
	PublishSignal(ctx context.Context, runID string, row models.ScoredRow) error
	PublishTrade(ctx context.Context, runID string, t models.Trade) error
	PublishCandle(ctx context.Context, interval Interval, c models.Candle) error
	Close() error
}

// MarketStream delivers closed candles from a live exchange feed.
type MarketStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan models.Candle, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

type Metrics interface {
	RecordRun(status string)
	RecordStage(stage string, seconds float64)
	RecordSignal(symbol string, class models.SignalClass)
	RecordTrade(symbol string, action models.TradeAction, reason string)
	RecordAccuracy(symbol string, accuracy float64)
	RecordPortfolioValue(symbol string, value float64)
	RecordCandles(source string, n int)
	RecordError(kind string)
}
