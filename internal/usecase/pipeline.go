package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"SignalSim/internal/domain/models"
	domrepo "SignalSim/internal/domain/repository"
	domsvc "SignalSim/internal/domain/service"
	"SignalSim/internal/services/classifier"
	"SignalSim/internal/services/features"
	"SignalSim/internal/services/simulator"
	applogger "SignalSim/pkg/logger"
)

// PipelineConfig holds the engine defaults used when neither the request nor
// the persisted settings provide a value.
type PipelineConfig struct {
	Interval       domrepo.Interval
	LookbackDays   int
	Horizon        int
	Threshold      float64
	InitialCapital float64
	MinTradeCost   float64
	Risk           models.RiskConfig
}

// DefaultPipelineConfig mirrors the stock settings.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Interval:       domrepo.DefaultInterval(),
		LookbackDays:   30,
		Horizon:        features.DefaultHorizon,
		Threshold:      features.DefaultThreshold,
		InitialCapital: simulator.DefaultInitialCapital,
		MinTradeCost:   simulator.DefaultMinTradeCost,
		Risk:           simulator.DefaultRisk,
	}
}

// SignalPipeline runs fetch -> features -> labels -> train -> predict -> replay
// for one symbol. Every run owns its classifier and simulator, so concurrent
// runs do not share model or portfolio state.
type SignalPipeline struct {
	source        domrepo.CandleSource
	settings      domrepo.SettingsStore
	journal       domrepo.SignalJournal
	events        domrepo.EventPublisher
	metrics       domrepo.Metrics
	cfg           PipelineConfig
	newClassifier func() domsvc.SignalClassifier
	newID         func() string
	l             *applogger.Logger
}

type PipelineOption func(*SignalPipeline)

func WithSettings(s domrepo.SettingsStore) PipelineOption {
	return func(p *SignalPipeline) { p.settings = s }
}

func WithJournal(j domrepo.SignalJournal) PipelineOption {
	return func(p *SignalPipeline) { p.journal = j }
}

func WithEvents(e domrepo.EventPublisher) PipelineOption {
	return func(p *SignalPipeline) { p.events = e }
}

func WithMetrics(m domrepo.Metrics) PipelineOption {
	return func(p *SignalPipeline) { p.metrics = m }
}

func WithConfig(cfg PipelineConfig) PipelineOption {
	return func(p *SignalPipeline) { p.cfg = cfg }
}

// WithClassifierFactory swaps the classifier family; a fresh instance is built per run.
func WithClassifierFactory(fn func() domsvc.SignalClassifier) PipelineOption {
	return func(p *SignalPipeline) { p.newClassifier = fn }
}

// WithRunIDs replaces the run id generator, for tests.
func WithRunIDs(fn func() string) PipelineOption {
	return func(p *SignalPipeline) { p.newID = fn }
}

func WithLogger(l *applogger.Logger) PipelineOption {
	return func(p *SignalPipeline) { p.l = l }
}

func NewSignalPipeline(source domrepo.CandleSource, opts ...PipelineOption) *SignalPipeline {
	p := &SignalPipeline{
		source:  source,
		journal: nopJournal{},
		events:  nopEvents{},
		metrics: nopMetrics{},
		cfg:     DefaultPipelineConfig(),
		newClassifier: func() domsvc.SignalClassifier {
			return classifier.New()
		},
		newID: uuid.NewString,
		l:     applogger.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// resolve fills zero fields from persisted settings, then from config.
func (p *SignalPipeline) resolve(ctx context.Context, in models.RunParams) models.RunParams {
	out := in
	out.Symbol = strings.ToUpper(strings.TrimSpace(in.Symbol))
	var stored map[string]float64
	if p.settings != nil {
		s, err := p.settings.GetSettings(ctx)
		if err != nil {
			p.l.Warn("settings unavailable, using config defaults", applogger.Error(err))
			p.metrics.RecordError("settings")
		}
		stored = s
	}
	pick := func(req float64, key string, def float64) float64 {
		if req > 0 {
			return req
		}
		if v, ok := stored[key]; ok && v > 0 {
			return v
		}
		return def
	}

	if out.Interval == "" {
		out.Interval = string(p.cfg.Interval)
	}
	out.Interval = string(domrepo.NormalizeInterval(out.Interval))
	if out.Horizon < 1 {
		out.Horizon = p.cfg.Horizon
	}
	out.LookbackDays = int(pick(float64(in.LookbackDays), models.SettingLookbackDays, float64(p.cfg.LookbackDays)))
	out.Threshold = pick(in.Threshold, models.SettingSensitivity, p.cfg.Threshold)
	out.Risk.PositionSize = pick(in.Risk.PositionSize, models.SettingRiskPerTrade, p.cfg.Risk.PositionSize)
	out.Risk.StopLoss = pick(in.Risk.StopLoss, models.SettingStopLoss, p.cfg.Risk.StopLoss)
	out.Risk.TakeProfit = pick(in.Risk.TakeProfit, models.SettingTakeProfit, p.cfg.Risk.TakeProfit)
	return out
}

// LabeledFeatures fetches candles and returns the labeled feature table.
func (p *SignalPipeline) LabeledFeatures(ctx context.Context, params models.RunParams) ([]models.FeatureRow, error) {
	params = p.resolve(ctx, params)
	candles, err := p.fetch(ctx, params)
	if err != nil {
		return nil, err
	}
	return p.label(candles, params)
}

func (p *SignalPipeline) fetch(ctx context.Context, params models.RunParams) ([]models.Candle, error) {
	defer p.stage("fetch", time.Now())
	candles, err := p.source.FetchCandles(ctx, params.Symbol, domrepo.Interval(params.Interval), params.LookbackDays)
	if err != nil {
		return nil, fmt.Errorf("fetch candles: %w", err)
	}
	if len(candles) == 0 {
		return nil, fmt.Errorf("no candles for %s %s: %w", params.Symbol, params.Interval, domsvc.ErrInsufficientData)
	}
	return candles, nil
}

func (p *SignalPipeline) label(candles []models.Candle, params models.RunParams) ([]models.FeatureRow, error) {
	defer p.stage("features", time.Now())
	rows, err := features.ComputeFeatures(candles)
	if err != nil {
		return nil, err
	}
	return features.AssignLabels(rows, params.Horizon, params.Threshold)
}

// Run executes one full pipeline run.
func (p *SignalPipeline) Run(ctx context.Context, in models.RunParams) (*models.RunResult, error) {
	params := p.resolve(ctx, in)
	res, err := p.run(ctx, params)
	p.metrics.RecordRun(runStatus(err))
	if err != nil {
		p.l.Warn("pipeline run failed",
			applogger.Symbol(params.Symbol),
			applogger.String("interval", params.Interval),
			applogger.Error(err),
		)
		return nil, err
	}
	return res, nil
}

func (p *SignalPipeline) run(ctx context.Context, params models.RunParams) (*models.RunResult, error) {
	if err := simulator.ValidateRisk(params.Risk); err != nil {
		return nil, err
	}
	res := &models.RunResult{
		RunID:          p.newID(),
		Symbol:         params.Symbol,
		Interval:       params.Interval,
		StartedAt:      time.Now().UTC(),
		Threshold:      params.Threshold,
		Risk:           params.Risk,
		InitialCapital: p.cfg.InitialCapital,
	}
	log := p.l.With(
		applogger.RunID(res.RunID),
		applogger.Symbol(params.Symbol),
		applogger.String("interval", params.Interval),
	)

	candles, err := p.fetch(ctx, params)
	if err != nil {
		return nil, err
	}
	rows, err := p.label(candles, params)
	if err != nil {
		return nil, err
	}
	log.Info("features ready", applogger.Int("candles", len(candles)), applogger.Int("usable_rows", len(features.UsableRows(rows))))

	clf := p.newClassifier()
	trainStart := time.Now()
	acc, err := clf.Train(rows)
	p.stage("train", trainStart)
	if err != nil {
		return nil, fmt.Errorf("train %s: %w", params.Symbol, err)
	}
	res.Accuracy = acc
	p.metrics.RecordAccuracy(params.Symbol, acc)
	log.Info("model trained", applogger.Float64("accuracy", acc))

	scored, err := clf.Predict(rows)
	if err != nil {
		return nil, fmt.Errorf("predict %s: %w", params.Symbol, err)
	}
	res.Rows = scored

	sim, err := simulator.New(params.Risk,
		simulator.WithInitialCapital(p.cfg.InitialCapital),
		simulator.WithMinTradeCost(p.cfg.MinTradeCost),
	)
	if err != nil {
		return nil, err
	}
	res.Equity = p.replay(ctx, log, res.RunID, params, sim, scored)
	res.Trades = sim.Trades()

	last := candles[len(candles)-1]
	res.FinalValue = sim.PortfolioValue(map[string]float64{params.Symbol: last.Close})
	res.Summary = simulator.Summarize(res.Trades, res.Equity)
	p.metrics.RecordPortfolioValue(params.Symbol, res.FinalValue)

	log.Info("replay finished",
		applogger.Int("trades", len(res.Trades)),
		applogger.Float64("final_value", res.FinalValue),
		applogger.Float64("win_rate", res.Summary.WinRate),
	)
	return res, nil
}

// replay steps the simulator through every scored bar in order. Side effects
// are best effort and never stop the replay.
func (p *SignalPipeline) replay(ctx context.Context, log *applogger.Logger, runID string, params models.RunParams, sim *simulator.Simulator, rows []models.ScoredRow) []models.EquityPoint {
	defer p.stage("replay", time.Now())
	equity := make([]models.EquityPoint, 0, len(rows))
	for _, row := range rows {
		if !row.HasSignal {
			continue
		}
		c := row.Candle
		p.metrics.RecordSignal(params.Symbol, row.Signal.Class)
		p.sideEffect(log, "journal_signal", p.journal.LogSignal(ctx, models.SignalLog{
			Symbol:     params.Symbol,
			Signal:     row.Signal.Class,
			Confidence: row.Signal.Confidence,
			Price:      c.Close,
			Interval:   params.Interval,
			CreatedAt:  c.Timestamp,
		}))
		p.sideEffect(log, "publish_signal", p.events.PublishSignal(ctx, runID, row))

		if t := sim.Step(row.Signal.Class, params.Symbol, c.Close, c.Timestamp); t != nil {
			p.metrics.RecordTrade(t.Symbol, t.Action, t.Reason)
			if t.Action == models.ActionSell {
				p.sideEffect(log, "journal_trade", p.journal.RecordTradeOutcome(ctx, t.Symbol, t.RealizedPnL))
			}
			p.sideEffect(log, "publish_trade", p.events.PublishTrade(ctx, runID, *t))
			log.Debug("trade",
				applogger.String("action", string(t.Action)),
				applogger.String("reason", t.Reason),
				applogger.Float64("price", t.Price),
				applogger.Float64("quantity", t.Quantity),
			)
		}
		equity = append(equity, models.EquityPoint{
			Timestamp: c.Timestamp,
			Value:     sim.PortfolioValue(map[string]float64{params.Symbol: c.Close}),
		})
	}
	return equity
}

func (p *SignalPipeline) sideEffect(log *applogger.Logger, kind string, err error) {
	if err == nil {
		return
	}
	p.metrics.RecordError(kind)
	log.Warn("side effect failed", applogger.String("kind", kind), applogger.Error(err))
}

func (p *SignalPipeline) stage(name string, start time.Time) {
	p.metrics.RecordStage(name, time.Since(start).Seconds())
}

func runStatus(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domsvc.ErrInsufficientData):
		return "insufficient_data"
	case errors.Is(err, domsvc.ErrDegenerateTrainingData):
		return "degenerate"
	case errors.Is(err, simulator.ErrInvalidRisk):
		return "invalid_risk"
	default:
		return "error"
	}
}

type nopJournal struct{}

func (nopJournal) LogSignal(context.Context, models.SignalLog) error          { return nil }
func (nopJournal) RecordTradeOutcome(context.Context, string, float64) error { return nil }

type nopEvents struct{}

func (nopEvents) PublishSignal(context.Context, string, models.ScoredRow) error { return nil }
func (nopEvents) PublishTrade(context.Context, string, models.Trade) error { return nil }
func (nopEvents) PublishCandle(context.Context, domrepo.Interval, models.Candle) error { return nil }
func (nopEvents) Close() error { return nil }

type nopMetrics struct{}

func (nopMetrics) RecordRun(string) {}
func (nopMetrics) RecordStage(string, float64) {}
func (nopMetrics) RecordSignal(string, models.SignalClass) {}
func (nopMetrics) RecordTrade(string, models.TradeAction, string) {}
func (nopMetrics) RecordAccuracy(string, float64) {}
func (nopMetrics) RecordPortfolioValue(string, float64) {}
func (nopMetrics) RecordCandles(string, int) {}
func (nopMetrics) RecordError(string) {}
