package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"SignalSim/internal/domain/models"
	"SignalSim/internal/domain/repository"
)

const namespace = "signalsim"

// Recorder implements repository.Metrics using Prometheus.
type Recorder struct {
	registry *prometheus.Registry

	runs           *prometheus.CounterVec
	stageLatency   *prometheus.HistogramVec
	signals        *prometheus.CounterVec
	trades         *prometheus.CounterVec
	accuracy       *prometheus.GaugeVec
	portfolioValue *prometheus.GaugeVec
	candles        *prometheus.CounterVec
	errorsTotal    *prometheus.CounterVec
}

// New creates a recorder on a fresh registry that also carries the Go and
// process collectors.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return NewWithRegistry(reg)
}

// NewWithRegistry registers the collectors on reg.
func NewWithRegistry(reg *prometheus.Registry) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		registry: reg,
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_runs_total",
			Help:      "Pipeline runs by final status",
		}, []string{"status"}),
		stageLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_stage_duration_seconds",
			Help:      "Duration of pipeline stages in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 9),
		}, []string{"stage"}),
		signals: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signals_total",
			Help:      "Predicted signals by class",
		}, []string{"symbol", "class"}),
		trades: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trades_total",
			Help:      "Simulated trades by action and reason",
		}, []string{"symbol", "action", "reason"}),
		accuracy: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "model_accuracy",
			Help:      "Held-out accuracy of the last trained model",
		}, []string{"symbol"}),
		portfolioValue: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "portfolio_value",
			Help:      "Final portfolio value of the last run",
		}, []string{"symbol"}),
		candles: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candles_ingested_total",
			Help:      "Candles received by source",
		}, []string{"source"}),
		errorsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Errors by kind",
		}, []string{"kind"}),
	}
}

// Registry is served on the metrics endpoint.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

func (r *Recorder) RecordRun(status string) {
	r.runs.WithLabelValues(status).Inc()
}

func (r *Recorder) RecordStage(stage string, seconds float64) {
	r.stageLatency.WithLabelValues(stage).Observe(seconds)
}

func (r *Recorder) RecordSignal(symbol string, class models.SignalClass) {
	r.signals.WithLabelValues(symbol, string(class)).Inc()
}

func (r *Recorder) RecordTrade(symbol string, action models.TradeAction, reason string) {
	r.trades.WithLabelValues(symbol, string(action), reason).Inc()
}

func (r *Recorder) RecordAccuracy(symbol string, accuracy float64) {
	r.accuracy.WithLabelValues(symbol).Set(accuracy)
}

func (r *Recorder) RecordPortfolioValue(symbol string, value float64) {
	r.portfolioValue.WithLabelValues(symbol).Set(value)
}

func (r *Recorder) RecordCandles(source string, n int) {
	r.candles.WithLabelValues(source).Add(float64(n))
}

func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

var _ repository.Metrics = (*Recorder)(nil)
