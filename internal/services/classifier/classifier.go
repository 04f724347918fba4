package classifier

import (
	"fmt"
	"math"

	"SignalSim/internal/domain/models"
	domsvc "SignalSim/internal/domain/service"
)

// Config holds the boosting hyperparameters and the training policy.
type Config struct {
	Estimators     int
	LearningRate   float64
	MaxDepth       int
	MinSamplesLeaf int
	MinRows        int
	TestFraction   float64
}

// Option configures GradientBoosting.
type Option func(*Config)

// WithEstimators sets the number of boosting stages.
func WithEstimators(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.Estimators = n
		}
	}
}

// WithLearningRate sets the shrinkage applied to every stage.
func WithLearningRate(rate float64) Option {
	return func(c *Config) {
		if rate > 0 {
			c.LearningRate = rate
		}
	}
}

// WithMaxDepth sets the depth of each regression tree.
func WithMaxDepth(depth int) Option {
	return func(c *Config) {
		if depth > 0 {
			c.MaxDepth = depth
		}
	}
}

// WithMinRows sets the minimum number of usable rows required to train.
func WithMinRows(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.MinRows = n
		}
	}
}

// WithTestFraction sets the share of rows held out at the end of the series.
func WithTestFraction(f float64) Option {
	return func(c *Config) {
		if f > 0 && f < 1 {
			c.TestFraction = f
		}
	}
}

// GradientBoosting is a multiclass gradient boosted tree classifier.
// The fitted model is owned by the instance and replaced wholesale on every
// successful Train.
type GradientBoosting struct {
	cfg   Config
	model *ensemble
}

// New creates an untrained classifier.
func New(opts ...Option) *GradientBoosting {
	cfg := Config{
		Estimators:     100,
		LearningRate:   0.1,
		MaxDepth:       3,
		MinSamplesLeaf: 1,
		MinRows:        50,
		TestFraction:   0.2,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &GradientBoosting{cfg: cfg}
}

// Trained reports whether Train has succeeded at least once.
func (g *GradientBoosting) Trained() bool { return g.model != nil }

// Train drops unusable rows, fits on the leading part of the series and returns
// the accuracy on the held-out tail.
func (g *GradientBoosting) Train(rows []models.FeatureRow) (float64, error) {
	x := make([][]float64, 0, len(rows))
	y := make([]int, 0, len(rows))
	for _, r := range rows {
		if !r.Usable() {
			continue
		}
		c, ok := EncodeClass(r.Label)
		if !ok {
			continue
		}
		x = append(x, r.Features.Values())
		y = append(y, c)
	}

	if len(x) < g.cfg.MinRows {
		return 0, fmt.Errorf("train: %d usable rows, need at least %d: %w", len(x), g.cfg.MinRows, domsvc.ErrInsufficientData)
	}

	nTest := int(math.Ceil(float64(len(x)) * g.cfg.TestFraction))
	nTrain := len(x) - nTest
	if nTrain < 1 || nTest < 1 {
		return 0, fmt.Errorf("train: cannot split %d rows: %w", len(x), domsvc.ErrInsufficientData)
	}

	if len(distinct(y[:nTrain])) < 2 {
		return 0, fmt.Errorf("train: %w", domsvc.ErrDegenerateTrainingData)
	}

	m := fitEnsemble(x[:nTrain], y[:nTrain], g.cfg)

	correct := 0
	for i := nTrain; i < len(x); i++ {
		if c, _ := m.predict(x[i]); c == y[i] {
			correct++
		}
	}

	g.model = m
	return float64(correct) / float64(nTest), nil
}

// Predict scores every row with the current model. Rows with an incomplete
// feature vector are returned without a signal.
func (g *GradientBoosting) Predict(rows []models.FeatureRow) ([]models.ScoredRow, error) {
	m := g.model
	if m == nil {
		return nil, fmt.Errorf("predict: %w", domsvc.ErrModelNotTrained)
	}

	out := make([]models.ScoredRow, len(rows))
	for i, r := range rows {
		out[i].FeatureRow = r
		if !r.Features.Complete() {
			continue
		}
		idx, p := m.predict(r.Features.Values())
		class, ok := DecodeClass(idx)
		if !ok {
			return nil, fmt.Errorf("predict: unknown class index %d", idx)
		}
		out[i].Signal = models.Signal{Class: class, Confidence: p}
		out[i].HasSignal = true
	}
	return out, nil
}

var _ domsvc.SignalClassifier = (*GradientBoosting)(nil)
