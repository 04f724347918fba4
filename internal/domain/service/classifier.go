package service

import (
	"errors"

	"SignalSim/internal/domain/models"
)

var (
	// ErrInsufficientData is returned when there are not enough candles or usable rows.
	ErrInsufficientData = errors.New("insufficient data: fetch more history or increase the lookback window")

	// ErrDegenerateTrainingData is returned when the training split holds a single class.
	ErrDegenerateTrainingData = errors.New("training data contains only one class; training requires at least two classes (e.g. BUY and HOLD). Try increasing the training lookback, lowering the threshold or selecting a different symbol/interval")

	// ErrModelNotTrained is returned by Predict before any successful Train.
	ErrModelNotTrained = errors.New("model not trained: train the classifier before requesting predictions")
)

// SignalClassifier maps feature rows to BUY/SELL/HOLD signals.
// Implementations are not safe for concurrent use.
type SignalClassifier interface {
	// Train fits a new model on the usable rows and returns held-out accuracy.
	Train(rows []models.FeatureRow) (float64, error)
	// Predict scores every row; rows with incomplete features get no signal.
	Predict(rows []models.FeatureRow) ([]models.ScoredRow, error)
	// Trained reports whether a model is available.
	Trained() bool
}
