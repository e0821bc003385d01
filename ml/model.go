package ml

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	// ErrNoTrainingData is returned by Train when the observation set is empty.
	ErrNoTrainingData = errors.New("no training data available")
	// ErrModelNotTrained is returned by Predict before any model has been set.
	ErrModelNotTrained = errors.New("model not trained")
)

// Observation is one historical (mileage, condition) sample.
type Observation struct {
	Mileage float64 `json:"mileage" db:"mileage"`
	Label   bool    `json:"label" db:"label"`
}

// InvalidObservationError reports a mileage outside the domain [0, +Inf).
// Index is -1 when the value did not come from a training set.
type InvalidObservationError struct {
	Index   int
	Mileage float64
}

func (e *InvalidObservationError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("invalid mileage %v: must be a finite non-negative number", e.Mileage)
	}
	return fmt.Sprintf("invalid observation %d: mileage %v must be a finite non-negative number", e.Index, e.Mileage)
}

// ValidateMileage returns an *InvalidObservationError unless mileage is finite and >= 0.
func ValidateMileage(mileage float64) error {
	if math.IsNaN(mileage) || math.IsInf(mileage, 0) || mileage < 0 {
		return &InvalidObservationError{Index: -1, Mileage: mileage}
	}
	return nil
}

// TrainedModel bundles the normalization bounds of one training run with the
// classifier fitted on them. It is never mutated after Train returns it.
type TrainedModel struct {
	version    string
	scaler     MinMaxScaler
	classifier LogisticRegression
	samples    int
	epochs     int
	trainedAt  time.Time
}

func (m *TrainedModel) Version() string      { return m.version }
func (m *TrainedModel) MinMileage() float64  { return m.scaler.Min }
func (m *TrainedModel) MaxMileage() float64  { return m.scaler.Max }
func (m *TrainedModel) Weight() float64      { return m.classifier.Coefs[0] }
func (m *TrainedModel) Bias() float64        { return m.classifier.Bias }
func (m *TrainedModel) Samples() int         { return m.samples }
func (m *TrainedModel) Epochs() int          { return m.epochs }
func (m *TrainedModel) TrainedAt() time.Time { return m.trainedAt }

// Probability returns P(good condition | mileage) under this model.
func (m *TrainedModel) Probability(mileage float64) (float64, error) {
	if err := ValidateMileage(mileage); err != nil {
		return 0, err
	}
	return m.classifier.Probability(FeatureVector(m.scaler.Transform(mileage)))
}

// Predict thresholds Probability at DecisionThreshold.
func (m *TrainedModel) Predict(mileage float64) (bool, float64, error) {
	p, err := m.Probability(mileage)
	if err != nil {
		return false, 0, err
	}
	return p >= DecisionThreshold, p, nil
}

// Info is the JSON view of a model used by the API and the training log.
type Info struct {
	Version    string    `json:"version"`
	MinMileage float64   `json:"min_mileage"`
	MaxMileage float64   `json:"max_mileage"`
	Weight     float64   `json:"weight"`
	Bias       float64   `json:"bias"`
	Samples    int       `json:"samples"`
	Epochs     int       `json:"epochs"`
	TrainedAt  time.Time `json:"trained_at"`
}

func (m *TrainedModel) Info() Info {
	return Info{
		Version:    m.version,
		MinMileage: m.scaler.Min,
		MaxMileage: m.scaler.Max,
		Weight:     m.Weight(),
		Bias:       m.Bias(),
		Samples:    m.samples,
		Epochs:     m.epochs,
		TrainedAt:  m.trainedAt,
	}
}
