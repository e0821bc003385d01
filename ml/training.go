package ml

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// TrainingPipeline normalizes mileage and fits a logistic regression on it.
// It holds no state between runs.
type TrainingPipeline struct {
	opts TrainOptions
	now  func() time.Time
}

func NewTrainingPipeline(opts TrainOptions) *TrainingPipeline {
	return &TrainingPipeline{opts: opts.withDefaults(), now: time.Now}
}

func (p *TrainingPipeline) Options() TrainOptions {
	return p.opts
}

// Train fits a new model on the complete observation set.
func (p *TrainingPipeline) Train(observations []Observation) (*TrainedModel, error) {
	if len(observations) == 0 {
		return nil, ErrNoTrainingData
	}
	for i, o := range observations {
		if math.IsNaN(o.Mileage) || math.IsInf(o.Mileage, 0) || o.Mileage < 0 {
			return nil, &InvalidObservationError{Index: i, Mileage: o.Mileage}
		}
	}

	scaler, err := FitScaler(observations)
	if err != nil {
		return nil, err
	}
	features, labels := BuildTrainingSet(scaler, observations)

	var classifier LogisticRegression
	epochs, err := classifier.Train(features, labels, p.opts)
	if err != nil {
		return nil, fmt.Errorf("fit logistic regression: %w", err)
	}

	return &TrainedModel{
		version:    uuid.NewString(),
		scaler:     scaler,
		classifier: classifier,
		samples:    len(observations),
		epochs:     epochs,
		trainedAt:  p.now().UTC(),
	}, nil
}
