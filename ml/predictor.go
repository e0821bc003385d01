package ml

import (
	"errors"
	"sync/atomic"
)

// PredictionService serves predictions from the most recently set model.
// The model pointer is swapped atomically; each prediction works on the
// snapshot it loaded, so a concurrent SetModel never yields a mix of old
// bounds and new weights.
type PredictionService struct {
	current atomic.Pointer[TrainedModel]
}

func NewPredictionService() *PredictionService {
	return &PredictionService{}
}

// SetModel replaces the held model.
func (s *PredictionService) SetModel(model *TrainedModel) error {
	if model == nil {
		return errors.New("model is nil")
	}
	s.current.Store(model)
	return nil
}

// Model returns the held model, or nil while untrained.
func (s *PredictionService) Model() *TrainedModel {
	return s.current.Load()
}

func (s *PredictionService) Trained() bool {
	return s.current.Load() != nil
}

// Prediction is the detailed outcome of a single prediction.
type Prediction struct {
	GoodCondition bool    `json:"good_condition"`
	Probability   float64 `json:"probability"`
	ModelVersion  string  `json:"model_version"`
}

// Predict reports whether a car with the given mileage is in good condition.
func (s *PredictionService) Predict(mileage float64) (bool, error) {
	p, err := s.PredictDetailed(mileage)
	if err != nil {
		return false, err
	}
	return p.GoodCondition, nil
}

func (s *PredictionService) PredictDetailed(mileage float64) (Prediction, error) {
	model := s.current.Load()
	if model == nil {
		return Prediction{}, ErrModelNotTrained
	}
	good, p, err := model.Predict(mileage)
	if err != nil {
		return Prediction{}, err
	}
	return Prediction{GoodCondition: good, Probability: p, ModelVersion: model.Version()}, nil
}
