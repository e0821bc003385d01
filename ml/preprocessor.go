package ml

import (
	"github.com/montanaflynn/stats"
)

// MinMaxScaler holds the bounds of a min-max normalization. When Min == Max the
// range is degenerate and Transform maps every value to 0, so the feature is
// constant and the classifier falls back to its bias.
type MinMaxScaler struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// FitScaler computes the bounds over the mileages of observations.
func FitScaler(observations []Observation) (MinMaxScaler, error) {
	if len(observations) == 0 {
		return MinMaxScaler{}, ErrNoTrainingData
	}
	mileages := make(stats.Float64Data, len(observations))
	for i, o := range observations {
		mileages[i] = o.Mileage
	}
	lo, err := mileages.Min()
	if err != nil {
		return MinMaxScaler{}, err
	}
	hi, err := mileages.Max()
	if err != nil {
		return MinMaxScaler{}, err
	}
	return MinMaxScaler{Min: lo, Max: hi}, nil
}

// Degenerate reports whether all fitted values were identical.
func (s MinMaxScaler) Degenerate() bool {
	return s.Max <= s.Min
}

// Transform scales v into [0, 1] for values inside the fitted range. Values
// outside extrapolate linearly.
func (s MinMaxScaler) Transform(v float64) float64 {
	if s.Degenerate() {
		return 0
	}
	return (v - s.Min) / (s.Max - s.Min)
}

// TransformAll normalizes every observation's mileage.
func (s MinMaxScaler) TransformAll(observations []Observation) []float64 {
	out := make([]float64, len(observations))
	for i, o := range observations {
		out[i] = s.Transform(o.Mileage)
	}
	return out
}
