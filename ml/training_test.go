package ml

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scenarioObservations() []Observation {
	return []Observation{
		{Mileage: 0, Label: true},
		{Mileage: 100, Label: true},
		{Mileage: 100000, Label: false},
		{Mileage: 150000, Label: false},
	}
}

func TestTrainScenario(t *testing.T) {
	model, err := NewTrainingPipeline(DefaultTrainOptions()).Train(scenarioObservations())
	require.NoError(t, err)

	assert.Equal(t, 0.0, model.MinMileage())
	assert.Equal(t, 150000.0, model.MaxMileage())
	assert.Equal(t, 4, model.Samples())
	assert.Less(t, model.Weight(), 0.0, "good condition should correlate with low mileage")
	assert.NotEmpty(t, model.Version())

	good, p, err := model.Predict(500)
	require.NoError(t, err)
	assert.True(t, good)
	assert.Greater(t, p, 0.9)

	good, p, err = model.Predict(149000)
	require.NoError(t, err)
	assert.False(t, good)
	assert.Less(t, p, 0.1)
}

func TestTrainBoundsMatchInput(t *testing.T) {
	tests := []struct {
		name string
		obs  []Observation
		min  float64
		max  float64
	}{
		{"unordered", []Observation{{Mileage: 300, Label: false}, {Mileage: 10, Label: true}, {Mileage: 70}}, 10, 300},
		{"fractional", []Observation{{Mileage: 0.5, Label: true}, {Mileage: 1.25}}, 0.5, 1.25},
		{"duplicates", []Observation{{Mileage: 5}, {Mileage: 5, Label: true}, {Mileage: 9}}, 5, 9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model, err := NewTrainingPipeline(TrainOptions{}).Train(tt.obs)
			require.NoError(t, err)
			assert.Equal(t, tt.min, model.MinMileage())
			assert.Equal(t, tt.max, model.MaxMileage())
		})
	}
}

func TestTrainEmpty(t *testing.T) {
	pipeline := NewTrainingPipeline(DefaultTrainOptions())

	model, err := pipeline.Train(nil)
	assert.Nil(t, model)
	assert.ErrorIs(t, err, ErrNoTrainingData)

	_, err = pipeline.Train([]Observation{})
	assert.ErrorIs(t, err, ErrNoTrainingData)
}

func TestTrainRejectsInvalidMileage(t *testing.T) {
	for _, bad := range []float64{-1, math.NaN(), math.Inf(1)} {
		obs := []Observation{{Mileage: 10, Label: true}, {Mileage: bad}}
		_, err := NewTrainingPipeline(DefaultTrainOptions()).Train(obs)

		var invalid *InvalidObservationError
		require.True(t, errors.As(err, &invalid), "mileage %v", bad)
		assert.Equal(t, 1, invalid.Index)
	}
}

func TestTrainDegenerateRange(t *testing.T) {
	model, err := NewTrainingPipeline(DefaultTrainOptions()).Train([]Observation{{Mileage: 5000, Label: true}})
	require.NoError(t, err)
	assert.Equal(t, 5000.0, model.MinMileage())
	assert.Equal(t, 5000.0, model.MaxMileage())
	assert.Equal(t, 0.0, model.Weight())

	good, p, err := model.Predict(5000)
	require.NoError(t, err)
	assert.False(t, math.IsNaN(p))
	assert.True(t, good)

	// constant feature: every mileage gets the bias-only answer
	good, _, err = model.Predict(250000)
	require.NoError(t, err)
	assert.True(t, good)

	mostlyBad, err := NewTrainingPipeline(DefaultTrainOptions()).Train([]Observation{
		{Mileage: 5000}, {Mileage: 5000, Label: true}, {Mileage: 5000},
	})
	require.NoError(t, err)
	good, p, err = mostlyBad.Predict(5000)
	require.NoError(t, err)
	assert.False(t, good)
	assert.InDelta(t, 1.0/3, p, 1e-3)
}

func TestTrainDeterministic(t *testing.T) {
	pipeline := NewTrainingPipeline(DefaultTrainOptions())
	a, err := pipeline.Train(scenarioObservations())
	require.NoError(t, err)
	b, err := pipeline.Train(scenarioObservations())
	require.NoError(t, err)

	assert.Equal(t, a.Weight(), b.Weight())
	assert.Equal(t, a.Bias(), b.Bias())
	assert.Equal(t, a.Epochs(), b.Epochs())
	assert.NotEqual(t, a.Version(), b.Version())
}

func TestTrainMonotonicBelowMinimum(t *testing.T) {
	obs := []Observation{
		{Mileage: 10000, Label: true},
		{Mileage: 20000, Label: true},
		{Mileage: 30000, Label: true},
		{Mileage: 150000, Label: false},
		{Mileage: 180000, Label: false},
		{Mileage: 200000, Label: false},
	}
	model, err := NewTrainingPipeline(DefaultTrainOptions()).Train(obs)
	require.NoError(t, err)

	atMin, pMin, err := model.Predict(10000)
	require.NoError(t, err)
	below, pBelow, err := model.Predict(0)
	require.NoError(t, err)

	assert.True(t, atMin)
	assert.True(t, below)
	assert.GreaterOrEqual(t, pBelow, pMin)
}

func TestTrainStampsTime(t *testing.T) {
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.FixedZone("BRT", -3*3600))
	pipeline := NewTrainingPipeline(DefaultTrainOptions())
	pipeline.now = func() time.Time { return fixed }

	model, err := pipeline.Train(scenarioObservations())
	require.NoError(t, err)
	assert.True(t, model.TrainedAt().Equal(fixed))
	assert.Equal(t, time.UTC, model.TrainedAt().Location())
	assert.Equal(t, model.Version(), model.Info().Version)
}
