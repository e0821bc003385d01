package ml

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogisticRegressionSeparable(t *testing.T) {
	features := [][]float64{{0.1}, {0.2}, {0.8}, {0.9}}
	labels := []float64{1, 1, 0, 0}

	var lr LogisticRegression
	epochs, err := lr.Train(features, labels, DefaultTrainOptions())
	require.NoError(t, err)
	assert.Greater(t, epochs, 0)

	p, err := lr.Probability([]float64{0.15})
	require.NoError(t, err)
	assert.Greater(t, p, DecisionThreshold)

	p, err = lr.Probability([]float64{0.85})
	require.NoError(t, err)
	assert.Less(t, p, DecisionThreshold)
}

func TestLogisticRegressionErrors(t *testing.T) {
	var lr LogisticRegression
	_, err := lr.Train(nil, nil, TrainOptions{})
	assert.Error(t, err)

	_, err = lr.Train([][]float64{{1}}, []float64{1, 0}, TrainOptions{})
	assert.Error(t, err)

	_, err = lr.Train([][]float64{{1}, {1, 2}}, []float64{1, 0}, TrainOptions{})
	assert.Error(t, err)

	_, err = lr.Train([][]float64{{1}, {0}}, []float64{1, 0}, TrainOptions{MaxEpochs: 10})
	require.NoError(t, err)
	_, err = lr.Probability([]float64{1, 2})
	assert.Error(t, err)
}

func TestLogisticRegressionStopsAtMaxEpochs(t *testing.T) {
	var lr LogisticRegression
	epochs, err := lr.Train([][]float64{{0}, {1}}, []float64{1, 0}, TrainOptions{MaxEpochs: 7, Tolerance: 1e-300})
	require.NoError(t, err)
	assert.Equal(t, 7, epochs)
}

func TestSigmoid(t *testing.T) {
	assert.Equal(t, 0.5, sigmoid(0))
	assert.InDelta(t, 1, sigmoid(1000), 1e-12)
	assert.InDelta(t, 0, sigmoid(-1000), 1e-12)
	assert.False(t, math.IsNaN(sigmoid(-1e308)))
	assert.InDelta(t, 1-sigmoid(2), sigmoid(-2), 1e-15)
}

func TestMinMaxScaler(t *testing.T) {
	s, err := FitScaler([]Observation{{Mileage: 200}, {Mileage: 100}, {Mileage: 300}})
	require.NoError(t, err)
	assert.Equal(t, MinMaxScaler{Min: 100, Max: 300}, s)
	assert.Equal(t, 0.0, s.Transform(100))
	assert.Equal(t, 0.5, s.Transform(200))
	assert.Equal(t, 1.0, s.Transform(300))
	assert.Equal(t, -0.5, s.Transform(0))
	assert.Equal(t, 1.5, s.Transform(400))

	flat := MinMaxScaler{Min: 7, Max: 7}
	assert.True(t, flat.Degenerate())
	assert.Equal(t, 0.0, flat.Transform(7))
	assert.Equal(t, 0.0, flat.Transform(1e9))

	_, err = FitScaler(nil)
	assert.ErrorIs(t, err, ErrNoTrainingData)
}
