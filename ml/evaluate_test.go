package ml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluate(t *testing.T) {
	model, err := NewTrainingPipeline(DefaultTrainOptions()).Train(scenarioObservations())
	require.NoError(t, err)

	m, err := Evaluate(model, scenarioObservations())
	require.NoError(t, err)
	assert.Equal(t, 1.0, m.Accuracy)
	assert.Equal(t, 1.0, m.Precision)
	assert.Equal(t, 1.0, m.Recall)
	assert.Equal(t, 4, m.Samples)
	assert.Greater(t, m.LogLoss, 0.0)
	assert.Less(t, m.LogLoss, 0.2)

	m, err = Evaluate(model, []Observation{{Mileage: 500, Label: false}, {Mileage: 140000, Label: false}})
	require.NoError(t, err)
	assert.Equal(t, 0.5, m.Accuracy)
	assert.Equal(t, 0.0, m.Precision)
	assert.Equal(t, 0.0, m.Recall)
}

func TestEvaluateErrors(t *testing.T) {
	_, err := Evaluate(nil, scenarioObservations())
	assert.ErrorIs(t, err, ErrModelNotTrained)

	model, err := NewTrainingPipeline(DefaultTrainOptions()).Train(scenarioObservations())
	require.NoError(t, err)
	_, err = Evaluate(model, nil)
	assert.ErrorIs(t, err, ErrNoTrainingData)
}

func TestSplitDataset(t *testing.T) {
	obs := make([]Observation, 10)
	for i := range obs {
		obs[i] = Observation{Mileage: float64(i * 1000), Label: i < 5}
	}

	train, test := SplitDataset(obs, 0.3, 42)
	assert.Len(t, train, 7)
	assert.Len(t, test, 3)

	again, _ := SplitDataset(obs, 0.3, 42)
	assert.Equal(t, train, again)

	train, test = SplitDataset(obs, 5, 1)
	assert.Len(t, train, 8)
	assert.Len(t, test, 2)
	assert.ElementsMatch(t, obs, append(train, test...))
}

func TestSplitDatasetKeepsTrainingObservation(t *testing.T) {
	obs := []Observation{{Mileage: 1000, Label: true}}

	train, test := SplitDataset(obs, 0.6, 7)
	assert.Equal(t, obs, train)
	assert.Empty(t, test)

	train, test = SplitDataset(obs[:1], 0.99, 7)
	assert.Len(t, train, 1)
	assert.Empty(t, test)

	train, test = SplitDataset(nil, 0.6, 7)
	assert.Empty(t, train)
	assert.Empty(t, test)
}
