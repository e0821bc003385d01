package ml

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPredictBeforeTraining(t *testing.T) {
	svc := NewPredictionService()
	assert.False(t, svc.Trained())
	assert.Nil(t, svc.Model())

	_, err := svc.Predict(1000)
	assert.ErrorIs(t, err, ErrModelNotTrained)
	_, err = svc.PredictDetailed(1000)
	assert.ErrorIs(t, err, ErrModelNotTrained)
}

func TestSetModelRejectsNil(t *testing.T) {
	svc := NewPredictionService()
	assert.Error(t, svc.SetModel(nil))
	assert.False(t, svc.Trained())
}

func TestPredictIdempotent(t *testing.T) {
	model, err := NewTrainingPipeline(DefaultTrainOptions()).Train(scenarioObservations())
	require.NoError(t, err)
	svc := NewPredictionService()
	require.NoError(t, svc.SetModel(model))

	for _, mileage := range []float64{0, 500, 75000, 149000, 1e7} {
		first, err := svc.Predict(mileage)
		require.NoError(t, err)
		second, err := svc.Predict(mileage)
		require.NoError(t, err)
		assert.Equal(t, first, second, "mileage %v", mileage)
	}
}

func TestPredictRejectsInvalidMileage(t *testing.T) {
	model, err := NewTrainingPipeline(DefaultTrainOptions()).Train(scenarioObservations())
	require.NoError(t, err)
	svc := NewPredictionService()
	require.NoError(t, svc.SetModel(model))

	_, err = svc.Predict(-5)
	var invalid *InvalidObservationError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, -1, invalid.Index)
}

func TestSetModelReplaces(t *testing.T) {
	lowIsGood, err := NewTrainingPipeline(DefaultTrainOptions()).Train(scenarioObservations())
	require.NoError(t, err)
	highIsGood, err := NewTrainingPipeline(DefaultTrainOptions()).Train([]Observation{
		{Mileage: 0, Label: false},
		{Mileage: 100, Label: false},
		{Mileage: 100000, Label: true},
		{Mileage: 150000, Label: true},
	})
	require.NoError(t, err)

	svc := NewPredictionService()
	require.NoError(t, svc.SetModel(lowIsGood))
	good, err := svc.Predict(500)
	require.NoError(t, err)
	assert.True(t, good)

	require.NoError(t, svc.SetModel(highIsGood))
	good, err = svc.Predict(500)
	require.NoError(t, err)
	assert.False(t, good)

	p, err := svc.PredictDetailed(500)
	require.NoError(t, err)
	assert.Equal(t, highIsGood.Version(), p.ModelVersion)
}

func TestConcurrentSwapNeverMixesModels(t *testing.T) {
	pipeline := NewTrainingPipeline(DefaultTrainOptions())
	a, err := pipeline.Train(scenarioObservations())
	require.NoError(t, err)
	b, err := pipeline.Train([]Observation{
		{Mileage: 50000, Label: true},
		{Mileage: 60000, Label: true},
		{Mileage: 400000, Label: false},
	})
	require.NoError(t, err)
	models := map[string]*TrainedModel{a.Version(): a, b.Version(): b}

	svc := NewPredictionService()
	require.NoError(t, svc.SetModel(a))

	const mileage = 90000
	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			next := a
			if i%2 == 0 {
				next = b
			}
			_ = svc.SetModel(next)
		}
	}()

	errs := make(chan error, 8)
	var readers sync.WaitGroup
	for r := 0; r < 8; r++ {
		readers.Add(1)
		go func() {
			defer readers.Done()
			for i := 0; i < 2000; i++ {
				got, err := svc.PredictDetailed(mileage)
				if err != nil {
					errs <- err
					return
				}
				want, err := models[got.ModelVersion].Probability(mileage)
				if err != nil {
					errs <- err
					return
				}
				if want != got.Probability {
					errs <- errors.New("prediction mixed parameters of two models")
					return
				}
			}
		}()
	}
	readers.Wait()
	close(stop)
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Fatal(err)
	}
}
