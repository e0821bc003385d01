package ml

import (
	"math"
	"math/rand"

	"github.com/montanaflynn/stats"
)

// Metrics summarizes a model against a labeled set. The positive class is
// "good condition".
type Metrics struct {
	Accuracy  float64 `json:"accuracy"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	LogLoss   float64 `json:"log_loss"`
	Samples   int     `json:"samples"`
}

const probabilityClip = 1e-15

func Evaluate(model *TrainedModel, observations []Observation) (Metrics, error) {
	if len(observations) == 0 {
		return Metrics{}, ErrNoTrainingData
	}
	if model == nil {
		return Metrics{}, ErrModelNotTrained
	}

	var correct, truePositive, predictedPositive, actualPositive int
	losses := make(stats.Float64Data, 0, len(observations))
	for _, o := range observations {
		good, p, err := model.Predict(o.Mileage)
		if err != nil {
			return Metrics{}, err
		}
		if good == o.Label {
			correct++
		}
		if good {
			predictedPositive++
		}
		if o.Label {
			actualPositive++
			if good {
				truePositive++
			}
		}
		p = math.Min(math.Max(p, probabilityClip), 1-probabilityClip)
		if o.Label {
			losses = append(losses, -math.Log(p))
		} else {
			losses = append(losses, -math.Log(1-p))
		}
	}

	m := Metrics{
		Accuracy: float64(correct) / float64(len(observations)),
		Samples:  len(observations),
	}
	if predictedPositive > 0 {
		m.Precision = float64(truePositive) / float64(predictedPositive)
	}
	if actualPositive > 0 {
		m.Recall = float64(truePositive) / float64(actualPositive)
	}
	mean, err := losses.Mean()
	if err != nil {
		return Metrics{}, err
	}
	m.LogLoss = mean
	return m, nil
}

// SplitDataset shuffles observations with a fixed seed and splits off
// testRatio of them. Ratios outside (0, 1) fall back to 0.2. A non-empty
// input always keeps at least one observation for training.
func SplitDataset(observations []Observation, testRatio float64, seed int64) (train, test []Observation) {
	if testRatio <= 0 || testRatio >= 1 {
		testRatio = 0.2
	}
	rnd := rand.New(rand.NewSource(seed))
	indices := rnd.Perm(len(observations))

	split := int(math.Round(float64(len(observations)) * (1 - testRatio)))
	if split < 1 && len(observations) > 0 {
		split = 1
	}
	for i, idx := range indices {
		if i < split {
			train = append(train, observations[idx])
		} else {
			test = append(test, observations[idx])
		}
	}
	return train, test
}
