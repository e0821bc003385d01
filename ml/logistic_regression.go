package ml

import (
	"errors"
	"math"
)

// DecisionThreshold is the probability at or above which a sample is classified positive.
const DecisionThreshold = 0.5

// TrainOptions controls the gradient descent fit.
type TrainOptions struct {
	LearningRate float64 `json:"learning_rate"`
	MaxEpochs    int     `json:"max_epochs"`
	Tolerance    float64 `json:"tolerance"`
	L2           float64 `json:"l2"`
}

// DefaultTrainOptions returns options that converge on [0,1]-scaled features.
func DefaultTrainOptions() TrainOptions {
	return TrainOptions{
		LearningRate: 1.0,
		MaxEpochs:    5000,
		Tolerance:    1e-7,
		L2:           1e-3,
	}
}

func (o TrainOptions) withDefaults() TrainOptions {
	d := DefaultTrainOptions()
	if o.LearningRate <= 0 {
		o.LearningRate = d.LearningRate
	}
	if o.MaxEpochs <= 0 {
		o.MaxEpochs = d.MaxEpochs
	}
	if o.Tolerance <= 0 {
		o.Tolerance = d.Tolerance
	}
	if o.L2 < 0 {
		o.L2 = 0
	}
	return o
}

// LogisticRegression is a binary logistic regression classifier.
type LogisticRegression struct {
	Bias  float64   `json:"bias"`
	Coefs []float64 `json:"coefs"`
}

// Train fits the model by full-batch gradient descent on the mean log-loss,
// with L2 applied to the coefficients only. It starts from zero and visits
// samples in order, so equal inputs always produce equal models. It returns
// the number of epochs run.
func (lr *LogisticRegression) Train(features [][]float64, labels []float64, opts TrainOptions) (int, error) {
	if len(features) == 0 || len(labels) == 0 {
		return 0, errors.New("features or labels empty")
	}
	if len(features) != len(labels) {
		return 0, errors.New("features and labels size mismatch")
	}
	opts = opts.withDefaults()

	dim := len(features[0])
	for _, f := range features {
		if len(f) != dim {
			return 0, errors.New("inconsistent feature vector length")
		}
	}

	lr.Bias = 0
	lr.Coefs = make([]float64, dim)
	gradW := make([]float64, dim)
	n := float64(len(features))

	epoch := 0
	for epoch < opts.MaxEpochs {
		epoch++
		for j := range gradW {
			gradW[j] = 0
		}
		gradB := 0.0
		for i, f := range features {
			residual := sigmoid(lr.score(f)) - labels[i]
			for j, x := range f {
				gradW[j] += residual * x
			}
			gradB += residual
		}

		norm := 0.0
		gradB /= n
		norm += gradB * gradB
		for j := range gradW {
			gradW[j] = gradW[j]/n + opts.L2*lr.Coefs[j]
			norm += gradW[j] * gradW[j]
		}

		lr.Bias -= opts.LearningRate * gradB
		for j := range lr.Coefs {
			lr.Coefs[j] -= opts.LearningRate * gradW[j]
		}
		if math.Sqrt(norm) < opts.Tolerance {
			break
		}
	}
	return epoch, nil
}

// Probability returns the probability of the positive class.
func (lr *LogisticRegression) Probability(features []float64) (float64, error) {
	if len(features) != len(lr.Coefs) {
		return 0, errors.New("feature length does not match model")
	}
	return sigmoid(lr.score(features)), nil
}

func (lr *LogisticRegression) score(features []float64) float64 {
	s := lr.Bias
	for j, c := range lr.Coefs {
		s += c * features[j]
	}
	return s
}

// sigmoid avoids overflow of math.Exp for large |x|.
func sigmoid(x float64) float64 {
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1 + e)
}
