package ml

// FeatureVector assembles the vector the classifier is trained and evaluated on.
func FeatureVector(normalizedMileage float64) []float64 {
	return []float64{normalizedMileage}
}

// BuildTrainingSet turns observations into feature vectors and 0/1 labels
// using the given scaler.
func BuildTrainingSet(scaler MinMaxScaler, observations []Observation) ([][]float64, []float64) {
	features := make([][]float64, len(observations))
	labels := make([]float64, len(observations))
	for i, x := range scaler.TransformAll(observations) {
		features[i] = FeatureVector(x)
		if observations[i].Label {
			labels[i] = 1
		}
	}
	return features, labels
}
