package db

import (
	"context"
	"time"

	"carregistry/ml"
)

type TrainingLog struct {
	ModelVersion string    `json:"model_version" db:"model_version"`
	Accuracy     float64   `json:"accuracy" db:"accuracy"`
	Precision    float64   `json:"precision" db:"precision"`
	Recall       float64   `json:"recall" db:"recall"`
	LogLoss      float64   `json:"log_loss" db:"log_loss"`
	MinMileage   float64   `json:"min_mileage" db:"min_mileage"`
	MaxMileage   float64   `json:"max_mileage" db:"max_mileage"`
	Weight       float64   `json:"weight" db:"weight"`
	Bias         float64   `json:"bias" db:"bias"`
	Epochs       int       `json:"epochs" db:"epochs"`
	DataPoints   int       `json:"data_points" db:"data_points"`
	TrainedAt    time.Time `json:"trained_at" db:"trained_at"`
}

type TrainingLogRepository struct {
	db *DB
}

func NewTrainingLogRepository(d *DB) *TrainingLogRepository {
	return &TrainingLogRepository{db: d}
}

func (r *TrainingLogRepository) SaveTrainingLog(ctx context.Context, entry TrainingLog) error {
	_, err := r.db.NamedExecContext(ctx, `
        INSERT INTO training_log (
            model_version, accuracy, precision, recall, log_loss,
            min_mileage, max_mileage, weight, bias, epochs, data_points, trained_at
        ) VALUES (
            :model_version, :accuracy, :precision, :recall, :log_loss,
            :min_mileage, :max_mileage, :weight, :bias, :epochs, :data_points, :trained_at
        )`, entry)
	return err
}

// RecordTraining stores the outcome of one training run.
func (r *TrainingLogRepository) RecordTraining(ctx context.Context, info ml.Info, metrics ml.Metrics) error {
	return r.SaveTrainingLog(ctx, TrainingLog{
		ModelVersion: info.Version,
		Accuracy:     metrics.Accuracy,
		Precision:    metrics.Precision,
		Recall:       metrics.Recall,
		LogLoss:      metrics.LogLoss,
		MinMileage:   info.MinMileage,
		MaxMileage:   info.MaxMileage,
		Weight:       info.Weight,
		Bias:         info.Bias,
		Epochs:       info.Epochs,
		DataPoints:   info.Samples,
		TrainedAt:    info.TrainedAt,
	})
}

// LoadTrainingLog returns the most recent runs first. limit <= 0 returns all.
func (r *TrainingLogRepository) LoadTrainingLog(ctx context.Context, limit int) ([]TrainingLog, error) {
	if limit <= 0 {
		limit = -1
	}
	logs := make([]TrainingLog, 0)
	err := r.db.SelectContext(ctx, &logs, `
        SELECT model_version, accuracy, precision, recall, log_loss, min_mileage, max_mileage,
               weight, bias, epochs, data_points, trained_at
        FROM training_log
        ORDER BY trained_at DESC, id DESC
        LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	return logs, nil
}
