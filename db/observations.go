package db

import (
	"context"
	"fmt"

	"carregistry/ml"
)

// ObservationRepository stores the labeled mileage samples used for training.
type ObservationRepository struct {
	db *DB
}

func NewObservationRepository(d *DB) *ObservationRepository {
	return &ObservationRepository{db: d}
}

// ListObservations returns the complete observation set, fully read into memory.
func (r *ObservationRepository) ListObservations(ctx context.Context) ([]ml.Observation, error) {
	observations := make([]ml.Observation, 0)
	if err := r.db.SelectContext(ctx, &observations, `SELECT mileage, label FROM car_data ORDER BY id`); err != nil {
		return nil, fmt.Errorf("query observations: %w", err)
	}
	return observations, nil
}

func (r *ObservationRepository) CountObservations(ctx context.Context) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM car_data`); err != nil {
		return 0, err
	}
	return n, nil
}

// AddObservation appends one sample and returns its row id.
func (r *ObservationRepository) AddObservation(ctx context.Context, o ml.Observation) (int64, error) {
	if err := ml.ValidateMileage(o.Mileage); err != nil {
		return 0, err
	}
	res, err := r.db.ExecContext(ctx, `INSERT INTO car_data (mileage, label) VALUES (?, ?)`, o.Mileage, o.Label)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ReplaceObservations swaps the whole observation set in one transaction.
func (r *ObservationRepository) ReplaceObservations(ctx context.Context, observations []ml.Observation) error {
	for i, o := range observations {
		if err := ml.ValidateMileage(o.Mileage); err != nil {
			return &ml.InvalidObservationError{Index: i, Mileage: o.Mileage}
		}
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM car_data`); err != nil {
		return fmt.Errorf("clear observations: %w", err)
	}
	stmt, err := tx.PreparexContext(ctx, `INSERT INTO car_data (mileage, label) VALUES (?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, o := range observations {
		if _, err := stmt.ExecContext(ctx, o.Mileage, o.Label); err != nil {
			return fmt.Errorf("insert failed: %w", err)
		}
	}
	return tx.Commit()
}
