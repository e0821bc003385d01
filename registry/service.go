package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Service implements the car registry operations.
type Service struct {
	store  Store
	logger *zap.Logger
	now    func() time.Time
}

func NewService(store Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, logger: logger, now: time.Now}
}

func (s *Service) List(ctx context.Context) ([]Car, error) {
	cars, err := s.store.ListCars(ctx)
	if err != nil {
		return nil, fmt.Errorf("list cars: %w", err)
	}
	return cars, nil
}

func (s *Service) Get(ctx context.Context, id string) (Car, error) {
	return s.store.GetCar(ctx, id)
}

func (s *Service) Create(ctx context.Context, in CarInput) (Car, error) {
	in = in.normalized()
	if err := in.validate(); err != nil {
		return Car{}, err
	}
	status := in.Status
	if status == "" {
		status = DefaultStatus
	}
	car := Car{
		ID:               uuid.NewString(),
		Model:            in.Model,
		Description:      in.Description,
		Brand:            in.Brand,
		OwnerEmail:       in.OwnerEmail,
		Mileage:          *in.Mileage,
		Status:           status,
		RegistrationDate: s.now().UTC(),
	}
	if err := s.store.InsertCar(ctx, car); err != nil {
		return Car{}, fmt.Errorf("insert car: %w", err)
	}
	s.logger.Info("car created", zap.String("id", car.ID), zap.String("brand", car.Brand), zap.String("model", car.Model))
	return car, nil
}

// Update applies the non-empty fields of in to the stored car.
func (s *Service) Update(ctx context.Context, id string, in UpdateCarInput) (Car, error) {
	in = in.normalized()
	if err := in.validate(); err != nil {
		return Car{}, err
	}
	car, err := s.store.GetCar(ctx, id)
	if err != nil {
		return Car{}, err
	}

	if in.Model != "" {
		car.Model = in.Model
	}
	if in.Description != "" {
		car.Description = in.Description
	}
	if in.Brand != "" {
		car.Brand = in.Brand
	}
	if in.Mileage != nil {
		car.Mileage = *in.Mileage
	}
	if in.OwnerEmail != "" {
		car.OwnerEmail = in.OwnerEmail
	}
	if in.Status != "" {
		car.Status = in.Status
	}

	if err := s.store.UpdateCar(ctx, car); err != nil {
		if errors.Is(err, ErrCarNotFound) {
			return Car{}, err
		}
		return Car{}, fmt.Errorf("update car: %w", err)
	}
	s.logger.Info("car updated", zap.String("id", car.ID))
	return car, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	deleted, err := s.store.DeleteCar(ctx, id)
	if err != nil {
		return fmt.Errorf("delete car: %w", err)
	}
	if !deleted {
		return ErrCarNotFound
	}
	s.logger.Info("car deleted", zap.String("id", id))
	return nil
}
