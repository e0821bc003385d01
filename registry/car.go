// Package registry holds the car registry: record types, validation and the
// create/read/update/delete service over a Store.
package registry

import (
	"context"
	"errors"
	"time"
)

// DefaultStatus is applied when a car is created without a status.
const DefaultStatus = "Disponível"

var ErrCarNotFound = errors.New("car not found")

// Car is a registered vehicle.
type Car struct {
	ID               string    `json:"id" db:"id"`
	Model            string    `json:"model" db:"model"`
	Description      string    `json:"description" db:"description"`
	Brand            string    `json:"brand" db:"brand"`
	OwnerEmail       string    `json:"owner_email" db:"owner_email"`
	Mileage          int       `json:"mileage" db:"mileage"`
	Status           string    `json:"status" db:"status"`
	RegistrationDate time.Time `json:"registration_date" db:"registration_date"`
}

// CarInput carries the fields of a new car.
type CarInput struct {
	Model       string `json:"model"`
	Description string `json:"description"`
	Brand       string `json:"brand"`
	OwnerEmail  string `json:"owner_email"`
	Mileage     *int   `json:"mileage"`
	Status      string `json:"status"`
}

// UpdateCarInput carries a partial update. Empty strings and a nil mileage
// leave the stored value unchanged.
type UpdateCarInput struct {
	Model       string `json:"model"`
	Description string `json:"description"`
	Brand       string `json:"brand"`
	OwnerEmail  string `json:"owner_email"`
	Mileage     *int   `json:"mileage"`
	Status      string `json:"status"`
}

// Store persists cars.
type Store interface {
	ListCars(ctx context.Context) ([]Car, error)
	GetCar(ctx context.Context, id string) (Car, error)
	InsertCar(ctx context.Context, car Car) error
	UpdateCar(ctx context.Context, car Car) error
	DeleteCar(ctx context.Context, id string) (bool, error)
}
