package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"carregistry/registry"
)

const defaultCarCacheSize = 1024

// CarRepository stores cars and keeps recently read ones in an LRU cache.
// Writes go to SQLite first and then refresh or evict the cached entry.
// A read that started before a write never fills the cache afterwards:
// every write bumps gen, and a fill is dropped when gen moved while the
// row was being loaded.
type CarRepository struct {
	db    *DB
	cache *lru.Cache[string, registry.Car]

	mu  sync.Mutex
	gen uint64
}

func NewCarRepository(d *DB, cacheSize int) (*CarRepository, error) {
	if cacheSize <= 0 {
		cacheSize = defaultCarCacheSize
	}
	cache, err := lru.New[string, registry.Car](cacheSize)
	if err != nil {
		return nil, err
	}
	return &CarRepository{db: d, cache: cache}, nil
}

const carColumns = `id, model, description, brand, owner_email, mileage, status, registration_date`

func (r *CarRepository) ListCars(ctx context.Context) ([]registry.Car, error) {
	cars := make([]registry.Car, 0)
	err := r.db.SelectContext(ctx, &cars, `SELECT `+carColumns+` FROM cars ORDER BY registration_date, id`)
	if err != nil {
		return nil, err
	}
	return cars, nil
}

func (r *CarRepository) GetCar(ctx context.Context, id string) (registry.Car, error) {
	if car, ok := r.cache.Get(id); ok {
		return car, nil
	}
	r.mu.Lock()
	gen := r.gen
	r.mu.Unlock()

	var car registry.Car
	err := r.db.GetContext(ctx, &car, `SELECT `+carColumns+` FROM cars WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return registry.Car{}, registry.ErrCarNotFound
	}
	if err != nil {
		return registry.Car{}, err
	}
	r.mu.Lock()
	if r.gen == gen {
		r.cache.Add(id, car)
	}
	r.mu.Unlock()
	return car, nil
}

// invalidate evicts id after a successful write.
func (r *CarRepository) invalidate(id string) {
	r.mu.Lock()
	r.gen++
	r.cache.Remove(id)
	r.mu.Unlock()
}

func (r *CarRepository) InsertCar(ctx context.Context, car registry.Car) error {
	_, err := r.db.NamedExecContext(ctx, `
        INSERT INTO cars (`+carColumns+`)
        VALUES (:id, :model, :description, :brand, :owner_email, :mileage, :status, :registration_date)`, car)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.gen++
	r.cache.Add(car.ID, car)
	r.mu.Unlock()
	return nil
}

func (r *CarRepository) UpdateCar(ctx context.Context, car registry.Car) error {
	res, err := r.db.NamedExecContext(ctx, `
        UPDATE cars SET model = :model, description = :description, brand = :brand,
            owner_email = :owner_email, mileage = :mileage, status = :status
        WHERE id = :id`, car)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	r.invalidate(car.ID)
	if n == 0 {
		return registry.ErrCarNotFound
	}
	return nil
}

func (r *CarRepository) DeleteCar(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM cars WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	r.invalidate(id)
	return n > 0, nil
}

// CachedCars reports how many cars are currently cached.
func (r *CarRepository) CachedCars() int {
	return r.cache.Len()
}
