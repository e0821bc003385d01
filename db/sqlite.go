package db

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Config selects the SQLite file and journal mode.
type Config struct {
	Path      string
	EnableWAL bool
}

// DB wraps the SQLite handle shared by the repositories.
type DB struct {
	*sqlx.DB
	logger *zap.Logger
}

// Open opens (creating if needed) the database at cfg.Path and applies the
// embedded migrations.
func Open(cfg Config, logger *zap.Logger) (*DB, error) {
	if cfg.Path == "" {
		return nil, errors.New("database path is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if dir := filepath.Dir(cfg.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}

	dsn := cfg.Path + "?_busy_timeout=5000&_foreign_keys=on"
	if cfg.EnableWAL {
		dsn += "&_journal_mode=WAL&_synchronous=NORMAL"
	}
	conn, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database failed: %w", err)
	}
	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(1 * time.Hour)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	d := &DB{DB: conn, logger: logger}
	if err := d.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	logger.Info("database ready", zap.String("path", cfg.Path), zap.Bool("wal", cfg.EnableWAL))
	return d, nil
}

func (d *DB) migrate() error {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	driver, err := sqlite3.WithInstance(d.DB.DB, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	version, dirty, _ := m.Version()
	d.logger.Debug("migrations applied", zap.Uint("version", version), zap.Bool("dirty", dirty))
	return nil
}
