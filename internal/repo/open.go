package repo

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Драйверы хранилища.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config — конфигурация хранилища.
type Config struct {
	// Driver — "postgres" (по умолчанию) или "sqlite".
	Driver string

	// DSN — строка подключения к Postgres.
	DSN string

	// SQLitePath — путь к файлу SQLite (":memory:" для тестов).
	SQLitePath string

	// MaxConns — размер пула Postgres (default: 10).
	MaxConns int32

	// BusyTimeout — PRAGMA busy_timeout для SQLite (default: 5s).
	BusyTimeout time.Duration

	// AutoMigrate — применить встроенную схему при открытии.
	AutoMigrate bool
}

// Open выбирает реализацию Store один раз при старте.
// Остальной код работает только с интерфейсом.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var (
		store Store
		err   error
	)

	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "", DriverPostgres, "postgresql", "pgx":
		pool, perr := NewPool(ctx, cfg.DSN, cfg.MaxConns)
		if perr != nil {
			return nil, perr
		}
		store = NewPostgresStore(pool)
		driver = DriverPostgres
	case DriverSQLite, "sqlite3":
		store, err = OpenSQLite(ctx, cfg.SQLitePath, cfg.BusyTimeout)
		if err != nil {
			return nil, err
		}
		driver = DriverSQLite
	default:
		return nil, fmt.Errorf("unknown storage driver: %s", cfg.Driver)
	}

	if cfg.AutoMigrate {
		if err := store.Migrate(ctx); err != nil {
			store.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}

	logger.Info("storage opened", "driver", driver)
	return store, nil
}
