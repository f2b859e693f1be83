package repo

import (
	"context"
	_ "embed"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema/postgres.sql
var postgresSchema string

// PostgresStore — Store поверх pgxpool.
type PostgresStore struct {
	*SlotRepo
	*PostedRepo
	*CandidateRepo

	pool *pgxpool.Pool
}

// NewPostgresStore собирает Store из репозиториев над одним пулом.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{
		SlotRepo:      NewSlotRepo(pool),
		PostedRepo:    NewPostedRepo(pool),
		CandidateRepo: NewCandidateRepo(pool),
		pool:          pool,
	}
}

// Pool возвращает пул соединений (нужен для advisory lock).
func (s *PostgresStore) Pool() *pgxpool.Pool {
	return s.pool
}

// Migrate применяет встроенную схему. Идемпотентно.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresSchema); err != nil {
		return persistErr("apply schema", err)
	}
	return nil
}

// Ping проверяет соединение.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close закрывает пул.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// --- Helpers ---

func isPgUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func textOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefText(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
