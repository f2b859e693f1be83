package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
)

// LockKey — ключ pg_advisory_lock для лидера планировщика.
const LockKey int64 = 7_404_001

// Leader решает, выполняет ли этот процесс задачи.
type Leader interface {
	// IsLeader захватывает или подтверждает лидерство.
	IsLeader(ctx context.Context) (bool, error)
	Release(ctx context.Context)
}

// Solo — единственный экземпляр (SQLite, локальный запуск): всегда лидер.
type Solo struct{}

func (Solo) IsLeader(context.Context) (bool, error) { return true, nil }
func (Solo) Release(context.Context)                 {}

// AdvisoryLeader — лидерство через pg_try_advisory_lock.
//
// Advisory lock принадлежит сессии, поэтому лидер держит выделенное
// соединение из пула, пока не вызовет Release.
type AdvisoryLeader struct {
	pool *pgxpool.Pool
	key  int64

	mu   sync.Mutex
	conn *pgxpool.Conn
}

// NewAdvisoryLeader создаёт AdvisoryLeader.
func NewAdvisoryLeader(pool *pgxpool.Pool, key int64) *AdvisoryLeader {
	return &AdvisoryLeader{pool: pool, key: key}
}

// IsLeader пытается взять лок; держатель лока проверяет, что сессия жива.
func (l *AdvisoryLeader) IsLeader(ctx context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.conn != nil {
		if err := l.conn.Ping(ctx); err == nil {
			return true, nil
		}
		// Сессия потеряна вместе с локом.
		l.conn.Release()
		l.conn = nil
	}

	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire lock connection: %w", err)
	}
	var ok bool
	if err := conn.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", l.key).Scan(&ok); err != nil {
		conn.Release()
		return false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !ok {
		conn.Release()
		return false, nil
	}
	l.conn = conn
	return true, nil
}

// Release отпускает лок и соединение.
func (l *AdvisoryLeader) Release(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.conn == nil {
		return
	}
	_, _ = l.conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", l.key)
	l.conn.Release()
	l.conn = nil
}
