// Package pool — источники кандидатов для планировщика.
//
// Ядро видит только интерфейс ContentPool и не знает, откуда пришёл кандидат:
// из таблицы кандидатов, из кэша или из деградированного режима.
package pool

import (
	"context"

	"github.com/google/uuid"
	"github.com/shaiso/Herald/internal/domain"
	"github.com/shaiso/Herald/internal/repo"
)

// Filter — параметры выборки кандидатов.
type Filter struct {
	// Platforms — ограничить платформами (пусто — все).
	Platforms []string

	// Limit — максимум кандидатов (0 — без ограничения).
	Limit int
}

// ContentPool — внешний пул одобренного контента.
type ContentPool interface {
	// ListApprovedUnposted возвращает одобренных, не опубликованных и не занятых кандидатов.
	ListApprovedUnposted(ctx context.Context, filter Filter) ([]domain.ContentCandidate, error)

	// MarkScheduled исключает кандидата из дальнейшего выбора.
	// Уже занятый кандидат — repo.ErrCandidateTaken.
	MarkScheduled(ctx context.Context, id uuid.UUID) error

	// MarkPosted помечает кандидата опубликованным.
	MarkPosted(ctx context.Context, id uuid.UUID) error

	// Release возвращает кандидата в пул (снятый при перезаполнении слот).
	Release(ctx context.Context, id uuid.UUID) error
}

// Invalidator — пул с локальным снимком, который надо сбросить после записи.
type Invalidator interface {
	Invalidate()
}

// Invalidate сбрасывает снимок пула, если он есть.
func Invalidate(p ContentPool) {
	if inv, ok := p.(Invalidator); ok {
		inv.Invalidate()
	}
}

// StorePool — ContentPool поверх таблицы content_candidates.
type StorePool struct {
	store repo.CandidateStore
}

// NewStorePool создаёт StorePool.
func NewStorePool(store repo.CandidateStore) *StorePool {
	return &StorePool{store: store}
}

// ListApprovedUnposted возвращает кандидатов без placeholder'ов.
func (p *StorePool) ListApprovedUnposted(ctx context.Context, filter Filter) ([]domain.ContentCandidate, error) {
	return p.store.ListSelectableCandidates(ctx, repo.CandidateFilter{
		Platforms: filter.Platforms,
		Limit:     filter.Limit,
	})
}

// MarkScheduled бронирует свободного кандидата (scheduled 0 → 1).
func (p *StorePool) MarkScheduled(ctx context.Context, id uuid.UUID) error {
	return p.store.SetCandidateScheduled(ctx, id, true)
}

// MarkPosted выставляет posted=true.
func (p *StorePool) MarkPosted(ctx context.Context, id uuid.UUID) error {
	return p.store.MarkCandidatePosted(ctx, id)
}

// Release снимает scheduled.
func (p *StorePool) Release(ctx context.Context, id uuid.UUID) error {
	return p.store.SetCandidateScheduled(ctx, id, false)
}
