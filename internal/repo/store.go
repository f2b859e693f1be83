package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Herald/internal/domain"
)

// SlotStore — хранилище слотов расписания.
type SlotStore interface {
	// ListSlotsByDate возвращает слоты дня, упорядоченные по slot_index.
	ListSlotsByDate(ctx context.Context, date string) ([]domain.ScheduledSlot, error)

	// ListSlotsInRange возвращает слоты дней [from, to] включительно.
	ListSlotsInRange(ctx context.Context, from, to string) ([]domain.ScheduledSlot, error)

	// CountSlots — проверка существования строк дня.
	CountSlots(ctx context.Context, date string) (int, error)

	// CountFilledSlots — сколько слотов дня имеют контент.
	CountFilledSlots(ctx context.Context, date string) (int, error)

	// GetSlot возвращает слот по ID.
	GetSlot(ctx context.Context, id uuid.UUID) (*domain.ScheduledSlot, error)

	// CreateSlots вставляет слоты и применяет бронь кандидатов в одной транзакции.
	// Конфликт (date, slot_index) → ErrAlreadyExists; занятый кандидат → ErrCandidateTaken.
	// В обоих случаях ничего не записывается.
	CreateSlots(ctx context.Context, slots []domain.ScheduledSlot, booking Booking) error

	// UpdateSlotsContent обновляет контент слотов и бронь в одной транзакции.
	// Каждое обновление условно: status='pending' (и content_id IS NULL при onlyEmpty).
	// Не применилось обновление → ErrInvalidState, занятый кандидат → ErrCandidateTaken;
	// транзакция откатывается целиком.
	UpdateSlotsContent(ctx context.Context, slots []domain.ScheduledSlot, onlyEmpty bool, booking Booking) error

	// NextDueSlot — самый ранний pending слот с scheduled_post_time <= before.
	NextDueSlot(ctx context.Context, before time.Time) (*domain.ScheduledSlot, error)

	// TransitionSlot — атомарная условная смена статуса (WHERE status = From,
	// и content_id = *Content, если Content задан). Ноль затронутых строк → ErrInvalidState.
	TransitionSlot(ctx context.Context, tr domain.SlotTransition) error

	// CompletePost переводит posting→posted и записывает PostedRecord в одной транзакции.
	CompletePost(ctx context.Context, slotID uuid.UUID, record *domain.PostedRecord) error

	// FailStuckSlots переводит в failed слоты, висящие в posting с updated_at < staleBefore.
	FailStuckSlots(ctx context.Context, staleBefore, at time.Time, reasoning string) ([]uuid.UUID, error)
}

// Booking — изменения брони кандидатов, применяемые вместе с записью слотов.
type Booking struct {
	// Claim — забронировать: scheduled 0 → 1 только у свободного неопубликованного кандидата.
	Claim []uuid.UUID

	// Release — снять бронь (кандидат ушёл из слота при перезаполнении).
	Release []uuid.UUID
}

// IsZero сообщает, что бронь пустая.
func (b Booking) IsZero() bool {
	return len(b.Claim) == 0 && len(b.Release) == 0
}

// PostedStore — хранилище записей о публикациях.
type PostedStore interface {
	// InsertPostedRecord добавляет запись (импорт legacy-публикаций).
	InsertPostedRecord(ctx context.Context, rec *domain.PostedRecord) error

	// ListPostedBetween возвращает записи с posted_at в [from, to).
	ListPostedBetween(ctx context.Context, from, to time.Time) ([]domain.PostedRecord, error)

	// ListUnlinkedPosted — записи без scheduled_slot_id с posted_at в [from, to).
	ListUnlinkedPosted(ctx context.Context, from, to time.Time) ([]domain.PostedRecord, error)

	// LinkPostedRecord проставляет scheduled_slot_id, только если он ещё NULL.
	LinkPostedRecord(ctx context.Context, recordID, slotID uuid.UUID) error

	// RecentPlatforms — платформы, публиковавшиеся начиная с since.
	RecentPlatforms(ctx context.Context, since time.Time) ([]string, error)
}

// CandidateFilter — параметры выборки кандидатов.
type CandidateFilter struct {
	Platforms           []string
	IncludePlaceholders bool
	Limit               int
}

// CandidateStore — таблица кандидатов (владелец — внешний пайплайн).
type CandidateStore interface {
	ListSelectableCandidates(ctx context.Context, filter CandidateFilter) ([]domain.ContentCandidate, error)
	GetCandidate(ctx context.Context, id uuid.UUID) (*domain.ContentCandidate, error)
	InsertCandidate(ctx context.Context, c *domain.ContentCandidate) error

	// SetCandidateScheduled ставит бронь условно (занятый → ErrCandidateTaken)
	// и снимает её безусловно. Неизвестный id → ErrNotFound.
	SetCandidateScheduled(ctx context.Context, id uuid.UUID, scheduled bool) error
	MarkCandidatePosted(ctx context.Context, id uuid.UUID) error
}

// Store — полный интерфейс хранилища ядра.
// Реализации: PostgresStore (pgx) и SQLiteStore (modernc.org/sqlite).
type Store interface {
	SlotStore
	PostedStore
	CandidateStore

	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close()
}
