package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Herald/internal/domain"
)

// SlotRepo — репозиторий слотов расписания (Postgres).
type SlotRepo struct {
	pool *pgxpool.Pool
}

// NewSlotRepo создаёт новый SlotRepo.
func NewSlotRepo(pool *pgxpool.Pool) *SlotRepo {
	return &SlotRepo{pool: pool}
}

const slotColumns = `
	id, to_char(slot_date, 'YYYY-MM-DD'), slot_index, scheduled_post_time,
	content_id, platform, content_type, status, reasoning, created_at, updated_at
`

// ListSlotsByDate возвращает слоты дня по порядку slot_index.
func (r *SlotRepo) ListSlotsByDate(ctx context.Context, date string) ([]domain.ScheduledSlot, error) {
	return r.ListSlotsInRange(ctx, date, date)
}

// ListSlotsInRange возвращает слоты дней [from, to].
func (r *SlotRepo) ListSlotsInRange(ctx context.Context, from, to string) ([]domain.ScheduledSlot, error) {
	query := `SELECT ` + slotColumns + `
		FROM scheduled_slots
		WHERE slot_date BETWEEN $1::date AND $2::date
		ORDER BY slot_date ASC, slot_index ASC
	`
	rows, err := r.pool.Query(ctx, query, from, to)
	if err != nil {
		return nil, persistErr("list slots", err)
	}
	defer rows.Close()

	var slots []domain.ScheduledSlot
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		slots = append(slots, *slot)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("list slots", err)
	}
	return slots, nil
}

// CountSlots возвращает количество строк дня.
func (r *SlotRepo) CountSlots(ctx context.Context, date string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM scheduled_slots WHERE slot_date = $1::date`, date,
	).Scan(&n)
	if err != nil {
		return 0, persistErr("count slots", err)
	}
	return n, nil
}

// CountFilledSlots возвращает количество слотов дня с контентом.
func (r *SlotRepo) CountFilledSlots(ctx context.Context, date string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM scheduled_slots
		WHERE slot_date = $1::date AND content_id IS NOT NULL
	`, date).Scan(&n)
	if err != nil {
		return 0, persistErr("count filled slots", err)
	}
	return n, nil
}

// GetSlot возвращает слот по ID.
func (r *SlotRepo) GetSlot(ctx context.Context, id uuid.UUID) (*domain.ScheduledSlot, error) {
	query := `SELECT ` + slotColumns + ` FROM scheduled_slots WHERE id = $1`
	return scanSlot(r.pool.QueryRow(ctx, query, id))
}

// CreateSlots вставляет слоты и бронирует их контент одной транзакцией.
func (r *SlotRepo) CreateSlots(ctx context.Context, slots []domain.ScheduledSlot, booking Booking) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return persistErr("begin tx", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO scheduled_slots (id, slot_date, slot_index, scheduled_post_time,
		                             content_id, platform, content_type, status,
		                             reasoning, created_at, updated_at)
		VALUES ($1, $2::date, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	for _, s := range slots {
		_, err := tx.Exec(ctx, query,
			s.ID,
			s.Date,
			s.SlotIndex,
			s.ScheduledPostTime,
			s.ContentID,
			textOrNil(s.Platform),
			textOrNil(s.ContentType),
			string(s.Status),
			textOrNil(s.Reasoning),
			s.CreatedAt,
			s.UpdatedAt,
		)
		if isPgUniqueViolation(err) {
			return ErrAlreadyExists
		}
		if err != nil {
			return persistErr("insert slot", err)
		}
	}
	if err := applyPgBooking(ctx, tx, booking); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return persistErr("commit slots", err)
	}
	return nil
}

// UpdateSlotsContent переназначает контент pending-слотов и бронь одной транзакцией.
func (r *SlotRepo) UpdateSlotsContent(ctx context.Context, slots []domain.ScheduledSlot, onlyEmpty bool, booking Booking) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return persistErr("begin tx", err)
	}
	defer tx.Rollback(ctx)

	query := `
		UPDATE scheduled_slots
		SET content_id = $2, platform = $3, content_type = $4, reasoning = $5, updated_at = $6
		WHERE id = $1
		  AND status = 'pending'
		  AND (NOT $7::boolean OR content_id IS NULL)
	`
	for _, s := range slots {
		result, err := tx.Exec(ctx, query,
			s.ID,
			s.ContentID,
			textOrNil(s.Platform),
			textOrNil(s.ContentType),
			textOrNil(s.Reasoning),
			s.UpdatedAt,
			onlyEmpty,
		)
		if err != nil {
			return persistErr("update slot content", err)
		}
		if result.RowsAffected() == 0 {
			return ErrInvalidState
		}
	}
	if err := applyPgBooking(ctx, tx, booking); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return persistErr("commit slot content", err)
	}
	return nil
}

// NextDueSlot возвращает самый ранний pending слот со временем <= before.
func (r *SlotRepo) NextDueSlot(ctx context.Context, before time.Time) (*domain.ScheduledSlot, error) {
	query := `SELECT ` + slotColumns + `
		FROM scheduled_slots
		WHERE status = 'pending' AND scheduled_post_time <= $1
		ORDER BY scheduled_post_time ASC
		LIMIT 1
	`
	return scanSlot(r.pool.QueryRow(ctx, query, before))
}

// TransitionSlot выполняет условный переход статуса одним UPDATE.
func (r *SlotRepo) TransitionSlot(ctx context.Context, tr domain.SlotTransition) error {
	query := `
		UPDATE scheduled_slots
		SET status = $3, reasoning = COALESCE($4, reasoning), updated_at = $5
		WHERE id = $1 AND status = $2
	`
	args := []any{tr.SlotID, string(tr.From), string(tr.To), textOrNil(tr.Reasoning), tr.At}
	if tr.Content != nil {
		if *tr.Content == uuid.Nil {
			query += ` AND content_id IS NULL`
		} else {
			query += ` AND content_id = $6`
			args = append(args, *tr.Content)
		}
	}
	result, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return persistErr("transition slot", err)
	}
	if result.RowsAffected() == 0 {
		return ErrInvalidState
	}
	return nil
}

// CompletePost фиксирует успешную публикацию.
func (r *SlotRepo) CompletePost(ctx context.Context, slotID uuid.UUID, rec *domain.PostedRecord) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return persistErr("begin tx", err)
	}
	defer tx.Rollback(ctx)

	result, err := tx.Exec(ctx, `
		UPDATE scheduled_slots
		SET status = 'posted', updated_at = $2
		WHERE id = $1 AND status = 'posting'
	`, slotID, rec.PostedAt)
	if err != nil {
		return persistErr("mark slot posted", err)
	}
	if result.RowsAffected() == 0 {
		return ErrInvalidState
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO posted_records (id, content_candidate_id, scheduled_slot_id,
		                            platform, external_post_id, posted_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, rec.ID, rec.ContentCandidateID, slotID, rec.Platform, textOrNil(rec.ExternalPostID), rec.PostedAt)
	if isPgUniqueViolation(err) {
		return ErrAlreadyExists
	}
	if err != nil {
		return persistErr("insert posted record", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return persistErr("commit post", err)
	}
	id := slotID
	rec.ScheduledSlotID = &id
	return nil
}

// FailStuckSlots закрывает зависшие в posting слоты.
func (r *SlotRepo) FailStuckSlots(ctx context.Context, staleBefore, at time.Time, reasoning string) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `
		UPDATE scheduled_slots
		SET status = 'failed', reasoning = $2, updated_at = $3
		WHERE status = 'posting' AND updated_at < $1
		RETURNING id
	`, staleBefore, reasoning, at)
	if err != nil {
		return nil, persistErr("fail stuck slots", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, persistErr("scan stuck slot", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("fail stuck slots", err)
	}
	return ids, nil
}

// --- Helpers ---

func scanSlot(row pgx.Row) (*domain.ScheduledSlot, error) {
	var s domain.ScheduledSlot
	var platform, contentType, reasoning *string
	var status string

	err := row.Scan(
		&s.ID,
		&s.Date,
		&s.SlotIndex,
		&s.ScheduledPostTime,
		&s.ContentID,
		&platform,
		&contentType,
		&status,
		&reasoning,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, persistErr("scan slot", err)
	}

	s.Status = domain.SlotStatus(status)
	s.Platform = derefText(platform)
	s.ContentType = derefText(contentType)
	s.Reasoning = derefText(reasoning)
	s.ScheduledPostTime = s.ScheduledPostTime.UTC()
	s.CreatedAt = s.CreatedAt.UTC()
	s.UpdatedAt = s.UpdatedAt.UTC()
	return &s, nil
}

func persistErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, domain.ErrPersistence, err)
}

// applyPgBooking снимает и ставит бронь внутри транзакции записи слотов.
func applyPgBooking(ctx context.Context, tx pgx.Tx, b Booking) error {
	for _, id := range b.Release {
		if _, err := tx.Exec(ctx, releaseCandidateSQL, id); err != nil {
			return persistErr("release candidate", err)
		}
	}
	for _, id := range b.Claim {
		result, err := tx.Exec(ctx, claimCandidateSQL, id)
		if err != nil {
			return persistErr("claim candidate", err)
		}
		if result.RowsAffected() == 0 {
			return fmt.Errorf("%w: %s", ErrCandidateTaken, id)
		}
	}
	return nil
}
