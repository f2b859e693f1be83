package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Herald/internal/domain"
)

// PostedRepo — репозиторий записей о публикациях (Postgres).
type PostedRepo struct {
	pool *pgxpool.Pool
}

// NewPostedRepo создаёт новый PostedRepo.
func NewPostedRepo(pool *pgxpool.Pool) *PostedRepo {
	return &PostedRepo{pool: pool}
}

// InsertPostedRecord добавляет запись о публикации.
func (r *PostedRepo) InsertPostedRecord(ctx context.Context, rec *domain.PostedRecord) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO posted_records (id, content_candidate_id, scheduled_slot_id,
		                            platform, external_post_id, posted_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, rec.ID, rec.ContentCandidateID, rec.ScheduledSlotID, rec.Platform,
		textOrNil(rec.ExternalPostID), rec.PostedAt)
	if isPgUniqueViolation(err) {
		return ErrAlreadyExists
	}
	if err != nil {
		return persistErr("insert posted record", err)
	}
	return nil
}

// ListPostedBetween возвращает записи с posted_at в [from, to).
func (r *PostedRepo) ListPostedBetween(ctx context.Context, from, to time.Time) ([]domain.PostedRecord, error) {
	return r.list(ctx, `
		SELECT id, content_candidate_id, scheduled_slot_id, platform, external_post_id, posted_at
		FROM posted_records
		WHERE posted_at >= $1 AND posted_at < $2
		ORDER BY posted_at ASC
	`, from, to)
}

// ListUnlinkedPosted возвращает непривязанные записи с posted_at в [from, to).
func (r *PostedRepo) ListUnlinkedPosted(ctx context.Context, from, to time.Time) ([]domain.PostedRecord, error) {
	return r.list(ctx, `
		SELECT id, content_candidate_id, scheduled_slot_id, platform, external_post_id, posted_at
		FROM posted_records
		WHERE scheduled_slot_id IS NULL AND posted_at >= $1 AND posted_at < $2
		ORDER BY posted_at ASC
	`, from, to)
}

// LinkPostedRecord привязывает запись к слоту, если она ещё не привязана.
func (r *PostedRepo) LinkPostedRecord(ctx context.Context, recordID, slotID uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE posted_records SET scheduled_slot_id = $2
		WHERE id = $1 AND scheduled_slot_id IS NULL
	`, recordID, slotID)
	if isPgUniqueViolation(err) {
		return ErrAlreadyExists
	}
	if err != nil {
		return persistErr("link posted record", err)
	}
	if result.RowsAffected() == 0 {
		return ErrInvalidState
	}
	return nil
}

// RecentPlatforms возвращает платформы, публиковавшиеся начиная с since.
func (r *PostedRepo) RecentPlatforms(ctx context.Context, since time.Time) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT platform FROM posted_records
		WHERE posted_at >= $1
		ORDER BY platform
	`, since)
	if err != nil {
		return nil, persistErr("recent platforms", err)
	}
	defer rows.Close()

	var platforms []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, persistErr("scan platform", err)
		}
		platforms = append(platforms, p)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("recent platforms", err)
	}
	return platforms, nil
}

// --- Helpers ---

func (r *PostedRepo) list(ctx context.Context, query string, args ...any) ([]domain.PostedRecord, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, persistErr("list posted records", err)
	}
	defer rows.Close()

	var records []domain.PostedRecord
	for rows.Next() {
		rec, err := scanPosted(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("list posted records", err)
	}
	return records, nil
}

func scanPosted(row pgx.Row) (*domain.PostedRecord, error) {
	var rec domain.PostedRecord
	var externalID *string
	err := row.Scan(
		&rec.ID,
		&rec.ContentCandidateID,
		&rec.ScheduledSlotID,
		&rec.Platform,
		&externalID,
		&rec.PostedAt,
	)
	if err != nil {
		return nil, persistErr("scan posted record", err)
	}
	rec.ExternalPostID = derefText(externalID)
	rec.PostedAt = rec.PostedAt.UTC()
	return &rec, nil
}
