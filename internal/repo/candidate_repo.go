package repo

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Herald/internal/domain"
)

// CandidateRepo — репозиторий кандидатов (Postgres).
type CandidateRepo struct {
	pool *pgxpool.Pool
}

// NewCandidateRepo создаёт новый CandidateRepo.
func NewCandidateRepo(pool *pgxpool.Pool) *CandidateRepo {
	return &CandidateRepo{pool: pool}
}

const candidateColumns = `
	id, platform, content_type, title, source_url, approved, posted, scheduled,
	priority, confidence, is_placeholder, discovered_at
`

// ListSelectableCandidates возвращает одобренных, неопубликованных и незанятых кандидатов.
func (r *CandidateRepo) ListSelectableCandidates(ctx context.Context, filter CandidateFilter) ([]domain.ContentCandidate, error) {
	query := `SELECT ` + candidateColumns + `
		FROM content_candidates
		WHERE approved AND NOT posted AND NOT scheduled
		  AND ($1::text[] IS NULL OR platform = ANY($1))
		  AND ($2::boolean OR NOT is_placeholder)
		ORDER BY priority DESC, confidence DESC, discovered_at ASC, id ASC
		LIMIT NULLIF($3::int, 0)
	`
	var platforms []string
	if len(filter.Platforms) > 0 {
		platforms = filter.Platforms
	}
	rows, err := r.pool.Query(ctx, query, platforms, filter.IncludePlaceholders, filter.Limit)
	if err != nil {
		return nil, persistErr("list candidates", err)
	}
	defer rows.Close()

	var candidates []domain.ContentCandidate
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("list candidates", err)
	}
	return candidates, nil
}

// GetCandidate возвращает кандидата по ID.
func (r *CandidateRepo) GetCandidate(ctx context.Context, id uuid.UUID) (*domain.ContentCandidate, error) {
	query := `SELECT ` + candidateColumns + ` FROM content_candidates WHERE id = $1`
	return scanCandidate(r.pool.QueryRow(ctx, query, id))
}

// InsertCandidate добавляет кандидата.
func (r *CandidateRepo) InsertCandidate(ctx context.Context, c *domain.ContentCandidate) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO content_candidates (id, platform, content_type, title, source_url,
		                                approved, posted, scheduled, priority, confidence,
		                                is_placeholder, discovered_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		c.ID,
		c.Platform,
		c.ContentType,
		textOrNil(c.Title),
		textOrNil(c.SourceURL),
		c.Approved,
		c.Posted,
		c.Scheduled,
		c.Priority,
		c.Confidence,
		c.IsPlaceholder,
		c.DiscoveredAt,
	)
	if isPgUniqueViolation(err) {
		return ErrAlreadyExists
	}
	if err != nil {
		return persistErr("insert candidate", err)
	}
	return nil
}

// Условные UPDATE брони. Общие для SetCandidateScheduled и транзакций слотов.
const (
	claimCandidateSQL = `
		UPDATE content_candidates SET scheduled = true
		WHERE id = $1 AND NOT scheduled AND NOT posted
	`
	releaseCandidateSQL = `
		UPDATE content_candidates SET scheduled = false
		WHERE id = $1 AND NOT posted
	`
)

// SetCandidateScheduled ставит бронь условно или снимает её.
func (r *CandidateRepo) SetCandidateScheduled(ctx context.Context, id uuid.UUID, scheduled bool) error {
	query, op, taken := claimCandidateSQL, "claim candidate", ErrCandidateTaken
	if !scheduled {
		query, op, taken = releaseCandidateSQL, "release candidate", nil
	}
	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return persistErr(op, err)
	}
	if result.RowsAffected() == 0 {
		if _, err := r.GetCandidate(ctx, id); err != nil {
			return err
		}
		return taken
	}
	return nil
}

// MarkCandidatePosted помечает кандидата опубликованным.
func (r *CandidateRepo) MarkCandidatePosted(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx,
		`UPDATE content_candidates SET posted = true, scheduled = true WHERE id = $1`, id)
	if err != nil {
		return persistErr("mark posted", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Helpers ---

func scanCandidate(row pgx.Row) (*domain.ContentCandidate, error) {
	var c domain.ContentCandidate
	var title, sourceURL *string
	err := row.Scan(
		&c.ID,
		&c.Platform,
		&c.ContentType,
		&title,
		&sourceURL,
		&c.Approved,
		&c.Posted,
		&c.Scheduled,
		&c.Priority,
		&c.Confidence,
		&c.IsPlaceholder,
		&c.DiscoveredAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, persistErr("scan candidate", err)
	}
	c.Title = derefText(title)
	c.SourceURL = derefText(sourceURL)
	c.DiscoveredAt = c.DiscoveredAt.UTC()
	return &c, nil
}
