package repo

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/shaiso/Herald/internal/domain"

	_ "modernc.org/sqlite"
)

//go:embed schema/sqlite.sql
var sqliteSchema string

// SQLiteStore — Store поверх modernc.org/sqlite.
//
// Один открытый коннект: SQLite сериализует запись,
// поэтому условный UPDATE захвата атомарен и здесь.
type SQLiteStore struct {
	db *sql.DB
}

var (
	slotCols = []string{
		"id", "slot_date", "slot_index", "scheduled_post_time", "content_id",
		"platform", "content_type", "status", "reasoning", "created_at", "updated_at",
	}
	postedCols = []string{
		"id", "content_candidate_id", "scheduled_slot_id", "platform", "external_post_id", "posted_at",
	}
	candidateCols = []string{
		"id", "platform", "content_type", "title", "source_url", "approved", "posted",
		"scheduled", "priority", "confidence", "is_placeholder", "discovered_at",
	}
)

// OpenSQLite открывает (или создаёт) файл базы и применяет pragma.
func OpenSQLite(ctx context.Context, path string, busyTimeout time.Duration) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if path != ":memory:" && !strings.HasPrefix(path, "file:") {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if busyTimeout <= 0 {
		busyTimeout = 5 * time.Second
	}
	pragmas := []string{
		fmt.Sprintf("PRAGMA busy_timeout = %d", busyTimeout.Milliseconds()),
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite %q: %w", p, err)
		}
	}
	return NewSQLiteStore(db), nil
}

// NewSQLiteStore оборачивает готовый *sql.DB (используется в тестах со sqlmock).
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Migrate применяет встроенную схему. Идемпотентно.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteSchema); err != nil {
		return persistErr("apply schema", err)
	}
	return nil
}

// Ping проверяет соединение.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close закрывает базу.
func (s *SQLiteStore) Close() {
	_ = s.db.Close()
}

// --- Slots ---

// ListSlotsByDate возвращает слоты дня по порядку slot_index.
func (s *SQLiteStore) ListSlotsByDate(ctx context.Context, date string) ([]domain.ScheduledSlot, error) {
	return s.ListSlotsInRange(ctx, date, date)
}

// ListSlotsInRange возвращает слоты дней [from, to]. Даты в формате YYYY-MM-DD
// сравниваются лексикографически.
func (s *SQLiteStore) ListSlotsInRange(ctx context.Context, from, to string) ([]domain.ScheduledSlot, error) {
	return s.querySlots(ctx, sq.Select(slotCols...).From("scheduled_slots").
		Where(sq.GtOrEq{"slot_date": from}).
		Where(sq.LtOrEq{"slot_date": to}).
		OrderBy("slot_date ASC", "slot_index ASC"))
}

// CountSlots возвращает количество строк дня.
func (s *SQLiteStore) CountSlots(ctx context.Context, date string) (int, error) {
	return s.count(ctx, sq.Eq{"slot_date": date})
}

// CountFilledSlots возвращает количество слотов дня с контентом.
func (s *SQLiteStore) CountFilledSlots(ctx context.Context, date string) (int, error) {
	return s.count(ctx, sq.And{sq.Eq{"slot_date": date}, sq.NotEq{"content_id": nil}})
}

// GetSlot возвращает слот по ID.
func (s *SQLiteStore) GetSlot(ctx context.Context, id uuid.UUID) (*domain.ScheduledSlot, error) {
	slots, err := s.querySlots(ctx, sq.Select(slotCols...).From("scheduled_slots").
		Where(sq.Eq{"id": id.String()}))
	if err != nil {
		return nil, err
	}
	if len(slots) == 0 {
		return nil, ErrNotFound
	}
	return &slots[0], nil
}

// CreateSlots вставляет слоты и бронирует их контент одной транзакцией.
func (s *SQLiteStore) CreateSlots(ctx context.Context, slots []domain.ScheduledSlot, booking Booking) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, slot := range slots {
			query, args, err := sq.Insert("scheduled_slots").Columns(slotCols...).Values(
				slot.ID.String(),
				slot.Date,
				slot.SlotIndex,
				slot.ScheduledPostTime.UnixMilli(),
				uuidArg(slot.ContentID),
				textArg(slot.Platform),
				textArg(slot.ContentType),
				string(slot.Status),
				textArg(slot.Reasoning),
				slot.CreatedAt.UnixMilli(),
				slot.UpdatedAt.UnixMilli(),
			).ToSql()
			if err != nil {
				return fmt.Errorf("build insert slot: %w", err)
			}
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				if isSQLiteUniqueViolation(err) {
					return ErrAlreadyExists
				}
				return persistErr("insert slot", err)
			}
		}
		return applyBooking(ctx, tx, booking)
	})
}

// UpdateSlotsContent переназначает контент pending-слотов и бронь одной транзакцией.
func (s *SQLiteStore) UpdateSlotsContent(ctx context.Context, slots []domain.ScheduledSlot, onlyEmpty bool, booking Booking) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, slot := range slots {
			b := sq.Update("scheduled_slots").
				Set("content_id", uuidArg(slot.ContentID)).
				Set("platform", textArg(slot.Platform)).
				Set("content_type", textArg(slot.ContentType)).
				Set("reasoning", textArg(slot.Reasoning)).
				Set("updated_at", slot.UpdatedAt.UnixMilli()).
				Where(sq.Eq{"id": slot.ID.String(), "status": string(domain.SlotStatusPending)})
			if onlyEmpty {
				b = b.Where(sq.Eq{"content_id": nil})
			}
			n, err := execAffected(ctx, tx, b)
			if err != nil {
				return persistErr("update slot content", err)
			}
			if n == 0 {
				return ErrInvalidState
			}
		}
		return applyBooking(ctx, tx, booking)
	})
}

// NextDueSlot возвращает самый ранний pending слот со временем <= before.
func (s *SQLiteStore) NextDueSlot(ctx context.Context, before time.Time) (*domain.ScheduledSlot, error) {
	slots, err := s.querySlots(ctx, sq.Select(slotCols...).From("scheduled_slots").
		Where(sq.Eq{"status": string(domain.SlotStatusPending)}).
		Where(sq.LtOrEq{"scheduled_post_time": before.UnixMilli()}).
		OrderBy("scheduled_post_time ASC").
		Limit(1))
	if err != nil {
		return nil, err
	}
	if len(slots) == 0 {
		return nil, ErrNotFound
	}
	return &slots[0], nil
}

// TransitionSlot выполняет условный переход статуса одним UPDATE.
func (s *SQLiteStore) TransitionSlot(ctx context.Context, tr domain.SlotTransition) error {
	b := sq.Update("scheduled_slots").
		Set("status", string(tr.To)).
		Set("updated_at", tr.At.UnixMilli()).
		Where(sq.Eq{"id": tr.SlotID.String(), "status": string(tr.From)})
	if tr.Reasoning != "" {
		b = b.Set("reasoning", tr.Reasoning)
	}
	if tr.Content != nil {
		if *tr.Content == uuid.Nil {
			b = b.Where(sq.Eq{"content_id": nil})
		} else {
			b = b.Where(sq.Eq{"content_id": tr.Content.String()})
		}
	}
	n, err := execAffected(ctx, s.db, b)
	if err != nil {
		return persistErr("transition slot", err)
	}
	if n == 0 {
		return ErrInvalidState
	}
	return nil
}

// CompletePost фиксирует успешную публикацию.
func (s *SQLiteStore) CompletePost(ctx context.Context, slotID uuid.UUID, rec *domain.PostedRecord) error {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		n, err := execAffected(ctx, tx, sq.Update("scheduled_slots").
			Set("status", string(domain.SlotStatusPosted)).
			Set("updated_at", rec.PostedAt.UnixMilli()).
			Where(sq.Eq{"id": slotID.String(), "status": string(domain.SlotStatusPosting)}))
		if err != nil {
			return persistErr("mark slot posted", err)
		}
		if n == 0 {
			return ErrInvalidState
		}

		linked := slotID
		return insertPosted(ctx, tx, rec, &linked)
	})
	if err != nil {
		return err
	}
	id := slotID
	rec.ScheduledSlotID = &id
	return nil
}

// FailStuckSlots закрывает зависшие в posting слоты.
func (s *SQLiteStore) FailStuckSlots(ctx context.Context, staleBefore, at time.Time, reasoning string) ([]uuid.UUID, error) {
	query, args, err := sq.Update("scheduled_slots").
		Set("status", string(domain.SlotStatusFailed)).
		Set("reasoning", reasoning).
		Set("updated_at", at.UnixMilli()).
		Where(sq.Eq{"status": string(domain.SlotStatusPosting)}).
		Where(sq.Lt{"updated_at": staleBefore.UnixMilli()}).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build sweep: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, persistErr("fail stuck slots", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, persistErr("scan stuck slot", err)
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("parse slot id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("fail stuck slots", err)
	}
	return ids, nil
}

// --- Posted records ---

// InsertPostedRecord добавляет запись о публикации.
func (s *SQLiteStore) InsertPostedRecord(ctx context.Context, rec *domain.PostedRecord) error {
	return insertPosted(ctx, s.db, rec, rec.ScheduledSlotID)
}

// ListPostedBetween возвращает записи с posted_at в [from, to).
func (s *SQLiteStore) ListPostedBetween(ctx context.Context, from, to time.Time) ([]domain.PostedRecord, error) {
	return s.queryPosted(ctx, sq.Select(postedCols...).From("posted_records").
		Where(sq.GtOrEq{"posted_at": from.UnixMilli()}).
		Where(sq.Lt{"posted_at": to.UnixMilli()}).
		OrderBy("posted_at ASC"))
}

// ListUnlinkedPosted возвращает непривязанные записи с posted_at в [from, to).
func (s *SQLiteStore) ListUnlinkedPosted(ctx context.Context, from, to time.Time) ([]domain.PostedRecord, error) {
	return s.queryPosted(ctx, sq.Select(postedCols...).From("posted_records").
		Where(sq.Eq{"scheduled_slot_id": nil}).
		Where(sq.GtOrEq{"posted_at": from.UnixMilli()}).
		Where(sq.Lt{"posted_at": to.UnixMilli()}).
		OrderBy("posted_at ASC"))
}

// LinkPostedRecord привязывает запись к слоту, если она ещё не привязана.
func (s *SQLiteStore) LinkPostedRecord(ctx context.Context, recordID, slotID uuid.UUID) error {
	n, err := execAffected(ctx, s.db, sq.Update("posted_records").
		Set("scheduled_slot_id", slotID.String()).
		Where(sq.Eq{"id": recordID.String(), "scheduled_slot_id": nil}))
	if err != nil {
		if isSQLiteUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return persistErr("link posted record", err)
	}
	if n == 0 {
		return ErrInvalidState
	}
	return nil
}

// RecentPlatforms возвращает платформы, публиковавшиеся начиная с since.
func (s *SQLiteStore) RecentPlatforms(ctx context.Context, since time.Time) ([]string, error) {
	query, args, err := sq.Select("DISTINCT platform").From("posted_records").
		Where(sq.GtOrEq{"posted_at": since.UnixMilli()}).
		OrderBy("platform").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build recent platforms: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
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

// --- Candidates ---

// ListSelectableCandidates возвращает одобренных, неопубликованных и незанятых кандидатов.
func (s *SQLiteStore) ListSelectableCandidates(ctx context.Context, filter CandidateFilter) ([]domain.ContentCandidate, error) {
	b := sq.Select(candidateCols...).From("content_candidates").
		Where(sq.Eq{"approved": 1, "posted": 0, "scheduled": 0}).
		OrderBy("priority DESC", "confidence DESC", "discovered_at ASC", "id ASC")
	if len(filter.Platforms) > 0 {
		b = b.Where(sq.Eq{"platform": filter.Platforms})
	}
	if !filter.IncludePlaceholders {
		b = b.Where(sq.Eq{"is_placeholder": 0})
	}
	if filter.Limit > 0 {
		b = b.Limit(uint64(filter.Limit))
	}

	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list candidates: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, persistErr("list candidates", err)
	}
	defer rows.Close()

	var candidates []domain.ContentCandidate
	for rows.Next() {
		c, err := scanSQLiteCandidate(rows)
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
func (s *SQLiteStore) GetCandidate(ctx context.Context, id uuid.UUID) (*domain.ContentCandidate, error) {
	query, args, err := sq.Select(candidateCols...).From("content_candidates").
		Where(sq.Eq{"id": id.String()}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get candidate: %w", err)
	}
	c, err := scanSQLiteCandidate(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return c, err
}

// InsertCandidate добавляет кандидата.
func (s *SQLiteStore) InsertCandidate(ctx context.Context, c *domain.ContentCandidate) error {
	query, args, err := sq.Insert("content_candidates").Columns(candidateCols...).Values(
		c.ID.String(),
		c.Platform,
		c.ContentType,
		textArg(c.Title),
		textArg(c.SourceURL),
		c.Approved,
		c.Posted,
		c.Scheduled,
		c.Priority,
		c.Confidence,
		c.IsPlaceholder,
		c.DiscoveredAt.UnixMilli(),
	).ToSql()
	if err != nil {
		return fmt.Errorf("build insert candidate: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		if isSQLiteUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return persistErr("insert candidate", err)
	}
	return nil
}

// SetCandidateScheduled ставит бронь условно или снимает её.
func (s *SQLiteStore) SetCandidateScheduled(ctx context.Context, id uuid.UUID, scheduled bool) error {
	if !scheduled {
		n, err := execAffected(ctx, s.db, releaseCandidate(id))
		if err != nil {
			return persistErr("release candidate", err)
		}
		if n == 0 {
			return s.candidateMissing(ctx, id, nil)
		}
		return nil
	}
	n, err := execAffected(ctx, s.db, claimCandidate(id))
	if err != nil {
		return persistErr("claim candidate", err)
	}
	if n == 0 {
		return s.candidateMissing(ctx, id, ErrCandidateTaken)
	}
	return nil
}

// MarkCandidatePosted помечает кандидата опубликованным.
func (s *SQLiteStore) MarkCandidatePosted(ctx context.Context, id uuid.UUID) error {
	n, err := execAffected(ctx, s.db, sq.Update("content_candidates").
		Set("posted", true).
		Set("scheduled", true).
		Where(sq.Eq{"id": id.String()}))
	if err != nil {
		return persistErr("mark posted", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Helpers ---

// applyBooking снимает и ставит бронь внутри транзакции записи слотов.
func applyBooking(ctx context.Context, tx *sql.Tx, b Booking) error {
	for _, id := range b.Release {
		if _, err := execAffected(ctx, tx, releaseCandidate(id)); err != nil {
			return persistErr("release candidate", err)
		}
	}
	for _, id := range b.Claim {
		n, err := execAffected(ctx, tx, claimCandidate(id))
		if err != nil {
			return persistErr("claim candidate", err)
		}
		if n == 0 {
			return fmt.Errorf("%w: %s", ErrCandidateTaken, id)
		}
	}
	return nil
}

func claimCandidate(id uuid.UUID) sq.UpdateBuilder {
	return sq.Update("content_candidates").
		Set("scheduled", true).
		Where(sq.Eq{"id": id.String(), "scheduled": 0, "posted": 0})
}

func releaseCandidate(id uuid.UUID) sq.UpdateBuilder {
	return sq.Update("content_candidates").
		Set("scheduled", false).
		Where(sq.Eq{"id": id.String(), "posted": 0})
}

// candidateMissing отличает неизвестного кандидата (ErrNotFound) от занятого (taken).
func (s *SQLiteStore) candidateMissing(ctx context.Context, id uuid.UUID, taken error) error {
	if _, err := s.GetCandidate(ctx, id); err != nil {
		return err
	}
	return taken
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *SQLiteStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return persistErr("begin tx", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return persistErr("commit tx", err)
	}
	return nil
}

func execAffected(ctx context.Context, ex execer, b sq.UpdateBuilder) (int64, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build update: %w", err)
	}
	res, err := ex.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) count(ctx context.Context, where sq.Sqlizer) (int, error) {
	query, args, err := sq.Select("COUNT(*)").From("scheduled_slots").Where(where).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count: %w", err)
	}
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, persistErr("count slots", err)
	}
	return n, nil
}

func (s *SQLiteStore) querySlots(ctx context.Context, b sq.SelectBuilder) ([]domain.ScheduledSlot, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build slot query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, persistErr("list slots", err)
	}
	defer rows.Close()

	var slots []domain.ScheduledSlot
	for rows.Next() {
		slot, err := scanSQLiteSlot(rows)
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

func (s *SQLiteStore) queryPosted(ctx context.Context, b sq.SelectBuilder) ([]domain.PostedRecord, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build posted query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, persistErr("list posted records", err)
	}
	defer rows.Close()

	var records []domain.PostedRecord
	for rows.Next() {
		var rec domain.PostedRecord
		var id, candidateID string
		var slotID, externalID sql.NullString
		var postedAt int64
		if err := rows.Scan(&id, &candidateID, &slotID, &rec.Platform, &externalID, &postedAt); err != nil {
			return nil, persistErr("scan posted record", err)
		}
		if rec.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parse record id: %w", err)
		}
		if rec.ContentCandidateID, err = uuid.Parse(candidateID); err != nil {
			return nil, fmt.Errorf("parse candidate id: %w", err)
		}
		if rec.ScheduledSlotID, err = parseNullUUID(slotID); err != nil {
			return nil, err
		}
		rec.ExternalPostID = externalID.String
		rec.PostedAt = time.UnixMilli(postedAt).UTC()
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("list posted records", err)
	}
	return records, nil
}

func insertPosted(ctx context.Context, ex execer, rec *domain.PostedRecord, slotID *uuid.UUID) error {
	query, args, err := sq.Insert("posted_records").Columns(postedCols...).Values(
		rec.ID.String(),
		rec.ContentCandidateID.String(),
		uuidArg(slotID),
		rec.Platform,
		textArg(rec.ExternalPostID),
		rec.PostedAt.UnixMilli(),
	).ToSql()
	if err != nil {
		return fmt.Errorf("build insert posted: %w", err)
	}
	if _, err := ex.ExecContext(ctx, query, args...); err != nil {
		if isSQLiteUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return persistErr("insert posted record", err)
	}
	return nil
}

func scanSQLiteSlot(row rowScanner) (*domain.ScheduledSlot, error) {
	var s domain.ScheduledSlot
	var id, status string
	var contentID, platform, contentType, reasoning sql.NullString
	var postTime, createdAt, updatedAt int64

	err := row.Scan(
		&id,
		&s.Date,
		&s.SlotIndex,
		&postTime,
		&contentID,
		&platform,
		&contentType,
		&status,
		&reasoning,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, persistErr("scan slot", err)
	}
	if s.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parse slot id: %w", err)
	}
	if s.ContentID, err = parseNullUUID(contentID); err != nil {
		return nil, err
	}
	s.ScheduledPostTime = time.UnixMilli(postTime).UTC()
	s.Platform = platform.String
	s.ContentType = contentType.String
	s.Status = domain.SlotStatus(status)
	s.Reasoning = reasoning.String
	s.CreatedAt = time.UnixMilli(createdAt).UTC()
	s.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return &s, nil
}

func scanSQLiteCandidate(row rowScanner) (*domain.ContentCandidate, error) {
	var c domain.ContentCandidate
	var id string
	var title, sourceURL sql.NullString
	var discoveredAt int64

	err := row.Scan(
		&id,
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
		&discoveredAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, persistErr("scan candidate", err)
	}
	if c.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parse candidate id: %w", err)
	}
	c.Title = title.String
	c.SourceURL = sourceURL.String
	c.DiscoveredAt = time.UnixMilli(discoveredAt).UTC()
	return &c, nil
}

func parseNullUUID(ns sql.NullString) (*uuid.UUID, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	id, err := uuid.Parse(ns.String)
	if err != nil {
		return nil, fmt.Errorf("parse uuid %q: %w", ns.String, err)
	}
	return &id, nil
}

func uuidArg(id *uuid.UUID) any {
	if id == nil {
		return nil
	}
	return id.String()
}

func textArg(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func isSQLiteUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
