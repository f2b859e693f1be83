package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/shaiso/Herald/internal/domain"
)

// --- Persistence Failure Tests ---

func newMockStore(t *testing.T) (*SQLiteStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewSQLiteStore(db), mock
}

func TestSQLiteStore_QueryErrorIsPersistence(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT (.+) FROM scheduled_slots").WillReturnError(errors.New("disk I/O error"))

	_, err := store.NextDueSlot(context.Background(), time.Now())
	if !errors.Is(err, domain.ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestSQLiteStore_TransitionErrorIsPersistence(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec("UPDATE scheduled_slots").WillReturnError(errors.New("database is locked"))

	err := store.TransitionSlot(context.Background(), domain.SlotTransition{
		SlotID: uuid.New(), From: domain.SlotStatusPending, To: domain.SlotStatusPosting, At: time.Now(),
	})
	if !errors.Is(err, domain.ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
	if errors.Is(err, ErrInvalidState) {
		t.Error("driver failure must not look like a lost claim")
	}
}

func TestSQLiteStore_CreateSlotsRollsBack(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO scheduled_slots").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO scheduled_slots").WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	now := time.Now().UTC()
	slots := []domain.ScheduledSlot{
		{ID: uuid.New(), Date: "2025-07-04", SlotIndex: 0, ScheduledPostTime: now, Status: domain.SlotStatusPending, CreatedAt: now, UpdatedAt: now},
		{ID: uuid.New(), Date: "2025-07-04", SlotIndex: 1, ScheduledPostTime: now, Status: domain.SlotStatusPending, CreatedAt: now, UpdatedAt: now},
	}
	err := store.CreateSlots(context.Background(), slots, Booking{})
	if !errors.Is(err, domain.ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestSQLiteStore_CompletePostRollsBackOnInsertFailure(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE scheduled_slots").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO posted_records").WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	rec := &domain.PostedRecord{ID: uuid.New(), ContentCandidateID: uuid.New(), Platform: "youtube", PostedAt: time.Now()}
	err := store.CompletePost(context.Background(), uuid.New(), rec)
	if !errors.Is(err, domain.ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
	if rec.IsLinked() {
		t.Error("record must not be marked linked after rollback")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}
