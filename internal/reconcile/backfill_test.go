package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Herald/internal/domain"
	"github.com/shaiso/Herald/internal/repo"
	"github.com/shaiso/Herald/internal/repo/repotest"
	"github.com/shaiso/Herald/internal/slottime"
)

const testDate = "2025-07-04"

// --- Helpers ---

// seedDay создаёт шесть слотов с платформами по кругу.
func seedDay(t *testing.T, store *repo.SQLiteStore) []domain.ScheduledSlot {
	t.Helper()
	platforms := []string{"youtube", "reddit", "giphy", "youtube", "reddit", "giphy"}
	times, err := slottime.DaySlotTimes(testDate)
	if err != nil {
		t.Fatalf("slot times: %v", err)
	}
	slots := make([]domain.ScheduledSlot, domain.SlotsPerDay)
	for i := range slots {
		c := repotest.Candidate(platforms[i], "video", 1)
		slots[i] = domain.ScheduledSlot{
			ID:                uuid.New(),
			Date:              testDate,
			SlotIndex:         i,
			ScheduledPostTime: times[i],
			Status:            domain.SlotStatusPending,
		}
		slots[i].Assign(&c, "seeded")
	}
	if err := store.CreateSlots(context.Background(), slots, repo.Booking{}); err != nil {
		t.Fatalf("create slots: %v", err)
	}
	return slots
}

func seedRecord(t *testing.T, store *repo.SQLiteStore, contentID uuid.UUID, platform string, at time.Time) domain.PostedRecord {
	t.Helper()
	rec := domain.PostedRecord{
		ID:                 uuid.New(),
		ContentCandidateID: contentID,
		Platform:           platform,
		ExternalPostID:     "ext-" + platform,
		PostedAt:           at,
	}
	if err := store.InsertPostedRecord(context.Background(), &rec); err != nil {
		t.Fatalf("insert record: %v", err)
	}
	return rec
}

// --- Backfill Tests ---

func TestBackfill_ExactMatch(t *testing.T) {
	ctx := context.Background()
	store := repotest.NewStore(t)
	slots := seedDay(t, store)
	rec := seedRecord(t, store, *slots[2].ContentID, "giphy", slots[2].ScheduledPostTime.Add(12*time.Minute))

	b := New(Config{Store: store})
	report, err := b.Backfill(ctx, testDate, true)
	if err != nil {
		t.Fatalf("backfill: %v", err)
	}
	if report.Linked != 1 || len(report.Matches) != 1 {
		t.Fatalf("expected one link, got %+v", report)
	}
	m := report.Matches[0]
	if m.Kind != MatchExact || m.SlotID != slots[2].ID || m.Delta != 12*time.Minute {
		t.Errorf("unexpected match %+v", m)
	}

	left, _ := store.ListUnlinkedPosted(ctx, slots[0].ScheduledPostTime.Add(-time.Hour), slots[5].ScheduledPostTime.Add(time.Hour))
	if len(left) != 0 {
		t.Errorf("record %s still unlinked", rec.ID)
	}
}

func TestBackfill_ExactIgnoresPlatformLabel(t *testing.T) {
	store := repotest.NewStore(t)
	slots := seedDay(t, store)
	// Контент слота 3, но платформа записана иначе: совпадение по контенту.
	seedRecord(t, store, *slots[3].ContentID, "youtube_shorts", slots[3].ScheduledPostTime.Add(-25*time.Minute))

	report, err := New(Config{Store: store}).Backfill(context.Background(), testDate, false)
	if err != nil {
		t.Fatalf("backfill: %v", err)
	}
	if len(report.Matches) != 1 || report.Matches[0].Kind != MatchExact || report.Matches[0].SlotID != slots[3].ID {
		t.Fatalf("expected exact match on slot 3, got %+v", report.Matches)
	}
}

func TestBackfill_ExactOutsideToleranceFallsBack(t *testing.T) {
	store := repotest.NewStore(t)
	slots := seedDay(t, store)
	seedRecord(t, store, *slots[3].ContentID, "youtube", slots[3].ScheduledPostTime.Add(45*time.Minute))

	report, err := New(Config{Store: store}).Backfill(context.Background(), testDate, false)
	if err != nil {
		t.Fatalf("backfill: %v", err)
	}
	if len(report.Matches) != 1 || report.Matches[0].Kind != MatchFallback || report.Matches[0].SlotID != slots[3].ID {
		t.Fatalf("expected fallback match on slot 3, got %+v", report.Matches)
	}
}

func TestBackfill_FallbackSamePlatform(t *testing.T) {
	store := repotest.NewStore(t)
	slots := seedDay(t, store)
	// Чужой контент, reddit, через 70 минут после слота 1.
	seedRecord(t, store, uuid.New(), "reddit", slots[1].ScheduledPostTime.Add(70*time.Minute))

	report, err := New(Config{Store: store}).Backfill(context.Background(), testDate, false)
	if err != nil {
		t.Fatalf("backfill: %v", err)
	}
	if len(report.Matches) != 1 {
		t.Fatalf("expected one match, got %+v", report)
	}
	m := report.Matches[0]
	if m.Kind != MatchFallback || m.SlotID != slots[1].ID || m.Linked {
		t.Errorf("unexpected match %+v", m)
	}
}

func TestBackfill_Unmatched(t *testing.T) {
	store := repotest.NewStore(t)
	slots := seedDay(t, store)
	// Платформы нет в расписании.
	seedRecord(t, store, uuid.New(), "twitter", slots[0].ScheduledPostTime)
	// Платформа есть, но дальше 90 минут.
	seedRecord(t, store, uuid.New(), "youtube", slots[0].ScheduledPostTime.Add(-2*time.Hour))

	report, err := New(Config{Store: store}).Backfill(context.Background(), testDate, true)
	if err != nil {
		t.Fatalf("backfill: %v", err)
	}
	if len(report.Unmatched) != 2 || report.Linked != 0 {
		t.Errorf("expected 2 unmatched, got %+v", report)
	}
}

func TestBackfill_NeverReusesLinkedSlot(t *testing.T) {
	ctx := context.Background()
	store := repotest.NewStore(t)
	slots := seedDay(t, store)

	// Слот 1 уже связан с публикацией Claimer'а.
	linked := slots[1].ID
	done := domain.PostedRecord{
		ID:                 uuid.New(),
		ContentCandidateID: *slots[1].ContentID,
		ScheduledSlotID:    &linked,
		Platform:           "reddit",
		PostedAt:           slots[1].ScheduledPostTime,
	}
	if err := store.InsertPostedRecord(ctx, &done); err != nil {
		t.Fatalf("insert linked record: %v", err)
	}
	seedRecord(t, store, *slots[1].ContentID, "reddit", slots[1].ScheduledPostTime.Add(5*time.Minute))

	report, err := New(Config{Store: store}).Backfill(ctx, testDate, true)
	if err != nil {
		t.Fatalf("backfill: %v", err)
	}
	if report.Linked != 0 || len(report.Unmatched) != 1 {
		t.Errorf("linked slot must not be reused, got %+v", report)
	}
}

func TestBackfill_TwoRecordsOneSlot(t *testing.T) {
	store := repotest.NewStore(t)
	slots := seedDay(t, store)
	seedRecord(t, store, uuid.New(), "giphy", slots[2].ScheduledPostTime.Add(-10*time.Minute))
	seedRecord(t, store, uuid.New(), "giphy", slots[2].ScheduledPostTime.Add(20*time.Minute))

	report, err := New(Config{Store: store}).Backfill(context.Background(), testDate, true)
	if err != nil {
		t.Fatalf("backfill: %v", err)
	}
	if report.Linked != 1 || len(report.Unmatched) != 1 {
		t.Errorf("expected one link and one unmatched, got %+v", report)
	}
}

func TestBackfill_DryRunThenWriteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := repotest.NewStore(t)
	slots := seedDay(t, store)
	seedRecord(t, store, *slots[0].ContentID, "youtube", slots[0].ScheduledPostTime)
	seedRecord(t, store, uuid.New(), "reddit", slots[4].ScheduledPostTime.Add(-40*time.Minute))

	b := New(Config{Store: store})

	dry, err := b.Backfill(ctx, testDate, false)
	if err != nil {
		t.Fatalf("dry run: %v", err)
	}
	if len(dry.Matches) != 2 || dry.Linked != 0 {
		t.Fatalf("dry run must match without linking, got %+v", dry)
	}

	first, err := b.Backfill(ctx, testDate, true)
	if err != nil {
		t.Fatalf("first write: %v", err)
	}
	if first.Linked != 2 {
		t.Fatalf("expected 2 links, got %+v", first)
	}

	second, err := b.Backfill(ctx, testDate, true)
	if err != nil {
		t.Fatalf("second write: %v", err)
	}
	if second.Linked != 0 || second.Examined != 0 {
		t.Errorf("second run must write nothing, got %+v", second)
	}
}

func TestBackfill_InvalidDate(t *testing.T) {
	store := repotest.NewStore(t)
	_, err := New(Config{Store: store}).Backfill(context.Background(), "2025-13-01", false)
	if !domain.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}
