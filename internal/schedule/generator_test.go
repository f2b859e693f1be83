package schedule

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Herald/internal/domain"
	"github.com/shaiso/Herald/internal/pool"
	"github.com/shaiso/Herald/internal/repo"
	"github.com/shaiso/Herald/internal/repo/repotest"
)

const testDate = "2025-07-04"

var testNow = time.Date(2025, 7, 3, 16, 0, 0, 0, time.UTC)

func newTestGenerator(t *testing.T) (*Generator, *repo.SQLiteStore) {
	t.Helper()
	store := repotest.NewStore(t)
	g := New(Config{
		Store: store,
		Pool:  pool.NewStorePool(store),
		Now:   func() time.Time { return testNow },
	})
	return g, store
}

func seedMixed(t *testing.T, store *repo.SQLiteStore, perPlatform int) {
	t.Helper()
	types := map[string]string{"youtube": "video", "reddit": "image", "giphy": "gif", "twitter": "text"}
	for platform, ct := range types {
		for i := 0; i < perPlatform; i++ {
			repotest.SeedCandidates(t, store, repotest.Candidate(platform, ct, i))
		}
	}
}

func selectable(t *testing.T, store *repo.SQLiteStore) int {
	t.Helper()
	got, err := store.ListSelectableCandidates(context.Background(), repo.CandidateFilter{})
	if err != nil {
		t.Fatalf("list candidates: %v", err)
	}
	return len(got)
}

// --- Generate Tests ---

func TestGenerate_SixOrderedRows(t *testing.T) {
	ctx := context.Background()
	g, store := newTestGenerator(t)
	seedMixed(t, store, 3)

	res, err := g.Generate(ctx, testDate, Options{})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if res.Created != domain.SlotsPerDay || res.Filled != domain.SlotsPerDay {
		t.Fatalf("expected 6 created and filled, got %+v", res)
	}

	slots, _ := store.ListSlotsByDate(ctx, testDate)
	if len(slots) != domain.SlotsPerDay {
		t.Fatalf("expected 6 rows, got %d", len(slots))
	}
	perPlatform := map[string]int{}
	for i, s := range slots {
		if s.SlotIndex != i {
			t.Errorf("row %d has index %d", i, s.SlotIndex)
		}
		if i > 0 && !s.ScheduledPostTime.After(slots[i-1].ScheduledPostTime) {
			t.Errorf("slot %d time not strictly increasing", i)
		}
		if !s.HasContent() {
			t.Errorf("slot %d unexpectedly empty", i)
		}
		perPlatform[s.Platform]++
	}
	for p, n := range perPlatform {
		if n > 2 {
			t.Errorf("platform %s used %d times, cap is 2", p, n)
		}
	}

	if got := slots[0].ScheduledPostTime; !got.Equal(time.Date(2025, 7, 4, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("slot 0 should be 08:00 EDT = 12:00Z, got %v", got)
	}
	if n := selectable(t, store); n != 12-6 {
		t.Errorf("consumed candidates must be marked scheduled, %d still selectable", n)
	}
}

func TestGenerate_Idempotent(t *testing.T) {
	ctx := context.Background()
	g, store := newTestGenerator(t)
	seedMixed(t, store, 3)

	first, err := g.Generate(ctx, testDate, Options{})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	second, err := g.Generate(ctx, testDate, Options{})
	if err != nil {
		t.Fatalf("second generate: %v", err)
	}
	if !second.Skipped {
		t.Error("second call without ForceRefill must be a no-op")
	}

	slots, _ := store.ListSlotsByDate(ctx, testDate)
	for i := range slots {
		if slots[i].ID != first.Slots[i].ID || *slots[i].ContentID != *first.Slots[i].ContentID {
			t.Errorf("slot %d changed on idempotent call", i)
		}
	}
	if n := selectable(t, store); n != 6 {
		t.Errorf("no extra candidates should be consumed, %d selectable", n)
	}
}

func TestGenerate_EmptyPoolStillWritesSixRows(t *testing.T) {
	ctx := context.Background()
	g, store := newTestGenerator(t)

	res, err := g.Generate(ctx, testDate, Options{})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !res.Exhausted || res.Filled != 0 {
		t.Errorf("expected exhausted empty day, got %+v", res)
	}

	slots, _ := store.ListSlotsByDate(ctx, testDate)
	if len(slots) != domain.SlotsPerDay {
		t.Fatalf("expected 6 rows, got %d", len(slots))
	}
	for _, s := range slots {
		if s.HasContent() || s.Reasoning != domain.ReasonAwaitingRefill {
			t.Errorf("slot %d: expected empty awaiting_refill, got %+v", s.SlotIndex, s)
		}
	}
}

func TestGenerate_FewerCandidates(t *testing.T) {
	ctx := context.Background()
	g, store := newTestGenerator(t)
	repotest.SeedCandidates(t, store,
		repotest.Candidate("youtube", "video", 1),
		repotest.Candidate("reddit", "image", 1),
		repotest.Candidate("giphy", "gif", 1),
	)

	res, err := g.Generate(ctx, testDate, Options{})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if res.Filled != 3 || res.Created != 6 {
		t.Errorf("expected 3 filled of 6, got %+v", res)
	}
	for i, s := range res.Slots {
		if (i < 3) != s.HasContent() {
			t.Errorf("slot %d: content presence mismatch", i)
		}
	}
}

func TestGenerate_InvalidDate(t *testing.T) {
	g, store := newTestGenerator(t)

	_, err := g.Generate(context.Background(), "2025-13-01", Options{})
	if !domain.IsValidation(err) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	slots, _ := store.ListSlotsInRange(context.Background(), "2000-01-01", "2100-01-01")
	if len(slots) != 0 {
		t.Errorf("nothing should be written on invalid input")
	}
}

// --- ForceRefill Tests ---

func TestGenerate_ForceRefillKeepsNonPending(t *testing.T) {
	ctx := context.Background()
	g, store := newTestGenerator(t)
	seedMixed(t, store, 2)

	first, err := g.Generate(ctx, testDate, Options{})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	posted := first.Slots[0]
	for _, tr := range []domain.SlotTransition{
		{SlotID: posted.ID, From: domain.SlotStatusPending, To: domain.SlotStatusPosting, At: testNow},
		{SlotID: posted.ID, From: domain.SlotStatusPosting, To: domain.SlotStatusPosted, At: testNow},
	} {
		if err := store.TransitionSlot(ctx, tr); err != nil {
			t.Fatalf("transition: %v", err)
		}
	}

	res, err := g.Generate(ctx, testDate, Options{ForceRefill: true})
	if err != nil {
		t.Fatalf("force refill: %v", err)
	}
	if res.Skipped {
		t.Fatal("force refill must not be skipped")
	}
	if res.Filled != domain.SlotsPerDay {
		t.Errorf("refill must not lose content, filled=%d", res.Filled)
	}

	slots, _ := store.ListSlotsByDate(ctx, testDate)
	if *slots[0].ContentID != *posted.ContentID || slots[0].Status != domain.SlotStatusPosted {
		t.Errorf("posted slot must keep its content and status")
	}
	for i := range slots {
		if slots[i].ID != first.Slots[i].ID || !slots[i].CreatedAt.Equal(first.Slots[i].CreatedAt) {
			t.Errorf("slot %d: refill must update rows in place", i)
		}
	}

	// Ровно 6 кандидатов заняты, остальные (в т.ч. снятые) вернулись в пул.
	if n := selectable(t, store); n != 8-6 {
		t.Errorf("expected 2 selectable after refill, got %d", n)
	}
}

// --- Booking Tests ---

// barrierPool отдаёт снимок и держит вызов, пока снимок не получат все
// parties участников: генерации видят один и тот же пул.
type barrierPool struct {
	pool.ContentPool
	parties int

	mu      sync.Mutex
	arrived int
	release chan struct{}
}

func newBarrierPool(inner pool.ContentPool, parties int) *barrierPool {
	return &barrierPool{ContentPool: inner, parties: parties, release: make(chan struct{})}
}

func (p *barrierPool) ListApprovedUnposted(ctx context.Context, f pool.Filter) ([]domain.ContentCandidate, error) {
	got, err := p.ContentPool.ListApprovedUnposted(ctx, f)
	p.mu.Lock()
	p.arrived++
	if p.arrived == p.parties {
		close(p.release)
	}
	p.mu.Unlock()

	select {
	case <-p.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return got, err
}

// stalePool первые stale вызовов отдаёт снимок, снятый до чужой брони.
type stalePool struct {
	pool.ContentPool
	snapshot []domain.ContentCandidate
	stale    int
	lists    int
}

func (p *stalePool) ListApprovedUnposted(ctx context.Context, f pool.Filter) ([]domain.ContentCandidate, error) {
	p.lists++
	if p.lists <= p.stale {
		return append([]domain.ContentCandidate(nil), p.snapshot...), nil
	}
	return p.ContentPool.ListApprovedUnposted(ctx, f)
}

func newStaleGenerator(t *testing.T, store *repo.SQLiteStore, stale int) (*Generator, *stalePool) {
	t.Helper()
	snapshot, err := store.ListSelectableCandidates(context.Background(), repo.CandidateFilter{})
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	p := &stalePool{ContentPool: pool.NewStorePool(store), snapshot: snapshot, stale: stale}
	g := New(Config{
		Store: store,
		Pool:  p,
		Now:   func() time.Time { return testNow },
	})
	return g, p
}

func dayContent(t *testing.T, store *repo.SQLiteStore, date string) []uuid.UUID {
	t.Helper()
	slots, err := store.ListSlotsByDate(context.Background(), date)
	if err != nil {
		t.Fatalf("list %s: %v", date, err)
	}
	var ids []uuid.UUID
	for _, s := range slots {
		if s.HasContent() {
			ids = append(ids, *s.ContentID)
		}
	}
	return ids
}

func TestGenerate_ConcurrentDaysNeverShareCandidates(t *testing.T) {
	ctx := context.Background()
	store := repotest.NewStore(t)
	seedMixed(t, store, 4)

	g := New(Config{
		Store: store,
		Pool:  newBarrierPool(pool.NewStorePool(store), 2),
		Now:   func() time.Time { return testNow },
	})

	dates := []string{"2025-07-04", "2025-07-05"}
	errs := make([]error, len(dates))
	var wg sync.WaitGroup
	for i, date := range dates {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = g.Generate(ctx, date, Options{})
		}()
	}
	wg.Wait()

	seen := map[uuid.UUID]string{}
	for i, date := range dates {
		if errs[i] != nil {
			t.Fatalf("generate %s: %v", date, errs[i])
		}
		ids := dayContent(t, store, date)
		if len(ids) != domain.SlotsPerDay {
			t.Errorf("%s: expected 6 filled slots, got %d", date, len(ids))
		}
		for _, id := range ids {
			if other, ok := seen[id]; ok {
				t.Errorf("candidate %s booked on %s and %s", id, other, date)
			}
			seen[id] = date
		}
	}
	if n := selectable(t, store); n != 16-len(seen) {
		t.Errorf("every booked candidate must leave the pool, %d selectable", n)
	}
}

func TestGenerate_RetriesAfterCandidateTaken(t *testing.T) {
	ctx := context.Background()
	store := repotest.NewStore(t)
	seedMixed(t, store, 3)

	g, p := newStaleGenerator(t, store, 1)

	// Лучшие кандидаты каждой платформы заняты другим процессом после снимка.
	taken := map[uuid.UUID]bool{}
	for _, c := range p.snapshot {
		if c.Priority == 2 {
			if err := store.SetCandidateScheduled(ctx, c.ID, true); err != nil {
				t.Fatalf("book elsewhere: %v", err)
			}
			taken[c.ID] = true
		}
	}

	res, err := g.Generate(ctx, testDate, Options{})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if p.lists != 2 {
		t.Errorf("expected one reselection, pool listed %d times", p.lists)
	}
	if res.Filled != domain.SlotsPerDay {
		t.Errorf("expected 6 filled after reselection, got %+v", res)
	}
	for _, id := range dayContent(t, store, testDate) {
		if taken[id] {
			t.Errorf("candidate %s booked elsewhere was reused", id)
		}
	}
}

func TestGenerate_BookingConflictWritesNothing(t *testing.T) {
	ctx := context.Background()
	store := repotest.NewStore(t)
	seedMixed(t, store, 2)

	g, p := newStaleGenerator(t, store, defaultBookingAttempts)
	for _, c := range p.snapshot {
		if err := store.SetCandidateScheduled(ctx, c.ID, true); err != nil {
			t.Fatalf("book elsewhere: %v", err)
		}
	}

	_, err := g.Generate(ctx, testDate, Options{})
	if !errors.Is(err, repo.ErrCandidateTaken) {
		t.Fatalf("expected ErrCandidateTaken, got %v", err)
	}
	if p.lists != defaultBookingAttempts {
		t.Errorf("expected %d attempts, got %d", defaultBookingAttempts, p.lists)
	}
	if n, _ := store.CountSlots(ctx, testDate); n != 0 {
		t.Errorf("rejected booking must not leave rows, got %d", n)
	}
}

func TestGenerate_ForceRefillRanksCurrentContent(t *testing.T) {
	ctx := context.Background()
	g, store := newTestGenerator(t)

	keep := repotest.Candidate("youtube", "video", 9)
	repotest.SeedCandidates(t, store, keep)
	seedMixed(t, store, 2)

	first, err := g.Generate(ctx, testDate, Options{})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if first.Filled != domain.SlotsPerDay {
		t.Fatalf("expected full day, got %+v", first)
	}

	repotest.SeedCandidates(t, store,
		repotest.Candidate("youtube", "video", 5),
		repotest.Candidate("youtube", "video", 5),
	)

	res, err := g.Generate(ctx, testDate, Options{ForceRefill: true})
	if err != nil {
		t.Fatalf("force refill: %v", err)
	}
	found := false
	for _, id := range dayContent(t, store, testDate) {
		found = found || id == keep.ID
	}
	if !found {
		t.Error("current high-priority content must outrank newer lower-priority candidates")
	}
	if res.Released == 0 {
		t.Errorf("lower-priority youtube content should be released, got %+v", res)
	}
}

// --- Materialize Tests ---

func TestMaterialize_FillsInPlace(t *testing.T) {
	ctx := context.Background()
	g, store := newTestGenerator(t)
	repotest.SeedCandidates(t, store,
		repotest.Candidate("youtube", "video", 1),
		repotest.Candidate("reddit", "image", 1),
	)

	first, err := g.Generate(ctx, testDate, Options{})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if first.Filled != 2 {
		t.Fatalf("expected 2 filled, got %d", first.Filled)
	}

	seedMixed(t, store, 2)
	res, err := g.Materialize(ctx, testDate)
	if err != nil {
		t.Fatalf("materialize: %v", err)
	}
	if res.Filled != domain.SlotsPerDay || res.Assigned != 4 {
		t.Errorf("expected 4 assigned and 6 filled, got %+v", res)
	}

	slots, _ := store.ListSlotsByDate(ctx, testDate)
	for i := range slots {
		if slots[i].ID != first.Slots[i].ID {
			t.Errorf("slot %d: id changed", i)
		}
		if !slots[i].CreatedAt.Equal(first.Slots[i].CreatedAt) {
			t.Errorf("slot %d: created_at changed", i)
		}
	}
	for i := 0; i < 2; i++ {
		if *slots[i].ContentID != *first.Slots[i].ContentID {
			t.Errorf("slot %d: existing content must not be replaced", i)
		}
	}
}

func TestMaterialize_InsertsMissingRows(t *testing.T) {
	ctx := context.Background()
	g, store := newTestGenerator(t)

	partial := make([]domain.ScheduledSlot, 0, 2)
	for _, idx := range []int{0, 3} {
		at := time.Date(2025, 7, 4, 12+idx, 0, 0, 0, time.UTC)
		partial = append(partial, domain.ScheduledSlot{
			ID: newID(), Date: testDate, SlotIndex: idx, ScheduledPostTime: at,
			Status: domain.SlotStatusPending, CreatedAt: testNow, UpdatedAt: testNow,
		})
	}
	if err := store.CreateSlots(ctx, partial, repo.Booking{}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	res, err := g.Materialize(ctx, testDate)
	if err != nil {
		t.Fatalf("materialize: %v", err)
	}
	if res.Created != 4 {
		t.Errorf("expected 4 missing rows created, got %d", res.Created)
	}
	n, _ := store.CountSlots(ctx, testDate)
	if n != domain.SlotsPerDay {
		t.Errorf("expected 6 rows, got %d", n)
	}
}

func TestMaterialize_CreatesAbsentDay(t *testing.T) {
	ctx := context.Background()
	g, store := newTestGenerator(t)
	seedMixed(t, store, 2)

	res, err := g.Materialize(ctx, testDate)
	if err != nil {
		t.Fatalf("materialize: %v", err)
	}
	if res.Created != domain.SlotsPerDay || res.Filled != domain.SlotsPerDay {
		t.Errorf("unexpected result %+v", res)
	}
}

// --- Precompute Tests ---

type fakeHealer struct {
	from, to    string
	maxAttempts int
}

func (h *fakeHealer) HealWindow(_ context.Context, from, to string, maxAttempts int) (HealSummary, error) {
	h.from, h.to, h.maxAttempts = from, to, maxAttempts
	return HealSummary{DatesHealed: 1}, nil
}

func TestPrecompute_WindowAndHeal(t *testing.T) {
	ctx := context.Background()
	g, store := newTestGenerator(t)
	seedMixed(t, store, 5)

	h := &fakeHealer{}
	res, err := g.Precompute(ctx, testDate, PrecomputeOptions{DaysAhead: 3, Healer: h, MaxAttempts: 2})
	if err != nil {
		t.Fatalf("precompute: %v", err)
	}
	if len(res.Days) != 3 {
		t.Fatalf("expected 3 days, got %d", len(res.Days))
	}
	for _, date := range []string{"2025-07-04", "2025-07-05", "2025-07-06"} {
		if n, _ := store.CountSlots(ctx, date); n != domain.SlotsPerDay {
			t.Errorf("%s: expected 6 rows, got %d", date, n)
		}
	}
	if h.from != "2025-07-04" || h.to != "2025-07-06" || h.maxAttempts != 2 {
		t.Errorf("healer got %s..%s x%d", h.from, h.to, h.maxAttempts)
	}
	if res.Heal == nil || res.Heal.DatesHealed != 1 {
		t.Errorf("heal summary missing: %+v", res.Heal)
	}
}

func newID() uuid.UUID { return uuid.New() }
