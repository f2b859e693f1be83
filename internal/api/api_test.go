package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Herald/internal/domain"
	"github.com/shaiso/Herald/internal/guard"
	"github.com/shaiso/Herald/internal/repo"
	"github.com/shaiso/Herald/internal/repo/repotest"
	"github.com/shaiso/Herald/internal/slottime"
)

// 2025-07-04 06:10 ET.
var testNow = time.Date(2025, 7, 4, 10, 10, 0, 0, time.UTC)

// --- Helpers ---

func seedDay(t *testing.T, store *repo.SQLiteStore, date string, filled int) {
	t.Helper()
	times, err := slottime.DaySlotTimes(date)
	if err != nil {
		t.Fatalf("slot times: %v", err)
	}
	slots := make([]domain.ScheduledSlot, domain.SlotsPerDay)
	platforms := []string{"youtube", "reddit", "giphy"}
	for i := range slots {
		slots[i] = domain.ScheduledSlot{
			ID:                uuid.New(),
			Date:              date,
			SlotIndex:         i,
			ScheduledPostTime: times[i],
			Status:            domain.SlotStatusPending,
		}
		if i < filled {
			c := repotest.Candidate(platforms[i%len(platforms)], "video", i)
			slots[i].Assign(&c, "seeded")
		}
	}
	if err := store.CreateSlots(context.Background(), slots, repo.Booking{}); err != nil {
		t.Fatalf("create slots: %v", err)
	}
}

func newServer(t *testing.T, store *repo.SQLiteStore) *httptest.Server {
	t.Helper()
	h := NewHandler(Config{
		Store:       store,
		Now:         func() time.Time { return testNow },
		TodayMin:    domain.SlotsPerDay,
		TomorrowMin: domain.SlotsPerDay,
	})
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func get(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

// --- Slot Tests ---

func TestListSlots_DefaultsToToday(t *testing.T) {
	store := repotest.NewStore(t)
	seedDay(t, store, "2025-07-04", 4)
	srv := newServer(t, store)

	var body struct {
		Data  []domain.ScheduledSlot `json:"data"`
		Total int                    `json:"total"`
	}
	if code := get(t, srv.URL+"/api/v1/slots", &body); code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if body.Total != domain.SlotsPerDay || len(body.Data) != domain.SlotsPerDay {
		t.Fatalf("total = %d, len = %d", body.Total, len(body.Data))
	}
	if body.Data[0].Date != "2025-07-04" || body.Data[0].SlotIndex != 0 {
		t.Errorf("first slot = %s #%d", body.Data[0].Date, body.Data[0].SlotIndex)
	}
}

func TestListSlots_EmptyDay(t *testing.T) {
	srv := newServer(t, repotest.NewStore(t))

	var body ListResponse
	if code := get(t, srv.URL+"/api/v1/slots/2025-07-10", &body); code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if body.Total != 0 {
		t.Errorf("total = %d, want 0", body.Total)
	}
}

func TestListSlots_InvalidDate(t *testing.T) {
	srv := newServer(t, repotest.NewStore(t))

	var body ErrorResponse
	if code := get(t, srv.URL+"/api/v1/slots?date=07/04/2025", &body); code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", code)
	}
	if body.Error.Code != ErrCodeBadRequest {
		t.Errorf("code = %s", body.Error.Code)
	}
}

// --- SLA Tests ---

func TestGetSLA(t *testing.T) {
	store := repotest.NewStore(t)
	seedDay(t, store, "2025-07-04", 6)
	seedDay(t, store, "2025-07-05", 3)
	srv := newServer(t, store)

	var body struct {
		Data guard.Report `json:"data"`
	}
	if code := get(t, srv.URL+"/api/v1/sla", &body); code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if body.Data.Passed {
		t.Error("expected breach with tomorrow 3/6")
	}
	if body.Data.Tomorrow.Filled != 3 {
		t.Errorf("tomorrow filled = %d, want 3", body.Data.Tomorrow.Filled)
	}
	if body.Data.AlertSent {
		t.Error("status API must not send alerts")
	}

	if code := get(t, srv.URL+"/api/v1/sla?tomorrow_min=3", &body); code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if !body.Data.Passed {
		t.Error("expected pass with tomorrow_min=3")
	}
}

func TestGetSLA_BadParam(t *testing.T) {
	srv := newServer(t, repotest.NewStore(t))

	for _, q := range []string{"today_min=x", "tomorrow_min=9"} {
		if code := get(t, srv.URL+"/api/v1/sla?"+q, nil); code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", q, code)
		}
	}
}

// --- Diversity Tests ---

func TestGetDiversity_DefaultWindow(t *testing.T) {
	store := repotest.NewStore(t)
	seedDay(t, store, "2025-07-04", 6)
	srv := newServer(t, store)

	var body struct {
		Data struct {
			From string `json:"from"`
			To   string `json:"to"`
			Days []struct {
				Date string `json:"date"`
			} `json:"days"`
		} `json:"data"`
	}
	if code := get(t, srv.URL+"/api/v1/diversity", &body); code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if body.Data.From != "2025-07-04" || body.Data.To != "2025-07-05" {
		t.Errorf("window = %s..%s", body.Data.From, body.Data.To)
	}
	if len(body.Data.Days) != 2 {
		t.Errorf("days = %d, want 2", len(body.Data.Days))
	}
}

func TestGetDiversity_ReversedRange(t *testing.T) {
	srv := newServer(t, repotest.NewStore(t))

	if code := get(t, srv.URL+"/api/v1/diversity?from=2025-07-05&to=2025-07-04", nil); code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", code)
	}
}

// --- Middleware Tests ---

func TestRecovery(t *testing.T) {
	h := Chain(Recovery(slog.Default()), Metrics())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/slots", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}
