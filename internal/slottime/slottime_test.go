package slottime

import (
	"testing"
	"time"

	"github.com/shaiso/Herald/internal/domain"
)

func mustUTC(t *testing.T, s string) time.Time {
	t.Helper()
	v, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatalf("parse %s: %v", s, err)
	}
	return v
}

func TestETTimeToUTC(t *testing.T) {
	tests := []struct {
		name string
		date string
		hhmm string
		want string
	}{
		{"summer EDT", "2025-07-04", "08:00", "2025-07-04T12:00:00Z"},
		{"winter EST", "2025-01-04", "08:00", "2025-01-04T13:00:00Z"},
		{"late slot crosses UTC midnight", "2025-07-04", "23:30", "2025-07-05T03:30:00Z"},
		// второе воскресенье марта 2025 — 9 марта
		{"day before spring forward", "2025-03-08", "08:00", "2025-03-08T13:00:00Z"},
		{"spring forward day", "2025-03-09", "08:00", "2025-03-09T12:00:00Z"},
		// первое воскресенье ноября 2025 — 2 ноября
		{"day before fall back", "2025-11-01", "08:00", "2025-11-01T12:00:00Z"},
		{"fall back day", "2025-11-02", "08:00", "2025-11-02T13:00:00Z"},
		// 2026: 8 марта и 1 ноября — пороги «день >= 8» / «день <= 7» здесь ошибаются
		{"2026 march 7 is still EST", "2026-03-07", "12:00", "2026-03-07T17:00:00Z"},
		{"2026 november 2 is EST", "2026-11-02", "12:00", "2026-11-02T17:00:00Z"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ETTimeToUTC(tt.date, tt.hhmm)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.Equal(mustUTC(t, tt.want)) {
				t.Errorf("ETTimeToUTC(%s, %s) = %s, want %s", tt.date, tt.hhmm, got.Format(time.RFC3339), tt.want)
			}
		})
	}
}

func TestETTimeToUTC_Validation(t *testing.T) {
	cases := []struct{ date, hhmm string }{
		{"2025-13-01", "08:00"},
		{"not-a-date", "08:00"},
		{"2025-07-04", "24:00"},
		{"2025-07-04", "8"},
		{"2025-07-04", "08:61"},
	}
	for _, c := range cases {
		if _, err := ETTimeToUTC(c.date, c.hhmm); !domain.IsValidation(err) {
			t.Errorf("ETTimeToUTC(%q, %q): expected ValidationError, got %v", c.date, c.hhmm, err)
		}
	}
}

func TestUTCToET_RoundTrip(t *testing.T) {
	for _, date := range []string{"2025-01-04", "2025-03-09", "2025-07-04", "2025-11-02"} {
		for i := 0; i < domain.SlotsPerDay; i++ {
			at, err := SlotTimeUTC(date, i)
			if err != nil {
				t.Fatalf("SlotTimeUTC: %v", err)
			}
			gotDate, gotClock := UTCToET(at)
			wantClock, _ := SlotClock(i)
			if gotDate != date || gotClock != wantClock {
				t.Errorf("round trip %s slot %d: got %s %s", date, i, gotDate, gotClock)
			}
		}
	}
}

func TestDaySlotTimes_StrictlyIncreasing(t *testing.T) {
	for _, date := range []string{"2025-03-09", "2025-11-02", "2025-06-15", "2025-12-31"} {
		times, err := DaySlotTimes(date)
		if err != nil {
			t.Fatalf("DaySlotTimes(%s): %v", date, err)
		}
		if len(times) != domain.SlotsPerDay {
			t.Fatalf("expected %d slots, got %d", domain.SlotsPerDay, len(times))
		}
		for i := 1; i < len(times); i++ {
			if !times[i].After(times[i-1]) {
				t.Errorf("%s: slot %d (%s) not after slot %d (%s)", date, i, times[i], i-1, times[i-1])
			}
		}
	}
}

func TestSlotWindowUTC(t *testing.T) {
	w, err := SlotWindowUTC("2025-07-04", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !w.SlotTimeUTC.Equal(mustUTC(t, "2025-07-04T12:00:00Z")) {
		t.Errorf("slot time = %s", w.SlotTimeUTC)
	}
	if !w.StartUTC.Equal(mustUTC(t, "2025-07-04T11:30:00Z")) || !w.EndUTC.Equal(mustUTC(t, "2025-07-04T12:30:00Z")) {
		t.Errorf("window = [%s, %s]", w.StartUTC, w.EndUTC)
	}
	if !w.Contains(mustUTC(t, "2025-07-04T12:30:00Z")) {
		t.Error("window end should be inclusive")
	}

	if _, err := SlotWindowUTC("2025-07-04", 6); !domain.IsValidation(err) {
		t.Errorf("expected ValidationError for slot 6, got %v", err)
	}
	if _, err := SlotWindowUTC("2025-07-04", -1); !domain.IsValidation(err) {
		t.Errorf("expected ValidationError for slot -1, got %v", err)
	}
}

func TestCurrentSlotIndex(t *testing.T) {
	tests := []struct {
		et   string // настенное время ET 2025-07-04
		want int
	}{
		{"00:10", 0},
		{"07:29", 0},
		{"07:30", 0},
		{"08:30", 0},
		{"08:31", 1},
		{"11:45", 1},
		{"12:20", 1},
		{"14:00", 2},
		{"15:30", 2},
		{"17:31", 3},
		{"20:00", 4},
		{"21:30", 4},
		{"22:00", 5},
		{"23:59", 5},
	}

	for _, tt := range tests {
		at, err := ETTimeToUTC("2025-07-04", tt.et)
		if err != nil {
			t.Fatalf("ETTimeToUTC: %v", err)
		}
		if got := CurrentSlotIndex(at); got != tt.want {
			t.Errorf("CurrentSlotIndex(%s ET) = %d, want %d", tt.et, got, tt.want)
		}
	}
}

func TestCurrentSlotIndex_AfterLastWindowWrapsToZero(t *testing.T) {
	// 23:30 + 30 минут = полночь следующего дня; 00:00:30 — уже новые сутки → слот 0
	at := time.Date(2025, 7, 5, 0, 0, 30, 0, Location())
	if got := CurrentSlotIndex(at); got != 0 {
		t.Errorf("expected 0, got %d", got)
	}
}

func TestDayBoundsUTC_DSTDays(t *testing.T) {
	start, end, err := DayBoundsUTC("2025-03-09")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d := end.Sub(start); d != 23*time.Hour {
		t.Errorf("spring forward day length = %s, want 23h", d)
	}

	start, end, err = DayBoundsUTC("2025-11-02")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d := end.Sub(start); d != 25*time.Hour {
		t.Errorf("fall back day length = %s, want 25h", d)
	}
}

func TestDateRange(t *testing.T) {
	days, err := DateRange("2025-12-30", 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"2025-12-30", "2025-12-31", "2026-01-01", "2026-01-02"}
	if len(days) != len(want) {
		t.Fatalf("got %v", days)
	}
	for i := range want {
		if days[i] != want[i] {
			t.Errorf("day %d = %s, want %s", i, days[i], want[i])
		}
	}
}

func TestTodayET(t *testing.T) {
	// 02:00 UTC 5 июля — это ещё 4 июля по ET
	if got := TodayET(mustUTC(t, "2025-07-05T02:00:00Z")); got != "2025-07-04" {
		t.Errorf("TodayET = %s, want 2025-07-04", got)
	}
}
