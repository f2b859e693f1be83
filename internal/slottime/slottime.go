package slottime

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/shaiso/Herald/internal/domain"
)

// TimezoneName — часовой пояс, в котором живёт расписание.
const TimezoneName = "America/New_York"

// DateLayout — формат календарного дня.
const DateLayout = "2006-01-02"

// WindowHalfWidth — половина окна слота (±30 минут).
const WindowHalfWidth = 30 * time.Minute

// slotClock — фиксированные времена слотов по ET.
var slotClock = [domain.SlotsPerDay]string{"08:00", "12:00", "15:00", "18:00", "21:00", "23:30"}

var eastern = mustLoadLocation(TimezoneName)

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(fmt.Sprintf("load location %s: %v", name, err))
	}
	return loc
}

// Location возвращает часовой пояс ET.
func Location() *time.Location {
	return eastern
}

// Window — окно слота в UTC.
type Window struct {
	StartUTC    time.Time `json:"start_utc"`
	EndUTC      time.Time `json:"end_utc"`
	SlotTimeUTC time.Time `json:"slot_time_utc"`
}

// Contains проверяет, попадает ли t в окно (границы включительно).
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.StartUTC) && !t.After(w.EndUTC)
}

// ParseDate разбирает день YYYY-MM-DD и возвращает полночь по ET.
func ParseDate(date string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, strings.TrimSpace(date), eastern)
	if err != nil {
		return time.Time{}, &domain.ValidationError{Field: "date", Value: date, Msg: "expected YYYY-MM-DD"}
	}
	return t, nil
}

// ValidateDate проверяет формат дня.
func ValidateDate(date string) error {
	_, err := ParseDate(date)
	return err
}

// FormatDate возвращает календарный день момента t по ET.
func FormatDate(t time.Time) string {
	return t.In(eastern).Format(DateLayout)
}

// TodayET возвращает «сегодня» по ET для момента now.
func TodayET(now time.Time) string {
	return FormatDate(now)
}

// AddDays сдвигает день на n календарных дней.
func AddDays(date string, n int) (string, error) {
	t, err := ParseDate(date)
	if err != nil {
		return "", err
	}
	return t.AddDate(0, 0, n).Format(DateLayout), nil
}

// DateRange возвращает дни [from, from+days).
func DateRange(from string, days int) ([]string, error) {
	start, err := ParseDate(from)
	if err != nil {
		return nil, err
	}
	if days < 0 {
		return nil, &domain.ValidationError{Field: "days", Value: strconv.Itoa(days), Msg: "must be >= 0"}
	}
	out := make([]string, 0, days)
	for i := 0; i < days; i++ {
		out = append(out, start.AddDate(0, 0, i).Format(DateLayout))
	}
	return out, nil
}

// ParseClock разбирает "HH:MM".
func ParseClock(hhmm string) (hour, minute int, err error) {
	parts := strings.Split(strings.TrimSpace(hhmm), ":")
	if len(parts) != 2 {
		return 0, 0, &domain.ValidationError{Field: "time", Value: hhmm, Msg: "expected HH:MM"}
	}
	hour, errH := strconv.Atoi(parts[0])
	minute, errM := strconv.Atoi(parts[1])
	if errH != nil || errM != nil || hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, &domain.ValidationError{Field: "time", Value: hhmm, Msg: "expected HH:MM"}
	}
	return hour, minute, nil
}

// ETTimeToUTC переводит настенное время ET дня date в момент UTC.
//
//	ETTimeToUTC("2025-07-04", "08:00") → 2025-07-04T12:00:00Z (EDT)
//	ETTimeToUTC("2025-01-04", "08:00") → 2025-01-04T13:00:00Z (EST)
func ETTimeToUTC(date, hhmm string) (time.Time, error) {
	day, err := ParseDate(date)
	if err != nil {
		return time.Time{}, err
	}
	hour, minute, err := ParseClock(hhmm)
	if err != nil {
		return time.Time{}, err
	}
	y, m, d := day.Date()
	return time.Date(y, m, d, hour, minute, 0, 0, eastern).UTC(), nil
}

// UTCToET — обратная к ETTimeToUTC: день и "HH:MM" по ET.
func UTCToET(t time.Time) (date, hhmm string) {
	local := t.In(eastern)
	return local.Format(DateLayout), local.Format("15:04")
}

// SlotClock возвращает время слота "HH:MM" по ET.
func SlotClock(slotIndex int) (string, error) {
	if err := ValidateSlotIndex(slotIndex); err != nil {
		return "", err
	}
	return slotClock[slotIndex], nil
}

// ValidateSlotIndex проверяет диапазон 0..5.
func ValidateSlotIndex(slotIndex int) error {
	if slotIndex < 0 || slotIndex >= domain.SlotsPerDay {
		return &domain.ValidationError{Field: "slot_index", Value: strconv.Itoa(slotIndex), Msg: "must be in 0..5"}
	}
	return nil
}

// SlotTimeUTC возвращает момент публикации слота в UTC.
func SlotTimeUTC(date string, slotIndex int) (time.Time, error) {
	clock, err := SlotClock(slotIndex)
	if err != nil {
		return time.Time{}, err
	}
	return ETTimeToUTC(date, clock)
}

// SlotWindowUTC возвращает окно слота ±30 минут в UTC.
func SlotWindowUTC(date string, slotIndex int) (Window, error) {
	at, err := SlotTimeUTC(date, slotIndex)
	if err != nil {
		return Window{}, err
	}
	return Window{
		StartUTC:    at.Add(-WindowHalfWidth),
		EndUTC:      at.Add(WindowHalfWidth),
		SlotTimeUTC: at,
	}, nil
}

// DaySlotTimes возвращает моменты всех шести слотов дня по возрастанию.
func DaySlotTimes(date string) ([]time.Time, error) {
	out := make([]time.Time, 0, domain.SlotsPerDay)
	for i := 0; i < domain.SlotsPerDay; i++ {
		at, err := SlotTimeUTC(date, i)
		if err != nil {
			return nil, err
		}
		out = append(out, at)
	}
	return out, nil
}

// DayBoundsUTC возвращает [начало дня, начало следующего дня) по ET в UTC.
// В дни перехода на летнее/зимнее время сутки длятся 23 или 25 часов.
func DayBoundsUTC(date string) (start, end time.Time, err error) {
	day, err := ParseDate(date)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return day.UTC(), day.AddDate(0, 0, 1).UTC(), nil
}

// CurrentSlotIndex определяет слот для момента now.
//
// Если now попадает в окно ±30 минут какого-либо слота — возвращается он.
// Иначе возвращается ближайший следующий слот. После окна последнего слота
// возвращается 0: вызывающий трактует это как первый слот завтрашнего дня.
func CurrentSlotIndex(now time.Time) int {
	local := now.In(eastern)
	h, m, s := local.Clock()
	// настенное время, а не длительность с полуночи: в дни DST они расходятся
	current := time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(s)*time.Second

	for i, clock := range slotClock {
		hour, minute, _ := ParseClock(clock)
		at := time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute
		if current <= at+WindowHalfWidth {
			return i
		}
	}
	return 0
}
