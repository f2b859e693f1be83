package cli

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/shaiso/Herald/internal/app"
	"github.com/shaiso/Herald/internal/domain"
	"github.com/shaiso/Herald/internal/slottime"
)

// ErrBlocking — команда выполнилась, но результат блокирующий (exit 1).
var ErrBlocking = errors.New("blocking issue")

// AppFunc лениво собирает компоненты.
type AppFunc func(ctx context.Context) (*app.App, error)

// OutputFunc создаёт Output после разбора флагов.
type OutputFunc func() *Output

// --- Helpers ---

// dateOrDefault возвращает date или сегодня (по ET) + offset дней.
func dateOrDefault(date string, now time.Time, offset int) (string, error) {
	if date != "" {
		if err := slottime.ValidateDate(date); err != nil {
			return "", err
		}
		return date, nil
	}
	return slottime.AddDays(slottime.TodayET(now), offset)
}

func slotHeaders() []string {
	return []string{"INDEX", "TIME (ET)", "PLATFORM", "TYPE", "STATUS", "CONTENT", "REASONING"}
}

func slotRows(slots []domain.ScheduledSlot) [][]string {
	rows := make([][]string, len(slots))
	for i, s := range slots {
		_, clock := slottime.UTCToET(s.ScheduledPostTime)
		content := "-"
		if s.HasContent() {
			content = s.ContentID.String()
		}
		rows[i] = []string{
			strconv.Itoa(s.SlotIndex),
			clock,
			dash(s.Platform),
			dash(s.ContentType),
			string(s.Status),
			content,
			dash(s.Reasoning),
		}
	}
	return rows
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
