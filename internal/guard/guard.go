// Package guard проверяет SLA заполненности расписания.
//
// Сегодня и завтра (по ET) должны иметь не меньше заданного числа слотов с
// контентом. Проверка только читает хранилище; при нарушении формируется
// Remediation со списком команд восстановления.
package guard

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shaiso/Herald/internal/domain"
	"github.com/shaiso/Herald/internal/slottime"
	"github.com/shaiso/Herald/internal/telemetry"
)

// Counter — подсчёт заполненных слотов за день.
type Counter interface {
	CountFilledSlots(ctx context.Context, date string) (int, error)
}

// Alerter доставляет сообщение о нарушении SLA.
type Alerter interface {
	Alert(ctx context.Context, r Remediation) error
}

// Config — конфигурация Guard.
type Config struct {
	Store Counter

	// Alerter — опционально; nil отключает отправку.
	Alerter Alerter

	Logger *slog.Logger
}

// Guard — проверка SLA.
type Guard struct {
	store   Counter
	alerter Alerter
	logger  *slog.Logger
}

// New создаёт новый Guard.
func New(cfg Config) *Guard {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Guard{
		store:   cfg.Store,
		alerter: cfg.Alerter,
		logger:  cfg.Logger,
	}
}

// DayCoverage — заполненность одного дня.
type DayCoverage struct {
	Label    string `json:"label"`
	Date     string `json:"date"`
	Filled   int    `json:"filled"`
	Required int    `json:"required"`
}

// OK сообщает, выполнен ли минимум.
func (d DayCoverage) OK() bool {
	return d.Filled >= d.Required
}

// Line — строка отчёта вида "Today: 5/6".
func (d DayCoverage) Line() string {
	return fmt.Sprintf("%s: %d/%d", d.Label, d.Filled, domain.SlotsPerDay)
}

// Remediation — сообщение о нарушении SLA.
type Remediation struct {
	Breaches []DayCoverage `json:"breaches"`
	Commands []string      `json:"commands"`
	Message  string        `json:"message"`
}

// Report — результат AssertSLA.
type Report struct {
	Today       DayCoverage  `json:"today"`
	Tomorrow    DayCoverage  `json:"tomorrow"`
	Passed      bool         `json:"passed"`
	Remediation *Remediation `json:"remediation,omitempty"`
	AlertSent   bool         `json:"alert_sent"`
}

// Lines возвращает строки отчёта.
func (r *Report) Lines() []string {
	return []string{r.Today.Line(), r.Tomorrow.Line()}
}

// AssertSLA проверяет заполненность сегодня и завтра относительно now.
// Минимумы вне [0, 6] — ошибка валидации.
func (g *Guard) AssertSLA(ctx context.Context, now time.Time, todayMin, tomorrowMin int) (*Report, error) {
	for _, m := range []struct {
		field string
		v     int
	}{{"today_min", todayMin}, {"tomorrow_min", tomorrowMin}} {
		if m.v < 0 || m.v > domain.SlotsPerDay {
			return nil, &domain.ValidationError{Field: m.field, Value: fmt.Sprint(m.v), Msg: "must be within 0..6"}
		}
	}

	today := slottime.TodayET(now)
	tomorrow, err := slottime.AddDays(today, 1)
	if err != nil {
		return nil, err
	}

	report := &Report{
		Today:    DayCoverage{Label: "Today", Date: today, Required: todayMin},
		Tomorrow: DayCoverage{Label: "Tomorrow", Date: tomorrow, Required: tomorrowMin},
	}
	for _, day := range []*DayCoverage{&report.Today, &report.Tomorrow} {
		n, err := g.store.CountFilledSlots(ctx, day.Date)
		if err != nil {
			return nil, fmt.Errorf("count filled slots %s: %w", day.Date, err)
		}
		day.Filled = n
		telemetry.SLACoverage.WithLabelValues(strings.ToLower(day.Label)).Set(float64(n))
	}

	report.Passed = report.Today.OK() && report.Tomorrow.OK()
	if report.Passed {
		g.logger.Info("sla passed", "today", report.Today.Line(), "tomorrow", report.Tomorrow.Line())
		return report, nil
	}

	rem := buildRemediation(report)
	report.Remediation = &rem
	g.logger.Error("sla breached", "today", report.Today.Line(), "tomorrow", report.Tomorrow.Line())

	if g.alerter != nil {
		if err := g.alerter.Alert(ctx, rem); err != nil {
			g.logger.Warn("failed to send sla alert", "error", err)
		} else {
			report.AlertSent = true
		}
	}
	return report, nil
}

// --- Helpers ---

func buildRemediation(r *Report) Remediation {
	var rem Remediation
	for _, day := range []DayCoverage{r.Today, r.Tomorrow} {
		if day.OK() {
			continue
		}
		rem.Breaches = append(rem.Breaches, day)
		if day.Filled == 0 {
			rem.Commands = append(rem.Commands, "herald generate --date "+day.Date+" --force")
		}
		rem.Commands = append(rem.Commands, "herald precompute --from "+day.Date+" --days 1 --heal")
	}
	rem.Commands = append(rem.Commands, "herald assert-sla")

	var b strings.Builder
	b.WriteString("Schedule SLA breached\n")
	for _, day := range []DayCoverage{r.Today, r.Tomorrow} {
		b.WriteString(day.Line())
		if !day.OK() {
			fmt.Fprintf(&b, " (min %d)", day.Required)
		}
		b.WriteByte('\n')
	}
	b.WriteString("Run:\n")
	for _, cmd := range rem.Commands {
		b.WriteString("  ")
		b.WriteString(cmd)
		b.WriteByte('\n')
	}
	rem.Message = b.String()
	return rem
}
