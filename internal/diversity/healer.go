package diversity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/shaiso/Herald/internal/domain"
	"github.com/shaiso/Herald/internal/schedule"
)

const defaultMaxAttempts = 3

// Regenerator — перегенерация дня (реализуется schedule.Generator).
type Regenerator interface {
	Generate(ctx context.Context, date string, opts schedule.Options) (*schedule.Result, error)
}

// HealerConfig — конфигурация Healer.
type HealerConfig struct {
	Analyzer  *Analyzer
	Generator Regenerator

	// MaxAttempts — попыток на день по умолчанию (default: 3).
	MaxAttempts int

	Logger *slog.Logger
}

// Healer перегенерирует дни с пробелами разнообразия.
type Healer struct {
	analyzer    *Analyzer
	generator   Regenerator
	maxAttempts int
	logger      *slog.Logger
}

// NewHealer создаёт новый Healer.
func NewHealer(cfg HealerConfig) *Healer {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Healer{
		analyzer:    cfg.Analyzer,
		generator:   cfg.Generator,
		maxAttempts: cfg.MaxAttempts,
		logger:      cfg.Logger,
	}
}

// DateHeal — итог исцеления одного дня.
type DateHeal struct {
	Date        string  `json:"date"`
	Severity    int     `json:"severity"`
	GapsBefore  int     `json:"gaps_before"`
	GapsAfter   int     `json:"gaps_after"`
	ScoreBefore float64 `json:"score_before"`
	ScoreAfter  float64 `json:"score_after"`
	Attempts    int     `json:"attempts"`
	Healed      bool    `json:"healed"`
	Error       string  `json:"error,omitempty"`
}

// HealReport — итог исцеления диапазона.
type HealReport struct {
	From  string     `json:"from"`
	To    string     `json:"to"`
	Dates []DateHeal `json:"dates"`
}

// Heal находит пробелы в [from, to] и перегенерирует дни по убыванию тяжести.
//
// Для каждого дня делается до maxAttempts вызовов Generate с ForceRefill;
// после каждой попытки день анализируется заново, при нуле пробелов — стоп.
// Ошибки хранилища прерывают вызов, прочие ошибки дня пишутся в отчёт.
func (h *Healer) Heal(ctx context.Context, from, to string, maxAttempts int) (*HealReport, error) {
	if maxAttempts <= 0 {
		maxAttempts = h.maxAttempts
	}

	report, err := h.analyzer.Analyze(ctx, from, to)
	if err != nil {
		return nil, err
	}

	var weak []DayReport
	for _, d := range report.Days {
		if len(d.Gaps) > 0 {
			weak = append(weak, d)
		}
	}
	sort.SliceStable(weak, func(i, j int) bool {
		si, sj := weak[i].Severity(), weak[j].Severity()
		if si != sj {
			return si > sj
		}
		return weak[i].Date < weak[j].Date
	})

	out := &HealReport{From: from, To: to}
	for _, day := range weak {
		res := DateHeal{
			Date:        day.Date,
			Severity:    day.Severity(),
			GapsBefore:  len(day.Gaps),
			GapsAfter:   len(day.Gaps),
			ScoreBefore: day.Score,
			ScoreAfter:  day.Score,
		}

		for attempt := 1; attempt <= maxAttempts; attempt++ {
			res.Attempts = attempt
			if _, err := h.generator.Generate(ctx, day.Date, schedule.Options{ForceRefill: true}); err != nil {
				if errors.Is(err, domain.ErrPersistence) {
					return out, fmt.Errorf("regenerate %s: %w", day.Date, err)
				}
				res.Error = err.Error()
				break
			}

			after, err := h.analyzer.Analyze(ctx, day.Date, day.Date)
			if err != nil {
				return out, err
			}
			res.GapsAfter = len(after.Days[0].Gaps)
			res.ScoreAfter = after.Days[0].Score
			if res.GapsAfter == 0 {
				res.Healed = true
				break
			}
		}

		h.logger.Info("day healed",
			"date", res.Date,
			"gaps_before", res.GapsBefore,
			"gaps_after", res.GapsAfter,
			"attempts", res.Attempts,
			"healed", res.Healed,
		)
		out.Dates = append(out.Dates, res)
	}
	return out, nil
}

// HealWindow реализует schedule.WindowHealer.
func (h *Healer) HealWindow(ctx context.Context, from, to string, maxAttempts int) (schedule.HealSummary, error) {
	report, err := h.Heal(ctx, from, to, maxAttempts)
	if report == nil {
		return schedule.HealSummary{}, err
	}

	var s schedule.HealSummary
	s.DatesWithGaps = len(report.Dates)
	for _, d := range report.Dates {
		s.Attempts += d.Attempts
		s.RemainingGaps += d.GapsAfter
		if d.Healed {
			s.DatesHealed++
		}
	}
	return s, err
}
