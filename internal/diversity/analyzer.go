// Package diversity находит пробелы разнообразия в расписании
// и перегенерирует слабые дни.
package diversity

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/shaiso/Herald/internal/domain"
	"github.com/shaiso/Herald/internal/slottime"
	"github.com/shaiso/Herald/internal/telemetry"
)

// Default configuration values.
const (
	DefaultDailyCap             = 2
	DefaultMinSpacing           = 2
	DefaultOversaturationFactor = 1.5
)

// GapType — класс пробела разнообразия.
type GapType string

const (
	// GapConsecutivePlatform — соседние заполненные слоты одной платформы
	// ближе MinSpacing слотов друг к другу.
	GapConsecutivePlatform GapType = "consecutive_platform"

	// GapPlatformOversaturation — платформа превысила дневной лимит
	// или 1.5× среднего числа постов на платформу за день.
	GapPlatformOversaturation GapType = "platform_oversaturation"
)

// Gap — один найденный пробел.
type Gap struct {
	Date        string  `json:"date"`
	Type        GapType `json:"type"`
	Platform    string  `json:"platform"`
	SlotIndexes []int   `json:"slot_indexes"`
	Severity    int     `json:"severity"`
	Detail      string  `json:"detail"`
}

// DayReport — анализ одного дня.
type DayReport struct {
	Date           string         `json:"date"`
	Filled         int            `json:"filled"`
	PlatformCounts map[string]int `json:"platform_counts"`
	Score          float64        `json:"score"`
	Gaps           []Gap          `json:"gaps"`
}

// Severity — суммарная тяжесть пробелов дня.
func (d DayReport) Severity() int {
	total := 0
	for _, g := range d.Gaps {
		total += g.Severity
	}
	return total
}

// Report — анализ диапазона дат.
type Report struct {
	From      string      `json:"from"`
	To        string      `json:"to"`
	Days      []DayReport `json:"days"`
	TotalGaps int         `json:"total_gaps"`
}

// SlotLister — чтение слотов по диапазону дат.
type SlotLister interface {
	ListSlotsInRange(ctx context.Context, from, to string) ([]domain.ScheduledSlot, error)
}

// Config — конфигурация Analyzer.
type Config struct {
	Store SlotLister

	DailyCap             int     // default: 2
	MinSpacing           int     // в слотах, default: 2
	OversaturationFactor float64 // default: 1.5

	Logger *slog.Logger
}

// Analyzer — детектор пробелов разнообразия.
type Analyzer struct {
	store      SlotLister
	dailyCap   int
	minSpacing int
	factor     float64
	logger     *slog.Logger
}

// NewAnalyzer создаёт новый Analyzer.
func NewAnalyzer(cfg Config) *Analyzer {
	if cfg.DailyCap <= 0 {
		cfg.DailyCap = DefaultDailyCap
	}
	if cfg.MinSpacing <= 0 {
		cfg.MinSpacing = DefaultMinSpacing
	}
	if cfg.OversaturationFactor <= 0 {
		cfg.OversaturationFactor = DefaultOversaturationFactor
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Analyzer{
		store:      cfg.Store,
		dailyCap:   cfg.DailyCap,
		minSpacing: cfg.MinSpacing,
		factor:     cfg.OversaturationFactor,
		logger:     cfg.Logger,
	}
}

// Analyze анализирует дни [from, to]. Дни без строк попадают в отчёт с нулевым счётом.
func (a *Analyzer) Analyze(ctx context.Context, from, to string) (*Report, error) {
	start, err := slottime.ParseDate(from)
	if err != nil {
		return nil, err
	}
	end, err := slottime.ParseDate(to)
	if err != nil {
		return nil, err
	}
	if end.Before(start) {
		return nil, &domain.ValidationError{Field: "range", Value: from + ".." + to, Msg: "end before start"}
	}

	slots, err := a.store.ListSlotsInRange(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	byDate := make(map[string][]domain.ScheduledSlot)
	for _, s := range slots {
		byDate[s.Date] = append(byDate[s.Date], s)
	}

	report := &Report{From: from, To: to}
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		date := slottime.FormatDate(d)
		day := a.AnalyzeDay(date, byDate[date])
		report.Days = append(report.Days, day)
		report.TotalGaps += len(day.Gaps)
		for _, g := range day.Gaps {
			telemetry.GapsDetected.WithLabelValues(string(g.Type)).Inc()
		}
	}

	a.logger.Debug("diversity analyzed", "from", from, "to", to, "gaps", report.TotalGaps)
	return report, nil
}

// AnalyzeDay анализирует слоты одного дня. Не обращается к хранилищу.
func (a *Analyzer) AnalyzeDay(date string, slots []domain.ScheduledSlot) DayReport {
	filled := filledInOrder(slots)
	counts := make(map[string]int)
	for _, s := range filled {
		counts[s.Platform]++
	}

	day := DayReport{
		Date:           date,
		Filled:         len(filled),
		PlatformCounts: counts,
	}

	consecutive := 0
	for i := 1; i < len(filled); i++ {
		prev, cur := filled[i-1], filled[i]
		if prev.Platform != cur.Platform || cur.SlotIndex-prev.SlotIndex >= a.minSpacing {
			continue
		}
		consecutive++
		day.Gaps = append(day.Gaps, Gap{
			Date:        date,
			Type:        GapConsecutivePlatform,
			Platform:    cur.Platform,
			SlotIndexes: []int{prev.SlotIndex, cur.SlotIndex},
			Severity:    2,
			Detail: fmt.Sprintf("%s in slots %d and %d (min spacing %d)",
				cur.Platform, prev.SlotIndex, cur.SlotIndex, a.minSpacing),
		})
	}

	if len(counts) > 0 {
		mean := float64(len(filled)) / float64(len(counts))
		relative := int(math.Ceil(a.factor * mean))
		for _, platform := range sortedKeys(counts) {
			n := counts[platform]
			if n <= a.dailyCap && n <= relative {
				continue
			}
			limit := a.dailyCap
			if relative < limit {
				limit = relative
			}
			day.Gaps = append(day.Gaps, Gap{
				Date:        date,
				Type:        GapPlatformOversaturation,
				Platform:    platform,
				SlotIndexes: slotIndexesOf(filled, platform),
				Severity:    n - limit,
				Detail: fmt.Sprintf("%s has %d posts (cap %d, %.1fx mean %.2f)",
					platform, n, a.dailyCap, a.factor, mean),
			})
		}
	}

	day.Score = score(counts, len(filled), consecutive)
	return day
}

// Score возвращает оценку разнообразия дня 0..100.
func (a *Analyzer) Score(slots []domain.ScheduledSlot) float64 {
	return a.AnalyzeDay("", slots).Score
}

// --- Helpers ---

// score = clamp(0, 100, balance + consecutive), каждая часть в [0, 50].
// balance = max(0, 50 − cv×100), consecutive = max(0, 50 − consec/total×100).
// День без постов — 0.
func score(counts map[string]int, total, consecutive int) float64 {
	if total == 0 || len(counts) == 0 {
		return 0
	}

	mean := float64(total) / float64(len(counts))
	var variance float64
	for _, n := range counts {
		d := float64(n) - mean
		variance += d * d
	}
	variance /= float64(len(counts))
	cv := math.Sqrt(variance) / mean

	balance := clamp(50-cv*100, 0, 50)
	spacing := clamp(50-float64(consecutive)/float64(total)*100, 0, 50)
	return clamp(balance+spacing, 0, 100)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func filledInOrder(slots []domain.ScheduledSlot) []domain.ScheduledSlot {
	out := make([]domain.ScheduledSlot, 0, len(slots))
	for _, s := range slots {
		if s.HasContent() {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SlotIndex < out[j].SlotIndex })
	return out
}

func slotIndexesOf(slots []domain.ScheduledSlot, platform string) []int {
	var out []int
	for _, s := range slots {
		if s.Platform == platform {
			out = append(out, s.SlotIndex)
		}
	}
	return out
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
