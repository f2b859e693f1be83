package schedule

import (
	"context"
	"fmt"

	"github.com/shaiso/Herald/internal/slottime"
)

// HealSummary — итог исцеления окна дней.
type HealSummary struct {
	DatesWithGaps int `json:"dates_with_gaps"`
	DatesHealed   int `json:"dates_healed"`
	Attempts      int `json:"attempts"`
	RemainingGaps int `json:"remaining_gaps"`
}

// WindowHealer — исцеление диапазона дат (реализуется diversity.Healer).
type WindowHealer interface {
	HealWindow(ctx context.Context, from, to string, maxAttempts int) (HealSummary, error)
}

// PrecomputeOptions — параметры Precompute.
type PrecomputeOptions struct {
	// DaysAhead — сколько дней начиная с from (default: 1).
	DaysAhead int

	// Healer — если задан, после материализации окно проходит исцеление.
	Healer WindowHealer

	// MaxAttempts — попыток перегенерации на день (default у healer'а).
	MaxAttempts int
}

// PrecomputeResult — итог Precompute.
type PrecomputeResult struct {
	Days []Result     `json:"days"`
	Heal *HealSummary `json:"heal,omitempty"`
}

// Precompute материализует окно дней и при необходимости исцеляет его.
func (g *Generator) Precompute(ctx context.Context, from string, opts PrecomputeOptions) (*PrecomputeResult, error) {
	days := opts.DaysAhead
	if days <= 0 {
		days = 1
	}
	dates, err := slottime.DateRange(from, days)
	if err != nil {
		return nil, err
	}

	out := &PrecomputeResult{}
	for _, date := range dates {
		res, err := g.Materialize(ctx, date)
		if err != nil {
			return out, fmt.Errorf("materialize %s: %w", date, err)
		}
		out.Days = append(out.Days, *res)
	}

	if opts.Healer != nil {
		summary, err := opts.Healer.HealWindow(ctx, dates[0], dates[len(dates)-1], opts.MaxAttempts)
		if err != nil {
			return out, fmt.Errorf("heal %s..%s: %w", dates[0], dates[len(dates)-1], err)
		}
		out.Heal = &summary
	}

	g.logger.Info("precompute completed",
		"from", dates[0],
		"days", len(dates),
		"healed", out.Heal != nil,
	)
	return out, nil
}
