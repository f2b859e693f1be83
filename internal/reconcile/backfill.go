// Package reconcile привязывает записи о публикациях к слотам расписания.
//
// Записи без scheduled_slot_id появляются, когда публикация прошла мимо
// Claimer'а (ручной пост, сбой после публикации). Backfill сопоставляет их
// со слотами дня: сначала точное совпадение по контенту, затем ближайший
// слот той же платформы.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Herald/internal/domain"
	"github.com/shaiso/Herald/internal/repo"
	"github.com/shaiso/Herald/internal/slottime"
	"github.com/shaiso/Herald/internal/telemetry"
)

// Default matching tolerances.
const (
	DefaultExactTolerance    = 30 * time.Minute
	DefaultFallbackTolerance = 90 * time.Minute
)

// MatchKind — способ сопоставления.
type MatchKind string

const (
	MatchExact    MatchKind = "exact"
	MatchFallback MatchKind = "fallback"
)

// Store — то, что нужно Backfill от хранилища.
type Store interface {
	ListSlotsByDate(ctx context.Context, date string) ([]domain.ScheduledSlot, error)
	ListPostedBetween(ctx context.Context, from, to time.Time) ([]domain.PostedRecord, error)
	ListUnlinkedPosted(ctx context.Context, from, to time.Time) ([]domain.PostedRecord, error)
	LinkPostedRecord(ctx context.Context, recordID, slotID uuid.UUID) error
}

// Config — конфигурация Backfiller.
type Config struct {
	Store Store

	// ExactTolerance — окно точного совпадения (default: 30m).
	ExactTolerance time.Duration

	// FallbackTolerance — окно совпадения по платформе (default: 90m).
	FallbackTolerance time.Duration

	Logger *slog.Logger
}

// Backfiller выполняет reconciliation за день.
type Backfiller struct {
	store    Store
	exact    time.Duration
	fallback time.Duration
	logger   *slog.Logger
}

// New создаёт новый Backfiller.
func New(cfg Config) *Backfiller {
	if cfg.ExactTolerance <= 0 {
		cfg.ExactTolerance = DefaultExactTolerance
	}
	if cfg.FallbackTolerance <= 0 {
		cfg.FallbackTolerance = DefaultFallbackTolerance
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Backfiller{
		store:    cfg.Store,
		exact:    cfg.ExactTolerance,
		fallback: cfg.FallbackTolerance,
		logger:   cfg.Logger,
	}
}

// Match — предложенная (или записанная) привязка.
type Match struct {
	RecordID  uuid.UUID     `json:"record_id"`
	SlotID    uuid.UUID     `json:"slot_id"`
	SlotIndex int           `json:"slot_index"`
	Platform  string        `json:"platform"`
	Kind      MatchKind     `json:"kind"`
	Delta     time.Duration `json:"delta"`
	Linked    bool          `json:"linked"`
}

// Report — итог Backfill.
type Report struct {
	Date      string      `json:"date"`
	Write     bool        `json:"write"`
	Examined  int         `json:"examined"`
	Matches   []Match     `json:"matches"`
	Unmatched []uuid.UUID `json:"unmatched"`
	Linked    int         `json:"linked"`
	Conflicts int         `json:"conflicts"`
}

// Backfill сопоставляет непривязанные записи со слотами date.
// При write=false ничего не пишет (dry-run).
func (b *Backfiller) Backfill(ctx context.Context, date string, write bool) (*Report, error) {
	start, end, err := slottime.DayBoundsUTC(date)
	if err != nil {
		return nil, err
	}
	logger := telemetry.WithDate(b.logger, date)

	slots, err := b.store.ListSlotsByDate(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}

	records, err := b.store.ListUnlinkedPosted(ctx, start.Add(-b.fallback), end.Add(b.fallback))
	if err != nil {
		return nil, fmt.Errorf("list unlinked records: %w", err)
	}

	used, err := b.linkedSlots(ctx, start, end)
	if err != nil {
		return nil, err
	}

	report := &Report{Date: date, Write: write, Examined: len(records)}

	for _, rec := range records {
		m, ok := b.match(rec, slots, used)
		if !ok {
			report.Unmatched = append(report.Unmatched, rec.ID)
			continue
		}
		used[m.SlotID] = true

		if write {
			err := b.store.LinkPostedRecord(ctx, rec.ID, m.SlotID)
			switch {
			case errors.Is(err, repo.ErrInvalidState), errors.Is(err, repo.ErrAlreadyExists):
				// Запись или слот привязали параллельно.
				report.Conflicts++
				logger.Warn("backfill link skipped", "record_id", rec.ID.String(), "slot_id", m.SlotID.String(), "error", err)
				continue
			case err != nil:
				return report, fmt.Errorf("link record %s: %w", rec.ID, err)
			}
			m.Linked = true
			report.Linked++
			telemetry.BackfillLinks.Inc()
		}
		report.Matches = append(report.Matches, m)
	}

	logger.Info("backfill finished",
		"write", write,
		"examined", report.Examined,
		"matched", len(report.Matches),
		"linked", report.Linked,
		"unmatched", len(report.Unmatched),
	)
	return report, nil
}

// --- Helpers ---

// linkedSlots — слоты, к которым уже привязана какая-либо запись.
func (b *Backfiller) linkedSlots(ctx context.Context, start, end time.Time) (map[uuid.UUID]bool, error) {
	// Claimer может записать публикацию с опозданием, поэтому окно шире дня.
	posted, err := b.store.ListPostedBetween(ctx, start.Add(-24*time.Hour), end.Add(24*time.Hour))
	if err != nil {
		return nil, fmt.Errorf("list posted records: %w", err)
	}
	used := make(map[uuid.UUID]bool, len(posted))
	for _, p := range posted {
		if p.IsLinked() {
			used[*p.ScheduledSlotID] = true
		}
	}
	return used, nil
}

type candidate struct {
	slot  *domain.ScheduledSlot
	delta time.Duration
}

func (b *Backfiller) match(rec domain.PostedRecord, slots []domain.ScheduledSlot, used map[uuid.UUID]bool) (Match, bool) {
	var exact, fallback []candidate
	for i := range slots {
		s := &slots[i]
		if used[s.ID] {
			continue
		}
		delta := absDuration(rec.PostedAt.Sub(s.ScheduledPostTime))
		if s.HasContent() && *s.ContentID == rec.ContentCandidateID && delta <= b.exact {
			exact = append(exact, candidate{slot: s, delta: delta})
		}
		if s.Platform == rec.Platform && delta <= b.fallback {
			fallback = append(fallback, candidate{slot: s, delta: delta})
		}
	}

	kind := MatchExact
	pool := exact
	if len(pool) == 0 {
		kind = MatchFallback
		pool = fallback
	}
	if len(pool) == 0 {
		return Match{}, false
	}

	sort.SliceStable(pool, func(i, j int) bool {
		if pool[i].delta != pool[j].delta {
			return pool[i].delta < pool[j].delta
		}
		return pool[i].slot.SlotIndex < pool[j].slot.SlotIndex
	})
	best := pool[0]
	return Match{
		RecordID:  rec.ID,
		SlotID:    best.slot.ID,
		SlotIndex: best.slot.SlotIndex,
		Platform:  rec.Platform,
		Kind:      kind,
		Delta:     best.delta,
	}, true
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
