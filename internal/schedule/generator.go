package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"github.com/google/uuid"
	"github.com/shaiso/Herald/internal/domain"
	"github.com/shaiso/Herald/internal/pool"
	"github.com/shaiso/Herald/internal/repo"
	"github.com/shaiso/Herald/internal/selector"
	"github.com/shaiso/Herald/internal/slottime"
	"github.com/shaiso/Herald/internal/telemetry"
)

const (
	defaultLookback        = 24 * time.Hour
	defaultBookingAttempts = 3
)

// Store — то, что генератору нужно от хранилища.
type Store interface {
	repo.SlotStore
	RecentPlatforms(ctx context.Context, since time.Time) ([]string, error)
	GetCandidate(ctx context.Context, id uuid.UUID) (*domain.ContentCandidate, error)
}

// Config — конфигурация Generator.
type Config struct {
	Store    Store
	Pool     pool.ContentPool
	Selector *selector.Selector

	// Lookback — окно «недавно публиковавшихся» платформ (default: 24h).
	Lookback time.Duration

	// Now — часы (default: time.Now).
	Now func() time.Time

	// BookingAttempts — сколько раз переснимать пул, если кандидата
	// успел забронировать другой вызов (default: 3).
	BookingAttempts int

	Logger *slog.Logger
}

// Generator — генератор и materializer дневных расписаний.
type Generator struct {
	store    Store
	pool     pool.ContentPool
	selector *selector.Selector
	lookback time.Duration
	now      func() time.Time
	booking  retrypolicy.RetryPolicy[*Result]
	logger   *slog.Logger
}

// New создаёт новый Generator.
func New(cfg Config) *Generator {
	if cfg.Selector == nil {
		cfg.Selector = selector.New(selector.Config{})
	}
	if cfg.Lookback <= 0 {
		cfg.Lookback = defaultLookback
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.BookingAttempts <= 0 {
		cfg.BookingAttempts = defaultBookingAttempts
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	logger := cfg.Logger
	booking := retrypolicy.NewBuilder[*Result]().
		HandleIf(func(_ *Result, err error) bool {
			return errors.Is(err, repo.ErrCandidateTaken)
		}).
		WithMaxAttempts(cfg.BookingAttempts).
		OnRetry(func(e failsafe.ExecutionEvent[*Result]) {
			logger.Warn("candidate taken concurrently, reselecting", "attempt", e.Attempts(), "error", e.LastError())
		}).
		Build()

	return &Generator{
		store:    cfg.Store,
		pool:     cfg.Pool,
		selector: cfg.Selector,
		lookback: cfg.Lookback,
		now:      cfg.Now,
		booking:  booking,
		logger:   cfg.Logger,
	}
}

// Options — параметры Generate.
type Options struct {
	// ForceRefill — переназначить контент pending-слотов существующего дня.
	ForceRefill bool
}

// Result — итог генерации одного дня.
type Result struct {
	Date string `json:"date"`

	// Skipped — день уже существовал, ничего не изменено.
	Skipped bool `json:"skipped"`

	// Created — сколько строк вставлено.
	Created int `json:"created"`

	// Assigned — сколько слотов получили контент в этом вызове.
	Assigned int `json:"assigned"`

	// Released — сколько кандидатов возвращено в пул.
	Released int `json:"released"`

	// Filled — слотов с контентом после вызова.
	Filled int `json:"filled"`

	// Exhausted — пул закончился раньше, чем заполнились все слоты.
	Exhausted bool `json:"exhausted"`

	Slots []domain.ScheduledSlot `json:"slots"`
}

// Generate создаёт расписание дня.
//
// Если строки уже есть и ForceRefill не задан — no-op.
// С ForceRefill переназначаются только pending-слоты; posted/posting/failed
// сохраняют контент и учитываются в дневном лимите.
func (g *Generator) Generate(ctx context.Context, date string, opts Options) (*Result, error) {
	if err := slottime.ValidateDate(date); err != nil {
		return nil, err
	}

	return g.withBooking(ctx, func() (*Result, error) {
		existing, err := g.store.ListSlotsByDate(ctx, date)
		if err != nil {
			return nil, err
		}

		if len(existing) == 0 {
			return g.createDay(ctx, date)
		}
		if !opts.ForceRefill {
			return skipped(date, existing), nil
		}
		return g.refill(ctx, date, existing, false)
	})
}

// Materialize гарантирует шесть строк дня и дозаполняет пустые pending-слоты
// на месте (id и created_at сохраняются).
func (g *Generator) Materialize(ctx context.Context, date string) (*Result, error) {
	if err := slottime.ValidateDate(date); err != nil {
		return nil, err
	}
	return g.withBooking(ctx, func() (*Result, error) {
		return g.materialize(ctx, date)
	})
}

// --- Helpers ---

// withBooking повторяет шаг со свежим снимком пула, пока бронь кандидатов
// отклоняется из-за параллельного вызова. Каждый шаг читает день заново.
func (g *Generator) withBooking(ctx context.Context, step func() (*Result, error)) (*Result, error) {
	res, err := failsafe.With(g.booking).WithContext(ctx).Get(func() (*Result, error) {
		res, err := step()
		if errors.Is(err, repo.ErrCandidateTaken) {
			pool.Invalidate(g.pool)
		}
		return res, err
	})
	if err != nil {
		return nil, err
	}
	if !res.Skipped {
		pool.Invalidate(g.pool)
	}
	return res, nil
}

func (g *Generator) materialize(ctx context.Context, date string) (*Result, error) {
	existing, err := g.store.ListSlotsByDate(ctx, date)
	if err != nil {
		return nil, err
	}
	if len(existing) == 0 {
		return g.createDay(ctx, date)
	}

	created := 0
	if len(existing) < domain.SlotsPerDay {
		missing, err := g.missingSlots(date, existing)
		if err != nil {
			return nil, err
		}
		if err := g.store.CreateSlots(ctx, missing, repo.Booking{}); err != nil && !errors.Is(err, repo.ErrAlreadyExists) {
			return nil, err
		}
		if existing, err = g.store.ListSlotsByDate(ctx, date); err != nil {
			return nil, err
		}
		created = len(missing)
		telemetry.SlotsGenerated.Add(float64(created))
	}

	res, err := g.refill(ctx, date, existing, true)
	if err != nil {
		return nil, err
	}
	res.Created = created
	return res, nil
}

// createDay выбирает контент на один снимок пула и пишет шесть строк
// вместе с бронью кандидатов одной транзакцией.
func (g *Generator) createDay(ctx context.Context, date string) (*Result, error) {
	logger := telemetry.WithDate(g.logger, date)

	times, err := slottime.DaySlotTimes(date)
	if err != nil {
		return nil, err
	}

	sel, err := g.selectFor(ctx, selector.Input{Limit: domain.SlotsPerDay}, nil)
	if err != nil {
		return nil, err
	}

	now := g.now().UTC()
	var booking repo.Booking
	slots := make([]domain.ScheduledSlot, domain.SlotsPerDay)
	for i := range slots {
		slots[i] = domain.ScheduledSlot{
			ID:                uuid.New(),
			Date:              date,
			SlotIndex:         i,
			ScheduledPostTime: times[i],
			Status:            domain.SlotStatusPending,
			Reasoning:         domain.ReasonAwaitingRefill,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		if i < len(sel.Picks) {
			pick := sel.Picks[i]
			slots[i].Assign(&pick.Candidate, pick.Reasoning)
			slots[i].UpdatedAt = now
			booking.Claim = append(booking.Claim, pick.Candidate.ID)
		}
	}

	if err := g.store.CreateSlots(ctx, slots, booking); err != nil {
		if errors.Is(err, repo.ErrAlreadyExists) {
			// Параллельный вызов успел создать день.
			existing, lerr := g.store.ListSlotsByDate(ctx, date)
			if lerr != nil {
				return nil, lerr
			}
			return skipped(date, existing), nil
		}
		return nil, fmt.Errorf("create day %s: %w", date, err)
	}

	telemetry.SlotsGenerated.Add(float64(len(slots)))
	telemetry.SlotsFilled.Add(float64(len(sel.Picks)))

	res := &Result{
		Date:      date,
		Created:   len(slots),
		Assigned:  len(sel.Picks),
		Filled:    len(sel.Picks),
		Exhausted: sel.Exhausted,
		Slots:     slots,
	}
	if len(sel.Picks) < domain.SlotsPerDay {
		logger.Warn("schedule created with empty slots",
			"filled", len(sel.Picks),
			"empty", domain.SlotsPerDay-len(sel.Picks),
		)
	} else {
		logger.Info("schedule created", "filled", len(sel.Picks))
	}
	return res, nil
}

// refill переназначает контент слотов существующего дня.
//
// onlyEmpty=false (ForceRefill): цели — все pending-слоты, их текущий контент
// возвращается в выборку; onlyEmpty=true (Materialize): цели — pending без контента.
// Новый контент и снятая бронь пишутся одной транзакцией со слотами.
func (g *Generator) refill(ctx context.Context, date string, existing []domain.ScheduledSlot, onlyEmpty bool) (*Result, error) {
	logger := telemetry.WithDate(g.logger, date)

	var targets []domain.ScheduledSlot
	usage := map[string]int{}
	previous := map[uuid.UUID]bool{}

	for _, s := range existing {
		isTarget := s.IsRefillable() && (!onlyEmpty || !s.HasContent())
		if !isTarget {
			if s.HasContent() {
				usage[s.Platform]++
			}
			continue
		}
		targets = append(targets, s)
		if s.HasContent() {
			previous[*s.ContentID] = true
		}
	}

	if len(targets) == 0 {
		return skipped(date, existing), nil
	}

	reclaimed, err := g.reclaim(ctx, targets)
	if err != nil {
		return nil, err
	}

	in := selector.Input{Limit: len(targets), InitialUsage: usage}
	if prev := precedingFilled(existing, targets[0].SlotIndex); prev != nil {
		in.PreviousPlatform = prev.Platform
		in.PreviousContentType = prev.ContentType
	}

	sel, err := g.selectFor(ctx, in, reclaimed)
	if err != nil {
		return nil, err
	}

	now := g.now().UTC()
	var updates []domain.ScheduledSlot
	var booking repo.Booking
	picked := map[uuid.UUID]bool{}
	for i, s := range targets {
		if i < len(sel.Picks) {
			pick := sel.Picks[i]
			s.Assign(&pick.Candidate, pick.Reasoning)
			picked[pick.Candidate.ID] = true
			if !previous[pick.Candidate.ID] {
				booking.Claim = append(booking.Claim, pick.Candidate.ID)
			}
		} else if onlyEmpty {
			continue
		} else {
			s.Clear()
		}
		s.UpdatedAt = now
		updates = append(updates, s)
	}

	for id := range previous {
		if !picked[id] {
			booking.Release = append(booking.Release, id)
		}
	}
	released := len(booking.Release)

	if len(updates) > 0 {
		if err := g.store.UpdateSlotsContent(ctx, updates, onlyEmpty, booking); err != nil {
			return nil, fmt.Errorf("refill %s: %w", date, err)
		}
	}

	telemetry.SlotsFilled.Add(float64(len(sel.Picks)))

	final, err := g.store.ListSlotsByDate(ctx, date)
	if err != nil {
		return nil, err
	}
	res := &Result{
		Date:      date,
		Assigned:  len(sel.Picks),
		Released:  released,
		Filled:    countFilled(final),
		Exhausted: sel.Exhausted,
		Slots:     final,
	}
	logger.Info("schedule refilled",
		"targets", len(targets),
		"assigned", res.Assigned,
		"released", released,
		"filled", res.Filled,
		"only_empty", onlyEmpty,
	)
	return res, nil
}

// reclaim загружает текущий контент целевых слотов, чтобы он ранжировался
// наравне с пулом. Пропавший кандидат восстанавливается из полей слота.
func (g *Generator) reclaim(ctx context.Context, targets []domain.ScheduledSlot) ([]domain.ContentCandidate, error) {
	var out []domain.ContentCandidate
	for _, s := range targets {
		if !s.HasContent() {
			continue
		}
		c, err := g.store.GetCandidate(ctx, *s.ContentID)
		switch {
		case err == nil:
			// Бронь принадлежит этому же слоту и пересматривается вместе с ним.
			c.Scheduled = false
			out = append(out, *c)
		case errors.Is(err, repo.ErrNotFound):
			out = append(out, domain.ContentCandidate{
				ID:          *s.ContentID,
				Platform:    s.Platform,
				ContentType: s.ContentType,
				Approved:    true,
			})
		default:
			return nil, fmt.Errorf("load candidate %s: %w", *s.ContentID, err)
		}
	}
	return out, nil
}

// selectFor делает один снимок пула и один вызов селектора.
func (g *Generator) selectFor(ctx context.Context, in selector.Input, extra []domain.ContentCandidate) (selector.Result, error) {
	candidates, err := g.pool.ListApprovedUnposted(ctx, pool.Filter{})
	if err != nil {
		return selector.Result{}, fmt.Errorf("list candidates: %w", err)
	}
	candidates = append(candidates, extra...)

	recent, err := g.store.RecentPlatforms(ctx, g.now().Add(-g.lookback))
	if err != nil {
		return selector.Result{}, err
	}
	in.RecentPlatforms = make(map[string]bool, len(recent))
	for _, p := range recent {
		in.RecentPlatforms[p] = true
	}
	in.Queues = selector.GroupByPlatform(candidates)

	return g.selector.Select(in), nil
}

func (g *Generator) missingSlots(date string, existing []domain.ScheduledSlot) ([]domain.ScheduledSlot, error) {
	have := make(map[int]bool, len(existing))
	for _, s := range existing {
		have[s.SlotIndex] = true
	}

	now := g.now().UTC()
	var missing []domain.ScheduledSlot
	for i := 0; i < domain.SlotsPerDay; i++ {
		if have[i] {
			continue
		}
		at, err := slottime.SlotTimeUTC(date, i)
		if err != nil {
			return nil, err
		}
		missing = append(missing, domain.ScheduledSlot{
			ID:                uuid.New(),
			Date:              date,
			SlotIndex:         i,
			ScheduledPostTime: at,
			Status:            domain.SlotStatusPending,
			Reasoning:         domain.ReasonAwaitingRefill,
			CreatedAt:         now,
			UpdatedAt:         now,
		})
	}
	return missing, nil
}

func skipped(date string, existing []domain.ScheduledSlot) *Result {
	return &Result{
		Date:    date,
		Skipped: true,
		Filled:  countFilled(existing),
		Slots:   existing,
	}
}

func countFilled(slots []domain.ScheduledSlot) int {
	n := 0
	for i := range slots {
		if slots[i].HasContent() {
			n++
		}
	}
	return n
}

// precedingFilled возвращает ближайший заполненный слот перед index.
func precedingFilled(slots []domain.ScheduledSlot, index int) *domain.ScheduledSlot {
	var prev *domain.ScheduledSlot
	for i := range slots {
		if slots[i].SlotIndex >= index {
			break
		}
		if slots[i].HasContent() {
			prev = &slots[i]
		}
	}
	return prev
}
