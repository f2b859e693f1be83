// Package posting захватывает наступившие слоты и публикует их контент.
//
// Жизненный цикл слота:
//
//	pending → posting → posted
//	                  ↘ failed
//
// Захват — один условный UPDATE (status = 'pending' и прочитанный content_id),
// поэтому из N параллельных вызовов PostDue публикует ровно один, и публикуется
// тот контент, который записан в слоте на момент захвата.
package posting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Herald/internal/domain"
	"github.com/shaiso/Herald/internal/pool"
	"github.com/shaiso/Herald/internal/repo"
	"github.com/shaiso/Herald/internal/slottime"
	"github.com/shaiso/Herald/internal/telemetry"
)

// Default configuration values.
const (
	DefaultPublishTimeout = 60 * time.Second
	DefaultStuckTimeout   = 15 * time.Minute
	DefaultGrace          = 5 * time.Minute

	// claimAttempts — сколько раз перечитать слот, если его контент
	// переназначили между чтением и захватом.
	claimAttempts = 3
)

// EventSink — получатель событий жизненного цикла слотов (mq.Publisher).
type EventSink interface {
	PublishSlotEvent(ctx context.Context, ev domain.SlotEvent) error
}

// CandidateGetter — чтение кандидата по ID.
type CandidateGetter interface {
	GetCandidate(ctx context.Context, id uuid.UUID) (*domain.ContentCandidate, error)
}

// Config — конфигурация Claimer.
type Config struct {
	Store      repo.SlotStore
	Candidates CandidateGetter
	Pool       pool.ContentPool
	Poster     Poster

	// Events — опционально; nil отключает публикацию событий.
	Events EventSink

	// PublishTimeout — таймаут вызова Poster (default: 60s).
	PublishTimeout time.Duration

	// Now — часы (default: time.Now).
	Now func() time.Time

	Logger *slog.Logger
}

// Claimer — машина состояний публикации слотов.
type Claimer struct {
	store          repo.SlotStore
	candidates     CandidateGetter
	pool           pool.ContentPool
	poster         Poster
	events         EventSink
	publishTimeout time.Duration
	now            func() time.Time
	logger         *slog.Logger
}

// New создаёт новый Claimer.
func New(cfg Config) *Claimer {
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = DefaultPublishTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Claimer{
		store:          cfg.Store,
		candidates:     cfg.Candidates,
		pool:           cfg.Pool,
		poster:         cfg.Poster,
		events:         cfg.Events,
		publishTimeout: cfg.PublishTimeout,
		now:            cfg.Now,
		logger:         cfg.Logger,
	}
}

// Outcome — итог одного вызова PostDue.
type Outcome struct {
	Result         domain.PostResult     `json:"result"`
	Slot           *domain.ScheduledSlot `json:"slot,omitempty"`
	ExternalPostID string                `json:"external_post_id,omitempty"`
	Error          string                `json:"error,omitempty"`

	// Err — ошибка публикации (оборачивает domain.ErrExternalPost).
	Err error `json:"-"`
}

// PostDue захватывает самый ранний наступивший слот и публикует его.
//
// Ожидаемые ситуации (нет слотов, пустой слот, проигранный захват,
// ошибка Poster) возвращаются как Outcome. Ошибка возвращается только
// при сбое хранилища.
func (c *Claimer) PostDue(ctx context.Context, grace time.Duration) (*Outcome, error) {
	if grace < 0 {
		return nil, &domain.ValidationError{Field: "grace", Value: grace.String(), Msg: "must be >= 0"}
	}
	now := c.now().UTC()

	slot, out, err := c.claimDue(ctx, now, grace)
	if err != nil || out != nil {
		return out, err
	}
	logger := telemetry.WithSlot(c.logger, slot.ID, slot.Date, slot.SlotIndex)

	candidate, err := c.loadCandidate(ctx, slot)
	if err != nil {
		return c.fail(ctx, slot, logger, err)
	}

	pubCtx, cancel := context.WithTimeout(ctx, c.publishTimeout)
	res, err := c.poster.Publish(pubCtx, *candidate)
	cancel()
	if err != nil {
		return c.fail(ctx, slot, logger, err)
	}

	// Публикация уже случилась: запись результата не должна зависеть от отмены вызова.
	writeCtx := context.WithoutCancel(ctx)
	postedAt := c.now().UTC()
	rec := &domain.PostedRecord{
		ID:                 uuid.New(),
		ContentCandidateID: candidate.ID,
		Platform:           candidate.Platform,
		ExternalPostID:     res.ExternalPostID,
		PostedAt:           postedAt,
	}
	if err := c.store.CompletePost(writeCtx, slot.ID, rec); err != nil {
		logger.Error("published but failed to record", "error", err, "external_post_id", res.ExternalPostID)
		return nil, fmt.Errorf("complete post: %w", err)
	}
	slot.Status = domain.SlotStatusPosted

	if err := c.pool.MarkPosted(writeCtx, candidate.ID); err != nil {
		logger.Warn("failed to mark candidate posted", "error", err)
	}

	logger.Info("slot posted", "platform", slot.Platform, "external_post_id", res.ExternalPostID)

	ev := domain.NewSlotEvent(slot, domain.SlotStatusPosted, domain.PostResultPosted, postedAt)
	ev.ExternalPostID = res.ExternalPostID
	c.emit(writeCtx, ev)

	return c.done(&Outcome{
		Result:         domain.PostResultPosted,
		Slot:           slot,
		ExternalPostID: res.ExternalPostID,
	}), nil
}

// SweepStuck переводит в failed слоты, висящие в posting дольше timeout.
func (c *Claimer) SweepStuck(ctx context.Context, timeout time.Duration) ([]uuid.UUID, error) {
	if timeout <= 0 {
		timeout = DefaultStuckTimeout
	}
	now := c.now().UTC()

	ids, err := c.store.FailStuckSlots(ctx, now.Add(-timeout), now, domain.ReasonStuckInPosting)
	if err != nil {
		return nil, fmt.Errorf("sweep stuck slots: %w", err)
	}

	for _, id := range ids {
		c.logger.Warn("stuck slot failed", "slot_id", id.String(), "timeout", timeout.String())
		c.emit(ctx, domain.SlotEvent{
			SlotID:    id,
			Status:    domain.SlotStatusFailed,
			Reasoning: domain.ReasonStuckInPosting,
			At:        now,
		})
	}
	telemetry.StuckSlotsSwept.Add(float64(len(ids)))
	return ids, nil
}

// --- Helpers ---

// claimDue находит самый ранний наступивший слот и захватывает его вместе
// с прочитанным контентом. Если контент переназначили до захвата, слот
// читается заново. Незахваченный слот возвращается как Outcome.
func (c *Claimer) claimDue(ctx context.Context, now time.Time, grace time.Duration) (*domain.ScheduledSlot, *Outcome, error) {
	for attempt := 1; ; attempt++ {
		slot, err := c.store.NextDueSlot(ctx, now.Add(grace))
		if errors.Is(err, repo.ErrNotFound) {
			return nil, c.done(&Outcome{Result: domain.PostResultNoScheduledContent}), nil
		}
		if err != nil {
			return nil, nil, fmt.Errorf("find due slot: %w", err)
		}
		logger := telemetry.WithSlot(c.logger, slot.ID, slot.Date, slot.SlotIndex)

		if !slot.HasContent() {
			out, err := c.closeEmpty(ctx, slot, now, logger)
			return nil, out, err
		}

		err = c.store.TransitionSlot(ctx, domain.SlotTransition{
			SlotID:  slot.ID,
			From:    domain.SlotStatusPending,
			To:      domain.SlotStatusPosting,
			Content: domain.ExpectContent(slot.ContentID),
			At:      now,
		})
		if err == nil {
			slot.Status = domain.SlotStatusPosting
			logger.Info("slot claimed", "platform", slot.Platform, "content_id", slot.ContentID.String())
			return slot, nil, nil
		}
		if !errors.Is(err, repo.ErrInvalidState) {
			return nil, nil, fmt.Errorf("claim slot: %w", err)
		}

		refilled, err := c.stillPending(ctx, slot.ID)
		if err != nil {
			return nil, nil, err
		}
		if refilled && attempt < claimAttempts {
			logger.Info("slot content reassigned before claim, rereading")
			continue
		}
		telemetry.ClaimsLost.Inc()
		logger.Info("slot already claimed")
		return nil, c.done(&Outcome{Result: domain.PostResultAlreadyClaimed, Slot: slot}), nil
	}
}

// stillPending — после проигранного захвата: слот остался pending,
// значит изменился его контент, а не статус.
func (c *Claimer) stillPending(ctx context.Context, id uuid.UUID) (bool, error) {
	cur, err := c.store.GetSlot(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reread slot: %w", err)
	}
	return cur.Status == domain.SlotStatusPending, nil
}

// closeEmpty обрабатывает слот без контента. Пока окно слота не закончилось,
// слот остаётся pending (его ещё можно дозаполнить); после окна — закрывается
// в failed, чтобы не загораживать следующие слоты.
func (c *Claimer) closeEmpty(ctx context.Context, slot *domain.ScheduledSlot, now time.Time, logger *slog.Logger) (*Outcome, error) {
	out := &Outcome{Result: domain.PostResultEmptySlot, Slot: slot}

	if !now.After(slot.ScheduledPostTime.Add(slottime.WindowHalfWidth)) {
		logger.Warn("due slot has no content, refill needed")
		return c.done(out), nil
	}

	err := c.store.TransitionSlot(ctx, domain.SlotTransition{
		SlotID:    slot.ID,
		From:      domain.SlotStatusPending,
		To:        domain.SlotStatusFailed,
		Reasoning: domain.ReasonEmptySlot,
		Content:   domain.ExpectContent(nil),
		At:        now,
	})
	switch {
	case errors.Is(err, repo.ErrInvalidState):
		// Другой воркер уже закрыл или дозаполнил слот.
	case err != nil:
		return nil, fmt.Errorf("close empty slot: %w", err)
	default:
		slot.Status = domain.SlotStatusFailed
		slot.Reasoning = domain.ReasonEmptySlot
		logger.Warn("empty slot closed after its window")
		c.emit(ctx, domain.NewSlotEvent(slot, domain.SlotStatusFailed, domain.PostResultEmptySlot, now))
	}
	return c.done(out), nil
}

// fail переводит захваченный слот в failed. Результат — ERROR, не ошибка вызова.
func (c *Claimer) fail(ctx context.Context, slot *domain.ScheduledSlot, logger *slog.Logger, cause error) (*Outcome, error) {
	writeCtx := context.WithoutCancel(ctx)
	now := c.now().UTC()
	reasoning := "publish_failed: " + cause.Error()

	err := c.store.TransitionSlot(writeCtx, domain.SlotTransition{
		SlotID:    slot.ID,
		From:      domain.SlotStatusPosting,
		To:        domain.SlotStatusFailed,
		Reasoning: reasoning,
		At:        now,
	})
	if err != nil {
		logger.Error("failed to mark slot failed", "error", err)
		return nil, fmt.Errorf("mark slot failed: %w", err)
	}
	slot.Status = domain.SlotStatusFailed
	slot.Reasoning = reasoning

	postErr := fmt.Errorf("%w: %w", domain.ErrExternalPost, cause)
	logger.Error("publish failed", "platform", slot.Platform, "error", cause)
	c.emit(writeCtx, domain.NewSlotEvent(slot, domain.SlotStatusFailed, domain.PostResultError, now))

	return c.done(&Outcome{
		Result: domain.PostResultError,
		Slot:   slot,
		Error:  postErr.Error(),
		Err:    postErr,
	}), nil
}

func (c *Claimer) loadCandidate(ctx context.Context, slot *domain.ScheduledSlot) (*domain.ContentCandidate, error) {
	if c.candidates != nil {
		cand, err := c.candidates.GetCandidate(ctx, *slot.ContentID)
		if err == nil {
			return cand, nil
		}
		if !errors.Is(err, repo.ErrNotFound) {
			return nil, fmt.Errorf("load candidate: %w", err)
		}
	}
	return &domain.ContentCandidate{
		ID:          *slot.ContentID,
		Platform:    slot.Platform,
		ContentType: slot.ContentType,
		Approved:    true,
		Scheduled:   true,
	}, nil
}

func (c *Claimer) emit(ctx context.Context, ev domain.SlotEvent) {
	if c.events == nil {
		return
	}
	if err := c.events.PublishSlotEvent(ctx, ev); err != nil {
		c.logger.Warn("failed to publish slot event", "slot_id", ev.SlotID.String(), "error", err)
	}
}

func (c *Claimer) done(out *Outcome) *Outcome {
	telemetry.PostsTotal.WithLabelValues(string(out.Result)).Inc()
	return out
}
