package scheduler

import (
	"context"
	"fmt"

	"github.com/shaiso/Herald/internal/app"
	"github.com/shaiso/Herald/internal/domain"
	"github.com/shaiso/Herald/internal/repo"
	"github.com/shaiso/Herald/internal/schedule"
	"github.com/shaiso/Herald/internal/slottime"
)

// Job names.
const (
	JobPostDue    = "post-due"
	JobSweep      = "sweep"
	JobPrecompute = "precompute"
	JobAssertSLA  = "assert-sla"
)

// Jobs собирает стандартные задачи поверх компонентов a.
func Jobs(a *app.App) []Job {
	sc := a.Config.Scheduler
	return []Job{
		{Name: JobPostDue, Spec: sc.PostDueCron, Run: postDue(a)},
		{Name: JobSweep, Spec: sc.SweepCron, Run: sweep(a)},
		{Name: JobPrecompute, Spec: sc.PrecomputeCron, Run: precompute(a)},
		{Name: JobAssertSLA, Spec: sc.SLACron, Run: assertSLA(a)},
	}
}

// LeaderFor выбирает стратегию лидерства по типу хранилища.
func LeaderFor(a *app.App) Leader {
	if pg, ok := a.Store.(*repo.PostgresStore); ok {
		return NewAdvisoryLeader(pg.Pool(), LockKey)
	}
	return Solo{}
}

// postDue публикует все накопившиеся слоты: после простоя их может быть несколько.
func postDue(a *app.App) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		for i := 0; i < domain.SlotsPerDay; i++ {
			out, err := a.Claimer.PostDue(ctx, a.Config.Posting.Grace)
			if err != nil {
				return err
			}
			switch out.Result {
			case domain.PostResultPosted, domain.PostResultError:
				// Слот перешёл в терминальный статус, можно брать следующий.
				continue
			case domain.PostResultEmptySlot:
				if out.Slot != nil && out.Slot.Status == domain.SlotStatusFailed {
					continue
				}
			}
			return nil
		}
		return nil
	}
}

func sweep(a *app.App) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		_, err := a.Claimer.SweepStuck(ctx, a.Config.Posting.StuckTimeout)
		return err
	}
}

func precompute(a *app.App) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		res, err := a.Generator.Precompute(ctx, slottime.TodayET(a.Now()), schedule.PrecomputeOptions{
			DaysAhead:   a.Config.Schedule.DaysAhead,
			Healer:      a.Healer,
			MaxAttempts: a.Config.Schedule.HealAttempts,
		})
		if err != nil {
			return err
		}
		for _, d := range res.Days {
			if d.Filled < domain.SlotsPerDay {
				a.Logger.Warn("day not fully filled after precompute", "date", d.Date, "filled", d.Filled)
			}
		}
		return nil
	}
}

// assertSLA не возвращает ошибку при нарушении: оповещение уже отправлено,
// повтор не изменит заполненность.
func assertSLA(a *app.App) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		report, err := a.Guard.AssertSLA(ctx, a.Now(), a.Config.SLA.TodayMin, a.Config.SLA.TomorrowMin)
		if err != nil {
			return fmt.Errorf("assert sla: %w", err)
		}
		if !report.Passed {
			a.Logger.Error("sla breached", "today", report.Today.Line(), "tomorrow", report.Tomorrow.Line(), "alert_sent", report.AlertSent)
		}
		return nil
	}
}
