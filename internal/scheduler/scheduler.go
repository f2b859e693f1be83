package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"github.com/robfig/cron/v3"

	"github.com/shaiso/Herald/internal/slottime"
	"github.com/shaiso/Herald/internal/telemetry"
)

// Job — периодическая задача.
type Job struct {
	Name string
	Spec string
	Run  func(ctx context.Context) error
}

// Config — конфигурация Runner.
type Config struct {
	Jobs []Job

	// Leader — default: Solo.
	Leader Leader

	// Retries — повторов упавшей задачи (default: 2; отрицательное значение отключает повторы).
	Retries int

	// RetryDelay — начальная задержка повтора (default: 5s).
	RetryDelay time.Duration

	Logger *slog.Logger
}

// Runner запускает задачи по cron в ET; выполняет их только лидер.
type Runner struct {
	jobs   map[string]Job
	order  []string
	leader Leader
	policy retrypolicy.RetryPolicy[any]
	logger *slog.Logger
	cron   *cron.Cron
}

// New создаёт Runner. Некорректное cron-выражение — ошибка.
func New(cfg Config) (*Runner, error) {
	if cfg.Leader == nil {
		cfg.Leader = Solo{}
	}
	switch {
	case cfg.Retries == 0:
		cfg.Retries = 2
	case cfg.Retries < 0:
		cfg.Retries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 5 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	r := &Runner{
		jobs:   make(map[string]Job, len(cfg.Jobs)),
		leader: cfg.Leader,
		logger: cfg.Logger,
		policy: retrypolicy.NewBuilder[any]().
			HandleIf(func(_ any, err error) bool {
				return err != nil && !errors.Is(err, context.Canceled)
			}).
			WithBackoff(cfg.RetryDelay, 10*cfg.RetryDelay).
			WithMaxRetries(cfg.Retries).
			Build(),
	}

	r.cron = cron.New(
		cron.WithLocation(slottime.Location()),
		cron.WithParser(cronParser),
		cron.WithLogger(cronLogger{logger: cfg.Logger}),
		cron.WithChain(cron.SkipIfStillRunning(cronLogger{logger: cfg.Logger})),
	)

	for _, job := range cfg.Jobs {
		if _, dup := r.jobs[job.Name]; dup {
			return nil, fmt.Errorf("duplicate job %q", job.Name)
		}
		if err := ValidateCronExpr(job.Spec); err != nil {
			return nil, fmt.Errorf("job %s: %w", job.Name, err)
		}
		r.jobs[job.Name] = job
		r.order = append(r.order, job.Name)
	}
	return r, nil
}

// Start регистрирует задачи и запускает cron. Останавливается при отмене ctx.
func (r *Runner) Start(ctx context.Context) error {
	for _, name := range r.order {
		job := r.jobs[name]
		if _, err := r.cron.AddFunc(job.Spec, func() { _ = r.RunJob(ctx, job.Name) }); err != nil {
			return fmt.Errorf("schedule job %s: %w", job.Name, err)
		}
		r.logger.Info("job scheduled", "job", job.Name, "spec", job.Spec)
	}
	r.cron.Start()

	go func() {
		<-ctx.Done()
		stopped := r.cron.Stop()
		<-stopped.Done()
		r.leader.Release(context.Background())
		r.logger.Info("scheduler stopped")
	}()
	return nil
}

// RunJob выполняет задачу по имени, если процесс — лидер.
func (r *Runner) RunJob(ctx context.Context, name string) error {
	job, ok := r.jobs[name]
	if !ok {
		return fmt.Errorf("unknown job %q", name)
	}
	logger := r.logger.With("job", name)

	leader, err := r.leader.IsLeader(ctx)
	if err != nil {
		logger.Warn("leader check failed", "error", err)
		telemetry.JobRuns.WithLabelValues(name, "skipped").Inc()
		return err
	}
	if !leader {
		logger.Debug("not leader, skipping")
		telemetry.JobRuns.WithLabelValues(name, "skipped").Inc()
		return nil
	}

	start := time.Now()
	_, err = failsafe.With(r.policy).WithContext(ctx).Get(func() (any, error) {
		return nil, job.Run(ctx)
	})
	if err != nil {
		logger.Error("job failed", "error", err, "duration", time.Since(start))
		telemetry.JobRuns.WithLabelValues(name, "failed").Inc()
		return err
	}

	logger.Info("job completed", "duration", time.Since(start))
	telemetry.JobRuns.WithLabelValues(name, "ok").Inc()
	return nil
}

// Jobs возвращает имена задач в порядке регистрации.
func (r *Runner) Jobs() []string {
	return append([]string(nil), r.order...)
}
