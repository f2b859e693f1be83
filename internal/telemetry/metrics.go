package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики ядра. Регистрируются в default registry и отдаются
// herald-scheduler на /metrics.
var (
	// PostsTotal — итоги PostDue по result (POSTED, ERROR, ...).
	PostsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "herald_posts_total",
		Help: "PostDue invocations by result",
	}, []string{"result"})

	// ClaimsLost — проигранные гонки захвата.
	ClaimsLost = promauto.NewCounter(prometheus.CounterOpts{
		Name: "herald_claims_lost_total",
		Help: "Slot claims lost to a concurrent worker",
	})

	// StuckSlotsSwept — слоты, закрытые sweep'ом.
	StuckSlotsSwept = promauto.NewCounter(prometheus.CounterOpts{
		Name: "herald_stuck_slots_swept_total",
		Help: "Slots moved from posting to failed by the stuck sweep",
	})

	// SlotsGenerated — созданные строки слотов.
	SlotsGenerated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "herald_slots_generated_total",
		Help: "Scheduled slot rows created",
	})

	// SlotsFilled — назначения контента в слоты.
	SlotsFilled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "herald_slots_filled_total",
		Help: "Content assignments written to slots",
	})

	// GapsDetected — найденные пробелы разнообразия по типу.
	GapsDetected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "herald_diversity_gaps_total",
		Help: "Diversity gaps detected by type",
	}, []string{"type"})

	// SLACoverage — заполненные слоты на сегодня/завтра по последней проверке.
	SLACoverage = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "herald_sla_filled_slots",
		Help: "Filled slots for today and tomorrow at the last SLA check",
	}, []string{"day"})

	// BackfillLinks — записи, привязанные reconciliation'ом.
	BackfillLinks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "herald_backfill_links_total",
		Help: "Posted records linked to slots by backfill",
	})

	// JobRuns — запуски cron-задач по job и status.
	JobRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "herald_scheduler_job_runs_total",
		Help: "Scheduler job runs by job and status",
	}, []string{"job", "status"})

	// APIRequests — запросы к status API по методу и коду ответа.
	APIRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "herald_api_requests_total",
		Help: "Status API requests by method and status code",
	}, []string{"method", "code"})
)
