package api

import (
	"context"
	"log/slog"
	"time"

	"github.com/shaiso/Herald/internal/diversity"
	"github.com/shaiso/Herald/internal/domain"
	"github.com/shaiso/Herald/internal/guard"
)

// Store — чтение, нужное API.
type Store interface {
	ListSlotsByDate(ctx context.Context, date string) ([]domain.ScheduledSlot, error)
	ListSlotsInRange(ctx context.Context, from, to string) ([]domain.ScheduledSlot, error)
	CountFilledSlots(ctx context.Context, date string) (int, error)
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	store       Store
	guard       *guard.Guard
	analyzer    *diversity.Analyzer
	now         func() time.Time
	todayMin    int
	tomorrowMin int
	daysAhead   int
	logger      *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Store Store

	// Analyzer — опционально; по умолчанию с параметрами по умолчанию.
	Analyzer *diversity.Analyzer

	Now func() time.Time

	// Минимумы SLA по умолчанию для /sla.
	TodayMin    int
	TomorrowMin int

	// DaysAhead — ширина окна /diversity без параметров (default: 2).
	DaysAhead int

	Logger *slog.Logger
}

// NewHandler создаёт новый Handler. Guard создаётся без Alerter:
// запрос к /sla не должен слать оповещения.
func NewHandler(cfg Config) *Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.DaysAhead <= 0 {
		cfg.DaysAhead = 2
	}
	if cfg.Analyzer == nil {
		cfg.Analyzer = diversity.NewAnalyzer(diversity.Config{Store: cfg.Store, Logger: cfg.Logger})
	}
	return &Handler{
		store:       cfg.Store,
		guard:       guard.New(guard.Config{Store: cfg.Store, Logger: cfg.Logger}),
		analyzer:    cfg.Analyzer,
		now:         cfg.Now,
		todayMin:    cfg.TodayMin,
		tomorrowMin: cfg.TomorrowMin,
		daysAhead:   cfg.DaysAhead,
		logger:      cfg.Logger,
	}
}
