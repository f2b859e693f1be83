// Package app собирает компоненты Herald из конфигурации.
//
// Используется и CLI (cmd/herald), и планировщиком (cmd/herald-scheduler),
// чтобы обе точки входа работали с одинаково настроенными компонентами.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shaiso/Herald/internal/config"
	"github.com/shaiso/Herald/internal/diversity"
	"github.com/shaiso/Herald/internal/guard"
	"github.com/shaiso/Herald/internal/mq"
	"github.com/shaiso/Herald/internal/pool"
	"github.com/shaiso/Herald/internal/posting"
	"github.com/shaiso/Herald/internal/reconcile"
	"github.com/shaiso/Herald/internal/repo"
	"github.com/shaiso/Herald/internal/schedule"
	"github.com/shaiso/Herald/internal/selector"
	"github.com/shaiso/Herald/internal/webhook"
)

// App — собранные компоненты.
type App struct {
	Config *config.Config
	Logger *slog.Logger
	Now    func() time.Time

	Store      repo.Store
	Pool       pool.ContentPool
	Generator  *schedule.Generator
	Analyzer   *diversity.Analyzer
	Healer     *diversity.Healer
	Claimer    *posting.Claimer
	Backfiller *reconcile.Backfiller
	Guard      *guard.Guard

	// Broker — nil, если RabbitMQ не настроен.
	Broker    *mq.Connection
	Publisher *mq.Publisher

	ownsStore bool
}

// Options — необязательные подмены для тестов и встраивания.
type Options struct {
	// Store — готовое хранилище вместо repo.Open.
	Store repo.Store

	// Poster — вместо WebhookPoster из конфигурации.
	Poster posting.Poster

	// Now — часы (default: time.Now).
	Now func() time.Time
}

// New открывает хранилище и собирает компоненты.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts Options) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	a := &App{Config: cfg, Logger: logger, Now: opts.Now, Store: opts.Store}

	if a.Store == nil {
		store, err := repo.Open(ctx, repo.Config{
			Driver:      cfg.Storage.Driver,
			DSN:         cfg.Storage.DSN,
			SQLitePath:  cfg.Storage.SQLitePath,
			MaxConns:    cfg.Storage.MaxConns,
			AutoMigrate: cfg.Storage.AutoMigrate,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		a.Store = store
		a.ownsStore = true
	}

	if cfg.RabbitMQ.URL != "" {
		conn, err := mq.Dial(mq.ConnectionConfig{URL: cfg.RabbitMQ.URL, Logger: logger})
		if err != nil {
			// События — best effort: без брокера работаем дальше.
			logger.Warn("broker unavailable, slot events disabled", "error", err)
		} else if err := mq.DeclareTopology(ctx, conn); err != nil {
			logger.Warn("declare topology failed, slot events disabled", "error", err)
			_ = conn.Close()
		} else {
			a.Broker = conn
			a.Publisher = mq.NewPublisher(conn, logger)
		}
	}

	a.Pool = buildPool(cfg, a.Store, opts.Now, logger)

	sel := selector.New(selector.Config{
		DailyCap:  cfg.Selector.DailyCap,
		BatchSize: cfg.Selector.BatchSize,
	})
	a.Generator = schedule.New(schedule.Config{
		Store:    a.Store,
		Pool:     a.Pool,
		Selector: sel,
		Lookback: cfg.Schedule.Lookback,
		Now:      opts.Now,
		Logger:   logger,
	})
	a.Analyzer = diversity.NewAnalyzer(diversity.Config{
		Store:      a.Store,
		DailyCap:   cfg.Selector.DailyCap,
		MinSpacing: cfg.Schedule.MinSpacing,
		Logger:     logger,
	})
	a.Healer = diversity.NewHealer(diversity.HealerConfig{
		Analyzer:    a.Analyzer,
		Generator:   a.Generator,
		MaxAttempts: cfg.Schedule.HealAttempts,
		Logger:      logger,
	})

	poster := opts.Poster
	if poster == nil {
		poster = posting.NewWebhookPoster(webhook.New(webhook.Config{
			URL:        cfg.Poster.WebhookURL,
			Token:      cfg.Poster.Token,
			MaxRetries: cfg.Poster.MaxRetries,
			Logger:     logger,
		}))
	}
	claimerCfg := posting.Config{
		Store:          a.Store,
		Candidates:     a.Store,
		Pool:           a.Pool,
		Poster:         poster,
		PublishTimeout: cfg.Poster.PublishTimeout,
		Now:            opts.Now,
		Logger:         logger,
	}
	if a.Publisher != nil {
		claimerCfg.Events = a.Publisher
	}
	a.Claimer = posting.New(claimerCfg)

	a.Backfiller = reconcile.New(reconcile.Config{Store: a.Store, Logger: logger})

	guardCfg := guard.Config{Store: a.Store, Logger: logger}
	if alerter := buildAlerter(cfg, a.Publisher, logger); alerter != nil {
		guardCfg.Alerter = alerter
	}
	a.Guard = guard.New(guardCfg)

	return a, nil
}

// Close освобождает брокер и хранилище, если App открыл его сам.
func (a *App) Close() {
	if a.Broker != nil {
		if err := a.Broker.Close(); err != nil {
			a.Logger.Warn("close broker", "error", err)
		}
	}
	if a.ownsStore {
		a.Store.Close()
	}
}

// --- Helpers ---

func buildPool(cfg *config.Config, store repo.Store, now func() time.Time, logger *slog.Logger) pool.ContentPool {
	var p pool.ContentPool = pool.NewStorePool(store)
	if cfg.Pool.Fallback && len(cfg.Pool.Evergreen) > 0 {
		p = pool.NewFallbackPool(pool.FallbackConfig{
			Primary:       p,
			Store:         store,
			Evergreen:     cfg.Pool.Evergreen,
			MinCandidates: cfg.Pool.MinCandidates,
			Now:           now,
			Logger:        logger,
		})
	}
	if cfg.Pool.CacheTTL > 0 {
		p = pool.NewCachedPool(p, cfg.Pool.CacheTTL, now)
	}
	return p
}

// buildAlerter выбирает каналы оповещения: вебхук и/или очередь slots.alerts.
func buildAlerter(cfg *config.Config, pub *mq.Publisher, logger *slog.Logger) guard.Alerter {
	var alerters guard.MultiAlerter
	if cfg.Alerts.WebhookURL != "" {
		alerters = append(alerters, guard.NewWebhookAlerter(webhook.New(webhook.Config{
			URL:    cfg.Alerts.WebhookURL,
			Token:  cfg.Alerts.Token,
			Logger: logger,
		})))
	}
	if pub != nil {
		alerters = append(alerters, pub)
	}
	if len(alerters) == 0 {
		return nil
	}
	return alerters
}
