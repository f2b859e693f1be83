// herald-scheduler — фоновый процесс: cron-задачи Herald, /healthz, /metrics
// и read-only API состояния расписания (/api/v1/...).
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/shaiso/Herald/internal/api"
	"github.com/shaiso/Herald/internal/app"
	"github.com/shaiso/Herald/internal/config"
	"github.com/shaiso/Herald/internal/scheduler"
	"github.com/shaiso/Herald/internal/telemetry"
)

func main() {
	logger := telemetry.SetupLogger()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("load config", "error", err)
		os.Exit(1)
	}

	a, err := app.New(ctx, cfg, logger, app.Options{})
	if err != nil {
		logger.Error("init", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	runner, err := scheduler.New(scheduler.Config{
		Jobs:    scheduler.Jobs(a),
		Leader:  scheduler.LeaderFor(a),
		Retries: cfg.Scheduler.JobRetries,
		Logger:  logger,
	})
	if err != nil {
		logger.Error("init scheduler", "error", err)
		os.Exit(1)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		pingCtx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := a.Store.Ping(pingCtx); err != nil {
			http.Error(w, "store unavailable", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())
	api.NewHandler(api.Config{
		Store:       a.Store,
		Analyzer:    a.Analyzer,
		Now:         a.Now,
		TodayMin:    cfg.SLA.TodayMin,
		TomorrowMin: cfg.SLA.TomorrowMin,
		DaysAhead:   cfg.Schedule.DaysAhead,
		Logger:      logger,
	}).RegisterRoutes(mux)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Scheduler.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := runner.Start(gctx); err != nil {
			return err
		}
		<-gctx.Done()
		return nil
	})
	g.Go(func() error {
		logger.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("scheduler exited", "error", err)
		os.Exit(1)
	}
	logger.Info("scheduler shut down")
}
