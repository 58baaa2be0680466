package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/yourusername/place-better/internal/batch"
	"github.com/yourusername/place-better/internal/feed"
	"github.com/yourusername/place-better/internal/health"
	"github.com/yourusername/place-better/internal/ml"
	"github.com/yourusername/place-better/internal/scheduler"
	"github.com/yourusername/place-better/internal/service"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the feed receiver, scheduled jobs and health server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cmd)
	},
}

func serve(ctx context.Context, cmd *cobra.Command) error {
	checks := make(map[string]health.Checker)
	if addr := cfg.Predictor.GRPCHealthAddress; addr != "" {
		checker, err := ml.NewHealthChecker(addr, "")
		if err != nil {
			return err
		}
		defer checker.Close()
		checks["predictor"] = checker
	}

	var receiver *feed.Receiver
	if cfg.Feed.Enabled {
		receiver = feed.NewReceiver(&cfg.Feed, repos.Telegram, appLogger)
		checks["feed"] = health.CheckerFunc(func(context.Context) error {
			if !receiver.IsConnected() {
				return fmt.Errorf("feed disconnected")
			}
			return nil
		})
	}

	healthCfg := health.Config{
		ServiceName: cfg.App.Name,
		Version:     Version,
		Port:        cfg.Metrics.Port,
		Logger:      appLogger,
		Checks:      checks,
	}
	if cfg.Metrics.Enabled {
		healthCfg.MetricsPath = cfg.Metrics.Path
	}
	if db != nil {
		healthCfg.DB = db
	}
	server := health.NewServer(healthCfg)
	if err := server.Start(ctx); err != nil {
		return err
	}

	sched, err := newScheduler(cmd)
	if err != nil {
		return err
	}
	if sched != nil {
		if err := sched.Start(); err != nil {
			return err
		}
		appLogger.WithField("next_run", sched.GetNextRun()).Info("Scheduler running")
	}

	g, gctx := errgroup.WithContext(ctx)
	if receiver != nil {
		g.Go(func() error { return receiver.Run(gctx) })
	}
	server.SetReady(true)
	appLogger.Info("Serving, waiting for shutdown signal")

	<-gctx.Done()
	server.SetReady(false)
	appLogger.Info("Shutting down")

	if sched != nil {
		if err := sched.Stop(); err != nil {
			appLogger.WithError(err).Warn("Scheduler did not stop cleanly")
		}
	}
	return g.Wait()
}

// newScheduler returns nil when scheduling is disabled or no job is configured.
func newScheduler(cmd *cobra.Command) (*scheduler.Scheduler, error) {
	if !cfg.Scheduler.Enabled {
		return nil, nil
	}
	sched := scheduler.NewScheduler(appLogger)
	jobs := 0

	if expr := cfg.Scheduler.NormalizeCron; expr != "" {
		err := sched.ScheduleRebuild(expr,
			service.NewNormalizationService(repos, appLogger),
			service.NewPassingService(repos, service.PassingConfigFrom(&cfg.Passing), cfg.Passing.Workers, appLogger),
			service.NewFeatureService(repos, cfg.Features.LookbackN, appLogger),
			service.NormalizeOptions{},
		)
		if err != nil {
			return nil, err
		}
		jobs++
	}

	if expr := cfg.Scheduler.BatchCron; expr != "" {
		processor, err := newRaceProcessor(cmd.Flags())
		if err != nil {
			return nil, err
		}
		orch := batch.NewOrchestrator(processor, batch.Options{Workers: cfg.Batch.Workers, FailFast: cfg.Batch.FailFast}, appLogger)

		keys := scheduler.TodayRaceKeys(repos.Race, time.Now)
		if cfg.Scheduler.RaceKeysFile != "" {
			keys = scheduler.FileRaceKeys(cfg.Scheduler.RaceKeysFile)
		}
		if err := sched.ScheduleBatch(expr, orch, keys, writeBatchReport); err != nil {
			return nil, err
		}
		jobs++
	}

	if jobs == 0 {
		appLogger.Warn("Scheduler enabled but no cron expressions configured")
		return nil, nil
	}
	return sched, nil
}
