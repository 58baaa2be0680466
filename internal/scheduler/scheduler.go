// Package scheduler runs the periodic rebuild and batch recommendation jobs.
package scheduler

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/place-better/internal/batch"
	"github.com/yourusername/place-better/internal/models"
	"github.com/yourusername/place-better/internal/repository"
	"github.com/yourusername/place-better/internal/service"
)

// Job is one scheduled unit of work
type Job func(ctx context.Context) error

// KeySource lists the race keys a batch job covers
type KeySource func(ctx context.Context) ([]string, error)

// ReportSink receives the report of a scheduled batch run
type ReportSink func(report *batch.Report) error

// Scheduler manages cron jobs. A job still running when its next tick
// arrives is skipped.
type Scheduler struct {
	cron            *cron.Cron
	logger          *logrus.Entry
	mu              sync.RWMutex
	isRunning       bool
	jobIDs          []cron.EntryID
	jobTimeout      time.Duration
	gracefulTimeout time.Duration
}

// NewScheduler creates a new scheduler
func NewScheduler(log *logrus.Logger) *Scheduler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	entry := log.WithField("component", "scheduler")
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(models.FeedLocation()),
			cron.WithChain(cron.Recover(cron.PrintfLogger(entry)), cron.SkipIfStillRunning(cron.PrintfLogger(entry))),
		),
		logger:          entry,
		jobIDs:          make([]cron.EntryID, 0),
		jobTimeout:      4 * time.Hour,
		gracefulTimeout: 30 * time.Second,
	}
}

// Schedule adds a named job
func (s *Scheduler) Schedule(name, cronExpression string, job Job) (cron.EntryID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return 0, fmt.Errorf("cannot schedule job while scheduler is running")
	}

	entryID, err := s.cron.AddFunc(cronExpression, func() { s.run(name, job) })
	if err != nil {
		return 0, fmt.Errorf("failed to add job %s: %w", name, err)
	}

	s.jobIDs = append(s.jobIDs, entryID)
	s.logger.WithFields(logrus.Fields{"job": name, "cron": cronExpression}).Info("Scheduled job")
	return entryID, nil
}

func (s *Scheduler) run(name string, job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), s.jobTimeout)
	defer cancel()

	start := time.Now()
	log := s.logger.WithField("job", name)
	log.Info("Starting scheduled job")
	if err := job(ctx); err != nil {
		log.WithError(err).Error("Scheduled job failed")
		return
	}
	log.WithField("duration_ms", time.Since(start).Milliseconds()).Info("Scheduled job completed")
}

// ScheduleRebuild schedules normalize, passing recovery and features in sequence
func (s *Scheduler) ScheduleRebuild(
	cronExpression string,
	normalize *service.NormalizationService,
	passing *service.PassingService,
	features *service.FeatureService,
	opts service.NormalizeOptions,
) error {
	_, err := s.Schedule("rebuild", cronExpression, func(ctx context.Context) error {
		m, err := normalize.Run(ctx, opts)
		if err != nil {
			return fmt.Errorf("normalize: %w", err)
		}
		s.logger.Info(m.String())

		counts, err := passing.Run(ctx)
		if err != nil {
			return fmt.Errorf("passing: %w", err)
		}
		s.logger.WithField("recovered", counts.Recovered).Debug("Passing step done")

		if _, err := features.Run(ctx, nil); err != nil {
			return fmt.Errorf("features: %w", err)
		}
		return nil
	})
	return err
}

// ScheduleBatch schedules a batch recommendation run over the keys from keys
func (s *Scheduler) ScheduleBatch(cronExpression string, orch *batch.Orchestrator, keys KeySource, sink ReportSink) error {
	_, err := s.Schedule("batch", cronExpression, func(ctx context.Context) error {
		raceKeys, err := keys(ctx)
		if err != nil {
			return fmt.Errorf("failed to list race keys: %w", err)
		}
		if len(raceKeys) == 0 {
			s.logger.Info("No races to recommend")
			return nil
		}
		report, err := orch.Execute(ctx, raceKeys)
		if report != nil && sink != nil {
			if sinkErr := sink(report); sinkErr != nil {
				return fmt.Errorf("failed to write report: %w", sinkErr)
			}
		}
		return err
	})
	return err
}

// TodayRaceKeys lists the keys of races run on the current feed date
func TodayRaceKeys(races repository.RaceRepository, now func() time.Time) KeySource {
	return func(ctx context.Context) ([]string, error) {
		list, err := races.ListByDate(ctx, models.FormatRaceDate(now()))
		if err != nil {
			return nil, err
		}
		keys := make([]string, 0, len(list))
		for _, r := range list {
			keys = append(keys, r.RaceKey)
		}
		return keys, nil
	}
}

// FileRaceKeys reads the race keys file on every run
func FileRaceKeys(path string) KeySource {
	return func(context.Context) ([]string, error) {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return batch.ReadRaceKeys(f)
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("scheduler is already running")
	}

	if len(s.jobIDs) == 0 {
		return fmt.Errorf("no jobs scheduled")
	}

	s.cron.Start()
	s.isRunning = true
	s.logger.WithField("jobs", len(s.jobIDs)).Info("Scheduler started")

	return nil
}

// Stop stops the scheduler and waits for running jobs up to the graceful timeout
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return nil
	}

	s.isRunning = false
	select {
	case <-s.cron.Stop().Done():
		s.logger.Info("Scheduler stopped")
		return nil
	case <-time.After(s.gracefulTimeout):
		return fmt.Errorf("scheduler jobs still running after %v", s.gracefulTimeout)
	}
}

// IsRunning returns whether the scheduler is currently running
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetNextRun returns the time of the next scheduled job run
func (s *Scheduler) GetNextRun() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning || len(s.jobIDs) == 0 {
		return time.Time{}
	}

	nextRun := time.Time{}
	for _, entry := range s.entries() {
		if nextRun.IsZero() || entry.Next.Before(nextRun) {
			nextRun = entry.Next
		}
	}
	return nextRun
}

// Entries returns information about scheduled entries
func (s *Scheduler) Entries() []cron.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries()
}

func (s *Scheduler) entries() []cron.Entry {
	entries := make([]cron.Entry, 0, len(s.jobIDs))
	for _, jobID := range s.jobIDs {
		entry := s.cron.Entry(jobID)
		if entry.Valid() {
			entries = append(entries, entry)
		}
	}
	return entries
}
