// Package batch runs the recommendation chain across many races with
// per-race failure isolation.
package batch

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/yourusername/place-better/internal/logger"
	"github.com/yourusername/place-better/internal/metrics"
	"github.com/yourusername/place-better/internal/models"
	"github.com/yourusername/place-better/internal/wagering"
)

// RaceProcessor produces a recommendation for one race
type RaceProcessor interface {
	Process(ctx context.Context, raceKey string) (*wagering.Recommendation, error)
}

// RaceProcessorFunc adapts a function to RaceProcessor
type RaceProcessorFunc func(ctx context.Context, raceKey string) (*wagering.Recommendation, error)

// Process calls f
func (f RaceProcessorFunc) Process(ctx context.Context, raceKey string) (*wagering.Recommendation, error) {
	return f(ctx, raceKey)
}

// Options controls a batch run
type Options struct {
	Workers  int
	FailFast bool
}

// Report is the outcome of a batch run
type Report struct {
	RunID     uuid.UUID            `json:"run_id"`
	StartedAt time.Time            `json:"started_at"`
	Duration  time.Duration        `json:"duration"`
	OK        int                  `json:"ok"`
	Failed    int                  `json:"failed"`
	Summaries []models.RaceSummary `json:"summaries"`
}

// Orchestrator runs a RaceProcessor over race keys
type Orchestrator struct {
	processor RaceProcessor
	opts      Options
	locker    *KeyLocker
	logger    *logger.BatchLogger
}

// NewOrchestrator creates an orchestrator
func NewOrchestrator(processor RaceProcessor, opts Options, log *logrus.Logger) *Orchestrator {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Orchestrator{
		processor: processor,
		opts:      opts,
		locker:    NewKeyLocker(),
		logger:    logger.NewBatchLogger(log),
	}
}

// Locker returns the per-race lock shared with other writers
func (o *Orchestrator) Locker() *KeyLocker {
	return o.locker
}

// Execute runs the batch and wraps the summaries in a Report
func (o *Orchestrator) Execute(ctx context.Context, raceKeys []string) (*Report, error) {
	report := &Report{RunID: uuid.New(), StartedAt: time.Now()}
	o.logger.LogRunStart(report.RunID.String(), len(raceKeys), o.opts.Workers, o.opts.FailFast)

	summaries, err := o.Run(ctx, raceKeys)
	report.Summaries = summaries
	report.Duration = time.Since(report.StartedAt)
	for i := range summaries {
		if summaries[i].Failed() {
			report.Failed++
		} else {
			report.OK++
		}
	}

	o.logger.LogRunSummary(report.RunID.String(), report.OK, report.Failed, report.Duration)
	return report, err
}

// Run returns one summary per race key in input order. A race failure is
// recorded in its summary and the run continues, unless FailFast is set, in
// which case the remaining races are marked failed without being processed.
// A context cancellation marks unprocessed races the same way and is
// returned. ErrStoreUnavailable aborts the run and only the completed
// summaries are returned with it.
func (o *Orchestrator) Run(ctx context.Context, raceKeys []string) ([]models.RaceSummary, error) {
	results := make([]*models.RaceSummary, len(raceKeys))

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		stopped  atomic.Bool
		storeErr error
		once     sync.Once
	)

	runOne := func(i int, raceKey string) error {
		if stopped.Load() || runCtx.Err() != nil {
			return nil
		}
		summary, err := o.processRace(runCtx, raceKey)
		if err != nil {
			once.Do(func() { storeErr = err })
			cancel()
			return err
		}
		results[i] = &summary
		if summary.Failed() && o.opts.FailFast {
			stopped.Store(true)
		}
		return nil
	}

	if o.opts.Workers == 1 {
		for i, key := range raceKeys {
			if err := runOne(i, key); err != nil {
				break
			}
		}
	} else {
		g := new(errgroup.Group)
		g.SetLimit(o.opts.Workers)
		for i, key := range raceKeys {
			if stopped.Load() || runCtx.Err() != nil {
				break
			}
			g.Go(func() error { return runOne(i, key) })
		}
		_ = g.Wait()
	}

	if storeErr != nil {
		completed := make([]models.RaceSummary, 0, len(raceKeys))
		for _, s := range results {
			if s != nil {
				completed = append(completed, *s)
			}
		}
		return completed, fmt.Errorf("batch run aborted: %w", storeErr)
	}

	var skipReason error
	switch {
	case ctx.Err() != nil:
		skipReason = fmt.Errorf("not processed: %w", ctx.Err())
	case stopped.Load():
		skipReason = errors.New("not processed: fail-fast after an earlier race failure")
	}

	summaries := make([]models.RaceSummary, len(raceKeys))
	for i, s := range results {
		if s == nil {
			summaries[i] = models.FailedSummary(raceKeys[i], skipReason)
			continue
		}
		summaries[i] = *s
	}

	if ctx.Err() != nil {
		return summaries, ctx.Err()
	}
	return summaries, nil
}

// processRace isolates one race. Only a store failure is returned as an
// error; anything else becomes a failed summary.
func (o *Orchestrator) processRace(ctx context.Context, raceKey string) (summary models.RaceSummary, err error) {
	unlock := o.locker.Lock(raceKey)
	defer unlock()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			o.logger.WithField("stack", string(debug.Stack())).Debug("Recovered race panic")
			summary = o.fail(raceKey, fmt.Errorf("panic: %v", r), start)
			err = nil
		}
	}()

	rec, procErr := o.processor.Process(ctx, raceKey)
	if procErr != nil {
		if errors.Is(procErr, models.ErrStoreUnavailable) {
			metrics.RecordRace(models.SummaryStatusFailed, 0, 0, time.Since(start))
			return models.RaceSummary{}, procErr
		}
		return o.fail(raceKey, procErr, start), nil
	}

	summary = Summarize(raceKey, rec)
	fallbackBets := 0
	if summary.FallbackUsed {
		fallbackBets = summary.NBets
	}
	metrics.RecordRace(models.SummaryStatusOK, summary.NBets, fallbackBets, time.Since(start))
	return summary, nil
}

func (o *Orchestrator) fail(raceKey string, cause error, start time.Time) models.RaceSummary {
	err := fmt.Errorf("%w: %v", models.ErrRaceProcessing, cause)
	o.logger.LogRaceFailure(raceKey, err)
	metrics.RecordRace(models.SummaryStatusFailed, 0, 0, time.Since(start))
	return models.FailedSummary(raceKey, err)
}
