// Package service wires the decoder, passing recovery, feature aggregation
// and the recommendation chain to the repositories.
package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/place-better/internal/decoder"
	"github.com/yourusername/place-better/internal/features"
	"github.com/yourusername/place-better/internal/logger"
	"github.com/yourusername/place-better/internal/metrics"
	"github.com/yourusername/place-better/internal/models"
	"github.com/yourusername/place-better/internal/repository"
)

// Decode outcomes reported to metrics
const (
	decodeOK            = "ok"
	decodeNotApplicable = "not_applicable"
	decodeInvalid       = "invalid"
	decodeFailed        = "error"
)

// allRaces is a race date bound later than every race key.
const allRaces = "99999999"

// NormalizeOptions controls a normalization pass
type NormalizeOptions struct {
	// Rebuild truncates every derived table before decoding.
	Rebuild bool
	// GradedOnly keeps graded races and the entries and odds of those races.
	GradedOnly bool
	// Since skips telegrams received before it when non-zero.
	Since time.Time
}

// NormalizationService decodes raw telegrams into races, entries, odds and masters
type NormalizationService struct {
	repos     *repository.Repositories
	validator *EntityValidator
	logger    *logger.IngestLogger
	metrics   *NormalizationMetrics
}

// NewNormalizationService creates a new normalization service
func NewNormalizationService(repos *repository.Repositories, log *logrus.Logger) *NormalizationService {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &NormalizationService{
		repos:     repos,
		validator: NewEntityValidator(),
		logger:    logger.NewIngestLogger(log),
		metrics:   NewNormalizationMetrics(),
	}
}

// normalizeRun carries the state of one pass
type normalizeRun struct {
	opts    NormalizeOptions
	graded  map[string]bool
	touched map[string]struct{}
}

// Run decodes every stored telegram in kind order: races first so the graded
// filter can see them, then masters, entries and odds. Repository errors
// abort the pass; decode and validation failures are counted and skipped.
func (s *NormalizationService) Run(ctx context.Context, opts NormalizeOptions) (*NormalizationMetrics, error) {
	s.metrics.Reset()
	start := time.Now()
	defer func() {
		s.metrics.Finish()
		metrics.RecordPass("normalize", time.Since(start))
	}()

	if opts.Rebuild {
		if err := s.repos.TruncateDerived(ctx); err != nil {
			return s.metrics, fmt.Errorf("failed to truncate derived tables: %w", err)
		}
		s.logger.Info("Derived tables truncated for rebuild")
	}

	run := &normalizeRun{
		opts:    opts,
		graded:  make(map[string]bool),
		touched: make(map[string]struct{}),
	}
	for _, kinds := range [][]string{
		{models.KindRace, models.KindRacePass},
		{models.KindJockey, models.KindTrainer},
		{models.KindEntry},
		{models.KindPlaceOdds},
	} {
		filter := repository.TelegramFilter{Kinds: kinds, Since: opts.Since}
		err := s.repos.Telegram.Stream(ctx, filter, func(t *models.RawTelegram) error {
			return s.process(ctx, run, t)
		})
		if err != nil {
			return s.metrics, err
		}
	}

	n, err := s.rebuildLatestMetrics(ctx, run.touched)
	if err != nil {
		return s.metrics, err
	}
	s.metrics.RecordLatestMetrics(n)

	s.logger.LogNormalizationSummary(s.metrics.Counts(), time.Since(start))
	return s.metrics, nil
}

// Metrics returns the counters of the last pass
func (s *NormalizationService) Metrics() *NormalizationMetrics {
	return s.metrics
}

func (s *NormalizationService) process(ctx context.Context, run *normalizeRun, t *models.RawTelegram) error {
	s.metrics.RecordRecord()

	rec, err := decoder.Decode(t.Kind, t.Payload)
	if err != nil {
		if errors.Is(err, decoder.ErrNotApplicable) {
			s.metrics.RecordNotApplicable()
			metrics.RecordDecoded(t.Kind, decodeNotApplicable)
			s.logger.LogSkippedRecord(t.Kind, decodeNotApplicable, err)
			return nil
		}
		s.metrics.RecordError()
		metrics.RecordDecoded(t.Kind, decodeFailed)
		s.logger.LogSkippedRecord(t.Kind, decodeFailed, err)
		return nil
	}
	if len(rec.Malformed) > 0 {
		s.metrics.RecordMalformed(len(rec.Malformed))
		s.logger.WithFields(logrus.Fields{
			"kind":   t.Kind,
			"fields": rec.Malformed,
		}).Debug("Malformed numeric fields decoded as null")
	}
	if len(rec.Rejected) > 0 {
		s.metrics.RecordInvalidOdds(len(rec.Rejected))
		for _, rejected := range rec.Rejected {
			s.logger.LogSkippedRecord(t.Kind, "invalid_odds", rejected)
		}
	}

	switch {
	case rec.Race != nil:
		err = s.applyRace(ctx, run, rec.Race)
	case rec.Entry != nil:
		err = s.applyEntry(ctx, run, rec.Entry)
	case rec.Odds != nil:
		err = s.applyOdds(ctx, run, rec.Odds)
	case rec.Jockey != nil:
		err = s.applyMaster(ctx, rec.Jockey, func(ctx context.Context) error {
			return s.repos.Master.UpsertJockey(ctx, rec.Jockey)
		})
	case rec.Trainer != nil:
		err = s.applyMaster(ctx, rec.Trainer, func(ctx context.Context) error {
			return s.repos.Master.UpsertTrainer(ctx, rec.Trainer)
		})
	}
	if err != nil {
		if errors.Is(err, ErrValidation) {
			s.metrics.RecordValidationError()
			metrics.RecordDecoded(t.Kind, decodeInvalid)
			s.logger.LogSkippedRecord(t.Kind, decodeInvalid, err)
			return nil
		}
		return err
	}
	metrics.RecordDecoded(t.Kind, decodeOK)
	return nil
}

func (s *NormalizationService) applyRace(ctx context.Context, run *normalizeRun, race *models.Race) error {
	if err := s.validator.Validate(race); err != nil {
		return err
	}
	if race.IsGraded() {
		run.graded[race.RaceKey] = true
	}
	if run.opts.GradedOnly && !run.graded[race.RaceKey] {
		s.metrics.RecordUngraded()
		return nil
	}
	if err := s.repos.Race.Upsert(ctx, race); err != nil {
		return fmt.Errorf("failed to upsert race %s: %w", race.RaceKey, err)
	}
	s.metrics.RecordRace()
	return nil
}

// keepRace reports whether records of raceKey pass the graded filter. Races
// stored by an earlier pass are consulted when this pass has not seen them.
func (s *NormalizationService) keepRace(ctx context.Context, run *normalizeRun, raceKey string) (bool, error) {
	if !run.opts.GradedOnly {
		return true, nil
	}
	if graded, ok := run.graded[raceKey]; ok {
		return graded, nil
	}
	race, err := s.repos.Race.Get(ctx, raceKey)
	switch {
	case errors.Is(err, models.ErrNotFound):
		run.graded[raceKey] = false
	case err != nil:
		return false, fmt.Errorf("failed to load race %s: %w", raceKey, err)
	default:
		run.graded[raceKey] = race.IsGraded()
	}
	return run.graded[raceKey], nil
}

func (s *NormalizationService) applyEntry(ctx context.Context, run *normalizeRun, entry *models.Entry) error {
	if err := s.validator.Validate(entry); err != nil {
		return err
	}
	keep, err := s.keepRace(ctx, run, entry.RaceKey)
	if err != nil {
		return err
	}
	if !keep {
		s.metrics.RecordUngraded()
		return nil
	}

	err = s.repos.Tx.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.repos.Entry.Upsert(ctx, entry); err != nil {
			return fmt.Errorf("failed to upsert entry %s: %w", entry.EntryKey(), err)
		}
		if entry.JockeyCode != nil && entry.JockeyName != nil {
			if err := s.repos.Master.UpsertJockeyAlias(ctx, *entry.JockeyCode, *entry.JockeyName); err != nil {
				return fmt.Errorf("failed to upsert jockey alias %s: %w", *entry.JockeyCode, err)
			}
		}
		if entry.TrainerCode != nil && entry.TrainerName != nil {
			if err := s.repos.Master.UpsertTrainerAlias(ctx, *entry.TrainerCode, *entry.TrainerName); err != nil {
				return fmt.Errorf("failed to upsert trainer alias %s: %w", *entry.TrainerCode, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if entry.HorseID != nil {
		run.touched[*entry.HorseID] = struct{}{}
	}
	s.metrics.RecordEntry()
	return nil
}

func (s *NormalizationService) applyOdds(ctx context.Context, run *normalizeRun, quotes []models.OddsQuote) error {
	written := 0
	for i := range quotes {
		q := &quotes[i]
		if err := s.validator.Validate(q); err != nil {
			return err
		}
		keep, err := s.keepRace(ctx, run, q.RaceKey)
		if err != nil {
			return err
		}
		if !keep {
			s.metrics.RecordUngraded()
			continue
		}
		if err := s.repos.Odds.Upsert(ctx, q); err != nil {
			return fmt.Errorf("failed to upsert odds %s: %w", models.EntryKey(q.RaceKey, q.HorseNo), err)
		}
		written++
	}
	s.metrics.RecordOdds(written)
	return nil
}

func (s *NormalizationService) applyMaster(ctx context.Context, master any, upsert func(context.Context) error) error {
	if err := s.validator.Validate(master); err != nil {
		return err
	}
	if err := upsert(ctx); err != nil {
		return fmt.Errorf("failed to upsert master: %w", err)
	}
	s.metrics.RecordMaster()
	return nil
}

// rebuildLatestMetrics recomputes the latest metrics of every horse whose
// entries were written in this pass.
func (s *NormalizationService) rebuildLatestMetrics(ctx context.Context, horses map[string]struct{}) (int, error) {
	ids := make([]string, 0, len(horses))
	for id := range horses {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	n := 0
	for _, id := range ids {
		entries, err := s.repos.Entry.ListByHorse(ctx, id, allRaces)
		if err != nil {
			return n, fmt.Errorf("failed to load entries of horse %s: %w", id, err)
		}
		latest := features.BuildLatestMetrics(id, entries)
		if latest == nil {
			continue
		}
		if err := s.repos.LatestMetrics.Upsert(ctx, latest); err != nil {
			return n, fmt.Errorf("failed to upsert latest metrics of horse %s: %w", id, err)
		}
		n++
	}
	return n, nil
}
