package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/yourusername/place-better/internal/batch"
	"github.com/yourusername/place-better/internal/config"
	"github.com/yourusername/place-better/internal/decoder"
	"github.com/yourusername/place-better/internal/logger"
	"github.com/yourusername/place-better/internal/metrics"
	"github.com/yourusername/place-better/internal/models"
	"github.com/yourusername/place-better/internal/passing"
	"github.com/yourusername/place-better/internal/repository"
)

// PassingConfigFrom maps the passing configuration section to recovery tuning
func PassingConfigFrom(cfg *config.PassingConfig) passing.Config {
	return passing.Config{
		HeadWindow:        cfg.HeadWindow,
		TailWindow:        cfg.TailWindow,
		Sentinel:          cfg.Sentinel,
		MaxHorseNo:        cfg.MaxHorseNo,
		BlockScanFallback: cfg.BlockScanFallback,
		StrictDate:        cfg.StrictDate,
	}
}

// PassingService recovers corner orders from RA7 telegrams and stores them per race
type PassingService struct {
	repos   *repository.Repositories
	cfg     passing.Config
	workers int
	locker  *batch.KeyLocker
	logger  *logger.IngestLogger
}

// NewPassingService creates a passing service. workers below 1 means one.
func NewPassingService(repos *repository.Repositories, cfg passing.Config, workers int, log *logrus.Logger) *PassingService {
	if workers < 1 {
		workers = 1
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &PassingService{
		repos:   repos,
		cfg:     cfg,
		workers: workers,
		locker:  batch.NewKeyLocker(),
		logger:  logger.NewIngestLogger(log),
	}
}

type passingJob struct {
	seq     int
	payload []byte
}

// cornerRows are the rows one telegram produced for one corner
type cornerRows struct {
	seq  int
	rows []models.PassingPosition
}

// recovered collects results across workers. For each race and corner the
// telegram received last wins.
type recovered struct {
	mu    sync.Mutex
	races map[string]map[int]cornerRows
}

func (r *recovered) add(seq int, rows []models.PassingPosition) {
	byCorner := make(map[int][]models.PassingPosition)
	for _, row := range rows {
		byCorner[row.Corner] = append(byCorner[row.Corner], row)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for corner, cr := range byCorner {
		raceKey := cr[0].RaceKey
		corners, ok := r.races[raceKey]
		if !ok {
			corners = make(map[int]cornerRows)
			r.races[raceKey] = corners
		}
		if current, ok := corners[corner]; !ok || seq > current.seq {
			corners[corner] = cornerRows{seq: seq, rows: cr}
		}
	}
}

func (r *recovered) rows(raceKey string) []models.PassingPosition {
	corners := r.races[raceKey]
	keys := make([]int, 0, len(corners))
	for c := range corners {
		keys = append(keys, c)
	}
	sort.Ints(keys)

	var out []models.PassingPosition
	for _, c := range keys {
		out = append(out, corners[c].rows...)
	}
	return out
}

// Run recovers every stored RA7 telegram against the known races and
// replaces the passing rows of each race that yielded any.
func (s *PassingService) Run(ctx context.Context) (passing.Counts, error) {
	start := time.Now()
	defer func() { metrics.RecordPass("passing", time.Since(start)) }()

	idx, err := s.buildIndex(ctx)
	if err != nil {
		return passing.Counts{}, err
	}
	recoverer := passing.NewRecoverer(s.cfg)
	results := &recovered{races: make(map[string]map[int]cornerRows)}

	jobs := make(chan passingJob)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(jobs)
		seq := 0
		filter := repository.TelegramFilter{Kinds: []string{models.KindRacePass}}
		return s.repos.Telegram.Stream(gctx, filter, func(t *models.RawTelegram) error {
			seq++
			select {
			case jobs <- passingJob{seq: seq, payload: t.Payload}:
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
	})
	for i := 0; i < s.workers; i++ {
		g.Go(func() error {
			for job := range jobs {
				res, err := recoverer.Recover(decoder.DecodeText(job.payload), idx)
				metrics.RecordRecovery(string(outcomeOf(err)))
				if err != nil {
					s.logger.LogSkippedRecord(models.KindRacePass, string(outcomeOf(err)), err)
					continue
				}
				results.add(job.seq, passing.ToPositions(res, idx))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return recoverer.Stats().Snapshot(), fmt.Errorf("passing recovery aborted: %w", err)
	}

	if err := s.store(ctx, results, recoverer.Stats()); err != nil {
		return recoverer.Stats().Snapshot(), err
	}

	counts := recoverer.Stats().Snapshot()
	s.logger.LogRecoverySummary(counts.Processed, counts.Recovered, counts.RowsEmitted, map[string]int{
		string(passing.OutcomeNoRaceKey): counts.NoRaceKey,
		string(passing.OutcomeNoEntries): counts.NoEntries,
		string(passing.OutcomeNoCorners): counts.NoCorners,
		string(passing.OutcomeBadRow):    counts.BadRows,
	}, time.Since(start))
	return counts, nil
}

// buildIndex loads every known race key and each race's horse numbers
func (s *PassingService) buildIndex(ctx context.Context) (*passing.RaceIndex, error) {
	idx := passing.NewRaceIndex()
	keys, err := s.repos.Race.ListKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list race keys: %w", err)
	}
	for _, k := range keys {
		idx.AddRace(k)
	}
	horses, err := s.repos.Entry.HorseNumbersByRace(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list horse numbers: %w", err)
	}
	for raceKey, nos := range horses {
		idx.AddEntries(raceKey, nos)
	}
	return idx, nil
}

// store replaces each race's rows, one race at a time per key
func (s *PassingService) store(ctx context.Context, results *recovered, stats *passing.Stats) error {
	raceKeys := make([]string, 0, len(results.races))
	for k := range results.races {
		raceKeys = append(raceKeys, k)
	}
	sort.Strings(raceKeys)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, raceKey := range raceKeys {
		rows := results.rows(raceKey)
		g.Go(func() error {
			unlock := s.locker.Lock(raceKey)
			defer unlock()
			if err := s.repos.Passing.ReplaceForRace(gctx, raceKey, rows); err != nil {
				return fmt.Errorf("failed to store passing rows of %s: %w", raceKey, err)
			}
			stats.AddRowsEmitted(len(rows))
			return nil
		})
	}
	return g.Wait()
}

func outcomeOf(err error) passing.Outcome {
	switch {
	case err == nil:
		return passing.OutcomeRecovered
	case errors.Is(err, passing.ErrNoRaceKey):
		return passing.OutcomeNoRaceKey
	case errors.Is(err, passing.ErrNoEntries):
		return passing.OutcomeNoEntries
	case errors.Is(err, passing.ErrNoCorners):
		return passing.OutcomeNoCorners
	default:
		return passing.OutcomeBadRow
	}
}
