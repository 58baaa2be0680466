package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/yourusername/place-better/internal/models"
)

// MemoryTelegramStore keeps telegrams in arrival order
type MemoryTelegramStore struct {
	mu        sync.RWMutex
	telegrams []*models.RawTelegram
}

// NewMemoryTelegramStore creates an empty in-memory telegram store
func NewMemoryTelegramStore() *MemoryTelegramStore {
	return &MemoryTelegramStore{}
}

// Append stores one telegram
func (s *MemoryTelegramStore) Append(_ context.Context, t *models.RawTelegram) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.telegrams = append(s.telegrams, t)
	return nil
}

// AppendBatch stores telegrams in order
func (s *MemoryTelegramStore) AppendBatch(_ context.Context, telegrams []*models.RawTelegram) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.telegrams = append(s.telegrams, telegrams...)
	return nil
}

// Stream calls fn for each matching telegram. The set is snapshotted first so
// fn may append.
func (s *MemoryTelegramStore) Stream(ctx context.Context, filter TelegramFilter, fn func(*models.RawTelegram) error) error {
	s.mu.RLock()
	snapshot := make([]*models.RawTelegram, len(s.telegrams))
	copy(snapshot, s.telegrams)
	s.mu.RUnlock()

	for _, t := range snapshot {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !filter.matches(t) {
			continue
		}
		if err := fn(t); err != nil {
			return err
		}
	}
	return nil
}

// Count returns the number of matching telegrams
func (s *MemoryTelegramStore) Count(_ context.Context, filter TelegramFilter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, t := range s.telegrams {
		if filter.matches(t) {
			n++
		}
	}
	return n, nil
}

// MemoryRaceRepository implements RaceRepository in memory
type MemoryRaceRepository struct {
	mu    sync.RWMutex
	races map[string]*models.Race
}

// NewMemoryRaceRepository creates an empty in-memory race repository
func NewMemoryRaceRepository() *MemoryRaceRepository {
	return &MemoryRaceRepository{races: make(map[string]*models.Race)}
}

// Upsert merges a race over the stored one
func (r *MemoryRaceRepository) Upsert(_ context.Context, race *models.Race) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	merged := *models.MergeRace(r.races[race.RaceKey], race)
	merged.UpdatedAt = time.Now().UTC()
	r.races[race.RaceKey] = &merged
	return nil
}

// Get retrieves a race by key
func (r *MemoryRaceRepository) Get(_ context.Context, raceKey string) (*models.Race, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	race, ok := r.races[raceKey]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *race
	return &cp, nil
}

// ListByDate retrieves the races run on a date
func (r *MemoryRaceRepository) ListByDate(_ context.Context, yyyymmdd string) ([]*models.Race, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*models.Race
	for _, race := range r.races {
		if race.Date == yyyymmdd {
			cp := *race
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RaceKey < out[j].RaceKey })
	return out, nil
}

// ListKeys returns every race key in ascending order
func (r *MemoryRaceRepository) ListKeys(_ context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.races))
	for k := range r.races {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Truncate removes every race
func (r *MemoryRaceRepository) Truncate(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.races = make(map[string]*models.Race)
	return nil
}

// MemoryEntryRepository implements EntryRepository in memory
type MemoryEntryRepository struct {
	mu      sync.RWMutex
	entries map[string]*models.Entry
}

// NewMemoryEntryRepository creates an empty in-memory entry repository
func NewMemoryEntryRepository() *MemoryEntryRepository {
	return &MemoryEntryRepository{entries: make(map[string]*models.Entry)}
}

// Upsert merges an entry over the stored one
func (r *MemoryEntryRepository) Upsert(_ context.Context, e *models.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := e.EntryKey()
	merged := *models.MergeEntry(r.entries[key], e)
	merged.SetFinish(merged.Finish)
	merged.UpdatedAt = time.Now().UTC()
	r.entries[key] = &merged
	return nil
}

// ListByRace returns a race's entries in horse number order
func (r *MemoryEntryRepository) ListByRace(_ context.Context, raceKey string) ([]*models.Entry, error) {
	out := r.collect(func(e *models.Entry) bool { return e.RaceKey == raceKey })
	return out, nil
}

// ListByHorse returns a horse's entries in races dated before the bound
func (r *MemoryEntryRepository) ListByHorse(_ context.Context, horseID, before string) ([]*models.Entry, error) {
	out := r.collect(func(e *models.Entry) bool {
		return e.HorseID != nil && *e.HorseID == horseID && e.RaceKey < before
	})
	return out, nil
}

// collect returns copies of the matching entries ordered by entry key
func (r *MemoryEntryRepository) collect(match func(*models.Entry) bool) []*models.Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*models.Entry
	for _, e := range r.entries {
		if match(e) {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntryKey() < out[j].EntryKey() })
	return out
}

// HorseNumbersByRace returns each race's horse numbers in ascending order
func (r *MemoryEntryRepository) HorseNumbersByRace(_ context.Context) (map[string][]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string][]int)
	for _, e := range r.entries {
		out[e.RaceKey] = append(out[e.RaceKey], e.HorseNo)
	}
	for _, nos := range out {
		sort.Ints(nos)
	}
	return out, nil
}

// Truncate removes every entry
func (r *MemoryEntryRepository) Truncate(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = make(map[string]*models.Entry)
	return nil
}

// MemoryOddsRepository implements OddsRepository in memory
type MemoryOddsRepository struct {
	mu     sync.RWMutex
	quotes map[string]*models.OddsQuote
}

// NewMemoryOddsRepository creates an empty in-memory odds repository
func NewMemoryOddsRepository() *MemoryOddsRepository {
	return &MemoryOddsRepository{quotes: make(map[string]*models.OddsQuote)}
}

// Upsert merges a quote over the stored one
func (r *MemoryOddsRepository) Upsert(_ context.Context, q *models.OddsQuote) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := models.EntryKey(q.RaceKey, q.HorseNo)
	merged := *models.MergeOddsQuote(r.quotes[key], q)
	merged.UpdatedAt = time.Now().UTC()
	r.quotes[key] = &merged
	return nil
}

// ListByRace returns a race's quotes in horse number order
func (r *MemoryOddsRepository) ListByRace(_ context.Context, raceKey string) ([]*models.OddsQuote, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*models.OddsQuote
	for _, q := range r.quotes {
		if q.RaceKey == raceKey {
			cp := *q
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].HorseNo < out[j].HorseNo })
	return out, nil
}

// Truncate removes every quote
func (r *MemoryOddsRepository) Truncate(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.quotes = make(map[string]*models.OddsQuote)
	return nil
}

// MemoryPassingRepository implements PassingRepository in memory
type MemoryPassingRepository struct {
	mu     sync.RWMutex
	byRace map[string][]models.PassingPosition
}

// NewMemoryPassingRepository creates an empty in-memory passing repository
func NewMemoryPassingRepository() *MemoryPassingRepository {
	return &MemoryPassingRepository{byRace: make(map[string][]models.PassingPosition)}
}

// ReplaceForRace swaps a race's rows. Rows must belong to the race and be
// unique per (horse, corner) and per (corner, position).
func (r *MemoryPassingRepository) ReplaceForRace(_ context.Context, raceKey string, positions []models.PassingPosition) error {
	horseCorner := make(map[[2]int]struct{}, len(positions))
	cornerPos := make(map[[2]int]struct{}, len(positions))
	for _, p := range positions {
		if p.RaceKey != raceKey {
			return fmt.Errorf("passing position for %s in replace of %s", p.RaceKey, raceKey)
		}
		hc := [2]int{p.HorseNo, p.Corner}
		cp := [2]int{p.Corner, p.Position}
		if _, dup := horseCorner[hc]; dup {
			return fmt.Errorf("horse %d corner %d: %w", p.HorseNo, p.Corner, models.ErrDuplicateKey)
		}
		if _, dup := cornerPos[cp]; dup {
			return fmt.Errorf("corner %d position %d: %w", p.Corner, p.Position, models.ErrDuplicateKey)
		}
		horseCorner[hc] = struct{}{}
		cornerPos[cp] = struct{}{}
	}

	rows := make([]models.PassingPosition, len(positions))
	copy(rows, positions)
	sortPositions(rows)

	r.mu.Lock()
	defer r.mu.Unlock()
	if len(rows) == 0 {
		delete(r.byRace, raceKey)
		return nil
	}
	r.byRace[raceKey] = rows
	return nil
}

// ListByRace returns a race's positions ordered by corner then position
func (r *MemoryPassingRepository) ListByRace(_ context.Context, raceKey string) ([]models.PassingPosition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rows := r.byRace[raceKey]
	out := make([]models.PassingPosition, len(rows))
	copy(out, rows)
	return out, nil
}

// ListByRaces returns the positions of several races keyed by race
func (r *MemoryPassingRepository) ListByRaces(ctx context.Context, raceKeys []string) (map[string][]models.PassingPosition, error) {
	out := make(map[string][]models.PassingPosition, len(raceKeys))
	for _, k := range raceKeys {
		rows, _ := r.ListByRace(ctx, k)
		if len(rows) > 0 {
			out[k] = rows
		}
	}
	return out, nil
}

// Truncate removes every passing position
func (r *MemoryPassingRepository) Truncate(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byRace = make(map[string][]models.PassingPosition)
	return nil
}

func sortPositions(rows []models.PassingPosition) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Corner != rows[j].Corner {
			return rows[i].Corner < rows[j].Corner
		}
		return rows[i].Position < rows[j].Position
	})
}

// MemoryFeatureRepository implements FeatureRepository in memory
type MemoryFeatureRepository struct {
	mu        sync.RWMutex
	snapshots map[string]*models.FeatureSnapshot
}

// NewMemoryFeatureRepository creates an empty in-memory feature repository
func NewMemoryFeatureRepository() *MemoryFeatureRepository {
	return &MemoryFeatureRepository{snapshots: make(map[string]*models.FeatureSnapshot)}
}

func featureKey(raceKey, horseID string) string {
	return raceKey + "/" + horseID
}

// Upsert replaces a snapshot whole
func (r *MemoryFeatureRepository) Upsert(_ context.Context, s *models.FeatureSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	cp.UpdatedAt = time.Now().UTC()
	r.snapshots[featureKey(s.RaceKey, s.HorseID)] = &cp
	return nil
}

// Get retrieves one horse's snapshot for a race
func (r *MemoryFeatureRepository) Get(_ context.Context, raceKey, horseID string) (*models.FeatureSnapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.snapshots[featureKey(raceKey, horseID)]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

// ListByRace retrieves every snapshot of a race ordered by horse id
func (r *MemoryFeatureRepository) ListByRace(_ context.Context, raceKey string) ([]*models.FeatureSnapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*models.FeatureSnapshot
	prefix := raceKey + "/"
	for k, s := range r.snapshots {
		if strings.HasPrefix(k, prefix) {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].HorseID < out[j].HorseID })
	return out, nil
}

// Truncate removes every snapshot
func (r *MemoryFeatureRepository) Truncate(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots = make(map[string]*models.FeatureSnapshot)
	return nil
}

// MemoryMasterRepository implements MasterRepository in memory
type MemoryMasterRepository struct {
	mu             sync.RWMutex
	jockeys        map[string]*models.Jockey
	trainers       map[string]*models.Trainer
	jockeyAliases  map[string]map[string]time.Time
	trainerAliases map[string]map[string]time.Time
}

// NewMemoryMasterRepository creates an empty in-memory master repository
func NewMemoryMasterRepository() *MemoryMasterRepository {
	r := &MemoryMasterRepository{}
	r.reset()
	return r
}

func (r *MemoryMasterRepository) reset() {
	r.jockeys = make(map[string]*models.Jockey)
	r.trainers = make(map[string]*models.Trainer)
	r.jockeyAliases = make(map[string]map[string]time.Time)
	r.trainerAliases = make(map[string]map[string]time.Time)
}

// UpsertJockey merges a jockey master row
func (r *MemoryMasterRepository) UpsertJockey(_ context.Context, j *models.Jockey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	merged := *models.MergeJockey(r.jockeys[j.Code], j)
	merged.UpdatedAt = time.Now().UTC()
	r.jockeys[j.Code] = &merged
	return nil
}

// UpsertTrainer merges a trainer master row
func (r *MemoryMasterRepository) UpsertTrainer(_ context.Context, t *models.Trainer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	merged := *models.MergeTrainer(r.trainers[t.Code], t)
	merged.UpdatedAt = time.Now().UTC()
	r.trainers[t.Code] = &merged
	return nil
}

// UpsertJockeyAlias records a short name seen for a jockey code
func (r *MemoryMasterRepository) UpsertJockeyAlias(_ context.Context, code, shortName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	touchAlias(r.jockeyAliases, code, shortName)
	return nil
}

// UpsertTrainerAlias records a short name seen for a trainer code
func (r *MemoryMasterRepository) UpsertTrainerAlias(_ context.Context, code, shortName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	touchAlias(r.trainerAliases, code, shortName)
	return nil
}

func touchAlias(aliases map[string]map[string]time.Time, code, shortName string) {
	names, ok := aliases[code]
	if !ok {
		names = make(map[string]time.Time)
		aliases[code] = names
	}
	names[shortName] = time.Now().UTC()
}

// JockeyAliases returns the short names recorded for a jockey code
func (r *MemoryMasterRepository) JockeyAliases(code string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return aliasNames(r.jockeyAliases[code])
}

// TrainerAliases returns the short names recorded for a trainer code
func (r *MemoryMasterRepository) TrainerAliases(code string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return aliasNames(r.trainerAliases[code])
}

func aliasNames(names map[string]time.Time) []string {
	out := make([]string, 0, len(names))
	for n := range names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// GetJockey retrieves a jockey by code
func (r *MemoryMasterRepository) GetJockey(_ context.Context, code string) (*models.Jockey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	j, ok := r.jockeys[code]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

// GetTrainer retrieves a trainer by code
func (r *MemoryMasterRepository) GetTrainer(_ context.Context, code string) (*models.Trainer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.trainers[code]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

// Truncate removes masters and aliases
func (r *MemoryMasterRepository) Truncate(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reset()
	return nil
}

// MemoryLatestMetricsRepository implements LatestMetricsRepository in memory
type MemoryLatestMetricsRepository struct {
	mu      sync.RWMutex
	metrics map[string]*models.HorseLatestMetrics
}

// NewMemoryLatestMetricsRepository creates an empty in-memory latest metrics repository
func NewMemoryLatestMetricsRepository() *MemoryLatestMetricsRepository {
	return &MemoryLatestMetricsRepository{metrics: make(map[string]*models.HorseLatestMetrics)}
}

// Upsert merges a horse's latest metrics
func (r *MemoryLatestMetricsRepository) Upsert(_ context.Context, m *models.HorseLatestMetrics) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	merged := *models.MergeHorseLatest(r.metrics[m.HorseID], m)
	merged.UpdatedAt = time.Now().UTC()
	r.metrics[m.HorseID] = &merged
	return nil
}

// Get retrieves a horse's latest metrics
func (r *MemoryLatestMetricsRepository) Get(_ context.Context, horseID string) (*models.HorseLatestMetrics, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.metrics[horseID]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

// Truncate removes every horse's latest metrics
func (r *MemoryLatestMetricsRepository) Truncate(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metrics = make(map[string]*models.HorseLatestMetrics)
	return nil
}
