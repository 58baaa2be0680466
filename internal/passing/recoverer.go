package passing

import (
	"errors"
	"fmt"
	"sort"

	"github.com/yourusername/place-better/internal/models"
)

// ErrUnresolved means a telegram could not be attributed or parsed. It is
// never fatal; callers count and skip.
var ErrUnresolved = errors.New("passing order unresolved")

// Reasons a telegram is unresolved. Each wraps ErrUnresolved.
var (
	ErrInvalidStructure = fmt.Errorf("%w: invalid structure", ErrUnresolved)
	ErrNoRaceKey        = fmt.Errorf("%w: no known race key", ErrUnresolved)
	ErrNoEntries        = fmt.Errorf("%w: no known entries", ErrUnresolved)
	ErrNoCorners        = fmt.Errorf("%w: no corner data", ErrUnresolved)
)

// Recovery methods
const (
	MethodToken     = "token"
	MethodBlockScan = "block_scan"
)

// Result is the running order recovered from one telegram. Corners maps a
// corner number to horse numbers in running order.
type Result struct {
	RaceKey string
	Corners map[int][]int
	Method  string
}

// Recoverer applies the recovery heuristics with one fixed Config.
type Recoverer struct {
	cfg   Config
	stats *Stats
}

// NewRecoverer creates a recoverer. Zero config fields take their defaults.
func NewRecoverer(cfg Config) *Recoverer {
	return &Recoverer{
		cfg:   cfg.withDefaults(),
		stats: NewStats(),
	}
}

// Config returns the effective tuning
func (r *Recoverer) Config() Config {
	return r.cfg
}

// Stats returns the recoverer's counters
func (r *Recoverer) Stats() *Stats {
	return r.stats
}

// Recover attributes a decoded RA7 payload to a known race and reads its
// corner orders. Every call is counted in Stats.
func (r *Recoverer) Recover(payload string, idx *RaceIndex) (Result, error) {
	res, outcome, err := r.recover(payload, idx)
	r.stats.Record(outcome)
	return res, err
}

func (r *Recoverer) recover(payload string, idx *RaceIndex) (Result, Outcome, error) {
	runes := []rune(payload)
	if len(runes) < r.cfg.MinPayloadLen {
		return Result{}, OutcomeBadRow, ErrInvalidStructure
	}

	head := runes
	if len(head) > r.cfg.HeadWindow {
		head = head[:r.cfg.HeadWindow]
	}
	var accept func(string) bool
	if r.cfg.StrictDate {
		if date := headerDate(runes); date != "" {
			accept = func(key string) bool { return models.RaceKeyDate(key) == date }
		}
	}
	raceKey, ok := idx.findRaceKey(asciiDigits(head), accept)
	if !ok {
		return Result{}, OutcomeNoRaceKey, ErrNoRaceKey
	}

	res := Result{RaceKey: raceKey}
	if !idx.hasEntries(raceKey) {
		return res, OutcomeNoEntries, fmt.Errorf("%w: race %s", ErrNoEntries, raceKey)
	}

	tail := normalizeTail(runes, r.cfg.TailWindow)
	res.Corners, res.Method = r.tokenCorners(tail, raceKey, idx), MethodToken
	if len(res.Corners) == 0 && r.cfg.BlockScanFallback {
		res.Corners, res.Method = r.blockScanCorners(tail, raceKey, idx), MethodBlockScan
	}
	if len(res.Corners) == 0 {
		res.Method = ""
		return res, OutcomeNoCorners, fmt.Errorf("%w: race %s", ErrNoCorners, raceKey)
	}
	return res, OutcomeRecovered, nil
}

// ToPositions converts a result to passing rows. Ranks start at 1 and stop at
// the field size; horse numbers that are not entrants of the race, or repeat
// within a corner, are dropped.
func ToPositions(res Result, idx *RaceIndex) []models.PassingPosition {
	fieldSize := idx.FieldSize(res.RaceKey)

	corners := make([]int, 0, len(res.Corners))
	for c := range res.Corners {
		if c >= models.FirstCorner && c <= models.LastCorner {
			corners = append(corners, c)
		}
	}
	sort.Ints(corners)

	var rows []models.PassingPosition
	for _, corner := range corners {
		seen := make(map[int]struct{})
		for _, horseNo := range res.Corners[corner] {
			if len(seen) == fieldSize {
				break
			}
			if !idx.IsValidHorse(res.RaceKey, horseNo) {
				continue
			}
			if _, dup := seen[horseNo]; dup {
				continue
			}
			seen[horseNo] = struct{}{}
			rows = append(rows, models.PassingPosition{
				RaceKey:  res.RaceKey,
				HorseNo:  horseNo,
				Corner:   corner,
				Position: len(seen),
			})
		}
	}
	return rows
}
