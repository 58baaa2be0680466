package passing

import (
	"fmt"
	"sync"
)

// Outcome classifies one processed telegram.
type Outcome string

// Recovery outcomes
const (
	OutcomeRecovered Outcome = "recovered"
	OutcomeNoRaceKey Outcome = "no_race_key"
	OutcomeNoEntries Outcome = "no_entries"
	OutcomeNoCorners Outcome = "no_corners"
	OutcomeBadRow    Outcome = "bad_row"
)

// Counts is a point-in-time copy of the recovery counters.
type Counts struct {
	Processed   int
	Recovered   int
	NoRaceKey   int
	NoEntries   int
	NoCorners   int
	BadRows     int
	RowsEmitted int
}

// Skipped returns the number of structurally valid telegrams that did not resolve.
func (c Counts) Skipped() int {
	return c.NoRaceKey + c.NoEntries + c.NoCorners
}

// Stats tracks recovery outcomes across a pass. Safe for concurrent use.
type Stats struct {
	mu     sync.RWMutex
	counts Counts
}

// NewStats creates an empty tracker
func NewStats() *Stats {
	return &Stats{}
}

// Reset zeroes all counters
func (s *Stats) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts = Counts{}
}

// Record counts one processed telegram
func (s *Stats) Record(outcome Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counts.Processed++
	switch outcome {
	case OutcomeRecovered:
		s.counts.Recovered++
	case OutcomeNoRaceKey:
		s.counts.NoRaceKey++
	case OutcomeNoEntries:
		s.counts.NoEntries++
	case OutcomeNoCorners:
		s.counts.NoCorners++
	case OutcomeBadRow:
		s.counts.BadRows++
	}
}

// AddRowsEmitted counts passing rows handed to storage
func (s *Stats) AddRowsEmitted(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts.RowsEmitted += n
}

// Snapshot returns the current counters
func (s *Stats) Snapshot() Counts {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.counts
}

// String returns a formatted summary
func (s *Stats) String() string {
	c := s.Snapshot()
	return fmt.Sprintf(
		"PassingStats{Processed=%d, Recovered=%d, Rows=%d, Skipped=%d (no_race_key=%d, no_entries=%d, no_corners=%d), BadRows=%d}",
		c.Processed,
		c.Recovered,
		c.RowsEmitted,
		c.Skipped(),
		c.NoRaceKey,
		c.NoEntries,
		c.NoCorners,
		c.BadRows,
	)
}
