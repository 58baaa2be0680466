package service

import (
	"fmt"
	"sync"
	"time"
)

// NormalizationMetrics tracks the outcome counters of a normalization pass
type NormalizationMetrics struct {
	mu               sync.RWMutex
	StartTime        time.Time
	Duration         time.Duration
	Records          int
	Races            int
	Entries          int
	Odds             int
	Masters          int
	NotApplicable    int
	Malformed        int
	InvalidOdds      int
	ValidationErrors int
	Ungraded         int
	LatestMetrics    int
	Errors           int
}

// NewNormalizationMetrics creates a new metrics tracker
func NewNormalizationMetrics() *NormalizationMetrics {
	return &NormalizationMetrics{
		StartTime: time.Now(),
	}
}

// Reset resets all counters
func (m *NormalizationMetrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.StartTime = time.Now()
	m.Duration = 0
	for _, c := range []*int{
		&m.Records, &m.Races, &m.Entries, &m.Odds, &m.Masters, &m.NotApplicable,
		&m.Malformed, &m.InvalidOdds, &m.ValidationErrors, &m.Ungraded, &m.LatestMetrics, &m.Errors,
	} {
		*c = 0
	}
}

func (m *NormalizationMetrics) add(counter *int, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	*counter += n
}

// RecordRecord counts one telegram read from the store
func (m *NormalizationMetrics) RecordRecord() { m.add(&m.Records, 1) }

// RecordRace counts a race written
func (m *NormalizationMetrics) RecordRace() { m.add(&m.Races, 1) }

// RecordEntry counts an entry written
func (m *NormalizationMetrics) RecordEntry() { m.add(&m.Entries, 1) }

// RecordOdds counts odds quotes written
func (m *NormalizationMetrics) RecordOdds(n int) { m.add(&m.Odds, n) }

// RecordMaster counts a jockey or trainer written
func (m *NormalizationMetrics) RecordMaster() { m.add(&m.Masters, 1) }

// RecordNotApplicable counts a telegram the decoder did not accept
func (m *NormalizationMetrics) RecordNotApplicable() { m.add(&m.NotApplicable, 1) }

// RecordMalformed counts malformed numeric sub-fields
func (m *NormalizationMetrics) RecordMalformed(n int) { m.add(&m.Malformed, n) }

// RecordInvalidOdds counts odds slots rejected for an inverted range
func (m *NormalizationMetrics) RecordInvalidOdds(n int) { m.add(&m.InvalidOdds, n) }

// RecordValidationError counts an entity rejected by validation
func (m *NormalizationMetrics) RecordValidationError() { m.add(&m.ValidationErrors, 1) }

// RecordUngraded counts a record dropped by the graded-only filter
func (m *NormalizationMetrics) RecordUngraded() { m.add(&m.Ungraded, 1) }

// RecordLatestMetrics counts rebuilt horse metrics
func (m *NormalizationMetrics) RecordLatestMetrics(n int) { m.add(&m.LatestMetrics, n) }

// RecordError counts any other failure
func (m *NormalizationMetrics) RecordError() { m.add(&m.Errors, 1) }

// Finish stamps the pass duration
func (m *NormalizationMetrics) Finish() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Duration = time.Since(m.StartTime)
}

// Counts returns the counters keyed by log field name
func (m *NormalizationMetrics) Counts() map[string]int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]int{
		"records":           m.Records,
		"races":             m.Races,
		"entries":           m.Entries,
		"odds":              m.Odds,
		"masters":           m.Masters,
		"not_applicable":    m.NotApplicable,
		"malformed_fields":  m.Malformed,
		"invalid_odds":      m.InvalidOdds,
		"validation_errors": m.ValidationErrors,
		"ungraded":          m.Ungraded,
		"latest_metrics":    m.LatestMetrics,
		"errors":            m.Errors,
	}
}

// String returns a formatted string representation of metrics
func (m *NormalizationMetrics) String() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return fmt.Sprintf(
		"NormalizationMetrics{Records=%d, Races=%d, Entries=%d, Odds=%d, Masters=%d, NotApplicable=%d, Malformed=%d, InvalidOdds=%d, ValidationErrors=%d, Errors=%d, Duration=%v}",
		m.Records,
		m.Races,
		m.Entries,
		m.Odds,
		m.Masters,
		m.NotApplicable,
		m.Malformed,
		m.InvalidOdds,
		m.ValidationErrors,
		m.Errors,
		m.Duration,
	)
}
