package logger

import (
	"time"

	"github.com/sirupsen/logrus"
)

// IngestLogger provides dedicated logging for telegram ingestion, decoding
// and passing recovery.
type IngestLogger struct {
	*logrus.Entry
}

// NewIngestLogger creates a new ingest logger.
func NewIngestLogger(baseLogger *logrus.Logger) *IngestLogger {
	return &IngestLogger{
		Entry: baseLogger.WithField("component", "ingest"),
	}
}

// LogTelegramsAppended logs a batch of telegrams written to the store.
func (il *IngestLogger) LogTelegramsAppended(source string, count int) {
	il.WithFields(logrus.Fields{
		"source":    source,
		"telegrams": count,
	}).Info("Telegrams appended")
}

// LogSkippedRecord logs a record skipped during decoding.
func (il *IngestLogger) LogSkippedRecord(kind, reason string, err error) {
	entry := il.WithFields(logrus.Fields{
		"kind":   kind,
		"reason": reason,
	})
	if err != nil {
		entry = entry.WithError(err)
	}
	entry.Debug("Record skipped")
}

// LogNormalizationSummary logs the counters of a normalization pass.
func (il *IngestLogger) LogNormalizationSummary(counts map[string]int, duration time.Duration) {
	fields := logrus.Fields{"duration_ms": duration.Milliseconds()}
	for k, v := range counts {
		fields[k] = v
	}
	il.WithFields(fields).Info("Normalization pass completed")
}

// LogRecoverySummary logs the outcome counters of a passing recovery pass.
func (il *IngestLogger) LogRecoverySummary(records, recovered, rowsEmitted int, skipped map[string]int, duration time.Duration) {
	fields := logrus.Fields{
		"records":      records,
		"recovered":    recovered,
		"rows_emitted": rowsEmitted,
		"duration_ms":  duration.Milliseconds(),
	}
	for reason, n := range skipped {
		fields["skipped_"+reason] = n
	}
	il.WithFields(fields).Info("Passing recovery completed")
}

// LogFeedConnection logs a feed connection state change.
func (il *IngestLogger) LogFeedConnection(url string, connected bool, err error) {
	entry := il.WithFields(logrus.Fields{
		"url":       url,
		"connected": connected,
	})
	if err != nil {
		entry.WithError(err).Warn("Feed connection lost")
		return
	}
	entry.Info("Feed connection state changed")
}
