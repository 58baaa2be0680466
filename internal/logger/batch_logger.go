package logger

import (
	"time"

	"github.com/sirupsen/logrus"
)

// BatchLogger provides dedicated logging for batch recommendation runs.
type BatchLogger struct {
	*logrus.Entry
}

// NewBatchLogger creates a new batch logger.
func NewBatchLogger(baseLogger *logrus.Logger) *BatchLogger {
	return &BatchLogger{
		Entry: baseLogger.WithField("component", "batch"),
	}
}

// LogRunStart logs the start of a batch run.
func (bl *BatchLogger) LogRunStart(runID string, races, workers int, failFast bool) {
	bl.WithFields(logrus.Fields{
		"run_id":    runID,
		"races":     races,
		"workers":   workers,
		"fail_fast": failFast,
	}).Info("Batch run started")
}

// LogRaceFailure logs one race's failure.
func (bl *BatchLogger) LogRaceFailure(raceKey string, err error) {
	bl.WithFields(logrus.Fields{
		"race_key": raceKey,
	}).WithError(err).Error("Race processing failed")
}

// LogRunSummary logs the end of a batch run.
func (bl *BatchLogger) LogRunSummary(runID string, ok, failed int, duration time.Duration) {
	entry := bl.WithFields(logrus.Fields{
		"run_id":      runID,
		"ok":          ok,
		"failed":      failed,
		"duration_ms": duration.Milliseconds(),
	})
	if failed > 0 {
		entry.Warn("Batch run completed with failures")
		return
	}
	entry.Info("Batch run completed")
}
