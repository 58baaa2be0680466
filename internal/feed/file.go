package feed

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/place-better/internal/logger"
	"github.com/yourusername/place-better/internal/metrics"
	"github.com/yourusername/place-better/internal/models"
	"github.com/yourusername/place-better/internal/repository"
)

// File formats accepted by the file ingester
const (
	FormatLines = "lines"
	FormatJSONL = "jsonl"
)

const (
	defaultBatchSize = 500
	maxLineBytes     = 1 << 20
)

// IngestResult counts one file ingestion
type IngestResult struct {
	Appended int
	Skipped  int
}

// FileIngester appends telegrams read from files in batches
type FileIngester struct {
	store     repository.TelegramStore
	dataSpec  string
	batchSize int
	logger    *logger.IngestLogger
}

// NewFileIngester creates a file ingester. dataSpec labels raw line telegrams.
func NewFileIngester(store repository.TelegramStore, dataSpec string, log *logrus.Logger) *FileIngester {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &FileIngester{
		store:     store,
		dataSpec:  dataSpec,
		batchSize: defaultBatchSize,
		logger:    logger.NewIngestLogger(log),
	}
}

// Ingest reads one telegram per line. In lines format a line is a raw cp932
// payload; in jsonl format it is a Frame. Blank lines and unparseable frames
// are skipped.
func (fi *FileIngester) Ingest(ctx context.Context, r io.Reader, format, source string) (IngestResult, error) {
	if format != FormatLines && format != FormatJSONL {
		return IngestResult{}, fmt.Errorf("unsupported ingest format %q", format)
	}

	var (
		result IngestResult
		batch  []*models.RawTelegram
	)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := fi.store.AppendBatch(ctx, batch); err != nil {
			return fmt.Errorf("failed to append telegrams: %w", err)
		}
		byKind := make(map[string]int)
		for _, t := range batch {
			byKind[t.Kind]++
		}
		for kind, n := range byKind {
			metrics.RecordIngested(kind, source, n)
		}
		result.Appended += len(batch)
		batch = nil
		return nil
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		line := bytes.TrimRight(scanner.Bytes(), "\r")
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		var t *models.RawTelegram
		switch format {
		case FormatLines:
			payload := make([]byte, len(line))
			copy(payload, line)
			t = models.NewRawTelegram("", fi.dataSpec, payload, time.Now().UTC())
		case FormatJSONL:
			frame, err := ParseFrame(line)
			if err != nil {
				result.Skipped++
				fi.logger.LogSkippedRecord("", "invalid_frame", err)
				continue
			}
			t = frame.Telegram(fi.dataSpec)
		}
		if t.Kind == "" {
			result.Skipped++
			fi.logger.LogSkippedRecord("", "unknown_kind", nil)
			continue
		}

		batch = append(batch, t)
		if len(batch) >= fi.batchSize {
			if err := flush(); err != nil {
				return result, err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return result, fmt.Errorf("failed to read %s: %w", source, err)
	}
	if err := flush(); err != nil {
		return result, err
	}

	fi.logger.LogTelegramsAppended(source, result.Appended)
	return result, nil
}
