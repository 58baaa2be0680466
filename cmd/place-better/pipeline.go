package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yourusername/place-better/internal/batch"
	"github.com/yourusername/place-better/internal/features"
	"github.com/yourusername/place-better/internal/models"
	"github.com/yourusername/place-better/internal/service"
)

var (
	normalizeRebuild    bool
	normalizeGradedOnly bool
	normalizeSince      string

	passingTailLen int
	passingWorkers int

	featuresKeysFile string
	featuresLookback int

	exportOut      string
	exportS3       bool
	exportKeysFile string
)

var normalizeCmd = &cobra.Command{
	Use:   "normalize",
	Short: "Decode raw telegrams into races, entries, odds and masters",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := service.NormalizeOptions{Rebuild: normalizeRebuild, GradedOnly: normalizeGradedOnly}
		if normalizeSince != "" {
			since, err := time.Parse(time.RFC3339, normalizeSince)
			if err != nil {
				return fmt.Errorf("invalid --since: %w", err)
			}
			opts.Since = since
		}

		m, err := service.NewNormalizationService(repos, appLogger).Run(cmd.Context(), opts)
		if err != nil {
			return err
		}
		fmt.Println(m.String())
		return nil
	},
}

var passingCmd = &cobra.Command{
	Use:   "passing",
	Short: "Recover corner passing orders from RA7 telegrams",
	RunE: func(cmd *cobra.Command, args []string) error {
		tuning := service.PassingConfigFrom(&cfg.Passing)
		if passingTailLen > 0 {
			tuning.TailWindow = passingTailLen
		}
		workers := cfg.Passing.Workers
		if passingWorkers > 0 {
			workers = passingWorkers
		}

		counts, err := service.NewPassingService(repos, tuning, workers, appLogger).Run(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("processed=%d recovered=%d no_race_key=%d no_entries=%d no_corners=%d bad_rows=%d rows=%d\n",
			counts.Processed, counts.Recovered, counts.NoRaceKey, counts.NoEntries,
			counts.NoCorners, counts.BadRows, counts.RowsEmitted)
		return nil
	},
}

var featuresCmd = &cobra.Command{
	Use:   "features",
	Short: "Aggregate historical feature snapshots",
	RunE: func(cmd *cobra.Command, args []string) error {
		var keys []string
		if featuresKeysFile != "" {
			var err error
			if keys, err = readRaceKeys(featuresKeysFile); err != nil {
				return err
			}
		}
		lookback := cfg.Features.LookbackN
		if featuresLookback > 0 {
			lookback = featuresLookback
		}

		n, err := service.NewFeatureService(repos, lookback, appLogger).Run(cmd.Context(), keys)
		if err != nil {
			return err
		}
		fmt.Printf("snapshots=%d\n", n)
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write labelled feature rows as a Parquet training file",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		keys, err := exportKeys(ctx)
		if err != nil {
			return err
		}
		rows, err := collectRows(ctx, newBuilder(), keys)
		if err != nil {
			return err
		}
		rows = features.LabelledOnly(rows)

		var buf bytes.Buffer
		size, err := features.ExportParquet(rows, &buf)
		if err != nil {
			return err
		}
		if err := os.WriteFile(exportOut, buf.Bytes(), 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", exportOut, err)
		}
		log := appLogger.WithFields(logrus.Fields{"file": exportOut, "rows": len(rows), "bytes": size})

		if exportS3 {
			uploader, err := features.NewS3Uploader(ctx, cfg.Export.S3Region, cfg.Export.S3Bucket, cfg.Export.S3Prefix)
			if err != nil {
				return err
			}
			key, err := uploader.Upload(ctx, filepath.Base(exportOut), buf.Bytes())
			if err != nil {
				return err
			}
			log = log.WithField("s3_key", key)
		}
		log.Info("Training export written")
		return nil
	},
}

func init() {
	normalizeCmd.Flags().BoolVar(&normalizeRebuild, "rebuild", false, "Truncate derived tables before decoding")
	normalizeCmd.Flags().BoolVar(&normalizeGradedOnly, "graded-only", false, "Keep graded races only")
	normalizeCmd.Flags().StringVar(&normalizeSince, "since", "", "Skip telegrams received before this RFC3339 time")

	passingCmd.Flags().IntVar(&passingTailLen, "tail-len", 0, "Trailing characters searched for corner tokens (overrides passing.tail_window)")
	passingCmd.Flags().IntVar(&passingWorkers, "workers", 0, "Recovery workers (overrides passing.workers)")

	featuresCmd.Flags().StringVar(&featuresKeysFile, "race-keys", "", "File of race keys to aggregate (default all races)")
	featuresCmd.Flags().IntVar(&featuresLookback, "lookback", 0, "Past races per horse (overrides features.lookback_n)")

	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "training.parquet", "Output Parquet file")
	exportCmd.Flags().BoolVar(&exportS3, "s3", false, "Also upload the file to export.s3_bucket")
	exportCmd.Flags().StringVar(&exportKeysFile, "race-keys", "", "File of race keys to export (default all races)")
}

func newBuilder() *features.Builder {
	exts, err := features.ParseExtensions(cfg.Features.Extensions)
	if err != nil {
		// config validation already restricts the names
		appLogger.WithError(err).Warn("Ignoring feature extensions")
		exts = nil
	}
	return features.NewBuilder(repos, features.WithLookback(cfg.Features.LookbackN), features.WithExtensions(exts...))
}

func exportKeys(ctx context.Context) ([]string, error) {
	if exportKeysFile != "" {
		return readRaceKeys(exportKeysFile)
	}
	return repos.Race.ListKeys(ctx)
}

func collectRows(ctx context.Context, builder *features.Builder, keys []string) ([]features.FeatureRow, error) {
	var rows []features.FeatureRow
	for _, key := range keys {
		raceRows, err := builder.BuildRaceRows(ctx, key)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				appLogger.WithField("race_key", key).Warn("Race not found, skipping export")
				continue
			}
			return nil, err
		}
		rows = append(rows, raceRows...)
	}
	return rows, nil
}

func readRaceKeys(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open race keys %s: %w", path, err)
	}
	defer f.Close()
	return batch.ReadRaceKeys(f)
}
