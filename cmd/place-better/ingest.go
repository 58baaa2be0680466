package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yourusername/place-better/internal/feed"
)

var (
	ingestFormat   string
	ingestDataSpec string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>",
	Short: "Append raw telegrams from a file",
	Long: `Appends telegrams to the raw store. In lines format each line is one
cp932 payload and its kind is read from the record prefix. In jsonl format
each line is a feed frame with a base64 payload.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", path, err)
		}
		defer f.Close()

		dataSpec := ingestDataSpec
		if dataSpec == "" {
			dataSpec = cfg.Feed.DataSpec
		}

		ingester := feed.NewFileIngester(repos.Telegram, dataSpec, appLogger)
		res, err := ingester.Ingest(cmd.Context(), f, ingestFormat, filepath.Base(path))
		if err != nil {
			return err
		}

		appLogger.WithFields(logrus.Fields{
			"file":     path,
			"format":   ingestFormat,
			"appended": res.Appended,
			"skipped":  res.Skipped,
		}).Info("Ingest finished")
		return nil
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestFormat, "format", feed.FormatLines, "Input format: lines or jsonl")
	ingestCmd.Flags().StringVar(&ingestDataSpec, "dataspec", "", "Data spec recorded on each telegram (defaults to feed.dataspec)")
}
