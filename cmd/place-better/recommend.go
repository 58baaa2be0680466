package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/yourusername/place-better/internal/batch"
	"github.com/yourusername/place-better/internal/logger"
	"github.com/yourusername/place-better/internal/ml"
	"github.com/yourusername/place-better/internal/service"
	"github.com/yourusername/place-better/internal/wagering"
)

var (
	raceKey      string
	predDir      string
	outputFormat string
	outputPath   string

	presetName    string
	oddsSelection string
	ranking       string
	minEV         float64
	minP          float64
	maxOdds       float64
	stake         int
	maxBets       int

	batchKeysFile string
	batchFailFast bool
	batchWorkers  int
)

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Recommend place bets for one race",
	RunE: func(cmd *cobra.Command, args []string) error {
		processor, err := newRaceProcessor(cmd.Flags())
		if err != nil {
			return err
		}

		rec, err := processor.Process(cmd.Context(), raceKey)
		if err != nil {
			return err
		}

		w, closeOut, err := openOutput(outputPath)
		if err != nil {
			return err
		}
		defer closeOut()
		return batch.WriteCandidates(w, rec.Candidates, outputFormat)
	},
}

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Recommend place bets for every race in a keys file",
	RunE: func(cmd *cobra.Command, args []string) error {
		keys, err := readRaceKeys(batchKeysFile)
		if err != nil {
			return err
		}
		processor, err := newRaceProcessor(cmd.Flags())
		if err != nil {
			return err
		}

		opts := batch.Options{Workers: cfg.Batch.Workers, FailFast: cfg.Batch.FailFast}
		if cmd.Flags().Changed("workers") {
			opts.Workers = batchWorkers
		}
		if cmd.Flags().Changed("fail-fast") {
			opts.FailFast = batchFailFast
		}

		report, runErr := batch.NewOrchestrator(processor, opts, appLogger).Execute(cmd.Context(), keys)
		if report != nil {
			if err := writeBatchReport(report); err != nil {
				return err
			}
		}
		return runErr
	},
}

func init() {
	for _, c := range []*cobra.Command{recommendCmd, batchCmd} {
		f := c.Flags()
		f.StringVar(&predDir, "pred-dir", "", "Read predictions from pred_<race_key>.json files in this directory")
		f.StringVarP(&outputPath, "out", "o", "", "Output file (default stdout, or batch.report_path)")
		f.StringVar(&presetName, "preset", "", "Policy preset (balance, safe, value or a presets file name)")
		f.StringVar(&oddsSelection, "odds", "", "Odds used for EV: min, max or mid")
		f.StringVar(&ranking, "rank", "", "Ranking: p, ev or ev_then_p")
		f.Float64Var(&minEV, "min-ev", 0, "Minimum expected value per unit stake")
		f.Float64Var(&minP, "min-p", 0, "Minimum place probability")
		f.Float64Var(&maxOdds, "max-odds", 0, "Maximum odds used")
		f.IntVar(&stake, "stake", 0, "Stake per bet")
		f.IntVar(&maxBets, "max-bets", 0, "Maximum bets per race")
	}

	recommendCmd.Flags().StringVar(&raceKey, "race-key", "", "16 digit race key")
	recommendCmd.Flags().StringVar(&outputFormat, "format", batch.FormatTable, "Output format: jsonl, json, table or csv")
	_ = recommendCmd.MarkFlagRequired("race-key")

	batchCmd.Flags().StringVar(&batchKeysFile, "race-keys", "", "File with one race key per line")
	batchCmd.Flags().BoolVar(&batchFailFast, "fail-fast", false, "Stop at the first failed race")
	batchCmd.Flags().IntVar(&batchWorkers, "workers", 1, "Races processed concurrently")
	_ = batchCmd.MarkFlagRequired("race-keys")
}

func newRaceProcessor(flags *pflag.FlagSet) (*service.RaceProcessor, error) {
	policy, err := resolvePolicy(flags)
	if err != nil {
		return nil, err
	}
	predictor, err := newPredictor()
	if err != nil {
		return nil, err
	}
	return service.NewRaceProcessor(repos, newBuilder(), predictor, policy, appLogger), nil
}

// resolvePolicy layers command flags over the wagering config, then the
// preset, then the engine defaults.
func resolvePolicy(flags *pflag.FlagSet) (wagering.Policy, error) {
	presets := wagering.DefaultPresets()
	if cfg.Wagering.PresetsFile != "" {
		var err error
		if presets, err = wagering.LoadPresets(cfg.Wagering.PresetsFile); err != nil {
			return wagering.Policy{}, err
		}
	}

	name := cfg.Wagering.Preset
	if flags.Changed("preset") {
		name = presetName
	}
	preset, err := presets.Lookup(name)
	if err != nil {
		return wagering.Policy{}, err
	}

	p := wagering.PolicyFromConfig(&cfg.Wagering)
	if flags.Changed("odds") {
		p.OddsSelection = wagering.OddsSelection(oddsSelection)
	}
	if flags.Changed("rank") {
		p.Ranking = wagering.Ranking(ranking)
	}
	if flags.Changed("min-ev") {
		p.MinExpectedValue = &minEV
	}
	if flags.Changed("min-p") {
		p.MinProbability = &minP
	}
	if flags.Changed("max-odds") {
		p.MaxOddsUsed = &maxOdds
	}
	if flags.Changed("stake") {
		p.StakePerBet = stake
	}
	if flags.Changed("max-bets") {
		p.MaxBetCount = maxBets
	}

	policy := wagering.Resolve(p, preset)
	if err := policy.Validate(); err != nil {
		return wagering.Policy{}, err
	}
	logger.NewWageringLogger(appLogger).LogPolicy(name, string(policy.OddsSelection), string(policy.Ranking),
		policy.MinExpectedValue, policy.MinProbability, policy.MaxOddsUsed, policy.StakePerBet, policy.MaxBetCount)
	return policy, nil
}

// newPredictor prefers a prediction directory over the model server. Either
// is wrapped in the prediction cache when a TTL is configured.
func newPredictor() (ml.Predictor, error) {
	dir := cfg.Predictor.PredictionDir
	if predDir != "" {
		dir = predDir
	}
	if dir != "" {
		return ml.NewFilePredictor(dir), nil
	}

	if cfg.Predictor.URL == "" {
		return nil, fmt.Errorf("no predictor configured: set predictor.url or --pred-dir")
	}
	httpPredictor, err := ml.NewHTTPPredictor(ml.HTTPPredictorConfigFrom(&cfg.Predictor), appLogger)
	if err != nil {
		return nil, err
	}
	if cfg.Predictor.CacheTTLSeconds <= 0 {
		return httpPredictor, nil
	}
	cache := ml.NewPredictionCache(cfg.PredictorCacheTTL(), cfg.Predictor.CacheMaxSize)
	return ml.NewCachedPredictor(httpPredictor, cache, httpPredictor.ModelVersion(), appLogger), nil
}

func writeBatchReport(report *batch.Report) error {
	path := outputPath
	if path == "" {
		path = cfg.Batch.ReportPath
	}
	w, closeOut, err := openOutput(path)
	if err != nil {
		return err
	}
	defer closeOut()
	return batch.WriteReport(w, report.Summaries, cfg.Batch.ReportFormat)
}

func openOutput(path string) (io.Writer, func(), error) {
	if path == "" || path == "-" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create %s: %w", path, err)
	}
	return f, func() { _ = f.Close() }, nil
}
