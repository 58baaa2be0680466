package batch

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/yourusername/place-better/internal/models"
)

// Report formats
const (
	FormatJSONL = "jsonl"
	FormatJSON  = "json"
	FormatTable = "table"
	FormatCSV   = "csv"
)

var summaryColumns = []string{
	"race_key", "status", "n_bets", "total_stake", "sum_expected_value",
	"avg_p", "avg_odds_used", "max_p", "max_ev_per_unit", "fallback_used", "error",
}

var candidateColumns = []string{
	"horse_no", "p_place", "place_odds_min", "place_odds_max", "place_odds_used",
	"ev_per_1unit", "stake", "expected_value", "fallback",
}

// ReadRaceKeys reads one race key per line. Blank lines and lines starting
// with '#' are skipped; duplicates keep their first position.
func ReadRaceKeys(r io.Reader) ([]string, error) {
	var keys []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		key := strings.TrimSpace(strings.TrimPrefix(scanner.Text(), "\ufeff"))
		if key == "" || strings.HasPrefix(key, "#") || seen[key] {
			continue
		}
		seen[key] = true
		keys = append(keys, key)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read race keys: %w", err)
	}
	return keys, nil
}

// WriteReport writes summaries in the given format
func WriteReport(w io.Writer, summaries []models.RaceSummary, format string) error {
	switch format {
	case FormatJSONL, "":
		return writeJSONLines(w, summaries)
	case FormatJSON:
		return writeJSON(w, summaries)
	case FormatTable:
		return writeTable(w, summaryColumns, summaryRecords(summaries))
	case FormatCSV:
		return writeCSV(w, summaryColumns, summaryRecords(summaries))
	default:
		return fmt.Errorf("unsupported report format %q", format)
	}
}

// WriteCandidates writes one race's candidates in the given format
func WriteCandidates(w io.Writer, candidates []models.BetCandidate, format string) error {
	switch format {
	case FormatJSONL, "":
		return writeJSONLines(w, candidates)
	case FormatJSON:
		return writeJSON(w, candidates)
	case FormatTable:
		return writeTable(w, candidateColumns, candidateRecords(candidates))
	case FormatCSV:
		return writeCSV(w, candidateColumns, candidateRecords(candidates))
	default:
		return fmt.Errorf("unsupported report format %q", format)
	}
}

func writeJSONLines[T any](w io.Writer, items []T) error {
	enc := json.NewEncoder(w)
	for i := range items {
		if err := enc.Encode(items[i]); err != nil {
			return fmt.Errorf("failed to encode report line: %w", err)
		}
	}
	return nil
}

func writeJSON[T any](w io.Writer, items []T) error {
	if items == nil {
		items = []T{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(items); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return nil
}

func writeTable(w io.Writer, header []string, records [][]string) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for _, rec := range records {
		fmt.Fprintln(tw, strings.Join(rec, "\t"))
	}
	return tw.Flush()
}

func writeCSV(w io.Writer, header []string, records [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	if err := cw.WriteAll(records); err != nil {
		return fmt.Errorf("failed to write csv report: %w", err)
	}
	return nil
}

func summaryRecords(summaries []models.RaceSummary) [][]string {
	out := make([][]string, len(summaries))
	for i, s := range summaries {
		out[i] = []string{
			s.RaceKey,
			s.Status,
			strconv.Itoa(s.NBets),
			strconv.Itoa(s.TotalStake),
			formatFloat(s.SumExpectedValue),
			formatOptional(s.AvgP),
			formatOptional(s.AvgOddsUsed),
			formatOptional(s.MaxP),
			formatOptional(s.MaxEVPerUnit),
			strconv.FormatBool(s.FallbackUsed),
			s.Error,
		}
	}
	return out
}

func candidateRecords(candidates []models.BetCandidate) [][]string {
	out := make([][]string, len(candidates))
	for i, c := range candidates {
		out[i] = []string{
			strconv.Itoa(c.HorseNo),
			formatFloat(c.Probability),
			formatOptional(c.OddsMin),
			formatOptional(c.OddsMax),
			formatFloat(c.OddsUsed),
			formatFloat(c.EVPerUnit),
			strconv.Itoa(c.Stake),
			formatFloat(c.ExpectedValue),
			strconv.FormatBool(c.Fallback),
		}
	}
	return out
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatOptional(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}
