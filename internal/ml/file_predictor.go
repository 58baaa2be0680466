package ml

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/yourusername/place-better/internal/features"
	"github.com/yourusername/place-better/internal/metrics"
)

// horseNo accepts both 3 and "03"
type horseNo int

func (h *horseNo) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("invalid horse_no %s", b)
	}
	*h = horseNo(n)
	return nil
}

type filePrediction struct {
	HorseNo horseNo `json:"horse_no"`
	PPlace  float64 `json:"p_place"`
}

// FilePredictor reads precomputed predictions from a directory. A race is
// read from pred_<race_key>.json (a JSON array) or <race_key>.jsonl.
type FilePredictor struct {
	dir string
}

// NewFilePredictor creates a predictor over dir
func NewFilePredictor(dir string) *FilePredictor {
	return &FilePredictor{dir: dir}
}

// Predict maps the stored probabilities onto rows by horse number. Horses
// missing from the file get NoPrediction and are counted.
func (p *FilePredictor) Predict(ctx context.Context, rows []features.FeatureRow) ([]float64, error) {
	if len(rows) == 0 {
		return []float64{}, nil
	}
	raceKey := rows[0].RaceKey

	preds, err := p.load(raceKey)
	if err != nil {
		return nil, err
	}
	byHorse := make(map[int]float64, len(preds))
	for _, pr := range preds {
		byHorse[int(pr.HorseNo)] = pr.PPlace
	}

	out := make([]float64, len(rows))
	missing := 0
	for i, r := range rows {
		v, ok := byHorse[r.HorseNo]
		if !ok {
			out[i] = NoPrediction
			missing++
			continue
		}
		out[i] = v
	}
	if missing > 0 {
		metrics.RecordMissingPredictions("file", missing)
	}
	return out, nil
}

func (p *FilePredictor) load(raceKey string) ([]filePrediction, error) {
	jsonPath := filepath.Join(p.dir, "pred_"+raceKey+".json")
	data, err := os.ReadFile(jsonPath)
	if err == nil {
		var preds []filePrediction
		if err := json.Unmarshal(data, &preds); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidPrediction, jsonPath, err)
		}
		return preds, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read %s: %w", jsonPath, err)
	}

	linesPath := filepath.Join(p.dir, raceKey+".jsonl")
	data, err = os.ReadFile(linesPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("prediction file not found for %s in %s", raceKey, p.dir)
		}
		return nil, fmt.Errorf("failed to read %s: %w", linesPath, err)
	}

	var preds []filePrediction
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for line := 1; scanner.Scan(); line++ {
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 {
			continue
		}
		var pr filePrediction
		if err := json.Unmarshal(text, &pr); err != nil {
			return nil, fmt.Errorf("%w: %s line %d: %v", ErrInvalidPrediction, linesPath, line, err)
		}
		preds = append(preds, pr)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", linesPath, err)
	}
	return preds, nil
}
