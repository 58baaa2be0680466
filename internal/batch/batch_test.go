package batch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/place-better/internal/models"
	"github.com/yourusername/place-better/internal/wagering"
)

func f(v float64) *float64 { return &v }

func okRecommendation(raceKey string) *wagering.Recommendation {
	return &wagering.Recommendation{
		RaceKey: raceKey,
		Candidates: []models.BetCandidate{
			{RaceKey: raceKey, HorseNo: 1, Probability: 0.3, OddsUsed: 4.0, Stake: 100, ExpectedValue: 20, EVPerUnit: 0.2},
			{RaceKey: raceKey, HorseNo: 2, Probability: 0.5, OddsUsed: 2.2, Stake: 100, ExpectedValue: 10, EVPerUnit: 0.1},
		},
	}
}

type scriptedProcessor struct {
	mu     sync.Mutex
	calls  []string
	failOn map[string]error
	panics map[string]bool
}

func (p *scriptedProcessor) Process(ctx context.Context, raceKey string) (*wagering.Recommendation, error) {
	p.mu.Lock()
	p.calls = append(p.calls, raceKey)
	p.mu.Unlock()

	if p.panics[raceKey] {
		panic("corrupt row")
	}
	if err := p.failOn[raceKey]; err != nil {
		return nil, err
	}
	return okRecommendation(raceKey), nil
}

func TestRun_IsolatesFailures(t *testing.T) {
	proc := &scriptedProcessor{failOn: map[string]error{"B": errors.New("no entries")}}
	o := NewOrchestrator(proc, Options{Workers: 1}, nil)

	summaries, err := o.Run(context.Background(), []string{"A", "B", "C"})
	require.NoError(t, err)
	require.Len(t, summaries, 3)

	assert.Equal(t, []string{"A", "B", "C"}, []string{summaries[0].RaceKey, summaries[1].RaceKey, summaries[2].RaceKey})
	assert.Equal(t, models.SummaryStatusOK, summaries[0].Status)
	assert.Equal(t, models.SummaryStatusFailed, summaries[1].Status)
	assert.Contains(t, summaries[1].Error, "no entries")
	assert.Contains(t, summaries[1].Error, models.ErrRaceProcessing.Error())
	assert.Equal(t, models.SummaryStatusOK, summaries[2].Status)
	assert.Equal(t, 2, summaries[2].NBets)
}

func TestRun_RecoversPanic(t *testing.T) {
	proc := &scriptedProcessor{panics: map[string]bool{"A": true}}
	o := NewOrchestrator(proc, Options{Workers: 1}, nil)

	summaries, err := o.Run(context.Background(), []string{"A", "B"})
	require.NoError(t, err)
	assert.True(t, summaries[0].Failed())
	assert.Contains(t, summaries[0].Error, "corrupt row")
	assert.False(t, summaries[1].Failed())
	assert.Zero(t, o.Locker().Len())
}

func TestRun_FailFast(t *testing.T) {
	proc := &scriptedProcessor{failOn: map[string]error{"B": errors.New("boom")}}
	o := NewOrchestrator(proc, Options{Workers: 1, FailFast: true}, nil)

	summaries, err := o.Run(context.Background(), []string{"A", "B", "C", "D"})
	require.NoError(t, err)
	require.Len(t, summaries, 4)

	assert.Equal(t, []string{"A", "B"}, proc.calls)
	assert.False(t, summaries[0].Failed())
	assert.True(t, summaries[1].Failed())
	for _, s := range summaries[2:] {
		assert.True(t, s.Failed())
		assert.Contains(t, s.Error, "fail-fast")
	}
}

func TestRun_StoreUnavailableAborts(t *testing.T) {
	proc := &scriptedProcessor{failOn: map[string]error{
		"B": fmt.Errorf("load race: %w", models.ErrStoreUnavailable),
	}}
	o := NewOrchestrator(proc, Options{Workers: 1}, nil)

	summaries, err := o.Run(context.Background(), []string{"A", "B", "C"})
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrStoreUnavailable)
	require.Len(t, summaries, 1)
	assert.Equal(t, "A", summaries[0].RaceKey)
	assert.Equal(t, []string{"A", "B"}, proc.calls)
}

func TestRun_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	proc := RaceProcessorFunc(func(ctx context.Context, raceKey string) (*wagering.Recommendation, error) {
		if raceKey == "B" {
			cancel()
		}
		return okRecommendation(raceKey), nil
	})
	o := NewOrchestrator(proc, Options{Workers: 1}, nil)

	summaries, err := o.Run(ctx, []string{"A", "B", "C"})
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, summaries, 3)
	assert.False(t, summaries[0].Failed())
	assert.False(t, summaries[1].Failed())
	assert.True(t, summaries[2].Failed())
	assert.Contains(t, summaries[2].Error, "not processed")
}

func TestRun_WorkersSerializeSameKey(t *testing.T) {
	var active sync.Map
	var overlap atomic.Bool
	var calls atomic.Int32

	proc := RaceProcessorFunc(func(ctx context.Context, raceKey string) (*wagering.Recommendation, error) {
		calls.Add(1)
		counter, _ := active.LoadOrStore(raceKey, new(atomic.Int32))
		if counter.(*atomic.Int32).Add(1) > 1 {
			overlap.Store(true)
		}
		time.Sleep(5 * time.Millisecond)
		counter.(*atomic.Int32).Add(-1)
		return okRecommendation(raceKey), nil
	})
	o := NewOrchestrator(proc, Options{Workers: 4}, nil)

	keys := []string{"A", "A", "B", "A", "C", "B"}
	summaries, err := o.Run(context.Background(), keys)
	require.NoError(t, err)
	require.Len(t, summaries, len(keys))
	for i, s := range summaries {
		assert.Equal(t, keys[i], s.RaceKey)
		assert.False(t, s.Failed())
	}
	assert.False(t, overlap.Load())
	assert.Equal(t, int32(len(keys)), calls.Load())
}

func TestRun_WorkersIsolateFailures(t *testing.T) {
	proc := &scriptedProcessor{failOn: map[string]error{"B": errors.New("no odds table")}}
	o := NewOrchestrator(proc, Options{Workers: 3}, nil)

	summaries, err := o.Run(context.Background(), []string{"A", "B", "C"})
	require.NoError(t, err)
	assert.Equal(t, []string{"ok", "failed", "ok"}, []string{summaries[0].Status, summaries[1].Status, summaries[2].Status})
}

func TestExecute_Report(t *testing.T) {
	proc := &scriptedProcessor{failOn: map[string]error{"B": errors.New("boom")}}
	o := NewOrchestrator(proc, Options{Workers: 1}, nil)

	report, err := o.Execute(context.Background(), []string{"A", "B"})
	require.NoError(t, err)
	assert.NotEqual(t, [16]byte{}, [16]byte(report.RunID))
	assert.Equal(t, 1, report.OK)
	assert.Equal(t, 1, report.Failed)
	assert.Len(t, report.Summaries, 2)
}

func TestSummarize(t *testing.T) {
	s := Summarize("A", okRecommendation("A"))
	assert.Equal(t, models.SummaryStatusOK, s.Status)
	assert.Equal(t, 2, s.NBets)
	assert.Equal(t, 200, s.TotalStake)
	assert.Equal(t, 30.0, s.SumExpectedValue)
	assert.Equal(t, 0.4, *s.AvgP)
	assert.Equal(t, 3.1, *s.AvgOddsUsed)
	assert.Equal(t, 0.5, *s.MaxP)
	assert.Equal(t, 0.2, *s.MaxEVPerUnit)
	assert.False(t, s.FallbackUsed)
}

func TestSummarize_NoBets(t *testing.T) {
	s := Summarize("A", &wagering.Recommendation{MissingOdds: 3})
	assert.Equal(t, models.SummaryStatusOK, s.Status)
	assert.Zero(t, s.NBets)
	assert.Nil(t, s.AvgP)
	assert.Nil(t, s.AvgOddsUsed)
	assert.Nil(t, s.MaxP)
	assert.Nil(t, s.MaxEVPerUnit)
	assert.Equal(t, 3, s.MissingOdds)
}

func TestSummarize_Fallback(t *testing.T) {
	rec := &wagering.Recommendation{
		Fallback:   true,
		Candidates: []models.BetCandidate{{HorseNo: 2, Probability: 0.7, OddsUsed: 1.1, Stake: 100, ExpectedValue: -23, EVPerUnit: -0.23, Fallback: true}},
	}
	s := Summarize("A", rec)
	assert.True(t, s.FallbackUsed)
	assert.Equal(t, -23.0, s.SumExpectedValue)
	assert.Equal(t, -0.23, *s.MaxEVPerUnit)
}

func TestReadRaceKeys(t *testing.T) {
	input := "\ufeff2024052605021011\n\n# comment\n  2024052605021012  \n2024052605021011\n"
	keys, err := ReadRaceKeys(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []string{"2024052605021011", "2024052605021012"}, keys)
}

func TestWriteReport(t *testing.T) {
	summaries := []models.RaceSummary{
		Summarize("A", okRecommendation("A")),
		models.FailedSummary("B", errors.New("boom")),
	}

	t.Run("jsonl", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, WriteReport(&buf, summaries, FormatJSONL))
		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		require.Len(t, lines, 2)
		var s models.RaceSummary
		require.NoError(t, json.Unmarshal([]byte(lines[1]), &s))
		assert.Equal(t, "boom", s.Error)
		assert.Nil(t, s.AvgP)
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, WriteReport(&buf, summaries, FormatJSON))
		var out []models.RaceSummary
		require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
		assert.Len(t, out, 2)
	})

	t.Run("csv", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, WriteReport(&buf, summaries, FormatCSV))
		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		require.Len(t, lines, 3)
		assert.Equal(t, strings.Join(summaryColumns, ","), lines[0])
		assert.Equal(t, "A,ok,2,200,30,0.4,3.1,0.5,0.2,false,", lines[1])
		assert.Equal(t, "B,failed,0,0,0,,,,,false,boom", lines[2])
	})

	t.Run("table", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, WriteReport(&buf, summaries, FormatTable))
		out := buf.String()
		assert.True(t, strings.HasPrefix(out, "race_key"))
		assert.Contains(t, out, "boom")
	})

	t.Run("unknown", func(t *testing.T) {
		assert.Error(t, WriteReport(&bytes.Buffer{}, summaries, "xml"))
	})
}

func TestWriteCandidates(t *testing.T) {
	candidates := []models.BetCandidate{{HorseNo: 3, Probability: 0.3, OddsMin: f(4), OddsMax: f(5.5), OddsUsed: 4, Stake: 100, ExpectedValue: 20, EVPerUnit: 0.2}}

	var buf bytes.Buffer
	require.NoError(t, WriteCandidates(&buf, candidates, FormatCSV))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "3,0.3,4,5.5,4,0.2,100,20,false", lines[1])

	buf.Reset()
	require.NoError(t, WriteCandidates(&buf, nil, FormatJSON))
	assert.Equal(t, "[]\n", buf.String())
}

func TestKeyLocker(t *testing.T) {
	l := NewKeyLocker()
	unlockA := l.Lock("A")
	unlockB := l.Lock("B")
	assert.Equal(t, 2, l.Len())

	acquired := make(chan struct{})
	go func() {
		unlock := l.Lock("A")
		close(acquired)
		unlock()
	}()

	select {
	case <-acquired:
		t.Fatal("second lock on A acquired while held")
	case <-time.After(20 * time.Millisecond):
	}

	unlockA()
	<-acquired
	unlockB()
	assert.Eventually(t, func() bool { return l.Len() == 0 }, time.Second, time.Millisecond)
}
