package optimizer

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tradeforge/walkforward/core"
)

func TestNewTrialRecord(t *testing.T) {
	trial := core.Trial{
		Index:  3,
		Params: core.ParamSet{"fast_period": 9, "slow_period": 21},
		Value:  1.25,
	}

	record, err := NewTrialRecord("alpha", 2, trial)
	require.NoError(t, err)

	assert.Equal(t, "alpha", record.Study)
	assert.Equal(t, 2, record.WindowIndex)
	assert.Equal(t, 3, record.TrialIndex)
	assert.False(t, record.Failed)
	assert.False(t, record.SavedAt.IsZero())

	var params map[string]float64
	require.NoError(t, json.Unmarshal([]byte(record.Params), &params))
	assert.Equal(t, 9.0, params["fast_period"])

	var values []float64
	require.NoError(t, json.Unmarshal([]byte(record.Values), &values))
	assert.Equal(t, []float64{1.25}, values)
}

func TestNewTrialRecordMultiObjective(t *testing.T) {
	trial := core.Trial{
		Index:  0,
		Params: core.ParamSet{"x": 1},
		Values: []float64{1.0, 0.1},
	}

	record, err := NewTrialRecord("pareto", 0, trial)
	require.NoError(t, err)

	var values []float64
	require.NoError(t, json.Unmarshal([]byte(record.Values), &values))
	assert.Equal(t, []float64{1.0, 0.1}, values)
}

func TestSaveWindowResultsCSV(t *testing.T) {
	summary := &core.Summary{
		WindowCount:          1,
		AvgInSampleMetric:    1.5,
		AvgOutOfSampleMetric: 1.2,
		AvgGap:               0.3,
		RobustParams:         core.ParamSet{"x": 5},
		WindowResults: []core.WindowResult{
			{WindowIndex: 0, BestParams: core.ParamSet{"x": 5}, InSampleMetric: 1.5, OutOfSampleMetric: 1.2, Gap: 0.3},
		},
	}

	path := filepath.Join(t.TempDir(), "results.csv")
	require.NoError(t, SaveWindowResultsCSV(summary, path))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "Window")
	assert.Contains(t, string(content), "{x: 5}")
	assert.Contains(t, string(content), "1.5000")
}

func TestSaveFrontCSV(t *testing.T) {
	front := core.ParetoFront{
		{Index: 0, Params: core.ParamSet{"x": 1}, Values: []float64{1.0, 0.1}},
		{Index: 1, Params: core.ParamSet{"x": 2}, Values: []float64{0.8, 0.05}},
	}

	path := filepath.Join(t.TempDir(), "front.csv")
	require.NoError(t, SaveFrontCSV(front, []string{"total_return", "max_drawdown"}, path))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "total_return")
	assert.Contains(t, string(content), "0.0500")
}
