package optimizer

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/samber/lo"
	"github.com/tradeforge/walkforward/core"
)

// NewTrialRecord converts a trial into its persisted form. Parameters and
// objective values are stored as JSON strings so records stay readable in
// both the key-value and relational backends.
func NewTrialRecord(study string, windowIndex int, trial core.Trial) (*core.TrialRecord, error) {
	params, err := json.Marshal(trial.Params)
	if err != nil {
		return nil, fmt.Errorf("failed to encode params: %w", err)
	}

	values := trial.Values
	if values == nil {
		values = []float64{trial.Value}
	}
	encoded, err := json.Marshal(values)
	if err != nil {
		return nil, fmt.Errorf("failed to encode values: %w", err)
	}

	return &core.TrialRecord{
		Study:       study,
		WindowIndex: windowIndex,
		TrialIndex:  trial.Index,
		Params:      string(params),
		Values:      string(encoded),
		Failed:      trial.Failed,
		SavedAt:     time.Now(),
	}, nil
}

// SaveWindowResultsCSV writes the per-window walk-forward results to a CSV
// file, one row per window plus the aggregate row.
func SaveWindowResultsCSV(summary *core.Summary, filePath string) error {
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"Window", "Best Params", "In-Sample", "Out-of-Sample", "Gap", "Failed Trials"}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, r := range summary.WindowResults {
		row := []string{
			strconv.Itoa(r.WindowIndex + 1),
			r.BestParams.Key(),
			formatMetric(r.InSampleMetric),
			formatMetric(r.OutOfSampleMetric),
			formatMetric(r.Gap),
			strconv.Itoa(r.FailedTrials),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}

	avg := []string{
		"avg",
		summary.RobustParams.Key(),
		formatMetric(summary.AvgInSampleMetric),
		formatMetric(summary.AvgOutOfSampleMetric),
		formatMetric(summary.AvgGap),
		strconv.Itoa(summary.FailedTrials),
	}
	if err := writer.Write(avg); err != nil {
		return fmt.Errorf("failed to write aggregate row: %w", err)
	}

	return nil
}

// SaveFrontCSV writes a non-dominated front to a CSV file, one row per
// trial, with parameter columns in sorted name order.
func SaveFrontCSV(front core.ParetoFront, objectives []string, filePath string) error {
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	paramNames := make(map[string]bool)
	for _, trial := range front {
		for name := range trial.Params {
			paramNames[name] = true
		}
	}
	names := lo.Keys(paramNames)
	sort.Strings(names)

	header := append([]string{"Trial"}, names...)
	header = append(header, objectives...)
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, trial := range front {
		row := []string{strconv.Itoa(trial.Index)}
		for _, name := range names {
			value, exists := trial.Params[name]
			if !exists {
				row = append(row, "")
				continue
			}
			row = append(row, formatParamValue(value))
		}
		for i := range objectives {
			if i < len(trial.Values) {
				row = append(row, formatMetric(trial.Values[i]))
			} else {
				row = append(row, "")
			}
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}

	return nil
}

func formatParamValue(value any) string {
	switch v := value.(type) {
	case int:
		return strconv.Itoa(v)
	case float64:
		return strconv.FormatFloat(v, 'f', 4, 64)
	case bool:
		return strconv.FormatBool(v)
	case string:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}

func formatMetric(value float64) string {
	return strconv.FormatFloat(value, 'f', 4, 64)
}
