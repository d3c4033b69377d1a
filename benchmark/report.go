package benchmark

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
)

// LabelStats holds the results for one expected label.
type LabelStats struct {
	Label        string  `json:"label"`
	Samples      int     `json:"samples"`
	Correct      int     `json:"correct"`
	Recognized   int     `json:"recognized"`
	FalseAccepts int     `json:"false_accepts"`
	Errors       int     `json:"errors"`
	Accuracy     float64 `json:"accuracy"`
}

// Report is the outcome of one evaluation run.
type Report struct {
	Name              string        `json:"name"`
	Input             InputKind     `json:"input"`
	Threshold         int8          `json:"threshold"`
	Timestamp         time.Time     `json:"timestamp"`
	Samples           int           `json:"samples"`
	Correct           int           `json:"correct"`
	Errors            int           `json:"errors"`
	Accuracy          float64       `json:"accuracy"`
	Labels            []LabelStats  `json:"labels"`
	TotalDuration     time.Duration `json:"total_duration"`
	InferenceDuration time.Duration `json:"inference_duration"`
	TotalAllocBytes   uint64        `json:"total_alloc_bytes"`
}

// WriteSummary prints a per-label table followed by the totals.
func (r *Report) WriteSummary(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "%-12s %8s %8s %8s %8s %9s\n",
		"label", "samples", "correct", "false+", "errors", "accuracy"); err != nil {
		return err
	}
	for _, l := range r.Labels {
		if _, err := fmt.Fprintf(w, "%-12s %8d %8d %8d %8d %8.2f%%\n",
			l.Label, l.Samples, l.Correct, l.FalseAccepts, l.Errors, l.Accuracy*100); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "%-12s %8d %8d %8s %8d %8.2f%% (threshold %d)\n",
		"total", r.Samples, r.Correct, "", r.Errors, r.Accuracy*100, r.Threshold)
	return err
}

// SaveResults persists all recorded reports to dir as JSON and a CSV summary.
//
// Returns:
//   - string: The JSON results file path.
//   - error: An error if the directory or files cannot be written.
func (s *Suite) SaveResults(dir string) (string, error) {
	results := s.GetResults()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrap(err, "failed to create output directory")
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	resultsFile := filepath.Join(dir, fmt.Sprintf("kws_results_%s.json", timestamp))

	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal results")
	}
	if err := os.WriteFile(resultsFile, data, 0o644); err != nil {
		return "", errors.Wrap(err, "failed to write results file")
	}

	summaryFile := filepath.Join(dir, fmt.Sprintf("kws_summary_%s.csv", timestamp))
	if err := saveSummaryCSV(summaryFile, results); err != nil {
		return "", errors.Wrap(err, "failed to save summary CSV")
	}

	s.log.WithField("results", resultsFile).WithField("summary", summaryFile).Info("results saved")
	return resultsFile, nil
}

func saveSummaryCSV(filename string, results []Report) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	header := "Report,Label,Samples,Correct,False_Accepts,Errors,Accuracy\n"
	if _, err := file.WriteString(header); err != nil {
		return err
	}

	for _, result := range results {
		for _, l := range result.Labels {
			line := fmt.Sprintf("%s,%s,%d,%d,%d,%d,%.4f\n",
				result.Name, l.Label, l.Samples, l.Correct, l.FalseAccepts, l.Errors, l.Accuracy)
			if _, err := file.WriteString(line); err != nil {
				return err
			}
		}
	}

	return nil
}
