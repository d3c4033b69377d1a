// Package benchmark - Accuracy and latency evaluation over labeled sample files.
package benchmark

import (
	"context"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/nvr-ai/go-kws/detector"
	"github.com/nvr-ai/go-kws/models/postprocess"
	"github.com/nvr-ai/go-kws/util"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// InputKind says what a sample file holds.
type InputKind string

const (
	// InputScores marks samples holding one raw score per label.
	InputScores InputKind = "scores"
	// InputFeatures marks samples holding quantized features for the engine.
	InputFeatures InputKind = "features"
)

// Suite runs labeled samples through a detector and collects reports.
type Suite struct {
	detector *detector.Detector
	input    InputKind
	log      logrus.FieldLogger
	mu       sync.RWMutex
	results  []Report
}

// NewSuiteArgs represents the arguments for creating a new evaluation suite.
type NewSuiteArgs struct {
	// Detector decides every sample. It should have no cooldown so repeated
	// keywords are all counted.
	Detector *detector.Detector
	// Input is the sample kind; InputFeatures needs a detector with an engine.
	Input InputKind
	// Logger may be nil.
	Logger logrus.FieldLogger
}

// NewSuite creates a new evaluation suite.
//
// Arguments:
//   - args: The arguments for creating a new evaluation suite.
//
// Returns:
//   - *Suite: The evaluation suite.
//   - error: An error if the detector is missing or the input kind is unknown.
func NewSuite(args NewSuiteArgs) (*Suite, error) {
	if args.Detector == nil {
		return nil, errors.New("detector is required")
	}
	switch args.Input {
	case InputScores, InputFeatures:
	case "":
		args.Input = InputScores
	default:
		return nil, errors.Errorf("unsupported input kind %q", args.Input)
	}
	logger := args.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &Suite{
		detector: args.Detector,
		input:    args.Input,
		log:      logger,
	}, nil
}

// Run evaluates every sample and records the report.
//
// A sample is correct when a keyword label is recognized as itself, or when a
// reserved label is not recognized at all. Samples whose label is not in the
// label table, or that fail to decide, count as errors.
//
// Arguments:
//   - ctx: Checked between samples.
//   - name: Report name.
//   - samples: The labeled samples.
//
// Returns:
//   - *Report: The evaluation report.
//   - error: The context error if cancelled.
func (s *Suite) Run(ctx context.Context, name string, samples []util.SampleFile) (*Report, error) {
	labels := s.detector.Decider().Labels()
	perLabel := make(map[string]*LabelStats)
	report := &Report{
		Name:      name,
		Input:     s.input,
		Threshold: s.detector.Decider().Threshold(),
		Timestamp: time.Now(),
	}

	var startMem runtime.MemStats
	runtime.ReadMemStats(&startMem)
	start := time.Now()

	for _, sample := range samples {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		stats, ok := perLabel[sample.Label]
		if !ok {
			stats = &LabelStats{Label: sample.Label}
			perLabel[sample.Label] = stats
		}
		stats.Samples++
		report.Samples++

		idx, err := labels.GetIndex(sample.Label)
		if err != nil {
			stats.Errors++
			report.Errors++
			s.log.WithField("path", sample.Path).Warn("sample label is not in the label table")
			continue
		}

		event, err := s.decide(ctx, sample.Data)
		if err != nil {
			stats.Errors++
			report.Errors++
			s.log.WithError(err).WithField("path", sample.Path).Warn("sample failed")
			continue
		}
		report.InferenceDuration += event.Took

		decision := event.Decision
		if decision.Recognized {
			stats.Recognized++
		}
		if correct(decision, sample.Label, labels.IsReserved(idx)) {
			stats.Correct++
			report.Correct++
		} else if decision.Recognized {
			stats.FalseAccepts++
		}
	}

	report.TotalDuration = time.Since(start)
	var endMem runtime.MemStats
	runtime.ReadMemStats(&endMem)
	report.TotalAllocBytes = endMem.TotalAlloc - startMem.TotalAlloc

	report.Accuracy = ratio(report.Correct, report.Samples)
	for _, stats := range perLabel {
		stats.Accuracy = ratio(stats.Correct, stats.Samples)
		report.Labels = append(report.Labels, *stats)
	}
	sort.Slice(report.Labels, func(i, j int) bool {
		return report.Labels[i].Label < report.Labels[j].Label
	})

	s.mu.Lock()
	s.results = append(s.results, *report)
	s.mu.Unlock()

	s.log.WithFields(logrus.Fields{
		"report":   name,
		"samples":  report.Samples,
		"accuracy": report.Accuracy,
		"errors":   report.Errors,
	}).Info("evaluation completed")

	return report, nil
}

func (s *Suite) decide(ctx context.Context, data []int8) (detector.Event, error) {
	if s.input == InputFeatures {
		return s.detector.DetectQuantized(ctx, data)
	}
	return s.detector.Process(ctx, data)
}

func correct(decision postprocess.Decision, label string, reserved bool) bool {
	if reserved {
		return !decision.Recognized
	}
	return decision.Recognized && decision.Label == label
}

func ratio(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d)
}

// GetResults returns all reports recorded so far.
func (s *Suite) GetResults() []Report {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]Report, len(s.results))
	copy(results, s.results)
	return results
}
