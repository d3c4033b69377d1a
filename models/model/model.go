// Package model - Calibration bundle and tensor shape of a keyword-spotting model.
package model

import (
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

// Feature and tensor dimensions of the speech commands model.
const (
	// NumMFCCFeatures is the number of MFCC coefficients (output of the DCT).
	NumMFCCFeatures = 13
	// NumMFCCFrames is the number of time frames in the MFCC matrix.
	NumMFCCFrames = 100
	// NumChannels is the input channel count of the CNN.
	NumChannels = 1
	// InputTensorSize is 13 * 100 * 1 = 1300.
	InputTensorSize = NumMFCCFeatures * NumMFCCFrames * NumChannels
	// NumOutputClasses is the number of categories the classifier scores.
	NumOutputClasses = 12
	// SampleRate is the audio sample rate in Hz the features were computed at.
	SampleRate = 16000
)

// Name is the unique identifier of a calibration preset.
type Name string

// FeatureShape is the layout of the model's input feature tensor.
type FeatureShape struct {
	Coefficients int `json:"coefficients" yaml:"coefficients"`
	Frames       int `json:"frames" yaml:"frames"`
	Channels     int `json:"channels" yaml:"channels"`
	SampleRate   int `json:"sample_rate" yaml:"sample_rate"`
}

// DefaultFeatureShape returns the 13x100x1 MFCC layout at 16 kHz.
func DefaultFeatureShape() FeatureShape {
	return FeatureShape{
		Coefficients: NumMFCCFeatures,
		Frames:       NumMFCCFrames,
		Channels:     NumChannels,
		SampleRate:   SampleRate,
	}
}

// InputSize returns the number of elements in one input tensor.
func (s FeatureShape) InputSize() int {
	return s.Coefficients * s.Frames * s.Channels
}

// Shape returns the input tensor shape including the batch dimension.
func (s FeatureShape) Shape() []int64 {
	return []int64{1, int64(s.Coefficients), int64(s.Frames), int64(s.Channels)}
}

// Calibration is the immutable bundle produced offline for one trained model:
// quantization parameters, label table, reserved labels and threshold.
//
// Labels must be in the exact order of the classifier's output vector.
type Calibration struct {
	Name           Name               `json:"name" yaml:"name"`
	Input          QuantizationParams `json:"input" yaml:"input"`
	Output         QuantizationParams `json:"output" yaml:"output"`
	Labels         []string           `json:"labels" yaml:"labels"`
	ReservedLabels []string           `json:"reserved_labels" yaml:"reserved_labels"`
	Threshold      int8               `json:"threshold" yaml:"threshold"`
	Features       FeatureShape       `json:"features" yaml:"features"`
}

// Validate reports every problem with the calibration at once.
//
// Returns:
//   - error: nil, or a *multierror.Error listing each invalid field.
func (c Calibration) Validate() error {
	var result *multierror.Error

	if err := c.Input.Validate(); err != nil {
		result = multierror.Append(result, errors.Wrap(err, "input quantization"))
	}
	result = c.appendScoreErrors(result)
	if c.Features.InputSize() <= 0 {
		result = multierror.Append(result, errors.Errorf("feature shape %dx%dx%d is empty",
			c.Features.Coefficients, c.Features.Frames, c.Features.Channels))
	}

	return result.ErrorOrNil()
}

// ValidateScores checks only the fields needed to decide score vectors: the
// output quantization, the label table and the reserved labels. The input
// quantization and feature shape are not read.
//
// Returns:
//   - error: nil, or a *multierror.Error listing each invalid field.
func (c Calibration) ValidateScores() error {
	return c.appendScoreErrors(nil).ErrorOrNil()
}

func (c Calibration) appendScoreErrors(result *multierror.Error) *multierror.Error {
	if err := c.Output.Validate(); err != nil {
		result = multierror.Append(result, errors.Wrap(err, "output quantization"))
	}

	if len(c.Labels) == 0 {
		result = multierror.Append(result, errors.New("labels must not be empty"))
	}
	seen := make(map[string]struct{}, len(c.Labels))
	for i, label := range c.Labels {
		if label == "" {
			result = multierror.Append(result, errors.Errorf("label %d is empty", i))
			continue
		}
		if _, ok := seen[label]; ok {
			result = multierror.Append(result, errors.Errorf("duplicate label %q", label))
		}
		seen[label] = struct{}{}
	}
	for _, label := range c.ReservedLabels {
		if _, ok := seen[label]; !ok {
			result = multierror.Append(result, errors.Errorf("reserved label %q is not in the label table", label))
		}
	}
	return result
}

// Clone returns a deep copy so callers cannot mutate a shared bundle.
func (c Calibration) Clone() Calibration {
	out := c
	out.Labels = append([]string(nil), c.Labels...)
	out.ReservedLabels = append([]string(nil), c.ReservedLabels...)
	return out
}
