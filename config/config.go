// Package config - YAML configuration for the keyword spotter.
package config

import (
	"bytes"
	"io"
	"os"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/nvr-ai/go-kws/inference"
	"github.com/nvr-ai/go-kws/metrics"
	"github.com/nvr-ai/go-kws/models"
	"github.com/nvr-ai/go-kws/models/model"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Log formats accepted by Log.Format.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Config is the top-level configuration file.
type Config struct {
	Model    Model    `json:"model" yaml:"model"`
	Detector Detector `json:"detector" yaml:"detector"`
	Log      Log      `json:"log" yaml:"log"`
	Metrics  Metrics  `json:"metrics" yaml:"metrics"`
}

// Model selects the calibration and, optionally, the ONNX model to run.
//
// Any calibration field that is set overrides the preset's value.
type Model struct {
	Preset               model.Name                `json:"preset" yaml:"preset"`
	Input                *model.QuantizationParams `json:"input,omitempty" yaml:"input,omitempty"`
	Output               *model.QuantizationParams `json:"output,omitempty" yaml:"output,omitempty"`
	Labels               []string                  `json:"labels,omitempty" yaml:"labels,omitempty"`
	ReservedLabels       []string                  `json:"reserved_labels,omitempty" yaml:"reserved_labels,omitempty"`
	Threshold            *int8                     `json:"threshold,omitempty" yaml:"threshold,omitempty"`
	ThresholdProbability *float32                  `json:"threshold_probability,omitempty" yaml:"threshold_probability,omitempty"`

	Path           string          `json:"path" yaml:"path"`
	LibraryPath    string          `json:"library_path" yaml:"library_path"`
	Precision      model.Precision `json:"precision" yaml:"precision"`
	InputName      string          `json:"input_name" yaml:"input_name"`
	OutputName     string          `json:"output_name" yaml:"output_name"`
	IntraOpThreads int             `json:"intra_op_threads" yaml:"intra_op_threads"`
}

// Detector configures the detection pipeline.
type Detector struct {
	// Cooldown is the minimum time between two reports of the same keyword.
	Cooldown time.Duration `json:"cooldown" yaml:"cooldown"`
}

// Log configures the logger.
type Log struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// Metrics configures prometheus instrumentation.
type Metrics struct {
	Enabled   bool   `json:"enabled" yaml:"enabled"`
	Namespace string `json:"namespace" yaml:"namespace"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	session := inference.DefaultSessionConfig()
	return Config{
		Model: Model{
			Preset:     models.DefaultPreset,
			Precision:  session.Precision,
			InputName:  session.InputName,
			OutputName: session.OutputName,
		},
		Log: Log{
			Level:  logrus.InfoLevel.String(),
			Format: LogFormatText,
		},
		Metrics: Metrics{
			Namespace: metrics.DefaultNamespace,
		},
	}
}

// Load reads a YAML configuration file on top of Default.
//
// Arguments:
//   - path: The file path.
//
// Returns:
//   - Config: The validated configuration.
//   - error: An error if the file cannot be read, has unknown keys or is invalid.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "reading config")
	}
	return Parse(data)
}

// Parse decodes YAML configuration bytes on top of Default.
func Parse(data []byte) (Config, error) {
	c := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil && err != io.EOF {
		return Config{}, errors.Wrap(err, "error unmarshalling the yaml config file")
	}

	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate reports every problem with the configuration at once.
func (c Config) Validate() error {
	var result *multierror.Error

	if _, err := c.Calibration(); err != nil {
		result = multierror.Append(result, err)
	}
	if c.Model.ThresholdProbability != nil {
		if p := *c.Model.ThresholdProbability; p < 0 || p > 1 {
			result = multierror.Append(result, errors.Errorf("threshold_probability must be in [0, 1], got %v", p))
		}
	}
	if c.Model.Precision != "" && !c.Model.Precision.Valid() {
		result = multierror.Append(result, errors.Errorf("unsupported precision %q", c.Model.Precision))
	}
	if c.Model.IntraOpThreads < 0 {
		result = multierror.Append(result, errors.Errorf("intra_op_threads must not be negative, got %d", c.Model.IntraOpThreads))
	}
	if c.Detector.Cooldown < 0 {
		result = multierror.Append(result, errors.Errorf("cooldown must not be negative, got %s", c.Detector.Cooldown))
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		result = multierror.Append(result, errors.Wrap(err, "log level"))
	}
	if c.Log.Format != LogFormatText && c.Log.Format != LogFormatJSON {
		result = multierror.Append(result, errors.Errorf("unsupported log format %q", c.Log.Format))
	}

	if err := result.ErrorOrNil(); err != nil {
		return errors.Wrap(err, "invalid config")
	}
	return nil
}

// Calibration resolves the preset and applies the overrides.
//
// Returns:
//   - model.Calibration: The resolved calibration.
//   - error: An error if the preset is unknown, both threshold forms are set,
//     or the resulting calibration is invalid.
func (c Config) Calibration() (model.Calibration, error) {
	m := c.Model
	preset := m.Preset
	if preset == "" {
		preset = models.DefaultPreset
	}

	cal, err := models.NewCalibration(preset)
	if err != nil {
		return model.Calibration{}, err
	}

	if m.Input != nil {
		cal.Input = *m.Input
	}
	if m.Output != nil {
		cal.Output = *m.Output
	}
	if m.Labels != nil {
		cal.Labels = append([]string(nil), m.Labels...)
	}
	if m.ReservedLabels != nil {
		cal.ReservedLabels = append([]string(nil), m.ReservedLabels...)
	}

	switch {
	case m.Threshold != nil && m.ThresholdProbability != nil:
		return model.Calibration{}, errors.New("threshold and threshold_probability are mutually exclusive")
	case m.Threshold != nil:
		cal.Threshold = *m.Threshold
	case m.ThresholdProbability != nil:
		cal.Threshold = cal.Output.ThresholdFromProbability(*m.ThresholdProbability)
	}

	if err := cal.Validate(); err != nil {
		return model.Calibration{}, errors.Wrapf(err, "calibration %q", cal.Name)
	}
	return cal, nil
}

// Session returns the onnxruntime session configuration for the model.
func (c Config) Session() inference.SessionConfig {
	return inference.SessionConfig{
		ModelPath:      c.Model.Path,
		LibraryPath:    c.Model.LibraryPath,
		InputName:      c.Model.InputName,
		OutputName:     c.Model.OutputName,
		Precision:      c.Model.Precision,
		IntraOpThreads: c.Model.IntraOpThreads,
	}
}

// NewLogger builds a logger writing to out.
func (l Log) NewLogger(out io.Writer) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(l.Level)
	if err != nil {
		return nil, errors.Wrap(err, "log level")
	}

	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetLevel(level)
	switch l.Format {
	case LogFormatJSON:
		logger.SetFormatter(&logrus.JSONFormatter{})
	case LogFormatText, "":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, errors.Errorf("unsupported log format %q", l.Format)
	}
	return logger, nil
}

// New registers the pipeline metrics on reg when enabled. It returns nil when
// metrics are disabled.
func (m Metrics) New(reg prometheus.Registerer) *metrics.Metrics {
	if !m.Enabled {
		return nil
	}
	return metrics.New(reg, m.Namespace)
}
