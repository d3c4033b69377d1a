package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nvr-ai/go-kws/models"
	"github.com/nvr-ai/go-kws/models/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())

	cal, err := c.Calibration()
	require.NoError(t, err)
	assert.Equal(t, models.PresetSpeechCommands, cal.Name)
	assert.Equal(t, int8(26), cal.Threshold)
	assert.Equal(t, []string{models.LabelSilence, models.LabelUnknown}, cal.ReservedLabels)

	session := c.Session()
	assert.Equal(t, model.PrecisionINT8, session.Precision)
	assert.Equal(t, "input", session.InputName)
	assert.Equal(t, "output", session.OutputName)
}

func TestParseEmpty(t *testing.T) {
	c, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), c)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kws.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
model:
  preset: speech-commands-t0
  path: /models/kws.onnx
  precision: FP32
  intra_op_threads: 2
detector:
  cooldown: 1500ms
log:
  level: debug
  format: json
metrics:
  enabled: true
  namespace: edge
`), 0o644))

	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, models.PresetSpeechCommandsT0, c.Model.Preset)
	assert.Equal(t, 1500*time.Millisecond, c.Detector.Cooldown)
	assert.Equal(t, "json", c.Log.Format)
	assert.True(t, c.Metrics.Enabled)

	cal, err := c.Calibration()
	require.NoError(t, err)
	assert.Equal(t, int8(0), cal.Threshold)

	session := c.Session()
	assert.Equal(t, "/models/kws.onnx", session.ModelPath)
	assert.Equal(t, model.PrecisionFP32, session.Precision)
	assert.Equal(t, 2, session.IntraOpThreads)
	assert.Equal(t, "input", session.InputName, "unset keys keep their defaults")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "reading config")
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	_, err := Parse([]byte("model:\n  treshold: 10\n"))
	assert.ErrorContains(t, err, "treshold")
}

func TestParseThresholdOverrides(t *testing.T) {
	t.Run("raw threshold", func(t *testing.T) {
		c, err := Parse([]byte("model:\n  threshold: -5\n"))
		require.NoError(t, err)
		cal, err := c.Calibration()
		require.NoError(t, err)
		assert.Equal(t, int8(-5), cal.Threshold)
	})

	t.Run("probability", func(t *testing.T) {
		c, err := Parse([]byte("model:\n  threshold_probability: 0.7\n"))
		require.NoError(t, err)
		cal, err := c.Calibration()
		require.NoError(t, err)
		assert.Equal(t, int8(51), cal.Threshold)
	})

	t.Run("both", func(t *testing.T) {
		_, err := Parse([]byte("model:\n  threshold: 1\n  threshold_probability: 0.5\n"))
		assert.ErrorContains(t, err, "mutually exclusive")
	})

	t.Run("out of range", func(t *testing.T) {
		_, err := Parse([]byte("model:\n  threshold: 300\n"))
		assert.Error(t, err)
	})
}

func TestParseInlineCalibration(t *testing.T) {
	c, err := Parse([]byte(`
model:
  output:
    scale: 0.5
    zero_point: 0
  labels: [lights, fan, _background_]
  reserved_labels: [_background_]
  threshold: 1
`))
	require.NoError(t, err)

	cal, err := c.Calibration()
	require.NoError(t, err)
	assert.Equal(t, []string{"lights", "fan", "_background_"}, cal.Labels)
	assert.Equal(t, []string{"_background_"}, cal.ReservedLabels)
	assert.Equal(t, float32(0.5), cal.Output.Scale)
	assert.Equal(t, int32(64), cal.Input.ZeroPoint, "input keeps the preset value")
}

func TestValidateAggregatesErrors(t *testing.T) {
	c := Default()
	c.Model.Preset = "nope"
	c.Model.Precision = "FP16"
	c.Detector.Cooldown = -time.Second
	c.Log.Level = "loud"
	c.Log.Format = "xml"

	err := c.Validate()
	require.Error(t, err)
	for _, want := range []string{"nope", "FP16", "cooldown", "log level", `"xml"`} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestValidateReservedLabelMustExist(t *testing.T) {
	_, err := Parse([]byte("model:\n  reserved_labels: [_noise_]\n"))
	assert.ErrorContains(t, err, `"_noise_"`)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := Log{Level: "warn", Format: LogFormatJSON}.NewLogger(&buf)
	require.NoError(t, err)
	assert.Equal(t, logrus.WarnLevel, logger.GetLevel())

	logger.Info("hidden")
	logger.WithField("label", "yes").Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"label":"yes"`)

	_, err = Log{Level: "info", Format: "xml"}.NewLogger(&buf)
	assert.Error(t, err)
}

func TestMetricsNew(t *testing.T) {
	assert.Nil(t, Metrics{}.New(prometheus.NewRegistry()))
	assert.NotNil(t, Metrics{Enabled: true}.New(prometheus.NewRegistry()))
}
