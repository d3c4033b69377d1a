package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewNilRegisterer(t *testing.T) {
	m := New(nil, "")
	assert.Nil(t, m)

	// Every method is safe on a nil receiver.
	m.Decision("accepted", "yes")
	m.Reported("yes")
	m.Inference(time.Millisecond)
	m.InputError()
	m.EngineError()
}

func TestNewCustomNamespace(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	m := New(reg, "voice")
	m.Reported("go")

	count, err := testutil.GatherAndCount(reg, "voice_keywords_reported_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	m := New(reg, "")
	require.NotNil(t, m)

	m.Decision("accepted", "yes")
	m.Decision("accepted", "yes")
	m.Decision("reserved", "_silence_")
	m.Reported("yes")
	m.InputError()
	m.EngineError()
	m.EngineError()
	m.Inference(3 * time.Millisecond)

	expected := `
# HELP kws_decisions_total Number of decisions by outcome and top label
# TYPE kws_decisions_total counter
kws_decisions_total{label="_silence_",outcome="reserved"} 1
kws_decisions_total{label="yes",outcome="accepted"} 2
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "kws_decisions_total"))

	count, err := testutil.GatherAndCount(reg, "kws_inference_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	errorsExpected := `
# HELP kws_engine_errors_total Number of failed engine inferences
# TYPE kws_engine_errors_total counter
kws_engine_errors_total 2
# HELP kws_input_length_errors_total Number of feature or score vectors rejected for their length
# TYPE kws_input_length_errors_total counter
kws_input_length_errors_total 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(errorsExpected),
		"kws_engine_errors_total", "kws_input_length_errors_total"))
}
