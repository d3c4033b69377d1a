// Package detector - Keyword detection pipeline: quantize, infer, decide, debounce.
package detector

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/nvr-ai/go-kws/inference"
	"github.com/nvr-ai/go-kws/metrics"
	"github.com/nvr-ai/go-kws/models/model"
	"github.com/nvr-ai/go-kws/models/postprocess"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// ErrNoEngine is returned by Detect when the detector was built without an engine.
var ErrNoEngine = errors.New("no inference engine configured")

// Event is the result of one detection cycle.
type Event struct {
	// Decision is the decider's output for the cycle.
	Decision postprocess.Decision
	// Reported is true when the keyword was delivered to the sink.
	Reported bool
	// Suppressed is true when a recognized keyword repeated within the cooldown.
	Suppressed bool
	// At is when the decision was made.
	At time.Time
	// Took is the engine inference time; zero when scores were supplied directly.
	Took time.Duration
}

// Sink consumes reported keywords, e.g. to drive an indicator.
type Sink interface {
	Report(ctx context.Context, event Event) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, event Event) error

// Report calls f(ctx, event).
func (f SinkFunc) Report(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Config represents the configuration for the keyword detector.
type Config struct {
	// Calibration of the model; required.
	Calibration model.Calibration
	// Engine runs the classifier. Optional when only Process is used.
	Engine inference.Engine
	// Sink receives reported keywords. Optional.
	Sink Sink
	// Cooldown is the minimum time between two reports of the same keyword.
	Cooldown time.Duration
	// Logger defaults to a logger that discards output.
	Logger logrus.FieldLogger
	// Metrics may be nil.
	Metrics *metrics.Metrics
	// Now defaults to time.Now.
	Now func() time.Time
}

// Detector encapsulates the detection pipeline and its cooldown state.
type Detector struct {
	decider  *postprocess.Decider
	engine   inference.Engine
	sink     Sink
	input    model.QuantizationParams
	features model.FeatureShape
	cooldown time.Duration
	log      logrus.FieldLogger
	metrics  *metrics.Metrics
	now      func() time.Time

	mu         sync.Mutex
	lastLabel  string
	lastReport time.Time
	eventCount int
}

// New creates a detector with the given configuration.
//
// Arguments:
//   - config: The detector configuration.
//
// Returns:
//   - *Detector: The detector.
//   - error: An error if the calibration is invalid. The input quantization
//     and feature shape are only required when an engine is configured.
func New(config Config) (*Detector, error) {
	decider, err := postprocess.NewDecider(config.Calibration)
	if err != nil {
		return nil, err
	}
	if config.Engine != nil {
		// The engine path also quantizes and length-checks features.
		if err := config.Calibration.Validate(); err != nil {
			return nil, errors.Wrapf(err, "invalid calibration %q", config.Calibration.Name)
		}
	}
	if config.Cooldown < 0 {
		return nil, errors.Errorf("cooldown must not be negative, got %s", config.Cooldown)
	}

	logger := config.Logger
	if logger == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		logger = discard
	}
	now := config.Now
	if now == nil {
		now = time.Now
	}

	return &Detector{
		decider:  decider,
		engine:   config.Engine,
		sink:     config.Sink,
		input:    config.Calibration.Input,
		features: config.Calibration.Features,
		cooldown: config.Cooldown,
		log:      logger.WithField("calibration", config.Calibration.Name),
		metrics:  config.Metrics,
		now:      now,
	}, nil
}

// Decider returns the decider used by the pipeline.
func (d *Detector) Decider() *postprocess.Decider {
	return d.decider
}

// Detect quantizes real-valued features with the input parameters and runs a cycle.
//
// Arguments:
//   - ctx: Passed to the engine and the sink.
//   - features: MFCC features in row-major (coefficient, frame, channel) order.
//
// Returns:
//   - Event: The cycle's event.
//   - error: An InputLengthError, an engine error or a sink error.
func (d *Detector) Detect(ctx context.Context, features []float32) (Event, error) {
	if len(features) != d.features.InputSize() {
		d.metrics.InputError()
		return Event{}, &postprocess.InputLengthError{Expected: d.features.InputSize(), Actual: len(features)}
	}
	input := d.input.QuantizeSlice(make([]int8, len(features)), features)
	return d.DetectQuantized(ctx, input)
}

// DetectQuantized runs a cycle on features already in the input int8 domain,
// such as the 1300-byte payload produced by the host-side feature sender.
//
// Arguments:
//   - ctx: Passed to the engine and the sink.
//   - input: Quantized features.
//
// Returns:
//   - Event: The cycle's event.
//   - error: An InputLengthError, ErrNoEngine, an engine error or a sink error.
func (d *Detector) DetectQuantized(ctx context.Context, input []int8) (Event, error) {
	if len(input) != d.features.InputSize() {
		d.metrics.InputError()
		return Event{}, &postprocess.InputLengthError{Expected: d.features.InputSize(), Actual: len(input)}
	}
	if d.engine == nil {
		return Event{}, ErrNoEngine
	}

	start := d.now()
	scores, err := d.engine.Infer(ctx, input)
	took := d.now().Sub(start)
	if err != nil {
		d.metrics.EngineError()
		d.log.WithError(err).Error("inference failed")
		return Event{}, errors.Wrap(err, "inference failed")
	}
	d.metrics.Inference(took)

	event, err := d.process(ctx, scores)
	event.Took = took
	return event, err
}

// Process runs the decision and cooldown stages on scores computed elsewhere.
//
// Arguments:
//   - ctx: Passed to the sink.
//   - scores: One raw score per label.
//
// Returns:
//   - Event: The cycle's event.
//   - error: An InputLengthError or a sink error.
func (d *Detector) Process(ctx context.Context, scores []int8) (Event, error) {
	return d.process(ctx, scores)
}

func (d *Detector) process(ctx context.Context, scores []int8) (Event, error) {
	decision, err := d.decider.Decide(scores)
	if err != nil {
		d.metrics.InputError()
		d.log.WithError(err).Error("score vector rejected")
		return Event{}, err
	}

	top := d.decider.Labels().Class(decision.Index).Name
	d.metrics.Decision(string(decision.Reason), top)

	event := Event{Decision: decision, At: d.now()}
	fields := logrus.Fields{
		"label":  top,
		"score":  decision.Score,
		"reason": decision.Reason,
	}

	if !decision.Recognized {
		d.log.WithFields(fields).Debug("no keyword")
		return event, nil
	}

	fields["confidence"] = decision.Confidence
	if !d.admit(decision.Label, event.At) {
		event.Suppressed = true
		d.log.WithFields(fields).Debug("keyword suppressed by cooldown")
		return event, nil
	}

	event.Reported = true
	d.metrics.Reported(decision.Label)
	d.log.WithFields(fields).Info("keyword recognized")

	if d.sink != nil {
		if err := d.sink.Report(ctx, event); err != nil {
			d.log.WithError(err).WithFields(fields).Warn("sink rejected keyword")
			return event, errors.Wrap(err, "sink failed")
		}
	}
	return event, nil
}

// admit applies the cooldown and records the report when it passes.
func (d *Detector) admit(label string, at time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.eventCount > 0 && label == d.lastLabel && at.Sub(d.lastReport) < d.cooldown {
		return false
	}
	d.lastLabel = label
	d.lastReport = at
	d.eventCount++
	return true
}

// EventCount returns the number of keywords reported so far.
func (d *Detector) EventCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.eventCount
}

// Reset clears the cooldown state.
func (d *Detector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lastLabel = ""
	d.lastReport = time.Time{}
	d.eventCount = 0
}

// Close releases the engine.
func (d *Detector) Close() error {
	if d.engine == nil {
		return nil
	}
	return d.engine.Close()
}
