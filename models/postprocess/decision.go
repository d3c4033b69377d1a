package postprocess

import (
	"sort"

	"github.com/nvr-ai/go-kws/models"
	"github.com/nvr-ai/go-kws/models/model"
	"github.com/pkg/errors"
)

// Decider turns quantized classifier scores into keyword decisions.
//
// A Decider is immutable once built and safe for concurrent use.
type Decider struct {
	labels    *models.LabelSet
	output    model.QuantizationParams
	threshold int8
}

// NewDecider builds a decider from a calibration bundle.
//
// Only the output quantization, labels and reserved labels are validated; the
// input quantization and feature shape may be left zero.
//
// Arguments:
//   - cal: The calibration of the model whose scores will be decided.
//
// Returns:
//   - *Decider: The decider.
//   - error: An error listing every invalid calibration field.
//
// Example:
//
//	cal, _ := models.NewCalibration(models.PresetSpeechCommands)
//	decider, err := NewDecider(cal)
//	if err != nil {
//	    log.Fatalf("Failed to create decider: %v", err)
//	}
//	decision, err := decider.Decide(scores)
func NewDecider(cal model.Calibration) (*Decider, error) {
	if err := cal.ValidateScores(); err != nil {
		return nil, errors.Wrapf(err, "invalid calibration %q", cal.Name)
	}

	labels, err := models.NewLabelSet(models.ModelFamily(cal.Name), cal.Labels, cal.ReservedLabels)
	if err != nil {
		return nil, errors.Wrap(err, "building label set")
	}

	return &Decider{
		labels:    labels,
		output:    cal.Output,
		threshold: cal.Threshold,
	}, nil
}

// Labels returns the label set the decider maps indices through.
func (d *Decider) Labels() *models.LabelSet {
	return d.labels
}

// Threshold returns the minimum raw score a keyword must reach.
func (d *Decider) Threshold() int8 {
	return d.threshold
}

// NumClasses returns the score vector length the decider accepts.
func (d *Decider) NumClasses() int {
	return d.labels.Len()
}

// Dequantize converts a raw output score into its real-valued confidence.
func (d *Decider) Dequantize(score int8) float32 {
	return d.output.Dequantize(score)
}

// Decide converts one score vector into a decision.
//
// The top class is the first index holding the maximum score. It is rejected
// when its raw score is below the threshold or when it is a reserved class;
// otherwise its label is recognized with the dequantized score as confidence.
//
// Arguments:
//   - scores: One raw int8 score per label, in output order. Not modified.
//
// Returns:
//   - Decision: The decision.
//   - error: An *InputLengthError if len(scores) does not match the label count.
func (d *Decider) Decide(scores []int8) (Decision, error) {
	if err := d.checkLength(scores); err != nil {
		return Decision{}, err
	}

	best := argmax(scores)
	decision := Decision{
		Index: best,
		Score: scores[best],
	}

	if scores[best] < d.threshold {
		decision.Reason = ReasonBelowThreshold
		return decision, nil
	}

	class := d.labels.Class(best)
	if class.Reserved {
		decision.Reason = ReasonReserved
		return decision, nil
	}

	decision.Recognized = true
	decision.Label = class.Name
	decision.Confidence = d.output.Dequantize(scores[best])
	decision.Reason = ReasonAccepted
	return decision, nil
}

// Rank lists every class with its raw and dequantized score, highest first.
// Equal scores keep output order.
//
// Arguments:
//   - scores: One raw int8 score per label, in output order.
//
// Returns:
//   - []LabelScore: The ranked classes.
//   - error: An *InputLengthError if len(scores) does not match the label count.
func (d *Decider) Rank(scores []int8) ([]LabelScore, error) {
	if err := d.checkLength(scores); err != nil {
		return nil, err
	}

	ranked := make([]LabelScore, len(scores))
	for i, s := range scores {
		class := d.labels.Class(i)
		ranked[i] = LabelScore{
			Index:      i,
			Label:      class.Name,
			Score:      s,
			Confidence: d.output.Dequantize(s),
			Reserved:   class.Reserved,
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked, nil
}

func (d *Decider) checkLength(scores []int8) error {
	if len(scores) != d.labels.Len() {
		return &InputLengthError{Expected: d.labels.Len(), Actual: len(scores)}
	}
	return nil
}

// argmax returns the lowest index holding the maximum value. s must not be empty.
func argmax(s []int8) int {
	best := 0
	for i := 1; i < len(s); i++ {
		if s[i] > s[best] {
			best = i
		}
	}
	return best
}
