// Package postprocess - Postprocessing of classifier output into keyword decisions.
package postprocess

import "fmt"

// Reason explains why a decision came out the way it did.
type Reason string

const (
	// ReasonAccepted means the top class passed the threshold and is a keyword.
	ReasonAccepted Reason = "accepted"
	// ReasonBelowThreshold means the top score was under the recognition threshold.
	ReasonBelowThreshold Reason = "below_threshold"
	// ReasonReserved means the top class is a background class.
	ReasonReserved Reason = "reserved"
)

// Decision is the outcome of one inference cycle.
//
// Only Recognized, Label and Confidence are part of the decision proper; an
// unrecognized decision leaves Label empty and Confidence zero. Index, Score
// and Reason describe the top-scoring class for diagnostics.
type Decision struct {
	// Recognized is true when a keyword was detected.
	Recognized bool
	// Label is the recognized keyword.
	Label string
	// Confidence is the dequantized score of the recognized keyword.
	Confidence float32
	// Index is the output index of the top-scoring class.
	Index int
	// Score is the raw quantized score of the top-scoring class.
	Score int8
	// Reason is why the decision was accepted or rejected.
	Reason Reason
}

// String returns a compact human-readable form of the decision.
func (d Decision) String() string {
	if d.Recognized {
		return fmt.Sprintf("recognized %q (confidence %.4f)", d.Label, d.Confidence)
	}
	return fmt.Sprintf("unrecognized (%s, index %d, score %d)", d.Reason, d.Index, d.Score)
}

// LabelScore is one class of a ranked score vector.
type LabelScore struct {
	// Index is the output index of the class.
	Index int
	// Label is the class name.
	Label string
	// Score is the raw quantized score.
	Score int8
	// Confidence is the dequantized score.
	Confidence float32
	// Reserved marks background classes.
	Reserved bool
}
