// Package models - Label sets and calibration presets for keyword-spotting models.
package models

// ModelFamily is the dataset a label set was trained on.
type ModelFamily string

const (
	// ModelFamilySpeechCommands is the Google Speech Commands dataset reduced to
	// ten keywords plus silence and unknown.
	ModelFamilySpeechCommands ModelFamily = "speech_commands"
)

// Reserved labels that stand for "no command" rather than an actionable keyword.
const (
	// LabelSilence is the background class for windows with no speech.
	LabelSilence = "_silence_"
	// LabelUnknown is the class for speech that is not one of the keywords.
	LabelUnknown = "_unknown_"
)
