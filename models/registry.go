// Package models - registry for calibration presets.
package models

import (
	"fmt"
	"sort"

	"github.com/nvr-ai/go-kws/models/model"
)

const (
	// PresetSpeechCommands is the INT8 speech commands calibration with the
	// threshold derived for a 0.6 probability: round(0.6 / 0.00390625) - 128 = 26.
	PresetSpeechCommands model.Name = "speech-commands"
	// PresetSpeechCommandsT0 is the same calibration with the raw threshold of 0
	// found in the earlier evaluation run.
	PresetSpeechCommandsT0 model.Name = "speech-commands-t0"
)

// DefaultPreset is the preset used when a configuration names none.
const DefaultPreset = PresetSpeechCommands

var presets = map[model.Name]model.Calibration{
	PresetSpeechCommands:   speechCommands(PresetSpeechCommands, 26),
	PresetSpeechCommandsT0: speechCommands(PresetSpeechCommandsT0, 0),
}

func speechCommands(name model.Name, threshold int8) model.Calibration {
	return model.Calibration{
		Name:           name,
		Input:          model.QuantizationParams{Scale: 2.7671010494232178, ZeroPoint: 64},
		Output:         model.QuantizationParams{Scale: 0.00390625, ZeroPoint: -128},
		Labels:         SpeechCommandsLabels,
		ReservedLabels: SpeechCommandsReserved,
		Threshold:      threshold,
		Features:       model.DefaultFeatureShape(),
	}
}

// NewCalibration returns a copy of the named calibration preset.
//
// Arguments:
//   - name: The preset name.
//
// Returns:
//   - model.Calibration: A deep copy the caller may modify.
//   - error: An error if the preset is not registered.
//
// Example:
//
//	cal, err := NewCalibration(PresetSpeechCommands)
//	if err != nil {
//	    log.Fatalf("Failed to load calibration: %v", err)
//	}
//	decider, err := postprocess.NewDecider(cal)
func NewCalibration(name model.Name) (model.Calibration, error) {
	c, ok := presets[name]
	if !ok {
		return model.Calibration{}, fmt.Errorf("unsupported calibration preset: %s", name)
	}
	return c.Clone(), nil
}

// Presets returns the registered preset names in sorted order.
func Presets() []model.Name {
	names := make([]model.Name, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}
