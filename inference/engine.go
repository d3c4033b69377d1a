// Package inference - Inference engine interface.
package inference

import (
	"context"
)

// Engine runs the keyword classifier on one quantized feature tensor and
// returns one quantized score per output class.
//
// Both sides speak the model's int8 domain: input uses the calibration's
// input quantization and the returned scores its output quantization.
type Engine interface {
	Infer(ctx context.Context, input []int8) ([]int8, error)
	Close() error
}

// EngineFunc adapts a function to the Engine interface.
type EngineFunc func(ctx context.Context, input []int8) ([]int8, error)

// Infer calls f(ctx, input).
func (f EngineFunc) Infer(ctx context.Context, input []int8) ([]int8, error) {
	return f(ctx, input)
}

// Close does nothing.
func (f EngineFunc) Close() error {
	return nil
}
