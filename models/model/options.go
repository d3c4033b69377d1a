// Package model - Model options.
//
// See:
// https://onnxruntime.ai/docs/performance/model-optimizations/quantization.html
package model

// Precision represents the numeric precision of a model's input and output tensors.
type Precision string

const (
	// PrecisionINT8 represents 8-bit affine-quantized tensors. Scores and features
	// cross the engine boundary unchanged.
	PrecisionINT8 Precision = "INT8"
	// PrecisionFP32 represents 32-bit floating point tensors. Features are
	// dequantized on the way in and probabilities quantized on the way out.
	PrecisionFP32 Precision = "FP32"
)

// Valid reports whether the precision is one the engines can run.
func (p Precision) Valid() bool {
	switch p {
	case PrecisionINT8, PrecisionFP32:
		return true
	}
	return false
}
