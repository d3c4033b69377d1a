// Package model - Affine quantization parameters shared by the model input and output.
package model

import (
	"fmt"
	"math"

	"github.com/chewxy/math32"
	"github.com/pkg/errors"
)

// QuantizationParams describes an affine int8 quantization:
//
//	real = (q - ZeroPoint) * Scale
//	q    = round(real / Scale + ZeroPoint)
type QuantizationParams struct {
	// Scale is the real-valued width of one quantization step.
	Scale float32 `json:"scale" yaml:"scale"`
	// ZeroPoint is the integer code that represents real 0.0.
	ZeroPoint int32 `json:"zero_point" yaml:"zero_point"`
}

// String returns the params in the "(scale, zero_point)" form printed by TFLite.
func (q QuantizationParams) String() string {
	return fmt.Sprintf("(%v, %d)", q.Scale, q.ZeroPoint)
}

// Validate checks that the scale is a finite positive number.
//
// Returns:
//   - error: An error if the scale cannot be used to (de)quantize.
func (q QuantizationParams) Validate() error {
	if math32.IsNaN(q.Scale) || math32.IsInf(q.Scale, 0) {
		return errors.Errorf("scale must be finite, got %v", q.Scale)
	}
	if q.Scale <= 0 {
		return errors.Errorf("scale must be positive, got %v", q.Scale)
	}
	return nil
}

// Dequantize maps a quantized value back to the real domain.
//
// The result is not clamped: a miscalibrated pair yields values outside [0, 1]
// and callers see them as-is.
//
// Arguments:
//   - v: The quantized value.
//
// Returns:
//   - float32: The real value (v - ZeroPoint) * Scale.
func (q QuantizationParams) Dequantize(v int8) float32 {
	return (float32(v) - float32(q.ZeroPoint)) * q.Scale
}

// Quantize maps a real value to int8 using round-half-to-even and saturation.
//
// The zero point is added before rounding, as the host feature sender does.
// NaN maps to the zero point.
//
// Arguments:
//   - v: The real value.
//
// Returns:
//   - int8: The quantized value, saturated to [-128, 127].
func (q QuantizationParams) Quantize(v float32) int8 {
	if math32.IsNaN(v) {
		return saturate(float32(q.ZeroPoint))
	}
	return saturate(roundHalfEven(v/q.Scale + float32(q.ZeroPoint)))
}

// QuantizeSlice quantizes every element of src into dst.
//
// Arguments:
//   - dst: Destination slice; must be at least as long as src.
//   - src: Real values to quantize.
//
// Returns:
//   - []int8: dst[:len(src)].
func (q QuantizationParams) QuantizeSlice(dst []int8, src []float32) []int8 {
	dst = dst[:len(src)]
	for i, v := range src {
		dst[i] = q.Quantize(v)
	}
	return dst
}

// DequantizeSlice dequantizes every element of src into dst.
func (q QuantizationParams) DequantizeSlice(dst []float32, src []int8) []float32 {
	dst = dst[:len(src)]
	for i, v := range src {
		dst[i] = q.Dequantize(v)
	}
	return dst
}

// ThresholdFromProbability converts a probability into the int8 threshold used
// against raw scores, e.g. round(0.6 / 0.00390625 + (-128)) = 26.
//
// Arguments:
//   - p: The minimum probability a keyword must reach.
//
// Returns:
//   - int8: The threshold in the quantized output domain.
func (q QuantizationParams) ThresholdFromProbability(p float32) int8 {
	return q.Quantize(p)
}

// roundHalfEven rounds like numpy.round so host-quantized features match the
// bytes produced during calibration.
func roundHalfEven(v float32) float32 {
	return float32(math.RoundToEven(float64(v)))
}

func saturate(v float32) int8 {
	switch {
	case v <= math.MinInt8:
		return math.MinInt8
	case v >= math.MaxInt8:
		return math.MaxInt8
	}
	return int8(v)
}
