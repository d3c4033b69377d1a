package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	outputParams = QuantizationParams{Scale: 0.00390625, ZeroPoint: -128}
	inputParams  = QuantizationParams{Scale: 2.7671010494232178, ZeroPoint: 64}
)

func TestDequantize(t *testing.T) {
	tests := []struct {
		name string
		in   int8
		want float32
	}{
		{name: "zero point maps to zero", in: -128, want: 0},
		{name: "maximum code", in: 127, want: 0.99609375},
		{name: "threshold code", in: 26, want: 0.6015625},
		{name: "real zero code", in: 0, want: 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, outputParams.Dequantize(tt.in), 1e-7)
		})
	}
}

func TestDequantizeDoesNotClamp(t *testing.T) {
	skewed := QuantizationParams{Scale: 0.01, ZeroPoint: 0}
	assert.InDelta(t, -1.28, skewed.Dequantize(-128), 1e-6)
	assert.InDelta(t, 1.27, skewed.Dequantize(127), 1e-6)
}

func TestQuantize(t *testing.T) {
	t.Run("round half to even", func(t *testing.T) {
		p := QuantizationParams{Scale: 1, ZeroPoint: 0}
		assert.Equal(t, int8(2), p.Quantize(2.5))
		assert.Equal(t, int8(4), p.Quantize(3.5))
		assert.Equal(t, int8(-2), p.Quantize(-2.5))
		assert.Equal(t, int8(3), p.Quantize(2.6))
	})

	t.Run("saturates", func(t *testing.T) {
		assert.Equal(t, int8(127), inputParams.Quantize(1e6))
		assert.Equal(t, int8(-128), inputParams.Quantize(-1e6))
	})

	t.Run("NaN maps to the zero point", func(t *testing.T) {
		assert.Equal(t, int8(64), inputParams.Quantize(float32(math.NaN())))
		assert.Equal(t, int8(-128), outputParams.Quantize(float32(math.NaN())))
		assert.Equal(t, int8(127), QuantizationParams{Scale: 1, ZeroPoint: 300}.Quantize(float32(math.NaN())))
	})

	t.Run("zero point is added before rounding", func(t *testing.T) {
		// numpy: np.round(x / scale + zero_point)
		odd := QuantizationParams{Scale: 1, ZeroPoint: 1}
		assert.Equal(t, int8(2), odd.Quantize(0.5))  // round(1.5) = 2
		assert.Equal(t, int8(2), odd.Quantize(1.5))  // round(2.5) = 2
		assert.Equal(t, int8(0), odd.Quantize(-0.5)) // round(0.5) = 0
		assert.Equal(t, int8(4), odd.Quantize(2.5))  // round(3.5) = 4

		scaled := QuantizationParams{Scale: 0.5, ZeroPoint: -3}
		assert.Equal(t, int8(-2), scaled.Quantize(0.25)) // round(-2.5) = -2
	})

	t.Run("input zero point", func(t *testing.T) {
		assert.Equal(t, int8(64), inputParams.Quantize(0))
		// -177.1 / 2.7671 = -64.0 -> 0
		assert.Equal(t, int8(0), inputParams.Quantize(-177.09447))
	})
}

func TestQuantizeSlice(t *testing.T) {
	src := []float32{0, 2.7671010494232178, -2.7671010494232178}
	dst := make([]int8, 8)

	got := inputParams.QuantizeSlice(dst, src)

	require.Len(t, got, 3)
	assert.Equal(t, []int8{64, 65, 63}, got)

	back := inputParams.DequantizeSlice(make([]float32, 3), got)
	for i := range src {
		assert.InDelta(t, src[i], back[i], 1e-5)
	}
}

func TestThresholdFromProbability(t *testing.T) {
	assert.Equal(t, int8(26), outputParams.ThresholdFromProbability(0.6))
	assert.Equal(t, int8(-128), outputParams.ThresholdFromProbability(0))
	assert.Equal(t, int8(127), outputParams.ThresholdFromProbability(1))
	assert.Equal(t, int8(51), outputParams.ThresholdFromProbability(0.7))
}

func TestQuantizationParamsValidate(t *testing.T) {
	assert.NoError(t, outputParams.Validate())
	assert.Error(t, QuantizationParams{Scale: 0}.Validate())
	assert.Error(t, QuantizationParams{Scale: -1}.Validate())
	assert.Error(t, QuantizationParams{Scale: float32(math.Inf(1))}.Validate())
	assert.Error(t, QuantizationParams{Scale: float32(math.NaN())}.Validate())
}

func TestQuantizationParamsString(t *testing.T) {
	assert.Equal(t, "(0.00390625, -128)", outputParams.String())
}
