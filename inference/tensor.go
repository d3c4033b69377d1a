package inference

import (
	"github.com/nvr-ai/go-kws/models/model"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// scoreRow wraps an output buffer in a (1, classes) tensor without copying.
func scoreRow[T int8 | float32](data []T) *tensor.Dense {
	return tensor.New(tensor.WithShape(1, len(data)), tensor.WithBacking(data))
}

// ScoresFromTensor extracts one score per class from a classifier output tensor.
//
// Int8 tensors are copied as-is. Float32 tensors hold probabilities and are
// quantized with the output parameters so they can be decided like raw scores.
//
// Arguments:
//   - t: A (classes) or (1, classes) tensor.
//   - output: The calibration's output quantization.
//
// Returns:
//   - []int8: The scores in output order.
//   - error: An error for batched tensors or unsupported element types.
func ScoresFromTensor(t tensor.Tensor, output model.QuantizationParams) ([]int8, error) {
	shape := t.Shape()
	if len(shape) > 1 && shape.TotalSize() != shape[len(shape)-1] {
		return nil, errors.Errorf("batched output %v is not supported", shape)
	}

	switch data := t.Data().(type) {
	case []int8:
		return append([]int8(nil), data...), nil
	case []float32:
		return output.QuantizeSlice(make([]int8, len(data)), data), nil
	default:
		return nil, errors.Errorf("unsupported output dtype %v", t.Dtype())
	}
}
