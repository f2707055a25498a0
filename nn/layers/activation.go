package layers

import (
	"math"

	"sngan/tensor"
)

// ReLU applies max(v, 0) elementwise, returning a new tensor.
func ReLU(x *tensor.Tensor) *tensor.Tensor {
	out := tensor.New(x.Shape...)
	for i, v := range x.Data {
		if v > 0 {
			out.Data[i] = v
		}
	}
	return out
}

// Tanh squashes each element into (-1, 1), returning a new tensor.
func Tanh(x *tensor.Tensor) *tensor.Tensor {
	out := tensor.New(x.Shape...)
	for i, v := range x.Data {
		out.Data[i] = math.Tanh(v)
	}
	return out
}
