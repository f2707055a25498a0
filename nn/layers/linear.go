package layers

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"sngan/tensor"
)

// Linear is a fully-connected layer over (N, in) batches.
type Linear struct {
	inDim, outDim int

	W *tensor.Tensor // weights: [outDim, inDim]
	B *tensor.Tensor // bias: [outDim]
}

// NewLinear creates a Linear layer with Xavier-uniform initialized weights.
func NewLinear(inDim, outDim int, gain float64) (*Linear, error) {
	if inDim <= 0 || outDim <= 0 {
		return nil, fmt.Errorf("%w: linear %d->%d", ErrInitialization, inDim, outDim)
	}
	l := &Linear{
		inDim:  inDim,
		outDim: outDim,
		W:      tensor.New(outDim, inDim),
		B:      tensor.New(outDim),
	}
	if err := XavierUniform(l.W, inDim, outDim, gain); err != nil {
		return nil, err
	}
	return l, nil
}

// Forward maps an (N, inDim) tensor to (N, outDim).
func (l *Linear) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	return l.forwardWith(input, l.W)
}

func (l *Linear) forwardWith(input, w *tensor.Tensor) (*tensor.Tensor, error) {
	if len(input.Shape) != 2 {
		return nil, fmt.Errorf("%w: linear input must be 2-D, got %v", ErrShapeMismatch, input.Shape)
	}
	n, in := input.Shape[0], input.Shape[1]
	if in != l.inDim {
		return nil, fmt.Errorf("%w: linear expects %d input features, got %d", ErrShapeMismatch, l.inDim, in)
	}

	xm := mat.NewDense(n, l.inDim, input.Data)
	wm := mat.NewDense(l.outDim, l.inDim, w.Data)
	var ym mat.Dense
	ym.Mul(xm, wm.T())

	output := tensor.New(n, l.outDim)
	for i := 0; i < n; i++ {
		for j := 0; j < l.outDim; j++ {
			output.Data[i*l.outDim+j] = ym.At(i, j) + l.B.Data[j]
		}
	}
	return output, nil
}

// Parameters returns the layer's learnable tensors.
func (l *Linear) Parameters() []*tensor.Tensor {
	return []*tensor.Tensor{l.W, l.B}
}
