package layers

import (
	"fmt"

	"sngan/tensor"
)

// Embedding is a per-class vector lookup table.
type Embedding struct {
	numClasses, dim int

	W *tensor.Tensor // weights: [numClasses, dim]
}

// NewEmbedding creates an Embedding with Xavier-uniform initialized rows.
func NewEmbedding(numClasses, dim int, gain float64) (*Embedding, error) {
	if numClasses <= 0 || dim <= 0 {
		return nil, fmt.Errorf("%w: embedding %dx%d", ErrInitialization, numClasses, dim)
	}
	e := &Embedding{
		numClasses: numClasses,
		dim:        dim,
		W:          tensor.New(numClasses, dim),
	}
	if err := XavierUniform(e.W, numClasses, dim, gain); err != nil {
		return nil, err
	}
	return e, nil
}

// Forward looks up one row per label, returning an (N, dim) tensor.
func (e *Embedding) Forward(labels []int) (*tensor.Tensor, error) {
	return e.forwardWith(labels, e.W)
}

func (e *Embedding) forwardWith(labels []int, w *tensor.Tensor) (*tensor.Tensor, error) {
	if labels == nil {
		return nil, fmt.Errorf("%w: embedding lookup requires labels", ErrMissingConditioning)
	}
	output := tensor.New(len(labels), e.dim)
	for i, label := range labels {
		if label < 0 || label >= e.numClasses {
			return nil, fmt.Errorf("%w: label %d out of range [0, %d)", ErrShapeMismatch, label, e.numClasses)
		}
		copy(output.Data[i*e.dim:(i+1)*e.dim], w.Data[label*e.dim:(label+1)*e.dim])
	}
	return output, nil
}

// Parameters returns the layer's learnable tensors.
func (e *Embedding) Parameters() []*tensor.Tensor {
	return []*tensor.Tensor{e.W}
}
