package layers

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sngan/tensor"
)

func TestSpectralLinear_ConvergesToUnitNorm(t *testing.T) {
	l, err := NewLinear(2, 2, 1.0)
	require.NoError(t, err)
	// W = diag(3, 1): largest singular value is 3.
	copy(l.W.Data, []float64{3, 0, 0, 1})
	copy(l.B.Data, []float64{0, 0})

	sn := NewSpectralLinear(l)
	eye := &tensor.Tensor{Data: []float64{1, 0, 0, 1}, Shape: []int{2, 2}}

	// Power iteration refines sigma once per forward call.
	var out *tensor.Tensor
	for i := 0; i < 50; i++ {
		out, err = sn.Forward(eye)
		require.NoError(t, err)
	}

	// Effective weight is W/sigma = diag(1, 1/3).
	assert.InDelta(t, 1.0, out.At(0, 0), 1e-6)
	assert.InDelta(t, 1.0/3.0, out.At(1, 1), 1e-6)
	assert.InDelta(t, 0.0, out.At(0, 1), 1e-9)
}

func TestSpectralLinear_UnwrapAndParams(t *testing.T) {
	l, err := NewLinear(4, 2, 1.0)
	require.NoError(t, err)
	sn := NewSpectralLinear(l)

	assert.Same(t, l, sn.Unwrap())
	assert.Equal(t, l.Parameters(), sn.Parameters())
}

func TestSpectralConv2D_PreservesShape(t *testing.T) {
	conv, err := NewConv2D(2, 4, 3, 1, 1, 1.0)
	require.NoError(t, err)
	sn := NewSpectralConv2D(conv)

	out, err := sn.Forward(tensor.New(1, 2, 8, 8))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 4, 8, 8}, out.Shape)
}

func TestSpectralConv2D_DoesNotMutateWeights(t *testing.T) {
	conv, err := NewConv2D(1, 2, 3, 1, 1, 1.0)
	require.NoError(t, err)
	before := append([]float64(nil), conv.W.Data...)

	sn := NewSpectralConv2D(conv)
	_, err = sn.Forward(tensor.New(1, 1, 4, 4))
	require.NoError(t, err)

	assert.Equal(t, before, conv.W.Data, "normalization must rescale a copy, not the stored weight")
}

func TestSpectralEmbedding_Lookup(t *testing.T) {
	e, err := NewEmbedding(4, 8, 1.0)
	require.NoError(t, err)
	sn := NewSpectralEmbedding(e)

	out, err := sn.Forward([]int{1, 3})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 8}, out.Shape)

	_, err = sn.Forward(nil)
	assert.ErrorIs(t, err, ErrMissingConditioning)
}

func TestSpectralLinear_ConcurrentForward(t *testing.T) {
	l, err := NewLinear(8, 4, 1.0)
	require.NoError(t, err)
	sn := NewSpectralLinear(l)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				if _, err := sn.Forward(tensor.New(2, 8)); err != nil {
					errs[g] = err
					return
				}
			}
		}(g)
	}
	wg.Wait()
	for _, err := range errs {
		assert.NoError(t, err)
	}
}
