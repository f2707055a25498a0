package layers

import (
	"math"
	"sync"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"sngan/tensor"
)

// spectralState holds the persistent power-iteration vectors for one
// wrapped layer. Every normalized() call performs one power-iteration step
// and returns a fresh copy of the weight divided by the estimated largest
// singular value, so concurrent forwards each see a consistent weight.
type spectralState struct {
	mu sync.Mutex
	u  []float64
	v  []float64
}

func newSpectralState(rows, cols int) *spectralState {
	s := &spectralState{
		u: make([]float64, rows),
		v: make([]float64, cols),
	}
	g := distuv.Normal{Mu: 0, Sigma: 1}
	for i := range s.u {
		s.u[i] = g.Rand()
	}
	l2normalize(s.u)
	return s
}

// normalized views w as a (rows × cols) matrix flattened on its first
// dimension, refines u and v once, and returns w / sigma.
func (s *spectralState) normalized(w *tensor.Tensor) *tensor.Tensor {
	rows := w.Shape[0]
	cols := len(w.Data) / rows

	s.mu.Lock()
	wm := mat.NewDense(rows, cols, w.Data)
	uv := mat.NewVecDense(rows, s.u)
	vv := mat.NewVecDense(cols, s.v)

	// v <- normalize(Wᵀu), u <- normalize(Wv)
	vv.MulVec(wm.T(), uv)
	l2normalize(s.v)
	uv.MulVec(wm, vv)
	l2normalize(s.u)

	// sigma = uᵀ W v
	tmp := mat.NewVecDense(rows, nil)
	tmp.MulVec(wm, vv)
	sigma := mat.Dot(uv, tmp)
	s.mu.Unlock()

	if sigma < 1e-12 {
		sigma = 1e-12
	}
	out := tensor.New(w.Shape...)
	inv := 1 / sigma
	for i, x := range w.Data {
		out.Data[i] = x * inv
	}
	return out
}

func l2normalize(x []float64) {
	sum := 0.0
	for _, v := range x {
		sum += v * v
	}
	norm := math.Sqrt(sum) + 1e-12
	for i := range x {
		x[i] /= norm
	}
}

// SpectralConv2D wraps a Conv2D, rescaling its weight to unit spectral
// norm before every forward call.
type SpectralConv2D struct {
	inner *Conv2D
	state *spectralState
}

// NewSpectralConv2D wraps an existing convolution.
func NewSpectralConv2D(c *Conv2D) *SpectralConv2D {
	return &SpectralConv2D{
		inner: c,
		state: newSpectralState(c.W.Shape[0], len(c.W.Data)/c.W.Shape[0]),
	}
}

// Unwrap exposes the underlying convolution, e.g. for initialization.
func (s *SpectralConv2D) Unwrap() *Conv2D { return s.inner }

// Forward delegates to the wrapped convolution with the rescaled weight.
func (s *SpectralConv2D) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	return s.inner.forwardWith(x, s.state.normalized(s.inner.W))
}

// Parameters returns the wrapped layer's learnable tensors.
func (s *SpectralConv2D) Parameters() []*tensor.Tensor { return s.inner.Parameters() }

// SpectralLinear wraps a Linear, rescaling its weight to unit spectral
// norm before every forward call.
type SpectralLinear struct {
	inner *Linear
	state *spectralState
}

// NewSpectralLinear wraps an existing dense layer.
func NewSpectralLinear(l *Linear) *SpectralLinear {
	return &SpectralLinear{
		inner: l,
		state: newSpectralState(l.W.Shape[0], l.W.Shape[1]),
	}
}

// Unwrap exposes the underlying dense layer.
func (s *SpectralLinear) Unwrap() *Linear { return s.inner }

// Forward delegates to the wrapped layer with the rescaled weight.
func (s *SpectralLinear) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	return s.inner.forwardWith(x, s.state.normalized(s.inner.W))
}

// Parameters returns the wrapped layer's learnable tensors.
func (s *SpectralLinear) Parameters() []*tensor.Tensor { return s.inner.Parameters() }

// SpectralEmbedding wraps an Embedding, rescaling its table to unit
// spectral norm before every lookup.
type SpectralEmbedding struct {
	inner *Embedding
	state *spectralState
}

// NewSpectralEmbedding wraps an existing embedding table.
func NewSpectralEmbedding(e *Embedding) *SpectralEmbedding {
	return &SpectralEmbedding{
		inner: e,
		state: newSpectralState(e.W.Shape[0], e.W.Shape[1]),
	}
}

// Unwrap exposes the underlying embedding.
func (s *SpectralEmbedding) Unwrap() *Embedding { return s.inner }

// Forward delegates to the wrapped lookup with the rescaled table.
func (s *SpectralEmbedding) Forward(labels []int) (*tensor.Tensor, error) {
	return s.inner.forwardWith(labels, s.state.normalized(s.inner.W))
}

// Parameters returns the wrapped layer's learnable tensors.
func (s *SpectralEmbedding) Parameters() []*tensor.Tensor { return s.inner.Parameters() }
