package tensor

import (
	"errors"
	"fmt"
)

// ErrShape reports incompatible or malformed tensor dimensions. Every
// shape failure in this package wraps it, so callers can errors.Is
// without inspecting messages.
var ErrShape = errors.New("shape mismatch")

// Tensor is a simple n-D array backed by a flat []float64.
// Image batches use NCHW layout throughout.
type Tensor struct {
	Data  []float64
	Shape []int
}

// New allocates a Tensor of given shape (product of dims = len(Data)).
func New(shape ...int) *Tensor {
	// Compute total size
	total := 1
	for _, d := range shape {
		total *= d
	}
	return &Tensor{
		Data:  make([]float64, total),
		Shape: append([]int(nil), shape...),
	}
}

// NewWithData creates a 1-D tensor from existing data slice.
func NewWithData(data []float64) *Tensor {
	return &Tensor{
		Data:  append([]float64(nil), data...),
		Shape: []int{len(data)},
	}
}

// Size returns the total number of elements.
func (t *Tensor) Size() int {
	total := 1
	for _, d := range t.Shape {
		total *= d
	}
	return total
}

// Reshape returns a copy of t with a new shape of identical element count.
func (t *Tensor) Reshape(shape ...int) (*Tensor, error) {
	total := 1
	for _, d := range shape {
		total *= d
	}
	if total != len(t.Data) {
		return nil, fmt.Errorf("%w: reshape %v to %v: element count differs", ErrShape, t.Shape, shape)
	}
	return &Tensor{
		Data:  append([]float64(nil), t.Data...),
		Shape: append([]int(nil), shape...),
	}, nil
}

// Add returns a+b (same shape), or error if shapes differ.
func Add(a, b *Tensor) (*Tensor, error) {
	// Shapes must match
	if len(a.Shape) != len(b.Shape) {
		return nil, fmt.Errorf("%w: %v vs %v", ErrShape, a.Shape, b.Shape)
	}
	for i := range a.Shape {
		if a.Shape[i] != b.Shape[i] {
			return nil, fmt.Errorf("%w: %v vs %v", ErrShape, a.Shape, b.Shape)
		}
	}
	// Element-wise add
	out := New(a.Shape...)
	for i := range a.Data {
		out.Data[i] = a.Data[i] + b.Data[i]
	}
	return out, nil
}

// MatMul returns a×b (2-D only), or error if dims mismatch.
func MatMul(a, b *Tensor) (*Tensor, error) {
	// Only 2-D tensors
	if len(a.Shape) != 2 || len(b.Shape) != 2 {
		return nil, fmt.Errorf("%w: MatMul requires 2-D tensors, got %v and %v", ErrShape, a.Shape, b.Shape)
	}
	r, k := a.Shape[0], a.Shape[1]
	k2, c := b.Shape[0], b.Shape[1]
	if k != k2 {
		return nil, fmt.Errorf("%w: inner dimensions %d vs %d", ErrShape, k, k2)
	}
	out := New(r, c)
	// Compute C = A×B
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			sum := 0.0
			for t := 0; t < k; t++ {
				sum += a.Data[i*k+t] * b.Data[t*c+j]
			}
			out.Data[i*c+j] = sum
		}
	}
	return out, nil
}

// UpsampleNearest2 resizes an NCHW tensor by ×2 with nearest-neighbor
// interpolation. Stateless: no learnable parameters.
func UpsampleNearest2(x *Tensor) (*Tensor, error) {
	if len(x.Shape) != 4 {
		return nil, fmt.Errorf("%w: UpsampleNearest2 requires NCHW tensor, got %v", ErrShape, x.Shape)
	}
	n, c, h, w := x.Shape[0], x.Shape[1], x.Shape[2], x.Shape[3]
	oh, ow := 2*h, 2*w
	out := New(n, c, oh, ow)
	for b := 0; b < n; b++ {
		for ch := 0; ch < c; ch++ {
			src := (b*c + ch) * h * w
			dst := (b*c + ch) * oh * ow
			for y := 0; y < oh; y++ {
				for x2 := 0; x2 < ow; x2++ {
					out.Data[dst+y*ow+x2] = x.Data[src+(y/2)*w+x2/2]
				}
			}
		}
	}
	return out, nil
}

// AvgPool2 average-pools an NCHW tensor with a 2×2 kernel and stride 2.
func AvgPool2(x *Tensor) (*Tensor, error) {
	if len(x.Shape) != 4 {
		return nil, fmt.Errorf("%w: AvgPool2 requires NCHW tensor, got %v", ErrShape, x.Shape)
	}
	n, c, h, w := x.Shape[0], x.Shape[1], x.Shape[2], x.Shape[3]
	if h < 2 || w < 2 {
		return nil, fmt.Errorf("%w: AvgPool2 spatial dims %dx%d too small to pool", ErrShape, h, w)
	}
	oh, ow := h/2, w/2
	out := New(n, c, oh, ow)
	for b := 0; b < n; b++ {
		for ch := 0; ch < c; ch++ {
			src := (b*c + ch) * h * w
			dst := (b*c + ch) * oh * ow
			for y := 0; y < oh; y++ {
				for x2 := 0; x2 < ow; x2++ {
					s := x.Data[src+2*y*w+2*x2] +
						x.Data[src+2*y*w+2*x2+1] +
						x.Data[src+(2*y+1)*w+2*x2] +
						x.Data[src+(2*y+1)*w+2*x2+1]
					out.Data[dst+y*ow+x2] = s / 4
				}
			}
		}
	}
	return out, nil
}

// SumSpatial sums an NCHW tensor over its two spatial dimensions,
// returning an (N, C) tensor.
func SumSpatial(x *Tensor) (*Tensor, error) {
	if len(x.Shape) != 4 {
		return nil, fmt.Errorf("%w: SumSpatial requires NCHW tensor, got %v", ErrShape, x.Shape)
	}
	n, c, h, w := x.Shape[0], x.Shape[1], x.Shape[2], x.Shape[3]
	out := New(n, c)
	for b := 0; b < n; b++ {
		for ch := 0; ch < c; ch++ {
			src := (b*c + ch) * h * w
			sum := 0.0
			for i := 0; i < h*w; i++ {
				sum += x.Data[src+i]
			}
			out.Data[b*c+ch] = sum
		}
	}
	return out, nil
}

// At returns the element at the given indices.
// For a 4D tensor [a, b, c, d], At(i, j, k, l) returns the element at position [i][j][k][l].
func (t *Tensor) At(indices ...int) float64 {
	if len(indices) != len(t.Shape) {
		panic(fmt.Sprintf("At: expected %d indices, got %d", len(t.Shape), len(indices)))
	}

	// Compute linear index
	idx := 0
	stride := 1
	for i := len(indices) - 1; i >= 0; i-- {
		if indices[i] < 0 || indices[i] >= t.Shape[i] {
			panic(fmt.Sprintf("At: index %d out of bounds for dimension %d (shape: %v)", indices[i], i, t.Shape))
		}
		idx += indices[i] * stride
		stride *= t.Shape[i]
	}

	return t.Data[idx]
}

// Set sets the element at the given indices to the given value.
func (t *Tensor) Set(value float64, indices ...int) {
	if len(indices) != len(t.Shape) {
		panic(fmt.Sprintf("Set: expected %d indices, got %d", len(t.Shape), len(indices)))
	}

	// Compute linear index
	idx := 0
	stride := 1
	for i := len(indices) - 1; i >= 0; i-- {
		if indices[i] < 0 || indices[i] >= t.Shape[i] {
			panic(fmt.Sprintf("Set: index %d out of bounds for dimension %d (shape: %v)", indices[i], i, t.Shape))
		}
		idx += indices[i] * stride
		stride *= t.Shape[i]
	}

	t.Data[idx] = value
}
