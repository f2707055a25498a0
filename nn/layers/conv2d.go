package layers

import (
	"fmt"

	"sngan/tensor"
)

// Conv2D is a 2D convolutional layer over NCHW tensors with zero padding.
type Conv2D struct {
	inChan, outChan int
	kernel          int
	stride, padding int

	W *tensor.Tensor // weights: [outChan, inChan, kernel, kernel]
	B *tensor.Tensor // bias: [outChan]
}

// NewConv2D creates a Conv2D layer with Xavier-uniform initialized weights
// keyed to gain. Fan counts include the kernel area.
func NewConv2D(inChan, outChan, kernel, stride, padding int, gain float64) (*Conv2D, error) {
	if inChan <= 0 || outChan <= 0 || kernel <= 0 || stride <= 0 || padding < 0 {
		return nil, fmt.Errorf("%w: conv2d %d->%d kernel=%d stride=%d padding=%d",
			ErrInitialization, inChan, outChan, kernel, stride, padding)
	}
	c := &Conv2D{
		inChan:  inChan,
		outChan: outChan,
		kernel:  kernel,
		stride:  stride,
		padding: padding,
		W:       tensor.New(outChan, inChan, kernel, kernel),
		B:       tensor.New(outChan),
	}
	if err := XavierUniform(c.W, inChan*kernel*kernel, outChan*kernel*kernel, gain); err != nil {
		return nil, err
	}
	return c, nil
}

// OutChannels returns the layer's output channel count.
func (c *Conv2D) OutChannels() int { return c.outChan }

// OutputShape returns the spatial output dimensions for a given input.
func (c *Conv2D) OutputShape(inH, inW int) (outH, outW int) {
	outH = (inH+2*c.padding-c.kernel)/c.stride + 1
	outW = (inW+2*c.padding-c.kernel)/c.stride + 1
	return
}

// Forward convolves an (N, inChan, H, W) tensor into (N, outChan, H', W').
func (c *Conv2D) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	return c.forwardWith(input, c.W)
}

// forwardWith runs the convolution with an explicit weight tensor so the
// spectral-norm wrapper can substitute a rescaled copy.
func (c *Conv2D) forwardWith(input, w *tensor.Tensor) (*tensor.Tensor, error) {
	if len(input.Shape) != 4 {
		return nil, fmt.Errorf("%w: conv2d input must be NCHW, got %v", ErrShapeMismatch, input.Shape)
	}
	batch, inC, height, width := input.Shape[0], input.Shape[1], input.Shape[2], input.Shape[3]
	if inC != c.inChan {
		return nil, fmt.Errorf("%w: conv2d expects %d input channels, got %d", ErrShapeMismatch, c.inChan, inC)
	}
	outH, outW := c.OutputShape(height, width)
	if outH <= 0 || outW <= 0 {
		return nil, fmt.Errorf("%w: conv2d input %dx%d too small for kernel %d", ErrShapeMismatch, height, width, c.kernel)
	}
	output := tensor.New(batch, c.outChan, outH, outW)

	k := c.kernel
	for b := 0; b < batch; b++ {
		for oc := 0; oc < c.outChan; oc++ {
			for y := 0; y < outH; y++ {
				for x := 0; x < outW; x++ {
					sum := c.B.Data[oc]
					for ic := 0; ic < c.inChan; ic++ {
						inBase := b*c.inChan*height*width + ic*height*width
						wBase := oc*c.inChan*k*k + ic*k*k
						for dy := 0; dy < k; dy++ {
							iy := y*c.stride + dy - c.padding
							if iy < 0 || iy >= height {
								continue
							}
							for dx := 0; dx < k; dx++ {
								ix := x*c.stride + dx - c.padding
								if ix < 0 || ix >= width {
									continue
								}
								sum += input.Data[inBase+iy*width+ix] * w.Data[wBase+dy*k+dx]
							}
						}
					}
					output.Data[b*c.outChan*outH*outW+oc*outH*outW+y*outW+x] = sum
				}
			}
		}
	}
	return output, nil
}

// Parameters returns the layer's learnable tensors.
func (c *Conv2D) Parameters() []*tensor.Tensor {
	return []*tensor.Tensor{c.W, c.B}
}
