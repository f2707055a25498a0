package layers

import (
	"fmt"
	"math"

	"sngan/tensor"
)

// BatchNorm2D normalizes an NCHW tensor per channel with batch statistics
// and a learned affine scale/shift. It is the Plain normalization mode: it
// rejects class labels.
type BatchNorm2D struct {
	features int
	eps      float64
	momentum float64
	training bool

	Gamma *tensor.Tensor // [features]
	Beta  *tensor.Tensor // [features]

	runningMean []float64
	runningVar  []float64
}

// NewBatchNorm2D creates a batch normalization layer for the given channel
// count. Scale starts at 1, shift at 0.
func NewBatchNorm2D(features int) (*BatchNorm2D, error) {
	if features <= 0 {
		return nil, fmt.Errorf("%w: batchnorm features must be positive, got %d", ErrInitialization, features)
	}
	bn := &BatchNorm2D{
		features:    features,
		eps:         1e-5,
		momentum:    0.1,
		training:    true,
		Gamma:       tensor.New(features),
		Beta:        tensor.New(features),
		runningMean: make([]float64, features),
		runningVar:  make([]float64, features),
	}
	for i := 0; i < features; i++ {
		bn.Gamma.Data[i] = 1
		bn.runningVar[i] = 1
	}
	return bn, nil
}

// SetTraining toggles between batch statistics (training) and running
// statistics (inference).
func (bn *BatchNorm2D) SetTraining(training bool) { bn.training = training }

// Forward normalizes x per channel.
func (bn *BatchNorm2D) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	mean, variance, err := bn.stats(x)
	if err != nil {
		return nil, err
	}
	n, c, h, w := x.Shape[0], x.Shape[1], x.Shape[2], x.Shape[3]
	out := tensor.New(x.Shape...)
	for ch := 0; ch < c; ch++ {
		invStd := 1 / math.Sqrt(variance[ch]+bn.eps)
		gamma, beta := bn.Gamma.Data[ch], bn.Beta.Data[ch]
		for b := 0; b < n; b++ {
			base := b*c*h*w + ch*h*w
			for i := 0; i < h*w; i++ {
				out.Data[base+i] = (x.Data[base+i]-mean[ch])*invStd*gamma + beta
			}
		}
	}
	return out, nil
}

// Normalize satisfies the normalization contract used by residual blocks.
// Supplying labels to the plain mode is a conditioning error.
func (bn *BatchNorm2D) Normalize(x *tensor.Tensor, labels []int) (*tensor.Tensor, error) {
	if labels != nil {
		return nil, fmt.Errorf("%w: labels supplied to unconditional batch norm", ErrMissingConditioning)
	}
	return bn.Forward(x)
}

// stats returns the per-channel mean and variance to normalize with,
// updating the running statistics in training mode.
func (bn *BatchNorm2D) stats(x *tensor.Tensor) (mean, variance []float64, err error) {
	if len(x.Shape) != 4 {
		return nil, nil, fmt.Errorf("%w: batchnorm input must be NCHW, got %v", ErrShapeMismatch, x.Shape)
	}
	if x.Shape[1] != bn.features {
		return nil, nil, fmt.Errorf("%w: batchnorm expects %d channels, got %d", ErrShapeMismatch, bn.features, x.Shape[1])
	}
	if !bn.training {
		return bn.runningMean, bn.runningVar, nil
	}
	mean, variance = channelStats(x)
	for ch := 0; ch < bn.features; ch++ {
		bn.runningMean[ch] = (1-bn.momentum)*bn.runningMean[ch] + bn.momentum*mean[ch]
		bn.runningVar[ch] = (1-bn.momentum)*bn.runningVar[ch] + bn.momentum*variance[ch]
	}
	return mean, variance, nil
}

// channelStats computes per-channel mean and population variance over the
// batch and spatial dimensions of an NCHW tensor.
func channelStats(x *tensor.Tensor) (mean, variance []float64) {
	n, c, h, w := x.Shape[0], x.Shape[1], x.Shape[2], x.Shape[3]
	mean = make([]float64, c)
	variance = make([]float64, c)
	count := float64(n * h * w)
	for ch := 0; ch < c; ch++ {
		sum := 0.0
		for b := 0; b < n; b++ {
			base := b*c*h*w + ch*h*w
			for i := 0; i < h*w; i++ {
				sum += x.Data[base+i]
			}
		}
		mean[ch] = sum / count
	}
	for ch := 0; ch < c; ch++ {
		sq := 0.0
		for b := 0; b < n; b++ {
			base := b*c*h*w + ch*h*w
			for i := 0; i < h*w; i++ {
				d := x.Data[base+i] - mean[ch]
				sq += d * d
			}
		}
		variance[ch] = sq / count
	}
	return mean, variance
}

// Parameters returns the layer's learnable tensors.
func (bn *BatchNorm2D) Parameters() []*tensor.Tensor {
	return []*tensor.Tensor{bn.Gamma, bn.Beta}
}
