package layers

import (
	"fmt"
	"math"

	"sngan/tensor"
)

// CategoricalBatchNorm is the Conditional normalization mode: per-channel
// batch-statistics normalization followed by a scale/shift selected per
// sample by an integer class label.
type CategoricalBatchNorm struct {
	features   int
	numClasses int
	eps        float64
	momentum   float64
	training   bool

	Gamma *tensor.Tensor // [numClasses, features]
	Beta  *tensor.Tensor // [numClasses, features]

	runningMean []float64
	runningVar  []float64
}

// NewCategoricalBatchNorm creates a class-conditional batch normalization
// layer. Every class starts with scale 1 and shift 0.
func NewCategoricalBatchNorm(features, numClasses int) (*CategoricalBatchNorm, error) {
	if features <= 0 || numClasses <= 0 {
		return nil, fmt.Errorf("%w: categorical batchnorm features=%d classes=%d",
			ErrInitialization, features, numClasses)
	}
	cbn := &CategoricalBatchNorm{
		features:    features,
		numClasses:  numClasses,
		eps:         1e-5,
		momentum:    0.1,
		training:    true,
		Gamma:       tensor.New(numClasses, features),
		Beta:        tensor.New(numClasses, features),
		runningMean: make([]float64, features),
		runningVar:  make([]float64, features),
	}
	for i := range cbn.Gamma.Data {
		cbn.Gamma.Data[i] = 1
	}
	for i := 0; i < features; i++ {
		cbn.runningVar[i] = 1
	}
	return cbn, nil
}

// SetTraining toggles between batch statistics and running statistics.
func (cbn *CategoricalBatchNorm) SetTraining(training bool) { cbn.training = training }

// Forward normalizes x and applies the affine parameters of each sample's
// class. Labels are mandatory in this mode.
func (cbn *CategoricalBatchNorm) Forward(x *tensor.Tensor, labels []int) (*tensor.Tensor, error) {
	if labels == nil {
		return nil, fmt.Errorf("%w: categorical batch norm requires labels", ErrMissingConditioning)
	}
	if len(x.Shape) != 4 {
		return nil, fmt.Errorf("%w: batchnorm input must be NCHW, got %v", ErrShapeMismatch, x.Shape)
	}
	n, c, h, w := x.Shape[0], x.Shape[1], x.Shape[2], x.Shape[3]
	if c != cbn.features {
		return nil, fmt.Errorf("%w: batchnorm expects %d channels, got %d", ErrShapeMismatch, cbn.features, c)
	}
	if len(labels) != n {
		return nil, fmt.Errorf("%w: %d labels for batch of %d", ErrShapeMismatch, len(labels), n)
	}
	for _, label := range labels {
		if label < 0 || label >= cbn.numClasses {
			return nil, fmt.Errorf("%w: label %d out of range [0, %d)", ErrShapeMismatch, label, cbn.numClasses)
		}
	}

	var mean, variance []float64
	if cbn.training {
		mean, variance = channelStats(x)
		for ch := 0; ch < cbn.features; ch++ {
			cbn.runningMean[ch] = (1-cbn.momentum)*cbn.runningMean[ch] + cbn.momentum*mean[ch]
			cbn.runningVar[ch] = (1-cbn.momentum)*cbn.runningVar[ch] + cbn.momentum*variance[ch]
		}
	} else {
		mean, variance = cbn.runningMean, cbn.runningVar
	}

	out := tensor.New(x.Shape...)
	for b := 0; b < n; b++ {
		row := labels[b] * cbn.features
		for ch := 0; ch < c; ch++ {
			invStd := 1 / math.Sqrt(variance[ch]+cbn.eps)
			gamma, beta := cbn.Gamma.Data[row+ch], cbn.Beta.Data[row+ch]
			base := b*c*h*w + ch*h*w
			for i := 0; i < h*w; i++ {
				out.Data[base+i] = (x.Data[base+i]-mean[ch])*invStd*gamma + beta
			}
		}
	}
	return out, nil
}

// Normalize satisfies the normalization contract used by residual blocks.
func (cbn *CategoricalBatchNorm) Normalize(x *tensor.Tensor, labels []int) (*tensor.Tensor, error) {
	return cbn.Forward(x, labels)
}

// Parameters returns the layer's learnable tensors.
func (cbn *CategoricalBatchNorm) Parameters() []*tensor.Tensor {
	return []*tensor.Tensor{cbn.Gamma, cbn.Beta}
}
