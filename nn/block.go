package nn

import (
	"fmt"
	"math"

	"sngan/nn/layers"
	"sngan/tensor"
)

// BlockConfig parameterizes one residual block. Hidden defaults to Out,
// Kernel to 3 with stride 1 and same-padding. Optimized marks the
// discriminator stem: its skip convolution and 2× pooling are always
// instantiated regardless of channel equality.
type BlockConfig struct {
	In, Out, Hidden int

	Kernel, Stride, Padding int

	// Categories > 0 switches generator-block normalization to the
	// class-conditional mode.
	Categories int

	Upsample   bool // generator blocks: ×2 nearest resize before conv1
	Downsample bool // discriminator blocks: ×2 average pool after conv2
	Optimized  bool
}

func (c BlockConfig) withDefaults() BlockConfig {
	if c.Hidden == 0 {
		c.Hidden = c.Out
	}
	if c.Kernel == 0 {
		c.Kernel = 3
	}
	if c.Stride == 0 {
		c.Stride = 1
	}
	if c.Padding == 0 && c.Kernel > 1 {
		c.Padding = c.Kernel / 2
	}
	return c
}

// ResidualBlock is the shared two-convolution residual core. Its base
// forward form is what the discriminator stem runs; the generator and
// discriminator block variants reuse its convolutions with their own
// orderings. The main convolutions are initialized with gain sqrt(2) and
// the 1×1 skip convolution with gain 1, which balances the residual branch
// against the skip branch at initialization.
type ResidualBlock struct {
	in, out, hidden int
	optimized       bool

	conv1 *layers.Conv2D // in -> hidden
	conv2 *layers.Conv2D // hidden -> out
	skip  *layers.Conv2D // 1×1, in -> out; nil for identity skip
}

// NewResidualBlock constructs the residual core. The skip convolution
// exists iff In != Out or the block is Optimized.
func NewResidualBlock(cfg BlockConfig) (*ResidualBlock, error) {
	cfg = cfg.withDefaults()
	if cfg.In <= 0 || cfg.Out <= 0 || cfg.Hidden <= 0 {
		return nil, fmt.Errorf("%w: block channels in=%d out=%d hidden=%d",
			ErrInitialization, cfg.In, cfg.Out, cfg.Hidden)
	}
	conv1, err := layers.NewConv2D(cfg.In, cfg.Hidden, cfg.Kernel, cfg.Stride, cfg.Padding, math.Sqrt2)
	if err != nil {
		return nil, err
	}
	conv2, err := layers.NewConv2D(cfg.Hidden, cfg.Out, cfg.Kernel, cfg.Stride, cfg.Padding, math.Sqrt2)
	if err != nil {
		return nil, err
	}
	b := &ResidualBlock{
		in:        cfg.In,
		out:       cfg.Out,
		hidden:    cfg.Hidden,
		optimized: cfg.Optimized,
		conv1:     conv1,
		conv2:     conv2,
	}
	if cfg.In != cfg.Out || cfg.Optimized {
		b.skip, err = layers.NewConv2D(cfg.In, cfg.Out, 1, 1, 0, 1.0)
		if err != nil {
			return nil, err
		}
	}
	return b, nil
}

// HasSkip reports whether a 1×1 skip convolution was instantiated.
func (b *ResidualBlock) HasSkip() bool { return b.skip != nil }

// Forward runs the base form: conv1 → ReLU → conv2, pooling both paths by
// 2 when optimized, then adds the (possibly projected) skip branch.
func (b *ResidualBlock) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	skip := input
	h, err := b.conv1.Forward(input)
	if err != nil {
		return nil, err
	}
	h, err = b.conv2.Forward(layers.ReLU(h))
	if err != nil {
		return nil, err
	}
	if b.optimized {
		if h, err = tensor.AvgPool2(h); err != nil {
			return nil, err
		}
		if skip, err = tensor.AvgPool2(skip); err != nil {
			return nil, err
		}
	}
	if b.skip != nil {
		if skip, err = b.skip.Forward(skip); err != nil {
			return nil, err
		}
	}
	return tensor.Add(h, skip)
}

// Parameters returns every learnable tensor of the core.
func (b *ResidualBlock) Parameters() []*tensor.Tensor {
	params := append(b.conv1.Parameters(), b.conv2.Parameters()...)
	if b.skip != nil {
		params = append(params, b.skip.Parameters()...)
	}
	return params
}

// featureNorm is the normalization contract consumed by generator blocks:
// the Plain mode rejects labels, the Conditional mode requires them.
type featureNorm interface {
	Normalize(x *tensor.Tensor, labels []int) (*tensor.Tensor, error)
	Parameters() []*tensor.Tensor
	SetTraining(training bool)
}

// GeneratorBlock is a pre-activation residual block: normalization and
// activation precede each convolution, and an optional ×2 nearest-neighbor
// upsample is applied to both the main and skip branches before conv1.
type GeneratorBlock struct {
	res         *ResidualBlock
	norm1       featureNorm // sized to In
	norm2       featureNorm // sized to Hidden
	upsample    bool
	conditional bool
}

// NewGeneratorBlock builds a generator block from cfg. Categories > 0
// selects class-conditional normalization.
func NewGeneratorBlock(cfg BlockConfig) (*GeneratorBlock, error) {
	cfg = cfg.withDefaults()
	if cfg.Optimized || cfg.Downsample {
		return nil, fmt.Errorf("%w: generator block cannot downsample", ErrInitialization)
	}
	res, err := NewResidualBlock(cfg)
	if err != nil {
		return nil, err
	}
	g := &GeneratorBlock{
		res:         res,
		upsample:    cfg.Upsample,
		conditional: cfg.Categories > 0,
	}
	if g.conditional {
		if g.norm1, err = layers.NewCategoricalBatchNorm(cfg.In, cfg.Categories); err != nil {
			return nil, err
		}
		if g.norm2, err = layers.NewCategoricalBatchNorm(cfg.Hidden, cfg.Categories); err != nil {
			return nil, err
		}
	} else {
		if g.norm1, err = layers.NewBatchNorm2D(cfg.In); err != nil {
			return nil, err
		}
		if g.norm2, err = layers.NewBatchNorm2D(cfg.Hidden); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// HasSkip reports whether a 1×1 skip convolution was instantiated.
func (g *GeneratorBlock) HasSkip() bool { return g.res.HasSkip() }

// Upsamples reports whether the block doubles spatial resolution.
func (g *GeneratorBlock) Upsamples() bool { return g.upsample }

// Forward applies norm → ReLU → (upsample) → conv1 → norm → ReLU → conv2
// and adds the skip branch. The skip branch receives the same spatial
// resize as the main branch before the sum; it is taken from the
// pre-normalization input.
func (g *GeneratorBlock) Forward(input *tensor.Tensor, labels []int) (*tensor.Tensor, error) {
	skip := input
	h, err := g.norm1.Normalize(input, labels)
	if err != nil {
		return nil, err
	}
	h = layers.ReLU(h)
	if g.upsample {
		if h, err = tensor.UpsampleNearest2(h); err != nil {
			return nil, err
		}
		if skip, err = tensor.UpsampleNearest2(skip); err != nil {
			return nil, err
		}
	}
	if h, err = g.res.conv1.Forward(h); err != nil {
		return nil, err
	}
	if h, err = g.norm2.Normalize(h, labels); err != nil {
		return nil, err
	}
	if h, err = g.res.conv2.Forward(layers.ReLU(h)); err != nil {
		return nil, err
	}
	if g.res.skip != nil {
		if skip, err = g.res.skip.Forward(skip); err != nil {
			return nil, err
		}
	}
	return tensor.Add(h, skip)
}

// Parameters returns every learnable tensor of the block.
func (g *GeneratorBlock) Parameters() []*tensor.Tensor {
	params := g.res.Parameters()
	params = append(params, g.norm1.Parameters()...)
	params = append(params, g.norm2.Parameters()...)
	return params
}

// DiscriminatorBlock is a residual block whose convolutions are wrapped in
// spectral normalization. There is no feature normalization: the weight
// constraint substitutes for it.
type DiscriminatorBlock struct {
	res        *ResidualBlock
	conv1      *layers.SpectralConv2D
	conv2      *layers.SpectralConv2D
	skip       *layers.SpectralConv2D // nil for identity skip
	downsample bool
}

// NewDiscriminatorBlock builds a discriminator block from cfg.
func NewDiscriminatorBlock(cfg BlockConfig) (*DiscriminatorBlock, error) {
	cfg = cfg.withDefaults()
	if cfg.Upsample {
		return nil, fmt.Errorf("%w: discriminator block cannot upsample", ErrInitialization)
	}
	if cfg.Categories > 0 {
		return nil, fmt.Errorf("%w: discriminator block has no normalization to condition", ErrInitialization)
	}
	res, err := NewResidualBlock(cfg)
	if err != nil {
		return nil, err
	}
	d := &DiscriminatorBlock{
		res:        res,
		conv1:      layers.NewSpectralConv2D(res.conv1),
		conv2:      layers.NewSpectralConv2D(res.conv2),
		downsample: cfg.Downsample,
	}
	if res.skip != nil {
		d.skip = layers.NewSpectralConv2D(res.skip)
	}
	return d, nil
}

// HasSkip reports whether a 1×1 skip convolution was instantiated.
func (d *DiscriminatorBlock) HasSkip() bool { return d.res.HasSkip() }

// Downsamples reports whether the block halves spatial resolution.
func (d *DiscriminatorBlock) Downsamples() bool { return d.downsample }

// Forward projects the skip branch from the raw input (before the shared
// activation), runs ReLU → conv1 → ReLU → conv2 on the main branch, pools
// both by 2 when downsampling, and sums.
func (d *DiscriminatorBlock) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	skip := input
	var err error
	if d.skip != nil {
		if skip, err = d.skip.Forward(input); err != nil {
			return nil, err
		}
	}
	h, err := d.conv1.Forward(layers.ReLU(input))
	if err != nil {
		return nil, err
	}
	if h, err = d.conv2.Forward(layers.ReLU(h)); err != nil {
		return nil, err
	}
	if d.downsample {
		if h, err = tensor.AvgPool2(h); err != nil {
			return nil, err
		}
		if skip, err = tensor.AvgPool2(skip); err != nil {
			return nil, err
		}
	}
	return tensor.Add(h, skip)
}

// Parameters returns every learnable tensor of the block.
func (d *DiscriminatorBlock) Parameters() []*tensor.Tensor {
	return d.res.Parameters()
}
