package nn

import (
	"fmt"

	"sngan/nn/layers"
	"sngan/tensor"
)

// Generator maps a latent vector (and, when conditional, a class label per
// sample) to an image in [-1, 1]. The block pipeline is fixed at
// construction and immutable afterwards.
type Generator struct {
	cfg         Config
	topChannels int

	dense   *layers.Linear
	blocks  []*GeneratorBlock
	outNorm *layers.BatchNorm2D
	outConv *layers.Conv2D
}

// NewGenerator128 builds the 128×128 variant: the dense projection feeds
// ch·16 channels at the bottom width and five upsampling blocks halve the
// channel count down to ch.
func NewGenerator128(cfg Config) (*Generator, error) {
	cfg = cfg.withDefaults(64)
	widths := []int{cfg.Ch * 16, cfg.Ch * 16, cfg.Ch * 8, cfg.Ch * 4, cfg.Ch * 2, cfg.Ch}
	return newGenerator(cfg, widths)
}

// NewGenerator32 builds the 32×32 variant: three same-width upsampling
// blocks at a constant ch channels.
func NewGenerator32(cfg Config) (*Generator, error) {
	cfg = cfg.withDefaults(256)
	widths := []int{cfg.Ch, cfg.Ch, cfg.Ch, cfg.Ch}
	return newGenerator(cfg, widths)
}

// newGenerator assembles dense projection, upsampling blocks over the
// channel chain widths[0]→…→widths[len-1], and the output head.
func newGenerator(cfg Config, widths []int) (*Generator, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	top := widths[0]
	dense, err := layers.NewLinear(cfg.ZDim, cfg.BottomWidth*cfg.BottomWidth*top, 1.0)
	if err != nil {
		return nil, err
	}
	blocks := make([]*GeneratorBlock, 0, len(widths)-1)
	for i := 0; i+1 < len(widths); i++ {
		block, err := NewGeneratorBlock(BlockConfig{
			In:         widths[i],
			Out:        widths[i+1],
			Categories: cfg.Categories,
			Upsample:   true,
		})
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, block)
	}
	outCh := widths[len(widths)-1]
	outNorm, err := layers.NewBatchNorm2D(outCh)
	if err != nil {
		return nil, err
	}
	outConv, err := layers.NewConv2D(outCh, 3, 3, 1, 1, 1.0)
	if err != nil {
		return nil, err
	}
	return &Generator{
		cfg:         cfg,
		topChannels: top,
		dense:       dense,
		blocks:      blocks,
		outNorm:     outNorm,
		outConv:     outConv,
	}, nil
}

// Conditional reports whether the generator consumes class labels.
func (g *Generator) Conditional() bool { return g.cfg.Categories > 0 }

// OutputSize returns the spatial width of generated images:
// bottom width doubled once per upsampling block.
func (g *Generator) OutputSize() int {
	size := g.cfg.BottomWidth
	for _, b := range g.blocks {
		if b.Upsamples() {
			size *= 2
		}
	}
	return size
}

// Forward maps an (N, ZDim) latent batch to an (N, 3, S, S) image batch
// with every value in [-1, 1]. A conditional generator requires one label
// per sample; an unconditional one rejects labels.
func (g *Generator) Forward(z *tensor.Tensor, labels []int) (*tensor.Tensor, error) {
	if len(z.Shape) != 2 {
		return nil, fmt.Errorf("%w: latent batch must be 2-D, got %v", ErrShapeMismatch, z.Shape)
	}
	n := z.Shape[0]
	if z.Shape[1] != g.cfg.ZDim {
		return nil, fmt.Errorf("%w: latent dimension %d, expected %d", ErrShapeMismatch, z.Shape[1], g.cfg.ZDim)
	}
	if err := checkLabels(g.cfg.Categories, n, labels, true); err != nil {
		return nil, err
	}

	h, err := g.dense.Forward(z)
	if err != nil {
		return nil, err
	}
	if h, err = h.Reshape(n, g.topChannels, g.cfg.BottomWidth, g.cfg.BottomWidth); err != nil {
		return nil, err
	}
	for _, block := range g.blocks {
		if h, err = block.Forward(h, labels); err != nil {
			return nil, err
		}
	}
	if h, err = g.outNorm.Forward(h); err != nil {
		return nil, err
	}
	h, err = g.outConv.Forward(layers.ReLU(h))
	if err != nil {
		return nil, err
	}
	return layers.Tanh(h), nil
}

// SetTraining toggles batch-norm statistics mode across the pipeline.
func (g *Generator) SetTraining(training bool) {
	for _, block := range g.blocks {
		block.norm1.SetTraining(training)
		block.norm2.SetTraining(training)
	}
	g.outNorm.SetTraining(training)
}

// Parameters returns every learnable tensor of the model.
func (g *Generator) Parameters() []*tensor.Tensor {
	params := g.dense.Parameters()
	for _, block := range g.blocks {
		params = append(params, block.Parameters()...)
	}
	params = append(params, g.outNorm.Parameters()...)
	params = append(params, g.outConv.Parameters()...)
	return params
}
