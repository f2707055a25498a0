package nn

import (
	"fmt"

	"sngan/nn/layers"
	"sngan/tensor"
)

// Discriminator maps an image batch to one real/fake score per sample.
// When built with Categories > 0 and called with labels, a per-class
// projection term is added to the score.
type Discriminator struct {
	cfg         Config
	topChannels int

	stem   *ResidualBlock
	blocks []*DiscriminatorBlock
	head   *layers.SpectralLinear
	proj   *layers.SpectralEmbedding // nil when unconditional
}

// NewDiscriminator128 builds the 128×128 variant: stem to ch, then five
// downsampling blocks doubling channels up to ch·16.
func NewDiscriminator128(cfg Config) (*Discriminator, error) {
	cfg = cfg.withDefaults(64)
	widths := []int{cfg.Ch, cfg.Ch * 2, cfg.Ch * 4, cfg.Ch * 8, cfg.Ch * 16, cfg.Ch * 16}
	return newDiscriminator(cfg, widths)
}

// NewDiscriminator32 builds the 32×32 variant: stem to ch, then three
// same-width downsampling blocks.
func NewDiscriminator32(cfg Config) (*Discriminator, error) {
	cfg = cfg.withDefaults(128)
	widths := []int{cfg.Ch, cfg.Ch, cfg.Ch, cfg.Ch}
	return newDiscriminator(cfg, widths)
}

// newDiscriminator assembles the stem, the downsampling block chain
// widths[0]→…→widths[len-1], and the scoring head.
func newDiscriminator(cfg Config, widths []int) (*Discriminator, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	// The stem consumes 3-channel images, so its channel-changing skip
	// convolution and pooling are always active.
	stem, err := NewResidualBlock(BlockConfig{In: 3, Out: widths[0], Optimized: true})
	if err != nil {
		return nil, err
	}
	blocks := make([]*DiscriminatorBlock, 0, len(widths)-1)
	for i := 0; i+1 < len(widths); i++ {
		block, err := NewDiscriminatorBlock(BlockConfig{
			In:         widths[i],
			Out:        widths[i+1],
			Downsample: true,
		})
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, block)
	}
	top := widths[len(widths)-1]
	linear, err := layers.NewLinear(top, 1, 1.0)
	if err != nil {
		return nil, err
	}
	d := &Discriminator{
		cfg:         cfg,
		topChannels: top,
		stem:        stem,
		blocks:      blocks,
		head:        layers.NewSpectralLinear(linear),
	}
	if cfg.Categories > 0 {
		embedding, err := layers.NewEmbedding(cfg.Categories, top, 1.0)
		if err != nil {
			return nil, err
		}
		d.proj = layers.NewSpectralEmbedding(embedding)
	}
	return d, nil
}

// Conditional reports whether the discriminator carries a per-class
// projection head.
func (d *Discriminator) Conditional() bool { return d.proj != nil }

// Forward scores an (N, 3, S, S) image batch, returning an (N, 1) tensor.
// Labels are optional on a conditional model; supplying them to an
// unconditional model is a conditioning error.
func (d *Discriminator) Forward(x *tensor.Tensor, labels []int) (*tensor.Tensor, error) {
	if len(x.Shape) != 4 {
		return nil, fmt.Errorf("%w: image batch must be NCHW, got %v", ErrShapeMismatch, x.Shape)
	}
	n := x.Shape[0]
	if x.Shape[1] != 3 {
		return nil, fmt.Errorf("%w: discriminator expects 3 input channels, got %d", ErrShapeMismatch, x.Shape[1])
	}
	if err := checkLabels(d.cfg.Categories, n, labels, false); err != nil {
		return nil, err
	}

	h, err := d.stem.Forward(x)
	if err != nil {
		return nil, err
	}
	for _, block := range d.blocks {
		if h, err = block.Forward(h); err != nil {
			return nil, err
		}
	}
	features, err := tensor.SumSpatial(layers.ReLU(h))
	if err != nil {
		return nil, err
	}
	scores, err := d.head.Forward(features)
	if err != nil {
		return nil, err
	}
	if labels != nil {
		// Projection term: <embed(label), pooled features> per sample.
		w, err := d.proj.Forward(labels)
		if err != nil {
			return nil, err
		}
		for i := 0; i < n; i++ {
			dot := 0.0
			for j := 0; j < d.topChannels; j++ {
				dot += w.Data[i*d.topChannels+j] * features.Data[i*d.topChannels+j]
			}
			scores.Data[i] += dot
		}
	}
	return scores, nil
}

// Parameters returns every learnable tensor of the model.
func (d *Discriminator) Parameters() []*tensor.Tensor {
	params := d.stem.Parameters()
	for _, block := range d.blocks {
		params = append(params, block.Parameters()...)
	}
	params = append(params, d.head.Parameters()...)
	if d.proj != nil {
		params = append(params, d.proj.Parameters()...)
	}
	return params
}
