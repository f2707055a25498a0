package nn

import "fmt"

// Config is the model construction surface: base channel width, latent
// dimension, conditioning class count (0 = unconditional) and the spatial
// width of the generator's first feature map.
type Config struct {
	Ch          int
	ZDim        int
	Categories  int
	BottomWidth int
}

// withDefaults fills unset fields with the variant's defaults.
func (c Config) withDefaults(defaultCh int) Config {
	if c.Ch == 0 {
		c.Ch = defaultCh
	}
	if c.ZDim == 0 {
		c.ZDim = 128
	}
	if c.BottomWidth == 0 {
		c.BottomWidth = 4
	}
	return c
}

// validate rejects non-positive dimensions and negative class counts.
func (c Config) validate() error {
	if c.Ch <= 0 {
		return fmt.Errorf("%w: channel width must be positive, got %d", ErrInitialization, c.Ch)
	}
	if c.ZDim <= 0 {
		return fmt.Errorf("%w: latent dimension must be positive, got %d", ErrInitialization, c.ZDim)
	}
	if c.Categories < 0 {
		return fmt.Errorf("%w: category count must be >= 0, got %d", ErrInitialization, c.Categories)
	}
	if c.BottomWidth <= 0 {
		return fmt.Errorf("%w: bottom width must be positive, got %d", ErrInitialization, c.BottomWidth)
	}
	return nil
}

// checkLabels validates a label batch against the model's conditioning
// setup. required reports whether the forward pass cannot run without
// labels (the conditional generator path).
func checkLabels(categories, batch int, labels []int, required bool) error {
	if labels == nil {
		if required && categories > 0 {
			return fmt.Errorf("%w: conditional model requires labels", ErrMissingConditioning)
		}
		return nil
	}
	if categories == 0 {
		return fmt.Errorf("%w: labels supplied to unconditional model", ErrMissingConditioning)
	}
	if len(labels) != batch {
		return fmt.Errorf("%w: %d labels for batch of %d", ErrShapeMismatch, len(labels), batch)
	}
	for _, label := range labels {
		if label < 0 || label >= categories {
			return fmt.Errorf("%w: label %d out of range [0, %d)", ErrShapeMismatch, label, categories)
		}
	}
	return nil
}
