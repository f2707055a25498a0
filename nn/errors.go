package nn

import "sngan/nn/layers"

// The layer sentinels re-exported at the model level, so callers can
// errors.Is against this package alone.
var (
	ErrShapeMismatch       = layers.ErrShapeMismatch
	ErrMissingConditioning = layers.ErrMissingConditioning
	ErrInitialization      = layers.ErrInitialization
)
