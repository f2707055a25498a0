package layers

import (
	"errors"

	"sngan/tensor"
)

// Sentinel errors shared by all layers and models. None of them are
// recoverable inside the forward graph; callers get them wrapped with
// context via %w.
var (
	// ErrShapeMismatch reports incompatible channel or spatial dimensions.
	// It aliases tensor.ErrShape so shape failures raised inside tensor
	// ops match it without rewrapping.
	ErrShapeMismatch = tensor.ErrShape

	// ErrMissingConditioning reports a class label required but absent,
	// or a label supplied to an unconditional layer/model.
	ErrMissingConditioning = errors.New("missing conditioning")

	// ErrInitialization reports malformed gain or shape arguments at
	// construction time.
	ErrInitialization = errors.New("initialization error")
)
