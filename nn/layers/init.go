package layers

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"sngan/tensor"
)

// XavierUniform fills t with samples from U(-a, a) where
// a = gain * sqrt(6 / (fanIn + fanOut)). The gain argument controls the
// balance between a residual branch (sqrt(2)) and its skip branch (1.0)
// at initialization, so it must be preserved exactly by callers.
func XavierUniform(t *tensor.Tensor, fanIn, fanOut int, gain float64) error {
	if fanIn <= 0 || fanOut <= 0 {
		return fmt.Errorf("%w: xavier fan dims must be positive, got in=%d out=%d", ErrInitialization, fanIn, fanOut)
	}
	if gain <= 0 || math.IsNaN(gain) || math.IsInf(gain, 0) {
		return fmt.Errorf("%w: xavier gain must be a positive finite value, got %v", ErrInitialization, gain)
	}
	limit := gain * math.Sqrt(6.0/float64(fanIn+fanOut))
	u := distuv.Uniform{Min: -limit, Max: limit}
	for i := range t.Data {
		t.Data[i] = u.Rand()
	}
	return nil
}
