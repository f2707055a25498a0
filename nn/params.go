package nn

import "sngan/tensor"

// Parameterized is anything that exposes its learnable tensors: leaf
// layers, blocks, and whole models.
type Parameterized interface {
	Parameters() []*tensor.Tensor
}

// ParamCount sums the element counts of a component's parameter tensors.
func ParamCount(p Parameterized) int {
	total := 0
	for _, t := range p.Parameters() {
		total += t.Size()
	}
	return total
}
