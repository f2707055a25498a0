package nn

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sngan/tensor"
)

func randomLatents(n, zDim int) *tensor.Tensor {
	z := tensor.New(n, zDim)
	for i := range z.Data {
		// Deterministic quasi-random values are enough to probe shapes.
		z.Data[i] = math.Sin(float64(i) * 0.7)
	}
	return z
}

func TestGenerator32_OutputShapeAndRange(t *testing.T) {
	g, err := NewGenerator32(Config{Ch: 16, ZDim: 8})
	require.NoError(t, err)
	assert.Equal(t, 32, g.OutputSize())

	out, err := g.Forward(randomLatents(2, 8), nil)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3, 32, 32}, out.Shape)
	for i, v := range out.Data {
		require.False(t, math.IsNaN(v) || math.IsInf(v, 0), "non-finite value at %d", i)
		require.GreaterOrEqual(t, v, -1.0, "at %d", i)
		require.LessOrEqual(t, v, 1.0, "at %d", i)
	}
}

func TestGenerator128_OutputShapeAndRange(t *testing.T) {
	g, err := NewGenerator128(Config{Ch: 2, ZDim: 8})
	require.NoError(t, err)
	assert.Equal(t, 128, g.OutputSize())

	out, err := g.Forward(randomLatents(2, 8), nil)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3, 128, 128}, out.Shape)
	for i, v := range out.Data {
		require.GreaterOrEqual(t, v, -1.0, "at %d", i)
		require.LessOrEqual(t, v, 1.0, "at %d", i)
	}
}

func TestGenerator_UpsamplingChain(t *testing.T) {
	g32, err := NewGenerator32(Config{Ch: 8, ZDim: 8})
	require.NoError(t, err)
	require.Len(t, g32.blocks, 3)
	assert.Equal(t, 4*(1<<3), g32.OutputSize())

	g128, err := NewGenerator128(Config{Ch: 2, ZDim: 8})
	require.NoError(t, err)
	require.Len(t, g128.blocks, 5)
	assert.Equal(t, 4*(1<<5), g128.OutputSize())
}

func TestGenerator32_ZeroLatentRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("full-width generator forward is slow")
	}
	g, err := NewGenerator32(Config{Ch: 256, ZDim: 128})
	require.NoError(t, err)

	out, err := g.Forward(tensor.New(2, 128), nil)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3, 32, 32}, out.Shape)
	for i, v := range out.Data {
		require.False(t, math.IsNaN(v) || math.IsInf(v, 0), "non-finite value at %d", i)
	}
}

func TestGenerator_ConditionalRequiresLabels(t *testing.T) {
	g, err := NewGenerator32(Config{Ch: 8, ZDim: 8, Categories: 4})
	require.NoError(t, err)
	assert.True(t, g.Conditional())

	_, err = g.Forward(randomLatents(2, 8), nil)
	assert.ErrorIs(t, err, ErrMissingConditioning)

	out, err := g.Forward(randomLatents(2, 8), []int{1, 3})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3, 32, 32}, out.Shape)
}

func TestGenerator_UnconditionalRejectsLabels(t *testing.T) {
	g, err := NewGenerator32(Config{Ch: 8, ZDim: 8})
	require.NoError(t, err)
	assert.False(t, g.Conditional())

	_, err = g.Forward(randomLatents(2, 8), []int{0, 1})
	assert.ErrorIs(t, err, ErrMissingConditioning)
}

func TestGenerator_LabelValidation(t *testing.T) {
	g, err := NewGenerator32(Config{Ch: 8, ZDim: 8, Categories: 4})
	require.NoError(t, err)

	_, err = g.Forward(randomLatents(2, 8), []int{0})
	assert.ErrorIs(t, err, ErrShapeMismatch)

	_, err = g.Forward(randomLatents(2, 8), []int{0, 4})
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestGenerator_LatentShapeChecks(t *testing.T) {
	g, err := NewGenerator32(Config{Ch: 8, ZDim: 16})
	require.NoError(t, err)

	_, err = g.Forward(tensor.New(2, 8), nil)
	assert.ErrorIs(t, err, ErrShapeMismatch)

	_, err = g.Forward(tensor.New(8), nil)
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestGenerator_BadConfig(t *testing.T) {
	_, err := NewGenerator32(Config{Ch: -1})
	assert.ErrorIs(t, err, ErrInitialization)

	_, err = NewGenerator128(Config{Categories: -2})
	assert.ErrorIs(t, err, ErrInitialization)
}

func TestGenerator_SetTrainingSwitchesNormStats(t *testing.T) {
	for name, cfg := range map[string]Config{
		"unconditional": {Ch: 8, ZDim: 8},
		"conditional":   {Ch: 8, ZDim: 8, Categories: 4},
	} {
		t.Run(name, func(t *testing.T) {
			g, err := NewGenerator32(cfg)
			require.NoError(t, err)

			var labels []int
			if g.Conditional() {
				labels = []int{0, 2}
			}
			z := randomLatents(2, 8)

			train, err := g.Forward(z, labels)
			require.NoError(t, err)

			// Eval mode normalizes with running statistics instead of
			// batch statistics, so the output must move.
			g.SetTraining(false)
			eval, err := g.Forward(z, labels)
			require.NoError(t, err)
			require.Equal(t, train.Shape, eval.Shape)

			changed := false
			for i := range train.Data {
				if math.Abs(train.Data[i]-eval.Data[i]) > 1e-9 {
					changed = true
					break
				}
			}
			assert.True(t, changed, "eval mode should change normalization output")
		})
	}
}

func TestGenerator_ParamCountGrowsWithSkip(t *testing.T) {
	// 128-variant blocks change channel width, so each carries a skip
	// conv; the 32-variant blocks are same-width with identity skips.
	g32, err := NewGenerator32(Config{Ch: 8, ZDim: 8})
	require.NoError(t, err)
	for _, b := range g32.blocks {
		assert.False(t, b.HasSkip())
	}

	g128, err := NewGenerator128(Config{Ch: 2, ZDim: 8})
	require.NoError(t, err)
	assert.False(t, g128.blocks[0].HasSkip(), "first 128 block keeps ch·16")
	for _, b := range g128.blocks[1:] {
		assert.True(t, b.HasSkip())
	}
}
