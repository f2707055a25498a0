package nn

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sngan/tensor"
)

func randomImages(n, size int) *tensor.Tensor {
	x := tensor.New(n, 3, size, size)
	for i := range x.Data {
		x.Data[i] = math.Cos(float64(i) * 0.31)
	}
	return x
}

func TestDiscriminator32_ScoreShape(t *testing.T) {
	d, err := NewDiscriminator32(Config{Ch: 16})
	require.NoError(t, err)

	out, err := d.Forward(randomImages(2, 32), nil)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 1}, out.Shape)
	for i, v := range out.Data {
		assert.False(t, math.IsNaN(v) || math.IsInf(v, 0), "non-finite score at %d", i)
	}
}

func TestDiscriminator128_ScoreShape(t *testing.T) {
	d, err := NewDiscriminator128(Config{Ch: 4})
	require.NoError(t, err)

	out, err := d.Forward(randomImages(2, 128), nil)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 1}, out.Shape)
}

func TestDiscriminator128_ConditioningChangesScore(t *testing.T) {
	d, err := NewDiscriminator128(Config{Ch: 4, Categories: 10})
	require.NoError(t, err)
	assert.True(t, d.Conditional())

	x := randomImages(2, 128)
	base, err := d.Forward(x, nil)
	require.NoError(t, err)

	cond, err := d.Forward(x, []int{3, 7})
	require.NoError(t, err)
	require.Equal(t, base.Shape, cond.Shape)

	changed := false
	for i := range base.Data {
		if math.Abs(cond.Data[i]-base.Data[i]) > 1e-9 {
			changed = true
		}
	}
	assert.True(t, changed, "projection term should move the score for at least one label")
}

func TestDiscriminator_UnconditionalRejectsLabels(t *testing.T) {
	d, err := NewDiscriminator32(Config{Ch: 128, Categories: 0})
	require.NoError(t, err)
	assert.False(t, d.Conditional())

	_, err = d.Forward(randomImages(2, 32), []int{0, 1})
	assert.ErrorIs(t, err, ErrMissingConditioning)
}

func TestDiscriminator_ConditionalLabelsOptional(t *testing.T) {
	d, err := NewDiscriminator32(Config{Ch: 16, Categories: 5})
	require.NoError(t, err)

	// Without labels the base score is still defined.
	out, err := d.Forward(randomImages(2, 32), nil)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 1}, out.Shape)
}

func TestDiscriminator_LabelValidation(t *testing.T) {
	d, err := NewDiscriminator32(Config{Ch: 16, Categories: 5})
	require.NoError(t, err)
	x := randomImages(2, 32)

	_, err = d.Forward(x, []int{0})
	assert.ErrorIs(t, err, ErrShapeMismatch)

	_, err = d.Forward(x, []int{0, 5})
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestDiscriminator_InputChecks(t *testing.T) {
	d, err := NewDiscriminator32(Config{Ch: 16})
	require.NoError(t, err)

	_, err = d.Forward(tensor.New(2, 1, 32, 32), nil)
	assert.ErrorIs(t, err, ErrShapeMismatch)

	_, err = d.Forward(tensor.New(2, 32), nil)
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestDiscriminator_UndersizedImageClassified(t *testing.T) {
	d, err := NewDiscriminator32(Config{Ch: 8})
	require.NoError(t, err)

	// A 4x4 image runs out of spatial extent mid-pipeline; the pooling
	// failure must still surface as a shape mismatch.
	_, err = d.Forward(tensor.New(1, 3, 4, 4), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestDiscriminator_StemAlwaysProjects(t *testing.T) {
	d, err := NewDiscriminator32(Config{Ch: 16})
	require.NoError(t, err)
	assert.True(t, d.stem.HasSkip(), "stem consumes 3-channel images and must project")

	// Same-width follow-up blocks keep identity skips in the 32 variant.
	for _, b := range d.blocks {
		assert.False(t, b.HasSkip())
	}

	d128, err := NewDiscriminator128(Config{Ch: 4})
	require.NoError(t, err)
	for i, b := range d128.blocks {
		if i < 4 {
			assert.True(t, b.HasSkip(), "channel-doubling block %d", i)
		} else {
			assert.False(t, b.HasSkip(), "final same-width block")
		}
	}
}

func TestDiscriminator_SpatialCollapse(t *testing.T) {
	// The stem pools once and each block pools once more: 32 → 2 after
	// four halvings, so sum-pooling always sees a positive spatial size.
	d, err := NewDiscriminator32(Config{Ch: 8})
	require.NoError(t, err)

	out, err := d.Forward(randomImages(1, 32), nil)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 1}, out.Shape)
}
