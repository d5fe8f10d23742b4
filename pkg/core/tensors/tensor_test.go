package tensors

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromFlatDataAndDimensions(t *testing.T) {
	data := []float32{1, 2, 3, 4, 5, 6}
	x := FromFlatDataAndDimensions(data, 2, 3)
	assert.Equal(t, 2, x.Rank())
	assert.Equal(t, []int{2, 3}, x.Dimensions())
	assert.Equal(t, 3, x.Dim(-1))
	assert.Equal(t, 6, x.Size())

	// Data is copied.
	data[0] = 100
	assert.Equal(t, float32(1), x.CopyFlatData()[0])

	require.Panics(t, func() { FromFlatDataAndDimensions(data, 4, 2) })
	require.Panics(t, func() { x.Dim(2) })
	assert.Equal(t, "(Float32)[2 3]", x.String())
}

func TestFromAnyFlatData(t *testing.T) {
	x := FromAnyFlatData([]int64{1, 2, 3}, 3)
	assert.Equal(t, []float32{1, 2, 3}, x.CopyFlatData())
	y := FromAnyFlatData([]float64{0.5, 1.5}, 1, 2)
	assert.Equal(t, []float64{0.5, 1.5}, y.Float64s())
}

func TestReshape(t *testing.T) {
	x := FromShape(2, 4, 1, 1)
	x.MutableFlatData(func(flat []float32) {
		for ii := range flat {
			flat[ii] = float32(ii)
		}
	})
	y, err := x.Reshape(-1, 4)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 4}, y.Dimensions())
	assert.True(t, x.InDelta(x, 0))

	y, err = x.Reshape(-1, 8)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 8}, y.Dimensions())

	_, err = x.Reshape(-1, 3)
	require.Error(t, err)
	_, err = x.Reshape(3, 3)
	require.Error(t, err)
	_, err = x.Reshape(-1, -1)
	require.Error(t, err)
}

func TestIsFinite(t *testing.T) {
	x := FromFlatDataAndDimensions([]float32{1, 2}, 2)
	assert.True(t, x.IsFinite())
	x.MutableFlatData(func(flat []float32) { flat[1] = float32(math.Inf(1)) })
	assert.False(t, x.IsFinite())
}
