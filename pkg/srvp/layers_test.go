package srvp

import (
	"math"
	"testing"

	"github.com/nkiyohara/srvpfd/pkg/core/tensors"
	"github.com/nkiyohara/srvpfd/pkg/ml/weights"
	"github.com/nkiyohara/srvpfd/pkg/support/sets"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sequence(batch, channels, height, width int) *featureMap {
	fm := newFeatureMap(batch, channels, height, width)
	for ii := range fm.data {
		fm.data[ii] = float64(ii + 1)
	}
	return fm
}

func TestConv2D(t *testing.T) {
	x := sequence(1, 1, 3, 3)
	c := &conv2D{name: "c", inChannels: 1, outChannels: 2, kernel: 2, stride: 1, padding: 0,
		weight: []float64{1, 1, 1, 1, 1, 0, 0, 0}, bias: []float64{0.5, 0}}
	y := c.forward(x)
	require.Equal(t, []int{1, 2, 2, 2}, []int{y.batch, y.channels, y.height, y.width})
	assert.Equal(t, []float64{12.5, 16.5, 24.5, 28.5, 1, 2, 4, 5}, y.data)

	// Padding and stride.
	c = &conv2D{name: "c", inChannels: 1, outChannels: 1, kernel: 2, stride: 2, padding: 1,
		weight: []float64{1, 1, 1, 1}}
	y = c.forward(x)
	require.Equal(t, []int{2, 2}, []int{y.height, y.width})
	assert.Equal(t, []float64{1, 5, 11, 28}, y.data)

	// Multiple input channels and examples: each example only sees its own channels.
	x = sequence(2, 2, 2, 2)
	c = &conv2D{name: "c", inChannels: 2, outChannels: 1, kernel: 2, stride: 1, padding: 0,
		weight: []float64{1, 0, 0, 0, 0, 0, 0, 1}}
	y = c.forward(x)
	assert.Equal(t, []float64{1 + 8, 9 + 16}, y.data)

	require.Panics(t, func() { c.forward(sequence(1, 3, 2, 2)) })
	require.Panics(t, func() { c.forward(sequence(1, 2, 1, 1)) })
}

func TestBatchNorm2D(t *testing.T) {
	bn := newBatchNorm2D("bn", 1)
	bn.gamma[0], bn.beta[0], bn.mean[0], bn.variance[0] = 2, 1, 3, 4
	x := newFeatureMap(1, 1, 1, 2)
	x.data[0], x.data[1] = 5, 3
	y := bn.forward(x)
	assert.InDelta(t, 2*2/math.Sqrt(4+batchNormEpsilon)+1, y.data[0], 1e-12)
	assert.InDelta(t, 1, y.data[1], 1e-12)

	// Without parameters in the state dict it is dropped.
	sd := weights.NewStateDict()
	sd.Set("encoder.other.weight", tensors.FromShape(1))
	used := sets.Make[string]()
	bn.bind(sd, "encoder.", used)
	assert.True(t, bn.disabled)
	assert.Empty(t, used)
	x.data[0] = 7
	assert.Equal(t, 7.0, bn.forward(x).data[0])
}

func TestActivationsAndPooling(t *testing.T) {
	x := newFeatureMap(1, 1, 1, 3)
	copy(x.data, []float64{-1, 0, 2})
	assert.Equal(t, []float64{-0.2, 0, 2}, leakyReLU.forward(x).data)
	assert.InDeltaSlice(t, []float64{math.Tanh(-0.2), 0, math.Tanh(2)}, tanh.forward(x).data, 1e-12)

	y := maxPool2D{}.forward(sequence(1, 1, 4, 4))
	assert.Equal(t, []float64{6, 8, 14, 16}, y.data)
	y = maxPool2D{}.forward(sequence(1, 1, 5, 5))
	assert.Equal(t, []float64{7, 9, 17, 19}, y.data)
	require.Panics(t, func() { maxPool2D{}.forward(sequence(1, 1, 1, 4)) })
}
