package srvp

import (
	"testing"

	"github.com/nkiyohara/srvpfd/pkg/core/tensors"
	"github.com/nkiyohara/srvpfd/pkg/ml/weights"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scalar(v float32) *tensors.Tensor {
	return tensors.FromFlatDataAndDimensions([]float32{v}, 1)
}

func TestFixStateDictKeys(t *testing.T) {
	testCases := []struct {
		name, want string
	}{
		{"encoder.conv.1.2.weight", "encoder.conv.1.1.weight"},
		{"encoder.conv.0.0.weight", "encoder.conv.0.0.weight"},
		{"decoder.conv.1.2.weight", "decoder.conv.1.2.weight"},
		{"encoder.conv.2.2.bias", "encoder.conv.1.2.bias"},
		{"encoder.conv.2.0.2.bias", "encoder.conv.1.0.1.bias"},
		{"encoder.last_conv.2.running_mean", "encoder.last_conv.1.running_mean"},
		{"encoder.conv.12.weight", "encoder.conv.12.weight"},
		{"my_encoder.x.2.y", "my_encoder.x.1.y"},
	}
	for _, tc := range testCases {
		sd := weights.NewStateDict()
		sd.Set(tc.name, scalar(1))
		fixed := FixStateDictKeys(sd)
		assert.Equal(t, []string{tc.want}, fixed.Names(), "FixStateDictKeys(%q)", tc.name)
	}
}

func TestFixStateDictKeysOrderAndCollisions(t *testing.T) {
	first, second, other := scalar(1), scalar(2), scalar(3)
	sd := weights.NewStateDict()
	sd.Set("encoder.conv.1.1.weight", first)
	sd.Set("inf.bias", other)
	sd.Set("encoder.conv.1.2.weight", second)
	fixed := FixStateDictKeys(sd)

	assert.Equal(t, []string{"encoder.conv.1.1.weight", "inf.bias"}, fixed.Names())
	got, found := fixed.Get("encoder.conv.1.1.weight")
	require.True(t, found)
	assert.Same(t, second, got)

	// The input is not modified.
	assert.Equal(t, []string{"encoder.conv.1.1.weight", "inf.bias", "encoder.conv.1.2.weight"}, sd.Names())
}
