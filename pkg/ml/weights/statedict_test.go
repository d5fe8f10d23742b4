package weights

import (
	"testing"

	"github.com/nkiyohara/srvpfd/pkg/core/tensors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateDictOrder(t *testing.T) {
	sd := NewStateDict()
	a := tensors.FromFlatDataAndDimensions([]float32{1}, 1)
	b := tensors.FromFlatDataAndDimensions([]float32{2}, 1)
	c := tensors.FromFlatDataAndDimensions([]float32{3}, 1)
	sd.Set("b", a)
	sd.Set("a", b)
	sd.Set("b", c)
	assert.Equal(t, []string{"b", "a"}, sd.Names())
	assert.Equal(t, 2, sd.Len())
	got, found := sd.Get("b")
	require.True(t, found)
	assert.Same(t, c, got)
	_, found = sd.Get("c")
	assert.False(t, found)

	var names []string
	for name := range sd.All() {
		names = append(names, name)
		break
	}
	assert.Equal(t, []string{"b"}, names)
}
