package sets

import (
	"maps"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSet(t *testing.T) {
	s := Make[string]()
	assert.Len(t, s, 0)
	s.Insert("b", "a", "b")
	assert.Len(t, s, 2)
	assert.True(t, s.Has("a"))
	assert.False(t, s.Has("c"))
	assert.Equal(t, []string{"a", "b"}, s.Sorted())

	assert.Equal(t, []string{"d", "c"}, s.Missing("d", "a", "c"))
	assert.Nil(t, s.Missing("a", "b"))

	ints := Of(3, 1, 2)
	assert.Equal(t, []int{1, 2, 3}, ints.Sorted())

	keys := Collect(maps.Keys(map[string]int{"x": 1, "y": 2}))
	assert.Equal(t, []string{"x", "y"}, keys.Sorted())
}
