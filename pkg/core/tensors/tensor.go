// Package tensors implement a `Tensor`, a dense multidimensional array of float32 values.
//
// Tensors are the values exchanged between image loaders, encoders and the statistics code: an image batch
// is a tensor shaped `[batch, channels, height, width]`, and a feature batch is a tensor shaped
// `[batch, features]`.
//
// There are various ways to construct a Tensor:
//
//   - FromShape(dimensions ...int): creates a tensor with the given dimensions, and zero values.
//
//   - FromFlatDataAndDimensions(data []float32, dimensions ...int): creates a Tensor with the
//     given dimensions and set the flattened values with the given data. Example:
//
//     t := FromFlatDataAndDimensions([]float32{1, 2, 3, 4}, 2, 2}) // Tensor with [[1,2], [3,4]]
//
//   - FromAnyFlatData[T](data []T, dimensions ...int): same as above, converting from any Go number type.
//
// The flat data is stored in row-major order: the last axis is the one that changes fastest.
package tensors

import (
	"fmt"
	"math"
	"slices"

	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
	"golang.org/x/exp/constraints"
)

// Tensor is a dense multidimensional array of float32 values, stored flat in row-major order.
type Tensor struct {
	dimensions []int
	flat       []float32
}

// sizeOf returns the number of elements of a tensor with the given dimensions.
// It panics on negative dimensions.
func sizeOf(dimensions []int) int {
	size := 1
	for axis, dim := range dimensions {
		if dim < 0 {
			exceptions.Panicf("invalid dimensions %v: axis %d has negative dimension", dimensions, axis)
		}
		size *= dim
	}
	return size
}

// FromShape creates a tensor with the given dimensions, filled with zeros.
func FromShape(dimensions ...int) *Tensor {
	return &Tensor{
		dimensions: slices.Clone(dimensions),
		flat:       make([]float32, sizeOf(dimensions)),
	}
}

// FromFlatDataAndDimensions creates a tensor with the given dimensions, filled with the flattened values given in
// `data`. The data is copied to the Tensor.
//
// It panics if the size of data is wrong for the dimensions.
func FromFlatDataAndDimensions(data []float32, dimensions ...int) *Tensor {
	size := sizeOf(dimensions)
	if len(data) != size {
		exceptions.Panicf("FromFlatDataAndDimensions(%v): data size is %d, but dimensions size is %d",
			dimensions, len(data), size)
	}
	return &Tensor{
		dimensions: slices.Clone(dimensions),
		flat:       slices.Clone(data),
	}
}

// FromAnyFlatData creates a tensor from flat data of any Go number type, converting values to float32.
//
// It panics if the size of data is wrong for the dimensions.
func FromAnyFlatData[T constraints.Integer | constraints.Float](data []T, dimensions ...int) *Tensor {
	size := sizeOf(dimensions)
	if len(data) != size {
		exceptions.Panicf("FromAnyFlatData(%v): data size is %d, but dimensions size is %d",
			dimensions, len(data), size)
	}
	t := &Tensor{
		dimensions: slices.Clone(dimensions),
		flat:       make([]float32, size),
	}
	for ii, v := range data {
		t.flat[ii] = float32(v)
	}
	return t
}

// Rank returns the number of axes of the tensor.
func (t *Tensor) Rank() int {
	return len(t.dimensions)
}

// Dimensions returns a copy of the dimensions of each axis. It is never nil, scalars return an empty slice.
func (t *Tensor) Dimensions() []int {
	return append([]int{}, t.dimensions...)
}

// Dim returns the dimension of the given axis. Negative axes count from the end.
func (t *Tensor) Dim(axis int) int {
	if axis < 0 {
		axis += len(t.dimensions)
	}
	if axis < 0 || axis >= len(t.dimensions) {
		exceptions.Panicf("Tensor.Dim(%d): tensor has rank %d", axis, len(t.dimensions))
	}
	return t.dimensions[axis]
}

// Size returns the total number of elements.
func (t *Tensor) Size() int {
	return len(t.flat)
}

// ConstFlatData calls accessFn with the flat data of the tensor. It must not be modified.
func (t *Tensor) ConstFlatData(accessFn func(flat []float32)) {
	accessFn(t.flat)
}

// MutableFlatData calls accessFn with the flat data of the tensor, which can be changed in place.
func (t *Tensor) MutableFlatData(accessFn func(flat []float32)) {
	accessFn(t.flat)
}

// CopyFlatData returns a copy of the flat data.
func (t *Tensor) CopyFlatData() []float32 {
	return slices.Clone(t.flat)
}

// Float64s returns the flat data converted to float64.
func (t *Tensor) Float64s() []float64 {
	out := make([]float64, len(t.flat))
	for ii, v := range t.flat {
		out[ii] = float64(v)
	}
	return out
}

// Reshape returns a tensor sharing the same data with new dimensions.
// At most one dimension can be -1, in which case it is inferred from the total size.
func (t *Tensor) Reshape(dimensions ...int) (*Tensor, error) {
	dimensions = slices.Clone(dimensions)
	inferred := -1
	known := 1
	for axis, dim := range dimensions {
		switch {
		case dim == -1 && inferred == -1:
			inferred = axis
		case dim < 0:
			return nil, errors.Errorf("Reshape(%v): invalid dimension %d for axis %d", dimensions, dim, axis)
		default:
			known *= dim
		}
	}
	if inferred != -1 {
		if known == 0 || len(t.flat)%known != 0 {
			return nil, errors.Errorf("Reshape(%v): cannot infer axis %d for a tensor of size %d",
				dimensions, inferred, len(t.flat))
		}
		dimensions[inferred] = len(t.flat) / known
	} else if known != len(t.flat) {
		return nil, errors.Errorf("Reshape(%v): tensor has size %d, new dimensions have size %d",
			dimensions, len(t.flat), known)
	}
	return &Tensor{dimensions: dimensions, flat: t.flat}, nil
}

// IsFinite returns whether all values are finite.
func (t *Tensor) IsFinite() bool {
	for _, v := range t.flat {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return false
		}
	}
	return true
}

// InDelta returns whether the other tensor has the same dimensions and all values are within delta.
func (t *Tensor) InDelta(otherTensor *Tensor, delta float64) bool {
	if !slices.Equal(t.dimensions, otherTensor.dimensions) {
		return false
	}
	for ii, v := range t.flat {
		if math.Abs(float64(v)-float64(otherTensor.flat[ii])) > delta {
			return false
		}
	}
	return true
}

// String returns the dimensions of the tensor, e.g.: "(Float32)[10 1 64 64]".
func (t *Tensor) String() string {
	return fmt.Sprintf("(Float32)%v", t.dimensions)
}
