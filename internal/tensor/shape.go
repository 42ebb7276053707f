package tensor

import "fmt"

// Shape represents the dimensions of an array.
type Shape []int

// NumElements returns the total number of elements described by the shape.
func (s Shape) NumElements() int {
	n := 1
	for _, dim := range s {
		n *= dim
	}
	return n
}

// Validate checks that all dimensions are non-negative. Zero-sized
// dimensions are legal: they describe empty arrays that never allocate.
func (s Shape) Validate() error {
	for i, dim := range s {
		if dim < 0 {
			return fmt.Errorf("invalid dimension at index %d: %d (must be >= 0)", i, dim)
		}
	}
	return nil
}

// Equal checks if two shapes are equal.
func (s Shape) Equal(other Shape) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy of the shape.
func (s Shape) Clone() Shape {
	clone := make(Shape, len(s))
	copy(clone, s)
	return clone
}

// ComputeStrides calculates canonical row-major element strides:
// stride[i] = product of all dimensions after i.
func (s Shape) ComputeStrides() []int {
	strides := make([]int, len(s))
	if len(s) == 0 {
		return strides
	}

	strides[len(s)-1] = 1
	for i := len(s) - 2; i >= 0; i-- {
		strides[i] = strides[i+1] * s[i+1]
	}
	return strides
}

// ColMajorStrides calculates column-major element strides:
// stride[i] = product of all dimensions before i.
func (s Shape) ColMajorStrides() []int {
	strides := make([]int, len(s))
	if len(s) == 0 {
		return strides
	}

	strides[0] = 1
	for i := 1; i < len(s); i++ {
		strides[i] = strides[i-1] * s[i-1]
	}
	return strides
}

// NormalizeAxis resolves a possibly-negative axis index against ndim.
// Panics on out-of-range axes; axis metadata is produced by the graph
// layer and an invalid value here is a programmer error.
func NormalizeAxis(axis, ndim int) int {
	ax := axis
	if ax < 0 {
		ax += ndim
	}
	if ax < 0 || ax >= ndim {
		panic(fmt.Sprintf("tensor: axis %d out of range for rank %d", axis, ndim))
	}
	return ax
}
