package tensor

import (
	"testing"
)

// Test helpers

func assertEqualInts(t *testing.T, expected, actual []int, msg string) {
	t.Helper()
	if len(expected) != len(actual) {
		t.Fatalf("%s: expected %v, got %v", msg, expected, actual)
	}
	for i := range expected {
		if expected[i] != actual[i] {
			t.Fatalf("%s: expected %v, got %v", msg, expected, actual)
		}
	}
}

// DType Tests

func TestDataTypeSize(t *testing.T) {
	tests := []struct {
		dtype DataType
		size  int
	}{
		{Float32, 4},
		{Float64, 8},
		{Int32, 4},
		{Int64, 8},
		{Uint8, 1},
		{Bool, 1},
		{Complex64, 8},
	}

	for _, tt := range tests {
		if got := tt.dtype.Size(); got != tt.size {
			t.Errorf("%s.Size() = %d, want %d", tt.dtype, got, tt.size)
		}
	}
}

func TestDataTypeString(t *testing.T) {
	tests := []struct {
		dtype DataType
		str   string
	}{
		{Float32, "float32"},
		{Float64, "float64"},
		{Int32, "int32"},
		{Int64, "int64"},
		{Uint8, "uint8"},
		{Bool, "bool"},
		{Complex64, "complex64"},
	}

	for _, tt := range tests {
		if got := tt.dtype.String(); got != tt.str {
			t.Errorf("String() = %s, want %s", got, tt.str)
		}
	}
}

func TestPackScalarRoundTrip(t *testing.T) {
	tests := []struct {
		dtype DataType
		value float64
	}{
		{Float32, 1.5},
		{Float64, -2.25},
		{Int32, -7},
		{Int64, 1 << 40},
		{Uint8, 200},
	}

	for _, tt := range tests {
		b, err := PackScalar(tt.dtype, tt.value)
		if err != nil {
			t.Fatalf("PackScalar(%s, %v): %v", tt.dtype, tt.value, err)
		}
		if len(b) != tt.dtype.Size() {
			t.Errorf("PackScalar(%s) returned %d bytes, want %d", tt.dtype, len(b), tt.dtype.Size())
		}
		if got := UnpackScalar(tt.dtype, b); got != tt.value {
			t.Errorf("UnpackScalar(%s) = %v, want %v", tt.dtype, got, tt.value)
		}
	}
}

func TestPackScalarUnsupported(t *testing.T) {
	if _, err := PackScalar(Bool, 1); err == nil {
		t.Error("PackScalar(Bool) should fail")
	}
	if _, err := PackScalar(Complex64, 1); err == nil {
		t.Error("PackScalar(Complex64) should fail")
	}
}

// Shape Tests

func TestShapeNumElements(t *testing.T) {
	tests := []struct {
		shape Shape
		n     int
	}{
		{Shape{2, 3, 4}, 24},
		{Shape{5}, 5},
		{Shape{}, 1},
		{Shape{2, 0, 3}, 0},
	}

	for _, tt := range tests {
		if got := tt.shape.NumElements(); got != tt.n {
			t.Errorf("%v.NumElements() = %d, want %d", tt.shape, got, tt.n)
		}
	}
}

func TestShapeComputeStrides(t *testing.T) {
	assertEqualInts(t, []int{12, 4, 1}, Shape{2, 3, 4}.ComputeStrides(), "row-major strides")
	assertEqualInts(t, []int{1}, Shape{7}.ComputeStrides(), "1-D strides")
	assertEqualInts(t, []int{}, Shape{}.ComputeStrides(), "scalar strides")
}

func TestShapeColMajorStrides(t *testing.T) {
	assertEqualInts(t, []int{1, 2, 6}, Shape{2, 3, 4}.ColMajorStrides(), "col-major strides")
}

func TestShapeValidate(t *testing.T) {
	if err := (Shape{2, 0, 3}).Validate(); err != nil {
		t.Errorf("zero extents are legal, got %v", err)
	}
	if err := (Shape{2, -1}).Validate(); err == nil {
		t.Error("negative extents should fail validation")
	}
}

func TestNormalizeAxis(t *testing.T) {
	if got := NormalizeAxis(-1, 3); got != 2 {
		t.Errorf("NormalizeAxis(-1, 3) = %d, want 2", got)
	}
	if got := NormalizeAxis(1, 3); got != 1 {
		t.Errorf("NormalizeAxis(1, 3) = %d, want 1", got)
	}

	defer func() {
		if recover() == nil {
			t.Error("NormalizeAxis(3, 3) should panic")
		}
	}()
	NormalizeAxis(3, 3)
}

// Flags Tests

func TestComputeFlags(t *testing.T) {
	tests := []struct {
		name    string
		shape   Shape
		strides []int
		want    Flags
	}{
		{
			"row major",
			Shape{2, 3}, []int{3, 1},
			Flags{Contiguous: true, RowContiguous: true},
		},
		{
			"col major",
			Shape{2, 3}, []int{1, 2},
			Flags{Contiguous: true, ColContiguous: true},
		},
		{
			"transposed view",
			Shape{3, 2}, []int{1, 3},
			Flags{Contiguous: true, ColContiguous: true},
		},
		{
			"strided",
			Shape{2, 3}, []int{6, 2},
			Flags{},
		},
		{
			"unit dims never break contiguity",
			Shape{1, 5}, []int{999, 1},
			Flags{Contiguous: true, RowContiguous: true, ColContiguous: true},
		},
		{
			"scalar",
			Shape{}, []int{},
			Flags{Contiguous: true, RowContiguous: true, ColContiguous: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeFlags(tt.shape, tt.strides)
			if got != tt.want {
				t.Errorf("ComputeFlags(%v, %v) = %+v, want %+v", tt.shape, tt.strides, got, tt.want)
			}
		})
	}
}
