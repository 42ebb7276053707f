package tensor

import (
	"fmt"
	"unsafe"
)

// Flags describe how an array's strides relate to the canonical packed
// layouts for its shape. They gate the fast paths in the copy engine and
// select kernel variants (e.g. the contiguous-key random-bits kernel).
type Flags struct {
	// Contiguous is true when the elements occupy one gap-free region of
	// the buffer, in row- or column-major order.
	Contiguous bool
	// RowContiguous refines Contiguous: strides match the canonical
	// row-major strides for the shape.
	RowContiguous bool
	// ColContiguous refines Contiguous: strides match the canonical
	// column-major strides for the shape.
	ColContiguous bool
}

// ComputeFlags derives contiguity flags for a shape/strides pair.
// Dimensions of extent one never break contiguity: their stride is
// unobservable.
func ComputeFlags(shape Shape, strides []int) Flags {
	row := matchesStrides(shape, strides, shape.ComputeStrides())
	col := matchesStrides(shape, strides, shape.ColMajorStrides())
	return Flags{
		Contiguous:    row || col,
		RowContiguous: row,
		ColContiguous: col,
	}
}

func matchesStrides(shape Shape, strides, want []int) bool {
	if len(strides) != len(want) {
		return false
	}
	for i := range strides {
		if shape[i] > 1 && strides[i] != want[i] {
			return false
		}
	}
	return true
}

// Array is a logical multi-dimensional value over a shared buffer. Layout
// metadata (strides, offset, flags) is fixed once the array is bound to a
// buffer; it is never resized in place. Offset and strides are expressed
// in elements, not bytes.
type Array struct {
	shape  Shape
	dtype  DataType
	stride []int
	offset int
	flags  Flags

	buf *Buffer
	// dataSize is the number of distinct addressable elements backing the
	// array. It differs from Size() under broadcast (zero) strides.
	dataSize int
}

// New creates an unbound array. The buffer is attached later, either by an
// allocation (SetData) or by aliasing another array's buffer (SharedView,
// CopySharedBuffer).
func New(shape Shape, dtype DataType) *Array {
	if err := shape.Validate(); err != nil {
		panic(fmt.Sprintf("tensor: %v", err))
	}
	return &Array{
		shape: shape.Clone(),
		dtype: dtype,
	}
}

// Shape returns the array's shape.
func (a *Array) Shape() Shape {
	return a.shape
}

// Dim returns the extent of one axis.
func (a *Array) Dim(axis int) int {
	return a.shape[NormalizeAxis(axis, len(a.shape))]
}

// NDim returns the number of dimensions.
func (a *Array) NDim() int {
	return len(a.shape)
}

// DType returns the array's data type.
func (a *Array) DType() DataType {
	return a.dtype
}

// Strides returns the array's element strides.
func (a *Array) Strides() []int {
	return a.stride
}

// Offset returns the element offset into the backing buffer.
func (a *Array) Offset() int {
	return a.offset
}

// Flags returns the contiguity flags.
func (a *Array) Flags() Flags {
	return a.flags
}

// Size returns the total number of logical elements.
func (a *Array) Size() int {
	return a.shape.NumElements()
}

// DataSize returns the number of distinct elements backing the array.
func (a *Array) DataSize() int {
	return a.dataSize
}

// Itemsize returns the byte size of one element.
func (a *Array) Itemsize() int {
	return a.dtype.Size()
}

// NBytes returns the logical byte size of the array.
func (a *Array) NBytes() int {
	return a.Size() * a.Itemsize()
}

// Buffer returns the backing buffer, or nil when unbound (empty arrays
// stay unbound by design).
func (a *Array) Buffer() *Buffer {
	return a.buf
}

// HasData reports whether the array is bound to a buffer.
func (a *Array) HasData() bool {
	return a.buf != nil
}

// SetData binds a freshly allocated buffer using the canonical row-major
// layout for the array's shape.
func (a *Array) SetData(buf *Buffer) {
	a.buf = buf
	a.stride = a.shape.ComputeStrides()
	a.offset = 0
	a.dataSize = a.Size()
	a.flags = Flags{Contiguous: true, RowContiguous: true, ColContiguous: len(a.shape) <= 1}
}

// SetDataWithLayout binds a freshly allocated buffer with explicit strides
// and flags instead of the canonical row-major layout. Vector copies use it
// to give the output its source's layout, so a flat element copy preserves
// logical order.
func (a *Array) SetDataWithLayout(buf *Buffer, strides []int, flags Flags, dataSize int) {
	a.buf = buf
	a.stride = append([]int(nil), strides...)
	a.offset = 0
	a.dataSize = dataSize
	a.flags = flags
}

// SharedView binds this array as a view onto parent's buffer with explicit
// layout. No copy happens and ownership is shared: the parent buffer is
// retained. The caller must have proven that (offset, strides, dataSize)
// stays inside the parent allocation for every reachable index; violating
// that is undefined, per the view-construction contract.
func (a *Array) SharedView(parent *Array, strides []int, flags Flags, dataSize, offset int) {
	if a.buf != nil {
		a.buf.Release()
	}
	parent.buf.Retain()
	a.buf = parent.buf
	a.stride = append([]int(nil), strides...)
	a.offset = offset
	a.dataSize = dataSize
	a.flags = flags
}

// CopySharedBuffer aliases src wholesale: same buffer, same layout.
func (a *Array) CopySharedBuffer(src *Array) {
	a.SharedView(src, src.stride, src.flags, src.dataSize, src.offset)
}

// Release drops the array's buffer reference.
func (a *Array) Release() {
	if a.buf != nil {
		a.buf.Release()
		a.buf = nil
	}
}

// String returns a short description of the array.
func (a *Array) String() string {
	return fmt.Sprintf("Array[%s]%v", a.dtype, a.shape)
}

// ElemOffset maps a flat logical index (row-major over the shape) to the
// element offset into the backing buffer, through the array's own strides
// and offset.
func (a *Array) ElemOffset(i int) int {
	off := a.offset
	for d := len(a.shape) - 1; d >= 0; d-- {
		if a.shape[d] == 0 {
			return off
		}
		off += (i % a.shape[d]) * a.stride[d]
		i /= a.shape[d]
	}
	return off
}

// Data returns the host bytes starting at the array's offset. Panics for
// device-only buffers; host access is a sim/test facility.
func (a *Array) Data() []byte {
	raw := a.buf.Bytes()
	if raw == nil {
		panic("tensor: array buffer has no host storage")
	}
	return raw[a.offset*a.Itemsize():]
}

// AsFloat32 interprets the host data as []float32 starting at the array's
// offset. Panics if the dtype is not Float32.
func (a *Array) AsFloat32() []float32 {
	if a.dtype != Float32 {
		panic(fmt.Sprintf("tensor: dtype is %s, not float32", a.dtype))
	}
	data := a.Data()
	if len(data) == 0 {
		return nil
	}
	return unsafe.Slice((*float32)(unsafe.Pointer(&data[0])), len(data)/4)
}

// AsFloat64 interprets the host data as []float64.
func (a *Array) AsFloat64() []float64 {
	if a.dtype != Float64 {
		panic(fmt.Sprintf("tensor: dtype is %s, not float64", a.dtype))
	}
	data := a.Data()
	if len(data) == 0 {
		return nil
	}
	return unsafe.Slice((*float64)(unsafe.Pointer(&data[0])), len(data)/8)
}

// AsInt32 interprets the host data as []int32.
func (a *Array) AsInt32() []int32 {
	if a.dtype != Int32 {
		panic(fmt.Sprintf("tensor: dtype is %s, not int32", a.dtype))
	}
	data := a.Data()
	if len(data) == 0 {
		return nil
	}
	return unsafe.Slice((*int32)(unsafe.Pointer(&data[0])), len(data)/4)
}

// AsInt64 interprets the host data as []int64.
func (a *Array) AsInt64() []int64 {
	if a.dtype != Int64 {
		panic(fmt.Sprintf("tensor: dtype is %s, not int64", a.dtype))
	}
	data := a.Data()
	if len(data) == 0 {
		return nil
	}
	return unsafe.Slice((*int64)(unsafe.Pointer(&data[0])), len(data)/8)
}

// AsUint8 interprets the host data as []uint8.
func (a *Array) AsUint8() []uint8 {
	if a.dtype != Uint8 {
		panic(fmt.Sprintf("tensor: dtype is %s, not uint8", a.dtype))
	}
	return a.Data()
}
