package device

import (
	"encoding/binary"

	"github.com/flintml/flint/internal/tensor"
)

// ArgKind distinguishes the three binding classes a kernel slot accepts.
type ArgKind int

// Argument binding classes.
const (
	ArgInput ArgKind = iota
	ArgOutput
	ArgBytes
)

// Arg is one kernel argument. The logical name exists for readability and
// debugging; the positional index in the list is what reaches the device.
type Arg struct {
	Name  string
	Kind  ArgKind
	Array *tensor.Array // ArgInput / ArgOutput
	Bytes []byte        // ArgBytes
}

// Args is an ordered kernel argument list built by logical name and
// translated to positional slots at dispatch time. Building by name keeps
// slot-order bugs visible when a kernel variant grows extra arguments.
type Args struct {
	list []Arg
}

// NewArgs returns an empty argument list.
func NewArgs() *Args {
	return &Args{}
}

// List returns the arguments in slot order.
func (a *Args) List() []Arg {
	return a.list
}

// At returns the argument bound at slot i.
func (a *Args) At(i int) Arg {
	return a.list[i]
}

// Len returns the number of bound slots.
func (a *Args) Len() int {
	return len(a.list)
}

// Input binds an input array to the next slot.
func (a *Args) Input(name string, arr *tensor.Array) *Args {
	a.list = append(a.list, Arg{Name: name, Kind: ArgInput, Array: arr})
	return a
}

// Output binds an output array to the next slot.
func (a *Args) Output(name string, arr *tensor.Array) *Args {
	a.list = append(a.list, Arg{Name: name, Kind: ArgOutput, Array: arr})
	return a
}

// Bytes binds a raw byte-packed constant to the next slot.
func (a *Args) Bytes(name string, b []byte) *Args {
	a.list = append(a.list, Arg{Name: name, Kind: ArgBytes, Bytes: b})
	return a
}

// Bool binds a single-byte boolean constant.
func (a *Args) Bool(name string, v bool) *Args {
	b := byte(0)
	if v {
		b = 1
	}
	return a.Bytes(name, []byte{b})
}

// Int32 binds a 32-bit little-endian integer constant.
func (a *Args) Int32(name string, v int32) *Args {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, uint32(v))
	return a.Bytes(name, b)
}

// Int64 binds a 64-bit little-endian integer constant.
func (a *Args) Int64(name string, v int64) *Args {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, uint64(v))
	return a.Bytes(name, b)
}

// Ints32 binds a packed little-endian int32 vector (shape arguments).
func (a *Args) Ints32(name string, vs []int) *Args {
	b := make([]byte, 4*len(vs))
	for i, v := range vs {
		binary.LittleEndian.PutUint32(b[4*i:], uint32(int32(v)))
	}
	return a.Bytes(name, b)
}

// Ints64 binds a packed little-endian int64 vector (stride arguments).
func (a *Args) Ints64(name string, vs []int) *Args {
	b := make([]byte, 8*len(vs))
	for i, v := range vs {
		binary.LittleEndian.PutUint64(b[8*i:], uint64(int64(v)))
	}
	return a.Bytes(name, b)
}

// DecodeInts32 unpacks a constant written by Ints32.
func DecodeInts32(b []byte) []int {
	vs := make([]int, len(b)/4)
	for i := range vs {
		vs[i] = int(int32(binary.LittleEndian.Uint32(b[4*i:])))
	}
	return vs
}

// DecodeInts64 unpacks a constant written by Ints64.
func DecodeInts64(b []byte) []int {
	vs := make([]int, len(b)/8)
	for i := range vs {
		vs[i] = int(int64(binary.LittleEndian.Uint64(b[8*i:])))
	}
	return vs
}

// DecodeInt32 unpacks a constant written by Int32.
func DecodeInt32(b []byte) int {
	return int(int32(binary.LittleEndian.Uint32(b)))
}

// DecodeInt64 unpacks a constant written by Int64.
func DecodeInt64(b []byte) int {
	return int(int64(binary.LittleEndian.Uint64(b)))
}
