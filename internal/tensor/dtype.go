// Package tensor provides the array, buffer and layout model for the flint
// evaluation engine.
package tensor

import (
	"encoding/binary"
	"fmt"
	"math"
)

// DataType represents runtime type information for arrays.
type DataType int

// Supported data types.
const (
	Float32 DataType = iota
	Float64
	Int32
	Int64
	Uint8
	Bool
	Complex64
)

// Size returns the byte size of one element of the data type.
func (dt DataType) Size() int {
	switch dt {
	case Float32, Int32:
		return 4
	case Float64, Int64, Complex64:
		return 8
	case Uint8, Bool:
		return 1
	default:
		panic("unknown data type")
	}
}

// String returns a human-readable name for the data type.
func (dt DataType) String() string {
	switch dt {
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	case Uint8:
		return "uint8"
	case Bool:
		return "bool"
	case Complex64:
		return "complex64"
	default:
		return "unknown"
	}
}

// IsComplex reports whether the type has complex components.
func (dt DataType) IsComplex() bool {
	return dt == Complex64
}

// PackScalar encodes v as the little-endian byte image of one element of dt.
// This is how scalar kernel arguments (arange start/step, pad values) are
// handed to the dispatch layer. Bool and Complex64 have no scalar packing:
// every operation that binds packed scalars excludes them.
func PackScalar(dt DataType, v float64) ([]byte, error) {
	switch dt {
	case Float32:
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, math.Float32bits(float32(v)))
		return b, nil
	case Float64:
		b := make([]byte, 8)
		binary.LittleEndian.PutUint64(b, math.Float64bits(v))
		return b, nil
	case Int32:
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, uint32(int32(v)))
		return b, nil
	case Int64:
		b := make([]byte, 8)
		binary.LittleEndian.PutUint64(b, uint64(int64(v)))
		return b, nil
	case Uint8:
		return []byte{uint8(v)}, nil
	case Bool, Complex64:
		return nil, fmt.Errorf("tensor: no scalar packing for %s", dt)
	default:
		return nil, fmt.Errorf("tensor: unknown data type %d", int(dt))
	}
}

// UnpackScalar decodes a byte image produced by PackScalar back into a
// float64. Used by the simulated device to interpret scalar kernel args.
func UnpackScalar(dt DataType, b []byte) float64 {
	switch dt {
	case Float32:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
	case Float64:
		return math.Float64frombits(binary.LittleEndian.Uint64(b))
	case Int32:
		return float64(int32(binary.LittleEndian.Uint32(b)))
	case Int64:
		return float64(int64(binary.LittleEndian.Uint64(b)))
	case Uint8:
		return float64(b[0])
	default:
		panic(fmt.Sprintf("tensor: no scalar unpacking for %s", dt))
	}
}
