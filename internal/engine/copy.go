package engine

import (
	"fmt"

	"github.com/flintml/flint/internal/device"
	"github.com/flintml/flint/internal/tensor"
)

// CopyType classifies an input-to-output data movement by how much index
// arithmetic its kernel needs.
type CopyType int

const (
	// CopyScalar broadcasts a single source element to every output element.
	CopyScalar CopyType = iota
	// CopyVector moves contiguous elements with no index math.
	CopyVector
	// CopyGeneral reads through arbitrary source strides into a
	// contiguous output.
	CopyGeneral
	// CopyGeneralGeneral computes indices independently on both sides.
	CopyGeneralGeneral
)

// String returns the kernel-name prefix for the copy class.
func (c CopyType) String() string {
	switch c {
	case CopyScalar:
		return "s"
	case CopyVector:
		return "v"
	case CopyGeneral:
		return "g"
	case CopyGeneralGeneral:
		return "gg"
	default:
		return "?"
	}
}

// classifyCopy picks the cheapest copy strategy for src into a fresh
// contiguous destination.
func classifyCopy(src *tensor.Array) CopyType {
	switch {
	case src.DataSize() == 1:
		return CopyScalar
	case src.Flags().Contiguous && src.Size() == src.DataSize():
		return CopyVector
	default:
		return CopyGeneral
	}
}

// typeName maps a dtype to its kernel-name suffix.
func typeName(dt tensor.DataType) string {
	switch dt {
	case tensor.Float32:
		return "f32"
	case tensor.Float64:
		return "f64"
	case tensor.Int32:
		return "i32"
	case tensor.Int64:
		return "i64"
	case tensor.Uint8:
		return "u8"
	case tensor.Bool:
		return "b8"
	case tensor.Complex64:
		return "c64"
	default:
		return "unknown"
	}
}

func copyKernelName(ctype CopyType, src, dst tensor.DataType) string {
	return fmt.Sprintf("%scopy_%s_%s", ctype, typeName(src), typeName(dst))
}

// copyArray materializes dst from src according to ctype, allocating
// dst's buffer first when it is not already bound. Empty outputs perform
// no allocation and no dispatch.
func (e *Engine) copyArray(src, dst *tensor.Array, ctype CopyType) error {
	if dst.Size() == 0 {
		return nil
	}
	if !dst.HasData() {
		if ctype == CopyVector {
			// The flat vector kernel preserves buffer order, not logical
			// order, so the output inherits the source's layout. A
			// column-contiguous source yields a column-contiguous result.
			buf, err := e.dev.Allocate(src.DataSize() * dst.Itemsize())
			if err != nil {
				return fmt.Errorf("engine: copy allocation: %w", err)
			}
			dst.SetDataWithLayout(buf, src.Strides(), src.Flags(), src.DataSize())
		} else {
			buf, err := e.dev.Allocate(dst.NBytes())
			if err != nil {
				return fmt.Errorf("engine: copy allocation: %w", err)
			}
			dst.SetData(buf)
		}
	}
	return e.copyInplace(src, dst, src.Shape(), src.Strides(), dst.Strides(),
		src.Offset(), dst.Offset(), ctype)
}

// copyInplace dispatches a copy kernel into dst's already-bound buffer
// with explicit layout metadata. Callers use it to write sub-regions
// (slice, pad interior, concatenate segments) where the layout is not the
// arrays' own.
func (e *Engine) copyInplace(src, dst *tensor.Array, dataShape tensor.Shape,
	srcStrides, dstStrides []int, srcOffset, dstOffset int, ctype CopyType) error {

	n := dataShape.NumElements()
	switch ctype {
	case CopyScalar:
		n = dst.Size()
	case CopyVector:
		n = dst.DataSize()
	}
	if n == 0 {
		return nil
	}

	kernel, err := e.dev.GetKernel(copyKernelName(ctype, src.DType(), dst.DType()))
	if err != nil {
		return fmt.Errorf("engine: copy kernel: %w", err)
	}

	args := device.NewArgs().
		Input("src", src).
		Output("dst", dst)

	switch ctype {
	case CopyScalar, CopyVector:
		// Flat kernels still need the element offsets: buffer bindings
		// cannot encode sub-allocation offsets themselves.
		args.Int64("src_offset", int64(srcOffset)).
			Int64("dst_offset", int64(dstOffset))
	case CopyGeneral:
		args.Ints32("shape", dataShape).
			Ints64("src_strides", srcStrides).
			Int32("ndim", int32(len(dataShape))).
			Int64("src_offset", int64(srcOffset)).
			Int64("dst_offset", int64(dstOffset))
	case CopyGeneralGeneral:
		args.Ints32("shape", dataShape).
			Ints64("src_strides", srcStrides).
			Ints64("dst_strides", dstStrides).
			Int32("ndim", int32(len(dataShape))).
			Int64("src_offset", int64(srcOffset)).
			Int64("dst_offset", int64(dstOffset))
	}

	group := min(n, kernel.MaxThreadsPerGroup())
	e.enc.Dispatch(kernel,
		device.Dims{X: n, Y: 1, Z: 1},
		device.Dims{X: group, Y: 1, Z: 1},
		args)
	return nil
}
