package engine

import (
	"fmt"

	"github.com/flintml/flint/internal/device"
	"github.com/flintml/flint/internal/tensor"
)

// simdWidth is the hardware lane count thread-group sizes are rounded to.
const simdWidth = 32

// argReduceReads is how many axis elements each thread consumes per pass.
const argReduceReads = 4

// evalArange allocates the output and dispatches one thread per element.
// Start and step are packed dtype-native into the first two argument
// slots. Bool and complex outputs have no arange kernel.
func (e *Engine) evalArange(p Arange, out *tensor.Array) error {
	if err := e.allocate(out); err != nil {
		return err
	}
	if out.Size() == 0 {
		return nil
	}

	startBytes, err := tensor.PackScalar(out.DType(), p.Start)
	if err != nil {
		return fmt.Errorf("engine: arange does not support %s: %w", out.DType(), err)
	}
	stepBytes, _ := tensor.PackScalar(out.DType(), p.Step)

	kernel, err := e.dev.GetKernel("arange_" + typeName(out.DType()))
	if err != nil {
		return fmt.Errorf("engine: arange kernel: %w", err)
	}

	args := device.NewArgs().
		Bytes("start", startBytes).
		Bytes("step", stepBytes).
		Output("out", out)

	n := out.Size()
	e.enc.Dispatch(kernel,
		device.Dims{X: n, Y: 1, Z: 1},
		device.Dims{X: min(n, kernel.MaxThreadsPerGroup()), Y: 1, Z: 1},
		args)
	return nil
}

// argReduceLayout is the axis-removed metadata an arg-reduction kernel
// consumes: the reduced axis is erased from the shape and both stride
// vectors, leaving the non-reduced dimensions in their original order.
type argReduceLayout struct {
	shape      []int
	inStrides  []int
	outStrides []int
	axisStride int
	axisSize   int
}

func argReduceMetadata(in, out *tensor.Array, axis int) argReduceLayout {
	if axis < 0 || axis >= in.NDim() {
		panic(fmt.Sprintf("engine: arg-reduce axis %d out of range for rank %d", axis, in.NDim()))
	}
	l := argReduceLayout{
		axisStride: in.Strides()[axis],
		axisSize:   in.Shape()[axis],
	}
	for i := 0; i < in.NDim(); i++ {
		if i == axis {
			continue
		}
		l.shape = append(l.shape, in.Shape()[i])
		l.inStrides = append(l.inStrides, in.Strides()[i])
	}
	if out.NDim() == in.NDim() {
		for i, s := range out.Strides() {
			if i != axis {
				l.outStrides = append(l.outStrides, s)
			}
		}
	} else {
		l.outStrides = append(l.outStrides, out.Strides()...)
	}
	return l
}

// evalArgReduce sizes one thread group per output element to sweep the
// reduced axis, argReduceReads elements per thread per pass, rounded up to
// the SIMD width and capped at the kernel's group limit.
func (e *Engine) evalArgReduce(p ArgReduce, in, out *tensor.Array) error {
	if err := e.allocate(out); err != nil {
		return err
	}
	if out.Size() == 0 {
		return nil
	}

	op := "argmax_"
	if p.Op == ArgMin {
		op = "argmin_"
	}
	kernel, err := e.dev.GetKernel(op + typeName(in.DType()))
	if err != nil {
		return fmt.Errorf("engine: arg-reduce kernel: %w", err)
	}

	l := argReduceMetadata(in, out, p.Axis)

	groupSize := (l.axisSize + argReduceReads - 1) / argReduceReads
	groupSize = min(groupSize, kernel.MaxThreadsPerGroup())
	groupSize = (groupSize + simdWidth - 1) / simdWidth * simdWidth
	groupSize = min(groupSize, kernel.MaxThreadsPerGroup())

	args := device.NewArgs().
		Input("in", in).
		Output("out", out)
	if len(l.shape) == 0 {
		// Zero-rank reduction: the kernel's argument slots stay populated
		// with placeholder zeroes.
		args.Ints32("shape", []int{0}).
			Ints64("in_strides", []int{0}).
			Ints64("out_strides", []int{0})
	} else {
		args.Ints32("shape", l.shape).
			Ints64("in_strides", l.inStrides).
			Ints64("out_strides", l.outStrides)
	}
	args.Int64("ndim", int64(len(l.shape))).
		Int64("axis_stride", int64(l.axisStride)).
		Int64("axis_size", int64(l.axisSize)).
		Int64("in_offset", int64(in.Offset())).
		Int64("out_offset", int64(out.Offset()))

	e.enc.Dispatch(kernel,
		device.Dims{X: out.Size() * groupSize, Y: 1, Z: 1},
		device.Dims{X: groupSize, Y: 1, Z: 1},
		args)
	return nil
}

// randomBitsGeometry describes how one key pair's output range is split
// across the 2-D dispatch grid.
type randomBitsGeometry struct {
	numKeys     int
	bytesPerKey int
	halfSize    int
	odd         bool
}

func randomBitsPlan(keys, out *tensor.Array) randomBitsGeometry {
	numKeys := keys.Size() / 2
	elemsPerKey := out.Size() / numKeys
	bytesPerKey := out.Itemsize() * elemsPerKey
	outPerKey := (bytesPerKey + 3) / 4
	return randomBitsGeometry{
		numKeys:     numKeys,
		bytesPerKey: bytesPerKey,
		halfSize:    outPerKey / 2,
		odd:         outPerKey%2 == 1,
	}
}

// evalRandomBits packs keys two 32-bit words per pair and dispatches a
// 2-D grid of (numKeys, halfSize+odd). The contiguous-key kernel variant
// is chosen when the keys are row contiguous; the strided variant binds
// the keys' rank, shape and strides as extra slots.
func (e *Engine) evalRandomBits(keys, out *tensor.Array) error {
	if err := e.allocate(out); err != nil {
		return err
	}
	if out.Size() == 0 {
		return nil
	}

	g := randomBitsPlan(keys, out)

	name := "rbits"
	if keys.Flags().RowContiguous {
		name = "rbitsc"
	}
	kernel, err := e.dev.GetKernel(name)
	if err != nil {
		return fmt.Errorf("engine: random-bits kernel: %w", err)
	}

	args := device.NewArgs().
		Input("keys", keys).
		Output("out", out).
		Bool("odd", g.odd).
		Int64("bytes_per_key", int64(g.bytesPerKey)).
		Int64("key_offset", int64(keys.Offset()))
	if !keys.Flags().RowContiguous {
		args.Int32("ndim", int32(keys.NDim())).
			Ints32("shape", keys.Shape()).
			Ints64("strides", keys.Strides())
	}

	gridY := g.halfSize
	if g.odd {
		gridY++
	}
	e.enc.Dispatch(kernel,
		device.Dims{X: g.numKeys, Y: gridY, Z: 1},
		device.Dims{X: kernel.MaxThreadsPerGroup(), Y: 1, Z: 1},
		args)
	return nil
}

// evalConjugate dispatches the complex conjugate kernel. The kernel walks
// both buffers flat, so a non-contiguous input is packed first and the
// output inherits the source's layout, as vector copies do. Calling it on
// a non-complex input is an unsupported configuration.
func (e *Engine) evalConjugate(in, out *tensor.Array) error {
	if !out.DType().IsComplex() {
		return fmt.Errorf("engine: conjugate must be called on complex input, got %s", out.DType())
	}
	if out.Size() == 0 {
		return nil
	}

	src := in
	if !in.Flags().Contiguous || in.Size() != in.DataSize() {
		tmp := tensor.New(in.Shape(), in.DType())
		if err := e.copyArray(in, tmp, CopyGeneral); err != nil {
			return err
		}
		defer tmp.Release()
		src = tmp
	}
	if !out.HasData() {
		buf, err := e.dev.Allocate(src.DataSize() * out.Itemsize())
		if err != nil {
			return fmt.Errorf("engine: conjugate allocation: %w", err)
		}
		out.SetDataWithLayout(buf, src.Strides(), src.Flags(), src.DataSize())
	}

	kernel, err := e.dev.GetKernel("conj_" + typeName(out.DType()))
	if err != nil {
		return fmt.Errorf("engine: conjugate kernel: %w", err)
	}

	args := device.NewArgs().
		Input("in", src).
		Output("out", out).
		Int64("src_offset", int64(src.Offset())).
		Int64("dst_offset", int64(out.Offset()))

	n := out.Size()
	e.enc.Dispatch(kernel,
		device.Dims{X: n, Y: 1, Z: 1},
		device.Dims{X: min(n, kernel.MaxThreadsPerGroup()), Y: 1, Z: 1},
		args)
	return nil
}
