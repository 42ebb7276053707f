package engine

import (
	"errors"
	"fmt"

	"github.com/flintml/flint/internal/device"
	"github.com/flintml/flint/internal/tensor"
)

// ErrNotImplemented marks primitives this backend does not provide.
// Dense factorizations always fail with it.
var ErrNotImplemented = errors.New("not implemented on this backend")

// Engine routes primitives to view construction, the copy engine, or a
// parameterized kernel dispatch. One engine serves one stream; its
// dispatches are asynchronous and execute in issuance order.
type Engine struct {
	dev    device.Device
	enc    device.Encoder
	stream int
}

// New creates an engine issuing onto the given stream.
func New(dev device.Device, stream int) *Engine {
	return &Engine{
		dev:    dev,
		enc:    dev.Encoder(stream),
		stream: stream,
	}
}

// allocate binds a fresh buffer to out unless it is empty or already
// bound. Empty outputs stay unbound: no allocation, no dispatch.
func (e *Engine) allocate(out *tensor.Array) error {
	if out.Size() == 0 || out.HasData() {
		return nil
	}
	buf, err := e.dev.Allocate(out.NBytes())
	if err != nil {
		return fmt.Errorf("engine: allocation: %w", err)
	}
	out.SetData(buf)
	return nil
}

// Eval evaluates one primitive against its materialized inputs, binding
// every output's buffer slot and layout metadata. It is invoked exactly
// once per graph node by the owning scheduler.
func (e *Engine) Eval(p Primitive, inputs []*tensor.Array, outputs []*tensor.Array) error {
	switch p := p.(type) {
	case Arange:
		assertArity(p, len(inputs) == 0 && len(outputs) == 1)
		return e.evalArange(p, outputs[0])

	case ArgReduce:
		assertArity(p, len(inputs) == 1 && len(outputs) == 1)
		return e.evalArgReduce(p, inputs[0], outputs[0])

	case AsType:
		assertArity(p, len(inputs) == 1 && len(outputs) == 1)
		ctype := CopyGeneral
		if inputs[0].Flags().Contiguous {
			ctype = CopyVector
		}
		return e.copyArray(inputs[0], outputs[0], ctype)

	case AsStrided:
		assertArity(p, len(inputs) == 1 && len(outputs) == 1)
		return e.evalAsStrided(p, inputs[0], outputs[0])

	case Broadcast:
		assertArity(p, len(inputs) == 1 && len(outputs) == 1)
		evalBroadcast(inputs[0], outputs[0])
		return nil

	case Concatenate:
		assertArity(p, len(inputs) >= 1 && len(outputs) == 1)
		return e.evalConcatenate(p, inputs, outputs[0])

	case Conjugate:
		assertArity(p, len(inputs) == 1 && len(outputs) == 1)
		return e.evalConjugate(inputs[0], outputs[0])

	case Copy, Load, StopGradient:
		assertArity(p, len(inputs) == 1 && len(outputs) == 1)
		evalPassThrough(inputs, outputs)
		return nil

	case CustomVJP, Depends:
		assertArity(p, len(inputs) >= len(outputs))
		evalPassThrough(inputs, outputs)
		return nil

	case Full:
		assertArity(p, len(inputs) == 1 && len(outputs) == 1)
		return e.copyArray(inputs[0], outputs[0], classifyCopy(inputs[0]))

	case NumberOfElements:
		assertArity(p, len(inputs) == 1 && len(outputs) == 1)
		return e.evalNumberOfElements(inputs[0], outputs[0])

	case Pad:
		assertArity(p, len(inputs) == 2 && len(outputs) == 1)
		return e.evalPad(p, inputs[0], inputs[1], outputs[0])

	case RandomBits:
		assertArity(p, len(inputs) == 1 && len(outputs) == 1)
		return e.evalRandomBits(inputs[0], outputs[0])

	case Reshape:
		assertArity(p, len(inputs) == 1 && len(outputs) == 1)
		return e.evalReshape(inputs[0], outputs[0])

	case Slice:
		assertArity(p, len(inputs) == 1 && len(outputs) == 1)
		return e.evalSlice(p, inputs[0], outputs[0])

	case SliceUpdate:
		assertArity(p, len(inputs) == 2 && len(outputs) == 1)
		return e.evalSliceUpdate(p, inputs[0], inputs[1], outputs[0])

	case Split:
		assertArity(p, len(inputs) == 1 && len(outputs) >= 1)
		evalSplit(p, inputs[0], outputs)
		return nil

	case Transpose:
		assertArity(p, len(inputs) == 1 && len(outputs) == 1)
		evalTranspose(p, inputs[0], outputs[0])
		return nil

	case QRF:
		return fmt.Errorf("engine: QR factorization: %w", ErrNotImplemented)
	case SVD:
		return fmt.Errorf("engine: SVD: %w", ErrNotImplemented)
	case Inverse:
		return fmt.Errorf("engine: matrix inversion: %w", ErrNotImplemented)

	default:
		panic(fmt.Sprintf("engine: unknown primitive %T", p))
	}
}

// assertArity enforces the per-primitive input/output contract. A
// violation is a graph-construction defect, not a runtime condition.
func assertArity(p Primitive, ok bool) {
	if !ok {
		panic(fmt.Sprintf("engine: %s called with wrong input/output arity", p.Name()))
	}
}

// evalReshape aliases the input when its layout permits, and falls back
// to a General copy for layouts where no stride derivation exists.
func (e *Engine) evalReshape(in, out *tensor.Array) error {
	copyNeeded, strides := prepareReshape(in, out.Shape())
	if copyNeeded {
		return e.copyArray(in, out, CopyGeneral)
	}
	if out.Size() == 0 {
		return nil
	}
	sharedBufferReshape(in, strides, out)
	return nil
}

// evalSlice binds the output as a strided view into the input when the
// layout permits; otherwise it materializes via a General copy with
// explicit source offset and strides. Empty slices bind no buffer.
func (e *Engine) evalSlice(p Slice, in, out *tensor.Array) error {
	if out.Size() == 0 {
		return nil
	}

	dataOffset, srcStrides, copyNeeded := prepareSlice(in, p.Start, p.Steps)
	if !copyNeeded {
		sharedBufferSlice(in, srcStrides, dataOffset, out)
		return nil
	}
	if err := e.allocate(out); err != nil {
		return err
	}
	return e.copyInplace(in, out, out.Shape(), srcStrides, out.Strides(),
		dataOffset, 0, CopyGeneral)
}

// evalSliceUpdate materializes the base into the output, then writes the
// update tensor into the target sub-region. An empty update aliases the
// base outright.
func (e *Engine) evalSliceUpdate(p SliceUpdate, in, upd, out *tensor.Array) error {
	if out.Size() == 0 {
		return nil
	}
	if upd.Size() == 0 {
		out.CopySharedBuffer(in)
		return nil
	}

	if err := e.copyArray(in, out, classifyCopy(in)); err != nil {
		return err
	}

	dataOffset, dstStrides, _ := prepareSlice(out, p.Start, p.Steps)
	return e.copyInplace(upd, out, upd.Shape(), upd.Strides(), dstStrides,
		upd.Offset(), dataOffset, CopyGeneralGeneral)
}

// evalPad fills the whole output with the scalar pad value, then copies
// the input into the interior region. Negative axes resolve as ndim+axis.
func (e *Engine) evalPad(p Pad, in, val, out *tensor.Array) error {
	if val.Size() != 1 {
		panic("engine: pad value must be a scalar")
	}
	if val.DType() != in.DType() || in.DType() != out.DType() {
		panic("engine: pad value, input and output dtypes must match")
	}
	if len(p.Axes) != len(p.LowPad) {
		panic("engine: pad axes and low-pad sizes must align")
	}

	if err := e.copyArray(val, out, CopyScalar); err != nil {
		return err
	}
	if out.Size() == 0 {
		return nil
	}

	dataOffset := 0
	for i, axis := range p.Axes {
		ax := tensor.NormalizeAxis(axis, out.NDim())
		dataOffset += out.Strides()[ax] * p.LowPad[i]
	}

	interior := tensor.New(in.Shape(), out.DType())
	interior.SharedView(out, out.Strides(), out.Flags(),
		viewSpan(in.Shape(), out.Strides()), dataOffset)
	defer interior.Release()

	return e.copyInplace(in, interior, in.Shape(), in.Strides(), interior.Strides(),
		in.Offset(), interior.Offset(), CopyGeneralGeneral)
}

// evalConcatenate materializes the output, then copies each input into
// its segment. Segment offsets come from a prefix sum over the inputs'
// extents along the axis; the writes are disjoint by construction, so
// they are issued inside a concurrent region.
func (e *Engine) evalConcatenate(p Concatenate, inputs []*tensor.Array, out *tensor.Array) error {
	if err := e.allocate(out); err != nil {
		return err
	}
	if out.Size() == 0 {
		return nil
	}

	axis := tensor.NormalizeAxis(p.Axis, out.NDim())
	offsets := make([]int, len(inputs)+1)
	for i, in := range inputs {
		offsets[i+1] = offsets[i] + in.Shape()[axis]
	}

	strides := out.Strides()
	// The segments are not globally contiguous along the axis.
	flags := out.Flags()
	flags.Contiguous = false
	flags.RowContiguous = false
	flags.ColContiguous = false

	end := e.enc.StartConcurrent()
	defer end()
	for i, in := range inputs {
		segment := tensor.New(in.Shape(), out.DType())
		segment.SharedView(out, strides, flags,
			viewSpan(in.Shape(), strides), strides[axis]*offsets[i])
		err := e.copyInplace(in, segment, in.Shape(), in.Strides(), segment.Strides(),
			in.Offset(), segment.Offset(), CopyGeneralGeneral)
		segment.Release()
		if err != nil {
			return err
		}
	}
	return nil
}
