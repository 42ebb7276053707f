package engine

import (
	"fmt"

	"github.com/flintml/flint/internal/tensor"
)

// The evaluators in this file never dispatch kernels: they rewrite layout
// metadata over shared buffers, or forward inputs to outputs unchanged.

// evalBroadcast aliases in under out's shape with zero strides on
// expanded dimensions.
func evalBroadcast(in, out *tensor.Array) {
	if out.Size() == 0 {
		return
	}
	strides := broadcastStrides(in, out.Shape())
	flags := in.Flags()
	if out.Size() > in.Size() {
		// Repeated elements: no packed layout describes the view.
		flags = tensor.Flags{}
	}
	out.SharedView(in, strides, flags, in.DataSize(), in.Offset())
}

// evalTranspose aliases in with permuted strides. Empty axes means full
// reversal.
func evalTranspose(p Transpose, in, out *tensor.Array) {
	axes := p.Axes
	if len(axes) == 0 {
		axes = make([]int, in.NDim())
		for i := range axes {
			axes[i] = in.NDim() - 1 - i
		}
	}
	if len(axes) != in.NDim() {
		panic(fmt.Sprintf("engine: transpose axes rank %d does not match input rank %d", len(axes), in.NDim()))
	}
	strides := make([]int, in.NDim())
	for i, ax := range axes {
		strides[i] = in.Strides()[tensor.NormalizeAxis(ax, in.NDim())]
	}
	flags := tensor.ComputeFlags(out.Shape(), strides)
	if !in.Flags().Contiguous {
		flags = tensor.Flags{}
	}
	out.SharedView(in, strides, flags, in.DataSize(), in.Offset())
}

// evalAsStrided reinterprets in with explicit shape/strides/offset. The
// metadata is only meaningful against a densely packed parent, so a
// non-row-contiguous input is materialized first.
func (e *Engine) evalAsStrided(p AsStrided, in, out *tensor.Array) error {
	src := in
	if !in.Flags().RowContiguous {
		tmp := tensor.New(in.Shape(), in.DType())
		if err := e.copyArray(in, tmp, CopyGeneral); err != nil {
			return err
		}
		src = tmp
		defer tmp.Release()
	}
	flags := tensor.ComputeFlags(p.Shape, p.Strides)
	out.SharedView(src, p.Strides, flags, viewSpan(p.Shape, p.Strides), src.Offset()+p.Offset)
	return nil
}

// evalSplit aliases equal parts of in along the split axis.
func evalSplit(p Split, in *tensor.Array, outputs []*tensor.Array) {
	axis := tensor.NormalizeAxis(p.Axis, in.NDim())
	offset := in.Offset()
	for _, out := range outputs {
		if out.Size() != 0 {
			flags := tensor.ComputeFlags(out.Shape(), in.Strides())
			if !in.Flags().Contiguous {
				flags = tensor.Flags{}
			}
			out.SharedView(in, in.Strides(), flags, viewSpan(out.Shape(), in.Strides()), offset)
		}
		offset += out.Shape()[axis] * in.Strides()[axis]
	}
}

// evalPassThrough forwards each input buffer to the matching output.
func evalPassThrough(inputs []*tensor.Array, outputs []*tensor.Array) {
	for i, out := range outputs {
		out.CopySharedBuffer(inputs[i])
	}
}

// evalNumberOfElements uploads the input element count as a device scalar.
// The count is known on the host, so no kernel runs.
func (e *Engine) evalNumberOfElements(in, out *tensor.Array) error {
	packed, err := tensor.PackScalar(out.DType(), float64(in.Size()))
	if err != nil {
		return fmt.Errorf("engine: number-of-elements: %w", err)
	}
	buf, err := e.dev.Upload(packed)
	if err != nil {
		return fmt.Errorf("engine: number-of-elements upload: %w", err)
	}
	out.SetData(buf)
	return nil
}
