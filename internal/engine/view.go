package engine

import (
	"github.com/flintml/flint/internal/tensor"
)

// prepareReshape decides whether reshaping in to outShape can alias the
// existing buffer. When it can, the returned strides describe the view;
// otherwise a General copy is required.
func prepareReshape(in *tensor.Array, outShape tensor.Shape) (copyNeeded bool, strides []int) {
	if in.Size() == 0 {
		return false, outShape.ComputeStrides()
	}
	if in.Flags().RowContiguous {
		return false, outShape.ComputeStrides()
	}
	if s, ok := reshapeStrides(in.Shape(), in.Strides(), outShape); ok {
		return false, s
	}
	return true, nil
}

// reshapeStrides attempts to derive strides for outShape that address the
// same elements as (inShape, inStrides) without moving data. It walks both
// shapes right to left, coalescing input dimensions that are contiguous
// with respect to each other; an output dimension that would have to split
// a non-coalescible input run makes the reshape a copy.
func reshapeStrides(inShape tensor.Shape, inStrides []int, outShape tensor.Shape) ([]int, bool) {
	// Drop unit input dims; their strides carry no information.
	var shape, srcStrides []int
	for i, d := range inShape {
		if d != 1 {
			shape = append(shape, d)
			srcStrides = append(srcStrides, inStrides[i])
		}
	}

	out := make([]int, len(outShape))
	oi := len(outShape) - 1
	ii := len(shape) - 1
	for oi >= 0 {
		if outShape[oi] == 1 {
			if oi == len(outShape)-1 {
				out[oi] = 1
			} else {
				out[oi] = out[oi+1] * outShape[oi+1]
			}
			oi--
			continue
		}
		if ii < 0 {
			return nil, false
		}

		// Accumulate input dims until they cover the output dim.
		run := shape[ii]
		stride := srcStrides[ii]
		for run < outShape[oi] {
			if ii == 0 {
				return nil, false
			}
			// The next input dim must be contiguous with the run.
			if srcStrides[ii-1] != shape[ii]*srcStrides[ii] {
				return nil, false
			}
			ii--
			run *= shape[ii]
		}
		if run != outShape[oi] {
			// The output dim splits the run. The run is internally
			// contiguous at base stride, so peel the innermost output
			// dim off and leave the rest for the next iteration.
			if run%outShape[oi] != 0 {
				return nil, false
			}
			out[oi] = stride
			shape[ii] = run / outShape[oi]
			srcStrides[ii] = stride * outShape[oi]
			oi--
			continue
		}
		out[oi] = stride
		ii--
		oi--
	}
	if ii >= 0 {
		return nil, false
	}
	return out, true
}

// sharedBufferReshape binds out as a zero-copy reinterpretation of in.
func sharedBufferReshape(in *tensor.Array, strides []int, out *tensor.Array) {
	flags := tensor.ComputeFlags(out.Shape(), strides)
	// A view never becomes more contiguous than its parent's storage.
	if !in.Flags().Contiguous {
		flags.Contiguous = false
		flags.RowContiguous = false
		flags.ColContiguous = false
	}
	out.SharedView(in, strides, flags, in.DataSize(), in.Offset())
}

// prepareSlice folds start indices and steps into an element offset and a
// stride vector over the parent's layout. The copy decision is layout
// only: a forward-stepping slice of a contiguous parent is always
// representable as a strided view; negative steps or an already strided
// parent defer to the copy engine.
func prepareSlice(in *tensor.Array, start, steps []int) (dataOffset int, strides []int, copyNeeded bool) {
	if len(start) != in.NDim() || len(steps) != in.NDim() {
		panic("engine: slice metadata rank mismatch")
	}
	dataOffset = in.Offset()
	strides = make([]int, in.NDim())
	for i := range start {
		dataOffset += start[i] * in.Strides()[i]
		strides[i] = in.Strides()[i] * steps[i]
		if steps[i] < 0 {
			copyNeeded = true
		}
	}
	if !in.Flags().Contiguous {
		copyNeeded = true
	}
	return dataOffset, strides, copyNeeded
}

// sharedBufferSlice binds out as a strided view into in at dataOffset.
func sharedBufferSlice(in *tensor.Array, strides []int, dataOffset int, out *tensor.Array) {
	flags := tensor.ComputeFlags(out.Shape(), strides)
	out.SharedView(in, strides, flags, viewSpan(out.Shape(), strides), dataOffset)
}

// viewSpan returns the number of elements between the first and last
// addressable element of a (shape, strides) view, inclusive. Used as the
// data size of strided views.
func viewSpan(shape tensor.Shape, strides []int) int {
	if shape.NumElements() == 0 {
		return 0
	}
	span := 1
	for i, d := range shape {
		if d > 1 {
			s := strides[i]
			if s < 0 {
				s = -s
			}
			span += (d - 1) * s
		}
	}
	return span
}

// broadcastStrides maps in's strides onto outShape, right-aligned, with
// zero strides on expanded or missing dimensions.
func broadcastStrides(in *tensor.Array, outShape tensor.Shape) []int {
	strides := make([]int, len(outShape))
	offset := len(outShape) - in.NDim()
	for i := range outShape {
		if i < offset {
			continue
		}
		if in.Shape()[i-offset] == outShape[i] && outShape[i] > 1 {
			strides[i] = in.Strides()[i-offset]
		}
	}
	return strides
}
