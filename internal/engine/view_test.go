package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flintml/flint/internal/tensor"
)

// Reshape

func TestReshapeContiguousAliases(t *testing.T) {
	e, dev := newTestEngine(t)

	in := newF32(t, tensor.Shape{2, 3}, 0, 1, 2, 3, 4, 5)
	out := tensor.New(tensor.Shape{6}, tensor.Float32)
	require.NoError(t, e.Eval(Reshape{}, []*tensor.Array{in}, []*tensor.Array{out}))

	assert.Same(t, in.Buffer(), out.Buffer(), "contiguous reshape must not copy")
	assert.Equal(t, []int{1}, out.Strides())
	assert.True(t, out.Flags().RowContiguous)
	assert.Empty(t, dev.Dispatches())
}

func TestReshapeTransposedCopies(t *testing.T) {
	e, dev := newTestEngine(t)

	parent := newF32(t, tensor.Shape{2, 3}, 0, 1, 2, 3, 4, 5)
	in := stridedView(parent, tensor.Shape{3, 2}, []int{1, 3}, 0)

	out := tensor.New(tensor.Shape{6}, tensor.Float32)
	require.NoError(t, e.Eval(Reshape{}, []*tensor.Array{in}, []*tensor.Array{out}))

	assert.NotSame(t, parent.Buffer(), out.Buffer(), "transposed reshape must materialize")
	assert.Equal(t, "gcopy_f32_f32", dev.LastDispatch().Kernel)
	assert.Equal(t, []float32{0, 3, 1, 4, 2, 5}, out.AsFloat32()[:6])
}

func TestReshapeStridedViewKeepsStrides(t *testing.T) {
	e, dev := newTestEngine(t)

	// Every other element of a vector reshaped to 2x3: stride math has an
	// exact answer, so no copy happens.
	parent := newF32(t, tensor.Shape{12}, 0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11)
	in := stridedView(parent, tensor.Shape{6}, []int{2}, 0)

	out := tensor.New(tensor.Shape{2, 3}, tensor.Float32)
	require.NoError(t, e.Eval(Reshape{}, []*tensor.Array{in}, []*tensor.Array{out}))

	assert.Same(t, parent.Buffer(), out.Buffer())
	assert.Equal(t, []int{6, 2}, out.Strides())
	assert.Empty(t, dev.Dispatches())
	assert.Equal(t, []float32{0, 2, 4, 6, 8, 10}, readF32(out))
}

func TestReshapeStrides(t *testing.T) {
	tests := []struct {
		name      string
		inShape   tensor.Shape
		inStrides []int
		outShape  tensor.Shape
		want      []int
		ok        bool
	}{
		{"merge", tensor.Shape{2, 3}, []int{3, 1}, tensor.Shape{6}, []int{1}, true},
		{"split", tensor.Shape{6}, []int{1}, tensor.Shape{2, 3}, []int{3, 1}, true},
		{"split strided", tensor.Shape{6}, []int{2}, tensor.Shape{2, 3}, []int{6, 2}, true},
		{"unit dims", tensor.Shape{1, 6, 1}, []int{9, 2, 5}, tensor.Shape{3, 2}, []int{4, 2}, true},
		{"transpose", tensor.Shape{3, 2}, []int{1, 3}, tensor.Shape{6}, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := reshapeStrides(tt.inShape, tt.inStrides, tt.outShape)
			require.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

// Slice

func TestSliceBindsView(t *testing.T) {
	e, dev := newTestEngine(t)

	in := newF32(t, tensor.Shape{2, 6},
		0, 1, 2, 3, 4, 5,
		6, 7, 8, 9, 10, 11)
	out := tensor.New(tensor.Shape{2, 3}, tensor.Float32)
	p := Slice{Start: []int{0, 1}, Steps: []int{1, 2}}
	require.NoError(t, e.Eval(p, []*tensor.Array{in}, []*tensor.Array{out}))

	assert.Same(t, in.Buffer(), out.Buffer(), "forward slice of a contiguous parent is a view")
	assert.Equal(t, 1, out.Offset())
	assert.Equal(t, []int{6, 2}, out.Strides())
	assert.Empty(t, dev.Dispatches())
	assert.Equal(t, []float32{1, 3, 5, 7, 9, 11}, readF32(out))
}

func TestSliceNegativeStepCopies(t *testing.T) {
	e, dev := newTestEngine(t)

	in := newF32(t, tensor.Shape{5}, 0, 1, 2, 3, 4)
	out := tensor.New(tensor.Shape{2}, tensor.Float32)
	p := Slice{Start: []int{4}, Steps: []int{-2}}
	require.NoError(t, e.Eval(p, []*tensor.Array{in}, []*tensor.Array{out}))

	assert.NotSame(t, in.Buffer(), out.Buffer(), "negative steps must materialize")
	assert.Equal(t, "gcopy_f32_f32", dev.LastDispatch().Kernel)
	assert.Equal(t, []float32{4, 2}, out.AsFloat32()[:2])
}

func TestSliceStridedParentCopies(t *testing.T) {
	e, dev := newTestEngine(t)

	parent := newF32(t, tensor.Shape{8}, 0, 1, 2, 3, 4, 5, 6, 7)
	in := stridedView(parent, tensor.Shape{4}, []int{2}, 0)

	out := tensor.New(tensor.Shape{2}, tensor.Float32)
	p := Slice{Start: []int{1}, Steps: []int{1}}
	require.NoError(t, e.Eval(p, []*tensor.Array{in}, []*tensor.Array{out}))

	assert.NotSame(t, parent.Buffer(), out.Buffer())
	assert.Len(t, dev.Dispatches(), 1)
	assert.Equal(t, []float32{2, 4}, out.AsFloat32()[:2])
}

func TestSliceEmptyBindsNothing(t *testing.T) {
	e, dev := newTestEngine(t)

	in := newF32(t, tensor.Shape{4}, 0, 1, 2, 3)
	out := tensor.New(tensor.Shape{0}, tensor.Float32)
	p := Slice{Start: []int{2}, Steps: []int{1}}
	require.NoError(t, e.Eval(p, []*tensor.Array{in}, []*tensor.Array{out}))

	assert.False(t, out.HasData())
	assert.Zero(t, dev.Allocations())
	assert.Empty(t, dev.Dispatches())
}

// SliceUpdate

func TestSliceUpdate(t *testing.T) {
	e, dev := newTestEngine(t)

	base := newF32(t, tensor.Shape{4}, 0, 1, 2, 3)
	upd := newF32(t, tensor.Shape{2}, 9, 8)
	out := tensor.New(tensor.Shape{4}, tensor.Float32)
	p := SliceUpdate{Start: []int{1}, Steps: []int{1}}
	require.NoError(t, e.Eval(p, []*tensor.Array{base, upd}, []*tensor.Array{out}))

	assert.Equal(t, []float32{0, 9, 8, 3}, out.AsFloat32()[:4])
	assert.Equal(t, []float32{0, 1, 2, 3}, base.AsFloat32()[:4], "base must stay untouched")

	ds := dev.Dispatches()
	require.Len(t, ds, 2)
	assert.Equal(t, "vcopy_f32_f32", ds[0].Kernel)
	assert.Equal(t, "ggcopy_f32_f32", ds[1].Kernel)
}

func TestSliceUpdateStepped(t *testing.T) {
	e, _ := newTestEngine(t)

	base := newF32(t, tensor.Shape{6}, 0, 1, 2, 3, 4, 5)
	upd := newF32(t, tensor.Shape{3}, 10, 11, 12)
	out := tensor.New(tensor.Shape{6}, tensor.Float32)
	p := SliceUpdate{Start: []int{0}, Steps: []int{2}}
	require.NoError(t, e.Eval(p, []*tensor.Array{base, upd}, []*tensor.Array{out}))

	assert.Equal(t, []float32{10, 1, 11, 3, 12, 5}, out.AsFloat32()[:6])
}

func TestSliceUpdateEmptyUpdateAliases(t *testing.T) {
	e, dev := newTestEngine(t)

	base := newF32(t, tensor.Shape{4}, 0, 1, 2, 3)
	upd := tensor.New(tensor.Shape{0}, tensor.Float32)
	out := tensor.New(tensor.Shape{4}, tensor.Float32)
	p := SliceUpdate{Start: []int{0}, Steps: []int{1}}
	require.NoError(t, e.Eval(p, []*tensor.Array{base, upd}, []*tensor.Array{out}))

	assert.Same(t, base.Buffer(), out.Buffer(), "empty update aliases the base")
	assert.Empty(t, dev.Dispatches())
}

// Broadcast / Transpose / Split / AsStrided

func TestBroadcast(t *testing.T) {
	e, dev := newTestEngine(t)

	in := newF32(t, tensor.Shape{3}, 1, 2, 3)
	out := tensor.New(tensor.Shape{2, 3}, tensor.Float32)
	require.NoError(t, e.Eval(Broadcast{}, []*tensor.Array{in}, []*tensor.Array{out}))

	assert.Same(t, in.Buffer(), out.Buffer())
	assert.Equal(t, []int{0, 1}, out.Strides())
	assert.Equal(t, 3, out.DataSize(), "broadcast keeps the parent's data size")
	assert.Equal(t, tensor.Flags{}, out.Flags())
	assert.Empty(t, dev.Dispatches())
	assert.Equal(t, []float32{1, 2, 3, 1, 2, 3}, readF32(out))
}

func TestBroadcastSameSizeKeepsFlags(t *testing.T) {
	e, _ := newTestEngine(t)

	in := newF32(t, tensor.Shape{3}, 1, 2, 3)
	out := tensor.New(tensor.Shape{1, 3}, tensor.Float32)
	require.NoError(t, e.Eval(Broadcast{}, []*tensor.Array{in}, []*tensor.Array{out}))

	assert.True(t, out.Flags().Contiguous, "unit-dim expansion repeats nothing")
}

func TestTranspose(t *testing.T) {
	e, dev := newTestEngine(t)

	in := newF32(t, tensor.Shape{2, 3}, 0, 1, 2, 3, 4, 5)
	out := tensor.New(tensor.Shape{3, 2}, tensor.Float32)
	require.NoError(t, e.Eval(Transpose{}, []*tensor.Array{in}, []*tensor.Array{out}))

	assert.Same(t, in.Buffer(), out.Buffer())
	assert.Equal(t, []int{1, 3}, out.Strides())
	assert.True(t, out.Flags().ColContiguous)
	assert.False(t, out.Flags().RowContiguous)
	assert.Empty(t, dev.Dispatches())
	assert.Equal(t, []float32{0, 3, 1, 4, 2, 5}, readF32(out))
}

func TestTransposeExplicitAxes(t *testing.T) {
	e, _ := newTestEngine(t)

	in := newF32(t, tensor.Shape{2, 1, 3}, 0, 1, 2, 3, 4, 5)
	out := tensor.New(tensor.Shape{1, 2, 3}, tensor.Float32)
	require.NoError(t, e.Eval(Transpose{Axes: []int{1, 0, 2}}, []*tensor.Array{in}, []*tensor.Array{out}))

	assert.Equal(t, []int{3, 3, 1}, out.Strides())
	assert.Equal(t, []float32{0, 1, 2, 3, 4, 5}, readF32(out))
}

func TestSplit(t *testing.T) {
	e, dev := newTestEngine(t)

	in := newF32(t, tensor.Shape{4, 2}, 0, 1, 2, 3, 4, 5, 6, 7)
	a := tensor.New(tensor.Shape{2, 2}, tensor.Float32)
	b := tensor.New(tensor.Shape{2, 2}, tensor.Float32)
	require.NoError(t, e.Eval(Split{Axis: 0}, []*tensor.Array{in}, []*tensor.Array{a, b}))

	assert.Same(t, in.Buffer(), a.Buffer())
	assert.Same(t, in.Buffer(), b.Buffer())
	assert.Equal(t, 0, a.Offset())
	assert.Equal(t, 4, b.Offset())
	assert.Empty(t, dev.Dispatches())
	assert.Equal(t, []float32{0, 1, 2, 3}, readF32(a))
	assert.Equal(t, []float32{4, 5, 6, 7}, readF32(b))
}

func TestAsStridedOverlappingView(t *testing.T) {
	e, dev := newTestEngine(t)

	in := newF32(t, tensor.Shape{4}, 0, 1, 2, 3)
	out := tensor.New(tensor.Shape{3, 2}, tensor.Float32)
	p := AsStrided{Shape: tensor.Shape{3, 2}, Strides: []int{1, 1}, Offset: 0}
	require.NoError(t, e.Eval(p, []*tensor.Array{in}, []*tensor.Array{out}))

	assert.Same(t, in.Buffer(), out.Buffer())
	assert.Empty(t, dev.Dispatches())
	assert.Equal(t, []float32{0, 1, 1, 2, 2, 3}, readF32(out))
}

func TestAsStridedMaterializesStridedInput(t *testing.T) {
	e, dev := newTestEngine(t)

	parent := newF32(t, tensor.Shape{6}, 0, 1, 2, 3, 4, 5)
	in := stridedView(parent, tensor.Shape{3}, []int{2}, 0)

	out := tensor.New(tensor.Shape{3}, tensor.Float32)
	p := AsStrided{Shape: tensor.Shape{3}, Strides: []int{1}, Offset: 0}
	require.NoError(t, e.Eval(p, []*tensor.Array{in}, []*tensor.Array{out}))

	assert.NotSame(t, parent.Buffer(), out.Buffer(), "strided input is packed first")
	assert.Len(t, dev.Dispatches(), 1)
	assert.Equal(t, []float32{0, 2, 4}, readF32(out))
}

func TestViewSpan(t *testing.T) {
	assert.Equal(t, 6, viewSpan(tensor.Shape{2, 3}, []int{3, 1}))
	assert.Equal(t, 11, viewSpan(tensor.Shape{2, 3}, []int{6, 2}))
	assert.Equal(t, 0, viewSpan(tensor.Shape{0, 3}, []int{3, 1}))
	assert.Equal(t, 9, viewSpan(tensor.Shape{5}, []int{-2}))
}
