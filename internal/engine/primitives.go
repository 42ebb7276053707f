// Package engine evaluates tensor primitives on a compute device: it
// decides per primitive whether the result can alias existing memory as a
// zero-copy view or must be materialized by a parallel kernel dispatch.
package engine

import "github.com/flintml/flint/internal/tensor"

// Primitive is the closed set of graph operations the engine evaluates.
// The dispatcher matches it exhaustively; adding a kind means adding a
// case there.
type Primitive interface {
	isPrimitive()
	Name() string
}

// ArgReduceOp selects between arg-min and arg-max reduction.
type ArgReduceOp int

// Arg-reduction variants.
const (
	ArgMin ArgReduceOp = iota
	ArgMax
)

// Arange generates [start, start+step, ...] over the output.
type Arange struct {
	Start float64
	Step  float64
}

// ArgReduce computes per-slice argument indices along one axis.
type ArgReduce struct {
	Op   ArgReduceOp
	Axis int
}

// AsType casts the input to the output dtype.
type AsType struct{}

// AsStrided reinterprets the input with explicit layout metadata.
type AsStrided struct {
	Shape   tensor.Shape
	Strides []int
	Offset  int
}

// Broadcast expands the input to the output shape without copying.
type Broadcast struct{}

// Concatenate joins the inputs along Axis.
type Concatenate struct {
	Axis int
}

// Conjugate negates the imaginary component of a complex input.
type Conjugate struct{}

// Copy forwards the input buffer to the output.
type Copy struct{}

// CustomVJP forwards its primal inputs to the outputs.
type CustomVJP struct{}

// Depends forwards inputs to outputs; it only encodes ordering edges.
type Depends struct{}

// Full materializes the output from a (possibly broadcast) fill input.
type Full struct{}

// Load forwards an externally loaded buffer.
type Load struct{}

// NumberOfElements writes the input element count as a scalar.
type NumberOfElements struct{}

// Pad surrounds the input with a fill value along the given axes.
type Pad struct {
	Axes   []int
	LowPad []int
}

// RandomBits fills the output with random bits derived from key pairs.
type RandomBits struct{}

// Reshape reinterprets the input under a new shape.
type Reshape struct{}

// Slice extracts a strided sub-region.
type Slice struct {
	Start []int
	Steps []int
}

// SliceUpdate writes an update tensor into a sub-region of the base.
type SliceUpdate struct {
	Start []int
	Steps []int
}

// Split partitions the input into equal parts along Axis.
type Split struct {
	Axis int
}

// StopGradient forwards the input; a marker for autodiff only.
type StopGradient struct{}

// Transpose permutes axes. Empty Axes means full reversal.
type Transpose struct {
	Axes []int
}

// QRF is the QR factorization stub; unimplemented on this backend.
type QRF struct{}

// SVD is the singular value decomposition stub; unimplemented on this backend.
type SVD struct{}

// Inverse is the matrix inversion stub; unimplemented on this backend.
type Inverse struct{}

func (Arange) isPrimitive()           {}
func (ArgReduce) isPrimitive()        {}
func (AsType) isPrimitive()           {}
func (AsStrided) isPrimitive()        {}
func (Broadcast) isPrimitive()        {}
func (Concatenate) isPrimitive()      {}
func (Conjugate) isPrimitive()        {}
func (Copy) isPrimitive()             {}
func (CustomVJP) isPrimitive()        {}
func (Depends) isPrimitive()          {}
func (Full) isPrimitive()             {}
func (Load) isPrimitive()             {}
func (NumberOfElements) isPrimitive() {}
func (Pad) isPrimitive()              {}
func (RandomBits) isPrimitive()       {}
func (Reshape) isPrimitive()          {}
func (Slice) isPrimitive()            {}
func (SliceUpdate) isPrimitive()      {}
func (Split) isPrimitive()            {}
func (StopGradient) isPrimitive()     {}
func (Transpose) isPrimitive()        {}
func (QRF) isPrimitive()              {}
func (SVD) isPrimitive()              {}
func (Inverse) isPrimitive()          {}

func (Arange) Name() string { return "Arange" }

func (p ArgReduce) Name() string {
	if p.Op == ArgMin {
		return "ArgMin"
	}
	return "ArgMax"
}

func (AsType) Name() string           { return "AsType" }
func (AsStrided) Name() string        { return "AsStrided" }
func (Broadcast) Name() string        { return "Broadcast" }
func (Concatenate) Name() string      { return "Concatenate" }
func (Conjugate) Name() string        { return "Conjugate" }
func (Copy) Name() string             { return "Copy" }
func (CustomVJP) Name() string        { return "CustomVJP" }
func (Depends) Name() string          { return "Depends" }
func (Full) Name() string             { return "Full" }
func (Load) Name() string             { return "Load" }
func (NumberOfElements) Name() string { return "NumberOfElements" }
func (Pad) Name() string              { return "Pad" }
func (RandomBits) Name() string       { return "RandomBits" }
func (Reshape) Name() string          { return "Reshape" }
func (Slice) Name() string            { return "Slice" }
func (SliceUpdate) Name() string      { return "SliceUpdate" }
func (Split) Name() string            { return "Split" }
func (StopGradient) Name() string     { return "StopGradient" }
func (Transpose) Name() string        { return "Transpose" }
func (QRF) Name() string              { return "QRF" }
func (SVD) Name() string              { return "SVD" }
func (Inverse) Name() string          { return "Inverse" }
