// Package device defines the contracts between the evaluation engine and
// the compute device it schedules work onto. Kernels are opaque,
// pre-compiled parallel programs identified by name; the engine only
// parameterizes their dispatch.
package device

import (
	"github.com/flintml/flint/internal/tensor"
)

// Dims describes a 3-D grid or thread-group extent.
type Dims struct {
	X, Y, Z int
}

// Total returns the number of items covered by the dims.
func (d Dims) Total() int {
	return d.X * d.Y * d.Z
}

// Kernel is a compiled parallel program. The engine sizes thread groups
// against MaxThreadsPerGroup and never inspects the program itself.
type Kernel interface {
	Name() string
	MaxThreadsPerGroup() int
}

// Registry resolves kernel names to compiled kernels. Resolution fails
// when no kernel is registered under the name; the engine surfaces that
// synchronously at dispatch-construction time.
type Registry interface {
	GetKernel(name string) (Kernel, error)
}

// Allocator provides raw buffer allocation. Allocation failures (memory
// exhaustion) are returned, not retried.
type Allocator interface {
	Allocate(nbytes int) (*tensor.Buffer, error)
}

// Uploader copies host bytes into a fresh device buffer. Host-computed
// results (scalar constants) reach device memory this way.
type Uploader interface {
	Upload(data []byte) (*tensor.Buffer, error)
}

// Encoder issues kernel dispatches onto one stream's command sequence.
// Dispatches are asynchronous relative to the issuing control flow and
// execute in issuance order, except inside a concurrent region where they
// may run in any relative order.
type Encoder interface {
	// Dispatch schedules one kernel execution. Argument slots follow the
	// positional order of args.
	Dispatch(k Kernel, grid, group Dims, args *Args)

	// StartConcurrent opens a region whose dispatches write provably
	// disjoint buffer regions and may execute unordered. The returned
	// function closes the region.
	StartConcurrent() (end func())
}

// Device bundles the collaborators the engine consumes.
type Device interface {
	Allocator
	Uploader
	Registry

	// Encoder returns the command encoder for a stream index.
	Encoder(stream int) Encoder
}
