// Package sim provides an in-memory device implementing the engine's
// collaborator contracts. Kernels execute synchronously on the host with
// semantically faithful implementations, so tests can verify both the
// dispatch parameterization and the resulting memory contents.
package sim

import (
	"fmt"
	"sync"

	"github.com/flintml/flint/internal/device"
	"github.com/flintml/flint/internal/parallel"
	"github.com/flintml/flint/internal/tensor"
)

// Dispatch records one issued kernel dispatch for test introspection.
type Dispatch struct {
	Kernel     string
	Grid       device.Dims
	Group      device.Dims
	Args       *device.Args
	Stream     int
	Concurrent bool
}

// Device is the simulated compute device.
type Device struct {
	maxThreadsPerGroup int
	cfg                parallel.Config

	mu         sync.Mutex
	allocs     int
	allocBytes int
	uploads    int
	dispatches []Dispatch
	encoders   map[int]*encoder
}

// Option configures a simulated device.
type Option func(*Device)

// WithMaxThreadsPerGroup overrides the kernel thread-group limit.
func WithMaxThreadsPerGroup(n int) Option {
	return func(d *Device) { d.maxThreadsPerGroup = n }
}

// New creates a simulated device. The default thread-group limit matches
// a typical GPU (1024).
func New(opts ...Option) *Device {
	d := &Device{
		maxThreadsPerGroup: 1024,
		cfg:                parallel.DefaultConfig(),
		encoders:           make(map[int]*encoder),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Allocate returns a host-backed buffer.
func (d *Device) Allocate(nbytes int) (*tensor.Buffer, error) {
	d.mu.Lock()
	d.allocs++
	d.allocBytes += nbytes
	d.mu.Unlock()
	return tensor.NewHostBuffer(nbytes), nil
}

// Upload copies host bytes into a fresh host-backed buffer.
func (d *Device) Upload(data []byte) (*tensor.Buffer, error) {
	d.mu.Lock()
	d.uploads++
	d.mu.Unlock()
	buf := tensor.NewHostBuffer(len(data))
	copy(buf.Bytes(), data)
	return buf, nil
}

// GetKernel resolves a kernel name to a built-in host implementation.
func (d *Device) GetKernel(name string) (device.Kernel, error) {
	exec, err := resolveKernel(name)
	if err != nil {
		return nil, err
	}
	return &kernel{name: name, maxGroup: d.maxThreadsPerGroup, exec: exec}, nil
}

// Encoder returns the command encoder for a stream index.
func (d *Device) Encoder(stream int) device.Encoder {
	d.mu.Lock()
	defer d.mu.Unlock()
	enc, ok := d.encoders[stream]
	if !ok {
		enc = &encoder{dev: d, stream: stream}
		d.encoders[stream] = enc
	}
	return enc
}

// Allocations returns the number of buffers handed out.
func (d *Device) Allocations() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.allocs
}

// AllocatedBytes returns the total bytes handed out.
func (d *Device) AllocatedBytes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.allocBytes
}

// Uploads returns the number of host-to-device uploads performed.
func (d *Device) Uploads() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.uploads
}

// Dispatches returns every recorded dispatch in issuance order.
func (d *Device) Dispatches() []Dispatch {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Dispatch, len(d.dispatches))
	copy(out, d.dispatches)
	return out
}

// LastDispatch returns the most recent dispatch. Panics when none exist.
func (d *Device) LastDispatch() Dispatch {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.dispatches) == 0 {
		panic("sim: no dispatches recorded")
	}
	return d.dispatches[len(d.dispatches)-1]
}

// Reset clears recorded dispatches and allocation counters.
func (d *Device) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dispatches = nil
	d.allocs = 0
	d.allocBytes = 0
	d.uploads = 0
}

func (d *Device) record(rec Dispatch) {
	d.mu.Lock()
	d.dispatches = append(d.dispatches, rec)
	d.mu.Unlock()
}

// kernel is a compiled-kernel stand-in backed by a host function.
type kernel struct {
	name     string
	maxGroup int
	exec     kernelFunc
}

func (k *kernel) Name() string            { return k.name }
func (k *kernel) MaxThreadsPerGroup() int { return k.maxGroup }

// encoder issues dispatches for one stream. Execution is synchronous:
// issuance order is trivially execution order, and concurrent regions
// only affect the recorded metadata.
type encoder struct {
	dev        *Device
	stream     int
	concurrent bool
}

func (e *encoder) Dispatch(k device.Kernel, grid, group device.Dims, args *device.Args) {
	sk, ok := k.(*kernel)
	if !ok {
		panic(fmt.Sprintf("sim: foreign kernel %T", k))
	}
	e.dev.record(Dispatch{
		Kernel:     sk.name,
		Grid:       grid,
		Group:      group,
		Args:       args,
		Stream:     e.stream,
		Concurrent: e.concurrent,
	})
	sk.exec(e.dev, grid, group, args)
}

func (e *encoder) StartConcurrent() (end func()) {
	e.concurrent = true
	return func() { e.concurrent = false }
}
