package webgpu

import (
	"sync"

	"github.com/flintml/flint/internal/device"
	"github.com/go-webgpu/webgpu/wgpu"
)

// Encoder issues kernel dispatches for one stream. Each dispatch outside
// a concurrent region gets its own compute pass; inside a region all
// dispatches share a single pass and the queue may overlap them. Finished
// command buffers go through the backend's batching queue.
type Encoder struct {
	backend *Backend
	stream  int

	mu sync.Mutex

	// Open concurrent region, nil otherwise.
	regionEncoder *wgpu.CommandEncoder
	regionPass    *wgpu.ComputePassEncoder
}

var _ device.Encoder = (*Encoder)(nil)

// Dispatch schedules one kernel execution. Argument slots bind in the
// positional order of args: arrays as storage buffers, byte arguments as
// uniform buffers.
func (e *Encoder) Dispatch(k device.Kernel, grid, group device.Dims, args *device.Args) {
	b := e.backend

	pipeline, err := b.getOrCreatePipeline(k.Name())
	if err != nil {
		panic("webgpu: " + err.Error())
	}

	entries := make([]wgpu.BindGroupEntry, 0, args.Len())
	for i, arg := range args.List() {
		switch arg.Kind {
		case device.ArgInput, device.ArgOutput:
			buf, ok := arg.Array.Buffer().Handle().(*wgpu.Buffer)
			if !ok {
				panic("webgpu: argument " + arg.Name + " is not device-resident")
			}
			entries = append(entries, wgpu.BufferBindingEntry(uint32(i), buf, 0, bindingSize(arg.Array.Buffer().NBytes())))
		case device.ArgBytes:
			params := b.createUniformBuffer(arg.Bytes)
			b.retainUntilFlush(params)
			entries = append(entries, wgpu.BufferBindingEntry(uint32(i), params, 0, alignUniform(uint64(len(arg.Bytes)))))
		}
	}

	bindGroupLayout := pipeline.GetBindGroupLayout(0)
	bindGroup := b.dev.CreateBindGroupSimple(bindGroupLayout, entries)
	b.retainBindGroupUntilFlush(bindGroup)

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.regionPass != nil {
		encodeDispatch(e.regionPass, pipeline, bindGroup, grid, group)
		return
	}

	encoder := b.dev.CreateCommandEncoder(nil)
	pass := encoder.BeginComputePass(nil)
	encodeDispatch(pass, pipeline, bindGroup, grid, group)
	pass.End()
	b.queueCommand(encoder.Finish(nil))
}

// StartConcurrent opens a region whose dispatches share one compute pass
// and may execute in any relative order. The returned function closes
// the region and queues its commands.
func (e *Encoder) StartConcurrent() (end func()) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.regionPass != nil {
		panic("webgpu: concurrent region already open")
	}

	encoder := e.backend.dev.CreateCommandEncoder(nil)
	e.regionEncoder = encoder
	e.regionPass = encoder.BeginComputePass(nil)

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()

		e.regionPass.End()
		e.backend.queueCommand(e.regionEncoder.Finish(nil))
		e.regionEncoder = nil
		e.regionPass = nil
	}
}

func encodeDispatch(pass *wgpu.ComputePassEncoder, pipeline *wgpu.ComputePipeline, bindGroup *wgpu.BindGroup, grid, group device.Dims) {
	pass.SetPipeline(pipeline)
	pass.SetBindGroup(0, bindGroup, nil)
	pass.DispatchWorkgroups(workgroups(grid.X, group.X), workgroups(grid.Y, group.Y), workgroups(grid.Z, group.Z))
}

// workgroups returns the workgroup count covering n threads at the given
// group extent.
func workgroups(n, group int) uint32 {
	if group <= 0 {
		group = 1
	}
	if n <= 0 {
		return 1
	}
	return uint32((n + group - 1) / group)
}

// bindingSize rounds a storage binding up to the 4-byte granularity
// WebGPU requires, with a floor for zero-sized logical buffers.
func bindingSize(nbytes int) uint64 {
	if nbytes <= 0 {
		return 4
	}
	return (uint64(nbytes) + 3) &^ 3
}

func alignUniform(size uint64) uint64 {
	if size == 0 {
		return 16
	}
	return (size + 15) &^ 15
}
