// Package webgpu implements the device contracts on top of WebGPU.
// Uses go-webgpu (github.com/go-webgpu/webgpu) for zero-CGO WebGPU bindings.
package webgpu

import (
	"fmt"
	"sync"

	"github.com/flintml/flint/internal/device"
	"github.com/flintml/flint/internal/tensor"
	"github.com/go-webgpu/webgpu/wgpu"
)

// Backend owns the WebGPU instance, adapter, device and queue, plus the
// shader/pipeline caches and the buffer pool. It satisfies device.Device.
type Backend struct {
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	dev      *wgpu.Device
	queue    *wgpu.Queue

	// Shader and pipeline cache
	sources   map[string]string
	shaders   map[string]*wgpu.ShaderModule
	pipelines map[string]*wgpu.ComputePipeline
	mu        sync.RWMutex

	adapterInfo *wgpu.AdapterInfoGo

	pool *BufferPool

	// Per-stream command encoders
	encoders   map[int]*Encoder
	encodersMu sync.Mutex

	// Command batching: command buffers are accumulated and submitted
	// together to reduce queue sync overhead.
	pendingCommands []*wgpu.CommandBuffer
	pendingMu       sync.Mutex
	maxBatchSize    int // 0 = no limit

	// Transient resources kept alive until their commands are submitted.
	retiredBuffers    []*wgpu.Buffer
	retiredBindGroups []*wgpu.BindGroup

	// Memory tracking
	memoryStats struct {
		activeBytes   uint64
		peakBytes     uint64
		activeBuffers int64
		mu            sync.Mutex
	}
}

var _ device.Device = (*Backend)(nil)

// New creates a new WebGPU backend.
// Returns an error if WebGPU is not available or initialization fails.
func New() (backend *Backend, err error) {
	// Recover from panic if wgpu_native library is not found.
	defer func() {
		if r := recover(); r != nil {
			backend = nil
			err = fmt.Errorf("webgpu: native library not available: %v", r)
		}
	}()

	instance, _ := wgpu.CreateInstance(nil)
	adapter, adapterErr := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: wgpu.PowerPreferenceHighPerformance,
	})
	if adapterErr != nil {
		instance.Release()
		return nil, fmt.Errorf("webgpu: failed to request adapter: %w", adapterErr)
	}

	adapterInfo, _ := adapter.GetInfo()

	dev, deviceErr := adapter.RequestDevice(nil)
	if deviceErr != nil {
		adapter.Release()
		instance.Release()
		return nil, fmt.Errorf("webgpu: failed to request device: %w", deviceErr)
	}

	queue := dev.GetQueue()
	if queue == nil {
		dev.Release()
		adapter.Release()
		instance.Release()
		return nil, fmt.Errorf("webgpu: failed to get queue")
	}

	b := &Backend{
		instance:    instance,
		adapter:     adapter,
		dev:         dev,
		queue:       queue,
		sources:     make(map[string]string),
		shaders:     make(map[string]*wgpu.ShaderModule),
		pipelines:   make(map[string]*wgpu.ComputePipeline),
		adapterInfo: adapterInfo,
		encoders:    make(map[int]*Encoder),
	}
	b.pool = NewBufferPool(dev)

	return b, nil
}

// Allocate creates a storage buffer of nbytes and wraps it in a
// reference-counted tensor buffer. The buffer returns to the pool when
// the last reference is released.
func (b *Backend) Allocate(nbytes int) (*tensor.Buffer, error) {
	if nbytes < 0 {
		return nil, fmt.Errorf("webgpu: negative allocation size %d", nbytes)
	}
	// WebGPU rejects zero-sized buffers and binds storage at 4-byte
	// granularity; round up so every handle stays bindable.
	size := bindingSize(nbytes)

	buf := b.pool.Acquire(size)
	if buf == nil {
		return nil, fmt.Errorf("webgpu: buffer allocation of %d bytes failed", size)
	}
	b.trackAllocation(size)

	return tensor.NewDeviceBuffer(buf, nbytes, func() {
		b.trackRelease(size)
		b.pool.Release(buf, size)
	}), nil
}

// Encoder returns the command encoder for the given stream index,
// creating it on first use.
func (b *Backend) Encoder(stream int) device.Encoder {
	b.encodersMu.Lock()
	defer b.encodersMu.Unlock()

	if enc, ok := b.encoders[stream]; ok {
		return enc
	}
	enc := &Encoder{backend: b, stream: stream}
	b.encoders[stream] = enc
	return enc
}

// queueCommand adds a command buffer to the pending queue for batch
// submission.
func (b *Backend) queueCommand(cmdBuffer *wgpu.CommandBuffer) {
	b.pendingMu.Lock()
	defer b.pendingMu.Unlock()

	b.pendingCommands = append(b.pendingCommands, cmdBuffer)

	if b.maxBatchSize > 0 && len(b.pendingCommands) >= b.maxBatchSize {
		b.flushCommandsLocked()
	}
}

// Flush submits all pending command buffers to the GPU queue. It is
// called automatically before reading data back from the device.
func (b *Backend) Flush() {
	b.pendingMu.Lock()
	defer b.pendingMu.Unlock()
	b.flushCommandsLocked()
}

func (b *Backend) flushCommandsLocked() {
	if len(b.pendingCommands) > 0 {
		b.queue.Submit(b.pendingCommands...)
		b.pendingCommands = b.pendingCommands[:0]
	}
	for _, bg := range b.retiredBindGroups {
		bg.Release()
	}
	b.retiredBindGroups = b.retiredBindGroups[:0]
	for _, buf := range b.retiredBuffers {
		buf.Release()
	}
	b.retiredBuffers = b.retiredBuffers[:0]
}

// SetMaxBatchSize sets the maximum number of commands to accumulate
// before auto-flush. Set to 0 (default) to disable the limit.
func (b *Backend) SetMaxBatchSize(size int) {
	b.pendingMu.Lock()
	defer b.pendingMu.Unlock()
	b.maxBatchSize = size
}

// Release releases all WebGPU resources.
// Must be called when the backend is no longer needed.
func (b *Backend) Release() {
	b.Flush()

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.pool != nil {
		b.pool.Clear()
		b.pool = nil
	}

	for _, p := range b.pipelines {
		p.Release()
	}
	b.pipelines = nil

	for _, s := range b.shaders {
		s.Release()
	}
	b.shaders = nil

	if b.queue != nil {
		b.queue.Release()
		b.queue = nil
	}
	if b.dev != nil {
		b.dev.Release()
		b.dev = nil
	}
	if b.adapter != nil {
		b.adapter.Release()
		b.adapter = nil
	}
	if b.instance != nil {
		b.instance.Release()
		b.instance = nil
	}
}

// Name returns a human-readable backend name.
func (b *Backend) Name() string {
	if b.adapterInfo != nil {
		return fmt.Sprintf("WebGPU (%s %s)", b.adapterInfo.Device, b.adapterInfo.Vendor)
	}
	return "WebGPU"
}

// AdapterInfo returns information about the GPU adapter.
func (b *Backend) AdapterInfo() *wgpu.AdapterInfoGo {
	return b.adapterInfo
}

// IsAvailable checks if WebGPU is available on this system.
func IsAvailable() (available bool) {
	// Recover from panic if wgpu_native library is not found.
	defer func() {
		if r := recover(); r != nil {
			available = false
		}
	}()

	instance, _ := wgpu.CreateInstance(nil)
	defer instance.Release()

	adapter, err := instance.RequestAdapter(nil)
	if err != nil {
		return false
	}
	adapter.Release()

	return true
}

// MemoryStats reports current device memory usage.
type MemoryStats struct {
	ActiveBytes   uint64
	PeakBytes     uint64
	ActiveBuffers int64
	PoolHits      uint64
	PoolMisses    uint64
	PooledBuffers int
}

// MemoryStats returns current GPU memory usage statistics.
func (b *Backend) MemoryStats() MemoryStats {
	b.memoryStats.mu.Lock()
	stats := MemoryStats{
		ActiveBytes:   b.memoryStats.activeBytes,
		PeakBytes:     b.memoryStats.peakBytes,
		ActiveBuffers: b.memoryStats.activeBuffers,
	}
	b.memoryStats.mu.Unlock()

	hits, misses, pooled := b.pool.Stats()
	stats.PoolHits = hits
	stats.PoolMisses = misses
	stats.PooledBuffers = pooled
	return stats
}

func (b *Backend) trackAllocation(size uint64) {
	b.memoryStats.mu.Lock()
	defer b.memoryStats.mu.Unlock()

	b.memoryStats.activeBytes += size
	b.memoryStats.activeBuffers++
	if b.memoryStats.activeBytes > b.memoryStats.peakBytes {
		b.memoryStats.peakBytes = b.memoryStats.activeBytes
	}
}

func (b *Backend) trackRelease(size uint64) {
	b.memoryStats.mu.Lock()
	defer b.memoryStats.mu.Unlock()

	if b.memoryStats.activeBytes >= size {
		b.memoryStats.activeBytes -= size
	}
	b.memoryStats.activeBuffers--
}
