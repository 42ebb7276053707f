package webgpu

import (
	"sync"

	"github.com/go-webgpu/webgpu/wgpu"
)

// storageUsage is the usage every pooled buffer is created with. Outputs
// need CopySrc for staged readback and CopyDst for uploads, so a single
// usage keeps every pooled buffer interchangeable.
const storageUsage = wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst

// sizeClass buckets buffers so a small request never pins a huge buffer.
type sizeClass int

const (
	smallClass  sizeClass = iota // < 4KB
	mediumClass                  // 4KB - 1MB
	largeClass                   // > 1MB
)

const (
	smallThreshold  = 4 * 1024
	mediumThreshold = 1024 * 1024
	maxPoolSize     = 100 // max buffers per class
)

type pooledBuffer struct {
	buffer *wgpu.Buffer
	size   uint64
}

// BufferPool recycles storage buffers to reduce allocation overhead.
// Released buffers are kept per size class and handed back to later
// acquisitions that fit.
type BufferPool struct {
	device *wgpu.Device

	classes [3][]*pooledBuffer
	mu      sync.Mutex

	poolHits   uint64
	poolMisses uint64
}

// NewBufferPool creates a new buffer pool for the given device.
func NewBufferPool(device *wgpu.Device) *BufferPool {
	return &BufferPool{device: device}
}

// Acquire returns a storage buffer of at least size bytes, reusing a
// pooled buffer when one fits.
func (p *BufferPool) Acquire(size uint64) *wgpu.Buffer {
	p.mu.Lock()
	defer p.mu.Unlock()

	class := classify(size)
	pool := p.classes[class]
	for i, pb := range pool {
		if pb.size >= size {
			p.classes[class] = append(pool[:i], pool[i+1:]...)
			p.poolHits++
			return pb.buffer
		}
	}

	p.poolMisses++
	return p.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: storageUsage,
		Size:  size,
	})
}

// Release returns a buffer to the pool for reuse. If the pool class is
// full the buffer is released immediately.
func (p *BufferPool) Release(buffer *wgpu.Buffer, size uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	class := classify(size)
	if len(p.classes[class]) >= maxPoolSize {
		buffer.Release()
		return
	}
	p.classes[class] = append(p.classes[class], &pooledBuffer{buffer: buffer, size: size})
}

// Clear releases all pooled buffers.
// Should be called when the backend is released.
func (p *BufferPool) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for class := range p.classes {
		for _, pb := range p.classes[class] {
			pb.buffer.Release()
		}
		p.classes[class] = p.classes[class][:0]
	}
}

// Stats returns hit/miss counters and the number of pooled buffers.
func (p *BufferPool) Stats() (hits, misses uint64, pooledCount int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	count := 0
	for class := range p.classes {
		count += len(p.classes[class])
	}
	return p.poolHits, p.poolMisses, count
}

func classify(size uint64) sizeClass {
	if size < smallThreshold {
		return smallClass
	}
	if size < mediumThreshold {
		return mediumClass
	}
	return largeClass
}
