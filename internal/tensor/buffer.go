package tensor

import "sync/atomic"

// Buffer is an untyped fixed-size allocation shared by every array view
// that references it. Lifetime is reference-counted: the last holder to
// release it triggers the free hook installed by the allocator.
type Buffer struct {
	data   []byte // host-visible storage; nil for device-only buffers
	handle any    // backend-specific device object, if any
	nbytes int
	free   func()
	refs   atomic.Int32
}

// NewHostBuffer allocates a host-backed buffer with refcount 1.
func NewHostBuffer(nbytes int) *Buffer {
	b := &Buffer{
		data:   make([]byte, nbytes),
		nbytes: nbytes,
	}
	b.refs.Store(1)
	return b
}

// NewDeviceBuffer wraps a backend allocation with refcount 1. The free
// hook runs exactly once, when the last reference is released.
func NewDeviceBuffer(handle any, nbytes int, free func()) *Buffer {
	b := &Buffer{
		handle: handle,
		nbytes: nbytes,
		free:   free,
	}
	b.refs.Store(1)
	return b
}

// NBytes returns the allocated size in bytes.
func (b *Buffer) NBytes() int {
	return b.nbytes
}

// Bytes returns the host-visible storage. Nil for device-only buffers.
func (b *Buffer) Bytes() []byte {
	return b.data
}

// Handle returns the backend-specific device object, or nil.
func (b *Buffer) Handle() any {
	return b.handle
}

// Retain increments the reference count.
func (b *Buffer) Retain() {
	b.refs.Add(1)
}

// Release decrements the reference count and frees the allocation when it
// reaches zero.
func (b *Buffer) Release() {
	if b.refs.Add(-1) == 0 {
		if b.free != nil {
			b.free()
			b.free = nil
		}
		b.data = nil
		b.handle = nil
	}
}

// Refs returns the current reference count. Test hook.
func (b *Buffer) Refs() int {
	return int(b.refs.Load())
}
