package webgpu

import (
	"fmt"
	"unsafe"

	"github.com/flintml/flint/internal/tensor"
	"github.com/go-webgpu/webgpu/wgpu"
)

// Upload copies host bytes into a fresh device buffer and wraps it in a
// reference-counted tensor buffer. The buffer is created mapped so the
// data lands without a staging pass; on release it joins the pool.
func (b *Backend) Upload(data []byte) (*tensor.Buffer, error) {
	size := bindingSize(len(data))

	buffer := b.dev.CreateBuffer(&wgpu.BufferDescriptor{
		Usage:            storageUsage,
		Size:             size,
		MappedAtCreation: wgpu.True,
	})

	mappedPtr := buffer.GetMappedRange(0, size)
	mappedSlice := unsafe.Slice((*byte)(mappedPtr), size)
	copy(mappedSlice, data)
	buffer.Unmap()

	b.trackAllocation(size)
	return tensor.NewDeviceBuffer(buffer, len(data), func() {
		b.trackRelease(size)
		b.pool.Release(buffer, size)
	}), nil
}

// Read copies a device buffer's contents back to host memory. Pending
// commands are flushed first so the read observes every queued dispatch.
func (b *Backend) Read(buf *tensor.Buffer) ([]byte, error) {
	handle, ok := buf.Handle().(*wgpu.Buffer)
	if !ok {
		return nil, fmt.Errorf("webgpu: buffer is not device-resident")
	}
	if buf.NBytes() == 0 {
		return nil, nil
	}
	b.Flush()
	return b.readBuffer(handle, bindingSize(buf.NBytes()), buf.NBytes())
}

// readBuffer reads data back from a GPU buffer through a staging buffer,
// since storage buffers cannot be mapped directly.
func (b *Backend) readBuffer(srcBuffer *wgpu.Buffer, copySize uint64, nbytes int) ([]byte, error) {
	stagingBuffer := b.dev.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
		Size:  copySize,
	})
	defer stagingBuffer.Release()

	encoder := b.dev.CreateCommandEncoder(nil)
	encoder.CopyBufferToBuffer(srcBuffer, 0, stagingBuffer, 0, copySize)
	cmdBuffer := encoder.Finish(nil)
	b.queue.Submit(cmdBuffer)

	err := stagingBuffer.MapAsync(b.dev, wgpu.MapModeRead, 0, copySize)
	if err != nil {
		return nil, fmt.Errorf("webgpu: failed to map staging buffer: %w", err)
	}

	mappedPtr := stagingBuffer.GetMappedRange(0, copySize)
	mappedSlice := unsafe.Slice((*byte)(mappedPtr), copySize)
	result := make([]byte, nbytes)
	copy(result, mappedSlice)

	stagingBuffer.Unmap()

	return result, nil
}

// createUniformBuffer creates a uniform buffer with the 16-byte
// alignment uniform bindings require, pre-filled with data.
func (b *Backend) createUniformBuffer(data []byte) *wgpu.Buffer {
	alignedSize := alignUniform(uint64(len(data)))

	buffer := b.dev.CreateBuffer(&wgpu.BufferDescriptor{
		Usage:            wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
		Size:             alignedSize,
		MappedAtCreation: wgpu.True,
	})

	mappedPtr := buffer.GetMappedRange(0, alignedSize)
	mappedSlice := unsafe.Slice((*byte)(mappedPtr), alignedSize)
	copy(mappedSlice, data)
	buffer.Unmap()

	return buffer
}

// retainUntilFlush keeps a transient buffer alive until the commands
// referencing it have been submitted.
func (b *Backend) retainUntilFlush(buf *wgpu.Buffer) {
	b.pendingMu.Lock()
	defer b.pendingMu.Unlock()
	b.retiredBuffers = append(b.retiredBuffers, buf)
}

// retainBindGroupUntilFlush keeps a bind group alive until submission.
func (b *Backend) retainBindGroupUntilFlush(bg *wgpu.BindGroup) {
	b.pendingMu.Lock()
	defer b.pendingMu.Unlock()
	b.retiredBindGroups = append(b.retiredBindGroups, bg)
}
