package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flintml/flint/internal/device"
	"github.com/flintml/flint/internal/tensor"
)

func boundF32(t *testing.T, shape tensor.Shape, vals ...float32) *tensor.Array {
	t.Helper()
	a := tensor.New(shape, tensor.Float32)
	a.SetData(tensor.NewHostBuffer(a.NBytes()))
	copy(a.AsFloat32(), vals)
	return a
}

func TestGetKernelUnknown(t *testing.T) {
	dev := New()
	_, err := dev.GetKernel("definitely_not_registered")
	assert.Error(t, err)

	_, err = dev.GetKernel("arange_b8")
	assert.Error(t, err, "bool has no arange kernel")
}

func TestAllocateCounters(t *testing.T) {
	dev := New()
	buf, err := dev.Allocate(64)
	require.NoError(t, err)
	require.NotNil(t, buf)

	assert.Equal(t, 1, dev.Allocations())
	assert.Equal(t, 64, dev.AllocatedBytes())
	assert.Len(t, buf.Bytes(), 64)

	dev.Reset()
	assert.Zero(t, dev.Allocations())
}

func TestUpload(t *testing.T) {
	dev := New()
	buf, err := dev.Upload([]byte{1, 2, 3, 4})
	require.NoError(t, err)

	assert.Equal(t, []byte{1, 2, 3, 4}, buf.Bytes())
	assert.Equal(t, 1, dev.Uploads())
	assert.Zero(t, dev.Allocations(), "uploads are counted separately")

	dev.Reset()
	assert.Zero(t, dev.Uploads())
}

func TestDispatchRecordsAndExecutes(t *testing.T) {
	dev := New()
	src := boundF32(t, tensor.Shape{3}, 1, 2, 3)
	dst := boundF32(t, tensor.Shape{3})

	k, err := dev.GetKernel("vcopy_f32_f32")
	require.NoError(t, err)
	assert.Equal(t, "vcopy_f32_f32", k.Name())
	assert.Equal(t, 1024, k.MaxThreadsPerGroup())

	enc := dev.Encoder(2)
	args := device.NewArgs().Input("src", src).Output("dst", dst).
		Int64("src_offset", 0).Int64("dst_offset", 0)
	enc.Dispatch(k, device.Dims{X: 3, Y: 1, Z: 1}, device.Dims{X: 3, Y: 1, Z: 1}, args)

	assert.Equal(t, []float32{1, 2, 3}, dst.AsFloat32()[:3], "dispatch executes synchronously")

	d := dev.LastDispatch()
	assert.Equal(t, "vcopy_f32_f32", d.Kernel)
	assert.Equal(t, 2, d.Stream)
	assert.False(t, d.Concurrent)
}

func TestConcurrentRegionMarksDispatches(t *testing.T) {
	dev := New()
	src := boundF32(t, tensor.Shape{2}, 5, 6)
	dst := boundF32(t, tensor.Shape{2})

	k, err := dev.GetKernel("vcopy_f32_f32")
	require.NoError(t, err)

	enc := dev.Encoder(0)
	end := enc.StartConcurrent()
	enc.Dispatch(k, device.Dims{X: 2, Y: 1, Z: 1}, device.Dims{X: 2, Y: 1, Z: 1},
		device.NewArgs().Input("src", src).Output("dst", dst).
			Int64("src_offset", 0).Int64("dst_offset", 0))
	end()
	enc.Dispatch(k, device.Dims{X: 2, Y: 1, Z: 1}, device.Dims{X: 2, Y: 1, Z: 1},
		device.NewArgs().Input("src", src).Output("dst", dst).
			Int64("src_offset", 0).Int64("dst_offset", 0))

	ds := dev.Dispatches()
	require.Len(t, ds, 2)
	assert.True(t, ds[0].Concurrent)
	assert.False(t, ds[1].Concurrent)
}

func TestWithMaxThreadsPerGroup(t *testing.T) {
	dev := New(WithMaxThreadsPerGroup(64))
	k, err := dev.GetKernel("scopy_f32_f32")
	require.NoError(t, err)
	assert.Equal(t, 64, k.MaxThreadsPerGroup())
}

func TestEncoderPerStreamIsCached(t *testing.T) {
	dev := New()
	assert.Same(t, dev.Encoder(1), dev.Encoder(1))
	assert.NotSame(t, dev.Encoder(1), dev.Encoder(2))
}
