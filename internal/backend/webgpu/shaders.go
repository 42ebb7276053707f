package webgpu

// Built-in WGSL sources for the contiguous fast-path kernels. Binding
// indices follow the dispatcher's positional argument order. Strided
// kernel variants carry packed layout parameters that do not satisfy
// uniform array alignment, so those ship with the embedding application
// through RegisterSource.

// arangeF32Shader fills out[i] = start + i*step.
const arangeF32Shader = `
struct Scalar {
    v: f32,
}
@group(0) @binding(0) var<uniform> start: Scalar;
@group(0) @binding(1) var<uniform> step: Scalar;
@group(0) @binding(2) var<storage, read_write> out: array<f32>;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let idx = global_id.x;
    if (idx < arrayLength(&out)) {
        out[idx] = start.v + f32(idx) * step.v;
    }
}
`

// arangeI32Shader fills out[i] = start + i*step for 32-bit integers.
const arangeI32Shader = `
struct Scalar {
    v: i32,
}
@group(0) @binding(0) var<uniform> start: Scalar;
@group(0) @binding(1) var<uniform> step: Scalar;
@group(0) @binding(2) var<storage, read_write> out: array<i32>;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let idx = global_id.x;
    if (idx < arrayLength(&out)) {
        out[idx] = start.v + i32(idx) * step.v;
    }
}
`

// The copy and conjugate kernels receive element offsets as packed 64-bit
// slots; only the low word is addressable in WGSL, which covers every
// bindable buffer size.

// scalarCopyF32Shader broadcasts src[src_ofs] over the output region.
const scalarCopyF32Shader = `
struct Offset {
    lo: u32,
    hi: u32,
}
@group(0) @binding(0) var<storage, read> src: array<f32>;
@group(0) @binding(1) var<storage, read_write> dst: array<f32>;
@group(0) @binding(2) var<uniform> src_ofs: Offset;
@group(0) @binding(3) var<uniform> dst_ofs: Offset;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let idx = dst_ofs.lo + global_id.x;
    if (idx < arrayLength(&dst)) {
        dst[idx] = src[src_ofs.lo];
    }
}
`

// vectorCopyF32Shader copies between two contiguous float regions.
const vectorCopyF32Shader = `
struct Offset {
    lo: u32,
    hi: u32,
}
@group(0) @binding(0) var<storage, read> src: array<f32>;
@group(0) @binding(1) var<storage, read_write> dst: array<f32>;
@group(0) @binding(2) var<uniform> src_ofs: Offset;
@group(0) @binding(3) var<uniform> dst_ofs: Offset;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let idx = global_id.x;
    if (dst_ofs.lo + idx < arrayLength(&dst)) {
        dst[dst_ofs.lo + idx] = src[src_ofs.lo + idx];
    }
}
`

// vectorCopyI32F32Shader converts a contiguous i32 region to f32.
const vectorCopyI32F32Shader = `
struct Offset {
    lo: u32,
    hi: u32,
}
@group(0) @binding(0) var<storage, read> src: array<i32>;
@group(0) @binding(1) var<storage, read_write> dst: array<f32>;
@group(0) @binding(2) var<uniform> src_ofs: Offset;
@group(0) @binding(3) var<uniform> dst_ofs: Offset;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let idx = global_id.x;
    if (dst_ofs.lo + idx < arrayLength(&dst)) {
        dst[dst_ofs.lo + idx] = f32(src[src_ofs.lo + idx]);
    }
}
`

// vectorCopyF32I32Shader converts a contiguous f32 region to i32.
const vectorCopyF32I32Shader = `
struct Offset {
    lo: u32,
    hi: u32,
}
@group(0) @binding(0) var<storage, read> src: array<f32>;
@group(0) @binding(1) var<storage, read_write> dst: array<i32>;
@group(0) @binding(2) var<uniform> src_ofs: Offset;
@group(0) @binding(3) var<uniform> dst_ofs: Offset;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let idx = global_id.x;
    if (dst_ofs.lo + idx < arrayLength(&dst)) {
        dst[dst_ofs.lo + idx] = i32(src[src_ofs.lo + idx]);
    }
}
`

// conjC64Shader negates the imaginary half of interleaved complex pairs.
const conjC64Shader = `
struct Offset {
    lo: u32,
    hi: u32,
}
@group(0) @binding(0) var<storage, read> src: array<f32>;
@group(0) @binding(1) var<storage, read_write> dst: array<f32>;
@group(0) @binding(2) var<uniform> src_ofs: Offset;
@group(0) @binding(3) var<uniform> dst_ofs: Offset;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let s = (src_ofs.lo + global_id.x) * 2u;
    let d = (dst_ofs.lo + global_id.x) * 2u;
    if (d + 1u < arrayLength(&dst)) {
        dst[d] = src[s];
        dst[d + 1u] = -src[s + 1u];
    }
}
`

// RegisterBuiltins registers the built-in shader set.
func (b *Backend) RegisterBuiltins() {
	b.RegisterSource("arange_f32", arangeF32Shader)
	b.RegisterSource("arange_i32", arangeI32Shader)
	b.RegisterSource("scopy_f32_f32", scalarCopyF32Shader)
	b.RegisterSource("vcopy_f32_f32", vectorCopyF32Shader)
	b.RegisterSource("vcopy_i32_f32", vectorCopyI32F32Shader)
	b.RegisterSource("vcopy_f32_i32", vectorCopyF32I32Shader)
	b.RegisterSource("conj_c64", conjC64Shader)
}
