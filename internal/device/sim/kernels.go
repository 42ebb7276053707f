package sim

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/flintml/flint/internal/device"
	"github.com/flintml/flint/internal/parallel"
	"github.com/flintml/flint/internal/tensor"
)

// kernelFunc runs one dispatch on the host.
type kernelFunc func(d *Device, grid, group device.Dims, args *device.Args)

var dtypeCodes = map[string]tensor.DataType{
	"f32": tensor.Float32,
	"f64": tensor.Float64,
	"i32": tensor.Int32,
	"i64": tensor.Int64,
	"u8":  tensor.Uint8,
	"b8":  tensor.Bool,
	"c64": tensor.Complex64,
}

// resolveKernel maps a kernel name to its host implementation. Unknown
// names fail resolution, mirroring a device with no such compiled kernel.
func resolveKernel(name string) (kernelFunc, error) {
	switch {
	case name == "rbitsc":
		return execRandomBits(false), nil
	case name == "rbits":
		return execRandomBits(true), nil
	case strings.HasPrefix(name, "arange_"):
		dt, ok := dtypeCodes[strings.TrimPrefix(name, "arange_")]
		if !ok || dt == tensor.Bool || dt == tensor.Complex64 {
			break
		}
		return execArange, nil
	case strings.HasPrefix(name, "argmax_"):
		return execArgReduce(true), nil
	case strings.HasPrefix(name, "argmin_"):
		return execArgReduce(false), nil
	case strings.HasPrefix(name, "conj_"):
		return execConjugate, nil
	case strings.HasPrefix(name, "scopy_"):
		return execScalarCopy, nil
	case strings.HasPrefix(name, "vcopy_"):
		return execVectorCopy, nil
	case strings.HasPrefix(name, "ggcopy_"):
		return execGeneralGeneralCopy, nil
	case strings.HasPrefix(name, "gcopy_"):
		return execGeneralCopy, nil
	}
	return nil, fmt.Errorf("sim: no kernel registered under %q", name)
}

// loadScalar reads one element as float64 from a host buffer.
func loadScalar(buf []byte, dt tensor.DataType, elem int) float64 {
	off := elem * dt.Size()
	switch dt {
	case tensor.Float32:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(buf[off:])))
	case tensor.Float64:
		return math.Float64frombits(binary.LittleEndian.Uint64(buf[off:]))
	case tensor.Int32:
		return float64(int32(binary.LittleEndian.Uint32(buf[off:])))
	case tensor.Int64:
		return float64(int64(binary.LittleEndian.Uint64(buf[off:])))
	case tensor.Uint8:
		return float64(buf[off])
	case tensor.Bool:
		if buf[off] != 0 {
			return 1
		}
		return 0
	default:
		panic(fmt.Sprintf("sim: cannot load %s as scalar", dt))
	}
}

// storeScalar writes one element from float64 into a host buffer.
func storeScalar(buf []byte, dt tensor.DataType, elem int, v float64) {
	off := elem * dt.Size()
	switch dt {
	case tensor.Float32:
		binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(float32(v)))
	case tensor.Float64:
		binary.LittleEndian.PutUint64(buf[off:], math.Float64bits(v))
	case tensor.Int32:
		binary.LittleEndian.PutUint32(buf[off:], uint32(int32(v)))
	case tensor.Int64:
		binary.LittleEndian.PutUint64(buf[off:], uint64(int64(v)))
	case tensor.Uint8:
		buf[off] = uint8(v)
	case tensor.Bool:
		if v != 0 {
			buf[off] = 1
		} else {
			buf[off] = 0
		}
	default:
		panic(fmt.Sprintf("sim: cannot store %s as scalar", dt))
	}
}

// copyElem moves one element between buffers, converting across dtypes.
// Same-dtype moves are exact byte copies.
func copyElem(src []byte, sdt tensor.DataType, sElem int, dst []byte, ddt tensor.DataType, dElem int) {
	if sdt == ddt {
		n := sdt.Size()
		copy(dst[dElem*n:(dElem+1)*n], src[sElem*n:(sElem+1)*n])
		return
	}
	storeScalar(dst, ddt, dElem, loadScalar(src, sdt, sElem))
}

// unravel maps a flat row-major index over shape to a strided element
// offset.
func unravel(i int, shape, strides []int) int {
	off := 0
	for d := len(shape) - 1; d >= 0; d-- {
		off += (i % shape[d]) * strides[d]
		i /= shape[d]
	}
	return off
}

// Copy kernels. Argument slot layout matches the copy engine's binding
// order exactly, and every layout fact (offsets, shapes, strides) arrives
// in byte-packed slots, never through array metadata: a real device binds
// raw buffers and sees nothing else.

func execScalarCopy(d *Device, grid, _ device.Dims, args *device.Args) {
	src, dst := args.At(0).Array, args.At(1).Array
	srcOffset := device.DecodeInt64(args.At(2).Bytes)
	dstOffset := device.DecodeInt64(args.At(3).Bytes)
	v := loadScalar(src.Buffer().Bytes(), src.DType(), srcOffset)
	out := dst.Buffer().Bytes()
	parallel.For(grid.X, func(i int) {
		storeScalar(out, dst.DType(), dstOffset+i, v)
	}, d.cfg)
}

func execVectorCopy(d *Device, grid, _ device.Dims, args *device.Args) {
	src, dst := args.At(0).Array, args.At(1).Array
	srcOffset := device.DecodeInt64(args.At(2).Bytes)
	dstOffset := device.DecodeInt64(args.At(3).Bytes)
	in, out := src.Buffer().Bytes(), dst.Buffer().Bytes()
	parallel.For(grid.X, func(i int) {
		copyElem(in, src.DType(), srcOffset+i, out, dst.DType(), dstOffset+i)
	}, d.cfg)
}

func execGeneralCopy(d *Device, grid, _ device.Dims, args *device.Args) {
	src, dst := args.At(0).Array, args.At(1).Array
	ndim := device.DecodeInt32(args.At(4).Bytes)
	shape := device.DecodeInts32(args.At(2).Bytes)[:ndim]
	srcStrides := device.DecodeInts64(args.At(3).Bytes)[:ndim]
	srcOffset := device.DecodeInt64(args.At(5).Bytes)
	dstOffset := device.DecodeInt64(args.At(6).Bytes)

	in, out := src.Buffer().Bytes(), dst.Buffer().Bytes()
	parallel.For(grid.X, func(i int) {
		copyElem(in, src.DType(), srcOffset+unravel(i, shape, srcStrides),
			out, dst.DType(), dstOffset+i)
	}, d.cfg)
}

func execGeneralGeneralCopy(d *Device, grid, _ device.Dims, args *device.Args) {
	src, dst := args.At(0).Array, args.At(1).Array
	ndim := device.DecodeInt32(args.At(5).Bytes)
	shape := device.DecodeInts32(args.At(2).Bytes)[:ndim]
	srcStrides := device.DecodeInts64(args.At(3).Bytes)[:ndim]
	dstStrides := device.DecodeInts64(args.At(4).Bytes)[:ndim]
	srcOffset := device.DecodeInt64(args.At(6).Bytes)
	dstOffset := device.DecodeInt64(args.At(7).Bytes)

	in, out := src.Buffer().Bytes(), dst.Buffer().Bytes()
	parallel.For(grid.X, func(i int) {
		copyElem(in, src.DType(), srcOffset+unravel(i, shape, srcStrides),
			out, dst.DType(), dstOffset+unravel(i, shape, dstStrides))
	}, d.cfg)
}

// execArange fills the output with start + i*step in the output dtype.
func execArange(d *Device, grid, _ device.Dims, args *device.Args) {
	out := args.At(2).Array
	start := tensor.UnpackScalar(out.DType(), args.At(0).Bytes)
	step := tensor.UnpackScalar(out.DType(), args.At(1).Bytes)
	buf := out.Buffer().Bytes()
	parallel.For(grid.X, func(i int) {
		storeScalar(buf, out.DType(), i, start+float64(i)*step)
	}, d.cfg)
}

// execArgReduce scans the reduced axis per output element and writes the
// index of the extreme value. Ties resolve to the first occurrence.
func execArgReduce(wantMax bool) kernelFunc {
	return func(d *Device, _, _ device.Dims, args *device.Args) {
		in, out := args.At(0).Array, args.At(1).Array
		ndim := device.DecodeInt64(args.At(5).Bytes)
		shape := device.DecodeInts32(args.At(2).Bytes)[:max(ndim, 0)]
		inStrides := device.DecodeInts64(args.At(3).Bytes)
		outStrides := device.DecodeInts64(args.At(4).Bytes)
		axisStride := device.DecodeInt64(args.At(6).Bytes)
		axisSize := device.DecodeInt64(args.At(7).Bytes)
		inOffset := device.DecodeInt64(args.At(8).Bytes)
		outOffset := device.DecodeInt64(args.At(9).Bytes)

		groups := 1
		for _, s := range shape {
			groups *= s
		}

		inBuf, outBuf := in.Buffer().Bytes(), out.Buffer().Bytes()
		parallel.For(groups, func(i int) {
			inBase := inOffset + unravel(i, shape, inStrides[:ndim])
			best := loadScalar(inBuf, in.DType(), inBase)
			bestIdx := 0
			for k := 1; k < axisSize; k++ {
				v := loadScalar(inBuf, in.DType(), inBase+k*axisStride)
				if (wantMax && v > best) || (!wantMax && v < best) {
					best = v
					bestIdx = k
				}
			}
			storeScalar(outBuf, out.DType(),
				outOffset+unravel(i, shape, outStrides[:ndim]), float64(bestIdx))
		}, d.cfg)
	}
}

// execConjugate negates the imaginary component of each complex element.
// Both buffers are walked flat from their packed offsets.
func execConjugate(d *Device, grid, _ device.Dims, args *device.Args) {
	in, out := args.At(0).Array, args.At(1).Array
	srcOffset := device.DecodeInt64(args.At(2).Bytes)
	dstOffset := device.DecodeInt64(args.At(3).Bytes)
	inBuf, outBuf := in.Buffer().Bytes(), out.Buffer().Bytes()
	parallel.For(grid.X, func(i int) {
		so := (srcOffset + i) * 8
		do := (dstOffset + i) * 8
		copy(outBuf[do:do+4], inBuf[so:so+4])
		im := math.Float32frombits(binary.LittleEndian.Uint32(inBuf[so+4:]))
		binary.LittleEndian.PutUint32(outBuf[do+4:], math.Float32bits(-im))
	}, d.cfg)
}

// splitMix64 is the deterministic word generator behind the simulated
// random-bits kernels. Bit quality is irrelevant here; the engine only
// owns the dispatch geometry.
func splitMix64(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}

// execRandomBits fills each key's byte range with words derived from the
// key pair. The strided variant reads keys through the shape/strides
// bound in the extra argument slots.
func execRandomBits(strided bool) kernelFunc {
	return func(d *Device, grid, _ device.Dims, args *device.Args) {
		keys, out := args.At(0).Array, args.At(1).Array
		odd := args.At(2).Bytes[0] != 0
		bytesPerKey := device.DecodeInt64(args.At(3).Bytes)
		keyOffset := device.DecodeInt64(args.At(4).Bytes)

		var keyShape, keyStrides []int
		if strided {
			ndim := device.DecodeInt32(args.At(5).Bytes)
			keyShape = device.DecodeInts32(args.At(6).Bytes)[:ndim]
			keyStrides = device.DecodeInts64(args.At(7).Bytes)[:ndim]
		}

		keyElem := func(flat int) int {
			if strided {
				return keyOffset + unravel(flat, keyShape, keyStrides)
			}
			return keyOffset + flat
		}

		halfPlusOdd := grid.Y
		half := halfPlusOdd
		if odd {
			half--
		}
		outPerKey := 2*half + boolInt(odd)

		keyBuf, outBuf := keys.Buffer().Bytes(), out.Buffer().Bytes()
		parallel.For2D(grid.X, grid.Y, func(x, y int) {
			k0 := uint64(int64(loadScalar(keyBuf, keys.DType(), keyElem(2*x))))
			k1 := uint64(int64(loadScalar(keyBuf, keys.DType(), keyElem(2*x+1))))
			seed := splitMix64(k0<<32 | k1&0xffffffff)

			writeWord := func(w int) {
				if w >= outPerKey {
					return
				}
				bits := splitMix64(seed + uint64(w))
				var word [4]byte
				binary.LittleEndian.PutUint32(word[:], uint32(bits))
				start := x*bytesPerKey + 4*w
				end := min(start+4, (x+1)*bytesPerKey)
				copy(outBuf[start:end], word[:end-start])
			}
			writeWord(y)
			if y < half {
				writeWord(y + halfPlusOdd)
			}
		}, d.cfg)
	}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
