package jls

import (
	"fmt"
	"math"
)

// BaseType is the numeric family a DataType encodes.
type BaseType uint8

const (
	BaseInt BaseType = iota
	BaseUnsigned
	BaseFloat
)

func (b BaseType) String() string {
	switch b {
	case BaseInt:
		return "int"
	case BaseUnsigned:
		return "unsigned"
	case BaseFloat:
		return "float"
	default:
		return fmt.Sprintf("<unrecognized basetype %d>", byte(b))
	}
}

// DataType encodes the on-disk layout of one signal's samples: basetype, bit
// width, and a fixed-point quantization exponent Q applied to integer
// basetypes when promoting to float64 (value = rawInt / 2^Q). Floating point
// basetypes ignore Q.
//
// Widths 1, 4, and 24 are packed: samples are stored as a little-endian bit
// stream with no inter-sample padding, so a single-sample read or write may
// need to touch an arbitrary, non-byte-aligned bit offset.
type DataType struct {
	Base     BaseType
	BitWidth uint8
	Q        uint8
}

// Common data types used throughout the package and its tests.
var (
	DataTypeI8   = DataType{Base: BaseInt, BitWidth: 8}
	DataTypeI16  = DataType{Base: BaseInt, BitWidth: 16}
	DataTypeI24  = DataType{Base: BaseInt, BitWidth: 24}
	DataTypeI32  = DataType{Base: BaseInt, BitWidth: 32}
	DataTypeI64  = DataType{Base: BaseInt, BitWidth: 64}
	DataTypeI4   = DataType{Base: BaseInt, BitWidth: 4}
	DataTypeU1   = DataType{Base: BaseUnsigned, BitWidth: 1}
	DataTypeU4   = DataType{Base: BaseUnsigned, BitWidth: 4}
	DataTypeU8   = DataType{Base: BaseUnsigned, BitWidth: 8}
	DataTypeU16  = DataType{Base: BaseUnsigned, BitWidth: 16}
	DataTypeU24  = DataType{Base: BaseUnsigned, BitWidth: 24}
	DataTypeU32  = DataType{Base: BaseUnsigned, BitWidth: 32}
	DataTypeU64  = DataType{Base: BaseUnsigned, BitWidth: 64}
	DataTypeF32  = DataType{Base: BaseFloat, BitWidth: 32}
	DataTypeF64  = DataType{Base: BaseFloat, BitWidth: 64}
)

// Validate checks that the basetype/bit_width combination is one of the
// supported on-disk layouts.
func (d DataType) Validate() error {
	switch d.BitWidth {
	case 1, 4, 8, 16, 24, 32, 64:
	default:
		return fmt.Errorf("unsupported bit width %d", d.BitWidth)
	}
	if d.Base == BaseFloat && d.BitWidth != 32 && d.BitWidth != 64 {
		return fmt.Errorf("floating point data types require bit_width 32 or 64, got %d", d.BitWidth)
	}
	return nil
}

// IsPacked reports whether samples of this type are stored as a bitpacked
// stream rather than byte-aligned values.
func (d DataType) IsPacked() bool {
	return d.BitWidth == 1 || d.BitWidth == 4 || d.BitWidth == 24
}

// BytesForNSamples returns the number of bytes needed to store n samples of
// this type contiguously.
func (d DataType) BytesForNSamples(n int) int {
	totalBits := n * int(d.BitWidth)
	return (totalBits + 7) / 8
}

// ReadSample unpacks the sample at the given index out of raw and promotes it
// to float64, the form component D's statistics pipeline consumes.
func (d DataType) ReadSample(raw []byte, index int) (float64, error) {
	bitOffset := index * int(d.BitWidth)
	if bitOffset+int(d.BitWidth) > len(raw)*8 {
		return 0, fmt.Errorf("sample index %d out of range for buffer of %d bytes", index, len(raw))
	}
	bits := getBitsLE(raw, bitOffset, int(d.BitWidth))
	switch d.Base {
	case BaseFloat:
		switch d.BitWidth {
		case 32:
			return float64(math.Float32frombits(uint32(bits))), nil
		case 64:
			return math.Float64frombits(bits), nil
		}
	case BaseUnsigned:
		return d.dequantize(float64(bits)), nil
	case BaseInt:
		return d.dequantize(float64(signExtend(bits, int(d.BitWidth)))), nil
	}
	return 0, fmt.Errorf("unsupported basetype %v", d.Base)
}

// WriteSample packs value into raw at the given sample index.
func (d DataType) WriteSample(raw []byte, index int, value float64) error {
	bitOffset := index * int(d.BitWidth)
	if bitOffset+int(d.BitWidth) > len(raw)*8 {
		return fmt.Errorf("sample index %d out of range for buffer of %d bytes", index, len(raw))
	}
	var bits uint64
	switch d.Base {
	case BaseFloat:
		switch d.BitWidth {
		case 32:
			bits = uint64(math.Float32bits(float32(value)))
		case 64:
			bits = math.Float64bits(value)
		}
	case BaseUnsigned:
		bits = uint64(d.quantize(value)) & widthMask(int(d.BitWidth))
	case BaseInt:
		bits = uint64(d.quantize(value)) & widthMask(int(d.BitWidth))
	}
	setBitsLE(raw, bitOffset, int(d.BitWidth), bits)
	return nil
}

// ZeroFill writes the sample-skip fill pattern for n samples starting at
// sample index, per component F: bit-pattern zero for every basetype. For
// float types, a reader decodes these zero bits back out as NaN rather than
// 0.0 using the chunk's fill-run table, not by inspecting the bit pattern.
func (d DataType) ZeroFill(raw []byte, index int, n int) {
	bitOffset := index * int(d.BitWidth)
	bitLen := n * int(d.BitWidth)
	for i := 0; i < bitLen; i++ {
		clearBitLE(raw, bitOffset+i)
	}
}

func (d DataType) dequantize(raw float64) float64 {
	if d.Base == BaseFloat || d.Q == 0 {
		return raw
	}
	return raw / float64(uint64(1)<<d.Q)
}

func (d DataType) quantize(value float64) int64 {
	if d.Base == BaseFloat || d.Q == 0 {
		return int64(value)
	}
	return int64(math.Round(value * float64(uint64(1)<<d.Q)))
}

func widthMask(width int) uint64 {
	if width >= 64 {
		return math.MaxUint64
	}
	return (uint64(1) << width) - 1
}

func signExtend(bits uint64, width int) int64 {
	if width >= 64 {
		return int64(bits)
	}
	signBit := uint64(1) << (width - 1)
	if bits&signBit != 0 {
		return int64(bits | ^widthMask(width))
	}
	return int64(bits)
}

// getBitsLE reads a little-endian bitpacked value of the given width starting
// at bitOffset: bit i of the value is bit (bitOffset+i) of raw, numbered from
// the LSB of raw[0].
func getBitsLE(raw []byte, bitOffset int, width int) uint64 {
	var result uint64
	for i := 0; i < width; i++ {
		pos := bitOffset + i
		byteIdx := pos / 8
		bitIdx := uint(pos % 8)
		bit := (raw[byteIdx] >> bitIdx) & 1
		result |= uint64(bit) << uint(i)
	}
	return result
}

func setBitsLE(raw []byte, bitOffset int, width int, value uint64) {
	for i := 0; i < width; i++ {
		pos := bitOffset + i
		byteIdx := pos / 8
		bitIdx := uint(pos % 8)
		if (value>>uint(i))&1 != 0 {
			raw[byteIdx] |= 1 << bitIdx
		} else {
			raw[byteIdx] &^= 1 << bitIdx
		}
	}
}

func clearBitLE(raw []byte, pos int) {
	byteIdx := pos / 8
	bitIdx := uint(pos % 8)
	raw[byteIdx] &^= 1 << bitIdx
}
