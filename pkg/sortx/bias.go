package sortx

import "math"

// Bias conversions per spec §4.4: "XOR the top bit so comparisons on the
// unsigned view preserve signed order" for signed integers, and the
// NaN-to-zero / sign-flip / bit-invert scheme for floats. Each returns a
// uint64 so every element width shares one radix-pass implementation;
// unused high bits are always zero, so they never affect ordering.

func biasU8(v byte) uint64 { return uint64(v) }

func biasI16(v int16) uint64 { return uint64(uint16(v) ^ 0x8000) }

func biasI32(v int32) uint64 { return uint64(uint32(v) ^ 0x8000_0000) }

func biasI64(v int64) uint64 { return uint64(v) ^ 0x8000_0000_0000_0000 }

// biasF64 maps a NaN (the null sentinel) to 0 so it sorts first ascending
// and last descending, matching every integer null sentinel's placement
// at the unsigned-key minimum.
func biasF64(v float64) uint64 {
	if math.IsNaN(v) {
		return 0
	}
	bits := math.Float64bits(v)
	if bits&(1<<63) != 0 {
		return ^bits
	}
	return bits | (1 << 63)
}
