// Package hashtable implements spec §4.3: the 64-bit mixing primitive and
// its batched variant, an open-addressing table over a (keys, values)
// value pair, a lock-free chained bucket table for the symbol interner,
// and the packed (salt, group_id) cell used by the fused hash-aggregate.
package hashtable

import "math/bits"

// S is the fixed odd multiplier spec §4.3's mix step uses. It is the same
// constant murmur/xxhash-family mixers use for its avalanche properties.
const S = 0x9E3779B97F4A7C15

// Mix implements spec §4.3's two-round mixing step exactly:
//
//	a = (h ^ k) * S; a ^= a >> 47
//	b = (rotl(k,31) ^ a) * S; b ^= b >> 47; b *= S
func Mix(h, k uint64) uint64 {
	a := (h ^ k) * S
	a ^= a >> 47
	b := (bits.RotateLeft64(k, 31) ^ a) * S
	b ^= b >> 47
	b *= S
	return b
}

// MixBatch hashes n keys against a running hash h, writing into out. It is
// unrolled 4-wide (the "vectorised 4-wide variant" spec §4.3 calls for;
// Go has no portable fixed-width SIMD intrinsic outside golang.org/x/sys'
// per-arch assembly, so RayforceDB takes the spec's explicit fallback:
// "scalar unroll") and must produce results bit-identical to calling Mix
// element-by-element.
func MixBatch(h uint64, keys []uint64, out []uint64) {
	n := len(keys)
	i := 0
	for ; i+4 <= n; i += 4 {
		out[i] = Mix(h, keys[i])
		out[i+1] = Mix(h, keys[i+1])
		out[i+2] = Mix(h, keys[i+2])
		out[i+3] = Mix(h, keys[i+3])
	}
	for ; i < n; i++ {
		out[i] = Mix(h, keys[i])
	}
}

// MixComposite folds multiple key-column hashes for one row into a single
// hash, used by pkg/relop's join key hashing. pkg/query's composite
// (multi-key) aggregate path chains Mix directly instead.
func MixComposite(parts ...uint64) uint64 {
	h := uint64(0)
	for _, p := range parts {
		h = Mix(h, p)
	}
	return h
}
