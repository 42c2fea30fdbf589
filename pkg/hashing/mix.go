// Package hashing holds the integer mixers used to spread fixed-width keys
// over hash buckets. The functions are pure: the same input yields the same
// output in every process on every platform.
package hashing

// Mix32 is Robert Jenkins' 32-bit integer hash, widened to uint64.
func Mix32(a uint32) uint64 {
	a = (a + 0x7ed55d16) + (a << 12)
	a = (a ^ 0xc761c23c) ^ (a >> 19)
	a = (a + 0x165667b1) + (a << 5)
	a = (a + 0xd3a2646c) ^ (a << 9)
	a = (a + 0xfd7046c5) + (a << 3)
	a = (a ^ 0xb55a4f09) ^ (a >> 16)
	return uint64(a)
}

// Mix64 is the 64-bit variant of the Jenkins/Wang integer hash.
func Mix64(k uint64) uint64 {
	k = ^k + (k << 21)
	k ^= k >> 24
	k = (k + (k << 3)) + (k << 8) // k * 265
	k ^= k >> 14
	k = (k + (k << 2)) + (k << 4) // k * 21
	k ^= k >> 28
	k += k << 31
	return k
}
