// Package testkit holds deterministic data generators, fault-injecting
// readers and pack inspection helpers shared by the package tests.
package testkit

import (
	"math/rand"
	"time"

	"github.com/agenthands/objstore/pkg/object"
)

// RNG returns a deterministic source for seed, or a time-seeded one for 0.
func RNG(seed int64) *rand.Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

func RandomBytes(r *rand.Rand, n int) []byte {
	b := make([]byte, n)
	_, _ = r.Read(b)
	return b
}

// RandomID returns an ID with every field drawn from r. Small values are
// mixed in so that neighbouring IDs collide on some fields.
func RandomID(r *rand.Rand) object.ID {
	id := object.NewRevision(r.Uint64(), r.Uint32(), r.Uint64())
	switch r.Intn(4) {
	case 0:
		id.FileID %= 8
	case 1:
		id.BlockNo %= 8
	case 2:
		id.Revision = 0
	}
	return id
}

// CompressibleBytes returns n bytes of repeated text with one random byte
// per KiB.
func CompressibleBytes(r *rand.Rand, n int) []byte {
	const line = "block payload that compresses well, "
	b := make([]byte, n)
	for i := range b {
		b[i] = line[i%len(line)]
	}
	for i := 0; i < n/1024; i++ {
		b[r.Intn(n)] = byte(r.Intn(256))
	}
	return b
}

// MutateBytes returns a copy of base with the given number of single byte
// inserts, deletes or overwrites at random offsets.
func MutateBytes(r *rand.Rand, base []byte, mutations int) []byte {
	out := append([]byte(nil), base...)
	for i := 0; i < mutations && len(out) > 0; i++ {
		at := r.Intn(len(out))
		switch r.Intn(3) {
		case 0:
			out = append(out[:at], append([]byte{byte(r.Intn(256))}, out[at:]...)...)
		case 1:
			out = append(out[:at], out[at+1:]...)
		default:
			out[at] = byte(r.Intn(256))
		}
	}
	return out
}
