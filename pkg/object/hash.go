package object

import "github.com/agenthands/objstore/pkg/hashing"

// Hash returns a deterministic bucket key for id. Equal IDs hash equally,
// and the value is stable across processes. Placement ranks nodes against
// this value.
func (id ID) Hash() uint64 {
	return hashing.Mix64(id.FileID) ^ hashing.Mix32(id.BlockNo) ^ hashing.Mix64(id.Revision)
}
