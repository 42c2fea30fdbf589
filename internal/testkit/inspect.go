package testkit

import (
	"context"

	"github.com/agenthands/objstore/pkg/core"
	"github.com/agenthands/objstore/pkg/object"
	"github.com/agenthands/objstore/pkg/pack"
	"github.com/agenthands/objstore/pkg/transform"
)

// PackedIDs returns the IDs of every block stored in sealed packs, read from
// the block envelopes, in pack order.
func PackedIDs(ctx context.Context, pm pack.Manager) ([]object.ID, error) {
	var ids []object.ID
	for _, pid := range pm.ListSealedPacks() {
		err := pm.IteratePackBlocks(ctx, pid, func(_ core.CID, stored []byte) error {
			id, ok := transform.PeekID(stored)
			if ok {
				ids = append(ids, id)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return ids, nil
}

// CorruptPackBlock takes a raw pack block payload and flips a byte to simulate corruption.
// The last byte is flipped so the envelope header stays readable.
func CorruptPackBlock(payload []byte) []byte {
	out := make([]byte, len(payload))
	copy(out, payload)
	if len(out) > 0 {
		out[len(out)-1] ^= 0xFF
	}
	return out
}
