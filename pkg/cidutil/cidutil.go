// Package cidutil derives content identifiers for stored block envelopes and
// file manifests, and checks stored bytes against them on read.
package cidutil

import (
	"bytes"
	"fmt"

	"github.com/agenthands/objstore/pkg/core"
	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// Builder defines the interface for creating and verifying CIDs.
type Builder interface {
	// BlockCID identifies a stored block envelope. The envelope carries the
	// object id, so two IDs never share a CID even for equal payloads.
	BlockCID(stored []byte) (core.CID, error)
	ManifestCID(dagCbor []byte) (core.CID, error)
	Verify(c core.CID, data []byte) error
}

type builder struct{}

// NewBuilder returns a new CID builder implementation.
func NewBuilder() Builder {
	return &builder{}
}

func (b *builder) BlockCID(stored []byte) (core.CID, error) {
	return sum(cid.Raw, stored)
}

func (b *builder) ManifestCID(dagCbor []byte) (core.CID, error) {
	return sum(cid.DagCBOR, dagCbor)
}

func sum(codec uint64, data []byte) (core.CID, error) {
	hash, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return core.CID{}, fmt.Errorf("failed to compute multihash: %w", err)
	}
	return core.CID{Bytes: cid.NewCidV1(codec, hash).Bytes()}, nil
}

func (b *builder) Verify(c core.CID, data []byte) error {
	id, err := cid.Cast(c.Bytes)
	if err != nil {
		return fmt.Errorf("%w: invalid CID bytes: %v", core.ErrCorrupt, err)
	}

	prefix := id.Prefix()
	hash, err := multihash.Sum(data, prefix.MhType, prefix.MhLength)
	if err != nil {
		return fmt.Errorf("failed to compute multihash for verification: %w", err)
	}

	if !bytes.Equal(id.Hash(), hash) {
		return fmt.Errorf("%w: CID mismatch for %s", core.ErrCorrupt, id)
	}

	return nil
}

// String renders c in its canonical text form, or as hex when the bytes do
// not parse as a CID.
func String(c core.CID) string {
	id, err := cid.Cast(c.Bytes)
	if err != nil {
		return fmt.Sprintf("%x", c.Bytes)
	}
	return id.String()
}

// IsManifest reports whether c carries the manifest codec.
func IsManifest(c core.CID) bool {
	id, err := cid.Cast(c.Bytes)
	return err == nil && id.Type() == cid.DagCBOR
}
