// Package manifest encodes the per-revision description of a stored file.
package manifest

import (
	"fmt"

	"github.com/agenthands/objstore/pkg/core"
	"github.com/fxamacker/cbor/v2"
)

// Version is the only manifest version understood by this package.
const Version = 1

// BlockRef points at one stored block of a file revision.
type BlockRef struct {
	ID  core.ObjectRecord `cbor:"id"`
	CID core.CID          `cbor:"cid"`
	Len uint32            `cbor:"len"` // plaintext length
}

// FileManifest lists the blocks of one file revision in block order.
type FileManifest struct {
	Version  uint16     `cbor:"version"`
	FileID   uint64     `cbor:"file_id"`
	Revision uint64     `cbor:"revision"`
	Length   uint64     `cbor:"length"`
	Blocks   []BlockRef `cbor:"blocks"`
}

// Codec defines the interface for manifest encoding/decoding and validation.
type Codec interface {
	Encode(m *FileManifest) ([]byte, error)
	Decode(b []byte) (*FileManifest, error)
}

type codec struct {
	limits  core.LimitsConfig
	encMode cbor.EncMode
	decMode cbor.DecMode
}

// NewCodec returns a new Codec implementation.
func NewCodec(limits core.LimitsConfig) Codec {
	// Use canonical CBOR encoding (Core Deterministic Encoding Requirements)
	em, _ := cbor.CanonicalEncOptions().EncMode()
	dm, _ := cbor.DecOptions{DupMapKey: cbor.DupMapKeyEnforcedAPF}.DecMode()
	return &codec{
		limits:  limits,
		encMode: em,
		decMode: dm,
	}
}

func (c *codec) Encode(m *FileManifest) ([]byte, error) {
	if err := c.validate(m); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidInput, err)
	}

	return c.encMode.Marshal(m)
}

func (c *codec) Decode(b []byte) (*FileManifest, error) {
	var m FileManifest
	if err := c.decMode.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal manifest: %v", core.ErrCorrupt, err)
	}

	if err := c.validate(&m); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrCorrupt, err)
	}

	return &m, nil
}

func (c *codec) validate(m *FileManifest) error {
	if m.Version != Version {
		return fmt.Errorf("unsupported manifest version %d", m.Version)
	}
	if m.Revision == 0 {
		return fmt.Errorf("file %d: revision 0 is reserved", m.FileID)
	}

	if limit := c.limits.MaxBlocksPerFile; limit > 0 && uint64(len(m.Blocks)) > uint64(limit) {
		return fmt.Errorf("too many blocks: %d > %d", len(m.Blocks), limit)
	}
	if limit := c.limits.MaxFileBytes; limit > 0 && m.Length > limit {
		return fmt.Errorf("file too large: %d > %d", m.Length, limit)
	}

	var sum uint64
	for i, ref := range m.Blocks {
		if ref.ID.FileID != m.FileID || ref.ID.Revision != m.Revision {
			return fmt.Errorf("block %d belongs to file %d revision %d", i, ref.ID.FileID, ref.ID.Revision)
		}
		if uint64(ref.ID.BlockNo) != uint64(i) {
			return fmt.Errorf("block %d numbered %d", i, ref.ID.BlockNo)
		}
		if len(ref.CID.Bytes) == 0 {
			return fmt.Errorf("block %d has empty CID", i)
		}
		if ref.Len == 0 {
			return fmt.Errorf("block %d is empty", i)
		}
		sum += uint64(ref.Len)
	}

	if sum != m.Length {
		return fmt.Errorf("length mismatch: manifest says %d, blocks sum to %d", m.Length, sum)
	}

	return nil
}
