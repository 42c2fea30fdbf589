package object

import (
	"fmt"

	"github.com/agenthands/objstore/pkg/core"
	"github.com/agenthands/objstore/pkg/encoding"
	"github.com/mr-tron/base58"
)

// Encode appends the Size-byte wire form of id to w: FileID, BlockNo and
// Revision in that order, with no prefix or version tag.
func (id ID) Encode(w *encoding.Buffer) {
	w.PutUint64(id.FileID)
	w.PutUint32(id.BlockNo)
	w.PutUint64(id.Revision)
}

// Decode reads the next Size bytes of r into id. Errors from r are returned
// unchanged; on error id is left untouched.
func (id *ID) Decode(r *encoding.Cursor) error {
	fileID, err := r.Uint64()
	if err != nil {
		return err
	}
	blockNo, err := r.Uint32()
	if err != nil {
		return err
	}
	rev, err := r.Uint64()
	if err != nil {
		return err
	}
	id.FileID, id.BlockNo, id.Revision = fileID, blockNo, rev
	return nil
}

// AppendBinary appends the wire form of id to b.
func (id ID) AppendBinary(b []byte) ([]byte, error) {
	w := encoding.NewBuffer(b)
	id.Encode(w)
	return w.Bytes(), nil
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (id ID) MarshalBinary() ([]byte, error) {
	return id.AppendBinary(make([]byte, 0, Size))
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler. data must be
// exactly Size bytes long.
func (id *ID) UnmarshalBinary(data []byte) error {
	r := encoding.NewCursor(data)
	var v ID
	if err := v.Decode(r); err != nil {
		return err
	}
	if r.Remaining() != 0 {
		return fmt.Errorf("%w: %d trailing bytes after object id", core.ErrInvalidInput, r.Remaining())
	}
	*id = v
	return nil
}

// Base58 returns the wire form of id in base58. Unlike String, the result
// can be parsed back with ParseBase58.
func (id ID) Base58() string {
	l := id.Layout()
	return base58.Encode(l[:])
}

// ParseBase58 decodes an ID produced by ID.Base58.
func ParseBase58(s string) (ID, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return ID{}, fmt.Errorf("%w: decode base58: %v", core.ErrInvalidInput, err)
	}
	var id ID
	if err := id.UnmarshalBinary(raw); err != nil {
		return ID{}, err
	}
	return id, nil
}
