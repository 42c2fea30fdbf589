// Package object defines ID, the fixed-width name of a stored block.
//
// An ID is the triple (file id, block number, revision). Its packed form is
// exactly Size bytes: FileID as 8 little-endian bytes, BlockNo as 4, Revision
// as 8, with no padding. Equality and ordering are defined over that packed
// form compared byte by byte as unsigned values, which keeps the order of IDs
// in sorted on-disk indexes identical on every host. Note this is not the
// same as comparing (FileID, BlockNo, Revision) numerically: the first byte
// compared is the least significant byte of FileID.
package object

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"slices"

	"github.com/agenthands/objstore/pkg/core"
	"go.uber.org/zap"
)

const (
	// Size is the length of the packed and wire forms of an ID.
	Size = 8 + 4 + 8

	// MaxRevision is the largest representable revision.
	MaxRevision = ^uint64(0)
)

// ID names one block of one revision of a file. The zero value is the ID
// (0, 0, 0). IDs are plain values and safe to copy and share.
type ID struct {
	FileID   uint64 // "file" identifier
	BlockNo  uint32 // block within that file
	Revision uint64 // normally the creation time; 0 means unset
}

// New returns the ID of block blockNo of fileID with no revision.
func New(fileID uint64, blockNo uint32) ID {
	return ID{FileID: fileID, BlockNo: blockNo}
}

// NewRevision returns an ID with all three fields set.
func NewRevision(fileID uint64, blockNo uint32, rev uint64) ID {
	return ID{FileID: fileID, BlockNo: blockNo, Revision: rev}
}

// FromRecord copies the fields of an interchange record verbatim.
func FromRecord(r core.ObjectRecord) ID {
	return ID{FileID: r.FileID, BlockNo: r.BlockNo, Revision: r.Revision}
}

// Record returns the interchange form of id. FromRecord(id.Record()) == id.
func (id ID) Record() core.ObjectRecord {
	return core.ObjectRecord{FileID: id.FileID, BlockNo: id.BlockNo, Revision: id.Revision}
}

// WithRevision returns a copy of id carrying rev.
func (id ID) WithRevision(rev uint64) ID {
	id.Revision = rev
	return id
}

// Layout returns the packed representation of id.
func (id ID) Layout() [Size]byte {
	var out [Size]byte
	binary.LittleEndian.PutUint64(out[0:8], id.FileID)
	binary.LittleEndian.PutUint32(out[8:12], id.BlockNo)
	binary.LittleEndian.PutUint64(out[12:20], id.Revision)
	return out
}

// FromLayout is the inverse of Layout.
func FromLayout(b [Size]byte) ID {
	return ID{
		FileID:   binary.LittleEndian.Uint64(b[0:8]),
		BlockNo:  binary.LittleEndian.Uint32(b[8:12]),
		Revision: binary.LittleEndian.Uint64(b[12:20]),
	}
}

// Compare returns -1, 0 or +1 depending on whether a sorts before, equal to
// or after b in packed byte order. It does not allocate.
func Compare(a, b ID) int {
	la, lb := a.Layout(), b.Layout()
	return bytes.Compare(la[:], lb[:])
}

// Equal reports whether id and other have identical packed forms.
func (id ID) Equal(other ID) bool { return id == other }

func (id ID) Less(other ID) bool           { return Compare(id, other) < 0 }
func (id ID) LessOrEqual(other ID) bool    { return Compare(id, other) <= 0 }
func (id ID) Greater(other ID) bool        { return Compare(id, other) > 0 }
func (id ID) GreaterOrEqual(other ID) bool { return Compare(id, other) >= 0 }

// Sort orders ids in place by Compare.
func Sort(ids []ID) {
	slices.SortFunc(ids, Compare)
}

// String renders id as <hex file>.<8 digit block>[.<revision>]. The
// revision segment is omitted when it is zero.
func (id ID) String() string {
	if id.Revision == 0 {
		return fmt.Sprintf("%x.%08d", id.FileID, id.BlockNo)
	}
	return fmt.Sprintf("%x.%08d.%d", id.FileID, id.BlockNo, id.Revision)
}

// Field returns a zap field rendering id in its text form.
func Field(key string, id ID) zap.Field {
	return zap.Stringer(key, id)
}
