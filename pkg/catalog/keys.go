package catalog

import (
	"fmt"

	"github.com/agenthands/objstore/pkg/core"
	"github.com/agenthands/objstore/pkg/encoding"
	"github.com/agenthands/objstore/pkg/object"
)

var (
	PrefixLocation = []byte("loc:")
	PrefixManifest = []byte("mf:")
)

func locationKey(prefix []byte, id object.ID) []byte {
	w := encoding.NewBuffer(make([]byte, 0, len(prefix)+object.Size))
	w.PutBytes(prefix)
	id.Encode(w)
	return w.Bytes()
}

func parseLocationKey(prefix, key []byte) (object.ID, error) {
	var id object.ID
	if err := id.UnmarshalBinary(key[len(prefix):]); err != nil {
		return id, fmt.Errorf("%w: location key %x: %v", core.ErrCorrupt, key, err)
	}
	return id, nil
}

// fileKeyPrefix returns the key prefix shared by every entry of fileID and,
// when withBlock is set, by every revision of one block.
func fileKeyPrefix(prefix []byte, fileID uint64, blockNo uint32, withBlock bool) []byte {
	w := encoding.NewBuffer(make([]byte, 0, len(prefix)+12))
	w.PutBytes(prefix)
	w.PutUint64(fileID)
	if withBlock {
		w.PutUint32(blockNo)
	}
	return w.Bytes()
}

func manifestKey(prefix []byte, fileID, rev uint64) []byte {
	w := encoding.NewBuffer(make([]byte, 0, len(prefix)+16))
	w.PutBytes(prefix)
	w.PutUint64(fileID)
	w.PutUint64(rev)
	return w.Bytes()
}

func parseManifestKey(prefix, key []byte) (fileID, rev uint64, err error) {
	r := encoding.NewCursor(key[len(prefix):])
	if fileID, err = r.Uint64(); err != nil {
		return 0, 0, fmt.Errorf("%w: manifest key %x: %v", core.ErrCorrupt, key, err)
	}
	if rev, err = r.Uint64(); err != nil {
		return 0, 0, fmt.Errorf("%w: manifest key %x: %v", core.ErrCorrupt, key, err)
	}
	return fileID, rev, nil
}

func encodeLocation(loc Location) []byte {
	w := encoding.NewBuffer(make([]byte, 0, 12+len(loc.CID.Bytes)))
	w.PutUint64(loc.PackID)
	w.PutUint32(loc.Len)
	w.PutBytes(loc.CID.Bytes)
	return w.Bytes()
}

// decodeLocation copies val; callers may pass store-owned memory.
func decodeLocation(val []byte) (Location, error) {
	r := encoding.NewCursor(val)
	packID, err := r.Uint64()
	if err != nil {
		return Location{}, fmt.Errorf("%w: location value: %v", core.ErrCorrupt, err)
	}
	n, err := r.Uint32()
	if err != nil {
		return Location{}, fmt.Errorf("%w: location value: %v", core.ErrCorrupt, err)
	}
	if r.Remaining() == 0 {
		return Location{}, fmt.Errorf("%w: location value without CID", core.ErrCorrupt)
	}
	c := make([]byte, r.Remaining())
	copy(c, r.Rest())
	return Location{PackID: packID, Len: n, CID: core.CID{Bytes: c}}, nil
}

func incrementByte(b []byte) []byte {
	res := make([]byte, len(b))
	copy(res, b)
	for i := len(res) - 1; i >= 0; i-- {
		res[i]++
		if res[i] != 0 {
			return res
		}
	}
	return nil
}
