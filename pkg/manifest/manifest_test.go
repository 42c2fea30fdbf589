package manifest

import (
	"testing"

	"github.com/agenthands/objstore/pkg/core"
	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/require"
)

func testManifest(fileID, rev uint64, lens ...uint32) *FileManifest {
	m := &FileManifest{Version: Version, FileID: fileID, Revision: rev}
	for i, n := range lens {
		m.Blocks = append(m.Blocks, BlockRef{
			ID:  core.ObjectRecord{FileID: fileID, BlockNo: uint32(i), Revision: rev},
			CID: core.CID{Bytes: []byte{0x01, 0x55, byte(i)}},
			Len: n,
		})
		m.Length += uint64(n)
	}
	return m
}

func TestManifestCodec(t *testing.T) {
	codec := NewCodec(core.LimitsConfig{MaxBlocksPerFile: 4, MaxFileBytes: 1 << 20})

	t.Run("RoundTrip", func(t *testing.T) {
		m := testManifest(42, 7, 1000, 234)

		encoded, err := codec.Encode(m)
		require.NoError(t, err)

		decoded, err := codec.Decode(encoded)
		require.NoError(t, err)
		require.Equal(t, m, decoded)
	})

	t.Run("Deterministic", func(t *testing.T) {
		a, err := codec.Encode(testManifest(1, 1, 10, 20))
		require.NoError(t, err)
		b, err := codec.Encode(testManifest(1, 1, 10, 20))
		require.NoError(t, err)
		require.Equal(t, a, b)
	})

	t.Run("EmptyFile", func(t *testing.T) {
		encoded, err := codec.Encode(testManifest(1, 1))
		require.NoError(t, err)
		decoded, err := codec.Decode(encoded)
		require.NoError(t, err)
		require.Zero(t, decoded.Length)
		require.Empty(t, decoded.Blocks)
	})

	t.Run("IDRecordIsArray", func(t *testing.T) {
		raw, err := cbor.Marshal(core.ObjectRecord{FileID: 1, BlockNo: 2, Revision: 3})
		require.NoError(t, err)
		require.Equal(t, []byte{0x83, 0x01, 0x02, 0x03}, raw)
	})

	invalid := []struct {
		name   string
		mutate func(m *FileManifest)
	}{
		{"Version", func(m *FileManifest) { m.Version = 2 }},
		{"ZeroRevision", func(m *FileManifest) {
			m.Revision = 0
			for i := range m.Blocks {
				m.Blocks[i].ID.Revision = 0
			}
		}},
		{"LengthMismatch", func(m *FileManifest) { m.Length++ }},
		{"ForeignFile", func(m *FileManifest) { m.Blocks[1].ID.FileID++ }},
		{"ForeignRevision", func(m *FileManifest) { m.Blocks[0].ID.Revision++ }},
		{"Gap", func(m *FileManifest) { m.Blocks[1].ID.BlockNo = 2 }},
		{"EmptyCID", func(m *FileManifest) { m.Blocks[0].CID = core.CID{} }},
		{"EmptyBlock", func(m *FileManifest) {
			m.Length -= uint64(m.Blocks[1].Len)
			m.Blocks[1].Len = 0
		}},
		{"TooManyBlocks", func(m *FileManifest) { *m = *testManifest(m.FileID, m.Revision, 1, 1, 1, 1, 1) }},
		{"TooLarge", func(m *FileManifest) { *m = *testManifest(m.FileID, m.Revision, 1<<20, 1) }},
	}

	for _, tc := range invalid {
		t.Run("Encode_"+tc.name, func(t *testing.T) {
			m := testManifest(3, 9, 100, 200)
			tc.mutate(m)
			_, err := codec.Encode(m)
			require.ErrorIs(t, err, core.ErrInvalidInput)
		})

		t.Run("Decode_"+tc.name, func(t *testing.T) {
			m := testManifest(3, 9, 100, 200)
			tc.mutate(m)
			raw, err := cbor.Marshal(m)
			require.NoError(t, err)
			_, err = codec.Decode(raw)
			require.ErrorIs(t, err, core.ErrCorrupt)
		})
	}

	t.Run("Garbage", func(t *testing.T) {
		_, err := codec.Decode([]byte("not cbor"))
		require.ErrorIs(t, err, core.ErrCorrupt)
	})
}

func TestManifestCodec_NoLimits(t *testing.T) {
	codec := NewCodec(core.LimitsConfig{})
	lens := make([]uint32, 100)
	for i := range lens {
		lens[i] = 1 << 16
	}
	_, err := codec.Encode(testManifest(1, 1, lens...))
	require.NoError(t, err)
}
