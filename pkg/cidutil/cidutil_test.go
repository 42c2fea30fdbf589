package cidutil

import (
	"testing"

	"github.com/agenthands/objstore/internal/testkit"
	"github.com/agenthands/objstore/pkg/core"
	"github.com/ipfs/go-cid"
	"github.com/stretchr/testify/require"
)

func TestCIDBuilder(t *testing.T) {
	builder := NewBuilder()

	t.Run("BlockCID", func(t *testing.T) {
		data := []byte("hello world")
		c, err := builder.BlockCID(data)
		require.NoError(t, err)
		require.NotEmpty(t, c.Bytes)

		parsed, err := cid.Cast(c.Bytes)
		require.NoError(t, err)
		require.EqualValues(t, cid.Raw, parsed.Prefix().Codec)

		require.NoError(t, builder.Verify(c, data))
		require.ErrorIs(t, builder.Verify(c, []byte("wrong data")), core.ErrCorrupt)
	})

	t.Run("ManifestCID", func(t *testing.T) {
		data := []byte{0xa1, 0x61, 0x61, 0x01} // {"a": 1}
		c, err := builder.ManifestCID(data)
		require.NoError(t, err)

		parsed, err := cid.Cast(c.Bytes)
		require.NoError(t, err)
		require.EqualValues(t, cid.DagCBOR, parsed.Prefix().Codec)
		require.NoError(t, builder.Verify(c, data))
		require.True(t, IsManifest(c))

		b, err := builder.BlockCID(data)
		require.NoError(t, err)
		require.False(t, IsManifest(b))
		require.False(t, IsManifest(core.CID{Bytes: []byte("junk")}))
	})

	t.Run("Deterministic", func(t *testing.T) {
		data := testkit.RandomBytes(testkit.RNG(1), 4096)
		c1, err := builder.BlockCID(data)
		require.NoError(t, err)
		c2, err := builder.BlockCID(data)
		require.NoError(t, err)
		require.Equal(t, c1, c2)

		m, err := builder.ManifestCID(data)
		require.NoError(t, err)
		require.NotEqual(t, c1, m, "codec is part of the CID")
	})

	t.Run("InvalidCID", func(t *testing.T) {
		err := builder.Verify(core.CID{Bytes: []byte("invalid")}, []byte("data"))
		require.ErrorIs(t, err, core.ErrCorrupt)
	})

	t.Run("UnsupportedMultihash", func(t *testing.T) {
		// version 1, raw codec, multihash type 0xffff (varint ff ff 03), length 4
		raw := []byte{0x01, 0x55, 0xff, 0xff, 0x03, 0x04, 'a', 'b', 'c', 'd'}
		err := builder.Verify(core.CID{Bytes: raw}, []byte("test"))
		require.Error(t, err)
		require.Contains(t, err.Error(), "failed to compute multihash for verification")
	})

	t.Run("String", func(t *testing.T) {
		c, err := builder.BlockCID([]byte("x"))
		require.NoError(t, err)
		require.Contains(t, String(c), "bafk")
		require.Equal(t, "6162", String(core.CID{Bytes: []byte("ab")}))
	})
}
