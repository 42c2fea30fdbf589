package objstore_test

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/agenthands/objstore/internal/testkit"
	"github.com/agenthands/objstore/pkg/cidutil"
	"github.com/agenthands/objstore/pkg/core"
	"github.com/agenthands/objstore/pkg/objstore"
	"github.com/agenthands/objstore/pkg/pack"
	"github.com/stretchr/testify/require"
)

// corruptOneBlock flips a payload byte of the first block envelope found in
// the sealed packs of cfg, leaving the CAR framing intact.
func corruptOneBlock(t *testing.T, cfg objstore.Config) {
	t.Helper()
	ctx := context.Background()

	pm, err := pack.NewManager(cfg.Pack, nil)
	require.NoError(t, err)

	var envelope []byte
	for _, pid := range pm.ListSealedPacks() {
		err := pm.IteratePackBlocks(ctx, pid, func(c core.CID, stored []byte) error {
			if envelope == nil && !cidutil.IsManifest(c) {
				envelope = append([]byte(nil), stored...)
			}
			return nil
		})
		require.NoError(t, err)
	}
	require.NoError(t, pm.Close())
	require.NotNil(t, envelope, "no block envelope in packs")

	entries, err := os.ReadDir(cfg.Pack.Dir)
	require.NoError(t, err)
	for _, entry := range entries {
		if filepath.Ext(entry.Name()) != ".car" {
			continue
		}
		path := filepath.Join(cfg.Pack.Dir, entry.Name())
		b, err := os.ReadFile(path)
		require.NoError(t, err)

		off := bytes.Index(b, envelope)
		if off < 0 {
			continue
		}
		copy(b[off:], testkit.CorruptPackBlock(envelope))
		require.NoError(t, os.WriteFile(path, b, 0644))
		return
	}
	t.Fatal("block envelope not found in pack files")
}

func TestStoreIntegration_CorruptionDetection(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, cfg := createTestStore(t, dir)
	content := testkit.RandomBytes(testkit.RNG(1), 128*1024)

	_, err := s.PutFile(ctx, 1, bytes.NewReader(content), objstore.PutOptions{Revision: 1})
	require.NoError(t, err)

	// Close store to seal packs
	require.NoError(t, s.Close())

	corruptOneBlock(t, cfg)

	s, err = objstore.Open(ctx, cfg)
	require.NoError(t, err)
	defer s.Close()

	rc, _, err := s.OpenFile(ctx, 1, 1)
	require.NoError(t, err)
	defer rc.Close()

	_, err = io.ReadAll(rc)
	require.ErrorIs(t, err, objstore.ErrCorrupt)

	// the intact part of the file is still served block by block
	blocks, err := s.ListBlocks(ctx, 1)
	require.NoError(t, err)
	var bad int
	for _, b := range blocks {
		rc, _, err := s.GetBlock(ctx, b.ID)
		if err != nil {
			require.ErrorIs(t, err, objstore.ErrCorrupt)
			bad++
			continue
		}
		_ = readAll(t, rc)
	}
	require.Equal(t, 1, bad)
}
