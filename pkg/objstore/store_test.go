package objstore_test

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/agenthands/objstore/internal/testkit"
	"github.com/agenthands/objstore/pkg/object"
	"github.com/agenthands/objstore/pkg/objstore"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func testConfig(t testing.TB, dir string) objstore.Config {
	return objstore.Config{
		Dir: dir,
		Chunking: objstore.ChunkingConfig{
			Min: 64,
			Avg: 128,
			Max: 256,
		},
		Pack: objstore.PackConfig{
			Dir:             filepath.Join(dir, "packs"),
			TargetPackBytes: 10 * 1024, // small to trigger rotation
		},
		Catalog: objstore.CatalogConfig{
			Dir: filepath.Join(dir, "catalog"),
		},
		Limits: objstore.LimitsConfig{
			MaxBlocksPerFile: 200000,
		},
		Logger: zaptest.NewLogger(t),
	}
}

// Helper to create a new store with a temporary directory
func createTestStore(t testing.TB, dir string) (objstore.Store, objstore.Config) {
	cfg := testConfig(t, dir)
	s, err := objstore.Open(context.Background(), cfg)
	require.NoError(t, err)
	return s, cfg
}

func readAll(t testing.TB, rc io.ReadCloser) []byte {
	t.Helper()
	defer rc.Close()
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	return b
}

func TestStore_PutGet(t *testing.T) {
	ctx := context.Background()
	s, _ := createTestStore(t, t.TempDir())
	defer s.Close()

	content := testkit.RandomBytes(testkit.RNG(42), 2000)

	info, err := s.PutFile(ctx, 0xabc, bytes.NewReader(content), objstore.PutOptions{Revision: 5})
	require.NoError(t, err)
	require.Equal(t, uint64(0xabc), info.FileID)
	require.Equal(t, uint64(5), info.Revision)
	require.Equal(t, uint64(len(content)), info.Length)
	require.Greater(t, info.Blocks, uint32(1))
	require.NotEmpty(t, info.Manifest.Bytes)

	t.Run("OpenFile", func(t *testing.T) {
		rc, got, err := s.OpenFile(ctx, 0xabc, 5)
		require.NoError(t, err)
		require.Equal(t, info, got)
		require.Equal(t, content, readAll(t, rc))
	})

	t.Run("Stat", func(t *testing.T) {
		got, err := s.Stat(ctx, 0xabc, 0)
		require.NoError(t, err)
		require.Equal(t, info, got)
	})

	t.Run("Blocks", func(t *testing.T) {
		blocks, err := s.ListBlocks(ctx, 0xabc)
		require.NoError(t, err)
		require.Len(t, blocks, int(info.Blocks))

		var joined []byte
		ids := make([]object.ID, 0, len(blocks))
		for no := uint32(0); no < info.Blocks; no++ {
			rc, bi, err := s.GetBlock(ctx, object.NewRevision(0xabc, no, 5))
			require.NoError(t, err)
			require.Equal(t, object.NewRevision(0xabc, no, 5), bi.ID)
			data := readAll(t, rc)
			require.Len(t, data, int(bi.Len))
			joined = append(joined, data...)
			ids = append(ids, bi.ID)
		}
		require.Equal(t, content, joined)

		object.Sort(ids)
		for i := range blocks {
			require.Equal(t, ids[i], blocks[i].ID)
		}
	})

	t.Run("Missing", func(t *testing.T) {
		_, _, err := s.GetBlock(ctx, object.NewRevision(0xabc, 0, 6))
		require.ErrorIs(t, err, objstore.ErrNotFound)
		_, _, err = s.GetBlock(ctx, object.New(0xabd, 0))
		require.ErrorIs(t, err, objstore.ErrNotFound)
		_, err = s.Stat(ctx, 0xabc, 4)
		require.ErrorIs(t, err, objstore.ErrNotFound)
		_, _, err = s.OpenFile(ctx, 1, 0)
		require.ErrorIs(t, err, objstore.ErrNotFound)

		blocks, err := s.ListBlocks(ctx, 1)
		require.NoError(t, err)
		require.Empty(t, blocks)
	})
}

func TestStore_Revisions(t *testing.T) {
	ctx := context.Background()
	s, _ := createTestStore(t, t.TempDir())
	defer s.Close()

	v1 := testkit.RandomBytes(testkit.RNG(1), 2000)
	v2 := testkit.MutateBytes(testkit.RNG(2), v1, 3)

	// 256 sorts before 1 in packed order, so latest must be numeric
	_, err := s.PutFile(ctx, 7, bytes.NewReader(v2), objstore.PutOptions{Revision: 256})
	require.NoError(t, err)
	_, err = s.PutFile(ctx, 7, bytes.NewReader(v1), objstore.PutOptions{Revision: 1})
	require.NoError(t, err)

	rc, info, err := s.OpenFile(ctx, 7, 0)
	require.NoError(t, err)
	require.Equal(t, uint64(256), info.Revision)
	require.Equal(t, v2, readAll(t, rc))

	rc, _, err = s.OpenFile(ctx, 7, 1)
	require.NoError(t, err)
	require.Equal(t, v1, readAll(t, rc))

	rc, bi, err := s.GetBlock(ctx, object.New(7, 0))
	require.NoError(t, err)
	require.Equal(t, uint64(256), bi.ID.Revision)
	_ = readAll(t, rc)

	t.Run("AutoRevision", func(t *testing.T) {
		info, err := s.PutFile(ctx, 8, bytes.NewReader(v1), objstore.PutOptions{})
		require.NoError(t, err)
		require.NotZero(t, info.Revision)

		next, err := s.PutFile(ctx, 8, bytes.NewReader(v2), objstore.PutOptions{})
		require.NoError(t, err)
		require.Greater(t, next.Revision, info.Revision)

		// an explicit revision from the future pushes automatic ones past it
		far := next.Revision + 1<<40
		_, err = s.PutFile(ctx, 9, bytes.NewReader(v1), objstore.PutOptions{Revision: far})
		require.NoError(t, err)
		after, err := s.PutFile(ctx, 9, bytes.NewReader(v2), objstore.PutOptions{})
		require.NoError(t, err)
		require.Equal(t, far+1, after.Revision)
	})

	t.Run("Immutable", func(t *testing.T) {
		again, err := s.PutFile(ctx, 7, bytes.NewReader(v1), objstore.PutOptions{Revision: 1})
		require.NoError(t, err, "same content under the same revision is accepted")
		require.Equal(t, uint64(1), again.Revision)

		_, err = s.PutFile(ctx, 7, bytes.NewReader(v2), objstore.PutOptions{Revision: 1})
		require.ErrorIs(t, err, objstore.ErrInvalidInput)

		_, err = s.PutFile(ctx, 7, bytes.NewReader(v1[:100]), objstore.PutOptions{Revision: 1})
		require.ErrorIs(t, err, objstore.ErrInvalidInput)

		rc, _, err := s.OpenFile(ctx, 7, 1)
		require.NoError(t, err)
		require.Equal(t, v1, readAll(t, rc))
	})
}

func TestStore_EmptyFile(t *testing.T) {
	ctx := context.Background()
	s, _ := createTestStore(t, t.TempDir())
	defer s.Close()

	info, err := s.PutFile(ctx, 1, bytes.NewReader(nil), objstore.PutOptions{Revision: 1})
	require.NoError(t, err)
	require.Zero(t, info.Length)
	require.Zero(t, info.Blocks)

	rc, _, err := s.OpenFile(ctx, 1, 1)
	require.NoError(t, err)
	require.Empty(t, readAll(t, rc))
}

func TestStore_Dedupe(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cfg := testConfig(t, dir)
	reg := prometheus.NewRegistry()
	cfg.Registerer = reg
	cfg.Cache.Blocks = 16

	s, err := objstore.Open(ctx, cfg)
	require.NoError(t, err)
	defer s.Close()

	content := testkit.RandomBytes(testkit.RNG(3), 4000)
	first, err := s.PutFile(ctx, 1, bytes.NewReader(content), objstore.PutOptions{Revision: 1})
	require.NoError(t, err)
	second, err := s.PutFile(ctx, 1, bytes.NewReader(content), objstore.PutOptions{Revision: 1})
	require.NoError(t, err)
	require.Equal(t, first, second)

	n, err := testutil.GatherAndCount(reg, "objstore_store_blocks_deduplicated_total")
	require.NoError(t, err)
	require.Equal(t, 1, n)

	families, err := reg.Gather()
	require.NoError(t, err)
	values := map[string]float64{}
	for _, f := range families {
		values[f.GetName()] = f.GetMetric()[0].GetCounter().GetValue()
	}
	require.Equal(t, float64(first.Blocks), values["objstore_store_blocks_written_total"])
	require.Equal(t, float64(first.Blocks), values["objstore_store_blocks_deduplicated_total"])
	require.Equal(t, float64(len(content)), values["objstore_store_bytes_written_total"])
	require.Equal(t, 2.0, values["objstore_store_files_written_total"])

	// second read of a block is served from the cache
	for i := 0; i < 2; i++ {
		rc, _, err := s.GetBlock(ctx, object.NewRevision(1, 0, 1))
		require.NoError(t, err)
		_ = readAll(t, rc)
	}
	families, err = reg.Gather()
	require.NoError(t, err)
	for _, f := range families {
		values[f.GetName()] = f.GetMetric()[0].GetCounter().GetValue()
	}
	require.Equal(t, 1.0, values["objstore_store_cache_hits_total"])
	require.Equal(t, 1.0, values["objstore_store_cache_misses_total"])
	require.Equal(t, 1.0, values["objstore_store_blocks_read_total"])
}

func TestStore_Reopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	content := testkit.RandomBytes(testkit.RNG(4), 64*1024)

	s, cfg := createTestStore(t, dir)
	_, err := s.PutFile(ctx, 2, bytes.NewReader(content), objstore.PutOptions{Revision: 10})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = objstore.Open(ctx, cfg)
	require.NoError(t, err)
	defer s.Close()

	rc, _, err := s.OpenFile(ctx, 2, 10)
	require.NoError(t, err)
	require.Equal(t, content, readAll(t, rc))
}

func TestStore_Backends(t *testing.T) {
	for _, backend := range []string{"pebble", "bolt"} {
		for _, tr := range []string{"none", "zstd"} {
			t.Run(backend+"/"+tr, func(t *testing.T) {
				ctx := context.Background()
				cfg := testConfig(t, t.TempDir())
				cfg.Catalog.Backend = backend
				cfg.Transform.Name = tr

				s, err := objstore.Open(ctx, cfg)
				require.NoError(t, err)
				defer s.Close()

				content := testkit.CompressibleBytes(testkit.RNG(5), 32*1024)
				_, err = s.PutFile(ctx, 3, bytes.NewReader(content), objstore.PutOptions{Revision: 1})
				require.NoError(t, err)

				rc, _, err := s.OpenFile(ctx, 3, 0)
				require.NoError(t, err)
				require.Equal(t, content, readAll(t, rc))
			})
		}
	}
}

func TestStore_Locate(t *testing.T) {
	ctx := context.Background()

	s, _ := createTestStore(t, t.TempDir())
	_, err := s.Locate(object.New(1, 1))
	require.ErrorIs(t, err, objstore.ErrInvalidInput)
	require.NoError(t, s.Close())

	cfg := testConfig(t, t.TempDir())
	cfg.Placement = objstore.PlacementConfig{Nodes: []string{"a:1", "b:1", "c:1"}, Replicas: 2}
	s, err = objstore.Open(ctx, cfg)
	require.NoError(t, err)
	defer s.Close()

	id := object.NewRevision(1, 2, 3)
	nodes, err := s.Locate(id)
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	require.NotEqual(t, nodes[0].Addr, nodes[1].Addr)

	again, err := s.Locate(id)
	require.NoError(t, err)
	require.Equal(t, nodes, again)
}
