// Package objstore stores files as numbered blocks. Every block is named by
// an object.ID (file, block number, revision), wrapped in a self-describing
// envelope and appended to CARv2 packs; an embedded catalog maps IDs and
// file revisions to pack locations.
package objstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"github.com/agenthands/objstore/pkg/cache"
	"github.com/agenthands/objstore/pkg/catalog"
	"github.com/agenthands/objstore/pkg/chunker"
	"github.com/agenthands/objstore/pkg/cidutil"
	"github.com/agenthands/objstore/pkg/manifest"
	"github.com/agenthands/objstore/pkg/metrics"
	"github.com/agenthands/objstore/pkg/object"
	"github.com/agenthands/objstore/pkg/pack"
	"github.com/agenthands/objstore/pkg/placement"
	"github.com/agenthands/objstore/pkg/transform"
	"go.uber.org/zap"
)

type store struct {
	cfg Config
	log *zap.Logger

	chunker   chunker.Chunker
	cidHub    cidutil.Builder
	manifests manifest.Codec
	packs     pack.Manager
	catalog   catalog.Catalog
	transform transform.Transform

	cache   *cache.Blocks
	placer  *placement.Placer
	metrics *metrics.Store

	putMu sync.Mutex // single writer

	// mu guards closed; operations hold it shared.
	mu     sync.RWMutex
	closed bool
}

// Open initializes and opens a store rooted at cfg.Dir.
func Open(ctx context.Context, cfg Config) (Store, error) {
	cfg = withDefaults(cfg)

	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	tr, err := transform.New(cfg.Transform)
	if err != nil {
		return nil, err
	}

	blocks, err := cache.New(cfg.Cache.Blocks)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	var placer *placement.Placer
	if len(cfg.Placement.Nodes) > 0 {
		if placer, err = placement.New(cfg.Placement); err != nil {
			return nil, err
		}
	}

	m, err := metrics.New(cfg.Registerer)
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	cat, err := catalog.Open(cfg.Catalog)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}

	pm, err := pack.NewManager(cfg.Pack, log.Named("pack"))
	if err != nil {
		_ = cat.Close()
		return nil, fmt.Errorf("failed to open pack manager: %w", err)
	}

	s := &store{
		cfg: cfg,
		log: log,
		chunker: chunker.NewChunker(chunker.Config{
			Min:       cfg.Chunking.Min,
			Avg:       cfg.Chunking.Avg,
			Max:       cfg.Chunking.Max,
			MaxBlocks: cfg.Limits.MaxBlocksPerFile,
		}),
		cidHub:    cidutil.NewBuilder(),
		manifests: manifest.NewCodec(cfg.Limits),
		packs:     pm,
		catalog:   cat,
		transform: tr,
		cache:     blocks,
		placer:    placer,
		metrics:   m,
	}

	log.Info("store opened",
		zap.String("dir", cfg.Dir),
		zap.String("catalog", cfg.Catalog.Backend),
		zap.String("transform", tr.Name()),
		zap.Uint64("pack", pm.CurrentPackID()))

	return s, nil
}

// acquire takes the shared lifecycle lock. The returned release must be
// called when the operation is done.
func (s *store) acquire() (func(), error) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, ErrClosed
	}
	return s.mu.RUnlock, nil
}

func (s *store) Close() error {
	s.putMu.Lock()
	defer s.putMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.cache.Purge()

	if err := errors.Join(s.catalog.Close(), s.packs.Close()); err != nil {
		return err
	}
	s.log.Info("store closed", zap.String("dir", s.cfg.Dir))
	return nil
}

func (s *store) PutFile(ctx context.Context, fileID uint64, r io.Reader, opts PutOptions) (FileInfo, error) {
	if r == nil {
		return FileInfo{}, fmt.Errorf("%w: nil reader", ErrInvalidInput)
	}

	s.putMu.Lock()
	defer s.putMu.Unlock()

	release, err := s.acquire()
	if err != nil {
		return FileInfo{}, err
	}
	defer release()

	rev, err := s.pickRevision(ctx, fileID, opts.Revision)
	if err != nil {
		return FileInfo{}, err
	}

	// stops the chunker if we bail out early
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	blocks, errs := s.chunker.Split(ctx, r)

	batch := s.catalog.NewBatch()
	defer batch.Close()

	var (
		refs  []manifest.BlockRef
		total uint64
	)

	// Drain the blocks channel before looking at errs: the chunker closes
	// both at once and a select could drop the last block.
	for b := range blocks {
		if err := ctx.Err(); err != nil {
			s.chunker.ReturnBuffer(b.Buf)
			return FileInfo{}, err
		}

		ref, err := s.putBlock(ctx, batch, object.NewRevision(fileID, b.No, rev), b.Data())
		s.chunker.ReturnBuffer(b.Buf)
		if err != nil {
			return FileInfo{}, err
		}

		total += uint64(ref.Len)
		if limit := s.cfg.Limits.MaxFileBytes; limit > 0 && total > limit {
			return FileInfo{}, fmt.Errorf("%w: file %d exceeds %d bytes", ErrTooLarge, fileID, limit)
		}
		refs = append(refs, ref)
	}

	if err, ok := <-errs; ok && err != nil {
		return FileInfo{}, err
	}

	m := &manifest.FileManifest{
		Version:  manifest.Version,
		FileID:   fileID,
		Revision: rev,
		Length:   total,
		Blocks:   refs,
	}

	mBytes, err := s.manifests.Encode(m)
	if err != nil {
		return FileInfo{}, err
	}

	mCID, err := s.cidHub.ManifestCID(mBytes)
	if err != nil {
		return FileInfo{}, err
	}

	_, prev, exists, err := s.catalog.GetManifest(ctx, fileID, rev)
	if err != nil {
		return FileInfo{}, err
	}
	if exists && !bytes.Equal(prev.CID.Bytes, mCID.Bytes) {
		return FileInfo{}, fmt.Errorf("%w: file %d revision %d already stored with different content", ErrInvalidInput, fileID, rev)
	}

	if !exists {
		// Manifests go to packs as plain dag-cbor so their CID covers the
		// encoded bytes.
		mPackID, err := s.packs.PutBlock(ctx, mCID, mBytes)
		if err != nil {
			return FileInfo{}, err
		}
		if err := batch.PutManifest(fileID, rev, catalog.Location{PackID: mPackID, CID: mCID, Len: uint32(len(mBytes))}); err != nil {
			return FileInfo{}, err
		}
	}

	if err := batch.Commit(); err != nil {
		return FileInfo{}, err
	}
	s.metrics.FileWritten()

	s.log.Debug("file stored",
		zap.Uint64("file", fileID),
		zap.Uint64("revision", rev),
		zap.Uint64("length", total),
		zap.Int("blocks", len(refs)))

	if err := s.packs.SealAndRotateIfNeeded(ctx); err != nil {
		s.log.Warn("pack rotation failed", zap.Error(err))
	}

	return FileInfo{
		FileID:   fileID,
		Revision: rev,
		Length:   total,
		Blocks:   uint32(len(refs)),
		Manifest: mCID,
	}, nil
}

func (s *store) pickRevision(ctx context.Context, fileID, rev uint64) (uint64, error) {
	if rev != 0 {
		return rev, nil
	}

	rev = uint64(time.Now().UnixNano())
	latest, _, ok, err := s.catalog.GetManifest(ctx, fileID, 0)
	if err != nil {
		return 0, err
	}
	if ok && rev <= latest {
		if latest == math.MaxUint64 {
			return 0, fmt.Errorf("%w: file %d has no revision after %d", ErrInvalidInput, fileID, latest)
		}
		rev = latest + 1
	}
	return rev, nil
}

func (s *store) putBlock(ctx context.Context, batch catalog.Batch, id object.ID, data []byte) (manifest.BlockRef, error) {
	stored, err := s.transform.Encode(id, data)
	if err != nil {
		return manifest.BlockRef{}, err
	}

	c, err := s.cidHub.BlockCID(stored)
	if err != nil {
		return manifest.BlockRef{}, err
	}

	ref := manifest.BlockRef{ID: id.Record(), CID: c, Len: uint32(len(data))}

	loc, exists, err := s.catalog.GetLocation(ctx, id)
	if err != nil {
		return manifest.BlockRef{}, err
	}
	if exists {
		if !bytes.Equal(loc.CID.Bytes, c.Bytes) {
			return manifest.BlockRef{}, fmt.Errorf("%w: object %s already stored with different content", ErrInvalidInput, id)
		}
		s.metrics.BlockDeduped()
		return ref, nil
	}

	packID, err := s.packs.PutBlock(ctx, c, stored)
	if err != nil {
		return manifest.BlockRef{}, err
	}

	if err := batch.PutLocation(id, catalog.Location{PackID: packID, CID: c, Len: ref.Len}); err != nil {
		return manifest.BlockRef{}, err
	}
	s.metrics.BlockWritten(len(data))

	return ref, nil
}

func (s *store) GetBlock(ctx context.Context, id ID) (io.ReadCloser, BlockInfo, error) {
	release, err := s.acquire()
	if err != nil {
		return nil, BlockInfo{}, err
	}
	defer release()

	if id.Revision == 0 {
		latest, ok, err := s.catalog.LatestRevision(ctx, id.FileID, id.BlockNo)
		if err != nil {
			return nil, BlockInfo{}, err
		}
		if !ok {
			return nil, BlockInfo{}, fmt.Errorf("%w: object %s", ErrNotFound, id)
		}
		id = latest
	}

	data, loc, err := s.readBlock(ctx, id)
	if err != nil {
		return nil, BlockInfo{}, err
	}

	return io.NopCloser(bytes.NewReader(data)), blockInfo(id, loc), nil
}

func blockInfo(id object.ID, loc catalog.Location) BlockInfo {
	return BlockInfo{ID: id, PackID: loc.PackID, CID: loc.CID, Len: loc.Len}
}

// readBlock returns the plaintext of id, checking it against the catalog
// entry. The returned slice may be shared with the cache.
func (s *store) readBlock(ctx context.Context, id object.ID) ([]byte, catalog.Location, error) {
	loc, ok, err := s.catalog.GetLocation(ctx, id)
	if err != nil {
		return nil, catalog.Location{}, err
	}
	if !ok {
		return nil, catalog.Location{}, fmt.Errorf("%w: object %s", ErrNotFound, id)
	}

	if data, hit := s.cache.Get(id); hit {
		s.metrics.CacheLookup(true)
		return data, loc, nil
	}
	if s.cache != nil {
		s.metrics.CacheLookup(false)
	}

	stored, err := s.packs.GetBlock(ctx, loc.PackID, loc.CID)
	if err != nil {
		return nil, catalog.Location{}, err
	}

	if err := s.cidHub.Verify(loc.CID, stored); err != nil {
		s.log.Error("block failed verification", object.Field("id", id), zap.Uint64("pack", loc.PackID), zap.Error(err))
		return nil, catalog.Location{}, err
	}

	got, plain, err := s.transform.Decode(stored)
	if err != nil {
		return nil, catalog.Location{}, err
	}
	if got != id {
		return nil, catalog.Location{}, fmt.Errorf("%w: catalog entry %s points at block of %s", ErrCorrupt, id, got)
	}
	if uint32(len(plain)) != loc.Len {
		return nil, catalog.Location{}, fmt.Errorf("%w: block %s has %d bytes, catalog says %d", ErrCorrupt, id, len(plain), loc.Len)
	}

	s.metrics.BlockRead()
	s.cache.Add(id, plain)
	return plain, loc, nil
}

func (s *store) loadManifest(ctx context.Context, fileID, rev uint64) (*manifest.FileManifest, catalog.Location, error) {
	resolved, loc, ok, err := s.catalog.GetManifest(ctx, fileID, rev)
	if err != nil {
		return nil, catalog.Location{}, err
	}
	if !ok {
		if rev == 0 {
			return nil, catalog.Location{}, fmt.Errorf("%w: file %d", ErrNotFound, fileID)
		}
		return nil, catalog.Location{}, fmt.Errorf("%w: file %d revision %d", ErrNotFound, fileID, rev)
	}

	mBytes, err := s.packs.GetBlock(ctx, loc.PackID, loc.CID)
	if err != nil {
		return nil, catalog.Location{}, err
	}

	if err := s.cidHub.Verify(loc.CID, mBytes); err != nil {
		return nil, catalog.Location{}, err
	}

	m, err := s.manifests.Decode(mBytes)
	if err != nil {
		return nil, catalog.Location{}, err
	}
	if m.FileID != fileID || m.Revision != resolved {
		return nil, catalog.Location{}, fmt.Errorf("%w: manifest of file %d revision %d filed under %d/%d", ErrCorrupt, m.FileID, m.Revision, fileID, resolved)
	}

	return m, loc, nil
}

func fileInfo(m *manifest.FileManifest, loc catalog.Location) FileInfo {
	return FileInfo{
		FileID:   m.FileID,
		Revision: m.Revision,
		Length:   m.Length,
		Blocks:   uint32(len(m.Blocks)),
		Manifest: loc.CID,
	}
}

func (s *store) OpenFile(ctx context.Context, fileID, rev uint64) (io.ReadCloser, FileInfo, error) {
	release, err := s.acquire()
	if err != nil {
		return nil, FileInfo{}, err
	}
	defer release()

	m, loc, err := s.loadManifest(ctx, fileID, rev)
	if err != nil {
		return nil, FileInfo{}, err
	}

	return &fileReader{ctx: ctx, s: s, blocks: m.Blocks}, fileInfo(m, loc), nil
}

func (s *store) Stat(ctx context.Context, fileID, rev uint64) (FileInfo, error) {
	release, err := s.acquire()
	if err != nil {
		return FileInfo{}, err
	}
	defer release()

	m, loc, err := s.loadManifest(ctx, fileID, rev)
	if err != nil {
		return FileInfo{}, err
	}
	return fileInfo(m, loc), nil
}

func (s *store) ListBlocks(ctx context.Context, fileID uint64) ([]BlockInfo, error) {
	release, err := s.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	var res []BlockInfo
	err = s.catalog.IterateFile(ctx, fileID, func(id object.ID, loc catalog.Location) error {
		res = append(res, blockInfo(id, loc))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *store) Locate(id ID) ([]placement.Node, error) {
	if s.placer == nil {
		return nil, fmt.Errorf("%w: no placement nodes configured", ErrInvalidInput)
	}
	return s.placer.Replicate(id), nil
}
