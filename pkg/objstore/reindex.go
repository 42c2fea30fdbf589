package objstore

import (
	"context"
	"fmt"

	"github.com/agenthands/objstore/pkg/catalog"
	"github.com/agenthands/objstore/pkg/cidutil"
	"github.com/agenthands/objstore/pkg/core"
	"github.com/agenthands/objstore/pkg/object"
	"github.com/agenthands/objstore/pkg/transform"
	"go.uber.org/zap"
)

// Reindex seals the active pack and writes a catalog entry for every block
// and manifest found in the sealed packs. Entries are written one batch per
// pack, so packs later in the sequence win when they hold the same ID.
// Corrupt entries are logged and skipped.
func (s *store) Reindex(ctx context.Context) (ReindexStats, error) {
	s.putMu.Lock()
	defer s.putMu.Unlock()

	release, err := s.acquire()
	if err != nil {
		return ReindexStats{}, err
	}
	defer release()

	if err := s.packs.SealActivePack(ctx); err != nil {
		return ReindexStats{}, fmt.Errorf("failed to seal active pack: %w", err)
	}

	var stats ReindexStats
	for _, packID := range s.packs.ListSealedPacks() {
		if err := s.reindexPack(ctx, packID, &stats); err != nil {
			return stats, err
		}
		stats.Packs++
	}

	s.cache.Purge()

	s.log.Info("reindex finished",
		zap.Int("packs", stats.Packs),
		zap.Int("blocks", stats.Blocks),
		zap.Int("manifests", stats.Manifests),
		zap.Int("skipped", stats.Skipped))

	return stats, nil
}

func (s *store) reindexPack(ctx context.Context, packID uint64, stats *ReindexStats) error {
	batch := s.catalog.NewBatch()
	defer batch.Close()

	log := s.log.With(zap.Uint64("pack", packID))

	err := s.packs.IteratePackBlocks(ctx, packID, func(c core.CID, stored []byte) error {
		if err := s.cidHub.Verify(c, stored); err != nil {
			log.Warn("skipping corrupt entry", zap.String("cid", cidutil.String(c)), zap.Error(err))
			stats.Skipped++
			return nil
		}

		if cidutil.IsManifest(c) {
			m, err := s.manifests.Decode(stored)
			if err != nil {
				log.Warn("skipping undecodable manifest", zap.String("cid", cidutil.String(c)), zap.Error(err))
				stats.Skipped++
				return nil
			}
			stats.Manifests++
			return batch.PutManifest(m.FileID, m.Revision, catalog.Location{PackID: packID, CID: c, Len: uint32(len(stored))})
		}

		id, plain, err := s.transform.Decode(stored)
		if err != nil {
			fields := []zap.Field{zap.String("cid", cidutil.String(c)), zap.Error(err)}
			if peeked, ok := transform.PeekID(stored); ok {
				fields = append(fields, object.Field("object", peeked))
			}
			log.Warn("skipping undecodable block", fields...)
			stats.Skipped++
			return nil
		}
		stats.Blocks++
		return batch.PutLocation(id, catalog.Location{PackID: packID, CID: c, Len: uint32(len(plain))})
	})
	if err != nil {
		return fmt.Errorf("failed to reindex pack %d: %w", packID, err)
	}

	return batch.Commit()
}
