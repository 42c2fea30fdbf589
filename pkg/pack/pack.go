// Package pack stores block envelopes in CARv2 files. One pack is active and
// receives writes; once it reaches the target size it is finalized, reopened
// read-only and a new active pack is started.
package pack

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/agenthands/objstore/pkg/core"
	blocks "github.com/ipfs/go-block-format"
	"github.com/ipfs/go-cid"
	carv2 "github.com/ipld/go-car/v2"
	"github.com/ipld/go-car/v2/blockstore"
	"go.uber.org/zap"
)

// Manager defines the interface for managing CARv2 pack files.
type Manager interface {
	PutBlock(ctx context.Context, c core.CID, stored []byte) (uint64, error)
	GetBlock(ctx context.Context, packID uint64, c core.CID) ([]byte, error)
	SealAndRotateIfNeeded(ctx context.Context) error
	SealActivePack(ctx context.Context) error
	CurrentPackID() uint64
	ListSealedPacks() []uint64
	IteratePackBlocks(ctx context.Context, packID uint64, fn func(c core.CID, stored []byte) error) error

	Close() error
}

type packManager struct {
	cfg core.PackConfig
	log *zap.Logger

	mu sync.RWMutex

	currentID uint64
	active    *blockstore.ReadWrite
	// written to the active pack since it was opened
	activeBlocks int

	sealed map[uint64]*blockstore.ReadOnly
}

// NewManager opens the packs under cfg.Dir. Existing packs are treated as
// sealed and a fresh active pack is started after the highest one.
func NewManager(cfg core.PackConfig, log *zap.Logger) (Manager, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("%w: pack directory not specified", core.ErrInvalidInput)
	}
	if log == nil {
		log = zap.NewNop()
	}

	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create pack directory: %w", err)
	}

	m := &packManager{
		cfg:    cfg,
		log:    log,
		sealed: make(map[uint64]*blockstore.ReadOnly),
	}

	if err := m.discoverPacks(); err != nil {
		m.closeSealed()
		return nil, err
	}

	return m, nil
}

func parsePackName(name string) (uint64, bool) {
	if !strings.HasPrefix(name, "pack-") || !strings.HasSuffix(name, ".car") {
		return 0, false
	}
	id, err := strconv.ParseUint(strings.TrimSuffix(strings.TrimPrefix(name, "pack-"), ".car"), 16, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

func (m *packManager) discoverPacks() error {
	entries, err := os.ReadDir(m.cfg.Dir)
	if err != nil {
		return err
	}

	var packIDs []uint64
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if id, ok := parsePackName(entry.Name()); ok {
			packIDs = append(packIDs, id)
		}
	}

	sort.Slice(packIDs, func(i, j int) bool { return packIDs[i] < packIDs[j] })

	for _, id := range packIDs {
		bs, err := blockstore.OpenReadOnly(m.packPath(id))
		if err != nil {
			return fmt.Errorf("failed to open sealed pack %d: %w", id, err)
		}
		m.sealed[id] = bs
		m.currentID = id
	}

	m.log.Debug("discovered packs", zap.String("dir", m.cfg.Dir), zap.Int("sealed", len(packIDs)))

	// Resuming a half-written CARv2 file is not supported; always start fresh.
	m.currentID++
	return m.openActive(m.currentID)
}

func (m *packManager) openActive(id uint64) error {
	bs, err := blockstore.OpenReadWrite(m.packPath(id), []cid.Cid{})
	if err != nil {
		return fmt.Errorf("failed to create active pack %d: %w", id, err)
	}

	m.active = bs
	m.activeBlocks = 0
	return nil
}

func (m *packManager) packPath(id uint64) string {
	return filepath.Join(m.cfg.Dir, fmt.Sprintf("pack-%016x.car", id))
}

func (m *packManager) CurrentPackID() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.currentID
}

func (m *packManager) PutBlock(ctx context.Context, c core.CID, stored []byte) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active == nil {
		return 0, core.ErrClosed
	}

	id, err := cid.Cast(c.Bytes)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid CID: %v", core.ErrInvalidInput, err)
	}

	has, err := m.active.Has(ctx, id)
	if err != nil {
		return 0, err
	}
	if has {
		return m.currentID, nil
	}

	blk, err := blocks.NewBlockWithCid(stored, id)
	if err != nil {
		return 0, err
	}

	if err := m.active.Put(ctx, blk); err != nil {
		return 0, err
	}
	m.activeBlocks++

	return m.currentID, nil
}

func (m *packManager) GetBlock(ctx context.Context, packID uint64, c core.CID) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, err := cid.Cast(c.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid CID: %v", core.ErrInvalidInput, err)
	}

	var bs interface {
		Get(context.Context, cid.Cid) (blocks.Block, error)
	}

	switch rbs, ok := m.sealed[packID]; {
	case ok:
		bs = rbs
	case packID == m.currentID && m.active != nil:
		bs = m.active
	default:
		return nil, fmt.Errorf("%w: pack %d not found", core.ErrNotFound, packID)
	}

	blk, err := bs.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: block %s in pack %d: %v", core.ErrNotFound, id, packID, err)
	}

	return blk.RawData(), nil
}

func (m *packManager) SealAndRotateIfNeeded(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active == nil {
		return core.ErrClosed
	}

	fi, err := os.Stat(m.packPath(m.currentID))
	if err != nil {
		return err
	}
	if uint64(fi.Size()) < m.cfg.TargetPackBytes {
		return nil
	}

	return m.sealLocked()
}

func (m *packManager) SealActivePack(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active == nil {
		return core.ErrClosed
	}
	if m.activeBlocks == 0 {
		return nil
	}
	return m.sealLocked()
}

func (m *packManager) sealLocked() error {
	if err := m.active.Finalize(); err != nil {
		return fmt.Errorf("failed to finalize active pack: %w", err)
	}

	bs, err := blockstore.OpenReadOnly(m.packPath(m.currentID))
	if err != nil {
		return fmt.Errorf("failed to open sealed pack: %w", err)
	}
	m.sealed[m.currentID] = bs

	m.log.Info("sealed pack", zap.Uint64("pack", m.currentID), zap.Int("blocks", m.activeBlocks))

	m.currentID++
	return m.openActive(m.currentID)
}

func (m *packManager) ListSealedPacks() []uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]uint64, 0, len(m.sealed))
	for id := range m.sealed {
		res = append(res, id)
	}
	sort.Slice(res, func(i, j int) bool { return res[i] < res[j] })
	return res
}

// IteratePackBlocks reads a sealed pack front to back. The CAR index is not
// used because it reports every CID with the raw codec, losing dag-cbor for
// manifests.
func (m *packManager) IteratePackBlocks(ctx context.Context, packID uint64, fn func(c core.CID, stored []byte) error) error {
	m.mu.RLock()
	_, ok := m.sealed[packID]
	m.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: pack %d is not sealed or doesn't exist", core.ErrNotFound, packID)
	}

	f, err := os.Open(m.packPath(packID))
	if err != nil {
		return fmt.Errorf("failed to open pack %d: %w", packID, err)
	}
	defer f.Close()

	br, err := carv2.NewBlockReader(f, carv2.WithTrustedCAR(true))
	if err != nil {
		return fmt.Errorf("failed to create block reader for pack %d: %w", packID, err)
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		blk, err := br.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("failed to read block from pack %d: %w", packID, err)
		}

		if err := fn(core.CID{Bytes: blk.Cid().Bytes()}, blk.RawData()); err != nil {
			return err
		}
	}
}

func (m *packManager) closeSealed() []string {
	var errs []string
	for id, bs := range m.sealed {
		if err := bs.Close(); err != nil {
			errs = append(errs, fmt.Sprintf("pack %d: %v", id, err))
		}
	}
	return errs
}

// Close finalizes the active pack and releases every sealed one.
func (m *packManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active == nil {
		return nil
	}
	var errs []string
	if err := m.active.Finalize(); err != nil {
		errs = append(errs, fmt.Sprintf("active pack %d: %v", m.currentID, err))
	}
	m.active = nil

	errs = append(errs, m.closeSealed()...)
	if len(errs) > 0 {
		return fmt.Errorf("errors closing pack manager: %s", strings.Join(errs, "; "))
	}
	return nil
}
