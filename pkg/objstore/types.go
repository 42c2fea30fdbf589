package objstore

import (
	"context"
	"io"

	"github.com/agenthands/objstore/pkg/core"
	"github.com/agenthands/objstore/pkg/object"
	"github.com/agenthands/objstore/pkg/placement"
)

type ID = object.ID
type CID = core.CID

// PutOptions tunes a PutFile call.
type PutOptions struct {
	// Revision of the new file version. Zero picks the current time in
	// nanoseconds, bumped past the latest stored revision if needed.
	Revision uint64
}

// FileInfo describes one stored file revision.
type FileInfo struct {
	FileID   uint64
	Revision uint64
	Length   uint64
	Blocks   uint32
	Manifest CID
}

// BlockInfo describes one stored block.
type BlockInfo struct {
	ID     ID
	PackID uint64
	CID    CID
	Len    uint32 // plaintext length
}

// ReindexStats summarizes a Reindex run.
type ReindexStats struct {
	Packs     int
	Blocks    int
	Manifests int
	Skipped   int // unreadable or corrupt entries
}

// Store keeps files as sequences of blocks named by ID.
type Store interface {
	// PutFile splits r into blocks and stores them as a new revision of
	// fileID. A revision is immutable: storing it again succeeds only with
	// identical content.
	PutFile(ctx context.Context, fileID uint64, r io.Reader, opts PutOptions) (FileInfo, error)

	// GetBlock returns the contents of one block. A zero id.Revision selects
	// the latest stored revision of that block; the resolved ID is reported
	// in BlockInfo.
	GetBlock(ctx context.Context, id ID) (io.ReadCloser, BlockInfo, error)

	// OpenFile streams a file revision. Revision 0 selects the latest.
	OpenFile(ctx context.Context, fileID, rev uint64) (io.ReadCloser, FileInfo, error)
	Stat(ctx context.Context, fileID, rev uint64) (FileInfo, error)

	// ListBlocks returns every stored block of fileID, across revisions, in
	// ID order.
	ListBlocks(ctx context.Context, fileID uint64) ([]BlockInfo, error)

	// Locate returns the nodes responsible for id under the configured
	// placement.
	Locate(id ID) ([]placement.Node, error)

	// Reindex rebuilds the catalog from pack contents.
	Reindex(ctx context.Context) (ReindexStats, error)

	Close() error
}
