// Package catalog is the on-disk index of stored blocks and file manifests.
//
// Block entries are keyed by the packed layout of their object.ID, so a scan
// of the index visits IDs in object.Compare order and every block of a file
// shares the 8-byte FileID prefix.
package catalog

import (
	"context"
	"fmt"

	"github.com/agenthands/objstore/pkg/core"
	"github.com/agenthands/objstore/pkg/object"
)

// Location says where a stored block lives. For block envelopes Len is the
// plaintext length; for manifests it is the encoded manifest size.
type Location struct {
	PackID uint64
	CID    core.CID
	Len    uint32
}

// Catalog defines the interface for the embedded KV store.
type Catalog interface {
	GetLocation(ctx context.Context, id object.ID) (Location, bool, error)
	// LatestRevision returns the ID with the highest revision stored for
	// block blockNo of fileID.
	LatestRevision(ctx context.Context, fileID uint64, blockNo uint32) (object.ID, bool, error)
	// IterateFile visits every block of every revision of fileID in ID order.
	IterateFile(ctx context.Context, fileID uint64, fn func(id object.ID, loc Location) error) error

	// GetManifest resolves the manifest of a file revision. Revision 0
	// selects the highest stored revision; the resolved revision is returned.
	GetManifest(ctx context.Context, fileID, rev uint64) (uint64, Location, bool, error)
	IterateManifests(ctx context.Context, fn func(fileID, rev uint64, loc Location) error) error

	NewBatch() Batch
	Close() error
}

// Batch collects writes that become visible together on Commit.
type Batch interface {
	PutLocation(id object.ID, loc Location) error
	PutManifest(fileID, rev uint64, loc Location) error
	Commit() error
	// Close discards uncommitted writes.
	Close() error
}

const (
	BackendPebble = "pebble"
	BackendBolt   = "bolt"
)

// Open opens the catalog backend selected by cfg in cfg.Dir.
func Open(cfg core.CatalogConfig) (Catalog, error) {
	switch cfg.Backend {
	case BackendPebble, "":
		return OpenPebble(cfg.Dir)
	case BackendBolt:
		return OpenBolt(cfg.Dir)
	default:
		return nil, fmt.Errorf("%w: unknown catalog backend %q", core.ErrInvalidInput, cfg.Backend)
	}
}
