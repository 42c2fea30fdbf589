package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/agenthands/objstore/pkg/object"
	"github.com/cockroachdb/pebble"
)

type pebbleCatalog struct {
	db *pebble.DB
}

// OpenPebble opens a Pebble-based catalog in the specified directory.
func OpenPebble(dir string) (Catalog, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble db: %w", err)
	}
	return &pebbleCatalog{db: db}, nil
}

func (c *pebbleCatalog) Close() error {
	return c.db.Close()
}

func (c *pebbleCatalog) get(key []byte) ([]byte, bool, error) {
	val, closer, err := c.db.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer closer.Close()

	res := make([]byte, len(val))
	copy(res, val)
	return res, true, nil
}

func (c *pebbleCatalog) scan(ctx context.Context, prefix []byte, fn func(key, val []byte) error) error {
	iter, err := c.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: incrementByte(prefix),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(iter.Key(), iter.Value()); err != nil {
			return err
		}
	}
	return iter.Error()
}

func (c *pebbleCatalog) GetLocation(ctx context.Context, id object.ID) (Location, bool, error) {
	val, ok, err := c.get(locationKey(PrefixLocation, id))
	if err != nil || !ok {
		return Location{}, false, err
	}
	loc, err := decodeLocation(val)
	if err != nil {
		return Location{}, false, err
	}
	return loc, true, nil
}

func (c *pebbleCatalog) LatestRevision(ctx context.Context, fileID uint64, blockNo uint32) (object.ID, bool, error) {
	var (
		latest object.ID
		found  bool
	)
	err := c.scan(ctx, fileKeyPrefix(PrefixLocation, fileID, blockNo, true), func(key, _ []byte) error {
		id, err := parseLocationKey(PrefixLocation, key)
		if err != nil {
			return err
		}
		// Key order is packed-byte order, not numeric revision order.
		if !found || id.Revision > latest.Revision {
			latest, found = id, true
		}
		return nil
	})
	return latest, found, err
}

func (c *pebbleCatalog) IterateFile(ctx context.Context, fileID uint64, fn func(id object.ID, loc Location) error) error {
	return c.scan(ctx, fileKeyPrefix(PrefixLocation, fileID, 0, false), func(key, val []byte) error {
		id, err := parseLocationKey(PrefixLocation, key)
		if err != nil {
			return err
		}
		loc, err := decodeLocation(val)
		if err != nil {
			return err
		}
		return fn(id, loc)
	})
}

func (c *pebbleCatalog) GetManifest(ctx context.Context, fileID, rev uint64) (uint64, Location, bool, error) {
	if rev != 0 {
		val, ok, err := c.get(manifestKey(PrefixManifest, fileID, rev))
		if err != nil || !ok {
			return 0, Location{}, false, err
		}
		loc, err := decodeLocation(val)
		if err != nil {
			return 0, Location{}, false, err
		}
		return rev, loc, true, nil
	}

	var (
		latest uint64
		val    []byte
		found  bool
	)
	err := c.scan(ctx, fileKeyPrefix(PrefixManifest, fileID, 0, false), func(key, v []byte) error {
		_, r, err := parseManifestKey(PrefixManifest, key)
		if err != nil {
			return err
		}
		if !found || r > latest {
			// iterator memory is reused on Next
			latest, val, found = r, append(val[:0], v...), true
		}
		return nil
	})
	if err != nil || !found {
		return 0, Location{}, false, err
	}
	loc, err := decodeLocation(val)
	if err != nil {
		return 0, Location{}, false, err
	}
	return latest, loc, true, nil
}

func (c *pebbleCatalog) IterateManifests(ctx context.Context, fn func(fileID, rev uint64, loc Location) error) error {
	return c.scan(ctx, PrefixManifest, func(key, val []byte) error {
		fileID, rev, err := parseManifestKey(PrefixManifest, key)
		if err != nil {
			return err
		}
		loc, err := decodeLocation(val)
		if err != nil {
			return err
		}
		return fn(fileID, rev, loc)
	})
}

func (c *pebbleCatalog) NewBatch() Batch {
	return &pebbleBatch{b: c.db.NewBatch()}
}

type pebbleBatch struct {
	b *pebble.Batch
}

func (b *pebbleBatch) PutLocation(id object.ID, loc Location) error {
	return b.b.Set(locationKey(PrefixLocation, id), encodeLocation(loc), nil)
}

func (b *pebbleBatch) PutManifest(fileID, rev uint64, loc Location) error {
	return b.b.Set(manifestKey(PrefixManifest, fileID, rev), encodeLocation(loc), nil)
}

func (b *pebbleBatch) Commit() error {
	return b.b.Commit(pebble.Sync)
}

func (b *pebbleBatch) Close() error {
	return b.b.Close()
}
