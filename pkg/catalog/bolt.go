package catalog

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/agenthands/objstore/pkg/object"
	"go.etcd.io/bbolt"
)

// BoltFileName is the database file created inside the catalog directory.
const BoltFileName = "catalog.db"

var (
	bucketLocations = []byte("loc")
	bucketManifests = []byte("mf")
)

type boltCatalog struct {
	db *bbolt.DB
}

// OpenBolt opens a bbolt-based catalog in the specified directory. Keys are
// the same as in the Pebble backend minus the prefix, which becomes the
// bucket name.
func OpenBolt(dir string) (Catalog, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create catalog directory: %w", err)
	}

	db, err := bbolt.Open(filepath.Join(dir, BoltFileName), 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketLocations, bucketManifests} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}

	return &boltCatalog{db: db}, nil
}

func (c *boltCatalog) Close() error {
	return c.db.Close()
}

// scan calls fn for every key of bucket starting with prefix. Values are only
// valid inside fn.
func (c *boltCatalog) scan(ctx context.Context, bucket, prefix []byte, fn func(key, val []byte) error) error {
	return c.db.View(func(tx *bbolt.Tx) error {
		cur := tx.Bucket(bucket).Cursor()
		k, v := cur.First()
		if len(prefix) > 0 {
			k, v = cur.Seek(prefix)
		}
		for ; k != nil && bytes.HasPrefix(k, prefix); k, v = cur.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := fn(k, v); err != nil {
				return err
			}
		}
		return nil
	})
}

func (c *boltCatalog) GetLocation(ctx context.Context, id object.ID) (Location, bool, error) {
	var (
		loc   Location
		found bool
	)
	err := c.db.View(func(tx *bbolt.Tx) error {
		val := tx.Bucket(bucketLocations).Get(locationKey(nil, id))
		if val == nil {
			return nil
		}
		var err error
		loc, err = decodeLocation(val)
		found = err == nil
		return err
	})
	return loc, found, err
}

func (c *boltCatalog) LatestRevision(ctx context.Context, fileID uint64, blockNo uint32) (object.ID, bool, error) {
	var (
		latest object.ID
		found  bool
	)
	err := c.scan(ctx, bucketLocations, fileKeyPrefix(nil, fileID, blockNo, true), func(key, _ []byte) error {
		id, err := parseLocationKey(nil, key)
		if err != nil {
			return err
		}
		if !found || id.Revision > latest.Revision {
			latest, found = id, true
		}
		return nil
	})
	return latest, found, err
}

func (c *boltCatalog) IterateFile(ctx context.Context, fileID uint64, fn func(id object.ID, loc Location) error) error {
	return c.scan(ctx, bucketLocations, fileKeyPrefix(nil, fileID, 0, false), func(key, val []byte) error {
		id, err := parseLocationKey(nil, key)
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

func (c *boltCatalog) GetManifest(ctx context.Context, fileID, rev uint64) (uint64, Location, bool, error) {
	var (
		latest uint64
		loc    Location
		found  bool
	)

	if rev != 0 {
		err := c.db.View(func(tx *bbolt.Tx) error {
			val := tx.Bucket(bucketManifests).Get(manifestKey(nil, fileID, rev))
			if val == nil {
				return nil
			}
			var err error
			loc, err = decodeLocation(val)
			latest, found = rev, err == nil
			return err
		})
		return latest, loc, found, err
	}

	err := c.scan(ctx, bucketManifests, fileKeyPrefix(nil, fileID, 0, false), func(key, val []byte) error {
		_, r, err := parseManifestKey(nil, key)
		if err != nil {
			return err
		}
		if found && r <= latest {
			return nil
		}
		if loc, err = decodeLocation(val); err != nil {
			return err
		}
		latest, found = r, true
		return nil
	})
	return latest, loc, found, err
}

func (c *boltCatalog) IterateManifests(ctx context.Context, fn func(fileID, rev uint64, loc Location) error) error {
	return c.scan(ctx, bucketManifests, nil, func(key, val []byte) error {
		fileID, rev, err := parseManifestKey(nil, key)
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

func (c *boltCatalog) NewBatch() Batch {
	return &boltBatch{db: c.db}
}

type boltOp struct {
	bucket   []byte
	key, val []byte
}

// boltBatch buffers writes and applies them in a single transaction, since
// a bbolt write transaction holds the database lock for its whole lifetime.
type boltBatch struct {
	db  *bbolt.DB
	ops []boltOp
}

func (b *boltBatch) PutLocation(id object.ID, loc Location) error {
	b.ops = append(b.ops, boltOp{bucket: bucketLocations, key: locationKey(nil, id), val: encodeLocation(loc)})
	return nil
}

func (b *boltBatch) PutManifest(fileID, rev uint64, loc Location) error {
	b.ops = append(b.ops, boltOp{bucket: bucketManifests, key: manifestKey(nil, fileID, rev), val: encodeLocation(loc)})
	return nil
}

func (b *boltBatch) Commit() error {
	if len(b.ops) == 0 {
		return nil
	}
	err := b.db.Update(func(tx *bbolt.Tx) error {
		for _, op := range b.ops {
			if err := tx.Bucket(op.bucket).Put(op.key, op.val); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	b.ops = nil
	return nil
}

func (b *boltBatch) Close() error {
	b.ops = nil
	return nil
}
