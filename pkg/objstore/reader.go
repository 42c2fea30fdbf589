package objstore

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/agenthands/objstore/pkg/manifest"
	"github.com/agenthands/objstore/pkg/object"
)

// fileReader fetches the blocks of a manifest lazily, one at a time.
type fileReader struct {
	ctx    context.Context
	s      *store
	blocks []manifest.BlockRef

	current *bytes.Reader
	idx     int
	closed  bool
}

func (r *fileReader) next() error {
	release, err := r.s.acquire()
	if err != nil {
		return err
	}
	defer release()

	ref := r.blocks[r.idx]
	id := object.FromRecord(ref.ID)

	data, loc, err := r.s.readBlock(r.ctx, id)
	if err != nil {
		return err
	}
	if !bytes.Equal(loc.CID.Bytes, ref.CID.Bytes) {
		return fmt.Errorf("%w: manifest and catalog disagree on %s", ErrCorrupt, id)
	}

	r.current = bytes.NewReader(data)
	return nil
}

func (r *fileReader) Read(p []byte) (int, error) {
	if r.closed {
		return 0, ErrClosed
	}
	for {
		if r.current == nil {
			if r.idx >= len(r.blocks) {
				return 0, io.EOF
			}
			if err := r.ctx.Err(); err != nil {
				return 0, err
			}
			if err := r.next(); err != nil {
				return 0, err
			}
		}

		n, err := r.current.Read(p)
		if err == io.EOF {
			r.current = nil
			r.idx++
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

func (r *fileReader) Close() error {
	r.closed = true
	r.current = nil
	return nil
}
