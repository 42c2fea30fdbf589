package chunker

import (
	"context"
	"fmt"
	"io"
	"math"
	"sync"

	"github.com/agenthands/objstore/pkg/core"
	"github.com/jotfs/fastcdc-go"
)

// Block is one content-defined slice of a file.
type Block struct {
	No  uint32 // position within the file, from 0
	Buf []byte // owned by chunker; returned to pool by consumer
	N   int
}

// Data returns the filled part of Buf.
func (b Block) Data() []byte { return b.Buf[:b.N] }

// Config defines the chunking parameters.
type Config struct {
	Min int
	Avg int
	Max int

	// MaxBlocks bounds the number of blocks per file. Zero means the block
	// number space is the only limit.
	MaxBlocks uint32
}

// Chunker splits a file into numbered blocks.
type Chunker interface {
	Split(ctx context.Context, r io.Reader) (<-chan Block, <-chan error)
	// ReturnBuffer returns a block buffer to the internal pool for reuse.
	ReturnBuffer(buf []byte)
}

type fastCDCChunker struct {
	cfg  Config
	pool sync.Pool
}

// NewChunker returns a new Chunker implementation.
func NewChunker(cfg Config) Chunker {
	return &fastCDCChunker{
		cfg: cfg,
		pool: sync.Pool{
			New: func() interface{} {
				return make([]byte, cfg.Max)
			},
		},
	}
}

func (c *fastCDCChunker) limit() uint64 {
	if c.cfg.MaxBlocks > 0 {
		return uint64(c.cfg.MaxBlocks)
	}
	return math.MaxUint32 + 1
}

func (c *fastCDCChunker) Split(ctx context.Context, r io.Reader) (<-chan Block, <-chan error) {
	blocks := make(chan Block, 1)
	errs := make(chan error, 1)

	go func() {
		defer close(blocks)
		defer close(errs)

		cdc, err := fastcdc.NewChunker(r, fastcdc.Options{
			MinSize:     c.cfg.Min,
			AverageSize: c.cfg.Avg,
			MaxSize:     c.cfg.Max,
		})
		if err != nil {
			errs <- err
			return
		}

		limit := c.limit()
		for n := uint64(0); ; n++ {
			if err := ctx.Err(); err != nil {
				errs <- err
				return
			}

			chunk, err := cdc.Next()
			if err != nil {
				if err != io.EOF {
					errs <- err
				}
				return
			}
			if n >= limit {
				errs <- fmt.Errorf("%w: more than %d blocks", core.ErrTooLarge, limit)
				return
			}

			// fastcdc reuses its buffer on the next call
			buf := c.pool.Get().([]byte)
			size := copy(buf, chunk.Data)

			select {
			case <-ctx.Done():
				c.pool.Put(buf)
				errs <- ctx.Err()
				return
			case blocks <- Block{No: uint32(n), Buf: buf, N: size}:
			}
		}
	}()

	return blocks, errs
}

// ReturnBuffer returns a buffer to the pool.
func (c *fastCDCChunker) ReturnBuffer(buf []byte) {
	c.pool.Put(buf)
}
