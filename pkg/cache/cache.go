// Package cache keeps recently read plaintext blocks in memory.
package cache

import (
	"fmt"

	"github.com/agenthands/objstore/pkg/object"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Blocks is a fixed-size LRU of block contents. A nil *Blocks is a valid
// cache that never holds anything.
type Blocks struct {
	lru *lru.Cache[object.ID, []byte]
}

// New returns a cache of up to size blocks. Size 0 returns nil.
func New(size int) (*Blocks, error) {
	if size == 0 {
		return nil, nil
	}
	c, err := lru.New[object.ID, []byte](size)
	if err != nil {
		return nil, fmt.Errorf("could not create LRU cache with %d size: %w", size, err)
	}
	return &Blocks{lru: c}, nil
}

// Get returns the cached block. The slice must not be modified.
func (b *Blocks) Get(id object.ID) ([]byte, bool) {
	if b == nil {
		return nil, false
	}
	return b.lru.Get(id)
}

func (b *Blocks) Add(id object.ID, data []byte) {
	if b == nil {
		return
	}
	b.lru.Add(id, data)
}

func (b *Blocks) Len() int {
	if b == nil {
		return 0
	}
	return b.lru.Len()
}

func (b *Blocks) Purge() {
	if b != nil {
		b.lru.Purge()
	}
}
