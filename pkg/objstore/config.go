package objstore

import (
	"path/filepath"

	"github.com/agenthands/objstore/pkg/core"
)

type Config = core.Config
type ChunkingConfig = core.ChunkingConfig
type PackConfig = core.PackConfig
type CatalogConfig = core.CatalogConfig
type TransformConfig = core.TransformConfig
type LimitsConfig = core.LimitsConfig
type CacheConfig = core.CacheConfig
type PlacementConfig = core.PlacementConfig

const (
	DefaultMinBlock        = 16 << 10
	DefaultAvgBlock        = 64 << 10
	DefaultMaxBlock        = 256 << 10
	DefaultTargetPackBytes = 64 << 20
)

// withDefaults fills the directory layout under cfg.Dir and the block and
// pack sizes left at zero.
func withDefaults(cfg Config) Config {
	if cfg.Pack.Dir == "" {
		cfg.Pack.Dir = filepath.Join(cfg.Dir, "packs")
	}
	if cfg.Catalog.Dir == "" {
		cfg.Catalog.Dir = filepath.Join(cfg.Dir, "catalog")
	}
	if cfg.Chunking == (ChunkingConfig{}) {
		cfg.Chunking = ChunkingConfig{Min: DefaultMinBlock, Avg: DefaultAvgBlock, Max: DefaultMaxBlock}
	}
	if cfg.Pack.TargetPackBytes == 0 {
		cfg.Pack.TargetPackBytes = DefaultTargetPackBytes
	}
	return cfg
}
