package core

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

type Config struct {
	Dir string `mapstructure:"dir"` // repo root

	Chunking  ChunkingConfig  `mapstructure:"chunking"`
	Pack      PackConfig      `mapstructure:"pack"`
	Catalog   CatalogConfig   `mapstructure:"catalog"`
	Limits    LimitsConfig    `mapstructure:"limits"`
	Transform TransformConfig `mapstructure:"transform"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Placement PlacementConfig `mapstructure:"placement"`

	// Logger receives store events. Nil disables logging.
	Logger *zap.Logger `mapstructure:"-"`
	// Registerer, when set, gets the store's metrics collectors.
	Registerer prometheus.Registerer `mapstructure:"-"`
}

type ChunkingConfig struct {
	Min int `mapstructure:"min"`
	Avg int `mapstructure:"avg"`
	Max int `mapstructure:"max"`
}

type PackConfig struct {
	Dir             string `mapstructure:"dir"`
	TargetPackBytes uint64 `mapstructure:"target_pack_bytes"`
}

type CatalogConfig struct {
	Dir     string `mapstructure:"dir"`
	Backend string `mapstructure:"backend"` // "pebble" (default) or "bolt"
}

type TransformConfig struct {
	Name      string `mapstructure:"name"` // "none" (default) or "zstd"
	ZstdLevel int    `mapstructure:"zstd_level"`
}

type LimitsConfig struct {
	MaxFileBytes     uint64 `mapstructure:"max_file_bytes"`
	MaxBlocksPerFile uint32 `mapstructure:"max_blocks_per_file"`
}

type CacheConfig struct {
	// Blocks is the number of decoded blocks kept in memory. Zero disables the cache.
	Blocks int `mapstructure:"blocks"`
}

type PlacementConfig struct {
	Nodes    []string `mapstructure:"nodes"`
	Replicas int      `mapstructure:"replicas"`
}
