package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/agenthands/objstore/pkg/catalog"
	"github.com/agenthands/objstore/pkg/core"
	"github.com/agenthands/objstore/pkg/objstore"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// EnvPrefix is prepended to configuration keys read from the environment:
// catalog.backend is OBJSTORE_CATALOG_BACKEND.
const EnvPrefix = "OBJSTORE"

const (
	cfgDir            = "dir"
	cfgChunkMin       = "chunking.min"
	cfgChunkAvg       = "chunking.avg"
	cfgChunkMax       = "chunking.max"
	cfgPackDir        = "pack.dir"
	cfgPackTarget     = "pack.target_pack_bytes"
	cfgCatalogDir     = "catalog.dir"
	cfgCatalogBackend = "catalog.backend"
	cfgTransformName  = "transform.name"
	cfgZstdLevel      = "transform.zstd_level"
	cfgMaxFileBytes   = "limits.max_file_bytes"
	cfgMaxBlocks      = "limits.max_blocks_per_file"
	cfgCacheBlocks    = "cache.blocks"
	cfgPlacementNodes = "placement.nodes"
	cfgReplicas       = "placement.replicas"
	cfgLoggerLevel    = "logger.level"
)

var errNoDir = errors.New("repository directory is not set (use --dir or OBJSTORE_DIR)")

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	defaultConfiguration(v)
	return v
}

func defaultConfiguration(v *viper.Viper) {
	v.SetDefault(cfgDir, "")

	v.SetDefault(cfgChunkMin, objstore.DefaultMinBlock)
	v.SetDefault(cfgChunkAvg, objstore.DefaultAvgBlock)
	v.SetDefault(cfgChunkMax, objstore.DefaultMaxBlock)

	v.SetDefault(cfgPackDir, "")
	v.SetDefault(cfgPackTarget, objstore.DefaultTargetPackBytes)

	v.SetDefault(cfgCatalogDir, "")
	v.SetDefault(cfgCatalogBackend, catalog.BackendPebble)

	v.SetDefault(cfgTransformName, "none")
	v.SetDefault(cfgZstdLevel, 0)

	v.SetDefault(cfgMaxFileBytes, 0)
	v.SetDefault(cfgMaxBlocks, 0)

	v.SetDefault(cfgCacheBlocks, 0)

	v.SetDefault(cfgPlacementNodes, []string{})
	v.SetDefault(cfgReplicas, 1)

	v.SetDefault(cfgLoggerLevel, "warn")
}

// readConfig reads the optional file at path on top of v and decodes the
// resulting tree.
func readConfig(v *viper.Viper, path string) (core.Config, error) {
	var cfg core.Config

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return cfg, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to decode config: %w", err)
	}

	log, err := newLogger(v.GetString(cfgLoggerLevel))
	if err != nil {
		return cfg, err
	}
	cfg.Logger = log

	return cfg, nil
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid logger level %q: %w", level, err)
	}

	c := zap.NewProductionConfig()
	c.Level = lvl
	c.Encoding = "console"
	c.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	log, err := c.Build(zap.AddStacktrace(zap.NewAtomicLevelAt(zap.FatalLevel)))
	if err != nil {
		return nil, fmt.Errorf("failed to build zap logger: %w", err)
	}
	return log, nil
}
