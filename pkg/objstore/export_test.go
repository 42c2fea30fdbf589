package objstore

import (
	"github.com/agenthands/objstore/pkg/catalog"
	"github.com/agenthands/objstore/pkg/chunker"
	"github.com/agenthands/objstore/pkg/cidutil"
	"github.com/agenthands/objstore/pkg/manifest"
	"github.com/agenthands/objstore/pkg/pack"
	"github.com/agenthands/objstore/pkg/transform"
	"go.uber.org/zap"
)

// NewStoreForTest constructs a Store with injected dependencies. Test-only.
func NewStoreForTest(
	cfg Config,
	ch chunker.Chunker,
	pm pack.Manager,
	cat catalog.Catalog,
	tr transform.Transform,
) Store {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &store{
		cfg:       cfg,
		log:       log,
		chunker:   ch,
		cidHub:    cidutil.NewBuilder(),
		manifests: manifest.NewCodec(cfg.Limits),
		packs:     pm,
		catalog:   cat,
		transform: tr,
	}
}
