package engine

import (
	"dbdb/pkg/block"
	"dbdb/pkg/compress"
	"dbdb/pkg/core"
	"dbdb/pkg/index"
	"dbdb/pkg/merkle"
	"dbdb/pkg/meta"
	"dbdb/pkg/metrics"
	"dbdb/pkg/storage"

	"go.uber.org/zap"
)

// DefaultVerifyWorkers 是 Verify 并发读块的上限
const DefaultVerifyWorkers = 8

// Engine 串起 Block Manager、Merkle 树和名字索引
//
//	写: bytes -> Split -> Build -> index.Record (-> catalog)
//	读: root  -> ReadTree -> Join -> bytes
type Engine struct {
	store   storage.Store
	blocks  *block.Manager
	builder *merkle.Builder
	reader  *merkle.Reader
	index   *index.Index
	catalog *meta.Repository
	hasher  *core.Hasher

	log     *zap.Logger
	metrics *metrics.Metrics
	workers int
}

type options struct {
	codec     compress.Codec
	hasher    *core.Hasher
	blockSize int
	log       *zap.Logger
	metrics   *metrics.Metrics
	catalog   *meta.Repository
	nodeCache int
	leafCache storage.LeafCache
	workers   int
}

type Option func(*options)

func WithCodec(c compress.Codec) Option { return func(o *options) { o.codec = c } }

func WithHasher(h *core.Hasher) Option { return func(o *options) { o.hasher = h } }

func WithBlockSize(n int) Option { return func(o *options) { o.blockSize = n } }

func WithLogger(l *zap.Logger) Option { return func(o *options) { o.log = l } }

func WithMetrics(m *metrics.Metrics) Option { return func(o *options) { o.metrics = m } }

// WithCatalog 额外把每次 add 记录到 SQL catalog
func WithCatalog(r *meta.Repository) Option { return func(o *options) { o.catalog = r } }

func WithNodeCache(size int) Option { return func(o *options) { o.nodeCache = size } }

func WithLeafCache(c storage.LeafCache) Option { return func(o *options) { o.leafCache = c } }

func WithVerifyWorkers(n int) Option { return func(o *options) { o.workers = n } }

func New(store storage.Store, idx *index.Index, opts ...Option) *Engine {
	o := options{
		hasher:    core.DefaultHasher(),
		blockSize: core.DefaultBlockSize,
		log:       zap.NewNop(),
		workers:   DefaultVerifyWorkers,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.codec == nil {
		o.codec, _ = compress.Lookup(compress.Default)
	}
	if o.workers <= 0 {
		o.workers = DefaultVerifyWorkers
	}

	readerOpts := []merkle.ReaderOption{
		merkle.WithReaderLogger(o.log.Named("merkle")),
		merkle.WithNodeCache(o.nodeCache),
	}
	if o.leafCache != nil {
		readerOpts = append(readerOpts, merkle.WithLeafCache(o.leafCache))
	}

	return &Engine{
		store: store,
		blocks: block.NewManager(store,
			block.WithCodec(o.codec),
			block.WithHasher(o.hasher),
			block.WithBlockSize(o.blockSize),
			block.WithLogger(o.log.Named("block")),
			block.WithMetrics(o.metrics)),
		builder: merkle.NewBuilder(store, o.hasher,
			merkle.WithBuilderLogger(o.log.Named("merkle")),
			merkle.WithBuilderMetrics(o.metrics)),
		reader:  merkle.NewReader(store, readerOpts...),
		index:   idx,
		catalog: o.catalog,
		hasher:  o.hasher,
		log:     o.log,
		metrics: o.metrics,
		workers: o.workers,
	}
}

func (e *Engine) Store() storage.Store { return e.store }

func (e *Engine) Hasher() *core.Hasher { return e.hasher }

func (e *Engine) BlockSize() int { return e.blocks.BlockSize() }
