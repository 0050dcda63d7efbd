package block

import (
	"dbdb/pkg/compress"
	"dbdb/pkg/core"
	"dbdb/pkg/metrics"
	"dbdb/pkg/storage"

	"go.uber.org/zap"
)

// Manager 负责固定大小切块、压缩落盘，以及按哈希读回并拼接
type Manager struct {
	store     storage.Store
	codec     compress.Codec
	hasher    *core.Hasher
	blockSize int
	log       *zap.Logger
	metrics   *metrics.Metrics
}

type Option func(*Manager)

func WithCodec(c compress.Codec) Option { return func(m *Manager) { m.codec = c } }

func WithHasher(h *core.Hasher) Option { return func(m *Manager) { m.hasher = h } }

// WithBlockSize 设置切块大小，非正数会被忽略
func WithBlockSize(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.blockSize = n
		}
	}
}

func WithLogger(l *zap.Logger) Option { return func(m *Manager) { m.log = l } }

func WithMetrics(mt *metrics.Metrics) Option { return func(m *Manager) { m.metrics = mt } }

func NewManager(store storage.Store, opts ...Option) *Manager {
	codec, _ := compress.Lookup(compress.Default)
	m := &Manager{
		store:     store,
		codec:     codec,
		hasher:    core.DefaultHasher(),
		blockSize: core.DefaultBlockSize,
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) BlockSize() int { return m.blockSize }

func (m *Manager) Hasher() *core.Hasher { return m.hasher }

func (m *Manager) Codec() compress.Codec { return m.codec }
