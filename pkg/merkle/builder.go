package merkle

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"dbdb/pkg/core"
	"dbdb/pkg/metrics"
	"dbdb/pkg/storage"
	"dbdb/pkg/types"

	"go.uber.org/zap"
)

// ErrMalformedNode 节点文件内容无法解析
var ErrMalformedNode = core.ErrMalformedNode

// Builder 把有序的块哈希列表逐层两两配对，持久化每个节点，最后得到根哈希
type Builder struct {
	store   storage.Store
	hasher  *core.Hasher
	log     *zap.Logger
	metrics *metrics.Metrics
}

type BuilderOption func(*Builder)

func WithBuilderLogger(l *zap.Logger) BuilderOption { return func(b *Builder) { b.log = l } }

func WithBuilderMetrics(m *metrics.Metrics) BuilderOption {
	return func(b *Builder) { b.metrics = m }
}

func NewBuilder(store storage.Store, hasher *core.Hasher, opts ...BuilderOption) *Builder {
	if hasher == nil {
		hasher = core.DefaultHasher()
	}
	b := &Builder{store: store, hasher: hasher, log: zap.NewNop()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build 执行构建过程，返回根哈希
//
// 每一轮把当前列表按 (0,1) (2,3) ... 配对，奇数个时最后一个单独成节点。
// 第一轮的标签是 "block"，之后都是 "tree"。至少执行一轮，
// 所以只有一个块时根哈希是 SumString(块哈希)，而不是块哈希本身。
// 空列表写入一个空节点，根为 Hasher.EmptyRoot()。
func (b *Builder) Build(ctx context.Context, leaves []types.Hash) (types.Hash, error) {
	if len(leaves) == 0 {
		node := core.NewEmptyNode(b.hasher)
		if err := b.writeNode(ctx, node); err != nil {
			return "", err
		}
		return node.ID(), nil
	}

	level := leaves
	label := core.TypeBlock
	passes := 0
	for {
		next, err := b.pass(ctx, level, label)
		if err != nil {
			return "", err
		}
		passes++
		level = next
		label = core.TypeTree
		if len(level) == 1 {
			break
		}
	}

	b.log.Debug("tree built",
		zap.Stringer("root", level[0]),
		zap.Int("leaves", len(leaves)),
		zap.Int("passes", passes))
	return level[0], nil
}

// pass 处理一层，返回下一层的哈希列表
func (b *Builder) pass(ctx context.Context, level []types.Hash, label core.ObjectType) ([]types.Hash, error) {
	next := make([]types.Hash, 0, (len(level)+1)/2)
	for i := 0; i < len(level); i += 2 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var node *core.Node
		if i+1 < len(level) {
			node = core.NewPairNode(b.hasher, label, level[i], level[i+1])
		} else {
			node = core.NewSingleNode(b.hasher, label, level[i])
		}

		if err := b.writeNode(ctx, node); err != nil {
			return nil, err
		}
		next = append(next, node.ID())
	}
	return next, nil
}

// writeNode 原子地写入节点文件，已存在且字节一致则跳过
func (b *Builder) writeNode(ctx context.Context, node *core.Node) error {
	exists, err := b.store.Has(ctx, node.ID())
	if err != nil {
		return fmt.Errorf("failed to check node %s: %w", node.ID(), err)
	}
	if exists {
		data, err := storage.ReadAll(ctx, b.store, node.ID())
		switch {
		case err == nil && bytes.Equal(data, node.Bytes()):
			return nil
		case err == nil:
			return fmt.Errorf("%w: node %s", storage.ErrObjectConflict, node.ID())
		case !errors.Is(err, storage.ErrNotFound):
			return fmt.Errorf("failed to read node %s: %w", node.ID(), err)
		}
		b.log.Warn("node reported present but missing, rewriting", zap.Stringer("hash", node.ID()))
	}

	if err := storage.PutBytes(ctx, b.store, node.ID(), node.Bytes()); err != nil {
		return fmt.Errorf("failed to store node %s: %w", node.ID(), err)
	}
	b.metrics.NodeWritten()
	b.log.Debug("node written", zap.Stringer("hash", node.ID()), zap.Int("entries", len(node.Entries)))
	return nil
}
