package merkle

import (
	"context"
	"errors"
	"fmt"

	"dbdb/pkg/core"
	"dbdb/pkg/storage"
	"dbdb/pkg/types"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

// maxDepth 限制递归深度。正常构建的树深度约为 log2(块数)+1
const maxDepth = 128

// Reader 从根哈希还原有序的叶子列表
type Reader struct {
	store  storage.Store
	log    *zap.Logger
	nodes  *lru.Cache[types.Hash, *core.Node]
	leaves storage.LeafCache
}

type ReaderOption func(*Reader)

func WithReaderLogger(l *zap.Logger) ReaderOption { return func(r *Reader) { r.log = l } }

// WithNodeCache 缓存最近解析过的节点，size <= 0 表示不缓存
func WithNodeCache(size int) ReaderOption {
	return func(r *Reader) {
		if size <= 0 {
			r.nodes = nil
			return
		}
		c, err := lru.New[types.Hash, *core.Node](size)
		if err == nil {
			r.nodes = c
		}
	}
}

// WithLeafCache 整棵树的叶子列表缓存 (比如 Redis)
func WithLeafCache(c storage.LeafCache) ReaderOption {
	return func(r *Reader) { r.leaves = c }
}

func NewReader(store storage.Store, opts ...ReaderOption) *Reader {
	r := &Reader{store: store, log: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ReadTree 返回 root 下按原始顺序排列的所有块哈希
//
// root 本身不存在时返回 storage.ErrNotFound；
// 子树引用缺失时该子树贡献为空，只打 warn 日志。
func (r *Reader) ReadTree(ctx context.Context, root types.Hash) ([]types.Hash, error) {
	if r.leaves != nil {
		if cached, ok := r.leaves.GetLeaves(ctx, root); ok {
			return cached, nil
		}
	}

	node, err := r.loadNode(ctx, root)
	if err != nil {
		return nil, err
	}

	leaves := make([]types.Hash, 0)
	complete := true
	if err := r.collect(ctx, node, 0, &leaves, &complete); err != nil {
		return nil, err
	}

	// 跳过了缺失子树的结果只是部分列表，不能缓存
	if r.leaves != nil && complete {
		r.leaves.PutLeaves(ctx, root, leaves)
	}
	return leaves, nil
}

// collect 追加 node 下的叶子；有子树缺失时把 *complete 置为 false
func (r *Reader) collect(ctx context.Context, node *core.Node, depth int, acc *[]types.Hash, complete *bool) error {
	if depth > maxDepth {
		return fmt.Errorf("%w: %s exceeds max depth %d", ErrMalformedNode, node.ID(), maxDepth)
	}
	for _, e := range node.Entries {
		switch e.Type {
		case core.TypeBlock:
			*acc = append(*acc, e.Hash)
		case core.TypeTree:
			if err := ctx.Err(); err != nil {
				return err
			}
			child, err := r.loadNode(ctx, e.Hash)
			if errors.Is(err, storage.ErrNotFound) {
				r.log.Warn("subtree missing, skipping", zap.Stringer("node", e.Hash), zap.Stringer("parent", node.ID()))
				*complete = false
				continue
			}
			if err != nil {
				return err
			}
			if err := r.collect(ctx, child, depth+1, acc, complete); err != nil {
				return err
			}
		}
	}
	return nil
}

// Step 是 Walk 访问到的一个节点
// Node 为 nil 时 Err 说明原因 (子树缺失为 storage.ErrNotFound)
type Step struct {
	ID     types.Hash
	Parent types.Hash
	Depth  int
	Node   *core.Node
	Err    error
}

// WalkFunc 返回非 nil error 时遍历立即停止
type WalkFunc func(step Step) error

// Walk 深度优先、按叶子顺序访问每个节点
// 与 ReadTree 不同，缺失的子树会以 Step.Err 的形式交给 fn
func (r *Reader) Walk(ctx context.Context, root types.Hash, fn WalkFunc) error {
	node, err := r.loadNode(ctx, root)
	if err != nil {
		return err
	}
	return r.walk(ctx, Step{ID: root, Node: node}, fn)
}

func (r *Reader) walk(ctx context.Context, step Step, fn WalkFunc) error {
	if step.Depth > maxDepth {
		return fmt.Errorf("%w: %s exceeds max depth %d", ErrMalformedNode, step.ID, maxDepth)
	}
	if err := fn(step); err != nil {
		return err
	}
	for _, e := range step.Node.Entries {
		if e.Type != core.TypeTree {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		child := Step{ID: e.Hash, Parent: step.ID, Depth: step.Depth + 1}
		node, err := r.loadNode(ctx, e.Hash)
		if errors.Is(err, storage.ErrNotFound) {
			child.Err = err
			if err := fn(child); err != nil {
				return err
			}
			continue
		}
		if err != nil {
			return err
		}
		child.Node = node
		if err := r.walk(ctx, child, fn); err != nil {
			return err
		}
	}
	return nil
}

// loadNode 读取并解析节点文件，优先走 LRU
func (r *Reader) loadNode(ctx context.Context, id types.Hash) (*core.Node, error) {
	if r.nodes != nil {
		if n, ok := r.nodes.Get(id); ok {
			return n, nil
		}
	}

	data, err := storage.ReadAll(ctx, r.store, id)
	if err != nil {
		return nil, fmt.Errorf("failed to read node %s: %w", id, err)
	}
	node, err := core.ParseNode(id, data)
	if err != nil {
		return nil, err
	}

	if r.nodes != nil {
		r.nodes.Add(id, node)
	}
	return node, nil
}

// ExpectedID 根据节点内容重新计算它应有的哈希
// 两个条目为 Pair，一个为 Single，零个为空树
func ExpectedID(h *core.Hasher, n *core.Node) (types.Hash, error) {
	switch len(n.Entries) {
	case 0:
		return h.EmptyRoot(), nil
	case 1:
		return h.SumString(string(n.Entries[0].Hash)), nil
	case 2:
		return h.SumPair(n.Entries[0].Hash, n.Entries[1].Hash), nil
	default:
		return "", fmt.Errorf("%w: %s has %d entries", ErrMalformedNode, n.ID(), len(n.Entries))
	}
}
