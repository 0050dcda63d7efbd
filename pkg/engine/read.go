package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"dbdb/pkg/index"
	"dbdb/pkg/meta"
	"dbdb/pkg/metrics"
	"dbdb/pkg/storage"
	"dbdb/pkg/types"
)

var ErrUnresolved = errors.New("cannot resolve reference")

// HashObject 只切块计算哈希，write 为 true 时同时落盘
func (e *Engine) HashObject(ctx context.Context, r io.Reader, write bool) ([]types.Hash, error) {
	return e.blocks.Split(ctx, r, write)
}

// CatBlocks 按顺序输出若干块的原始内容，支持短哈希
func (e *Engine) CatBlocks(ctx context.Context, refs []string, w io.Writer) error {
	hashes := make([]types.Hash, 0, len(refs))
	for _, ref := range refs {
		h, err := e.expand(ctx, ref)
		if err != nil {
			return err
		}
		hashes = append(hashes, h)
	}
	return e.blocks.Join(ctx, hashes, w)
}

// Resolve 把用户输入解析为 root 哈希
// 依次尝试: 完整哈希 -> 唯一前缀 -> catalog 中的名字 -> 索引中的名字
func (e *Engine) Resolve(ctx context.Context, ref string) (types.Hash, error) {
	h, err := e.expand(ctx, ref)
	if err == nil {
		return h, nil
	}
	// 前缀有歧义时不能退化为按名字查找
	if errors.Is(err, storage.ErrAmbiguousHash) {
		return "", err
	}

	if e.catalog != nil {
		rec, cerr := e.catalog.FindByName(ctx, ref)
		if cerr == nil {
			return types.Hash(rec.Root), nil
		}
		if !errors.Is(cerr, meta.ErrNotFound) {
			return "", cerr
		}
	}

	root, ierr := e.index.Lookup(ref)
	if ierr == nil {
		return root, nil
	}
	if !errors.Is(ierr, index.ErrNotFound) {
		return "", ierr
	}
	return "", fmt.Errorf("%w: %q", ErrUnresolved, ref)
}

// expand 完整哈希原样返回，否则按前缀在存储中查找
func (e *Engine) expand(ctx context.Context, ref string) (types.Hash, error) {
	if len(ref) == e.hasher.HexLen() && types.Hash(ref).IsValid() {
		return types.Hash(ref), nil
	}
	if err := storage.ValidatePrefix(types.HashPrefix(ref)); err != nil {
		return "", err
	}
	return e.store.ExpandHash(ctx, types.HashPrefix(ref))
}

// ReadTree 返回 root 下的有序块列表
func (e *Engine) ReadTree(ctx context.Context, ref string) ([]types.Hash, error) {
	root, err := e.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	return e.reader.ReadTree(ctx, root)
}

// Cat 还原 root (或名字) 对应的完整字节流
func (e *Engine) Cat(ctx context.Context, ref string, w io.Writer) error {
	defer e.metrics.ObserveSince(metrics.OpCat, time.Now())

	leaves, err := e.ReadTree(ctx, ref)
	if err != nil {
		return err
	}
	return e.blocks.Join(ctx, leaves, w)
}

// List 列出所有记录，优先使用 catalog
func (e *Engine) List(ctx context.Context) ([]index.Entry, error) {
	if e.catalog == nil {
		return e.index.Entries()
	}

	recs, err := e.catalog.List(ctx, 0)
	if err != nil {
		return nil, err
	}
	entries := make([]index.Entry, len(recs))
	for i, rec := range recs {
		entries[i] = index.Entry{Root: types.Hash(rec.Root), Name: rec.Name}
	}
	return entries, nil
}
