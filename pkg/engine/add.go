package engine

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"dbdb/pkg/ignore"
	"dbdb/pkg/index"
	"dbdb/pkg/meta"
	"dbdb/pkg/metrics"
	"dbdb/pkg/types"

	"go.uber.org/zap"
)

// AddResult 是一次 add 的结果
type AddResult struct {
	Root   types.Hash
	Name   string
	Size   int64
	Blocks int
}

// countingReader 统计读过的字节数
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// Add 切块落盘、构建 Merkle 树，并把 (root, name) 追加到索引
func (e *Engine) Add(ctx context.Context, r io.Reader, name string) (*AddResult, error) {
	return e.add(ctx, r, name, nil)
}

// AddFile 添加一个本地文件，name 为空时使用文件名
func (e *Engine) AddFile(ctx context.Context, path, name string) (*AddResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	if name == "" {
		name = filepath.Base(path)
	}

	attrs := map[string]any{
		"source": path,
		"mode":   info.Mode().String(),
		"mtime":  info.ModTime().UTC().Format(time.RFC3339),
	}
	if abs, err := filepath.Abs(path); err == nil {
		attrs["source"] = abs
	}
	return e.add(ctx, f, name, attrs)
}

func (e *Engine) add(ctx context.Context, r io.Reader, name string, attrs map[string]any) (*AddResult, error) {
	defer e.metrics.ObserveSince(metrics.OpAdd, time.Now())

	// 名字非法时连块都不写
	if err := index.ValidateName(name); err != nil {
		return nil, err
	}

	cr := &countingReader{r: r}
	leaves, err := e.blocks.Split(ctx, cr, true)
	if err != nil {
		return nil, fmt.Errorf("failed to split %q: %w", name, err)
	}

	root, err := e.builder.Build(ctx, leaves)
	if err != nil {
		return nil, fmt.Errorf("failed to build tree for %q: %w", name, err)
	}

	if err := e.index.Record(root, name); err != nil {
		return nil, fmt.Errorf("failed to record %q: %w", name, err)
	}

	if e.catalog != nil {
		rec := &meta.FileRecord{
			Root:      root.String(),
			Name:      name,
			Size:      cr.n,
			Blocks:    len(leaves),
			BlockSize: e.blocks.BlockSize(),
			Hash:      e.hasher.Name(),
			Codec:     e.blocks.Codec().Name(),
		}
		if err := e.catalog.Record(ctx, rec, attrs); err != nil {
			return nil, err
		}
	}

	e.log.Info("file added",
		zap.String("name", name),
		zap.Stringer("root", root),
		zap.Int64("size", cr.n),
		zap.Int("blocks", len(leaves)))

	return &AddResult{Root: root, Name: name, Size: cr.n, Blocks: len(leaves)}, nil
}

// AddTree 递归添加目录下的所有普通文件
// 名字为相对 dir 的 slash 路径，matcher 命中的文件和目录被跳过
func (e *Engine) AddTree(ctx context.Context, dir string, matcher *ignore.Matcher) ([]AddResult, error) {
	results := make([]AddResult, 0)

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if matcher.Matches(rel + "/") {
				e.log.Debug("directory ignored", zap.String("path", rel))
				return filepath.SkipDir
			}
			return nil
		}
		if matcher.Matches(rel) {
			e.log.Debug("file ignored", zap.String("path", rel))
			return nil
		}
		// 跳过符号链接、设备文件等
		if !d.Type().IsRegular() {
			return nil
		}

		res, err := e.AddFile(ctx, path, rel)
		if err != nil {
			return err
		}
		results = append(results, *res)
		return nil
	})
	if err != nil {
		return nil, err
	}

	var total int64
	for _, r := range results {
		total += r.Size
	}
	e.log.Info("directory added",
		zap.String("dir", dir),
		zap.Int("files", len(results)),
		zap.String("size", FormatSize(total)))
	return results, nil
}
