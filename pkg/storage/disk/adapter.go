package disk

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"dbdb/pkg/storage"
	"dbdb/pkg/types"
)

// 临时文件前缀，ExpandHash 会跳过它们
const tempPrefix = ".tmp-"

// Adapter 实现了 storage.Store 接口
type Adapter struct {
	rootPath string // 比如: ./data/objects
}

// NewAdapter 创建一个新的磁盘存储适配器
func NewAdapter(root string) (*Adapter, error) {
	if err := ensureDir(root); err != nil {
		return nil, fmt.Errorf("failed to create root storage dir: %w", err)
	}
	return &Adapter{rootPath: root}, nil
}

// Root 返回 objects 根目录
func (s *Adapter) Root() string { return s.rootPath }

// layout 返回哈希对应的物理路径
// 策略：使用前 2 个字符作为子目录 (Sharding)
// Example: hash "aabbcc..." -> root/aa/bbcc...
func (s *Adapter) layout(hash types.Hash) (string, error) {
	if err := storage.ValidateHash(hash); err != nil {
		return "", err
	}
	return filepath.Join(s.rootPath, hash.Shard(), hash.Rest()), nil
}

// ensureDir 确保 dir 是一个目录
// 已存在的非目录文件属于布局损坏，直接失败，不尝试修复
func ensureDir(dir string) error {
	fi, err := os.Stat(dir)
	if err == nil {
		if !fi.IsDir() {
			return fmt.Errorf("%w: %s is not a directory", storage.ErrCorruptLayout, dir)
		}
		return nil
	}
	if !os.IsNotExist(err) {
		return err
	}
	return os.MkdirAll(dir, 0755)
}

// checkShard 在读路径上区分 "不存在" 和 "布局损坏"
func checkShard(dir string) error {
	fi, err := os.Stat(dir)
	if err == nil && !fi.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", storage.ErrCorruptLayout, dir)
	}
	return nil
}

func (s *Adapter) Create(ctx context.Context, hash types.Hash) (storage.Writer, error) {
	targetPath, err := s.layout(hash)
	if err != nil {
		return nil, err
	}

	// 1. 准备分片目录
	dir := filepath.Dir(targetPath)
	if err := ensureDir(dir); err != nil {
		return nil, err
	}

	// 2. 原子写入 (Atomic Write)
	// 先写到同目录下的临时文件，Commit 时再 Rename。
	// 这样保证要么文件不存在，要么文件是完整的。
	tempFile, err := os.CreateTemp(dir, tempPrefix+"*")
	if err != nil {
		return nil, err
	}
	return &fileWriter{f: tempFile, target: targetPath}, nil
}

type fileWriter struct {
	f      *os.File
	target string
	done   bool
}

func (w *fileWriter) Write(p []byte) (int, error) {
	return w.f.Write(p)
}

func (w *fileWriter) Commit() error {
	if w.done {
		return fmt.Errorf("writer for %s already finished", w.target)
	}
	w.done = true

	if err := w.f.Sync(); err != nil {
		w.f.Close()
		os.Remove(w.f.Name())
		return err
	}
	// 必须先关闭才能 Rename
	if err := w.f.Close(); err != nil {
		os.Remove(w.f.Name())
		return err
	}
	if err := os.Rename(w.f.Name(), w.target); err != nil {
		os.Remove(w.f.Name())
		return err
	}
	return nil
}

func (w *fileWriter) Discard() error {
	if w.done {
		return nil
	}
	w.done = true
	w.f.Close()
	return os.Remove(w.f.Name())
}

func (s *Adapter) Get(ctx context.Context, hash types.Hash) (io.ReadCloser, error) {
	targetPath, err := s.layout(hash)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(targetPath)
	if err == nil {
		return f, nil
	}
	if cerr := checkShard(filepath.Dir(targetPath)); cerr != nil {
		return nil, cerr
	}
	if os.IsNotExist(err) {
		return nil, storage.ErrNotFound
	}
	return nil, err
}

func (s *Adapter) Has(ctx context.Context, hash types.Hash) (bool, error) {
	targetPath, err := s.layout(hash)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(targetPath)
	if err == nil {
		return true, nil
	}
	if cerr := checkShard(filepath.Dir(targetPath)); cerr != nil {
		return false, cerr
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// ExpandHash 在分片目录里按前缀查找唯一匹配
func (s *Adapter) ExpandHash(ctx context.Context, prefix types.HashPrefix) (types.Hash, error) {
	if err := storage.ValidatePrefix(prefix); err != nil {
		return "", err
	}
	p := string(prefix)
	shard := filepath.Join(s.rootPath, p[:2])

	entries, err := os.ReadDir(shard)
	if os.IsNotExist(err) {
		return "", fmt.Errorf("%w: %s", storage.ErrNotFound, prefix)
	}
	if err != nil {
		if cerr := checkShard(shard); cerr != nil {
			return "", cerr
		}
		return "", err
	}

	var matches []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, tempPrefix) {
			continue
		}
		if strings.HasPrefix(name, p[2:]) {
			matches = append(matches, name)
		}
	}

	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%w: %s", storage.ErrNotFound, prefix)
	case 1:
		return types.Hash(p[:2] + matches[0]), nil
	default:
		return "", fmt.Errorf("%w: %s matches %d objects", storage.ErrAmbiguousHash, prefix, len(matches))
	}
}
