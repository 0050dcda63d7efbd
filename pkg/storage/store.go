package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"dbdb/pkg/types"
)

var (
	ErrNotFound      = errors.New("object not found")
	ErrAmbiguousHash = errors.New("ambiguous hash prefix")
	ErrInvalidHash   = errors.New("invalid hash")
	// ErrCorruptLayout 表示分片路径存在但不是目录，属于存储损坏或配置错误，不可恢复
	ErrCorruptLayout = errors.New("corrupt storage layout")
	// ErrObjectConflict 表示哈希位置上已有一个内容不同的对象
	// 块和节点共用一个命名空间，一个块的哈希可能正好等于某个节点的哈希
	ErrObjectConflict = errors.New("object exists with different content")
)

// MinPrefixLen 是 ExpandHash 接受的最短前缀
const MinPrefixLen = 4

// Writer 是一次对象写入
// 写入的内容在 Commit 之前对读者不可见；Discard 丢弃未提交的数据，
// 在 Commit 之后调用 Discard 是空操作，所以可以放心地 defer w.Discard()
type Writer interface {
	io.Writer
	Commit() error
	Discard() error
}

// Store defines the interface for a content-addressed storage backend.
// Implementations can be local disk, cloud storage, or an embedded KV store.
type Store interface {
	// Create 打开一个写入器，提交后对象出现在 hash 对应的位置
	Create(ctx context.Context, hash types.Hash) (Writer, error)

	// Get 根据 Hash 读取原始数据，不存在时返回 ErrNotFound
	// 返回 io.ReadCloser 而不是 []byte，调用者负责关闭
	Get(ctx context.Context, hash types.Hash) (io.ReadCloser, error)

	// Has 检查对象是否存在 (用于去重逻辑)
	Has(ctx context.Context, hash types.Hash) (bool, error)

	// ExpandHash 将短哈希扩展为完整哈希
	ExpandHash(ctx context.Context, prefix types.HashPrefix) (types.Hash, error)
}

// LeafCache 缓存 root -> 有序叶子列表，避免重复遍历整棵树
// 缓存是尽力而为的：读失败等同于未命中
type LeafCache interface {
	GetLeaves(ctx context.Context, root types.Hash) ([]types.Hash, bool)
	PutLeaves(ctx context.Context, root types.Hash, leaves []types.Hash)
}

// ValidateHash 检查 hash 能否安全地映射为存储路径/Key
// 只接受小写 hex，至少 3 个字符 (2 个分片 + 文件名)
func ValidateHash(h types.Hash) error {
	if len(h) < 3 {
		return fmt.Errorf("%w: %q is too short", ErrInvalidHash, h)
	}
	if !isHex(string(h)) {
		return fmt.Errorf("%w: %q is not lowercase hex", ErrInvalidHash, h)
	}
	return nil
}

// ValidatePrefix 检查短哈希
func ValidatePrefix(p types.HashPrefix) error {
	if len(p) < MinPrefixLen {
		return fmt.Errorf("%w: hash prefix too short (min %d)", ErrInvalidHash, MinPrefixLen)
	}
	if !isHex(string(p)) {
		return fmt.Errorf("%w: %q is not lowercase hex", ErrInvalidHash, p)
	}
	return nil
}

func isHex(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// ShardKey 返回 "aa/bbcc..." 形式的分片 Key
func ShardKey(h types.Hash) string {
	return h.Shard() + "/" + h.Rest()
}

// PutBytes 写入一段完整数据 (Create -> Write -> Commit)
func PutBytes(ctx context.Context, s Store, hash types.Hash, data []byte) error {
	w, err := s.Create(ctx, hash)
	if err != nil {
		return err
	}
	defer w.Discard()

	if _, err := w.Write(data); err != nil {
		return err
	}
	return w.Commit()
}

// ReadAll 读取完整对象并关闭
func ReadAll(ctx context.Context, s Store, hash types.Hash) ([]byte, error) {
	rc, err := s.Get(ctx, hash)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// BufferWriter 把数据攒在内存里，Commit 时一次性交给 flush
// 适用于 S3、Badger 这类只能整体 Put 的后端
type BufferWriter struct {
	buf   bytes.Buffer
	flush func([]byte) error
	done  bool
}

func NewBufferWriter(flush func([]byte) error) *BufferWriter {
	return &BufferWriter{flush: flush}
}

func (w *BufferWriter) Write(p []byte) (int, error) {
	if w.done {
		return 0, errors.New("write after commit or discard")
	}
	return w.buf.Write(p)
}

func (w *BufferWriter) Commit() error {
	if w.done {
		return errors.New("writer already finished")
	}
	w.done = true
	return w.flush(w.buf.Bytes())
}

func (w *BufferWriter) Discard() error {
	w.done = true
	w.buf.Reset()
	return nil
}
