package core

import (
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"

	"dbdb/pkg/types"

	"github.com/zeebo/blake3"
)

// 支持的哈希算法名称
const (
	HashSHA1   = "sha1"
	HashSHA256 = "sha256"
	HashBLAKE3 = "blake3"
)

// Hasher 是仓库的 Hash Provider
// 一个仓库只能使用一种算法：摘要长度决定了分片目录的宽度，切换算法等于换了一个新仓库
type Hasher struct {
	name  string
	newFn func() hash.Hash
}

// NewHasher 根据名称创建 Hasher，未知名称直接报错
func NewHasher(name string) (*Hasher, error) {
	switch name {
	case HashSHA1, "":
		return &Hasher{name: HashSHA1, newFn: sha1.New}, nil
	case HashSHA256:
		return &Hasher{name: HashSHA256, newFn: sha256.New}, nil
	case HashBLAKE3:
		return &Hasher{name: HashBLAKE3, newFn: func() hash.Hash { return blake3.New() }}, nil
	default:
		return nil, fmt.Errorf("unsupported hash algorithm: %q", name)
	}
}

// DefaultHasher 返回 SHA-1 Hasher (与已有的 objects 目录布局兼容)
func DefaultHasher() *Hasher {
	h, _ := NewHasher(HashSHA1)
	return h
}

func (h *Hasher) Name() string { return h.name }

// HexLen 返回摘要的 Hex 长度
func (h *Hasher) HexLen() int { return h.newFn().Size() * 2 }

// Sum 计算原始数据块的 Hash
func (h *Hasher) Sum(data []byte) types.Hash {
	d := h.newFn()
	d.Write(data)
	return types.Hash(hex.EncodeToString(d.Sum(nil)))
}

// SumString 把字符串当作字节序列求 Hash
// Single 节点的身份就是 SumString(child)，而不是 child 本身
func (h *Hasher) SumString(s string) types.Hash {
	return h.Sum([]byte(s))
}

// SumPair 计算 hash(a || b)，a 和 b 都是 Hex 字符串 (不是解码后的字节)
func (h *Hasher) SumPair(a, b types.Hash) types.Hash {
	d := h.newFn()
	d.Write([]byte(a))
	d.Write([]byte(b))
	return types.Hash(hex.EncodeToString(d.Sum(nil)))
}

// EmptyRoot 是空文件的根：一个没有任何条目的树节点
func (h *Hasher) EmptyRoot() types.Hash {
	return h.SumString("")
}
