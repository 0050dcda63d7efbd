package core

import "dbdb/pkg/types"

// ObjectType 定义了仓库中的对象类型
// 同时也是树节点每一行的标签 ("block h" / "tree h")
type ObjectType string

const (
	TypeBlock ObjectType = "block" // 原始数据块 (叶子)
	TypeTree  ObjectType = "tree"  // Merkle 树节点
)

func (t ObjectType) String() string { return string(t) }

// Object 是所有可持久化对象的通用接口
type Object interface {
	// Type 返回对象类型
	Type() ObjectType

	// ID 返回对象的哈希值
	ID() types.Hash

	// Bytes 返回对象的原始数据
	// 对 Block 来说是未压缩的数据，压缩由 Codec 在写入时完成
	Bytes() []byte
}
