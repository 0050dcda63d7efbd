package core

import "dbdb/pkg/types"

// DefaultBlockSize 是固定切块的大小
const DefaultBlockSize = 8 * 1024

// Block 是对一段连续字节的临时视图
// 只在 split/join 的过程中存在，data 归调用者所有
type Block struct {
	hash types.Hash
	data []byte
}

func NewBlock(h *Hasher, data []byte) *Block {
	return &Block{
		hash: h.Sum(data),
		data: data,
	}
}

func (b *Block) Type() ObjectType { return TypeBlock }
func (b *Block) ID() types.Hash   { return b.hash }
func (b *Block) Bytes() []byte    { return b.data }
func (b *Block) Size() int64      { return int64(len(b.data)) }
