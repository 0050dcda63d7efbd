package core

import (
	"fmt"

	"dbdb/pkg/types"

	"github.com/fxamacker/cbor/v2"
)

// 叶子列表缓存使用确定性 CBOR 编码
var encOptions = cbor.EncOptions{
	// 强制 Map Key 排序 (Canonical)
	Sort: cbor.SortCanonical,
	// 禁止不定长编码，数组必须在头部声明长度
	IndefLength: cbor.IndefLengthForbidden,
}

var em, _ = encOptions.EncMode()

var decOptions = cbor.DecOptions{
	// 防 DoS：一个 10GB 文件按 8KB 切也就 130 万块
	MaxArrayElements: 4 << 20,
	MaxMapPairs:      16,
	MaxNestedLevels:  8,

	IndefLength: cbor.IndefLengthForbidden,
	DupMapKey:   cbor.DupMapKeyEnforcedAPF,
}

var dm, _ = decOptions.DecMode()

// LeafList 是一棵树展开后的有序块列表
type LeafList struct {
	Root   types.Hash `cbor:"r"`
	Leaves []string   `cbor:"l"`
}

// EncodeLeaves 把 root -> leaves 的映射编码为 CBOR
func EncodeLeaves(root types.Hash, leaves []types.Hash) ([]byte, error) {
	ll := LeafList{Root: root, Leaves: types.Hashes(leaves).Strings()}
	data, err := em.Marshal(ll)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal leaf list: %w", err)
	}
	return data, nil
}

// DecodeLeaves 解码叶子列表，并校验它确实属于 root
func DecodeLeaves(root types.Hash, data []byte) ([]types.Hash, error) {
	var ll LeafList
	if err := dm.Unmarshal(data, &ll); err != nil {
		return nil, fmt.Errorf("failed to decode leaf list: %w", err)
	}
	if ll.Root != root {
		return nil, fmt.Errorf("leaf list root mismatch: want %s, got %s", root, ll.Root)
	}
	leaves := make([]types.Hash, len(ll.Leaves))
	for i, s := range ll.Leaves {
		leaves[i] = types.Hash(s)
	}
	return leaves, nil
}
