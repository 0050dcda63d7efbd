// pkg/types/common.go
package types

// Hash 代表对象的唯一标识符 (小写 Hex 字符串)
// 这是一个"值对象"，应当是不可变的。
// 长度由仓库的哈希算法决定：sha1 为 40，sha256/blake3 为 64。
type Hash string

func (h Hash) String() string { return string(h) }

func (h Hash) IsZero() bool { return h == "" }

// IsValid 检查长度和字符集 (只接受小写 hex)
func (h Hash) IsValid() bool {
	if len(h) != 40 && len(h) != 64 {
		return false
	}
	for i := 0; i < len(h); i++ {
		c := h[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// Shard 返回分片目录名 (前 2 个字符)
func (h Hash) Shard() string { return string(h[:2]) }

// Rest 返回分片目录内的文件名
func (h Hash) Rest() string { return string(h[2:]) }

// HashPrefix 是用户输入的短哈希，需要通过 Store.ExpandHash 扩展
type HashPrefix string

func (p HashPrefix) String() string { return string(p) }

// Hashes 是一个有序的 Hash 列表 (顺序即文件中块的顺序)
type Hashes []Hash

func (hs Hashes) Strings() []string {
	out := make([]string, len(hs))
	for i, h := range hs {
		out[i] = string(h)
	}
	return out
}
