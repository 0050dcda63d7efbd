package core

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"dbdb/pkg/types"
)

var ErrMalformedNode = errors.New("malformed tree node")

// Entry 是树节点中的一行: "{label} {hash}"
type Entry struct {
	Type ObjectType
	Hash types.Hash
}

func (e Entry) String() string {
	return string(e.Type) + " " + string(e.Hash)
}

// Node 是持久化的 Merkle 树节点 (纯文本)
//
//	Pair:   "block c1\nblock c2\n"   ID = SumPair(c1, c2)
//	Single: "tree c\n"               ID = SumString(c)
//	Empty:  ""                       ID = SumString("")
type Node struct {
	hash     types.Hash
	rawBytes []byte

	Entries []Entry
}

// NewPairNode 为两个相邻的子节点创建父节点
func NewPairNode(h *Hasher, label ObjectType, left, right types.Hash) *Node {
	return newNode(h.SumPair(left, right), []Entry{
		{Type: label, Hash: left},
		{Type: label, Hash: right},
	})
}

// NewSingleNode 为落单的最后一个元素创建节点
// 注意：ID 是对子哈希再做一次哈希，不能直接透传子哈希
func NewSingleNode(h *Hasher, label ObjectType, child types.Hash) *Node {
	return newNode(h.SumString(string(child)), []Entry{
		{Type: label, Hash: child},
	})
}

// NewEmptyNode 是空文件的根节点
func NewEmptyNode(h *Hasher) *Node {
	return newNode(h.EmptyRoot(), nil)
}

func newNode(id types.Hash, entries []Entry) *Node {
	var buf bytes.Buffer
	for _, e := range entries {
		buf.WriteString(e.String())
		buf.WriteByte('\n')
	}
	return &Node{
		hash:     id,
		rawBytes: buf.Bytes(),
		Entries:  entries,
	}
}

func (n *Node) Type() ObjectType { return TypeTree }
func (n *Node) ID() types.Hash   { return n.hash }
func (n *Node) Bytes() []byte    { return n.rawBytes }

// ParseNode 解析节点文件内容
// 空行被忽略，未知标签或缺少哈希的行返回 ErrMalformedNode
func ParseNode(id types.Hash, data []byte) (*Node, error) {
	var entries []Entry
	for i, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSuffix(line, "\r")
		if line == "" {
			continue
		}
		label, hash, ok := strings.Cut(line, " ")
		if !ok || hash == "" {
			return nil, fmt.Errorf("%w: %s line %d: %q", ErrMalformedNode, id, i+1, line)
		}
		t := ObjectType(label)
		if t != TypeBlock && t != TypeTree {
			return nil, fmt.Errorf("%w: %s line %d: unknown label %q", ErrMalformedNode, id, i+1, label)
		}
		entries = append(entries, Entry{Type: t, Hash: types.Hash(hash)})
	}
	return &Node{hash: id, rawBytes: data, Entries: entries}, nil
}
