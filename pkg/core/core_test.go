package core

import (
	"testing"

	"dbdb/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -----------------------------------------------------------------------------
// 1. Hash Provider
// -----------------------------------------------------------------------------

func TestHasher_KnownVectors(t *testing.T) {
	tests := []struct {
		algo string
		in   string
		want types.Hash
	}{
		{HashSHA1, "hello world", "2aae6c35c94fcfb415dbe95f408b9ce91ee846ed"},
		{HashSHA1, "", "da39a3ee5e6b4b0d3255bfef95601890afd80709"},
		{HashSHA256, "hello world", "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"},
		{HashSHA256, "", "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"},
	}
	for _, tt := range tests {
		t.Run(tt.algo+"/"+tt.in, func(t *testing.T) {
			h := mustNewHasher(t, tt.algo)
			assert.Equal(t, tt.want, h.Sum([]byte(tt.in)))
			assert.Equal(t, tt.want, h.SumString(tt.in))
		})
	}
}

func TestHasher_Determinism(t *testing.T) {
	for _, algo := range []string{HashSHA1, HashSHA256, HashBLAKE3} {
		h := mustNewHasher(t, algo)
		a := h.Sum([]byte("block-a"))
		assert.Equal(t, a, h.Sum([]byte("block-a")), "同样的数据必须得到同样的摘要")
		assert.NotEqual(t, a, h.Sum([]byte("block-b")))
		assert.Len(t, a.String(), h.HexLen())
		assert.True(t, a.IsValid())
	}
}

func TestHasher_SumPair(t *testing.T) {
	h := DefaultHasher()
	a, b := mockHash("a"), mockHash("b")

	// hash(a || b)，拼接的是 Hex 字符串
	assert.Equal(t, h.SumString(string(a)+string(b)), h.SumPair(a, b))
	assert.NotEqual(t, h.SumPair(a, b), h.SumPair(b, a), "顺序必须影响父节点身份")
}

func TestNewHasher_Unknown(t *testing.T) {
	_, err := NewHasher("md5")
	assert.Error(t, err)

	h, err := NewHasher("")
	require.NoError(t, err)
	assert.Equal(t, HashSHA1, h.Name())
}

// -----------------------------------------------------------------------------
// 2. 树节点编码
// -----------------------------------------------------------------------------

func TestNode_PairEncoding(t *testing.T) {
	h := DefaultHasher()
	a, b := mockHash("a"), mockHash("b")

	n := NewPairNode(h, TypeBlock, a, b)
	assert.Equal(t, h.SumPair(a, b), n.ID())
	assert.Equal(t, "block "+string(a)+"\nblock "+string(b)+"\n", string(n.Bytes()))
	assert.Equal(t, TypeTree, n.Type())
}

func TestNode_SingleIsRehashed(t *testing.T) {
	h := DefaultHasher()
	c := mockHash("only")

	n := NewSingleNode(h, TypeTree, c)
	assert.Equal(t, "tree "+string(c)+"\n", string(n.Bytes()))
	assert.Equal(t, h.SumString(string(c)), n.ID())
	assert.NotEqual(t, c, n.ID(), "Single 节点不能直接透传子哈希")
}

func TestNode_Empty(t *testing.T) {
	h := DefaultHasher()
	n := NewEmptyNode(h)
	assert.Equal(t, h.EmptyRoot(), n.ID())
	assert.Empty(t, n.Bytes())
	assert.Empty(t, n.Entries)
}

func TestParseNode_RoundTrip(t *testing.T) {
	h := DefaultHasher()
	orig := NewPairNode(h, TypeTree, mockHash("x"), mockHash("y"))

	parsed, err := ParseNode(orig.ID(), orig.Bytes())
	require.NoError(t, err)
	assert.Equal(t, orig.Entries, parsed.Entries)
	assert.Equal(t, orig.ID(), parsed.ID())
}

func TestParseNode_Malformed(t *testing.T) {
	id := mockHash("bad")

	_, err := ParseNode(id, []byte("blob abcdef\n"))
	assert.ErrorIs(t, err, ErrMalformedNode)

	_, err = ParseNode(id, []byte("block\n"))
	assert.ErrorIs(t, err, ErrMalformedNode)

	// 没有结尾换行、CRLF 都可以接受
	n, err := ParseNode(id, []byte("block aa\r\ntree bb"))
	require.NoError(t, err)
	assert.Equal(t, []Entry{{TypeBlock, "aa"}, {TypeTree, "bb"}}, n.Entries)
}

// -----------------------------------------------------------------------------
// 3. 叶子列表 CBOR
// -----------------------------------------------------------------------------

func TestLeaves_RoundTrip(t *testing.T) {
	root := mockHash("root")
	leaves := []types.Hash{mockHash("1"), mockHash("2"), mockHash("3")}

	data, err := EncodeLeaves(root, leaves)
	require.NoError(t, err)

	got, err := DecodeLeaves(root, data)
	require.NoError(t, err)
	assert.Equal(t, leaves, got)

	_, err = DecodeLeaves(mockHash("other"), data)
	assert.Error(t, err, "root 不匹配必须报错")
}

func TestBlock_Identity(t *testing.T) {
	h := DefaultHasher()
	b := NewBlock(h, []byte("hello world"))
	assert.Equal(t, types.Hash("2aae6c35c94fcfb415dbe95f408b9ce91ee846ed"), b.ID())
	assert.Equal(t, TypeBlock, b.Type())
	assert.Equal(t, int64(11), b.Size())
}
