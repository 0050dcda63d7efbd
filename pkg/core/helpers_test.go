package core

import (
	"testing"

	"dbdb/pkg/types"

	"github.com/stretchr/testify/require"
)

// -----------------------------------------------------------------------------
// 辅助工具
// -----------------------------------------------------------------------------

// mockHash 生成一个合法的 SHA-1 Hex 字符串 (40 字符)
func mockHash(input string) types.Hash {
	return DefaultHasher().Sum([]byte(input))
}

func mustNewHasher(t *testing.T, name string) *Hasher {
	t.Helper()
	h, err := NewHasher(name)
	require.NoError(t, err)
	return h
}
