package disk

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"dbdb/pkg/storage"
	"dbdb/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiskAdapter(t *testing.T) {
	// 1. 创建临时测试目录
	tmpDir := t.TempDir()
	store, err := NewAdapter(tmpDir)
	require.NoError(t, err)

	ctx := context.Background()

	// sha1("hello world")
	hash := types.Hash("2aae6c35c94fcfb415dbe95f408b9ce91ee846ed")

	// 2. 测试写入
	err = storage.PutBytes(ctx, store, hash, []byte("hello world"))
	assert.NoError(t, err)

	// 验证文件是否真的存在于物理磁盘
	// 路径应该是 tmpDir/2a/ae6c35...
	expectedPath := filepath.Join(tmpDir, "2a", "ae6c35c94fcfb415dbe95f408b9ce91ee846ed")
	_, err = os.Stat(expectedPath)
	assert.NoError(t, err, "文件应该存在于 Sharding 目录中")

	// 3. 测试 Has
	exists, err := store.Has(ctx, hash)
	assert.NoError(t, err)
	assert.True(t, exists)

	exists, err = store.Has(ctx, "ffffffff") // 不存在的
	assert.NoError(t, err)
	assert.False(t, exists)

	// 4. 测试 Get
	reader, err := store.Get(ctx, hash)
	require.NoError(t, err)
	defer reader.Close()

	content, err := io.ReadAll(reader)
	assert.NoError(t, err)
	assert.Equal(t, []byte("hello world"), content)

	// 5. 不存在的对象
	_, err = store.Get(ctx, "ffffffff")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDiskAdapter_UncommittedIsInvisible(t *testing.T) {
	tmpDir := t.TempDir()
	store, err := NewAdapter(tmpDir)
	require.NoError(t, err)
	ctx := context.Background()

	hash := types.Hash("aaaa000000000000000000000000000000000000")
	w, err := store.Create(ctx, hash)
	require.NoError(t, err)

	_, err = w.Write([]byte("partial"))
	require.NoError(t, err)

	// 提交之前，最终路径上不能出现半截文件
	exists, err := store.Has(ctx, hash)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, w.Discard())

	// Discard 之后临时文件也被清理
	entries, err := os.ReadDir(filepath.Join(tmpDir, "aa"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDiskAdapter_Overwrite(t *testing.T) {
	store, err := NewAdapter(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	hash := types.Hash("bbbb000000000000000000000000000000000000")
	require.NoError(t, storage.PutBytes(ctx, store, hash, []byte("v1")))
	require.NoError(t, storage.PutBytes(ctx, store, hash, []byte("v1")))

	data, err := storage.ReadAll(ctx, store, hash)
	require.NoError(t, err)
	assert.Equal(t, "v1", string(data))
}

func TestDiskAdapter_CorruptLayout(t *testing.T) {
	tmpDir := t.TempDir()
	store, err := NewAdapter(tmpDir)
	require.NoError(t, err)
	ctx := context.Background()

	// 在分片目录的位置放一个普通文件
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "cc"), []byte("oops"), 0644))
	hash := types.Hash("cccc000000000000000000000000000000000000")

	_, err = store.Create(ctx, hash)
	assert.ErrorIs(t, err, storage.ErrCorruptLayout)

	_, err = store.Get(ctx, hash)
	assert.ErrorIs(t, err, storage.ErrCorruptLayout)

	_, err = store.Has(ctx, hash)
	assert.ErrorIs(t, err, storage.ErrCorruptLayout)

	// objects 根目录本身是文件
	rootFile := filepath.Join(t.TempDir(), "objects")
	require.NoError(t, os.WriteFile(rootFile, nil, 0644))
	_, err = NewAdapter(rootFile)
	assert.ErrorIs(t, err, storage.ErrCorruptLayout)
}

func TestDiskAdapter_InvalidHash(t *testing.T) {
	store, err := NewAdapter(t.TempDir())
	require.NoError(t, err)

	_, err = store.Get(context.Background(), "../../etc/passwd")
	assert.ErrorIs(t, err, storage.ErrInvalidHash)
}

func TestDiskAdapter_ExpandHash(t *testing.T) {
	tmpDir := t.TempDir()
	store, err := NewAdapter(tmpDir)
	require.NoError(t, err)
	ctx := context.Background()

	// 准备数据: 构造两个 Hash 前缀相似的对象
	hashA := types.Hash("1111aaaa00000000000000000000000000000000")
	hashB := types.Hash("1111bbbb00000000000000000000000000000000")
	hashC := types.Hash("2222cccc00000000000000000000000000000000")

	require.NoError(t, storage.PutBytes(ctx, store, hashA, []byte("A")))
	require.NoError(t, storage.PutBytes(ctx, store, hashB, []byte("B")))
	require.NoError(t, storage.PutBytes(ctx, store, hashC, []byte("C")))

	tests := []struct {
		name      string
		input     string
		wantHash  types.Hash
		wantErr   bool
		errString string // 可选，用于匹配部分错误信息
	}{
		{"Exact match", string(hashC), hashC, false, ""},
		{"Unique prefix (4 chars)", "2222", hashC, false, ""},
		{"Unique prefix (long)", "2222cccc", hashC, false, ""},
		{"Ambiguous prefix", "1111", "", true, "ambiguous"}, // 1111 同时匹配 A 和 B
		{"Not found", "ffff", "", true, "not found"},
		{"Too short", "123", "", true, "too short"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.ExpandHash(ctx, types.HashPrefix(tt.input))
			if tt.wantErr {
				assert.Error(t, err)
				if tt.errString != "" {
					assert.Contains(t, err.Error(), tt.errString)
				}
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.wantHash, got)
			}
		})
	}
}
