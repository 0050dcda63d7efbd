package index

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"dbdb/pkg/metrics"
	"dbdb/pkg/types"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	rootA = types.Hash("da39a3ee5e6b4b0d3255bfef95601890afd80709")
	rootB = types.Hash("2aae6c35c94fcfb415dbe95f408b9ce91ee846ed")
)

func TestIndex_AppendOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index")
	mt := metrics.New()
	idx := NewIndex(path, WithMetrics(mt))

	require.NoError(t, idx.Record(rootA, "a.txt"))
	require.NoError(t, idx.Record(rootA, "a.txt")) // 重复也要追加

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, string(rootA)+" a.txt\n"+string(rootA)+" a.txt\n", string(data))
	assert.Equal(t, 2.0, testutil.ToFloat64(mt.IndexRecords))

	// 之前的内容保持不变，只在末尾增加
	require.NoError(t, idx.Record(rootB, "b.txt"))
	data2, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, string(data)+string(rootB)+" b.txt\n", string(data2))
}

func TestIndex_RecordFailures(t *testing.T) {
	t.Run("Open fails", func(t *testing.T) {
		mt := metrics.New()
		idx := NewIndex(t.TempDir(), WithMetrics(mt)) // 路径是目录

		err := idx.Record(rootA, "a.txt")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to open index")
		assert.Equal(t, 0.0, testutil.ToFloat64(mt.IndexRecords))
	})

	t.Run("Write fails", func(t *testing.T) {
		if _, err := os.Stat("/dev/full"); err != nil {
			t.Skip("/dev/full not available")
		}
		mt := metrics.New()
		idx := NewIndex("/dev/full", WithMetrics(mt))

		err := idx.Record(rootA, "a.txt")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to append index")
		assert.Equal(t, 0.0, testutil.ToFloat64(mt.IndexRecords))
	})
}

func TestIndex_EntriesAndLookup(t *testing.T) {
	idx := NewIndex(filepath.Join(t.TempDir(), "index"))

	entries, err := idx.Entries()
	require.NoError(t, err)
	assert.Empty(t, entries)

	require.NoError(t, idx.Record(rootA, "my file.txt"))
	require.NoError(t, idx.Record(rootB, "other"))
	require.NoError(t, idx.Record(rootB, "my file.txt"))

	entries, err = idx.Entries()
	require.NoError(t, err)
	assert.Equal(t, []Entry{
		{Root: rootA, Name: "my file.txt"},
		{Root: rootB, Name: "other"},
		{Root: rootB, Name: "my file.txt"},
	}, entries)

	root, err := idx.Lookup("my file.txt")
	require.NoError(t, err)
	assert.Equal(t, rootB, root, "取最后一次记录")

	_, err = idx.Lookup("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestIndex_RejectsLineTerminators(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index")
	idx := NewIndex(path)

	for _, name := range []string{"a\nb", "a\rb", "\n"} {
		err := idx.Record(rootA, name)
		assert.ErrorIs(t, err, ErrInvalidName)
	}
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "被拒绝的记录不能创建文件")
}

func TestIndex_EmptyName(t *testing.T) {
	idx := NewIndex(filepath.Join(t.TempDir(), "index"))
	require.NoError(t, idx.Record(rootA, ""))

	entries, err := idx.Entries()
	require.NoError(t, err)
	assert.Equal(t, []Entry{{Root: rootA, Name: ""}}, entries)
}

func TestIndex_Concurrency(t *testing.T) {
	idx := NewIndex(filepath.Join(t.TempDir(), "index"))

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, idx.Record(rootA, "file"))
		}()
	}
	wg.Wait()

	entries, err := idx.Entries()
	require.NoError(t, err)
	assert.Len(t, entries, 20)
}
