package block

import (
	"bytes"
	"context"
	"crypto/rand"
	"os"
	"path/filepath"
	"testing"
	"testing/iotest"

	"dbdb/pkg/compress"
	"dbdb/pkg/core"
	"dbdb/pkg/metrics"
	"dbdb/pkg/storage"
	"dbdb/pkg/storage/disk"
	"dbdb/pkg/types"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const testBlockSize = 1024

func newTestManager(t *testing.T, opts ...Option) (*Manager, *disk.Adapter, string) {
	t.Helper()
	tmpDir := t.TempDir()
	store, err := disk.NewAdapter(tmpDir)
	require.NoError(t, err)

	opts = append([]Option{WithBlockSize(testBlockSize), WithLogger(zaptest.NewLogger(t))}, opts...)
	return NewManager(store, opts...), store, tmpDir
}

func randomBytes(t *testing.T, n int) []byte {
	t.Helper()
	b := make([]byte, n)
	_, err := rand.Read(b)
	require.NoError(t, err)
	return b
}

func TestSplit_ChunkCount(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		length int
		want   int
	}{
		{"Empty", 0, 0},
		{"One byte", 1, 1},
		{"Just under one block", testBlockSize - 1, 1},
		{"Exactly one block", testBlockSize, 1},
		{"One block plus one", testBlockSize + 1, 2},
		{"Exactly two blocks", 2 * testBlockSize, 2},
		{"Several plus remainder", 3*testBlockSize + 5, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := randomBytes(t, tt.length)
			hashes, err := m.Split(ctx, bytes.NewReader(data), false)
			require.NoError(t, err)
			assert.Len(t, hashes, tt.want)

			// 每块的哈希等于对应偏移区间的哈希
			for i, h := range hashes {
				end := min((i+1)*testBlockSize, len(data))
				assert.Equal(t, core.DefaultHasher().Sum(data[i*testBlockSize:end]), h, "block %d", i)
			}
		})
	}
}

func TestSplit_ShortReadsKeepBoundaries(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()
	data := randomBytes(t, 5*testBlockSize+17)

	want, err := m.Split(ctx, bytes.NewReader(data), false)
	require.NoError(t, err)

	// 一次只吐一个字节的 Reader，切点不能漂移
	got, err := m.Split(ctx, iotest.OneByteReader(bytes.NewReader(data)), false)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSplit_NoPersist(t *testing.T) {
	m, store, _ := newTestManager(t)
	ctx := context.Background()

	hashes, err := m.Split(ctx, bytes.NewReader([]byte("hello world")), false)
	require.NoError(t, err)
	require.Len(t, hashes, 1)

	exists, err := store.Has(ctx, hashes[0])
	require.NoError(t, err)
	assert.False(t, exists, "persist=false 不能写盘")
}

func TestSplit_HelloWorld(t *testing.T) {
	m, _, tmpDir := newTestManager(t)
	ctx := context.Background()

	hashes, err := m.Split(ctx, bytes.NewReader([]byte("hello world")), true)
	require.NoError(t, err)
	require.Equal(t, []types.Hash{"2aae6c35c94fcfb415dbe95f408b9ce91ee846ed"}, hashes)

	// 对象落在 2a/ae6c... 且是压缩后的形式
	_, err = os.Stat(filepath.Join(tmpDir, "2a", "ae6c35c94fcfb415dbe95f408b9ce91ee846ed"))
	require.NoError(t, err)

	data, err := m.ReadBlock(ctx, hashes[0])
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))

	var out bytes.Buffer
	require.NoError(t, m.Join(ctx, hashes, &out))
	assert.Equal(t, "hello world", out.String())
}

func TestSplit_Idempotent(t *testing.T) {
	mt := metrics.New()
	m, store, _ := newTestManager(t, WithMetrics(mt))
	ctx := context.Background()
	data := randomBytes(t, 2*testBlockSize)

	first, err := m.Split(ctx, bytes.NewReader(data), true)
	require.NoError(t, err)
	stored1, err := storage.ReadAll(ctx, store, first[0])
	require.NoError(t, err)

	second, err := m.Split(ctx, bytes.NewReader(data), true)
	require.NoError(t, err)
	stored2, err := storage.ReadAll(ctx, store, second[0])
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, stored1, stored2, "重复写入必须得到字节一致的对象")
	assert.Equal(t, 2.0, testutil.ToFloat64(mt.BlocksSkipped))
	assert.Equal(t, 4.0, testutil.ToFloat64(mt.Blocks.WithLabelValues(metrics.OpSplit)))
}

func TestSplit_ExistingObjectConflict(t *testing.T) {
	m, store, _ := newTestManager(t)
	ctx := context.Background()
	data := []byte("some block content")
	h := m.Hasher().Sum(data)

	// 同一个哈希位置上已经有一个不是这个块的对象
	require.NoError(t, storage.PutBytes(ctx, store, h, []byte("block "+string(h)+"\n")))

	_, err := m.Split(ctx, bytes.NewReader(data), true)
	assert.ErrorIs(t, err, storage.ErrObjectConflict)
}

// staleStore 的 Has 总是返回 true，模拟缓存里残留的存在标记
type staleStore struct {
	*disk.Adapter
}

func (staleStore) Has(context.Context, types.Hash) (bool, error) { return true, nil }

func TestSplit_RewritesWhenReportedPresentButMissing(t *testing.T) {
	_, store, _ := newTestManager(t)
	m := NewManager(staleStore{store}, WithBlockSize(testBlockSize), WithLogger(zaptest.NewLogger(t)))
	ctx := context.Background()
	data := randomBytes(t, testBlockSize/2)

	hashes, err := m.Split(ctx, bytes.NewReader(data), true)
	require.NoError(t, err)
	require.Len(t, hashes, 1)

	got, err := m.ReadBlock(ctx, hashes[0])
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestJoin_RoundTrip_AllCodecs(t *testing.T) {
	data := randomBytes(t, 7*testBlockSize+333)

	for _, name := range compress.Names() {
		t.Run(name, func(t *testing.T) {
			codec, err := compress.Lookup(name)
			require.NoError(t, err)
			m, _, _ := newTestManager(t, WithCodec(codec))
			ctx := context.Background()

			hashes, err := m.Split(ctx, bytes.NewReader(data), true)
			require.NoError(t, err)

			var out bytes.Buffer
			require.NoError(t, m.Join(ctx, hashes, &out))
			assert.True(t, bytes.Equal(data, out.Bytes()), "数据必须完美还原")
		})
	}
}

func TestJoin_MissingBlock(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	hashes, err := m.Split(ctx, bytes.NewReader([]byte("present")), true)
	require.NoError(t, err)
	hashes = append(hashes, core.DefaultHasher().Sum([]byte("missing")))

	var out bytes.Buffer
	err = m.Join(ctx, hashes, &out)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.Contains(t, err.Error(), "block 1")
}

func TestReadBlock_Corrupted(t *testing.T) {
	m, store, _ := newTestManager(t)
	ctx := context.Background()

	// 直接写入未压缩的垃圾数据
	h := core.DefaultHasher().Sum([]byte("garbage"))
	require.NoError(t, storage.PutBytes(ctx, store, h, []byte("not snappy at all")))

	_, err := m.ReadBlock(ctx, h)
	assert.ErrorIs(t, err, compress.ErrDecode)
}

type flushRecorder struct {
	bytes.Buffer
	flushed int
}

func (f *flushRecorder) Flush() error {
	f.flushed++
	return nil
}

func TestJoin_Flushes(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	hashes, err := m.Split(ctx, bytes.NewReader(randomBytes(t, 3000)), true)
	require.NoError(t, err)

	var out flushRecorder
	require.NoError(t, m.Join(ctx, hashes, &out))
	assert.Equal(t, 1, out.flushed, "写完最后一块之后 Flush 一次")
	assert.Equal(t, 3000, out.Len())
}
