package block

import (
	"context"
	"fmt"
	"io"
	"time"

	"dbdb/pkg/metrics"
	"dbdb/pkg/types"
)

// flusher 由 bufio.Writer 等带缓冲的 Writer 实现
type flusher interface {
	Flush() error
}

// ReadBlock 根据哈希读取并解压一个块，返回有效部分
// 不存在时返回 storage.ErrNotFound (已包装)
func (m *Manager) ReadBlock(ctx context.Context, hash types.Hash) ([]byte, error) {
	rc, err := m.store.Get(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("failed to get block %s: %w", hash, err)
	}
	defer rc.Close()

	buf := make([]byte, m.blockSize)
	n, err := m.codec.Decode(rc, buf)
	if err != nil {
		return nil, fmt.Errorf("failed to decode block %s: %w", hash, err)
	}
	return buf[:n], nil
}

// Join 按顺序读取所有块并写入 w，最后 Flush
// 任何一个块缺失都会立即失败
func (m *Manager) Join(ctx context.Context, hashes []types.Hash, w io.Writer) error {
	defer m.metrics.ObserveSince(metrics.OpRead, time.Now())

	for i, h := range hashes {
		if err := ctx.Err(); err != nil {
			return err
		}

		data, err := m.ReadBlock(ctx, h)
		if err != nil {
			return fmt.Errorf("block %d: %w", i, err)
		}
		if _, err := w.Write(data); err != nil {
			return fmt.Errorf("failed to write block %d data: %w", i, err)
		}
		m.metrics.AddBlock(metrics.OpRead, len(data))
	}

	if f, ok := w.(flusher); ok {
		if err := f.Flush(); err != nil {
			return fmt.Errorf("failed to flush output: %w", err)
		}
	}
	return nil
}
