package block

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"dbdb/pkg/core"
	"dbdb/pkg/metrics"
	"dbdb/pkg/storage"
	"dbdb/pkg/types"

	"go.uber.org/zap"
)

// Split 按固定大小把输入切成块，返回有序的块哈希列表
// 切点只由偏移量决定 (offset % blockSize)，不看内容。
// persist 为 true 时，每个块经过 Codec 压缩后写入 Store；已存在的块直接跳过。
func (m *Manager) Split(ctx context.Context, r io.Reader, persist bool) ([]types.Hash, error) {
	defer m.metrics.ObserveSince(metrics.OpSplit, time.Now())

	buf := make([]byte, m.blockSize)
	hashes := make([]types.Hash, 0)
	var total int64

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// ReadFull 保证除最后一块外每块都是满的，
		// 否则管道等短读会让切点漂移，哈希也跟着变
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			blk := core.NewBlock(m.hasher, buf[:n])
			if persist {
				if werr := m.writeBlock(ctx, blk); werr != nil {
					return nil, fmt.Errorf("failed to store block %d: %w", len(hashes), werr)
				}
			}
			hashes = append(hashes, blk.ID())
			total += int64(n)
			m.metrics.AddBlock(metrics.OpSplit, n)
		}

		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read input: %w", err)
		}
	}

	m.log.Debug("split finished",
		zap.Int("blocks", len(hashes)),
		zap.Int64("bytes", total),
		zap.Bool("persist", persist))
	return hashes, nil
}

// writeBlock 压缩并写入一个块
// 已存在且解出来正是这个块就不再重写
func (m *Manager) writeBlock(ctx context.Context, blk *core.Block) error {
	exists, err := m.store.Has(ctx, blk.ID())
	if err != nil {
		return err
	}
	if exists {
		err := m.checkExisting(ctx, blk)
		if err == nil {
			m.metrics.SkipBlock()
			m.log.Debug("block exists, skipping", zap.Stringer("hash", blk.ID()))
			return nil
		}
		// 缓存说有、后端实际没有: 照常写入
		if !errors.Is(err, storage.ErrNotFound) {
			return err
		}
		m.log.Warn("block reported present but missing, rewriting", zap.Stringer("hash", blk.ID()))
	}

	w, err := m.store.Create(ctx, blk.ID())
	if err != nil {
		return err
	}
	// Commit 之后 Discard 是空操作；任何错误路径都不会留下半截对象
	defer w.Discard()

	if err := m.codec.Encode(w, blk.Bytes()); err != nil {
		return fmt.Errorf("%s encode: %w", m.codec.Name(), err)
	}
	if err := w.Commit(); err != nil {
		return err
	}

	m.log.Debug("block written", zap.Stringer("hash", blk.ID()), zap.Int64("size", blk.Size()))
	return nil
}

// checkExisting 确认 blk.ID() 位置上的对象解压后就是 blk
func (m *Manager) checkExisting(ctx context.Context, blk *core.Block) error {
	data, err := m.ReadBlock(ctx, blk.ID())
	if errors.Is(err, storage.ErrNotFound) {
		return err
	}
	if err != nil {
		return fmt.Errorf("%w: %s is not a readable block: %v", storage.ErrObjectConflict, blk.ID(), err)
	}
	if !bytes.Equal(data, blk.Bytes()) {
		return fmt.Errorf("%w: block %s", storage.ErrObjectConflict, blk.ID())
	}
	return nil
}
