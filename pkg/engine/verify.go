package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dbdb/pkg/core"
	"dbdb/pkg/merkle"
	"dbdb/pkg/metrics"
	"dbdb/pkg/storage"
	"dbdb/pkg/types"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Problem 是 Verify 发现的一处损坏
type Problem struct {
	Hash   types.Hash
	Kind   string // missing-node, missing-block, corrupt-node, corrupt-block
	Detail string
}

func (p Problem) String() string {
	if p.Detail == "" {
		return p.Kind + " " + string(p.Hash)
	}
	return p.Kind + " " + string(p.Hash) + ": " + p.Detail
}

const (
	MissingNode  = "missing-node"
	MissingBlock = "missing-block"
	CorruptNode  = "corrupt-node"
	CorruptBlock = "corrupt-block"
)

// Report 是一次校验的结果
type Report struct {
	Root     types.Hash
	Nodes    int
	Blocks   int
	Problems []Problem
}

func (r *Report) OK() bool { return len(r.Problems) == 0 }

// Verify 遍历整棵树：重算每个节点的哈希，并发重读每个块并重算摘要
// 返回的 error 只表示校验无法进行 (root 不存在、ctx 取消等)，损坏记录在 Report 里
func (e *Engine) Verify(ctx context.Context, ref string) (*Report, error) {
	defer e.metrics.ObserveSince(metrics.OpVerify, time.Now())

	root, err := e.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}

	report := &Report{Root: root, Problems: make([]Problem, 0)}
	leaves := make([]types.Hash, 0)

	err = e.reader.Walk(ctx, root, func(step merkle.Step) error {
		if step.Err != nil {
			report.Problems = append(report.Problems, Problem{Hash: step.ID, Kind: MissingNode})
			return nil
		}
		report.Nodes++

		want, err := merkle.ExpectedID(e.hasher, step.Node)
		if err != nil {
			report.Problems = append(report.Problems, Problem{Hash: step.ID, Kind: CorruptNode, Detail: err.Error()})
		} else if want != step.ID {
			report.Problems = append(report.Problems, Problem{
				Hash: step.ID, Kind: CorruptNode, Detail: "content hashes to " + string(want),
			})
		}

		for _, entry := range step.Node.Entries {
			if entry.Type == core.TypeBlock {
				leaves = append(leaves, entry.Hash)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	report.Blocks = len(leaves)

	blockProblems, err := e.verifyBlocks(ctx, leaves)
	if err != nil {
		return nil, err
	}
	report.Problems = append(report.Problems, blockProblems...)

	e.log.Info("verify finished",
		zap.Stringer("root", root),
		zap.Int("nodes", report.Nodes),
		zap.Int("blocks", report.Blocks),
		zap.Int("problems", len(report.Problems)))
	return report, nil
}

// verifyBlocks 有界并发地重读所有块，结果按块顺序返回
func (e *Engine) verifyBlocks(ctx context.Context, leaves []types.Hash) ([]Problem, error) {
	found := make([]*Problem, len(leaves))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	// 同一个块可能出现多次，只校验一次
	seen := make(map[types.Hash]bool, len(leaves))

	for i, h := range leaves {
		if seen[h] {
			continue
		}
		seen[h] = true

		g.Go(func() error {
			data, err := e.blocks.ReadBlock(gctx, h)
			switch {
			case errors.Is(err, storage.ErrNotFound):
				found[i] = &Problem{Hash: h, Kind: MissingBlock}
			case err != nil:
				if gctx.Err() != nil {
					return gctx.Err()
				}
				found[i] = &Problem{Hash: h, Kind: CorruptBlock, Detail: err.Error()}
			default:
				if got := e.hasher.Sum(data); got != h {
					found[i] = &Problem{Hash: h, Kind: CorruptBlock, Detail: fmt.Sprintf("content hashes to %s", got)}
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	problems := make([]Problem, 0)
	for _, p := range found {
		if p != nil {
			problems = append(problems, *p)
		}
	}
	return problems, nil
}
