package engine

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"dbdb/pkg/merkle"
)

// Walk 深度优先访问 ref 下的所有树节点
func (e *Engine) Walk(ctx context.Context, ref string, fn merkle.WalkFunc) error {
	root, err := e.Resolve(ctx, ref)
	if err != nil {
		return err
	}
	return e.reader.Walk(ctx, root, fn)
}

// PrintTree 以缩进形式打印树结构，类似 git ls-tree -r
//
//	NODE                 LABEL   CHILD
//	d6b0d82c             block   2aae6c35
func (e *Engine) PrintTree(ctx context.Context, ref string, w io.Writer, abbrev int) error {
	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintf(tw, "NODE\tLABEL\tCHILD\n")

	err := e.Walk(ctx, ref, func(step merkle.Step) error {
		indent := strings.Repeat("  ", step.Depth)
		if step.Err != nil {
			fmt.Fprintf(tw, "%s%s\t(missing)\t\n", indent, short(step.ID.String(), abbrev))
			return nil
		}
		if len(step.Node.Entries) == 0 {
			fmt.Fprintf(tw, "%s%s\t(empty)\t\n", indent, short(step.ID.String(), abbrev))
		}
		for _, entry := range step.Node.Entries {
			fmt.Fprintf(tw, "%s%s\t%s\t%s\n", indent, short(step.ID.String(), abbrev), entry.Type, short(entry.Hash.String(), abbrev))
		}
		return nil
	})
	if err != nil {
		return err
	}
	return tw.Flush()
}

func short(h string, n int) string {
	if n <= 0 || n >= len(h) {
		return h
	}
	return h[:n]
}

// FormatSize 人类可读的字节数
func FormatSize(s int64) string {
	if s < 1024 {
		return fmt.Sprintf("%dB", s)
	} else if s < 1024*1024 {
		return fmt.Sprintf("%.1fKB", float64(s)/1024)
	}
	return fmt.Sprintf("%.2fMB", float64(s)/1024/1024)
}
