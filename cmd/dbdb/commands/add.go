package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"dbdb/pkg/engine"
	"dbdb/pkg/ignore"

	"github.com/spf13/cobra"
)

func newAddCmd() *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "add FILE|DIR",
		Short: "Store a file (or every file in a directory) and record its root",
		Long:  `Store the file, build its tree and append "{root} {name}" to the index. Directories are walked recursively honoring .dbdbignore.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := args[0]
			info, err := os.Stat(target)
			if err != nil {
				return err
			}

			var results []engine.AddResult
			if info.IsDir() {
				if name != "" {
					return errors.New("--name cannot be used with a directory")
				}
				matcher, err := ignore.NewMatcher(target, workdirRule(target, DB.Workdir)...)
				if err != nil {
					return err
				}
				results, err = DB.Engine.AddTree(cmd.Context(), target, matcher)
				if err != nil {
					return err
				}
			} else {
				res, err := DB.Engine.AddFile(cmd.Context(), target, name)
				if err != nil {
					return err
				}
				results = append(results, *res)
			}

			out := cmd.OutOrStdout()
			for _, r := range results {
				fmt.Fprintf(out, "%s %s\n", r.Root, r.Name)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "name recorded in the index (default: file name)")
	return cmd
}

// workdirRule workdir 位于被添加的目录内部时，把它排除掉
func workdirRule(dir, workdir string) []string {
	absDir, err1 := filepath.Abs(dir)
	absWork, err2 := filepath.Abs(workdir)
	if err1 != nil || err2 != nil {
		return nil
	}
	rel, err := filepath.Rel(absDir, absWork)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil
	}
	return []string{"/" + filepath.ToSlash(rel) + "/"}
}
