package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupIntegrationEnv 隔离工作目录、HOME 和 Viper 全局状态
func setupIntegrationEnv(t *testing.T) (workdir, tmpDir string) {
	tmpDir = t.TempDir()
	t.Chdir(tmpDir)
	t.Setenv("HOME", t.TempDir())
	return filepath.Join(tmpDir, "store"), tmpDir
}

// run 执行一条 dbdb 命令并返回 stdout
func run(t *testing.T, workdir string, args ...string) (string, error) {
	t.Helper()
	viper.Reset()
	defer closeApp()

	var out bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs(append([]string{"--workdir", workdir, "--log-level", "error"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func mustRun(t *testing.T, workdir string, args ...string) string {
	t.Helper()
	out, err := run(t, workdir, args...)
	require.NoError(t, err, "dbdb %s", strings.Join(args, " "))
	return out
}

func TestIntegration_HelloWorld(t *testing.T) {
	workdir, tmpDir := setupIntegrationEnv(t)

	out := mustRun(t, workdir, "init")
	assert.Contains(t, out, "Initialized empty dbdb store")

	file := filepath.Join(tmpDir, "hello.txt")
	require.NoError(t, os.WriteFile(file, []byte("hello world"), 0644))

	// hash-object 不写盘
	out = mustRun(t, workdir, "hash-object", file)
	assert.Equal(t, "2aae6c35c94fcfb415dbe95f408b9ce91ee846ed\n", out)
	_, err := run(t, workdir, "cat-block", "2aae6c35c94fcfb415dbe95f408b9ce91ee846ed")
	assert.Error(t, err)

	// hash-object -w 之后可以 cat-block
	mustRun(t, workdir, "hash-object", "-w", file)
	out = mustRun(t, workdir, "cat-block", "2aae6c35")
	assert.Equal(t, "hello world", out)

	out = mustRun(t, workdir, "add", file)
	assert.Equal(t, "d6b0d82cea4269b51572b8fab43adcee9fc3cf9a hello.txt\n", out)

	out = mustRun(t, workdir, "cat", "d6b0d82cea4269b51572b8fab43adcee9fc3cf9a")
	assert.Equal(t, "hello world", out)
	out = mustRun(t, workdir, "cat", "hello.txt")
	assert.Equal(t, "hello world", out)

	out = mustRun(t, workdir, "ls")
	assert.Equal(t, "d6b0d82cea4269b51572b8fab43adcee9fc3cf9a hello.txt\n", out)

	out = mustRun(t, workdir, "verify", "hello.txt")
	assert.Contains(t, out, "ok d6b0d82cea4269b51572b8fab43adcee9fc3cf9a")
}

func TestIntegration_AddDirectory(t *testing.T) {
	workdir, tmpDir := setupIntegrationEnv(t)
	mustRun(t, workdir, "init")

	// workdir 就在被添加的目录里，必须被跳过
	require.NoError(t, os.MkdirAll(filepath.Join(tmpDir, "sub"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "a.txt"), []byte("A"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "sub", "b.txt"), []byte("B"), 0644))

	out := mustRun(t, workdir, "add", tmpDir)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasSuffix(lines[0], " a.txt"))
	assert.True(t, strings.HasSuffix(lines[1], " sub/b.txt"))

	assert.Equal(t, "B", mustRun(t, workdir, "cat", "sub/b.txt"))

	_, err := run(t, workdir, "add", tmpDir, "--name", "x")
	assert.ErrorContains(t, err, "--name cannot be used with a directory")
}

func TestIntegration_AddWithName(t *testing.T) {
	workdir, tmpDir := setupIntegrationEnv(t)
	mustRun(t, workdir, "init")

	file := filepath.Join(tmpDir, "weights.bin")
	require.NoError(t, os.WriteFile(file, bytes.Repeat([]byte{7}, 20000), 0644))

	mustRun(t, workdir, "add", file, "--name", "model/v1")
	out := mustRun(t, workdir, "cat", "model/v1")
	assert.Equal(t, 20000, len(out))
}

func TestIntegration_VerifyDetectsMissingBlock(t *testing.T) {
	workdir, tmpDir := setupIntegrationEnv(t)
	mustRun(t, workdir, "init")

	file := filepath.Join(tmpDir, "hello.txt")
	require.NoError(t, os.WriteFile(file, []byte("hello world"), 0644))
	mustRun(t, workdir, "add", file)

	require.NoError(t, os.Remove(filepath.Join(workdir, "objects", "2a", "ae6c35c94fcfb415dbe95f408b9ce91ee846ed")))

	out, err := run(t, workdir, "verify", "hello.txt")
	assert.ErrorContains(t, err, "1 problem(s)")
	assert.Contains(t, out, "missing-block 2aae6c35c94fcfb415dbe95f408b9ce91ee846ed")

	_, err = run(t, workdir, "cat", "hello.txt")
	assert.Error(t, err)
}

func TestIntegration_MetricsFile(t *testing.T) {
	workdir, tmpDir := setupIntegrationEnv(t)
	mustRun(t, workdir, "init")

	file := filepath.Join(tmpDir, "hello.txt")
	require.NoError(t, os.WriteFile(file, []byte("hello world"), 0644))

	metricsFile := filepath.Join(tmpDir, "dbdb.prom")
	mustRun(t, workdir, "add", file, "--metrics-file", metricsFile)

	data, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "dbdb_tree_nodes_written_total 1")
	assert.Contains(t, string(data), `dbdb_blocks_total{op="split"} 1`)
}

func TestIntegration_UnknownRoot(t *testing.T) {
	workdir, _ := setupIntegrationEnv(t)
	mustRun(t, workdir, "init")

	_, err := run(t, workdir, "cat", "nothing")
	assert.ErrorContains(t, err, "cannot resolve reference")
}
