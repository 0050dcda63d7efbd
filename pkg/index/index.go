package index

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"dbdb/pkg/metrics"
	"dbdb/pkg/types"
)

var (
	// ErrInvalidName 名字里带换行会把一条记录拆成两行
	ErrInvalidName = errors.New("invalid index name")
	ErrNotFound    = errors.New("name not found in index")
)

// Entry 是索引里的一行: "{root} {name}"
type Entry struct {
	Root types.Hash
	Name string
}

func (e Entry) String() string {
	return string(e.Root) + " " + e.Name
}

// Index 是只追加的名字索引
// 同一个名字可以出现多次，索引是日志而不是 map，Lookup 取最后一次
type Index struct {
	path    string
	mu      sync.Mutex
	metrics *metrics.Metrics
}

type Option func(*Index)

func WithMetrics(m *metrics.Metrics) Option { return func(i *Index) { i.metrics = m } }

// NewIndex 不会创建文件，第一次 Record 时才创建
func NewIndex(indexPath string, opts ...Option) *Index {
	idx := &Index{path: indexPath}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

func (i *Index) Path() string { return i.path }

// Record 追加一条记录
func (i *Index) Record(root types.Hash, name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if root == "" {
		return fmt.Errorf("index record for %q has empty root", name)
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	f, err := os.OpenFile(i.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open index: %w", err)
	}

	if _, err := f.WriteString(Entry{Root: root, Name: name}.String() + "\n"); err != nil {
		f.Close()
		return fmt.Errorf("failed to append index: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close index: %w", err)
	}
	i.metrics.IndexRecorded()
	return nil
}

// ValidateName 名字不能包含换行符
func ValidateName(name string) error {
	if strings.ContainsAny(name, "\r\n") {
		return fmt.Errorf("%w: %q contains a line terminator", ErrInvalidName, name)
	}
	return nil
}

// Entries 按写入顺序返回全部记录，索引文件不存在时返回空列表
func (i *Index) Entries() ([]Entry, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	entries := make([]Entry, 0)
	f, err := os.Open(i.path)
	if errors.Is(err, os.ErrNotExist) {
		return entries, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open index: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSuffix(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		// 名字里可以有空格，只按第一个空格切
		root, name, ok := strings.Cut(line, " ")
		if !ok {
			return nil, fmt.Errorf("corrupted index line %d: %q", lineNo, line)
		}
		entries = append(entries, Entry{Root: types.Hash(root), Name: name})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read index: %w", err)
	}
	return entries, nil
}

// Lookup 返回 name 最近一次记录的 root
func (i *Index) Lookup(name string) (types.Hash, error) {
	entries, err := i.Entries()
	if err != nil {
		return "", err
	}
	for j := len(entries) - 1; j >= 0; j-- {
		if entries[j].Name == name {
			return entries[j].Root, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrNotFound, name)
}
