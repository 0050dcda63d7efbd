package ignore

import (
	"os"
	"path/filepath"

	gitignore "github.com/sabhiram/go-gitignore"
)

// FileName 是目录 add 时读取的忽略文件
const FileName = ".dbdbignore"

// defaultRules 强制生效
var defaultRules = []string{
	".dbdb",
	".git",

	// 防止 S3 Secret Key 泄露
	"config.yaml",
	".env",

	".DS_Store",
	"Thumbs.db",
	FileName,
}

// Matcher 判断目录 add 时一个文件是否应该跳过
type Matcher struct {
	ignorer *gitignore.GitIgnore
}

// NewMatcher 初始化忽略匹配器
// rootPath: 被 add 的目录 (在这里找 .dbdbignore)
// extra: 调用方追加的规则，例如位于 rootPath 内部的 workdir
func NewMatcher(rootPath string, extra ...string) (*Matcher, error) {
	rules := append(append([]string{}, defaultRules...), extra...)

	ignoreFilePath := filepath.Join(rootPath, FileName)
	if _, err := os.Stat(ignoreFilePath); err != nil {
		return &Matcher{ignorer: gitignore.CompileIgnoreLines(rules...)}, nil
	}

	ignorer, err := gitignore.CompileIgnoreFileAndLines(ignoreFilePath, rules...)
	if err != nil {
		return nil, err
	}
	return &Matcher{ignorer: ignorer}, nil
}

// Matches 检查相对 rootPath 的路径 (例如 "data/model.bin") 是否应被忽略
// nil Matcher 不忽略任何东西
func (m *Matcher) Matches(path string) bool {
	if m == nil || m.ignorer == nil {
		return false
	}
	return m.ignorer.MatchesPath(filepath.ToSlash(path))
}
