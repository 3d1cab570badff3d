package ignore

import (
	"fmt"
	"os"
	"path/filepath"

	"dpmserver/pkg/layout"

	gitignore "github.com/sabhiram/go-gitignore"
)

// Matcher 封装了忽略逻辑
// 它负责判断包目录中的某个文件是否应该被排除在哈希清单和归档之外
type Matcher struct {
	ignorer *gitignore.GitIgnore
}

// NewMatcher 初始化忽略匹配器
// packageRoot: 包的源码目录（用于查找 .dpmignore 文件）
// 没有 .dpmignore 时不忽略任何文件
func NewMatcher(packageRoot string) (*Matcher, error) {
	ignoreFilePath := filepath.Join(packageRoot, layout.IgnoreFile)

	_, errStat := os.Stat(ignoreFilePath)
	if os.IsNotExist(errStat) {
		return &Matcher{}, nil
	}
	if errStat != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", ignoreFilePath, errStat)
	}

	ignorer, err := gitignore.CompileIgnoreFile(ignoreFilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to compile %s: %w", ignoreFilePath, err)
	}
	return &Matcher{ignorer: ignorer}, nil
}

// Matches 检查给定的路径是否匹配忽略规则
// path: 相对于包根目录的 slash 路径 (例如 "assets/logo.png")
// 返回: true 表示应该忽略 (Skip), false 表示应该保留 (Keep)
// 哈希清单自身永远不会被忽略，否则归档里就缺了它
func (m *Matcher) Matches(path string) bool {
	if m == nil || m.ignorer == nil {
		return false
	}
	if path == layout.LedgerFile || path == layout.DescriptorFile {
		return false
	}
	return m.ignorer.MatchesPath(path)
}
