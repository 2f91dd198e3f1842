package ignore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
)

// FileName 用户自定义忽略规则所在的文件 (位于导入目录的根部)
const FileName = ".gentleignore"

// DefaultRules 强制生效的系统级规则
var DefaultRules = []string{
	// --- 关键系统目录 ---
	".gentle", // 禁止导入仓库自身的数据目录，否则会无限自我复制
	".git",

	// --- 安全与配置 ---
	"config.yaml", // 防止 S3 Secret Key 泄露
	".env",

	// --- 常见垃圾文件 ---
	".DS_Store",
	"Thumbs.db",
}

// Matcher 判断一个路径是否应该被忽略
type Matcher struct {
	ignorer *gitignore.GitIgnore
}

// NewMatcher 合并默认规则、root 下的 .gentleignore 以及 extra
func NewMatcher(root string, extra ...string) (*Matcher, error) {
	rules := append(append([]string{}, DefaultRules...), extra...)

	ignoreFilePath := filepath.Join(root, FileName)
	_, statErr := os.Stat(ignoreFilePath)
	switch {
	case statErr == nil:
		// 文件内容和默认规则一起编译
		ignorer, err := gitignore.CompileIgnoreFileAndLines(ignoreFilePath, rules...)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", ignoreFilePath, err)
		}
		return &Matcher{ignorer: ignorer}, nil
	case errors.Is(statErr, os.ErrNotExist):
		return &Matcher{ignorer: gitignore.CompileIgnoreLines(rules...)}, nil
	default:
		return nil, statErr
	}
}

// Matches 检查给定的相对路径 (例如 "data/model.bin") 是否应该被忽略
// 目录传入时可以带尾部斜杠
func (m *Matcher) Matches(path string) bool {
	if m == nil || m.ignorer == nil {
		return false
	}
	path = filepath.ToSlash(path)
	return m.ignorer.MatchesPath(strings.TrimSuffix(path, "/"))
}
