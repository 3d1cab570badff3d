// pkg/types/common.go
package types

import "strings"

// Hash 代表文件内容的摘要 (SHA256 小写 Hex String)
// 这是一个“值对象”，应当是不可变的。
type Hash string

func (h Hash) String() string { return string(h) }

// 验证 Hash 合法性
func (h Hash) IsZero() bool { return h == "" }
func (h Hash) IsValid() bool {
	if len(h) != 64 {
		return false
	}
	// 只接受小写 hex，大写会导致同一内容出现两个不同的 key
	return strings.IndexFunc(string(h), func(r rune) bool {
		return !(r >= '0' && r <= '9' || r >= 'a' && r <= 'f')
	}) < 0
}

// Short 返回前 8 位，用于终端展示
func (h Hash) Short() string {
	if len(h) <= 8 {
		return string(h)
	}
	return string(h[:8])
}

// PackageName 是包的唯一标识，大小写敏感
type PackageName string

func (n PackageName) String() string { return string(n) }
