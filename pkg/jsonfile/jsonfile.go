// Package jsonfile 读写带缩进的 JSON 记录文件
// 描述文件、哈希清单和注册表共用这一套序列化逻辑
package jsonfile

import (
	"encoding/json"
	"fmt"
	"os"

	"dpmserver/pkg/types"
)

// Read 读取并反序列化 path
// 文件不存在或无法读取时返回包装后的 I/O 错误 (errors.Is(err, os.ErrNotExist) 可判断)
// 内容不是合法 JSON 时返回 types.ErrParse
func Read[T any](path string) (T, error) {
	var v T
	data, err := os.ReadFile(path)
	if err != nil {
		return v, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("%w: %s: %v", types.ErrParse, path, err)
	}
	return v, nil
}

// Write 将 v 以两空格缩进写入 path
// 直接覆盖目标文件：没有临时文件，也没有 rename
func Write(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
