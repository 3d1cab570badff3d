// Package ledger 计算并持久化一个包内每个文件的摘要 (hashes.json)
package ledger

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"dpmserver/pkg/core"
	"dpmserver/pkg/descriptor"
	"dpmserver/pkg/ignore"
	"dpmserver/pkg/jsonfile"
	"dpmserver/pkg/layout"
	"dpmserver/pkg/types"
)

// Ledger: 相对路径 (slash 分隔) -> 文件摘要
type Ledger map[string]types.Hash

// EntryCallback 每记录一个文件回调一次，n 从 1 开始计数
type EntryCallback func(n int, path string, hash types.Hash)

// Recompute 全量重算 packageRoot 下所有文件的摘要
//
// 流程 (两阶段写入):
//  1. 遍历所有文件 (跳过 hashes.json 自己)，写入 hashes.json
//  2. 计算刚写好的 hashes.json 的摘要，以自身文件名追加进清单，再写一次
//  3. 把这个摘要写入 packageInfo.json 的 hash 字段
//
// 清单里记录的“自身摘要”对应的是第一次写入的内容，而不是最终文件，
// 这是文件格式的一部分，不要试图让它自洽。
//
// 返回新清单和 hashes.json 的摘要 (即描述文件中的 package hash)
func Recompute(packageRoot string, onEntry EntryCallback) (Ledger, types.Hash, error) {
	// 0. 包目录必须存在
	if _, err := os.Stat(packageRoot); os.IsNotExist(err) {
		return nil, "", fmt.Errorf("%s: %w", packageRoot, types.ErrPackageNotFound)
	} else if err != nil {
		return nil, "", fmt.Errorf("failed to stat %s: %w", packageRoot, err)
	}

	matcher, err := ignore.NewMatcher(packageRoot)
	if err != nil {
		return nil, "", err
	}

	// 1. 遍历 (不增量：每次都从空清单开始，已删除的文件不会残留)
	ledger := make(Ledger)
	counter := 0
	walkFn := func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(packageRoot, path)
		if err != nil {
			return fmt.Errorf("failed to get relative path: %w", err)
		}
		rel = filepath.ToSlash(rel)
		if rel == layout.LedgerFile || matcher.Matches(rel) {
			return nil
		}

		hash, err := core.HashFile(path)
		if err != nil {
			return err
		}
		counter++
		ledger[rel] = hash
		if onEntry != nil {
			onEntry(counter, rel, hash)
		}
		return nil
	}
	if err := filepath.WalkDir(packageRoot, walkFn); err != nil {
		return nil, "", fmt.Errorf("walk failed: %w", err)
	}

	// 2. 第一次落盘
	ledgerPath := filepath.Join(packageRoot, layout.LedgerFile)
	if err := jsonfile.Write(ledgerPath, ledger); err != nil {
		return nil, "", err
	}

	// 3. 重新读回，计算清单自身的摘要并追加，第二次落盘
	ledger, err = Load(packageRoot)
	if err != nil {
		return nil, "", err
	}
	selfHash, err := core.HashFile(ledgerPath)
	if err != nil {
		return nil, "", err
	}
	counter++
	ledger[layout.LedgerFile] = selfHash
	if onEntry != nil {
		onEntry(counter, layout.LedgerFile, selfHash)
	}
	if err := jsonfile.Write(ledgerPath, ledger); err != nil {
		return nil, "", err
	}

	// 4. 回写描述文件
	desc, err := descriptor.Load(packageRoot)
	if err != nil {
		return nil, "", err
	}
	desc.Hash = selfHash
	if err := descriptor.Save(desc, packageRoot); err != nil {
		return nil, "", err
	}

	return ledger, selfHash, nil
}

// Load 读取 packageRoot/hashes.json
func Load(packageRoot string) (Ledger, error) {
	path := filepath.Join(packageRoot, layout.LedgerFile)
	l, err := jsonfile.Read[Ledger](path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", path, types.ErrPackageNotFound)
	}
	if err != nil {
		return nil, err
	}
	if l == nil {
		l = make(Ledger)
	}
	return l, nil
}

// Payload 返回去掉 hashes.json 和 packageInfo.json 的条目
// 这两个文件在 hash 之后都会被改写，它们的记录值不能用来校验归档
func (l Ledger) Payload() Ledger {
	out := make(Ledger, len(l))
	for k, v := range l {
		if k == layout.LedgerFile || k == layout.DescriptorFile {
			continue
		}
		out[k] = v
	}
	return out
}
