// Package verify 检查已发布归档与注册表、哈希清单之间是否一致
// 只读：不会修改任何文件
package verify

import (
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"

	"dpmserver/pkg/archive"
	"dpmserver/pkg/core"
	"dpmserver/pkg/layout"
	"dpmserver/pkg/ledger"
	"dpmserver/pkg/registry"
	"dpmserver/pkg/types"
)

// Kind 描述不一致的类型
type Kind string

const (
	KindRegistry  Kind = "registry"  // RepoInfo.json 中的摘要与 zip 不一致
	KindModified  Kind = "modified"  // 清单与归档内文件摘要不一致
	KindMissing   Kind = "missing"   // 清单中有，归档中没有
	KindUntracked Kind = "untracked" // 归档中有，清单中没有
)

// Mismatch 是一条不一致记录
// Want 是记录值 (注册表或清单)，Got 是归档中的实际值；缺失的一方为空
type Mismatch struct {
	Kind Kind
	Path string
	Want types.Hash
	Got  types.Hash
}

// Report 是一次校验的结果
type Report struct {
	Package     types.PackageName
	ArchiveHash types.Hash
	Registered  bool
	Checked     int // 比对过的清单条目数
	Mismatches  []Mismatch
}

func (r *Report) OK() bool { return len(r.Mismatches) == 0 }

// Err 在存在不一致时返回包装了 types.ErrIntegrity 的错误
func (r *Report) Err() error {
	if r.OK() {
		return nil
	}
	paths := make([]string, 0, len(r.Mismatches))
	for _, m := range r.Mismatches {
		paths = append(paths, fmt.Sprintf("%s(%s)", m.Path, m.Kind))
	}
	return fmt.Errorf("%w: %s: %s", types.ErrIntegrity, r.Package, strings.Join(paths, ", "))
}

// Package 校验 Repo/<name>.zip
//  1. 如果注册表中有记录，记录的 hash 必须等于 zip 的摘要
//  2. 清单中除 hashes.json / packageInfo.json 以外的每个条目，必须与归档内同名文件摘要一致
func Package(l *layout.Layout, reg *registry.Registry, name types.PackageName) (*Report, error) {
	if err := layout.ValidateName(name); err != nil {
		return nil, err
	}

	archivePath := l.ArchivePath(name)
	if _, err := os.Stat(archivePath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%s: %w", archivePath, types.ErrArchiveNotFound)
	} else if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", archivePath, err)
	}

	archiveHash, err := core.HashFile(archivePath)
	if err != nil {
		return nil, err
	}
	report := &Report{Package: name, ArchiveHash: archiveHash}

	// 1. 注册表
	if e, ok := reg.Get(name); ok {
		report.Registered = true
		if e.Hash != archiveHash {
			report.Mismatches = append(report.Mismatches, Mismatch{
				Kind: KindRegistry,
				Path: layout.ArchiveName(name),
				Want: e.Hash,
				Got:  archiveHash,
			})
		}
	}

	// 2. 清单 vs 归档
	ldg, err := ledger.Load(l.PackageDir(name))
	if err != nil {
		return nil, err
	}
	payload := ldg.Payload()

	digests, err := archive.Digests(archivePath)
	if err != nil {
		return nil, err
	}

	for _, path := range slices.Sorted(maps.Keys(payload)) {
		want := payload[path]
		got, ok := digests[path]
		report.Checked++
		switch {
		case !ok:
			report.Mismatches = append(report.Mismatches, Mismatch{Kind: KindMissing, Path: path, Want: want})
		case got != want:
			report.Mismatches = append(report.Mismatches, Mismatch{Kind: KindModified, Path: path, Want: want, Got: got})
		}
	}

	for _, path := range slices.Sorted(maps.Keys(digests)) {
		if path == layout.LedgerFile || path == layout.DescriptorFile {
			continue
		}
		if _, ok := payload[path]; !ok {
			report.Mismatches = append(report.Mismatches, Mismatch{Kind: KindUntracked, Path: path, Got: digests[path]})
		}
	}

	return report, nil
}
