// Package descriptor 管理包自身的元数据 (packageInfo.json)
package descriptor

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"dpmserver/pkg/core"
	"dpmserver/pkg/jsonfile"
	"dpmserver/pkg/layout"
	"dpmserver/pkg/types"

	"github.com/Masterminds/semver/v3"
)

// DefaultVersion 和 DefaultDescription 是 init 的默认参数
const (
	DefaultVersion     = "0.1.0"
	DefaultDescription = "description"
)

// Descriptor 描述源码树的状态
// Hash 是 hashes.json 的摘要，代表“上一次 hash 时所有文件”的汇总指纹
type Descriptor struct {
	PackageName  types.PackageName `json:"package_name"`
	FileName     string            `json:"file_name"` // 入口文件
	Version      string            `json:"version"`
	Description  string            `json:"description"`
	Hash         types.Hash        `json:"hash"`
	Dependencies []string          `json:"dependencies,omitempty"` // 缺省表示没有依赖
}

// Create 在 packageRoot 下搭建一个新包
// 目录已存在时返回 types.ErrAlreadyExists，不会修改任何文件
// 中途失败时删除已创建的目录，保证可以重试
func Create(packageRoot string, name types.PackageName, entry, version, description string) (d *Descriptor, err error) {
	// 0. 入口文件必须落在包目录内
	entry, err = CleanEntry(entry)
	if err != nil {
		return nil, err
	}

	// 1. 检查是否已存在
	if _, statErr := os.Stat(packageRoot); statErr == nil {
		return nil, fmt.Errorf("%s: %w", packageRoot, types.ErrAlreadyExists)
	} else if !os.IsNotExist(statErr) {
		return nil, fmt.Errorf("failed to stat %s: %w", packageRoot, statErr)
	}

	// 2. 创建目录结构
	if err := os.MkdirAll(packageRoot, 0755); err != nil {
		return nil, fmt.Errorf("failed to create package directory: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.RemoveAll(packageRoot)
		}
	}()

	// 3. 空的入口文件 (入口可以带子目录，比如 bin/run.sh)
	entryPath := filepath.Join(packageRoot, filepath.FromSlash(entry))
	if err := os.MkdirAll(filepath.Dir(entryPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create entry directory: %w", err)
	}
	if err := touch(entryPath); err != nil {
		return nil, err
	}

	// 4. 空的哈希清单，它的摘要作为初始 Hash
	ledgerPath := filepath.Join(packageRoot, layout.LedgerFile)
	if err := touch(ledgerPath); err != nil {
		return nil, err
	}
	hash, err := core.HashFile(ledgerPath)
	if err != nil {
		return nil, err
	}

	d = &Descriptor{
		PackageName: name,
		FileName:    entry,
		Version:     version,
		Description: description,
		Hash:        hash,
	}
	if err := Save(d, packageRoot); err != nil {
		return nil, err
	}
	return d, nil
}

// CleanEntry 校验并规范化入口文件路径 (slash 分隔，相对包根目录)
// 空路径、绝对路径、逃出包目录的路径，以及与清单/描述文件同名的路径都会被拒绝
func CleanEntry(entry string) (string, error) {
	slashed := filepath.ToSlash(entry)
	if slashed == "" || path.IsAbs(slashed) || filepath.IsAbs(entry) || filepath.VolumeName(entry) != "" {
		return "", fmt.Errorf("%w: %q", types.ErrInvalidEntry, entry)
	}

	cleaned := path.Clean(slashed)
	switch {
	case cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../"):
		return "", fmt.Errorf("%w: %q escapes the package directory", types.ErrInvalidEntry, entry)
	case cleaned == layout.LedgerFile || cleaned == layout.DescriptorFile:
		return "", fmt.Errorf("%w: %q is reserved", types.ErrInvalidEntry, entry)
	}
	return cleaned, nil
}

// Load 读取 packageRoot/packageInfo.json
// 文件不存在时返回 types.ErrPackageNotFound，内容损坏时返回 types.ErrParse
func Load(packageRoot string) (*Descriptor, error) {
	path := filepath.Join(packageRoot, layout.DescriptorFile)
	d, err := jsonfile.Read[Descriptor](path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", path, types.ErrPackageNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// Save 覆盖写入 packageRoot/packageInfo.json
func Save(d *Descriptor, packageRoot string) error {
	return jsonfile.Write(filepath.Join(packageRoot, layout.DescriptorFile), d)
}

// CheckVersion 检查版本号是否符合 semver
// 只用于提示，非 semver 的版本号依然可以保存
func CheckVersion(version string) error {
	if _, err := semver.NewVersion(version); err != nil {
		return fmt.Errorf("version %q is not semver: %w", version, err)
	}
	return nil
}

func touch(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	return f.Close()
}
