package layout

import (
	"fmt"
	"path/filepath"
	"strings"

	"dpmserver/pkg/types"
)

// 仓库中固定的文件名
const (
	RepoDir        = "Repo"
	SrcDir         = "src"
	DescriptorFile = "packageInfo.json"
	LedgerFile     = "hashes.json"
	RegistryFile   = "RepoInfo.json"
	IgnoreFile     = ".dpmignore"
	ArchiveExt     = ".zip"
)

// Layout 负责把包名映射到磁盘路径
//
//	<root>/
//	  RepoInfo.json
//	  Repo/
//	    <pkg>.zip
//	    src/<pkg>/
//	      packageInfo.json
//	      hashes.json
type Layout struct {
	rootPath string
}

func New(rootPath string) *Layout {
	return &Layout{rootPath: rootPath}
}

func (l *Layout) Root() string { return l.rootPath }

// ArchiveDir 返回 Repo/，所有构建产物 (*.zip) 都在这一层
func (l *Layout) ArchiveDir() string {
	return filepath.Join(l.rootPath, RepoDir)
}

// SrcDir 返回 Repo/src
func (l *Layout) SrcDir() string {
	return filepath.Join(l.rootPath, RepoDir, SrcDir)
}

func (l *Layout) RegistryPath() string {
	return filepath.Join(l.rootPath, RegistryFile)
}

func (l *Layout) PackageDir(name types.PackageName) string {
	return filepath.Join(l.SrcDir(), string(name))
}

func (l *Layout) DescriptorPath(name types.PackageName) string {
	return filepath.Join(l.PackageDir(name), DescriptorFile)
}

func (l *Layout) LedgerPath(name types.PackageName) string {
	return filepath.Join(l.PackageDir(name), LedgerFile)
}

// ArchiveName 返回 "<name>.zip"
func ArchiveName(name types.PackageName) string {
	return string(name) + ArchiveExt
}

func (l *Layout) ArchivePath(name types.PackageName) string {
	return filepath.Join(l.ArchiveDir(), ArchiveName(name))
}

// PackageFromArchive 去掉 .zip 后缀得到候选包名
// 不是 .zip 文件时返回 false
func PackageFromArchive(fileName string) (types.PackageName, bool) {
	name, ok := strings.CutSuffix(fileName, ArchiveExt)
	if !ok || name == "" {
		return "", false
	}
	return types.PackageName(name), true
}

// ValidateName 检查包名能否安全地作为目录名使用
// 包名大小写敏感，原样使用
func ValidateName(name types.PackageName) error {
	s := string(name)
	switch {
	case s == "":
		return fmt.Errorf("%w: empty", types.ErrInvalidName)
	case s == "." || s == "..":
		return fmt.Errorf("%w: %q", types.ErrInvalidName, s)
	case strings.ContainsAny(s, `/\`):
		return fmt.Errorf("%w: %q contains a path separator", types.ErrInvalidName, s)
	}
	return nil
}
