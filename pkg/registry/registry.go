// pkg/registry/registry.go
package registry

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"
	"sync"

	"dpmserver/pkg/core"
	"dpmserver/pkg/descriptor"
	"dpmserver/pkg/jsonfile"
	"dpmserver/pkg/layout"
	"dpmserver/pkg/types"
)

// DefaultURLTemplate 是下载地址模板，{name} 会被替换为包名
const DefaultURLTemplate = "https://github.com/Derrick-Program/DPM-Server/raw/main/Repo/{name}.zip"

// ErrNameMismatch 描述文件里的 package_name 与目录名不一致
var ErrNameMismatch = errors.New("descriptor package_name does not match directory")

// Entry 代表一个已发布的归档
// 与 descriptor.Descriptor 不同，这里的 Hash 是 zip 文件本身的摘要
type Entry struct {
	URL          string     `json:"url"`
	FileName     string     `json:"file_name"`
	Version      string     `json:"version"`
	Hash         types.Hash `json:"hash"`
	Dependencies []string   `json:"dependencies,omitempty"`
}

// State 是启动时 RepoInfo.json 的状态
type State int

const (
	StateValid   State = iota // 正常加载
	StateAbsent               // 文件不存在
	StateCorrupt              // 文件存在但解析失败
)

func (s State) String() string {
	switch s {
	case StateValid:
		return "valid"
	case StateAbsent:
		return "absent"
	case StateCorrupt:
		return "corrupt"
	}
	return "unknown"
}

// Registry 管理 包名 -> 已发布归档 的映射
// 进程启动时加载一次，在内存中修改，结束时写回一次
type Registry struct {
	layout      *layout.Layout
	urlTemplate string
	Packages    map[types.PackageName]Entry `json:"packages"`
	mu          sync.RWMutex
}

// New 创建一个空的注册表，尚未读取磁盘
func New(l *layout.Layout, urlTemplate string) *Registry {
	if urlTemplate == "" {
		urlTemplate = DefaultURLTemplate
	}
	return &Registry{
		layout:      l,
		urlTemplate: urlTemplate,
		Packages:    make(map[types.PackageName]Entry),
	}
}

// Load 从 RepoInfo.json 读取注册表
// 文件不存在或损坏都不算错误，而是返回对应的 State，由调用者决定是否重建；
// 其它 I/O 错误 (比如权限) 直接返回
func (r *Registry) Load() (State, error) {
	type onDisk struct {
		Packages map[types.PackageName]Entry `json:"packages"`
	}

	data, err := jsonfile.Read[onDisk](r.layout.RegistryPath())

	r.mu.Lock()
	defer r.mu.Unlock()
	r.Packages = make(map[types.PackageName]Entry)

	switch {
	case err == nil:
		if data.Packages != nil {
			r.Packages = data.Packages
		}
		return StateValid, nil
	case errors.Is(err, os.ErrNotExist):
		return StateAbsent, nil
	case errors.Is(err, types.ErrParse):
		return StateCorrupt, nil
	default:
		return StateValid, err
	}
}

// Save 将注册表持久化到磁盘 (直接覆盖，最后一次成功写入生效)
func (r *Registry) Save() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return jsonfile.Write(r.layout.RegistryPath(), r)
}

// Add 插入或覆盖一条记录 (精确匹配 key，大小写敏感)
// 空的依赖列表统一为 nil：文件中缺省的 dependencies 就表示没有依赖
func (r *Registry) Add(name types.PackageName, e Entry) {
	if len(e.Dependencies) == 0 {
		e.Dependencies = nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.Packages[name] = e
}

// Remove 删除并返回一条记录
func (r *Registry) Remove(name types.PackageName) (Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.Packages[name]
	if !ok {
		return Entry{}, fmt.Errorf("package %q: %w", name, types.ErrPackageNotFound)
	}
	delete(r.Packages, name)
	return e, nil
}

func (r *Registry) Get(name types.PackageName) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.Packages[name]
	return e, ok
}

// Names 返回排序后的包名
func (r *Registry) Names() []types.PackageName {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.Packages))
}

// Snapshot 返回当前记录的副本
func (r *Registry) Snapshot() map[types.PackageName]Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return maps.Clone(r.Packages)
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.Packages)
}

// Fingerprint 计算注册表内容的 Canonical 指纹，与 map 顺序无关
func (r *Registry) Fingerprint() (types.Hash, error) {
	hash, _, err := core.CalculateHash(r.Snapshot())
	return hash, err
}

// DownloadURL 用模板拼出包的下载地址
func (r *Registry) DownloadURL(name types.PackageName) string {
	return strings.ReplaceAll(r.urlTemplate, "{name}", string(name))
}

// -----------------------------------------------------------------------------
// 从构建产物推导记录
// -----------------------------------------------------------------------------

// AddFromBuild 根据 Repo/<name>.zip 和 Repo/src/<name>/packageInfo.json 生成记录并写入
func (r *Registry) AddFromBuild(name types.PackageName) (Entry, error) {
	if err := layout.ValidateName(name); err != nil {
		return Entry{}, err
	}

	// 1. 归档必须存在
	archivePath := r.layout.ArchivePath(name)
	if _, err := os.Stat(archivePath); os.IsNotExist(err) {
		return Entry{}, fmt.Errorf("%s: %w", archivePath, types.ErrArchiveNotFound)
	} else if err != nil {
		return Entry{}, fmt.Errorf("failed to stat %s: %w", archivePath, err)
	}

	// 2. 读取源码目录中的描述文件
	desc, err := descriptor.Load(r.layout.PackageDir(name))
	if err != nil {
		return Entry{}, err
	}
	if desc.PackageName != name {
		return Entry{}, fmt.Errorf("%w: directory %q, descriptor %q", ErrNameMismatch, name, desc.PackageName)
	}

	// 3. Hash 是归档文件本身的摘要，而不是 hashes.json
	hash, err := core.HashFile(archivePath)
	if err != nil {
		return Entry{}, err
	}

	e := Entry{
		URL:          r.DownloadURL(name),
		FileName:     layout.ArchiveName(desc.PackageName),
		Version:      desc.Version,
		Hash:         hash,
		Dependencies: desc.Dependencies,
	}
	r.Add(name, e)
	return e, nil
}

// ReconcileCallback 每成功推导一条记录回调一次
type ReconcileCallback func(name types.PackageName, e Entry)

// ReconcileAll 扫描 Repo/ 下所有 *.zip，逐个执行 AddFromBuild
// 每条记录成功后立即 Save：中途失败时，之前的记录已经落盘
func (r *Registry) ReconcileAll(onEntry ReconcileCallback) error {
	entries, err := os.ReadDir(r.layout.ArchiveDir())
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to list archives: %w", err)
	}

	// os.ReadDir 已按文件名排序
	for _, de := range entries {
		if !de.Type().IsRegular() {
			continue
		}
		name, ok := layout.PackageFromArchive(de.Name())
		if !ok {
			continue
		}

		e, err := r.AddFromBuild(name)
		if err != nil {
			return fmt.Errorf("reconcile %s: %w", name, err)
		}
		if err := r.Save(); err != nil {
			return err
		}
		if onEntry != nil {
			onEntry(name, e)
		}
	}
	return nil
}
