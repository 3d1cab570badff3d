package registry

import (
	"os"
	"path/filepath"
	"testing"

	"dpmserver/pkg/archive"
	"dpmserver/pkg/core"
	"dpmserver/pkg/descriptor"
	"dpmserver/pkg/layout"
	"dpmserver/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 在 Repo/src 下创建一个包并构建归档
func buildPackage(t *testing.T, l *layout.Layout, name types.PackageName, deps ...string) {
	t.Helper()

	d, err := descriptor.Create(l.PackageDir(name), name, "main.py", "1.2.3", "demo")
	require.NoError(t, err)
	if len(deps) > 0 {
		d.Dependencies = deps
		require.NoError(t, descriptor.Save(d, l.PackageDir(name)))
	}
	require.NoError(t, os.WriteFile(filepath.Join(l.PackageDir(name), "main.py"), []byte("print('"+string(name)+"')"), 0644))
	require.NoError(t, archive.Build(l.PackageDir(name), l.ArchivePath(name)))
}

func newRegistry(t *testing.T) (*Registry, *layout.Layout) {
	t.Helper()
	l := layout.New(t.TempDir())
	require.NoError(t, os.MkdirAll(l.SrcDir(), 0755))
	return New(l, ""), l
}

func TestLoad_States(t *testing.T) {
	reg, l := newRegistry(t)

	// 1. 文件不存在
	state, err := reg.Load()
	require.NoError(t, err)
	assert.Equal(t, StateAbsent, state)
	assert.Zero(t, reg.Len())

	// 2. 文件损坏
	require.NoError(t, os.WriteFile(l.RegistryPath(), []byte("{not json"), 0644))
	state, err = reg.Load()
	require.NoError(t, err)
	assert.Equal(t, StateCorrupt, state)
	assert.Zero(t, reg.Len())

	// 3. 正常文件
	reg.Add("demo", Entry{FileName: "demo.zip", Version: "0.1.0"})
	require.NoError(t, reg.Save())
	state, err = New(l, "").Load()
	require.NoError(t, err)
	assert.Equal(t, StateValid, state)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	reg, l := newRegistry(t)

	want := Entry{
		URL:          "https://example.com/demo.zip",
		FileName:     "demo.zip",
		Version:      "1.0.0",
		Hash:         core.HashBytes([]byte("zip")),
		Dependencies: []string{"libfoo"},
	}
	reg.Add("demo", want)
	require.NoError(t, reg.Save())

	// 文件带 packages 外层，两空格缩进
	raw, err := os.ReadFile(l.RegistryPath())
	require.NoError(t, err)
	assert.Contains(t, string(raw), "{\n  \"packages\": {")

	loaded := New(l, "")
	_, err = loaded.Load()
	require.NoError(t, err)

	got, ok := loaded.Get("demo")
	require.True(t, ok)
	assert.Equal(t, want, got)
}

func TestLoad_EmptyPackagesObject(t *testing.T) {
	reg, l := newRegistry(t)
	require.NoError(t, os.WriteFile(l.RegistryPath(), []byte(`{}`), 0644))

	state, err := reg.Load()
	require.NoError(t, err)
	assert.Equal(t, StateValid, state)

	// Packages 必须可写
	reg.Add("x", Entry{})
	assert.Equal(t, 1, reg.Len())
}

func TestAddRemove(t *testing.T) {
	reg, _ := newRegistry(t)

	reg.Add("demo", Entry{Version: "1"})
	reg.Add("demo", Entry{Version: "2"})
	assert.Equal(t, 1, reg.Len())
	e, _ := reg.Get("demo")
	assert.Equal(t, "2", e.Version, "Add 覆盖旧记录")

	// 大小写敏感
	_, err := reg.Remove("Demo")
	assert.ErrorIs(t, err, types.ErrPackageNotFound)

	removed, err := reg.Remove("demo")
	require.NoError(t, err)
	assert.Equal(t, "2", removed.Version)
	assert.Zero(t, reg.Len())

	_, err = reg.Remove("demo")
	assert.ErrorIs(t, err, types.ErrPackageNotFound)
}

func TestAddFromBuild(t *testing.T) {
	reg, l := newRegistry(t)
	buildPackage(t, l, "demo", "libfoo")

	e, err := reg.AddFromBuild("demo")
	require.NoError(t, err)

	zipHash, err := core.HashFile(l.ArchivePath("demo"))
	require.NoError(t, err)

	assert.Equal(t, "demo.zip", e.FileName)
	assert.Equal(t, "1.2.3", e.Version)
	assert.Equal(t, zipHash, e.Hash)
	assert.Equal(t, []string{"libfoo"}, e.Dependencies)
	assert.Equal(t, "https://github.com/Derrick-Program/DPM-Server/raw/main/Repo/demo.zip", e.URL)

	got, ok := reg.Get("demo")
	require.True(t, ok)
	assert.Equal(t, e, got)
}

func TestAddFromBuild_Idempotent(t *testing.T) {
	reg, l := newRegistry(t)
	buildPackage(t, l, "demo")

	_, err := reg.AddFromBuild("demo")
	require.NoError(t, err)
	first, err := reg.Fingerprint()
	require.NoError(t, err)

	_, err = reg.AddFromBuild("demo")
	require.NoError(t, err)
	second, err := reg.Fingerprint()
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestAddFromBuild_Errors(t *testing.T) {
	reg, l := newRegistry(t)

	// 没有归档
	_, err := reg.AddFromBuild("ghost")
	assert.ErrorIs(t, err, types.ErrArchiveNotFound)

	// 有归档但没有源码目录
	buildPackage(t, l, "demo")
	require.NoError(t, os.RemoveAll(l.PackageDir("demo")))
	_, err = reg.AddFromBuild("demo")
	assert.ErrorIs(t, err, types.ErrPackageNotFound)

	// 非法包名
	_, err = reg.AddFromBuild("../evil")
	assert.ErrorIs(t, err, types.ErrInvalidName)

	assert.Zero(t, reg.Len(), "失败时不写入记录")
}

func TestAddFromBuild_NameMismatch(t *testing.T) {
	reg, l := newRegistry(t)
	buildPackage(t, l, "demo")

	d, err := descriptor.Load(l.PackageDir("demo"))
	require.NoError(t, err)
	d.PackageName = "other"
	require.NoError(t, descriptor.Save(d, l.PackageDir("demo")))

	_, err = reg.AddFromBuild("demo")
	assert.ErrorIs(t, err, ErrNameMismatch)
}

func TestAddRemove_Symmetry(t *testing.T) {
	reg, l := newRegistry(t)
	buildPackage(t, l, "a")
	buildPackage(t, l, "b")

	_, err := reg.AddFromBuild("a")
	require.NoError(t, err)
	before, err := reg.Fingerprint()
	require.NoError(t, err)

	_, err = reg.AddFromBuild("b")
	require.NoError(t, err)
	_, err = reg.Remove("b")
	require.NoError(t, err)

	after, err := reg.Fingerprint()
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestReconcileAll(t *testing.T) {
	reg, l := newRegistry(t)
	buildPackage(t, l, "b")
	buildPackage(t, l, "a")

	// 不是 zip 的文件会被忽略
	require.NoError(t, os.WriteFile(filepath.Join(l.ArchiveDir(), "README.md"), []byte("x"), 0644))

	var seen []types.PackageName
	err := reg.ReconcileAll(func(name types.PackageName, _ Entry) {
		seen = append(seen, name)
	})
	require.NoError(t, err)

	assert.Equal(t, []types.PackageName{"a", "b"}, seen, "按文件名顺序处理")
	assert.Equal(t, []types.PackageName{"a", "b"}, reg.Names())

	// 已经落盘
	loaded := New(l, "")
	state, err := loaded.Load()
	require.NoError(t, err)
	assert.Equal(t, StateValid, state)
	assert.Equal(t, 2, loaded.Len())
}

func TestReconcileAll_PartialFailureKeepsEarlierEntries(t *testing.T) {
	reg, l := newRegistry(t)
	buildPackage(t, l, "a")
	// b.zip 没有对应的源码目录
	require.NoError(t, os.WriteFile(l.ArchivePath("b"), []byte("zip"), 0644))

	err := reg.ReconcileAll(nil)
	assert.ErrorIs(t, err, types.ErrPackageNotFound)

	loaded := New(l, "")
	_, err = loaded.Load()
	require.NoError(t, err)
	_, ok := loaded.Get("a")
	assert.True(t, ok, "a 在失败前已写入磁盘")
}

func TestReconcileAll_NoRepoDir(t *testing.T) {
	reg := New(layout.New(t.TempDir()), "")
	require.NoError(t, reg.ReconcileAll(nil))
	assert.Zero(t, reg.Len())
}

func TestDownloadURL(t *testing.T) {
	reg := New(layout.New(t.TempDir()), "https://mirror.local/{name}/{name}.zip")
	assert.Equal(t, "https://mirror.local/demo/demo.zip", reg.DownloadURL("demo"))
}

func TestAdd_EmptyDependenciesRoundTrip(t *testing.T) {
	reg, l := newRegistry(t)

	reg.Add("demo", Entry{FileName: "demo.zip", Dependencies: []string{}})
	require.NoError(t, reg.Save())

	loaded := New(l, "")
	_, err := loaded.Load()
	require.NoError(t, err)
	assert.Equal(t, reg.Snapshot(), loaded.Snapshot())

	raw, err := os.ReadFile(l.RegistryPath())
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "dependencies")
}

func TestLoad_UnreadableIsAnError(t *testing.T) {
	reg, l := newRegistry(t)
	// 读取失败 (这里是目录) 不等于损坏，不会返回 Corrupt 去触发重建
	require.NoError(t, os.Mkdir(l.RegistryPath(), 0755))

	_, err := reg.Load()
	assert.Error(t, err)
	assert.NotErrorIs(t, err, types.ErrParse)
}
