package archive

import (
	"os"
	"path/filepath"
	"testing"

	"dpmserver/pkg/core"
	"dpmserver/pkg/types"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTree 按 map 写入一棵目录树
func setupTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := filepath.Join(t.TempDir(), "pkg")
	require.NoError(t, os.MkdirAll(root, 0755))
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	return root
}

func TestBuild_EntriesAreRelative(t *testing.T) {
	root := setupTree(t, map[string]string{
		"main.txt":         "hello",
		"lib/util.txt":     "util",
		"lib/deep/x.bin":   "x",
		"packageInfo.json": "{}",
	})
	zipPath := filepath.Join(t.TempDir(), "pkg.zip")

	require.NoError(t, Build(root, zipPath))

	names, err := Entries(zipPath)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		"lib/",
		"lib/deep/",
		"lib/deep/x.bin",
		"lib/util.txt",
		"main.txt",
		"packageInfo.json",
	}, names)
}

func TestBuild_UsesDeflate(t *testing.T) {
	root := setupTree(t, map[string]string{"main.txt": "hello hello hello hello"})
	zipPath := filepath.Join(t.TempDir(), "pkg.zip")
	require.NoError(t, Build(root, zipPath))

	r, err := zip.OpenReader(zipPath)
	require.NoError(t, err)
	defer r.Close()

	require.Len(t, r.File, 1)
	assert.Equal(t, zip.Deflate, r.File[0].Method)
}

func TestBuild_ContentRoundTrip(t *testing.T) {
	files := map[string]string{
		"main.txt":     "hello",
		"data/raw.bin": "\x00\xff\x10binary",
	}
	root := setupTree(t, files)
	zipPath := filepath.Join(t.TempDir(), "pkg.zip")
	require.NoError(t, Build(root, zipPath))

	digests, err := Digests(zipPath)
	require.NoError(t, err)
	require.Len(t, digests, len(files))

	for name, content := range files {
		assert.Equal(t, core.HashBytes([]byte(content)), digests[name], name)
	}
}

func TestBuild_RebuildIsContentStable(t *testing.T) {
	root := setupTree(t, map[string]string{"a.txt": "a", "b/c.txt": "c"})
	dir := t.TempDir()
	z1 := filepath.Join(dir, "one.zip")
	z2 := filepath.Join(dir, "two.zip")

	require.NoError(t, Build(root, z1))
	require.NoError(t, Build(root, z2))

	d1, err := Digests(z1)
	require.NoError(t, err)
	d2, err := Digests(z2)
	require.NoError(t, err)
	assert.Equal(t, d1, d2, "源码不变时解压内容必须一致")
}

func TestBuild_Overwrites(t *testing.T) {
	root := setupTree(t, map[string]string{"a.txt": "v1"})
	zipPath := filepath.Join(t.TempDir(), "pkg.zip")
	require.NoError(t, Build(root, zipPath))

	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("v2"), 0644))
	require.NoError(t, Build(root, zipPath))

	data, err := ReadFile(zipPath, "a.txt")
	require.NoError(t, err)
	assert.Equal(t, "v2", string(data))
}

func TestBuild_RespectsIgnoreFile(t *testing.T) {
	root := setupTree(t, map[string]string{
		".dpmignore":  "*.log\ncache/\n",
		"app.log":     "noise",
		"cache/blob":  "tmp",
		"main.txt":    "keep",
		"hashes.json": "{}",
	})
	zipPath := filepath.Join(t.TempDir(), "pkg.zip")
	require.NoError(t, Build(root, zipPath))

	names, err := Entries(zipPath)
	require.NoError(t, err)
	assert.NotContains(t, names, "app.log")
	assert.NotContains(t, names, "cache/blob")
	assert.Contains(t, names, "main.txt")
	assert.Contains(t, names, "hashes.json")
}

func TestBuild_PackageNotFound(t *testing.T) {
	zipPath := filepath.Join(t.TempDir(), "ghost.zip")
	err := Build(filepath.Join(t.TempDir(), "ghost"), zipPath)
	assert.ErrorIs(t, err, types.ErrPackageNotFound)

	_, statErr := os.Stat(zipPath)
	assert.True(t, os.IsNotExist(statErr), "失败时不应该生成归档")
}

func TestReadFile_Missing(t *testing.T) {
	root := setupTree(t, map[string]string{"a.txt": "a"})
	zipPath := filepath.Join(t.TempDir(), "pkg.zip")
	require.NoError(t, Build(root, zipPath))

	_, err := ReadFile(zipPath, "ghost.txt")
	assert.ErrorIs(t, err, ErrEntryNotFound)
}

func TestExtract_RestoresTree(t *testing.T) {
	files := map[string]string{"main.txt": "hello", "lib/util.txt": "util"}
	root := setupTree(t, files)
	zipPath := filepath.Join(t.TempDir(), "pkg.zip")
	require.NoError(t, Build(root, zipPath))

	dest := t.TempDir()
	require.NoError(t, Extract(zipPath, dest))

	for name, content := range files {
		data, err := os.ReadFile(filepath.Join(dest, filepath.FromSlash(name)))
		require.NoError(t, err)
		assert.Equal(t, content, string(data))
	}
}

func TestExtract_RejectsZipSlip(t *testing.T) {
	zipPath := filepath.Join(t.TempDir(), "evil.zip")
	f, err := os.Create(zipPath)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("../escape.txt")
	require.NoError(t, err)
	_, err = w.Write([]byte("pwned"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	dest := filepath.Join(t.TempDir(), "out")
	require.Error(t, Extract(zipPath, dest))

	_, statErr := os.Stat(filepath.Join(filepath.Dir(dest), "escape.txt"))
	assert.True(t, os.IsNotExist(statErr))
}
