// Package archive 把包目录打成 zip，以及从 zip 中读取内容
package archive

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"dpmserver/pkg/core"
	"dpmserver/pkg/ignore"
	"dpmserver/pkg/types"

	"github.com/klauspost/compress/zip"
)

// ErrEntryNotFound 归档中没有指定的条目
var ErrEntryNotFound = errors.New("entry not found in archive")

// Build 将 packageRoot 下的所有文件和目录写入 archivePath
// 条目名是相对 packageRoot 的 slash 路径，目录以 "/" 结尾，文件使用 Deflate 压缩。
// 容器字节不保证可复现 (修改时间会变)，但解压后的内容与源码逐字节一致。
func Build(packageRoot, archivePath string) (err error) {
	// 1. 包目录必须存在
	if _, statErr := os.Stat(packageRoot); os.IsNotExist(statErr) {
		return fmt.Errorf("%s: %w", packageRoot, types.ErrPackageNotFound)
	} else if statErr != nil {
		return fmt.Errorf("failed to stat %s: %w", packageRoot, statErr)
	}

	matcher, err := ignore.NewMatcher(packageRoot)
	if err != nil {
		return err
	}

	// 2. 创建 zip 文件
	zipFile, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}
	defer func() {
		if closeErr := zipFile.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	zipWriter := zip.NewWriter(zipFile)

	// 3. 遍历目录 (WalkDir 按字典序，条目顺序稳定)
	walkErr := filepath.WalkDir(packageRoot, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		relPath, relErr := filepath.Rel(packageRoot, path)
		if relErr != nil {
			return fmt.Errorf("failed to get relative path: %w", relErr)
		}
		if relPath == "." {
			return nil
		}
		zipPath := filepath.ToSlash(relPath)

		if matcher.Matches(zipPath) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		info, infoErr := d.Info()
		if infoErr != nil {
			return fmt.Errorf("failed to get file info: %w", infoErr)
		}

		if d.IsDir() {
			header, headerErr := zip.FileInfoHeader(info)
			if headerErr != nil {
				return fmt.Errorf("failed to create directory header: %w", headerErr)
			}
			header.Name = zipPath + "/"
			if _, createErr := zipWriter.CreateHeader(header); createErr != nil {
				return fmt.Errorf("failed to create directory entry: %w", createErr)
			}
			return nil
		}

		if !info.Mode().IsRegular() {
			return nil
		}
		return addFile(zipWriter, path, zipPath, info)
	})

	if walkErr != nil {
		_ = zipWriter.Close()
		// 失败时不留下半个归档
		defer func() { _ = os.Remove(archivePath) }()
		return fmt.Errorf("failed to archive package: %w", walkErr)
	}

	if err := zipWriter.Close(); err != nil {
		return fmt.Errorf("failed to finalize archive: %w", err)
	}
	return nil
}

func addFile(zw *zip.Writer, path, zipPath string, info fs.FileInfo) error {
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("failed to create file header: %w", err)
	}
	header.Name = zipPath
	header.Method = zip.Deflate
	header.SetMode(0o755)

	w, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("failed to create zip entry: %w", err)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to write %s: %w", zipPath, err)
	}
	return nil
}

// Entries 按归档内顺序返回所有条目名 (目录带 "/")
func Entries(archivePath string) ([]string, error) {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	defer r.Close()

	names := make([]string, 0, len(r.File))
	for _, f := range r.File {
		names = append(names, f.Name)
	}
	return names, nil
}

// Digests 计算归档内每个文件解压后的摘要
// 用于校验归档内容与哈希清单是否一致
func Digests(archivePath string) (map[string]types.Hash, error) {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	defer r.Close()

	out := make(map[string]types.Hash, len(r.File))
	for _, f := range r.File {
		if strings.HasSuffix(f.Name, "/") {
			continue
		}
		// 用匿名函数构建 Scope，保证每个条目读完立即关闭
		err := func() error {
			rc, err := f.Open()
			if err != nil {
				return fmt.Errorf("failed to open entry %s: %w", f.Name, err)
			}
			defer rc.Close()

			hash, err := core.HashReader(rc)
			if err != nil {
				return fmt.Errorf("failed to read entry %s: %w", f.Name, err)
			}
			out[f.Name] = hash
			return nil
		}()
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ReadFile 读取归档内单个文件的内容
func ReadFile(archivePath, name string) ([]byte, error) {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	defer r.Close()

	for _, f := range r.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open entry %s: %w", name, err)
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	return nil, fmt.Errorf("%s: %w", name, ErrEntryNotFound)
}

// Extract 将归档解压到 destDir
// 任何试图逃出 destDir 的条目 (zip slip) 都会导致失败
func Extract(archivePath, destDir string) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer r.Close()

	absDest, err := filepath.Abs(destDir)
	if err != nil {
		return fmt.Errorf("failed to resolve destination: %w", err)
	}

	for _, f := range r.File {
		target := filepath.Join(absDest, filepath.FromSlash(f.Name))
		if target != absDest && !strings.HasPrefix(target, absDest+string(os.PathSeparator)) {
			return fmt.Errorf("illegal entry path in archive: %s", f.Name)
		}

		if strings.HasSuffix(f.Name, "/") {
			if err := os.MkdirAll(target, 0755); err != nil {
				return fmt.Errorf("failed to create dir %s: %w", target, err)
			}
			continue
		}

		if err := extractFile(f, target); err != nil {
			return err
		}
	}
	return nil
}

func extractFile(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("failed to create dir for %s: %w", target, err)
	}

	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("failed to open entry %s: %w", f.Name, err)
	}
	defer rc.Close()

	out, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("failed to create file %s: %w", target, err)
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return fmt.Errorf("failed to extract %s: %w", f.Name, err)
	}
	return out.Close()
}
