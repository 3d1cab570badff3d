package meta

import (
	"context"
	"testing"

	"dpmserver/pkg/core"
	"dpmserver/pkg/registry"
	"dpmserver/pkg/types"

	"github.com/stretchr/testify/require"
)

// -----------------------------------------------------------------------------
// 通用辅助函数 (Helpers)
// -----------------------------------------------------------------------------

// mockEntry 生成一条测试用记录
func mockEntry(name string, deps ...string) registry.Entry {
	return registry.Entry{
		URL:          "https://example.com/" + name + ".zip",
		FileName:     name + ".zip",
		Version:      "1.0.0",
		Hash:         core.HashBytes([]byte(name)),
		Dependencies: deps,
	}
}

// mustSync 同步失败直接终止测试，指纹与 registry.Fingerprint 的算法一致
func mustSync(t *testing.T, repo *Repository, entries map[types.PackageName]registry.Entry, msgAndArgs ...any) types.Hash {
	t.Helper()
	fp, _, err := core.CalculateHash(entries)
	require.NoError(t, err)
	require.NoError(t, repo.Sync(context.Background(), entries, fp), msgAndArgs...)
	return fp
}

// namesOf 提取包名，保持原有顺序
func namesOf(models []PackageModel) []string {
	out := make([]string, 0, len(models))
	for _, m := range models {
		out = append(out, m.Name)
	}
	return out
}
