// pkg/app/app.go
package app

import (
	"context"
	"fmt"
	"io"
	"os"

	"dpmserver/pkg/config"
	"dpmserver/pkg/layout"
	"dpmserver/pkg/meta"
	"dpmserver/pkg/registry"
	"dpmserver/pkg/types"

	"github.com/charmbracelet/log"
	"github.com/spf13/viper"
)

// App 是整个应用程序的依赖容器 (Dependency Container)
// 每个进程构建一次，由 CLI 传给各个子命令
type App struct {
	Layout   *layout.Layout
	Registry *registry.Registry
	Logger   *log.Logger
	Out      io.Writer // 面向人的输出 (进度行、表格)

	// Catalog 为 nil 表示没有启用 SQL catalog
	Catalog *meta.Repository
	db      *meta.DB

	// 启动时 (必要时重建之后) 注册表的指纹
	loaded types.Hash
}

// NewApp 是工厂函数，负责组装这一台机器
// 它遵循 Viper 的配置，但不知道具体的 CLI 命令
func NewApp(ctx context.Context, out io.Writer, logger *log.Logger) (*App, error) {
	// 1. 仓库根路径
	root := viper.GetString(config.KeyRoot)
	if root == "" {
		return nil, fmt.Errorf("repo root not set")
	}
	l := layout.New(root)

	// 2. 保证 Repo/src 存在
	if err := os.MkdirAll(l.SrcDir(), 0755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", l.SrcDir(), err)
	}

	// 3. 加载注册表，不存在或损坏时从归档重建
	reg, err := openRegistry(l, viper.GetString(config.KeyURLTemplate), logger)
	if err != nil {
		return nil, err
	}

	loaded, err := reg.Fingerprint()
	if err != nil {
		return nil, err
	}

	a := &App{
		Layout:   l,
		Registry: reg,
		Logger:   logger,
		Out:      out,
		loaded:   loaded,
	}

	// 4. 可选的 SQL catalog
	if driver := viper.GetString(config.KeyCatalogDriver); driver != "" {
		db, err := meta.NewDB(ctx, meta.Config{
			Driver: driver,
			DSN:    viper.GetString(config.KeyCatalogDSN),
			Debug:  logger.GetLevel() <= log.DebugLevel,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to init catalog: %w", err)
		}
		a.db = db
		a.Catalog = meta.NewRepository(db)
	}

	return a, nil
}

func openRegistry(l *layout.Layout, urlTemplate string, logger *log.Logger) (*registry.Registry, error) {
	reg := registry.New(l, urlTemplate)
	state, err := reg.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load registry: %w", err)
	}

	switch state {
	case registry.StateValid:
		logger.Debug("registry loaded", "path", l.RegistryPath(), "entries", reg.Len())
		return reg, nil
	case registry.StateAbsent:
		logger.Warn("RepoInfo.json not found, rebuilding from archives", "path", l.RegistryPath())
	case registry.StateCorrupt:
		// 只能从 zip + packageInfo.json 推导，手工修改过的记录会丢失
		logger.Warn("failed to parse RepoInfo.json, rebuilding from archives", "path", l.RegistryPath())
	}

	err = reg.ReconcileAll(func(name types.PackageName, e registry.Entry) {
		logger.Info("reconciled", "package", name, "version", e.Version, "hash", e.Hash.Short())
	})
	if err != nil {
		return nil, fmt.Errorf("failed to reconcile registry: %w", err)
	}

	// 没有任何归档时也落盘一个空注册表，下次启动即为 Valid
	if err := reg.Save(); err != nil {
		return nil, err
	}
	return reg, nil
}

// Commit 在子命令成功后调用：写回注册表，并同步 catalog
// 指纹与启动时相同说明内容没有变化，跳过写盘
func (a *App) Commit(ctx context.Context) error {
	fp, err := a.Registry.Fingerprint()
	if err != nil {
		return err
	}

	if fp == a.loaded {
		a.Logger.Debug("registry unchanged", "fingerprint", fp.Short())
	} else {
		if err := a.Registry.Save(); err != nil {
			return err
		}
		a.loaded = fp
		a.Logger.Debug("registry saved", "entries", a.Registry.Len(), "fingerprint", fp.Short())
	}

	return a.SyncCatalog(ctx)
}

// SyncCatalog 把注册表同步到 SQL catalog
// catalog 记录的指纹与当前注册表一致时什么都不做
func (a *App) SyncCatalog(ctx context.Context) error {
	if a.Catalog == nil {
		return nil
	}

	fp, err := a.Registry.Fingerprint()
	if err != nil {
		return err
	}
	synced, err := a.Catalog.SyncedFingerprint(ctx)
	if err != nil {
		return fmt.Errorf("catalog state: %w", err)
	}
	if synced == fp {
		a.Logger.Debug("catalog up to date", "fingerprint", fp.Short())
		return nil
	}

	if err := a.Catalog.Sync(ctx, a.Registry.Snapshot(), fp); err != nil {
		return fmt.Errorf("catalog sync: %w", err)
	}
	a.Logger.Debug("catalog synced", "entries", a.Registry.Len(), "fingerprint", fp.Short())
	return nil
}

// Close 释放外部资源，不写回注册表
func (a *App) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}
