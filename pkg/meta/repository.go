package meta

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"dpmserver/pkg/registry"
	"dpmserver/pkg/types"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository 封装所有对 SQL 数据库的操作
type Repository struct {
	db *DB
}

func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// -----------------------------------------------------------------------------
// 1. 同步 (Registry -> SQL)
// -----------------------------------------------------------------------------

// stateID 是 sync_state 表唯一一行的主键
const stateID = 1

// Sync 将注册表整体投影到 packages 表
// 在一个事务里 upsert 全部记录，删除注册表中已经不存在的行，并记录注册表指纹
func (r *Repository) Sync(ctx context.Context, entries map[types.PackageName]registry.Entry, fingerprint types.Hash) error {
	now := time.Now()

	models := make([]PackageModel, 0, len(entries))
	names := make([]string, 0, len(entries))
	for name, e := range entries {
		m, err := toModel(name, e, now)
		if err != nil {
			return err
		}
		models = append(models, m)
		names = append(names, string(name))
	}

	return r.db.GetConn().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 1. 删除多余的行
		del := tx.Session(&gorm.Session{AllowGlobalUpdate: true})
		if len(names) > 0 {
			del = del.Where("name NOT IN ?", names)
		}
		if err := del.Delete(&PackageModel{}).Error; err != nil {
			return fmt.Errorf("failed to prune catalog: %w", err)
		}

		// 2. Upsert：主键冲突时覆盖所有列
		if len(models) > 0 {
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "name"}},
				UpdateAll: true,
			}).Create(&models).Error
			if err != nil {
				return fmt.Errorf("failed to upsert catalog: %w", err)
			}
		}

		// 3. 记录本次同步对应的指纹
		state := SyncState{ID: stateID, Fingerprint: fingerprint.String(), UpdatedAt: now}
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).Create(&state).Error
		if err != nil {
			return fmt.Errorf("failed to record sync state: %w", err)
		}
		return nil
	})
}

// SyncedFingerprint 返回上一次 Sync 记录的注册表指纹，从未同步过时返回空
func (r *Repository) SyncedFingerprint(ctx context.Context) (types.Hash, error) {
	var state SyncState
	err := r.db.GetConn().WithContext(ctx).
		Where("id = ?", stateID).
		First(&state).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return types.Hash(state.Fingerprint), nil
}

func toModel(name types.PackageName, e registry.Entry, now time.Time) (PackageModel, error) {
	deps := e.Dependencies
	if deps == nil {
		deps = []string{}
	}
	depsJSON, err := json.Marshal(deps)
	if err != nil {
		return PackageModel{}, fmt.Errorf("failed to marshal dependencies: %w", err)
	}
	return PackageModel{
		Name:         string(name),
		FileName:     e.FileName,
		Version:      e.Version,
		Hash:         e.Hash.String(),
		URL:          e.URL,
		Dependencies: datatypes.JSON(depsJSON),
		UpdatedAt:    now,
	}, nil
}

// -----------------------------------------------------------------------------
// 2. 查询
// -----------------------------------------------------------------------------

// Get 按包名查询，不存在时返回 types.ErrPackageNotFound
func (r *Repository) Get(ctx context.Context, name types.PackageName) (*PackageModel, error) {
	var m PackageModel
	err := r.db.GetConn().WithContext(ctx).
		Where("name = ?", string(name)).
		First(&m).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("package %q: %w", name, types.ErrPackageNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// List 返回所有包，按名称排序
func (r *Repository) List(ctx context.Context) ([]PackageModel, error) {
	var models []PackageModel
	err := r.db.GetConn().WithContext(ctx).
		Order("name ASC").
		Find(&models).Error
	return models, err
}

// Dependents 返回依赖列表中包含 name 的所有包
// JSON 数组的查询语法在 SQLite 与 PG 之间不通用，这里取回后在内存里过滤
func (r *Repository) Dependents(ctx context.Context, name types.PackageName) ([]PackageModel, error) {
	all, err := r.List(ctx)
	if err != nil {
		return nil, err
	}

	var out []PackageModel
	for _, m := range all {
		deps, err := m.DependencyList()
		if err != nil {
			return nil, err
		}
		if slices.Contains(deps, string(name)) {
			out = append(out, m)
		}
	}
	return out, nil
}

// DependencyList 解码 Dependencies 列
func (m *PackageModel) DependencyList() ([]string, error) {
	if len(m.Dependencies) == 0 {
		return nil, nil
	}
	var deps []string
	if err := json.Unmarshal(m.Dependencies, &deps); err != nil {
		return nil, fmt.Errorf("package %s: bad dependencies column: %w", m.Name, err)
	}
	return deps, nil
}

// Entry 把行还原成 registry.Entry
func (m *PackageModel) Entry() (registry.Entry, error) {
	deps, err := m.DependencyList()
	if err != nil {
		return registry.Entry{}, err
	}
	if len(deps) == 0 {
		deps = nil
	}
	return registry.Entry{
		URL:          m.URL,
		FileName:     m.FileName,
		Version:      m.Version,
		Hash:         types.Hash(m.Hash),
		Dependencies: deps,
	}, nil
}
