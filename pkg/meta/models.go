package meta

import (
	"time"

	"gorm.io/datatypes"
)

// PackageModel 是 registry.Entry 在关系型数据库中的投影
// RepoInfo.json 才是真相来源，这张表随时可以从它重建
type PackageModel struct {
	// Name 是主键，大小写敏感
	Name string `gorm:"primaryKey;type:varchar(255)"`

	FileName string `gorm:"type:varchar(255);not null"`
	Version  string `gorm:"index;type:varchar(64)"`

	// Hash 是 zip 文件的摘要
	Hash string `gorm:"type:char(64);not null"`
	URL  string `gorm:"type:text"`

	// Dependencies: ["libfoo", "libbar"]
	Dependencies datatypes.JSON

	UpdatedAt time.Time
}

// TableName 强制指定表名
func (PackageModel) TableName() string {
	return "packages"
}

// SyncState 记录上一次同步时注册表的指纹 (单行表)
// 指纹相同说明 packages 表已经是最新的
type SyncState struct {
	ID          uint   `gorm:"primaryKey"`
	Fingerprint string `gorm:"type:char(64);not null"`
	UpdatedAt   time.Time
}

func (SyncState) TableName() string {
	return "sync_state"
}
