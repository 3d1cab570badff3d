package types

import "errors"

var (
	// ErrPackageNotFound 包的源码目录 (或描述文件) 不存在
	ErrPackageNotFound = errors.New("package not found")
	// ErrArchiveNotFound 注册表推导时找不到 <name>.zip
	ErrArchiveNotFound = errors.New("archive not found")
	// ErrAlreadyExists init 的目标目录已存在
	ErrAlreadyExists = errors.New("already exists")
	// ErrParse JSON 内容损坏或字段类型不匹配
	ErrParse = errors.New("malformed json")
	// ErrInvalidName 包名为空或包含路径分隔符
	ErrInvalidName = errors.New("invalid package name")
	// ErrInvalidEntry 入口文件路径为空、是绝对路径、逃出包目录或与保留文件同名
	ErrInvalidEntry = errors.New("invalid entry file")
	// ErrIntegrity verify 发现摘要不一致
	ErrIntegrity = errors.New("integrity check failed")
)
