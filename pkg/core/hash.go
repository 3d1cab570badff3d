package core

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"dpmserver/pkg/types"

	"github.com/fxamacker/cbor/v2"
)

// 定义 Canonical CBOR 编码选项
// 用于给结构化数据 (注册表、描述文件) 计算与 map 顺序无关的指纹
var encOptions = cbor.EncOptions{
	// 1. 强制 Map Key 排序 (Canonical)
	// 保证相同的对象生成唯一的 Hash
	Sort: cbor.SortCanonical,

	// 2. 浮点数必须使用64位表示
	ShortestFloat: cbor.ShortestFloatNone,
	// 3. 时间格式化为 Unix 整数
	Time:    cbor.TimeUnix,
	TimeTag: cbor.EncTagNone,

	// 4. 禁止不定长编码 (Indefinite Length)
	IndefLength: cbor.IndefLengthForbidden,
}

// 全局复用的编码模式
var em, _ = encOptions.EncMode()

// CalculateHash 计算结构化对象的指纹和序列化数据
// 与 JSON 不同，这里的字节布局是确定的，可以用来比较两次运行的结果
func CalculateHash(v any) (types.Hash, []byte, error) {
	data, err := em.Marshal(v)
	if err != nil {
		return "", nil, fmt.Errorf("failed to marshal object: %w", err)
	}

	return HashBytes(data), data, nil
}

// HashBytes 计算原始数据的 Hash
func HashBytes(data []byte) types.Hash {
	hashBytes := sha256.Sum256(data)
	return types.Hash(hex.EncodeToString(hashBytes[:]))
}

// HashReader 流式计算 Hash，结果与一次性读入内存完全一致
func HashReader(r io.Reader) (types.Hash, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return types.Hash(hex.EncodeToString(h.Sum(nil))), nil
}

// HashFile 计算单个文件内容的摘要
// 打开或读取失败时返回包装后的 *fs.PathError
func HashFile(path string) (types.Hash, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	hash, err := HashReader(f)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return hash, nil
}
