package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"dpmserver/pkg/registry"

	"github.com/spf13/viper"
)

// 配置项
const (
	KeyRoot          = "repo.root"
	KeyURLTemplate   = "registry.url_template"
	KeyLogLevel      = "log.level"
	KeyCatalogDriver = "catalog.driver"
	KeyCatalogDSN    = "catalog.dsn"
)

// Load 初始化 Viper 配置
// cfgFile: 可选，用户显式指定的配置文件路径
// 返回实际使用的配置文件，没找到时为空
func Load(cfgFile string) (string, error) {
	// 1. 设置默认值 (Defaults)
	setDefaults()

	// 2. 配置搜索路径
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// 搜索顺序：
		// 1. 当前目录
		viper.AddConfigPath(".")
		// 2. 当前目录下的 .dpm
		viper.AddConfigPath(".dpm")
		// 3. 用户主目录下的 .dpm (拿不到 HOME 时跳过)
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(filepath.Join(home, ".dpm"))
		}

		viper.SetConfigType("yaml")
		viper.SetConfigName("config") // 找 config.yaml
	}

	// 3. 读取环境变量 (DPM_REPO_ROOT, DPM_CATALOG_DSN 等)
	viper.SetEnvPrefix("DPM")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// 4. 读取配置文件
	if err := viper.ReadInConfig(); err != nil {
		// 没找到配置文件不算错，默认值和环境变量依然生效
		// 但如果是配置文件格式错，那就是错
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return "", nil
		}
		return "", fmt.Errorf("fatal error config file: %w", err)
	}

	return viper.ConfigFileUsed(), nil
}

func setDefaults() {
	viper.SetDefault(KeyRoot, ".")
	viper.SetDefault(KeyURLTemplate, registry.DefaultURLTemplate)
	viper.SetDefault(KeyLogLevel, "info")

	// 默认不启用 SQL catalog
	viper.SetDefault(KeyCatalogDriver, "")
	viper.SetDefault(KeyCatalogDSN, "")
}
