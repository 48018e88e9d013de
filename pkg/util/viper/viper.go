package viper

import (
	"path/filepath"
	"strings"

	spfviper "github.com/spf13/viper"
)

// Config 封装 spf13/viper 实例，对外提供精简的 YAML/JSON 配置加载接口。
//
// 配置项的优先级从高到低为：环境变量、配置文件、SetDefault 设置的默认值。
type Config struct {
	v *spfviper.Viper
}

// New 创建一个空的 Config。
// envPrefix 非空时启用环境变量覆盖，key 中的 "." 与 "-" 均映射为 "_"，
// 例如前缀 ONLINE 下 http.port 对应 ONLINE_HTTP_PORT。
func New(envPrefix string) *Config {
	v := spfviper.New()
	if envPrefix != "" {
		v.SetEnvPrefix(envPrefix)
		v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
		v.AutomaticEnv()
	}
	return &Config{v: v}
}

// SetDefault 设置 key 的默认值。
// 只有设置过默认值（或出现在配置文件中）的 key 才会在 Unmarshal 时读取环境变量。
func (c *Config) SetDefault(key string, value any) {
	c.v.SetDefault(key, value)
}

// LoadFile 将 YAML 或 JSON 配置文件加载到 Config 中。
// 文件类型通过扩展名（.yaml/.yml/.json）推断。
func (c *Config) LoadFile(path string) error {
	c.v.SetConfigFile(path)

	switch ext := filepath.Ext(path); ext {
	case ".yaml", ".yml":
		c.v.SetConfigType("yaml")
	case ".json":
		c.v.SetConfigType("json")
	default:
		// 让 viper 自行推断类型，或在读取时返回清晰的错误信息。
	}

	return c.v.ReadInConfig()
}

// Unmarshal 将合并后的完整配置反序列化到 dst，按 环境变量 > 配置文件 > 默认值 取值。
// dst 应为结构体或 map 的指针。
func (c *Config) Unmarshal(dst any) error {
	return c.v.Unmarshal(dst)
}
