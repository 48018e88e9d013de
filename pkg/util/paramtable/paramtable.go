// Package paramtable 定义服务的全部配置项及其默认值，并负责从文件和环境变量加载。
package paramtable

import (
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/lk2023060901/danmu-online-go/pkg/log"
	"github.com/lk2023060901/danmu-online-go/pkg/util/merr"
	"github.com/lk2023060901/danmu-online-go/pkg/util/viper"
)

const (
	// EnvPrefix 为环境变量覆盖的前缀，例如 ONLINE_HTTP_PORT。
	EnvPrefix = "ONLINE"
	// ConfigFileEnv 用于指定配置文件路径的环境变量。
	ConfigFileEnv = "ONLINE_CONFIG_FILE_PATH"
	// DefaultConfigFile 为未指定配置文件时尝试加载的路径，文件不存在时使用默认值。
	DefaultConfigFile = "config.yaml"
)

// HTTPConfig 为 HTTP 服务配置。
type HTTPConfig struct {
	Address string `mapstructure:"address"`
	Port    int    `mapstructure:"port"`
	// CORS 为 true 时为所有响应附加跨域头，并以 204 响应 OPTIONS 预检请求。
	CORS bool `mapstructure:"cors"`
	// ShutdownTimeout 为优雅关闭时等待进行中请求完成的最长时间。
	ShutdownTimeout time.Duration `mapstructure:"shutdown-timeout"`
}

// ListenAddr 返回 host:port 形式的监听地址。
func (c HTTPConfig) ListenAddr() string {
	return net.JoinHostPort(c.Address, strconv.Itoa(c.Port))
}

// OnlineConfig 为会话注册表配置。
type OnlineConfig struct {
	SweepInterval time.Duration `mapstructure:"sweep-interval"`
	SessionTTL    time.Duration `mapstructure:"session-ttl"`
}

// MetricsConfig 为 Prometheus 指标暴露配置。
type MetricsConfig struct {
	Enable bool   `mapstructure:"enable"`
	Path   string `mapstructure:"path"`
}

// Config 为服务的完整配置。
type Config struct {
	HTTP    HTTPConfig    `mapstructure:"http"`
	Online  OnlineConfig  `mapstructure:"online"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Log     log.Config    `mapstructure:"log"`
	// Logging 为按模块命名的独立 Logger 配置，例如 logging.registry。
	Logging map[string]log.Config `mapstructure:"logging"`
}

var defaults = map[string]any{
	"http.address":          "0.0.0.0",
	"http.port":             8080,
	"http.cors":             true,
	"http.shutdown-timeout": "5s",
	"online.sweep-interval": "30s",
	"online.session-ttl":    "60s",
	"metrics.enable":        true,
	"metrics.path":          "/metrics",
	"log.level":             "info",
	"log.format":            "text",
	"log.stdout":            true,
	"log.file.rootpath":     "",
	"log.file.filename":     "",
	"log.file.max-size":     300,
	"log.file.max-days":     0,
	"log.file.max-backups":  0,
}

// ResolveConfigPath 按 命令行参数 > 环境变量 > 默认路径 的顺序确定配置文件路径。
// explicit 表示路径是否由调用方显式指定，显式指定的文件不存在时 Load 会返回错误。
func ResolveConfigPath(flagValue string) (path string, explicit bool) {
	if flagValue != "" {
		return flagValue, true
	}
	if env := os.Getenv(ConfigFileEnv); env != "" {
		return env, true
	}
	return DefaultConfigFile, false
}

// Default 返回只包含默认值的配置。
func Default() *Config {
	cfg, err := load("", false)
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load 加载配置并校验。path 为空时按 ResolveConfigPath 的规则确定配置文件。
func Load(path string) (*Config, error) {
	path, explicit := ResolveConfigPath(path)
	cfg, err := load(path, explicit)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func load(path string, explicit bool) (*Config, error) {
	v := viper.New(EnvPrefix)
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if path != "" {
		_, statErr := os.Stat(path)
		switch {
		case statErr == nil:
			if err := v.LoadFile(path); err != nil {
				return nil, errors.Wrapf(err, "load config file %s", path)
			}
		case explicit || !os.IsNotExist(statErr):
			return nil, errors.Wrapf(statErr, "load config file %s", path)
		default:
			log.Info("config file not found, use defaults", log.FieldModule("paramtable"))
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, merr.WrapErrIncorrectParameterFormat(err.Error(), "decode config")
	}
	return cfg, nil
}

// Validate 校验配置取值，返回所有不合法项合并后的错误。
func (c *Config) Validate() error {
	var errs []error
	if c.HTTP.Port < 1 || c.HTTP.Port > 65535 {
		errs = append(errs, merr.WrapErrParameterInvalidRange(1, 65535, c.HTTP.Port, "http.port out of range"))
	}
	if c.HTTP.ShutdownTimeout <= 0 {
		errs = append(errs, merr.WrapErrParameterInvalidMsg("http.shutdown-timeout must be positive, got %s", c.HTTP.ShutdownTimeout))
	}
	if c.Online.SweepInterval <= 0 {
		errs = append(errs, merr.WrapErrParameterInvalidMsg("online.sweep-interval must be positive, got %s", c.Online.SweepInterval))
	}
	if c.Online.SessionTTL <= 0 {
		errs = append(errs, merr.WrapErrParameterInvalidMsg("online.session-ttl must be positive, got %s", c.Online.SessionTTL))
	}
	if c.Metrics.Enable && !strings.HasPrefix(c.Metrics.Path, "/") {
		errs = append(errs, merr.WrapErrParameterInvalidMsg("metrics.path must start with '/', got %q", c.Metrics.Path))
	}
	return merr.Combine(errs...)
}
