// Package config 加载运行配置: 默认值 < 配置文件 < 环境变量 < 命令行
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/RecoveryAshes/naracrawler/internal/models"
	"github.com/RecoveryAshes/naracrawler/internal/utils"
	"github.com/spf13/viper"
)

const (
	// DefaultConfigFile init-config默认写出的位置
	DefaultConfigFile = "configs/config.yaml"

	// MaxConfigFileSize 配置文件最大大小 (1MB)
	MaxConfigFileSize = 1 * 1024 * 1024

	// EnvPrefix 环境变量前缀,如 NARACRAWLER_CRAWL_WORKERS
	EnvPrefix = "NARACRAWLER"
)

//go:embed config_template.yaml
var configTemplate string

// Config 应用程序配置
type Config struct {
	Crawl   models.CrawlConfig `mapstructure:"crawl"`
	Logging LoggingConfig      `mapstructure:"logging"`
	Headers map[string]string  `mapstructure:"headers"`

	// 实际读取的配置文件,未找到时为空
	File string `mapstructure:"-"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level    string         `mapstructure:"level"`
	LogDir   string         `mapstructure:"log_dir"`
	Rotation RotationConfig `mapstructure:"rotation"`
}

// RotationConfig 日志轮转配置
type RotationConfig struct {
	MaxSize    int  `mapstructure:"max_size"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAge     int  `mapstructure:"max_age"`
	Compress   bool `mapstructure:"compress"`
}

// Load 加载配置文件
// configPath为空时依次搜索 ./configs、当前目录、~/.naracrawler,都没有则只用默认值
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		if err := checkFileSize(configPath); err != nil {
			return nil, err
		}
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".naracrawler"))
		}
	}

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, &models.ConfigError{FilePath: configPath, Cause: err}
		}
		utils.Debugf("未找到配置文件,使用默认配置")
	} else if configPath == "" {
		if err := checkFileSize(v.ConfigFileUsed()); err != nil {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, &models.ConfigError{
			FilePath: v.ConfigFileUsed(),
			Cause:    fmt.Errorf("配置绑定失败: %w", err),
		}
	}
	if config.Headers == nil {
		config.Headers = make(map[string]string)
	}
	config.File = v.ConfigFileUsed()

	return &config, nil
}

func checkFileSize(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return &models.ConfigError{FilePath: path, Cause: err}
	}
	if info.Size() > MaxConfigFileSize {
		return &models.ConfigError{
			FilePath: path,
			Cause:    fmt.Errorf("配置文件过大: %d 字节 (最大 %d 字节)", info.Size(), MaxConfigFileSize),
		}
	}
	return nil
}

// setDefaults 设置默认配置值
func setDefaults(v *viper.Viper) {
	d := models.DefaultCrawlConfig()

	v.SetDefault("crawl.start", 0)
	v.SetDefault("crawl.end", 0)
	v.SetDefault("crawl.output_dir", d.OutputDir)
	v.SetDefault("crawl.formats", d.Formats)
	v.SetDefault("crawl.workers", d.Workers)
	v.SetDefault("crawl.headless", d.Headless)
	v.SetDefault("crawl.stealth", d.Stealth)
	v.SetDefault("crawl.resume", d.Resume)
	v.SetDefault("crawl.page_timeout", d.PageTimeout)
	v.SetDefault("crawl.settle_delay_ms", d.SettleDelayMs)
	v.SetDefault("crawl.acquire_timeout", d.AcquireTimeout)
	v.SetDefault("crawl.fetch_timeout", d.FetchTimeout)
	v.SetDefault("crawl.rate_limit", d.RateLimit)
	v.SetDefault("crawl.memory_threshold_mb", d.MemoryThresholdMB)
	v.SetDefault("crawl.memory_check_every", d.MemoryCheckEvery)

	l := utils.DefaultLogConfig()
	v.SetDefault("logging.level", l.Level)
	v.SetDefault("logging.log_dir", l.LogDir)
	v.SetDefault("logging.rotation.max_size", l.MaxSize)
	v.SetDefault("logging.rotation.max_backups", l.MaxBackups)
	v.SetDefault("logging.rotation.max_age", l.MaxAge)
	v.SetDefault("logging.rotation.compress", l.Compress)
}

// LogConfig 转换为日志系统配置
func (c *Config) LogConfig() utils.LogConfig {
	return utils.LogConfig{
		Level:      c.Logging.Level,
		LogDir:     c.Logging.LogDir,
		MaxSize:    c.Logging.Rotation.MaxSize,
		MaxBackups: c.Logging.Rotation.MaxBackups,
		MaxAge:     c.Logging.Rotation.MaxAge,
		Compress:   c.Logging.Rotation.Compress,
	}
}

// Overrides 命令行传入的值,nil表示未指定
type Overrides struct {
	StartID     *int
	EndID       *int
	OutputDir   *string
	Formats     []string
	Workers     *int
	Headless    *bool
	Stealth     *bool
	Resume      *bool
	PageTimeout *int
	RateLimit   *float64
	LogLevel    *string
}

// MergeCLIFlags 合并命令行参数到配置,命令行优先于配置文件
func (c *Config) MergeCLIFlags(o Overrides) {
	if o.StartID != nil {
		c.Crawl.StartID = *o.StartID
	}
	if o.EndID != nil {
		c.Crawl.EndID = *o.EndID
	}
	if o.OutputDir != nil {
		c.Crawl.OutputDir = *o.OutputDir
	}
	if len(o.Formats) > 0 {
		c.Crawl.Formats = normalizeFormats(o.Formats)
	}
	if o.Workers != nil {
		c.Crawl.Workers = *o.Workers
	}
	if o.Headless != nil {
		c.Crawl.Headless = *o.Headless
	}
	if o.Stealth != nil {
		c.Crawl.Stealth = *o.Stealth
	}
	if o.Resume != nil {
		c.Crawl.Resume = *o.Resume
	}
	if o.PageTimeout != nil {
		c.Crawl.PageTimeout = *o.PageTimeout
	}
	if o.RateLimit != nil {
		c.Crawl.RateLimit = *o.RateLimit
	}
	if o.LogLevel != nil && *o.LogLevel != "" {
		c.Logging.Level = *o.LogLevel
	}
}

// normalizeFormats 支持 "json,xml" 与多次指定两种写法,去重并转小写
func normalizeFormats(in []string) []string {
	seen := make(map[string]bool)
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, f := range strings.Split(item, ",") {
			f = strings.ToLower(strings.TrimSpace(f))
			if f == "" || seen[f] {
				continue
			}
			seen[f] = true
			out = append(out, f)
		}
	}
	return out
}

// WriteTemplate 写出带注释的配置模板,文件已存在且force为false时报错
func WriteTemplate(path string, force bool) error {
	if path == "" {
		path = DefaultConfigFile
	}
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("配置文件已存在: %s (使用 --force 覆盖)", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("无法创建配置目录 [%s]: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("无法生成配置文件 [%s]: %w", path, err)
	}
	return nil
}

// Template 内置的配置模板内容
func Template() string {
	return configTemplate
}
