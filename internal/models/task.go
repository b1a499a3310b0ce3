package models

import (
	"fmt"
	"strings"
	"time"
)

const (
	// MinWorkers 并发工作者下限
	MinWorkers = 10
	// MaxWorkers 并发工作者上限
	MaxWorkers = 40
	// DefaultWorkers 超出范围时回退的默认并发数
	DefaultWorkers = 20
)

// SupportedFormats 支持的导出格式
var SupportedFormats = []string{"json", "xml", "md", "csv", "yaml"}

// CrawlConfig 爬取配置
type CrawlConfig struct {
	StartID   int      `mapstructure:"start" json:"start"`         // 起始文档号
	EndID     int      `mapstructure:"end" json:"end"`             // 结束文档号(含)
	OutputDir string   `mapstructure:"output_dir" json:"output_dir"` // 输出目录
	Formats   []string `mapstructure:"formats" json:"formats"`     // 导出格式
	Workers   int      `mapstructure:"workers" json:"workers"`     // 并发工作者数 (10-40)
	Headless  bool     `mapstructure:"headless" json:"headless"`   // 无头模式
	Stealth   bool     `mapstructure:"stealth" json:"stealth"`     // 标签页注入反检测脚本
	Resume    bool     `mapstructure:"resume" json:"resume"`       // 跳过已成功的文档

	PageTimeout    int     `mapstructure:"page_timeout" json:"page_timeout"`       // 等待body出现的超时(秒)
	SettleDelayMs  int     `mapstructure:"settle_delay_ms" json:"settle_delay_ms"` // 加载后额外等待(毫秒)
	AcquireTimeout int     `mapstructure:"acquire_timeout" json:"acquire_timeout"` // 借用标签页超时(秒)
	FetchTimeout   int     `mapstructure:"fetch_timeout" json:"fetch_timeout"`     // 外部规范下载超时(秒)
	RateLimit      float64 `mapstructure:"rate_limit" json:"rate_limit"`           // 每秒派发URL数,0表示不限速

	MemoryThresholdMB int `mapstructure:"memory_threshold_mb" json:"memory_threshold_mb"` // 触发回收的进程内存(MB)
	MemoryCheckEvery  int `mapstructure:"memory_check_every" json:"memory_check_every"`   // 每完成N个单元检查一次内存
}

// DefaultCrawlConfig 默认爬取配置
func DefaultCrawlConfig() CrawlConfig {
	return CrawlConfig{
		OutputDir:         "output",
		Formats:           []string{"json", "xml", "md", "csv"},
		Workers:           DefaultWorkers,
		Headless:          true,
		PageTimeout:       5,
		SettleDelayMs:     1000,
		AcquireTimeout:    60,
		FetchTimeout:      10,
		MemoryThresholdMB: 2000,
		MemoryCheckEvery:  10,
	}
}

// Validate 验证配置
func (c *CrawlConfig) Validate() error {
	if c.StartID < 0 || c.EndID < 0 {
		return fmt.Errorf("文档号不能为负数")
	}
	if c.StartID > c.EndID {
		return fmt.Errorf("起始文档号(%d)不能大于结束文档号(%d)", c.StartID, c.EndID)
	}
	if len(c.Formats) == 0 {
		return fmt.Errorf("至少需要一种导出格式")
	}
	for _, f := range c.Formats {
		if !isSupportedFormat(f) {
			return fmt.Errorf("不支持的导出格式: %s (可选: %s)", f, strings.Join(SupportedFormats, ", "))
		}
	}
	if c.PageTimeout <= 0 || c.PageTimeout > 120 {
		return fmt.Errorf("页面超时必须在1-120秒之间")
	}
	if c.SettleDelayMs < 0 {
		return fmt.Errorf("额外等待时间不能为负数")
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("限速不能为负数")
	}
	return nil
}

// ClampWorkers 将并发数限制在允许范围内
// 超出[MinWorkers, MaxWorkers]时回退为DefaultWorkers,第二个返回值表示是否发生了回退
func ClampWorkers(n int) (int, bool) {
	if n < MinWorkers || n > MaxWorkers {
		return DefaultWorkers, true
	}
	return n, false
}

// PageTimeoutDuration 页面超时
func (c *CrawlConfig) PageTimeoutDuration() time.Duration {
	return time.Duration(c.PageTimeout) * time.Second
}

// SettleDelay 加载后的额外等待
func (c *CrawlConfig) SettleDelay() time.Duration {
	return time.Duration(c.SettleDelayMs) * time.Millisecond
}

// AcquireTimeoutDuration 借用标签页的最长等待
func (c *CrawlConfig) AcquireTimeoutDuration() time.Duration {
	if c.AcquireTimeout <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.AcquireTimeout) * time.Second
}

// FetchTimeoutDuration 外部规范下载超时
func (c *CrawlConfig) FetchTimeoutDuration() time.Duration {
	if c.FetchTimeout <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.FetchTimeout) * time.Second
}

func isSupportedFormat(f string) bool {
	for _, s := range SupportedFormats {
		if s == f {
			return true
		}
	}
	return false
}
