package models

import (
	"errors"
	"fmt"
)

// 爬取过程中的哨兵错误
var (
	ErrPoolExhausted    = errors.New("标签页池已耗尽")
	ErrPoolClosed       = errors.New("标签页池已关闭")
	ErrLoadTimeout      = errors.New("页面加载超时")
	ErrExtractionEmpty  = errors.New("未提取到API规范")
	ErrParseInvalid     = errors.New("API规范解析失败")
	ErrEmptySentinel    = errors.New("swaggerJson变量为空")
	ErrInsufficientInfo = errors.New("API信息不足")
	ErrBrowserLaunch    = errors.New("浏览器启动失败")
)

// UnitError 单个爬取单元的失败
type UnitError struct {
	URL   string // 详情页URL
	Stage string // 出错的阶段
	Err   error  // 底层错误
}

// Error 实现error接口
func (e *UnitError) Error() string {
	return fmt.Sprintf("[%s] %s: %v", e.Stage, e.URL, e.Err)
}

// Unwrap 支持errors.Is/As
func (e *UnitError) Unwrap() error {
	return e.Err
}

// ValidationError 头部验证错误
type ValidationError struct {
	Field      string // 出错的字段 ("name" 或 "value")
	HeaderName string
	Reason     string
	Suggestion string // 修复建议 (可选)
}

// Error 实现error接口
func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("头部验证失败 [%s]: %s", e.HeaderName, e.Reason)
	if e.Suggestion != "" {
		msg += fmt.Sprintf(" (建议: %s)", e.Suggestion)
	}
	return msg
}

// ConfigError 配置文件错误
type ConfigError struct {
	FilePath string
	Cause    error
}

// Error 实现error接口
func (e *ConfigError) Error() string {
	return fmt.Sprintf("配置文件错误 [%s]: %v", e.FilePath, e.Cause)
}

// Unwrap 支持errors.Unwrap
func (e *ConfigError) Unwrap() error {
	return e.Cause
}
