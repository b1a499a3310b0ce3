package core

import (
	"net/http"
	"sync"

	"github.com/RecoveryAshes/naracrawler/internal/models"
	"github.com/RecoveryAshes/naracrawler/internal/utils"
)

const (
	// DefaultUserAgent 默认User-Agent
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) " +
		"Chrome/120.0.0.0 Safari/537.36"
)

// HeaderManager 管理HTTP请求头部
// 实现 models.HeaderProvider,浏览器和规范下载器共用
type HeaderManager struct {
	// defaults 系统默认头部
	defaults http.Header

	// config 配置文件headers段
	config http.Header

	// cli 命令行 -H 参数
	cli http.Header

	once     sync.Once
	merged   http.Header
	mergeErr error
}

// NewHeaderManager 创建头部管理器
// 参数:
//   - configHeaders: 配置文件中的头部 (可为nil)
//   - cliHeaders: 命令行传递的头部字符串列表,格式 "Name: Value"
//
// 命令行参数格式错误时返回错误
func NewHeaderManager(configHeaders http.Header, cliHeaders []string) (*HeaderManager, error) {
	hm := &HeaderManager{
		defaults: getDefaultHeaders(),
		config:   configHeaders,
		cli:      make(http.Header),
	}
	if hm.config == nil {
		hm.config = make(http.Header)
	}

	if len(cliHeaders) > 0 {
		parsed, err := models.CliHeaders(cliHeaders).Parse()
		if err != nil {
			return nil, err
		}
		hm.cli = parsed
	}

	return hm, nil
}

// getDefaultHeaders 返回系统默认头部
func getDefaultHeaders() http.Header {
	return http.Header{
		"User-Agent":      []string{DefaultUserAgent},
		"Accept":          []string{"*/*"},
		"Accept-Language": []string{"ko-KR,ko;q=0.9,en;q=0.8"},
		"Accept-Encoding": []string{"gzip, deflate, br"},
	}
}

// Validate 验证所有头部的合法性
// 验证顺序: 默认 → 配置 → 命令行
func (hm *HeaderManager) Validate() error {
	if err := utils.ValidateHeaders(hm.defaults); err != nil {
		utils.Errorf("默认头部验证失败: %v", err)
		return err
	}
	if err := utils.ValidateHeaders(hm.config); err != nil {
		utils.Errorf("配置文件头部验证失败: %v", err)
		return err
	}
	if err := utils.ValidateHeaders(hm.cli); err != nil {
		utils.Errorf("命令行头部验证失败: %v", err)
		return err
	}

	utils.Debugf("所有HTTP头部验证通过")
	return nil
}

// GetMergedHeaders 按优先级合并头部 (default < config < cli)
func (hm *HeaderManager) GetMergedHeaders() http.Header {
	result := make(http.Header)
	for _, layer := range []http.Header{hm.defaults, hm.config, hm.cli} {
		for name, values := range layer {
			result[http.CanonicalHeaderKey(name)] = append([]string(nil), values...)
		}
	}
	return result
}

// GetSafeHeaders 返回脱敏后的头部 (用于日志)
func (hm *HeaderManager) GetSafeHeaders() map[string]string {
	return utils.RedactHeaders(hm.GetMergedHeaders())
}

// GetHeaders 实现 HeaderProvider 接口
// 第一次调用时验证并合并,之后返回缓存结果的副本
func (hm *HeaderManager) GetHeaders() (http.Header, error) {
	hm.once.Do(func() {
		if err := hm.Validate(); err != nil {
			hm.mergeErr = err
			return
		}
		hm.merged = hm.GetMergedHeaders()
		utils.Debugf("生效的HTTP头部: %v", utils.RedactHeaders(hm.merged))
	})
	if hm.mergeErr != nil {
		return nil, hm.mergeErr
	}
	return hm.merged.Clone(), nil
}
