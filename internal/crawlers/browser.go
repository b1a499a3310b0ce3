package crawlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/RecoveryAshes/naracrawler/internal/models"
	"github.com/RecoveryAshes/naracrawler/internal/utils"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// BrowserConfig 浏览器启动配置
type BrowserConfig struct {
	Headless      bool
	Stealth       bool // 新标签页注入stealth脚本
	LaunchRetries int  // 启动失败后的重试次数,默认3
	RetryDelay    time.Duration
}

// Browser 已连接的浏览器进程
type Browser struct {
	browser *rod.Browser
	config  BrowserConfig
	headers models.HeaderProvider
}

// LaunchBrowser 启动浏览器,失败时按配置重试
func LaunchBrowser(config BrowserConfig, headers models.HeaderProvider) (*Browser, error) {
	if config.LaunchRetries <= 0 {
		config.LaunchRetries = 3
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = 2 * time.Second
	}

	var lastErr error
	for attempt := 1; attempt <= config.LaunchRetries; attempt++ {
		b, err := launchOnce(config.Headless)
		if err == nil {
			utils.Debugf("浏览器已启动 (第%d次尝试, headless=%v, stealth=%v)", attempt, config.Headless, config.Stealth)
			return &Browser{browser: b, config: config, headers: headers}, nil
		}
		lastErr = err
		utils.Warnf("浏览器启动失败,准备重试(%d/%d): %v", attempt, config.LaunchRetries, err)
		if attempt < config.LaunchRetries {
			time.Sleep(config.RetryDelay)
		}
	}
	return nil, fmt.Errorf("%w: %v", models.ErrBrowserLaunch, lastErr)
}

func launchOnce(headless bool) (*rod.Browser, error) {
	l := launcher.New().
		Headless(headless).
		NoSandbox(true).
		Set("disable-dev-shm-usage").
		Set("disable-gpu").
		Set("disable-extensions").
		Set("disable-background-networking").
		Set("ignore-certificate-errors").
		Set("window-size", "1920,1080")

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("启动浏览器失败: %w", err)
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("连接浏览器失败: %w", err)
	}
	return b, nil
}

// NewPage 创建一个新标签页,实现HandleFactory
func (b *Browser) NewPage(ctx context.Context) (Page, error) {
	var (
		page *rod.Page
		err  error
	)
	if b.config.Stealth {
		page, err = stealth.Page(b.browser)
	} else {
		page, err = b.browser.Page(proto.TargetCreateTarget{})
	}
	if err != nil {
		return nil, fmt.Errorf("创建标签页失败(浏览器可能已崩溃): %w", err)
	}

	if err := b.applyHeaders(page.Context(ctx)); err != nil {
		utils.Warnf("设置标签页请求头失败: %v", err)
	}
	return newRodPage(page), nil
}

// applyHeaders 将合并后的请求头应用到标签页
func (b *Browser) applyHeaders(page *rod.Page) error {
	if b.headers == nil {
		return nil
	}
	headers, err := b.headers.GetHeaders()
	if err != nil {
		return err
	}

	if ua := headers.Get("User-Agent"); ua != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: ua}); err != nil {
			return fmt.Errorf("设置User-Agent失败: %w", err)
		}
	}

	extra := extraHeaderPairs(headers)
	if len(extra) == 0 {
		return nil
	}
	if _, err := page.SetExtraHeaders(extra); err != nil {
		return fmt.Errorf("设置额外请求头失败: %w", err)
	}
	return nil
}

// extraHeaderPairs 转为SetExtraHeaders需要的扁平键值列表
// User-Agent单独设置,Accept-Encoding交给浏览器
func extraHeaderPairs(headers http.Header) []string {
	pairs := make([]string, 0, len(headers)*2)
	for name, values := range headers {
		if len(values) == 0 {
			continue
		}
		switch http.CanonicalHeaderKey(name) {
		case "User-Agent", "Accept-Encoding":
			continue
		}
		pairs = append(pairs, name, values[0])
	}
	return pairs
}

// Close 关闭浏览器进程
func (b *Browser) Close() error {
	if b.browser == nil {
		return nil
	}
	if err := b.browser.Close(); err != nil {
		return fmt.Errorf("关闭浏览器失败: %w", err)
	}
	utils.Debugf("浏览器已关闭")
	return nil
}
