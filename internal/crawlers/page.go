package crawlers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/RecoveryAshes/naracrawler/internal/models"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// Page 浏览器标签页的自动化能力
// 爬取单元只通过该接口操作页面,测试中用假实现替换
type Page interface {
	Navigate(ctx context.Context, url string) error
	WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error
	// Eval 执行一个JS函数表达式,返回按值序列化后的结果
	Eval(ctx context.Context, js string) (any, error)
	HTML(ctx context.Context) (string, error)
	URL() string
	// ClearSession 清除cookie和存储并回到空白页
	ClearSession(ctx context.Context) error
	Close() error
}

// clearStorageJS 清理localStorage/sessionStorage/cookie
const clearStorageJS = `() => {
	try { if (typeof localStorage !== 'undefined' && localStorage !== null) localStorage.clear(); } catch (e) {}
	try { if (typeof sessionStorage !== 'undefined' && sessionStorage !== null) sessionStorage.clear(); } catch (e) {}
	try {
		if (typeof document !== 'undefined' && document !== null && document.cookie) {
			document.cookie.split(";").forEach(function (c) {
				var eq = c.indexOf("=");
				var name = eq > -1 ? c.substr(0, eq) : c;
				document.cookie = name.replace(/^ +/, "") + "=;expires=Thu, 01 Jan 1970 00:00:00 UTC;path=/";
			});
		}
	} catch (e) {}
	return true;
}`

// rodPage 基于go-rod的Page实现
type rodPage struct {
	page *rod.Page

	mu  sync.RWMutex
	url string
}

func newRodPage(page *rod.Page) *rodPage {
	return &rodPage{page: page}
}

func (p *rodPage) Navigate(ctx context.Context, url string) error {
	if err := p.page.Context(ctx).Navigate(url); err != nil {
		return fmt.Errorf("导航失败: %w", err)
	}
	p.mu.Lock()
	p.url = url
	p.mu.Unlock()
	return nil
}

func (p *rodPage) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	_, err := p.page.Context(ctx).Timeout(timeout).Element(selector)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("等待元素 %s: %w", selector, models.ErrLoadTimeout)
		}
		return fmt.Errorf("等待元素 %s 失败: %w", selector, err)
	}
	return nil
}

func (p *rodPage) Eval(ctx context.Context, js string) (any, error) {
	obj, err := p.page.Context(ctx).Eval(js)
	if err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, nil
	}
	return obj.Value.Val(), nil
}

func (p *rodPage) HTML(ctx context.Context) (string, error) {
	return p.page.Context(ctx).HTML()
}

func (p *rodPage) URL() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.url
}

func (p *rodPage) ClearSession(ctx context.Context) error {
	page := p.page.Context(ctx)

	if _, err := page.Evaluate(&rod.EvalOptions{JS: clearStorageJS}); err != nil {
		return fmt.Errorf("清理存储失败: %w", err)
	}
	if err := (proto.NetworkClearBrowserCookies{}).Call(page); err != nil {
		return fmt.Errorf("清理cookie失败: %w", err)
	}
	if err := page.Navigate("about:blank"); err != nil {
		return fmt.Errorf("回到空白页失败: %w", err)
	}

	p.mu.Lock()
	p.url = ""
	p.mu.Unlock()
	return nil
}

func (p *rodPage) Close() error {
	return p.page.Close()
}
