package crawlers

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// fakePage 内存中的Page实现
type fakePage struct {
	mu sync.Mutex

	html       string
	evals      map[string]any
	navErr     error
	waitErr    error
	clearFails int // 前N次ClearSession失败
	closeErr   error
	onEval     func()

	url         string
	navigations int
	clears      int
	closed      bool
}

func newFakePage(html string) *fakePage {
	return &fakePage{html: html, evals: make(map[string]any)}
}

func (p *fakePage) Navigate(ctx context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.navigations++
	if p.navErr != nil {
		return p.navErr
	}
	p.url = url
	return nil
}

func (p *fakePage) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	return p.waitErr
}

func (p *fakePage) Eval(ctx context.Context, js string) (any, error) {
	if p.onEval != nil {
		p.onEval()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	v := p.evals[js]
	if err, ok := v.(error); ok {
		return nil, err
	}
	return v, nil
}

func (p *fakePage) HTML(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.html, nil
}

func (p *fakePage) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

func (p *fakePage) ClearSession(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clears++
	if p.clearFails > 0 {
		p.clearFails--
		return errors.New("clear failed")
	}
	p.url = ""
	return nil
}

func (p *fakePage) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return p.closeErr
}

func (p *fakePage) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// fakeFactory 记录创建过的标签页
type fakeFactory struct {
	mu      sync.Mutex
	pages   []*fakePage
	newPage func() *fakePage
	err     error
	created atomic.Int32
}

func (f *fakeFactory) NewPage(ctx context.Context) (Page, error) {
	if f.err != nil {
		return nil, f.err
	}
	var p *fakePage
	if f.newPage != nil {
		p = f.newPage()
	} else {
		p = newFakePage("<html><body></body></html>")
	}
	f.mu.Lock()
	f.pages = append(f.pages, p)
	f.mu.Unlock()
	f.created.Add(1)
	return p, nil
}

func (f *fakeFactory) all() []*fakePage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*fakePage(nil), f.pages...)
}

// fakeFetcher 按URL返回固定内容
type fakeFetcher struct {
	bodies map[string]string
	err    error
	calls  atomic.Int32
}

func (f *fakeFetcher) Get(ctx context.Context, url string, timeout time.Duration) ([]byte, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	body, ok := f.bodies[url]
	if !ok {
		return nil, errors.New("not found")
	}
	return []byte(body), nil
}
