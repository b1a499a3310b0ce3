package core

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/RecoveryAshes/naracrawler/internal/crawlers"
	"github.com/RecoveryAshes/naracrawler/internal/exporter"
	"github.com/RecoveryAshes/naracrawler/internal/models"
	"github.com/RecoveryAshes/naracrawler/internal/store"
	"github.com/RecoveryAshes/naracrawler/internal/utils"
)

// StateDirName 输出目录下保存续爬数据库的子目录
const StateDirName = ".state"

// Crawler 主爬取器: 组装浏览器、标签页池、提取链、导出器和续爬记录,交给派发器运行
type Crawler struct {
	config         models.CrawlConfig
	headerProvider models.HeaderProvider
}

// NewCrawler 创建主爬取器
func NewCrawler(config models.CrawlConfig, headerProvider models.HeaderProvider) (*Crawler, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("配置无效: %w", err)
	}
	return &Crawler{config: config, headerProvider: headerProvider}, nil
}

// Crawl 执行爬取任务
// 执行流程:
//  1. 打开续爬数据库
//  2. 构造提取链、导出器、UDDI旁路日志和内存守卫
//  3. 派发器启动浏览器并按并发数创建标签页池
//  4. 所有URL处理完后写出汇总、结果日志和指标
//
// 只有启动阶段失败时返回错误
func (c *Crawler) Crawl(ctx context.Context, urls []string) (*models.Summary, error) {
	outDir := c.config.OutputDir

	utils.Infof("输出目录: %s", outDir)
	utils.Infof("导出格式: %v", c.config.Formats)

	resumeStore, err := store.Open(filepath.Join(outDir, StateDirName), c.config.Resume)
	if err != nil {
		return nil, fmt.Errorf("打开续爬数据库失败: %w", err)
	}
	defer func() {
		if err := resumeStore.Close(); err != nil {
			utils.Warnf("%v", err)
		}
	}()

	chain := crawlers.DefaultExtractorChain(crawlers.NewSpecFetcher(c.headerProvider), c.config.FetchTimeoutDuration())
	exp := exporter.New(outDir, c.config.Formats)
	sideLog := crawlers.NewSideLog(filepath.Join(outDir, UDDILogFile))
	guard := crawlers.NewMemoryGuard(crawlers.MemoryGuardConfig{
		ThresholdBytes: uint64(c.config.MemoryThresholdMB) * 1024 * 1024,
		CheckEvery:     c.config.MemoryCheckEvery,
	})

	unitConfig := crawlers.UnitConfig{
		PageTimeout:    c.config.PageTimeoutDuration(),
		SettleDelay:    c.config.SettleDelay(),
		AcquireTimeout: c.config.AcquireTimeoutDuration(),
	}

	dispatcher, err := NewDispatcher(DispatcherConfig{
		Workers:   c.config.Workers,
		OutputDir: outDir,
		RateLimit: c.config.RateLimit,
		Resume:    c.config.Resume,
	}, Dependencies{
		BuildPool: c.buildPool,
		NewUnit: func(pool crawlers.HandlePool) UnitRunner {
			return crawlers.NewCrawlUnit(pool, chain, exp, sideLog, unitConfig)
		},
		Guard:   guard,
		Store:   resumeStore,
		Metrics: NewMetrics(),
	})
	if err != nil {
		return nil, err
	}

	return dispatcher.Run(ctx, urls)
}

// buildPool 启动浏览器并创建容量为workers的标签页池
func (c *Crawler) buildPool(workers int) (ManagedPool, error) {
	browser, err := crawlers.LaunchBrowser(crawlers.BrowserConfig{
		Headless: c.config.Headless,
		Stealth:  c.config.Stealth,
	}, c.headerProvider)
	if err != nil {
		return nil, err
	}

	pool, err := crawlers.NewBrowserPool(workers, browser)
	if err != nil {
		_ = browser.Close()
		return nil, err
	}
	return &browserPool{BrowserPool: pool, browser: browser}, nil
}

// browserPool 关闭池时一并关闭浏览器进程
type browserPool struct {
	*crawlers.BrowserPool
	browser *crawlers.Browser
}

func (p *browserPool) Shutdown() error {
	return errors.Join(p.BrowserPool.Shutdown(), p.browser.Close())
}
