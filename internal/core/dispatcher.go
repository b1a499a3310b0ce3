package core

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/RecoveryAshes/naracrawler/internal/crawlers"
	"github.com/RecoveryAshes/naracrawler/internal/models"
	"github.com/RecoveryAshes/naracrawler/internal/utils"
	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// UnitRunner 处理单个URL,总是返回恰好一个结果
type UnitRunner interface {
	Run(ctx context.Context, pageURL string) models.CrawlOutcome
}

// ManagedPool 派发器管理生命周期的标签页池
type ManagedPool interface {
	crawlers.HandlePool
	Shrink(target int) int
	Shutdown() error
	Stats() crawlers.PoolStats
	Capacity() int
}

// PoolBuilder 按并发数创建池,失败是派发器唯一会返回的错误
type PoolBuilder func(workers int) (ManagedPool, error)

// UnitFactory 基于池创建爬取单元
type UnitFactory func(pool crawlers.HandlePool) UnitRunner

// ResumeStore 续爬记录
type ResumeStore interface {
	IsDone(docID string) (bool, error)
	MarkDone(cp models.Checkpoint) error
}

// MemoryAdvisor 内存守卫,由*crawlers.MemoryGuard实现
type MemoryAdvisor interface {
	Observe(completed int) (checked, reclaimed bool)
	LastSample() uint64
	Reclaims() int
	SuggestPoolSize(current int) (shouldShrink bool, target int, reason string)
}

// DispatcherConfig 派发器配置
type DispatcherConfig struct {
	Workers   int     // 并发数,超出范围回退为默认值
	OutputDir string  // 汇总、结果日志、指标的目录
	RateLimit float64 // 每秒派发URL数,0不限速
	Resume    bool    // 跳过已成功的文档

	Progress io.Writer // 进度条输出,nil时为os.Stderr
}

// Dependencies 派发器的协作者,Guard/Store/Metrics可为nil
type Dependencies struct {
	BuildPool PoolBuilder
	NewUnit   UnitFactory
	Guard     MemoryAdvisor
	Store     ResumeStore
	Metrics   *Metrics
}

// Dispatcher 有界并发地运行爬取单元并汇总结果
// 汇总只在单独的收集协程中修改,工作协程通过通道发送结果
type Dispatcher struct {
	config DispatcherConfig
	deps   Dependencies
	logs   *OutcomeLogs
	now    func() time.Time
}

// NewDispatcher 创建派发器
func NewDispatcher(config DispatcherConfig, deps Dependencies) (*Dispatcher, error) {
	if deps.BuildPool == nil || deps.NewUnit == nil {
		return nil, fmt.Errorf("派发器缺少标签页池或爬取单元构造函数")
	}
	if config.OutputDir == "" {
		config.OutputDir = "output"
	}
	if deps.Metrics == nil {
		deps.Metrics = NewMetrics()
	}
	return &Dispatcher{
		config: config,
		deps:   deps,
		logs:   NewOutcomeLogs(config.OutputDir),
		now:    time.Now,
	}, nil
}

// Logs 结果日志
func (d *Dispatcher) Logs() *OutcomeLogs {
	return d.logs
}

// Metrics 运行指标
func (d *Dispatcher) Metrics() *Metrics {
	return d.deps.Metrics
}

// Run 爬取全部URL并返回汇总
// 单个URL的失败只体现在汇总和日志中;只有创建池失败时返回错误
func (d *Dispatcher) Run(ctx context.Context, urls []string) (*models.Summary, error) {
	workers, clamped := models.ClampWorkers(d.config.Workers)
	if clamped {
		utils.Warnf("并发数 %d 超出范围 [%d, %d],使用默认值 %d", d.config.Workers, models.MinWorkers, models.MaxWorkers, workers)
	}

	pool, err := d.deps.BuildPool(workers)
	if err != nil {
		return nil, fmt.Errorf("创建标签页池失败: %w", err)
	}
	defer func() {
		if err := pool.Shutdown(); err != nil {
			utils.Warnf("关闭标签页池时出现错误: %v", err)
		}
	}()

	if err := os.MkdirAll(d.config.OutputDir, 0755); err != nil {
		utils.Warnf("创建输出目录失败: %v", err)
	}
	if !d.config.Resume {
		if err := d.logs.Reset(); err != nil {
			utils.Warnf("清理旧日志失败: %v", err)
		}
	}

	summary := models.NewSummary(d.now())
	pending := d.filterDone(urls)
	summary.Skipped = len(urls) - len(pending)
	d.deps.Metrics.ObserveSkipped(summary.Skipped)
	if summary.Skipped > 0 {
		utils.Infof("⏭️  续爬: 跳过 %d 个已完成的URL", summary.Skipped)
	}

	utils.Infof("🚀 开始爬取: %d 个URL, 并发 %d", len(pending), workers)

	unit := d.deps.NewUnit(pool)
	gate := newCapacityGate(ctx, pool.Capacity())
	outcomes := make(chan models.CrawlOutcome, workers)
	collected := make(chan struct{})
	go func() {
		defer close(collected)
		d.collect(outcomes, summary, pool, gate, len(pending))
	}()

	var limiter *rate.Limiter
	if d.config.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(d.config.RateLimit), 1)
	}

	var g errgroup.Group
	g.SetLimit(workers)
	dispatched := 0
	for _, pageURL := range pending {
		if ctx.Err() != nil {
			break
		}
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				break
			}
		}
		dispatched++
		g.Go(func() error {
			outcomes <- gate.run(ctx, unit, pageURL)
			return nil
		})
	}
	_ = g.Wait()
	close(outcomes)
	<-collected

	if dispatched < len(pending) {
		utils.Warnf("⚠️ 收到中断,%d 个URL未派发", len(pending)-dispatched)
	}

	summary.Finish(d.now())
	d.finish(summary)
	return summary, nil
}

// filterDone 续爬模式下去掉已成功的URL
func (d *Dispatcher) filterDone(urls []string) []string {
	if !d.config.Resume || d.deps.Store == nil {
		return urls
	}
	pending := make([]string, 0, len(urls))
	for _, u := range urls {
		done, err := d.deps.Store.IsDone(models.DocumentID(u))
		if err != nil {
			log.Warn().Err(err).Str("url", u).Msg("读取续爬记录失败,重新爬取")
		}
		if done {
			continue
		}
		pending = append(pending, u)
	}
	return pending
}

// collect 唯一修改汇总的协程
func (d *Dispatcher) collect(outcomes <-chan models.CrawlOutcome, summary *models.Summary, pool ManagedPool, gate *capacityGate, total int) {
	w := d.config.Progress
	if w == nil {
		w = os.Stderr
	}
	var bar *progressbar.ProgressBar
	if total > 0 {
		bar = utils.NewProgressBarTo(w, total, "크롤링")
		defer finishBar(bar)
	}

	completed := 0
	for o := range outcomes {
		completed++
		summary.Record(o)
		d.deps.Metrics.ObserveOutcome(o)
		d.logOutcome(o)
		if bar != nil {
			_ = bar.Add(1)
		}

		d.observeMemory(completed, pool, gate)
		d.deps.Metrics.ObservePool(pool.Stats())
	}
}

func finishBar(bar *progressbar.ProgressBar) {
	_ = bar.Finish()
}

func (d *Dispatcher) logOutcome(o models.CrawlOutcome) {
	switch o.Status {
	case models.StatusSuccess:
		log.Debug().Str("url", o.URL).Str("kind", string(o.Kind)).Dur("took", o.Duration).Msg("爬取成功")
		if o.SaveErr != nil {
			log.Warn().Err(o.SaveErr).Str("url", o.URL).Msg("保存失败,结果仍计为成功")
			return
		}
		d.markDone(o)
	case models.StatusInsufficient:
		log.Info().Err(o.Err).Str("url", o.URL).Str("reason", o.Reason).Msg("信息不足")
		if err := d.logs.Insufficient(o.URL, o.Reason); err != nil {
			utils.Warnf("写入信息不足日志失败: %v", err)
		}
	default:
		log.Warn().Err(o.Err).Str("url", o.URL).Msg("爬取异常")
		if err := d.logs.Exception(o.URL, o.Err); err != nil {
			utils.Warnf("写入异常日志失败: %v", err)
		}
	}
}

func (d *Dispatcher) markDone(o models.CrawlOutcome) {
	if d.deps.Store == nil {
		return
	}
	cp := models.NewCheckpoint(o, d.now())
	if cp.DocumentID == "" {
		return
	}
	if err := d.deps.Store.MarkDone(cp); err != nil {
		utils.Warnf("写入续爬记录失败: %v", err)
	}
}

// observeMemory 按节奏检查内存,系统内存紧张时缩小标签页池
func (d *Dispatcher) observeMemory(completed int, pool ManagedPool, gate *capacityGate) {
	guard := d.deps.Guard
	if guard == nil {
		return
	}
	checked, _ := guard.Observe(completed)
	if !checked {
		return
	}
	d.deps.Metrics.ObserveMemory(guard.LastSample(), guard.Reclaims())

	shrink, target, reason := guard.SuggestPoolSize(pool.Capacity())
	if reason != "" {
		utils.Warnf("⚠️ %s", reason)
	}
	if shrink {
		gate.shrinkTo(pool.Shrink(target))
		d.deps.Metrics.ObserveShrink()
	}
}

// capacityGate 让同时运行的单元数不超过标签页池的当前容量
// 缩容后多出的单元在这里排队,而不是在池里等到借用超时
type capacityGate struct {
	ctx      context.Context
	sem      *semaphore.Weighted
	mu       sync.Mutex
	capacity int
}

func newCapacityGate(ctx context.Context, capacity int) *capacityGate {
	if capacity < 1 {
		capacity = 1
	}
	return &capacityGate{ctx: ctx, sem: semaphore.NewWeighted(int64(capacity)), capacity: capacity}
}

// run 取得许可后运行单元;许可在发送结果前归还
func (g *capacityGate) run(ctx context.Context, unit UnitRunner, pageURL string) models.CrawlOutcome {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return models.NewException(pageURL, &models.UnitError{URL: pageURL, Stage: crawlers.StateAcquiring.String(), Err: err})
	}
	defer g.sem.Release(1)
	return unit.Run(ctx, pageURL)
}

// shrinkTo 永久占用缩减掉的许可,占用在后台等运行中的单元归还
func (g *capacityGate) shrinkTo(target int) {
	g.mu.Lock()
	delta := g.capacity - target
	if delta <= 0 {
		g.mu.Unlock()
		return
	}
	g.capacity = target
	g.mu.Unlock()

	if g.sem.TryAcquire(int64(delta)) {
		return
	}
	go func() {
		_ = g.sem.Acquire(g.ctx, int64(delta))
	}()
}

// Capacity 当前允许同时运行的单元数
func (g *capacityGate) Capacity() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.capacity
}

// finish 写出汇总和指标文件
func (d *Dispatcher) finish(summary *models.Summary) {
	if _, err := utils.SaveSummary(d.config.OutputDir, summary); err != nil {
		utils.Warnf("保存汇总失败: %v", err)
	}
	if _, err := d.deps.Metrics.WriteTextfile(d.config.OutputDir); err != nil {
		utils.Warnf("保存指标失败: %v", err)
	}

	utils.Infof("✅ 爬取完成: 总计 %d, 成功 %d, 失败 %d (信息不足 %d, 异常 %d), 成功率 %s",
		summary.Total, summary.Success, summary.Failed, summary.InsufficientInfo, summary.Exceptions, summary.SuccessRate)
}
