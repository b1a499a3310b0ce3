package crawlers

import (
	"context"
	"fmt"
	"time"

	"github.com/RecoveryAshes/naracrawler/internal/models"
	"github.com/rs/zerolog/log"
)

// UnitState 爬取单元的状态
type UnitState int

const (
	StateAcquiring UnitState = iota
	StateLoading
	StateExtractingTable
	StateClassifyingType
	StateLinkTerminal
	StateExtractingSpec
	StateValidatingInfo
	StatePersisting
	StateReleasing
	StateDone
)

var unitStateNames = [...]string{
	"acquiring", "loading", "extracting_table", "classifying_type", "link_terminal",
	"extracting_spec", "validating_info", "persisting", "releasing", "done",
}

// String 状态名
func (s UnitState) String() string {
	if int(s) < len(unitStateNames) {
		return unitStateNames[s]
	}
	return "unknown"
}

// InsufficientInfoReason 信息不足的原因
const InsufficientInfoReason = "API 정보 부족"

// HandlePool 爬取单元使用的标签页池
type HandlePool interface {
	Acquire(ctx context.Context, timeout time.Duration) (*PoolHandle, error)
	Release(h *PoolHandle, healthy bool)
}

// Persister 保存记录,返回写出的文件
type Persister interface {
	Save(record *models.APIRecord) ([]string, error)
}

// UnitConfig 爬取单元配置
type UnitConfig struct {
	PageTimeout    time.Duration // 等待body的超时
	SettleDelay    time.Duration // 加载后的额外等待
	AcquireTimeout time.Duration // 借用标签页的超时
}

// CrawlUnit 单个URL的爬取状态机
// Acquiring → Loading → ExtractingTable → ClassifyingType →
// {LinkTerminal | ExtractingSpec → ValidatingInfo → Persisting} → Releasing → Done
type CrawlUnit struct {
	pool      HandlePool
	chain     *ExtractorChain
	persister Persister
	sideLog   *SideLog
	config    UnitConfig
	now       func() time.Time
}

// NewCrawlUnit 创建爬取单元
func NewCrawlUnit(pool HandlePool, chain *ExtractorChain, persister Persister, sideLog *SideLog, config UnitConfig) *CrawlUnit {
	if config.PageTimeout <= 0 {
		config.PageTimeout = 5 * time.Second
	}
	if config.AcquireTimeout <= 0 {
		config.AcquireTimeout = 60 * time.Second
	}
	return &CrawlUnit{
		pool:      pool,
		chain:     chain,
		persister: persister,
		sideLog:   sideLog,
		config:    config,
		now:       time.Now,
	}
}

// Run 处理一个URL,总是返回恰好一个结果
// 标签页在任何情况下都会归还;异常结束时按不健康归还,由池销毁
func (u *CrawlUnit) Run(ctx context.Context, pageURL string) (out models.CrawlOutcome) {
	start := u.now()
	u.enter(pageURL, StateAcquiring)

	h, err := u.pool.Acquire(ctx, u.config.AcquireTimeout)
	if err != nil {
		out = models.NewException(pageURL, &models.UnitError{URL: pageURL, Stage: StateAcquiring.String(), Err: err})
		out.Duration = u.now().Sub(start)
		return out
	}

	healthy := true
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("url", pageURL).Msgf("爬取单元panic: %v", r)
			out = models.NewException(pageURL, &models.UnitError{URL: pageURL, Stage: "panic", Err: fmt.Errorf("%v", r)})
			healthy = false
		}
		u.enter(pageURL, StateReleasing)
		u.pool.Release(h, healthy)
		out.Duration = u.now().Sub(start)
		u.enter(pageURL, StateDone)
	}()

	out = u.crawl(ctx, h.Page, pageURL)
	if out.Status == models.StatusException {
		healthy = false
	}
	return out
}

func (u *CrawlUnit) crawl(ctx context.Context, page Page, pageURL string) models.CrawlOutcome {
	fail := func(state UnitState, err error) models.CrawlOutcome {
		return models.NewException(pageURL, &models.UnitError{URL: pageURL, Stage: state.String(), Err: err})
	}

	u.enter(pageURL, StateLoading)
	if err := page.Navigate(ctx, pageURL); err != nil {
		return fail(StateLoading, err)
	}
	if err := page.WaitForSelector(ctx, "body", u.config.PageTimeout); err != nil {
		return fail(StateLoading, err)
	}
	if err := sleepCtx(ctx, u.config.SettleDelay); err != nil {
		return fail(StateLoading, err)
	}

	u.enter(pageURL, StateExtractingTable)
	source, err := page.HTML(ctx)
	if err != nil {
		return fail(StateExtractingTable, err)
	}
	doc, err := ParseDocument(source)
	if err != nil {
		return fail(StateExtractingTable, err)
	}
	tableOnly := models.TableOnly(ScrapeTable(doc))
	table := tableOnly.Table
	apiType := table[models.FieldAPIType]
	if apiType != "" && !IsLinkType(apiType) {
		if id := FindSecondaryID(doc); id != "" {
			table[models.FieldSecondaryID] = id
			if err := u.sideLog.Append(id, pageURL); err != nil {
				log.Warn().Err(err).Str("url", pageURL).Msg("写入UDDI日志失败")
			}
		}
	}

	record := &models.APIRecord{
		APIID:       models.DocumentID(pageURL),
		CrawledURL:  pageURL,
		CrawledTime: u.now().Format(models.TimeLayout),
		Info:        table,
	}

	u.enter(pageURL, StateClassifyingType)
	if IsLinkType(apiType) {
		u.enter(pageURL, StateLinkTerminal)
		record.APIType = models.KindLink
		record.SkipReason = models.LinkSkipReason
		return u.persist(pageURL, models.KindLink, record)
	}

	u.enter(pageURL, StateExtractingSpec)
	result := u.chain.Extract(ctx, page)
	if err := ctx.Err(); err != nil {
		return fail(StateExtractingSpec, err)
	}
	if !result.IsStructured() {
		result = tableOnly
	}

	if result.Kind == models.ExtractionStructured {
		NormalizeSpec(result.Spec).Apply(record, result.Spec)
		record.APIType = models.KindStructured
		log.Debug().Str("url", pageURL).Str("strategy", result.Strategy).Int("endpoints", len(record.Endpoints)).Msg("结构化规范")
		return u.persist(pageURL, models.KindStructured, record)
	}

	// 只有表格时需要页面说明才能保存
	u.enter(pageURL, StateValidatingInfo)
	general := ScrapeGeneralInfo(doc)
	if !general.HasContent() {
		return models.NewInsufficient(pageURL, InsufficientInfoReason)
	}
	record.APIType = models.KindGeneral
	record.GeneralInfo = general
	return u.persist(pageURL, models.KindGeneral, record)
}

// persist 导出失败只记录,不改变结果
func (u *CrawlUnit) persist(pageURL string, kind models.OutcomeKind, record *models.APIRecord) models.CrawlOutcome {
	u.enter(pageURL, StatePersisting)
	out := models.NewSuccess(pageURL, kind, record)
	if u.persister == nil {
		return out
	}
	files, err := u.persister.Save(record)
	out.Files = files
	if err != nil {
		out.SaveErr = err
		log.Warn().Err(err).Str("url", pageURL).Msg("保存结果失败")
	}
	return out
}

func (u *CrawlUnit) enter(pageURL string, state UnitState) {
	log.Debug().Str("url", pageURL).Str("state", state.String()).Msg("状态切换")
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
