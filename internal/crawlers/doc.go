// Package crawlers 实现单个目录页面的爬取: 标签页池、内存守卫、规范提取链和爬取单元状态机
//
// # 核心组件
//
// ## BrowserPool (标签页池)
//
// 固定容量的标签页池,标签页按需创建,借用时独占,归还时清理会话。
// 池满时Acquire最多等待给定时长,超时返回models.ErrPoolExhausted。
//
//	pool, err := NewBrowserPool(20, browser)
//	defer pool.Shutdown()
//
//	h, err := pool.Acquire(ctx, 60*time.Second)
//	if err != nil { /* 处理错误 */ }
//	defer pool.Release(h, true)
//
// 归还时healthy为false的标签页直接销毁,不再复用。
//
// ## MemoryGuard (内存守卫)
//
// 每完成N个单元采样一次进程RSS,超过阈值时执行GC并释放内存。
// 另外根据系统可用内存给出缩容建议:
//   - 可用内存 < 500MB: 警告
//   - 可用内存 < 300MB: 缩减至当前容量的50%
//   - 可用内存 < 200MB: 缩减至1个标签页
//
// ## ExtractorChain (规范提取链)
//
// 依次尝试: 页面全局变量swaggerJson、内联脚本匹配、Swagger UI实例、
// SwaggerUIBundle外部地址。第一个成功的策略生效,单个策略的错误和panic不会传播。
//
// ## CrawlUnit (爬取单元)
//
// 一个URL从借用标签页到归还的完整流程,总是产生恰好一个models.CrawlOutcome:
//
//	Acquiring → Loading → ExtractingTable → ClassifyingType
//	    → LinkTerminal                                   (LINK类型)
//	    → ExtractingSpec → ValidatingInfo → Persisting   (其余)
//	→ Releasing → Done
//
// # 并发安全
//
// BrowserPool、MemoryGuard和SideLog可被多个爬取单元并发使用。
// 单个PoolHandle同一时刻只属于一个单元。
package crawlers
