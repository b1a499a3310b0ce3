package core

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/RecoveryAshes/naracrawler/internal/crawlers"
	"github.com/RecoveryAshes/naracrawler/internal/models"
	"github.com/prometheus/client_golang/prometheus"
)

// MetricsFileName 运行结束时写出的textfile
const MetricsFileName = "metrics.prom"

// Metrics 运行指标,批处理结束时以node_exporter textfile格式写出
// 只由派发器的汇总协程更新
type Metrics struct {
	registry *prometheus.Registry

	outcomes     *prometheus.CounterVec
	skipped      prometheus.Counter
	saveErrors   prometheus.Counter
	unitDuration *prometheus.HistogramVec

	poolLive      prometheus.Gauge
	poolCapacity  prometheus.Gauge
	poolCreated   prometheus.Gauge
	poolDestroyed prometheus.Gauge
	memoryBytes   prometheus.Gauge
	reclaims      prometheus.Gauge
	shrinks       prometheus.Counter
}

// NewMetrics 创建并注册全部指标到独立的registry
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "naracrawler_outcomes_total",
			Help: "Crawl outcomes partitioned by status and kind.",
		}, []string{"status", "kind"}),
		skipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "naracrawler_skipped_total",
			Help: "URLs skipped because they already succeeded in a previous run.",
		}),
		saveErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "naracrawler_save_errors_total",
			Help: "Successful units whose export failed.",
		}),
		unitDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "naracrawler_unit_duration_seconds",
			Help:    "Wall time per crawl unit.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		}, []string{"status"}),
		poolLive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "naracrawler_pool_live_handles",
			Help: "Live browser tabs in the pool.",
		}),
		poolCapacity: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "naracrawler_pool_capacity",
			Help: "Current pool capacity.",
		}),
		poolCreated: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "naracrawler_pool_created_handles",
			Help: "Browser tabs created since start.",
		}),
		poolDestroyed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "naracrawler_pool_destroyed_handles",
			Help: "Browser tabs destroyed since start.",
		}),
		memoryBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "naracrawler_process_memory_bytes",
			Help: "Last sampled process memory.",
		}),
		reclaims: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "naracrawler_memory_reclaims",
			Help: "Forced memory reclamations since start.",
		}),
		shrinks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "naracrawler_pool_shrinks_total",
			Help: "Pool shrink operations triggered by memory pressure.",
		}),
	}

	m.registry.MustRegister(
		m.outcomes, m.skipped, m.saveErrors, m.unitDuration,
		m.poolLive, m.poolCapacity, m.poolCreated, m.poolDestroyed,
		m.memoryBytes, m.reclaims, m.shrinks,
	)
	return m
}

// Registry 指标所在的registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveOutcome 记录一个单元结果
func (m *Metrics) ObserveOutcome(o models.CrawlOutcome) {
	kind := "none"
	if o.Succeeded() {
		kind = string(o.Kind)
		if o.SaveErr != nil {
			m.saveErrors.Inc()
		}
	}
	m.outcomes.WithLabelValues(o.Status.String(), kind).Inc()
	m.unitDuration.WithLabelValues(o.Status.String()).Observe(o.Duration.Seconds())
}

// ObserveSkipped 记录续爬跳过
func (m *Metrics) ObserveSkipped(n int) {
	m.skipped.Add(float64(n))
}

// ObservePool 记录池快照
func (m *Metrics) ObservePool(stats crawlers.PoolStats) {
	m.poolLive.Set(float64(stats.Live))
	m.poolCapacity.Set(float64(stats.Capacity))
	m.poolCreated.Set(float64(stats.Created))
	m.poolDestroyed.Set(float64(stats.Destroyed))
}

// ObserveMemory 记录内存采样和回收次数
func (m *Metrics) ObserveMemory(used uint64, reclaims int) {
	m.memoryBytes.Set(float64(used))
	m.reclaims.Set(float64(reclaims))
}

// ObserveShrink 记录一次缩容
func (m *Metrics) ObserveShrink() {
	m.shrinks.Inc()
}

// WriteTextfile 写出 dir/metrics.prom
func (m *Metrics) WriteTextfile(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("创建输出目录失败: %w", err)
	}
	path := filepath.Join(dir, MetricsFileName)
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return "", fmt.Errorf("写入指标文件失败: %w", err)
	}
	return path, nil
}
