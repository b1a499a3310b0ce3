package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/RecoveryAshes/naracrawler/internal/crawlers"
	"github.com/RecoveryAshes/naracrawler/internal/models"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePool 只记录生命周期,不真正借出标签页
type fakePool struct {
	capacity int
	shutdown atomic.Int32
	shrunk   []int
	mu       sync.Mutex
}

func (p *fakePool) Acquire(ctx context.Context, timeout time.Duration) (*crawlers.PoolHandle, error) {
	return nil, errors.New("not used")
}
func (p *fakePool) Release(h *crawlers.PoolHandle, healthy bool) {}
func (p *fakePool) Shrink(target int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.shrunk = append(p.shrunk, target)
	p.capacity = target
	return target
}
func (p *fakePool) Shutdown() error {
	p.shutdown.Add(1)
	return nil
}
func (p *fakePool) Stats() crawlers.PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return crawlers.PoolStats{Capacity: p.capacity}
}
func (p *fakePool) Capacity() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.capacity
}

// scriptedRunner 按文档号返回预设结果,同时统计最大并发
type scriptedRunner struct {
	script func(pageURL string) models.CrawlOutcome
	delay  time.Duration

	running atomic.Int32
	peak    atomic.Int32
	calls   atomic.Int32
}

func (r *scriptedRunner) Run(ctx context.Context, pageURL string) models.CrawlOutcome {
	r.calls.Add(1)
	n := r.running.Add(1)
	for {
		p := r.peak.Load()
		if n <= p || r.peak.CompareAndSwap(p, n) {
			break
		}
	}
	defer r.running.Add(-1)
	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	return r.script(pageURL)
}

type memStore struct {
	mu   sync.Mutex
	done map[string]models.Checkpoint
}

func newMemStore(ids ...string) *memStore {
	s := &memStore{done: make(map[string]models.Checkpoint)}
	for _, id := range ids {
		s.done[id] = models.Checkpoint{DocumentID: id}
	}
	return s
}

func (s *memStore) IsDone(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.done[id]
	return ok, nil
}

func (s *memStore) MarkDone(cp models.Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.done[cp.DocumentID] = cp
	return nil
}

func catalogURLs(start, end int) []string {
	urls, _ := models.GenerateURLs(start, end)
	return urls
}

// scenario 100-104: 102导航失败, 103信息不足, 其余成功
func scenario(pageURL string) models.CrawlOutcome {
	switch models.DocumentID(pageURL) {
	case "102":
		return models.NewException(pageURL, &models.UnitError{URL: pageURL, Stage: "loading", Err: errors.New("net::ERR_CONNECTION_RESET")})
	case "103":
		return models.NewInsufficient(pageURL, crawlers.InsufficientInfoReason)
	case "100":
		return models.NewSuccess(pageURL, models.KindLink, &models.APIRecord{})
	default:
		return models.NewSuccess(pageURL, models.KindStructured, &models.APIRecord{})
	}
}

type dispatcherFixture struct {
	dir    string
	pool   *fakePool
	runner *scriptedRunner
	store  *memStore
	d      *Dispatcher
	built  []int
}

func newDispatcherFixture(t *testing.T, cfg DispatcherConfig, runner *scriptedRunner, store *memStore) *dispatcherFixture {
	t.Helper()
	f := &dispatcherFixture{dir: t.TempDir(), runner: runner, store: store}
	cfg.OutputDir = f.dir
	cfg.Progress = io.Discard

	deps := Dependencies{
		BuildPool: func(workers int) (ManagedPool, error) {
			f.built = append(f.built, workers)
			f.pool = &fakePool{capacity: workers}
			return f.pool, nil
		},
		NewUnit: func(pool crawlers.HandlePool) UnitRunner { return runner },
	}
	if store != nil {
		deps.Store = store
	}
	d, err := NewDispatcher(cfg, deps)
	require.NoError(t, err)
	f.d = d
	return f
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Split(strings.TrimRight(string(data), "\n"), "\n")
}

func TestDispatcher_Scenario(t *testing.T) {
	runner := &scriptedRunner{script: scenario}
	f := newDispatcherFixture(t, DispatcherConfig{Workers: 2}, runner, nil)

	summary, err := f.d.Run(context.Background(), catalogURLs(100, 104))
	require.NoError(t, err)

	assert.Equal(t, 5, summary.Total)
	assert.Equal(t, 3, summary.Success)
	assert.Equal(t, 2, summary.Failed)
	assert.Equal(t, 1, summary.InsufficientInfo)
	assert.Equal(t, 1, summary.Exceptions)
	assert.Equal(t, 1, summary.LinkType)
	assert.Equal(t, 2, summary.StructuredType)
	assert.Equal(t, summary.Total, summary.Success+summary.Failed)
	assert.Equal(t, "60.0%", summary.SuccessRate)
	assert.ElementsMatch(t, []string{models.CatalogURL(102), models.CatalogURL(103)}, summary.FailedURLs)

	// 并发数2超出范围,回退为默认值
	assert.Equal(t, []int{models.DefaultWorkers}, f.built)
	assert.EqualValues(t, 1, f.pool.shutdown.Load())

	exc := readLines(t, filepath.Join(f.dir, ExceptionLogFile))
	require.Len(t, exc, 1)
	assert.True(t, strings.HasPrefix(exc[0], models.CatalogURL(102)+"\t"))
	assert.Contains(t, exc[0], "ERR_CONNECTION_RESET")

	ins := readLines(t, filepath.Join(f.dir, InsufficientLogFile))
	assert.Equal(t, []string{models.CatalogURL(103) + "\t" + crawlers.InsufficientInfoReason}, ins)

	assert.FileExists(t, filepath.Join(f.dir, "crawling_summary.json"))
	assert.FileExists(t, filepath.Join(f.dir, MetricsFileName))

	m := f.d.Metrics()
	assert.Equal(t, 2.0, testutil.ToFloat64(m.outcomes.WithLabelValues("success", "structured")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.outcomes.WithLabelValues("exception", "none")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.outcomes.WithLabelValues("insufficient_info", "none")))
}

func TestDispatcher_WorkerBound(t *testing.T) {
	runner := &scriptedRunner{script: scenario, delay: 20 * time.Millisecond}
	f := newDispatcherFixture(t, DispatcherConfig{Workers: 10}, runner, nil)

	summary, err := f.d.Run(context.Background(), catalogURLs(1000, 1059))
	require.NoError(t, err)

	assert.Equal(t, 60, summary.Total)
	assert.EqualValues(t, 60, runner.calls.Load())
	assert.LessOrEqual(t, runner.peak.Load(), int32(10))
	assert.Equal(t, []int{10}, f.built)
}

func TestDispatcher_PoolBuildFailure(t *testing.T) {
	d, err := NewDispatcher(DispatcherConfig{OutputDir: t.TempDir(), Progress: io.Discard}, Dependencies{
		BuildPool: func(int) (ManagedPool, error) { return nil, models.ErrBrowserLaunch },
		NewUnit:   func(crawlers.HandlePool) UnitRunner { return &scriptedRunner{script: scenario} },
	})
	require.NoError(t, err)

	summary, err := d.Run(context.Background(), catalogURLs(1, 3))
	assert.Nil(t, summary)
	assert.ErrorIs(t, err, models.ErrBrowserLaunch)
}

func TestNewDispatcher_RequiresDeps(t *testing.T) {
	_, err := NewDispatcher(DispatcherConfig{}, Dependencies{})
	assert.Error(t, err)
}

func TestDispatcher_ResumeSkipsDone(t *testing.T) {
	store := newMemStore("100", "101")
	runner := &scriptedRunner{script: scenario}
	f := newDispatcherFixture(t, DispatcherConfig{Workers: 10, Resume: true}, runner, store)

	summary, err := f.d.Run(context.Background(), catalogURLs(100, 104))
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Skipped)
	assert.Equal(t, 3, summary.Total)
	assert.EqualValues(t, 3, runner.calls.Load())

	// 104成功后写入记录,失败的102/103不写
	done, _ := store.IsDone("104")
	assert.True(t, done)
	done, _ = store.IsDone("102")
	assert.False(t, done)
	done, _ = store.IsDone("103")
	assert.False(t, done)
}

func TestDispatcher_SaveErrorNotMarkedDone(t *testing.T) {
	store := newMemStore()
	runner := &scriptedRunner{script: func(u string) models.CrawlOutcome {
		o := models.NewSuccess(u, models.KindGeneral, &models.APIRecord{})
		o.SaveErr = errors.New("disk full")
		return o
	}}
	f := newDispatcherFixture(t, DispatcherConfig{Workers: 10}, runner, store)

	summary, err := f.d.Run(context.Background(), catalogURLs(7, 7))
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Success)
	assert.Equal(t, 1, summary.SaveErrors)

	done, _ := store.IsDone("7")
	assert.False(t, done)
}

func TestDispatcher_FreshRunResetsLogs(t *testing.T) {
	runner := &scriptedRunner{script: scenario}
	f := newDispatcherFixture(t, DispatcherConfig{Workers: 10}, runner, nil)

	_, err := f.d.Run(context.Background(), catalogURLs(100, 104))
	require.NoError(t, err)
	_, err = f.d.Run(context.Background(), catalogURLs(100, 104))
	require.NoError(t, err)
	assert.Len(t, readLines(t, filepath.Join(f.dir, ExceptionLogFile)), 1)

	// 续爬模式追加
	f.d.config.Resume = true
	_, err = f.d.Run(context.Background(), catalogURLs(102, 102))
	require.NoError(t, err)
	assert.Len(t, readLines(t, filepath.Join(f.dir, ExceptionLogFile)), 2)
}

func TestDispatcher_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := &scriptedRunner{script: scenario}
	f := newDispatcherFixture(t, DispatcherConfig{Workers: 10}, runner, nil)

	summary, err := f.d.Run(ctx, catalogURLs(1, 20))
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Total)
	assert.EqualValues(t, 0, runner.calls.Load())
	assert.EqualValues(t, 1, f.pool.shutdown.Load())
}

func TestDispatcher_RateLimit(t *testing.T) {
	runner := &scriptedRunner{script: scenario}
	f := newDispatcherFixture(t, DispatcherConfig{Workers: 10, RateLimit: 20}, runner, nil)

	start := time.Now()
	summary, err := f.d.Run(context.Background(), catalogURLs(1, 5))
	require.NoError(t, err)
	assert.Equal(t, 5, summary.Total)
	// 突发1个,其余4个每50ms放行一个
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
}

func TestDispatcher_MemoryGuardCadence(t *testing.T) {
	runner := &scriptedRunner{script: scenario}
	f := newDispatcherFixture(t, DispatcherConfig{Workers: 10}, runner, nil)
	f.d.deps.Guard = crawlers.NewMemoryGuard(crawlers.MemoryGuardConfig{
		ThresholdBytes: 1 << 50,
		CheckEvery:     2,
	})

	summary, err := f.d.Run(context.Background(), catalogURLs(1, 4))
	require.NoError(t, err)
	assert.Equal(t, 4, summary.Total)
	assert.Greater(t, testutil.ToFloat64(f.d.Metrics().memoryBytes), 0.0)
	assert.Equal(t, 0, f.d.deps.Guard.Reclaims())
}

func TestOutcomeLogs(t *testing.T) {
	dir := t.TempDir()
	logs := NewOutcomeLogs(dir)

	require.NoError(t, logs.Exception("u1", fmt.Errorf("line1\nline2")))
	require.NoError(t, logs.Exception("u2", nil))
	require.NoError(t, logs.Insufficient("u3", "API 정보 부족"))

	assert.Equal(t, []string{"u1\tline1 line2", "u2\tunknown error"}, readLines(t, logs.ExceptionPath()))
	assert.Equal(t, []string{"u3\tAPI 정보 부족"}, readLines(t, logs.InsufficientPath()))

	require.NoError(t, logs.Reset())
	assert.NoFileExists(t, logs.ExceptionPath())
	require.NoError(t, logs.Reset(), "文件不存在时不报错")
}
