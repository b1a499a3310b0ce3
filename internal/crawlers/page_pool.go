package crawlers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/RecoveryAshes/naracrawler/internal/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// HandleFactory 创建新的浏览器标签页
type HandleFactory interface {
	NewPage(ctx context.Context) (Page, error)
}

// HandleFactoryFunc 函数形式的HandleFactory
type HandleFactoryFunc func(ctx context.Context) (Page, error)

// NewPage 实现HandleFactory
func (f HandleFactoryFunc) NewPage(ctx context.Context) (Page, error) {
	return f(ctx)
}

// HandleState 标签页状态
type HandleState int

const (
	HandleIdle HandleState = iota
	HandleBusy
)

// PoolHandle 池中的一个标签页,同一时刻只借给一个爬取单元
type PoolHandle struct {
	ID        string
	Page      Page
	CreatedAt time.Time
	Uses      int

	state HandleState
	slot  int
}

// State 当前状态
func (h *PoolHandle) State() HandleState {
	return h.state
}

// PoolStats 池的计数快照
type PoolStats struct {
	Capacity  int
	Live      int
	Idle      int
	Busy      int
	Created   int
	Destroyed int
}

// BrowserPool 固定容量的标签页池
// 槽位数组 + 空闲/空槽索引栈,全部状态由一把互斥锁保护;
// tokens 通道的容量等于池容量,持有令牌才能借用,等待令牌即可实现超时
type BrowserPool struct {
	factory HandleFactory

	mu       sync.Mutex
	slots    []*PoolHandle
	idle     []int // 空闲标签页所在槽位
	free     []int // 空槽位
	capacity int
	retire   int // 缩容后仍被借出、归还时需要销毁的数量
	closed   bool

	created   int
	destroyed int

	tokens chan struct{}
	done   chan struct{}
}

// NewBrowserPool 创建容量为capacity的池,标签页按需延迟创建
func NewBrowserPool(capacity int, factory HandleFactory) (*BrowserPool, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("标签页池容量必须大于0: %d", capacity)
	}
	if factory == nil {
		return nil, errors.New("标签页工厂不能为空")
	}

	p := &BrowserPool{
		factory:  factory,
		slots:    make([]*PoolHandle, capacity),
		idle:     make([]int, 0, capacity),
		free:     make([]int, 0, capacity),
		capacity: capacity,
		tokens:   make(chan struct{}, capacity),
		done:     make(chan struct{}),
	}
	for i := capacity - 1; i >= 0; i-- {
		p.free = append(p.free, i)
		p.tokens <- struct{}{}
	}

	log.Debug().Int("capacity", capacity).Msg("标签页池已创建")
	return p, nil
}

// Acquire 借用一个标签页
// 有空闲标签页时直接返回;否则在容量内立即新建;已满时最多等待timeout,超时返回ErrPoolExhausted
func (p *BrowserPool) Acquire(ctx context.Context, timeout time.Duration) (*PoolHandle, error) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return nil, models.ErrPoolClosed
	}

	if err := p.takeToken(ctx, timeout); err != nil {
		return nil, err
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.putToken()
		return nil, models.ErrPoolClosed
	}

	if n := len(p.idle); n > 0 {
		slot := p.idle[n-1]
		p.idle = p.idle[:n-1]
		h := p.slots[slot]
		h.state = HandleBusy
		h.Uses++
		p.mu.Unlock()
		return h, nil
	}

	if len(p.free) == 0 {
		// 持有令牌时必然有空槽
		p.mu.Unlock()
		p.putToken()
		return nil, fmt.Errorf("标签页池状态异常: 无可用槽位: %w", models.ErrPoolExhausted)
	}
	slot := p.free[len(p.free)-1]
	p.free = p.free[:len(p.free)-1]
	p.mu.Unlock()

	page, err := p.factory.NewPage(ctx)
	if err != nil {
		p.mu.Lock()
		p.free = append(p.free, slot)
		p.mu.Unlock()
		p.putToken()
		return nil, fmt.Errorf("创建标签页失败: %w", err)
	}

	h := &PoolHandle{
		ID:        uuid.NewString(),
		Page:      page,
		CreatedAt: time.Now(),
		Uses:      1,
		state:     HandleBusy,
		slot:      slot,
	}

	p.mu.Lock()
	if p.closed {
		p.free = append(p.free, slot)
		p.mu.Unlock()
		p.closePage(h)
		p.putToken()
		return nil, models.ErrPoolClosed
	}
	p.slots[slot] = h
	p.created++
	live := p.liveLocked()
	p.mu.Unlock()

	log.Debug().Str("handle", h.ID).Int("live", live).Msg("创建新标签页")
	return h, nil
}

func (p *BrowserPool) takeToken(ctx context.Context, timeout time.Duration) error {
	select {
	case <-p.tokens:
		return nil
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-p.tokens:
		return nil
	case <-p.done:
		return models.ErrPoolClosed
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("等待%v后仍无可用标签页: %w", timeout, models.ErrPoolExhausted)
	}
}

func (p *BrowserPool) putToken() {
	select {
	case p.tokens <- struct{}{}:
	default:
	}
}

// Release 归还标签页
// healthy为true时清理会话后放回池中,清理失败重试一次,仍失败则销毁;
// healthy为false、池已关闭或池已缩容时直接销毁
func (p *BrowserPool) Release(h *PoolHandle, healthy bool) {
	if h == nil {
		return
	}

	p.mu.Lock()
	if h.slot < 0 || h.slot >= len(p.slots) || p.slots[h.slot] != h || h.state != HandleBusy {
		p.mu.Unlock()
		log.Warn().Str("handle", h.ID).Msg("归还了不属于本池或未借出的标签页,忽略")
		return
	}
	destroy := !healthy || p.closed || p.retire > 0
	p.mu.Unlock()

	if !destroy {
		if err := p.cleanPage(h); err != nil {
			destroy = true
		}
	}

	p.mu.Lock()
	if !destroy && (p.closed || p.retire > 0) {
		destroy = true
	}
	if destroy {
		p.slots[h.slot] = nil
		p.free = append(p.free, h.slot)
		p.destroyed++
		retired := false
		if p.retire > 0 {
			p.retire--
			retired = true
		}
		p.mu.Unlock()

		p.closePage(h)
		if !retired {
			p.putToken()
		}
		return
	}
	h.state = HandleIdle
	p.idle = append(p.idle, h.slot)
	p.mu.Unlock()
	p.putToken()
}

// cleanPage 清理标签页会话,失败时重试一次
func (p *BrowserPool) cleanPage(h *PoolHandle) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := h.Page.ClearSession(ctx)
	if err == nil {
		return nil
	}
	log.Warn().Err(err).Str("handle", h.ID).Msg("清理标签页状态失败,重试一次")

	if err = h.Page.ClearSession(ctx); err != nil {
		log.Warn().Err(err).Str("handle", h.ID).Msg("重试清理失败,销毁该标签页")
		return err
	}
	return nil
}

func (p *BrowserPool) closePage(h *PoolHandle) {
	if err := h.Page.Close(); err != nil {
		log.Warn().Err(err).Str("handle", h.ID).Msg("关闭标签页失败")
		return
	}
	log.Debug().Str("handle", h.ID).Int("uses", h.Uses).Msg("销毁标签页")
}

// Shrink 将容量降到target(至少1)
// 多余的空闲标签页立即销毁,借出中的在归还时销毁
func (p *BrowserPool) Shrink(target int) int {
	if target < 1 {
		target = 1
	}

	p.mu.Lock()
	if p.closed || target >= p.capacity {
		c := p.capacity
		p.mu.Unlock()
		return c
	}

	reduce := p.capacity - target
	p.capacity = target
	for reduce > 0 {
		select {
		case <-p.tokens:
			reduce--
			continue
		default:
		}
		break
	}
	p.retire += reduce

	var victims []*PoolHandle
	for len(p.idle) > 0 && p.liveLocked() > p.capacity+p.retire {
		slot := p.idle[len(p.idle)-1]
		p.idle = p.idle[:len(p.idle)-1]
		victims = append(victims, p.slots[slot])
		p.slots[slot] = nil
		p.free = append(p.free, slot)
		p.destroyed++
	}
	p.mu.Unlock()

	for _, h := range victims {
		p.closePage(h)
	}
	log.Info().Int("capacity", target).Int("destroyed_idle", len(victims)).Msg("标签页池已缩容")
	return target
}

// Shutdown 关闭池,立即销毁空闲标签页,借出中的在归还时销毁
// 单个标签页关闭失败不会中断,所有错误合并返回
func (p *BrowserPool) Shutdown() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.done)

	victims := make([]*PoolHandle, 0, len(p.idle))
	for _, slot := range p.idle {
		victims = append(victims, p.slots[slot])
		p.slots[slot] = nil
		p.free = append(p.free, slot)
		p.destroyed++
	}
	p.idle = p.idle[:0]
	busy := p.liveLocked()
	p.mu.Unlock()

	var errs []error
	for _, h := range victims {
		if err := h.Page.Close(); err != nil {
			log.Warn().Err(err).Str("handle", h.ID).Msg("关闭标签页失败")
			errs = append(errs, fmt.Errorf("关闭标签页 %s: %w", h.ID, err))
		}
	}

	log.Info().Int("closed", len(victims)).Int("busy", busy).Msg("标签页池已关闭")
	return errors.Join(errs...)
}

// Stats 返回计数快照
func (p *BrowserPool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	live := p.liveLocked()
	return PoolStats{
		Capacity:  p.capacity,
		Live:      live,
		Idle:      len(p.idle),
		Busy:      live - len(p.idle),
		Created:   p.created,
		Destroyed: p.destroyed,
	}
}

// Capacity 当前容量
func (p *BrowserPool) Capacity() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.capacity
}

func (p *BrowserPool) liveLocked() int {
	n := 0
	for _, h := range p.slots {
		if h != nil {
			n++
		}
	}
	return n
}
