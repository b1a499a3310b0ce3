package crawlers

import (
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

const mb = 1024 * 1024

// PressureLevel 系统内存压力等级
type PressureLevel int

const (
	PressureNormal PressureLevel = iota
	PressureWarning
	PressureCritical
	PressureEmergency
)

// String 等级名称
func (l PressureLevel) String() string {
	switch l {
	case PressureWarning:
		return "warning"
	case PressureCritical:
		return "critical"
	case PressureEmergency:
		return "emergency"
	default:
		return "normal"
	}
}

// MemoryGuardConfig 内存守卫配置
type MemoryGuardConfig struct {
	ThresholdBytes uint64 // 进程常驻内存超过该值时强制回收
	CheckEvery     int    // 每完成N个单元检查一次
}

// MemoryGuard 进程内存守卫
// 采样本进程RSS,超过阈值时执行一次尽力而为的回收,不阻塞正在运行的爬取单元
type MemoryGuard struct {
	config MemoryGuardConfig

	sampleFn  func() (uint64, error)
	availFn   func() (uint64, error)
	reclaimFn func()

	mu        sync.Mutex
	forceNext bool
	reclaims  int
	lastUsed  uint64
}

// NewMemoryGuard 创建内存守卫
func NewMemoryGuard(config MemoryGuardConfig) *MemoryGuard {
	if config.CheckEvery <= 0 {
		config.CheckEvery = 10
	}
	if config.ThresholdBytes == 0 {
		config.ThresholdBytes = 2000 * mb
	}

	g := &MemoryGuard{
		config:    config,
		availFn:   systemAvailable,
		reclaimFn: forceReclaim,
	}

	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		log.Warn().Err(err).Msg("获取进程信息失败,改用Go运行时内存统计")
		g.sampleFn = runtimeSys
	} else {
		g.sampleFn = func() (uint64, error) {
			info, err := proc.MemoryInfo()
			if err != nil {
				return 0, err
			}
			return info.RSS, nil
		}
	}
	return g
}

// Sample 返回当前进程占用的内存(字节)
func (g *MemoryGuard) Sample() uint64 {
	used, err := g.sampleFn()
	if err != nil {
		log.Debug().Err(err).Msg("读取进程RSS失败,改用Go运行时内存统计")
		used, _ = runtimeSys()
	}
	g.mu.Lock()
	g.lastUsed = used
	g.mu.Unlock()
	return used
}

// MaybeReclaim used超过threshold时执行一次回收并返回true,否则什么都不做
func (g *MemoryGuard) MaybeReclaim(used, threshold uint64) bool {
	if used <= threshold {
		return false
	}
	log.Warn().Msgf("内存使用过高: %.1fMB > %.1fMB,执行回收", float64(used)/mb, float64(threshold)/mb)
	g.reclaimFn()

	g.mu.Lock()
	g.reclaims++
	g.mu.Unlock()
	return true
}

// Observe 在第completed个单元完成后按节奏检查内存
// 每CheckEvery个检查一次;上一次触发过回收时,下一次完成无条件再检查
func (g *MemoryGuard) Observe(completed int) (checked, reclaimed bool) {
	g.mu.Lock()
	due := g.forceNext || (completed > 0 && completed%g.config.CheckEvery == 0)
	g.mu.Unlock()
	if !due {
		return false, false
	}

	used := g.Sample()
	reclaimed = g.MaybeReclaim(used, g.config.ThresholdBytes)

	g.mu.Lock()
	g.forceNext = reclaimed
	g.mu.Unlock()

	log.Debug().Int("completed", completed).Msgf("内存检查: %.1fMB (回收=%v)", float64(used)/mb, reclaimed)
	return true, reclaimed
}

// Reclaims 已执行的回收次数
func (g *MemoryGuard) Reclaims() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.reclaims
}

// LastSample 最近一次采样值(字节)
func (g *MemoryGuard) LastSample() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastUsed
}

// Pressure 根据系统可用内存判断压力等级
func (g *MemoryGuard) Pressure() (PressureLevel, uint64) {
	avail, err := g.availFn()
	if err != nil {
		log.Debug().Err(err).Msg("获取系统可用内存失败")
		return PressureNormal, 0
	}
	availMB := avail / mb
	switch {
	case availMB < 200:
		return PressureEmergency, availMB
	case availMB < 300:
		return PressureCritical, availMB
	case availMB < 500:
		return PressureWarning, availMB
	default:
		return PressureNormal, availMB
	}
}

// SuggestPoolSize 渐进式降级: 紧急缩到1,严重减半,警告保持不变
func (g *MemoryGuard) SuggestPoolSize(current int) (shouldShrink bool, target int, reason string) {
	level, availMB := g.Pressure()
	switch level {
	case PressureEmergency:
		return current > 1, 1, fmt.Sprintf("内存严重不足(当前%dMB),缩减至1个标签页", availMB)
	case PressureCritical:
		target = current / 2
		if target < 1 {
			target = 1
		}
		return target < current, target, fmt.Sprintf("内存严重不足(当前%dMB),缩减至%d个标签页", availMB, target)
	case PressureWarning:
		return false, current, fmt.Sprintf("内存不足(当前%dMB)", availMB)
	default:
		return false, current, ""
	}
}

func systemAvailable() (uint64, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0, err
	}
	return vm.Available, nil
}

func runtimeSys() (uint64, error) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return ms.Sys, nil
}

func forceReclaim() {
	runtime.GC()
	debug.FreeOSMemory()
}
