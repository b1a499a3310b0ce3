package models

import (
	"strings"
	"time"
)

// OutcomeKind 记录分类,决定存储目录和模板
type OutcomeKind string

const (
	KindLink       OutcomeKind = "link"       // LINK类型,仅表格
	KindStructured OutcomeKind = "structured" // 提取到Swagger/OpenAPI规范
	KindGeneral    OutcomeKind = "general"    // 仅页面说明
	KindOther      OutcomeKind = "other"      // 其他
)

// ParseOutcomeKind 解析分类,未知值归为other
func ParseOutcomeKind(s string) OutcomeKind {
	switch OutcomeKind(strings.ToLower(strings.TrimSpace(s))) {
	case KindLink:
		return KindLink
	case KindStructured, "swagger":
		return KindStructured
	case KindGeneral:
		return KindGeneral
	default:
		return KindOther
	}
}

// OutcomeStatus 单元的终止状态
type OutcomeStatus int

const (
	StatusSuccess OutcomeStatus = iota
	StatusInsufficient
	StatusException
)

// String 状态名
func (s OutcomeStatus) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusInsufficient:
		return "insufficient_info"
	case StatusException:
		return "exception"
	default:
		return "unknown"
	}
}

// CrawlOutcome 单个URL的最终结果,每个派发的URL恰好产生一个
type CrawlOutcome struct {
	URL      string
	Status   OutcomeStatus
	Kind     OutcomeKind // 仅Success有意义
	Record   *APIRecord
	Reason   string // InsufficientInfo的原因
	Err      error  // Exception的错误;InsufficientInfo时为ErrInsufficientInfo
	Files    []string
	SaveErr  error // 导出失败不改变结果,仅记录
	Duration time.Duration
}

// NewSuccess 成功结果
func NewSuccess(pageURL string, kind OutcomeKind, record *APIRecord) CrawlOutcome {
	return CrawlOutcome{URL: pageURL, Status: StatusSuccess, Kind: kind, Record: record}
}

// NewInsufficient 信息不足结果,Err固定为ErrInsufficientInfo
func NewInsufficient(pageURL, reason string) CrawlOutcome {
	return CrawlOutcome{URL: pageURL, Status: StatusInsufficient, Reason: reason, Err: ErrInsufficientInfo}
}

// NewException 异常结果
func NewException(pageURL string, err error) CrawlOutcome {
	return CrawlOutcome{URL: pageURL, Status: StatusException, Err: err}
}

// Succeeded 是否成功
func (o CrawlOutcome) Succeeded() bool {
	return o.Status == StatusSuccess
}
