package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// TimeLayout 日志和汇总中使用的时间格式
const TimeLayout = "2006-01-02 15:04:05"

// Summary 本次运行的汇总统计
// 只由派发器的汇总协程修改
type Summary struct {
	Total            int      `json:"total"`
	Success          int      `json:"success"`
	Failed           int      `json:"failed"`
	LinkType         int      `json:"link_type"`
	StructuredType   int      `json:"structured_type"`
	GeneralType      int      `json:"general_type"`
	OtherType        int      `json:"other_type"`
	InsufficientInfo int      `json:"insufficient_info"`
	Exceptions       int      `json:"exceptions"`
	Skipped          int      `json:"skipped"`
	SaveErrors       int      `json:"save_errors"`
	FailedURLs       []string `json:"failed_urls"`
	StartTime        string   `json:"start_time"`
	EndTime          string   `json:"end_time"`
	DurationSeconds  float64  `json:"duration_seconds"`
	SuccessRate      string   `json:"success_rate"`

	start time.Time
}

// NewSummary 创建汇总
func NewSummary(start time.Time) *Summary {
	return &Summary{
		FailedURLs: make([]string, 0),
		StartTime:  start.Format(TimeLayout),
		start:      start,
	}
}

// Record 累加一个结果
func (s *Summary) Record(o CrawlOutcome) {
	s.Total++
	switch o.Status {
	case StatusSuccess:
		s.Success++
		switch o.Kind {
		case KindLink:
			s.LinkType++
		case KindStructured:
			s.StructuredType++
		case KindGeneral:
			s.GeneralType++
		default:
			s.OtherType++
		}
		if o.SaveErr != nil {
			s.SaveErrors++
		}
	case StatusInsufficient:
		s.Failed++
		s.InsufficientInfo++
		s.FailedURLs = append(s.FailedURLs, o.URL)
	default:
		s.Failed++
		s.Exceptions++
		s.FailedURLs = append(s.FailedURLs, o.URL)
	}
}

// Finish 结束计时并计算成功率
func (s *Summary) Finish(end time.Time) {
	s.EndTime = end.Format(TimeLayout)
	if !s.start.IsZero() {
		s.DurationSeconds = end.Sub(s.start).Seconds()
	}
	s.SuccessRate = fmt.Sprintf("%.1f%%", s.Rate())
}

// Rate 成功率(百分比)
func (s *Summary) Rate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Success) / float64(s.Total) * 100
}

// ToJSON 序列化为JSON
func (s *Summary) ToJSON() ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}
