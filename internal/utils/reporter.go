package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/RecoveryAshes/naracrawler/internal/models"
	"github.com/schollz/progressbar/v3"
)

// SummaryFileName 汇总文件名
const SummaryFileName = "crawling_summary.json"

// SaveSummary 将汇总写入dir/crawling_summary.json,返回文件路径
func SaveSummary(dir string, summary *models.Summary) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("创建输出目录失败: %w", err)
	}

	data, err := summary.ToJSON()
	if err != nil {
		return "", fmt.Errorf("序列化汇总失败: %w", err)
	}

	path := filepath.Join(dir, SummaryFileName)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("写入汇总文件失败: %w", err)
	}

	Debugf("保存汇总: %s", path)
	return path, nil
}

// PrintSummary 在控制台输出汇总
func PrintSummary(w io.Writer, s *models.Summary) {
	line := strings.Repeat("=", 50)
	fmt.Fprintln(w, "\n"+line)
	fmt.Fprintln(w, "📊 크롤링 결과 요약")
	fmt.Fprintln(w, line)
	fmt.Fprintf(w, "총 처리: %d\n", s.Total)
	fmt.Fprintf(w, "✅ 성공: %d (%s)\n", s.Success, s.SuccessRate)
	fmt.Fprintf(w, "   - LINK: %d\n", s.LinkType)
	fmt.Fprintf(w, "   - 일반API: %d\n", s.StructuredType)
	fmt.Fprintf(w, "   - 일반API_old: %d\n", s.GeneralType)
	if s.OtherType > 0 {
		fmt.Fprintf(w, "   - 기타: %d\n", s.OtherType)
	}
	fmt.Fprintf(w, "❌ 실패: %d\n", s.Failed)
	fmt.Fprintf(w, "   - 정보 부족: %d\n", s.InsufficientInfo)
	fmt.Fprintf(w, "   - 예외: %d\n", s.Exceptions)
	if s.Skipped > 0 {
		fmt.Fprintf(w, "⏭️  건너뜀(재개): %d\n", s.Skipped)
	}
	if s.SaveErrors > 0 {
		fmt.Fprintf(w, "⚠️  저장 오류: %d\n", s.SaveErrors)
	}
	fmt.Fprintf(w, "⏱️  소요 시간: %.2f초\n", s.DurationSeconds)
	fmt.Fprintln(w, line)
}

// NewProgressBar 创建进度条
func NewProgressBar(max int, description string) *progressbar.ProgressBar {
	return NewProgressBarTo(os.Stderr, max, description)
}

// NewProgressBarTo 创建写入w的进度条,测试中可传入io.Discard
func NewProgressBarTo(w io.Writer, max int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(max,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}
