package crawlers

import (
	"fmt"
	"time"

	"github.com/RecoveryAshes/naracrawler/internal/models"
	"github.com/RecoveryAshes/naracrawler/internal/utils"
)

// SideLog 记录发现的UDDI标识,格式: 标识\tURL\t时间
// 每次写入都重新打开文件,多个单元并发追加
type SideLog struct {
	path string
	now  func() time.Time
}

// NewSideLog 创建写入path的旁路日志
func NewSideLog(path string) *SideLog {
	return &SideLog{path: path, now: time.Now}
}

// Append 追加一条记录
func (l *SideLog) Append(id, pageURL string) error {
	if l == nil || l.path == "" {
		return nil
	}
	line := fmt.Sprintf("%s\t%s\t%s", id, pageURL, l.now().Format(models.TimeLayout))
	return utils.AppendLine(l.path, line)
}

// Path 日志文件路径
func (l *SideLog) Path() string {
	return l.path
}
