package core

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/RecoveryAshes/naracrawler/internal/utils"
)

// 结果日志文件名
const (
	ExceptionLogFile    = "exception_urls.txt"
	InsufficientLogFile = "failed_urls.txt"
	UDDILogFile         = "uddi.txt"
)

// OutcomeLogs 失败URL日志,每行 URL\t原因
// 每次写入都重新打开文件,两个文件都可以直接作为 --url-file 重跑
type OutcomeLogs struct {
	exceptionPath    string
	insufficientPath string
}

// NewOutcomeLogs 在dir下创建结果日志
func NewOutcomeLogs(dir string) *OutcomeLogs {
	return &OutcomeLogs{
		exceptionPath:    filepath.Join(dir, ExceptionLogFile),
		insufficientPath: filepath.Join(dir, InsufficientLogFile),
	}
}

// Reset 删除上一次运行留下的日志,续爬时不调用
func (l *OutcomeLogs) Reset() error {
	var errs []error
	for _, p := range []string{l.exceptionPath, l.insufficientPath} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			errs = append(errs, fmt.Errorf("删除旧日志 %s: %w", p, err))
		}
	}
	return errors.Join(errs...)
}

// Exception 记录异常URL
func (l *OutcomeLogs) Exception(pageURL string, err error) error {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return utils.AppendLine(l.exceptionPath, pageURL+"\t"+oneLine(msg))
}

// Insufficient 记录信息不足的URL
func (l *OutcomeLogs) Insufficient(pageURL, reason string) error {
	return utils.AppendLine(l.insufficientPath, pageURL+"\t"+oneLine(reason))
}

// ExceptionPath 异常日志路径
func (l *OutcomeLogs) ExceptionPath() string { return l.exceptionPath }

// InsufficientPath 信息不足日志路径
func (l *OutcomeLogs) InsufficientPath() string { return l.insufficientPath }

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
