package utils

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/RecoveryAshes/naracrawler/internal/models"
)

// ReadURLsFromFile 从文件中读取URL列表
// 每行取第一个制表符前的内容,可直接读取failed_urls.txt或exception_urls.txt重跑
func ReadURLsFromFile(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开URL文件失败: %w", err)
	}
	defer file.Close()

	urls := make([]string, 0)
	seen := make(map[string]bool)
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if i := strings.IndexByte(line, '\t'); i >= 0 {
			line = strings.TrimSpace(line[:i])
		}

		if err := models.ValidateURL(line); err != nil {
			Warnf("跳过无效URL (行 %d): %s - %v", lineNum, line, err)
			continue
		}
		if seen[line] {
			continue
		}
		seen[line] = true
		urls = append(urls, line)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("读取URL文件失败: %w", err)
	}
	if len(urls) == 0 {
		return nil, fmt.Errorf("URL文件中没有有效的URL")
	}

	Infof("从文件加载了 %d 个URL", len(urls))
	return urls, nil
}

var appendMu sync.Mutex

// AppendLine 以追加方式写入一行,每次调用都重新打开文件
func AppendLine(path, line string) error {
	appendMu.Lock()
	defer appendMu.Unlock()

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("创建目录失败: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("打开文件失败: %w", err)
	}
	defer f.Close()

	if !strings.HasSuffix(line, "\n") {
		line += "\n"
	}
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("写入文件失败: %w", err)
	}
	return nil
}

var (
	nonWordPattern    = regexp.MustCompile(`[^\p{L}\p{N}_\s-]`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// SanitizeName 将机构名等转换为安全的目录/文件名
// 去掉字母数字、下划线、空白和连字符以外的字符,空白替换为下划线
func SanitizeName(name string) string {
	s := nonWordPattern.ReplaceAllString(strings.TrimSpace(name), "")
	s = whitespacePattern.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if s == "" {
		return "unknown"
	}
	return s
}
