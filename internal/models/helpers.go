package models

import (
	"fmt"
	"net/url"
	"regexp"
)

// CatalogURLTemplate 公共数据门户API详情页地址
const CatalogURLTemplate = "https://www.data.go.kr/data/%d/openapi.do"

var documentIDPattern = regexp.MustCompile(`/data/(\d+)/openapi`)

// ValidateURL 验证URL
func ValidateURL(urlStr string) error {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("无效的URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("URL必须是HTTP或HTTPS协议")
	}
	if parsed.Host == "" {
		return fmt.Errorf("URL必须包含主机名")
	}
	return nil
}

// CatalogURL 根据文档号生成详情页URL
func CatalogURL(docID int) string {
	return fmt.Sprintf(CatalogURLTemplate, docID)
}

// GenerateURLs 生成[start, end]范围内的全部详情页URL
func GenerateURLs(start, end int) ([]string, error) {
	if start > end {
		return nil, fmt.Errorf("起始文档号(%d)不能大于结束文档号(%d)", start, end)
	}
	urls := make([]string, 0, end-start+1)
	for n := start; n <= end; n++ {
		urls = append(urls, CatalogURL(n))
	}
	return urls, nil
}

// DocumentID 从详情页URL中提取文档号,无法识别时返回空串
func DocumentID(pageURL string) string {
	m := documentIDPattern.FindStringSubmatch(pageURL)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}
