package crawlers

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/RecoveryAshes/naracrawler/internal/models"
	"github.com/RecoveryAshes/naracrawler/internal/utils"
	"github.com/andybalholm/brotli"
	"github.com/gocolly/colly/v2"
)

// Fetcher 外部HTTP获取能力
type Fetcher interface {
	Get(ctx context.Context, url string, timeout time.Duration) ([]byte, error)
}

// SpecFetcher 基于Colly的规范文件下载器
// 跳过TLS证书验证,自动解压gzip/deflate/brotli响应
type SpecFetcher struct {
	transport      *http.Transport
	headerProvider models.HeaderProvider
}

// NewSpecFetcher 创建下载器
func NewSpecFetcher(headerProvider models.HeaderProvider) *SpecFetcher {
	return &SpecFetcher{
		transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: true,
			},
			MaxIdleConnsPerHost: 4,
			IdleConnTimeout:     30 * time.Second,
		},
		headerProvider: headerProvider,
	}
}

// Get 下载url,仅接受200响应
func (f *SpecFetcher) Get(ctx context.Context, url string, timeout time.Duration) ([]byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	c := colly.NewCollector(
		colly.AllowURLRevisit(),
		colly.StdlibContext(reqCtx),
	)
	c.SetClient(&http.Client{Transport: f.transport, Timeout: timeout})
	c.SetRequestTimeout(timeout)

	var (
		body    []byte
		status  int
		lastErr error
	)

	c.OnRequest(func(r *colly.Request) {
		if f.headerProvider == nil {
			return
		}
		headers, err := f.headerProvider.GetHeaders()
		if err != nil {
			utils.Warnf("获取HTTP头部失败: %v", err)
			return
		}
		for name, values := range headers {
			if len(values) > 0 {
				r.Headers.Set(name, values[0])
			}
		}
	})

	c.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		decoded, err := decompressResponse(r.Headers.Get("Content-Encoding"), r.Body)
		if err != nil {
			utils.Warnf("解压响应失败 [%s]: %v", url, err)
			decoded = r.Body
		}
		body = decoded
	})

	c.OnError(func(r *colly.Response, err error) {
		if r != nil {
			status = r.StatusCode
		}
		lastErr = err
	})

	if err := c.Visit(url); err != nil && lastErr == nil {
		lastErr = err
	}
	c.Wait()

	if lastErr != nil {
		return nil, fmt.Errorf("下载 %s 失败: %w", url, lastErr)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("下载 %s 失败: 状态码 %d", url, status)
	}
	return body, nil
}

// decompressResponse 按Content-Encoding解压响应体
func decompressResponse(contentEncoding string, body []byte) ([]byte, error) {
	switch strings.ToLower(strings.TrimSpace(contentEncoding)) {
	case "gzip":
		// Colly自己会解压gzip,此时响应头仍保留原编码
		if len(body) < 2 || body[0] != 0x1f || body[1] != 0x8b {
			return body, nil
		}
		reader, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("gzip解压失败: %w", err)
		}
		defer reader.Close()
		return io.ReadAll(reader)

	case "deflate":
		reader := flate.NewReader(bytes.NewReader(body))
		defer reader.Close()
		return io.ReadAll(reader)

	case "br":
		return io.ReadAll(brotli.NewReader(bytes.NewReader(body)))

	case "", "identity":
		return body, nil

	default:
		utils.Warnf("未知的Content-Encoding: %s", contentEncoding)
		return body, nil
	}
}
