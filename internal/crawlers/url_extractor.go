package crawlers

import (
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// CollectScripts 解析HTML并按文档顺序返回所有内联<script>的文本
func CollectScripts(htmlContent string) ([]string, error) {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return nil, fmt.Errorf("解析HTML失败: %w", err)
	}

	var scripts []string
	var f func(*html.Node)
	f = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "script" {
			var sb strings.Builder
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.TextNode {
					sb.WriteString(c.Data)
				}
			}
			if sb.Len() > 0 {
				scripts = append(scripts, sb.String())
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			f(c)
		}
	}
	f(doc)

	return scripts, nil
}

// ScriptsContaining 过滤出包含marker的脚本
func ScriptsContaining(scripts []string, marker string) []string {
	var out []string
	for _, s := range scripts {
		if strings.Contains(s, marker) {
			out = append(out, s)
		}
	}
	return out
}

// ResolveReference 将脚本中的规范地址解析为绝对URL
func ResolveReference(baseURL, ref string) (string, error) {
	refURL, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", fmt.Errorf("无效的引用地址 %q: %w", ref, err)
	}
	if refURL.IsAbs() {
		return refURL.String(), nil
	}

	base, err := url.Parse(baseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return "", fmt.Errorf("无法解析相对地址 %q: 页面地址无效 %q", ref, baseURL)
	}
	return base.ResolveReference(refURL).String(), nil
}
