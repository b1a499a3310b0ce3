package crawlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/RecoveryAshes/naracrawler/internal/models"
	"github.com/rs/zerolog/log"
)

// Strategy 一种规范提取方式
// Attempt返回非空map表示成功,否则返回错误
type Strategy interface {
	Name() string
	Attempt(ctx context.Context, page Page) (map[string]any, error)
}

// ExtractorChain 按顺序尝试各策略,第一个成功的结果生效,不做合并
type ExtractorChain struct {
	strategies []Strategy
}

// NewExtractorChain 用给定策略构造提取链
func NewExtractorChain(strategies ...Strategy) *ExtractorChain {
	return &ExtractorChain{strategies: strategies}
}

// DefaultExtractorChain 默认的四级提取链
func DefaultExtractorChain(fetcher Fetcher, fetchTimeout time.Duration) *ExtractorChain {
	return NewExtractorChain(
		InlineGlobalStrategy{},
		ScriptPatternStrategy{},
		FrameworkGlobalStrategy{},
		&ExternalRefStrategy{Fetcher: fetcher, Timeout: fetchTimeout},
	)
}

// Strategies 返回策略名列表
func (c *ExtractorChain) Strategies() []string {
	names := make([]string, len(c.strategies))
	for i, s := range c.strategies {
		names[i] = s.Name()
	}
	return names
}

// Extract 依次尝试每个策略,全部失败时返回Empty
func (c *ExtractorChain) Extract(ctx context.Context, page Page) models.ExtractionResult {
	for _, s := range c.strategies {
		if ctx.Err() != nil {
			break
		}
		spec, err := attemptSafely(ctx, s, page)
		if err == nil && len(spec) > 0 {
			log.Debug().Str("url", page.URL()).Str("strategy", s.Name()).Msg("提取到API规范")
			return models.Structured(s.Name(), spec)
		}
		if err == nil {
			err = models.ErrExtractionEmpty
		}
		log.Debug().Err(err).Str("url", page.URL()).Str("strategy", s.Name()).Msg("策略未命中")
	}
	return models.Empty()
}

func attemptSafely(ctx context.Context, s Strategy, page Page) (spec map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			spec = nil
			err = fmt.Errorf("策略 %s panic: %v", s.Name(), r)
		}
	}()
	return s.Attempt(ctx, page)
}

// InlineGlobalStrategy 读取页面全局变量swaggerJson
type InlineGlobalStrategy struct{}

const inlineGlobalJS = `() => (typeof swaggerJson === 'undefined' || swaggerJson === null) ? null : swaggerJson`

func (InlineGlobalStrategy) Name() string { return "inline-global" }

func (InlineGlobalStrategy) Attempt(ctx context.Context, page Page) (map[string]any, error) {
	v, err := page.Eval(ctx, inlineGlobalJS)
	if err != nil {
		return nil, err
	}
	return specFromValue(v)
}

// FrameworkGlobalStrategy 读取Swagger UI实例上的window.swaggerUi.spec
type FrameworkGlobalStrategy struct{}

const frameworkGlobalJS = `() => (typeof window.swaggerUi !== 'undefined' && window.swaggerUi && window.swaggerUi.spec) ? window.swaggerUi.spec : null`

func (FrameworkGlobalStrategy) Name() string { return "framework-global" }

func (FrameworkGlobalStrategy) Attempt(ctx context.Context, page Page) (map[string]any, error) {
	v, err := page.Eval(ctx, frameworkGlobalJS)
	if err != nil {
		return nil, err
	}
	return specFromValue(v)
}

// specFromValue 字符串先去空白再解析JSON,对象直接使用
func specFromValue(v any) (map[string]any, error) {
	switch val := v.(type) {
	case nil:
		return nil, models.ErrExtractionEmpty
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return nil, models.ErrEmptySentinel
		}
		return parseSpec(s)
	case map[string]any:
		if len(val) == 0 {
			return nil, models.ErrExtractionEmpty
		}
		return val, nil
	default:
		return nil, fmt.Errorf("%w: 意外的类型 %T", models.ErrParseInvalid, v)
	}
}

func parseSpec(raw string) (map[string]any, error) {
	var spec map[string]any
	if err := json.Unmarshal([]byte(raw), &spec); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrParseInvalid, err)
	}
	if len(spec) == 0 {
		return nil, models.ErrExtractionEmpty
	}
	return spec, nil
}

const bt = "`"

// 空值哨兵,顺序固定: var引号、裸引号、var模板字符串、裸模板字符串
var emptySentinelPatterns = []*regexp.Regexp{
	regexp.MustCompile(`var\s+swaggerJson\s*=\s*['"]\s*['"]\s*[;,]`),
	regexp.MustCompile(`swaggerJson\s*=\s*['"]\s*['"]\s*[;,]`),
	regexp.MustCompile(`var\s+swaggerJson\s*=\s*` + bt + `\s*` + bt + `\s*[;,]`),
	regexp.MustCompile(`swaggerJson\s*=\s*` + bt + `\s*` + bt + `\s*[;,]`),
}

// 取值模式,顺序固定
var swaggerValuePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?s)var\s+swaggerJson\s*=\s*(\{.*?\})\s*[;,]`),
	regexp.MustCompile(`(?s)swaggerJson\s*=\s*(\{.*?\})\s*[;,]`),
	regexp.MustCompile(`(?s)swaggerJson\s*:\s*(\{.*?\})`),
	regexp.MustCompile(`(?s)var\s+swaggerJson\s*=\s*` + bt + `(\{.*?\})` + bt),
	regexp.MustCompile(`(?s)swaggerJson\s*=\s*` + bt + `(\{.*?\})` + bt),
}

// ScriptPatternStrategy 在内联脚本中匹配swaggerJson赋值
// 脚本命中空值哨兵时整个策略立即失败,不再尝试取值模式
type ScriptPatternStrategy struct{}

func (ScriptPatternStrategy) Name() string { return "script-pattern" }

func (ScriptPatternStrategy) Attempt(ctx context.Context, page Page) (map[string]any, error) {
	source, err := page.HTML(ctx)
	if err != nil {
		return nil, err
	}
	scripts, err := CollectScripts(source)
	if err != nil {
		return nil, err
	}
	return matchSwaggerScripts(ScriptsContaining(scripts, "swaggerJson"))
}

func matchSwaggerScripts(scripts []string) (map[string]any, error) {
	for _, script := range scripts {
		for _, p := range emptySentinelPatterns {
			if p.MatchString(script) {
				return nil, models.ErrEmptySentinel
			}
		}
		for _, p := range swaggerValuePatterns {
			if spec := matchObject(p, script); spec != nil {
				return spec, nil
			}
		}
	}
	return nil, models.ErrExtractionEmpty
}

// matchObject 匹配并解析对象字面量
// 非贪婪匹配在嵌套对象处可能截断,解析失败时从同一位置按括号配对重新截取
func matchObject(p *regexp.Regexp, script string) map[string]any {
	loc := p.FindStringSubmatchIndex(script)
	if loc == nil || loc[2] < 0 {
		return nil
	}
	candidate := stripLineBreaks(script[loc[2]:loc[3]])
	if spec, err := parseSpec(candidate); err == nil {
		return spec
	}
	if balanced, ok := balancedObject(script, loc[2]); ok {
		if spec, err := parseSpec(stripLineBreaks(balanced)); err == nil {
			return spec
		}
	}
	return nil
}

func stripLineBreaks(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// balancedObject 从start处的'{'开始截取括号配对的对象,忽略字符串内的括号
func balancedObject(s string, start int) (string, bool) {
	if start >= len(s) || s[start] != '{' {
		return "", false
	}
	depth := 0
	var quote byte
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == quote:
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'':
			quote = c
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

var (
	bundleURLPattern  = regexp.MustCompile(`url\s*:\s*['"]([^'"]+)['"]`)
	bundleSpecPattern = regexp.MustCompile(`(?s)spec\s*:\s*(\{.*?\})\s*[,}]`)
)

// ExternalRefStrategy 从SwaggerUIBundle配置中读取规范地址并下载,
// 没有地址或下载失败时尝试内联的spec对象
type ExternalRefStrategy struct {
	Fetcher Fetcher
	Timeout time.Duration
}

func (s *ExternalRefStrategy) Name() string { return "external-ref" }

func (s *ExternalRefStrategy) Attempt(ctx context.Context, page Page) (map[string]any, error) {
	source, err := page.HTML(ctx)
	if err != nil {
		return nil, err
	}
	scripts, err := CollectScripts(source)
	if err != nil {
		return nil, err
	}

	for _, script := range ScriptsContaining(scripts, "SwaggerUIBundle") {
		if m := bundleURLPattern.FindStringSubmatch(script); m != nil {
			spec, err := s.fetch(ctx, page.URL(), m[1])
			if err == nil {
				return spec, nil
			}
			log.Warn().Err(err).Str("url", page.URL()).Msg("外部规范获取失败")
		}
		if spec := matchObject(bundleSpecPattern, script); spec != nil {
			return spec, nil
		}
	}
	return nil, models.ErrExtractionEmpty
}

func (s *ExternalRefStrategy) fetch(ctx context.Context, pageURL, ref string) (map[string]any, error) {
	if s.Fetcher == nil {
		return nil, errors.New("未配置下载器")
	}
	target, err := ResolveReference(pageURL, ref)
	if err != nil {
		return nil, err
	}
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	body, err := s.Fetcher.Get(ctx, target, timeout)
	if err != nil {
		return nil, err
	}
	return parseSpec(strings.TrimSpace(string(body)))
}
