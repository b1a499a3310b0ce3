package crawlers

import (
	"fmt"
	"html"
	"sort"
	"strings"

	"github.com/RecoveryAshes/naracrawler/internal/models"
	"github.com/microcosm-cc/bluemonday"
)

var httpMethods = []string{"get", "post", "put", "delete", "patch"}

var textPolicy = bluemonday.StrictPolicy()

// NormalizedSpec 从原始规范整理出的字段
type NormalizedSpec struct {
	Info      *models.SpecInfo
	BaseURL   string
	Schemes   []string
	Endpoints []models.Endpoint
}

// NormalizeSpec 整理规范: info段、基础地址、按路径和方法排序的端点
// 相同输入总是得到相同输出
func NormalizeSpec(spec map[string]any) NormalizedSpec {
	schemes := stringSlice(spec["schemes"])
	if len(schemes) == 0 {
		schemes = []string{"https"}
	}
	return NormalizedSpec{
		Info:      specInfo(spec),
		BaseURL:   baseURL(spec, schemes),
		Schemes:   schemes,
		Endpoints: endpoints(spec),
	}
}

// Apply 写入记录
func (n NormalizedSpec) Apply(record *models.APIRecord, raw map[string]any) {
	record.APIInfo = n.Info
	record.BaseURL = n.BaseURL
	record.Schemes = n.Schemes
	record.Endpoints = n.Endpoints
	record.SwaggerJSON = raw
}

func specInfo(spec map[string]any) *models.SpecInfo {
	info := asMap(spec["info"])
	out := &models.SpecInfo{
		Title:       cleanText(asString(info["title"])),
		Description: cleanText(asString(info["description"])),
		Version:     asString(info["version"]),
	}
	for k, v := range info {
		if strings.HasPrefix(k, "x-") {
			if out.Extensions == nil {
				out.Extensions = make(map[string]any)
			}
			out.Extensions[strings.TrimPrefix(k, "x-")] = v
		}
	}
	return out
}

// baseURL 有host时拼接 scheme://host+basePath
func baseURL(spec map[string]any, schemes []string) string {
	host := asString(spec["host"])
	if host == "" {
		return ""
	}
	return fmt.Sprintf("%s://%s%s", schemes[0], host, asString(spec["basePath"]))
}

func endpoints(spec map[string]any) []models.Endpoint {
	paths := asMap(spec["paths"])
	keys := make([]string, 0, len(paths))
	for p := range paths {
		keys = append(keys, p)
	}
	sort.Strings(keys)

	var out []models.Endpoint
	for _, path := range keys {
		methods := asMap(paths[path])
		for _, method := range httpMethods {
			op, ok := methods[method].(map[string]any)
			if !ok {
				continue
			}
			tags := stringSlice(op["tags"])
			section := "Default"
			if len(tags) > 0 {
				section = tags[0]
			}
			description := asString(op["summary"])
			if description == "" {
				description = asString(op["description"])
			}
			if tags == nil {
				tags = []string{}
			}
			out = append(out, models.Endpoint{
				Method:      strings.ToUpper(method),
				Path:        path,
				Description: cleanText(description),
				Parameters:  parameters(op["parameters"]),
				Responses:   responses(op["responses"]),
				Tags:        tags,
				Section:     section,
			})
		}
	}
	return out
}

func parameters(v any) []models.Parameter {
	list, _ := v.([]any)
	params := make([]models.Parameter, 0, len(list))
	for _, item := range list {
		p := asMap(item)
		typ := asString(p["type"])
		if typ == "" {
			typ = asString(asMap(p["schema"])["type"])
		}
		required, _ := p["required"].(bool)
		params = append(params, models.Parameter{
			Name:        asString(p["name"]),
			Description: cleanText(asString(p["description"])),
			Required:    required,
			Type:        typ,
		})
	}
	return params
}

func responses(v any) []models.Response {
	m := asMap(v)
	codes := make([]string, 0, len(m))
	for code := range m {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	out := make([]models.Response, 0, len(codes))
	for _, code := range codes {
		out = append(out, models.Response{
			StatusCode:  code,
			Description: cleanText(asString(asMap(m[code])["description"])),
		})
	}
	return out
}

// cleanText 去掉描述中的HTML标签
func cleanText(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(html.UnescapeString(textPolicy.Sanitize(s)))
}

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return ""
	default:
		return fmt.Sprint(s)
	}
}

func stringSlice(v any) []string {
	list, ok := v.([]any)
	if !ok {
		if ss, ok := v.([]string); ok {
			return ss
		}
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s := asString(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}
