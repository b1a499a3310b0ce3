package exporter

import (
	"fmt"
	"io"
	"strings"

	"github.com/RecoveryAshes/naracrawler/internal/models"
)

const mdFooter = "이 문서는 나라장터 API 크롤러에 의해 자동 생성되었습니다."

func writeMarkdown(w io.Writer, record *models.APIRecord) error {
	_, err := io.WriteString(w, RenderMarkdown(record))
	return err
}

// RenderMarkdown 按分类渲染Markdown文档
func RenderMarkdown(record *models.APIRecord) string {
	md := &mdWriter{}
	switch {
	case record.APIType == models.KindLink:
		renderLink(md, record)
	case record.APIType == models.KindStructured:
		renderStructured(md, record)
	case record.APIType == models.KindGeneral:
		renderGeneral(md, record)
	default:
		md.line("# API 문서")
		md.blank()
		md.line("알 수 없는 API 타입입니다.")
	}
	return md.String()
}

type mdWriter struct {
	lines []string
}

func (m *mdWriter) line(format string, args ...any) {
	if len(args) == 0 {
		m.lines = append(m.lines, format)
		return
	}
	m.lines = append(m.lines, fmt.Sprintf(format, args...))
}

func (m *mdWriter) blank() {
	m.lines = append(m.lines, "")
}

func (m *mdWriter) String() string {
	return strings.Join(m.lines, "\n")
}

func (m *mdWriter) crawlInfo(record *models.APIRecord) {
	if record.CrawledTime != "" {
		m.line("**크롤링 시간:** %s", record.CrawledTime)
	}
	if record.CrawledURL != "" {
		m.line("**원본 URL:** %s", record.CrawledURL)
	}
	m.blank()
}

func renderLink(md *mdWriter, record *models.APIRecord) {
	md.line("# LINK 타입 API")
	md.blank()
	md.crawlInfo(record)

	md.line("## 📋 API 정보")
	md.blank()
	md.line("이 API는 LINK 타입으로, 외부 링크를 통해 제공됩니다.")
	md.blank()

	if len(record.Info) > 0 {
		md.line("## 📊 상세 정보")
		md.blank()
		for _, key := range sortedKeys(record.Info) {
			md.line("**%s:** %s", key, record.Info[key])
		}
		md.blank()
	}

	if record.SkipReason != "" {
		md.line("## ℹ️ 처리 정보")
		md.blank()
		md.line("**처리 상태:** %s", record.SkipReason)
		md.blank()
	}

	md.line("## 📝 생성 정보")
	md.blank()
	md.line(mdFooter)
	md.line("**API 타입:** LINK (외부 링크 제공)")
	if record.APIID != "" {
		md.line("**API ID:** %s", record.APIID)
	}
}

func renderStructured(md *mdWriter, record *models.APIRecord) {
	info := record.APIInfo
	if info == nil {
		info = &models.SpecInfo{}
	}
	title := info.Title
	if title == "" {
		title = "API Documentation"
	}
	md.line("# %s", title)
	md.blank()
	md.crawlInfo(record)

	md.line("## 📋 API 정보")
	md.blank()
	if d := oneLine(info.Description); d != "" {
		md.line("**설명:** %s", d)
		md.blank()
	}
	if record.BaseURL != "" {
		md.line("**Base URL:** `%s`", record.BaseURL)
		md.blank()
	}
	if len(record.Schemes) > 0 {
		md.line("**지원 프로토콜:** %s", strings.Join(record.Schemes, ", "))
		md.blank()
	}

	if len(record.Endpoints) > 0 {
		md.line("## 🔗 API 엔드포인트 (%d개)", len(record.Endpoints))
		md.blank()

		// 按首次出现的顺序分组
		var order []string
		sections := make(map[string][]models.Endpoint)
		for _, ep := range record.Endpoints {
			if _, ok := sections[ep.Section]; !ok {
				order = append(order, ep.Section)
			}
			sections[ep.Section] = append(sections[ep.Section], ep)
		}

		for _, name := range order {
			if len(order) > 1 {
				md.line("### %s", name)
				md.blank()
			}
			for _, ep := range sections[name] {
				renderEndpoint(md, ep, record.BaseURL)
			}
		}
	}

	md.line("## 📝 생성 정보")
	md.blank()
	md.line(mdFooter)
	if record.APIID != "" {
		md.line("**API ID:** %s", record.APIID)
	}
	if record.BaseURL != "" {
		md.line("**Base URL:** %s", record.BaseURL)
	}
}

func renderEndpoint(md *mdWriter, ep models.Endpoint, baseURL string) {
	md.line("#### `%s` %s", ep.Method, ep.Path)
	if baseURL != "" {
		md.line("**완전한 URL:** `%s%s`", baseURL, ep.Path)
	}
	md.blank()

	if d := oneLine(ep.Description); d != "" {
		md.line("**설명:** %s", d)
		md.blank()
	}

	if len(ep.Parameters) > 0 {
		md.line("**파라미터:**")
		md.blank()
		md.line("| 이름 | 타입 | 필수 | 설명 |")
		md.line("|------|------|------|------|")
		for _, p := range ep.Parameters {
			required := "❌"
			if p.Required {
				required = "✅"
			}
			md.line("| `%s` | %s | %s | %s |", cell(p.Name, 0), cell(p.Type, 0), required, cell(p.Description, 50))
		}
		md.blank()
	}

	if len(ep.Responses) > 0 {
		md.line("**응답:**")
		md.blank()
		md.line("| 상태 코드 | 설명 |")
		md.line("|-----------|------|")
		for _, r := range ep.Responses {
			md.line("| `%s` | %s |", cell(r.StatusCode, 0), cell(r.Description, 80))
		}
		md.blank()
	}

	md.line("---")
	md.blank()
}

func renderGeneral(md *mdWriter, record *models.APIRecord) {
	info := record.GeneralInfo
	if info == nil {
		info = &models.GeneralInfo{}
	}

	title := "API Documentation"
	if info.Description != "" {
		title = truncate(info.Description, 50)
	}
	md.line("# %s", title)
	md.blank()
	md.crawlInfo(record)

	if info.Description != "" || info.RequestURL != "" || info.ServiceURL != "" ||
		info.ApprovalProcess != nil || info.TrafficLimit != nil {
		md.line("## 📋 API 상세정보")
		md.blank()
		if info.Description != "" {
			md.line("**기능 설명:**")
			md.line(info.Description)
			md.blank()
		}
		if info.RequestURL != "" {
			md.line("**요청 주소:** `%s`", info.RequestURL)
			md.blank()
		}
		if info.ServiceURL != "" {
			md.line("**서비스 URL:** `%s`", info.ServiceURL)
			md.blank()
		}
		stagePair(md, "활용승인 절차", "개발단계", "운영단계", info.ApprovalProcess)
		stagePair(md, "신청가능 트래픽", "개발계정", "운영계정", info.TrafficLimit)
	}

	fieldTable(md, "## 📤 요청변수", info.RequestParameters)
	fieldTable(md, "## 📥 출력결과", info.ResponseElements)

	md.line("## 📝 생성 정보")
	md.blank()
	md.line(mdFooter)
	md.line("**API 타입:** 일반 API (Swagger 미지원)")
	if record.APIID != "" {
		md.line("**API ID:** %s", record.APIID)
	}
}

func stagePair(md *mdWriter, title, dev, op string, pair *models.StagePair) {
	if pair == nil {
		return
	}
	md.line("**%s:**", title)
	if pair.Development != "" {
		md.line("- %s: %s", dev, pair.Development)
	}
	if pair.Operation != "" {
		md.line("- %s: %s", op, pair.Operation)
	}
	md.blank()
}

func fieldTable(md *mdWriter, heading string, fields []models.FieldSpec) {
	if len(fields) == 0 {
		return
	}
	md.line("%s (%d개)", heading, len(fields))
	md.blank()
	md.line("| 항목명(국문) | 항목명(영문) | 크기 | 필수여부 | 샘플데이터 | 설명 |")
	md.line("|--------------|--------------|------|----------|------------|------|")
	for _, f := range fields {
		md.line("| %s | `%s` | %s | %s | %s | %s |",
			cell(f.NameKor, 0), cell(f.NameEng, 0), cell(f.Size, 0),
			cell(f.Required, 0), cell(f.SampleData, 30), cell(f.Description, 50))
	}
	md.blank()
}

// cell 表格单元格: 换行变空格,转义竖线,超过limit个字符截断(limit为0不截断)
func cell(s string, limit int) string {
	s = oneLine(s)
	if limit > 0 {
		s = truncate(s, limit)
	}
	return strings.ReplaceAll(s, "|", `\|`)
}

func oneLine(s string) string {
	return strings.TrimSpace(strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(s))
}

// truncate 按字符数截断并追加...
func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit]) + "..."
}
