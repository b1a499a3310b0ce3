package exporter

import (
	"encoding/csv"
	"encoding/json"
	"encoding/xml"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/RecoveryAshes/naracrawler/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/transform"
	"gopkg.in/yaml.v3"
)

const testURL = "https://www.data.go.kr/data/15000001/openapi.do"

func structuredRecord() *models.APIRecord {
	return &models.APIRecord{
		APIID:       "15000001",
		CrawledURL:  testURL,
		CrawledTime: "2024-03-15 10:00:00",
		APIType:     models.KindStructured,
		Info: map[string]string{
			models.FieldOrganization: "국토교통부 (본부)",
			models.FieldRevisedDate:  "2024-03-15",
			models.FieldAPIType:      "REST",
			"분류체계":                   "교통및물류",
		},
		APIInfo: &models.SpecInfo{Title: "버스 | 도착정보", Description: "설명\n둘째줄", Version: "1.0"},
		BaseURL: "https://apis.data.go.kr/1613000",
		Schemes: []string{"https"},
		Endpoints: []models.Endpoint{
			{Method: "GET", Path: "/a", Section: "조회", Parameters: []models.Parameter{{Name: "serviceKey", Type: "string", Required: true, Description: strings.Repeat("가", 60)}}},
			{Method: "POST", Path: "/b", Section: "등록", Responses: []models.Response{{StatusCode: "200", Description: "성공"}}},
		},
		SwaggerJSON: map[string]any{"swagger": "2.0", "paths": map[string]any{"/a": map[string]any{}}, "200": "digit"},
	}
}

func TestKindDir(t *testing.T) {
	tests := []struct {
		name    string
		kind    models.OutcomeKind
		apiType string
		want    string
	}{
		{"LINK", models.KindLink, "LINK", DirLink},
		{"表格为LINK时优先", models.KindGeneral, "LINK", DirLink},
		{"结构化", models.KindStructured, "REST", DirStructured},
		{"一般", models.KindGeneral, "REST", DirGeneral},
		{"其他", models.KindOther, "", DirOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &models.APIRecord{APIType: tt.kind, Info: map[string]string{models.FieldAPIType: tt.apiType}}
			assert.Equal(t, tt.want, KindDir(rec))
		})
	}
}

func TestFilePrefix(t *testing.T) {
	assert.Equal(t, "15000001_2024-03-15", FilePrefix(structuredRecord()))
	assert.Equal(t, "unknown_doc_unknown_date", FilePrefix(&models.APIRecord{CrawledURL: "https://x/y"}))
}

func TestExporter_SaveAllFormats(t *testing.T) {
	out := t.TempDir()
	e := New(out, []string{"json", "xml", "md", "csv", "yaml"})

	files, err := e.Save(structuredRecord())
	require.NoError(t, err)
	require.Len(t, files, 5)

	dir := filepath.Join(out, DirStructured, "국토교통부_본부")
	for _, ext := range []string{"json", "xml", "md", "yaml"} {
		assert.FileExists(t, filepath.Join(dir, "15000001_2024-03-15."+ext))
	}
	assert.FileExists(t, filepath.Join(out, DirCSV, CSVFileName))

	data, err := os.ReadFile(filepath.Join(dir, "15000001_2024-03-15.json"))
	require.NoError(t, err)
	var decoded models.APIRecord
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, models.KindStructured, decoded.APIType)
	assert.Len(t, decoded.Endpoints, 2)

	data, err = os.ReadFile(filepath.Join(dir, "15000001_2024-03-15.yaml"))
	require.NoError(t, err)
	var y map[string]any
	require.NoError(t, yaml.Unmarshal(data, &y))
	assert.Equal(t, "15000001", y["api_id"])
}

func TestExporter_UnknownFormat(t *testing.T) {
	e := New(t.TempDir(), []string{"json", "pdf"})
	files, err := e.Save(structuredRecord())
	assert.Len(t, files, 1, "其余格式仍应写出")
	assert.ErrorContains(t, err, "pdf")
}

func TestWriteXML(t *testing.T) {
	var sb strings.Builder
	require.NoError(t, writeXML(&sb, structuredRecord()))
	out := sb.String()

	assert.True(t, strings.HasPrefix(out, xml.Header))
	assert.Contains(t, out, "<api_documentation>")
	assert.Contains(t, out, "<item_0>")
	assert.Contains(t, out, "<item_200>digit</item_200>", "数字开头的键应加前缀")
	assert.Contains(t, out, "<_a></_a>")
	assert.Contains(t, out, "<제공기관>")
	assert.Contains(t, out, "버스 | 도착정보")

	// 必须是合法XML
	dec := xml.NewDecoder(strings.NewReader(out))
	for {
		_, err := dec.Token()
		if err != nil {
			assert.Equal(t, "EOF", err.Error())
			break
		}
	}
}

func TestXMLTagName(t *testing.T) {
	tests := map[string]string{
		"api_id":     "api_id",
		"/getList":   "_getList",
		"200":        "item_200",
		"":           "unnamed_item",
		"x-provider": "x-provider",
		"API 유형":     "API_유형",
		"xmlns":      "_xmlns",
	}
	for in, want := range tests {
		assert.Equal(t, want, XMLTagName(in), in)
	}
}

func TestRenderMarkdown_Structured(t *testing.T) {
	md := RenderMarkdown(structuredRecord())

	assert.True(t, strings.HasPrefix(md, "# 버스 | 도착정보"))
	assert.Contains(t, md, "**설명:** 설명 둘째줄")
	assert.Contains(t, md, "## 🔗 API 엔드포인트 (2개)")
	assert.Contains(t, md, "### 조회")
	assert.Contains(t, md, "### 등록")
	assert.Contains(t, md, "**완전한 URL:** `https://apis.data.go.kr/1613000/a`")
	assert.Contains(t, md, "| `serviceKey` | string | ✅ | "+strings.Repeat("가", 50)+"... |")
	assert.Contains(t, md, "| `200` | 성공 |")
}

func TestRenderMarkdown_General(t *testing.T) {
	rec := &models.APIRecord{
		APIID:   "15000002",
		APIType: models.KindGeneral,
		GeneralInfo: &models.GeneralInfo{
			Description:     strings.Repeat("설", 55),
			ApprovalProcess: &models.StagePair{Development: "자동승인", Operation: "심의승인"},
			RequestParameters: []models.FieldSpec{
				{NameKor: "키", NameEng: "a|b", SampleData: strings.Repeat("x", 40)},
			},
		},
	}
	md := RenderMarkdown(rec)

	assert.True(t, strings.HasPrefix(md, "# "+strings.Repeat("설", 50)+"..."))
	assert.Contains(t, md, "- 개발단계: 자동승인")
	assert.Contains(t, md, "## 📤 요청변수 (1개)")
	assert.Contains(t, md, "`a\\|b`")
	assert.Contains(t, md, strings.Repeat("x", 30)+"...")
	assert.NotContains(t, md, "출력결과")
	assert.Contains(t, md, "일반 API (Swagger 미지원)")
}

func TestRenderMarkdown_Link(t *testing.T) {
	rec := &models.APIRecord{
		APIID:      "15000003",
		APIType:    models.KindLink,
		Info:       map[string]string{"제공기관": "통계청"},
		SkipReason: models.LinkSkipReason,
	}
	md := RenderMarkdown(rec)
	assert.True(t, strings.HasPrefix(md, "# LINK 타입 API"))
	assert.Contains(t, md, "**제공기관:** 통계청")
	assert.Contains(t, md, models.LinkSkipReason)

	other := RenderMarkdown(&models.APIRecord{APIType: models.KindOther})
	assert.Contains(t, other, "알 수 없는 API 타입입니다.")
}

func readCP949(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	r := csv.NewReader(transform.NewReader(f, korean.EUCKR.NewDecoder()))
	rows, err := r.ReadAll()
	require.NoError(t, err)
	return rows
}

func TestExporter_CSVAccumulates(t *testing.T) {
	out := t.TempDir()
	e := New(out, []string{"csv"})

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.Save(structuredRecord())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	rows := readCP949(t, filepath.Join(out, DirCSV, CSVFileName))
	require.Len(t, rows, 6, "表头只写一次")
	assert.Equal(t, CSVColumns, rows[0])
	assert.Equal(t, "15000001", rows[1][0])
	assert.Equal(t, "국토교통부 (본부)", rows[1][4])
	assert.Equal(t, "교통및물류", rows[1][3])
}

func TestExporter_CSVRequiresInfo(t *testing.T) {
	e := New(t.TempDir(), []string{"csv"})
	_, err := e.Save(&models.APIRecord{CrawledURL: testURL, APIType: models.KindGeneral})
	assert.Error(t, err)
}
