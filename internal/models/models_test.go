package models

import (
	"errors"
	"testing"
	"time"
)

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"有效的HTTP URL", "http://example.com", false},
		{"有效的HTTPS URL", "https://www.data.go.kr/data/15000001/openapi.do", false},
		{"无效的协议", "ftp://example.com", true},
		{"无效的URL", "not a url", true},
		{"空URL", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateURL() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCrawlConfig_Validate(t *testing.T) {
	valid := DefaultCrawlConfig()
	valid.StartID, valid.EndID = 100, 200

	tests := []struct {
		name    string
		mutate  func(c *CrawlConfig)
		wantErr bool
	}{
		{"有效配置", func(c *CrawlConfig) {}, false},
		{"起始大于结束", func(c *CrawlConfig) { c.StartID = 300 }, true},
		{"负数文档号", func(c *CrawlConfig) { c.StartID = -1 }, true},
		{"没有导出格式", func(c *CrawlConfig) { c.Formats = nil }, true},
		{"不支持的格式", func(c *CrawlConfig) { c.Formats = []string{"pdf"} }, true},
		{"页面超时为0", func(c *CrawlConfig) { c.PageTimeout = 0 }, true},
		{"负数限速", func(c *CrawlConfig) { c.RateLimit = -1 }, true},
		{"YAML格式", func(c *CrawlConfig) { c.Formats = []string{"yaml"} }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			c.Formats = append([]string(nil), valid.Formats...)
			tt.mutate(&c)
			err := c.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestClampWorkers(t *testing.T) {
	tests := []struct {
		in        int
		want      int
		wantReset bool
	}{
		{10, 10, false},
		{25, 25, false},
		{40, 40, false},
		{9, DefaultWorkers, true},
		{41, DefaultWorkers, true},
		{0, DefaultWorkers, true},
	}
	for _, tt := range tests {
		got, reset := ClampWorkers(tt.in)
		if got != tt.want || reset != tt.wantReset {
			t.Errorf("ClampWorkers(%d) = (%d, %v), 期望 (%d, %v)", tt.in, got, reset, tt.want, tt.wantReset)
		}
	}
}

func TestGenerateURLs(t *testing.T) {
	urls, err := GenerateURLs(100, 104)
	if err != nil {
		t.Fatalf("GenerateURLs失败: %v", err)
	}
	if len(urls) != 5 {
		t.Fatalf("期望5个URL, 实际%d个", len(urls))
	}
	if urls[0] != "https://www.data.go.kr/data/100/openapi.do" {
		t.Errorf("首个URL错误: %s", urls[0])
	}

	if _, err := GenerateURLs(5, 1); err == nil {
		t.Error("起始大于结束时应返回错误")
	}
}

func TestDocumentID(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://www.data.go.kr/data/15012690/openapi.do", "15012690"},
		{"https://www.data.go.kr/data/abc/openapi.do", ""},
		{"https://example.com", ""},
	}
	for _, tt := range tests {
		if got := DocumentID(tt.url); got != tt.want {
			t.Errorf("DocumentID(%q) = %q, 期望 %q", tt.url, got, tt.want)
		}
	}
}

func TestSummary_Record(t *testing.T) {
	start := time.Date(2025, 1, 1, 10, 0, 0, 0, time.Local)
	s := NewSummary(start)

	s.Record(NewSuccess("u1", KindLink, nil))
	s.Record(NewSuccess("u2", KindStructured, nil))
	s.Record(NewSuccess("u3", KindGeneral, nil))
	s.Record(NewInsufficient("u4", "API 정보 부족"))
	s.Record(NewException("u5", errors.New("导航失败")))
	s.Finish(start.Add(10 * time.Second))

	if s.Total != 5 || s.Success != 3 || s.Failed != 2 {
		t.Errorf("计数错误: total=%d success=%d failed=%d", s.Total, s.Success, s.Failed)
	}
	if s.Total != s.Success+s.Failed {
		t.Error("total 必须等于 success + failed")
	}
	if s.LinkType != 1 || s.StructuredType != 1 || s.GeneralType != 1 {
		t.Errorf("分类计数错误: %+v", s)
	}
	if s.InsufficientInfo != 1 || s.Exceptions != 1 {
		t.Errorf("失败分类计数错误: insufficient=%d exceptions=%d", s.InsufficientInfo, s.Exceptions)
	}
	if s.SuccessRate != "60.0%" {
		t.Errorf("成功率格式错误: %s", s.SuccessRate)
	}
	if s.DurationSeconds != 10 {
		t.Errorf("耗时错误: %v", s.DurationSeconds)
	}
	if len(s.FailedURLs) != 2 {
		t.Errorf("失败URL数量错误: %v", s.FailedURLs)
	}
}

func TestSummary_EmptyRun(t *testing.T) {
	s := NewSummary(time.Now())
	s.Finish(time.Now())
	if s.SuccessRate != "0.0%" {
		t.Errorf("空运行成功率应为0.0%%, 实际: %s", s.SuccessRate)
	}
}

func TestParseOutcomeKind(t *testing.T) {
	tests := map[string]OutcomeKind{
		"link":       KindLink,
		"LINK":       KindLink,
		"swagger":    KindStructured,
		"structured": KindStructured,
		"general":    KindGeneral,
		"":           KindOther,
		"unknown":    KindOther,
	}
	for in, want := range tests {
		if got := ParseOutcomeKind(in); got != want {
			t.Errorf("ParseOutcomeKind(%q) = %q, 期望 %q", in, got, want)
		}
	}
}

func TestCliHeaders_Parse(t *testing.T) {
	h, err := CliHeaders{"User-Agent: Bot/1.0", "X-Token:abc:def"}.Parse()
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if h.Get("User-Agent") != "Bot/1.0" {
		t.Errorf("User-Agent错误: %q", h.Get("User-Agent"))
	}
	if h.Get("X-Token") != "abc:def" {
		t.Errorf("值中的冒号应保留: %q", h.Get("X-Token"))
	}

	if _, err := (CliHeaders{"NoColon"}).Parse(); err == nil {
		t.Error("缺少冒号时应返回错误")
	}
	if _, err := (CliHeaders{": value"}).Parse(); err == nil {
		t.Error("名称为空时应返回错误")
	}
}

func TestUnitError_Unwrap(t *testing.T) {
	err := &UnitError{URL: "u", Stage: "loading", Err: ErrLoadTimeout}
	if !errors.Is(err, ErrLoadTimeout) {
		t.Error("UnitError应能被errors.Is识别")
	}
	var ue *UnitError
	if !errors.As(error(err), &ue) || ue.Stage != "loading" {
		t.Error("UnitError应能被errors.As提取")
	}
}

func TestGeneralInfo_HasContent(t *testing.T) {
	var nilInfo *GeneralInfo
	if nilInfo.HasContent() {
		t.Error("nil不应有内容")
	}
	if (&GeneralInfo{}).HasContent() {
		t.Error("空结构不应有内容")
	}
	if !(&GeneralInfo{Description: "설명"}).HasContent() {
		t.Error("有描述时应有内容")
	}
	if !(&GeneralInfo{ResponseElements: []FieldSpec{{NameEng: "resultCode"}}}).HasContent() {
		t.Error("有输出结果时应有内容")
	}

	onlyDetail := &GeneralInfo{
		ApprovalProcess: &StagePair{},
		TrafficLimit:    &StagePair{Development: "10,000"},
		RequestURL:      "http://apis.data.go.kr/x",
		ServiceURL:      "http://apis.data.go.kr/x",
	}
	if onlyDetail.HasContent() {
		t.Error("只有附属信息时不应有内容")
	}
}

func TestAPIRecord_Key(t *testing.T) {
	r := &APIRecord{
		APIID:   "15000001",
		APIType: KindGeneral,
		Info:    map[string]string{FieldOrganization: "서울특별시", FieldRevisedDate: "2024-01-02"},
	}
	k := r.Key()
	if k.Organization != "서울특별시" || k.RevisionDate != "2024-01-02" || k.DocumentID != "15000001" || k.Kind != KindGeneral {
		t.Errorf("Key错误: %+v", k)
	}
}
