package models

// 详情页表格中的关键字段
const (
	FieldAPIType      = "API 유형"
	FieldOrganization = "제공기관"
	FieldRevisedDate  = "수정일"
	FieldSecondaryID  = "uddi"
)

// LinkSkipReason LINK类型只保存表格信息
const LinkSkipReason = "LINK 타입 API는 테이블 정보만 수집"

// APIRecord 规范化后的API文档记录
type APIRecord struct {
	APIID       string            `json:"api_id" yaml:"api_id"`
	CrawledURL  string            `json:"crawled_url" yaml:"crawled_url"`
	CrawledTime string            `json:"crawled_time" yaml:"crawled_time"`
	APIType     OutcomeKind       `json:"api_type" yaml:"api_type"`
	Info        map[string]string `json:"info" yaml:"info"`
	SkipReason  string            `json:"skip_reason,omitempty" yaml:"skip_reason,omitempty"`

	// 结构化规范
	APIInfo     *SpecInfo      `json:"api_info,omitempty" yaml:"api_info,omitempty"`
	BaseURL     string         `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Schemes     []string       `json:"schemes,omitempty" yaml:"schemes,omitempty"`
	Endpoints   []Endpoint     `json:"endpoints,omitempty" yaml:"endpoints,omitempty"`
	SwaggerJSON map[string]any `json:"swagger_json,omitempty" yaml:"swagger_json,omitempty"`

	// 非结构化说明
	GeneralInfo *GeneralInfo `json:"general_api_info,omitempty" yaml:"general_api_info,omitempty"`
}

// SpecInfo 规范的info段
type SpecInfo struct {
	Title       string         `json:"title" yaml:"title"`
	Description string         `json:"description" yaml:"description"`
	Version     string         `json:"version" yaml:"version"`
	Extensions  map[string]any `json:"extensions,omitempty" yaml:"extensions,omitempty"` // x- 开头的扩展字段
}

// Endpoint 单个路径+方法的操作
type Endpoint struct {
	Method      string      `json:"method" yaml:"method"`
	Path        string      `json:"path" yaml:"path"`
	Description string      `json:"description" yaml:"description"`
	Parameters  []Parameter `json:"parameters" yaml:"parameters"`
	Responses   []Response  `json:"responses" yaml:"responses"`
	Tags        []string    `json:"tags" yaml:"tags"`
	Section     string      `json:"section" yaml:"section"`
}

// Parameter 请求参数
type Parameter struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	Required    bool   `json:"required" yaml:"required"`
	Type        string `json:"type" yaml:"type"`
}

// Response 响应码说明
type Response struct {
	StatusCode  string `json:"status_code" yaml:"status_code"`
	Description string `json:"description" yaml:"description"`
}

// GeneralInfo 无规范时从页面抓取的说明信息
type GeneralInfo struct {
	Description       string      `json:"description,omitempty" yaml:"description,omitempty"`
	ApprovalProcess   *StagePair  `json:"approval_process,omitempty" yaml:"approval_process,omitempty"`
	TrafficLimit      *StagePair  `json:"traffic_limit,omitempty" yaml:"traffic_limit,omitempty"`
	RequestURL        string      `json:"request_url,omitempty" yaml:"request_url,omitempty"`
	ServiceURL        string      `json:"service_url,omitempty" yaml:"service_url,omitempty"`
	RequestParameters []FieldSpec `json:"request_parameters,omitempty" yaml:"request_parameters,omitempty"`
	ResponseElements  []FieldSpec `json:"response_elements,omitempty" yaml:"response_elements,omitempty"`
}

// HasContent 是否包含足以保存的信息
// 只有说明、请求变量、输出结果算作内容;审批流程、流量、地址等附属信息不计
func (g *GeneralInfo) HasContent() bool {
	if g == nil {
		return false
	}
	return g.Description != "" || len(g.RequestParameters) > 0 || len(g.ResponseElements) > 0
}

// StagePair 开发/运营两个阶段的取值
type StagePair struct {
	Development string `json:"development" yaml:"development"`
	Operation   string `json:"operation" yaml:"operation"`
}

// FieldSpec 请求变量/输出结果表中的一行
type FieldSpec struct {
	NameKor     string `json:"name_kor" yaml:"name_kor"`
	NameEng     string `json:"name_eng" yaml:"name_eng"`
	Size        string `json:"size" yaml:"size"`
	Required    string `json:"required" yaml:"required"`
	SampleData  string `json:"sample_data" yaml:"sample_data"`
	Description string `json:"description" yaml:"description"`
}

// RecordKey 记录的存储键
type RecordKey struct {
	Kind         OutcomeKind
	Organization string
	DocumentID   string
	RevisionDate string
}

// Key 计算记录的存储键
func (r *APIRecord) Key() RecordKey {
	return RecordKey{
		Kind:         r.APIType,
		Organization: r.Info[FieldOrganization],
		DocumentID:   r.APIID,
		RevisionDate: r.Info[FieldRevisedDate],
	}
}
