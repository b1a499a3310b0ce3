package crawlers

import (
	"encoding/json"
	"testing"

	"github.com/RecoveryAshes/naracrawler/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleSpec = `{
  "swagger": "2.0",
  "info": {"title": "<b>버스도착정보</b>", "description": "도착 &amp; 위치", "version": "1.0", "x-provider": "국토교통부"},
  "host": "apis.data.go.kr",
  "basePath": "/1613000/ArvlInfoInqireService",
  "schemes": ["http", "https"],
  "paths": {
    "/getSttnAcctoArvlPrearngeInfoList": {
      "post": {"summary": "등록"},
      "get": {
        "tags": ["도착정보"],
        "summary": "정류소별 도착예정정보",
        "parameters": [
          {"name": "serviceKey", "in": "query", "required": true, "type": "string", "description": "인증키"},
          {"name": "body", "in": "body", "schema": {"type": "object"}}
        ],
        "responses": {"500": {"description": "오류"}, "200": {"description": "성공"}}
      }
    },
    "/a": {"delete": {"description": "삭제"}}
  }
}`

func loadSpec(t *testing.T) map[string]any {
	t.Helper()
	var spec map[string]any
	require.NoError(t, json.Unmarshal([]byte(sampleSpec), &spec))
	return spec
}

func TestNormalizeSpec(t *testing.T) {
	n := NormalizeSpec(loadSpec(t))

	require.NotNil(t, n.Info)
	assert.Equal(t, "버스도착정보", n.Info.Title, "标题中的HTML标签应去掉")
	assert.Equal(t, "도착 & 위치", n.Info.Description)
	assert.Equal(t, "1.0", n.Info.Version)
	assert.Equal(t, "국토교통부", n.Info.Extensions["provider"])

	assert.Equal(t, "http://apis.data.go.kr/1613000/ArvlInfoInqireService", n.BaseURL)
	assert.Equal(t, []string{"http", "https"}, n.Schemes)

	require.Len(t, n.Endpoints, 3)
	assert.Equal(t, "/a", n.Endpoints[0].Path)
	assert.Equal(t, "DELETE", n.Endpoints[0].Method)
	assert.Equal(t, "삭제", n.Endpoints[0].Description)
	assert.Equal(t, "Default", n.Endpoints[0].Section)
	assert.Equal(t, []string{}, n.Endpoints[0].Tags)

	get := n.Endpoints[1]
	assert.Equal(t, "GET", get.Method, "同一路径按get/post顺序")
	assert.Equal(t, "도착정보", get.Section)
	require.Len(t, get.Parameters, 2)
	assert.True(t, get.Parameters[0].Required)
	assert.Equal(t, "object", get.Parameters[1].Type, "缺少type时取schema.type")
	require.Len(t, get.Responses, 2)
	assert.Equal(t, "200", get.Responses[0].StatusCode)
	assert.Equal(t, "POST", n.Endpoints[2].Method)
}

func TestNormalizeSpec_Idempotent(t *testing.T) {
	a := NormalizeSpec(loadSpec(t))
	b := NormalizeSpec(loadSpec(t))
	assert.Equal(t, a, b)
}

func TestNormalizeSpec_Minimal(t *testing.T) {
	n := NormalizeSpec(map[string]any{"swagger": "2.0"})
	assert.Equal(t, []string{"https"}, n.Schemes)
	assert.Empty(t, n.BaseURL)
	assert.Empty(t, n.Endpoints)
	assert.NotNil(t, n.Info)
}

func TestNormalizedSpec_Apply(t *testing.T) {
	spec := loadSpec(t)
	record := &models.APIRecord{APIID: "15000001"}
	NormalizeSpec(spec).Apply(record, spec)

	assert.Equal(t, "apis.data.go.kr", record.SwaggerJSON["host"])
	assert.Len(t, record.Endpoints, 3)
	assert.NotEmpty(t, record.BaseURL)
}
