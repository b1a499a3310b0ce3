package crawlers

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/RecoveryAshes/naracrawler/internal/models"
)

// ParseDocument 将页面源码解析为goquery文档
func ParseDocument(source string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(source))
	if err != nil {
		return nil, fmt.Errorf("解析页面源码失败: %w", err)
	}
	return doc, nil
}

// text 取可见文本并压缩空白
func text(s *goquery.Selection) string {
	return strings.Join(strings.Fields(s.Text()), " ")
}

// ScrapeTable 抓取详情页的元数据表格(th/td成对)
func ScrapeTable(doc *goquery.Document) map[string]string {
	info := make(map[string]string)
	doc.Find("table.dataset-table tr").Each(func(_ int, row *goquery.Selection) {
		th := row.Find("th").First()
		td := row.Find("td").First()
		if th.Length() == 0 || td.Length() == 0 {
			return
		}

		key := text(th)
		value := text(td)
		if strings.Contains(key, "전화번호") {
			if tel := td.Find("#telNoDiv"); tel.Length() > 0 {
				value = text(tel)
			}
		}
		if value == "" {
			value = text(td.Find("a").First())
		}
		if key != "" && value != "" {
			info[key] = value
		}
	})
	return info
}

// IsLinkType 类型字段是否为LINK
func IsLinkType(apiType string) bool {
	return strings.Contains(strings.ToUpper(apiType), "LINK")
}

var secondaryIDHints = []string{"publicdatadetailpk", "uddi", "detailpk"}

// FindSecondaryID 查找隐藏的UDDI标识
// 先找#publicDataDetailPk,不存在时再扫描id中带相关关键字的隐藏输入框
func FindSecondaryID(doc *goquery.Document) string {
	if input := doc.Find("#publicDataDetailPk").First(); input.Length() > 0 {
		return strings.TrimSpace(input.AttrOr("value", ""))
	}

	var found string
	doc.Find(`input[type="hidden"]`).EachWithBreak(func(_ int, input *goquery.Selection) bool {
		id := strings.ToLower(input.AttrOr("id", ""))
		if id == "" {
			return true
		}
		for _, hint := range secondaryIDHints {
			if strings.Contains(id, hint) {
				if v := strings.TrimSpace(input.AttrOr("value", "")); v != "" {
					found = v
					return false
				}
			}
		}
		return true
	})
	return found
}

var (
	approvalDevPattern = regexp.MustCompile(`개발단계\s*:\s*([^/]+)`)
	approvalOpPattern  = regexp.MustCompile(`운영단계\s*:\s*(.+)`)
	trafficDevPattern  = regexp.MustCompile(`개발계정\s*:\s*([^/]+)`)
	trafficOpPattern   = regexp.MustCompile(`운영계정\s*:\s*(.+)`)
	requestURLPattern  = regexp.MustCompile(`요청주소\s*(.+)`)
	serviceURLPattern  = regexp.MustCompile(`서비스URL\s*(.+)`)
)

// ScrapeGeneralInfo 没有规范时抓取页面上的说明、请求变量和输出结果
func ScrapeGeneralInfo(doc *goquery.Document) *models.GeneralInfo {
	info := &models.GeneralInfo{}

	if detail := doc.Find("#open-api-detail-result").First(); detail.Length() > 0 {
		info.Description = text(detail.Find("h4.tit").First())
		detail.Find(".box-gray ul.dot-list li").Each(func(_ int, li *goquery.Selection) {
			applyDetailItem(info, text(li))
		})
	}

	info.RequestParameters = scrapeFieldTable(doc, "요청변수", "Request Parameter")
	info.ResponseElements = scrapeFieldTable(doc, "출력결과", "Response Element")
	return info
}

func applyDetailItem(info *models.GeneralInfo, item string) {
	switch {
	case strings.Contains(item, "활용승인 절차"):
		info.ApprovalProcess = stagePair(item, approvalDevPattern, approvalOpPattern)
	case strings.Contains(item, "신청가능 트래픽"):
		info.TrafficLimit = stagePair(item, trafficDevPattern, trafficOpPattern)
	case strings.Contains(item, "요청주소"):
		if m := requestURLPattern.FindStringSubmatch(item); m != nil {
			info.RequestURL = strings.TrimSpace(m[1])
		}
	case strings.Contains(item, "서비스URL"):
		if m := serviceURLPattern.FindStringSubmatch(item); m != nil {
			info.ServiceURL = strings.TrimSpace(m[1])
		}
	}
}

// stagePair 两个阶段都没有匹配时返回nil
func stagePair(item string, dev, op *regexp.Regexp) *models.StagePair {
	pair := &models.StagePair{}
	if m := dev.FindStringSubmatch(item); m != nil {
		pair.Development = strings.TrimSpace(m[1])
	}
	if m := op.FindStringSubmatch(item); m != nil {
		pair.Operation = strings.TrimSpace(m[1])
	}
	if pair.Development == "" && pair.Operation == "" {
		return nil
	}
	return pair
}

// scrapeFieldTable 找到标题同时包含两个关键字的h4.tit,读取其后第一个div.col-table中的表格
func scrapeFieldTable(doc *goquery.Document, korean, english string) []models.FieldSpec {
	var header *goquery.Selection
	doc.Find("h4.tit").EachWithBreak(func(_ int, h *goquery.Selection) bool {
		t := h.Text()
		if strings.Contains(t, korean) && strings.Contains(t, english) {
			header = h
			return false
		}
		return true
	})
	if header == nil {
		return nil
	}

	table := header.NextAllFiltered("div.col-table").First().Find("table").First()
	var fields []models.FieldSpec
	table.Find("tbody tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 6 {
			return
		}
		cell := func(i int) string { return text(cells.Eq(i)) }
		f := models.FieldSpec{
			NameKor:     cell(0),
			NameEng:     cell(1),
			Size:        cell(2),
			Required:    cell(3),
			SampleData:  cell(4),
			Description: cell(5),
		}
		if f.NameEng != "" || f.NameKor != "" {
			fields = append(fields, f)
		}
	})
	return fields
}
