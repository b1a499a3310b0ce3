package exporter

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/RecoveryAshes/naracrawler/internal/models"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/transform"
)

// CSVColumns 汇总表的列,前三列来自记录,其余取自详情页表格
var CSVColumns = []string{
	"문서번호", "크롤링시간", "URL",
	"분류체계", "제공기관", "관리부서명", "관리부서 전화번호", "API 유형",
	"데이터포맷", "활용신청", "키워드", "등록일", "수정일", "비용부과유무", "이용허락범위",
}

// CSVRow 记录对应的一行
func CSVRow(record *models.APIRecord) []string {
	row := []string{record.APIID, record.CrawledTime, record.CrawledURL}
	for _, col := range CSVColumns[3:] {
		row = append(row, record.Info[col])
	}
	return row
}

// appendCSV 以CP949编码追加一行,文件不存在时先写表头
// Excel默认以CP949打开韩文CSV;无法编码的字符替换为?
func (e *Exporter) appendCSV(path string, record *models.APIRecord) error {
	if len(record.Info) == 0 {
		return errors.New("没有可保存的表格信息")
	}

	e.csvMu.Lock()
	defer e.csvMu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("创建目录失败: %w", err)
	}
	_, statErr := os.Stat(path)
	isNew := os.IsNotExist(statErr)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("打开CSV文件失败: %w", err)
	}
	defer f.Close()

	encoder := encoding.ReplaceUnsupported(korean.EUCKR.NewEncoder())
	tw := transform.NewWriter(f, encoder)
	w := csv.NewWriter(tw)
	w.UseCRLF = true

	if isNew {
		if err := w.Write(CSVColumns); err != nil {
			return fmt.Errorf("写入CSV表头失败: %w", err)
		}
	}
	if err := w.Write(CSVRow(record)); err != nil {
		return fmt.Errorf("写入CSV失败: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("写入CSV失败: %w", err)
	}
	return tw.Close()
}

func isLinkCategory(apiType string) bool {
	return strings.Contains(strings.ToUpper(apiType), "LINK")
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
