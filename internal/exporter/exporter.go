// Package exporter 将API文档记录写出为json/xml/md/csv/yaml文件
package exporter

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/RecoveryAshes/naracrawler/internal/models"
	"github.com/RecoveryAshes/naracrawler/internal/utils"
)

// 按分类存放的顶层目录
const (
	DirLink       = "LINK"
	DirStructured = "일반API"
	DirGeneral    = "일반API_old"
	DirOther      = "기타"
	DirCSV        = "CSV"

	CSVFileName = "all_table_info.csv"
)

// Exporter 按记录分类写出文件
// 目录: {output}/{分类}/{机构}/{文档号}_{修改日}.{ext}; CSV累积到{output}/CSV/all_table_info.csv
type Exporter struct {
	outputDir string
	formats   []string

	csvMu sync.Mutex
}

// New 创建导出器
func New(outputDir string, formats []string) *Exporter {
	return &Exporter{outputDir: outputDir, formats: formats}
}

// Formats 配置的输出格式
func (e *Exporter) Formats() []string {
	return e.formats
}

// Save 按配置的格式写出记录,返回成功写出的文件
// 单个格式失败不影响其他格式,错误合并返回
func (e *Exporter) Save(record *models.APIRecord) ([]string, error) {
	if record == nil {
		return nil, errors.New("记录为空")
	}

	dir := e.RecordDir(record)
	prefix := FilePrefix(record)

	var (
		files []string
		errs  []error
	)
	for _, format := range e.formats {
		var (
			path string
			err  error
		)
		switch format {
		case "json":
			path = filepath.Join(dir, prefix+".json")
			err = writeFile(path, func(f *os.File) error { return writeJSON(f, record) })
		case "xml":
			path = filepath.Join(dir, prefix+".xml")
			err = writeFile(path, func(f *os.File) error { return writeXML(f, record) })
		case "md":
			path = filepath.Join(dir, prefix+".md")
			err = writeFile(path, func(f *os.File) error { return writeMarkdown(f, record) })
		case "yaml":
			path = filepath.Join(dir, prefix+".yaml")
			err = writeFile(path, func(f *os.File) error { return writeYAML(f, record) })
		case "csv":
			path = filepath.Join(e.outputDir, DirCSV, CSVFileName)
			err = e.appendCSV(path, record)
		default:
			err = fmt.Errorf("不支持的输出格式: %s", format)
		}

		if err != nil {
			errs = append(errs, fmt.Errorf("%s 保存失败: %w", format, err))
			continue
		}
		files = append(files, path)
	}

	if len(files) > 0 {
		utils.Debugf("已保存 %s: %v", record.APIID, files)
	}
	return files, errors.Join(errs...)
}

// RecordDir 记录所在目录
func (e *Exporter) RecordDir(record *models.APIRecord) string {
	org := record.Info[models.FieldOrganization]
	if org == "" {
		org = "unknown_org"
	}
	return filepath.Join(e.outputDir, KindDir(record), utils.SanitizeName(org))
}

// KindDir 分类对应的顶层目录,表格中的API类型为LINK时总是归入LINK
func KindDir(record *models.APIRecord) string {
	if record.APIType == models.KindLink || isLinkCategory(record.Info[models.FieldAPIType]) {
		return DirLink
	}
	switch record.APIType {
	case models.KindStructured:
		return DirStructured
	case models.KindGeneral:
		return DirGeneral
	default:
		return DirOther
	}
}

// FilePrefix 文件名前缀: {文档号}_{修改日}
func FilePrefix(record *models.APIRecord) string {
	doc := models.DocumentID(record.CrawledURL)
	if doc == "" {
		doc = "unknown_doc"
	}
	date := record.Info[models.FieldRevisedDate]
	if date == "" {
		date = "unknown_date"
	} else {
		date = utils.SanitizeName(date)
	}
	return doc + "_" + date
}

func writeFile(path string, write func(f *os.File) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("创建目录失败: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("创建文件失败: %w", err)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
