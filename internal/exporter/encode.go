package exporter

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/RecoveryAshes/naracrawler/internal/models"
	"gopkg.in/yaml.v3"
)

// XMLRoot XML文档的根元素
const XMLRoot = "api_documentation"

func writeJSON(w io.Writer, record *models.APIRecord) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(record); err != nil {
		return fmt.Errorf("序列化JSON失败: %w", err)
	}
	return nil
}

func writeYAML(w io.Writer, record *models.APIRecord) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(record); err != nil {
		return fmt.Errorf("序列化YAML失败: %w", err)
	}
	return enc.Close()
}

// writeXML 先编码为JSON,再按token顺序转换为XML元素
// 结构体字段保持声明顺序,map的键按字典序
func writeXML(w io.Writer, record *models.APIRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("序列化记录失败: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")

	if err := encodeValue(dec, enc, XMLRoot); err != nil {
		return fmt.Errorf("转换XML失败: %w", err)
	}
	if err := enc.Flush(); err != nil {
		return err
	}
	_, err = io.WriteString(w, "\n")
	return err
}

func encodeValue(dec *json.Decoder, enc *xml.Encoder, name string) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}

	start := xml.StartElement{Name: xml.Name{Local: name}}
	if err := enc.EncodeToken(start); err != nil {
		return err
	}

	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			err = encodeObject(dec, enc)
		case '[':
			err = encodeArray(dec, enc)
		default:
			err = fmt.Errorf("意外的分隔符 %v", t)
		}
	case nil:
	default:
		err = enc.EncodeToken(xml.CharData(scalarText(t)))
	}
	if err != nil {
		return err
	}
	return enc.EncodeToken(start.End())
}

func encodeObject(dec *json.Decoder, enc *xml.Encoder) error {
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("对象键不是字符串: %v", tok)
		}
		if err := encodeValue(dec, enc, XMLTagName(key)); err != nil {
			return err
		}
	}
	_, err := dec.Token()
	return err
}

func encodeArray(dec *json.Decoder, enc *xml.Encoder) error {
	for i := 0; dec.More(); i++ {
		if err := encodeValue(dec, enc, "item_"+strconv.Itoa(i)); err != nil {
			return err
		}
	}
	_, err := dec.Token()
	return err
}

func scalarText(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

var invalidTagChars = regexp.MustCompile(`[^\p{L}\p{N}_-]`)

// XMLTagName 将任意键转换为合法的XML元素名
// 非法字符替换为下划线;以数字或连字符开头时加item_前缀;为空时使用unnamed_item
func XMLTagName(key string) string {
	name := invalidTagChars.ReplaceAllString(key, "_")
	if name == "" {
		return "unnamed_item"
	}
	if c := name[0]; (c >= '0' && c <= '9') || c == '-' {
		name = "item_" + name
	}
	if strings.HasPrefix(strings.ToLower(name), "xml") {
		name = "_" + name
	}
	return name
}
