package models

// ExtractionKind 提取结果的类别
type ExtractionKind int

const (
	ExtractionEmpty ExtractionKind = iota
	ExtractionStructured
	ExtractionTableOnly
)

// ExtractionResult 提取链或表格抓取的结果
type ExtractionResult struct {
	Kind     ExtractionKind
	Spec     map[string]any    // Structured时的原始规范
	Table    map[string]string // TableOnly时的表格
	Strategy string            // 命中的策略名
}

// Structured 构造结构化结果
func Structured(strategy string, spec map[string]any) ExtractionResult {
	return ExtractionResult{Kind: ExtractionStructured, Spec: spec, Strategy: strategy}
}

// TableOnly 构造仅表格结果
func TableOnly(table map[string]string) ExtractionResult {
	return ExtractionResult{Kind: ExtractionTableOnly, Table: table}
}

// Empty 空结果
func Empty() ExtractionResult {
	return ExtractionResult{Kind: ExtractionEmpty}
}

// IsStructured 是否提取到规范
func (r ExtractionResult) IsStructured() bool {
	return r.Kind == ExtractionStructured && len(r.Spec) > 0
}
