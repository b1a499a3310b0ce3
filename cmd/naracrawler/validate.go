package main

import (
	"fmt"
)

// ValidateRange 验证文档号范围
func ValidateRange(start, end int) error {
	if start < 0 || end < 0 {
		return fmt.Errorf("文档号不能为负数: %d-%d", start, end)
	}
	if start > end {
		return fmt.Errorf("起始文档号(%d)不能大于结束文档号(%d)", start, end)
	}
	return nil
}
