package config

import (
	"net/http"
	"strings"
)

// HTTPHeaders 配置文件中的headers段转换为http.Header
// viper会把键转成小写,这里按规范形式还原
func (c *Config) HTTPHeaders() http.Header {
	h := make(http.Header, len(c.Headers))
	for name, value := range c.Headers {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		h.Set(name, strings.TrimSpace(value))
	}
	return h
}
