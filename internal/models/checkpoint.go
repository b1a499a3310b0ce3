package models

import (
	"encoding/json"
	"time"
)

// Checkpoint 已成功文档的续爬记录
type Checkpoint struct {
	DocumentID  string      `json:"document_id"`
	URL         string      `json:"url"`
	Kind        OutcomeKind `json:"kind"`
	Files       []string    `json:"files,omitempty"`
	CompletedAt time.Time   `json:"completed_at"`
}

// NewCheckpoint 从成功结果生成续爬记录
func NewCheckpoint(o CrawlOutcome, at time.Time) Checkpoint {
	return Checkpoint{
		DocumentID:  DocumentID(o.URL),
		URL:         o.URL,
		Kind:        o.Kind,
		Files:       o.Files,
		CompletedAt: at,
	}
}

// ToJSON 序列化为JSON
func (c *Checkpoint) ToJSON() ([]byte, error) {
	return json.Marshal(c)
}

// FromJSON 从JSON反序列化,分类名统一为OutcomeKind常量
func (c *Checkpoint) FromJSON(data []byte) error {
	if err := json.Unmarshal(data, c); err != nil {
		return err
	}
	c.Kind = ParseOutcomeKind(string(c.Kind))
	return nil
}
