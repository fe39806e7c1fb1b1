package model

import "time"

// SaveFactStatus 事实保存结果状态
type SaveFactStatus string

const (
	SaveFactSaved   SaveFactStatus = "saved"
	SaveFactSkipped SaveFactStatus = "skipped" // 完全相同的事实已存在，幂等跳过
)

// SaveFactResult 事实保存结果
type SaveFactResult struct {
	Status SaveFactStatus `json:"status"`
	Fact   string         `json:"fact"`
	Reason string         `json:"reason,omitempty"`
}

// FactItem 检索命中的单条事实
type FactItem struct {
	Fact      string    `json:"fact"`
	Category  string    `json:"category"`
	Timestamp time.Time `json:"timestamp"`
}

// FactSearchResult 检索结果。NoResults 与错误是两种不同结果：
// 查不到是正常业务结果，查询非法走 Invalid
type FactSearchResult struct {
	Items     []FactItem `json:"items"`
	NoResults bool       `json:"no_results"`
	Invalid   bool       `json:"invalid"`
}
