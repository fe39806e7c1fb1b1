package entity

import "time"

const (
	TableNameLongTermFact = "long_term_facts"

	LongTermFactFieldID        = "id"
	LongTermFactFieldUserID    = "user_id"
	LongTermFactFieldFact      = "fact"
	LongTermFactFieldCategory  = "category"
	LongTermFactFieldIntensity = "intensity"
	LongTermFactFieldTimestamp = "timestamp"
	LongTermFactFieldFactTsv   = "fact_tsv" // tsvector 列由数据库触发器维护
)

// LongTermFact 长期记忆事实，同一用户下 fact 文本唯一
type LongTermFact struct {
	ID        int64     `xorm:"pk autoincr id" json:"id"`
	UserID    int64     `xorm:"user_id" json:"user_id"`
	Fact      string    `xorm:"fact" json:"fact"`
	Category  string    `xorm:"category" json:"category"`
	Intensity *float32  `xorm:"intensity" json:"intensity"`
	Timestamp time.Time `xorm:"timestamp" json:"timestamp"`
}

func (e *LongTermFact) TableName() string {
	return TableNameLongTermFact
}
