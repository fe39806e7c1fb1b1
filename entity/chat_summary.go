package entity

import "time"

const (
	TableNameChatSummary = "chat_summaries"

	ChatSummaryFieldID            = "id"
	ChatSummaryFieldUserID        = "user_id"
	ChatSummaryFieldSummary       = "summary"
	ChatSummaryFieldLastMessageID = "last_message_id"
	ChatSummaryFieldTimestamp     = "timestamp"
)

// ChatSummary 累积摘要，每个用户最多一行，last_message_id 单调递增
type ChatSummary struct {
	ID            int64     `xorm:"pk autoincr id" json:"id"`
	UserID        int64     `xorm:"user_id" json:"user_id"`
	Summary       string    `xorm:"summary" json:"summary"`
	LastMessageID int64     `xorm:"last_message_id" json:"last_message_id"`
	Timestamp     time.Time `xorm:"timestamp" json:"timestamp"`
}

func (e *ChatSummary) TableName() string {
	return TableNameChatSummary
}
