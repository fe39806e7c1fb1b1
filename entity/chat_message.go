package entity

import "time"

const (
	TableNameChatMessage = "chat_messages"

	ChatMessageFieldID        = "id"
	ChatMessageFieldUserID    = "user_id"
	ChatMessageFieldRole      = "role"
	ChatMessageFieldContent   = "content"
	ChatMessageFieldTimestamp = "timestamp"
)

// ChatMessage 聊天历史，只追加不修改
type ChatMessage struct {
	ID        int64     `xorm:"pk autoincr id" json:"id"`
	UserID    int64     `xorm:"user_id" json:"user_id"`
	Role      string    `xorm:"role" json:"role"` // user 或 model
	Content   string    `xorm:"content" json:"content"`
	Timestamp time.Time `xorm:"timestamp" json:"timestamp"`
}

func (e *ChatMessage) TableName() string {
	return TableNameChatMessage
}
