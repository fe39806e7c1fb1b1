package repository

import (
	"evolveai/entity"
	"time"
)

type ChatMessageRepository interface {
	Insert(msg *entity.ChatMessage) error
	// ListUnsummarized 返回 id > afterID 的消息，按 id 升序；limit <= 0 表示不限制
	ListUnsummarized(userID, afterID int64, limit int) ([]*entity.ChatMessage, error)
	CountUnsummarized(userID, afterID int64) (int64, error)
	// DeleteThrough 删除 id <= lastID 的消息（已并入摘要）
	DeleteThrough(userID, lastID int64) error
	// DeleteOlderThan 按保留期清理
	DeleteOlderThan(cutoff time.Time) (int64, error)
	DeleteByUser(userID int64) error
}
