package repository

import (
	"evolveai/entity"
)

type ChatSummaryRepository interface {
	Get(userID int64) (*entity.ChatSummary, error)
	// Upsert 保证每个用户只有一行摘要
	Upsert(userID int64, summary string, lastMessageID int64) error
	DeleteByUser(userID int64) error
}
