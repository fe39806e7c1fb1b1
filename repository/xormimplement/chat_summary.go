package xormimplement

import (
	"evolveai/entity"
	"evolveai/repository"
	"fmt"
	"time"

	"xorm.io/builder"
)

type ChatSummaryRepository struct {
	session *Session
}

func NewChatSummaryRepository(session *Session) repository.ChatSummaryRepository {
	return &ChatSummaryRepository{session: session}
}

func (r *ChatSummaryRepository) Get(userID int64) (*entity.ChatSummary, error) {
	if userID <= 0 {
		return nil, fmt.Errorf("chat_summaries user_id must be greater than 0")
	}

	summary := &entity.ChatSummary{}
	has, err := r.session.Table(entity.TableNameChatSummary).
		Where(builder.Eq{entity.ChatSummaryFieldUserID: userID}).
		Get(summary)
	if err != nil {
		return nil, fmt.Errorf("failed to get chat_summaries: %w", err)
	}
	if !has {
		return nil, nil
	}

	return summary, nil
}

// Upsert 保证每个用户只有一行摘要，last_message_id 只允许前进
func (r *ChatSummaryRepository) Upsert(userID int64, summary string, lastMessageID int64) error {
	if userID <= 0 {
		return fmt.Errorf("chat_summaries user_id must be greater than 0")
	}
	if summary == "" {
		return fmt.Errorf("chat_summaries summary cannot be empty")
	}
	if lastMessageID <= 0 {
		return fmt.Errorf("chat_summaries last_message_id must be greater than 0")
	}

	sql := fmt.Sprintf(`INSERT INTO %s (user_id, summary, last_message_id, timestamp)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
		summary = EXCLUDED.summary,
		last_message_id = EXCLUDED.last_message_id,
		timestamp = EXCLUDED.timestamp
		WHERE %s.last_message_id < EXCLUDED.last_message_id`,
		entity.TableNameChatSummary, entity.TableNameChatSummary)

	_, err := r.session.Exec(sql, userID, summary, lastMessageID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert chat_summaries: %w", err)
	}

	return nil
}

func (r *ChatSummaryRepository) DeleteByUser(userID int64) error {
	if userID <= 0 {
		return fmt.Errorf("chat_summaries user_id must be greater than 0")
	}

	_, err := r.session.Table(entity.TableNameChatSummary).
		Where(builder.Eq{entity.ChatSummaryFieldUserID: userID}).
		Delete(&entity.ChatSummary{})
	if err != nil {
		return fmt.Errorf("failed to delete chat_summaries: %w", err)
	}

	return nil
}
