package xormimplement

import (
	"evolveai/entity"
	"evolveai/repository"
	"fmt"
	"time"

	"xorm.io/builder"
)

type ChatMessageRepository struct {
	session *Session
}

func NewChatMessageRepository(session *Session) repository.ChatMessageRepository {
	return &ChatMessageRepository{session: session}
}

func (r *ChatMessageRepository) Insert(msg *entity.ChatMessage) error {
	if msg == nil {
		return fmt.Errorf("chat_messages item cannot be nil")
	}
	if msg.UserID <= 0 {
		return fmt.Errorf("chat_messages user_id must be greater than 0")
	}
	if msg.Content == "" {
		return fmt.Errorf("chat_messages content cannot be empty")
	}

	_, err := r.session.Table(entity.TableNameChatMessage).Insert(msg)
	if err != nil {
		return fmt.Errorf("failed to insert chat_messages: %w", err)
	}

	return nil
}

// ListUnsummarized 返回 id > afterID 的消息，按 id 升序
func (r *ChatMessageRepository) ListUnsummarized(userID, afterID int64, limit int) ([]*entity.ChatMessage, error) {
	if userID <= 0 {
		return nil, fmt.Errorf("chat_messages user_id must be greater than 0")
	}

	session := r.session.Table(entity.TableNameChatMessage).
		Where(builder.Eq{entity.ChatMessageFieldUserID: userID}).
		And(builder.Gt{entity.ChatMessageFieldID: afterID}).
		OrderBy(entity.ChatMessageFieldID + " asc")
	if limit > 0 {
		session.Limit(limit, 0)
	}

	var messages []*entity.ChatMessage
	if err := session.Find(&messages); err != nil {
		return nil, fmt.Errorf("failed to list chat_messages: %w", err)
	}

	return messages, nil
}

func (r *ChatMessageRepository) CountUnsummarized(userID, afterID int64) (int64, error) {
	if userID <= 0 {
		return 0, fmt.Errorf("chat_messages user_id must be greater than 0")
	}

	count, err := r.session.Table(entity.TableNameChatMessage).
		Where(builder.Eq{entity.ChatMessageFieldUserID: userID}).
		And(builder.Gt{entity.ChatMessageFieldID: afterID}).
		Count(&entity.ChatMessage{})
	if err != nil {
		return 0, fmt.Errorf("failed to count chat_messages: %w", err)
	}

	return count, nil
}

// DeleteThrough 删除 id <= lastID 的消息，这些消息已并入摘要
func (r *ChatMessageRepository) DeleteThrough(userID, lastID int64) error {
	if userID <= 0 {
		return fmt.Errorf("chat_messages user_id must be greater than 0")
	}
	if lastID <= 0 {
		return fmt.Errorf("chat_messages last id must be greater than 0")
	}

	_, err := r.session.Table(entity.TableNameChatMessage).
		Where(builder.Eq{entity.ChatMessageFieldUserID: userID}).
		And(builder.Lte{entity.ChatMessageFieldID: lastID}).
		Delete(&entity.ChatMessage{})
	if err != nil {
		return fmt.Errorf("failed to delete summarized chat_messages: %w", err)
	}

	return nil
}

func (r *ChatMessageRepository) DeleteOlderThan(cutoff time.Time) (int64, error) {
	affected, err := r.session.Table(entity.TableNameChatMessage).
		Where(builder.Lt{entity.ChatMessageFieldTimestamp: cutoff}).
		Delete(&entity.ChatMessage{})
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale chat_messages: %w", err)
	}

	return affected, nil
}

func (r *ChatMessageRepository) DeleteByUser(userID int64) error {
	if userID <= 0 {
		return fmt.Errorf("chat_messages user_id must be greater than 0")
	}

	_, err := r.session.Table(entity.TableNameChatMessage).
		Where(builder.Eq{entity.ChatMessageFieldUserID: userID}).
		Delete(&entity.ChatMessage{})
	if err != nil {
		return fmt.Errorf("failed to delete chat_messages: %w", err)
	}

	return nil
}
