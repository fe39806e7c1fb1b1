package factory

import (
	"context"
	"evolveai/repository"
	"evolveai/repository/interfaces"
)

type Factory interface {
	NewSession(ctx context.Context) interfaces.Session
	NewUserProfileRepository(session interfaces.Session) (repository.UserProfileRepository, error)
	NewChatMessageRepository(session interfaces.Session) (repository.ChatMessageRepository, error)
	NewChatSummaryRepository(session interfaces.Session) (repository.ChatSummaryRepository, error)
	NewLongTermFactRepository(session interfaces.Session) (repository.LongTermFactRepository, error)
}
