package repository

import (
	"context"

	"supportdesk/internal/domain/entity"
)

// ListFilter narrows a conversation listing.
type ListFilter struct {
	Type       entity.ConversationType // zero value means all types
	Role       string                  // only conversations with a participant of this role
	SearchTerm string                  // substring match on room id or last message
}

type ConversationRepository interface {
	Create(ctx context.Context, conversation *entity.Conversation) error
	GetByRoom(ctx context.Context, room string) (*entity.Conversation, error)
	List(ctx context.Context, filter ListFilter, limit, offset int, sortBy string) ([]*entity.Conversation, int64, error)
	Save(ctx context.Context, conversation *entity.Conversation) error

	// FindActive returns the OPEN or IN_PROGRESS conversation of the given
	// type whose non-admin counterpart is userID, or NotFound.
	FindActive(ctx context.Context, ctype entity.ConversationType, userID string) (*entity.Conversation, error)

	// AppendMessage commits the message and the updated conversation summary
	// (lastMessage, unreadCount, status, handledBy) as one logical write.
	AppendMessage(ctx context.Context, conversation *entity.Conversation, message *entity.Message) error
	ListMessages(ctx context.Context, room string, limit, offset int) ([]*entity.Message, int64, error)
}
