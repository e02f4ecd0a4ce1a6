package repository

import (
	"context"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"supportdesk/internal/domain/entity"
	"supportdesk/internal/domain/repository"
	"supportdesk/pkg/errors"
	"supportdesk/pkg/logger"
)

type firestoreConversationRepository struct {
	client *firestore.Client
}

func NewFirestoreConversationRepository(client *firestore.Client) repository.ConversationRepository {
	return &firestoreConversationRepository{
		client: client,
	}
}

func (r *firestoreConversationRepository) Create(ctx context.Context, conversation *entity.Conversation) error {
	now := time.Now()
	conversation.CreatedAt = now
	conversation.UpdatedAt = now

	_, err := r.client.Collection("conversations").Doc(conversation.Room).Create(ctx, conversation)
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return errors.DuplicateConversation(conversation.Room)
		}
		return errors.Internal("Failed to create conversation", err)
	}

	return nil
}

func (r *firestoreConversationRepository) GetByRoom(ctx context.Context, room string) (*entity.Conversation, error) {
	doc, err := r.client.Collection("conversations").Doc(room).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errors.NotFound("Conversation", err)
		}
		return nil, errors.Internal("Failed to get conversation", err)
	}

	var conversation entity.Conversation
	if err := doc.DataTo(&conversation); err != nil {
		return nil, errors.Internal("Failed to parse conversation data", err)
	}

	return &conversation, nil
}

func (r *firestoreConversationRepository) Save(ctx context.Context, conversation *entity.Conversation) error {
	conversation.UpdatedAt = time.Now()

	_, err := r.client.Collection("conversations").Doc(conversation.Room).Set(ctx, conversation)
	if err != nil {
		return errors.Internal("Failed to save conversation", err)
	}

	return nil
}

func (r *firestoreConversationRepository) List(ctx context.Context, filter repository.ListFilter, limit, offset int, sortBy string) ([]*entity.Conversation, int64, error) {
	query := r.client.Collection("conversations").Query
	if filter.Type != "" {
		query = query.Where("type", "==", string(filter.Type))
	}

	switch sortBy {
	case "lastMessageTime":
		query = query.OrderBy("lastMessageTime", firestore.Desc)
	default:
		query = query.OrderBy("createdAt", firestore.Desc)
	}

	allDocs, err := query.Documents(ctx).GetAll()
	if err != nil {
		logger.Error("Firestore error while listing conversations: %v", err)
		return nil, 0, errors.Internal("Failed to list conversations", err)
	}

	// Role and search filters are applied in memory; the collection is
	// admin-dashboard sized and Firestore cannot express either predicate.
	var matched []*entity.Conversation
	for _, doc := range allDocs {
		var conversation entity.Conversation
		if err := doc.DataTo(&conversation); err != nil {
			logger.Warn("Skipping malformed conversation %s: %v", doc.Ref.ID, err)
			continue
		}
		if filter.Role != "" && !conversation.HasRole(filter.Role) {
			continue
		}
		if filter.SearchTerm != "" {
			term := strings.ToLower(filter.SearchTerm)
			if !strings.Contains(strings.ToLower(conversation.Room), term) &&
				!strings.Contains(strings.ToLower(conversation.LastMessage), term) {
				continue
			}
		}
		matched = append(matched, &conversation)
	}

	total := int64(len(matched))

	start := offset
	if start > len(matched) {
		start = len(matched)
	}
	end := len(matched)
	if limit > 0 && start+limit < end {
		end = start + limit
	}

	return matched[start:end], total, nil
}

func (r *firestoreConversationRepository) FindActive(ctx context.Context, ctype entity.ConversationType, userID string) (*entity.Conversation, error) {
	query := r.client.Collection("conversations").
		Where("type", "==", string(ctype)).
		Where("status", "in", []string{string(entity.StatusOpen), string(entity.StatusInProgress)})

	iter := query.Documents(ctx)
	defer iter.Stop()

	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, errors.Internal("Failed to query active conversations", err)
		}

		var conversation entity.Conversation
		if err := doc.DataTo(&conversation); err != nil {
			continue
		}
		if conversation.HasParticipant(userID) {
			return &conversation, nil
		}
	}

	return nil, errors.NotFound("Active conversation", nil)
}

func (r *firestoreConversationRepository) AppendMessage(ctx context.Context, conversation *entity.Conversation, message *entity.Message) error {
	conversation.UpdatedAt = time.Now()

	convRef := r.client.Collection("conversations").Doc(conversation.Room)
	msgRef := convRef.Collection("messages").Doc(message.ID)

	// Message insert and summary update commit together; no reader observes
	// one without the other.
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if err := tx.Set(convRef, conversation); err != nil {
			return err
		}
		return tx.Set(msgRef, message)
	})
	if err != nil {
		return errors.Internal("Failed to append message", err)
	}

	return nil
}

func (r *firestoreConversationRepository) ListMessages(ctx context.Context, room string, limit, offset int) ([]*entity.Message, int64, error) {
	query := r.client.Collection("conversations").Doc(room).Collection("messages").OrderBy("createdAt", firestore.Desc)

	countDocs, err := query.Documents(ctx).GetAll()
	if err != nil {
		logger.Error("Firestore error while counting messages for room %s: %v", room, err)
		return nil, 0, errors.Internal("Failed to count messages", err)
	}
	total := int64(len(countDocs))

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var messages []*entity.Message
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			logger.Error("Firestore error while iterating messages for room %s: %v", room, err)
			return nil, 0, errors.Internal("Failed to iterate messages", err)
		}

		var message entity.Message
		if err := doc.DataTo(&message); err != nil {
			logger.Error("Error parsing message data for room %s: %v", room, err)
			return nil, 0, errors.Internal("Failed to parse message data", err)
		}

		messages = append(messages, &message)
	}

	return messages, total, nil
}
