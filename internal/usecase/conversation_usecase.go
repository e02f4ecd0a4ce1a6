package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"supportdesk/internal/domain/entity"
	"supportdesk/internal/domain/repository"
	"supportdesk/internal/infrastructure/ratelimit"
	"supportdesk/pkg/errors"
	"supportdesk/pkg/logger"
)

// Broadcaster is the fan-out side of the websocket manager as the registry
// needs it. Events for one room are published while that room's lock is
// still held, so subscribers observe them in commit order.
type Broadcaster interface {
	SendToRoom(room string, payload []byte)
	SendToAdmins(payload []byte)
	SendToUser(userID string, payload []byte)
}

type ConversationUseCase struct {
	convRepo    repository.ConversationRepository
	locks       *LockCoordinator
	unread      *UnreadCounter
	broadcaster Broadcaster
	rateLimiter *ratelimit.RateLimiter
}

func NewConversationUseCase(
	convRepo repository.ConversationRepository,
	locks *LockCoordinator,
	broadcaster Broadcaster,
) *ConversationUseCase {
	return &ConversationUseCase{
		convRepo:    convRepo,
		locks:       locks,
		unread:      NewUnreadCounter(),
		broadcaster: broadcaster,
		rateLimiter: ratelimit.NewRateLimiter(),
	}
}

type CreateConversationInput struct {
	Type           entity.ConversationType
	Participants   []entity.Participant
	InitialMessage string
}

func (uc *ConversationUseCase) CreateConversation(ctx context.Context, creator entity.Identity, input CreateConversationInput) (*entity.Conversation, error) {
	allowed, waitTime := uc.rateLimiter.Allow(creator.ID, "create_conversation")
	if !allowed {
		logger.Warn("CreateConversation rate limited: user %s must wait %v", creator.ID, waitTime)
		return nil, errors.TooManyRequests("Rate limit exceeded. Please wait before creating another conversation", waitTime)
	}

	if !input.Type.Valid() {
		return nil, errors.BadRequest("unknown conversation type", nil)
	}
	if len(input.Participants) == 0 {
		return nil, errors.BadRequest("a conversation needs at least one participant", nil)
	}

	counterpart, ok := counterpartOf(input.Participants)
	if !ok {
		return nil, errors.BadRequest("a conversation needs a non-admin participant", nil)
	}

	// One active conversation per type+counterpart. Creation for the same
	// counterpart is serialized on a synthetic room key so two racing first
	// tickets cannot both pass the duplicate check.
	release := uc.locks.Acquire("create/" + string(input.Type) + "/" + counterpart.UserID)
	defer release()

	if existing, err := uc.convRepo.FindActive(ctx, input.Type, counterpart.UserID); err == nil && existing != nil {
		logger.Info("CreateConversation: active %s conversation %s already exists for %s", input.Type, existing.Room, counterpart.UserID)
		return nil, errors.DuplicateConversation(existing.Room)
	} else if err != nil && !errors.Is(err, "NOT_FOUND") {
		return nil, err
	}

	conversation := &entity.Conversation{
		Room:         uuid.New().String(),
		Type:         input.Type,
		Status:       entity.StatusOpen,
		Participants: input.Participants,
		UnreadCount:  map[string]int{entity.RoleAdmin: 0},
	}

	var seed *entity.Message
	if input.InitialMessage != "" {
		seed = uc.newMessage(conversation.Room, creator, input.InitialMessage)
		conversation.LastMessage = seed.Message
		conversation.LastMessageTime = seed.CreatedAt
		uc.unread.OnMessageAppended(conversation, counterRole(creator))
	}

	if err := uc.convRepo.Create(ctx, conversation); err != nil {
		logger.Error("CreateConversation: failed to create conversation: %v", err)
		return nil, err
	}
	if seed != nil {
		if err := uc.retryOnce(func() error {
			return uc.convRepo.AppendMessage(ctx, conversation, seed)
		}); err != nil {
			logger.Error("CreateConversation: failed to append seed message for %s: %v", conversation.Room, err)
			return nil, err
		}
	}

	// A brand-new SUPPORT ticket is announced once on the shared
	// admin-notifications channel so idle admins learn about it before
	// joining the room. Duplicate tickets never get here: the duplicate
	// check above refuses them.
	if conversation.Type == entity.TypeSupport {
		uc.broadcaster.SendToAdmins(marshalEvent("new-support-ticket", conversation.Room, map[string]interface{}{
			"room":         conversation.Room,
			"conversation": conversation,
			"message":      seed,
		}))
	}

	return conversation, nil
}

func (uc *ConversationUseCase) GetConversation(ctx context.Context, room string) (*entity.Conversation, error) {
	return uc.convRepo.GetByRoom(ctx, room)
}

func (uc *ConversationUseCase) ListConversations(ctx context.Context, filter repository.ListFilter, limit, offset int, sortBy string) ([]*entity.Conversation, int64, error) {
	return uc.convRepo.List(ctx, filter, limit, offset, sortBy)
}

func (uc *ConversationUseCase) GetMessages(ctx context.Context, actor entity.Identity, room string, limit, offset int) ([]*entity.Message, int64, error) {
	conversation, err := uc.convRepo.GetByRoom(ctx, room)
	if err != nil {
		return nil, 0, err
	}
	if !actor.IsAdmin() && !conversation.HasParticipant(actor.ID) {
		return nil, 0, errors.Forbidden("not a participant in this conversation", nil)
	}
	return uc.convRepo.ListMessages(ctx, room, limit, offset)
}

// SendMessage runs the full send pipeline: rate limit, per-room critical
// section, handler claim, append, unread bump, room fan-out.
func (uc *ConversationUseCase) SendMessage(ctx context.Context, sender entity.Identity, room, text string) (*entity.Message, error) {
	if text == "" {
		return nil, errors.BadRequest("message text is required", nil)
	}

	allowed, waitTime := uc.rateLimiter.Allow(sender.ID, "send_message")
	if !allowed {
		logger.Warn("SendMessage rate limited: user %s must wait %v", sender.ID, waitTime)
		return nil, errors.TooManyRequests("Rate limit exceeded. Please wait before sending another message", waitTime)
	}

	release := uc.locks.Acquire(room)
	defer release()

	conversation, err := uc.convRepo.GetByRoom(ctx, room)
	if err != nil {
		return nil, err
	}

	claimed, err := uc.locks.Claim(conversation, sender)
	if err != nil {
		return nil, err
	}
	if claimed {
		logger.Info("Conversation %s claimed by admin %s", room, sender.ID)
	}

	message := uc.newMessage(room, sender, text)
	conversation.LastMessage = message.Message
	conversation.LastMessageTime = message.CreatedAt
	uc.unread.OnMessageAppended(conversation, counterRole(sender))

	if err := uc.retryOnce(func() error {
		return uc.convRepo.AppendMessage(ctx, conversation, message)
	}); err != nil {
		logger.Error("SendMessage: failed to append message to %s: %v", room, err)
		return nil, err
	}

	uc.broadcaster.SendToRoom(room, marshalEvent("new-message", room, map[string]interface{}{
		"message":      message,
		"conversation": conversation,
	}))

	return message, nil
}

// MarkRead resets the actor's role counter. Resetting an already-zero
// counter is a silent no-op.
func (uc *ConversationUseCase) MarkRead(ctx context.Context, actor entity.Identity, room string) error {
	release := uc.locks.Acquire(room)
	defer release()

	conversation, err := uc.convRepo.GetByRoom(ctx, room)
	if err != nil {
		return err
	}
	if !actor.IsAdmin() && !conversation.HasParticipant(actor.ID) {
		return errors.Forbidden("not a participant in this conversation", nil)
	}

	if !uc.unread.MarkRead(conversation, counterRole(actor)) {
		return nil
	}

	if err := uc.retryOnce(func() error {
		return uc.convRepo.Save(ctx, conversation)
	}); err != nil {
		logger.Error("MarkRead: failed to save conversation %s: %v", room, err)
		return err
	}

	return nil
}

// CloseConversation transitions the room to CLOSED and tells every
// subscriber. Only the current handler or the override role may close.
func (uc *ConversationUseCase) CloseConversation(ctx context.Context, actor entity.Identity, room string) error {
	release := uc.locks.Acquire(room)
	defer release()

	conversation, err := uc.convRepo.GetByRoom(ctx, room)
	if err != nil {
		return err
	}

	if err := uc.locks.Close(conversation, actor); err != nil {
		return err
	}

	if err := uc.retryOnce(func() error {
		return uc.convRepo.Save(ctx, conversation)
	}); err != nil {
		logger.Error("CloseConversation: failed to save conversation %s: %v", room, err)
		return err
	}

	logger.Info("Conversation %s closed by %s", room, actor.ID)

	uc.broadcaster.SendToRoom(room, marshalEvent("conversation-closed", room, map[string]interface{}{
		"room": room,
	}))

	return nil
}

// newMessage builds a message with a creation-time-prefixed ID. Appends for
// a room run under its lock, so IDs sort in commit order.
func (uc *ConversationUseCase) newMessage(room string, sender entity.Identity, text string) *entity.Message {
	now := time.Now()
	return &entity.Message{
		ID:         fmt.Sprintf("%019d-%s", now.UnixNano(), uuid.New().String()[:8]),
		Room:       room,
		SenderID:   sender.ID,
		SenderRole: counterRole(sender),
		Message:    text,
		CreatedAt:  now,
	}
}

// retryOnce retries a storage write a single time on internal failure.
// Writes are idempotent: document IDs are preassigned, so a replay cannot
// duplicate anything.
func (uc *ConversationUseCase) retryOnce(op func() error) error {
	err := op()
	if err == nil || !errors.Is(err, "INTERNAL_ERROR") {
		return err
	}
	logger.Warn("Storage write failed, retrying once: %v", err)
	return op()
}

// counterRole folds the override role into the admin pool for counters and
// sender tagging; a superadmin acts as an admin everywhere in the protocol.
func counterRole(id entity.Identity) string {
	if id.IsAdmin() {
		return entity.RoleAdmin
	}
	return id.Role
}

// counterpartOf picks the non-admin participant a uniqueness policy keys on.
func counterpartOf(participants []entity.Participant) (entity.Participant, bool) {
	for _, p := range participants {
		if p.Role != entity.RoleAdmin && p.Role != entity.RoleSuperAdmin {
			return p, true
		}
	}
	return entity.Participant{}, false
}

func marshalEvent(eventType, room string, data interface{}) []byte {
	payload, err := json.Marshal(map[string]interface{}{
		"type":      eventType,
		"room":      room,
		"data":      data,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		logger.Error("Failed to marshal %s event for room %s: %v", eventType, room, err)
		return nil
	}
	return payload
}
