package websocket

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"time"

	"supportdesk/internal/domain/entity"
	"supportdesk/pkg/errors"
	"supportdesk/pkg/logger"
)

// Inbound event types.
const (
	EventJoinConversation  = "join-conversation"
	EventSendMessage       = "send-message"
	EventMarkRead          = "mark-read"
	EventCloseConversation = "close-conversation"
	EventPing              = "ping"
)

// Outbound event types.
const (
	EventNewMessage         = "new-message"
	EventConversationClosed = "conversation-closed"
	EventChatError          = "chat-error"
	EventNewSupportTicket   = "new-support-ticket"
	EventPong               = "pong"
)

// InboundEvent is the envelope clients send.
type InboundEvent struct {
	Type string `json:"type"`
	Room string `json:"room"`
	Data struct {
		Room    string `json:"room"`
		Message string `json:"message"`
	} `json:"data"`
}

// ChatService is what the gateway needs from the conversation registry.
type ChatService interface {
	GetConversation(ctx context.Context, room string) (*entity.Conversation, error)
	SendMessage(ctx context.Context, sender entity.Identity, room, text string) (*entity.Message, error)
	MarkRead(ctx context.Context, actor entity.Identity, room string) error
	CloseConversation(ctx context.Context, actor entity.Identity, room string) error
}

// Gateway dispatches inbound connection events to the registry and reports
// failures back to the originating connection only. Every error here is
// recoverable: it becomes a chat-error event, never a dropped connection.
type Gateway struct {
	manager *Manager
	service ChatService
}

func NewGateway(manager *Manager, service ChatService) *Gateway {
	return &Gateway{
		manager: manager,
		service: service,
	}
}

func (g *Gateway) Manager() *Manager {
	return g.manager
}

// HandleClientMessage processes one inbound event to completion.
func (g *Gateway) HandleClientMessage(client *Client, payload []byte) {
	var event InboundEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		logger.Warn("WebSocket: malformed event from %s: %v", client.Identity.ID, err)
		g.sendError(client, "", errors.BadRequest("invalid event format", err))
		return
	}

	room := event.Room
	if room == "" {
		room = event.Data.Room
	}

	ctx := context.Background()

	switch event.Type {
	case EventPing:
		g.send(client, envelope(EventPong, "", map[string]string{"status": "alive"}))

	case EventJoinConversation:
		g.handleJoin(ctx, client, room)

	case EventSendMessage:
		g.handleSend(ctx, client, room, event.Data.Message)

	case EventMarkRead:
		g.handleMarkRead(ctx, client, room)

	case EventCloseConversation:
		g.handleClose(ctx, client, room)

	default:
		logger.Warn("WebSocket: unknown event type %q from %s", event.Type, client.Identity.ID)
		g.sendError(client, room, errors.BadRequest("unknown event type", nil))
	}
}

// handleJoin subscribes the connection to a room it is entitled to. Admins
// may join any room; other roles only rooms they participate in.
func (g *Gateway) handleJoin(ctx context.Context, client *Client, room string) {
	if room == "" {
		g.sendError(client, room, errors.BadRequest("room is required", nil))
		return
	}

	conversation, err := g.service.GetConversation(ctx, room)
	if err != nil {
		g.sendError(client, room, err)
		return
	}

	if !client.Identity.IsAdmin() && !conversation.HasParticipant(client.Identity.ID) {
		g.sendError(client, room, errors.Forbidden("not a participant in this conversation", nil))
		return
	}

	g.manager.JoinRoom(client, room)
	logger.Info("WebSocket: %s joined room %s", client.Identity.ID, room)
}

func (g *Gateway) handleSend(ctx context.Context, client *Client, room, text string) {
	if room == "" {
		g.sendError(client, room, errors.BadRequest("room is required", nil))
		return
	}

	if _, err := g.service.SendMessage(ctx, client.Identity, room, text); err != nil {
		g.sendError(client, room, err)
	}
}

func (g *Gateway) handleMarkRead(ctx context.Context, client *Client, room string) {
	if room == "" {
		g.sendError(client, room, errors.BadRequest("room is required", nil))
		return
	}

	if err := g.service.MarkRead(ctx, client.Identity, room); err != nil {
		g.sendError(client, room, err)
	}
}

func (g *Gateway) handleClose(ctx context.Context, client *Client, room string) {
	if room == "" {
		g.sendError(client, room, errors.BadRequest("room is required", nil))
		return
	}

	if err := g.service.CloseConversation(ctx, client.Identity, room); err != nil {
		g.sendError(client, room, err)
	}
}

// sendError surfaces a failure as a chat-error event on the originating
// connection, carrying the stable reason code alongside the human text.
func (g *Gateway) sendError(client *Client, room string, err error) {
	g.send(client, envelope(EventChatError, room, map[string]string{
		"code":    errors.CodeOf(err),
		"message": messageOf(err),
	}))
}

func (g *Gateway) send(client *Client, payload []byte) {
	if payload == nil {
		return
	}
	g.manager.mutex.Lock()
	g.manager.sendLocked(client, payload)
	g.manager.mutex.Unlock()
}

func messageOf(err error) string {
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		return appErr.Message
	}
	return "An unexpected error occurred"
}

func envelope(eventType, room string, data interface{}) []byte {
	payload, err := json.Marshal(map[string]interface{}{
		"type":      eventType,
		"room":      room,
		"data":      data,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		logger.Error("Failed to marshal %s event: %v", eventType, err)
		return nil
	}
	return payload
}
