package handler

import (
	"github.com/labstack/echo/v4"

	"supportdesk/internal/adapter/api/middleware"
	"supportdesk/internal/domain/entity"
	"supportdesk/internal/domain/repository"
	"supportdesk/internal/usecase"
	"supportdesk/pkg/errors"
	"supportdesk/pkg/response"
	"supportdesk/pkg/utils"
)

type ConversationHandler struct {
	conversationUseCase *usecase.ConversationUseCase
}

func NewConversationHandler(conversationUseCase *usecase.ConversationUseCase) *ConversationHandler {
	return &ConversationHandler{
		conversationUseCase: conversationUseCase,
	}
}

type participantRequest struct {
	UserID string `json:"user_id" validate:"required"`
	Role   string `json:"role" validate:"required,oneof=customer driver vendor fleet_manager admin"`
}

type createConversationRequest struct {
	Type           string               `json:"type" validate:"required,oneof=SUPPORT DRIVER_CHAT VENDOR_CHAT FLEET_MANAGER_CHAT"`
	Participants   []participantRequest `json:"participants" validate:"required,min=1,dive"`
	InitialMessage string               `json:"initial_message"`
}

type sendMessageRequest struct {
	Message string `json:"message" validate:"required"`
}

// CreateConversation starts a conversation from the dashboard "select
// driver/vendor/fleet-manager" flow, or registers an inbound support ticket.
func (h *ConversationHandler) CreateConversation(c echo.Context) error {
	var req createConversationRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	identity, _ := middleware.IdentityFrom(c)

	participants := make([]entity.Participant, 0, len(req.Participants))
	for _, p := range req.Participants {
		participants = append(participants, entity.Participant{UserID: p.UserID, Role: p.Role})
	}

	conversation, err := h.conversationUseCase.CreateConversation(c.Request().Context(), identity, usecase.CreateConversationInput{
		Type:           entity.ConversationType(req.Type),
		Participants:   participants,
		InitialMessage: req.InitialMessage,
	})
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, conversation)
}

// ListConversations serves the dashboard list with role/type/search filters.
func (h *ConversationHandler) ListConversations(c echo.Context) error {
	params := utils.GetPaginationParams(c)

	filter := repository.ListFilter{
		Type:       entity.ConversationType(c.QueryParam("type")),
		Role:       c.QueryParam("role"),
		SearchTerm: c.QueryParam("search"),
	}
	if filter.Type != "" && !filter.Type.Valid() {
		return response.Error(c, errors.BadRequest("unknown conversation type", nil))
	}

	conversations, total, err := h.conversationUseCase.ListConversations(
		c.Request().Context(), filter, params.PageSize, params.Offset, c.QueryParam("sortBy"))
	if err != nil {
		return response.Error(c, err)
	}

	return response.Paginated(c, conversations, total, params.Page, params.PageSize)
}

func (h *ConversationHandler) GetConversation(c echo.Context) error {
	conversation, err := h.conversationUseCase.GetConversation(c.Request().Context(), c.Param("room"))
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, conversation)
}

func (h *ConversationHandler) GetMessages(c echo.Context) error {
	identity, _ := middleware.IdentityFrom(c)
	params := utils.GetPaginationParams(c)

	messages, total, err := h.conversationUseCase.GetMessages(
		c.Request().Context(), identity, c.Param("room"), params.PageSize, params.Offset)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Paginated(c, messages, total, params.Page, params.PageSize)
}

func (h *ConversationHandler) SendMessage(c echo.Context) error {
	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	identity, _ := middleware.IdentityFrom(c)

	message, err := h.conversationUseCase.SendMessage(c.Request().Context(), identity, c.Param("room"), req.Message)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, message)
}

func (h *ConversationHandler) MarkRead(c echo.Context) error {
	identity, _ := middleware.IdentityFrom(c)

	if err := h.conversationUseCase.MarkRead(c.Request().Context(), identity, c.Param("room")); err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]string{"room": c.Param("room")})
}

func (h *ConversationHandler) CloseConversation(c echo.Context) error {
	identity, _ := middleware.IdentityFrom(c)
	room := c.Param("room")

	err := h.conversationUseCase.CloseConversation(c.Request().Context(), identity, room)
	if err != nil {
		// Closing twice is an idempotent no-op, reported as such.
		if errors.Is(err, "ALREADY_CLOSED") {
			return response.Success(c, map[string]interface{}{
				"room":           room,
				"status":         entity.StatusClosed,
				"already_closed": true,
			})
		}
		return response.Error(c, err)
	}

	return response.Success(c, map[string]interface{}{
		"room":   room,
		"status": entity.StatusClosed,
	})
}
