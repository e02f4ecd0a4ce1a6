package router

import (
	"github.com/labstack/echo/v4"

	"supportdesk/internal/adapter/api/handler"
	"supportdesk/internal/adapter/api/middleware"
)

// SetupConversationRouter sets up all conversation routes (excluding WebSocket)
func SetupConversationRouter(e *echo.Echo, conversationHandler *handler.ConversationHandler, authMiddleware *middleware.AuthMiddleware, adminMiddleware *middleware.AdminMiddleware) {
	group := e.Group("/v1/conversations")
	group.Use(authMiddleware.Authenticate)

	group.POST("", conversationHandler.CreateConversation)
	group.GET("/:room", conversationHandler.GetConversation)
	group.GET("/:room/messages", conversationHandler.GetMessages)
	group.POST("/:room/messages", conversationHandler.SendMessage)
	group.PUT("/:room/read", conversationHandler.MarkRead)

	// Listing and closing are dashboard operations.
	group.GET("", conversationHandler.ListConversations, adminMiddleware.AdminOnly)
	group.PUT("/:room/close", conversationHandler.CloseConversation, adminMiddleware.AdminOnly)
}
