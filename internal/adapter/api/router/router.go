package router

import (
	"github.com/labstack/echo/v4"

	"supportdesk/internal/adapter/api/handler"
	"supportdesk/internal/adapter/api/middleware"
)

func Setup(
	e *echo.Echo,
	conversationHandler *handler.ConversationHandler,
	wsHandler *handler.WebSocketHandler,
	healthHandler *handler.HealthHandler,
	devTokenHandler *handler.DevTokenHandler,
	authMiddleware *middleware.AuthMiddleware,
	adminMiddleware *middleware.AdminMiddleware,
	environment string,
) {
	SetupConversationRouter(e, conversationHandler, authMiddleware, adminMiddleware)
	SetupWebSocketRouter(e, wsHandler)
	SetupHealthRouter(e, healthHandler)
	SetupDevRouter(e, devTokenHandler, environment)
}
