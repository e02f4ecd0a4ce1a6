package router

import (
	"github.com/labstack/echo/v4"

	"supportdesk/internal/adapter/api/handler"
)

// SetupWebSocketRouter sets up WebSocket routes
func SetupWebSocketRouter(e *echo.Echo, wsHandler *handler.WebSocketHandler) {
	// Auth happens inside the handler: the credential may arrive as a
	// query parameter on the upgrade request.
	e.GET("/ws", wsHandler.HandleWebSocket)
}
