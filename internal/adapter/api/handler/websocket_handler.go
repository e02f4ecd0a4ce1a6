package handler

import (
	"net/http"

	gorillaws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"supportdesk/internal/adapter/api/middleware"
	"supportdesk/internal/infrastructure/firebase"
	ws "supportdesk/internal/infrastructure/websocket"
	"supportdesk/pkg/errors"
	"supportdesk/pkg/logger"
)

type WebSocketHandler struct {
	gateway    *ws.Gateway
	authClient *firebase.AuthClient
}

var upgrader = gorillaws.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // You should restrict this in production
	},
}

func NewWebSocketHandler(gateway *ws.Gateway, authClient *firebase.AuthClient) *WebSocketHandler {
	return &WebSocketHandler{
		gateway:    gateway,
		authClient: authClient,
	}
}

// HandleWebSocket authenticates the connect-time credential, upgrades the
// connection and starts its pumps. A bad token refuses the connection
// before any room join.
func (h *WebSocketHandler) HandleWebSocket(c echo.Context) error {
	token := middleware.BearerToken(c)

	identity, err := h.authClient.VerifyToken(c.Request().Context(), token)
	if err != nil {
		return errors.Unauthorized("Authentication required", err)
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return errors.Internal("Failed to upgrade connection", err)
	}

	client := &ws.Client{
		Identity: identity,
		Conn:     conn,
		Send:     make(chan []byte, 256),
	}

	h.gateway.Manager().Register <- client

	go client.ReadPump(h.gateway)
	go client.WritePump()

	logger.Info("WebSocket: connection established for %s (%s)", identity.ID, identity.Role)
	return nil
}
