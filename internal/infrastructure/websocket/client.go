package websocket

import (
	"github.com/gorilla/websocket"

	"supportdesk/internal/domain/entity"
	"supportdesk/pkg/logger"
)

// Client is one authenticated WebSocket connection. Its event callbacks run
// to completion on the read pump goroutine, never interleaving with
// themselves; writes drain a FIFO buffer on the write pump.
type Client struct {
	Identity entity.Identity
	Conn     *websocket.Conn
	Send     chan []byte

	// closed is set under the manager mutex when the client is removed;
	// every delivery path checks it before touching Send.
	closed bool
}

// ReadPump reads inbound events and hands them to the gateway until the
// connection drops, then unregisters the client from every room.
func (c *Client) ReadPump(g *Gateway) {
	defer func() {
		g.manager.Unregister <- c
		c.Conn.Close()
	}()

	for {
		_, payload, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("WebSocket: read error for %s: %v", c.Identity.ID, err)
			}
			break
		}

		g.HandleClientMessage(c, payload)
	}
}

// WritePump sends queued payloads to the connection in order.
func (c *Client) WritePump() {
	defer c.Conn.Close()

	for {
		payload, ok := <-c.Send
		if !ok {
			c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}

		if err := c.Conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			logger.Warn("WebSocket: write error for %s: %v", c.Identity.ID, err)
			return
		}
	}
}
