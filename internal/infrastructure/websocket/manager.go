package websocket

import (
	"context"
	"sync"

	"supportdesk/pkg/logger"
)

// Manager owns every live connection: the per-room subscriber sets, the
// shared admin-notifications channel and the per-user index. It is the
// event broadcaster: fan-out is fire-and-forget to the connections
// subscribed at emit time; late joiners re-fetch state over REST.
type Manager struct {
	clients     map[*Client]bool
	userClients map[string]map[*Client]bool
	roomClients map[string]map[*Client]bool
	adminPool   map[*Client]bool

	Register   chan *Client
	Unregister chan *Client

	mutex sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		clients:     make(map[*Client]bool),
		userClients: make(map[string]map[*Client]bool),
		roomClients: make(map[string]map[*Client]bool),
		adminPool:   make(map[*Client]bool),
		Register:    make(chan *Client),
		Unregister:  make(chan *Client),
	}
}

// Start runs the manager's register/unregister loop in a goroutine.
func (m *Manager) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case client := <-m.Register:
				m.addClient(client)

			case client := <-m.Unregister:
				m.RemoveClient(client)

			case <-ctx.Done():
				return
			}
		}
	}()
}

func (m *Manager) addClient(client *Client) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.clients[client] = true

	if m.userClients[client.Identity.ID] == nil {
		m.userClients[client.Identity.ID] = make(map[*Client]bool)
	}
	m.userClients[client.Identity.ID][client] = true

	// Admin connections watch the shared admin-notifications channel from
	// the moment they connect, before joining any specific room.
	if client.Identity.IsAdmin() {
		m.adminPool[client] = true
	}

	logger.Info("WebSocket: client registered: %s (%s)", client.Identity.ID, client.Identity.Role)
}

// RemoveClient drops a connection from every room and the admin channel.
// No further deliveries are attempted after this returns.
func (m *Manager) RemoveClient(client *Client) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.removeClientLocked(client)
}

func (m *Manager) removeClientLocked(client *Client) {
	if !m.clients[client] {
		return
	}
	delete(m.clients, client)
	delete(m.adminPool, client)

	if set := m.userClients[client.Identity.ID]; set != nil {
		delete(set, client)
		if len(set) == 0 {
			delete(m.userClients, client.Identity.ID)
		}
	}

	for room, set := range m.roomClients {
		delete(set, client)
		if len(set) == 0 {
			delete(m.roomClients, room)
		}
	}

	// The read pump may still be running and trigger replies through
	// sendLocked until its connection errors out; the flag keeps those
	// replies off the closed channel.
	client.closed = true
	close(client.Send)
	logger.Info("WebSocket: client unregistered: %s", client.Identity.ID)
}

// JoinRoom subscribes a connection to a room's event stream.
func (m *Manager) JoinRoom(client *Client, room string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if !m.clients[client] {
		return
	}
	if m.roomClients[room] == nil {
		m.roomClients[room] = make(map[*Client]bool)
	}
	m.roomClients[room][client] = true
}

// SendToRoom fans a payload out to every connection subscribed to the room.
func (m *Manager) SendToRoom(room string, payload []byte) {
	if payload == nil {
		return
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	for client := range m.roomClients[room] {
		m.sendLocked(client, payload)
	}
}

// SendToAdmins fans a payload out on the shared admin-notifications channel.
func (m *Manager) SendToAdmins(payload []byte) {
	if payload == nil {
		return
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	for client := range m.adminPool {
		m.sendLocked(client, payload)
	}
}

// SendToUser delivers a payload to every live connection of one user.
func (m *Manager) SendToUser(userID string, payload []byte) {
	if payload == nil {
		return
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	for client := range m.userClients[userID] {
		m.sendLocked(client, payload)
	}
}

// sendLocked enqueues without blocking; a connection that cannot drain its
// buffer is dropped rather than stalling the room.
func (m *Manager) sendLocked(client *Client, payload []byte) {
	if client.closed {
		return
	}
	select {
	case client.Send <- payload:
	default:
		logger.Warn("WebSocket: client %s send buffer full, dropping connection", client.Identity.ID)
		m.removeClientLocked(client)
	}
}
