package entity

import "time"

type ConversationType string

const (
	TypeSupport          ConversationType = "SUPPORT"
	TypeDriverChat       ConversationType = "DRIVER_CHAT"
	TypeVendorChat       ConversationType = "VENDOR_CHAT"
	TypeFleetManagerChat ConversationType = "FLEET_MANAGER_CHAT"
)

func (t ConversationType) Valid() bool {
	switch t {
	case TypeSupport, TypeDriverChat, TypeVendorChat, TypeFleetManagerChat:
		return true
	}
	return false
}

type ConversationStatus string

const (
	StatusOpen       ConversationStatus = "OPEN"
	StatusInProgress ConversationStatus = "IN_PROGRESS"
	StatusClosed     ConversationStatus = "CLOSED"
)

// Participant is an external user reference on a conversation. The service
// stores role + id only; profile data lives in the upstream user store.
type Participant struct {
	UserID string `json:"user_id" firestore:"userId"`
	Role   string `json:"role" firestore:"role"`
}

// Conversation is the registry record for one support room. The registry is
// the sole writer of Status, HandledBy and UnreadCount; clients treat every
// pushed copy as authoritative and replace, never merge.
type Conversation struct {
	Room            string             `json:"room" firestore:"room"`
	Type            ConversationType   `json:"type" firestore:"type"`
	Status          ConversationStatus `json:"status" firestore:"status"`
	Participants    []Participant      `json:"participants" firestore:"participants"`
	HandledBy       string             `json:"handled_by,omitempty" firestore:"handledBy,omitempty"`
	LastMessage     string             `json:"last_message,omitempty" firestore:"lastMessage,omitempty"`
	LastMessageTime time.Time          `json:"last_message_time" firestore:"lastMessageTime"`
	UnreadCount     map[string]int     `json:"unread_count" firestore:"unreadCount"` // participant role -> unseen messages
	CreatedAt       time.Time          `json:"created_at" firestore:"createdAt"`
	UpdatedAt       time.Time          `json:"updated_at" firestore:"updatedAt"`
}

func (c *Conversation) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

func (c *Conversation) HasRole(role string) bool {
	for _, p := range c.Participants {
		if p.Role == role {
			return true
		}
	}
	return false
}

// ParticipantByRole returns the first participant carrying the given role.
func (c *Conversation) ParticipantByRole(role string) (Participant, bool) {
	for _, p := range c.Participants {
		if p.Role == role {
			return p, true
		}
	}
	return Participant{}, false
}

// Active reports whether the conversation still accepts messages.
func (c *Conversation) Active() bool {
	return c.Status == StatusOpen || c.Status == StatusInProgress
}
