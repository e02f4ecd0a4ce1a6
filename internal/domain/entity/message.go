package entity

import "time"

// Message is immutable after creation. IDs are generated in commit order for
// a room, so sorting by ID matches sorting by CreatedAt with a stable
// tie-break.
type Message struct {
	ID         string    `json:"_id" firestore:"id"`
	Room       string    `json:"room" firestore:"room"`
	SenderID   string    `json:"senderId" firestore:"senderId"`
	SenderRole string    `json:"senderRole" firestore:"senderRole"`
	Message    string    `json:"message" firestore:"message"`
	CreatedAt  time.Time `json:"createdAt" firestore:"createdAt"`
}
