package usecase

import "supportdesk/internal/domain/entity"

// UnreadCounter maintains the per-role unseen-message counters on a
// conversation. Counters are only ever incremented here and reset by an
// explicit mark-read, so they stay non-negative.
type UnreadCounter struct{}

func NewUnreadCounter() *UnreadCounter {
	return &UnreadCounter{}
}

// OnMessageAppended bumps the counter of every role present on the
// conversation except the author's own. The admin pool counter exists on
// every conversation even before an admin has claimed it, so fresh tickets
// surface in the dashboard badge.
func (u *UnreadCounter) OnMessageAppended(conversation *entity.Conversation, authorRole string) {
	if conversation.UnreadCount == nil {
		conversation.UnreadCount = make(map[string]int)
	}

	roles := map[string]struct{}{entity.RoleAdmin: {}}
	for _, p := range conversation.Participants {
		roles[p.Role] = struct{}{}
	}

	for role := range roles {
		if _, ok := conversation.UnreadCount[role]; !ok {
			conversation.UnreadCount[role] = 0
		}
		if role != authorRole {
			conversation.UnreadCount[role]++
		}
	}
}

// MarkRead resets one role's counter. Returns false when the counter was
// already zero (a no-op, not an error).
func (u *UnreadCounter) MarkRead(conversation *entity.Conversation, role string) bool {
	if conversation.UnreadCount == nil {
		conversation.UnreadCount = make(map[string]int)
	}
	if conversation.UnreadCount[role] == 0 {
		conversation.UnreadCount[role] = 0
		return false
	}
	conversation.UnreadCount[role] = 0
	return true
}
