package usecase

import (
	"sync"

	"supportdesk/internal/domain/entity"
	"supportdesk/pkg/errors"
)

// LockCoordinator serializes conversation mutations per room and enforces
// the at-most-one-active-handler invariant. Unrelated rooms never contend.
type LockCoordinator struct {
	mu    sync.Mutex
	rooms map[string]*roomLock
}

type roomLock struct {
	mu   sync.Mutex
	refs int
}

func NewLockCoordinator() *LockCoordinator {
	return &LockCoordinator{
		rooms: make(map[string]*roomLock),
	}
}

// Acquire takes the critical section for a room and returns its release
// function. Entries are reference counted so the table does not grow with
// every room ever touched.
func (lc *LockCoordinator) Acquire(room string) func() {
	lc.mu.Lock()
	lock, ok := lc.rooms[room]
	if !ok {
		lock = &roomLock{}
		lc.rooms[room] = lock
	}
	lock.refs++
	lc.mu.Unlock()

	lock.mu.Lock()

	return func() {
		lock.mu.Unlock()

		lc.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(lc.rooms, room)
		}
		lc.mu.Unlock()
	}
}

// Claim applies the handling-lock state machine for a sender about to write
// into the conversation. Must be called with the room lock held. Returns
// true when the call transitioned the conversation to IN_PROGRESS.
//
// An admin writing into an OPEN conversation claims it: status becomes
// IN_PROGRESS and the admin is recorded as handler (joining the participant
// set if absent — the one membership mutation allowed after creation). A
// different admin writing while IN_PROGRESS is refused; the handler and the
// non-admin counterpart exchange messages freely.
func (lc *LockCoordinator) Claim(conversation *entity.Conversation, sender entity.Identity) (bool, error) {
	if conversation.Status == entity.StatusClosed {
		return false, errors.ConversationClosed(conversation.Room)
	}

	if !sender.IsAdmin() {
		if !conversation.HasParticipant(sender.ID) {
			return false, errors.Forbidden("not a participant in this conversation", nil)
		}
		return false, nil
	}

	switch conversation.Status {
	case entity.StatusOpen:
		conversation.Status = entity.StatusInProgress
		conversation.HandledBy = sender.ID
		if !conversation.HasParticipant(sender.ID) {
			conversation.Participants = append(conversation.Participants, entity.Participant{
				UserID: sender.ID,
				Role:   entity.RoleAdmin,
			})
		}
		return true, nil

	case entity.StatusInProgress:
		if conversation.HandledBy != sender.ID {
			return false, errors.ConversationLocked(conversation.HandledBy)
		}
		// Handler re-affirms the lock; no transition.
		return false, nil
	}

	return false, errors.Internal("conversation in unknown state", nil)
}

// Close transitions IN_PROGRESS (or never-claimed OPEN, for the override
// role) to CLOSED and clears the handler. Must be called with the room lock
// held. Closing a closed conversation yields the AlreadyClosed signal, not a
// destructive error.
func (lc *LockCoordinator) Close(conversation *entity.Conversation, actor entity.Identity) error {
	if conversation.Status == entity.StatusClosed {
		return errors.AlreadyClosed(conversation.Room)
	}

	if conversation.HandledBy != actor.ID && !actor.CanOverride() {
		return errors.Forbidden("only the current handler may close this conversation", nil)
	}

	conversation.Status = entity.StatusClosed
	conversation.HandledBy = ""
	return nil
}
