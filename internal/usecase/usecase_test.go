package usecase

import (
	"context"
	"encoding/json"
	"sync"

	"supportdesk/internal/domain/entity"
	"supportdesk/internal/domain/repository"
	"supportdesk/pkg/errors"
)

// fakeConversationRepo is an in-memory stand-in for the Firestore
// repository. Reads hand out copies the same way Firestore decoding does,
// so a failed write never leaks mutations into stored state.
type fakeConversationRepo struct {
	mu            sync.Mutex
	conversations map[string]*entity.Conversation
	messages      map[string][]*entity.Message
	saveCalls     int
	appendCalls   int
	failAppends   int // next N AppendMessage calls fail with an internal error
	failSaves     int
}

func newFakeConversationRepo() *fakeConversationRepo {
	return &fakeConversationRepo{
		conversations: make(map[string]*entity.Conversation),
		messages:      make(map[string][]*entity.Message),
	}
}

func cloneConversation(c *entity.Conversation) *entity.Conversation {
	clone := *c
	clone.Participants = append([]entity.Participant(nil), c.Participants...)
	clone.UnreadCount = make(map[string]int, len(c.UnreadCount))
	for k, v := range c.UnreadCount {
		clone.UnreadCount[k] = v
	}
	return &clone
}

func (r *fakeConversationRepo) Create(ctx context.Context, conversation *entity.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.conversations[conversation.Room]; exists {
		return errors.DuplicateConversation(conversation.Room)
	}
	r.conversations[conversation.Room] = cloneConversation(conversation)
	return nil
}

func (r *fakeConversationRepo) GetByRoom(ctx context.Context, room string) (*entity.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conversation, ok := r.conversations[room]
	if !ok {
		return nil, errors.NotFound("Conversation", nil)
	}
	return cloneConversation(conversation), nil
}

func (r *fakeConversationRepo) Save(ctx context.Context, conversation *entity.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.saveCalls++
	if r.failSaves > 0 {
		r.failSaves--
		return errors.Internal("injected save failure", nil)
	}
	r.conversations[conversation.Room] = cloneConversation(conversation)
	return nil
}

func (r *fakeConversationRepo) List(ctx context.Context, filter repository.ListFilter, limit, offset int, sortBy string) ([]*entity.Conversation, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matched []*entity.Conversation
	for _, c := range r.conversations {
		if filter.Type != "" && c.Type != filter.Type {
			continue
		}
		if filter.Role != "" && !c.HasRole(filter.Role) {
			continue
		}
		matched = append(matched, cloneConversation(c))
	}
	return matched, int64(len(matched)), nil
}

func (r *fakeConversationRepo) FindActive(ctx context.Context, ctype entity.ConversationType, userID string) (*entity.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range r.conversations {
		if c.Type == ctype && c.Active() && c.HasParticipant(userID) {
			return cloneConversation(c), nil
		}
	}
	return nil, errors.NotFound("Active conversation", nil)
}

func (r *fakeConversationRepo) AppendMessage(ctx context.Context, conversation *entity.Conversation, message *entity.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.appendCalls++
	if r.failAppends > 0 {
		r.failAppends--
		return errors.Internal("injected append failure", nil)
	}

	r.conversations[conversation.Room] = cloneConversation(conversation)

	// Replays with an already-stored ID are idempotent, like a Firestore Set.
	for _, existing := range r.messages[conversation.Room] {
		if existing.ID == message.ID {
			return nil
		}
	}
	msg := *message
	r.messages[conversation.Room] = append(r.messages[conversation.Room], &msg)
	return nil
}

func (r *fakeConversationRepo) ListMessages(ctx context.Context, room string, limit, offset int) ([]*entity.Message, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	msgs := r.messages[room]
	out := make([]*entity.Message, len(msgs))
	for i, m := range msgs {
		c := *m
		out[i] = &c
	}
	return out, int64(len(out)), nil
}

// recordingBroadcaster captures fan-out calls for assertions.
type recordingBroadcaster struct {
	mu         sync.Mutex
	roomEvents map[string][]recordedEvent
	admin      []recordedEvent
	user       map[string][]recordedEvent
}

type recordedEvent struct {
	Type string          `json:"type"`
	Room string          `json:"room"`
	Data json.RawMessage `json:"data"`
}

func newRecordingBroadcaster() *recordingBroadcaster {
	return &recordingBroadcaster{
		roomEvents: make(map[string][]recordedEvent),
		user:       make(map[string][]recordedEvent),
	}
}

func decodeEvent(payload []byte) recordedEvent {
	var event recordedEvent
	json.Unmarshal(payload, &event)
	return event
}

func (b *recordingBroadcaster) SendToRoom(room string, payload []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.roomEvents[room] = append(b.roomEvents[room], decodeEvent(payload))
}

func (b *recordingBroadcaster) SendToAdmins(payload []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.admin = append(b.admin, decodeEvent(payload))
}

func (b *recordingBroadcaster) SendToUser(userID string, payload []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.user[userID] = append(b.user[userID], decodeEvent(payload))
}

func (b *recordingBroadcaster) adminEvents() []recordedEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]recordedEvent(nil), b.admin...)
}

func (b *recordingBroadcaster) events(room string) []recordedEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]recordedEvent(nil), b.roomEvents[room]...)
}

// newTestUseCase wires a usecase against the fakes.
func newTestUseCase() (*ConversationUseCase, *fakeConversationRepo, *recordingBroadcaster) {
	repo := newFakeConversationRepo()
	broadcaster := newRecordingBroadcaster()
	uc := NewConversationUseCase(repo, NewLockCoordinator(), broadcaster)
	return uc, repo, broadcaster
}

// seedConversation installs a conversation directly in the fake store.
func seedConversation(repo *fakeConversationRepo, conversation *entity.Conversation) {
	if conversation.UnreadCount == nil {
		conversation.UnreadCount = map[string]int{entity.RoleAdmin: 0}
	}
	repo.mu.Lock()
	repo.conversations[conversation.Room] = cloneConversation(conversation)
	repo.mu.Unlock()
}
