package usecase

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supportdesk/internal/domain/entity"
	"supportdesk/pkg/errors"
)

var (
	adminA     = entity.Identity{ID: "admin-a", Role: entity.RoleAdmin}
	adminB     = entity.Identity{ID: "admin-b", Role: entity.RoleAdmin}
	superadmin = entity.Identity{ID: "root-1", Role: entity.RoleSuperAdmin}
	customer   = entity.Identity{ID: "cust-1", Role: entity.RoleCustomer}
)

func openSupportConversation(room string) *entity.Conversation {
	return &entity.Conversation{
		Room:   room,
		Type:   entity.TypeSupport,
		Status: entity.StatusOpen,
		Participants: []entity.Participant{
			{UserID: customer.ID, Role: entity.RoleCustomer},
		},
		UnreadCount: map[string]int{entity.RoleAdmin: 0},
	}
}

func TestSendMessageClaimsOpenConversation(t *testing.T) {
	uc, repo, _ := newTestUseCase()
	seedConversation(repo, openSupportConversation("room-1"))

	msg, err := uc.SendMessage(context.Background(), adminA, "room-1", "hello, how can I help?")
	require.NoError(t, err)
	assert.Equal(t, adminA.ID, msg.SenderID)
	assert.Equal(t, entity.RoleAdmin, msg.SenderRole)

	stored, err := repo.GetByRoom(context.Background(), "room-1")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusInProgress, stored.Status)
	assert.Equal(t, adminA.ID, stored.HandledBy)
	assert.True(t, stored.HasParticipant(adminA.ID))
}

func TestSecondAdminRejectedWhileLocked(t *testing.T) {
	uc, repo, _ := newTestUseCase()
	seedConversation(repo, openSupportConversation("room-1"))

	_, err := uc.SendMessage(context.Background(), adminA, "room-1", "I'll take this one")
	require.NoError(t, err)

	_, err = uc.SendMessage(context.Background(), adminB, "room-1", "me too")
	require.Error(t, err)
	assert.True(t, errors.Is(err, "CONVERSATION_LOCKED"))

	stored, err := repo.GetByRoom(context.Background(), "room-1")
	require.NoError(t, err)
	assert.Equal(t, adminA.ID, stored.HandledBy, "a rejected claim must not change the handler")
	assert.False(t, stored.HasParticipant(adminB.ID))
}

func TestConcurrentClaimsExactlyOneWinner(t *testing.T) {
	uc, repo, _ := newTestUseCase()
	seedConversation(repo, openSupportConversation("room-1"))

	admins := []entity.Identity{adminA, adminB}
	results := make([]error, len(admins))

	var wg sync.WaitGroup
	for i, admin := range admins {
		wg.Add(1)
		go func(i int, admin entity.Identity) {
			defer wg.Done()
			_, results[i] = uc.SendMessage(context.Background(), admin, "room-1", "claiming")
		}(i, admin)
	}
	wg.Wait()

	var wins, locked int
	for _, err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, "CONVERSATION_LOCKED"):
			locked++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, locked)

	stored, err := repo.GetByRoom(context.Background(), "room-1")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusInProgress, stored.Status)
	assert.Contains(t, []string{adminA.ID, adminB.ID}, stored.HandledBy)
}

func TestHandlerAndCustomerKeepChatting(t *testing.T) {
	uc, repo, _ := newTestUseCase()
	seedConversation(repo, openSupportConversation("room-1"))

	_, err := uc.SendMessage(context.Background(), adminA, "room-1", "hi")
	require.NoError(t, err)
	_, err = uc.SendMessage(context.Background(), customer, "room-1", "my order is late")
	require.NoError(t, err)
	_, err = uc.SendMessage(context.Background(), adminA, "room-1", "checking now")
	require.NoError(t, err)

	msgs, total, err := repo.ListMessages(context.Background(), "room-1", 50, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, msgs, 3)
}

func TestNonParticipantCannotSend(t *testing.T) {
	uc, repo, _ := newTestUseCase()
	seedConversation(repo, openSupportConversation("room-1"))

	stranger := entity.Identity{ID: "driver-9", Role: entity.RoleDriver}
	_, err := uc.SendMessage(context.Background(), stranger, "room-1", "hello?")
	require.Error(t, err)
	assert.True(t, errors.Is(err, "FORBIDDEN"))
}

func TestCloseConversation(t *testing.T) {
	uc, repo, broadcaster := newTestUseCase()
	seedConversation(repo, openSupportConversation("room-1"))

	_, err := uc.SendMessage(context.Background(), adminA, "room-1", "resolved")
	require.NoError(t, err)

	require.NoError(t, uc.CloseConversation(context.Background(), adminA, "room-1"))

	stored, err := repo.GetByRoom(context.Background(), "room-1")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusClosed, stored.Status)
	assert.Empty(t, stored.HandledBy, "closing must release the handling lock")

	events := broadcaster.events("room-1")
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, "conversation-closed", last.Type)
	assert.Equal(t, "room-1", last.Room)
}

func TestCloseRejectedForNonHandler(t *testing.T) {
	uc, repo, _ := newTestUseCase()
	seedConversation(repo, openSupportConversation("room-1"))

	_, err := uc.SendMessage(context.Background(), adminA, "room-1", "on it")
	require.NoError(t, err)

	err = uc.CloseConversation(context.Background(), adminB, "room-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, "FORBIDDEN"))

	stored, _ := repo.GetByRoom(context.Background(), "room-1")
	assert.Equal(t, entity.StatusInProgress, stored.Status)
}

func TestSuperadminMayCloseAnyConversation(t *testing.T) {
	uc, repo, _ := newTestUseCase()
	seedConversation(repo, openSupportConversation("room-1"))

	_, err := uc.SendMessage(context.Background(), adminA, "room-1", "working")
	require.NoError(t, err)

	require.NoError(t, uc.CloseConversation(context.Background(), superadmin, "room-1"))

	stored, _ := repo.GetByRoom(context.Background(), "room-1")
	assert.Equal(t, entity.StatusClosed, stored.Status)
}

func TestCloseTwiceYieldsAlreadyClosed(t *testing.T) {
	uc, repo, broadcaster := newTestUseCase()
	seedConversation(repo, openSupportConversation("room-1"))

	_, err := uc.SendMessage(context.Background(), adminA, "room-1", "done")
	require.NoError(t, err)
	require.NoError(t, uc.CloseConversation(context.Background(), adminA, "room-1"))

	closedEvents := 0
	for _, e := range broadcaster.events("room-1") {
		if e.Type == "conversation-closed" {
			closedEvents++
		}
	}

	err = uc.CloseConversation(context.Background(), adminA, "room-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, "ALREADY_CLOSED"))

	// The second close must not rebroadcast.
	after := 0
	for _, e := range broadcaster.events("room-1") {
		if e.Type == "conversation-closed" {
			after++
		}
	}
	assert.Equal(t, closedEvents, after)
}

func TestClosedConversationRefusesWrites(t *testing.T) {
	uc, repo, _ := newTestUseCase()
	conversation := openSupportConversation("room-1")
	conversation.Status = entity.StatusClosed
	seedConversation(repo, conversation)

	_, err := uc.SendMessage(context.Background(), customer, "room-1", "anyone there?")
	require.Error(t, err)
	assert.True(t, errors.Is(err, "CONVERSATION_CLOSED"))

	_, err = uc.SendMessage(context.Background(), adminA, "room-1", "reopening?")
	require.Error(t, err)
	assert.True(t, errors.Is(err, "CONVERSATION_CLOSED"))

	stored, _ := repo.GetByRoom(context.Background(), "room-1")
	assert.Equal(t, entity.StatusClosed, stored.Status)
	assert.Empty(t, stored.LastMessage)
}

func TestUnreadCountsTrackCustomerMessages(t *testing.T) {
	uc, repo, _ := newTestUseCase()
	seedConversation(repo, openSupportConversation("room-1"))

	for _, text := range []string{"hello", "is anyone there", "please help"} {
		_, err := uc.SendMessage(context.Background(), customer, "room-1", text)
		require.NoError(t, err)
	}

	stored, err := repo.GetByRoom(context.Background(), "room-1")
	require.NoError(t, err)
	assert.Equal(t, 3, stored.UnreadCount[entity.RoleAdmin])
	assert.Equal(t, 0, stored.UnreadCount[entity.RoleCustomer], "authors never count their own messages")

	require.NoError(t, uc.MarkRead(context.Background(), adminA, "room-1"))
	stored, _ = repo.GetByRoom(context.Background(), "room-1")
	assert.Equal(t, 0, stored.UnreadCount[entity.RoleAdmin])
}

func TestMarkReadOnZeroCounterSkipsWrite(t *testing.T) {
	uc, repo, _ := newTestUseCase()
	seedConversation(repo, openSupportConversation("room-1"))

	before := repo.saveCalls
	require.NoError(t, uc.MarkRead(context.Background(), adminA, "room-1"))
	assert.Equal(t, before, repo.saveCalls, "resetting an already-zero counter must not touch storage")
}

func TestAdminRepliesBumpCustomerCounter(t *testing.T) {
	uc, repo, _ := newTestUseCase()
	seedConversation(repo, openSupportConversation("room-1"))

	_, err := uc.SendMessage(context.Background(), adminA, "room-1", "hello!")
	require.NoError(t, err)

	stored, _ := repo.GetByRoom(context.Background(), "room-1")
	assert.Equal(t, 1, stored.UnreadCount[entity.RoleCustomer])
	assert.Equal(t, 0, stored.UnreadCount[entity.RoleAdmin])
}

func TestCreateSupportConversationAnnouncesTicket(t *testing.T) {
	uc, _, broadcaster := newTestUseCase()

	conversation, err := uc.CreateConversation(context.Background(), customer, CreateConversationInput{
		Type:           entity.TypeSupport,
		Participants:   []entity.Participant{{UserID: customer.ID, Role: entity.RoleCustomer}},
		InitialMessage: "my order never arrived",
	})
	require.NoError(t, err)
	assert.Equal(t, entity.StatusOpen, conversation.Status)
	assert.Empty(t, conversation.HandledBy)
	assert.Equal(t, 1, conversation.UnreadCount[entity.RoleAdmin])

	admin := broadcaster.adminEvents()
	require.Len(t, admin, 1)
	assert.Equal(t, "new-support-ticket", admin[0].Type)
	assert.Equal(t, conversation.Room, admin[0].Room)

	var data struct {
		Room    string          `json:"room"`
		Message json.RawMessage `json:"message"`
	}
	require.NoError(t, json.Unmarshal(admin[0].Data, &data))
	assert.Equal(t, conversation.Room, data.Room)
	assert.NotEmpty(t, data.Message)
}

func TestDuplicateTicketSuppressed(t *testing.T) {
	uc, _, broadcaster := newTestUseCase()

	input := CreateConversationInput{
		Type:           entity.TypeSupport,
		Participants:   []entity.Participant{{UserID: customer.ID, Role: entity.RoleCustomer}},
		InitialMessage: "first ticket",
	}

	first, err := uc.CreateConversation(context.Background(), customer, input)
	require.NoError(t, err)

	input.InitialMessage = "second ticket"
	_, err = uc.CreateConversation(context.Background(), customer, input)
	require.Error(t, err)
	assert.True(t, errors.Is(err, "DUPLICATE_CONVERSATION"))
	assert.Contains(t, err.(*errors.AppError).Err.Error(), first.Room, "the rejection names the existing room")

	assert.Len(t, broadcaster.adminEvents(), 1, "only the first ticket is announced")
}

func TestNewTicketAllowedAfterClose(t *testing.T) {
	uc, _, broadcaster := newTestUseCase()

	input := CreateConversationInput{
		Type:           entity.TypeSupport,
		Participants:   []entity.Participant{{UserID: customer.ID, Role: entity.RoleCustomer}},
		InitialMessage: "issue one",
	}
	first, err := uc.CreateConversation(context.Background(), customer, input)
	require.NoError(t, err)

	_, err = uc.SendMessage(context.Background(), adminA, first.Room, "resolving")
	require.NoError(t, err)
	require.NoError(t, uc.CloseConversation(context.Background(), adminA, first.Room))

	input.InitialMessage = "issue two"
	second, err := uc.CreateConversation(context.Background(), customer, input)
	require.NoError(t, err)
	assert.NotEqual(t, first.Room, second.Room)
	assert.Len(t, broadcaster.adminEvents(), 2)
}

func TestDriverChatDoesNotAnnounceTicket(t *testing.T) {
	uc, _, broadcaster := newTestUseCase()

	driver := entity.Identity{ID: "driver-3", Role: entity.RoleDriver}
	_, err := uc.CreateConversation(context.Background(), driver, CreateConversationInput{
		Type:           entity.TypeDriverChat,
		Participants:   []entity.Participant{{UserID: driver.ID, Role: entity.RoleDriver}},
		InitialMessage: "route question",
	})
	require.NoError(t, err)
	assert.Empty(t, broadcaster.adminEvents())
}

func TestCreateConversationValidation(t *testing.T) {
	uc, _, _ := newTestUseCase()

	_, err := uc.CreateConversation(context.Background(), customer, CreateConversationInput{
		Type:         "GROUP_CHAT",
		Participants: []entity.Participant{{UserID: customer.ID, Role: entity.RoleCustomer}},
	})
	assert.True(t, errors.Is(err, "BAD_REQUEST"))

	_, err = uc.CreateConversation(context.Background(), customer, CreateConversationInput{
		Type: entity.TypeSupport,
	})
	assert.True(t, errors.Is(err, "BAD_REQUEST"))

	_, err = uc.CreateConversation(context.Background(), adminA, CreateConversationInput{
		Type:         entity.TypeSupport,
		Participants: []entity.Participant{{UserID: adminA.ID, Role: entity.RoleAdmin}},
	})
	assert.True(t, errors.Is(err, "BAD_REQUEST"))
}

func TestRoomEventsArriveInCommitOrder(t *testing.T) {
	uc, repo, broadcaster := newTestUseCase()
	seedConversation(repo, openSupportConversation("room-1"))

	texts := []string{"one", "two", "three", "four", "five"}
	for _, text := range texts {
		_, err := uc.SendMessage(context.Background(), customer, "room-1", text)
		require.NoError(t, err)
	}

	events := broadcaster.events("room-1")
	require.Len(t, events, len(texts))

	var lastID string
	for i, event := range events {
		assert.Equal(t, "new-message", event.Type)
		var data struct {
			Message struct {
				ID   string `json:"_id"`
				Text string `json:"message"`
			} `json:"message"`
		}
		require.NoError(t, json.Unmarshal(event.Data, &data))
		assert.Equal(t, texts[i], data.Message.Text)
		assert.Greater(t, data.Message.ID, lastID, "message IDs sort in commit order")
		lastID = data.Message.ID
	}
}

func TestSendRetriesTransientStorageFailure(t *testing.T) {
	uc, repo, _ := newTestUseCase()
	seedConversation(repo, openSupportConversation("room-1"))

	repo.mu.Lock()
	repo.failAppends = 1
	repo.mu.Unlock()

	_, err := uc.SendMessage(context.Background(), customer, "room-1", "still there?")
	require.NoError(t, err)
	assert.Equal(t, 2, repo.appendCalls)
}

func TestSendGivesUpAfterRetry(t *testing.T) {
	uc, repo, _ := newTestUseCase()
	seedConversation(repo, openSupportConversation("room-1"))

	repo.mu.Lock()
	repo.failAppends = 2
	repo.mu.Unlock()

	_, err := uc.SendMessage(context.Background(), customer, "room-1", "hello")
	require.Error(t, err)
	assert.True(t, errors.Is(err, "INTERNAL_ERROR"))
}

func TestSendToUnknownRoom(t *testing.T) {
	uc, _, _ := newTestUseCase()

	_, err := uc.SendMessage(context.Background(), customer, "no-such-room", "hello")
	require.Error(t, err)
	assert.True(t, errors.Is(err, "NOT_FOUND"))
}
