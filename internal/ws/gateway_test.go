package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"chat-gateway/internal/chat"
	"chat-gateway/internal/mocks"
	"chat-gateway/internal/models"
)

// personalRoomConn attaches a live websocket to the given user's personal
// room and returns the client side for reading broadcasts.
func personalRoomConn(t *testing.T, hub *Hub, chatUserID string) *websocket.Conn {
	t.Helper()
	up := websocket.Upgrader{}
	serverConns := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		serverConns <- conn
	}))
	t.Cleanup(srv.Close)

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	serverConn := <-serverConns
	hub.Register(serverConn, ConnInfo{ChatUserID: chatUserID})
	hub.Join(chatUserID, serverConn)
	return client
}

func TestSetPresenceFansOutToCoParticipantsOnly(t *testing.T) {
	hub := NewHub()
	convs := new(mocks.ConversationRepositoryMock)
	chatUsers := new(mocks.ChatUserRepositoryMock)
	store := chat.NewStore(convs, new(mocks.MessageRepositoryMock))
	gateway := NewGateway(hub, store, nil, chatUsers, nil, nil, nil)

	leaving := models.ChatUser{ID: primitive.NewObjectID(), ExternalID: 1}
	peer := personalRoomConn(t, hub, "peer")
	stranger := personalRoomConn(t, hub, "stranger")

	chatUsers.On("SetStatus", mock.Anything, leaving.ID, models.PresenceOffline).Return(nil).Once()
	convs.On("CoParticipants", mock.Anything, leaving.ID.Hex()).Return([]string{"peer"}, nil).Once()

	gateway.setPresence(context.Background(), leaving, models.PresenceOffline)

	peer.SetReadDeadline(time.Now().Add(time.Second))
	var event models.ServerEvent
	require.NoError(t, peer.ReadJSON(&event))
	assert.Equal(t, models.EventStatusChange, event.Type)
	assert.Equal(t, leaving.ID.Hex(), event.UserID)
	assert.Equal(t, models.PresenceOffline, event.Status)

	// Exactly one event: the next read times out.
	peer.SetReadDeadline(time.Now().Add(150 * time.Millisecond))
	require.Error(t, peer.ReadJSON(&event))

	// Users sharing no conversation hear nothing.
	stranger.SetReadDeadline(time.Now().Add(150 * time.Millisecond))
	require.Error(t, stranger.ReadJSON(&event))

	chatUsers.AssertExpectations(t)
	convs.AssertExpectations(t)
}

func TestErrorEventWireShape(t *testing.T) {
	raw, err := json.Marshal(models.ServerEvent{
		Type:   models.EventError,
		ChatID: "abc",
		Error:  &models.ErrorPayload{Message: clientMessage(chat.ErrNotParticipant)},
	})
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "error", decoded["type"])
	payload, ok := decoded["error"].(map[string]interface{})
	require.True(t, ok, "error payload must be an object")
	assert.NotEmpty(t, payload["message"])
}
