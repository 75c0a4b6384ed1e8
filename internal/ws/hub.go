package ws

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"chat-gateway/internal/models"
	"chat-gateway/internal/observability"
)

// ChatRoom names the broadcast room for a conversation.
func ChatRoom(conversationID string) string {
	return "chat:" + conversationID
}

// Hub maintains active websocket rooms. A connection belongs to its user's
// personal room (named by the chat user id) plus one room per conversation.
type Hub struct {
	rooms  map[string]map[*websocket.Conn]bool
	byConn map[*websocket.Conn]map[string]bool
	info   map[*websocket.Conn]ConnInfo
	mu     sync.RWMutex
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		rooms:  make(map[string]map[*websocket.Conn]bool),
		byConn: make(map[*websocket.Conn]map[string]bool),
		info:   make(map[*websocket.Conn]ConnInfo),
	}
}

// Register tracks a new connection.
func (h *Hub) Register(conn *websocket.Conn, info ConnInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.info[conn] = info
	h.byConn[conn] = make(map[string]bool)
}

// Unregister removes the connection from every room it joined.
func (h *Hub) Unregister(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for room := range h.byConn[conn] {
		h.leaveLocked(room, conn)
	}
	delete(h.byConn, conn)
	delete(h.info, conn)
}

// Join adds the connection to a room.
func (h *Hub) Join(room string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.rooms[room]; !ok {
		h.rooms[room] = make(map[*websocket.Conn]bool)
	}
	h.rooms[room][conn] = true
	if members, ok := h.byConn[conn]; ok {
		members[room] = true
	}
}

// Leave removes the connection from a room.
func (h *Hub) Leave(room string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(room, conn)
	if members, ok := h.byConn[conn]; ok {
		delete(members, room)
	}
}

// JoinRoomMembers adds every connection currently in src to dst. Used when
// a conversation is created mid-session so its participants' live
// connections receive the first message without an explicit join.
func (h *Hub) JoinRoomMembers(src, dst string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.rooms[dst]; !ok {
		h.rooms[dst] = make(map[*websocket.Conn]bool)
	}
	for conn := range h.rooms[src] {
		h.rooms[dst][conn] = true
		if members, ok := h.byConn[conn]; ok {
			members[dst] = true
		}
	}
	if len(h.rooms[dst]) == 0 {
		delete(h.rooms, dst)
	}
}

func (h *Hub) leaveLocked(room string, conn *websocket.Conn) {
	if conns, ok := h.rooms[room]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.rooms, room)
		}
	}
}

// Broadcast sends an event to every connection in a room.
func (h *Hub) Broadcast(room string, event models.ServerEvent) {
	h.BroadcastExcept(room, nil, event)
}

// BroadcastExcept sends an event to every connection in a room except one,
// typically the originator of the event.
func (h *Hub) BroadcastExcept(room string, except *websocket.Conn, event models.ServerEvent) {
	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.rooms[room]))
	for conn := range h.rooms[room] {
		if conn != except {
			conns = append(conns, conn)
		}
	}
	h.mu.RUnlock()

	for _, conn := range conns {
		h.emit(room, conn, event)
	}
}

// EmitTo sends an event to a single connection.
func (h *Hub) EmitTo(conn *websocket.Conn, event models.ServerEvent) {
	h.emit("", conn, event)
}

func (h *Hub) emit(room string, conn *websocket.Conn, event models.ServerEvent) {
	if err := conn.WriteJSON(event); err != nil {
		log.Printf("websocket write error: %v", err)
		conn.Close()
		h.publishWSError(room, conn, err)
		h.Unregister(conn)
	}
}

// RoomSize reports how many connections a room holds.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

func (h *Hub) publishWSError(room string, conn *websocket.Conn, err error) {
	h.mu.RLock()
	info, ok := h.info[conn]
	h.mu.RUnlock()
	if !ok {
		return
	}

	payload := map[string]interface{}{
		"ws": map[string]interface{}{
			"room":        room,
			"event":       "ws_error",
			"conn_id":     info.ConnID,
			"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
			"reason":      err.Error(),
		},
		"identity": map[string]interface{}{
			"user_id":      info.UserID,
			"chat_user_id": info.ChatUserID,
			"device_id":    info.DeviceID,
			"ip":           info.IP,
		},
	}

	headers := observability.BuildHeaders(info.RequestID, info.TraceID)
	_ = observability.PublishEvent(context.Background(), "ws_events.chats",
		observability.NewEventEnvelope("ws_events", "ws_error", payload), headers)
	observability.IncWSEvent("ws_error")
}
