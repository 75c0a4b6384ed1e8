package ws

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.opentelemetry.io/otel"

	"chat-gateway/internal/auth"
	"chat-gateway/internal/chat"
	"chat-gateway/internal/identity"
	"chat-gateway/internal/media"
	"chat-gateway/internal/models"
	"chat-gateway/internal/observability"
	"chat-gateway/internal/presence"
	"chat-gateway/internal/repositories"
)

// Gateway handles authenticated realtime connections: identity resolution,
// presence, room membership and the chat event protocol.
type Gateway struct {
	hub       *Hub
	store     *chat.Store
	bridge    *identity.Bridge
	chatUsers repositories.ChatUserRepository
	verifier  auth.TokenVerifier
	media     *media.Processor
	presence  *presence.Tracker
}

// NewGateway constructs a Gateway.
func NewGateway(hub *Hub, store *chat.Store, bridge *identity.Bridge, chatUsers repositories.ChatUserRepository, verifier auth.TokenVerifier, processor *media.Processor, tracker *presence.Tracker) *Gateway {
	return &Gateway{
		hub:       hub,
		store:     store,
		bridge:    bridge,
		chatUsers: chatUsers,
		verifier:  verifier,
		media:     processor,
		presence:  tracker,
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle authenticates the handshake, registers presence and room
// membership and runs the connection's event loop.
func (g *Gateway) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("chat-gateway/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	token := bearerToken(c)
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}
	userID, err := g.verifier.Verify(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	chatUser, err := g.bridge.Resolve(ctx, userID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrUserNotFound) {
			status = http.StatusUnauthorized
		}
		c.JSON(status, gin.H{"error": "identity resolution failed"})
		return
	}

	convs, err := g.store.ListConversations(ctx, chatUser.ID.Hex())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load conversations"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      userID,
		ChatUserID:  chatUser.ID.Hex(),
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}

	g.hub.Register(conn, info)
	g.hub.Join(chatUser.ID.Hex(), conn)
	for _, conv := range convs {
		g.hub.Join(ChatRoom(conv.ID.Hex()), conn)
	}

	if first := g.presence.AddConnection(chatUser.ID.Hex(), info.ConnID); first {
		g.setPresence(ctx, chatUser, models.PresenceOnline)
	}

	observability.IncWSActive()
	observability.IncWSEvent("ws_connect")
	g.publishConnEvent(ctx, "ws_connect", info, "")

	go g.readLoop(conn, info, chatUser)
}

func (g *Gateway) readLoop(conn *websocket.Conn, info ConnInfo, chatUser models.ChatUser) {
	var closeReason string
	defer func() {
		g.hub.Unregister(conn)
		if last := g.presence.RemoveConnection(chatUser.ID.Hex(), info.ConnID); last {
			g.setPresence(context.Background(), chatUser, models.PresenceOffline)
		}
		observability.DecWSActive()
		observability.IncWSEvent("ws_disconnect")
		g.publishConnEvent(context.Background(), "ws_disconnect", info, closeReason)
		conn.Close()
	}()

	for {
		var event models.ClientEvent
		if err := conn.ReadJSON(&event); err != nil {
			closeReason = err.Error()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.IncWSEvent("ws_error")
			}
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := g.dispatch(ctx, conn, chatUser, event); err != nil {
			g.hub.EmitTo(conn, models.ServerEvent{Type: models.EventError, ChatID: event.ChatID, Error: &models.ErrorPayload{Message: clientMessage(err)}})
		}
		cancel()
	}
}

func (g *Gateway) dispatch(ctx context.Context, conn *websocket.Conn, chatUser models.ChatUser, event models.ClientEvent) error {
	observability.IncWSEvent(event.Type)
	switch event.Type {
	case models.EventJoinChat:
		return g.handleJoinChat(ctx, conn, chatUser, event)
	case models.EventSendMessage:
		return g.handleSendMessage(ctx, conn, chatUser, event)
	case models.EventTyping, models.EventStopTyping:
		return g.handleTyping(ctx, conn, chatUser, event)
	case models.EventMarkRead:
		return g.handleMarkRead(ctx, conn, chatUser, event)
	case models.EventHeartbeat:
		return g.chatUsers.Touch(ctx, chatUser.ID)
	default:
		return fmt.Errorf("unknown event %q", event.Type)
	}
}

func (g *Gateway) handleJoinChat(ctx context.Context, conn *websocket.Conn, chatUser models.ChatUser, event models.ClientEvent) error {
	convID, err := primitive.ObjectIDFromHex(event.ChatID)
	if err != nil {
		return errInvalidChatID
	}
	if _, err := g.store.Conversation(ctx, convID, chatUser.ID.Hex()); err != nil {
		return err
	}
	g.hub.Join(ChatRoom(event.ChatID), conn)
	g.hub.EmitTo(conn, models.ServerEvent{Type: models.EventJoinedChat, ChatID: event.ChatID, Success: true})
	return nil
}

func (g *Gateway) handleSendMessage(ctx context.Context, conn *websocket.Conn, chatUser models.ChatUser, event models.ClientEvent) error {
	conv, err := g.resolveConversation(ctx, chatUser, event)
	if err != nil {
		return err
	}

	attachments := make([]models.Attachment, 0, len(event.Attachments))
	for _, raw := range event.Attachments {
		if !g.media.AcceptsInline(raw) {
			return media.ErrAttachmentTooLarge
		}
		att, err := g.media.Process(ctx, raw, conv.ID.Hex())
		if err != nil {
			return err
		}
		attachments = append(attachments, att)
	}

	var replyTo primitive.ObjectID
	if event.ReplyTo != "" {
		if replyTo, err = primitive.ObjectIDFromHex(event.ReplyTo); err != nil {
			return errInvalidMessageID
		}
	}

	msg, err := g.store.AppendMessage(ctx, conv.ID, chatUser, event.Content, attachments, replyTo)
	if err != nil {
		return err
	}

	populated := models.PopulatedMessage{Message: msg}
	if profile, err := g.bridge.DisplayProfile(ctx, chatUser.ExternalID); err == nil {
		profile.ChatID = chatUser.ID.Hex()
		populated.Sender = &profile
	}

	room := ChatRoom(conv.ID.Hex())
	g.hub.Broadcast(room, models.ServerEvent{Type: models.EventNewMessage, ChatID: conv.ID.Hex(), Message: &populated})
	g.publishChatEvent(ctx, "message_sent", conv, msg)
	return nil
}

// resolveConversation finds the target conversation, creating a direct one
// on first message-intent when only the recipient is given. Every
// participant's live connections are pulled into the room so the very first
// message is delivered without an explicit join.
func (g *Gateway) resolveConversation(ctx context.Context, chatUser models.ChatUser, event models.ClientEvent) (models.Conversation, error) {
	if event.ChatID != "" {
		convID, err := primitive.ObjectIDFromHex(event.ChatID)
		if err != nil {
			return models.Conversation{}, errInvalidChatID
		}
		return g.store.Conversation(ctx, convID, chatUser.ID.Hex())
	}
	if event.To == 0 {
		return models.Conversation{}, errInvalidChatID
	}

	other, err := g.bridge.Resolve(ctx, event.To)
	if err != nil {
		return models.Conversation{}, err
	}
	conv, err := g.store.FindOrCreateDirect(ctx, chatUser, other)
	if err != nil {
		return models.Conversation{}, err
	}
	room := ChatRoom(conv.ID.Hex())
	for _, participant := range conv.Participants {
		g.hub.JoinRoomMembers(participant, room)
	}
	return conv, nil
}

func (g *Gateway) handleTyping(ctx context.Context, conn *websocket.Conn, chatUser models.ChatUser, event models.ClientEvent) error {
	convID, err := primitive.ObjectIDFromHex(event.ChatID)
	if err != nil {
		return errInvalidChatID
	}
	if _, err := g.store.Conversation(ctx, convID, chatUser.ID.Hex()); err != nil {
		return err
	}
	g.hub.BroadcastExcept(ChatRoom(event.ChatID), conn, models.ServerEvent{
		Type:   event.Type,
		ChatID: event.ChatID,
		UserID: chatUser.ID.Hex(),
	})
	return nil
}

func (g *Gateway) handleMarkRead(ctx context.Context, conn *websocket.Conn, chatUser models.ChatUser, event models.ClientEvent) error {
	convID, err := primitive.ObjectIDFromHex(event.ChatID)
	if err != nil {
		return errInvalidChatID
	}
	msgID, err := primitive.ObjectIDFromHex(event.MessageID)
	if err != nil {
		return errInvalidMessageID
	}
	if err := g.store.MarkRead(ctx, convID, chatUser.ID.Hex(), msgID); err != nil {
		return err
	}
	g.hub.BroadcastExcept(ChatRoom(event.ChatID), conn, models.ServerEvent{
		Type:      models.EventMessagesRead,
		ChatID:    event.ChatID,
		UserID:    chatUser.ID.Hex(),
		MessageID: event.MessageID,
	})
	return nil
}

// setPresence flips the shadow record and notifies every user who shares a
// conversation, via their personal rooms.
func (g *Gateway) setPresence(ctx context.Context, chatUser models.ChatUser, status string) {
	if err := g.chatUsers.SetStatus(ctx, chatUser.ID, status); err != nil {
		log.Printf("presence update failed for %s: %v", chatUser.ID.Hex(), err)
	}
	others, err := g.store.CoParticipants(ctx, chatUser.ID.Hex())
	if err != nil {
		return
	}
	event := models.ServerEvent{Type: models.EventStatusChange, UserID: chatUser.ID.Hex(), Status: status}
	for _, other := range others {
		g.hub.Broadcast(other, event)
	}
	_ = observability.PublishEvent(ctx, "chat_events.presence", observability.NewEventEnvelope("chat_events", "presence_change",
		map[string]interface{}{
			"chat_user_id": chatUser.ID.Hex(),
			"external_id":  chatUser.ExternalID,
			"status":       status,
		}), nil)
}

func (g *Gateway) publishConnEvent(ctx context.Context, name string, info ConnInfo, reason string) {
	_ = observability.PublishEvent(ctx, "ws_events.chats", observability.NewEventEnvelope("ws_events", name,
		map[string]interface{}{
			"ws": map[string]interface{}{
				"event":       name,
				"conn_id":     info.ConnID,
				"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
				"reason":      reason,
			},
			"identity": map[string]interface{}{
				"user_id":      info.UserID,
				"chat_user_id": info.ChatUserID,
				"device_id":    info.DeviceID,
				"ip":           info.IP,
			},
		}), observability.BuildHeaders(info.RequestID, info.TraceID))
}

func (g *Gateway) publishChatEvent(ctx context.Context, name string, conv models.Conversation, msg models.Message) {
	_ = observability.PublishEvent(ctx, "chat_events.messages", observability.NewEventEnvelope("chat_events", name,
		map[string]interface{}{
			"conversation_id": conv.ID.Hex(),
			"message_id":      msg.ID.Hex(),
			"sender_id":       msg.SenderID,
			"participants":    conv.Participants,
		}), nil)
}

var (
	errInvalidChatID    = errors.New("invalid chat id")
	errInvalidMessageID = errors.New("invalid message id")
)

func clientMessage(err error) string {
	switch {
	case errors.Is(err, chat.ErrNotParticipant), errors.Is(err, chat.ErrConversationHidden):
		return "not authorized for chat"
	case errors.Is(err, repositories.ErrConversationNotFound):
		return "conversation not found"
	case errors.Is(err, chat.ErrEmptyMessage):
		return "message needs content or an attachment"
	case errors.Is(err, media.ErrAttachmentTooLarge):
		return "attachment too large for the realtime channel, use the upload endpoint"
	case errors.Is(err, errInvalidChatID), errors.Is(err, errInvalidMessageID):
		return err.Error()
	default:
		return "internal error"
	}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return parts[1]
		}
		return ""
	}
	return c.Query("token")
}
