package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"chat-gateway/internal/chat"
	"chat-gateway/internal/identity"
	"chat-gateway/internal/media"
	"chat-gateway/internal/models"
	"chat-gateway/internal/repositories"
	"chat-gateway/internal/telemetry"
	"chat-gateway/internal/ws"
)

// ChatHandler serves the HTTP fallback for clients without a live socket
// and for payloads too large for the realtime channel.
type ChatHandler struct {
	store  *chat.Store
	bridge *identity.Bridge
	media  *media.Processor
	hub    *ws.Hub
	audit  *telemetry.AuditEmitter
}

// NewChatHandler builds a ChatHandler.
func NewChatHandler(store *chat.Store, bridge *identity.Bridge, processor *media.Processor, hub *ws.Hub, audit *telemetry.AuditEmitter) *ChatHandler {
	return &ChatHandler{
		store:  store,
		bridge: bridge,
		media:  processor,
		hub:    hub,
		audit:  audit,
	}
}

// ListChats returns the conversations visible to the authenticated user.
func (h *ChatHandler) ListChats(c *gin.Context) {
	chatUser, ok := h.resolveIdentity(c)
	if !ok {
		return
	}

	convs, err := h.store.ListConversations(c.Request.Context(), chatUser.ID.Hex())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load chats"})
		return
	}

	externalIDs := make([]int, 0)
	seen := map[int]struct{}{}
	for _, conv := range convs {
		for _, id := range conv.ExternalIDs {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				externalIDs = append(externalIDs, id)
			}
		}
	}
	profiles, err := h.bridge.DisplayProfiles(c.Request.Context(), externalIDs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load user info"})
		return
	}

	summaries := make([]models.ConversationSummary, 0, len(convs))
	for _, conv := range convs {
		members := make([]models.ChatDisplayProfile, 0, len(conv.ExternalIDs))
		for _, id := range conv.ExternalIDs {
			if profile, ok := profiles[id]; ok {
				members = append(members, profile)
			}
		}
		summaries = append(summaries, models.ConversationSummary{
			Conversation: conv,
			Unread:       conv.UnreadCounts[chatUser.ID.Hex()],
			Members:      members,
		})
	}

	c.JSON(http.StatusOK, gin.H{"chats": summaries})
}

// StartChat creates or returns a direct conversation, or creates a group
// when a name and member list are given.
func (h *ChatHandler) StartChat(c *gin.Context) {
	chatUser, ok := h.resolveIdentity(c)
	if !ok {
		return
	}

	var req struct {
		FriendID  int    `json:"friend_id"`
		Name      string `json:"name"`
		MemberIDs []int  `json:"member_ids"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var conv models.Conversation
	var err error
	switch {
	case req.Name != "" && len(req.MemberIDs) > 0:
		members := make([]models.ChatUser, 0, len(req.MemberIDs))
		for _, id := range req.MemberIDs {
			member, resolveErr := h.bridge.Resolve(c.Request.Context(), id)
			if resolveErr != nil {
				h.writeError(c, resolveErr)
				return
			}
			members = append(members, member)
		}
		conv, err = h.store.CreateGroup(c.Request.Context(), req.Name, chatUser, members)
	case req.FriendID != 0:
		if req.FriendID == chatUser.ExternalID {
			c.JSON(http.StatusBadRequest, gin.H{"error": "cannot chat with yourself"})
			return
		}
		var friend models.ChatUser
		friend, err = h.bridge.Resolve(c.Request.Context(), req.FriendID)
		if err == nil {
			conv, err = h.store.FindOrCreateDirect(c.Request.Context(), chatUser, friend)
		}
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "friend_id or name with member_ids required"})
		return
	}
	if err != nil {
		h.writeError(c, err)
		return
	}

	room := ws.ChatRoom(conv.ID.Hex())
	for _, participant := range conv.Participants {
		h.hub.JoinRoomMembers(participant, room)
	}

	h.emitAudit(c, "INFO", "Chat started")
	c.JSON(http.StatusOK, conv)
}

// GetChat returns one conversation the user participates in.
func (h *ChatHandler) GetChat(c *gin.Context) {
	chatUser, convID, ok := h.resolveChat(c)
	if !ok {
		return
	}

	conv, err := h.store.Conversation(c.Request.Context(), convID, chatUser.ID.Hex())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.ConversationSummary{
		Conversation: conv,
		Unread:       conv.UnreadCounts[chatUser.ID.Hex()],
	})
}

// GetChatMessages returns one page of messages. Viewing resets the
// requester's unread counter.
func (h *ChatHandler) GetChatMessages(c *gin.Context) {
	chatUser, convID, ok := h.resolveChat(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.Query("limit"))
	var before primitive.ObjectID
	if raw := c.Query("before"); raw != "" {
		parsed, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid before id"})
			return
		}
		before = parsed
	}

	msgs, err := h.store.ListMessages(c.Request.Context(), convID, chatUser.ID.Hex(), limit, before)
	if err != nil {
		h.writeError(c, err)
		return
	}

	senderIDs := make([]int, 0)
	seen := map[int]struct{}{}
	for _, m := range msgs {
		if _, ok := seen[m.SenderExternalID]; !ok {
			seen[m.SenderExternalID] = struct{}{}
			senderIDs = append(senderIDs, m.SenderExternalID)
		}
	}
	profiles, err := h.bridge.DisplayProfiles(c.Request.Context(), senderIDs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load senders"})
		return
	}

	resp := make([]models.PopulatedMessage, 0, len(msgs))
	for _, m := range msgs {
		populated := models.PopulatedMessage{Message: m}
		if profile, ok := profiles[m.SenderExternalID]; ok {
			profile.ChatID = m.SenderID
			populated.Sender = &profile
		}
		resp = append(resp, populated)
	}

	c.JSON(http.StatusOK, gin.H{"messages": resp})
}

// PostChatMessage stores a message and broadcasts it to the conversation's
// room, mirroring the realtime send path.
func (h *ChatHandler) PostChatMessage(c *gin.Context) {
	chatUser, convID, ok := h.resolveChat(c)
	if !ok {
		return
	}

	var req struct {
		Content     string                 `json:"content"`
		Attachments []models.RawAttachment `json:"attachments"`
		ReplyTo     string                 `json:"replyTo"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	attachments := make([]models.Attachment, 0, len(req.Attachments))
	for _, raw := range req.Attachments {
		att, err := h.media.Process(c.Request.Context(), raw, convID.Hex())
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid attachment"})
			return
		}
		attachments = append(attachments, att)
	}

	var replyTo primitive.ObjectID
	if req.ReplyTo != "" {
		parsed, err := primitive.ObjectIDFromHex(req.ReplyTo)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid replyTo id"})
			return
		}
		replyTo = parsed
	}

	msg, err := h.store.AppendMessage(c.Request.Context(), convID, chatUser, req.Content, attachments, replyTo)
	if err != nil {
		h.writeError(c, err)
		return
	}

	populated := models.PopulatedMessage{Message: msg}
	if profile, profileErr := h.bridge.DisplayProfile(c.Request.Context(), chatUser.ExternalID); profileErr == nil {
		profile.ChatID = chatUser.ID.Hex()
		populated.Sender = &profile
	}
	h.hub.Broadcast(ws.ChatRoom(convID.Hex()), models.ServerEvent{
		Type:    models.EventNewMessage,
		ChatID:  convID.Hex(),
		Message: &populated,
	})

	h.emitAudit(c, "INFO", "Message sent")
	c.JSON(http.StatusCreated, populated)
}

// UploadAttachment persists a large attachment from a multipart request and
// returns its server URL for a follow-up send_message call. With send=true
// the message is persisted and broadcast in the same request.
func (h *ChatHandler) UploadAttachment(c *gin.Context) {
	chatUser, convID, ok := h.resolveChat(c)
	if !ok {
		return
	}
	if _, err := h.store.Conversation(c.Request.Context(), convID, chatUser.ID.Hex()); err != nil {
		h.writeError(c, err)
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file field required"})
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable file"})
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read file"})
		return
	}

	att, err := h.media.PersistUpload(c.Request.Context(), data, fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"), convID.Hex())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store attachment"})
		return
	}

	if c.PostForm("send") != "true" {
		c.JSON(http.StatusCreated, att)
		return
	}

	msg, err := h.store.AppendMessage(c.Request.Context(), convID, chatUser,
		c.PostForm("content"), []models.Attachment{att}, primitive.ObjectID{})
	if err != nil {
		h.writeError(c, err)
		return
	}
	populated := models.PopulatedMessage{Message: msg}
	if profile, profileErr := h.bridge.DisplayProfile(c.Request.Context(), chatUser.ExternalID); profileErr == nil {
		profile.ChatID = chatUser.ID.Hex()
		populated.Sender = &profile
	}
	h.hub.Broadcast(ws.ChatRoom(convID.Hex()), models.ServerEvent{
		Type:    models.EventNewMessage,
		ChatID:  convID.Hex(),
		Message: &populated,
	})

	h.emitAudit(c, "INFO", "Attachment message sent")
	c.JSON(http.StatusCreated, populated)
}

// DeleteMessageForMe hides one message from the requester. The message
// stays visible for everyone else.
func (h *ChatHandler) DeleteMessageForMe(c *gin.Context) {
	chatUser, convID, msgID, ok := h.resolveMessage(c)
	if !ok {
		return
	}

	if err := h.store.DeleteMessageForMe(c.Request.Context(), convID, chatUser.ID.Hex(), msgID); err != nil {
		h.writeError(c, err)
		return
	}
	h.emitAudit(c, "INFO", "Message hidden")
	c.Status(http.StatusNoContent)
}

// DeleteMessageForAll tombstones a message for every participant and
// notifies the conversation's room. Sender only.
func (h *ChatHandler) DeleteMessageForAll(c *gin.Context) {
	chatUser, convID, msgID, ok := h.resolveMessage(c)
	if !ok {
		return
	}

	if err := h.store.DeleteMessageForAll(c.Request.Context(), convID, chatUser.ID.Hex(), msgID); err != nil {
		h.writeError(c, err)
		return
	}
	h.hub.Broadcast(ws.ChatRoom(convID.Hex()), models.ServerEvent{
		Type:      models.EventDeleteForAll,
		ChatID:    convID.Hex(),
		MessageID: msgID.Hex(),
	})

	h.emitAudit(c, "INFO", "Message deleted for all")
	c.Status(http.StatusNoContent)
}

// EditMessage replaces a message's content and broadcasts the edited
// message to the conversation's room. Sender only.
func (h *ChatHandler) EditMessage(c *gin.Context) {
	chatUser, convID, msgID, ok := h.resolveMessage(c)
	if !ok {
		return
	}

	var req struct {
		Content string `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.store.EditMessage(c.Request.Context(), convID, chatUser.ID.Hex(), msgID, req.Content)
	if err != nil {
		h.writeError(c, err)
		return
	}

	populated := models.PopulatedMessage{Message: msg}
	if profile, profileErr := h.bridge.DisplayProfile(c.Request.Context(), msg.SenderExternalID); profileErr == nil {
		profile.ChatID = msg.SenderID
		populated.Sender = &profile
	}
	h.hub.Broadcast(ws.ChatRoom(convID.Hex()), models.ServerEvent{
		Type:    models.EventMessageEdited,
		ChatID:  convID.Hex(),
		Message: &populated,
	})

	h.emitAudit(c, "INFO", "Message edited")
	c.JSON(http.StatusOK, populated)
}

// DeleteChatForMe hides the conversation for the requester.
func (h *ChatHandler) DeleteChatForMe(c *gin.Context) {
	chatUser, convID, ok := h.resolveChat(c)
	if !ok {
		return
	}

	if err := h.store.HideConversation(c.Request.Context(), convID, chatUser.ID.Hex()); err != nil {
		h.writeError(c, err)
		return
	}
	h.emitAudit(c, "INFO", "Chat hidden")
	c.Status(http.StatusNoContent)
}

func (h *ChatHandler) resolveIdentity(c *gin.Context) (models.ChatUser, bool) {
	userID := c.GetInt("userID")
	chatUser, err := h.bridge.Resolve(c.Request.Context(), userID)
	if err != nil {
		h.writeError(c, err)
		return models.ChatUser{}, false
	}
	return chatUser, true
}

func (h *ChatHandler) resolveChat(c *gin.Context) (models.ChatUser, primitive.ObjectID, bool) {
	convID, err := primitive.ObjectIDFromHex(c.Param("chat_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chat id"})
		return models.ChatUser{}, primitive.ObjectID{}, false
	}
	chatUser, ok := h.resolveIdentity(c)
	if !ok {
		return models.ChatUser{}, primitive.ObjectID{}, false
	}
	return chatUser, convID, true
}

func (h *ChatHandler) resolveMessage(c *gin.Context) (models.ChatUser, primitive.ObjectID, primitive.ObjectID, bool) {
	chatUser, convID, ok := h.resolveChat(c)
	if !ok {
		return models.ChatUser{}, primitive.ObjectID{}, primitive.ObjectID{}, false
	}
	msgID, err := primitive.ObjectIDFromHex(c.Param("message_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
		return models.ChatUser{}, primitive.ObjectID{}, primitive.ObjectID{}, false
	}
	return chatUser, convID, msgID, true
}

func (h *ChatHandler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repositories.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
	case errors.Is(err, repositories.ErrConversationNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "chat not found"})
	case errors.Is(err, repositories.ErrMessageNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
	case errors.Is(err, chat.ErrNotParticipant), errors.Is(err, chat.ErrConversationHidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "not a chat member"})
	case errors.Is(err, chat.ErrNotSender):
		c.JSON(http.StatusForbidden, gin.H{"error": "only the sender can do that"})
	case errors.Is(err, chat.ErrEmptyMessage):
		c.JSON(http.StatusBadRequest, gin.H{"error": "message needs content or an attachment"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
	h.emitAudit(c, "ERROR", err.Error())
}

func (h *ChatHandler) emitAudit(c *gin.Context, level, text string) {
	if h.audit == nil {
		return
	}
	h.audit.Emit(c.Request.Context(), level, text, requestIDFromContext(c), userIDFromContext(c))
}
