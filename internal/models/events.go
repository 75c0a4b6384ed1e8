package models

// Client -> server event names.
const (
	EventJoinChat    = "join_chat"
	EventSendMessage = "send_message"
	EventTyping      = "typing"
	EventStopTyping  = "stop_typing"
	EventMarkRead    = "mark_read"
	EventHeartbeat   = "heartbeat"
)

// Server -> client event names.
const (
	EventJoinedChat    = "joined_chat"
	EventNewMessage    = "new_message"
	EventMessagesRead  = "messages_read"
	EventStatusChange  = "user_status_change"
	EventMessageEdited = "message_edited"
	EventDeleteForAll  = "delete_for_all"
	EventError         = "error"
)

// ClientEvent is the inbound websocket envelope. Fields beyond Type are
// optional and interpreted per event.
type ClientEvent struct {
	Type        string          `json:"type"`
	ChatID      string          `json:"chatId,omitempty"`
	To          int             `json:"to,omitempty"`
	Content     string          `json:"content,omitempty"`
	Attachments []RawAttachment `json:"attachments,omitempty"`
	ReplyTo     string          `json:"replyTo,omitempty"`
	MessageID   string          `json:"messageId,omitempty"`
}

// RawAttachment is the untrusted inbound attachment payload before the
// processor normalizes it.
type RawAttachment struct {
	Type     string `json:"type,omitempty"`
	URL      string `json:"url,omitempty"`
	Data     string `json:"data,omitempty"`
	Name     string `json:"name,omitempty"`
	Size     int64  `json:"size,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
}

// ServerEvent is the outbound websocket envelope.
type ServerEvent struct {
	Type      string            `json:"type"`
	ChatID    string            `json:"chatId,omitempty"`
	UserID    string            `json:"userId,omitempty"`
	MessageID string            `json:"messageId,omitempty"`
	Status    string            `json:"status,omitempty"`
	Success   bool              `json:"success,omitempty"`
	Message   *PopulatedMessage `json:"message,omitempty"`
	Error     *ErrorPayload     `json:"error,omitempty"`
}

// ErrorPayload carries a client-safe failure description on error events.
type ErrorPayload struct {
	Message string `json:"message"`
}
