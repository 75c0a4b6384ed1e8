package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Message statuses. Transitions are monotonic: sent -> delivered -> read.
const (
	StatusSent      = "sent"
	StatusDelivered = "delivered"
	StatusRead      = "read"
)

// Attachment types.
const (
	AttachmentImage = "image"
	AttachmentVideo = "video"
	AttachmentAudio = "audio"
	AttachmentFile  = "file"
)

// Attachment is a persisted, URL-addressable media resource on a message.
type Attachment struct {
	Type         string `bson:"type" json:"type"`
	URL          string `bson:"url" json:"url"`
	ThumbnailURL string `bson:"thumbnail_url,omitempty" json:"thumbnail_url,omitempty"`
	Name         string `bson:"name,omitempty" json:"name,omitempty"`
	Size         int64  `bson:"size,omitempty" json:"size,omitempty"`
	MimeType     string `bson:"mime_type,omitempty" json:"mime_type,omitempty"`
}

// Message represents a chat message. SenderExternalID denormalizes the
// relational user id so authorship survives independent of the chat-store
// identity record; the identity bridge keeps the two ids in lockstep.
type Message struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ConversationID   primitive.ObjectID `bson:"conversation_id" json:"conversation_id"`
	SenderID         string             `bson:"sender_id" json:"sender_id"`
	SenderExternalID int                `bson:"sender_external_id" json:"sender_external_id"`
	Content          string             `bson:"content,omitempty" json:"content,omitempty"`
	Attachments      []Attachment       `bson:"attachments,omitempty" json:"attachments,omitempty"`
	ReadBy           []string           `bson:"read_by" json:"read_by"`
	Status           string             `bson:"status" json:"status"`
	ReplyTo          primitive.ObjectID `bson:"reply_to,omitempty" json:"reply_to,omitempty"`
	Edited           bool               `bson:"edited" json:"edited"`
	Deleted          bool               `bson:"deleted" json:"deleted"`
	HiddenFor        []string           `bson:"hidden_for,omitempty" json:"-"`
	CreatedAt        time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt        time.Time          `bson:"updated_at" json:"updated_at"`
}

// Empty reports whether the message carries neither content nor attachments.
func (m Message) Empty() bool {
	return strings.TrimSpace(m.Content) == "" && len(m.Attachments) == 0
}

// PopulatedMessage is a message enriched with the sender's display profile,
// resolved from the relational store at broadcast time.
type PopulatedMessage struct {
	Message
	Sender *ChatDisplayProfile `json:"sender,omitempty"`
}
