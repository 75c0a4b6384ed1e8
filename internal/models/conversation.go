package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Conversation kinds.
const (
	ConversationDirect = "direct"
	ConversationGroup  = "group"
)

// Conversation represents a chat document. Direct conversations carry a
// PairKey (the two participant ids sorted and joined with "_") which is
// unique together with Kind, so the same pair can never own two direct
// conversations.
type Conversation struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Kind           string             `bson:"kind" json:"kind"`
	Name           string             `bson:"name,omitempty" json:"name,omitempty"`
	Participants   []string           `bson:"participants" json:"participants"`
	ExternalIDs    []int              `bson:"external_ids" json:"external_ids"`
	PairKey        string             `bson:"pair_key,omitempty" json:"-"`
	LastMessageID  primitive.ObjectID `bson:"last_message_id,omitempty" json:"last_message_id,omitempty"`
	LastMessage    *MessagePreview    `bson:"last_message,omitempty" json:"last_message,omitempty"`
	UnreadCounts   map[string]int     `bson:"unread_counts" json:"unread_counts"`
	HiddenFor      []string           `bson:"hidden_for,omitempty" json:"-"`
	Admins         []string           `bson:"admins,omitempty" json:"admins,omitempty"`
	CreatedAt      time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time          `bson:"updated_at" json:"updated_at"`
}

// MessagePreview is the denormalized last-message snapshot used for chat
// list rendering without a second query.
type MessagePreview struct {
	Content  string    `bson:"content" json:"content"`
	SenderID string    `bson:"sender_id" json:"sender_id"`
	SentAt   time.Time `bson:"sent_at" json:"sent_at"`
}

// HasParticipant reports whether the chat user belongs to the conversation.
func (c Conversation) HasParticipant(chatUserID string) bool {
	for _, p := range c.Participants {
		if p == chatUserID {
			return true
		}
	}
	return false
}

// HiddenBy reports whether the user has soft-deleted the conversation.
func (c Conversation) HiddenBy(chatUserID string) bool {
	for _, h := range c.HiddenFor {
		if h == chatUserID {
			return true
		}
	}
	return false
}

// ConversationSummary is the API-friendly view of a conversation for a user.
type ConversationSummary struct {
	Conversation
	Unread  int                  `json:"unread"`
	Members []ChatDisplayProfile `json:"members,omitempty"`
}
