package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Presence statuses for a chat user.
const (
	PresenceOnline  = "online"
	PresenceAway    = "away"
	PresenceOffline = "offline"
)

// ChatUser is the shadow identity record mirroring a relational user in the
// chat store. ExternalID is the relational user id; the two must only ever
// be linked through the identity bridge's single creation path.
type ChatUser struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ExternalID int                `bson:"external_id" json:"external_id"`
	Email      string             `bson:"email" json:"email"`
	Username   string             `bson:"username" json:"username"`
	Avatar     string             `bson:"avatar,omitempty" json:"avatar,omitempty"`
	Status     string             `bson:"status" json:"status"`
	LastActive time.Time          `bson:"last_active" json:"last_active"`
	PushTokens []string           `bson:"push_tokens,omitempty" json:"-"`
	CreatedAt  time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt  time.Time          `bson:"updated_at" json:"updated_at"`
}

// User is the relational profile row consumed from the social database.
type User struct {
	ID        int    `db:"id" json:"id"`
	Email     string `db:"email" json:"email"`
	Username  string `db:"username" json:"username"`
	Avatar    string `db:"avatar" json:"avatar"`
	FirstName string `db:"first_name" json:"first_name"`
	LastName  string `db:"last_name" json:"last_name"`
}

// ChatDisplayProfile is the value type handed to message enrichment so the
// gateway never reaches into the relational row shape directly.
type ChatDisplayProfile struct {
	ID        int    `json:"id"`
	ChatID    string `json:"chat_id,omitempty"`
	Username  string `json:"username"`
	Avatar    string `json:"avatar,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// DisplayProfile derives the display value type from a relational row.
func (u User) DisplayProfile() ChatDisplayProfile {
	return ChatDisplayProfile{
		ID:        u.ID,
		Username:  u.Username,
		Avatar:    u.Avatar,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
}
