// Package identity bridges relational user ids to chat-store shadow records.
package identity

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"

	"chat-gateway/internal/models"
	"chat-gateway/internal/repositories"
)

// ProfileCache caches display profiles keyed by relational user id.
type ProfileCache interface {
	GetProfile(ctx context.Context, userID int) (models.ChatDisplayProfile, bool)
	SetProfile(ctx context.Context, profile models.ChatDisplayProfile)
}

// Bridge resolves relational user ids to chat users, creating the shadow
// record lazily on first contact. The shadow record's external_id and the
// chat id are only ever linked here, so the two stay in lockstep.
type Bridge struct {
	users     repositories.UserRepository
	chatUsers repositories.ChatUserRepository
	cache     ProfileCache
}

// NewBridge constructs a Bridge. cache may be nil.
func NewBridge(users repositories.UserRepository, chatUsers repositories.ChatUserRepository, cache ProfileCache) *Bridge {
	return &Bridge{users: users, chatUsers: chatUsers, cache: cache}
}

// Resolve maps a relational user id to its chat user, creating the shadow
// record if this is the user's first contact with the chat system. Safe
// under concurrent first-contact calls: a duplicate-key insert means another
// caller won the race and the existing record is returned.
func (b *Bridge) Resolve(ctx context.Context, relationalUserID int) (models.ChatUser, error) {
	user, err := b.users.FindByID(ctx, relationalUserID)
	if err != nil {
		return models.ChatUser{}, err
	}

	chatUser, err := b.chatUsers.FindByEmail(ctx, user.Email)
	if err == nil {
		return b.refreshProfile(ctx, user, chatUser)
	}
	if !errors.Is(err, repositories.ErrChatUserNotFound) {
		return models.ChatUser{}, fmt.Errorf("lookup chat user: %w", err)
	}

	chatUser, err = b.chatUsers.Create(ctx, models.ChatUser{
		ExternalID: user.ID,
		Email:      user.Email,
		Username:   user.Username,
		Avatar:     user.Avatar,
		Status:     models.PresenceOffline,
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return b.chatUsers.FindByEmail(ctx, user.Email)
		}
		return models.ChatUser{}, fmt.Errorf("create chat user: %w", err)
	}
	return chatUser, nil
}

// refreshProfile writes the relational display fields through to the shadow
// record when they have drifted, keeping chat-side rendering consistent with
// profile edits made outside the chat system.
func (b *Bridge) refreshProfile(ctx context.Context, user models.User, chatUser models.ChatUser) (models.ChatUser, error) {
	if chatUser.Username == user.Username && chatUser.Avatar == user.Avatar {
		return chatUser, nil
	}
	if err := b.chatUsers.SyncProfile(ctx, chatUser.ID, user.Username, user.Avatar); err != nil {
		return models.ChatUser{}, fmt.Errorf("sync chat user profile: %w", err)
	}
	chatUser.Username = user.Username
	chatUser.Avatar = user.Avatar
	return chatUser, nil
}

// DisplayProfile resolves the display fields for message enrichment from
// the relational profile, which is authoritative over the possibly stale
// shadow record.
func (b *Bridge) DisplayProfile(ctx context.Context, relationalUserID int) (models.ChatDisplayProfile, error) {
	if b.cache != nil {
		if profile, ok := b.cache.GetProfile(ctx, relationalUserID); ok {
			return profile, nil
		}
	}

	user, err := b.users.FindByID(ctx, relationalUserID)
	if err != nil {
		return models.ChatDisplayProfile{}, err
	}
	profile := user.DisplayProfile()
	if b.cache != nil {
		b.cache.SetProfile(ctx, profile)
	}
	return profile, nil
}

// DisplayProfiles resolves display fields for several users at once,
// bypassing the cache; chat list rendering hits many profiles in one go.
func (b *Bridge) DisplayProfiles(ctx context.Context, relationalUserIDs []int) (map[int]models.ChatDisplayProfile, error) {
	users, err := b.users.FindByIDs(ctx, relationalUserIDs)
	if err != nil {
		return nil, err
	}
	profiles := make(map[int]models.ChatDisplayProfile, len(users))
	for _, u := range users {
		profiles[u.ID] = u.DisplayProfile()
	}
	return profiles, nil
}
