// Package cache provides a redis-backed display-profile cache. The gateway
// resolves sender profiles on every broadcast, so the hot path avoids a
// relational round trip per message.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"chat-gateway/internal/models"
)

const profileTTL = 5 * time.Minute

// ProfileCache caches ChatDisplayProfile values in redis.
type ProfileCache struct {
	client *redis.Client
}

// NewProfileCache connects to redis. Returns nil (cache disabled) when addr
// is empty or the server is unreachable; callers treat a nil cache as a miss.
func NewProfileCache(addr string) *ProfileCache {
	if addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		log.Printf("redis unavailable, profile cache disabled: %v", err)
		return nil
	}
	return &ProfileCache{client: client}
}

// GetProfile returns the cached profile for the user, if present.
func (c *ProfileCache) GetProfile(ctx context.Context, userID int) (models.ChatDisplayProfile, bool) {
	raw, err := c.client.Get(ctx, profileKey(userID)).Bytes()
	if err != nil {
		return models.ChatDisplayProfile{}, false
	}
	var profile models.ChatDisplayProfile
	if err := json.Unmarshal(raw, &profile); err != nil {
		return models.ChatDisplayProfile{}, false
	}
	return profile, true
}

// SetProfile stores the profile with a short TTL; profile edits in the main
// API surface within one TTL window.
func (c *ProfileCache) SetProfile(ctx context.Context, profile models.ChatDisplayProfile) {
	raw, err := json.Marshal(profile)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, profileKey(profile.ID), raw, profileTTL).Err(); err != nil {
		log.Printf("profile cache set failed: %v", err)
	}
}

func profileKey(userID int) string {
	return fmt.Sprintf("chat:profile:%d", userID)
}
