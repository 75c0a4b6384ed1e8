package repositories

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"chat-gateway/internal/models"
)

var ErrChatUserNotFound = errors.New("chat user not found")

// ChatUserRepository manages shadow identity records in the chat store.
type ChatUserRepository interface {
	FindByEmail(ctx context.Context, email string) (models.ChatUser, error)
	Create(ctx context.Context, user models.ChatUser) (models.ChatUser, error)
	SyncProfile(ctx context.Context, id primitive.ObjectID, username, avatar string) error
	SetStatus(ctx context.Context, id primitive.ObjectID, status string) error
	Touch(ctx context.Context, id primitive.ObjectID) error
}

// ChatUserRepo is a mongo-backed ChatUserRepository.
type ChatUserRepo struct {
	coll *mongo.Collection
}

// NewChatUserRepo constructs a ChatUserRepo.
func NewChatUserRepo(mdb *mongo.Database) *ChatUserRepo {
	return &ChatUserRepo{coll: mdb.Collection("chat_users")}
}

// FindByEmail looks up a shadow record by the mirrored email.
func (r *ChatUserRepo) FindByEmail(ctx context.Context, email string) (models.ChatUser, error) {
	var user models.ChatUser
	err := r.coll.FindOne(ctx, bson.M{"email": email}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.ChatUser{}, ErrChatUserNotFound
	}
	return user, err
}

// Create inserts a new shadow record. Callers must treat a duplicate-key
// error as "already created" and re-fetch; mongo.IsDuplicateKeyError is
// exposed to them for that purpose.
func (r *ChatUserRepo) Create(ctx context.Context, user models.ChatUser) (models.ChatUser, error) {
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.Status == "" {
		user.Status = models.PresenceOffline
	}
	res, err := r.coll.InsertOne(ctx, user)
	if err != nil {
		return models.ChatUser{}, err
	}
	user.ID = res.InsertedID.(primitive.ObjectID)
	return user, nil
}

// SyncProfile refreshes the mirrored displayable fields.
func (r *ChatUserRepo) SyncProfile(ctx context.Context, id primitive.ObjectID, username, avatar string) error {
	_, err := r.coll.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"username":   username,
		"avatar":     avatar,
		"updated_at": time.Now().UTC(),
	}})
	return err
}

// SetStatus updates presence and the last-active timestamp.
func (r *ChatUserRepo) SetStatus(ctx context.Context, id primitive.ObjectID, status string) error {
	_, err := r.coll.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"status":      status,
		"last_active": time.Now().UTC(),
		"updated_at":  time.Now().UTC(),
	}})
	return err
}

// Touch bumps the last-active timestamp, used by the heartbeat event.
func (r *ChatUserRepo) Touch(ctx context.Context, id primitive.ObjectID) error {
	_, err := r.coll.UpdateByID(ctx, id, bson.M{"$set": bson.M{"last_active": time.Now().UTC()}})
	return err
}
