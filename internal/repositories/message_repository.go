package repositories

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"chat-gateway/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

// MessageRepository defines persistence for chat messages.
type MessageRepository interface {
	Insert(ctx context.Context, msg models.Message) (models.Message, error)
	Get(ctx context.Context, id primitive.ObjectID) (models.Message, error)
	ListPage(ctx context.Context, conversationID primitive.ObjectID, viewer string, limit int, before primitive.ObjectID) ([]models.Message, error)
	MarkReadUpTo(ctx context.Context, conversationID primitive.ObjectID, chatUserID string, upto primitive.ObjectID) (int64, error)
	HideForUser(ctx context.Context, id primitive.ObjectID, chatUserID string) error
	MarkDeletedForAll(ctx context.Context, id primitive.ObjectID) error
	Edit(ctx context.Context, id primitive.ObjectID, content string) error
}

// MessageRepo is a mongo-backed MessageRepository.
type MessageRepo struct {
	coll *mongo.Collection
}

// NewMessageRepo constructs a MessageRepo.
func NewMessageRepo(mdb *mongo.Database) *MessageRepo {
	return &MessageRepo{coll: mdb.Collection("messages")}
}

// Insert stores a new message. The sender is pre-seeded into read_by and
// the status starts at sent.
func (r *MessageRepo) Insert(ctx context.Context, msg models.Message) (models.Message, error) {
	now := time.Now().UTC()
	msg.CreatedAt = now
	msg.UpdatedAt = now
	msg.Status = models.StatusSent
	msg.ReadBy = []string{msg.SenderID}

	res, err := r.coll.InsertOne(ctx, msg)
	if err != nil {
		return models.Message{}, err
	}
	msg.ID = res.InsertedID.(primitive.ObjectID)
	return msg, nil
}

// Get retrieves a single message.
func (r *MessageRepo) Get(ctx context.Context, id primitive.ObjectID) (models.Message, error) {
	var msg models.Message
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&msg)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// ListPage returns one reverse-chronological page, optionally before a given
// message id, re-ordered chronologically for the caller. Messages the viewer
// deleted for themselves are filtered out.
func (r *MessageRepo) ListPage(ctx context.Context, conversationID primitive.ObjectID, viewer string, limit int, before primitive.ObjectID) ([]models.Message, error) {
	filter := bson.M{
		"conversation_id": conversationID,
		"hidden_for":      bson.M{"$ne": viewer},
	}
	if !before.IsZero() {
		filter["_id"] = bson.M{"$lt": before}
	}

	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var msgs []models.Message
	if err := cursor.All(ctx, &msgs); err != nil {
		return nil, err
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// MarkReadUpTo adds the reader to every message up to and including the
// given id and promotes the status to read. Already-read statuses are never
// demoted; the filter only matches messages missing the reader.
func (r *MessageRepo) MarkReadUpTo(ctx context.Context, conversationID primitive.ObjectID, chatUserID string, upto primitive.ObjectID) (int64, error) {
	filter := bson.M{
		"conversation_id": conversationID,
		"_id":             bson.M{"$lte": upto},
		"read_by":         bson.M{"$ne": chatUserID},
	}
	update := bson.M{
		"$addToSet": bson.M{"read_by": chatUserID},
		"$set":      bson.M{"status": models.StatusRead, "updated_at": time.Now().UTC()},
	}
	res, err := r.coll.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// HideForUser soft-deletes the message for one user only.
func (r *MessageRepo) HideForUser(ctx context.Context, id primitive.ObjectID, chatUserID string) error {
	res, err := r.coll.UpdateByID(ctx, id, bson.M{
		"$addToSet": bson.M{"hidden_for": chatUserID},
		"$set":      bson.M{"updated_at": time.Now().UTC()},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrMessageNotFound
	}
	return nil
}

// MarkDeletedForAll tombstones the message for every participant. The
// document stays so the conversation timeline keeps its slot; content and
// attachments are cleared.
func (r *MessageRepo) MarkDeletedForAll(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.coll.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"deleted":     true,
		"content":     "",
		"attachments": []models.Attachment{},
		"updated_at":  time.Now().UTC(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrMessageNotFound
	}
	return nil
}

// Edit replaces the message content and marks it edited.
func (r *MessageRepo) Edit(ctx context.Context, id primitive.ObjectID, content string) error {
	res, err := r.coll.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"content":    content,
		"edited":     true,
		"updated_at": time.Now().UTC(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrMessageNotFound
	}
	return nil
}
