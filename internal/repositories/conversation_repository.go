package repositories

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"chat-gateway/internal/models"
)

var ErrConversationNotFound = errors.New("conversation not found")

// PairKey derives the unique key for a direct conversation from the two
// chat user ids, order-independent.
func PairKey(a, b string) string {
	pair := []string{a, b}
	sort.Strings(pair)
	return strings.Join(pair, "_")
}

// ConversationRepository abstracts conversation persistence.
type ConversationRepository interface {
	FindOrCreateDirect(ctx context.Context, a, b models.ChatUser) (models.Conversation, error)
	CreateGroup(ctx context.Context, name string, creator models.ChatUser, members []models.ChatUser) (models.Conversation, error)
	Get(ctx context.Context, id primitive.ObjectID) (models.Conversation, error)
	ListForUser(ctx context.Context, chatUserID string) ([]models.Conversation, error)
	CoParticipants(ctx context.Context, chatUserID string) ([]string, error)
	RecordMessage(ctx context.Context, conv models.Conversation, msg models.Message) error
	ResetUnread(ctx context.Context, id primitive.ObjectID, chatUserID string) error
	Hide(ctx context.Context, id primitive.ObjectID, chatUserID string) error
}

// ConversationRepo is a mongo-backed ConversationRepository.
type ConversationRepo struct {
	coll *mongo.Collection
}

// NewConversationRepo constructs a ConversationRepo.
func NewConversationRepo(mdb *mongo.Database) *ConversationRepo {
	return &ConversationRepo{coll: mdb.Collection("conversations")}
}

// FindOrCreateDirect returns the direct conversation between the two users,
// creating it on first contact. The unique (kind, pair_key) index makes the
// create race-safe: a concurrent insert surfaces as a duplicate key and the
// existing document is re-fetched.
func (r *ConversationRepo) FindOrCreateDirect(ctx context.Context, a, b models.ChatUser) (models.Conversation, error) {
	if a.ID == b.ID {
		return models.Conversation{}, errors.New("cannot create conversation with self")
	}
	key := PairKey(a.ID.Hex(), b.ID.Hex())

	conv, err := r.findDirect(ctx, key)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, ErrConversationNotFound) {
		return models.Conversation{}, err
	}

	now := time.Now().UTC()
	conv = models.Conversation{
		Kind:         models.ConversationDirect,
		Participants: []string{a.ID.Hex(), b.ID.Hex()},
		ExternalIDs:  []int{a.ExternalID, b.ExternalID},
		PairKey:      key,
		UnreadCounts: map[string]int{a.ID.Hex(): 0, b.ID.Hex(): 0},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	res, err := r.coll.InsertOne(ctx, conv)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return r.findDirect(ctx, key)
		}
		return models.Conversation{}, err
	}
	conv.ID = res.InsertedID.(primitive.ObjectID)
	return conv, nil
}

func (r *ConversationRepo) findDirect(ctx context.Context, pairKey string) (models.Conversation, error) {
	var conv models.Conversation
	err := r.coll.FindOne(ctx, bson.M{"kind": models.ConversationDirect, "pair_key": pairKey}).Decode(&conv)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Conversation{}, ErrConversationNotFound
	}
	return conv, err
}

// CreateGroup creates a group conversation with the creator as admin.
func (r *ConversationRepo) CreateGroup(ctx context.Context, name string, creator models.ChatUser, members []models.ChatUser) (models.Conversation, error) {
	now := time.Now().UTC()
	participants := []string{creator.ID.Hex()}
	externalIDs := []int{creator.ExternalID}
	unread := map[string]int{creator.ID.Hex(): 0}
	for _, m := range members {
		if m.ID == creator.ID {
			continue
		}
		participants = append(participants, m.ID.Hex())
		externalIDs = append(externalIDs, m.ExternalID)
		unread[m.ID.Hex()] = 0
	}

	conv := models.Conversation{
		Kind:         models.ConversationGroup,
		Name:         name,
		Participants: participants,
		ExternalIDs:  externalIDs,
		UnreadCounts: unread,
		Admins:       []string{creator.ID.Hex()},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	res, err := r.coll.InsertOne(ctx, conv)
	if err != nil {
		return models.Conversation{}, err
	}
	conv.ID = res.InsertedID.(primitive.ObjectID)
	return conv, nil
}

// Get fetches a conversation by id.
func (r *ConversationRepo) Get(ctx context.Context, id primitive.ObjectID) (models.Conversation, error) {
	var conv models.Conversation
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&conv)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Conversation{}, ErrConversationNotFound
	}
	return conv, err
}

// ListForUser returns the user's visible conversations, newest activity first.
func (r *ConversationRepo) ListForUser(ctx context.Context, chatUserID string) ([]models.Conversation, error) {
	filter := bson.M{
		"participants": chatUserID,
		"hidden_for":   bson.M{"$ne": chatUserID},
	}
	cursor, err := r.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var convs []models.Conversation
	if err := cursor.All(ctx, &convs); err != nil {
		return nil, err
	}
	return convs, nil
}

// CoParticipants collects the distinct chat users sharing any conversation
// with the given user, used to target presence broadcasts.
func (r *ConversationRepo) CoParticipants(ctx context.Context, chatUserID string) ([]string, error) {
	values, err := r.coll.Distinct(ctx, "participants", bson.M{"participants": chatUserID})
	if err != nil {
		return nil, err
	}
	others := make([]string, 0, len(values))
	for _, v := range values {
		id, ok := v.(string)
		if !ok || id == chatUserID {
			continue
		}
		others = append(others, id)
	}
	return others, nil
}

// RecordMessage applies a message send to the conversation document: the
// last-message pointer and preview, the unread increments for every
// participant except the sender, and re-surfacing for users who had hidden
// the conversation. All of it is a single UpdateOne so concurrent sends
// cannot lose counter increments.
func (r *ConversationRepo) RecordMessage(ctx context.Context, conv models.Conversation, msg models.Message) error {
	res, err := r.coll.UpdateByID(ctx, conv.ID, recordMessageUpdate(conv, msg))
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrConversationNotFound
	}
	return nil
}

// recordMessageUpdate builds the single update document applied on every
// send: last-message pointer and preview, unread increments for every
// participant except the sender, and clearing hidden_for so the
// conversation re-surfaces for everyone.
func recordMessageUpdate(conv models.Conversation, msg models.Message) bson.M {
	inc := bson.M{}
	for _, p := range conv.Participants {
		if p != msg.SenderID {
			inc["unread_counts."+p] = 1
		}
	}

	update := bson.M{
		"$set": bson.M{
			"last_message_id": msg.ID,
			"last_message": models.MessagePreview{
				Content:  previewContent(msg),
				SenderID: msg.SenderID,
				SentAt:   msg.CreatedAt,
			},
			"updated_at": msg.CreatedAt,
			"hidden_for": []string{},
		},
	}
	if len(inc) > 0 {
		update["$inc"] = inc
	}
	return update
}

func previewContent(msg models.Message) string {
	if msg.Content != "" {
		return msg.Content
	}
	if len(msg.Attachments) > 0 {
		return "[" + msg.Attachments[0].Type + "]"
	}
	return ""
}

// ResetUnread zeroes the user's unread counter.
func (r *ConversationRepo) ResetUnread(ctx context.Context, id primitive.ObjectID, chatUserID string) error {
	_, err := r.coll.UpdateByID(ctx, id, bson.M{"$set": bson.M{"unread_counts." + chatUserID: 0}})
	return err
}

// Hide soft-deletes the conversation for one user. The document itself is
// never removed.
func (r *ConversationRepo) Hide(ctx context.Context, id primitive.ObjectID, chatUserID string) error {
	_, err := r.coll.UpdateByID(ctx, id, bson.M{"$addToSet": bson.M{"hidden_for": chatUserID}})
	return err
}
