// Package chat implements the conversation/message consistency model on top
// of the mongo repositories: participancy checks, unread-counter upkeep and
// read-receipt propagation.
package chat

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"chat-gateway/internal/models"
	"chat-gateway/internal/repositories"
)

var (
	ErrNotParticipant     = errors.New("not a conversation participant")
	ErrConversationHidden = errors.New("conversation hidden for user")
	ErrEmptyMessage       = errors.New("message needs content or an attachment")
	ErrNotSender          = errors.New("only the sender may do that")
)

// DefaultPageSize bounds message pagination when the caller gives no limit.
const DefaultPageSize = 50

// Store orchestrates conversation and message persistence.
type Store struct {
	convs repositories.ConversationRepository
	msgs  repositories.MessageRepository
}

// NewStore constructs a Store.
func NewStore(convs repositories.ConversationRepository, msgs repositories.MessageRepository) *Store {
	return &Store{convs: convs, msgs: msgs}
}

// FindOrCreateDirect returns the direct conversation for the pair, creating
// it on first message-intent.
func (s *Store) FindOrCreateDirect(ctx context.Context, a, b models.ChatUser) (models.Conversation, error) {
	return s.convs.FindOrCreateDirect(ctx, a, b)
}

// CreateGroup creates a group conversation owned by the creator.
func (s *Store) CreateGroup(ctx context.Context, name string, creator models.ChatUser, members []models.ChatUser) (models.Conversation, error) {
	return s.convs.CreateGroup(ctx, name, creator, members)
}

// ListConversations returns the user's visible conversations with their
// unread counters, newest activity first.
func (s *Store) ListConversations(ctx context.Context, chatUserID string) ([]models.Conversation, error) {
	return s.convs.ListForUser(ctx, chatUserID)
}

// Conversation fetches a conversation the user participates in.
func (s *Store) Conversation(ctx context.Context, id primitive.ObjectID, chatUserID string) (models.Conversation, error) {
	conv, err := s.convs.Get(ctx, id)
	if err != nil {
		return models.Conversation{}, err
	}
	if !conv.HasParticipant(chatUserID) {
		return models.Conversation{}, ErrNotParticipant
	}
	return conv, nil
}

// CoParticipants lists every chat user sharing a conversation with the user.
func (s *Store) CoParticipants(ctx context.Context, chatUserID string) ([]string, error) {
	return s.convs.CoParticipants(ctx, chatUserID)
}

// ListMessages returns one page of messages in chronological order. Viewing
// implies reading: the requester's unread counter is reset as a side effect.
func (s *Store) ListMessages(ctx context.Context, conversationID primitive.ObjectID, chatUserID string, limit int, before primitive.ObjectID) ([]models.Message, error) {
	if _, err := s.Conversation(ctx, conversationID, chatUserID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultPageSize
	}
	msgs, err := s.msgs.ListPage(ctx, conversationID, chatUserID, limit, before)
	if err != nil {
		return nil, err
	}
	if err := s.convs.ResetUnread(ctx, conversationID, chatUserID); err != nil {
		return nil, err
	}
	return msgs, nil
}

// AppendMessage validates and persists a message, then applies the
// conversation-side bookkeeping (last-message pointer, unread increments,
// unhide) in one atomic update.
func (s *Store) AppendMessage(ctx context.Context, conversationID primitive.ObjectID, sender models.ChatUser, content string, attachments []models.Attachment, replyTo primitive.ObjectID) (models.Message, error) {
	conv, err := s.convs.Get(ctx, conversationID)
	if err != nil {
		return models.Message{}, err
	}
	if !conv.HasParticipant(sender.ID.Hex()) {
		return models.Message{}, ErrNotParticipant
	}
	if conv.HiddenBy(sender.ID.Hex()) {
		return models.Message{}, ErrConversationHidden
	}

	msg := models.Message{
		ConversationID:   conversationID,
		SenderID:         sender.ID.Hex(),
		SenderExternalID: sender.ExternalID,
		Content:          content,
		Attachments:      attachments,
		ReplyTo:          replyTo,
	}
	if msg.Empty() {
		return models.Message{}, ErrEmptyMessage
	}
	if !replyTo.IsZero() {
		parent, err := s.msgs.Get(ctx, replyTo)
		if err != nil {
			return models.Message{}, err
		}
		if parent.ConversationID != conversationID {
			return models.Message{}, repositories.ErrMessageNotFound
		}
	}

	msg, err = s.msgs.Insert(ctx, msg)
	if err != nil {
		return models.Message{}, err
	}
	if err := s.convs.RecordMessage(ctx, conv, msg); err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

// MarkRead propagates a read receipt up to the given message and resets the
// reader's unread counter.
func (s *Store) MarkRead(ctx context.Context, conversationID primitive.ObjectID, chatUserID string, upto primitive.ObjectID) error {
	if _, err := s.Conversation(ctx, conversationID, chatUserID); err != nil {
		return err
	}
	if _, err := s.msgs.MarkReadUpTo(ctx, conversationID, chatUserID, upto); err != nil {
		return err
	}
	return s.convs.ResetUnread(ctx, conversationID, chatUserID)
}

// message fetches a message after checking the caller participates in the
// conversation it belongs to.
func (s *Store) message(ctx context.Context, conversationID primitive.ObjectID, chatUserID string, messageID primitive.ObjectID) (models.Message, error) {
	if _, err := s.Conversation(ctx, conversationID, chatUserID); err != nil {
		return models.Message{}, err
	}
	msg, err := s.msgs.Get(ctx, messageID)
	if err != nil {
		return models.Message{}, err
	}
	if msg.ConversationID != conversationID {
		return models.Message{}, repositories.ErrMessageNotFound
	}
	return msg, nil
}

// DeleteMessageForMe hides a message from the requesting user only. Other
// participants keep seeing it.
func (s *Store) DeleteMessageForMe(ctx context.Context, conversationID primitive.ObjectID, chatUserID string, messageID primitive.ObjectID) error {
	if _, err := s.message(ctx, conversationID, chatUserID, messageID); err != nil {
		return err
	}
	return s.msgs.HideForUser(ctx, messageID, chatUserID)
}

// DeleteMessageForAll tombstones a message for every participant. Only the
// sender may do this.
func (s *Store) DeleteMessageForAll(ctx context.Context, conversationID primitive.ObjectID, chatUserID string, messageID primitive.ObjectID) error {
	msg, err := s.message(ctx, conversationID, chatUserID, messageID)
	if err != nil {
		return err
	}
	if msg.SenderID != chatUserID {
		return ErrNotSender
	}
	return s.msgs.MarkDeletedForAll(ctx, messageID)
}

// EditMessage replaces a message's content. Only the sender may edit, the new
// content must be non-empty, and tombstoned messages stay dead.
func (s *Store) EditMessage(ctx context.Context, conversationID primitive.ObjectID, chatUserID string, messageID primitive.ObjectID, content string) (models.Message, error) {
	msg, err := s.message(ctx, conversationID, chatUserID, messageID)
	if err != nil {
		return models.Message{}, err
	}
	if msg.SenderID != chatUserID {
		return models.Message{}, ErrNotSender
	}
	if msg.Deleted {
		return models.Message{}, repositories.ErrMessageNotFound
	}
	if strings.TrimSpace(content) == "" {
		return models.Message{}, ErrEmptyMessage
	}
	if err := s.msgs.Edit(ctx, messageID, content); err != nil {
		return models.Message{}, err
	}
	msg.Content = content
	msg.Edited = true
	return msg, nil
}

// HideConversation soft-deletes the conversation for one user.
func (s *Store) HideConversation(ctx context.Context, conversationID primitive.ObjectID, chatUserID string) error {
	if _, err := s.Conversation(ctx, conversationID, chatUserID); err != nil {
		return err
	}
	return s.convs.Hide(ctx, conversationID, chatUserID)
}
