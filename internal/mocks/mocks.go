package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"chat-gateway/internal/models"
)

type ConversationRepositoryMock struct {
	mock.Mock
}

func (m *ConversationRepositoryMock) FindOrCreateDirect(ctx context.Context, a, b models.ChatUser) (models.Conversation, error) {
	args := m.Called(ctx, a, b)
	var conv models.Conversation
	if val := args.Get(0); val != nil {
		conv = val.(models.Conversation)
	}
	return conv, args.Error(1)
}

func (m *ConversationRepositoryMock) CreateGroup(ctx context.Context, name string, creator models.ChatUser, members []models.ChatUser) (models.Conversation, error) {
	args := m.Called(ctx, name, creator, members)
	var conv models.Conversation
	if val := args.Get(0); val != nil {
		conv = val.(models.Conversation)
	}
	return conv, args.Error(1)
}

func (m *ConversationRepositoryMock) Get(ctx context.Context, id primitive.ObjectID) (models.Conversation, error) {
	args := m.Called(ctx, id)
	var conv models.Conversation
	if val := args.Get(0); val != nil {
		conv = val.(models.Conversation)
	}
	return conv, args.Error(1)
}

func (m *ConversationRepositoryMock) ListForUser(ctx context.Context, chatUserID string) ([]models.Conversation, error) {
	args := m.Called(ctx, chatUserID)
	var convs []models.Conversation
	if val := args.Get(0); val != nil {
		convs = val.([]models.Conversation)
	}
	return convs, args.Error(1)
}

func (m *ConversationRepositoryMock) CoParticipants(ctx context.Context, chatUserID string) ([]string, error) {
	args := m.Called(ctx, chatUserID)
	var ids []string
	if val := args.Get(0); val != nil {
		ids = val.([]string)
	}
	return ids, args.Error(1)
}

func (m *ConversationRepositoryMock) RecordMessage(ctx context.Context, conv models.Conversation, msg models.Message) error {
	args := m.Called(ctx, conv, msg)
	return args.Error(0)
}

func (m *ConversationRepositoryMock) ResetUnread(ctx context.Context, id primitive.ObjectID, chatUserID string) error {
	args := m.Called(ctx, id, chatUserID)
	return args.Error(0)
}

func (m *ConversationRepositoryMock) Hide(ctx context.Context, id primitive.ObjectID, chatUserID string) error {
	args := m.Called(ctx, id, chatUserID)
	return args.Error(0)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) Insert(ctx context.Context, msg models.Message) (models.Message, error) {
	args := m.Called(ctx, msg)
	var stored models.Message
	if val := args.Get(0); val != nil {
		stored = val.(models.Message)
	}
	return stored, args.Error(1)
}

func (m *MessageRepositoryMock) Get(ctx context.Context, id primitive.ObjectID) (models.Message, error) {
	args := m.Called(ctx, id)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) ListPage(ctx context.Context, conversationID primitive.ObjectID, viewer string, limit int, before primitive.ObjectID) ([]models.Message, error) {
	args := m.Called(ctx, conversationID, viewer, limit, before)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) MarkReadUpTo(ctx context.Context, conversationID primitive.ObjectID, chatUserID string, upto primitive.ObjectID) (int64, error) {
	args := m.Called(ctx, conversationID, chatUserID, upto)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MessageRepositoryMock) HideForUser(ctx context.Context, id primitive.ObjectID, chatUserID string) error {
	args := m.Called(ctx, id, chatUserID)
	return args.Error(0)
}

func (m *MessageRepositoryMock) MarkDeletedForAll(ctx context.Context, id primitive.ObjectID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MessageRepositoryMock) Edit(ctx context.Context, id primitive.ObjectID, content string) error {
	args := m.Called(ctx, id, content)
	return args.Error(0)
}

type ChatUserRepositoryMock struct {
	mock.Mock
}

func (m *ChatUserRepositoryMock) FindByEmail(ctx context.Context, email string) (models.ChatUser, error) {
	args := m.Called(ctx, email)
	var user models.ChatUser
	if val := args.Get(0); val != nil {
		user = val.(models.ChatUser)
	}
	return user, args.Error(1)
}

func (m *ChatUserRepositoryMock) Create(ctx context.Context, user models.ChatUser) (models.ChatUser, error) {
	args := m.Called(ctx, user)
	var created models.ChatUser
	if val := args.Get(0); val != nil {
		created = val.(models.ChatUser)
	}
	return created, args.Error(1)
}

func (m *ChatUserRepositoryMock) SyncProfile(ctx context.Context, id primitive.ObjectID, username, avatar string) error {
	args := m.Called(ctx, id, username, avatar)
	return args.Error(0)
}

func (m *ChatUserRepositoryMock) SetStatus(ctx context.Context, id primitive.ObjectID, status string) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *ChatUserRepositoryMock) Touch(ctx context.Context, id primitive.ObjectID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type UserRepositoryMock struct {
	mock.Mock
}

func (m *UserRepositoryMock) FindByID(ctx context.Context, userID int) (models.User, error) {
	args := m.Called(ctx, userID)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserRepositoryMock) FindByIDs(ctx context.Context, userIDs []int) ([]models.User, error) {
	args := m.Called(ctx, userIDs)
	var users []models.User
	if val := args.Get(0); val != nil {
		users = val.([]models.User)
	}
	return users, args.Error(1)
}

type TokenVerifierMock struct {
	mock.Mock
}

func (m *TokenVerifierMock) Verify(token string) (int, error) {
	args := m.Called(token)
	return args.Int(0), args.Error(1)
}

type StorageMock struct {
	mock.Mock
}

func (m *StorageMock) WriteFile(data []byte, destPath string) error {
	args := m.Called(data, destPath)
	return args.Error(0)
}

func (m *StorageMock) ExtractVideoThumbnail(ctx context.Context, srcPath, destPath string, atSeconds float64, size string) error {
	args := m.Called(ctx, srcPath, destPath, atSeconds, size)
	return args.Error(0)
}

type PublisherMock struct {
	mock.Mock
}

func (m *PublisherMock) Publish(ctx context.Context, routingKey string, event any) error {
	args := m.Called(ctx, routingKey, event)
	return args.Error(0)
}

func (m *PublisherMock) Close() error {
	args := m.Called()
	return args.Error(0)
}
