package chat

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"chat-gateway/internal/mocks"
	"chat-gateway/internal/models"
	"chat-gateway/internal/repositories"
)

func chatUser(externalID int) models.ChatUser {
	return models.ChatUser{ID: primitive.NewObjectID(), ExternalID: externalID}
}

func TestAppendMessageRecordsConversationState(t *testing.T) {
	convs := new(mocks.ConversationRepositoryMock)
	msgs := new(mocks.MessageRepositoryMock)
	store := NewStore(convs, msgs)

	sender := chatUser(1)
	convID := primitive.NewObjectID()
	conv := models.Conversation{ID: convID, Kind: models.ConversationDirect, Participants: []string{sender.ID.Hex(), "peer"}}

	stored := models.Message{ID: primitive.NewObjectID(), ConversationID: convID, SenderID: sender.ID.Hex(), Content: "hi"}

	convs.On("Get", mock.Anything, convID).Return(conv, nil).Once()
	msgs.On("Insert", mock.Anything, mock.MatchedBy(func(m models.Message) bool {
		return m.Content == "hi" && m.SenderID == sender.ID.Hex() && m.SenderExternalID == 1
	})).Return(stored, nil).Once()
	convs.On("RecordMessage", mock.Anything, conv, stored).Return(nil).Once()

	msg, err := store.AppendMessage(context.Background(), convID, sender, "hi", nil, primitive.NilObjectID)
	require.NoError(t, err)
	require.Equal(t, stored.ID, msg.ID)
	convs.AssertExpectations(t)
	msgs.AssertExpectations(t)
}

func TestAppendMessageRejectsNonParticipant(t *testing.T) {
	convs := new(mocks.ConversationRepositoryMock)
	msgs := new(mocks.MessageRepositoryMock)
	store := NewStore(convs, msgs)

	sender := chatUser(1)
	convID := primitive.NewObjectID()
	convs.On("Get", mock.Anything, convID).Return(models.Conversation{ID: convID, Participants: []string{"other"}}, nil).Once()

	_, err := store.AppendMessage(context.Background(), convID, sender, "hi", nil, primitive.NilObjectID)
	require.ErrorIs(t, err, ErrNotParticipant)
	msgs.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
}

func TestAppendMessageRejectsHiddenConversation(t *testing.T) {
	convs := new(mocks.ConversationRepositoryMock)
	store := NewStore(convs, new(mocks.MessageRepositoryMock))

	sender := chatUser(1)
	convID := primitive.NewObjectID()
	convs.On("Get", mock.Anything, convID).Return(models.Conversation{
		ID:           convID,
		Participants: []string{sender.ID.Hex()},
		HiddenFor:    []string{sender.ID.Hex()},
	}, nil).Once()

	_, err := store.AppendMessage(context.Background(), convID, sender, "hi", nil, primitive.NilObjectID)
	require.ErrorIs(t, err, ErrConversationHidden)
}

func TestAppendMessageRejectsEmptyPayload(t *testing.T) {
	convs := new(mocks.ConversationRepositoryMock)
	msgs := new(mocks.MessageRepositoryMock)
	store := NewStore(convs, msgs)

	sender := chatUser(1)
	convID := primitive.NewObjectID()
	convs.On("Get", mock.Anything, convID).Return(models.Conversation{ID: convID, Participants: []string{sender.ID.Hex()}}, nil).Once()

	_, err := store.AppendMessage(context.Background(), convID, sender, "   ", nil, primitive.NilObjectID)
	require.ErrorIs(t, err, ErrEmptyMessage)
	msgs.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
}

func TestAppendMessageValidatesReplyTarget(t *testing.T) {
	convs := new(mocks.ConversationRepositoryMock)
	msgs := new(mocks.MessageRepositoryMock)
	store := NewStore(convs, msgs)

	sender := chatUser(1)
	convID := primitive.NewObjectID()
	replyTo := primitive.NewObjectID()
	conv := models.Conversation{ID: convID, Participants: []string{sender.ID.Hex()}}

	convs.On("Get", mock.Anything, convID).Return(conv, nil)

	// Reply target living in another conversation is rejected.
	msgs.On("Get", mock.Anything, replyTo).Return(models.Message{ID: replyTo, ConversationID: primitive.NewObjectID()}, nil).Once()
	_, err := store.AppendMessage(context.Background(), convID, sender, "hi", nil, replyTo)
	require.ErrorIs(t, err, repositories.ErrMessageNotFound)
	msgs.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)

	// Unknown reply target is rejected.
	missing := primitive.NewObjectID()
	msgs.On("Get", mock.Anything, missing).Return(models.Message{}, repositories.ErrMessageNotFound).Once()
	_, err = store.AppendMessage(context.Background(), convID, sender, "hi", nil, missing)
	require.ErrorIs(t, err, repositories.ErrMessageNotFound)

	// A target in the same conversation goes through.
	msgs.On("Get", mock.Anything, replyTo).Return(models.Message{ID: replyTo, ConversationID: convID}, nil).Once()
	stored := models.Message{ID: primitive.NewObjectID(), ConversationID: convID, SenderID: sender.ID.Hex(), Content: "hi", ReplyTo: replyTo}
	msgs.On("Insert", mock.Anything, mock.Anything).Return(stored, nil).Once()
	convs.On("RecordMessage", mock.Anything, conv, stored).Return(nil).Once()
	msg, err := store.AppendMessage(context.Background(), convID, sender, "hi", nil, replyTo)
	require.NoError(t, err)
	assert.Equal(t, replyTo, msg.ReplyTo)
}

func TestDeleteMessageForMeHidesOnlyForRequester(t *testing.T) {
	convs := new(mocks.ConversationRepositoryMock)
	msgs := new(mocks.MessageRepositoryMock)
	store := NewStore(convs, msgs)

	convID := primitive.NewObjectID()
	msgID := primitive.NewObjectID()
	convs.On("Get", mock.Anything, convID).Return(models.Conversation{ID: convID, Participants: []string{"u", "peer"}}, nil).Once()
	msgs.On("Get", mock.Anything, msgID).Return(models.Message{ID: msgID, ConversationID: convID, SenderID: "peer"}, nil).Once()
	msgs.On("HideForUser", mock.Anything, msgID, "u").Return(nil).Once()

	require.NoError(t, store.DeleteMessageForMe(context.Background(), convID, "u", msgID))
	msgs.AssertExpectations(t)
}

func TestDeleteMessageForMeRejectsForeignMessage(t *testing.T) {
	convs := new(mocks.ConversationRepositoryMock)
	msgs := new(mocks.MessageRepositoryMock)
	store := NewStore(convs, msgs)

	convID := primitive.NewObjectID()
	msgID := primitive.NewObjectID()
	convs.On("Get", mock.Anything, convID).Return(models.Conversation{ID: convID, Participants: []string{"u"}}, nil).Once()
	msgs.On("Get", mock.Anything, msgID).Return(models.Message{ID: msgID, ConversationID: primitive.NewObjectID()}, nil).Once()

	err := store.DeleteMessageForMe(context.Background(), convID, "u", msgID)
	require.ErrorIs(t, err, repositories.ErrMessageNotFound)
	msgs.AssertNotCalled(t, "HideForUser", mock.Anything, mock.Anything, mock.Anything)
}

func TestDeleteMessageForAllSenderOnly(t *testing.T) {
	convs := new(mocks.ConversationRepositoryMock)
	msgs := new(mocks.MessageRepositoryMock)
	store := NewStore(convs, msgs)

	convID := primitive.NewObjectID()
	msgID := primitive.NewObjectID()
	conv := models.Conversation{ID: convID, Participants: []string{"sender", "other"}}
	convs.On("Get", mock.Anything, convID).Return(conv, nil)
	msgs.On("Get", mock.Anything, msgID).Return(models.Message{ID: msgID, ConversationID: convID, SenderID: "sender"}, nil)

	err := store.DeleteMessageForAll(context.Background(), convID, "other", msgID)
	require.ErrorIs(t, err, ErrNotSender)
	msgs.AssertNotCalled(t, "MarkDeletedForAll", mock.Anything, mock.Anything)

	msgs.On("MarkDeletedForAll", mock.Anything, msgID).Return(nil).Once()
	require.NoError(t, store.DeleteMessageForAll(context.Background(), convID, "sender", msgID))
	msgs.AssertExpectations(t)
}

func TestEditMessage(t *testing.T) {
	convs := new(mocks.ConversationRepositoryMock)
	msgs := new(mocks.MessageRepositoryMock)
	store := NewStore(convs, msgs)

	convID := primitive.NewObjectID()
	msgID := primitive.NewObjectID()
	conv := models.Conversation{ID: convID, Participants: []string{"sender", "other"}}
	convs.On("Get", mock.Anything, convID).Return(conv, nil)
	msgs.On("Get", mock.Anything, msgID).Return(models.Message{ID: msgID, ConversationID: convID, SenderID: "sender", Content: "before"}, nil)

	_, err := store.EditMessage(context.Background(), convID, "other", msgID, "after")
	require.ErrorIs(t, err, ErrNotSender)

	_, err = store.EditMessage(context.Background(), convID, "sender", msgID, "   ")
	require.ErrorIs(t, err, ErrEmptyMessage)
	msgs.AssertNotCalled(t, "Edit", mock.Anything, mock.Anything, mock.Anything)

	msgs.On("Edit", mock.Anything, msgID, "after").Return(nil).Once()
	got, err := store.EditMessage(context.Background(), convID, "sender", msgID, "after")
	require.NoError(t, err)
	assert.Equal(t, "after", got.Content)
	assert.True(t, got.Edited)
}

func TestEditMessageRejectsTombstone(t *testing.T) {
	convs := new(mocks.ConversationRepositoryMock)
	msgs := new(mocks.MessageRepositoryMock)
	store := NewStore(convs, msgs)

	convID := primitive.NewObjectID()
	msgID := primitive.NewObjectID()
	convs.On("Get", mock.Anything, convID).Return(models.Conversation{ID: convID, Participants: []string{"sender"}}, nil).Once()
	msgs.On("Get", mock.Anything, msgID).Return(models.Message{ID: msgID, ConversationID: convID, SenderID: "sender", Deleted: true}, nil).Once()

	_, err := store.EditMessage(context.Background(), convID, "sender", msgID, "after")
	require.ErrorIs(t, err, repositories.ErrMessageNotFound)
	msgs.AssertNotCalled(t, "Edit", mock.Anything, mock.Anything, mock.Anything)
}

func TestListMessagesResetsUnreadCounter(t *testing.T) {
	convs := new(mocks.ConversationRepositoryMock)
	msgs := new(mocks.MessageRepositoryMock)
	store := NewStore(convs, msgs)

	convID := primitive.NewObjectID()
	reader := "reader"
	page := []models.Message{{ID: primitive.NewObjectID(), ConversationID: convID}}

	convs.On("Get", mock.Anything, convID).Return(models.Conversation{ID: convID, Participants: []string{reader}}, nil).Once()
	msgs.On("ListPage", mock.Anything, convID, reader, DefaultPageSize, primitive.NilObjectID).Return(page, nil).Once()
	convs.On("ResetUnread", mock.Anything, convID, reader).Return(nil).Once()

	got, err := store.ListMessages(context.Background(), convID, reader, 0, primitive.NilObjectID)
	require.NoError(t, err)
	assert.Equal(t, page, got)
	convs.AssertExpectations(t)
	msgs.AssertExpectations(t)
}

func TestListMessagesRejectsNonParticipant(t *testing.T) {
	convs := new(mocks.ConversationRepositoryMock)
	msgs := new(mocks.MessageRepositoryMock)
	store := NewStore(convs, msgs)

	convID := primitive.NewObjectID()
	convs.On("Get", mock.Anything, convID).Return(models.Conversation{ID: convID, Participants: []string{"someone"}}, nil).Once()

	_, err := store.ListMessages(context.Background(), convID, "outsider", 10, primitive.NilObjectID)
	require.ErrorIs(t, err, ErrNotParticipant)
	msgs.AssertNotCalled(t, "ListPage", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestMarkReadPropagatesAndResets(t *testing.T) {
	convs := new(mocks.ConversationRepositoryMock)
	msgs := new(mocks.MessageRepositoryMock)
	store := NewStore(convs, msgs)

	convID := primitive.NewObjectID()
	upto := primitive.NewObjectID()
	reader := "reader"

	convs.On("Get", mock.Anything, convID).Return(models.Conversation{ID: convID, Participants: []string{reader}}, nil).Once()
	msgs.On("MarkReadUpTo", mock.Anything, convID, reader, upto).Return(int64(3), nil).Once()
	convs.On("ResetUnread", mock.Anything, convID, reader).Return(nil).Once()

	require.NoError(t, store.MarkRead(context.Background(), convID, reader, upto))
	convs.AssertExpectations(t)
	msgs.AssertExpectations(t)
}

func TestHideConversation(t *testing.T) {
	convs := new(mocks.ConversationRepositoryMock)
	store := NewStore(convs, new(mocks.MessageRepositoryMock))

	convID := primitive.NewObjectID()
	convs.On("Get", mock.Anything, convID).Return(models.Conversation{ID: convID, Participants: []string{"u"}}, nil).Once()
	convs.On("Hide", mock.Anything, convID, "u").Return(nil).Once()

	require.NoError(t, store.HideConversation(context.Background(), convID, "u"))
	convs.AssertExpectations(t)
}
