package identity

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"chat-gateway/internal/mocks"
	"chat-gateway/internal/models"
	"chat-gateway/internal/repositories"
)

func TestResolveExistingChatUser(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	chatUsers := new(mocks.ChatUserRepositoryMock)
	bridge := NewBridge(users, chatUsers, nil)

	existing := models.ChatUser{ID: primitive.NewObjectID(), ExternalID: 1, Email: "a@pets.dev"}
	users.On("FindByID", mock.Anything, 1).Return(models.User{ID: 1, Email: "a@pets.dev"}, nil).Once()
	chatUsers.On("FindByEmail", mock.Anything, "a@pets.dev").Return(existing, nil).Once()

	got, err := bridge.Resolve(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, existing.ID, got.ID)
	chatUsers.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	chatUsers.AssertNotCalled(t, "SyncProfile", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestResolveRefreshesDriftedProfile(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	chatUsers := new(mocks.ChatUserRepositoryMock)
	bridge := NewBridge(users, chatUsers, nil)

	stale := models.ChatUser{ID: primitive.NewObjectID(), ExternalID: 1, Email: "a@pets.dev", Username: "old-name", Avatar: "old.png"}
	users.On("FindByID", mock.Anything, 1).Return(models.User{ID: 1, Email: "a@pets.dev", Username: "new-name", Avatar: "new.png"}, nil).Once()
	chatUsers.On("FindByEmail", mock.Anything, "a@pets.dev").Return(stale, nil).Once()
	chatUsers.On("SyncProfile", mock.Anything, stale.ID, "new-name", "new.png").Return(nil).Once()

	got, err := bridge.Resolve(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "new-name", got.Username)
	assert.Equal(t, "new.png", got.Avatar)
	chatUsers.AssertExpectations(t)
}

func TestResolveSkipsSyncWhenProfileMatches(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	chatUsers := new(mocks.ChatUserRepositoryMock)
	bridge := NewBridge(users, chatUsers, nil)

	current := models.ChatUser{ID: primitive.NewObjectID(), ExternalID: 1, Email: "a@pets.dev", Username: "same", Avatar: "same.png"}
	users.On("FindByID", mock.Anything, 1).Return(models.User{ID: 1, Email: "a@pets.dev", Username: "same", Avatar: "same.png"}, nil).Once()
	chatUsers.On("FindByEmail", mock.Anything, "a@pets.dev").Return(current, nil).Once()

	_, err := bridge.Resolve(context.Background(), 1)
	require.NoError(t, err)
	chatUsers.AssertNotCalled(t, "SyncProfile", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestResolveCreatesShadowRecordOnFirstContact(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	chatUsers := new(mocks.ChatUserRepositoryMock)
	bridge := NewBridge(users, chatUsers, nil)

	users.On("FindByID", mock.Anything, 2).Return(models.User{ID: 2, Email: "b@pets.dev", Username: "bob"}, nil).Once()
	chatUsers.On("FindByEmail", mock.Anything, "b@pets.dev").Return(models.ChatUser{}, repositories.ErrChatUserNotFound).Once()

	created := models.ChatUser{ID: primitive.NewObjectID(), ExternalID: 2, Email: "b@pets.dev"}
	chatUsers.On("Create", mock.Anything, mock.MatchedBy(func(u models.ChatUser) bool {
		return u.ExternalID == 2 && u.Email == "b@pets.dev" && u.Status == models.PresenceOffline
	})).Return(created, nil).Once()

	got, err := bridge.Resolve(context.Background(), 2)
	require.NoError(t, err)
	require.Equal(t, created.ID, got.ID)
	chatUsers.AssertExpectations(t)
}

func TestResolveCreatesOnWrappedNotFound(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	chatUsers := new(mocks.ChatUserRepositoryMock)
	bridge := NewBridge(users, chatUsers, nil)

	users.On("FindByID", mock.Anything, 5).Return(models.User{ID: 5, Email: "e@pets.dev"}, nil).Once()
	wrapped := fmt.Errorf("find shadow record: %w", repositories.ErrChatUserNotFound)
	chatUsers.On("FindByEmail", mock.Anything, "e@pets.dev").Return(models.ChatUser{}, wrapped).Once()

	created := models.ChatUser{ID: primitive.NewObjectID(), ExternalID: 5, Email: "e@pets.dev"}
	chatUsers.On("Create", mock.Anything, mock.Anything).Return(created, nil).Once()

	got, err := bridge.Resolve(context.Background(), 5)
	require.NoError(t, err)
	require.Equal(t, created.ID, got.ID)
}

func TestResolveDuplicateKeyFallsBackToExisting(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	chatUsers := new(mocks.ChatUserRepositoryMock)
	bridge := NewBridge(users, chatUsers, nil)

	dupErr := mongo.WriteException{WriteErrors: mongo.WriteErrors{{Code: 11000}}}
	winner := models.ChatUser{ID: primitive.NewObjectID(), ExternalID: 3, Email: "c@pets.dev"}

	users.On("FindByID", mock.Anything, 3).Return(models.User{ID: 3, Email: "c@pets.dev"}, nil).Once()
	chatUsers.On("FindByEmail", mock.Anything, "c@pets.dev").Return(models.ChatUser{}, repositories.ErrChatUserNotFound).Once()
	chatUsers.On("Create", mock.Anything, mock.Anything).Return(models.ChatUser{}, dupErr).Once()
	chatUsers.On("FindByEmail", mock.Anything, "c@pets.dev").Return(winner, nil).Once()

	got, err := bridge.Resolve(context.Background(), 3)
	require.NoError(t, err)
	require.Equal(t, winner.ID, got.ID)
	chatUsers.AssertExpectations(t)
}

func TestResolveUserNotFound(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	bridge := NewBridge(users, new(mocks.ChatUserRepositoryMock), nil)

	users.On("FindByID", mock.Anything, 9).Return(models.User{}, repositories.ErrUserNotFound).Once()

	_, err := bridge.Resolve(context.Background(), 9)
	require.ErrorIs(t, err, repositories.ErrUserNotFound)
}

func TestDisplayProfilesBulk(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	bridge := NewBridge(users, new(mocks.ChatUserRepositoryMock), nil)

	users.On("FindByIDs", mock.Anything, []int{1, 2}).Return([]models.User{
		{ID: 1, Username: "alice"},
		{ID: 2, Username: "bob"},
	}, nil).Once()

	profiles, err := bridge.DisplayProfiles(context.Background(), []int{1, 2})
	require.NoError(t, err)
	require.Len(t, profiles, 2)
	assert.Equal(t, "alice", profiles[1].Username)
	assert.Equal(t, "bob", profiles[2].Username)
}
