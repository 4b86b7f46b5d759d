package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"chat-sync/internal/api"
	"chat-sync/internal/models"
)

type APIClientMock struct {
	mock.Mock
}

func (m *APIClientMock) ListConversations(ctx context.Context) ([]models.Conversation, error) {
	args := m.Called(ctx)
	var convs []models.Conversation
	if val := args.Get(0); val != nil {
		convs = val.([]models.Conversation)
	}
	return convs, args.Error(1)
}

func (m *APIClientMock) ListDirectory(ctx context.Context) ([]models.DirectoryUser, error) {
	args := m.Called(ctx)
	var users []models.DirectoryUser
	if val := args.Get(0); val != nil {
		users = val.([]models.DirectoryUser)
	}
	return users, args.Error(1)
}

func (m *APIClientMock) FetchMessages(ctx context.Context, chatID string, beforeID int64, limit int) ([]models.Message, error) {
	args := m.Called(ctx, chatID, beforeID, limit)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *APIClientMock) StartDirect(ctx context.Context, otherID string) (models.Conversation, error) {
	args := m.Called(ctx, otherID)
	var conv models.Conversation
	if val := args.Get(0); val != nil {
		conv = val.(models.Conversation)
	}
	return conv, args.Error(1)
}

func (m *APIClientMock) CreateGroup(ctx context.Context, name string, kind models.ConversationKind, memberIDs []string) (models.Conversation, error) {
	args := m.Called(ctx, name, kind, memberIDs)
	var conv models.Conversation
	if val := args.Get(0); val != nil {
		conv = val.(models.Conversation)
	}
	return conv, args.Error(1)
}

func (m *APIClientMock) AddMembers(ctx context.Context, chatID string, userIDs []string) error {
	args := m.Called(ctx, chatID, userIDs)
	return args.Error(0)
}

func (m *APIClientMock) RemoveMember(ctx context.Context, chatID string, userID string) error {
	args := m.Called(ctx, chatID, userID)
	return args.Error(0)
}

func (m *APIClientMock) PromoteAdmin(ctx context.Context, chatID string, userID string) error {
	args := m.Called(ctx, chatID, userID)
	return args.Error(0)
}

func (m *APIClientMock) MarkRead(ctx context.Context, chatID string) error {
	args := m.Called(ctx, chatID)
	return args.Error(0)
}

func (m *APIClientMock) LeaveChat(ctx context.Context, chatID string) error {
	args := m.Called(ctx, chatID)
	return args.Error(0)
}

// EmitterRecorder captures emitted events for assertions.
type EmitterRecorder struct {
	mock.Mock
}

func (m *EmitterRecorder) Emit(eventType string, payload any) error {
	args := m.Called(eventType, payload)
	return args.Error(0)
}

var _ api.Client = (*APIClientMock)(nil)
var _ interface {
	Emit(eventType string, payload any) error
} = (*EmitterRecorder)(nil)
