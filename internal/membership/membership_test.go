package membership

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat-sync/internal/mocks"
	"chat-sync/internal/models"
	"chat-sync/internal/store"
)

func newTestController(t *testing.T) (*Controller, *mocks.APIClientMock, *store.ConversationStore) {
	t.Helper()
	apiMock := new(mocks.APIClientMock)
	emitter := new(mocks.EmitterRecorder)
	convStore := store.NewConversationStore("u1", 20, apiMock, emitter)
	convStore.SetConversations([]models.Conversation{
		{ID: "g1", Kind: models.KindGroup, Name: "ops", Members: []string{"u1", "u2", "u7"}, Admins: []string{"u1"}},
		{ID: "c1", Kind: models.KindDirect, Members: []string{"u1", "u2"}},
	})
	return NewController("u1", apiMock, convStore, nil), apiMock, convStore
}

func TestRemoveMemberMutatesOnlyOnConfirmation(t *testing.T) {
	ctrl, apiMock, convStore := newTestController(t)
	apiMock.On("RemoveMember", mock.Anything, "g1", "u7").Return(nil).Once()

	require.NoError(t, ctrl.RemoveMember(context.Background(), "g1", "u7"))

	conv, _ := convStore.Conversation("g1")
	assert.Contains(t, conv.Members, "u7", "local state waits for the confirmed event")
	assert.Empty(t, convStore.Messages("g1"))

	// Server confirms; the same path applies changes from any admin.
	require.NoError(t, ctrl.ApplyChatUpdate(models.ChatUpdatedPayload{
		ChatID:  "g1",
		Members: []string{"u1", "u2"},
		Admins:  []string{"u1"},
		Kind:    models.KindGroup,
	}))

	conv, _ = convStore.Conversation("g1")
	assert.NotContains(t, conv.Members, "u7")

	log := convStore.Messages("g1")
	require.Len(t, log, 1)
	assert.Equal(t, "Member removed", log[0].Text)
	assert.True(t, log[0].System)
	apiMock.AssertExpectations(t)
}

func TestApplyChatUpdateNarratesAddsAndPromotions(t *testing.T) {
	ctrl, _, convStore := newTestController(t)

	require.NoError(t, ctrl.ApplyChatUpdate(models.ChatUpdatedPayload{
		ChatID:  "g1",
		Members: []string{"u1", "u2", "u7", "u9"},
		Admins:  []string{"u1", "u2"},
	}))

	texts := []string{}
	for _, m := range convStore.Messages("g1") {
		texts = append(texts, m.Text)
	}
	assert.Equal(t, []string{"Member added", "Admin promoted"}, texts)
}

func TestApplyChatUpdateKeepsAdminsWithinMembers(t *testing.T) {
	ctrl, _, convStore := newTestController(t)

	require.NoError(t, ctrl.ApplyChatUpdate(models.ChatUpdatedPayload{
		ChatID:  "g1",
		Members: []string{"u1", "u2", "u7"},
		Admins:  []string{"u1", "u99"},
	}))

	conv, _ := convStore.Conversation("g1")
	assert.Equal(t, []string{"u1"}, conv.Admins)
}

func TestDemotionHidesAdminAffordances(t *testing.T) {
	ctrl, _, _ := newTestController(t)
	require.True(t, ctrl.CanManage("g1"))

	require.NoError(t, ctrl.ApplyChatUpdate(models.ChatUpdatedPayload{
		ChatID:  "g1",
		Members: []string{"u1", "u2", "u7"},
		Admins:  []string{"u2"},
	}))

	assert.False(t, ctrl.CanManage("g1"))
}

func TestSelfRemovalDropsConversation(t *testing.T) {
	ctrl, _, convStore := newTestController(t)

	require.NoError(t, ctrl.ApplyChatUpdate(models.ChatUpdatedPayload{
		ChatID:  "g1",
		Members: []string{"u2", "u7"},
		Admins:  []string{"u2"},
	}))

	_, ok := convStore.Conversation("g1")
	assert.False(t, ok)
}

func TestApplyChatUpdateUnknownChat(t *testing.T) {
	ctrl, _, _ := newTestController(t)
	err := ctrl.ApplyChatUpdate(models.ChatUpdatedPayload{ChatID: "ghost", Members: []string{"u1"}})
	require.ErrorIs(t, err, ErrUnknownChat)
}

func TestRejectedMutationLeavesStateUntouched(t *testing.T) {
	ctrl, apiMock, convStore := newTestController(t)
	apiMock.On("AddMembers", mock.Anything, "g1", []string{"u5"}).Return(assert.AnError).Once()

	err := ctrl.AddMembers(context.Background(), "g1", []string{"u5"})
	require.Error(t, err)

	conv, _ := convStore.Conversation("g1")
	assert.NotContains(t, conv.Members, "u5")
	assert.Empty(t, convStore.Messages("g1"))
}

func TestMembershipOperationsRejectDirectChats(t *testing.T) {
	ctrl, _, _ := newTestController(t)

	require.ErrorIs(t, ctrl.AddMembers(context.Background(), "c1", []string{"u5"}), ErrDirectChat)
	require.ErrorIs(t, ctrl.RemoveMember(context.Background(), "c1", "u2"), ErrDirectChat)
	require.ErrorIs(t, ctrl.PromoteAdmin(context.Background(), "c1", "u2"), ErrDirectChat)
	require.ErrorIs(t, ctrl.Leave(context.Background(), "c1"), ErrDirectChat)
	assert.False(t, ctrl.CanManage("c1"))
}

func TestCreateGroupEntersLocalList(t *testing.T) {
	ctrl, apiMock, convStore := newTestController(t)
	created := models.Conversation{ID: "g2", Kind: models.KindSpace, Name: "eng", Members: []string{"u1", "u3"}, Admins: []string{"u1"}}
	apiMock.On("CreateGroup", mock.Anything, "eng", models.KindSpace, []string{"u3"}).Return(created, nil).Once()

	conv, err := ctrl.CreateGroup(context.Background(), "eng", models.KindSpace, []string{"u3"})
	require.NoError(t, err)
	assert.Equal(t, "g2", conv.ID)

	stored, ok := convStore.Conversation("g2")
	require.True(t, ok)
	assert.True(t, stored.IsAdmin("u1"))
}
