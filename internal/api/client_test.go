package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-sync/internal/models"
)

func TestFetchMessagesBuildsCursorQuery(t *testing.T) {
	var gotPath, gotCursor, gotLimit, gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotCursor = r.URL.Query().Get("cursor")
		gotLimit = r.URL.Query().Get("limit")
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"messages": []models.Message{{ID: 40, ChatID: "c1", SenderID: "u2", Text: "hi"}},
		})
	}))
	defer server.Close()

	client := NewRestClient(server.URL, "tok123")
	msgs, err := client.FetchMessages(context.Background(), "c1", 41, 30)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, int64(40), msgs[0].ID)
	assert.Equal(t, "/chats/c1/messages", gotPath)
	assert.Equal(t, "41", gotCursor)
	assert.Equal(t, "30", gotLimit)
	assert.Equal(t, "Bearer tok123", gotAuth)
}

func TestFetchMessagesOmitsCursorForLatestPage(t *testing.T) {
	var hasCursor bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hasCursor = r.URL.Query().Has("cursor")
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"messages": []models.Message{}})
	}))
	defer server.Close()

	client := NewRestClient(server.URL, "tok")
	_, err := client.FetchMessages(context.Background(), "c1", 0, 30)
	require.NoError(t, err)
	assert.False(t, hasCursor)
}

func TestListConversations(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/conversations", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"conversations": []models.Conversation{
				{ID: "c1", Kind: models.KindDirect, Members: []string{"u1", "u2"}},
				{ID: "g1", Kind: models.KindGroup, Name: "ops"},
			},
		})
	}))
	defer server.Close()

	client := NewRestClient(server.URL, "tok")
	convs, err := client.ListConversations(context.Background())
	require.NoError(t, err)
	require.Len(t, convs, 2)
	assert.Equal(t, models.KindGroup, convs[1].Kind)
}

func TestForbiddenMapsToSentinel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	client := NewRestClient(server.URL, "tok")
	err := client.RemoveMember(context.Background(), "g1", "u7")
	require.ErrorIs(t, err, ErrForbidden)
}

func TestNotFoundMapsToSentinel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewRestClient(server.URL, "tok")
	_, err := client.StartDirect(context.Background(), "ghost")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCreateGroupPostsBody(t *testing.T) {
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/chats", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(models.Conversation{ID: "g2", Kind: models.KindSpace, Name: "eng"})
	}))
	defer server.Close()

	client := NewRestClient(server.URL, "tok")
	conv, err := client.CreateGroup(context.Background(), "eng", models.KindSpace, []string{"u2", "u3"})
	require.NoError(t, err)
	assert.Equal(t, "g2", conv.ID)
	assert.Equal(t, "eng", body["name"])
	assert.Equal(t, "space", body["type"])
}
