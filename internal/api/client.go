package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"

	"chat-sync/internal/models"
	"chat-sync/internal/observability"
)

var (
	ErrForbidden = errors.New("operation forbidden")
	ErrNotFound  = errors.New("resource not found")
)

// Client is the REST collaborator surface the sync core consumes. The server
// is authoritative for everything behind it.
type Client interface {
	ListConversations(ctx context.Context) ([]models.Conversation, error)
	ListDirectory(ctx context.Context) ([]models.DirectoryUser, error)
	FetchMessages(ctx context.Context, chatID string, beforeID int64, limit int) ([]models.Message, error)
	StartDirect(ctx context.Context, otherID string) (models.Conversation, error)
	CreateGroup(ctx context.Context, name string, kind models.ConversationKind, memberIDs []string) (models.Conversation, error)
	AddMembers(ctx context.Context, chatID string, userIDs []string) error
	RemoveMember(ctx context.Context, chatID string, userID string) error
	PromoteAdmin(ctx context.Context, chatID string, userID string) error
	MarkRead(ctx context.Context, chatID string) error
	LeaveChat(ctx context.Context, chatID string) error
}

// RestClient is a resty-backed Client.
type RestClient struct {
	http *resty.Client
}

// NewRestClient builds a RestClient with the session bearer token attached.
func NewRestClient(baseURL, token string) *RestClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetAuthToken(token).
		SetTimeout(15 * time.Second).
		SetHeader("Accept", "application/json")
	return &RestClient{http: client}
}

// ListConversations returns every chat the user participates in.
func (c *RestClient) ListConversations(ctx context.Context) ([]models.Conversation, error) {
	var body struct {
		Conversations []models.Conversation `json:"conversations"`
	}
	err := c.get(ctx, "list_conversations", "/conversations", nil, &body)
	return body.Conversations, err
}

// ListDirectory returns every addressable user.
func (c *RestClient) ListDirectory(ctx context.Context) ([]models.DirectoryUser, error) {
	var body struct {
		Users []models.DirectoryUser `json:"users"`
	}
	err := c.get(ctx, "list_directory", "/users", nil, &body)
	return body.Users, err
}

// FetchMessages returns up to limit messages strictly older than beforeID,
// newest last. beforeID 0 fetches the latest page.
func (c *RestClient) FetchMessages(ctx context.Context, chatID string, beforeID int64, limit int) ([]models.Message, error) {
	params := map[string]string{"limit": strconv.Itoa(limit)}
	if beforeID > 0 {
		params["cursor"] = strconv.FormatInt(beforeID, 10)
	}
	var body struct {
		Messages []models.Message `json:"messages"`
	}
	err := c.get(ctx, "fetch_messages", fmt.Sprintf("/chats/%s/messages", chatID), params, &body)
	return body.Messages, err
}

// StartDirect creates or fetches the direct chat with otherID.
func (c *RestClient) StartDirect(ctx context.Context, otherID string) (models.Conversation, error) {
	var conv models.Conversation
	err := c.post(ctx, "start_direct", "/chats/direct", map[string]string{"other_id": otherID}, &conv)
	return conv, err
}

// CreateGroup creates a group or space chat with the initial member set.
func (c *RestClient) CreateGroup(ctx context.Context, name string, kind models.ConversationKind, memberIDs []string) (models.Conversation, error) {
	req := map[string]any{"name": name, "type": kind, "member_ids": memberIDs}
	var conv models.Conversation
	err := c.post(ctx, "create_group", "/chats", req, &conv)
	return conv, err
}

// AddMembers requests adding users to a group/space chat.
func (c *RestClient) AddMembers(ctx context.Context, chatID string, userIDs []string) error {
	return c.post(ctx, "add_members", fmt.Sprintf("/chats/%s/members", chatID), map[string]any{"user_ids": userIDs}, nil)
}

// RemoveMember requests removing one user from a group/space chat.
func (c *RestClient) RemoveMember(ctx context.Context, chatID string, userID string) error {
	return c.do(ctx, "remove_member", http.MethodDelete, fmt.Sprintf("/chats/%s/members/%s", chatID, userID), nil, nil)
}

// PromoteAdmin requests granting admin to a member.
func (c *RestClient) PromoteAdmin(ctx context.Context, chatID string, userID string) error {
	return c.post(ctx, "promote_admin", fmt.Sprintf("/chats/%s/admins/%s", chatID, userID), nil, nil)
}

// MarkRead marks the whole chat read for the caller.
func (c *RestClient) MarkRead(ctx context.Context, chatID string) error {
	return c.post(ctx, "mark_read", fmt.Sprintf("/chats/%s/read", chatID), nil, nil)
}

// LeaveChat removes the caller from a group/space chat.
func (c *RestClient) LeaveChat(ctx context.Context, chatID string) error {
	return c.post(ctx, "leave_chat", fmt.Sprintf("/chats/%s/leave", chatID), nil, nil)
}

func (c *RestClient) get(ctx context.Context, operation, path string, params map[string]string, out any) error {
	return c.do(ctx, operation, http.MethodGet, path, params, out)
}

func (c *RestClient) post(ctx context.Context, operation, path string, body any, out any) error {
	ctx, span := otel.Tracer("chat-sync/api").Start(ctx, "api."+operation)
	defer span.End()

	start := time.Now()
	req := c.http.R().SetContext(ctx)
	if body != nil {
		req.SetBody(body)
	}
	if out != nil {
		req.SetResult(out)
	}
	resp, err := req.Post(path)
	observability.ObserveAPIRequest(operation, time.Since(start))
	return c.check(operation, resp, err)
}

func (c *RestClient) do(ctx context.Context, operation, method, path string, params map[string]string, out any) error {
	ctx, span := otel.Tracer("chat-sync/api").Start(ctx, "api."+operation)
	defer span.End()

	start := time.Now()
	req := c.http.R().SetContext(ctx)
	if params != nil {
		req.SetQueryParams(params)
	}
	if out != nil {
		req.SetResult(out)
	}
	resp, err := req.Execute(method, path)
	observability.ObserveAPIRequest(operation, time.Since(start))
	return c.check(operation, resp, err)
}

func (c *RestClient) check(operation string, resp *resty.Response, err error) error {
	if err != nil {
		observability.IncAPIError(operation)
		return fmt.Errorf("%s: %w", operation, err)
	}
	switch {
	case resp.IsSuccess():
		return nil
	case resp.StatusCode() == http.StatusForbidden:
		observability.IncAPIError(operation)
		return fmt.Errorf("%s: %w", operation, ErrForbidden)
	case resp.StatusCode() == http.StatusNotFound:
		observability.IncAPIError(operation)
		return fmt.Errorf("%s: %w", operation, ErrNotFound)
	default:
		observability.IncAPIError(operation)
		return fmt.Errorf("%s: unexpected status %d", operation, resp.StatusCode())
	}
}

var _ Client = (*RestClient)(nil)
