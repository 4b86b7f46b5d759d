package membership

import (
	"context"
	"errors"
	"fmt"
	"log"

	"chat-sync/internal/api"
	"chat-sync/internal/models"
	"chat-sync/internal/observability"
	"chat-sync/internal/store"
	"chat-sync/internal/telemetry"
)

var (
	ErrUnknownChat = errors.New("unknown chat")
	ErrDirectChat  = errors.New("direct chats have no membership operations")
)

// Controller performs group/space membership and admin mutations.
//
// Mutations go to the server only; local state changes exclusively inside
// ApplyChatUpdate, the handler for the server-confirmed event, so a change
// takes the same path whether this user or another admin initiated it. The
// server is the security boundary; CanManage only drives UI affordances.
type Controller struct {
	selfID string
	api    api.Client
	store  *store.ConversationStore
	audit  *telemetry.AuditEmitter
}

// NewController builds a Controller for one session.
func NewController(selfID string, apiClient api.Client, convStore *store.ConversationStore, audit *telemetry.AuditEmitter) *Controller {
	return &Controller{selfID: selfID, api: apiClient, store: convStore, audit: audit}
}

// CanManage reports whether the local user should see admin affordances for a
// chat: group/space kind and a current admin seat.
func (c *Controller) CanManage(chatID string) bool {
	conv, ok := c.store.Conversation(chatID)
	if !ok || conv.Kind == models.KindDirect {
		return false
	}
	return conv.IsAdmin(c.selfID)
}

// AddMembers requests adding users to a group/space. Local state is untouched
// until the confirmed chat_updated arrives.
func (c *Controller) AddMembers(ctx context.Context, chatID string, userIDs []string) error {
	if err := c.checkManaged(chatID); err != nil {
		return err
	}
	if err := c.api.AddMembers(ctx, chatID, userIDs); err != nil {
		return fmt.Errorf("add members: %w", err)
	}
	c.audit.Emit(ctx, "INFO", "members added", chatID)
	return nil
}

// RemoveMember requests removing one user from a group/space.
func (c *Controller) RemoveMember(ctx context.Context, chatID, userID string) error {
	if err := c.checkManaged(chatID); err != nil {
		return err
	}
	if err := c.api.RemoveMember(ctx, chatID, userID); err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	c.audit.Emit(ctx, "INFO", "member removed", chatID)
	return nil
}

// PromoteAdmin requests granting an admin seat to a member.
func (c *Controller) PromoteAdmin(ctx context.Context, chatID, userID string) error {
	if err := c.checkManaged(chatID); err != nil {
		return err
	}
	if err := c.api.PromoteAdmin(ctx, chatID, userID); err != nil {
		return fmt.Errorf("promote admin: %w", err)
	}
	c.audit.Emit(ctx, "INFO", "admin promoted", chatID)
	return nil
}

// CreateGroup creates a group or space chat. The new conversation enters the
// local list directly from the creation response.
func (c *Controller) CreateGroup(ctx context.Context, name string, kind models.ConversationKind, memberIDs []string) (models.Conversation, error) {
	conv, err := c.api.CreateGroup(ctx, name, kind, memberIDs)
	if err != nil {
		return models.Conversation{}, fmt.Errorf("create group: %w", err)
	}
	c.store.UpsertConversation(conv)
	c.audit.Emit(ctx, "INFO", "group created", conv.ID)
	return conv, nil
}

// Leave requests leaving a group/space. The conversation disappears from the
// local list once the confirmed chat_updated no longer names this user.
func (c *Controller) Leave(ctx context.Context, chatID string) error {
	conv, ok := c.store.Conversation(chatID)
	if !ok {
		return ErrUnknownChat
	}
	if conv.Kind == models.KindDirect {
		return ErrDirectChat
	}
	if err := c.api.LeaveChat(ctx, chatID); err != nil {
		return fmt.Errorf("leave chat: %w", err)
	}
	c.audit.Emit(ctx, "INFO", "left chat", chatID)
	return nil
}

// ApplyChatUpdate applies a server-confirmed membership state, narrating each
// change with a system message. Admin entries outside the member set are
// discarded to keep admins a subset of members.
func (c *Controller) ApplyChatUpdate(p models.ChatUpdatedPayload) error {
	conv, ok := c.store.Conversation(p.ChatID)
	if !ok {
		observability.IncEventDropped("no_chat")
		return ErrUnknownChat
	}

	members := p.Members
	admins := intersect(p.Admins, members)
	if len(admins) != len(p.Admins) {
		log.Printf("membership dropped admins outside member set chat_id=%s", p.ChatID)
	}

	added := diff(members, conv.Members)
	removed := diff(conv.Members, members)
	promoted := diff(admins, conv.Admins)

	if !contains(members, c.selfID) {
		c.store.RemoveConversation(p.ChatID)
		return nil
	}

	conv.Members = members
	conv.Admins = admins
	if p.Kind != "" {
		conv.Kind = p.Kind
	}
	c.store.UpsertConversation(conv)

	for range added {
		c.store.AppendSystem(p.ChatID, "Member added")
	}
	for range removed {
		c.store.AppendSystem(p.ChatID, "Member removed")
	}
	for range promoted {
		c.store.AppendSystem(p.ChatID, "Admin promoted")
	}
	return nil
}

func (c *Controller) checkManaged(chatID string) error {
	conv, ok := c.store.Conversation(chatID)
	if !ok {
		return ErrUnknownChat
	}
	if conv.Kind == models.KindDirect {
		return ErrDirectChat
	}
	return nil
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func diff(a, b []string) []string {
	var out []string
	for _, v := range a {
		if !contains(b, v) {
			out = append(out, v)
		}
	}
	return out
}

func intersect(a, b []string) []string {
	out := make([]string, 0, len(a))
	for _, v := range a {
		if contains(b, v) {
			out = append(out, v)
		}
	}
	return out
}
