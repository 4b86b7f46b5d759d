package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"chat-sync/internal/api"
	"chat-sync/internal/config"
	"chat-sync/internal/directory"
	"chat-sync/internal/membership"
	"chat-sync/internal/models"
	"chat-sync/internal/observability"
	"chat-sync/internal/presence"
	"chat-sync/internal/store"
	"chat-sync/internal/telemetry"
	"chat-sync/internal/transport"
	"chat-sync/internal/typing"
)

// Session owns one user's sync state: the transport, the stores, and the
// inbound event routing. Construct on login, Close on logout; nothing here is
// global.
type Session struct {
	selfID    string
	transport *transport.Transport
	api       api.Client
	audit     *telemetry.AuditEmitter

	Store      *store.ConversationStore
	Presence   *presence.Tracker
	Typing     *typing.Coordinator
	Membership *membership.Controller
	Directory  *directory.Directory
}

// New assembles a Session and registers every inbound event handler.
func New(cfg *config.Config, apiClient api.Client, tr *transport.Transport, audit *telemetry.AuditEmitter) *Session {
	convStore := store.NewConversationStore(cfg.UserID, cfg.PageSize, apiClient, tr)
	s := &Session{
		selfID:     cfg.UserID,
		transport:  tr,
		api:        apiClient,
		audit:      audit,
		Store:      convStore,
		Presence:   presence.NewTracker(),
		Typing:     typing.NewCoordinator(cfg.UserID, cfg.TypingWindow, tr),
		Membership: membership.NewController(cfg.UserID, apiClient, convStore, audit),
		Directory:  directory.New(cfg.UserID, apiClient, convStore),
	}
	s.registerHandlers()
	tr.OnReconnect(s.onReconnect)
	return s
}

// Start connects the transport and loads the initial conversation and
// directory state.
func (s *Session) Start(ctx context.Context) error {
	if err := s.transport.Connect(ctx); err != nil {
		return fmt.Errorf("connect transport: %w", err)
	}
	s.audit.Emit(ctx, "INFO", "session connected", "")
	if err := s.RefreshConversations(ctx); err != nil {
		return err
	}
	if err := s.Directory.Refresh(ctx); err != nil {
		return err
	}
	return nil
}

// Close leaves the active room and tears the transport down.
func (s *Session) Close(ctx context.Context) error {
	if active := s.Store.Active(); active != "" {
		_ = s.transport.Leave(active)
	}
	s.audit.Emit(ctx, "INFO", "session closed", "")
	return s.transport.Close()
}

// RefreshConversations replaces the conversation list from the server.
func (s *Session) RefreshConversations(ctx context.Context) error {
	convs, err := s.api.ListConversations(ctx)
	if err != nil {
		return fmt.Errorf("list conversations: %w", err)
	}
	s.Store.SetConversations(convs)
	return nil
}

// OpenConversation switches the active chat: leaves the previous room, clears
// typing indicators, joins the new room, loads the latest page and marks it
// read.
func (s *Session) OpenConversation(ctx context.Context, chatID string) error {
	if prev := s.Store.Active(); prev != "" && prev != chatID {
		_ = s.transport.Leave(prev)
	}
	s.Store.SetActive(chatID)
	s.Typing.ConversationChanged()

	if err := s.transport.Join(chatID); err != nil && !errors.Is(err, transport.ErrNotConnected) {
		return err
	}
	if err := s.Store.LoadInitial(ctx, chatID); err != nil {
		return err
	}
	return s.Store.MarkRead(ctx, chatID)
}

// SendMessage sends a draft from the active typing context: the optimistic
// entry appears immediately and the typing window ends.
func (s *Session) SendMessage(chatID, text string, attachment *models.Attachment) (models.Message, error) {
	msg, err := s.Store.Send(chatID, text, attachment)
	s.Typing.MessageSent(chatID)
	return msg, err
}

func (s *Session) registerHandlers() {
	s.transport.Handle(models.EventReceiveMessage, func(data json.RawMessage) {
		var p models.ReceiveMessagePayload
		if !decode(data, &p, func() error { return p.Validate() }) {
			return
		}
		s.Store.AppendIncoming(p.ChatID, p.Message)
	})

	s.transport.Handle(models.EventTyping, func(data json.RawMessage) {
		var p models.TypingPayload
		if !decode(data, &p, func() error { return p.Validate() }) {
			return
		}
		s.Typing.HandleTyping(p.ChatID, p.UserID)
	})

	s.transport.Handle(models.EventStopTyping, func(data json.RawMessage) {
		var p models.TypingPayload
		if !decode(data, &p, func() error { return p.Validate() }) {
			return
		}
		s.Typing.HandleStopTyping(p.ChatID, p.UserID)
	})

	s.transport.Handle(models.EventOnlineUsers, func(data json.RawMessage) {
		var p models.OnlineUsersPayload
		if !decode(data, &p, nil) {
			return
		}
		s.Presence.Snapshot(p.UserIDs)
	})

	s.transport.Handle(models.EventUserOnline, func(data json.RawMessage) {
		var p models.UserPresencePayload
		if !decode(data, &p, func() error { return p.Validate() }) {
			return
		}
		s.Presence.MarkOnline(p.UserID)
	})

	s.transport.Handle(models.EventUserOffline, func(data json.RawMessage) {
		var p models.UserPresencePayload
		if !decode(data, &p, func() error { return p.Validate() }) {
			return
		}
		s.Presence.MarkOffline(p.UserID)
	})

	s.transport.Handle(models.EventChatUpdated, func(data json.RawMessage) {
		var p models.ChatUpdatedPayload
		if !decode(data, &p, func() error { return p.Validate() }) {
			return
		}
		if err := s.Membership.ApplyChatUpdate(p); errors.Is(err, membership.ErrUnknownChat) {
			// Probably a chat created while we were not looking; refetch
			// the list off the event path so handlers stay short.
			go s.refreshQuietly()
		}
	})

	s.transport.Handle(models.EventMessagesRead, func(data json.RawMessage) {
		var p models.MessagesReadPayload
		if !decode(data, &p, func() error { return p.Validate() }) {
			return
		}
		s.Store.ApplyReadReceipt(p.ChatID, p.ReaderID)
	})
}

// onReconnect runs after every successful reconnect: room subscriptions did
// not survive, so re-join the active chat and refresh state that may have
// moved while the connection was down.
func (s *Session) onReconnect() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	observability.IncEventReceived("reconnect")
	s.audit.Emit(ctx, "WARN", "session reconnected", "")

	if err := s.RefreshConversations(ctx); err != nil {
		log.Printf("session refresh after reconnect failed: %v", err)
	}
	if active := s.Store.Active(); active != "" {
		if err := s.transport.Join(active); err != nil {
			log.Printf("session re-join after reconnect failed chat_id=%s: %v", active, err)
		}
		if err := s.Store.LoadInitial(ctx, active); err != nil {
			log.Printf("session reload after reconnect failed chat_id=%s: %v", active, err)
		}
	}
}

func (s *Session) refreshQuietly() {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := s.RefreshConversations(ctx); err != nil {
		log.Printf("session conversation refresh failed: %v", err)
	}
}

// decode unmarshals an event payload and validates it, dropping the event on
// any failure. A bad real-time event must never take the session down.
func decode(data json.RawMessage, out any, validate func() error) bool {
	if err := json.Unmarshal(data, out); err != nil {
		log.Printf("session dropped invalid payload: %v", err)
		observability.IncEventDropped("invalid")
		return false
	}
	if validate != nil {
		if err := validate(); err != nil {
			log.Printf("session dropped invalid payload: %v", err)
			observability.IncEventDropped("invalid")
			return false
		}
	}
	return true
}
