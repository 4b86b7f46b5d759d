package store

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"chat-sync/internal/api"
	"chat-sync/internal/models"
	"chat-sync/internal/observability"
)

var (
	ErrUnknownChat        = errors.New("unknown chat")
	ErrPaginationInFlight = errors.New("pagination already in flight")
	ErrNothingOlderToLoad = errors.New("no older messages to load")
)

// Emitter sends one event over the persistent connection.
type Emitter interface {
	Emit(eventType string, payload any) error
}

// reconcileWindow bounds how far back an optimistic entry is searched for.
const reconcileWindow = 5

// ConversationStore is the single source of truth for conversation metadata
// and per-chat message logs. All UI surfaces read from it; server-confirmed
// state enters only through the Apply/Append methods.
type ConversationStore struct {
	selfID   string
	pageSize int
	api      api.Client
	emitter  Emitter

	mu            sync.RWMutex
	conversations map[string]*models.Conversation
	logs          map[string][]models.Message
	seenIDs       map[string]map[int64]bool
	hasMore       map[string]bool
	loading       map[string]bool
	active        string
	tempSeq       int64
}

// NewConversationStore builds an empty store for one user session.
func NewConversationStore(selfID string, pageSize int, apiClient api.Client, emitter Emitter) *ConversationStore {
	return &ConversationStore{
		selfID:        selfID,
		pageSize:      pageSize,
		api:           apiClient,
		emitter:       emitter,
		conversations: make(map[string]*models.Conversation),
		logs:          make(map[string][]models.Message),
		seenIDs:       make(map[string]map[int64]bool),
		hasMore:       make(map[string]bool),
		loading:       make(map[string]bool),
	}
}

// SetConversations replaces the conversation list from an authoritative fetch.
// Message logs and pagination state survive so an open pane keeps its history.
func (s *ConversationStore) SetConversations(convs []models.Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations = make(map[string]*models.Conversation, len(convs))
	for i := range convs {
		c := convs[i]
		s.conversations[c.ID] = &c
	}
}

// UpsertConversation inserts or replaces one conversation record.
func (s *ConversationStore) UpsertConversation(conv models.Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations[conv.ID] = &conv
}

// RemoveConversation drops a chat from the local view. Used after a confirmed
// leave, or for the local-only removal of a direct chat.
func (s *ConversationStore) RemoveConversation(chatID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conversations, chatID)
	delete(s.logs, chatID)
	delete(s.seenIDs, chatID)
	delete(s.hasMore, chatID)
	delete(s.loading, chatID)
	if s.active == chatID {
		s.active = ""
	}
}

// Conversation returns a copy of one conversation record.
func (s *ConversationStore) Conversation(chatID string) (models.Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.conversations[chatID]
	if !ok {
		return models.Conversation{}, false
	}
	return *c, true
}

// Conversations returns a copy of every conversation record.
func (s *ConversationStore) Conversations() []models.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Conversation, 0, len(s.conversations))
	for _, c := range s.conversations {
		out = append(out, *c)
	}
	return out
}

// SetActive records which conversation the user is looking at. The active
// chat never accrues unread, and stale pagination results for other chats are
// discarded at apply time.
func (s *ConversationStore) SetActive(chatID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = chatID
	if c, ok := s.conversations[chatID]; ok {
		c.Unread = 0
	}
}

// Active returns the currently active chat id, "" when none.
func (s *ConversationStore) Active() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// Send appends an optimistic entry and emits send_message. The optimistic
// entry stays pending if the emit fails; the caller surfaces the error.
func (s *ConversationStore) Send(chatID, text string, attachment *models.Attachment) (models.Message, error) {
	s.mu.Lock()
	if _, ok := s.conversations[chatID]; !ok {
		s.mu.Unlock()
		return models.Message{}, ErrUnknownChat
	}

	s.tempSeq++
	msg := models.Message{
		TempID:        s.tempSeq,
		CorrelationID: uuid.NewString(),
		ChatID:        chatID,
		SenderID:      s.selfID,
		Text:          text,
		Attachment:    attachment,
		Pending:       true,
	}
	s.logs[chatID] = append(s.logs[chatID], msg)
	s.touchLocked(chatID, msg)
	s.mu.Unlock()

	err := s.emitter.Emit(models.EventSendMessage, models.SendMessagePayload{
		ChatID:        chatID,
		SenderID:      s.selfID,
		Text:          text,
		Attachment:    attachment,
		CorrelationID: msg.CorrelationID,
	})
	return msg, err
}

// AppendIncoming applies one server-confirmed message. The matching
// optimistic entry, if any, is replaced in place; duplicates and messages for
// unknown chats are dropped.
func (s *ConversationStore) AppendIncoming(chatID string, msg models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[chatID]
	if !ok {
		log.Printf("store dropped message for unknown chat chat_id=%s message_id=%d", chatID, msg.ID)
		observability.IncEventDropped("no_chat")
		return
	}
	if s.seenIDs[chatID][msg.ID] {
		observability.IncEventDropped("duplicate")
		return
	}

	msg.ChatID = chatID
	msg.Pending = false

	if msg.SenderID == s.selfID {
		if i, method, found := s.findOptimisticLocked(chatID, msg); found {
			s.logs[chatID][i] = msg
			s.rememberIDLocked(chatID, msg.ID)
			s.touchLocked(chatID, msg)
			observability.IncReconciliation(method)
			return
		}
	}

	s.logs[chatID] = append(s.logs[chatID], msg)
	s.rememberIDLocked(chatID, msg.ID)
	s.touchLocked(chatID, msg)

	if msg.SenderID != s.selfID && !msg.System && s.active != chatID {
		conv.Unread++
	}
}

// AppendSystem appends transient membership narration to the log. System
// entries never reconcile, never count as unread, and never reach the server.
func (s *ConversationStore) AppendSystem(chatID, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conversations[chatID]; !ok {
		return
	}
	s.tempSeq++
	s.logs[chatID] = append(s.logs[chatID], models.Message{
		TempID: s.tempSeq,
		ChatID: chatID,
		Text:   text,
		SentAt: time.Now(),
		System: true,
	})
}

// LoadInitial replaces the log with the most recent page.
func (s *ConversationStore) LoadInitial(ctx context.Context, chatID string) error {
	msgs, err := s.api.FetchMessages(ctx, chatID, 0, s.pageSize)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs[chatID] = msgs
	ids := make(map[int64]bool, len(msgs))
	for _, m := range msgs {
		if m.ID > 0 {
			ids[m.ID] = true
		}
	}
	s.seenIDs[chatID] = ids
	s.hasMore[chatID] = len(msgs) == s.pageSize
	return nil
}

// LoadOlder fetches the page preceding the oldest loaded message and prepends
// it. Only one call per chat may be in flight; a failed fetch changes
// nothing, and a page arriving after the view switched away is discarded.
func (s *ConversationStore) LoadOlder(ctx context.Context, chatID string) error {
	s.mu.Lock()
	if s.loading[chatID] {
		s.mu.Unlock()
		return ErrPaginationInFlight
	}
	if !s.hasMore[chatID] {
		s.mu.Unlock()
		return ErrNothingOlderToLoad
	}
	cursor := s.oldestIDLocked(chatID)
	if cursor == 0 {
		s.mu.Unlock()
		return ErrNothingOlderToLoad
	}
	s.loading[chatID] = true
	s.mu.Unlock()

	msgs, err := s.api.FetchMessages(ctx, chatID, cursor, s.pageSize)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading[chatID] = false
	if err != nil {
		return err
	}
	if s.active != chatID {
		log.Printf("store discarded stale page chat_id=%s size=%d", chatID, len(msgs))
		observability.IncEventDropped("stale_page")
		return nil
	}

	s.hasMore[chatID] = len(msgs) == s.pageSize

	fresh := make([]models.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.ID > 0 && s.seenIDs[chatID][m.ID] {
			continue
		}
		fresh = append(fresh, m)
		s.rememberIDLocked(chatID, m.ID)
	}
	s.logs[chatID] = append(fresh, s.logs[chatID]...)
	return nil
}

// HasMore reports whether older history may remain for a chat.
func (s *ConversationStore) HasMore(chatID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hasMore[chatID]
}

// Messages returns a copy of one chat's loaded log, oldest first.
func (s *ConversationStore) Messages(chatID string) []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Message, len(s.logs[chatID]))
	copy(out, s.logs[chatID])
	return out
}

// MarkRead clears local unread bookkeeping and asks the server to persist the
// receipt, then announces it on the connection for the other party.
func (s *ConversationStore) MarkRead(ctx context.Context, chatID string) error {
	s.mu.Lock()
	if c, ok := s.conversations[chatID]; ok {
		c.Unread = 0
	}
	s.mu.Unlock()

	if err := s.api.MarkRead(ctx, chatID); err != nil {
		return err
	}
	return s.emitter.Emit(models.EventMessagesRead, models.MessagesReadPayload{
		ChatID:   chatID,
		ReaderID: s.selfID,
	})
}

// ApplyReadReceipt flips Read on the local user's own messages once the other
// party has seen them. Messages authored by others are never touched.
func (s *ConversationStore) ApplyReadReceipt(chatID, readerID string) {
	if readerID == s.selfID {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.logs[chatID]
	for i := range msgs {
		if msgs[i].SenderID == s.selfID && !msgs[i].Read {
			msgs[i].Read = true
		}
	}
}

func (s *ConversationStore) findOptimisticLocked(chatID string, msg models.Message) (int, string, bool) {
	msgs := s.logs[chatID]
	start := len(msgs) - reconcileWindow
	if start < 0 {
		start = 0
	}
	if msg.CorrelationID != "" {
		for i := len(msgs) - 1; i >= 0; i-- {
			if msgs[i].Pending && msgs[i].CorrelationID == msg.CorrelationID {
				return i, "correlation", true
			}
		}
	}
	for i := start; i < len(msgs); i++ {
		if msgs[i].Pending && msgs[i].SenderID == msg.SenderID && msgs[i].Text == msg.Text {
			return i, "heuristic", true
		}
	}
	return 0, "", false
}

func (s *ConversationStore) oldestIDLocked(chatID string) int64 {
	for _, m := range s.logs[chatID] {
		if m.ID > 0 {
			return m.ID
		}
	}
	return 0
}

func (s *ConversationStore) rememberIDLocked(chatID string, id int64) {
	if id <= 0 {
		return
	}
	if s.seenIDs[chatID] == nil {
		s.seenIDs[chatID] = make(map[int64]bool)
	}
	s.seenIDs[chatID][id] = true
}

// touchLocked refreshes the preview line and activity timestamp.
func (s *ConversationStore) touchLocked(chatID string, msg models.Message) {
	c, ok := s.conversations[chatID]
	if !ok || msg.System {
		return
	}
	preview := msg.Text
	if preview == "" && msg.Attachment != nil {
		preview = msg.Attachment.Name
	}
	c.LastMessage = preview
	if msg.SentAt.IsZero() {
		c.LastActivity = time.Now()
	} else {
		c.LastActivity = msg.SentAt
	}
}
