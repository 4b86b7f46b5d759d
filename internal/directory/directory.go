package directory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"chat-sync/internal/api"
	"chat-sync/internal/models"
	"chat-sync/internal/store"
)

// EntryKind separates live conversations from not-yet-started contacts.
type EntryKind string

const (
	EntryConversation EntryKind = "conversation"
	EntryStartable    EntryKind = "startable"
)

// Entry is one row of the merged contact list.
type Entry struct {
	Kind         EntryKind
	ChatID       string
	UserID       string
	DisplayName  string
	Unread       int
	LastMessage  string
	LastActivity time.Time
	Online       bool
}

// Directory merges the authoritative conversation list with the company
// directory into one sorted, searchable list.
type Directory struct {
	selfID string
	api    api.Client
	store  *store.ConversationStore

	mu    sync.RWMutex
	users []models.DirectoryUser
}

// New builds a Directory over the session's conversation store.
func New(selfID string, apiClient api.Client, convStore *store.ConversationStore) *Directory {
	return &Directory{selfID: selfID, api: apiClient, store: convStore}
}

// Refresh reloads the directory user list.
func (d *Directory) Refresh(ctx context.Context) error {
	users, err := d.api.ListDirectory(ctx)
	if err != nil {
		return fmt.Errorf("refresh directory: %w", err)
	}
	d.mu.Lock()
	d.users = users
	d.mu.Unlock()
	return nil
}

// Entries returns the merged, sorted contact list.
func (d *Directory) Entries() []Entry {
	d.mu.RLock()
	users := make([]models.DirectoryUser, len(d.users))
	copy(users, d.users)
	d.mu.RUnlock()
	return Merge(d.store.Conversations(), users, d.selfID)
}

// Start creates or fetches the direct conversation behind a startable entry
// and promotes it in place: the conversation enters the store, so the next
// merge shows one conversation row instead of the contact row.
func (d *Directory) Start(ctx context.Context, userID string) (models.Conversation, error) {
	conv, err := d.api.StartDirect(ctx, userID)
	if err != nil {
		return models.Conversation{}, fmt.Errorf("start direct chat: %w", err)
	}
	if existing, ok := d.store.Conversation(conv.ID); ok {
		return existing, nil
	}
	d.store.UpsertConversation(conv)
	return conv, nil
}

// Merge produces one list in which every conversation appears once, every
// directory user without a direct conversation appears as a startable entry,
// and a user with both forms appears only as the conversation. Rows with
// activity sort first, newest first; cold contacts follow alphabetically.
func Merge(convs []models.Conversation, users []models.DirectoryUser, selfID string) []Entry {
	nameByUser := make(map[string]string, len(users))
	for _, u := range users {
		nameByUser[u.ID] = u.Name
	}

	entries := make([]Entry, 0, len(convs)+len(users))
	directPeer := make(map[string]bool, len(convs))

	for _, c := range convs {
		e := Entry{
			Kind:         EntryConversation,
			ChatID:       c.ID,
			DisplayName:  c.Name,
			Unread:       c.Unread,
			LastMessage:  c.LastMessage,
			LastActivity: c.LastActivity,
		}
		if c.Kind == models.KindDirect {
			peer := c.OtherParty(selfID)
			directPeer[peer] = true
			e.UserID = peer
			if name, ok := nameByUser[peer]; ok && name != "" {
				e.DisplayName = name
			}
		}
		entries = append(entries, e)
	}

	for _, u := range users {
		if u.ID == selfID || directPeer[u.ID] {
			continue
		}
		entries = append(entries, Entry{
			Kind:        EntryStartable,
			UserID:      u.ID,
			DisplayName: u.Name,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		aActive, bActive := !a.LastActivity.IsZero(), !b.LastActivity.IsZero()
		if aActive != bActive {
			return aActive
		}
		if aActive {
			return a.LastActivity.After(b.LastActivity)
		}
		return a.DisplayName < b.DisplayName
	})
	return entries
}
