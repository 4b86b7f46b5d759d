package models

import "time"

// ConversationKind distinguishes the three chat flavors.
type ConversationKind string

const (
	KindDirect ConversationKind = "direct"
	KindGroup  ConversationKind = "group"
	KindSpace  ConversationKind = "space"
)

// Conversation is the client-side view of a chat. Membership and admin sets
// change only through server-confirmed chat_updated events.
type Conversation struct {
	ID           string           `json:"chat_id"`
	Kind         ConversationKind `json:"type"`
	Name         string           `json:"name"`
	Members      []string         `json:"members"`
	Admins       []string         `json:"admins"`
	LastMessage  string           `json:"last_message"`
	LastActivity time.Time        `json:"last_activity"`
	Unread       int              `json:"unread"`
}

// HasMember reports whether userID belongs to the conversation.
func (c Conversation) HasMember(userID string) bool {
	for _, id := range c.Members {
		if id == userID {
			return true
		}
	}
	return false
}

// IsAdmin reports whether userID is an admin. Meaningful for group/space only.
func (c Conversation) IsAdmin(userID string) bool {
	for _, id := range c.Admins {
		if id == userID {
			return true
		}
	}
	return false
}

// OtherParty returns the peer of a direct conversation, or "" for group/space.
func (c Conversation) OtherParty(selfID string) string {
	if c.Kind != KindDirect {
		return ""
	}
	for _, id := range c.Members {
		if id != selfID {
			return id
		}
	}
	return ""
}
