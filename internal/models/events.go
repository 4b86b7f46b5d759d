package models

import (
	"encoding/json"
	"errors"
)

// Event names carried on the persistent connection.
const (
	EventJoinChat       = "join_chat"
	EventLeaveChat      = "leave_chat"
	EventSendMessage    = "send_message"
	EventReceiveMessage = "receive_message"
	EventTyping         = "typing"
	EventStopTyping     = "stop_typing"
	EventOnlineUsers    = "online_users"
	EventUserOnline     = "user_online"
	EventUserOffline    = "user_offline"
	EventChatUpdated    = "chat_updated"
	EventMessagesRead   = "messages_read"
)

// Frame is the wire envelope for every event in either direction.
type Frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

var ErrInvalidPayload = errors.New("invalid event payload")

// RoomPayload carries join_chat / leave_chat.
type RoomPayload struct {
	ChatID string `json:"chat_id"`
}

// SendMessagePayload is the outbound send_message body.
type SendMessagePayload struct {
	ChatID        string      `json:"chat_id"`
	SenderID      string      `json:"sender_id"`
	Text          string      `json:"text"`
	Attachment    *Attachment `json:"attachment,omitempty"`
	CorrelationID string      `json:"correlation_id,omitempty"`
}

// ReceiveMessagePayload is the inbound receive_message body.
type ReceiveMessagePayload struct {
	ChatID  string  `json:"chat_id"`
	Message Message `json:"message"`
}

func (p ReceiveMessagePayload) Validate() error {
	if p.ChatID == "" || p.Message.ID <= 0 || p.Message.SenderID == "" {
		return ErrInvalidPayload
	}
	return nil
}

// TypingPayload carries typing / stop_typing in both directions.
type TypingPayload struct {
	ChatID string `json:"chat_id"`
	UserID string `json:"user_id"`
}

func (p TypingPayload) Validate() error {
	if p.ChatID == "" || p.UserID == "" {
		return ErrInvalidPayload
	}
	return nil
}

// OnlineUsersPayload is the full presence snapshot.
type OnlineUsersPayload struct {
	UserIDs []string `json:"user_ids"`
}

// UserPresencePayload carries user_online / user_offline deltas.
type UserPresencePayload struct {
	UserID string `json:"user_id"`
}

func (p UserPresencePayload) Validate() error {
	if p.UserID == "" {
		return ErrInvalidPayload
	}
	return nil
}

// ChatUpdatedPayload is the server-confirmed membership/admin state of a chat.
type ChatUpdatedPayload struct {
	ChatID  string           `json:"chat_id"`
	Members []string         `json:"members"`
	Admins  []string         `json:"admins"`
	Kind    ConversationKind `json:"type"`
}

func (p ChatUpdatedPayload) Validate() error {
	if p.ChatID == "" {
		return ErrInvalidPayload
	}
	return nil
}

// MessagesReadPayload carries read receipts in both directions.
type MessagesReadPayload struct {
	ChatID   string `json:"chat_id"`
	ReaderID string `json:"reader_id"`
}

func (p MessagesReadPayload) Validate() error {
	if p.ChatID == "" || p.ReaderID == "" {
		return ErrInvalidPayload
	}
	return nil
}
