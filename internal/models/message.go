package models

import "time"

// AttachmentKind is the type of a message attachment.
type AttachmentKind string

const (
	AttachmentImage AttachmentKind = "image"
	AttachmentFile  AttachmentKind = "file"
)

// Attachment describes a non-text message body.
type Attachment struct {
	Kind AttachmentKind `json:"kind"`
	URL  string         `json:"url"`
	Name string         `json:"name"`
}

// Message is one entry in a conversation log.
//
// A message created optimistically carries TempID and Pending=true until the
// server echo replaces it; ID stays 0 while pending. CorrelationID is minted
// client-side at send time and preferred for reconciliation when the server
// echoes it back.
type Message struct {
	ID            int64       `json:"id"`
	TempID        int64       `json:"temp_id,omitempty"`
	CorrelationID string      `json:"correlation_id,omitempty"`
	ChatID        string      `json:"chat_id"`
	SenderID      string      `json:"sender_id"`
	Text          string      `json:"text"`
	Attachment    *Attachment `json:"attachment,omitempty"`
	SentAt        time.Time   `json:"time"`
	Pending       bool        `json:"pending,omitempty"`
	Read          bool        `json:"read"`
	System        bool        `json:"system,omitempty"`
}
