package telemetry

import (
	"context"
	"log"
	"time"
)

// Publisher delivers audit events to the message bus.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
	Close() error
}

// AuditEmitter records sync-core lifecycle events (connects, reconnects,
// membership mutations, dropped anomalies) for the office suite's audit
// trail. Safe to use with a nil receiver or nil publisher.
type AuditEmitter struct {
	publisher   Publisher
	routingKey  string
	service     string
	environment string
	userID      string
}

// AuditEnvelope is the audit event wire format.
type AuditEnvelope struct {
	SchemaVersion int          `json:"schema_version"`
	EventType     string       `json:"event_type"`
	OccurredAt    string       `json:"occurred_at"`
	Service       string       `json:"service"`
	Environment   string       `json:"environment"`
	UserID        string       `json:"user_id"`
	Payload       AuditPayload `json:"payload"`
}

// AuditPayload carries the event detail.
type AuditPayload struct {
	Level  string `json:"level"`
	Text   string `json:"text"`
	ChatID string `json:"chat_id,omitempty"`
}

// NewAuditEmitter builds an emitter bound to one user session.
func NewAuditEmitter(publisher Publisher, routingKey, service, environment, userID string) *AuditEmitter {
	return &AuditEmitter{
		publisher:   publisher,
		routingKey:  routingKey,
		service:     service,
		environment: environment,
		userID:      userID,
	}
}

// Emit publishes one audit event. Failures are logged, never fatal.
func (e *AuditEmitter) Emit(ctx context.Context, level, text, chatID string) {
	if e == nil || e.publisher == nil {
		return
	}

	envelope := AuditEnvelope{
		SchemaVersion: 1,
		EventType:     "chat_sync_audit",
		OccurredAt:    time.Now().UTC().Format(time.RFC3339Nano),
		Service:       e.service,
		Environment:   e.environment,
		UserID:        e.userID,
		Payload: AuditPayload{
			Level:  level,
			Text:   text,
			ChatID: chatID,
		},
	}

	if err := e.publisher.Publish(ctx, e.routingKey, envelope); err != nil {
		log.Printf("audit publish failed: %v", err)
	}
}
