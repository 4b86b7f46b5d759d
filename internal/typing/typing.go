package typing

import (
	"sync"
	"time"

	"chat-sync/internal/models"
)

// Emitter sends one event over the persistent connection.
type Emitter interface {
	Emit(eventType string, payload any) error
}

// Coordinator debounces outbound typing signals and tracks inbound ones.
//
// Outbound: the first keystroke in a chat emits typing; the stop_typing
// follows once the window elapses without further keystrokes, or immediately
// when the message is sent. Inbound: a per-chat boolean with no identity
// resolution beyond "someone is typing".
type Coordinator struct {
	selfID  string
	window  time.Duration
	emitter Emitter

	mu       sync.Mutex
	timers   map[string]*time.Timer
	incoming map[string]bool
}

// NewCoordinator builds a Coordinator with the given idle window.
func NewCoordinator(selfID string, window time.Duration, emitter Emitter) *Coordinator {
	if window <= 0 {
		window = 2 * time.Second
	}
	return &Coordinator{
		selfID:   selfID,
		window:   window,
		emitter:  emitter,
		timers:   make(map[string]*time.Timer),
		incoming: make(map[string]bool),
	}
}

// NotifyTyping records a keystroke in chatID. Emits typing at most once per
// idle window; every call pushes the trailing stop_typing further out.
func (c *Coordinator) NotifyTyping(chatID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if timer, ok := c.timers[chatID]; ok {
		timer.Reset(c.window)
		return
	}

	_ = c.emitter.Emit(models.EventTyping, models.TypingPayload{ChatID: chatID, UserID: c.selfID})
	c.timers[chatID] = time.AfterFunc(c.window, func() {
		c.stop(chatID)
	})
}

// MessageSent ends the typing window early because the draft went out.
func (c *Coordinator) MessageSent(chatID string) {
	c.mu.Lock()
	timer, ok := c.timers[chatID]
	c.mu.Unlock()
	if ok {
		timer.Stop()
		c.stop(chatID)
	}
}

func (c *Coordinator) stop(chatID string) {
	c.mu.Lock()
	if _, ok := c.timers[chatID]; !ok {
		c.mu.Unlock()
		return
	}
	delete(c.timers, chatID)
	c.mu.Unlock()

	_ = c.emitter.Emit(models.EventStopTyping, models.TypingPayload{ChatID: chatID, UserID: c.selfID})
}

// HandleTyping applies an inbound typing event. Own echoes are ignored.
func (c *Coordinator) HandleTyping(chatID, userID string) {
	if userID == c.selfID {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.incoming[chatID] = true
}

// HandleStopTyping clears the inbound flag for a chat.
func (c *Coordinator) HandleStopTyping(chatID, userID string) {
	if userID == c.selfID {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.incoming, chatID)
}

// IsTyping reports whether someone else is typing in a chat.
func (c *Coordinator) IsTyping(chatID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.incoming[chatID]
}

// ConversationChanged clears every inbound flag. Called whenever the active
// conversation switches so no stale indicator survives the transition.
func (c *Coordinator) ConversationChanged() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.incoming = make(map[string]bool)
}
