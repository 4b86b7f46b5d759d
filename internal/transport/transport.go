package transport

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"chat-sync/internal/models"
	"chat-sync/internal/observability"
)

// State is the connection lifecycle state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

var (
	ErrNotConnected  = errors.New("transport not connected")
	ErrAlreadyClosed = errors.New("transport closed")
)

// Handler receives the raw data payload of one inbound event.
type Handler func(data json.RawMessage)

// Config bounds the reconnect backoff.
type Config struct {
	URL       string
	AuthToken string
	MinWait   time.Duration
	MaxWait   time.Duration
}

// Transport owns exactly one live connection per authenticated session.
//
// Inbound frames are decoded and dispatched serially from the read pump, so
// handlers observe events for a given chat in server-send order. Handlers must
// be registered before Connect and must not block.
type Transport struct {
	cfg Config

	mu       sync.Mutex
	conn     *websocket.Conn
	state    State
	rooms    map[string]bool
	closed   bool
	connID   string
	handlers map[string]Handler

	onReconnect func()
	done        chan struct{}
}

// New builds a disconnected Transport.
func New(cfg Config) *Transport {
	if cfg.MinWait <= 0 {
		cfg.MinWait = time.Second
	}
	if cfg.MaxWait < cfg.MinWait {
		cfg.MaxWait = 30 * time.Second
	}
	return &Transport{
		cfg:      cfg,
		rooms:    make(map[string]bool),
		handlers: make(map[string]Handler),
		done:     make(chan struct{}),
	}
}

// Handle registers the handler for one event type. Must be called before
// Connect; the last registration for a type wins.
func (t *Transport) Handle(eventType string, h Handler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handlers[eventType] = h
}

// OnReconnect registers a hook invoked after every successful reconnect.
// Room subscriptions do not survive a drop, so the owner of the active
// conversation must re-join from this hook.
func (t *Transport) OnReconnect(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onReconnect = fn
}

// State reports the current connection state.
func (t *Transport) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Connect dials the server and starts the read pump.
func (t *Transport) Connect(ctx context.Context) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrAlreadyClosed
	}
	if t.state != StateDisconnected {
		t.mu.Unlock()
		return nil
	}
	t.setStateLocked(StateConnecting)
	t.mu.Unlock()

	conn, err := t.dial(ctx)
	if err != nil {
		t.mu.Lock()
		t.setStateLocked(StateDisconnected)
		t.mu.Unlock()
		return err
	}

	t.mu.Lock()
	t.conn = conn
	t.connID = uuid.NewString()
	t.setStateLocked(StateConnected)
	t.mu.Unlock()

	log.Printf("transport connected conn_id=%s url=%s", t.connID, t.cfg.URL)
	go t.readPump(conn)
	return nil
}

// Join subscribes to a chat room. Joining twice is a no-op.
func (t *Transport) Join(chatID string) error {
	t.mu.Lock()
	if t.rooms[chatID] {
		t.mu.Unlock()
		return nil
	}
	t.mu.Unlock()

	if err := t.Emit(models.EventJoinChat, models.RoomPayload{ChatID: chatID}); err != nil {
		return err
	}

	t.mu.Lock()
	t.rooms[chatID] = true
	observability.SetJoinedRooms(len(t.rooms))
	t.mu.Unlock()
	return nil
}

// Leave unsubscribes from a chat room. Leaving a non-joined room is a no-op.
func (t *Transport) Leave(chatID string) error {
	t.mu.Lock()
	if !t.rooms[chatID] {
		t.mu.Unlock()
		return nil
	}
	t.mu.Unlock()

	if err := t.Emit(models.EventLeaveChat, models.RoomPayload{ChatID: chatID}); err != nil {
		return err
	}

	t.mu.Lock()
	delete(t.rooms, chatID)
	observability.SetJoinedRooms(len(t.rooms))
	t.mu.Unlock()
	return nil
}

// Emit sends one event. It fails fast with ErrNotConnected while the
// connection is down; nothing is queued.
func (t *Transport) Emit(eventType string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	frame := models.Frame{Type: eventType, Data: data}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != StateConnected || t.conn == nil {
		return ErrNotConnected
	}
	return t.conn.WriteJSON(frame)
}

// Close tears the connection down for good. No reconnect follows.
func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	close(t.done)
	conn := t.conn
	t.conn = nil
	t.rooms = make(map[string]bool)
	observability.SetJoinedRooms(0)
	t.setStateLocked(StateDisconnected)
	t.mu.Unlock()

	if conn != nil {
		return conn.Close()
	}
	return nil
}

func (t *Transport) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	if t.cfg.AuthToken != "" {
		header.Set("Authorization", "Bearer "+t.cfg.AuthToken)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, t.cfg.URL, header)
	return conn, err
}

func (t *Transport) readPump(conn *websocket.Conn) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			t.mu.Lock()
			closed := t.closed
			t.mu.Unlock()
			if closed {
				return
			}
			log.Printf("transport read error: %v", err)
			t.reconnect()
			return
		}
		t.dispatch(raw)
	}
}

func (t *Transport) dispatch(raw []byte) {
	var frame models.Frame
	if err := json.Unmarshal(raw, &frame); err != nil || frame.Type == "" {
		log.Printf("transport dropped malformed frame: %v", err)
		observability.IncEventDropped("malformed")
		return
	}

	t.mu.Lock()
	h, ok := t.handlers[frame.Type]
	t.mu.Unlock()
	if !ok {
		log.Printf("transport dropped unknown event type=%s", frame.Type)
		observability.IncEventDropped("unknown")
		return
	}

	observability.IncEventReceived(frame.Type)
	h(frame.Data)
}

// reconnect loops with capped exponential backoff until a dial succeeds or the
// transport is closed. Room subscriptions are dropped; re-joining is the
// session's responsibility via the OnReconnect hook.
func (t *Transport) reconnect() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.conn = nil
	t.rooms = make(map[string]bool)
	observability.SetJoinedRooms(0)
	t.setStateLocked(StateConnecting)
	t.mu.Unlock()

	wait := t.cfg.MinWait
	for {
		select {
		case <-t.done:
			return
		case <-time.After(wait):
		}

		observability.IncReconnect()
		conn, err := t.dial(context.Background())
		if err != nil {
			log.Printf("transport reconnect failed, retrying in %s: %v", wait, err)
			wait *= 2
			if wait > t.cfg.MaxWait {
				wait = t.cfg.MaxWait
			}
			continue
		}

		t.mu.Lock()
		if t.closed {
			t.mu.Unlock()
			conn.Close()
			return
		}
		t.conn = conn
		t.connID = uuid.NewString()
		t.setStateLocked(StateConnected)
		hook := t.onReconnect
		t.mu.Unlock()

		log.Printf("transport reconnected conn_id=%s", t.connID)
		go t.readPump(conn)
		if hook != nil {
			hook()
		}
		return
	}
}

func (t *Transport) setStateLocked(s State) {
	t.state = s
	observability.SetConnectionState(int(s))
}
