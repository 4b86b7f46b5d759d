package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-sync/internal/models"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// testServer accepts one websocket client, records inbound frames and lets
// tests push frames back.
type testServer struct {
	*httptest.Server

	mu     sync.Mutex
	conns  []*websocket.Conn
	frames []models.Frame
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		ts.mu.Lock()
		ts.conns = append(ts.conns, conn)
		ts.mu.Unlock()
		for {
			var frame models.Frame
			if err := conn.ReadJSON(&frame); err != nil {
				return
			}
			ts.mu.Lock()
			ts.frames = append(ts.frames, frame)
			ts.mu.Unlock()
		}
	}))
	t.Cleanup(ts.Close)
	return ts
}

func (ts *testServer) wsURL() string {
	return "ws" + strings.TrimPrefix(ts.URL, "http")
}

func (ts *testServer) push(t *testing.T, frame models.Frame) {
	t.Helper()
	ts.mu.Lock()
	defer ts.mu.Unlock()
	require.NotEmpty(t, ts.conns)
	require.NoError(t, ts.conns[len(ts.conns)-1].WriteJSON(frame))
}

func (ts *testServer) received() []models.Frame {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	out := make([]models.Frame, len(ts.frames))
	copy(out, ts.frames)
	return out
}

func newTestTransport(ts *testServer) *Transport {
	return New(Config{
		URL:     ts.wsURL(),
		MinWait: 10 * time.Millisecond,
		MaxWait: 50 * time.Millisecond,
	})
}

func TestEmitFailsFastWhileDisconnected(t *testing.T) {
	tr := New(Config{URL: "ws://localhost:1"})
	err := tr.Emit(models.EventSendMessage, models.SendMessagePayload{ChatID: "c1"})
	require.ErrorIs(t, err, ErrNotConnected)
	assert.Equal(t, StateDisconnected, tr.State())
}

func TestConnectAndDispatchInOrder(t *testing.T) {
	ts := newTestServer(t)
	tr := newTestTransport(ts)

	var mu sync.Mutex
	var got []string
	tr.Handle(models.EventReceiveMessage, func(data json.RawMessage) {
		var p models.ReceiveMessagePayload
		require.NoError(t, json.Unmarshal(data, &p))
		mu.Lock()
		got = append(got, p.Message.Text)
		mu.Unlock()
	})

	require.NoError(t, tr.Connect(context.Background()))
	defer tr.Close()
	require.Equal(t, StateConnected, tr.State())

	for _, text := range []string{"one", "two", "three"} {
		data, _ := json.Marshal(models.ReceiveMessagePayload{
			ChatID:  "c1",
			Message: models.Message{ID: 1, SenderID: "u2", Text: text},
		})
		ts.push(t, models.Frame{Type: models.EventReceiveMessage, Data: data})
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 3
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	assert.Equal(t, []string{"one", "two", "three"}, got, "server-send order is preserved")
	mu.Unlock()
}

func TestUnknownEventIsDroppedNotFatal(t *testing.T) {
	ts := newTestServer(t)
	tr := newTestTransport(ts)

	handled := make(chan struct{}, 1)
	tr.Handle(models.EventUserOnline, func(json.RawMessage) {
		handled <- struct{}{}
	})

	require.NoError(t, tr.Connect(context.Background()))
	defer tr.Close()

	ts.push(t, models.Frame{Type: "mystery_event", Data: json.RawMessage(`{"x":1}`)})
	data, _ := json.Marshal(models.UserPresencePayload{UserID: "u2"})
	ts.push(t, models.Frame{Type: models.EventUserOnline, Data: data})

	select {
	case <-handled:
	case <-time.After(time.Second):
		t.Fatal("event after unknown frame never dispatched")
	}
}

func TestJoinAndLeaveAreIdempotent(t *testing.T) {
	ts := newTestServer(t)
	tr := newTestTransport(ts)

	require.NoError(t, tr.Connect(context.Background()))
	defer tr.Close()

	require.NoError(t, tr.Join("c1"))
	require.NoError(t, tr.Join("c1"))
	require.NoError(t, tr.Leave("c9"))
	require.NoError(t, tr.Leave("c1"))
	require.NoError(t, tr.Leave("c1"))

	require.Eventually(t, func() bool {
		return len(ts.received()) == 2
	}, time.Second, 5*time.Millisecond)

	frames := ts.received()
	assert.Equal(t, models.EventJoinChat, frames[0].Type)
	assert.Equal(t, models.EventLeaveChat, frames[1].Type)
}

func TestReconnectAfterDropClearsRooms(t *testing.T) {
	ts := newTestServer(t)
	tr := newTestTransport(ts)

	reconnected := make(chan struct{}, 1)
	tr.OnReconnect(func() {
		select {
		case reconnected <- struct{}{}:
		default:
		}
	})

	require.NoError(t, tr.Connect(context.Background()))
	defer tr.Close()
	require.NoError(t, tr.Join("c1"))

	// Kill the server side of the first connection.
	ts.mu.Lock()
	first := ts.conns[0]
	ts.mu.Unlock()
	first.Close()

	select {
	case <-reconnected:
	case <-time.After(2 * time.Second):
		t.Fatal("transport never reconnected")
	}
	require.Equal(t, StateConnected, tr.State())

	// The room set did not survive: a fresh Join emits again.
	before := len(ts.received())
	require.NoError(t, tr.Join("c1"))
	require.Eventually(t, func() bool {
		return len(ts.received()) == before+1
	}, time.Second, 5*time.Millisecond)
}

func TestCloseStopsReconnection(t *testing.T) {
	ts := newTestServer(t)
	tr := newTestTransport(ts)

	require.NoError(t, tr.Connect(context.Background()))
	require.NoError(t, tr.Close())
	assert.Equal(t, StateDisconnected, tr.State())

	require.ErrorIs(t, tr.Connect(context.Background()), ErrAlreadyClosed)
	require.ErrorIs(t, tr.Emit(models.EventTyping, nil), ErrNotConnected)
}
