package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tcriess/lightspeed-meet/types"
)

func testEvent(room, speaker, text string, isFinal bool) *types.TranscriptEvent {
	e := &types.TranscriptEvent{
		RoomName:  room,
		Speaker:   speaker,
		Text:      text,
		IsFinal:   isFinal,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	_ = e.CreateId()
	return e
}

// nextWireEvent drains the subscriber's send buffer until a message with the
// wanted event type arrives (info broadcasts may interleave).
func nextWireEvent(t *testing.T, c *Client, event string) types.WebsocketMessage {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case data := <-c.Send:
			msg := types.WebsocketMessage{}
			require.NoError(t, json.Unmarshal(data, &msg))
			if msg.Event == event {
				return msg
			}
		case <-deadline:
			t.Fatalf("no %q event received", event)
		}
	}
}

func TestPublishWithoutSubscribers(t *testing.T) {
	registry := NewRegistry()
	// no hub exists for the room, the event is silently discarded
	registry.Publish(testEvent("empty-room", "Alice", "hello", true))
	assert.Equal(t, 0, registry.NoClients("empty-room"))
}

func TestPublishFanout(t *testing.T) {
	registry := NewRegistry()
	hub := registry.Hub("fanout-room")

	clients := make([]*Client, 3)
	for i := range clients {
		c, err := NewClient(hub, nil, "")
		require.NoError(t, err)
		hub.Register(c)
		clients[i] = c
	}
	require.Equal(t, 3, registry.NoClients("fanout-room"))

	registry.Publish(testEvent("fanout-room", "Alice", "hello everyone", true))

	for _, c := range clients {
		msg := nextWireEvent(t, c, types.WireEventTypeTranscript)
		event := types.TranscriptEvent{}
		require.NoError(t, json.Unmarshal(msg.Data, &event))
		assert.Equal(t, "hello everyone", event.Text)
		assert.Equal(t, "Alice", event.Speaker)
		assert.NotEmpty(t, event.Id)
	}
}

func TestSubscriberFilter(t *testing.T) {
	registry := NewRegistry()
	hub := registry.Hub("filter-room")

	filtered, err := NewClient(hub, nil, `IsFinal && Speaker == "Alice"`)
	require.NoError(t, err)
	hub.Register(filtered)
	unfiltered, err := NewClient(hub, nil, "")
	require.NoError(t, err)
	hub.Register(unfiltered)

	registry.Publish(testEvent("filter-room", "Alice", "partial", false))
	registry.Publish(testEvent("filter-room", "Bob", "from bob", true))
	registry.Publish(testEvent("filter-room", "Alice", "final from alice", true))

	msg := nextWireEvent(t, filtered, types.WireEventTypeTranscript)
	event := types.TranscriptEvent{}
	require.NoError(t, json.Unmarshal(msg.Data, &event))
	assert.Equal(t, "final from alice", event.Text)

	// the unfiltered subscriber sees all three
	for _, want := range []string{"partial", "from bob", "final from alice"} {
		msg := nextWireEvent(t, unfiltered, types.WireEventTypeTranscript)
		event := types.TranscriptEvent{}
		require.NoError(t, json.Unmarshal(msg.Data, &event))
		assert.Equal(t, want, event.Text)
	}
}

func TestBrokenFilterRejectsSubscription(t *testing.T) {
	hub := NewRegistry().Hub("filter-room")
	_, err := NewClient(hub, nil, "NoSuchField == 1")
	assert.Error(t, err)
}

func TestFullBufferDoesNotBlockBroadcast(t *testing.T) {
	registry := NewRegistry()
	hub := registry.Hub("slow-room")

	slow, err := NewClient(hub, nil, "")
	require.NoError(t, err)
	hub.Register(slow)
	healthy, err := NewClient(hub, nil, "")
	require.NoError(t, err)
	hub.Register(healthy)

	for i := 0; i < sendChannelSize; i++ {
		slow.TrySend([]byte("{}"))
	}

	done := make(chan struct{})
	go func() {
		registry.Publish(testEvent("slow-room", "Alice", "still getting through", true))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("broadcast blocked on a full subscriber buffer")
	}

	msg := nextWireEvent(t, healthy, types.WireEventTypeTranscript)
	event := types.TranscriptEvent{}
	require.NoError(t, json.Unmarshal(msg.Data, &event))
	assert.Equal(t, "still getting through", event.Text)
}

// wsPair creates a connected server/client websocket pair.
func wsPair(t *testing.T) (*websocket.Conn, *websocket.Conn) {
	t.Helper()
	upgrader := websocket.Upgrader{}
	serverConns := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		serverConns <- conn
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	clientConn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { clientConn.Close() })
	serverConn := <-serverConns
	return serverConn, clientConn
}

func TestUnregisterIsIdempotent(t *testing.T) {
	registry := NewRegistry()
	hub := registry.Hub("leave-room")

	serverConn, _ := wsPair(t)
	c, err := NewClient(hub, serverConn, "")
	require.NoError(t, err)
	hub.Register(c)
	require.Equal(t, 1, hub.NoClients())

	hub.Unregister(c)
	assert.Equal(t, 0, hub.NoClients())
	// a second unregister of the same subscriber is a no-op
	hub.Unregister(c)
	assert.Equal(t, 0, hub.NoClients())
}

func TestWriteLoopDeliversToConnection(t *testing.T) {
	registry := NewRegistry()
	hub := registry.Hub("wire-room")

	serverConn, clientConn := wsPair(t)
	c, err := NewClient(hub, serverConn, "")
	require.NoError(t, err)
	hub.Register(c)
	go c.WriteLoop()

	registry.Publish(testEvent("wire-room", "Alice", "over the wire", true))

	clientConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		_, data, err := clientConn.ReadMessage()
		require.NoError(t, err)
		msg := types.WebsocketMessage{}
		require.NoError(t, json.Unmarshal(data, &msg))
		if msg.Event != types.WireEventTypeTranscript {
			continue
		}
		event := types.TranscriptEvent{}
		require.NoError(t, json.Unmarshal(msg.Data, &event))
		assert.Equal(t, "over the wire", event.Text)
		return
	}
}
