package ws

import (
	"sync"
	"time"

	"github.com/tcriess/lightspeed-meet/filter"
	"github.com/tcriess/lightspeed-meet/globals"
	"github.com/tcriess/lightspeed-meet/types"
)

const (
	maxMessageSize  = 4096
	pongWait        = 2 * time.Minute
	pingPeriod      = time.Minute
	writeWait       = 10 * time.Second
	sendChannelSize = 256
)

// Registry owns the per-room hubs. It is constructed once per process (or
// per test instance) and injected into the request handlers, there is no
// ambient global subscriber state.
type Registry struct {
	mu   sync.RWMutex
	hubs map[string]*Hub
}

func NewRegistry() *Registry {
	return &Registry{hubs: make(map[string]*Hub)}
}

// Hub returns the hub for roomName, creating it on first use.
func (r *Registry) Hub(roomName string) *Hub {
	r.mu.RLock()
	if h, ok := r.hubs[roomName]; ok {
		r.mu.RUnlock()
		return h
	}
	r.mu.RUnlock()
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.hubs[roomName]; ok {
		return h
	}
	h := &Hub{roomName: roomName, clients: make(map[*Client]struct{})}
	r.hubs[roomName] = h
	return h
}

// Publish delivers a transcript event to every subscriber of the room.
// A room without subscribers is a no-op, events are never queued.
func (r *Registry) Publish(event *types.TranscriptEvent) {
	r.mu.RLock()
	h, ok := r.hubs[event.RoomName]
	r.mu.RUnlock()
	if !ok {
		return
	}
	h.PublishTranscript(event)
}

// PublishEvent broadcasts an arbitrary wire event (f.e. saved notes) to the
// subscribers of a room.
func (r *Registry) PublishEvent(roomName, event string, payload interface{}) {
	r.mu.RLock()
	h, ok := r.hubs[roomName]
	r.mu.RUnlock()
	if !ok {
		return
	}
	h.PublishEvent(event, payload)
}

// NoClients returns the number of subscribers of a room.
func (r *Registry) NoClients(roomName string) int {
	r.mu.RLock()
	h, ok := r.hubs[roomName]
	r.mu.RUnlock()
	if !ok {
		return 0
	}
	return h.NoClients()
}

// Hub is the fan-out group of one room. The clients set is the only shared
// mutable structure, registration takes the write lock, broadcasts take the
// read lock and iterate.
type Hub struct {
	roomName string

	// registered subscribers
	clients map[*Client]struct{}

	sync.RWMutex
}

func (h *Hub) Register(c *Client) {
	h.Lock()
	h.clients[c] = struct{}{}
	h.Unlock()
	go h.SendInfo()
}

// Unregister removes the subscriber, it is a no-op if the subscriber is
// already gone.
func (h *Hub) Unregister(c *Client) {
	h.Lock()
	if _, ok := h.clients[c]; !ok {
		h.Unlock()
		return
	}
	delete(h.clients, c)
	c.conn.Close() // probably already is closed, just to make sure
	close(c.done)
	h.Unlock()
	go h.SendInfo()
}

// NoClients returns the number of subscribers registered.
func (h *Hub) NoClients() int {
	h.RLock()
	defer h.RUnlock()
	return len(h.clients)
}

// PublishTranscript delivers the event to all subscribers whose filter (if
// any) accepts it. Delivery to one subscriber is independent of the others,
// a subscriber with a full send buffer is skipped rather than blocking the
// broadcast.
func (h *Hub) PublishTranscript(event *types.TranscriptEvent) {
	data, err := types.NewWireMessage(types.WireEventTypeTranscript, event)
	if err != nil {
		globals.AppLogger.Error("could not marshal transcript event", "error", err)
		return
	}
	env := filter.FromEvent(event)
	h.RLock()
	defer h.RUnlock()
	for client := range h.clients {
		if !client.Allow(env) {
			continue
		}
		client.TrySend(data)
	}
}

// PublishEvent wraps the payload into the wire envelope and delivers it to
// all subscribers, bypassing filters.
func (h *Hub) PublishEvent(event string, payload interface{}) {
	data, err := types.NewWireMessage(event, payload)
	if err != nil {
		globals.AppLogger.Error("could not marshal wire event", "error", err, "event", event)
		return
	}
	h.Broadcast(data)
}

// Broadcast delivers raw wire bytes to every subscriber.
func (h *Hub) Broadcast(data []byte) {
	h.RLock()
	defer h.RUnlock()
	for client := range h.clients {
		client.TrySend(data)
	}
}

// SendInfo broadcasts hub statistics to all subscribers.
func (h *Hub) SendInfo() {
	info := types.InfoMessage{
		RoomName:      h.roomName,
		NoConnections: h.NoClients(),
	}
	h.PublishEvent(types.WireEventTypeInfo, &info)
}
