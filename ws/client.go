package ws

import (
	"time"

	"github.com/antonmedv/expr/vm"
	"github.com/gorilla/websocket"
	"github.com/tcriess/lightspeed-meet/filter"
	"github.com/tcriess/lightspeed-meet/globals"
)

// Client is a middleman between one websocket subscriber connection and the
// hub.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	Send chan []byte

	// optional compiled subscriber filter, nil passes everything
	filterProg *vm.Program

	done chan struct{}
}

// NewClient creates a subscriber for the hub. filterExpr is an optional
// expression over the transcript event fields, a compile error rejects the
// subscription.
func NewClient(hub *Hub, conn *websocket.Conn, filterExpr string) (*Client, error) {
	var prog *vm.Program
	if filterExpr != "" {
		var err error
		prog, err = CompileFilter(filterExpr)
		if err != nil {
			return nil, err
		}
	}
	return &Client{
		hub:        hub,
		conn:       conn,
		Send:       make(chan []byte, sendChannelSize),
		filterProg: prog,
		done:       make(chan struct{}),
	}, nil
}

// Allow evaluates the subscriber filter against the event environment.
func (c *Client) Allow(env filter.Env) bool {
	if c.filterProg == nil {
		return true
	}
	return RunFilter(c.filterProg, env)
}

// TrySend queues data for delivery without blocking. A subscriber whose
// buffer is full misses the event (best-effort delivery).
func (c *Client) TrySend(data []byte) {
	select {
	case c.Send <- data:
	default:
		globals.AppLogger.Warn("subscriber send buffer full, dropping event", "room", c.hub.roomName)
	}
}

// ReadLoop pumps messages from the websocket connection back into the hub.
//
// The application runs ReadLoop in a per-connection goroutine. The
// application ensures that there is at most one reader on a connection by
// executing all reads from this goroutine. A read error unregisters the
// subscriber immediately, there is no drain period.
func (c *Client) ReadLoop() {
	defer func() {
		c.hub.Unregister(c)
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				globals.AppLogger.Debug("ws closed unexpected", "error", err)
			}
			return
		}
		// anything pushed in via the socket is re-broadcast to the room,
		// this is how the agent can feed a room directly
		c.hub.Broadcast(raw)
	}
}

// WriteLoop pumps messages from the hub to the websocket connection.
//
// A goroutine running WriteLoop is started for each connection. The
// application ensures that there is at most one writer to a connection by
// executing all writes from this goroutine.
func (c *Client) WriteLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.Send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			return
		}
	}
}
