package types

import "encoding/json"

const (
	WireEventTypeTranscript = "transcript"
	WireEventTypeNotes      = "notes"
	WireEventTypeInfo       = "info"
)

// JSON-serialized WebsocketMessage is what is actually sent via the
// websocket connection.
type WebsocketMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// InfoMessage carries per-room hub statistics, broadcast whenever a
// subscriber joins or leaves.
type InfoMessage struct {
	RoomName      string `json:"room_name"`
	NoConnections int    `json:"no_connections"`
}

// NewWireMessage wraps a payload into the websocket envelope.
func NewWireMessage(event string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(WebsocketMessage{Event: event, Data: data})
}
