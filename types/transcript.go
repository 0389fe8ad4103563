package types

import (
	"fmt"

	"github.com/mitchellh/hashstructure/v2"
)

// TranscriptEvent is one transcript fragment in transit. It is never
// persisted, it only passes through the relay hub on its way to the
// subscribers of a room.
type TranscriptEvent struct {
	Id        string `json:"id" hash:"ignore"`
	RoomName  string `json:"room_name" hash:"ignore"`
	Speaker   string `json:"speaker"`
	Text      string `json:"text"`
	IsFinal   bool   `json:"is_final"`
	Timestamp string `json:"timestamp"`
}

// CreateId derives the event id from a hash over the event content.
func (e *TranscriptEvent) CreateId() error {
	hash, err := hashstructure.Hash(e, hashstructure.FormatV2, nil)
	if err != nil {
		return err
	}
	e.Id = fmt.Sprintf("%016x", hash)
	return nil
}
