package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateIdDeterministic(t *testing.T) {
	a := TranscriptEvent{Speaker: "Alice", Text: "hello", IsFinal: true, Timestamp: "2026-01-02T15:04:05Z"}
	b := TranscriptEvent{Speaker: "Alice", Text: "hello", IsFinal: true, Timestamp: "2026-01-02T15:04:05Z"}
	require.NoError(t, a.CreateId())
	require.NoError(t, b.CreateId())
	assert.Equal(t, a.Id, b.Id)
	assert.Len(t, a.Id, 16)
}

func TestCreateIdIgnoresRouting(t *testing.T) {
	a := TranscriptEvent{RoomName: "room-one", Speaker: "Alice", Text: "hello"}
	b := TranscriptEvent{RoomName: "room-two", Speaker: "Alice", Text: "hello"}
	require.NoError(t, a.CreateId())
	require.NoError(t, b.CreateId())
	// the room is routing metadata, not content
	assert.Equal(t, a.Id, b.Id)
}

func TestCreateIdContentSensitive(t *testing.T) {
	a := TranscriptEvent{Speaker: "Alice", Text: "hello", IsFinal: false}
	b := TranscriptEvent{Speaker: "Alice", Text: "hello", IsFinal: true}
	require.NoError(t, a.CreateId())
	require.NoError(t, b.CreateId())
	assert.NotEqual(t, a.Id, b.Id)
}
