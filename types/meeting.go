package types

import (
	"time"

	"gorm.io/datatypes"
)

// Scheduled meeting states. Transitions are monotonic: scheduled may become
// active or cancelled, both of which are terminal.
const (
	ScheduleStatusScheduled = "scheduled"
	ScheduleStatusActive    = "active"
	ScheduleStatusCancelled = "cancelled"
)

// Recording states for the legacy audio egress path.
const (
	RecordingStatusRecording  = "recording"
	RecordingStatusProcessing = "processing"
	RecordingStatusCompleted  = "completed"
	RecordingStatusFailed     = "failed"
)

// Meeting is one durable meeting record, identified by its unique room name.
// A meeting is created implicitly (and idempotently) the first time any
// operation references its room name. RoomSid is assigned once the external
// room service allocates the room.
type Meeting struct {
	ID        int64             `json:"id" gorm:"primaryKey"`
	RoomName  string            `json:"roomName" gorm:"uniqueIndex"`
	RoomSid   string            `json:"roomSid"`
	Tags      datatypes.JSONMap `json:"tags,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
	EndedAt   *time.Time        `json:"endedAt,omitempty"`
}

// ScheduledMeeting is a future-dated meeting owned by a host, distinct from
// an ad hoc meeting. Only the owning host may start or cancel it.
type ScheduledMeeting struct {
	ID          int64     `json:"id" gorm:"primaryKey"`
	RoomName    string    `json:"roomName" gorm:"uniqueIndex"`
	HostUserID  int64     `json:"-" gorm:"index"`
	Host        *User     `json:"-" gorm:"foreignKey:HostUserID"`
	ClientName  string    `json:"clientName"`
	ClientEmail string    `json:"clientEmail"`
	ScheduledAt time.Time `json:"scheduledAt"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
}

// HostName returns the display name of the owning host, if it was loaded.
func (m *ScheduledMeeting) HostName() string {
	if m.Host == nil {
		return ""
	}
	return m.Host.Name
}

// MeetingNotes is one generated notes document. Multiple rows may exist per
// meeting, reads return the most recent by generation time.
type MeetingNotes struct {
	ID           int64     `json:"id" gorm:"primaryKey"`
	MeetingID    int64     `json:"meetingId" gorm:"index"`
	Markdown     string    `json:"markdown" gorm:"column:notes_markdown"`
	GeneratedAt  time.Time `json:"generatedAt" gorm:"autoCreateTime"`
	ModelUsed    string    `json:"modelUsed"`
	InputTokens  int       `json:"inputTokens"`
	OutputTokens int       `json:"outputTokens"`
}

// MeetingSummary is the read model for listing recent meetings with notes.
type MeetingSummary struct {
	ID          int64     `json:"id"`
	RoomName    string    `json:"roomName"`
	CreatedAt   time.Time `json:"createdAt"`
	GeneratedAt time.Time `json:"generatedAt"`
	Model       string    `json:"model"`
}

// EmailSubscription is one (meeting, email) opt-in for the notes mail.
// Subscribing again with a different name updates the name in place.
type EmailSubscription struct {
	ID              int64     `json:"id" gorm:"primaryKey"`
	MeetingID       int64     `json:"-" gorm:"uniqueIndex:idx_meeting_email"`
	Email           string    `json:"email" gorm:"uniqueIndex:idx_meeting_email"`
	ParticipantName string    `json:"participantName"`
	CreatedAt       time.Time `json:"-"`
}

// Recording tracks one audio egress job (legacy path). At most one row per
// meeting may be in "recording" status at a time.
type Recording struct {
	ID         int64     `json:"id" gorm:"primaryKey"`
	MeetingID  int64     `json:"meetingId" gorm:"index"`
	EgressID   string    `json:"egressId" gorm:"uniqueIndex"`
	Status     string    `json:"status"`
	AudioURL   string    `json:"audioUrl"`
	DurationMS int64     `json:"durationMs"`
	CreatedAt  time.Time `json:"createdAt"`
}
