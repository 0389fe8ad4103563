package persistence

import (
	"errors"
	"fmt"
	"time"

	"github.com/tcriess/lightspeed-meet/config"
	"github.com/tcriess/lightspeed-meet/types"
)

var (
	// ErrNotFound is returned whenever a requested record does not exist
	// (or is not in the state the operation requires).
	ErrNotFound = errors.New("record not found")

	// ErrNotOwner is returned when a scheduled-meeting transition is
	// attempted by a host that does not own the meeting.
	ErrNotOwner = errors.New("not the owning host")
)

// Persister is the durable store for all meeting entities. The relay hub's
// subscriber registry is explicitly not part of it, that state is scoped to
// the process.
type Persister interface {
	// GetOrCreateMeeting upserts the meeting row for roomName. A non-empty
	// roomSid replaces a previously stored sid (the external room may be
	// re-allocated).
	GetOrCreateMeeting(roomName, roomSid string) (*types.Meeting, error)
	GetMeetingByRoom(roomName string) (*types.Meeting, error)
	// ListOpenMeetings returns all meetings without an end timestamp.
	ListOpenMeetings() ([]*types.Meeting, error)
	EndMeeting(roomName string, endedAt time.Time) error
	ListMeetingsWithNotes(limit int) ([]*types.MeetingSummary, error)

	StoreNotes(notes *types.MeetingNotes) error
	// GetLatestNotes returns the most recent notes document for a meeting,
	// ErrNotFound if none was generated yet.
	GetLatestNotes(meetingID int64) (*types.MeetingNotes, error)

	CreateScheduledMeeting(m *types.ScheduledMeeting) error
	GetScheduledMeeting(id int64) (*types.ScheduledMeeting, error)
	GetScheduledMeetingByRoom(roomName string) (*types.ScheduledMeeting, error)
	ListScheduledMeetingsByHost(hostUserID int64) ([]*types.ScheduledMeeting, error)
	// TransitionScheduledMeeting atomically moves the meeting from status
	// `from` to status `to`, checking host ownership. ErrNotFound if the
	// meeting does not exist in status `from`, ErrNotOwner on an ownership
	// mismatch.
	TransitionScheduledMeeting(id, hostUserID int64, from, to string) (*types.ScheduledMeeting, error)

	UpsertEmailSubscription(sub *types.EmailSubscription) error
	GetEmailSubscriptions(meetingID int64) ([]*types.EmailSubscription, error)
	DeleteEmailSubscription(meetingID int64, email string) error

	CreateRecording(meetingID int64, egressID string) (*types.Recording, error)
	// GetActiveRecording returns the recording in "recording" status for the
	// meeting, ErrNotFound if there is none.
	GetActiveRecording(meetingID int64) (*types.Recording, error)
	UpdateRecordingStatus(egressID, status, audioURL string, durationMS int64) error

	StoreUser(user *types.User) error
	GetUserByEmail(email string) (*types.User, error)
	GetUsers() ([]*types.User, error)
	DeleteUser(email string) error

	Close() error
}

// NewPersister creates the persister configured in cfg.
func NewPersister(cfg *config.Config) (Persister, error) {
	switch cfg.PersistenceConfig.Type {
	case "sqlite", "postgres":
		return NewGormPersister(cfg)

	case "buntdb":
		return NewBuntPersister(cfg)

	case "":
		return nil, fmt.Errorf("no persistence configured")

	default:
		return nil, fmt.Errorf("unknown persistence type %q", cfg.PersistenceConfig.Type)
	}
}
