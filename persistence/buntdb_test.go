package persistence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tcriess/lightspeed-meet/config"
	"github.com/tcriess/lightspeed-meet/types"
)

func newBuntPersister(t *testing.T) Persister {
	t.Helper()
	cfg := &config.Config{
		PersistenceConfig: config.PersistenceConfig{Type: "buntdb", DSN: ":memory:"},
	}
	p, err := NewPersister(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	return p
}

func TestBuntMeetingLifecycle(t *testing.T) {
	p := newBuntPersister(t)

	first, err := p.GetOrCreateMeeting("brew-mountain", "RM_1")
	require.NoError(t, err)
	second, err := p.GetOrCreateMeeting("brew-mountain", "RM_2")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "RM_2", second.RoomSid)

	open, err := p.ListOpenMeetings()
	require.NoError(t, err)
	require.Len(t, open, 1)

	require.NoError(t, p.EndMeeting("brew-mountain", time.Now()))
	open, err = p.ListOpenMeetings()
	require.NoError(t, err)
	assert.Len(t, open, 0)
}

func TestBuntNotes(t *testing.T) {
	p := newBuntPersister(t)

	m, err := p.GetOrCreateMeeting("forge-harbor", "")
	require.NoError(t, err)

	_, err = p.GetLatestNotes(m.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, p.StoreNotes(&types.MeetingNotes{MeetingID: m.ID, Markdown: "draft"}))
	require.NoError(t, p.StoreNotes(&types.MeetingNotes{MeetingID: m.ID, Markdown: "final"}))

	got, err := p.GetLatestNotes(m.ID)
	require.NoError(t, err)
	assert.Equal(t, "final", got.Markdown)
}

func TestBuntScheduledMeetingTransitions(t *testing.T) {
	p := newBuntPersister(t)

	host := &types.User{Email: "host@example.com", Name: "Host", PasswordHash: "x"}
	require.NoError(t, p.StoreUser(host))
	host, err := p.GetUserByEmail("host@example.com")
	require.NoError(t, err)

	sm := &types.ScheduledMeeting{
		RoomName:    "plan-meadow",
		HostUserID:  host.ID,
		ClientName:  "Acme",
		ScheduledAt: time.Now().Add(time.Hour),
		Status:      types.ScheduleStatusScheduled,
	}
	require.NoError(t, p.CreateScheduledMeeting(sm))

	byRoom, err := p.GetScheduledMeetingByRoom("plan-meadow")
	require.NoError(t, err)
	assert.Equal(t, sm.ID, byRoom.ID)

	_, err = p.TransitionScheduledMeeting(sm.ID, host.ID+1, types.ScheduleStatusScheduled, types.ScheduleStatusActive)
	assert.ErrorIs(t, err, ErrNotOwner)

	started, err := p.TransitionScheduledMeeting(sm.ID, host.ID, types.ScheduleStatusScheduled, types.ScheduleStatusActive)
	require.NoError(t, err)
	assert.Equal(t, types.ScheduleStatusActive, started.Status)

	_, err = p.TransitionScheduledMeeting(sm.ID, host.ID, types.ScheduleStatusScheduled, types.ScheduleStatusCancelled)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBuntEmailSubscriptions(t *testing.T) {
	p := newBuntPersister(t)

	m, err := p.GetOrCreateMeeting("dash-river", "")
	require.NoError(t, err)

	require.NoError(t, p.UpsertEmailSubscription(&types.EmailSubscription{
		MeetingID: m.ID, Email: "Client@Example.com", ParticipantName: "Old",
	}))
	require.NoError(t, p.UpsertEmailSubscription(&types.EmailSubscription{
		MeetingID: m.ID, Email: "client@example.com", ParticipantName: "New",
	}))

	subs, err := p.GetEmailSubscriptions(m.ID)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "New", subs[0].ParticipantName)
}
