package persistence

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tcriess/lightspeed-meet/config"
	"github.com/tcriess/lightspeed-meet/types"
)

func newSqlitePersister(t *testing.T) Persister {
	t.Helper()
	cfg := &config.Config{
		PersistenceConfig: config.PersistenceConfig{
			Type: "sqlite",
			DSN:  filepath.Join(t.TempDir(), "test.db"),
		},
	}
	p, err := NewPersister(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	return p
}

func TestGetOrCreateMeetingIdempotent(t *testing.T) {
	p := newSqlitePersister(t)

	first, err := p.GetOrCreateMeeting("brew-mountain", "RM_1")
	require.NoError(t, err)
	second, err := p.GetOrCreateMeeting("brew-mountain", "")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "RM_1", second.RoomSid)

	// a fresh sid replaces the stored one
	third, err := p.GetOrCreateMeeting("brew-mountain", "RM_2")
	require.NoError(t, err)
	assert.Equal(t, first.ID, third.ID)
	assert.Equal(t, "RM_2", third.RoomSid)
}

func TestNotesRoundTrip(t *testing.T) {
	p := newSqlitePersister(t)

	m, err := p.GetOrCreateMeeting("forge-harbor", "")
	require.NoError(t, err)

	markdown := "# Notes\n\n- item one\n- *unicode* ✓ and <html> & co.\n"
	notes := &types.MeetingNotes{
		MeetingID:    m.ID,
		Markdown:     markdown,
		ModelUsed:    "test-model",
		InputTokens:  1234,
		OutputTokens: 567,
	}
	require.NoError(t, p.StoreNotes(notes))

	got, err := p.GetLatestNotes(m.ID)
	require.NoError(t, err)
	assert.Equal(t, markdown, got.Markdown)
	assert.Equal(t, "test-model", got.ModelUsed)
	assert.Equal(t, 1234, got.InputTokens)
	assert.Equal(t, 567, got.OutputTokens)
}

func TestGetLatestNotesReturnsNewest(t *testing.T) {
	p := newSqlitePersister(t)

	m, err := p.GetOrCreateMeeting("spin-valley", "")
	require.NoError(t, err)

	for _, text := range []string{"first draft", "second draft", "final"} {
		require.NoError(t, p.StoreNotes(&types.MeetingNotes{MeetingID: m.ID, Markdown: text}))
	}
	got, err := p.GetLatestNotes(m.ID)
	require.NoError(t, err)
	assert.Equal(t, "final", got.Markdown)
}

func TestGetLatestNotesNotFound(t *testing.T) {
	p := newSqlitePersister(t)

	m, err := p.GetOrCreateMeeting("mix-canyon", "")
	require.NoError(t, err)
	_, err = p.GetLatestNotes(m.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEmailSubscriptionUpsert(t *testing.T) {
	p := newSqlitePersister(t)

	m, err := p.GetOrCreateMeeting("dash-river", "")
	require.NoError(t, err)

	require.NoError(t, p.UpsertEmailSubscription(&types.EmailSubscription{
		MeetingID: m.ID, Email: "client@example.com", ParticipantName: "Old Name",
	}))
	require.NoError(t, p.UpsertEmailSubscription(&types.EmailSubscription{
		MeetingID: m.ID, Email: "client@example.com", ParticipantName: "New Name",
	}))

	subs, err := p.GetEmailSubscriptions(m.ID)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "New Name", subs[0].ParticipantName)

	require.NoError(t, p.DeleteEmailSubscription(m.ID, "client@example.com"))
	subs, err = p.GetEmailSubscriptions(m.ID)
	require.NoError(t, err)
	assert.Len(t, subs, 0)
}

func TestScheduledMeetingTransitions(t *testing.T) {
	p := newSqlitePersister(t)

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

	// wrong host must not be able to start the meeting
	_, err = p.TransitionScheduledMeeting(sm.ID, host.ID+1, types.ScheduleStatusScheduled, types.ScheduleStatusActive)
	assert.ErrorIs(t, err, ErrNotOwner)

	started, err := p.TransitionScheduledMeeting(sm.ID, host.ID, types.ScheduleStatusScheduled, types.ScheduleStatusActive)
	require.NoError(t, err)
	assert.Equal(t, types.ScheduleStatusActive, started.Status)

	// cancelling after the start must fail, the meeting is no longer scheduled
	_, err = p.TransitionScheduledMeeting(sm.ID, host.ID, types.ScheduleStatusScheduled, types.ScheduleStatusCancelled)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSingleActiveRecording(t *testing.T) {
	p := newSqlitePersister(t)

	m, err := p.GetOrCreateMeeting("echo-summit", "")
	require.NoError(t, err)

	_, err = p.GetActiveRecording(m.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	rec, err := p.CreateRecording(m.ID, "EG_1")
	require.NoError(t, err)
	assert.Equal(t, types.RecordingStatusRecording, rec.Status)

	active, err := p.GetActiveRecording(m.ID)
	require.NoError(t, err)
	assert.Equal(t, "EG_1", active.EgressID)

	require.NoError(t, p.UpdateRecordingStatus("EG_1", types.RecordingStatusCompleted, "https://files/echo.ogg", 61000))
	_, err = p.GetActiveRecording(m.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, p.UpdateRecordingStatus("EG_unknown", types.RecordingStatusFailed, "", 0), ErrNotFound)
}

func TestEndMeeting(t *testing.T) {
	p := newSqlitePersister(t)

	_, err := p.GetOrCreateMeeting("wrap-grove", "RM_9")
	require.NoError(t, err)

	open, err := p.ListOpenMeetings()
	require.NoError(t, err)
	require.Len(t, open, 1)

	require.NoError(t, p.EndMeeting("wrap-grove", time.Now()))
	open, err = p.ListOpenMeetings()
	require.NoError(t, err)
	assert.Len(t, open, 0)

	assert.ErrorIs(t, p.EndMeeting("no-such-room", time.Now()), ErrNotFound)
}
