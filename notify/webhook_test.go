package notify

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tcriess/lightspeed-meet/config"
	"github.com/tcriess/lightspeed-meet/persistence"
	"github.com/tcriess/lightspeed-meet/types"
)

func newTestStore(t *testing.T) persistence.Persister {
	t.Helper()
	cfg := &config.Config{
		PersistenceConfig: config.PersistenceConfig{Type: "buntdb", DSN: ":memory:"},
	}
	store, err := persistence.NewPersister(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestNotesSavedPostsRecipients(t *testing.T) {
	store := newTestStore(t)

	m, err := store.GetOrCreateMeeting("mail-room", "")
	require.NoError(t, err)
	require.NoError(t, store.UpsertEmailSubscription(&types.EmailSubscription{
		MeetingID: m.ID, Email: "client@example.com", ParticipantName: "Client",
	}))

	var got webhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := &config.Config{NotifyConfig: config.NotifyConfig{EmailWebhookURL: srv.URL}}
	n := New(cfg, store)

	require.NoError(t, n.NotesSaved("mail-room", m.ID, "# Notes"))
	assert.Equal(t, "mail-room", got.RoomName)
	assert.Equal(t, "# Notes", got.Notes)
	require.Len(t, got.Recipients, 1)
	assert.Equal(t, "client@example.com", got.Recipients[0].Email)
	assert.NotEmpty(t, got.Timestamp)
}

func TestNotesSavedSkipsWithoutSubscribers(t *testing.T) {
	store := newTestStore(t)

	m, err := store.GetOrCreateMeeting("quiet-room", "")
	require.NoError(t, err)

	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	cfg := &config.Config{NotifyConfig: config.NotifyConfig{EmailWebhookURL: srv.URL}}
	n := New(cfg, store)

	require.NoError(t, n.NotesSaved("quiet-room", m.ID, "# Notes"))
	assert.False(t, called)
}

func TestNotesSavedUnconfigured(t *testing.T) {
	n := New(&config.Config{}, nil)
	assert.NoError(t, n.NotesSaved("any-room", 1, "# Notes"))
}

func TestNotesSavedWebhookFailure(t *testing.T) {
	store := newTestStore(t)

	m, err := store.GetOrCreateMeeting("fail-room", "")
	require.NoError(t, err)
	require.NoError(t, store.UpsertEmailSubscription(&types.EmailSubscription{
		MeetingID: m.ID, Email: "client@example.com",
	}))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	cfg := &config.Config{NotifyConfig: config.NotifyConfig{EmailWebhookURL: srv.URL}}
	n := New(cfg, store)
	assert.Error(t, n.NotesSaved("fail-room", m.ID, "# Notes"))
}
