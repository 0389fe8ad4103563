package meeting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tcriess/lightspeed-meet/agent"
	"github.com/tcriess/lightspeed-meet/config"
	"github.com/tcriess/lightspeed-meet/globals"
	"github.com/tcriess/lightspeed-meet/notify"
	"github.com/tcriess/lightspeed-meet/persistence"
	"github.com/tcriess/lightspeed-meet/roomservice"
	"github.com/tcriess/lightspeed-meet/types"
	"github.com/tcriess/lightspeed-meet/ws"
)

// nameAttempts bounds the regeneration loop for generated room names. The
// word lists give 900 combinations, collisions stay rare until the store
// fills up considerably.
const nameAttempts = 10

// Manager owns the per-room meeting state machine: creation, scheduling,
// activation, transcription start/stop and notes completion. External side
// effects (room service, agent, notes webhook) go through the injected
// clients, all durable state goes through the persister.
type Manager struct {
	store    persistence.Persister
	rooms    *roomservice.Client
	agent    *agent.Client
	notifier *notify.Notifier
	registry *ws.Registry

	frontendURL string
}

func NewManager(cfg *config.Config, store persistence.Persister, rooms *roomservice.Client, agentClient *agent.Client, notifier *notify.Notifier, registry *ws.Registry) *Manager {
	return &Manager{
		store:       store,
		rooms:       rooms,
		agent:       agentClient,
		notifier:    notifier,
		registry:    registry,
		frontendURL: cfg.NotifyConfig.FrontendURL,
	}
}

// InviteLink builds the public join link for a room.
func (m *Manager) InviteLink(roomName string) string {
	if m.frontendURL == "" {
		return ""
	}
	return fmt.Sprintf("%s/join/%s", m.frontendURL, roomName)
}

// GetOrCreate is the idempotent meeting upsert: the first reference to a
// room name persists the row, every further call returns it.
func (m *Manager) GetOrCreate(roomName string) (*types.Meeting, error) {
	return m.store.GetOrCreateMeeting(roomName, "")
}

// CreateRoom allocates a room at the external service for an ad hoc meeting
// and records the meeting. An empty name gets a generated one.
func (m *Manager) CreateRoom(ctx context.Context, name string) (*types.Meeting, error) {
	if name == "" {
		var err error
		name, err = m.generateRoomName()
		if err != nil {
			return nil, err
		}
	}
	room, err := m.rooms.CreateRoom(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUpstream, err)
	}
	return m.store.GetOrCreateMeeting(room.Name, room.Sid)
}

// RoomInfo looks up the live room at the external service, ErrNotFound when
// it is not (or no longer) allocated there.
func (m *Manager) RoomInfo(ctx context.Context, roomName string) (name, sid string, participants uint32, err error) {
	room, err := m.rooms.GetRoom(ctx, roomName)
	if errors.Is(err, roomservice.ErrRoomNotFound) {
		return "", "", 0, ErrNotFound
	}
	if err != nil {
		return "", "", 0, fmt.Errorf("%w: %s", ErrUpstream, err)
	}
	return room.Name, room.Sid, room.NumParticipants, nil
}

// generateRoomName draws word-pair names until one is unused. The original
// behavior never checked for collisions, the check here is cheap and keeps
// the slug unique across meetings and schedules.
func (m *Manager) generateRoomName() (string, error) {
	for i := 0; i < nameAttempts; i++ {
		name := randomRoomName()
		if _, err := m.store.GetMeetingByRoom(name); !errors.Is(err, persistence.ErrNotFound) {
			continue
		}
		if _, err := m.store.GetScheduledMeetingByRoom(name); !errors.Is(err, persistence.ErrNotFound) {
			continue
		}
		return name, nil
	}
	return "", fmt.Errorf("could not find a free room name in %d attempts", nameAttempts)
}

// Schedule creates a future meeting in "scheduled" state with a freshly
// generated room name, owned by the calling host.
func (m *Manager) Schedule(hostUserID int64, clientName, clientEmail string, scheduledAt time.Time) (*types.ScheduledMeeting, error) {
	roomName, err := m.generateRoomName()
	if err != nil {
		return nil, err
	}
	sm := types.ScheduledMeeting{
		RoomName:    roomName,
		HostUserID:  hostUserID,
		ClientName:  clientName,
		ClientEmail: clientEmail,
		ScheduledAt: scheduledAt,
		Status:      types.ScheduleStatusScheduled,
	}
	if err := m.store.CreateScheduledMeeting(&sm); err != nil {
		return nil, err
	}
	return &sm, nil
}

// ListScheduled returns the host's scheduled meetings.
func (m *Manager) ListScheduled(hostUserID int64) ([]*types.ScheduledMeeting, error) {
	return m.store.ListScheduledMeetingsByHost(hostUserID)
}

// Start activates a scheduled meeting: the external room is allocated, then
// the status moves scheduled -> active. Only the owning host may start it,
// and only from the "scheduled" state.
func (m *Manager) Start(ctx context.Context, id, hostUserID int64) (*types.ScheduledMeeting, string, error) {
	sm, err := m.store.GetScheduledMeeting(id)
	if errors.Is(err, persistence.ErrNotFound) {
		return nil, "", ErrNotFound
	}
	if err != nil {
		return nil, "", err
	}
	if sm.HostUserID != hostUserID {
		return nil, "", ErrNotOwner
	}
	if sm.Status != types.ScheduleStatusScheduled {
		return nil, "", ErrNotFound
	}
	room, err := m.rooms.CreateRoom(ctx, sm.RoomName)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %s", ErrUpstream, err)
	}
	sm, err = m.store.TransitionScheduledMeeting(id, hostUserID, types.ScheduleStatusScheduled, types.ScheduleStatusActive)
	if err != nil {
		return nil, "", mapStoreErr(err)
	}
	if _, err := m.store.GetOrCreateMeeting(room.Name, room.Sid); err != nil {
		globals.AppLogger.Error("could not record activated meeting", "room", room.Name, "error", err)
	}
	return sm, room.Sid, nil
}

// Cancel moves a scheduled meeting to the terminal "cancelled" state. A
// meeting that already left the "scheduled" state cannot be cancelled.
func (m *Manager) Cancel(id, hostUserID int64) error {
	_, err := m.store.TransitionScheduledMeeting(id, hostUserID, types.ScheduleStatusScheduled, types.ScheduleStatusCancelled)
	return mapStoreErr(err)
}

func mapStoreErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrNotOwner):
		return ErrNotOwner
	default:
		return err
	}
}

// JoinInfo returns the public join information for a scheduled room.
func (m *Manager) JoinInfo(roomName string) (*types.ScheduledMeeting, error) {
	sm, err := m.store.GetScheduledMeetingByRoom(roomName)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	return sm, nil
}

// BeginTranscription makes sure the meeting row exists and asks the agent to
// join the room. The agent treats a duplicate join as success, so repeated
// calls are safe. Whether the agent session is live is not tracked durably,
// the relay and the agent are the source of truth.
func (m *Manager) BeginTranscription(ctx context.Context, roomName string) (*types.Meeting, error) {
	meeting, err := m.store.GetOrCreateMeeting(roomName, "")
	if err != nil {
		return nil, err
	}
	if err := m.agent.Join(ctx, roomName); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUpstream, err)
	}
	globals.AppLogger.Info("started transcription", "room", roomName, "meeting_id", meeting.ID)
	return meeting, nil
}

// EndTranscription asks the agent to leave the room. The agent generates the
// notes asynchronously and pushes them back via SaveNotes, this call returns
// immediately with a processing acknowledgment. ErrNotFound if the agent
// holds no session for the room.
func (m *Manager) EndTranscription(ctx context.Context, roomName string) error {
	err := m.agent.Leave(ctx, roomName)
	if errors.Is(err, agent.ErrNoSession) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("%w: %s", ErrUpstream, err)
	}
	globals.AppLogger.Info("ended transcription", "room", roomName)
	return nil
}

// SaveNotes persists a generated notes document (creating the meeting if
// absent) and kicks off the downstream delivery side effects. The side
// effects are fire-and-forget, their failure never fails the save.
func (m *Manager) SaveNotes(roomName, markdown, model string, inputTokens, outputTokens int) (*types.MeetingNotes, error) {
	meeting, err := m.store.GetOrCreateMeeting(roomName, "")
	if err != nil {
		return nil, err
	}
	notes := types.MeetingNotes{
		MeetingID:    meeting.ID,
		Markdown:     markdown,
		ModelUsed:    model,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
	}
	if err := m.store.StoreNotes(&notes); err != nil {
		return nil, err
	}
	if m.registry != nil {
		m.registry.PublishEvent(roomName, types.WireEventTypeNotes, &notes)
	}
	if m.notifier != nil {
		go func() {
			if err := m.notifier.NotesSaved(roomName, meeting.ID, markdown); err != nil {
				globals.AppLogger.Error("notes notification failed", "room", roomName, "error", err)
			}
		}()
	}
	return &notes, nil
}

// LatestNotes returns the most recent notes for the room, ErrNotFound while
// generation has not completed (callers poll this).
func (m *Manager) LatestNotes(roomName string) (*types.MeetingNotes, error) {
	meeting, err := m.store.GetMeetingByRoom(roomName)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	notes, err := m.store.GetLatestNotes(meeting.ID)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	return notes, nil
}

// ListMeetingsWithNotes returns recent meetings that have notes.
func (m *Manager) ListMeetingsWithNotes(limit int) ([]*types.MeetingSummary, error) {
	return m.store.ListMeetingsWithNotes(limit)
}

// SubscribeEmail opts an address into the notes mail for a room. Repeated
// subscriptions update the display name instead of duplicating.
func (m *Manager) SubscribeEmail(roomName, email, participantName string) (*types.EmailSubscription, error) {
	meeting, err := m.store.GetOrCreateMeeting(roomName, "")
	if err != nil {
		return nil, err
	}
	sub := types.EmailSubscription{
		MeetingID:       meeting.ID,
		Email:           email,
		ParticipantName: participantName,
	}
	if err := m.store.UpsertEmailSubscription(&sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

// EmailSubscriptions lists the opt-ins of a room.
func (m *Manager) EmailSubscriptions(roomName string) ([]*types.EmailSubscription, error) {
	meeting, err := m.store.GetMeetingByRoom(roomName)
	if errors.Is(err, persistence.ErrNotFound) {
		return []*types.EmailSubscription{}, nil
	}
	if err != nil {
		return nil, err
	}
	return m.store.GetEmailSubscriptions(meeting.ID)
}

// UnsubscribeEmail removes an opt-in, it is a no-op if there is none.
func (m *Manager) UnsubscribeEmail(roomName, email string) error {
	meeting, err := m.store.GetMeetingByRoom(roomName)
	if errors.Is(err, persistence.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return m.store.DeleteEmailSubscription(meeting.ID, email)
}

// CloseEndedMeetings sets the end timestamp on meetings whose external room
// is gone. Run periodically.
func (m *Manager) CloseEndedMeetings(ctx context.Context) {
	meetings, err := m.store.ListOpenMeetings()
	if err != nil {
		globals.AppLogger.Error("could not list open meetings", "error", err)
		return
	}
	for _, meeting := range meetings {
		if meeting.RoomSid == "" {
			// never allocated at the room service, nothing to observe
			continue
		}
		_, err := m.rooms.GetRoom(ctx, meeting.RoomName)
		if err == nil {
			continue
		}
		if !errors.Is(err, roomservice.ErrRoomNotFound) {
			globals.AppLogger.Warn("room lookup failed during sweep", "room", meeting.RoomName, "error", err)
			continue
		}
		now := time.Now()
		if err := m.store.EndMeeting(meeting.RoomName, now); err != nil && !errors.Is(err, persistence.ErrNotFound) {
			globals.AppLogger.Error("could not end meeting", "room", meeting.RoomName, "error", err)
			continue
		}
		globals.AppLogger.Info("closed ended meeting", "room", meeting.RoomName)
	}
}

// IssueToken creates a join token for the given participant. An empty
// participant name yields a generated guest name.
func (m *Manager) IssueToken(roomName, participantName string) (token, identity string, err error) {
	return m.rooms.IssueToken(roomName, participantName)
}
