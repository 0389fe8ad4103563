package meeting

import (
	"context"
	"errors"
	"fmt"

	"github.com/tcriess/lightspeed-meet/globals"
	"github.com/tcriess/lightspeed-meet/persistence"
	"github.com/tcriess/lightspeed-meet/types"
)

// Legacy audio-egress recording path, kept for backwards compatibility with
// clients that do not use live transcription.

// StartRecording starts an audio-only egress for the room. If a recording is
// already running for the meeting it is returned as-is, the call is
// idempotent.
func (m *Manager) StartRecording(ctx context.Context, roomName string) (*types.Recording, bool, error) {
	meeting, err := m.store.GetOrCreateMeeting(roomName, "")
	if err != nil {
		return nil, false, err
	}
	if rec, err := m.store.GetActiveRecording(meeting.ID); err == nil {
		return rec, true, nil
	} else if !errors.Is(err, persistence.ErrNotFound) {
		return nil, false, err
	}
	egressID, err := m.rooms.StartAudioEgress(ctx, roomName)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %s", ErrUpstream, err)
	}
	rec, err := m.store.CreateRecording(meeting.ID, egressID)
	if err != nil {
		return nil, false, err
	}
	globals.AppLogger.Info("started recording", "room", roomName, "egress_id", egressID)
	return rec, false, nil
}

// StopRecording stops the active egress for the room, stores the audio
// location and triggers batch transcription at the agent in the background.
// The recording moves to "processing", the background failure path moves it
// to "failed".
func (m *Manager) StopRecording(ctx context.Context, roomName string) (*types.Recording, error) {
	meeting, err := m.store.GetMeetingByRoom(roomName)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	rec, err := m.store.GetActiveRecording(meeting.ID)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	audioURL, durationMS, err := m.rooms.StopEgress(ctx, rec.EgressID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUpstream, err)
	}
	if err := m.store.UpdateRecordingStatus(rec.EgressID, types.RecordingStatusProcessing, audioURL, durationMS); err != nil {
		return nil, err
	}
	rec.Status = types.RecordingStatusProcessing
	rec.AudioURL = audioURL
	rec.DurationMS = durationMS
	globals.AppLogger.Info("stopped recording", "room", roomName, "audio_url", audioURL)

	go func() {
		if err := m.agent.TranscribeRecording(context.Background(), roomName, audioURL, rec.EgressID); err != nil {
			globals.AppLogger.Error("could not trigger batch transcription", "room", roomName, "error", err)
			if err := m.store.UpdateRecordingStatus(rec.EgressID, types.RecordingStatusFailed, audioURL, durationMS); err != nil {
				globals.AppLogger.Error("could not mark recording failed", "egress_id", rec.EgressID, "error", err)
			}
			return
		}
		globals.AppLogger.Info("batch transcription triggered", "room", roomName)
	}()

	return rec, nil
}

// RecordingStatus returns the active recording for the room, ErrNotFound
// when the meeting is unknown and a nil recording when there is none active.
func (m *Manager) RecordingStatus(roomName string) (*types.Recording, error) {
	meeting, err := m.store.GetMeetingByRoom(roomName)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	rec, err := m.store.GetActiveRecording(meeting.ID)
	if errors.Is(err, persistence.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}
