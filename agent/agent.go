package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/tcriess/lightspeed-meet/config"
)

var (
	// ErrUnavailable is returned when the agent process cannot be reached or
	// answers with an unexpected status.
	ErrUnavailable = errors.New("transcription agent unavailable")

	// ErrNoSession is returned by Leave when the agent holds no session for
	// the room.
	ErrNoSession = errors.New("no active transcription session")
)

// Client talks to the external transcription agent. The agent joins a room
// as a silent participant, transcribes the audio and pushes transcript
// fragments and generated notes back via the HTTP API.
type Client struct {
	baseURL string
	http    *http.Client
}

func New(cfg *config.Config) *Client {
	return &Client{
		baseURL: cfg.AgentConfig.URL,
		http:    http.DefaultClient,
	}
}

func (c *Client) post(ctx context.Context, path string, payload interface{}) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, err)
	}
	return res, nil
}

type roomRequest struct {
	RoomName string `json:"room_name"`
}

// Join asks the agent to join the room and start transcribing. Joining a
// room the agent already sits in is treated as success by the agent, so
// duplicate calls are safe.
func (c *Client) Join(ctx context.Context, roomName string) error {
	res, err := c.post(ctx, "/join", roomRequest{RoomName: roomName})
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: join returned status %d", ErrUnavailable, res.StatusCode)
	}
	return nil
}

// Leave asks the agent to leave the room. The agent then asynchronously
// generates notes and pushes them back via the notes API, Leave does not
// wait for that.
func (c *Client) Leave(ctx context.Context, roomName string) error {
	res, err := c.post(ctx, "/leave", roomRequest{RoomName: roomName})
	if err != nil {
		return err
	}
	defer res.Body.Close()
	switch res.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
		return ErrNoSession
	default:
		return fmt.Errorf("%w: leave returned status %d", ErrUnavailable, res.StatusCode)
	}
}

type transcribeRecordingRequest struct {
	RoomName string `json:"room_name"`
	AudioURL string `json:"audio_url"`
	EgressID string `json:"egress_id"`
}

// TranscribeRecording triggers batch transcription of a finished recording
// (legacy path).
func (c *Client) TranscribeRecording(ctx context.Context, roomName, audioURL, egressID string) error {
	res, err := c.post(ctx, "/transcribe-recording", transcribeRecordingRequest{
		RoomName: roomName,
		AudioURL: audioURL,
		EgressID: egressID,
	})
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: transcribe-recording returned status %d", ErrUnavailable, res.StatusCode)
	}
	return nil
}
