package roomservice

import (
	"context"
	"errors"
	"fmt"

	"github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go/v2"
	"github.com/tcriess/lightspeed-meet/config"
)

// ErrRoomNotFound is returned by GetRoom when the external service does not
// know the room (never allocated, or already torn down).
var ErrRoomNotFound = errors.New("room not found")

// Client wraps the external media room service: room allocation and lookup,
// audio egress for the legacy recording path, and join-credential minting.
type Client struct {
	apiKey          string
	apiSecret       string
	emptyTimeout    uint32
	maxParticipants uint32

	rooms  *lksdk.RoomServiceClient
	egress *lksdk.EgressClient
}

func New(cfg *config.Config) (*Client, error) {
	rsCfg := cfg.RoomServiceConfig
	if rsCfg.Host == "" || rsCfg.APIKey == "" || rsCfg.APISecret == "" {
		return nil, fmt.Errorf("room service host, api_key and api_secret are required")
	}
	return &Client{
		apiKey:          rsCfg.APIKey,
		apiSecret:       rsCfg.APISecret,
		emptyTimeout:    rsCfg.EmptyTimeout,
		maxParticipants: rsCfg.MaxParticipants,
		rooms:           lksdk.NewRoomServiceClient(rsCfg.Host, rsCfg.APIKey, rsCfg.APISecret),
		egress:          lksdk.NewEgressClient(rsCfg.Host, rsCfg.APIKey, rsCfg.APISecret),
	}, nil
}

// CreateRoom allocates the room at the external service. Allocation is
// idempotent on the service side, re-creating an existing room returns the
// current room.
func (c *Client) CreateRoom(ctx context.Context, name string) (*livekit.Room, error) {
	room, err := c.rooms.CreateRoom(ctx, &livekit.CreateRoomRequest{
		Name:            name,
		EmptyTimeout:    c.emptyTimeout,
		MaxParticipants: c.maxParticipants,
	})
	if err != nil {
		return nil, fmt.Errorf("create room: %w", err)
	}
	return room, nil
}

// GetRoom looks up a live room by name, ErrRoomNotFound when there is none.
func (c *Client) GetRoom(ctx context.Context, name string) (*livekit.Room, error) {
	res, err := c.rooms.ListRooms(ctx, &livekit.ListRoomsRequest{Names: []string{name}})
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	if len(res.Rooms) == 0 {
		return nil, ErrRoomNotFound
	}
	return res.Rooms[0], nil
}

// StartAudioEgress starts an audio-only composite egress for the room and
// returns the egress job id.
func (c *Client) StartAudioEgress(ctx context.Context, roomName string) (string, error) {
	info, err := c.egress.StartRoomCompositeEgress(ctx, &livekit.RoomCompositeEgressRequest{
		RoomName:  roomName,
		AudioOnly: true,
		Output: &livekit.RoomCompositeEgressRequest_File{
			File: &livekit.EncodedFileOutput{
				FileType: livekit.EncodedFileType_OGG,
				Filepath: roomName + "-{time}.ogg",
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("start egress: %w", err)
	}
	return info.EgressId, nil
}

// StopEgress stops the egress job and returns the resulting audio file
// location and duration in milliseconds.
func (c *Client) StopEgress(ctx context.Context, egressID string) (string, int64, error) {
	info, err := c.egress.StopEgress(ctx, &livekit.StopEgressRequest{EgressId: egressID})
	if err != nil {
		return "", 0, fmt.Errorf("stop egress: %w", err)
	}
	var audioURL string
	var durationMS int64
	if f := info.GetFile(); f != nil {
		audioURL = f.Location
		durationMS = f.Duration / 1000000 // nanoseconds to ms
	}
	return audioURL, durationMS, nil
}
