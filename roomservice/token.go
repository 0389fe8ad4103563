package roomservice

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/folkengine/goname"
	lkauth "github.com/livekit/protocol/auth"
)

// tokenValidity bounds credential replay, not meeting duration. It is set
// far beyond a single session on purpose.
const tokenValidity = 24 * time.Hour

// IssueToken mints a join credential for one participant in one room. The
// identity gets a random suffix so the same display name can hold multiple
// concurrent connections (f.e. two browser tabs). An empty display name
// gets a generated guest name.
func (c *Client) IssueToken(roomName, participantName string) (token, identity string, err error) {
	name := participantName
	if name == "" {
		name = goname.New(goname.FantasyMap).FirstLast() + " (guest)"
	}
	identity = fmt.Sprintf("%s-%05d", name, rand.Intn(100000))

	at := lkauth.NewAccessToken(c.apiKey, c.apiSecret)
	grant := &lkauth.VideoGrant{
		RoomJoin: true,
		Room:     roomName,
	}
	at.AddGrant(grant).
		SetIdentity(identity).
		SetName(name).
		SetValidFor(tokenValidity)

	token, err = at.ToJWT()
	if err != nil {
		return "", "", fmt.Errorf("sign join token: %w", err)
	}
	return token, identity, nil
}
