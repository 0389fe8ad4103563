package roomservice

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tcriess/lightspeed-meet/config"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	cfg := &config.Config{
		RoomServiceConfig: config.RoomServiceConfig{
			Host:      "http://localhost:7880",
			APIKey:    "devkey",
			APISecret: "devsecret-devsecret-devsecret-00",
		},
	}
	c, err := New(cfg)
	require.NoError(t, err)
	return c
}

func TestNewRequiresCredentials(t *testing.T) {
	_, err := New(&config.Config{})
	assert.Error(t, err)
}

func TestIssueTokenDistinctIdentities(t *testing.T) {
	c := newTestClient(t)

	token1, identity1, err := c.IssueToken("brew-mountain", "Alice")
	require.NoError(t, err)
	token2, identity2, err := c.IssueToken("brew-mountain", "Alice")
	require.NoError(t, err)

	// two joins under the same display name must not collide
	assert.NotEqual(t, identity1, identity2)
	assert.NotEmpty(t, token1)
	assert.NotEmpty(t, token2)
	assert.True(t, strings.HasPrefix(identity1, "Alice-"))
}

func TestIssueTokenGuestName(t *testing.T) {
	c := newTestClient(t)

	_, identity, err := c.IssueToken("brew-mountain", "")
	require.NoError(t, err)
	assert.Contains(t, identity, "(guest)")
}
