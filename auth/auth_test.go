package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tcriess/lightspeed-meet/config"
	"github.com/tcriess/lightspeed-meet/persistence"
)

func newTestService(t *testing.T) (*Service, *config.Config) {
	t.Helper()
	cfg := &config.Config{
		PersistenceConfig: config.PersistenceConfig{Type: "buntdb", DSN: ":memory:"},
		AuthConfig: config.AuthConfig{
			JWTSecret:    "test-secret",
			SessionHours: 1,
			SeedPassword: "hunter22",
			Hosts: []config.SeedHost{
				{Email: "jane@example.com", Name: "Jane"},
				{Email: "bob@example.com", Name: "Bob"},
			},
		},
	}
	store, err := persistence.NewPersister(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	svc, err := NewService(cfg, store)
	require.NoError(t, err)
	require.NoError(t, svc.SeedHosts(cfg))
	return svc, cfg
}

func TestNewServiceRequiresSecret(t *testing.T) {
	_, err := NewService(&config.Config{}, nil)
	assert.Error(t, err)
}

func TestLoginAndVerify(t *testing.T) {
	svc, _ := newTestService(t)

	token, user, err := svc.Login("jane@example.com", "hunter22")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.Equal(t, "Jane", user.Name)

	id, err := svc.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, id.UserID)
	assert.Equal(t, "jane@example.com", id.Email)
	assert.Equal(t, "Jane", id.Name)
}

func TestLoginWrongPassword(t *testing.T) {
	svc, _ := newTestService(t)

	token, user, err := svc.Login("jane@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Empty(t, token)
	assert.Nil(t, user)
}

func TestLoginUnknownUser(t *testing.T) {
	svc, _ := newTestService(t)

	// unknown user and wrong password are indistinguishable
	_, _, err := svc.Login("nobody@example.com", "hunter22")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestVerifyGarbageToken(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Verify("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestSeedHostsIdempotent(t *testing.T) {
	svc, cfg := newTestService(t)

	// a second seeding run must not reset existing accounts
	require.NoError(t, svc.SeedHosts(cfg))

	_, _, err := svc.Login("bob@example.com", "hunter22")
	assert.NoError(t, err)
}
