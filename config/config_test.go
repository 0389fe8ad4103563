package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadConfigurationFromDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "01-persistence.toml"), []byte(`
[persistence]
type = "sqlite"
dsn = "meet.db"
`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "02-services.toml"), []byte(`
log_level = "DEBUG"

[roomservice]
host = "http://localhost:7880"
api_key = "devkey"
api_secret = "devsecret"
empty_timeout = 300

[auth]
jwt_secret = "s3cret"
seed_password = "hunter22"

[[auth.host]]
email = "jane@example.com"
name = "Jane"

[notify]
frontend_url = "https://meet.example.com"
`), 0o644))

	cfg, err := ReadConfiguration(dir, GetFlagSet())
	require.NoError(t, err)

	// settings from both files are merged
	assert.Equal(t, "sqlite", cfg.PersistenceConfig.Type)
	assert.Equal(t, "meet.db", cfg.PersistenceConfig.DSN)
	assert.Equal(t, "DEBUG", cfg.LogLevel)
	assert.Equal(t, "http://localhost:7880", cfg.RoomServiceConfig.Host)
	assert.Equal(t, uint32(300), cfg.RoomServiceConfig.EmptyTimeout)
	assert.Equal(t, "s3cret", cfg.AuthConfig.JWTSecret)
	require.Len(t, cfg.AuthConfig.Hosts, 1)
	assert.Equal(t, "jane@example.com", cfg.AuthConfig.Hosts[0].Email)
	assert.Equal(t, "https://meet.example.com", cfg.NotifyConfig.FrontendURL)

	// defaults kick in where the files are silent
	assert.Equal(t, defaultSweepSpec, cfg.SweepSpec)
	assert.Equal(t, defaultAgentURL, cfg.AgentConfig.URL)
	assert.Equal(t, defaultSessionHours, cfg.AuthConfig.SessionHours)
	assert.Equal(t, uint32(defaultMaxParticipants), cfg.RoomServiceConfig.MaxParticipants)
}
