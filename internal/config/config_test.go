package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestMustLoadPathFillsDefaults(t *testing.T) {
	path := writeConfig(t, "env: dev\n")

	cfg := MustLoadPath(path)

	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, ":4001", cfg.HTTP.Address)
	assert.Equal(t, 4, cfg.Room.VideoSlots)
	assert.Equal(t, 4000, cfg.Room.MaxMessageLength)
	assert.Equal(t, DefaultIdentities, cfg.Room.Identities)
	assert.NotEmpty(t, cfg.WebRTC.STUNServers)
	assert.Equal(t, 24*time.Hour, cfg.Redis.TTL)
	assert.Empty(t, cfg.Redis.Address)
}

func TestMustLoadPathReadsFile(t *testing.T) {
	path := writeConfig(t, `
env: prod
http:
  address: ":9000"
room:
  video_slots: 2
  identities: ["Lion", "Tiger"]
webrtc:
  stun_servers: ["stun:a:3478"]
redis:
  address: "localhost:6379"
  ttl: 1h
`)

	cfg := MustLoadPath(path)

	assert.Equal(t, "prod", cfg.Env)
	assert.Equal(t, ":9000", cfg.HTTP.Address)
	assert.Equal(t, 2, cfg.Room.VideoSlots)
	assert.Equal(t, []string{"Lion", "Tiger"}, cfg.Room.Identities)
	assert.Equal(t, []string{"stun:a:3478"}, cfg.WebRTC.STUNServers)
	assert.Equal(t, "localhost:6379", cfg.Redis.Address)
	assert.Equal(t, time.Hour, cfg.Redis.TTL)
}

func TestMustLoadPathPanicsOnMissingFile(t *testing.T) {
	assert.Panics(t, func() {
		MustLoadPath(filepath.Join(t.TempDir(), "absent.yaml"))
	})
}

func TestLoadClientLayering(t *testing.T) {
	t.Setenv("MESHCALL_SERVER", "")
	t.Setenv("STUN_SERVER", "")

	cfg, err := LoadClient(ClientOptions{})
	require.NoError(t, err)
	assert.Equal(t, DefaultServerURL, cfg.ServerURL)
	assert.Equal(t, []string{DefaultSTUN}, cfg.STUNServers)

	t.Setenv("MESHCALL_SERVER", "wss://calls.example.com/ws")
	t.Setenv("STUN_SERVER", "stun:a:3478, stun:b:3478")
	cfg, err = LoadClient(ClientOptions{})
	require.NoError(t, err)
	assert.Equal(t, "wss://calls.example.com/ws", cfg.ServerURL)
	assert.Equal(t, []string{"stun:a:3478", "stun:b:3478"}, cfg.STUNServers)

	cfg, err = LoadClient(ClientOptions{ServerURL: "ws://127.0.0.1:9/ws", NoMedia: true})
	require.NoError(t, err)
	assert.Equal(t, "ws://127.0.0.1:9/ws", cfg.ServerURL)
	assert.True(t, cfg.NoMedia)
}

func TestLoadClientRejectsHTTPScheme(t *testing.T) {
	_, err := LoadClient(ClientOptions{ServerURL: "http://localhost:4001/ws"})
	require.Error(t, err)
}
