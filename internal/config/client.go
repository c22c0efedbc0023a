package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
)

// Default client configuration values.
const (
	DefaultServerURL = "ws://localhost:4001/ws"
	DefaultSTUN      = "stun:stun.l.google.com:19302"
	DefaultRoom      = "default-room"
)

// ClientConfig holds the call client configuration.
type ClientConfig struct {
	// ServerURL is the signaling WebSocket endpoint.
	ServerURL string

	STUNServers []string

	// NoMedia joins without acquiring local media.
	NoMedia bool
}

// ClientOptions carries CLI flag overrides.
type ClientOptions struct {
	ServerURL  string
	STUNServer string
	NoMedia    bool
}

// LoadClient resolves the client configuration with the following priority:
// 1. CLI flags (passed via ClientOptions)
// 2. Environment variables
// 3. Hardcoded defaults
func LoadClient(opts ClientOptions) (*ClientConfig, error) {
	serverURL := opts.ServerURL
	if serverURL == "" {
		serverURL = os.Getenv("MESHCALL_SERVER")
	}
	if serverURL == "" {
		serverURL = DefaultServerURL
	}

	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("invalid server URL scheme %q: want ws or wss", u.Scheme)
	}

	stun := opts.STUNServer
	if stun == "" {
		stun = os.Getenv("STUN_SERVER")
	}
	if stun == "" {
		stun = DefaultSTUN
	}

	return &ClientConfig{
		ServerURL:   u.String(),
		STUNServers: splitList(stun),
		NoMedia:     opts.NoMedia,
	}, nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
