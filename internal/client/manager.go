package client

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/immxrtalbeast/meshcall/internal/domain"
	"github.com/immxrtalbeast/meshcall/lib/logger/sl"
	"github.com/pion/webrtc/v3"
)

// Display renders remote streams.
type Display interface {
	// Attach shows stream in the tile of remoteID. It returns false when the
	// tile does not exist yet.
	Attach(remoteID string, stream RemoteStream) bool
	Remove(remoteID string)
}

type ManagerConfig struct {
	AttachInterval time.Duration
	AttachAttempts int
}

func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		AttachInterval: 500 * time.Millisecond,
		AttachAttempts: 20,
	}
}

// PeerConnectionManager owns the peer links of the local participant, at most
// one per remote participant.
type PeerConnectionManager struct {
	factory TransportFactory
	outbox  Outbox
	display Display
	cfg     ManagerConfig
	log     *slog.Logger

	mu    sync.Mutex
	links map[string]*PeerLink
	media LocalMedia
}

func NewPeerConnectionManager(factory TransportFactory, outbox Outbox, display Display, cfg ManagerConfig, log *slog.Logger) *PeerConnectionManager {
	if log == nil {
		log = slog.Default()
	}
	if cfg.AttachInterval <= 0 || cfg.AttachAttempts <= 0 {
		cfg = DefaultManagerConfig()
	}
	return &PeerConnectionManager{
		factory: factory,
		outbox:  outbox,
		display: display,
		cfg:     cfg,
		log:     log,
		links:   make(map[string]*PeerLink),
	}
}

// SetLocalMedia sets the tracks added to links created from now on. A nil
// media makes new links receive-only.
func (m *PeerConnectionManager) SetLocalMedia(media LocalMedia) {
	m.mu.Lock()
	m.media = media
	m.mu.Unlock()
}

func (m *PeerConnectionManager) Link(remoteID string) (*PeerLink, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.links[remoteID]
	return l, ok
}

func (m *PeerConnectionManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.links)
}

// GetOrCreate returns the link to remoteID, creating it when absent. The
// second result reports whether the link was created by this call.
func (m *PeerConnectionManager) GetOrCreate(remoteID string) (*PeerLink, bool, error) {
	const op = "client.manager.get_or_create"

	m.mu.Lock()
	defer m.mu.Unlock()

	if l, ok := m.links[remoteID]; ok {
		return l, false, nil
	}

	transport, err := m.factory.NewTransport()
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}
	link := newPeerLink(remoteID, transport)

	transport.OnTrack(func(streamID string, track *webrtc.TrackRemote) {
		m.handleTrack(link, streamID, track)
	})
	transport.OnICECandidate(func(c webrtc.ICECandidateInit) {
		if link.State() == StateClosed {
			return
		}
		if err := sendSignal(m.outbox, domain.SignalCandidate, remoteID, c); err != nil {
			m.log.Debug("failed to send candidate", slog.String("peer", remoteID), sl.Err(err))
		}
	})
	transport.OnFailed(func() {
		m.closeLink(link)
	})

	if m.media != nil {
		for _, track := range m.media.Tracks() {
			if err := transport.AddTrack(track); err != nil {
				_ = transport.Close()
				return nil, false, fmt.Errorf("%s: add track: %w", op, err)
			}
		}
		link.sendsMedia = true
	} else if err := transport.AddRecvOnly(); err != nil {
		_ = transport.Close()
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}

	m.links[remoteID] = link
	m.log.Debug("peer link created",
		slog.String("peer", remoteID),
		slog.Bool("sends_media", link.sendsMedia),
	)
	return link, true, nil
}

// Close tears down the link to remoteID, if any.
func (m *PeerConnectionManager) Close(remoteID string) {
	m.mu.Lock()
	link, ok := m.links[remoteID]
	if ok {
		delete(m.links, remoteID)
	}
	m.mu.Unlock()

	if !ok {
		return
	}
	m.shutdown(link)
}

func (m *PeerConnectionManager) CloseAll() {
	m.mu.Lock()
	links := make([]*PeerLink, 0, len(m.links))
	for id, l := range m.links {
		links = append(links, l)
		delete(m.links, id)
	}
	m.mu.Unlock()

	for _, l := range links {
		m.shutdown(l)
	}
}

// closeLink closes link and forgets it only if it is still the current link
// for its remote participant.
func (m *PeerConnectionManager) closeLink(link *PeerLink) {
	m.mu.Lock()
	current := m.links[link.RemoteID] == link
	if current {
		delete(m.links, link.RemoteID)
	}
	m.mu.Unlock()

	if current {
		m.shutdown(link)
		return
	}
	_, _ = link.close()
}

func (m *PeerConnectionManager) shutdown(link *PeerLink) {
	closed, err := link.close()
	if !closed {
		return
	}
	if err != nil {
		m.log.Debug("transport close failed", slog.String("peer", link.RemoteID), sl.Err(err))
	}
	m.display.Remove(link.RemoteID)
	m.log.Debug("peer link closed", slog.String("peer", link.RemoteID))
}

func (m *PeerConnectionManager) handleTrack(link *PeerLink, streamID string, track *webrtc.TrackRemote) {
	stream, isNew, ok := link.addTrack(streamID, track)
	if !ok || !isNew {
		return
	}
	go func() {
		if err := m.attach(link, stream); err != nil {
			m.log.Warn("remote stream not shown",
				slog.String("peer", link.RemoteID),
				slog.String("stream", stream.ID),
				sl.Err(err),
			)
		}
	}()
}

// attach retries until the display accepts the stream, the attempts are used
// up, or the link closes.
func (m *PeerConnectionManager) attach(link *PeerLink, stream RemoteStream) error {
	ticker := time.NewTicker(m.cfg.AttachInterval)
	defer ticker.Stop()

	for attempt := 1; ; attempt++ {
		select {
		case <-link.Done():
			return ErrLinkClosed
		default:
		}

		if m.display.Attach(link.RemoteID, stream) {
			return nil
		}
		if attempt >= m.cfg.AttachAttempts {
			return ErrAttachTimeout
		}

		select {
		case <-link.Done():
			return ErrLinkClosed
		case <-ticker.C:
		}
	}
}
