package client

import (
	"context"
	"sync"

	"github.com/pion/webrtc/v3"
)

type LinkState int

const (
	StateIdle LinkState = iota
	StateOffering
	StateAnswering
	StateConnected
	StateClosed
)

func (s LinkState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateOffering:
		return "offering"
	case StateAnswering:
		return "answering"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// NegotiationRole tells which side of a link sends the offer.
type NegotiationRole int

const (
	RoleUnassigned NegotiationRole = iota
	RoleInitiator
	RoleResponder
)

func (r NegotiationRole) String() string {
	switch r {
	case RoleInitiator:
		return "initiator"
	case RoleResponder:
		return "responder"
	}
	return "unassigned"
}

// RemoteStream is the media received from a remote participant.
type RemoteStream struct {
	ID     string
	Tracks []*webrtc.TrackRemote
}

// PeerLink is the local view of the connection to one remote participant.
type PeerLink struct {
	RemoteID string

	ctx    context.Context
	cancel context.CancelFunc

	mu            sync.Mutex
	role          NegotiationRole
	state         LinkState
	sendsMedia    bool
	transport     Transport
	remoteDescSet bool
	pending       []webrtc.ICECandidateInit
	stream        *RemoteStream
}

func newPeerLink(remoteID string, transport Transport) *PeerLink {
	ctx, cancel := context.WithCancel(context.Background())
	return &PeerLink{
		RemoteID:  remoteID,
		ctx:       ctx,
		cancel:    cancel,
		state:     StateIdle,
		transport: transport,
	}
}

func (l *PeerLink) State() LinkState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *PeerLink) Role() NegotiationRole {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.role
}

func (l *PeerLink) SendsMedia() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sendsMedia
}

// PendingCandidates is the number of remote candidates waiting for the
// remote description.
func (l *PeerLink) PendingCandidates() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending)
}

// Stream returns a copy of the stored remote stream, if any.
func (l *PeerLink) Stream() (RemoteStream, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stream == nil {
		return RemoteStream{}, false
	}
	return l.stream.copy(), true
}

// Done is closed when the link is closed.
func (l *PeerLink) Done() <-chan struct{} {
	return l.ctx.Done()
}

// addTrack stores track under streamID. It reports whether this is the first
// track of a new stream, along with a copy of the stream.
func (l *PeerLink) addTrack(streamID string, track *webrtc.TrackRemote) (RemoteStream, bool, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state == StateClosed {
		return RemoteStream{}, false, false
	}
	if l.stream == nil || l.stream.ID != streamID {
		l.stream = &RemoteStream{ID: streamID}
		l.stream.Tracks = append(l.stream.Tracks, track)
		return l.stream.copy(), true, true
	}
	l.stream.Tracks = append(l.stream.Tracks, track)
	return l.stream.copy(), false, true
}

// applyRemoteCandidateLocked queues the candidate until the remote
// description is set.
func (l *PeerLink) applyRemoteCandidateLocked(c webrtc.ICECandidateInit) error {
	if !l.remoteDescSet {
		l.pending = append(l.pending, c)
		return nil
	}
	return l.transport.AddICECandidate(c)
}

// setRemoteDescriptionLocked applies desc and flushes queued candidates in
// arrival order. A failing candidate does not stop the flush; its error is
// returned in the first result.
func (l *PeerLink) setRemoteDescriptionLocked(desc webrtc.SessionDescription) ([]error, error) {
	if err := l.transport.SetRemoteDescription(desc); err != nil {
		return nil, err
	}
	l.remoteDescSet = true

	var errs []error
	for _, c := range l.pending {
		if err := l.transport.AddICECandidate(c); err != nil {
			errs = append(errs, err)
		}
	}
	l.pending = nil
	return errs, nil
}

// close marks the link closed and releases its transport. It reports false
// when the link was already closed.
// The transport is closed outside the lock since its close may fire
// callbacks that take it.
func (l *PeerLink) close() (bool, error) {
	l.mu.Lock()
	if l.state == StateClosed {
		l.mu.Unlock()
		return false, nil
	}
	l.state = StateClosed
	l.cancel()
	l.pending = nil
	l.stream = nil
	transport := l.transport
	l.mu.Unlock()

	return true, transport.Close()
}

func (s *RemoteStream) copy() RemoteStream {
	return RemoteStream{ID: s.ID, Tracks: append([]*webrtc.TrackRemote(nil), s.Tracks...)}
}
