package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/immxrtalbeast/meshcall/internal/domain"
	"github.com/pion/webrtc/v3"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeTransport struct {
	mu         sync.Mutex
	remote     []webrtc.SessionDescription
	candidates []webrtc.ICECandidateInit
	tracks     []webrtc.TrackLocal
	recvOnly   bool
	closed     bool
	offerErr   error

	onTrack     func(string, *webrtc.TrackRemote)
	onCandidate func(webrtc.ICECandidateInit)
	onFailed    func()
}

func (t *fakeTransport) CreateOffer() (webrtc.SessionDescription, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.offerErr != nil {
		return webrtc.SessionDescription{}, t.offerErr
	}
	return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "fake-offer"}, nil
}

func (t *fakeTransport) CreateAnswer() (webrtc.SessionDescription, error) {
	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "fake-answer"}, nil
}

func (t *fakeTransport) SetRemoteDescription(desc webrtc.SessionDescription) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.remote = append(t.remote, desc)
	return nil
}

func (t *fakeTransport) AddICECandidate(c webrtc.ICECandidateInit) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.remote) == 0 {
		return errors.New("remote description not set")
	}
	t.candidates = append(t.candidates, c)
	return nil
}

func (t *fakeTransport) AddTrack(track webrtc.TrackLocal) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tracks = append(t.tracks, track)
	return nil
}

func (t *fakeTransport) AddRecvOnly() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.recvOnly = true
	return nil
}

func (t *fakeTransport) OnTrack(h func(string, *webrtc.TrackRemote)) { t.onTrack = h }

func (t *fakeTransport) OnICECandidate(h func(webrtc.ICECandidateInit)) { t.onCandidate = h }

func (t *fakeTransport) OnFailed(h func()) { t.onFailed = h }

func (t *fakeTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

func (t *fakeTransport) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

func (t *fakeTransport) appliedCandidates() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.candidates))
	for _, c := range t.candidates {
		out = append(out, c.Candidate)
	}
	return out
}

func (t *fakeTransport) remoteDescriptions() []webrtc.SessionDescription {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]webrtc.SessionDescription(nil), t.remote...)
}

type fakeFactory struct {
	mu         sync.Mutex
	transports []*fakeTransport
	offerErr   error
}

func (f *fakeFactory) NewTransport() (Transport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &fakeTransport{offerErr: f.offerErr}
	f.transports = append(f.transports, t)
	return t, nil
}

func (f *fakeFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.transports)
}

type fakeOutbox struct {
	mu     sync.Mutex
	events []domain.Event
}

func (o *fakeOutbox) Send(ev domain.Event) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, ev)
	return nil
}

type sentSignal struct {
	Type    string
	Target  string
	Payload json.RawMessage
}

func (o *fakeOutbox) sent() []sentSignal {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]sentSignal, 0, len(o.events))
	for _, ev := range o.events {
		var req domain.SignalRequest
		_ = json.Unmarshal(ev.Payload, &req)
		out = append(out, sentSignal{Type: ev.Type, Target: req.Target, Payload: req.Payload})
	}
	return out
}

func (o *fakeOutbox) types() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]string, 0, len(o.events))
	for _, ev := range o.events {
		out = append(out, ev.Type)
	}
	return out
}

type fakeDisplay struct {
	mu      sync.Mutex
	ready   map[string]bool
	removed []string
	calls   atomic.Int32
}

func newFakeDisplay() *fakeDisplay {
	return &fakeDisplay{ready: make(map[string]bool)}
}

func (d *fakeDisplay) setReady(id string) {
	d.mu.Lock()
	d.ready[id] = true
	d.mu.Unlock()
}

func (d *fakeDisplay) Attach(remoteID string, _ RemoteStream) bool {
	d.calls.Add(1)
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ready[remoteID]
}

func (d *fakeDisplay) Remove(remoteID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.removed = append(d.removed, remoteID)
}

func (d *fakeDisplay) removedIDs() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.removed...)
}

type fakeMedia struct {
	stops atomic.Int32
}

func (m *fakeMedia) Tracks() []webrtc.TrackLocal {
	return []webrtc.TrackLocal{nil, nil}
}

func (m *fakeMedia) Stop() { m.stops.Add(1) }

type fakeProvider struct {
	media *fakeMedia
	err   error
}

func (p *fakeProvider) Acquire(context.Context) (LocalMedia, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.media, nil
}
