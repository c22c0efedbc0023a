package client

import (
	"fmt"

	"github.com/pion/webrtc/v3"
)

// Transport is the media connection to one remote participant.
// CreateOffer and CreateAnswer also apply the result as local description.
type Transport interface {
	CreateOffer() (webrtc.SessionDescription, error)
	CreateAnswer() (webrtc.SessionDescription, error)
	SetRemoteDescription(desc webrtc.SessionDescription) error
	AddICECandidate(candidate webrtc.ICECandidateInit) error
	AddTrack(track webrtc.TrackLocal) error
	AddRecvOnly() error

	OnTrack(func(streamID string, track *webrtc.TrackRemote))
	OnICECandidate(func(candidate webrtc.ICECandidateInit))
	OnFailed(func())

	Close() error
}

type TransportFactory interface {
	NewTransport() (Transport, error)
}

// PionFactory builds transports backed by pion peer connections.
type PionFactory struct {
	config webrtc.Configuration
}

func NewPionFactory(stunServers []string) *PionFactory {
	var ice []webrtc.ICEServer
	if len(stunServers) > 0 {
		ice = []webrtc.ICEServer{{URLs: stunServers}}
	}
	return &PionFactory{config: webrtc.Configuration{ICEServers: ice}}
}

func (f *PionFactory) NewTransport() (Transport, error) {
	pc, err := webrtc.NewPeerConnection(f.config)
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}
	return &pionTransport{pc: pc}, nil
}

type pionTransport struct {
	pc *webrtc.PeerConnection
}

func (t *pionTransport) CreateOffer() (webrtc.SessionDescription, error) {
	offer, err := t.pc.CreateOffer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("create offer: %w", err)
	}
	if err := t.pc.SetLocalDescription(offer); err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("set local description: %w", err)
	}
	return *t.pc.LocalDescription(), nil
}

func (t *pionTransport) CreateAnswer() (webrtc.SessionDescription, error) {
	answer, err := t.pc.CreateAnswer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("create answer: %w", err)
	}
	if err := t.pc.SetLocalDescription(answer); err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("set local description: %w", err)
	}
	return *t.pc.LocalDescription(), nil
}

func (t *pionTransport) SetRemoteDescription(desc webrtc.SessionDescription) error {
	return t.pc.SetRemoteDescription(desc)
}

func (t *pionTransport) AddICECandidate(candidate webrtc.ICECandidateInit) error {
	return t.pc.AddICECandidate(candidate)
}

func (t *pionTransport) AddTrack(track webrtc.TrackLocal) error {
	_, err := t.pc.AddTrack(track)
	return err
}

func (t *pionTransport) AddRecvOnly() error {
	for _, kind := range []webrtc.RTPCodecType{webrtc.RTPCodecTypeAudio, webrtc.RTPCodecTypeVideo} {
		if _, err := t.pc.AddTransceiverFromKind(kind, webrtc.RTPTransceiverInit{
			Direction: webrtc.RTPTransceiverDirectionRecvonly,
		}); err != nil {
			return fmt.Errorf("add %s transceiver: %w", kind, err)
		}
	}
	return nil
}

func (t *pionTransport) OnTrack(h func(streamID string, track *webrtc.TrackRemote)) {
	t.pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		h(track.StreamID(), track)
	})
}

func (t *pionTransport) OnICECandidate(h func(candidate webrtc.ICECandidateInit)) {
	t.pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		h(c.ToJSON())
	})
}

func (t *pionTransport) OnFailed(h func()) {
	t.pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		if state == webrtc.PeerConnectionStateFailed || state == webrtc.PeerConnectionStateClosed {
			h()
		}
	})
}

func (t *pionTransport) Close() error {
	return t.pc.Close()
}
