package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v3"
	"github.com/pion/webrtc/v3/pkg/media"
)

// LocalMedia is the set of local tracks sent to video peers.
type LocalMedia interface {
	Tracks() []webrtc.TrackLocal
	Stop()
}

type MediaProvider interface {
	Acquire(ctx context.Context) (LocalMedia, error)
}

// opusSilence is a single 20ms Opus frame of silence.
var opusSilence = []byte{0xf8, 0xff, 0xfe}

const silenceFrame = 20 * time.Millisecond

// SyntheticMediaProvider produces a VP8 video track and an Opus audio track
// carrying silence. It stands in for capture devices on headless clients.
type SyntheticMediaProvider struct{}

func (SyntheticMediaProvider) Acquire(ctx context.Context) (LocalMedia, error) {
	streamID := "meshcall-" + uuid.NewString()

	video, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}, "video", streamID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMediaAccessDenied, err)
	}
	audio, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus}, "audio", streamID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMediaAccessDenied, err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	m := &syntheticMedia{
		video:  video,
		audio:  audio,
		cancel: cancel,
	}
	m.wg.Add(1)
	go m.pumpSilence(runCtx)

	return m, nil
}

type syntheticMedia struct {
	video *webrtc.TrackLocalStaticSample
	audio *webrtc.TrackLocalStaticSample

	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

func (m *syntheticMedia) Tracks() []webrtc.TrackLocal {
	return []webrtc.TrackLocal{m.audio, m.video}
}

func (m *syntheticMedia) Stop() {
	m.once.Do(func() {
		m.cancel()
		m.wg.Wait()
	})
}

func (m *syntheticMedia) pumpSilence(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(silenceFrame)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = m.audio.WriteSample(media.Sample{Data: opusSilence, Duration: silenceFrame})
		}
	}
}
