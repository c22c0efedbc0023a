package domain

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

const participantQueueSize = 64

// Participant is one connected event-channel session.
type Participant struct {
	ID          string
	RemoteAddr  string
	ConnectedAt time.Time

	mu     sync.Mutex
	closed bool
	events chan Event
}

func NewParticipant(remoteAddr string) *Participant {
	return &Participant{
		ID:          uuid.New().String(),
		RemoteAddr:  remoteAddr,
		ConnectedAt: time.Now().UTC(),
		events:      make(chan Event, participantQueueSize),
	}
}

// Events is drained by the session's write pump. It is closed by Close.
func (p *Participant) Events() <-chan Event {
	return p.events
}

// EnqueueEvent queues ev without blocking. It reports false when the queue is
// full or the participant is already closed.
func (p *Participant) EnqueueEvent(ev Event) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return false
	}
	select {
	case p.events <- ev:
		return true
	default:
		return false
	}
}

func (p *Participant) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.closed = true
	close(p.events)
}

func (p *Participant) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}
