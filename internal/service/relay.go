package service

import (
	"encoding/json"
	"log/slog"

	"github.com/immxrtalbeast/meshcall/internal/domain"
	"github.com/immxrtalbeast/meshcall/lib/logger/sl"
)

// Directory resolves connected participants by id.
type Directory interface {
	Participant(id string) (*domain.Participant, bool)
}

// SignalingRelay forwards negotiation messages between participants without
// looking at their payload.
type SignalingRelay struct {
	directory Directory
	log       *slog.Logger
}

func NewSignalingRelay(directory Directory, log *slog.Logger) *SignalingRelay {
	if log == nil {
		log = slog.Default()
	}
	return &SignalingRelay{directory: directory, log: log}
}

// Relay reports whether the message was queued for the target. Messages for
// unknown targets, or targets whose queue is full, are dropped.
func (s *SignalingRelay) Relay(senderID, targetID string, kind domain.SignalKind, payload json.RawMessage) bool {
	log := s.log.With(
		slog.String("kind", string(kind)),
		slog.String("from", senderID),
		slog.String("target", targetID),
	)

	target, ok := s.directory.Participant(targetID)
	if !ok {
		log.Debug("relay target unreachable")
		return false
	}

	ev, err := domain.NewEvent(string(kind), domain.SignalDelivery{From: senderID, Payload: payload})
	if err != nil {
		log.Debug("failed to encode relayed message", sl.Err(err))
		return false
	}

	if !target.EnqueueEvent(ev) {
		log.Debug("relay target queue unavailable")
		return false
	}
	return true
}
