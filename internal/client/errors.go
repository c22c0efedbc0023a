package client

import (
	"errors"
	"fmt"
)

var (
	ErrRoomFull          = errors.New("room is full")
	ErrMediaAccessDenied = errors.New("media access denied")
	ErrNegotiation       = errors.New("negotiation failed")
	ErrAttachTimeout     = errors.New("display attachment timed out")
	ErrLinkClosed        = errors.New("peer link closed")
	ErrSignalingClosed   = errors.New("signaling connection closed")
)

// NegotiationError is a failed step of the offer/answer exchange with a peer.
type NegotiationError struct {
	Op   string
	Peer string
	Err  error
}

func (e *NegotiationError) Error() string {
	return fmt.Sprintf("%s with %s: %v", e.Op, e.Peer, e.Err)
}

func (e *NegotiationError) Unwrap() []error {
	return []error{ErrNegotiation, e.Err}
}

func negotiationError(op, peer string, err error) *NegotiationError {
	return &NegotiationError{Op: op, Peer: peer, Err: err}
}
