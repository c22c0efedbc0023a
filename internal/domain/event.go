package domain

import (
	"encoding/json"
	"time"
)

// Event types carried over the event channel.
const (
	EventJoinRoom    = "join-room"
	EventLeaveRoom   = "leave-room"
	EventSendMessage = "send-message"

	EventJoinedAsVideo   = "joined-as-video"
	EventJoinedAsChat    = "joined-as-chat"
	EventUserJoinedVideo = "user-joined-video"
	EventUserJoinedChat  = "user-joined-chat"
	EventUserLeftVideo   = "user-left-video"
	EventUserLeftChat    = "user-left-chat"
	EventRoomFull        = "room-full"
	EventNewMessage      = "new-message"
	EventError           = "error"
)

// SignalKind is one of the negotiation message kinds forwarded by the relay.
type SignalKind string

const (
	SignalOffer     SignalKind = "offer"
	SignalAnswer    SignalKind = "answer"
	SignalCandidate SignalKind = "candidate"
)

// ParseSignalKind reports whether t names a relayable kind.
func ParseSignalKind(t string) (SignalKind, bool) {
	switch k := SignalKind(t); k {
	case SignalOffer, SignalAnswer, SignalCandidate:
		return k, true
	}
	return "", false
}

// Event is the envelope of every frame on the event channel.
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEvent marshals payload into an envelope of type t. A nil payload
// produces an event without a payload.
func NewEvent(t string, payload any) (Event, error) {
	if payload == nil {
		return Event{Type: t}, nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{Type: t, Payload: b}, nil
}

// DecodePayload decodes the payload into v.
func (e Event) DecodePayload(v any) error {
	if len(e.Payload) == 0 {
		return ErrEmptyPayload
	}
	return json.Unmarshal(e.Payload, v)
}

// UserEntry is a member as listed to clients.
type UserEntry struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type JoinRoomPayload struct {
	RoomID string `json:"roomId"`
}

type SendMessagePayload struct {
	Text string `json:"text"`
}

// JoinedPayload is the snapshot sent to a participant that has just joined.
type JoinedPayload struct {
	ID         string           `json:"id"`
	Identity   string           `json:"identity"`
	VideoUsers []UserEntry      `json:"videoUsers"`
	ChatUsers  []UserEntry      `json:"chatUsers"`
	Messages   []MessagePayload `json:"messages"`
}

// MembershipPayload announces a membership change to the rest of the room.
type MembershipPayload struct {
	ID         string      `json:"id"`
	Identity   string      `json:"identity"`
	VideoUsers []UserEntry `json:"videoUsers"`
	ChatUsers  []UserEntry `json:"chatUsers"`
}

type MessagePayload struct {
	ID        string    `json:"id"`
	Identity  string    `json:"identity"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// SignalRequest is an outbound negotiation message addressed to Target.
type SignalRequest struct {
	Target  string          `json:"target"`
	Payload json.RawMessage `json:"payload"`
}

// SignalDelivery is a relayed negotiation message as seen by its target.
type SignalDelivery struct {
	From    string          `json:"from"`
	Payload json.RawMessage `json:"payload"`
}

type ErrorPayload struct {
	Error string `json:"error"`
}
