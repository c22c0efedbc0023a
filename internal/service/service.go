package service

import (
	"context"
	"encoding/json"

	"github.com/immxrtalbeast/meshcall/internal/domain"
)

type RoomInteractor interface {
	Connect(participant *domain.Participant)
	Join(ctx context.Context, participantID string, roomID string) (*JoinResult, error)
	Leave(ctx context.Context, participantID string)
	PostMessage(ctx context.Context, participantID string, text string) (domain.ChatMessage, error)
	Disconnect(ctx context.Context, participantID string)
	GetRoom(ctx context.Context, roomID string) (domain.RoomSnapshot, error)
	ListRooms(ctx context.Context) ([]RoomSummary, error)
}

type SignalRelayer interface {
	Relay(senderID, targetID string, kind domain.SignalKind, payload json.RawMessage) bool
}
