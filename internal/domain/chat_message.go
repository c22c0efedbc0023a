package domain

import (
	"time"

	"github.com/google/uuid"
)

type ChatMessage struct {
	ID            uuid.UUID
	RoomID        string
	ParticipantID string
	Identity      string
	Text          string
	CreatedAt     time.Time
}

func NewChatMessage(roomID string, sender Member, text string) ChatMessage {
	return ChatMessage{
		ID:            uuid.New(),
		RoomID:        roomID,
		ParticipantID: sender.ID,
		Identity:      sender.Identity,
		Text:          text,
		CreatedAt:     time.Now().UTC(),
	}
}

// Payload converts the message into its wire representation.
func (m ChatMessage) Payload() MessagePayload {
	return MessagePayload{
		ID:        m.ID.String(),
		Identity:  m.Identity,
		Text:      m.Text,
		Timestamp: m.CreatedAt,
	}
}
