package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/immxrtalbeast/meshcall/internal/config"
	"github.com/immxrtalbeast/meshcall/internal/domain"
	"github.com/immxrtalbeast/meshcall/internal/identity"
	"github.com/immxrtalbeast/meshcall/internal/presence"
	"github.com/immxrtalbeast/meshcall/internal/repository"
	"github.com/immxrtalbeast/meshcall/lib/logger/sl"
)

var (
	ErrParticipantNotFound = errors.New("participant not found")
	ErrInvalidRoomID       = errors.New("room id is required")
	ErrNotInRoom           = errors.New("participant is not in a room")
	ErrInvalidMessage      = errors.New("invalid chat message")
	ErrRoomFull            = identity.ErrRoomFull
)

// JoinResult describes the slot a participant received.
type JoinResult struct {
	RoomID   string
	Role     domain.Role
	Identity string
	Snapshot domain.RoomSnapshot
}

type RoomSummary struct {
	ID           string
	VideoCount   int
	ChatCount    int
	MessageCount int
	CreatedAt    time.Time
}

// RoomRegistry owns room membership, chat history and the directory of
// connected participants. All mutations happen under one lock, and the
// events they produce are queued before the lock is released, so every
// member of a room observes events in processing order.
type RoomRegistry struct {
	rooms      repository.RoomRepository
	identities *identity.Allocator
	presence   presence.Publisher
	log        *slog.Logger

	videoSlots       int
	maxMessageLength int

	mu           sync.RWMutex
	participants map[string]*domain.Participant
	membership   map[string]string
}

func NewRoomRegistry(
	rooms repository.RoomRepository,
	identities *identity.Allocator,
	publisher presence.Publisher,
	cfg config.RoomConfig,
	log *slog.Logger,
) *RoomRegistry {
	if log == nil {
		log = slog.Default()
	}
	if publisher == nil {
		publisher = presence.Nop{}
	}
	return &RoomRegistry{
		rooms:            rooms,
		identities:       identities,
		presence:         publisher,
		log:              log,
		videoSlots:       cfg.VideoSlots,
		maxMessageLength: cfg.MaxMessageLength,
		participants:     make(map[string]*domain.Participant),
		membership:       make(map[string]string),
	}
}

func (r *RoomRegistry) Connect(participant *domain.Participant) {
	r.mu.Lock()
	r.participants[participant.ID] = participant
	r.mu.Unlock()

	r.log.Debug("participant connected",
		slog.String("participant_id", participant.ID),
		slog.String("remote_addr", participant.RemoteAddr),
	)
}

// Participant looks up a connected participant.
func (r *RoomRegistry) Participant(id string) (*domain.Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.participants[id]
	return p, ok
}

func (r *RoomRegistry) Join(ctx context.Context, participantID string, roomID string) (*JoinResult, error) {
	const op = "service.registry.join"
	log := r.log.With(
		slog.String("op", op),
		slog.String("participant_id", participantID),
		slog.String("room_id", roomID),
	)

	roomID = strings.TrimSpace(roomID)
	if roomID == "" {
		return nil, ErrInvalidRoomID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	participant, ok := r.participants[participantID]
	if !ok {
		return nil, ErrParticipantNotFound
	}

	if _, joined := r.membership[participantID]; joined {
		log.Info("participant switches rooms")
		r.leaveLocked(ctx, participantID)
	}

	room, err := r.rooms.Get(ctx, roomID)
	created := false
	switch {
	case errors.Is(err, repository.ErrRoomNotFound):
		room = domain.NewRoom(roomID)
		created = true
	case err != nil:
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	name, err := r.identities.Allocate(room.UsedIdentities())
	if err != nil {
		if errors.Is(err, identity.ErrRoomFull) {
			log.Info("room is full")
			r.sendLocked(participant, domain.EventRoomFull, nil)
			return nil, ErrRoomFull
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if created {
		if err := r.rooms.Create(ctx, room); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		log.Info("room created")
	}

	role := domain.RoleChat
	if room.VideoCount() < r.videoSlots {
		role = domain.RoleVideo
	}

	room.Add(role, domain.Member{ID: participantID, Identity: name, JoinedAt: time.Now().UTC()})
	r.membership[participantID] = roomID
	r.presence.Publish(presence.Change{
		Kind:          presence.MemberJoined,
		RoomID:        roomID,
		ParticipantID: participantID,
		Identity:      name,
		Role:          role,
	})

	snapshot := room.Snapshot()

	joinedType, announceType := domain.EventJoinedAsVideo, domain.EventUserJoinedVideo
	if role == domain.RoleChat {
		joinedType, announceType = domain.EventJoinedAsChat, domain.EventUserJoinedChat
	}

	r.sendLocked(participant, joinedType, domain.JoinedPayload{
		ID:         participantID,
		Identity:   name,
		VideoUsers: snapshot.VideoUsers,
		ChatUsers:  snapshot.ChatUsers,
		Messages:   messagePayloads(snapshot.Messages),
	})
	r.broadcastLocked(room, announceType, domain.MembershipPayload{
		ID:         participantID,
		Identity:   name,
		VideoUsers: snapshot.VideoUsers,
		ChatUsers:  snapshot.ChatUsers,
	}, participantID)

	log.Info("participant joined",
		slog.String("identity", name),
		slog.String("role", string(role)),
		slog.Int("video_count", room.VideoCount()),
		slog.Int("chat_count", room.ChatCount()),
	)

	return &JoinResult{
		RoomID:   roomID,
		Role:     role,
		Identity: name,
		Snapshot: snapshot,
	}, nil
}

// Leave removes the participant from its room, if any.
func (r *RoomRegistry) Leave(ctx context.Context, participantID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(ctx, participantID)
}

func (r *RoomRegistry) PostMessage(ctx context.Context, participantID string, text string) (domain.ChatMessage, error) {
	const op = "service.registry.post_message"
	log := r.log.With(
		slog.String("op", op),
		slog.String("participant_id", participantID),
	)

	r.mu.Lock()
	defer r.mu.Unlock()

	roomID, ok := r.membership[participantID]
	if !ok {
		return domain.ChatMessage{}, ErrNotInRoom
	}

	text, err := r.validateMessage(text)
	if err != nil {
		return domain.ChatMessage{}, err
	}

	room, err := r.rooms.Get(ctx, roomID)
	if err != nil {
		log.Error("room of a member is missing", slog.String("room_id", roomID), sl.Err(err))
		return domain.ChatMessage{}, fmt.Errorf("%s: %w", op, err)
	}
	sender, ok := room.Member(participantID)
	if !ok {
		return domain.ChatMessage{}, ErrNotInRoom
	}

	msg := room.AppendMessage(domain.NewChatMessage(roomID, sender, text))
	r.broadcastLocked(room, domain.EventNewMessage, msg.Payload(), "")

	log.Debug("message posted",
		slog.String("room_id", roomID),
		slog.String("message_id", msg.ID.String()),
	)
	return msg, nil
}

// Disconnect treats the end of a session as an implicit leave.
func (r *RoomRegistry) Disconnect(ctx context.Context, participantID string) {
	r.mu.Lock()
	r.leaveLocked(ctx, participantID)
	participant, ok := r.participants[participantID]
	delete(r.participants, participantID)
	r.mu.Unlock()

	if ok {
		participant.Close()
		r.log.Debug("participant disconnected", slog.String("participant_id", participantID))
	}
}

func (r *RoomRegistry) GetRoom(ctx context.Context, roomID string) (domain.RoomSnapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, err := r.rooms.Get(ctx, roomID)
	if err != nil {
		return domain.RoomSnapshot{}, err
	}
	return room.Snapshot(), nil
}

func (r *RoomRegistry) ListRooms(ctx context.Context) ([]RoomSummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rooms, err := r.rooms.List(ctx)
	if err != nil {
		return nil, err
	}

	summaries := make([]RoomSummary, 0, len(rooms))
	for _, room := range rooms {
		summaries = append(summaries, RoomSummary{
			ID:           room.ID,
			VideoCount:   room.VideoCount(),
			ChatCount:    room.ChatCount(),
			MessageCount: room.MessageCount(),
			CreatedAt:    room.CreatedAt,
		})
	}
	return summaries, nil
}

func (r *RoomRegistry) leaveLocked(ctx context.Context, participantID string) {
	const op = "service.registry.leave"

	roomID, ok := r.membership[participantID]
	if !ok {
		return
	}
	delete(r.membership, participantID)

	log := r.log.With(
		slog.String("op", op),
		slog.String("participant_id", participantID),
		slog.String("room_id", roomID),
	)

	room, err := r.rooms.Get(ctx, roomID)
	if err != nil {
		log.Error("room of a member is missing", sl.Err(err))
		return
	}

	member, role, ok := room.Remove(participantID)
	if !ok {
		return
	}
	r.presence.Publish(presence.Change{
		Kind:          presence.MemberLeft,
		RoomID:        roomID,
		ParticipantID: participantID,
		Identity:      member.Identity,
		Role:          role,
	})

	eventType := domain.EventUserLeftVideo
	if role == domain.RoleChat {
		eventType = domain.EventUserLeftChat
	}
	r.broadcastLocked(room, eventType, domain.MembershipPayload{
		ID:         participantID,
		Identity:   member.Identity,
		VideoUsers: room.VideoUsers(),
		ChatUsers:  room.ChatUsers(),
	}, participantID)

	log.Info("participant left",
		slog.String("identity", member.Identity),
		slog.String("role", string(role)),
	)

	if room.IsEmpty() {
		if err := r.rooms.Delete(ctx, roomID); err != nil {
			log.Error("failed to delete empty room", sl.Err(err))
			return
		}
		r.presence.Publish(presence.Change{Kind: presence.RoomClosed, RoomID: roomID})
		log.Info("room closed")
	}
}

func (r *RoomRegistry) validateMessage(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: message cannot be empty", ErrInvalidMessage)
	}
	if utf8.RuneCountInString(text) > r.maxMessageLength {
		return "", fmt.Errorf("%w: message is too long", ErrInvalidMessage)
	}
	return text, nil
}

func (r *RoomRegistry) sendLocked(p *domain.Participant, eventType string, payload any) {
	ev, err := domain.NewEvent(eventType, payload)
	if err != nil {
		r.log.Error("failed to encode event", slog.String("type", eventType), sl.Err(err))
		return
	}
	if !p.EnqueueEvent(ev) {
		r.log.Debug("dropping event", slog.String("participant_id", p.ID), slog.String("type", eventType))
	}
}

// broadcastLocked queues an event for every member of room except exclude.
func (r *RoomRegistry) broadcastLocked(room *domain.Room, eventType string, payload any, exclude string) {
	ev, err := domain.NewEvent(eventType, payload)
	if err != nil {
		r.log.Error("failed to encode event", slog.String("type", eventType), sl.Err(err))
		return
	}

	for _, users := range [][]domain.UserEntry{room.VideoUsers(), room.ChatUsers()} {
		for _, u := range users {
			if u.ID == exclude {
				continue
			}
			p, ok := r.participants[u.ID]
			if !ok {
				continue
			}
			if !p.EnqueueEvent(ev) {
				r.log.Debug("dropping broadcast event", slog.String("participant_id", p.ID), slog.String("type", eventType))
			}
		}
	}
}

func messagePayloads(msgs []domain.ChatMessage) []domain.MessagePayload {
	out := make([]domain.MessagePayload, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Payload())
	}
	return out
}
